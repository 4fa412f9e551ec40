package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// loggerKey is used to store the logger in context.
// This key is shared with root.go via both using the same type.
type loggerKey struct{}

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

// Package-level koanf instance and config file tracking
var (
	k              = koanf.New(".")
	configFileUsed string
	currentConfig  *Config // Stores the loaded config for access by commands
)

// findConfigFile finds the config file to use.
// Priority: explicit path > chonker.yaml > chonker.yml
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if _, err := os.Stat("chonker.yaml"); err == nil {
		return "chonker.yaml"
	}
	if _, err := os.Stat("chonker.yml"); err == nil {
		return "chonker.yml"
	}
	return ""
}

// configExistsIn checks if a chonker config file exists in the directory.
func configExistsIn(dir string) bool {
	for _, name := range []string{"chonker.yaml", "chonker.yml"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

// findProjectRootUpward searches upward from startDir for a chonker config file.
// Returns empty string if not found within maxUpwardSearchLevels.
func findProjectRootUpward(startDir string) string {
	dir := startDir
	for i := 0; i < maxUpwardSearchLevels; i++ {
		if configExistsIn(dir) {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			break
		}
		dir = parent
	}
	return ""
}

// inferProjectRoot determines the project root from CLI flags and filesystem.
// Priority:
//  1. Infer from --corpus-dir (parent if it contains a config or is named "corpus")
//  2. Search upward from CWD for chonker.yaml
//  3. Current working directory
func inferProjectRoot(flags *pflag.FlagSet) string {
	// 1. Infer from --corpus-dir
	if flags != nil {
		if corpusDir, _ := flags.GetString("corpus-dir"); corpusDir != "" && flags.Changed("corpus-dir") {
			absCorpus, err := filepath.Abs(corpusDir)
			if err == nil {
				parent := filepath.Dir(absCorpus)

				// If parent has a config file, it's the project root
				if configExistsIn(parent) {
					return parent
				}

				// If the folder is named "corpus", assume parent is root
				if filepath.Base(absCorpus) == "corpus" {
					return parent
				}
			}
		}
	}

	// 2. Search upward from CWD for chonker.yaml
	if cwd, err := os.Getwd(); err == nil {
		if root := findProjectRootUpward(cwd); root != "" {
			return root
		}
	}

	// 3. Default to CWD
	cwd, _ := os.Getwd()
	if cwd == "" {
		cwd = "."
	}
	return cwd
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
// Returns the path unchanged if it's empty or already absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// ResetConfig resets the koanf instance. Used for testing.
func ResetConfig() {
	k = koanf.New(".")
	configFileUsed = ""
	currentConfig = nil
}

// LoadConfig loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	return LoadConfigWithProfile(cfgFile, "", flags)
}

// LoadConfigWithProfile loads configuration with an optional profile override.
// The profileOverride parameter selects which named profile's sections replace
// the base configuration. The flags parameter allows CLI flags to override
// config file and env var values.
func LoadConfigWithProfile(cfgFile string, profileOverride string, flags *pflag.FlagSet) (*Config, error) {
	// Reset koanf for fresh load
	k = koanf.New(".")

	// Infer project root from flags before loading config.
	// This enables the anchor pattern where --corpus-dir testdata/corpus
	// implies the project root is testdata/
	projectRoot := inferProjectRoot(flags)

	// Track paths that were explicitly provided as flags (relative to CWD).
	// These are converted to absolute paths before the normal resolution step,
	// to prevent double-resolution when the project root was inferred from them.
	var flagCorpusDir, flagOutDir, flagStatePath string
	if flags != nil {
		if flags.Changed("corpus-dir") {
			if v, _ := flags.GetString("corpus-dir"); v != "" {
				flagCorpusDir, _ = filepath.Abs(v)
			}
		}
		if flags.Changed("out-dir") {
			if v, _ := flags.GetString("out-dir"); v != "" {
				flagOutDir, _ = filepath.Abs(v)
			}
		}
		if flags.Changed("state") {
			if v, _ := flags.GetString("state"); v != "" {
				flagStatePath, _ = filepath.Abs(v)
			}
		}
	}

	// If an explicit config file is provided, use its directory as project root
	// (unless a more specific hint was given via flags)
	if cfgFile != "" && projectRoot == inferProjectRoot(nil) {
		// No flag-based inference happened, use the config file's directory
		if absPath, err := filepath.Abs(cfgFile); err == nil {
			projectRoot = filepath.Dir(absPath)
		}
	}

	// 1. Load defaults
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"corpus_dir":          DefaultCorpusDir,
		"out_dir":             DefaultOutDir,
		"state_path":          DefaultStateFile,
		"profile":             DefaultProfile,
		"verbose":             false,
		"output":              DefaultOutput,
		"tokenizer.level":     "word",
		"tokenizer.delimiter": `\s+`,
		"tokenizer.normalize": "none",
		"vocab.unk_token":     "<unk>",
		"ngrams.max_length":   2,
		"ngrams.min_count":    1,
		"batch.size":          32,
		"batch.by":            "sequences",
		"batch.pad_token":     "<pad>",
		"batch.seq_len":       64,
		"batch.grad_accum":    1,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Find and load config file
	// Search in project root if no explicit config file provided
	if cfgFile == "" {
		for _, name := range []string{"chonker.yaml", "chonker.yml"} {
			candidate := filepath.Join(projectRoot, name)
			if _, err := os.Stat(candidate); err == nil {
				cfgFile = candidate
				break
			}
		}
	}
	configFileUsed = findConfigFile(cfgFile)
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// 3. Load environment variables (CHONKER_ prefix)
	// Transform: CHONKER_CORPUS_DIR -> corpus_dir
	// Double underscores address nested keys: CHONKER_TOKENIZER__LEVEL -> tokenizer.level
	if err := k.Load(env.Provider("CHONKER_", ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, "CHONKER_"))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Load flags (highest priority, overrides env vars and config file)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			// Only load flags that were explicitly set
			if !f.Changed {
				return "", nil
			}
			// --config selects the file itself and has no config key
			if f.Name == "config" || f.Name == "help" {
				return "", nil
			}
			// Transform kebab-case to snake_case for config keys
			key := strings.ReplaceAll(f.Name, "-", "_")

			// The flag is --state for brevity, the config key is state_path
			if key == "state" {
				return "state_path", posflag.FlagVal(flags, f)
			}

			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 5. Unmarshal into the Config struct. Unknown keys are rejected so
	// that typos in chonker.yaml surface as errors instead of silently
	// falling back to defaults.
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			ErrorUnused:      true,
			Result:           &cfg,
			TagName:          "koanf",
			WeaklyTypedInput: true,
			DecodeHook:       mapstructure.StringToSliceHookFunc(","),
		},
	}); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// 6. Set project root
	cfg.ProjectRoot = projectRoot

	// 7. Apply the selected profile. The base configuration is the
	// "default" profile; any other name must be defined in the file.
	profileName := cfg.Profile
	if profileOverride != "" {
		profileName = profileOverride
		cfg.Profile = profileOverride
	}
	if prof, ok := cfg.Profiles[profileName]; ok {
		cfg.applyProfile(prof)
	} else if profileName != DefaultProfile {
		if configFileUsed != "" {
			return nil, fmt.Errorf("profile %q is not defined in %s", profileName, configFileUsed)
		}
		return nil, fmt.Errorf("profile %q is not defined (no config file found)", profileName)
	}

	// 8. Expand ${VAR} references and resolve relative paths.
	// Paths explicitly provided via flags use the pre-computed absolute
	// paths (relative to CWD at flag parse time). Paths from the config
	// file, profile, or defaults resolve relative to the project root.
	if flagCorpusDir != "" {
		cfg.CorpusDir = flagCorpusDir
	} else {
		cfg.CorpusDir = resolvePathRelativeTo(expandEnvVars(cfg.CorpusDir), projectRoot)
	}
	if flagOutDir != "" {
		cfg.OutDir = flagOutDir
	} else {
		cfg.OutDir = resolvePathRelativeTo(expandEnvVars(cfg.OutDir), projectRoot)
	}
	if flagStatePath != "" {
		cfg.StatePath = flagStatePath
	} else {
		cfg.StatePath = resolvePathRelativeTo(expandEnvVars(cfg.StatePath), projectRoot)
	}

	// 9. Validate the merged configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Store config for access by commands
	currentConfig = &cfg

	return &cfg, nil
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// GetCurrentConfig returns the currently loaded configuration.
// This is available after LoadConfig or LoadConfigWithProfile is called.
func GetCurrentConfig() *Config {
	return currentConfig
}

// LoggerKey returns the context key used for storing the logger.
// This allows the commands package to retrieve the logger from context
// without creating an import cycle with the cli package.
func LoggerKey() interface{} {
	return loggerKey{}
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	// Return discard logger as safe fallback
	return slog.New(slog.DiscardHandler)
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match // Return original if not found
	})
}
