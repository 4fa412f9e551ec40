package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeConfigFile writes a chonker.yaml into dir and returns its path.
func writeConfigFile(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "chonker.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	ResetConfig()

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, "corpus", filepath.Base(cfg.CorpusDir))
	assert.Equal(t, "build", filepath.Base(cfg.OutDir))
	assert.True(t, filepath.IsAbs(cfg.CorpusDir))
	assert.Equal(t, DefaultProfile, cfg.Profile)
	assert.Equal(t, DefaultOutput, cfg.OutputFormat)
	assert.False(t, cfg.Verbose)

	assert.Equal(t, "word", cfg.Tokenizer.Level)
	assert.Equal(t, `\s+`, cfg.Tokenizer.Delimiter)
	assert.Equal(t, "none", cfg.Tokenizer.Normalize)
	assert.Equal(t, "<unk>", cfg.Vocab.UnkToken)
	assert.Equal(t, 2, cfg.NGrams.MaxLength)
	assert.Equal(t, 1, cfg.NGrams.MinCount)
	assert.Equal(t, 32, cfg.Batch.Size)
	assert.Equal(t, "sequences", cfg.Batch.By)
	assert.Equal(t, "<pad>", cfg.Batch.PadToken)
	assert.Equal(t, 64, cfg.Batch.SeqLen)
	assert.Equal(t, 1, cfg.Batch.GradAccum)
}

func TestLoadConfig_FromFile(t *testing.T) {
	ResetConfig()
	tmpDir := t.TempDir()
	cfgPath := writeConfigFile(t, tmpDir, `
corpus_dir: data
out_dir: artifacts
tokenizer:
  level: char
  preserve_case: true
vocab:
  unk_token: "[UNK]"
  specials: ["<bos>", "<eos>"]
ngrams:
  max_length: 3
  min_count: 2
`)

	cfg, err := LoadConfig(cfgPath, nil)
	require.NoError(t, err)

	// Relative paths resolve against the config file's directory
	assert.Equal(t, filepath.Join(tmpDir, "data"), cfg.CorpusDir)
	assert.Equal(t, filepath.Join(tmpDir, "artifacts"), cfg.OutDir)
	assert.Equal(t, filepath.Join(tmpDir, ".chonker/state.db"), cfg.StatePath)
	assert.Equal(t, tmpDir, cfg.ProjectRoot)

	assert.Equal(t, "char", cfg.Tokenizer.Level)
	assert.True(t, cfg.Tokenizer.PreserveCase)
	assert.Equal(t, "[UNK]", cfg.Vocab.UnkToken)
	assert.Equal(t, []string{"<bos>", "<eos>"}, cfg.Vocab.Specials)
	assert.Equal(t, 3, cfg.NGrams.MaxLength)
	assert.Equal(t, 2, cfg.NGrams.MinCount)

	// Sections not mentioned in the file keep their defaults
	assert.Equal(t, 32, cfg.Batch.Size)

	assert.Equal(t, cfgPath, GetConfigFileUsed())
	assert.Equal(t, cfg, GetCurrentConfig())
}

func TestLoadConfig_UnknownKeyRejected(t *testing.T) {
	ResetConfig()
	tmpDir := t.TempDir()
	cfgPath := writeConfigFile(t, tmpDir, `
corpus_dir: data
tokenzier:
  level: char
`)

	_, err := LoadConfig(cfgPath, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unable to decode config")
}

func TestLoadConfig_EnvVars(t *testing.T) {
	ResetConfig()
	tmpDir := t.TempDir()
	cfgPath := writeConfigFile(t, tmpDir, "out_dir: from_file\n")

	os.Setenv("CHONKER_OUT_DIR", "from_env")
	defer os.Unsetenv("CHONKER_OUT_DIR")
	os.Setenv("CHONKER_TOKENIZER__LEVEL", "char")
	defer os.Unsetenv("CHONKER_TOKENIZER__LEVEL")
	os.Setenv("CHONKER_VOCAB__SPECIALS", "<pad>,<mask>")
	defer os.Unsetenv("CHONKER_VOCAB__SPECIALS")

	cfg, err := LoadConfig(cfgPath, nil)
	require.NoError(t, err)

	// Env vars override the file; double underscore addresses nested keys
	assert.Equal(t, filepath.Join(tmpDir, "from_env"), cfg.OutDir)
	assert.Equal(t, "char", cfg.Tokenizer.Level)
	assert.Equal(t, []string{"<pad>", "<mask>"}, cfg.Vocab.Specials)
}

func TestLoadConfig_FlagPrecedence(t *testing.T) {
	ResetConfig()
	tmpDir := t.TempDir()
	cfgPath := writeConfigFile(t, tmpDir, "out_dir: from_file\n")

	os.Setenv("CHONKER_OUT_DIR", "from_env")
	defer os.Unsetenv("CHONKER_OUT_DIR")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("out-dir", "", "output directory")
	require.NoError(t, flags.Set("out-dir", "from_flag"))

	cfg, err := LoadConfig(cfgPath, flags)
	require.NoError(t, err)

	// Flag paths resolve against the CWD at parse time
	wantOut, err := filepath.Abs("from_flag")
	require.NoError(t, err)
	assert.Equal(t, wantOut, cfg.OutDir)
}

func TestLoadConfig_UnchangedFlagsIgnored(t *testing.T) {
	ResetConfig()
	tmpDir := t.TempDir()
	cfgPath := writeConfigFile(t, tmpDir, "out_dir: from_file\n")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("out-dir", "unset_default", "output directory")

	cfg, err := LoadConfig(cfgPath, flags)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tmpDir, "from_file"), cfg.OutDir)
}

func TestLoadConfig_StateFlagMapping(t *testing.T) {
	ResetConfig()

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("state", "", "state database path")
	require.NoError(t, flags.Set("state", "custom.db"))

	cfg, err := LoadConfig("", flags)
	require.NoError(t, err)

	want, err := filepath.Abs("custom.db")
	require.NoError(t, err)
	assert.Equal(t, want, cfg.StatePath)
}

func TestLoadConfig_CorpusDirAnchorsProjectRoot(t *testing.T) {
	ResetConfig()
	tmpDir := t.TempDir()
	corpusDir := filepath.Join(tmpDir, "corpus")
	require.NoError(t, os.MkdirAll(corpusDir, 0755))

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("corpus-dir", "", "corpus directory")
	require.NoError(t, flags.Set("corpus-dir", corpusDir))

	cfg, err := LoadConfig("", flags)
	require.NoError(t, err)

	// A directory named "corpus" implies its parent is the project root,
	// so the default state path lands next to it
	assert.Equal(t, tmpDir, cfg.ProjectRoot)
	assert.Equal(t, corpusDir, cfg.CorpusDir)
	assert.Equal(t, filepath.Join(tmpDir, ".chonker/state.db"), cfg.StatePath)
}

func TestLoadConfig_UpwardSearch(t *testing.T) {
	ResetConfig()
	tmpDir := t.TempDir()
	writeConfigFile(t, tmpDir, "out_dir: found_above\n")
	subDir := filepath.Join(tmpDir, "nested", "deeper")
	require.NoError(t, os.MkdirAll(subDir, 0755))

	t.Chdir(subDir)

	// Resolve symlinks the same way Getwd reports them
	wantRoot, err := os.Getwd()
	require.NoError(t, err)
	wantRoot = filepath.Dir(filepath.Dir(wantRoot))

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)
	assert.Equal(t, wantRoot, cfg.ProjectRoot)
	assert.Equal(t, filepath.Join(wantRoot, "found_above"), cfg.OutDir)
}

func TestLoadConfigWithProfile(t *testing.T) {
	content := `
out_dir: base_build
ngrams:
  max_length: 3
  min_count: 2
profiles:
  char:
    out_dir: char_build
    tokenizer:
      level: char
      edge_tokens: true
`

	t.Run("base config when default profile", func(t *testing.T) {
		ResetConfig()
		tmpDir := t.TempDir()
		cfgPath := writeConfigFile(t, tmpDir, content)

		cfg, err := LoadConfig(cfgPath, nil)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(tmpDir, "base_build"), cfg.OutDir)
		assert.Equal(t, "word", cfg.Tokenizer.Level)
	})

	t.Run("override applies profile sections", func(t *testing.T) {
		ResetConfig()
		tmpDir := t.TempDir()
		cfgPath := writeConfigFile(t, tmpDir, content)

		cfg, err := LoadConfigWithProfile(cfgPath, "char", nil)
		require.NoError(t, err)
		assert.Equal(t, "char", cfg.Profile)
		assert.Equal(t, filepath.Join(tmpDir, "char_build"), cfg.OutDir)
		assert.Equal(t, "char", cfg.Tokenizer.Level)
		assert.True(t, cfg.Tokenizer.EdgeTokens)

		// Sections the profile does not mention stay from the base
		assert.Equal(t, 3, cfg.NGrams.MaxLength)
		assert.Equal(t, 2, cfg.NGrams.MinCount)
	})

	t.Run("profile key in file selects profile", func(t *testing.T) {
		ResetConfig()
		tmpDir := t.TempDir()
		cfgPath := writeConfigFile(t, tmpDir, "profile: char\n"+content[1:])

		cfg, err := LoadConfig(cfgPath, nil)
		require.NoError(t, err)
		assert.Equal(t, "char", cfg.Profile)
		assert.Equal(t, "char", cfg.Tokenizer.Level)
	})

	t.Run("nonexistent profile is an error", func(t *testing.T) {
		ResetConfig()
		tmpDir := t.TempDir()
		cfgPath := writeConfigFile(t, tmpDir, content)

		_, err := LoadConfigWithProfile(cfgPath, "nope", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `profile "nope" is not defined`)
	})

	t.Run("profile section replaces wholesale", func(t *testing.T) {
		ResetConfig()
		tmpDir := t.TempDir()
		cfgPath := writeConfigFile(t, tmpDir, `
profiles:
  partial:
    ngrams:
      min_count: 5
`)

		// max_length is unset in the replacing section, so validation
		// forces the profile author to spell the section out
		_, err := LoadConfigWithProfile(cfgPath, "partial", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ngrams.max_length must be positive")
	})
}

func TestLoadConfig_ExpandsEnvVarsInPaths(t *testing.T) {
	ResetConfig()
	tmpDir := t.TempDir()
	dataDir := filepath.Join(tmpDir, "shared-data")
	require.NoError(t, os.MkdirAll(dataDir, 0755))

	os.Setenv("WRANGLE_TEST_DATA", dataDir)
	defer os.Unsetenv("WRANGLE_TEST_DATA")

	cfgPath := writeConfigFile(t, tmpDir, "corpus_dir: ${WRANGLE_TEST_DATA}/corpus\n")

	cfg, err := LoadConfig(cfgPath, nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dataDir, "corpus"), cfg.CorpusDir)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		errSubstr string
	}{
		{
			name:      "valid defaults",
			mutate:    func(c *Config) {},
			errSubstr: "",
		},
		{
			name:      "missing corpus dir",
			mutate:    func(c *Config) { c.CorpusDir = "" },
			errSubstr: "corpus_dir is required",
		},
		{
			name:      "bad tokenizer level",
			mutate:    func(c *Config) { c.Tokenizer.Level = "sentence" },
			errSubstr: "invalid tokenizer config",
		},
		{
			name:      "bad normalization form",
			mutate:    func(c *Config) { c.Tokenizer.Normalize = "nfx" },
			errSubstr: "invalid tokenizer config",
		},
		{
			name:      "bad output format",
			mutate:    func(c *Config) { c.OutputFormat = "markdown" },
			errSubstr: "unknown output format",
		},
		{
			name:      "bad batch mode",
			mutate:    func(c *Config) { c.Batch.By = "lines" },
			errSubstr: "unknown batch mode",
		},
		{
			name:      "non-positive ngram length",
			mutate:    func(c *Config) { c.NGrams.MaxLength = 0 },
			errSubstr: "ngrams.max_length must be positive",
		},
		{
			name:      "negative min count",
			mutate:    func(c *Config) { c.NGrams.MinCount = -1 },
			errSubstr: "ngrams.min_count must be positive",
		},
		{
			name:      "zero batch size",
			mutate:    func(c *Config) { c.Batch.Size = 0 },
			errSubstr: "batch.size must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{
				CorpusDir:    "corpus",
				OutDir:       "build",
				OutputFormat: "auto",
				Tokenizer:    TokenizerConfig{Level: "word"},
				NGrams:       NGramsConfig{MaxLength: 2, MinCount: 1},
				Batch:        BatchConfig{Size: 32, By: "sequences", SeqLen: 64, GradAccum: 1},
			}
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.errSubstr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errSubstr)
			}
		})
	}
}

func TestConfig_ValidateDirectories(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := Config{CorpusDir: filepath.Join(tmpDir, "missing")}
	err := cfg.ValidateDirectories()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corpus directory does not exist")

	cfg.CorpusDir = tmpDir
	assert.NoError(t, cfg.ValidateDirectories())
}

func TestConfig_TokenizerOptions(t *testing.T) {
	cfg := Config{
		Tokenizer: TokenizerConfig{
			Level:        "char",
			PreserveCase: true,
			SplitTags:    true,
			EdgeTokens:   true,
			Delimiter:    `\t`,
			Normalize:    "nfkc",
		},
	}

	opts := cfg.TokenizerOptions()
	assert.Equal(t, "char", string(opts.Level))
	assert.True(t, opts.PreserveCase)
	assert.True(t, opts.SplitTags)
	assert.True(t, opts.EdgeTokens)
	assert.Equal(t, `\t`, opts.Delimiter)
	assert.Equal(t, "nfkc", string(opts.Normalize))
}

func TestGetLogger(t *testing.T) {
	// Without a logger in context, a discard logger is returned
	assert.NotNil(t, GetLogger(context.Background()))

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ctx := context.WithValue(context.Background(), LoggerKey(), logger)
	assert.Equal(t, logger, GetLogger(ctx))
}
