// Package cli provides the command-line interface for chonker.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/cmdowney88/chonker/internal/cli/commands"
	"github.com/cmdowney88/chonker/internal/cli/config"
	"github.com/cmdowney88/chonker/internal/cli/output"
	"github.com/spf13/cobra"
)

var (
	cfgFile     string
	profileFlag string
	cfg         *config.Config
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// configKey is used to store config in context.
type configKey struct{}

// rendererKey is used to store renderer in context.
type rendererKey struct{}

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "chonker",
		Short: "chonker - Text wrangling and corpus pipeline tools",
		Long: `chonker prepares text corpora for NLP experiments.

It tokenizes raw text, builds vocabularies, counts n-grams, encodes
corpora to integer IDs, and plans padded batches, either as one-shot
commands or as an incremental pipeline with cached stages and run
history.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help and completion commands
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			// Load configuration with optional profile override and CLI flags
			var err error
			cfg, err = config.LoadConfigWithProfile(cfgFile, profileFlag, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			// Store config in context
			ctx := context.WithValue(cmd.Context(), configKey{}, cfg)

			// Create and store renderer based on output mode
			mode := output.Mode(cfg.OutputFormat)
			renderer := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)
			ctx = context.WithValue(ctx, rendererKey{}, renderer)

			// Logs go to stderr so stdout stays parseable
			level := slog.LevelWarn
			if cfg.Verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			ctx = context.WithValue(ctx, config.LoggerKey(), logger)

			cmd.SetContext(ctx)

			// Print config file used (if verbose)
			if cfg.Verbose {
				if configFile := config.GetConfigFileUsed(); configFile != "" {
					fmt.Fprintf(os.Stderr, "Using config file: %s\n", configFile)
				}
				if profileFlag != "" {
					fmt.Fprintf(os.Stderr, "Using profile: %s\n", profileFlag)
				}
			}

			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Set version template
	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
Text wrangling and corpus pipeline tools
`)

	// Global persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./chonker.yaml)")
	rootCmd.PersistentFlags().StringVarP(&profileFlag, "profile", "p", "", "Configuration profile to use (e.g., char)")
	rootCmd.PersistentFlags().String("corpus-dir", "", "Path to the corpus directory")
	rootCmd.PersistentFlags().String("out-dir", "", "Path to the build output directory")
	rootCmd.PersistentFlags().String("state", "", "Path to the pipeline state database")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().StringP("output", "o", "", "Output format (auto|text|tsv|json)")

	// Register completion for output flag
	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return output.Modes(), cobra.ShellCompDirectiveNoFileComp
	})

	// Add subcommands
	rootCmd.AddCommand(commands.NewVersionCommand(Version))
	rootCmd.AddCommand(commands.NewRunCommand())
	rootCmd.AddCommand(commands.NewRunsCommand())
	rootCmd.AddCommand(commands.NewTokenizeCommand())
	rootCmd.AddCommand(commands.NewVocabCommand())
	rootCmd.AddCommand(commands.NewNGramsCommand())
	rootCmd.AddCommand(commands.NewBatchesCommand())
	rootCmd.AddCommand(commands.NewInitCommand())
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// GetConfig retrieves the config from the command context.
func GetConfig(ctx context.Context) *config.Config {
	if c, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return c
	}
	// Return default config if none in context
	return &config.Config{
		CorpusDir: config.DefaultCorpusDir,
		OutDir:    config.DefaultOutDir,
		StatePath: config.DefaultStateFile,
		Profile:   config.DefaultProfile,
	}
}

// GetRenderer retrieves the renderer from the command context.
func GetRenderer(ctx context.Context) *output.Renderer {
	if r, ok := ctx.Value(rendererKey{}).(*output.Renderer); ok {
		return r
	}
	// Return default renderer if none in context
	return output.NewRenderer(os.Stdout, os.Stderr, output.ModeAuto)
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for chonker.

To load completions:

Bash:
  $ source <(chonker completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ chonker completion bash > /etc/bash_completion.d/chonker
  # macOS:
  $ chonker completion bash > $(brew --prefix)/etc/bash_completion.d/chonker

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. Execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ chonker completion zsh > "${fpath[1]}/_chonker"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ chonker completion fish | source

  # To load completions for each session, execute once:
  $ chonker completion fish > ~/.config/fish/completions/chonker.fish

PowerShell:
  PS> chonker completion powershell | Out-String | Invoke-Expression

  # To load completions for every new session, run:
  PS> chonker completion powershell > chonker.ps1
  # and source this file from your PowerShell profile.
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(os.Stdout)
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
			}
			return nil
		},
	}
	return cmd
}
