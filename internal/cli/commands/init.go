package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cmdowney88/chonker/internal/cli/output"
	"github.com/spf13/cobra"
)

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool
	var example bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new chonker project",
		Long: `Initialize a new chonker project with a default layout.

This creates:
  - corpus/ directory for raw text files
  - chonker.yaml configuration file
  - .gitignore covering build artifacts and pipeline state

Use --example to include a small sample corpus and a char-level
profile demonstrating the configuration surface.`,
		Example: `  # Initialize in the current directory
  chonker init

  # Initialize with a sample corpus
  chonker init --example

  # Initialize in a new directory
  chonker init my-corpus --example

  # Force overwrite an existing config
  chonker init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			cfg := getConfig()
			mode := output.Mode(cfg.OutputFormat)
			r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

			if example {
				return runInitExample(r, dir, force)
			}
			return runInit(r, dir, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")
	cmd.Flags().BoolVar(&example, "example", false, "Include a sample corpus and a char-level profile")

	return cmd
}

func runInit(r *output.Renderer, dir string, force bool) error {
	if err := prepareProjectDir(dir, force); err != nil {
		return err
	}

	if err := copyTemplate("minimal", dir, force); err != nil {
		return fmt.Errorf("failed to initialize project: %w", err)
	}

	files, _ := listTemplateFiles("minimal")
	for _, f := range files {
		r.StatusLine(f, "success", "")
	}

	r.Println("")
	r.Success("chonker project initialized!")
	r.Println("")
	r.Println("Next steps:")
	r.Println("  1. Add text files to corpus/")
	r.Println("  2. Adjust tokenizer settings in chonker.yaml")
	r.Println("  3. Run 'chonker run' to build the pipeline")
	r.Println("  4. Run 'chonker runs' to see run history")

	return nil
}

func runInitExample(r *output.Renderer, dir string, force bool) error {
	if err := prepareProjectDir(dir, force); err != nil {
		return err
	}

	if err := copyTemplate("example", dir, force); err != nil {
		return fmt.Errorf("failed to initialize project: %w", err)
	}

	files, _ := listTemplateFiles("example")
	groups := groupTemplateFiles(files)

	r.Header(2, "Configuration")
	for _, f := range groups["config"] {
		r.StatusLine(f, "success", "")
	}

	r.Println("")
	r.Header(2, "Corpus")
	for _, f := range groups["corpus"] {
		r.StatusLine(f, "success", "")
	}

	r.Println("")
	r.Success("chonker project initialized with example data!")
	r.Println("")
	r.Println("Next steps:")
	r.Println("  chonker run              Build the full pipeline")
	r.Println("  chonker run -p char      Rebuild with the char profile")
	r.Println("  chonker runs             View run history")
	r.Println("  chonker ngrams build/tokenized/sample.tok.txt")

	return nil
}

// prepareProjectDir creates the target directory and refuses to
// overwrite an existing config without --force.
func prepareProjectDir(dir string, force bool) error {
	if dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	configPath := filepath.Join(dir, "chonker.yaml")
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("chonker.yaml already exists. Use --force to overwrite")
	}
	return nil
}
