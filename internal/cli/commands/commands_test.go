// Package commands_test provides tests for CLI command creation.
package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRunCommand(t *testing.T) {
	cmd := NewRunCommand()

	assert.Equal(t, "run", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")

	// Verify flags exist
	flags := []string{"select", "downstream", "force", "watch", "json"}
	for _, flag := range flags {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %q should exist", flag)
	}

	// Verify alias exists
	assert.NotEmpty(t, cmd.Aliases, "run command should have aliases")
	assert.Equal(t, "build", cmd.Aliases[0], "run command should have 'build' alias")
}

func TestNewRunsCommand(t *testing.T) {
	cmd := NewRunsCommand()

	assert.Equal(t, "runs", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.NotNil(t, cmd.Flags().Lookup("limit"), "flag %q should exist", "limit")

	// Note: --output flag is a global persistent flag on root command, not local to runs
}

func TestNewTokenizeCommand(t *testing.T) {
	cmd := NewTokenizeCommand()

	assert.Equal(t, "tokenize <file>", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.NotEmpty(t, cmd.Example, "Example should not be empty")

	flags := []string{"level", "preserve-case", "split-tags", "edge-tokens", "delimiter", "normalize", "out"}
	for _, flag := range flags {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %q should exist", flag)
	}
}

func TestNewVocabCommand(t *testing.T) {
	cmd := NewVocabCommand()

	assert.Equal(t, "vocab", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")

	// Verify subcommands exist
	for _, name := range []string{"build", "encode", "decode"} {
		found := false
		for _, sub := range cmd.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}
		assert.True(t, found, "subcommand %q should exist", name)
	}
}

func TestNewNGramsCommand(t *testing.T) {
	cmd := NewNGramsCommand()

	assert.Equal(t, "ngrams <file...>", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.NotEmpty(t, cmd.Example, "Example should not be empty")

	flags := []string{"max-length", "min-count", "limit"}
	for _, flag := range flags {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %q should exist", flag)
	}
}

func TestNewBatchesCommand(t *testing.T) {
	cmd := NewBatchesCommand()

	assert.Equal(t, "batches <encoded-file>", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.NotEmpty(t, cmd.Example, "Example should not be empty")

	flags := []string{"size", "by", "seq-len", "grad-accum", "pad", "drop-final"}
	for _, flag := range flags {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %q should exist", flag)
	}
}
