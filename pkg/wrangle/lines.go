// Package wrangle provides convenience types and functions for the
// pre-processing of text data being fed into statistical and machine
// learning models.
package wrangle

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
)

// maxLineBytes caps the scanner buffer for corpora with very long lines.
const maxLineBytes = 1 << 20

// defaultDelimiter is the token boundary used when no delimiter is given.
var defaultDelimiter = regexp.MustCompile(`\s+`)

// Lines returns all lines from r with trailing newlines stripped,
// ignoring empty lines.
func Lines(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var lines []string
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read lines: %w", err)
	}
	return lines, nil
}

// ReadLines reads all non-empty lines from the file at path.
func ReadLines(path string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path comes from user configuration
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	return Lines(f)
}

// SplitLines splits each line on a regex delimiter. A nil delimiter
// splits on runs of whitespace. Leading or trailing matches produce
// empty tokens, matching the usual regex split semantics.
func SplitLines(lines []string, delim *regexp.Regexp) [][]string {
	if delim == nil {
		delim = defaultDelimiter
	}
	out := make([][]string, len(lines))
	for i, line := range lines {
		out[i] = delim.Split(line, -1)
	}
	return out
}

// Flatten concatenates a list of token sequences into a single sequence.
func Flatten(seqs [][]string) []string {
	total := 0
	for _, seq := range seqs {
		total += len(seq)
	}
	flat := make([]string, 0, total)
	for _, seq := range seqs {
		flat = append(flat, seq...)
	}
	return flat
}
