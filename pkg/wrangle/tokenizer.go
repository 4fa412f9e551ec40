package wrangle

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Level selects the granularity of tokenization.
type Level string

const (
	// LevelWord splits lines into whitespace- or delimiter-separated words.
	LevelWord Level = "word"
	// LevelChar splits lines into characters, excluding whitespace and
	// keeping tags whole.
	LevelChar Level = "char"
)

// NormalForm names a Unicode normalization applied before tokenization.
type NormalForm string

const (
	NormNone NormalForm = "none"
	NormNFC  NormalForm = "nfc"
	NormNFD  NormalForm = "nfd"
	NormNFKC NormalForm = "nfkc"
	NormNFKD NormalForm = "nfkd"
)

// Edge tokens bracketing each line when Options.EdgeTokens is set.
const (
	BOSToken = "<bos>"
	EOSToken = "<eos>"
)

// Options configures a Tokenizer.
type Options struct {
	// Level is the tokenization granularity. Defaults to LevelWord.
	Level Level
	// PreserveCase keeps the original casing. The default lowercases
	// every token, tags included.
	PreserveCase bool
	// SplitTags separates <tags> from surrounding text before splitting.
	SplitTags bool
	// EdgeTokens brackets each line with <bos> and <eos>.
	EdgeTokens bool
	// Delimiter is the regex tokens are split on. Defaults to `\s+`.
	Delimiter string
	// Normalize applies a Unicode normal form before any other step.
	Normalize NormalForm
}

// Tokenizer turns raw lines into token sequences according to its Options.
type Tokenizer struct {
	opts  Options
	delim *regexp.Regexp
	form  *norm.Form
}

// NewTokenizer validates opts and returns a ready Tokenizer.
func NewTokenizer(opts Options) (*Tokenizer, error) {
	if opts.Level == "" {
		opts.Level = LevelWord
	}
	if opts.Level != LevelWord && opts.Level != LevelChar {
		return nil, fmt.Errorf("unknown tokenization level %q", opts.Level)
	}

	var form *norm.Form
	switch opts.Normalize {
	case "", NormNone:
	case NormNFC:
		f := norm.NFC
		form = &f
	case NormNFD:
		f := norm.NFD
		form = &f
	case NormNFKC:
		f := norm.NFKC
		form = &f
	case NormNFKD:
		f := norm.NFKD
		form = &f
	default:
		return nil, fmt.Errorf("unknown normal form %q", opts.Normalize)
	}

	delim := defaultDelimiter
	if opts.Delimiter != "" {
		var err error
		delim, err = regexp.Compile(opts.Delimiter)
		if err != nil {
			return nil, fmt.Errorf("invalid delimiter: %w", err)
		}
	}

	return &Tokenizer{opts: opts, delim: delim, form: form}, nil
}

// Options returns the options the Tokenizer was built with.
func (t *Tokenizer) Options() Options {
	return t.opts
}

// Tokenize splits lines into token sequences, one per input line.
func (t *Tokenizer) Tokenize(lines []string) [][]string {
	lower := cases.Lower(language.Und)

	prepared := lines
	if t.form != nil {
		prepared = make([]string, len(lines))
		for i, line := range lines {
			prepared[i] = t.form.String(line)
		}
	}

	text := make([][]string, len(prepared))
	for i, line := range prepared {
		if t.opts.SplitTags {
			line = SeparateTags(line)
		}
		words := t.delim.Split(line, -1)
		for j, word := range words {
			if !t.opts.PreserveCase {
				words[j] = lower.String(word)
			}
		}
		if t.opts.Level == LevelChar {
			words = Flatten(SubtokenizeWords(words))
		}
		if t.opts.EdgeTokens {
			bracketed := make([]string, 0, len(words)+2)
			bracketed = append(bracketed, BOSToken)
			bracketed = append(bracketed, words...)
			bracketed = append(bracketed, EOSToken)
			words = bracketed
		}
		text[i] = words
	}
	return text
}

// TokenizeReader reads non-empty lines from r and tokenizes them.
func (t *Tokenizer) TokenizeReader(r io.Reader) ([][]string, error) {
	lines, err := Lines(r)
	if err != nil {
		return nil, err
	}
	return t.Tokenize(lines), nil
}

// TokenizeFile reads non-empty lines from the file at path and
// tokenizes them.
func (t *Tokenizer) TokenizeFile(path string) ([][]string, error) {
	lines, err := ReadLines(path)
	if err != nil {
		return nil, err
	}
	return t.Tokenize(lines), nil
}

// Join renders a token sequence back into a line: word-level tokens
// are joined with spaces, character-level tokens are concatenated.
func (t *Tokenizer) Join(seq []string) string {
	if t.opts.Level == LevelChar {
		return strings.Join(seq, "")
	}
	return strings.Join(seq, " ")
}
