package wrangle

import (
	"reflect"
	"strings"
	"testing"
)

func TestTokenizer_WordLevel(t *testing.T) {
	tok, err := NewTokenizer(Options{})
	if err != nil {
		t.Fatalf("NewTokenizer failed: %v", err)
	}

	got := tok.Tokenize([]string{"The Quick Fox", "one\ttwo"})
	want := [][]string{
		{"the", "quick", "fox"},
		{"one", "two"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestTokenizer_PreserveCase(t *testing.T) {
	tok, err := NewTokenizer(Options{PreserveCase: true})
	if err != nil {
		t.Fatalf("NewTokenizer failed: %v", err)
	}

	got := tok.Tokenize([]string{"The Quick Fox"})
	want := [][]string{{"The", "Quick", "Fox"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestTokenizer_EdgeTokens(t *testing.T) {
	tok, err := NewTokenizer(Options{EdgeTokens: true})
	if err != nil {
		t.Fatalf("NewTokenizer failed: %v", err)
	}

	got := tok.Tokenize([]string{"a b"})
	want := [][]string{{"<bos>", "a", "b", "<eos>"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestTokenizer_SplitTags(t *testing.T) {
	tok, err := NewTokenizer(Options{SplitTags: true, PreserveCase: true})
	if err != nil {
		t.Fatalf("NewTokenizer failed: %v", err)
	}

	got := tok.Tokenize([]string{"word<X>more <Y>end"})
	want := [][]string{{"word", "<X>", "more", "<Y>", "end"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestTokenizer_CharLevel(t *testing.T) {
	tok, err := NewTokenizer(Options{Level: LevelChar, SplitTags: true})
	if err != nil {
		t.Fatalf("NewTokenizer failed: %v", err)
	}

	got := tok.Tokenize([]string{"Hi <X>yo"})
	want := [][]string{{"h", "i", "<x>", "y", "o"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestTokenizer_CharLevelKeepsMultibyteRunes(t *testing.T) {
	tok, err := NewTokenizer(Options{Level: LevelChar, PreserveCase: true})
	if err != nil {
		t.Fatalf("NewTokenizer failed: %v", err)
	}

	got := tok.Tokenize([]string{"héllo"})
	want := [][]string{{"h", "é", "l", "l", "o"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestTokenizer_CustomDelimiter(t *testing.T) {
	tok, err := NewTokenizer(Options{Delimiter: `\t+`, PreserveCase: true})
	if err != nil {
		t.Fatalf("NewTokenizer failed: %v", err)
	}

	got := tok.Tokenize([]string{"keeps spaces\tsplits tabs"})
	want := [][]string{{"keeps spaces", "splits tabs"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestTokenizer_Normalize(t *testing.T) {
	// e + combining acute accent composes to a single rune under NFC.
	decomposed := "cafe\u0301"

	tok, err := NewTokenizer(Options{Level: LevelChar, Normalize: NormNFC})
	if err != nil {
		t.Fatalf("NewTokenizer failed: %v", err)
	}

	got := tok.Tokenize([]string{decomposed})
	want := [][]string{{"c", "a", "f", "é"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestTokenizer_InvalidOptions(t *testing.T) {
	if _, err := NewTokenizer(Options{Level: "sentence"}); err == nil {
		t.Error("expected error for unknown level")
	}
	if _, err := NewTokenizer(Options{Normalize: "nfz"}); err == nil {
		t.Error("expected error for unknown normal form")
	}
	if _, err := NewTokenizer(Options{Delimiter: `(`}); err == nil {
		t.Error("expected error for invalid delimiter")
	}
}

func TestTokenizer_Join(t *testing.T) {
	word, err := NewTokenizer(Options{})
	if err != nil {
		t.Fatalf("NewTokenizer failed: %v", err)
	}
	if got := word.Join([]string{"a", "b"}); got != "a b" {
		t.Errorf("expected %q, got %q", "a b", got)
	}

	char, err := NewTokenizer(Options{Level: LevelChar})
	if err != nil {
		t.Fatalf("NewTokenizer failed: %v", err)
	}
	if got := char.Join([]string{"a", "b", "<x>"}); got != "ab<x>" {
		t.Errorf("expected %q, got %q", "ab<x>", got)
	}
}

func TestTokenizer_TokenizeReader(t *testing.T) {
	tok, err := NewTokenizer(Options{})
	if err != nil {
		t.Fatalf("NewTokenizer failed: %v", err)
	}

	got, err := tok.TokenizeReader(strings.NewReader("a b\n\nc\n"))
	if err != nil {
		t.Fatalf("TokenizeReader failed: %v", err)
	}
	want := [][]string{{"a", "b"}, {"c"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}
