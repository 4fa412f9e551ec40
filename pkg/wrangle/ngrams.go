package wrangle

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// ngramSep joins n-gram tokens into map keys. Tokens produced by
// whitespace splitting cannot contain it.
const ngramSep = "\x1f"

// NGramCounts holds 1-to-n-gram counts over a corpus together with a
// bidirectional mapping between n-grams and dense integer IDs. IDs are
// assigned in first-seen order, shortest n-grams first.
type NGramCounts struct {
	counts map[string]int
	ids    map[string]int
	ngrams [][]string
}

// CountNGrams counts all 1-to-maxLen-grams over a corpus of token
// sequences, discarding entries that occur fewer than minCount times.
func CountNGrams(corpus [][]string, maxLen, minCount int) (*NGramCounts, error) {
	if maxLen < 1 {
		return nil, fmt.Errorf("max n-gram length must be at least 1, got %d", maxLen)
	}

	counts := make(map[string]int)
	var order []string

	for n := 1; n <= maxLen; n++ {
		for _, sentence := range corpus {
			for i := 0; i+n <= len(sentence); i++ {
				key := strings.Join(sentence[i:i+n], ngramSep)
				if _, seen := counts[key]; !seen {
					order = append(order, key)
				}
				counts[key]++
			}
		}
	}

	c := &NGramCounts{
		counts: make(map[string]int, len(counts)),
		ids:    make(map[string]int),
	}
	for _, key := range order {
		if counts[key] < minCount {
			continue
		}
		c.counts[key] = counts[key]
		c.ids[key] = len(c.ngrams)
		c.ngrams = append(c.ngrams, strings.Split(key, ngramSep))
	}
	return c, nil
}

// Len returns the number of distinct n-grams kept.
func (c *NGramCounts) Len() int {
	return len(c.ngrams)
}

// Count returns the number of occurrences of an n-gram, or zero if it
// was not seen (or was discarded by the minimum count).
func (c *NGramCounts) Count(ngram ...string) int {
	return c.counts[strings.Join(ngram, ngramSep)]
}

// ID returns the dense ID assigned to an n-gram.
func (c *NGramCounts) ID(ngram ...string) (int, bool) {
	id, ok := c.ids[strings.Join(ngram, ngramSep)]
	return id, ok
}

// NGram returns the n-gram assigned to a dense ID.
func (c *NGramCounts) NGram(id int) ([]string, bool) {
	if id < 0 || id >= len(c.ngrams) {
		return nil, false
	}
	return c.ngrams[id], true
}

// NGrams returns all kept n-grams in ID order.
func (c *NGramCounts) NGrams() [][]string {
	return c.ngrams
}

// SortedNGrams returns all kept n-grams sorted by descending count,
// ties broken lexicographically.
func (c *NGramCounts) SortedNGrams() [][]string {
	out := make([][]string, len(c.ngrams))
	copy(out, c.ngrams)
	sort.Slice(out, func(i, j int) bool {
		ci := c.counts[strings.Join(out[i], ngramSep)]
		cj := c.counts[strings.Join(out[j], ngramSep)]
		if ci != cj {
			return ci > cj
		}
		return slices.Compare(out[i], out[j]) < 0
	})
	return out
}
