package wrangle

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/renameio/v2"
	"gopkg.in/yaml.v3"
)

// DefaultUnkToken is the fallback token for out-of-vocabulary items.
const DefaultUnkToken = "<unk>"

// Vocab is a bidirectional mapping between string tokens and integer
// IDs, built up from token corpora. The unknown token always occupies
// ID 0; any extra special tokens follow, then corpus tokens in
// first-seen order.
type Vocab struct {
	unkToken string
	unkID    int
	tokToID  map[string]int
	idToTok  []string
	sources  map[string]struct{}
}

// New returns an empty Vocab seeded with the unknown token and any
// extra special tokens. An empty unkToken selects DefaultUnkToken.
func New(unkToken string, specials ...string) *Vocab {
	if unkToken == "" {
		unkToken = DefaultUnkToken
	}
	v := &Vocab{
		unkToken: unkToken,
		tokToID:  make(map[string]int),
		sources:  make(map[string]struct{}),
	}
	v.AddTokens(unkToken)
	v.AddTokens(specials...)
	v.unkID = v.tokToID[unkToken]
	return v
}

// FromCorpus builds a Vocab from a tokenized corpus.
func FromCorpus(corpus [][]string, unkToken string, specials ...string) *Vocab {
	v := New(unkToken, specials...)
	v.AddCorpus(corpus)
	return v
}

// AddTokens adds vocabulary items directly, skipping tokens already
// present.
func (v *Vocab) AddTokens(tokens ...string) {
	for _, token := range tokens {
		if _, ok := v.tokToID[token]; ok {
			continue
		}
		v.tokToID[token] = len(v.idToTok)
		v.idToTok = append(v.idToTok, token)
	}
}

// AddCorpus adds every token of a tokenized corpus. A corpus that was
// already added, identified by a fingerprint of its contents, is
// skipped.
func (v *Vocab) AddCorpus(corpus [][]string) {
	fp := corpusFingerprint(corpus)
	if _, done := v.sources[fp]; done {
		return
	}
	for _, line := range corpus {
		v.AddTokens(line...)
	}
	v.sources[fp] = struct{}{}
}

// WithCorpus returns a copy of the Vocab with the corpus added,
// leaving the receiver untouched.
func (v *Vocab) WithCorpus(corpus [][]string) *Vocab {
	clone := &Vocab{
		unkToken: v.unkToken,
		unkID:    v.unkID,
		tokToID:  make(map[string]int, len(v.tokToID)),
		idToTok:  append([]string(nil), v.idToTok...),
		sources:  make(map[string]struct{}, len(v.sources)),
	}
	for tok, id := range v.tokToID {
		clone.tokToID[tok] = id
	}
	for fp := range v.sources {
		clone.sources[fp] = struct{}{}
	}
	clone.AddCorpus(corpus)
	return clone
}

// Reset completely empties the vocabulary, including the unknown and
// special tokens and the record of processed corpora.
func (v *Vocab) Reset() {
	v.tokToID = make(map[string]int)
	v.idToTok = nil
	v.sources = make(map[string]struct{})
}

// Size returns the number of unique token IDs.
func (v *Vocab) Size() int {
	return len(v.idToTok)
}

// UnkToken returns the unknown token.
func (v *Vocab) UnkToken() string {
	return v.unkToken
}

// UnkID returns the ID of the unknown token.
func (v *Vocab) UnkID() int {
	return v.unkID
}

// ID returns the ID of a token, if present.
func (v *Vocab) ID(token string) (int, bool) {
	id, ok := v.tokToID[token]
	return id, ok
}

// Token returns the token for an ID, if in range.
func (v *Vocab) Token(id int) (string, bool) {
	if id < 0 || id >= len(v.idToTok) {
		return "", false
	}
	return v.idToTok[id], true
}

// ToIDs maps tokens to their integer IDs, substituting the unknown ID
// for tokens not in the vocabulary.
func (v *Vocab) ToIDs(tokens []string) []int {
	ids := make([]int, len(tokens))
	for i, token := range tokens {
		if id, ok := v.tokToID[token]; ok {
			ids[i] = id
		} else {
			ids[i] = v.unkID
		}
	}
	return ids
}

// ToTokens maps integer IDs back to their tokens, substituting the
// unknown token for IDs outside the vocabulary.
func (v *Vocab) ToTokens(ids []int) []string {
	tokens := make([]string, len(ids))
	for i, id := range ids {
		if id >= 0 && id < len(v.idToTok) {
			tokens[i] = v.idToTok[id]
		} else {
			tokens[i] = v.unkToken
		}
	}
	return tokens
}

// Save writes the ID-to-token mapping as a YAML document sorted by ID.
// The record of processed corpora is not saved and cannot be recovered
// when loading.
func (v *Vocab) Save(w io.Writer) error {
	mapping := make(map[int]string, len(v.idToTok))
	for id, tok := range v.idToTok {
		mapping[id] = tok
	}
	enc := yaml.NewEncoder(w)
	if err := enc.Encode(mapping); err != nil {
		return fmt.Errorf("failed to encode vocab: %w", err)
	}
	return enc.Close()
}

// SaveFile atomically writes the vocabulary to the file at path.
func (v *Vocab) SaveFile(path string) error {
	pending, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("failed to create pending vocab file: %w", err)
	}
	defer func() { _ = pending.Cleanup() }()

	if err := v.Save(pending); err != nil {
		return err
	}
	return pending.CloseAtomicallyReplace()
}

// Load replaces the vocabulary with the mapping read from a saved YAML
// document. Loading resets the current state, special tokens included;
// the unknown token is presumed to be at ID 0.
func (v *Vocab) Load(r io.Reader) error {
	var mapping map[int]string
	if err := yaml.NewDecoder(r).Decode(&mapping); err != nil {
		return fmt.Errorf("failed to decode vocab: %w", err)
	}

	idToTok := make([]string, len(mapping))
	for id, tok := range mapping {
		if id < 0 || id >= len(mapping) {
			return fmt.Errorf("vocab IDs are not contiguous from 0: unexpected ID %d", id)
		}
		idToTok[id] = tok
	}

	unk, ok := mapping[0]
	if !ok {
		return fmt.Errorf("vocab has no token at ID 0")
	}

	v.Reset()
	v.idToTok = idToTok
	for id, tok := range idToTok {
		v.tokToID[tok] = id
	}
	v.unkID = 0
	v.unkToken = unk
	return nil
}

// LoadFile loads the vocabulary from the file at path.
func (v *Vocab) LoadFile(path string) error {
	f, err := os.Open(path) //nolint:gosec // G304: path comes from user configuration
	if err != nil {
		return fmt.Errorf("failed to open vocab file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return v.Load(f)
}

// corpusFingerprint produces a stable identity for a tokenized corpus.
func corpusFingerprint(corpus [][]string) string {
	h := sha256.New()
	for _, line := range corpus {
		h.Write([]byte(strings.Join(line, "\x1f")))
		h.Write([]byte{'\x1e'})
	}
	return hex.EncodeToString(h.Sum(nil)[:8])
}
