package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/google/renameio/v2"
	"golang.org/x/sync/errgroup"

	"github.com/cmdowney88/chonker/internal/state"
	"github.com/cmdowney88/chonker/pkg/wrangle"
)

// Artifact layout under OutDir. Tokenized and encoded files are written
// one line per corpus line, tokens separated by single spaces.
const (
	tokenizedDir = "tokenized"
	encodedDir   = "encoded"
	vocabDir     = "vocab"
	ngramsDir    = "ngrams"

	tokenizedExt = ".tok.txt"
	encodedExt   = ".ids.txt"
)

// tokenizerSettingsKey is the file_hashes entry recording the tokenizer
// configuration of the last tokenize pass.
const tokenizerSettingsKey = "settings/tokenizer"

func (p *Pipeline) tokenizedPath(name string) string {
	return filepath.Join(p.cfg.OutDir, tokenizedDir, name+tokenizedExt)
}

func (p *Pipeline) encodedPath(name string) string {
	return filepath.Join(p.cfg.OutDir, encodedDir, name+encodedExt)
}

// VocabArtifact returns the vocabulary path under an output directory.
// Exposed so commands can locate the artifact without opening state.
func VocabArtifact(outDir string) string {
	return filepath.Join(outDir, vocabDir, "vocab.yaml")
}

// NGramsArtifact returns the n-gram counts path under an output directory.
func NGramsArtifact(outDir string) string {
	return filepath.Join(outDir, ngramsDir, "ngrams.tsv")
}

// VocabPath returns where the vocab stage writes the vocabulary.
func (p *Pipeline) VocabPath() string {
	return VocabArtifact(p.cfg.OutDir)
}

// NGramsPath returns where the ngrams stage writes its counts.
func (p *Pipeline) NGramsPath() string {
	return NGramsArtifact(p.cfg.OutDir)
}

// EncodedDir returns the directory encoded artifacts are written to.
func (p *Pipeline) EncodedDir() string {
	return filepath.Join(p.cfg.OutDir, encodedDir)
}

// --- tokenize ---

type tokenizeResult struct {
	entry  *corpusEntry
	tokens int64
}

// runTokenize tokenizes every changed corpus file and writes the
// results under OutDir/tokenized. Unchanged files whose artifacts still
// exist are left alone unless the tokenizer settings changed.
func runTokenize(ctx context.Context, p *Pipeline, sc stageContext) error {
	if len(p.corpus) == 0 {
		return fmt.Errorf("no .txt files found under %s", p.cfg.CorpusDir)
	}

	if err := os.MkdirAll(filepath.Join(p.cfg.OutDir, tokenizedDir), 0o755); err != nil {
		return fmt.Errorf("failed to create tokenized directory: %w", err)
	}

	// A tokenizer settings change invalidates every artifact
	fingerprint := computeHash([]byte(fmt.Sprintf("%+v", p.tok.Options())))
	stored, err := p.store.GetContentHash(tokenizerSettingsKey)
	if err != nil {
		return err
	}
	settingsChanged := stored != fingerprint

	var (
		mu      sync.Mutex
		results []tokenizeResult
		skipped int
	)

	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(p.cfg.Workers)

	for _, entry := range p.corpus {
		eg.Go(func() error {
			if err := egctx.Err(); err != nil {
				return err
			}

			outPath := p.tokenizedPath(entry.name)
			if !sc.force && !entry.changed && !settingsChanged {
				if _, err := os.Stat(outPath); err == nil {
					p.logger.Debug("skipping unchanged corpus file", "path", entry.path)
					mu.Lock()
					skipped++
					mu.Unlock()
					return nil
				}
			}

			lines, err := wrangle.ReadLines(entry.path)
			if err != nil {
				return err
			}
			seqs := p.tok.Tokenize(lines)

			// Artifacts are space-joined regardless of level so that
			// downstream stages can re-split them.
			var buf bytes.Buffer
			var tokens int64
			for _, seq := range seqs {
				tokens += int64(len(seq))
				buf.WriteString(strings.Join(seq, " "))
				buf.WriteByte('\n')
			}

			if err := renameio.WriteFile(outPath, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", outPath, err)
			}

			p.logger.Debug("tokenized corpus file", "path", entry.path, "lines", len(seqs), "tokens", tokens)

			mu.Lock()
			results = append(results, tokenizeResult{entry: entry, tokens: tokens})
			mu.Unlock()
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return err
	}

	// Persist tracking rows serially; SQLite writes are single-writer
	var total int64
	for _, res := range results {
		total += res.tokens
		file := &state.CorpusFile{
			Path:        res.entry.path,
			Name:        res.entry.name,
			ContentHash: res.entry.hash,
			TokenCount:  res.tokens,
		}
		if err := p.store.UpsertCorpusFile(file); err != nil {
			return err
		}
	}

	if err := p.store.SetContentHash(tokenizerSettingsKey, fingerprint, "settings"); err != nil {
		return err
	}

	p.logger.Info("tokenize finished",
		"files", len(results), "skipped", skipped, "tokens", total)

	return nil
}

// readTokenized loads every tokenized artifact as one corpus, in file
// name order.
func (p *Pipeline) readTokenized() ([][]string, error) {
	dir := filepath.Join(p.cfg.OutDir, tokenizedDir)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no tokenized corpus at %s (run the tokenize stage first)", dir)
		}
		return nil, fmt.Errorf("failed to read tokenized directory: %w", err)
	}

	var corpus [][]string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), tokenizedExt) {
			continue
		}
		lines, err := wrangle.ReadLines(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		corpus = append(corpus, wrangle.SplitLines(lines, nil)...)
	}

	if len(corpus) == 0 {
		return nil, fmt.Errorf("no tokenized corpus at %s (run the tokenize stage first)", dir)
	}

	return corpus, nil
}

// --- vocab ---

// runVocab builds the vocabulary over every tokenized artifact, writes
// it as YAML, and snapshots it on the current run.
func runVocab(ctx context.Context, p *Pipeline, sc stageContext) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	corpus, err := p.readTokenized()
	if err != nil {
		return err
	}

	vocab := wrangle.FromCorpus(corpus, p.cfg.UnkToken, p.cfg.Specials...)

	path := p.VocabPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create vocab directory: %w", err)
	}

	var buf bytes.Buffer
	if err := vocab.Save(&buf); err != nil {
		return err
	}
	if err := renameio.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	hash := computeHash(buf.Bytes())
	if err := p.store.SetContentHash(path, hash, "vocab"); err != nil {
		return err
	}

	specials := append([]string{vocab.UnkToken()}, p.cfg.Specials...)
	snap := &state.VocabSnapshot{
		RunID:       sc.runID,
		Path:        path,
		Size:        int64(vocab.Size()),
		ContentHash: hash,
	}
	if err := p.store.SaveVocabSnapshot(snap, specials); err != nil {
		return err
	}

	p.logger.Info("vocabulary written", "path", path, "size", vocab.Size())

	return nil
}

// --- ngrams ---

// runNGrams counts n-grams over every tokenized artifact and writes a
// TSV of "ngram<TAB>count" rows, most frequent first.
func runNGrams(ctx context.Context, p *Pipeline, _ stageContext) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	corpus, err := p.readTokenized()
	if err != nil {
		return err
	}

	counts, err := wrangle.CountNGrams(corpus, p.cfg.NGramMaxLen, p.cfg.NGramMinCount)
	if err != nil {
		return err
	}

	path := p.NGramsPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create ngrams directory: %w", err)
	}

	var buf bytes.Buffer
	for _, ngram := range counts.SortedNGrams() {
		fmt.Fprintf(&buf, "%s\t%d\n", strings.Join(ngram, " "), counts.Count(ngram...))
	}
	if err := renameio.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	if err := p.store.SetContentHash(path, computeHash(buf.Bytes()), "ngrams"); err != nil {
		return err
	}

	p.logger.Info("ngrams written", "path", path, "distinct", counts.Len())

	return nil
}

// --- encode ---

// runEncode maps every tokenized artifact to ID sequences using the
// written vocabulary.
func runEncode(ctx context.Context, p *Pipeline, _ stageContext) error {
	vocabPath := p.VocabPath()
	if _, err := os.Stat(vocabPath); os.IsNotExist(err) {
		return fmt.Errorf("vocabulary not found at %s (run the vocab stage first)", vocabPath)
	}

	vocab := wrangle.New("")
	if err := vocab.LoadFile(vocabPath); err != nil {
		return err
	}

	dir := filepath.Join(p.cfg.OutDir, tokenizedDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("no tokenized corpus at %s (run the tokenize stage first)", dir)
	}

	if err := os.MkdirAll(filepath.Join(p.cfg.OutDir, encodedDir), 0o755); err != nil {
		return fmt.Errorf("failed to create encoded directory: %w", err)
	}

	var files, unknown int64
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), tokenizedExt) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		lines, err := wrangle.ReadLines(filepath.Join(dir, entry.Name()))
		if err != nil {
			return err
		}

		var buf bytes.Buffer
		for _, seq := range wrangle.SplitLines(lines, nil) {
			ids := vocab.ToIDs(seq)
			parts := make([]string, len(ids))
			for i, id := range ids {
				if id == vocab.UnkID() {
					unknown++
				}
				parts[i] = strconv.Itoa(id)
			}
			buf.WriteString(strings.Join(parts, " "))
			buf.WriteByte('\n')
		}

		name := strings.TrimSuffix(entry.Name(), tokenizedExt)
		outPath := p.encodedPath(name)
		if err := renameio.WriteFile(outPath, buf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", outPath, err)
		}
		files++
	}

	if files == 0 {
		return fmt.Errorf("no tokenized corpus at %s (run the tokenize stage first)", dir)
	}

	p.logger.Info("corpus encoded", "files", files, "unknown_tokens", unknown)

	return nil
}
