package pipeline

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/cmdowney88/chonker/internal/state"
)

// watchDebounce coalesces bursts of filesystem events (editors often
// write several times per save).
const watchDebounce = 300 * time.Millisecond

// Watch re-runs the pipeline whenever corpus files change. It blocks
// until the context is cancelled. onRun, if set, is called after every
// triggered run.
func (p *Pipeline) Watch(ctx context.Context, opts RunOptions, onRun func(*state.Run, error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	if err := watchDirRecursive(watcher, p.cfg.CorpusDir); err != nil {
		return err
	}

	p.logger.Info("watching corpus", "corpus_dir", p.cfg.CorpusDir)

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event := <-watcher.Events:
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			// Newly created directories need their own watch
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = watchDirRecursive(watcher, event.Name)
					continue
				}
			}

			if filepath.Ext(event.Name) != ".txt" {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(watchDebounce, func() {
				p.logger.Debug("corpus changed, re-running", "file", event.Name)

				run, err := p.Run(ctx, opts)
				if err != nil {
					p.logger.Error("run failed", "error", err)
				}
				if onRun != nil {
					onRun(run, err)
				}
			})

		case err := <-watcher.Errors:
			p.logger.Error("watcher error", "error", err)
		}
	}
}

// watchDirRecursive adds a directory and all non-hidden subdirectories
// to the watcher.
func watchDirRecursive(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != dir {
				return filepath.SkipDir
			}
			return watcher.Add(path)
		}
		return nil
	})
}
