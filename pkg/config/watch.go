package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// Store holds the live Config behind an atomic pointer so concurrent
// requests read a consistent snapshot without locking while a reload swaps
// in a new one.
type Store struct {
	ptr atomic.Pointer[Config]
}

// NewStore wraps an initial config.
func NewStore(cfg *Config) *Store {
	s := &Store{}
	s.ptr.Store(cfg)
	return s
}

// Load returns the current config snapshot.
func (s *Store) Load() *Config {
	return s.ptr.Load()
}

// Swap replaces the live config.
func (s *Store) Swap(cfg *Config) {
	s.ptr.Store(cfg)
}

// Watch reloads the config file into the store whenever it changes, until
// ctx is cancelled. A reload that fails to parse keeps the previous snapshot.
// Editors replace files rather than writing in place, so create and rename
// events count as changes too.
func Watch(ctx context.Context, path string, store *Store, log *slog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	// Watch the directory: the file itself disappears during atomic saves.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		target := filepath.Clean(path)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				cfg, err := Load(path)
				if err != nil {
					log.Warn("config reload failed, keeping previous", "path", path, "error", err)
					continue
				}
				store.Swap(cfg)
				log.Info("config reloaded", "path", path, "models", len(cfg.Models))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn("config watcher error", "error", err)
			}
		}
	}()

	return nil
}
