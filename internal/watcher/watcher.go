// Package watcher reloads the default dataset when its file changes on disk.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadFunc is called with the watched path once changes settle
type ReloadFunc func(ctx context.Context, path string) error

// Config configures a FileWatcher
type Config struct {
	Path     string
	Debounce time.Duration
	OnChange ReloadFunc
}

// FileWatcher watches a single file. Editors usually replace files through
// a rename, so the parent directory is watched and events are filtered by name.
type FileWatcher struct {
	path     string
	debounce time.Duration
	onChange ReloadFunc
	logger   *slog.Logger
	watcher  *fsnotify.Watcher

	mu    sync.Mutex
	timer *time.Timer

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New creates a watcher for cfg.Path
func New(cfg Config, logger *slog.Logger) (*FileWatcher, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("watcher requires a file path")
	}
	if cfg.OnChange == nil {
		return nil, fmt.Errorf("watcher requires a change callback")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 500 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("resolve watched path: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	return &FileWatcher{
		path:     abs,
		debounce: cfg.Debounce,
		onChange: cfg.OnChange,
		logger:   logger.With("component", "dataset_watcher", "path", abs),
		watcher:  w,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins watching. The loop ends on Stop or when ctx is cancelled.
func (fw *FileWatcher) Start(ctx context.Context) error {
	if err := fw.watcher.Add(filepath.Dir(fw.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(fw.path), err)
	}
	fw.logger.Info("watching dataset file", "debounce_ms", fw.debounce.Milliseconds())
	go fw.loop(ctx)
	return nil
}

func (fw *FileWatcher) loop(ctx context.Context) {
	defer close(fw.doneCh)
	for {
		select {
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != fw.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			fw.schedule(ctx)

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Error("file watcher error", "error", err)

		case <-fw.stopCh:
			return

		case <-ctx.Done():
			return
		}
	}
}

// schedule restarts the debounce timer
func (fw *FileWatcher) schedule(ctx context.Context) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.timer != nil {
		fw.timer.Stop()
	}
	fw.timer = time.AfterFunc(fw.debounce, func() {
		select {
		case <-fw.stopCh:
			return
		default:
		}
		if err := fw.onChange(ctx, fw.path); err != nil {
			fw.logger.Warn("dataset reload failed", "error", err)
			return
		}
		fw.logger.Info("dataset reloaded after file change")
	})
}

// Stop ends the watch loop and waits for it
func (fw *FileWatcher) Stop() error {
	var err error
	fw.stopOnce.Do(func() {
		close(fw.stopCh)
		fw.mu.Lock()
		if fw.timer != nil {
			fw.timer.Stop()
		}
		fw.mu.Unlock()
		err = fw.watcher.Close()
	})
	return err
}

// Done is closed when the watch loop has exited
func (fw *FileWatcher) Done() <-chan struct{} {
	return fw.doneCh
}
