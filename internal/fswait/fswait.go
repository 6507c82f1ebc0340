// Package fswait blocks until files appear in a watched directory.
//
// Notification comes from fsnotify; a slow stat poll backs it up for
// filesystems that drop events (network mounts, overlay layers).
package fswait

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"upscaler/internal/logging"
)

// DefaultFallbackInterval is how often Wait re-checks the filesystem when no
// event arrives.
const DefaultFallbackInterval = 250 * time.Millisecond

// ErrClosed is returned by Wait after Close.
var ErrClosed = errors.New("fswait: watcher closed")

// Watcher serves any number of concurrent Wait calls for one directory.
type Watcher struct {
	dir      string
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	fallback time.Duration

	mu      sync.Mutex
	waiters map[string][]chan struct{}
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

// New starts watching dir, which must exist.
func New(dir string, logger *slog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	w := &Watcher{
		dir:      filepath.Clean(dir),
		watcher:  fw,
		logger:   logging.NewComponentLogger(logger, "fswait"),
		fallback: DefaultFallbackInterval,
		waiters:  make(map[string][]chan struct{}),
		done:     make(chan struct{}),
	}
	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// Wait blocks until path exists, ctx is done, or the watcher is closed.
func (w *Watcher) Wait(ctx context.Context, path string) error {
	path = filepath.Clean(path)
	ch := w.register(path)
	defer w.unregister(path, ch)

	if exists(path) {
		return nil
	}
	ticker := time.NewTicker(w.fallback)
	defer ticker.Stop()
	for {
		select {
		case <-ch:
			return nil
		case <-ticker.C:
			if exists(path) {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		case <-w.done:
			return ErrClosed
		}
	}
}

// Close stops the watcher and releases every pending Wait.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.watcher.Close()
		w.wg.Wait()
	})
	return err
}

func (w *Watcher) register(path string) chan struct{} {
	ch := make(chan struct{})
	w.mu.Lock()
	w.waiters[path] = append(w.waiters[path], ch)
	w.mu.Unlock()
	return ch
}

func (w *Watcher) unregister(path string, ch chan struct{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	list := w.waiters[path]
	for i, c := range list {
		if c == ch {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(w.waiters, path)
		return
	}
	w.waiters[path] = list
}

func (w *Watcher) notify(path string) {
	w.mu.Lock()
	list := w.waiters[path]
	delete(w.waiters, path)
	w.mu.Unlock()
	for _, ch := range list {
		close(ch)
	}
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) || event.Has(fsnotify.Rename) {
				w.notify(filepath.Clean(event.Name))
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			// Overflow drops events; the stat fallback in Wait covers them.
			w.logger.Debug("file watcher error", logging.String("dir", w.dir), logging.Error(err))
		case <-w.done:
			return
		}
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
