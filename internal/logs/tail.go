package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultPollInterval is the follow-mode fallback when no write event arrives.
const DefaultPollInterval = time.Second

type TailOptions struct {
	// Offset < 0 reads the last Limit matching entries; otherwise reading
	// starts at the byte offset.
	Offset int64
	Limit  int
	Filter Filter
}

type TailResult struct {
	Entries []Entry
	Offset  int64
}

// Tail reads entries from path. A missing file yields no entries and offset 0.
func Tail(path string, opts TailOptions) (TailResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return TailResult{}, nil
		}
		return TailResult{Offset: opts.Offset}, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return TailResult{Offset: opts.Offset}, fmt.Errorf("log path %q is a directory", path)
	}

	if opts.Offset < 0 {
		entries, offset, err := readLastEntries(path, opts.Limit, opts.Filter)
		return TailResult{Entries: entries, Offset: offset}, err
	}
	offset := opts.Offset
	if offset > info.Size() {
		// Truncated or rotated underneath us.
		offset = 0
	}
	entries, next, err := readForward(path, offset, opts.Filter)
	return TailResult{Entries: entries, Offset: next}, err
}

// Follow calls fn for every matching entry appended after offset until ctx
// ends. It returns nil on cancellation.
func Follow(ctx context.Context, path string, offset int64, filter Filter, fn func(Entry)) error {
	wake := make(chan struct{}, 1)
	if watcher, err := fsnotify.NewWatcher(); err == nil {
		defer watcher.Close()
		if err := watcher.Add(filepath.Dir(path)); err == nil {
			go forwardEvents(ctx, watcher, filepath.Clean(path), wake)
		}
	}

	ticker := time.NewTicker(DefaultPollInterval)
	defer ticker.Stop()

	for {
		result, err := Tail(path, TailOptions{Offset: offset, Filter: filter})
		if err != nil {
			return err
		}
		for _, entry := range result.Entries {
			fn(entry)
		}
		offset = result.Offset

		select {
		case <-ctx.Done():
			return nil
		case <-wake:
		case <-ticker.C:
		}
	}
}

func forwardEvents(ctx context.Context, watcher *fsnotify.Watcher, path string, wake chan<- struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != path || !event.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			select {
			case wake <- struct{}{}:
			default:
			}
		case _, ok := <-watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func readLastEntries(path string, limit int, filter Filter) ([]Entry, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if limit <= 0 {
		offset, err := file.Seek(0, io.SeekEnd)
		if err != nil {
			return nil, 0, fmt.Errorf("seek log file: %w", err)
		}
		return nil, offset, nil
	}

	ring := make([]Entry, limit)
	count, idx := 0, 0
	offset, err := scanEntries(file, filter, func(e Entry) {
		ring[idx] = e
		idx = (idx + 1) % limit
		if count < limit {
			count++
		}
	})
	if err != nil {
		return nil, 0, err
	}

	entries := make([]Entry, count)
	if count == limit {
		for i := 0; i < count; i++ {
			entries[i] = ring[(idx+i)%limit]
		}
	} else {
		copy(entries, ring[:count])
	}
	return entries, offset, nil
}

func readForward(path string, offset int64, filter Filter) ([]Entry, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, 0, fmt.Errorf("seek log file: %w", err)
	}
	var entries []Entry
	consumed, err := scanEntries(file, filter, func(e Entry) {
		entries = append(entries, e)
	})
	if err != nil {
		return nil, 0, err
	}
	return entries, offset + consumed, nil
}

// scanEntries feeds every complete matching line to fn and returns the number
// of bytes consumed. A trailing partial line is left for the next read.
func scanEntries(r io.Reader, filter Filter, fn func(Entry)) (int64, error) {
	reader := bufio.NewReaderSize(r, 64*1024)
	var consumed int64
	for {
		line, err := reader.ReadString('\n')
		if errors.Is(err, io.EOF) {
			return consumed, nil
		}
		if err != nil {
			return consumed, fmt.Errorf("read log file: %w", err)
		}
		consumed += int64(len(line))
		text := line[:len(line)-1]
		if text == "" {
			continue
		}
		if entry := ParseEntry(text); filter.Match(entry) {
			fn(entry)
		}
	}
}
