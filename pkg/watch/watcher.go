// Package watch reports VCF files as they land in a directory.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher emits each matching file in a directory once, after it has been
// quiet for the debounce interval. Files already present can be listed with
// Existing; Run only reports files created or written after it starts.
type Watcher struct {
	fs       *fsnotify.Watcher
	dir      string
	patterns []string
	debounce time.Duration

	seen  map[string]bool
	ready chan string
	done  chan struct{}
	files chan string

	OnError func(err error)
}

// New watches dir for files whose base name matches one of patterns.
func New(dir string, patterns []string, debounce time.Duration) (*Watcher, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}
	for _, p := range patterns {
		if _, err := filepath.Match(p, ""); err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", p, err)
		}
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fsWatcher.Add(abs); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("failed to watch directory: %w", err)
	}

	return &Watcher{
		fs:       fsWatcher,
		dir:      abs,
		patterns: patterns,
		debounce: debounce,
		seen:     make(map[string]bool),
		ready:    make(chan string),
		done:     make(chan struct{}),
		files:    make(chan string),
	}, nil
}

// Match reports whether path's base name matches a pattern.
func (w *Watcher) Match(path string) bool {
	base := filepath.Base(path)
	for _, p := range w.patterns {
		if ok, _ := filepath.Match(p, base); ok {
			return true
		}
	}
	return false
}

// Existing returns matching files already in the directory, oldest first,
// and marks them seen so Run does not report them again.
func (w *Watcher) Existing() ([]string, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	type found struct {
		path string
		mod  time.Time
	}
	var files []found
	for _, e := range entries {
		if e.IsDir() || !w.Match(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, found{filepath.Join(w.dir, e.Name()), info.ModTime()})
	}
	sort.SliceStable(files, func(i, j int) bool {
		if files[i].mod.Equal(files[j].mod) {
			return files[i].path < files[j].path
		}
		return files[i].mod.Before(files[j].mod)
	})

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.path
		w.seen[f.path] = true
	}
	return paths, nil
}

// Files delivers settled paths. It is closed when Run returns.
func (w *Watcher) Files() <-chan string { return w.files }

// Run starts the watch loop. Blocks until ctx is cancelled or the
// underlying watcher fails to deliver events.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.files)
	defer w.fs.Close()
	defer close(w.done)

	timers := make(map[string]*time.Timer)
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 || !w.Match(event.Name) {
				continue
			}
			path := filepath.Clean(event.Name)
			if w.seen[path] {
				continue
			}

			// Debounce rapid changes
			if t, exists := timers[path]; exists {
				t.Reset(w.debounce)
				continue
			}
			timers[path] = time.AfterFunc(w.debounce, func() {
				select {
				case w.ready <- path:
				case <-w.done:
				}
			})

		case path := <-w.ready:
			delete(timers, path)
			if w.seen[path] {
				continue
			}
			if _, err := os.Stat(path); err != nil {
				continue
			}
			w.seen[path] = true

			select {
			case w.files <- path:
			case <-ctx.Done():
				return ctx.Err()
			}

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			if w.OnError != nil {
				w.OnError(err)
			}
		}
	}
}
