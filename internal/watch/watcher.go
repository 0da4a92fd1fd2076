package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Config configures a Watcher.
type Config struct {
	// Paths are files or directories to watch. Directories are watched
	// recursively.
	Paths []string

	// Ignore patterns to skip. A bare name matches any path segment, a
	// pattern with a slash matches consecutive segments, and globs match
	// the base name (or the whole path when they contain a slash).
	Ignore []string

	// Extensions limits reported files by extension, e.g. ".html". Empty
	// reports every file.
	Extensions []string

	// Debounce is how long the watcher waits for events to settle before
	// reporting a batch. Default: 100ms.
	Debounce time.Duration

	// Logger for watch errors. Default: slog.Default().
	Logger *slog.Logger
}

// DefaultIgnore contains default patterns to ignore.
var DefaultIgnore = []string{
	".git",
	"node_modules",
	"dist",
	"tmp",
	"*.tmp",
	"*.swp",
	"*~",
}

func (c Config) withDefaults() Config {
	if c.Debounce <= 0 {
		c.Debounce = 100 * time.Millisecond
	}
	if c.Ignore == nil {
		c.Ignore = DefaultIgnore
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Watcher reports batches of changed files.
type Watcher struct {
	config Config
	fsw    *fsnotify.Watcher

	// files holds explicitly watched files; events on their directories
	// for other names are dropped.
	files map[string]bool
	dirs  map[string]bool

	mu      sync.Mutex
	pending map[string]bool
	timer   *time.Timer
}

// New creates a watcher over config.Paths. Missing paths are an error.
func New(config Config) (*Watcher, error) {
	config = config.withDefaults()
	if len(config.Paths) == 0 {
		return nil, errors.New("watch: no paths")
	}
	paths := make([]string, len(config.Paths))
	for i, p := range config.Paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("watch: %w", err)
		}
		paths[i] = abs
	}
	config.Paths = paths

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	w := &Watcher{
		config:  config,
		fsw:     fsw,
		files:   make(map[string]bool),
		dirs:    make(map[string]bool),
		pending: make(map[string]bool),
	}
	for _, p := range config.Paths {
		if err := w.add(p); err != nil {
			fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

func (w *Watcher) add(p string) error {
	info, err := os.Stat(p)
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	if !info.IsDir() {
		w.files[p] = true
		return w.addDir(filepath.Dir(p))
	}
	return filepath.WalkDir(p, func(sub string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if sub != p && w.shouldIgnore(sub) {
			return filepath.SkipDir
		}
		return w.addDir(sub)
	})
}

func (w *Watcher) addDir(dir string) error {
	if w.dirs[dir] {
		return nil
	}
	if err := w.fsw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.dirs[dir] = true
	return nil
}

// Run delivers sorted batches of changed paths to onChange until ctx is
// cancelled. Deleted files are reported too. Run closes the watcher.
func (w *Watcher) Run(ctx context.Context, onChange func([]string)) error {
	defer w.fsw.Close()
	flush := make(chan struct{}, 1)
	defer w.stopTimer()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ev, flush)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.config.Logger.Warn("watch error", "error", err)

		case <-flush:
			if batch := w.drain(); len(batch) > 0 {
				onChange(batch)
			}
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event, flush chan<- struct{}) {
	name := filepath.Clean(ev.Name)
	if w.shouldIgnore(name) {
		return
	}

	// New directories under a watched tree are watched too. Explicit files
	// never pull in siblings.
	if ev.Has(fsnotify.Create) && !w.files[name] && w.recursive(name) {
		if info, err := os.Stat(name); err == nil && info.IsDir() {
			if err := w.add(name); err != nil {
				w.config.Logger.Warn("watch add failed", "path", name, "error", err)
			}
			return
		}
	}
	if ev.Op == fsnotify.Chmod || !w.reports(name) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[name] = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.config.Debounce, func() {
		select {
		case flush <- struct{}{}:
		default:
		}
	})
}

// recursive reports whether name sits under a watched directory root
// rather than next to an explicitly watched file.
func (w *Watcher) recursive(name string) bool {
	for _, p := range w.config.Paths {
		p = filepath.Clean(p)
		if w.files[p] {
			continue
		}
		if name == p || strings.HasPrefix(name, p+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (w *Watcher) reports(name string) bool {
	if w.files[name] {
		return true
	}
	if !w.recursive(name) {
		return false
	}
	if len(w.config.Extensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range w.config.Extensions {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}

func (w *Watcher) drain() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	batch := make([]string, 0, len(w.pending))
	for p := range w.pending {
		batch = append(batch, p)
	}
	clear(w.pending)
	sort.Strings(batch)
	return batch
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

// relative returns fullPath relative to the watch root containing it.
// Roots and explicitly watched files yield "".
func (w *Watcher) relative(fullPath string) string {
	if w.files[fullPath] {
		return ""
	}
	for _, p := range w.config.Paths {
		p = filepath.Clean(p)
		if fullPath == p {
			return ""
		}
		if rel, ok := strings.CutPrefix(fullPath, p+string(filepath.Separator)); ok {
			return rel
		}
	}
	return filepath.Base(fullPath)
}

// shouldIgnore checks if a path should be ignored. Patterns match the part
// of the path below its watch root.
func (w *Watcher) shouldIgnore(fullPath string) bool {
	rel := w.relative(fullPath)
	if rel == "" {
		return false
	}
	name := filepath.Base(rel)
	normalized := filepath.ToSlash(rel)

	for _, pattern := range w.config.Ignore {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		if name == pattern {
			return true
		}

		hasPathSep := strings.ContainsAny(pattern, `/\`)
		if strings.ContainsAny(pattern, "*?[") {
			var matched bool
			if hasPathSep {
				matched, _ = path.Match(filepath.ToSlash(pattern), normalized)
			} else {
				matched, _ = filepath.Match(pattern, name)
			}
			if matched {
				return true
			}
			continue
		}

		if hasPathSep {
			if pathMatchesSegments(normalized, filepath.ToSlash(pattern)) {
				return true
			}
			continue
		}
		if pathHasSegment(normalized, pattern) {
			return true
		}
	}
	return false
}

func pathHasSegment(p, segment string) bool {
	for _, part := range splitPathSegments(p) {
		if part == segment {
			return true
		}
	}
	return false
}

func pathMatchesSegments(p, pattern string) bool {
	pathParts := splitPathSegments(p)
	patternParts := splitPathSegments(pattern)
	if len(patternParts) == 0 || len(patternParts) > len(pathParts) {
		return false
	}
	for i := 0; i <= len(pathParts)-len(patternParts); i++ {
		match := true
		for j := range patternParts {
			if pathParts[i+j] != patternParts[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func splitPathSegments(p string) []string {
	var out []string
	for _, part := range strings.Split(p, "/") {
		if part != "" && part != "." {
			out = append(out, part)
		}
	}
	return out
}
