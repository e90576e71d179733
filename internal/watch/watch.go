// Package watch reports batches of note changes under a directory tree.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vaultorg/internal/ignore"
)

// ErrWatcherFailed indicates the filesystem watcher failed to initialize.
var ErrWatcherFailed = errors.New("failed to initialize filesystem watcher")

// DefaultDebounce is the quiet period before a batch is emitted.
const DefaultDebounce = 2 * time.Second

// eventBuffer is how many change batches wait for a slow consumer.
const eventBuffer = 4

// Event is one debounced batch of changed notes.
type Event struct {
	// Paths are relative to the vault root, sorted, slash separated.
	Paths     []string
	Timestamp time.Time
}

// Options tunes a Watcher.
type Options struct {
	// Root is the vault root that ignore rules and event paths are
	// relative to. It defaults to the watched directory.
	Root       string
	Debounce   time.Duration
	Extensions []string
	Ignore     *ignore.Matcher
}

// Watcher watches a directory tree and emits debounced batches of changed
// notes.
type Watcher struct {
	dir      string
	opts     Options
	watcher  *fsnotify.Watcher
	events   chan Event
	stop     chan struct{}
	stopOnce sync.Once
	logger   *zap.Logger
}

// New creates a Watcher for dir.
func New(dir string, opts Options, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Root == "" {
		opts.Root = dir
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = []string{".md"}
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("watch directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch directory %s is not a directory", dir)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}

	return &Watcher{
		dir:     dir,
		opts:    opts,
		watcher: w,
		events:  make(chan Event, eventBuffer),
		stop:    make(chan struct{}),
		logger:  logger,
	}, nil
}

// Start watches every directory under dir and processes events in a
// background goroutine until ctx is done or Stop is called. The Events
// channel is closed when processing ends.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addTree(w.dir); err != nil {
		return err
	}
	go w.processEvents(ctx)
	return nil
}

// Stop stops the watcher and releases its resources. It is safe to call
// more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
		_ = w.watcher.Close()
	})
}

// Events returns the channel of debounced batches.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// addTree adds a watch on root and every non-ignored directory below it.
func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			w.logger.Warn("skipping unreadable path", zap.String("path", p), zap.Error(err))
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != w.dir && w.ignored(p, true) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(p); err != nil {
			return fmt.Errorf("watching %s: %w", p, err)
		}
		return nil
	})
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer close(w.events)

	var timer *time.Timer
	var fire <-chan time.Time
	pending := make(map[string]struct{})
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			rel, ok := w.handle(event)
			if !ok {
				continue
			}
			pending[rel] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(w.opts.Debounce)
			} else {
				timer.Reset(w.opts.Debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			if !w.emit(pending) {
				// Keep the batch and try again after another quiet period.
				timer.Reset(w.opts.Debounce)
				fire = timer.C
				continue
			}
			pending = make(map[string]struct{})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("filesystem watcher error", zap.Error(err))
		}
	}
}

// handle filters a raw event. New directories are watched as they appear.
// It returns the vault-relative path of a changed note.
func (w *Watcher) handle(event fsnotify.Event) (string, bool) {
	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) &&
		!event.Op.Has(fsnotify.Remove) && !event.Op.Has(fsnotify.Rename) {
		return "", false
	}

	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !w.ignored(event.Name, true) {
				if err := w.addTree(event.Name); err != nil {
					w.logger.Warn("watching new directory failed", zap.String("path", event.Name), zap.Error(err))
				}
			}
			return "", false
		}
	}

	if !w.isNote(event.Name) || w.ignored(event.Name, false) {
		return "", false
	}
	rel, err := filepath.Rel(w.opts.Root, event.Name)
	if err != nil {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func (w *Watcher) isNote(p string) bool {
	ext := strings.ToLower(filepath.Ext(p))
	for _, e := range w.opts.Extensions {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}

func (w *Watcher) ignored(p string, isDir bool) bool {
	if w.opts.Ignore == nil {
		return false
	}
	rel, err := filepath.Rel(w.opts.Root, p)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false
	}
	return w.opts.Ignore.Match(filepath.ToSlash(rel), isDir)
}

// emit sends the pending batch without blocking. It reports false when the
// consumer is behind and the batch must be kept.
func (w *Watcher) emit(pending map[string]struct{}) bool {
	if len(pending) == 0 {
		return true
	}
	paths := make([]string, 0, len(pending))
	for p := range pending {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	select {
	case w.events <- Event{Paths: paths, Timestamp: time.Now()}:
		return true
	default:
		w.logger.Debug("consumer is behind, holding change batch", zap.Int("paths", len(paths)))
		return false
	}
}
