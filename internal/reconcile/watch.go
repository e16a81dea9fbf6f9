package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultEventDebounce is the quiet period after which queued watcher
// events are consolidated and emitted (spec §6, config key EVENT_DEBOUNCE).
const DefaultEventDebounce = 5 * time.Second

// FsWatcher is the consumer-defined interface over fsnotify, the same
// seam the teacher's observer_local.go cuts so tests can substitute a
// fake watcher.
type FsWatcher interface {
	Add(path string) error
	Remove(path string) error
	Events() <-chan fsnotify.Event
	Errors() <-chan error
	Close() error
}

type fsnotifyWrapper struct{ w *fsnotify.Watcher }

func (f *fsnotifyWrapper) Add(path string) error           { return f.w.Add(path) }
func (f *fsnotifyWrapper) Remove(path string) error         { return f.w.Remove(path) }
func (f *fsnotifyWrapper) Events() <-chan fsnotify.Event    { return f.w.Events }
func (f *fsnotifyWrapper) Errors() <-chan error             { return f.w.Errors }
func (f *fsnotifyWrapper) Close() error                     { return f.w.Close() }

// NewFsWatcher wraps a real fsnotify.Watcher.
func NewFsWatcher() (FsWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	return &fsnotifyWrapper{w}, nil
}

// Watcher subscribes to OS filesystem events under a sync root,
// consolidates them through a Consolidator over a debounce window, and
// delivers flushed ModificationEvents on a channel. One watch is
// registered per directory, added recursively — the teacher's
// observer_local.go convention.
type Watcher struct {
	root      string
	debounce  time.Duration
	fs        FsWatcher
	cons      *Consolidator
	toEvent   func(rawEvent) (ModificationEvent, error)
	ignore    *IgnoreSet
	logger    *slog.Logger
	out       chan []ModificationEvent
}

// NewWatcher builds a Watcher rooted at root. toEvent turns a raw
// consolidated event into the ModificationEvent delivered on Events();
// the sync command passes NewWakeClassifier, which leaves the
// OperationContext empty because a batch only wakes the next audit.
func NewWatcher(root string, debounce time.Duration, fsw FsWatcher, ignore *IgnoreSet,
	toEvent func(rawEvent) (ModificationEvent, error), logger *slog.Logger) *Watcher {
	w := &Watcher{
		root:     root,
		debounce: debounce,
		fs:       fsw,
		ignore:   ignore,
		toEvent:  toEvent,
		logger:   logger,
		out:      make(chan []ModificationEvent, 16),
	}
	w.cons = NewConsolidator(w, logger)

	return w
}

// Events returns the channel on which flushed, consolidated event
// batches are delivered.
func (w *Watcher) Events() <-chan []ModificationEvent { return w.out }

// SHA256ForPath implements HashLookup by hashing the file on disk. Used
// by the Consolidator for merge rule 1's create-side hash augmentation.
func (w *Watcher) SHA256ForPath(path string) string {
	sum, err := ComputeSHA256(path)
	if err != nil {
		return ""
	}

	return sum
}

// Watch registers the root and every existing subdirectory, then runs
// the event loop until ctx is cancelled.
func (w *Watcher) Watch(ctx context.Context) error {
	if err := w.addRecursive(w.root); err != nil {
		return err
	}

	return w.loop(ctx)
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.IsDir() {
			return nil
		}

		if w.ignore != nil && w.ignore.MatchesName(d.Name()) {
			return filepath.SkipDir
		}

		return w.fs.Add(path)
	})
}

func (w *Watcher) loop(ctx context.Context) error {
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}

	active := false

	for {
		select {
		case <-ctx.Done():
			w.fs.Close()
			return nil

		case ev, ok := <-w.fs.Events():
			if !ok {
				return nil
			}

			w.handle(ev)

			if !active {
				timer.Reset(w.debounce)
				active = true
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.fs.Errors():
			if !ok {
				return nil
			}

			w.logger.Error("watcher error", "error", err)

		case <-timer.C:
			active = false
			w.flush()
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if w.ignore != nil && w.ignore.MatchesPath(ev.Name) {
		return
	}

	isDir := false
	if info, err := os.Lstat(ev.Name); err == nil {
		isDir = info.IsDir()
	} else if ev.Op&fsnotify.Remove != 0 || ev.Op&fsnotify.Rename != 0 {
		// Can no longer stat a removed/renamed-away path, so its
		// directory-ness is unknown and it is handled as a file.
	}

	switch {
	case ev.Op&fsnotify.Create != 0:
		if isDir {
			w.fs.Add(ev.Name)
		}

		w.cons.Dispatch(rawEvent{kind: rawCreated, srcPath: ev.Name, isDirectory: isDir})

	case ev.Op&fsnotify.Write != 0:
		w.cons.Dispatch(rawEvent{kind: rawModified, srcPath: ev.Name, isDirectory: isDir})

	case ev.Op&fsnotify.Remove != 0, ev.Op&fsnotify.Rename != 0:
		w.cons.Dispatch(rawEvent{kind: rawDeleted, srcPath: ev.Name, isDirectory: isDir})

	case ev.Op&fsnotify.Chmod != 0:
		// Permission-only changes carry no content signal, ignored.
	}
}

func (w *Watcher) flush() {
	events := w.cons.Flush(w.toEvent)
	if len(events) == 0 {
		return
	}

	select {
	case w.out <- events:
	default:
		w.logger.Warn("watcher output channel full, dropping flushed batch", "count", len(events))
	}
}

// IgnoreSet holds the two configured ignore lists (spec §6): exact
// basenames and glob patterns.
type IgnoreSet struct {
	Names    map[string]bool
	Patterns []string
}

func NewIgnoreSet(names []string, patterns []string) *IgnoreSet {
	nameSet := make(map[string]bool, len(names))
	for _, n := range names {
		nameSet[n] = true
	}

	return &IgnoreSet{Names: nameSet, Patterns: patterns}
}

// MatchesName reports whether basename is in the exact-match ignore set.
func (s *IgnoreSet) MatchesName(basename string) bool {
	return s.Names[basename]
}

// MatchesPath reports whether path's basename is ignored by name or glob
// pattern.
func (s *IgnoreSet) MatchesPath(path string) bool {
	base := filepath.Base(path)
	if s.MatchesName(base) {
		return true
	}

	for _, pat := range s.Patterns {
		if ok, err := filepath.Match(pat, base); err == nil && ok {
			return true
		}
	}

	return false
}

var errWatchRootGone = errors.New("reconcile: sync root no longer exists")
