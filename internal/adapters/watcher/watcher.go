// Package watcher reports debounced changes to files below a set of
// directories. It drives preset hot reload for local storage.
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Event represents a settled change to one file.
type Event struct {
	Path      string
	Operation Operation
}

// Operation represents the type of file operation.
type Operation int

// File operation types.
const (
	OpCreate Operation = iota
	OpModify
	OpDelete
)

// String returns the string representation of the operation.
func (o Operation) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpModify:
		return "modify"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Handler is called once per settled event. Handlers run one at a time in
// the order events settle.
type Handler func(ctx context.Context, event Event) error

// Filter selects the files the watcher reports.
type Filter func(path string) bool

// Config holds watcher configuration.
type Config struct {
	Paths    []string
	Debounce time.Duration
	Filter   Filter
}

type pending struct {
	seen time.Time
	op   Operation
}

// Watcher watches directory trees and reports changes to matching files.
type Watcher struct {
	fs       *fsnotify.Watcher
	handler  Handler
	filter   Filter
	logger   *slog.Logger
	paths    []string
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]*pending
	done    chan struct{}
	wg      sync.WaitGroup
}

// New creates a new file watcher. A nil filter reports every file.
func New(cfg Config, handler Handler, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if cfg.Debounce <= 0 {
		cfg.Debounce = 500 * time.Millisecond
	}
	if cfg.Filter == nil {
		cfg.Filter = func(string) bool { return true }
	}

	return &Watcher{
		fs:       fsw,
		handler:  handler,
		filter:   cfg.Filter,
		logger:   logger,
		paths:    cfg.Paths,
		debounce: cfg.Debounce,
		pending:  make(map[string]*pending),
		done:     make(chan struct{}),
	}, nil
}

// Start registers the configured trees and begins delivering events.
// Paths that cannot be watched are logged and skipped.
func (w *Watcher) Start(ctx context.Context) error {
	for _, path := range w.paths {
		if err := w.AddPath(path); err != nil {
			w.logger.Warn("failed to watch path", "path", path, "error", err)
		}
	}

	w.wg.Add(1)
	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for the event loop to exit.
func (w *Watcher) Stop() error {
	select {
	case <-w.done:
	default:
		close(w.done)
	}
	err := w.fs.Close()
	w.wg.Wait()
	return err
}

// AddPath watches path and every directory below it.
func (w *Watcher) AddPath(path string) error {
	root, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return w.fs.Add(p)
	})
	if err != nil {
		return err
	}

	w.logger.Info("watching directory", "path", root)
	return nil
}

// RemovePath stops watching a single directory.
func (w *Watcher) RemovePath(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	return w.fs.Remove(absPath)
}

func (w *Watcher) run(ctx context.Context) {
	defer w.wg.Done()

	tick := w.debounce / 5
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return

		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.observe(ev)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", "error", err)

		case now := <-ticker.C:
			for _, ev := range w.settled(now) {
				w.deliver(ctx, ev)
			}
		}
	}
}

// observe records a raw notification. New directories are watched so files
// created in them are seen as well.
func (w *Watcher) observe(ev fsnotify.Event) {
	if ev.Has(fsnotify.Create) && isDir(ev.Name) {
		if err := w.AddPath(ev.Name); err != nil {
			w.logger.Warn("failed to watch new directory", "path", ev.Name, "error", err)
		}
		return
	}
	if !w.filter(ev.Name) {
		return
	}

	w.logger.Debug("file event", "path", ev.Name, "op", ev.Op.String())
	w.record(ev.Name, toOperation(ev.Op), time.Now())
}

func (w *Watcher) record(path string, op Operation, at time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()

	p, ok := w.pending[path]
	if !ok {
		w.pending[path] = &pending{seen: at, op: op}
		return
	}
	p.seen = at
	p.op = merge(p.op, op)
}

// settled removes and returns the events quiet for at least the debounce
// window, oldest first.
func (w *Watcher) settled(now time.Time) []Event {
	w.mu.Lock()
	defer w.mu.Unlock()

	type item struct {
		ev Event
		at time.Time
	}
	var ready []item
	for path, p := range w.pending {
		if now.Sub(p.seen) < w.debounce {
			continue
		}
		delete(w.pending, path)
		ready = append(ready, item{Event{Path: path, Operation: p.op}, p.seen})
	}
	slices.SortFunc(ready, func(a, b item) int { return a.at.Compare(b.at) })

	events := make([]Event, len(ready))
	for i, it := range ready {
		events[i] = it.ev
	}
	return events
}

func (w *Watcher) deliver(ctx context.Context, ev Event) {
	w.logger.Info("processing file event", "path", ev.Path, "operation", ev.Operation.String())
	if err := w.handler(ctx, ev); err != nil {
		w.logger.Error("handler error",
			"path", ev.Path,
			"operation", ev.Operation.String(),
			"error", err,
		)
	}
}

// merge folds a new operation into a pending one. A delete wins over
// anything before it; a create after a delete means the file came back.
func merge(prev, next Operation) Operation {
	switch {
	case next == OpDelete:
		return OpDelete
	case prev == OpDelete:
		return OpCreate
	case prev == OpCreate:
		return OpCreate
	default:
		return next
	}
}

// toOperation maps fsnotify ops. Rename counts as delete since the file is
// gone from its original location.
func toOperation(op fsnotify.Op) Operation {
	switch {
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return OpDelete
	case op.Has(fsnotify.Create):
		return OpCreate
	default:
		return OpModify
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
