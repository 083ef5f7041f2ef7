package watcher

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func yamlOnly(path string) bool {
	return strings.HasSuffix(path, ".yaml")
}

func TestToOperation(t *testing.T) {
	tests := []struct {
		name     string
		op       fsnotify.Op
		expected Operation
	}{
		{"remove", fsnotify.Remove, OpDelete},
		{"rename", fsnotify.Rename, OpDelete},
		{"create", fsnotify.Create, OpCreate},
		{"write", fsnotify.Write, OpModify},
		{"chmod", fsnotify.Chmod, OpModify},
		{"remove wins over write", fsnotify.Remove | fsnotify.Write, OpDelete},
		{"rename wins over create", fsnotify.Rename | fsnotify.Create, OpDelete},
		{"create wins over write", fsnotify.Create | fsnotify.Write, OpCreate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := toOperation(tt.op); got != tt.expected {
				t.Errorf("toOperation(%v) = %v, want %v", tt.op, got, tt.expected)
			}
		})
	}
}

func TestMerge(t *testing.T) {
	tests := []struct {
		prev, next, want Operation
	}{
		{OpModify, OpModify, OpModify},
		{OpCreate, OpModify, OpCreate},
		{OpModify, OpDelete, OpDelete},
		{OpCreate, OpDelete, OpDelete},
		{OpDelete, OpCreate, OpCreate},
		{OpDelete, OpModify, OpCreate},
	}

	for _, tt := range tests {
		t.Run(tt.prev.String()+"_"+tt.next.String(), func(t *testing.T) {
			if got := merge(tt.prev, tt.next); got != tt.want {
				t.Errorf("merge(%v, %v) = %v, want %v", tt.prev, tt.next, got, tt.want)
			}
		})
	}
}

func TestOperationString(t *testing.T) {
	tests := []struct {
		op       Operation
		expected string
	}{
		{OpCreate, "create"},
		{OpModify, "modify"},
		{OpDelete, "delete"},
		{Operation(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.op.String(); got != tt.expected {
				t.Errorf("Operation.String() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestSettledOrderAndDebounce(t *testing.T) {
	w := &Watcher{debounce: time.Second, pending: make(map[string]*pending)}
	base := time.Unix(1_700_000_000, 0)

	w.record("/p/b.yaml", OpModify, base.Add(200*time.Millisecond))
	w.record("/p/a.yaml", OpCreate, base)
	w.record("/p/c.yaml", OpModify, base.Add(900*time.Millisecond))
	w.record("/p/a.yaml", OpModify, base.Add(100*time.Millisecond))

	got := w.settled(base.Add(1500 * time.Millisecond))
	if len(got) != 2 {
		t.Fatalf("settled() returned %d events, want 2: %v", len(got), got)
	}
	if got[0].Path != "/p/a.yaml" || got[0].Operation != OpCreate {
		t.Errorf("first event = %+v, want create of a.yaml", got[0])
	}
	if got[1].Path != "/p/b.yaml" || got[1].Operation != OpModify {
		t.Errorf("second event = %+v, want modify of b.yaml", got[1])
	}

	if rest := w.settled(base.Add(1500 * time.Millisecond)); len(rest) != 0 {
		t.Errorf("settled events must be removed, got %v", rest)
	}
	if rest := w.settled(base.Add(2 * time.Second)); len(rest) != 1 || rest[0].Path != "/p/c.yaml" {
		t.Errorf("late event = %v, want c.yaml", rest)
	}
}

type eventSink struct {
	mu     sync.Mutex
	events []Event
	ch     chan struct{}
}

func newEventSink() *eventSink {
	return &eventSink{ch: make(chan struct{}, 64)}
}

func (s *eventSink) handle(_ context.Context, ev Event) error {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
	s.ch <- struct{}{}
	return nil
}

func (s *eventSink) wait(t *testing.T) Event {
	t.Helper()
	select {
	case <-s.ch:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for watcher event")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[len(s.events)-1]
}

func TestWatcherReportsFilteredFiles(t *testing.T) {
	dir := t.TempDir()
	sink := newEventSink()

	w, err := New(Config{
		Paths:    []string{dir},
		Debounce: 50 * time.Millisecond,
		Filter:   yamlOnly,
	}, sink.handle, testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer func() { _ = w.Stop() }()

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "city.yaml")
	if err := os.WriteFile(path, []byte("name: city"), 0644); err != nil {
		t.Fatal(err)
	}

	ev := sink.wait(t)
	if filepath.Base(ev.Path) != "city.yaml" {
		t.Errorf("event path = %q, want city.yaml", ev.Path)
	}
	if ev.Operation != OpCreate {
		t.Errorf("operation = %v, want create", ev.Operation)
	}

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	ev = sink.wait(t)
	if ev.Operation != OpDelete {
		t.Errorf("operation = %v, want delete", ev.Operation)
	}
}

func TestWatcherFollowsNewDirectories(t *testing.T) {
	dir := t.TempDir()
	sink := newEventSink()

	w, err := New(Config{Paths: []string{dir}, Debounce: 50 * time.Millisecond, Filter: yamlOnly}, sink.handle, testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = w.Start(ctx)
	defer func() { _ = w.Stop() }()

	sub := filepath.Join(dir, "regions")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}
	// Give the loop a moment to register the new directory.
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(sub, "alps.yaml"), []byte("name: alps"), 0644); err != nil {
		t.Fatal(err)
	}
	ev := sink.wait(t)
	if filepath.Base(ev.Path) != "alps.yaml" {
		t.Errorf("event path = %q, want alps.yaml", ev.Path)
	}
}

func TestNewDefaults(t *testing.T) {
	w, err := New(Config{}, func(context.Context, Event) error { return nil }, testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() { _ = w.Stop() }()

	if w.debounce != 500*time.Millisecond {
		t.Errorf("debounce = %v, want 500ms", w.debounce)
	}
	if !w.filter("anything") {
		t.Error("default filter should accept every path")
	}
}
