package application

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jobrunner/leafsync/internal/domain"
	"github.com/jobrunner/leafsync/internal/ports/output"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// recordedCall is one call seen by the recording runtime.
type recordedCall struct {
	Method string
	Args   []any
}

// recordingRuntime implements output.MapRuntime and records every call.
type recordingRuntime struct {
	mu      sync.Mutex
	calls   []recordedCall
	fail    map[string]error
	replies map[string]any
}

func newRecordingRuntime() *recordingRuntime {
	return &recordingRuntime{
		fail:    make(map[string]error),
		replies: make(map[string]any),
	}
}

func (r *recordingRuntime) Call(_ context.Context, method string, args ...any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, recordedCall{Method: method, Args: args})
	return r.fail[method]
}

func (r *recordingRuntime) Query(_ context.Context, method string, result any, args ...any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, recordedCall{Method: method, Args: args})
	if err := r.fail[method]; err != nil {
		return err
	}
	reply, ok := r.replies[method]
	if !ok {
		return errors.New("no reply configured for " + method)
	}
	data, err := json.Marshal(reply)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, result)
}

func (r *recordingRuntime) failWith(method string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail[method] = err
}

func (r *recordingRuntime) reply(method string, v any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies[method] = v
}

func (r *recordingRuntime) recorded() []recordedCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]recordedCall, len(r.calls))
	copy(out, r.calls)
	return out
}

func (r *recordingRuntime) methods() []string {
	calls := r.recorded()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Method
	}
	return out
}

func (r *recordingRuntime) count(method string) int {
	n := 0
	for _, m := range r.methods() {
		if m == method {
			n++
		}
	}
	return n
}

func (r *recordingRuntime) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

// blockingRuntime holds every call until release is closed.
type blockingRuntime struct {
	*recordingRuntime
	release chan struct{}
}

func (b *blockingRuntime) Call(ctx context.Context, method string, args ...any) error {
	select {
	case <-b.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	return b.recordingRuntime.Call(ctx, method, args...)
}

// fakeProvider implements output.RuntimeProvider with recording runtimes.
type fakeProvider struct {
	mu       sync.Mutex
	runtimes map[string]*recordingRuntime
	closed   []string
	openErr  error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{runtimes: make(map[string]*recordingRuntime)}
}

func (p *fakeProvider) Open(_ context.Context, mapID string) (output.MapRuntime, error) {
	if p.openErr != nil {
		return nil, p.openErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	rt := newRecordingRuntime()
	p.runtimes[mapID] = rt
	return rt, nil
}

func (p *fakeProvider) Close(mapID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = append(p.closed, mapID)
}

func (p *fakeProvider) runtime(mapID string) *recordingRuntime {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runtimes[mapID]
}

// mockStorage implements output.ObjectStorage for testing.
type mockStorage struct {
	mu      sync.Mutex
	objects []output.StorageObject
	content map[string]string
	listErr error
}

func (m *mockStorage) List(_ context.Context) ([]output.StorageObject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	return append([]output.StorageObject(nil), m.objects...), nil
}

func (m *mockStorage) Download(_ context.Context, _, _ string) error {
	return nil
}

func (m *mockStorage) GetReader(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	body, ok := m.content[key]
	if !ok {
		return nil, &domain.StorageError{Operation: "get", Key: key, Err: domain.ErrNotFound}
	}
	return io.NopCloser(bytes.NewBufferString(body)), nil
}

func (m *mockStorage) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.content[key]
	return ok, nil
}

func (m *mockStorage) put(key, body, etag string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.content == nil {
		m.content = make(map[string]string)
	}
	m.content[key] = body
	for i, obj := range m.objects {
		if obj.Key == key {
			m.objects[i].ETag = etag
			return
		}
	}
	m.objects = append(m.objects, output.StorageObject{Key: key, ETag: etag, Size: int64(len(body))})
}

func (m *mockStorage) delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.content, key)
	for i, obj := range m.objects {
		if obj.Key == key {
			m.objects = append(m.objects[:i], m.objects[i+1:]...)
			return
		}
	}
}

// customLayer is a layer variant with no runtime translation.
type customLayer struct {
	domain.BaseLayer
}

func (c *customLayer) Kind() domain.LayerKind { return "custom" }

func newTestMap(t *testing.T, rt output.MapRuntime) *Map {
	t.Helper()
	m := NewMap(rt, domain.DefaultMapOptions(), &output.NoOpMetrics{}, testLogger(), MapConfig{
		ID:          "map-1",
		CallTimeout: time.Second,
	})
	t.Cleanup(func() { _ = m.Dispose(context.Background()) })
	return m
}

func newInitializedMap(t *testing.T, rt output.MapRuntime) *Map {
	t.Helper()
	m := newTestMap(t, rt)
	m.MarkInitialized()
	return m
}

func flush(t *testing.T, m *Map) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
}

func marker(id string, cluster *int) *domain.Marker {
	m := domain.NewMarker(domain.NewLatLng(52.5, 13.4))
	m.ID = id
	m.ClusterID = cluster
	return m
}

func intPtr(v int) *int { return &v }

func joinMethods(methods []string) string {
	return strings.Join(methods, ",")
}
