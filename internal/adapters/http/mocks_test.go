package http //nolint:revive // package name conflicts with stdlib but is acceptable in this context

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"

	"github.com/jobrunner/leafsync/internal/domain"
	"github.com/jobrunner/leafsync/internal/ports/output"
)

// scriptedCall is one call seen by a scripted runtime. Args are encoded when
// the call is made.
type scriptedCall struct {
	Method string
	Args   json.RawMessage
}

// scriptedRuntime implements output.MapRuntime. Queries answer from
// replies; methods in block wait for the caller's context.
type scriptedRuntime struct {
	mu      sync.Mutex
	calls   []scriptedCall
	replies map[string]any
	errs    map[string]error
	block   map[string]bool
}

func (r *scriptedRuntime) record(method string, args []any) {
	data, _ := json.Marshal(args)
	r.mu.Lock()
	r.calls = append(r.calls, scriptedCall{Method: method, Args: data})
	r.mu.Unlock()
}

func (r *scriptedRuntime) Call(_ context.Context, method string, args ...any) error {
	r.record(method, args)
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errs[method]
}

func (r *scriptedRuntime) Query(ctx context.Context, method string, result any, args ...any) error {
	r.record(method, args)

	r.mu.Lock()
	blocked := r.block[method]
	err := r.errs[method]
	reply, hasReply := r.replies[method]
	r.mu.Unlock()

	if blocked {
		<-ctx.Done()
		return ctx.Err()
	}
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	if !hasReply {
		return errors.New("no reply scripted for " + method)
	}
	data, err := json.Marshal(reply)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, result)
}

func (r *scriptedRuntime) methods() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	for i, c := range r.calls {
		out[i] = c.Method
	}
	return out
}

// last returns the most recent call of method.
func (r *scriptedRuntime) last(method string) (scriptedCall, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.calls) - 1; i >= 0; i-- {
		if r.calls[i].Method == method {
			return r.calls[i], true
		}
	}
	return scriptedCall{}, false
}

// scriptedProvider implements output.RuntimeProvider. Every map shares the
// replies, errors and blocked methods configured on the provider.
type scriptedProvider struct {
	mu       sync.Mutex
	runtimes map[string]*scriptedRuntime
	closed   []string
	replies  map[string]any
	errs     map[string]error
	block    map[string]bool
}

func newScriptedProvider() *scriptedProvider {
	return &scriptedProvider{
		runtimes: make(map[string]*scriptedRuntime),
		replies:  make(map[string]any),
		errs:     make(map[string]error),
		block:    make(map[string]bool),
	}
}

func (p *scriptedProvider) Open(_ context.Context, mapID string) (output.MapRuntime, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	rt := &scriptedRuntime{replies: p.replies, errs: p.errs, block: p.block}
	p.runtimes[mapID] = rt
	return rt, nil
}

func (p *scriptedProvider) Close(mapID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = append(p.closed, mapID)
}

func (p *scriptedProvider) runtime(mapID string) *scriptedRuntime {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runtimes[mapID]
}

// mockTileStore implements output.TileStore with in-memory tiles keyed by
// "name/z/x/y".
type mockTileStore struct {
	sets  map[string]domain.Tileset
	tiles map[string][]byte
}

func (m *mockTileStore) List(_ context.Context) ([]domain.Tileset, error) {
	out := make([]domain.Tileset, 0, len(m.sets))
	for _, ts := range m.sets {
		out = append(out, ts)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *mockTileStore) Get(_ context.Context, name string) (domain.Tileset, error) {
	ts, ok := m.sets[name]
	if !ok {
		return domain.Tileset{}, domain.ErrTilesetNotFound
	}
	return ts, nil
}

func (m *mockTileStore) Tile(_ context.Context, name string, z, x, y int) ([]byte, error) {
	data, ok := m.tiles[tileKey(name, z, x, y)]
	if !ok {
		return nil, domain.ErrTileNotFound
	}
	return data, nil
}

func (m *mockTileStore) Close() error {
	return nil
}

func tileKey(name string, z, x, y int) string {
	data, _ := json.Marshal([]any{name, z, x, y})
	return string(data)
}
