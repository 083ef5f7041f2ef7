package browser

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jobrunner/leafsync/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func openRuntime(t *testing.T, h *Hub, mapID string) *Runtime {
	t.Helper()
	rt, err := h.Open(context.Background(), mapID)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return rt.(*Runtime)
}

func TestRuntimeCallQueuesEnvelope(t *testing.T) {
	h := NewHub(Config{OutboxSize: 4}, testLogger())
	rt := openRuntime(t, h, "m1")

	if err := rt.Call(context.Background(), "addMarker", map[string]any{"id": "a"}); err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if err := rt.Call(context.Background(), "disableInteraction"); err != nil {
		t.Fatalf("Call() error = %v", err)
	}

	first := <-rt.session.outbox
	second := <-rt.session.outbox
	if first.Method != "addMarker" || len(first.Args) != 1 || first.ID == "" {
		t.Errorf("first envelope = %+v", first)
	}
	if second.Args == nil {
		t.Error("args should encode as an empty array, not null")
	}
	if first.ID == second.ID {
		t.Error("each envelope needs its own id")
	}
	if first.Await {
		t.Error("detached calls must not ask for a reply")
	}
}

func TestRuntimeOutboxFull(t *testing.T) {
	h := NewHub(Config{OutboxSize: 1}, testLogger())
	rt := openRuntime(t, h, "m1")

	_ = rt.Call(context.Background(), "a")
	err := rt.Call(context.Background(), "b")
	if !errors.Is(err, domain.ErrRuntimeUnavailable) {
		t.Errorf("expected ErrRuntimeUnavailable, got %v", err)
	}
}

func TestRuntimeQueryReply(t *testing.T) {
	tests := []struct {
		name    string
		reply   Reply
		want    float64
		wantErr bool
	}{
		{name: "result", reply: Reply{Result: json.RawMessage(`7.5`)}, want: 7.5},
		{name: "remote error", reply: Reply{Error: "map is gone"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHub(Config{}, testLogger())
			rt := openRuntime(t, h, "m1")

			go func() {
				env := <-rt.session.outbox
				if !env.Await {
					t.Error("queries must ask for a reply")
				}
				if err := h.Reply("m1", env.ID, tt.reply); err != nil {
					t.Errorf("Reply() error = %v", err)
				}
			}()

			var zoom float64
			err := rt.Query(context.Background(), "getZoom", &zoom)
			if tt.wantErr {
				var remote *domain.RemoteError
				if !errors.As(err, &remote) {
					t.Fatalf("expected RemoteError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Query() error = %v", err)
			}
			if zoom != tt.want {
				t.Errorf("zoom = %v, want %v", zoom, tt.want)
			}
		})
	}
}

func TestRuntimeQueryContextDeadline(t *testing.T) {
	h := NewHub(Config{}, testLogger())
	rt := openRuntime(t, h, "m1")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	var center domain.LatLng
	if err := rt.Query(ctx, "getCenter", &center); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
	if len(rt.session.pending) != 0 {
		t.Error("timed out query should not stay pending")
	}
}

func TestHubCloseFailsPendingQueries(t *testing.T) {
	h := NewHub(Config{}, testLogger())
	rt := openRuntime(t, h, "m1")

	errs := make(chan error, 1)
	go func() {
		var bounds domain.LatLngBounds
		errs <- rt.Query(context.Background(), "getBounds", &bounds)
	}()

	<-rt.session.outbox
	h.Close("m1")

	select {
	case err := <-errs:
		if !errors.Is(err, domain.ErrRuntimeUnavailable) {
			t.Errorf("expected ErrRuntimeUnavailable, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("query did not return after close")
	}

	if err := rt.Call(context.Background(), "late"); !errors.Is(err, domain.ErrRuntimeUnavailable) {
		t.Errorf("expected ErrRuntimeUnavailable after close, got %v", err)
	}
}

func TestHubReplyErrors(t *testing.T) {
	h := NewHub(Config{}, testLogger())
	openRuntime(t, h, "m1")

	if err := h.Reply("nope", "c", Reply{}); !errors.Is(err, domain.ErrMapNotFound) {
		t.Errorf("expected ErrMapNotFound, got %v", err)
	}
	if err := h.Reply("m1", "unknown", Reply{}); !errors.Is(err, domain.ErrCallNotFound) {
		t.Errorf("expected ErrCallNotFound, got %v", err)
	}
}

func TestHubStream(t *testing.T) {
	h := NewHub(Config{}, testLogger())
	rt := openRuntime(t, h, "m1")
	_ = rt.Call(context.Background(), "create", map[string]any{"zoom": 3})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := h.Stream(w, r, "m1", nil); err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET stream error = %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Errorf("Content-Type = %q", ct)
	}

	// The event may span several data lines.
	found := false
	var seen strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		seen.WriteString(scanner.Text())
		text := seen.String()
		if strings.Contains(text, CallEvent) && strings.Contains(text, "method") && strings.Contains(text, "create") {
			found = true
			break
		}
	}
	if !found {
		t.Fatal("stream did not carry the queued create call")
	}

	deadline := time.Now().Add(time.Second)
	for h.SessionCount() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if h.SessionCount() != 1 {
		t.Errorf("SessionCount() = %d, want 1", h.SessionCount())
	}

	// A second client is turned away while the first is attached.
	second, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("second GET error = %v", err)
	}
	second.Body.Close()
	if second.StatusCode != http.StatusConflict {
		t.Errorf("second attach status = %d, want %d", second.StatusCode, http.StatusConflict)
	}
}

func TestHubStreamUnknownMap(t *testing.T) {
	h := NewHub(Config{}, testLogger())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	if err := h.Stream(rec, req, "ghost", nil); !errors.Is(err, domain.ErrMapNotFound) {
		t.Errorf("expected ErrMapNotFound, got %v", err)
	}
}

// readCalls scans an SSE body until call events for all methods showed up.
func readCalls(t *testing.T, body io.Reader, methods ...string) bool {
	t.Helper()
	var seen strings.Builder
	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		seen.WriteString(scanner.Text())
		all := true
		for _, method := range methods {
			if !strings.Contains(seen.String(), `"method":"`+method+`"`) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

func waitDetached(t *testing.T, h *Hub) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for h.SessionCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if h.SessionCount() != 0 {
		t.Fatal("first stream did not detach")
	}
}

func TestHubStreamResyncsOnReattach(t *testing.T) {
	h := NewHub(Config{}, testLogger())
	rt := openRuntime(t, h, "m1")
	_ = rt.Call(context.Background(), "create", map[string]any{"zoom": 3})
	_ = rt.Call(context.Background(), "addMarker", map[string]any{"id": "a"})

	var resyncs atomic.Int32
	resync := func(ctx context.Context) error {
		resyncs.Add(1)
		if err := rt.Call(ctx, "create", map[string]any{"zoom": 3}); err != nil {
			return err
		}
		return rt.Call(ctx, "addMarker", map[string]any{"id": "a"})
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := h.Stream(w, r, "m1", resync); err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
		}
	}))
	defer srv.Close()

	attach := func() (*http.Response, context.CancelFunc) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			cancel()
			t.Fatalf("GET stream error = %v", err)
		}
		return resp, cancel
	}

	first, cancelFirst := attach()
	if !readCalls(t, first.Body, "create", "addMarker") {
		t.Fatal("first stream did not carry the queued calls")
	}
	if n := resyncs.Load(); n != 0 {
		t.Errorf("resync ran %d times on the first attach", n)
	}
	cancelFirst()
	first.Body.Close()
	waitDetached(t, h)

	second, cancelSecond := attach()
	defer cancelSecond()
	defer second.Body.Close()

	if !readCalls(t, second.Body, "create", "addMarker") {
		t.Fatal("second stream did not replay the map")
	}
	if n := resyncs.Load(); n != 1 {
		t.Errorf("resync ran %d times, want 1", n)
	}
}

// brokenWriter accepts the SSE headers but fails every body write.
type brokenWriter struct {
	*httptest.ResponseRecorder
}

func (brokenWriter) Write([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestHubStreamRequeuesFailedPush(t *testing.T) {
	h := NewHub(Config{}, testLogger())
	rt := openRuntime(t, h, "m1")
	_ = rt.Call(context.Background(), "create", map[string]any{"zoom": 3})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if err := h.Stream(brokenWriter{httptest.NewRecorder()}, req, "m1", nil); err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	if len(rt.session.outbox) != 0 {
		t.Fatal("envelope should have left the outbox")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	rec := httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
	if err := h.Stream(rec, req, "m1", nil); err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"method":"create"`) {
		t.Errorf("failed envelope was not sent again, body = %q", rec.Body.String())
	}
}
