// Package browser implements the map runtime port for Leaflet maps hosted in
// a browser. Calls are pushed to the page over a Datastar SSE stream and
// query replies come back as plain HTTP posts.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/jobrunner/leafsync/internal/domain"
	"github.com/jobrunner/leafsync/internal/ports/output"
)

// CallEvent is the DOM event the host page listens for.
const CallEvent = "leafsync-call"

// ErrSessionBusy is returned when a second stream attaches to a map.
var ErrSessionBusy = fmt.Errorf("map already has an attached client: %w", domain.ErrUnavailable)

// Config holds configuration for the hub.
type Config struct {
	// OutboxSize bounds the calls buffered for a map before a client attaches.
	OutboxSize int
	// Heartbeat is the interval of keep-alive signal patches. Zero disables them.
	Heartbeat time.Duration
}

// Envelope is one call sent to the browser. The browser only posts a reply
// when Await is set.
type Envelope struct {
	ID     string `json:"id"`
	Method string `json:"method"`
	Args   []any  `json:"args"`
	Await  bool   `json:"await,omitempty"`
}

// Reply is the browser's answer to a query envelope.
type Reply struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Hub owns the browser sessions of all maps. It implements
// output.RuntimeProvider.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*session
	cfg      Config
	logger   *slog.Logger
}

var _ output.RuntimeProvider = (*Hub)(nil)

// NewHub creates a new hub.
func NewHub(cfg Config, logger *slog.Logger) *Hub {
	if cfg.OutboxSize <= 0 {
		cfg.OutboxSize = 1024
	}
	return &Hub{
		sessions: make(map[string]*session),
		cfg:      cfg,
		logger:   logger,
	}
}

// Open implements output.RuntimeProvider.
func (h *Hub) Open(_ context.Context, mapID string) (output.MapRuntime, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[mapID]
	if !ok {
		s = newSession(mapID, h.cfg.OutboxSize)
		h.sessions[mapID] = s
	}
	return &Runtime{session: s, logger: h.logger}, nil
}

// Close implements output.RuntimeProvider. Pending queries fail with
// domain.ErrRuntimeUnavailable.
func (h *Hub) Close(mapID string) {
	h.mu.Lock()
	s, ok := h.sessions[mapID]
	delete(h.sessions, mapID)
	h.mu.Unlock()

	if ok {
		s.close()
		h.logger.Debug("browser session closed", "map", mapID)
	}
}

// SessionCount returns the number of attached browser streams.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, s := range h.sessions {
		if s.isAttached() {
			n++
		}
	}
	return n
}

// Reply delivers the browser's answer to a pending query.
func (h *Hub) Reply(mapID, callID string, reply Reply) error {
	s, err := h.session(mapID)
	if err != nil {
		return err
	}
	return s.resolve(callID, reply)
}

// Stream attaches the request as the map's SSE stream and forwards queued
// calls until the client goes away or the map is closed. When an earlier
// stream of the map was attached before, resync runs once the new stream is
// up so the fresh page can rebuild the map.
func (h *Hub) Stream(w http.ResponseWriter, r *http.Request, mapID string, resync func(context.Context) error) error {
	s, err := h.session(mapID)
	if err != nil {
		return err
	}
	resumed, ok := s.attach()
	if !ok {
		return ErrSessionBusy
	}
	defer s.detach()

	sse := datastar.NewSSE(w, r)
	logger := h.logger.With("map", mapID)
	logger.Info("browser attached", "resumed", resumed)
	defer logger.Info("browser detached")

	pending := s.takeRetry()
	for i, env := range pending {
		if err := sse.DispatchCustomEvent(CallEvent, env); err != nil {
			for _, rest := range pending[i:] {
				s.requeue(rest)
			}
			logger.Warn("failed to push call", "method", env.Method, "error", err)
			return nil
		}
	}

	if resumed && resync != nil {
		if err := resync(r.Context()); err != nil {
			logger.Warn("failed to resync map", "error", err)
		}
	}

	var heartbeat <-chan time.Time
	if h.cfg.Heartbeat > 0 {
		ticker := time.NewTicker(h.cfg.Heartbeat)
		defer ticker.Stop()
		heartbeat = ticker.C
	}

	for {
		select {
		case <-r.Context().Done():
			return nil
		case <-s.done:
			// Calls queued before close, such as dispose, still go out.
			for {
				select {
				case env := <-s.outbox:
					if err := sse.DispatchCustomEvent(CallEvent, env); err != nil {
						return nil
					}
				default:
					return nil
				}
			}
		case env := <-s.outbox:
			if err := sse.DispatchCustomEvent(CallEvent, env); err != nil {
				s.requeue(env)
				logger.Warn("failed to push call", "method", env.Method, "error", err)
				return nil
			}
		case t := <-heartbeat:
			if err := sse.MarshalAndPatchSignals(map[string]any{"leafsyncHeartbeat": t.Unix()}); err != nil {
				return nil
			}
		}
	}
}

func (h *Hub) session(mapID string) (*session, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s, ok := h.sessions[mapID]
	if !ok {
		return nil, domain.ErrMapNotFound
	}
	return s, nil
}

// Runtime is the output.MapRuntime of one browser-hosted map.
type Runtime struct {
	session *session
	logger  *slog.Logger
}

// Call implements output.MapRuntime. It returns once the envelope is
// queued for the browser.
func (r *Runtime) Call(_ context.Context, method string, args ...any) error {
	env := Envelope{ID: uuid.NewString(), Method: method, Args: normalizeArgs(args)}
	return r.session.enqueue(env)
}

// Query implements output.MapRuntime. It waits for the browser to post a
// reply for the call.
func (r *Runtime) Query(ctx context.Context, method string, result any, args ...any) error {
	env := Envelope{ID: uuid.NewString(), Method: method, Args: normalizeArgs(args), Await: true}

	ch := r.session.expect(env.ID)
	defer r.session.forget(env.ID)

	if err := r.session.enqueue(env); err != nil {
		return err
	}

	select {
	case reply := <-ch:
		if reply.Error != "" {
			return &domain.RemoteError{Message: reply.Error}
		}
		if result == nil || len(reply.Result) == 0 {
			return nil
		}
		if err := json.Unmarshal(reply.Result, result); err != nil {
			return fmt.Errorf("decoding %s reply: %w", method, err)
		}
		return nil
	case <-r.session.done:
		return domain.ErrRuntimeUnavailable
	case <-ctx.Done():
		return ctx.Err()
	}
}

func normalizeArgs(args []any) []any {
	if args == nil {
		return []any{}
	}
	return args
}
