package browser

import (
	"fmt"
	"sync"

	"github.com/jobrunner/leafsync/internal/domain"
)

// session is the transport state of one map: the outbox of calls not yet
// pushed and the queries waiting for a reply.
type session struct {
	mapID  string
	outbox chan Envelope
	done   chan struct{}

	mu       sync.Mutex
	pending  map[string]chan Reply
	retry    []Envelope
	attaches int
	attached bool
	closed   bool
}

func newSession(mapID string, outboxSize int) *session {
	return &session{
		mapID:   mapID,
		outbox:  make(chan Envelope, outboxSize),
		done:    make(chan struct{}),
		pending: make(map[string]chan Reply),
	}
}

func (s *session) enqueue(env Envelope) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return domain.ErrRuntimeUnavailable
	}

	select {
	case s.outbox <- env:
		return nil
	default:
		return fmt.Errorf("outbox of map %s is full: %w", s.mapID, domain.ErrRuntimeUnavailable)
	}
}

func (s *session) expect(callID string) <-chan Reply {
	ch := make(chan Reply, 1)
	s.mu.Lock()
	s.pending[callID] = ch
	s.mu.Unlock()
	return ch
}

func (s *session) forget(callID string) {
	s.mu.Lock()
	delete(s.pending, callID)
	s.mu.Unlock()
}

func (s *session) resolve(callID string, reply Reply) error {
	s.mu.Lock()
	ch, ok := s.pending[callID]
	delete(s.pending, callID)
	s.mu.Unlock()

	if !ok {
		return domain.ErrCallNotFound
	}
	ch <- reply
	return nil
}

// requeue puts an envelope that could not be pushed back in front of the
// outbox. The next attached stream sends it first.
func (s *session) requeue(env Envelope) {
	s.mu.Lock()
	s.retry = append(s.retry, env)
	s.mu.Unlock()
}

func (s *session) takeRetry() []Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	envs := s.retry
	s.retry = nil
	return envs
}

// attach marks the session as streaming. resumed is true when an earlier
// stream was attached before, meaning the browser lost its runtime state.
func (s *session) attach() (resumed, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attached || s.closed {
		return false, false
	}
	s.attached = true
	s.attaches++
	return s.attaches > 1, true
}

func (s *session) detach() {
	s.mu.Lock()
	s.attached = false
	s.mu.Unlock()
}

func (s *session) isAttached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attached
}

func (s *session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
}
