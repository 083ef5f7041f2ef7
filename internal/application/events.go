package application

import (
	"context"

	"github.com/jobrunner/leafsync/internal/domain"
)

// On registers fn for the named event and returns a func that unregisters
// it. Listeners run synchronously in registration order.
func (m *Map) On(name domain.EventName, fn func(domain.Event)) func() {
	return m.listenersFor(name).add(fn)
}

// Listeners returns the number of listeners registered for name.
func (m *Map) Listeners(name domain.EventName) int {
	return m.listenersFor(name).len()
}

func (m *Map) listenersFor(name domain.EventName) *listenerList[domain.Event] {
	m.eventMu.Lock()
	defer m.eventMu.Unlock()
	l, ok := m.eventListeners[name]
	if !ok {
		l = &listenerList[domain.Event]{}
		m.eventListeners[name] = l
	}
	return l
}

// Notify relays an event raised by the runtime. zoomend and moveend first
// refresh the cached zoom or center so listeners observe the new view; a
// failed refresh is dropped and the event is still relayed.
func (m *Map) Notify(ctx context.Context, event domain.Event) error {
	if _, err := domain.ParseEventName(string(event.Name)); err != nil {
		return err
	}

	switch event.Name {
	case domain.EventZoomEnd:
		m.refreshZoom(ctx)
	case domain.EventMoveEnd:
		m.refreshCenter(ctx)
	}

	m.metrics.IncEvents(string(event.Name))
	m.listenersFor(event.Name).emit(event)
	return nil
}

func (m *Map) refreshZoom(ctx context.Context) {
	zoom, err := m.GetZoom(ctx)
	if err != nil {
		m.logger.Debug("zoom refresh failed", "error", err)
		return
	}
	m.mu.Lock()
	m.options.Zoom = zoom
	m.mu.Unlock()
}

func (m *Map) refreshCenter(ctx context.Context) {
	center, err := m.GetCenter(ctx)
	if err != nil {
		m.logger.Debug("center refresh failed", "error", err)
		return
	}
	m.mu.Lock()
	m.options.Center = center
	m.mu.Unlock()
}
