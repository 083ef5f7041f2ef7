package http //nolint:revive // package name conflicts with stdlib but is acceptable in this context

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/jobrunner/leafsync/internal/adapters/browser"
	"github.com/jobrunner/leafsync/internal/domain"
)

// handleStream attaches the browser to the map's call stream. It blocks
// until the client disconnects or the map is disposed. A stream that
// replaces an earlier one gets the whole map replayed.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	m, ok := s.mapFor(w, r)
	if !ok {
		return
	}
	if err := s.deps.Hub.Stream(w, r, m.ID(), m.Resync); err != nil {
		// Stream only fails before the first byte is written.
		s.writeDomainError(w, r, err)
	}
}

// handleInitialized is posted by the page once the Leaflet map exists.
func (s *Server) handleInitialized(w http.ResponseWriter, r *http.Request) {
	m, ok := s.mapFor(w, r)
	if !ok {
		return
	}
	m.MarkInitialized()
	w.WriteHeader(http.StatusNoContent)
}

// handleEvent relays a Leaflet event to the map's listeners.
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	m, ok := s.mapFor(w, r)
	if !ok {
		return
	}
	name, err := domain.ParseEventName(mux.Vars(r)["event"])
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	var event domain.Event
	if err := decodeBody(r, &event, true); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	event.Name = name

	if err := m.Notify(r.Context(), event); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// handleReply delivers the result of a query call.
func (s *Server) handleReply(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var reply browser.Reply
	if err := decodeBody(r, &reply, true); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	if err := s.deps.Hub.Reply(vars["mapId"], vars["callId"], reply); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
