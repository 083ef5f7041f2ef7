package http //nolint:revive // package name conflicts with stdlib but is acceptable in this context

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/jobrunner/leafsync/internal/domain"
	"github.com/jobrunner/leafsync/internal/ports/input"
)

// CreateMapRequest is the body of POST /api/v1/maps.
type CreateMapRequest struct {
	Options *domain.MapOptions `json:"options,omitempty"`
	Preset  string             `json:"preset,omitempty"`
}

// MapResponse describes a map and where its browser side lives.
type MapResponse struct {
	domain.MapInfo
	Stream string `json:"stream"`
	Page   string `json:"page,omitempty"`
}

// handleHealth returns detailed health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	details := s.deps.Health.GetHealthDetails(r.Context())

	status := http.StatusOK
	if !details.Healthy {
		status = http.StatusServiceUnavailable
	}

	s.writeJSON(w, status, map[string]any{
		"status":           boolToStatus(details.Healthy),
		"ready":            details.Ready,
		"maps_active":      details.MapsActive,
		"clients_attached": details.ClientsAttached,
		"presets_loaded":   details.PresetsLoaded,
		"components":       details.Components,
	})
}

// handleLiveness returns liveness status.
func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health.IsHealthy(r.Context()) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	} else {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
	}
}

// handleReadiness returns readiness status.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health.IsReady(r.Context()) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	} else {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
	}
}

// handleListMaps returns all live maps.
func (s *Server) handleListMaps(w http.ResponseWriter, r *http.Request) {
	maps, err := s.deps.Maps.ListMaps(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	response := make([]MapResponse, len(maps))
	for i, info := range maps {
		response[i] = s.mapResponse(info)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"maps":  response,
		"count": len(response),
	})
}

// handleCreateMap creates a map, optionally from a preset.
func (s *Server) handleCreateMap(w http.ResponseWriter, r *http.Request) {
	var req CreateMapRequest
	if err := decodeBody(r, &req, true); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	m, err := s.deps.Maps.CreateMap(r.Context(), req.Options, req.Preset)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	resp := s.mapResponse(m.Info())
	w.Header().Set("Location", "/api/v1/maps/"+m.ID())
	s.writeJSON(w, http.StatusCreated, resp)
}

// handleGetMap returns one map.
func (s *Server) handleGetMap(w http.ResponseWriter, r *http.Request) {
	m, ok := s.mapFor(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, s.mapResponse(m.Info()))
}

// handleDisposeMap disposes a map.
func (s *Server) handleDisposeMap(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Maps.DisposeMap(r.Context(), mux.Vars(r)["mapId"]); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleFlush waits until every queued runtime call of the map completed.
func (s *Server) handleFlush(w http.ResponseWriter, r *http.Request) {
	m, ok := s.mapFor(w, r)
	if !ok {
		return
	}
	if err := m.Flush(r.Context()); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListPresets returns the loaded presets.
func (s *Server) handleListPresets(w http.ResponseWriter, r *http.Request) {
	presets, err := s.deps.Presets.ListPresets(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	response := make([]map[string]any, len(presets))
	for i := range presets {
		response[i] = presetSummary(&presets[i])
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"presets": response,
		"count":   len(response),
	})
}

// handleGetPreset returns one preset with its layer documents.
func (s *Server) handleGetPreset(w http.ResponseWriter, r *http.Request) {
	p, err := s.deps.Presets.GetPreset(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, p)
}

// handleSync handles the preset sync trigger endpoint.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.Sync.TriggerSync(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrRateLimited) {
			w.Header().Set("Retry-After", "30")
			s.writeError(w, http.StatusTooManyRequests, "Rate limit exceeded. Try again in 30 seconds.")
			return
		}
		s.writeDomainError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

// handleListTilesets returns the MBTiles archives being served.
func (s *Server) handleListTilesets(w http.ResponseWriter, r *http.Request) {
	sets, err := s.deps.Tiles.List(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	response := make([]map[string]any, len(sets))
	for i, ts := range sets {
		response[i] = map[string]any{
			"tileset":     ts,
			"urlTemplate": "/tiles/" + ts.Name + "/{z}/{x}/{y}",
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"tilesets": response,
		"count":    len(response),
	})
}

// handleTile serves one tile in XYZ addressing.
func (s *Server) handleTile(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	name := vars["name"]

	var coords [3]int
	for i, key := range []string{"z", "x", "y"} {
		v, err := strconv.Atoi(vars[key])
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid tile coordinate "+key)
			return
		}
		coords[i] = v
	}

	ts, err := s.deps.Tiles.Get(r.Context(), name)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	data, err := s.deps.Tiles.Tile(r.Context(), name, coords[0], coords[1], coords[2])
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", ts.ContentType())
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if ts.Format == "pbf" {
		w.Header().Set("Content-Encoding", "gzip")
	}
	_, _ = w.Write(data)
}

// mapFor resolves the {mapId} route variable. It writes the error response
// itself and reports whether the handler should continue.
func (s *Server) mapFor(w http.ResponseWriter, r *http.Request) (input.MapController, bool) {
	m, err := s.deps.Maps.GetMap(r.Context(), mux.Vars(r)["mapId"])
	if err != nil {
		s.writeDomainError(w, r, err)
		return nil, false
	}
	return m, true
}

func (s *Server) mapResponse(info domain.MapInfo) MapResponse {
	resp := MapResponse{
		MapInfo: info,
		Stream:  "/api/v1/maps/" + info.ID + "/stream",
	}
	if s.config.FrontendEnabled {
		resp.Page = "/maps/" + info.ID
	}
	return resp
}

func presetSummary(p *domain.Preset) map[string]any {
	return map[string]any{
		"name":        p.Name,
		"description": p.Description,
		"key":         p.Key,
		"layers":      len(p.Layers),
		"markers":     len(p.Markers),
		"loaded_at":   p.LoadedAt,
	}
}
