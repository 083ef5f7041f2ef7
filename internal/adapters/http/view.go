package http //nolint:revive // package name conflicts with stdlib but is acceptable in this context

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/jobrunner/leafsync/internal/domain"
	"github.com/jobrunner/leafsync/internal/ports/input"
)

// ViewRequest is the body of POST /view/{op}. Each operation reads the
// fields it needs.
type ViewRequest struct {
	Position    *domain.LatLng           `json:"position,omitempty"`
	Bounds      *domain.LatLngBounds     `json:"bounds,omitempty"`
	Zoom        float64                  `json:"zoom"`
	Pan         *domain.PanOptions       `json:"pan,omitempty"`
	Fit         *domain.FitBoundsOptions `json:"fit,omitempty"`
	DelayMillis int                      `json:"delayMillis"`
	ShiftKey    bool                     `json:"shiftKey"`
}

// viewOps maps the {op} route variable to the map operation. Operations
// that wait for the browser get the request context.
var viewOps = map[string]func(r *http.Request, m input.MapController, req ViewRequest) error{
	"panTo": func(_ *http.Request, m input.MapController, req ViewRequest) error {
		if req.Position == nil {
			return missingField("position")
		}
		opts := domain.DefaultPanOptions()
		if req.Pan != nil {
			opts = *req.Pan
		}
		return m.PanTo(*req.Position, opts)
	},
	"flyTo": func(_ *http.Request, m input.MapController, req ViewRequest) error {
		if req.Position == nil {
			return missingField("position")
		}
		return m.FlyTo(*req.Position, req.Zoom)
	},
	"flyToBounds": func(_ *http.Request, m input.MapController, req ViewRequest) error {
		if req.Bounds == nil {
			return missingField("bounds")
		}
		return m.FlyToBounds(*req.Bounds, req.Zoom)
	},
	"fitBounds": func(_ *http.Request, m input.MapController, req ViewRequest) error {
		if req.Bounds == nil {
			return missingField("bounds")
		}
		var opts domain.FitBoundsOptions
		if req.Fit != nil {
			opts = *req.Fit
		}
		return m.FitBounds(*req.Bounds, opts)
	},
	"setMaxBounds": func(_ *http.Request, m input.MapController, req ViewRequest) error {
		if req.Bounds == nil {
			return missingField("bounds")
		}
		return m.SetMaxBounds(*req.Bounds)
	},
	"invalidateSize": func(_ *http.Request, m input.MapController, req ViewRequest) error {
		return m.InvalidateSize(req.DelayMillis)
	},
	"disableInteraction": func(_ *http.Request, m input.MapController, _ ViewRequest) error {
		return m.DisableInteraction()
	},
	"enableInteraction": func(_ *http.Request, m input.MapController, _ ViewRequest) error {
		return m.EnableInteraction()
	},
	"zoomIn": func(r *http.Request, m input.MapController, req ViewRequest) error {
		return m.ZoomIn(r.Context(), req.ShiftKey)
	},
	"zoomOut": func(r *http.Request, m input.MapController, req ViewRequest) error {
		return m.ZoomOut(r.Context(), req.ShiftKey)
	},
}

// handleSetCenter sets the declared center.
func (s *Server) handleSetCenter(w http.ResponseWriter, r *http.Request) {
	m, ok := s.mapFor(w, r)
	if !ok {
		return
	}
	var center domain.LatLng
	if err := decodeBody(r, &center, false); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if err := center.Validate(); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	m.SetCenter(center)
	s.writeJSON(w, http.StatusOK, m.Center())
}

// handleGetCenter returns the center. With ?source=runtime the browser is
// asked for its live value instead of the declared one.
func (s *Server) handleGetCenter(w http.ResponseWriter, r *http.Request) {
	m, ok := s.mapFor(w, r)
	if !ok {
		return
	}
	if !fromRuntime(r) {
		s.writeJSON(w, http.StatusOK, m.Center())
		return
	}

	center, err := m.GetCenter(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, center)
}

// handleSetZoom sets the declared zoom.
func (s *Server) handleSetZoom(w http.ResponseWriter, r *http.Request) {
	m, ok := s.mapFor(w, r)
	if !ok {
		return
	}
	var req struct {
		Zoom *float64 `json:"zoom"`
	}
	if err := decodeBody(r, &req, false); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if req.Zoom == nil {
		s.writeDomainError(w, r, missingField("zoom"))
		return
	}

	m.SetZoom(*req.Zoom)
	s.writeJSON(w, http.StatusOK, map[string]float64{"zoom": m.Zoom()})
}

// handleGetZoom returns the zoom, declared or live.
func (s *Server) handleGetZoom(w http.ResponseWriter, r *http.Request) {
	m, ok := s.mapFor(w, r)
	if !ok {
		return
	}
	zoom := m.Zoom()
	if fromRuntime(r) {
		var err error
		if zoom, err = m.GetZoom(r.Context()); err != nil {
			s.writeDomainError(w, r, err)
			return
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]float64{"zoom": zoom})
}

// handleGetBounds asks the browser for the visible bounds.
func (s *Server) handleGetBounds(w http.ResponseWriter, r *http.Request) {
	m, ok := s.mapFor(w, r)
	if !ok {
		return
	}
	bounds, err := m.GetBounds(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, bounds)
}

// handleLayerBounds asks the browser for the bounds of one layer.
func (s *Server) handleLayerBounds(w http.ResponseWriter, r *http.Request) {
	m, ok := s.mapFor(w, r)
	if !ok {
		return
	}
	bounds, err := m.GetLayerBounds(r.Context(), mux.Vars(r)["layerId"])
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, bounds)
}

// handleViewOp runs one of the view commands in viewOps.
func (s *Server) handleViewOp(w http.ResponseWriter, r *http.Request) {
	op := mux.Vars(r)["op"]
	fn, known := viewOps[op]
	if !known {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("unknown view operation %q", op))
		return
	}

	m, ok := s.mapFor(w, r)
	if !ok {
		return
	}
	var req ViewRequest
	if err := decodeBody(r, &req, true); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	if err := fn(r, m, req); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func fromRuntime(r *http.Request) bool {
	return r.URL.Query().Get("source") == "runtime"
}

func missingField(field string) error {
	return &domain.ValidationError{Field: field, Constraint: "required", Message: field + " is required"}
}
