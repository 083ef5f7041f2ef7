package http //nolint:revive // package name conflicts with stdlib but is acceptable in this context

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/jobrunner/leafsync/internal/domain"
	"github.com/jobrunner/leafsync/internal/ports/input"
)

const markersCollection = "markers"

// MoveRequest is the body of the move endpoints.
type MoveRequest struct {
	To int `json:"to"`
}

// ContentRequest is the body of the popup and tooltip endpoints. A null
// content clears it in the browser.
type ContentRequest struct {
	Content *string `json:"content"`
}

// StyleRequest is the body of the GeoJSON feature style endpoint.
type StyleRequest struct {
	Colours [][]string `json:"colours"`
}

// handleListCollection returns the layer documents of a collection.
func (s *Server) handleListCollection(w http.ResponseWriter, r *http.Request) {
	m, ok := s.mapFor(w, r)
	if !ok {
		return
	}

	var layers []domain.Layer
	if isMarkers(r) {
		for _, mk := range m.Markers() {
			layers = append(layers, mk)
		}
	} else {
		layers = m.Layers()
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"layers": domain.LayerDocuments(layers),
		"count":  len(layers),
	})
}

// handleAddToCollection appends a layer document to a collection.
func (s *Server) handleAddToCollection(w http.ResponseWriter, r *http.Request) {
	m, ok := s.mapFor(w, r)
	if !ok {
		return
	}
	layer, err := decodeLayerBody(r)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	if isMarkers(r) {
		mk, err := asMarker(layer)
		if err == nil {
			err = m.AddMarker(mk)
		}
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
	} else if err := m.AddLayer(layer); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, domain.LayerDocument{Layer: layer})
}

// handleRemoveFromCollection removes the first entry with the given id.
func (s *Server) handleRemoveFromCollection(w http.ResponseWriter, r *http.Request) {
	m, ok := s.mapFor(w, r)
	if !ok {
		return
	}
	layer, err := findInCollection(m, r)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	if mk, isMarker := layer.(*domain.Marker); isMarker && isMarkers(r) {
		err = m.RemoveMarker(mk)
	} else {
		err = m.RemoveLayer(layer)
	}
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleReplaceInCollection replaces the entry at an index.
func (s *Server) handleReplaceInCollection(w http.ResponseWriter, r *http.Request) {
	m, ok := s.mapFor(w, r)
	if !ok {
		return
	}
	index, err := pathIndex(r)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	layer, err := decodeLayerBody(r)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	if isMarkers(r) {
		mk, err := asMarker(layer)
		if err == nil {
			err = m.ReplaceMarkerAt(index, mk)
		}
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
	} else if err := m.ReplaceLayerAt(index, layer); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, domain.LayerDocument{Layer: layer})
}

// handleMoveInCollection moves an entry to another index.
func (s *Server) handleMoveInCollection(w http.ResponseWriter, r *http.Request) {
	m, ok := s.mapFor(w, r)
	if !ok {
		return
	}
	from, err := pathIndex(r)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	var req MoveRequest
	if err := decodeBody(r, &req, false); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	if isMarkers(r) {
		err = m.MoveMarker(from, req.To)
	} else {
		err = m.MoveLayer(from, req.To)
	}
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleClearCollection removes every entry of a collection.
func (s *Server) handleClearCollection(w http.ResponseWriter, r *http.Request) {
	m, ok := s.mapFor(w, r)
	if !ok {
		return
	}

	var err error
	if isMarkers(r) {
		err = m.ClearMarkers()
	} else {
		err = m.ClearLayers()
	}
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAddMarkers adds markers in bulk without tracking them.
func (s *Server) handleAddMarkers(w http.ResponseWriter, r *http.Request) {
	m, ok := s.mapFor(w, r)
	if !ok {
		return
	}
	var docs []domain.LayerDocument
	if err := decodeBody(r, &docs, false); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	markers := make([]*domain.Marker, 0, len(docs))
	for _, d := range docs {
		mk, err := asMarker(d.Layer)
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		markers = append(markers, mk)
	}

	if err := m.AddMarkers(markers); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]int{"count": len(markers)})
}

// handleUpdatePopup sends new popup content for a layer.
func (s *Server) handleUpdatePopup(w http.ResponseWriter, r *http.Request) {
	s.updateContent(w, r, func(m input.MapController, l domain.Layer, content *string) error {
		b := l.Base()
		if b.Popup == nil {
			b.Popup = &domain.Popup{}
		}
		b.Popup.Content = content
		return m.UpdatePopupContent(l)
	})
}

// handleUpdateTooltip sends new tooltip content for a layer.
func (s *Server) handleUpdateTooltip(w http.ResponseWriter, r *http.Request) {
	s.updateContent(w, r, func(m input.MapController, l domain.Layer, content *string) error {
		b := l.Base()
		if b.Tooltip == nil {
			b.Tooltip = &domain.Tooltip{}
		}
		b.Tooltip.Content = content
		return m.UpdateTooltipContent(l)
	})
}

// updateContent applies a popup or tooltip change to a copy of the layer,
// so the tracked layer is never written while calls referencing it may still
// be on their way to the browser.
func (s *Server) updateContent(w http.ResponseWriter, r *http.Request, apply func(input.MapController, domain.Layer, *string) error) {
	m, ok := s.mapFor(w, r)
	if !ok {
		return
	}
	var req ContentRequest
	if err := decodeBody(r, &req, false); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	layer, err := trackedCopy(m, mux.Vars(r)["layerId"])
	if err == nil {
		err = apply(m, layer, req.Content)
	}
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// handleUpdateShape sends the new geometry of a tracked vector shape. The
// body is a layer document of the same kind.
func (s *Server) handleUpdateShape(w http.ResponseWriter, r *http.Request) {
	m, ok := s.mapFor(w, r)
	if !ok {
		return
	}
	layer, err := s.decodeReplacement(m, r)
	if err == nil {
		err = m.UpdateShape(layer)
	}
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// handleUpdateHeat sends the new option payload of a tracked heat layer.
func (s *Server) handleUpdateHeat(w http.ResponseWriter, r *http.Request) {
	m, ok := s.mapFor(w, r)
	if !ok {
		return
	}
	layer, err := s.decodeReplacement(m, r)
	if err == nil {
		heat, isHeat := layer.(*domain.HeatLayer)
		if !isHeat {
			err = fmt.Errorf("layer %s is a %s layer: %w", layer.LayerID(), layer.Kind(), domain.ErrNotSupported)
		} else {
			err = m.UpdateHeatOptions(heat)
		}
	}
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// handleStyleFeatures colours the features of a GeoJSON layer.
func (s *Server) handleStyleFeatures(w http.ResponseWriter, r *http.Request) {
	m, ok := s.mapFor(w, r)
	if !ok {
		return
	}
	var req StyleRequest
	if err := decodeBody(r, &req, false); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	for _, pair := range req.Colours {
		if len(pair) != 2 {
			s.writeError(w, http.StatusBadRequest, "each colour entry must be a [key, colour] pair")
			return
		}
	}

	if err := m.StyleGeoJSONLayerFeatures(mux.Vars(r)["layerId"], req.Colours); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// decodeReplacement decodes a layer document that replaces the payload of
// the tracked layer named in the path. The kinds must match.
func (s *Server) decodeReplacement(m input.MapController, r *http.Request) (domain.Layer, error) {
	id := mux.Vars(r)["layerId"]
	tracked, found := m.FindLayer(id)
	if !found {
		return nil, domain.ErrLayerNotFound
	}
	layer, err := decodeLayerBody(r)
	if err != nil {
		return nil, err
	}
	if layer.Kind() != tracked.Kind() {
		return nil, &domain.ValidationError{
			Field:      "kind",
			Value:      layer.Kind(),
			Constraint: string(tracked.Kind()),
			Message:    fmt.Sprintf("layer %s is a %s layer", id, tracked.Kind()),
		}
	}
	layer.Base().ID = id
	layer.Base().ClusterID = tracked.Cluster()
	return layer, nil
}

func decodeLayerBody(r *http.Request) (domain.Layer, error) {
	data, err := readBody(r)
	if err != nil {
		return nil, err
	}
	return domain.DecodeLayer(data)
}

// trackedCopy returns a deep copy of a tracked layer.
func trackedCopy(m input.MapController, id string) (domain.Layer, error) {
	tracked, found := m.FindLayer(id)
	if !found {
		return nil, domain.ErrLayerNotFound
	}
	data, err := domain.MarshalLayer(tracked)
	if err != nil {
		return nil, err
	}
	return domain.DecodeLayer(data)
}

// findInCollection looks up the {layerId} entry in the addressed collection.
func findInCollection(m input.MapController, r *http.Request) (domain.Layer, error) {
	id := mux.Vars(r)["layerId"]
	if isMarkers(r) {
		for _, mk := range m.Markers() {
			if mk.ID == id {
				return mk, nil
			}
		}
		return nil, domain.ErrLayerNotFound
	}
	for _, l := range m.Layers() {
		if l.LayerID() == id {
			return l, nil
		}
	}
	return nil, domain.ErrLayerNotFound
}

func asMarker(layer domain.Layer) (*domain.Marker, error) {
	mk, ok := layer.(*domain.Marker)
	if !ok {
		return nil, &domain.ValidationError{
			Field:      "kind",
			Value:      layer.Kind(),
			Constraint: string(domain.KindMarker),
			Message:    "the markers collection only holds markers",
		}
	}
	return mk, nil
}

func isMarkers(r *http.Request) bool {
	return mux.Vars(r)["collection"] == markersCollection
}

func pathIndex(r *http.Request) (int, error) {
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		return 0, &domain.ValidationError{Field: "index", Value: mux.Vars(r)["index"], Message: "index must be a number"}
	}
	return index, nil
}
