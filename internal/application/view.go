package application

import (
	"context"

	"github.com/jobrunner/leafsync/internal/domain"
)

// UpdatePopupContent sends the layer's current popup content.
func (m *Map) UpdatePopupContent(layer domain.Layer) error {
	if domain.IsNilLayer(layer) {
		return domain.ErrNullArgument
	}
	return m.dispatch.detach(MethodUpdatePopupContent, layer.LayerID(), layer.LayerID(), layer.PopupContent())
}

// UpdateTooltipContent sends the layer's current tooltip content.
func (m *Map) UpdateTooltipContent(layer domain.Layer) error {
	if domain.IsNilLayer(layer) {
		return domain.ErrNullArgument
	}
	return m.dispatch.detach(MethodUpdateTooltipContent, layer.LayerID(), layer.LayerID(), layer.TooltipContent())
}

// UpdateShape sends the full current geometry of a vector shape.
func (m *Map) UpdateShape(layer domain.Layer) error {
	if domain.IsNilLayer(layer) {
		return domain.ErrNullArgument
	}
	method, err := updateShapeMethod(layer)
	if err != nil {
		return err
	}
	return m.dispatch.detach(method, layer.LayerID(), layer)
}

// UpdateHeatOptions sends the full option payload of a heat layer.
func (m *Map) UpdateHeatOptions(layer *domain.HeatLayer) error {
	if layer == nil {
		return domain.ErrNullArgument
	}
	return m.dispatch.detach(MethodUpdateHeatOptions, layer.ID, layer)
}

// StyleGeoJSONLayerFeatures colours the features of a GeoJSON layer. Each
// entry of colourMap pairs a feature key with a colour.
func (m *Map) StyleGeoJSONLayerFeatures(layerID string, colourMap [][]string) error {
	if layerID == "" {
		return domain.ErrNullArgument
	}
	return m.dispatch.detach(MethodStyleGeoJSONLayerFeatures, layerID, layerID, colourMap)
}

// AddMarkers adds markers in bulk. The collections are not touched and no
// handles are registered.
func (m *Map) AddMarkers(markers []*domain.Marker) error {
	if markers == nil {
		return domain.ErrNullArgument
	}
	return m.dispatch.detach(MethodAddMarkers, "", markers)
}

// PanTo pans the runtime view to position.
func (m *Map) PanTo(position domain.LatLng, opts domain.PanOptions) error {
	return m.dispatch.detach(MethodPanTo, "", position, opts.Animate, opts.Duration, opts.EaseLinearity, opts.NoMoveStart)
}

// FlyTo animates the view to position at zoom.
func (m *Map) FlyTo(position domain.LatLng, zoom float64) error {
	return m.dispatch.detach(MethodFlyTo, "", position, zoom)
}

// FlyToBounds animates the view to bounds.
func (m *Map) FlyToBounds(bounds domain.LatLngBounds, zoom float64) error {
	return m.dispatch.detach(MethodFlyToBounds, "", bounds.SouthWest, bounds.NorthEast, zoom)
}

// FitBounds fits the view to bounds.
func (m *Map) FitBounds(bounds domain.LatLngBounds, opts domain.FitBoundsOptions) error {
	return m.dispatch.detach(MethodFitBounds, "", bounds.SouthWest, bounds.NorthEast, opts.Padding, opts.MaxZoom)
}

// SetMaxBounds restricts the view to bounds. The bounds become part of the
// map options, and a cached center outside them moves to their center, as
// the runtime pans back inside.
func (m *Map) SetMaxBounds(bounds domain.LatLngBounds) error {
	if err := m.dispatch.detach(MethodSetMaxBounds, "", bounds); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.options.MaxBounds = &bounds
	if !bounds.Contains(m.options.Center) {
		m.options.Center = bounds.Center()
	}
	return nil
}

// InvalidateSize makes the runtime re-measure its container.
func (m *Map) InvalidateSize(delayMillis int) error {
	return m.dispatch.detach(MethodInvalidateSize, "", delayMillis)
}

// DisableInteraction disables dragging, zooming and keyboard handlers.
func (m *Map) DisableInteraction() error {
	return m.dispatch.detach(MethodDisableInteraction, "")
}

// EnableInteraction re-enables user interaction.
func (m *Map) EnableInteraction() error {
	return m.dispatch.detach(MethodEnableInteraction, "")
}

// ZoomIn zooms in by one step, or three when shiftKey is set.
func (m *Map) ZoomIn(ctx context.Context, shiftKey bool) error {
	return m.dispatch.await(ctx, MethodZoomIn, "", nil, zoomModifier{ShiftKey: shiftKey})
}

// ZoomOut zooms out by one step, or three when shiftKey is set.
func (m *Map) ZoomOut(ctx context.Context, shiftKey bool) error {
	return m.dispatch.await(ctx, MethodZoomOut, "", nil, zoomModifier{ShiftKey: shiftKey})
}

type zoomModifier struct {
	ShiftKey bool `json:"shiftKey"`
}

// GetCenter asks the runtime for the current center.
func (m *Map) GetCenter(ctx context.Context) (domain.LatLng, error) {
	var center domain.LatLng
	err := m.dispatch.await(ctx, MethodGetCenter, "", &center)
	return center, err
}

// GetZoom asks the runtime for the current zoom level.
func (m *Map) GetZoom(ctx context.Context) (float64, error) {
	var zoom float64
	err := m.dispatch.await(ctx, MethodGetZoom, "", &zoom)
	return zoom, err
}

// GetBounds asks the runtime for the visible bounds.
func (m *Map) GetBounds(ctx context.Context) (domain.LatLngBounds, error) {
	var bounds domain.LatLngBounds
	err := m.dispatch.await(ctx, MethodGetBounds, "", &bounds)
	return bounds, err
}

// GetLayerBounds asks the runtime for the bounds of one layer.
func (m *Map) GetLayerBounds(ctx context.Context, layerID string) (domain.LatLngBounds, error) {
	var bounds domain.LatLngBounds
	if layerID == "" {
		return bounds, domain.ErrNullArgument
	}
	err := m.dispatch.await(ctx, MethodGetLayerBounds, layerID, &bounds, layerID)
	return bounds, err
}
