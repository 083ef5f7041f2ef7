// Package input defines the primary/driving ports of the application.
package input

import (
	"context"

	"github.com/jobrunner/leafsync/internal/domain"
)

// MapController is one live map: its declared view, its two layer
// collections and the passthrough operations on the runtime.
type MapController interface {
	ID() string
	Info() domain.MapInfo

	// MarkInitialized flips the one-shot initialized flag.
	MarkInitialized()
	Initialized() bool

	Center() domain.LatLng
	SetCenter(center domain.LatLng)
	Zoom() float64
	SetZoom(zoom float64)

	AddLayer(layer domain.Layer) error
	RemoveLayer(layer domain.Layer) error
	ReplaceLayerAt(index int, layer domain.Layer) error
	MoveLayer(from, to int) error
	ClearLayers() error
	Layers() []domain.Layer

	AddMarker(marker *domain.Marker) error
	RemoveMarker(marker *domain.Marker) error
	ReplaceMarkerAt(index int, marker *domain.Marker) error
	MoveMarker(from, to int) error
	ClearMarkers() error
	Markers() []*domain.Marker

	// FindLayer looks a layer up by id in both collections.
	FindLayer(id string) (domain.Layer, bool)

	UpdatePopupContent(layer domain.Layer) error
	UpdateTooltipContent(layer domain.Layer) error
	UpdateShape(layer domain.Layer) error
	UpdateHeatOptions(layer *domain.HeatLayer) error
	StyleGeoJSONLayerFeatures(layerID string, colourMap [][]string) error
	AddMarkers(markers []*domain.Marker) error

	PanTo(position domain.LatLng, opts domain.PanOptions) error
	FlyTo(position domain.LatLng, zoom float64) error
	FlyToBounds(bounds domain.LatLngBounds, zoom float64) error
	FitBounds(bounds domain.LatLngBounds, opts domain.FitBoundsOptions) error
	SetMaxBounds(bounds domain.LatLngBounds) error
	InvalidateSize(delayMillis int) error
	DisableInteraction() error
	EnableInteraction() error
	ZoomIn(ctx context.Context, shiftKey bool) error
	ZoomOut(ctx context.Context, shiftKey bool) error

	GetCenter(ctx context.Context) (domain.LatLng, error)
	GetZoom(ctx context.Context) (float64, error)
	GetBounds(ctx context.Context) (domain.LatLngBounds, error)
	GetLayerBounds(ctx context.Context, layerID string) (domain.LatLngBounds, error)

	// On registers an event listener and returns its unregister func.
	On(name domain.EventName, fn func(domain.Event)) func()
	// Notify relays a runtime event to the registered listeners.
	Notify(ctx context.Context, event domain.Event) error

	// Flush waits until every queued runtime call has completed.
	Flush(ctx context.Context) error
	// Resync replays the map into a runtime that lost its state.
	Resync(ctx context.Context) error
}

// MapService manages the set of live maps.
type MapService interface {
	// CreateMap creates a map, optionally seeded from a named preset. Nil
	// options fall back to the preset's options.
	CreateMap(ctx context.Context, opts *domain.MapOptions, preset string) (MapController, error)

	// GetMap returns a live map by id.
	GetMap(ctx context.Context, id string) (MapController, error)

	// ListMaps returns a summary of every live map.
	ListMaps(ctx context.Context) ([]domain.MapInfo, error)

	// DisposeMap disposes a map and forgets it.
	DisposeMap(ctx context.Context, id string) error
}

// PresetService exposes the preset catalog.
type PresetService interface {
	// ListPresets returns all loaded presets.
	ListPresets(ctx context.Context) ([]domain.Preset, error)

	// GetPreset returns a preset by name.
	GetPreset(ctx context.Context, name string) (*domain.Preset, error)
}
