package domain

import (
	"reflect"

	"github.com/google/uuid"
)

// LayerKind identifies a concrete layer variant.
type LayerKind string

// Supported layer kinds.
const (
	KindTile      LayerKind = "tile"
	KindMbTiles   LayerKind = "mbtiles"
	KindShapefile LayerKind = "shapefile"
	KindMarker    LayerKind = "marker"
	KindRectangle LayerKind = "rectangle"
	KindCircle    LayerKind = "circle"
	KindPolygon   LayerKind = "polygon"
	KindPolyline  LayerKind = "polyline"
	KindImage     LayerKind = "image"
	KindGeoJSON   LayerKind = "geojson"
	KindHeat      LayerKind = "heat"
)

// Layer is a map overlay materialized by the mapping runtime.
// The id never changes once the layer has been created.
type Layer interface {
	LayerID() string
	Kind() LayerKind
	// Cluster returns the cluster group id, or nil for a plain layer.
	Cluster() *int
	PopupContent() *string
	TooltipContent() *string
	Base() *BaseLayer
}

// Validator is implemented by layers that can check their own payload.
type Validator interface {
	Validate() error
}

// Popup is the popup bound to a layer.
type Popup struct {
	Content     *string `json:"content"`
	MaxWidth    int     `json:"maxWidth,omitempty"`
	MinWidth    int     `json:"minWidth,omitempty"`
	CloseButton *bool   `json:"closeButton,omitempty"`
}

// Tooltip is the tooltip bound to a layer.
type Tooltip struct {
	Content   *string `json:"content"`
	Direction string  `json:"direction,omitempty"`
	Permanent bool    `json:"permanent,omitempty"`
	Sticky    bool    `json:"sticky,omitempty"`
	Opacity   float64 `json:"opacity,omitempty"`
}

// BaseLayer holds the fields every layer variant shares.
type BaseLayer struct {
	ID        string   `json:"id"`
	ClusterID *int     `json:"clusterId,omitempty"`
	Popup     *Popup   `json:"popup,omitempty"`
	Tooltip   *Tooltip `json:"tooltip,omitempty"`
}

// NewBaseLayer returns a BaseLayer with a freshly generated id.
func NewBaseLayer() BaseLayer {
	return BaseLayer{ID: NewID()}
}

// NewID generates an opaque identifier for maps, layers and calls.
func NewID() string {
	return uuid.NewString()
}

// LayerID returns the layer id.
func (b *BaseLayer) LayerID() string { return b.ID }

// Base returns the shared layer fields.
func (b *BaseLayer) Base() *BaseLayer { return b }

// Cluster returns the cluster id or nil.
func (b *BaseLayer) Cluster() *int { return b.ClusterID }

// PopupContent returns the popup content, nil when there is no popup.
func (b *BaseLayer) PopupContent() *string {
	if b.Popup == nil {
		return nil
	}
	return b.Popup.Content
}

// TooltipContent returns the tooltip content, nil when there is no tooltip.
func (b *BaseLayer) TooltipContent() *string {
	if b.Tooltip == nil {
		return nil
	}
	return b.Tooltip.Content
}

// InCluster assigns the layer to a cluster group.
func (b *BaseLayer) InCluster(id int) {
	b.ClusterID = &id
}

// IsNilLayer reports whether l is nil or a typed nil pointer.
func IsNilLayer(l Layer) bool {
	if l == nil {
		return true
	}
	v := reflect.ValueOf(l)
	return v.Kind() == reflect.Ptr && v.IsNil()
}

// String returns a pointer to s. Handy for popup and tooltip content.
func String(s string) *string {
	return &s
}
