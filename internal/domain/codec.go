package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// NewLayerOfKind returns an empty layer of the given kind with a fresh id.
func NewLayerOfKind(kind LayerKind) (Layer, error) {
	base := NewBaseLayer()
	switch kind {
	case KindTile:
		return &TileLayer{BaseLayer: base, Opacity: 1, MaxZoom: 18}, nil
	case KindMbTiles:
		return &MbTilesLayer{BaseLayer: base, Opacity: 1, MaxZoom: 18}, nil
	case KindShapefile:
		return &ShapefileLayer{BaseLayer: base, PathStyle: DefaultPathStyle()}, nil
	case KindMarker:
		return &Marker{BaseLayer: base, Opacity: 1, Keyboard: true}, nil
	case KindRectangle:
		return &Rectangle{BaseLayer: base, PathStyle: DefaultPathStyle()}, nil
	case KindCircle:
		return &Circle{BaseLayer: base, PathStyle: DefaultPathStyle()}, nil
	case KindPolygon:
		return &Polygon{BaseLayer: base, PathStyle: DefaultPathStyle(), SmoothFactor: 1}, nil
	case KindPolyline:
		style := DefaultPathStyle()
		style.Fill = false
		return &Polyline{BaseLayer: base, PathStyle: style, SmoothFactor: 1}, nil
	case KindImage:
		return &ImageLayer{BaseLayer: base, Opacity: 1}, nil
	case KindGeoJSON:
		return &GeoJSONDataLayer{BaseLayer: base, PathStyle: DefaultPathStyle()}, nil
	case KindHeat:
		return &HeatLayer{BaseLayer: base, Radius: DefaultHeatRadius, Opacity: DefaultHeatOpacity}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrNotSupported, kind)
	}
}

// DecodeLayer decodes a JSON layer document whose "kind" field selects the
// variant. A missing id is generated, and layers implementing Validator are
// validated.
func DecodeLayer(data []byte) (Layer, error) {
	var head struct {
		Kind LayerKind `json:"kind"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decoding layer: %w", ErrInvalidInput)
	}
	if head.Kind == "" {
		return nil, &ValidationError{
			Field:      "kind",
			Constraint: "required",
			Message:    "layer kind is required",
		}
	}

	layer, err := NewLayerOfKind(head.Kind)
	if err != nil {
		return nil, err
	}
	generated := layer.LayerID()
	if err := json.Unmarshal(data, layer); err != nil {
		return nil, fmt.Errorf("decoding %s layer: %v: %w", head.Kind, err, ErrInvalidInput)
	}
	if layer.LayerID() == "" {
		layer.Base().ID = generated
	}

	if v, ok := layer.(Validator); ok {
		if err := v.Validate(); err != nil {
			return nil, err
		}
	}
	return layer, nil
}

// MarshalLayer encodes a layer with its "kind" discriminator.
func MarshalLayer(l Layer) ([]byte, error) {
	body, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	kind, err := json.Marshal(l.Kind())
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString(`{"kind":`)
	buf.Write(kind)
	if len(body) > 2 {
		buf.WriteByte(',')
		buf.Write(body[1:])
	} else {
		buf.WriteByte('}')
	}
	return buf.Bytes(), nil
}

// LayerDocument wraps a layer for JSON responses.
type LayerDocument struct {
	Layer Layer
}

// MarshalJSON implements json.Marshaler.
func (d LayerDocument) MarshalJSON() ([]byte, error) {
	return MarshalLayer(d.Layer)
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *LayerDocument) UnmarshalJSON(data []byte) error {
	l, err := DecodeLayer(data)
	if err != nil {
		return err
	}
	d.Layer = l
	return nil
}

// LayerDocuments wraps layers for JSON responses.
func LayerDocuments(layers []Layer) []LayerDocument {
	docs := make([]LayerDocument, len(layers))
	for i, l := range layers {
		docs[i] = LayerDocument{Layer: l}
	}
	return docs
}
