package domain

import (
	"encoding/json"

	"github.com/paulmach/orb/geojson"
)

// TileLayer is a slippy-map tile source addressed by a URL template.
type TileLayer struct {
	BaseLayer
	URLTemplate  string   `json:"urlTemplate"`
	Attribution  string   `json:"attribution,omitempty"`
	MinZoom      float64  `json:"minimumZoom"`
	MaxZoom      float64  `json:"maximumZoom"`
	TileSize     int      `json:"tileSize,omitempty"`
	Subdomains   []string `json:"subdomains,omitempty"`
	Opacity      float64  `json:"opacity"`
	ZIndex       int      `json:"zIndex,omitempty"`
	DetectRetina bool     `json:"detectRetina,omitempty"`
}

// NewTileLayer creates a tile layer for urlTemplate.
func NewTileLayer(urlTemplate, attribution string) *TileLayer {
	return &TileLayer{
		BaseLayer:   NewBaseLayer(),
		URLTemplate: urlTemplate,
		Attribution: attribution,
		MaxZoom:     18,
		TileSize:    256,
		Opacity:     1,
	}
}

// Kind implements Layer.
func (t *TileLayer) Kind() LayerKind { return KindTile }

// MbTilesLayer is a tile layer backed by an MBTiles archive.
type MbTilesLayer struct {
	BaseLayer
	URL         string  `json:"url"`
	Attribution string  `json:"attribution,omitempty"`
	MinZoom     float64 `json:"minimumZoom"`
	MaxZoom     float64 `json:"maximumZoom"`
	Opacity     float64 `json:"opacity"`
}

// NewMbTilesLayer creates an MBTiles layer reading from url.
func NewMbTilesLayer(url string) *MbTilesLayer {
	return &MbTilesLayer{BaseLayer: NewBaseLayer(), URL: url, MaxZoom: 18, Opacity: 1}
}

// Kind implements Layer.
func (m *MbTilesLayer) Kind() LayerKind { return KindMbTiles }

// ShapefileLayer renders a zipped shapefile fetched from URL.
type ShapefileLayer struct {
	BaseLayer
	PathStyle
	URL string `json:"url"`
}

// NewShapefileLayer creates a shapefile layer.
func NewShapefileLayer(url string) *ShapefileLayer {
	return &ShapefileLayer{BaseLayer: NewBaseLayer(), PathStyle: DefaultPathStyle(), URL: url}
}

// Kind implements Layer.
func (s *ShapefileLayer) Kind() LayerKind { return KindShapefile }

// ImageLayer is a single image stretched over bounds.
type ImageLayer struct {
	BaseLayer
	URL         string  `json:"url"`
	Corner1     LatLng  `json:"corner1"`
	Corner2     LatLng  `json:"corner2"`
	Opacity     float64 `json:"opacity"`
	Alt         string  `json:"alt,omitempty"`
	Interactive bool    `json:"interactive,omitempty"`
	ZIndex      int     `json:"zIndex,omitempty"`
}

// NewImageLayer creates an image overlay.
func NewImageLayer(url string, bounds LatLngBounds) *ImageLayer {
	return &ImageLayer{
		BaseLayer: NewBaseLayer(),
		URL:       url,
		Corner1:   bounds.SouthWest,
		Corner2:   bounds.NorthEast,
		Opacity:   1,
	}
}

// Kind implements Layer.
func (i *ImageLayer) Kind() LayerKind { return KindImage }

// Validate checks the image corners.
func (i *ImageLayer) Validate() error {
	return NewLatLngBounds(i.Corner1, i.Corner2).Validate()
}

// GeoJSONDataLayer renders a GeoJSON document.
type GeoJSONDataLayer struct {
	BaseLayer
	PathStyle
	GeoJSONData json.RawMessage `json:"geoJsonData"`
}

// NewGeoJSONDataLayer validates data and wraps it in a layer.
func NewGeoJSONDataLayer(data []byte) (*GeoJSONDataLayer, error) {
	l := &GeoJSONDataLayer{
		BaseLayer:   NewBaseLayer(),
		PathStyle:   DefaultPathStyle(),
		GeoJSONData: json.RawMessage(data),
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return l, nil
}

// Kind implements Layer.
func (g *GeoJSONDataLayer) Kind() LayerKind { return KindGeoJSON }

// Validate parses the payload as a feature collection, a feature or a bare
// geometry.
func (g *GeoJSONDataLayer) Validate() error {
	if len(g.GeoJSONData) == 0 {
		return &ValidationError{
			Field:      "geoJsonData",
			Constraint: "non-empty",
			Message:    "geojson data is required",
		}
	}
	if _, err := geojson.UnmarshalFeatureCollection(g.GeoJSONData); err == nil {
		return nil
	}
	if _, err := geojson.UnmarshalFeature(g.GeoJSONData); err == nil {
		return nil
	}
	if _, err := geojson.UnmarshalGeometry(g.GeoJSONData); err != nil {
		return &ValidationError{
			Field:      "geoJsonData",
			Value:      truncate(string(g.GeoJSONData), 64),
			Constraint: "GeoJSON",
			Message:    err.Error(),
		}
	}
	return nil
}

// Default heat layer options.
const (
	DefaultHeatRadius  = 25
	DefaultHeatOpacity = 150
)

// HeatLayer is a heat map over a point set.
type HeatLayer struct {
	BaseLayer
	LatLngs []LatLng `json:"latLongs"`
	Radius  int      `json:"radius"`
	Opacity int      `json:"opacity"`
}

// NewHeatLayer creates a heat layer with default options.
func NewHeatLayer(points []LatLng) *HeatLayer {
	return &HeatLayer{
		BaseLayer: NewBaseLayer(),
		LatLngs:   points,
		Radius:    DefaultHeatRadius,
		Opacity:   DefaultHeatOpacity,
	}
}

// Kind implements Layer.
func (h *HeatLayer) Kind() LayerKind { return KindHeat }

// Validate checks every point.
func (h *HeatLayer) Validate() error {
	for _, p := range h.LatLngs {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
