package domain

// Icon describes a custom marker icon. All fields are passed through to the
// runtime unchanged.
type Icon struct {
	URL             string `json:"url,omitempty"`
	RetinaURL       string `json:"retinaUrl,omitempty"`
	Width           int    `json:"width,omitempty"`
	Height          int    `json:"height,omitempty"`
	AnchorX         int    `json:"anchorX,omitempty"`
	AnchorY         int    `json:"anchorY,omitempty"`
	PopupAnchor     Point  `json:"popupAnchor"`
	TooltipAnchor   Point  `json:"tooltipAnchor"`
	ShadowURL       string `json:"shadowUrl,omitempty"`
	ShadowRetinaURL string `json:"shadowRetinaUrl,omitempty"`
	ShadowSize      *Size  `json:"shadowSize,omitempty"`
	ShadowAnchor    *Size  `json:"shadowAnchor,omitempty"`
	ClassName       string `json:"className"`
	IsIconDiv       bool   `json:"isIconDiv,omitempty"`
	HTML            string `json:"html,omitempty"`
	BgPos           *Point `json:"bgPos,omitempty"`
}

// Marker is a point marker.
type Marker struct {
	BaseLayer
	Position     LatLng  `json:"position"`
	Icon         *Icon   `json:"icon,omitempty"`
	Title        string  `json:"title,omitempty"`
	Alt          string  `json:"alt,omitempty"`
	Opacity      float64 `json:"opacity"`
	Draggable    bool    `json:"draggable"`
	Keyboard     bool    `json:"keyboard"`
	ZIndexOffset int     `json:"zIndexOffset,omitempty"`
	RiseOnHover  bool    `json:"riseOnHover,omitempty"`
}

// NewMarker creates a marker at the given position.
func NewMarker(position LatLng) *Marker {
	return &Marker{
		BaseLayer: NewBaseLayer(),
		Position:  position,
		Opacity:   1,
		Keyboard:  true,
	}
}

// Kind implements Layer.
func (m *Marker) Kind() LayerKind { return KindMarker }

// Validate checks the marker position.
func (m *Marker) Validate() error {
	return m.Position.Validate()
}

// PathStyle holds the vector styling shared by shapes.
type PathStyle struct {
	Stroke      bool    `json:"stroke"`
	Color       string  `json:"color,omitempty"`
	Weight      float64 `json:"weight,omitempty"`
	Opacity     float64 `json:"opacity,omitempty"`
	LineCap     string  `json:"lineCap,omitempty"`
	LineJoin    string  `json:"lineJoin,omitempty"`
	DashArray   string  `json:"dashArray,omitempty"`
	Fill        bool    `json:"fill"`
	FillColor   string  `json:"fillColor,omitempty"`
	FillOpacity float64 `json:"fillOpacity,omitempty"`
	FillRule    string  `json:"fillRule,omitempty"`
}

// DefaultPathStyle mirrors the Leaflet path defaults.
func DefaultPathStyle() PathStyle {
	return PathStyle{
		Stroke:      true,
		Color:       "#3388ff",
		Weight:      3,
		Opacity:     1,
		LineCap:     "round",
		LineJoin:    "round",
		Fill:        true,
		FillOpacity: 0.2,
		FillRule:    "evenodd",
	}
}

// Rectangle is a rectangular vector shape.
type Rectangle struct {
	BaseLayer
	PathStyle
	Shape LatLngBounds `json:"shape"`
}

// NewRectangle creates a rectangle covering bounds.
func NewRectangle(bounds LatLngBounds) *Rectangle {
	return &Rectangle{BaseLayer: NewBaseLayer(), PathStyle: DefaultPathStyle(), Shape: bounds}
}

// Kind implements Layer.
func (r *Rectangle) Kind() LayerKind { return KindRectangle }

// Validate checks the rectangle bounds.
func (r *Rectangle) Validate() error {
	return r.Shape.Validate()
}

// Circle is a circle with a radius in meters.
type Circle struct {
	BaseLayer
	PathStyle
	Position LatLng  `json:"position"`
	Radius   float64 `json:"radius"`
}

// NewCircle creates a circle.
func NewCircle(position LatLng, radius float64) *Circle {
	return &Circle{BaseLayer: NewBaseLayer(), PathStyle: DefaultPathStyle(), Position: position, Radius: radius}
}

// Kind implements Layer.
func (c *Circle) Kind() LayerKind { return KindCircle }

// Validate checks position and radius.
func (c *Circle) Validate() error {
	if err := c.Position.Validate(); err != nil {
		return err
	}
	if c.Radius < 0 {
		return &ValidationError{
			Field:      "radius",
			Value:      c.Radius,
			Constraint: ">= 0",
			Message:    "radius must not be negative",
		}
	}
	return nil
}

// Polyline is an open multi-part line.
type Polyline struct {
	BaseLayer
	PathStyle
	Shape        [][]LatLng `json:"shape"`
	SmoothFactor float64    `json:"smoothFactor,omitempty"`
	NoClip       bool       `json:"noClip,omitempty"`
}

// NewPolyline creates a polyline from one or more rings of points.
func NewPolyline(shape ...[]LatLng) *Polyline {
	style := DefaultPathStyle()
	style.Fill = false
	return &Polyline{BaseLayer: NewBaseLayer(), PathStyle: style, Shape: shape, SmoothFactor: 1}
}

// Kind implements Layer.
func (p *Polyline) Kind() LayerKind { return KindPolyline }

// Validate checks every vertex.
func (p *Polyline) Validate() error {
	return validateRings(p.Shape)
}

// Polygon is a closed multi-ring shape.
type Polygon struct {
	BaseLayer
	PathStyle
	Shape        [][]LatLng `json:"shape"`
	SmoothFactor float64    `json:"smoothFactor,omitempty"`
	NoClip       bool       `json:"noClip,omitempty"`
}

// NewPolygon creates a polygon. The first ring is the outer boundary.
func NewPolygon(shape ...[]LatLng) *Polygon {
	return &Polygon{BaseLayer: NewBaseLayer(), PathStyle: DefaultPathStyle(), Shape: shape, SmoothFactor: 1}
}

// Kind implements Layer.
func (p *Polygon) Kind() LayerKind { return KindPolygon }

// Validate checks every vertex.
func (p *Polygon) Validate() error {
	return validateRings(p.Shape)
}

func validateRings(rings [][]LatLng) error {
	for _, ring := range rings {
		for _, ll := range ring {
			if err := ll.Validate(); err != nil {
				return err
			}
		}
	}
	return nil
}
