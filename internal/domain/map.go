package domain

import (
	"encoding/json"
	"time"
)

// MapOptions is the initial view of a map, sent to the runtime on create.
type MapOptions struct {
	Center      LatLng        `json:"center"`
	Zoom        float64       `json:"zoom"`
	MinZoom     *float64      `json:"minZoom,omitempty"`
	MaxZoom     *float64      `json:"maxZoom,omitempty"`
	MaxBounds   *LatLngBounds `json:"maxBounds,omitempty"`
	ZoomControl bool          `json:"zoomControl"`
}

// DefaultMapOptions returns options with the zoom control enabled.
func DefaultMapOptions() MapOptions {
	return MapOptions{ZoomControl: true}
}

// Validate checks the options.
func (o MapOptions) Validate() error {
	if err := o.Center.Validate(); err != nil {
		return err
	}
	if o.Zoom < 0 {
		return &ValidationError{Field: "zoom", Value: o.Zoom, Constraint: ">= 0", Message: "zoom must not be negative"}
	}
	if o.MinZoom != nil && o.MaxZoom != nil && *o.MinZoom > *o.MaxZoom {
		return &ValidationError{
			Field:      "minZoom",
			Value:      *o.MinZoom,
			Constraint: "<= maxZoom",
			Message:    "minimum zoom exceeds maximum zoom",
		}
	}
	if o.MaxBounds != nil {
		return o.MaxBounds.Validate()
	}
	return nil
}

// UnmarshalJSON defaults ZoomControl to true when the field is absent.
func (o *MapOptions) UnmarshalJSON(data []byte) error {
	type plain MapOptions
	p := plain(DefaultMapOptions())
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*o = MapOptions(p)
	return nil
}

// MapInfo is a read-only summary of a live map.
type MapInfo struct {
	ID          string     `json:"id"`
	Options     MapOptions `json:"options"`
	Initialized bool       `json:"initialized"`
	Layers      int        `json:"layers"`
	Markers     int        `json:"markers"`
	Handles     int        `json:"handles"`
	Preset      string     `json:"preset,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// Preset is a named map template: options plus the layers added once the map
// has initialized.
type Preset struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Options     MapOptions        `json:"options"`
	Layers      []json.RawMessage `json:"layers"`
	Markers     []json.RawMessage `json:"markers,omitempty"`

	// Key is the storage object the preset was loaded from.
	Key      string    `json:"key"`
	LoadedAt time.Time `json:"loadedAt"`
}

// Validate checks the options and decodes every layer once.
func (p *Preset) Validate() error {
	if p.Name == "" {
		return &ValidationError{Field: "name", Constraint: "required", Message: "preset name is required"}
	}
	if err := p.Options.Validate(); err != nil {
		return err
	}
	_, _, err := p.Build()
	return err
}

// Build decodes fresh layer and marker instances. Layers without an explicit
// id get a new one on every call, so two maps never share instances.
func (p *Preset) Build() (layers []Layer, markers []*Marker, err error) {
	for _, raw := range p.Layers {
		l, err := DecodeLayer(raw)
		if err != nil {
			return nil, nil, err
		}
		layers = append(layers, l)
	}
	for _, raw := range p.Markers {
		l, err := DecodeLayer(raw)
		if err != nil {
			return nil, nil, err
		}
		m, ok := l.(*Marker)
		if !ok {
			return nil, nil, &ValidationError{
				Field:      "markers",
				Value:      l.Kind(),
				Constraint: "kind == marker",
				Message:    "only markers may be listed under markers",
			}
		}
		markers = append(markers, m)
	}
	return layers, markers, nil
}

// PanOptions controls a pan animation.
type PanOptions struct {
	Animate       bool    `json:"animate"`
	Duration      float64 `json:"duration"`
	EaseLinearity float64 `json:"easeLinearity"`
	NoMoveStart   bool    `json:"noMoveStart"`
}

// DefaultPanOptions returns the Leaflet pan defaults without animation.
func DefaultPanOptions() PanOptions {
	return PanOptions{Duration: 0.25, EaseLinearity: 0.25}
}

// FitBoundsOptions controls fitBounds.
type FitBoundsOptions struct {
	Padding *Point   `json:"padding,omitempty"`
	MaxZoom *float64 `json:"maxZoom,omitempty"`
}
