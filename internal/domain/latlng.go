// Package domain contains the map, layer and event value types shared by the
// state holder, the synchronization layer and the adapters.
package domain

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// LatLng is a geographic point in WGS 84 degrees.
type LatLng struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// NewLatLng creates a LatLng.
func NewLatLng(lat, lng float64) LatLng {
	return LatLng{Lat: lat, Lng: lng}
}

// LatLngFromPoint converts an orb point ([lng, lat]) to a LatLng.
func LatLngFromPoint(p orb.Point) LatLng {
	return LatLng{Lat: p.Lat(), Lng: p.Lon()}
}

// Validate checks that the point lies within the WGS 84 value ranges.
func (l LatLng) Validate() error {
	if math.IsNaN(l.Lat) || l.Lat < -90 || l.Lat > 90 {
		return &ValidationError{
			Field:      "lat",
			Value:      l.Lat,
			Constraint: "[-90, 90]",
			Message:    "latitude must be between -90 and 90",
		}
	}
	if math.IsNaN(l.Lng) || l.Lng < -180 || l.Lng > 180 {
		return &ValidationError{
			Field:      "lng",
			Value:      l.Lng,
			Constraint: "[-180, 180]",
			Message:    "longitude must be between -180 and 180",
		}
	}
	return nil
}

// Point returns the orb representation of the coordinate.
func (l LatLng) Point() orb.Point {
	return orb.Point{l.Lng, l.Lat}
}

// IsZero returns true if the coordinate is unset.
func (l LatLng) IsZero() bool {
	return l.Lat == 0 && l.Lng == 0
}

// String returns a string representation of the coordinate.
func (l LatLng) String() string {
	return fmt.Sprintf("LatLng(%f, %f)", l.Lat, l.Lng)
}

// LatLngBounds is a rectangular geographic area.
type LatLngBounds struct {
	SouthWest LatLng `json:"southWest" yaml:"southWest"`
	NorthEast LatLng `json:"northEast" yaml:"northEast"`
}

// NewLatLngBounds creates bounds from two arbitrary corners.
func NewLatLngBounds(corner1, corner2 LatLng) LatLngBounds {
	b := orb.MultiPoint{corner1.Point(), corner2.Point()}.Bound()
	return BoundsFromOrb(b)
}

// BoundsFromOrb converts an orb bound to LatLngBounds.
func BoundsFromOrb(b orb.Bound) LatLngBounds {
	return LatLngBounds{
		SouthWest: LatLngFromPoint(b.Min),
		NorthEast: LatLngFromPoint(b.Max),
	}
}

// Bound returns the orb representation of the bounds.
func (b LatLngBounds) Bound() orb.Bound {
	return orb.Bound{Min: b.SouthWest.Point(), Max: b.NorthEast.Point()}
}

// Validate checks both corners and their ordering.
func (b LatLngBounds) Validate() error {
	if err := b.SouthWest.Validate(); err != nil {
		return err
	}
	if err := b.NorthEast.Validate(); err != nil {
		return err
	}
	if b.SouthWest.Lat > b.NorthEast.Lat || b.SouthWest.Lng > b.NorthEast.Lng {
		return &ValidationError{
			Field:      "bounds",
			Value:      b,
			Constraint: "southWest <= northEast",
			Message:    "south-west corner must not exceed north-east corner",
		}
	}
	return nil
}

// Contains reports whether the point lies inside the bounds.
func (b LatLngBounds) Contains(l LatLng) bool {
	return b.Bound().Contains(l.Point())
}

// Center returns the center of the bounds.
func (b LatLngBounds) Center() LatLng {
	return LatLngFromPoint(b.Bound().Center())
}

// Point is a pixel offset, used for padding and event positions.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Size is a pixel size.
type Size struct {
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}
