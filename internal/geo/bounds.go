// Package geo provides bounding boxes, great-circle distance, and the
// fallback driving-time estimate used when the routing service is unavailable.
package geo

import (
	"github.com/twpayne/go-geom"
)

// Point is a WGS84 coordinate in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Bounds is a lat/lng bounding box backed by a go-geom XY bounds (x = lng, y = lat).
// The zero value is empty and contains nothing.
type Bounds struct {
	b *geom.Bounds
}

// Singapore is the regional bounding box every facility and geocoding result
// must fall within.
var Singapore = NewBounds(1.13, 103.59, 1.48, 104.10)

// NewBounds builds a bounding box from its south-west and north-east corners.
// Corners given in the wrong order are swapped.
func NewBounds(minLat, minLng, maxLat, maxLng float64) Bounds {
	b := geom.NewBounds(geom.XY).SetCoords(
		geom.Coord{minLng, minLat},
		geom.Coord{maxLng, maxLat},
	)
	return Bounds{b: b}
}

// BoundsOf returns the smallest box covering all points. Empty input yields
// an empty Bounds.
func BoundsOf(points []Point) Bounds {
	if len(points) == 0 {
		return Bounds{}
	}
	b := geom.NewBounds(geom.XY)
	for _, p := range points {
		b.Extend(geom.NewPointFlat(geom.XY, []float64{p.Lng, p.Lat}))
	}
	return Bounds{b: b}
}

// IsEmpty reports whether b covers no area and no point.
func (b Bounds) IsEmpty() bool {
	return b.b == nil || b.b.IsEmpty()
}

// Contains reports whether (lat, lng) lies within or on the border of b.
func (b Bounds) Contains(lat, lng float64) bool {
	if b.IsEmpty() {
		return false
	}
	return b.b.OverlapsPoint(geom.XY, geom.Coord{lng, lat})
}

// MinLat returns the southern edge.
func (b Bounds) MinLat() float64 { return b.b.Min(1) }

// MaxLat returns the northern edge.
func (b Bounds) MaxLat() float64 { return b.b.Max(1) }

// MinLng returns the western edge.
func (b Bounds) MinLng() float64 { return b.b.Min(0) }

// MaxLng returns the eastern edge.
func (b Bounds) MaxLng() float64 { return b.b.Max(0) }

// Center returns the midpoint of b.
func (b Bounds) Center() Point {
	return Point{
		Lat: (b.MinLat() + b.MaxLat()) / 2,
		Lng: (b.MinLng() + b.MaxLng()) / 2,
	}
}
