// Package types holds the geographic value types shared by the tile packages.
package types

import (
	"fmt"

	"github.com/paulmach/orb"
)

// Coordinate is a WGS84 point in degrees.
type Coordinate struct {
	Lat float64
	Lon float64
}

// Point returns the coordinate as an orb.Point (lon, lat order).
func (c Coordinate) Point() orb.Point {
	return orb.Point{c.Lon, c.Lat}
}

// String returns a human-readable representation of the coordinate
func (c Coordinate) String() string {
	return fmt.Sprintf("(%.6f,%.6f)", c.Lat, c.Lon)
}

// BoundingBox is a geographic box in WGS84 degrees.
//
// North >= South always holds. West and East may be in either order: East < West
// means the box crosses the antimeridian and spans West..180 plus -180..East.
type BoundingBox struct {
	North float64
	West  float64
	South float64
	East  float64
}

// CrossesAntimeridian reports whether the box wraps across ±180° longitude.
func (b BoundingBox) CrossesAntimeridian() bool {
	return b.East < b.West
}

// Width returns the eastward angular width of the box in degrees.
func (b BoundingBox) Width() float64 {
	if b.East >= b.West {
		return b.East - b.West
	}
	return 360 + b.East - b.West
}

// Height returns the height of the bounding box in degrees
func (b BoundingBox) Height() float64 {
	return b.North - b.South
}

// ContainsLongitude reports whether lon lies inside the (possibly wrapping)
// longitude span of the box. lon must already be normalized to [-180, 180].
func (b BoundingBox) ContainsLongitude(lon float64) bool {
	if b.West <= b.East {
		return lon >= b.West && lon <= b.East
	}
	return lon >= b.West || lon <= b.East
}

// Contains reports whether c lies inside the box, edges included.
func (b BoundingBox) Contains(c Coordinate) bool {
	return c.Lat >= b.South && c.Lat <= b.North && b.ContainsLongitude(c.Lon)
}

// Bounds splits the box into one or two non-wrapping orb.Bounds.
func (b BoundingBox) Bounds() []orb.Bound {
	if !b.CrossesAntimeridian() {
		return []orb.Bound{{
			Min: orb.Point{b.West, b.South},
			Max: orb.Point{b.East, b.North},
		}}
	}
	return []orb.Bound{
		{Min: orb.Point{b.West, b.South}, Max: orb.Point{180, b.North}},
		{Min: orb.Point{-180, b.South}, Max: orb.Point{b.East, b.North}},
	}
}

// String returns a human-readable representation of the bounding box
func (b BoundingBox) String() string {
	return fmt.Sprintf("bbox(n=%.6f,w=%.6f,s=%.6f,e=%.6f)", b.North, b.West, b.South, b.East)
}
