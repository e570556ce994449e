// Package tile computes the XYZ slippy-map tiles needed to cover a set of points.
package tile

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// Coords represents a tile coordinate in the Web Mercator tile system (z/x/y)
type Coords struct {
	Z uint32 // Zoom level
	X uint32 // X coordinate (column, west to east)
	Y uint32 // Y coordinate (row, north to south)
}

// NewCoords creates a new Coords from zoom, x, y values
func NewCoords(z, x, y uint32) Coords {
	return Coords{Z: z, X: x, Y: y}
}

// String returns the tile coordinate as "z/x/y".
func (c Coords) String() string {
	return fmt.Sprintf("%d/%d/%d", c.Z, c.X, c.Y)
}

// Path returns the conventional location of the tile image below dir: dir/z/x/y.png
func (c Coords) Path(dir string) string {
	return filepath.Join(dir,
		strconv.FormatUint(uint64(c.Z), 10),
		strconv.FormatUint(uint64(c.X), 10),
		strconv.FormatUint(uint64(c.Y), 10)+".png")
}

// Tile returns the maptile.Tile for this coordinate
func (c Coords) Tile() maptile.Tile {
	return maptile.New(c.X, c.Y, maptile.Zoom(c.Z))
}

// Bound returns the geographic extent of the tile in WGS84.
func (c Coords) Bound() orb.Bound {
	return c.Tile().Bound()
}

// ParseCoords parses a "z/x/y" string into Coords.
func ParseCoords(s string) (Coords, error) {
	var c Coords
	if _, err := fmt.Sscanf(s, "%d/%d/%d", &c.Z, &c.X, &c.Y); err != nil {
		return c, fmt.Errorf("invalid tile coordinate format: %s", s)
	}
	if c.Z > 30 || c.X >= 1<<c.Z || c.Y >= 1<<c.Z {
		return c, fmt.Errorf("tile %s out of range for zoom %d", s, c.Z)
	}
	return c, nil
}

// Project converts a WGS84 point into tile indices at zoom (Web Mercator).
// The east edge (lon 180) projects to x = 2^zoom and latitudes beyond the
// Mercator limit land on the first or last row; callers clamp with ClampIndex.
func Project(lat, lon float64, zoom int) (x, y int) {
	f := maptile.Fraction(orb.Point{lon, lat}, maptile.Zoom(zoom))
	return int(math.Floor(f[0])), int(math.Floor(f[1]))
}

// ClampIndex clamps a tile index into [0, 2^zoom-1].
func ClampIndex(i, zoom int) int {
	last := 1<<zoom - 1
	return max(0, min(last, i))
}
