package tile

import (
	"iter"

	"github.com/MeKo-Tech/cldfoffline/internal/types"
)

// TileRange is an inclusive rectangle of tiles at one zoom level.
type TileRange struct {
	Zoom       int
	MinX, MaxX int
	MinY, MaxY int
}

// ForEach calls fn for each tile in the range until fn returns false.
func (r TileRange) ForEach(fn func(Coords) bool) bool {
	for x := r.MinX; x <= r.MaxX; x++ {
		for y := r.MinY; y <= r.MaxY; y++ {
			if !fn(NewCoords(uint32(r.Zoom), uint32(x), uint32(y))) {
				return false
			}
		}
	}
	return true
}

// Count returns the number of tiles in the range.
func (r TileRange) Count() int {
	if r.MaxX < r.MinX || r.MaxY < r.MinY {
		return 0
	}
	return (r.MaxX - r.MinX + 1) * (r.MaxY - r.MinY + 1)
}

// rangeBetween builds the clamped range spanned by a north-west and a south-east corner.
func rangeBetween(north, west, south, east float64, zoom int) TileRange {
	minX, minY := Project(north, west, zoom)
	maxX, maxY := Project(south, east, zoom)
	return TileRange{
		Zoom: zoom,
		MinX: ClampIndex(minX, zoom),
		MaxX: ClampIndex(maxX, zoom),
		MinY: ClampIndex(minY, zoom),
		MaxY: ClampIndex(maxY, zoom),
	}
}

// AreaRanges returns the tile ranges covering box at zoom.
//
// A box with East > West yields one range. Any other box is taken to cross
// the antimeridian and yields two: West..180° and -180°..East.
// Both ends of every range are inclusive, so a box edge lying exactly on a
// tile boundary pulls in the neighbouring row or column too.
func AreaRanges(box types.BoundingBox, zoom int) []TileRange {
	if zoom == 0 {
		return []TileRange{{}}
	}
	if box.East > box.West {
		return []TileRange{rangeBetween(box.North, box.West, box.South, box.East, zoom)}
	}
	return []TileRange{
		rangeBetween(box.North, box.West, box.South, 180, zoom),
		rangeBetween(box.North, -180, box.South, box.East, zoom),
	}
}

// AreaTiles yields every tile covering box at zoom. Wrapping boxes may yield
// a column twice when their two halves meet; callers collecting into a List
// get set semantics for free.
func AreaTiles(box types.BoundingBox, zoom int) iter.Seq[Coords] {
	return func(yield func(Coords) bool) {
		for _, r := range AreaRanges(box, zoom) {
			if !r.ForEach(yield) {
				return
			}
		}
	}
}
