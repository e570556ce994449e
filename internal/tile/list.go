package tile

import (
	"cmp"
	"iter"
	"maps"
	"slices"
)

// List maps each zoom level to the set of tiles required at that level.
// The zero value is not usable; create lists with NewList.
type List struct {
	zooms map[int]map[Coords]struct{}
}

// NewList returns an empty tile list.
func NewList() *List {
	return &List{zooms: make(map[int]map[Coords]struct{})}
}

// Add inserts c. Adding a tile twice is a no-op.
func (l *List) Add(c Coords) {
	z := int(c.Z)
	set, ok := l.zooms[z]
	if !ok {
		set = make(map[Coords]struct{})
		l.zooms[z] = set
	}
	set[c] = struct{}{}
}

// Remove deletes c; zoom levels left empty are dropped.
func (l *List) Remove(c Coords) {
	z := int(c.Z)
	set, ok := l.zooms[z]
	if !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(l.zooms, z)
	}
}

// Contains reports whether c is in the list.
func (l *List) Contains(c Coords) bool {
	_, ok := l.zooms[int(c.Z)][c]
	return ok
}

// Len returns the total number of tiles across all zoom levels.
func (l *List) Len() int {
	n := 0
	for _, set := range l.zooms {
		n += len(set)
	}
	return n
}

// Zooms returns the zoom levels present in the list in ascending order.
func (l *List) Zooms() []int {
	return slices.Sorted(maps.Keys(l.zooms))
}

// Tiles returns the tiles at zoom z ordered by x, then y.
func (l *List) Tiles(z int) []Coords {
	return slices.SortedFunc(maps.Keys(l.zooms[z]), compareCoords)
}

// All yields every tile ordered by zoom, x, then y.
func (l *List) All() iter.Seq[Coords] {
	return func(yield func(Coords) bool) {
		for _, z := range l.Zooms() {
			for _, c := range l.Tiles(z) {
				if !yield(c) {
					return
				}
			}
		}
	}
}

// Equal reports whether both lists hold exactly the same tiles.
func (l *List) Equal(other *List) bool {
	if l.Len() != other.Len() {
		return false
	}
	for _, set := range l.zooms {
		for c := range set {
			if !other.Contains(c) {
				return false
			}
		}
	}
	return true
}

// Clone returns an independent copy of the list.
func (l *List) Clone() *List {
	out := NewList()
	for z, set := range l.zooms {
		out.zooms[z] = maps.Clone(set)
	}
	return out
}

func compareCoords(a, b Coords) int {
	return cmp.Or(
		cmp.Compare(a.Z, b.Z),
		cmp.Compare(a.X, b.X),
		cmp.Compare(a.Y, b.Y),
	)
}
