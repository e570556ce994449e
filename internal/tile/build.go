package tile

import (
	"fmt"
	"math"

	"github.com/MeKo-Tech/cldfoffline/internal/geo"
	"github.com/MeKo-Tech/cldfoffline/internal/types"
)

// MaxBulkZoom is the highest zoom level the OpenStreetMap tile usage policy
// allows for bulk downloading.
// https://operations.osmfoundation.org/policies/tiles/
const MaxBulkZoom = 12

// PaddingAt returns the padding applied at zoom. The padding argument is given
// in degrees at zoom 0 and halves with every zoom level.
func PaddingAt(padding float64, zoom int) float64 {
	return padding / math.Exp2(float64(zoom))
}

// ValidateZoomRange rejects zoom ranges that cannot be bulk downloaded.
func ValidateZoomRange(minZoom, maxZoom int) error {
	if maxZoom > MaxBulkZoom {
		return fmt.Errorf("%w: max zoom %d exceeds level allowed for bulk downloading (%d)", types.ErrConfig, maxZoom, MaxBulkZoom)
	}
	if minZoom < 0 {
		return fmt.Errorf("%w: min zoom %d must not be negative", types.ErrConfig, minZoom)
	}
	if minZoom > maxZoom {
		return fmt.Errorf("%w: min zoom (%d) must be <= max zoom (%d)", types.ErrConfig, minZoom, maxZoom)
	}
	return nil
}

// ValidateParams checks the zoom range and padding of a tile list build.
func ValidateParams(minZoom, maxZoom int, padding float64) error {
	if err := ValidateZoomRange(minZoom, maxZoom); err != nil {
		return err
	}
	if math.IsNaN(padding) || math.IsInf(padding, 0) || padding < 0 {
		return fmt.Errorf("%w: padding must be a non-negative number, got %v", types.ErrConfig, padding)
	}
	return nil
}

// BuildList computes the tiles needed to show coords with padding at every
// zoom level from minZoom to maxZoom inclusive.
func BuildList(coords []types.Coordinate, minZoom, maxZoom int, padding float64) (*List, error) {
	if err := ValidateParams(minZoom, maxZoom, padding); err != nil {
		return nil, err
	}

	box, err := geo.ComputeBoundingBox(coords)
	if err != nil {
		return nil, err
	}
	return BuildListForBox(box, minZoom, maxZoom, padding)
}

// BuildListForBox is BuildList for an already computed bounding box.
func BuildListForBox(box types.BoundingBox, minZoom, maxZoom int, padding float64) (*List, error) {
	if err := ValidateParams(minZoom, maxZoom, padding); err != nil {
		return nil, err
	}

	list := NewList()
	for zoom := minZoom; zoom <= maxZoom; zoom++ {
		padded := geo.PadBox(box, PaddingAt(padding, zoom))
		for c := range AreaTiles(padded, zoom) {
			list.Add(c)
		}
	}
	return list, nil
}
