package geo

import (
	"fmt"
	"slices"

	"github.com/MeKo-Tech/cldfoffline/internal/types"
)

// ComputeBoundingBox returns the minimal box enclosing coords.
//
// Two candidate longitude spans are considered: the plain min..max span and a
// span running through the antimeridian. When all longitudes sit on the same
// side of 0° the plain span is used. Otherwise the narrower of the two wins,
// with ties going to the plain span.
func ComputeBoundingBox(coords []types.Coordinate) (types.BoundingBox, error) {
	if len(coords) == 0 {
		return types.BoundingBox{}, fmt.Errorf("%w: cannot create bounding box without any coordinates", types.ErrInvalidInput)
	}

	north, south := coords[0].Lat, coords[0].Lat
	lons := make([]float64, len(coords))
	for i, c := range coords {
		north = max(north, c.Lat)
		south = min(south, c.Lat)
		lons[i] = WrapLongitude(c.Lon)
	}
	north = ClampLatitude(north)
	south = ClampLatitude(south)

	westOfNull := slices.Min(lons)
	eastOfNull := slices.Max(lons)

	byDateline := slices.Clone(lons)
	slices.SortStableFunc(byDateline, func(a, b float64) int {
		da, db := distanceToDateline(a), distanceToDateline(b)
		switch {
		case da < db:
			return -1
		case da > db:
			return 1
		default:
			return 0
		}
	})
	westOfDateline := byDateline[0]
	eastOfDateline := byDateline[len(byDateline)-1]

	box := types.BoundingBox{North: north, West: westOfNull, South: south, East: eastOfNull}

	sameSide := (westOfNull < 0 && eastOfNull < 0) || (westOfNull > 0 && eastOfNull > 0)
	if sameSide {
		return box, nil
	}

	if LongitudeWidth(westOfDateline, eastOfDateline) < LongitudeWidth(westOfNull, eastOfNull) {
		box.West, box.East = westOfDateline, eastOfDateline
	}
	return box, nil
}

// PadBox grows box by pad degrees on every side. Latitudes are clamped and
// longitudes wrapped, so a padded edge may itself cross the antimeridian.
// Once the padded width reaches 360 degrees the box spans every longitude.
func PadBox(box types.BoundingBox, pad float64) types.BoundingBox {
	padded := types.BoundingBox{
		North: ClampLatitude(box.North + pad),
		West:  WrapLongitude(box.West - pad),
		South: ClampLatitude(box.South - pad),
		East:  WrapLongitude(box.East + pad),
	}
	if box.Width()+2*pad >= 360 {
		padded.West, padded.East = -180, 180
	}
	return padded
}
