// Package geo normalizes coordinates and computes antimeridian-aware bounding boxes.
package geo

import "math"

// MaxLatitude is the latitude limit of the Web Mercator tile pyramid.
// Latitudes are clamped to ±MaxLatitude everywhere in this module.
const MaxLatitude = 85.0511287798066

// ClampLatitude clamps lat into [-MaxLatitude, MaxLatitude].
func ClampLatitude(lat float64) float64 {
	return math.Max(-MaxLatitude, math.Min(MaxLatitude, lat))
}

// WrapLongitude brings lon into [-180, 180] by whole turns of 360°.
// Values already in range (±180 included) are returned as they are.
func WrapLongitude(lon float64) float64 {
	switch {
	case lon > 180:
		return lon - 360*math.Ceil((lon-180)/360)
	case lon < -180:
		return lon + 360*math.Ceil((-180-lon)/360)
	default:
		return lon
	}
}

// LongitudeWidth is the eastward distance in degrees from west to east.
// Equal values count as a full turn.
func LongitudeWidth(west, east float64) float64 {
	if east > west {
		return east - west
	}
	return 360 + east - west
}

// distanceToDateline orders longitudes by their eastward position relative
// to the 180° meridian: positive longitudes map to (-180, 0], negative ones
// to (0, 180) and 0° itself to 180.
func distanceToDateline(lon float64) float64 {
	switch {
	case lon == 0:
		return 180
	case lon > 0:
		return lon - 180
	default:
		return lon + 180
	}
}
