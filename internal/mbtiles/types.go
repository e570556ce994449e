// Package mbtiles packs a downloaded tile directory into an MBTiles archive
// so the map layer of a built site can be shipped as one file.
package mbtiles

import (
	"strconv"

	"github.com/paulmach/orb"

	"github.com/MeKo-Tech/cldfoffline/internal/geo"
	"github.com/MeKo-Tech/cldfoffline/internal/types"
)

// Metadata contains MBTiles metadata fields.
type Metadata struct {
	Name        string // Human-readable tileset identifier
	Format      string // Tile data type (png, jpg, webp)
	Attribution string
	Description string
	Type        string // "baselayer" or "overlay"
	Version     string
	Bounds      [4]float64 // west, south, east, north
	Center      [3]float64 // lon, lat, zoom
	MinZoom     int
	MaxZoom     int
}

// osmAttribution is required by the OpenStreetMap tile usage policy.
const osmAttribution = "© OpenStreetMap contributors"

// MetadataForBox describes a tileset that covers box at zoom levels
// minZoom..maxZoom. MBTiles bounds cannot wrap, so a box crossing the
// antimeridian is recorded with full longitude extent.
func MetadataForBox(name string, box types.BoundingBox, minZoom, maxZoom int) Metadata {
	parts := box.Bounds()
	bound := parts[0]
	for _, b := range parts[1:] {
		bound = bound.Union(b)
	}
	centerLon := geo.WrapLongitude(box.West + box.Width()/2)

	return Metadata{
		Name:        name,
		Format:      "png",
		Attribution: osmAttribution,
		Type:        "baselayer",
		Version:     "1.0",
		Bounds:      boundsOf(bound),
		Center:      [3]float64{centerLon, (box.North + box.South) / 2, float64(minZoom)},
		MinZoom:     minZoom,
		MaxZoom:     maxZoom,
	}
}

func boundsOf(b orb.Bound) [4]float64 {
	return [4]float64{b.Min.Lon(), b.Min.Lat(), b.Max.Lon(), b.Max.Lat()}
}

// withExtent fills bounds, center and zoom range from the tiles actually
// exported.
func (m Metadata) withExtent(extent orb.Bound, minZoom, maxZoom int) Metadata {
	center := extent.Center()
	m.Bounds = boundsOf(extent)
	m.Center = [3]float64{center.Lon(), center.Lat(), float64(minZoom)}
	m.MinZoom = minZoom
	m.MaxZoom = maxZoom
	return m
}

// ToMap converts Metadata to the name/value rows of the metadata table.
func (m Metadata) ToMap() map[string]string {
	result := map[string]string{
		"minzoom": strconv.Itoa(m.MinZoom),
		"maxzoom": strconv.Itoa(m.MaxZoom),
	}

	set := func(key, value string) {
		if value != "" {
			result[key] = value
		}
	}
	set("name", m.Name)
	set("format", m.Format)
	set("attribution", m.Attribution)
	set("description", m.Description)
	set("type", m.Type)
	set("version", m.Version)

	if m.Bounds != [4]float64{} {
		result["bounds"] = formatFloats(m.Bounds[:])
	}
	if m.Center != [3]float64{} {
		result["center"] = formatFloats(m.Center[:2]) + "," + strconv.Itoa(int(m.Center[2]))
	}

	return result
}

func formatFloats(vals []float64) string {
	var b []byte
	for i, v := range vals {
		if i > 0 {
			b = append(b, ',')
		}
		b = strconv.AppendFloat(b, v, 'f', 6, 64)
	}
	return string(b)
}
