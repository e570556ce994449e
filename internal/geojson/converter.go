// Package geojson exports the language markers of a site as GeoJSON so the
// points can be opened in GIS tools alongside the offline tiles.
package geojson

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/paulmach/orb/geojson"

	"github.com/MeKo-Tech/cldfoffline/internal/site"
	"github.com/MeKo-Tech/cldfoffline/internal/types"
)

// Filename is the name of the export in the site root.
const Filename = "languages.geojson"

// ToGeoJSON converts the languages of d to point features, ordered by
// language ID.
func ToGeoJSON(d *site.Data) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	for _, id := range slices.Sorted(maps.Keys(d.Languages)) {
		l := d.Languages[id]
		f := geojson.NewFeature(types.Coordinate{Lat: l.Latitude, Lon: l.Longitude}.Point())
		f.ID = id
		f.Properties["id"] = id
		f.Properties["name"] = l.Name
		if l.Glottocode != "" {
			f.Properties["glottocode"] = l.Glottocode
		}
		f.Properties["forms"] = formCount(d, id)
		fc.Append(f)
	}

	return fc
}

func formCount(d *site.Data, languageID string) int {
	n := 0
	for _, forms := range d.Forms {
		if _, ok := forms[languageID]; ok {
			n++
		}
	}
	return n
}

// ToGeoJSONBytes converts d to indented GeoJSON.
func ToGeoJSONBytes(d *site.Data) ([]byte, error) {
	data, err := json.MarshalIndent(ToGeoJSON(d), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal GeoJSON: %w", err)
	}
	return data, nil
}

// WriteFile writes the export to dir/languages.geojson.
func WriteFile(dir string, d *site.Data) error {
	data, err := ToGeoJSONBytes(d)
	if err != nil {
		return err
	}

	path := filepath.Join(dir, Filename)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("%w: %v", types.ErrStorage, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: %v", types.ErrStorage, err)
	}
	return nil
}
