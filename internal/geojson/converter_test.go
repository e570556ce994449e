package geojson

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/MeKo-Tech/cldfoffline/internal/site"
)

func testData() *site.Data {
	d := site.NewData("test")
	d.AddConcept("water", "Water")
	d.AddConcept("fire", "Fire")
	d.AddLanguage("smo", site.Language{Name: "Samoan", Glottocode: "samo1305", Latitude: -13.76, Longitude: -171.85})
	d.AddLanguage("fij", site.Language{Name: "Fijian", Latitude: -17.71, Longitude: 178.07})
	d.SetForm("water", "fij", "wai")
	d.SetForm("fire", "fij", "buka")
	d.SetForm("water", "smo", "vai")
	return d
}

func TestToGeoJSON(t *testing.T) {
	fc := ToGeoJSON(testData())

	if len(fc.Features) != 2 {
		t.Fatalf("Expected 2 features, got %d", len(fc.Features))
	}

	first := fc.Features[0]
	if first.ID != "fij" {
		t.Errorf("Expected features ordered by ID, got %v first", first.ID)
	}
	if first.Geometry.GeoJSONType() != "Point" {
		t.Errorf("Expected Point, got %s", first.Geometry.GeoJSONType())
	}
	if p := first.Geometry.(orb.Point); p.Lon() != 178.07 || p.Lat() != -17.71 {
		t.Errorf("Expected lon/lat order, got %v", p)
	}
	if first.Properties["name"] != "Fijian" {
		t.Errorf("Expected name=Fijian, got %v", first.Properties["name"])
	}
	if _, ok := first.Properties["glottocode"]; ok {
		t.Errorf("Expected no glottocode for fij")
	}
	if first.Properties["forms"] != 2 {
		t.Errorf("Expected 2 forms for fij, got %v", first.Properties["forms"])
	}

	second := fc.Features[1]
	if second.Properties["glottocode"] != "samo1305" {
		t.Errorf("Expected glottocode=samo1305, got %v", second.Properties["glottocode"])
	}
	if second.Properties["forms"] != 1 {
		t.Errorf("Expected 1 form for smo, got %v", second.Properties["forms"])
	}
}

func TestToGeoJSON_Empty(t *testing.T) {
	fc := ToGeoJSON(site.NewData(""))
	if len(fc.Features) != 0 {
		t.Errorf("Expected no features, got %d", len(fc.Features))
	}
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	if err := WriteFile(dir, testData()); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, Filename))
	if err != nil {
		t.Fatalf("Failed to read export: %v", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		t.Fatalf("Export is not valid GeoJSON: %v", err)
	}
	if len(fc.Features) != 2 {
		t.Errorf("Expected 2 features, got %d", len(fc.Features))
	}
	if _, err := os.Stat(filepath.Join(dir, Filename+".tmp")); !os.IsNotExist(err) {
		t.Errorf("Expected temporary file to be removed")
	}
}

func TestWriteFile_MissingDir(t *testing.T) {
	err := WriteFile(filepath.Join(t.TempDir(), "missing"), testData())
	if err == nil {
		t.Fatal("Expected error for missing directory")
	}
}
