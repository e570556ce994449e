package mbtiles

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/cldfoffline/internal/tile"
	"github.com/MeKo-Tech/cldfoffline/internal/types"
)

func TestReader_RoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.mbtiles")

	metadata := Metadata{
		Name:        "Test Tileset",
		Format:      "png",
		MinZoom:     1,
		MaxZoom:     12,
		Bounds:      [4]float64{9.5, 51.8, 9.9, 52.1},
		Center:      [3]float64{9.7, 51.95, 1},
		Attribution: osmAttribution,
		Description: "Test description",
		Type:        "baselayer",
		Version:     "1.0",
	}

	w, err := Create(dbPath, metadata)
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}

	tiles := []tile.Coords{
		tile.NewCoords(12, 2158, 1346),
		tile.NewCoords(12, 2159, 1346),
		tile.NewCoords(1, 1, 0),
	}
	for _, c := range tiles {
		if err := w.WriteTile(c, []byte("tile "+c.String())); err != nil {
			t.Fatalf("Failed to write tile %s: %v", c, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to close writer: %v", err)
	}

	r, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to open reader: %v", err)
	}
	defer r.Close()

	for _, c := range tiles {
		data, err := r.ReadTile(c)
		if err != nil {
			t.Fatalf("Failed to read tile %s: %v", c, err)
		}
		if string(data) != "tile "+c.String() {
			t.Errorf("Tile %s: got %q", c, data)
		}
	}

	n, err := r.Count()
	if err != nil {
		t.Fatalf("Failed to count tiles: %v", err)
	}
	if n != len(tiles) {
		t.Errorf("Expected %d tiles, got %d", len(tiles), n)
	}

	got, err := r.Metadata()
	if err != nil {
		t.Fatalf("Failed to read metadata: %v", err)
	}
	if got != metadata {
		t.Errorf("Metadata mismatch:\n got %+v\nwant %+v", got, metadata)
	}
}

func TestReader_TileNotFound(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.mbtiles")
	w, err := Create(dbPath, Metadata{Name: "empty"})
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to close writer: %v", err)
	}

	r, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to open reader: %v", err)
	}
	defer r.Close()

	_, err = r.ReadTile(tile.NewCoords(5, 1, 1))
	if !errors.Is(err, ErrTileNotFound) {
		t.Errorf("Expected ErrTileNotFound, got %v", err)
	}
}

func TestOpen_Missing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.mbtiles"))
	if !errors.Is(err, types.ErrStorage) {
		t.Errorf("Expected storage error, got %v", err)
	}
}
