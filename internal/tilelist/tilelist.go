// Package tilelist persists tile lists in the YAML dump format of
// downloadosmtiles, so lists can be checkpointed between computing and
// downloading tiles:
//
//	---
//	1:
//	  - xyz:
//	      - 1
//	      - 1
//	      - 1
package tilelist

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/cldfoffline/internal/tile"
	"github.com/MeKo-Tech/cldfoffline/internal/types"
)

// DefaultFilename is the name of the tile list inside the tiles directory.
const DefaultFilename = "tilelist.yaml"

type entry struct {
	XYZ []int `yaml:"xyz"`
}

// Encode writes list to w. Zoom levels and tiles are written in ascending order.
func Encode(w io.Writer, list *tile.List) error {
	doc := make(map[int][]entry, len(list.Zooms()))
	for _, z := range list.Zooms() {
		tiles := list.Tiles(z)
		entries := make([]entry, 0, len(tiles))
		for _, c := range tiles {
			entries = append(entries, entry{XYZ: []int{int(c.X), int(c.Y), int(c.Z)}})
		}
		doc[z] = entries
	}

	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString("---\n"); err != nil {
		return fmt.Errorf("%w: writing tile list: %v", types.ErrStorage, err)
	}
	if len(doc) > 0 {
		enc := yaml.NewEncoder(bw)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("%w: encoding tile list: %v", types.ErrStorage, err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("%w: encoding tile list: %v", types.ErrStorage, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("%w: writing tile list: %v", types.ErrStorage, err)
	}
	return nil
}

// Decode reads a tile list from r. The triple of each entry is authoritative;
// the zoom key of its block only groups entries.
func Decode(r io.Reader) (*tile.List, error) {
	var doc map[int][]entry
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: decoding tile list: %v", types.ErrStorage, err)
	}

	list := tile.NewList()
	for zoom, entries := range doc {
		for i, e := range entries {
			c, err := toCoords(e.XYZ)
			if err != nil {
				return nil, fmt.Errorf("%w: zoom %d entry %d: %v", types.ErrStorage, zoom, i, err)
			}
			list.Add(c)
		}
	}
	return list, nil
}

func toCoords(xyz []int) (tile.Coords, error) {
	if len(xyz) != 3 {
		return tile.Coords{}, fmt.Errorf("expected 3 values (x, y, z), got %d", len(xyz))
	}
	x, y, z := xyz[0], xyz[1], xyz[2]
	if z < 0 || z > 30 {
		return tile.Coords{}, fmt.Errorf("invalid zoom %d", z)
	}
	if x < 0 || y < 0 || x >= 1<<z || y >= 1<<z {
		return tile.Coords{}, fmt.Errorf("tile %d/%d/%d out of range", z, x, y)
	}
	return tile.NewCoords(uint32(z), uint32(x), uint32(y)), nil
}

// WriteFile stores list at path. The file is replaced atomically.
func WriteFile(path string, list *tile.List) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: creating %s: %v", types.ErrStorage, dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tilelist-*.yaml")
	if err != nil {
		return fmt.Errorf("%w: creating temp file: %v", types.ErrStorage, err)
	}
	defer os.Remove(tmp.Name()) // nolint:errcheck // no-op after rename

	if err := Encode(tmp, list); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: closing temp file: %v", types.ErrStorage, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("%w: replacing %s: %v", types.ErrStorage, path, err)
	}
	return nil
}

// ReadFile loads the tile list stored at path.
func ReadFile(path string) (*tile.List, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening tile list: %v", types.ErrStorage, err)
	}
	defer f.Close()

	return Decode(f)
}
