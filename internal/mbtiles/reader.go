package mbtiles

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/cldfoffline/internal/tile"
	"github.com/MeKo-Tech/cldfoffline/internal/types"
)

// ErrTileNotFound is returned by ReadTile for tiles missing from the archive.
var ErrTileNotFound = errors.New("tile not found")

// Reader reads tiles from an MBTiles database.
type Reader struct {
	db   *sql.DB
	path string
}

// Open opens an MBTiles database for reading.
func Open(path string) (*Reader, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrStorage, err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=query_only(1)")
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", types.ErrStorage, path, err)
	}

	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='tiles'").Scan(&count)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: reading schema of %s: %v", types.ErrStorage, path, err)
	}
	if count == 0 {
		db.Close()
		return nil, fmt.Errorf("%w: %s has no tiles table", types.ErrStorage, path)
	}

	return &Reader{db: db, path: path}, nil
}

// ReadTile returns the tile data stored for c.
func (r *Reader) ReadTile(c tile.Coords) ([]byte, error) {
	var data []byte
	err := r.db.QueryRow(
		"SELECT tile_data FROM tiles WHERE zoom_level=? AND tile_column=? AND tile_row=?",
		c.Z, c.X, tmsRow(c),
	).Scan(&data)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", c, ErrTileNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading tile %s: %v", types.ErrStorage, c, err)
	}
	return data, nil
}

// Count returns the number of tiles in the archive.
func (r *Reader) Count() (int, error) {
	var n int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM tiles").Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: counting tiles: %v", types.ErrStorage, err)
	}
	return n, nil
}

// Metadata reads the metadata table.
func (r *Reader) Metadata() (Metadata, error) {
	rows, err := r.db.Query("SELECT name, value FROM metadata")
	if err != nil {
		return Metadata{}, fmt.Errorf("%w: querying metadata: %v", types.ErrStorage, err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var name string
		var value sql.NullString
		if err := rows.Scan(&name, &value); err != nil {
			return Metadata{}, fmt.Errorf("%w: scanning metadata: %v", types.ErrStorage, err)
		}
		values[name] = value.String
	}
	if err := rows.Err(); err != nil {
		return Metadata{}, fmt.Errorf("%w: iterating metadata: %v", types.ErrStorage, err)
	}

	meta := Metadata{
		Name:        values["name"],
		Format:      values["format"],
		Attribution: values["attribution"],
		Description: values["description"],
		Type:        values["type"],
		Version:     values["version"],
	}
	meta.MinZoom, _ = strconv.Atoi(values["minzoom"])
	meta.MaxZoom, _ = strconv.Atoi(values["maxzoom"])
	parseFloats(values["bounds"], meta.Bounds[:])
	parseFloats(values["center"], meta.Center[:])

	return meta, nil
}

// parseFloats fills dst from a comma separated list of exactly len(dst) numbers.
func parseFloats(s string, dst []float64) {
	parts := strings.Split(s, ",")
	if len(parts) != len(dst) {
		return
	}
	for i, part := range parts {
		if f, err := strconv.ParseFloat(strings.TrimSpace(part), 64); err == nil {
			dst[i] = f
		}
	}
}

// Close closes the database connection.
func (r *Reader) Close() error {
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("%w: closing %s: %v", types.ErrStorage, r.path, err)
	}
	return nil
}
