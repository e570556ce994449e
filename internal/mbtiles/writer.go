package mbtiles

import (
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/MeKo-Tech/cldfoffline/internal/tile"
	"github.com/MeKo-Tech/cldfoffline/internal/types"
)

// DefaultBatchSize is the number of tiles to buffer before flushing to the database.
const DefaultBatchSize = 100

type entry struct {
	data   []byte
	coords tile.Coords
}

// Writer writes tiles to an MBTiles database.
type Writer struct {
	db        *sql.DB
	path      string
	batch     []entry
	batchSize int
	written   int
	mu        sync.Mutex
}

// Create opens or creates the database at path, initializes the schema and
// replaces its metadata.
func Create(path string, metadata Metadata) (*Writer, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", types.ErrStorage, path, err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: %s: %v", types.ErrStorage, pragma, err)
		}
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := replaceMetadata(db, metadata); err != nil {
		db.Close()
		return nil, err
	}

	return &Writer{
		db:        db,
		path:      path,
		batch:     make([]entry, 0, DefaultBatchSize),
		batchSize: DefaultBatchSize,
	}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS metadata (
			name TEXT NOT NULL,
			value TEXT
		);

		CREATE TABLE IF NOT EXISTS tiles (
			zoom_level INTEGER NOT NULL,
			tile_column INTEGER NOT NULL,
			tile_row INTEGER NOT NULL,
			tile_data BLOB NOT NULL
		);

		CREATE UNIQUE INDEX IF NOT EXISTS tile_index ON tiles (zoom_level, tile_column, tile_row);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("%w: creating schema: %v", types.ErrStorage, err)
	}
	return nil
}

func replaceMetadata(db *sql.DB, meta Metadata) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrStorage, err)
	}
	defer tx.Rollback() // nolint:errcheck

	if _, err := tx.Exec("DELETE FROM metadata"); err != nil {
		return fmt.Errorf("%w: clearing metadata: %v", types.ErrStorage, err)
	}
	for key, value := range meta.ToMap() {
		if _, err := tx.Exec("INSERT INTO metadata (name, value) VALUES (?, ?)", key, value); err != nil {
			return fmt.Errorf("%w: inserting metadata %q: %v", types.ErrStorage, key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", types.ErrStorage, err)
	}
	return nil
}

// WriteTile buffers a tile and flushes the batch when it is full. Tiles are
// stored as given; the row is converted from XYZ to TMS.
func (w *Writer) WriteTile(c tile.Coords, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.batch = append(w.batch, entry{coords: c, data: data})
	if len(w.batch) >= w.batchSize {
		return w.flushLocked()
	}
	return nil
}

// SetMetadata replaces the metadata table.
func (w *Writer) SetMetadata(meta Metadata) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return replaceMetadata(w.db, meta)
}

// Flush writes any buffered tiles to the database.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked()
}

// Written returns the number of tiles committed so far.
func (w *Writer) Written() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written
}

func (w *Writer) flushLocked() error {
	if len(w.batch) == 0 {
		return nil
	}

	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrStorage, err)
	}
	defer tx.Rollback() // nolint:errcheck

	stmt, err := tx.Prepare("INSERT OR REPLACE INTO tiles (zoom_level, tile_column, tile_row, tile_data) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrStorage, err)
	}
	defer stmt.Close()

	for _, e := range w.batch {
		if _, err := stmt.Exec(e.coords.Z, e.coords.X, tmsRow(e.coords), e.data); err != nil {
			return fmt.Errorf("%w: inserting tile %s: %v", types.ErrStorage, e.coords, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", types.ErrStorage, err)
	}

	w.written += len(w.batch)
	w.batch = w.batch[:0]
	return nil
}

// Close flushes any remaining tiles and closes the database. The journal is
// folded back into the main file so the archive is a single file.
func (w *Writer) Close() error {
	if err := w.Flush(); err != nil {
		w.db.Close()
		return err
	}
	if _, err := w.db.Exec("PRAGMA journal_mode = DELETE"); err != nil {
		w.db.Close()
		return fmt.Errorf("%w: %v", types.ErrStorage, err)
	}
	if err := w.db.Close(); err != nil {
		return fmt.Errorf("%w: closing %s: %v", types.ErrStorage, w.path, err)
	}
	return nil
}

// tmsRow flips the XYZ row: MBTiles counts rows from the south.
func tmsRow(c tile.Coords) int64 {
	return int64(1)<<c.Z - 1 - int64(c.Y)
}
