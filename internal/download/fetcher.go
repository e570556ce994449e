// Package download fetches map tiles from a tile server and stores them in a
// z/x/y.png directory tree.
package download

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/MeKo-Tech/cldfoffline/internal/tile"
)

// ErrNotImage is returned when a response body is not a PNG, JPEG or WebP image.
var ErrNotImage = errors.New("response is not a tile image")

// Fetcher retrieves the encoded image of a single tile.
type Fetcher interface {
	FetchTile(ctx context.Context, coords tile.Coords) ([]byte, error)
}

// IsImage reports whether data starts with a PNG, JPEG or WebP signature.
func IsImage(data []byte) bool {
	switch {
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return true
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}):
		return true
	case len(data) >= 12 && bytes.HasPrefix(data, []byte("RIFF")) && string(data[8:12]) == "WEBP":
		return true
	}
	return false
}

// StaticFetcher serves canned tile bytes. Tiles without an entry in Tiles get
// Default, or an error when Default is nil. It records every request.
type StaticFetcher struct {
	Tiles   map[tile.Coords][]byte
	Errors  map[tile.Coords]error
	Default []byte

	mu    sync.Mutex
	calls []tile.Coords
}

// FetchTile implements Fetcher.
func (f *StaticFetcher) FetchTile(ctx context.Context, coords tile.Coords) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, coords)
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := f.Errors[coords]; ok {
		return nil, err
	}
	if data, ok := f.Tiles[coords]; ok {
		return data, nil
	}
	if f.Default != nil {
		return f.Default, nil
	}
	return nil, fmt.Errorf("no tile %s", coords)
}

// Calls returns the tiles requested so far, in request order.
func (f *StaticFetcher) Calls() []tile.Coords {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]tile.Coords(nil), f.calls...)
}
