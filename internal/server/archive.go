package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/MeKo-Tech/cldfoffline/internal/mbtiles"
)

// ArchiveTiles serves tiles from an MBTiles archive.
type ArchiveTiles struct {
	reader       *mbtiles.Reader
	logger       *slog.Logger
	cacheControl string
}

// NewArchiveTiles opens the archive at path.
func NewArchiveTiles(path, cacheControl string, logger *slog.Logger) (*ArchiveTiles, error) {
	reader, err := mbtiles.Open(path)
	if err != nil {
		return nil, err
	}
	return &ArchiveTiles{
		reader:       reader,
		logger:       logger,
		cacheControl: cacheControl,
	}, nil
}

// Handler returns the handler for /tiles/ requests.
func (h *ArchiveTiles) Handler() http.Handler {
	return http.HandlerFunc(h.serveTile)
}

func (h *ArchiveTiles) serveTile(w http.ResponseWriter, r *http.Request) {
	coords, ok := parseTilePath(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}

	data, err := h.reader.ReadTile(coords)
	if errors.Is(err, mbtiles.ErrTileNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		h.log().Error("failed to read tile", "tile", coords.String(), "error", err)
		http.Error(w, "failed to read tile", http.StatusInternalServerError)
		return
	}

	if h.cacheControl != "" {
		w.Header().Set("Cache-Control", h.cacheControl)
	}
	w.Header().Set("Content-Type", http.DetectContentType(data))
	if _, err := w.Write(data); err != nil {
		h.log().Debug("failed to write response", "error", err)
	}
}

// Close closes the archive.
func (h *ArchiveTiles) Close() error {
	return h.reader.Close()
}

func (h *ArchiveTiles) log() *slog.Logger {
	if h.logger != nil {
		return h.logger
	}
	return slog.Default()
}
