// Package server serves a built offline site for previewing it in a browser.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/MeKo-Tech/cldfoffline/internal/download"
)

// Config configures the preview server.
type Config struct {
	SiteDir string
	// TilesDir defaults to SiteDir/tiles.
	TilesDir string
	// MBTilesPath serves tiles from an archive instead of TilesDir.
	MBTilesPath          string
	CacheControl         string
	FetchMissing         bool
	MaxConcurrentFetches int
	FetchTimeout         time.Duration
	FailureTTL           time.Duration
}

// Server wires the site, tile and health handlers.
type Server struct {
	tiles   *Tiles
	archive *ArchiveTiles
	logger  *slog.Logger
	cfg     Config
}

// New creates a server. fetcher is only used when cfg.FetchMissing is set.
func New(cfg Config, fetcher download.Fetcher, logger *slog.Logger) (*Server, error) {
	if cfg.SiteDir == "" {
		return nil, errors.New("site directory is required")
	}
	if cfg.TilesDir == "" {
		cfg.TilesDir = filepath.Join(cfg.SiteDir, "tiles")
	}

	s := &Server{cfg: cfg, logger: logger}
	if cfg.MBTilesPath != "" {
		archive, err := NewArchiveTiles(cfg.MBTilesPath, cfg.CacheControl, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open tile archive: %w", err)
		}
		s.archive = archive
		return s, nil
	}

	tiles, err := NewTiles(fetcher, TilesConfig{
		TilesDir:             cfg.TilesDir,
		CacheControl:         cfg.CacheControl,
		FetchMissing:         cfg.FetchMissing,
		MaxConcurrentFetches: cfg.MaxConcurrentFetches,
		FetchTimeout:         cfg.FetchTimeout,
		FailureTTL:           cfg.FailureTTL,
	}, logger)
	if err != nil {
		return nil, err
	}
	s.tiles = tiles
	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})

	if s.archive != nil {
		mux.Handle("/tiles/", withCORS(s.archive.Handler()))
		mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]string{"source": s.cfg.MBTilesPath})
		})
	} else {
		mux.Handle("/tiles/", withCORS(s.tiles.Handler()))
		mux.Handle("/status", s.tiles.StatusHandler())
	}

	mux.Handle("/", http.FileServer(http.Dir(s.cfg.SiteDir)))
	return mux
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	s.log().Info("preview server listening",
		"addr", addr,
		"site_dir", s.cfg.SiteDir,
		"tiles_dir", s.cfg.TilesDir,
		"mbtiles", s.cfg.MBTilesPath,
		"fetch_missing", s.cfg.FetchMissing,
	)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}

// Close releases the tile archive and stops background cleanup.
func (s *Server) Close() error {
	if s.tiles != nil {
		s.tiles.Stop()
	}
	if s.archive != nil {
		return s.archive.Close()
	}
	return nil
}

func (s *Server) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
