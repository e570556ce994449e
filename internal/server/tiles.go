package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/MeKo-Tech/cldfoffline/internal/download"
	"github.com/MeKo-Tech/cldfoffline/internal/tile"
)

// TilesConfig configures the tile handler.
type TilesConfig struct {
	TilesDir     string
	CacheControl string
	// FetchMissing fetches tiles that are not on disk and stores them.
	FetchMissing         bool
	MaxConcurrentFetches int
	FetchTimeout         time.Duration
	// FailureTTL is how long a failed tile is answered with 502 without
	// asking the tile server again.
	FailureTTL time.Duration
}

// Tiles serves z/x/y.png tiles from disk, optionally fetching missing ones.
type Tiles struct {
	fetcher  download.Fetcher
	failures *ttlcache.Cache[tile.Coords, string]
	logger   *slog.Logger
	sem      chan struct{}
	locks    map[tile.Coords]*tileLock
	cfg      TilesConfig
	locksMu  sync.Mutex

	activeFetches atomic.Int32
	totalFetched  atomic.Int64
	totalFailed   atomic.Int64
}

// tileLock serialises fetches of one tile. refs counts the requests holding
// or waiting for it; the entry leaves the map when it drops to zero.
type tileLock struct {
	mu   sync.Mutex
	refs int
}

// TileStatus reports on-demand fetch activity.
type TileStatus struct {
	ActiveFetches  int   `json:"active_fetches"`
	TotalFetched   int64 `json:"total_fetched"`
	TotalFailed    int64 `json:"total_failed"`
	CachedFailures int   `json:"cached_failures"`
	MaxConcurrent  int   `json:"max_concurrent"`
	PendingTiles   int   `json:"pending_tiles"`
}

// NewTiles creates a tile handler. fetcher may be nil when FetchMissing is off.
func NewTiles(fetcher download.Fetcher, cfg TilesConfig, logger *slog.Logger) (*Tiles, error) {
	if cfg.TilesDir == "" {
		cfg.TilesDir = "./tiles"
	}
	if cfg.FetchMissing && fetcher == nil {
		return nil, errors.New("fetching missing tiles needs a tile source")
	}
	if cfg.MaxConcurrentFetches <= 0 {
		cfg.MaxConcurrentFetches = 2
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
	if cfg.FailureTTL <= 0 {
		cfg.FailureTTL = time.Minute
	}
	if cfg.CacheControl == "" {
		cfg.CacheControl = "no-cache"
	}

	failures := ttlcache.New(
		ttlcache.WithTTL[tile.Coords, string](cfg.FailureTTL),
		ttlcache.WithDisableTouchOnHit[tile.Coords, string](),
	)
	go failures.Start()

	return &Tiles{
		fetcher:  fetcher,
		failures: failures,
		cfg:      cfg,
		logger:   logger,
		sem:      make(chan struct{}, cfg.MaxConcurrentFetches),
		locks:    make(map[tile.Coords]*tileLock),
	}, nil
}

// Stop ends the failure cache cleanup loop.
func (t *Tiles) Stop() {
	t.failures.Stop()
}

// Status returns the current fetch counters.
func (t *Tiles) Status() TileStatus {
	return TileStatus{
		ActiveFetches:  int(t.activeFetches.Load()),
		TotalFetched:   t.totalFetched.Load(),
		TotalFailed:    t.totalFailed.Load(),
		CachedFailures: t.failures.Len(),
		MaxConcurrent:  t.cfg.MaxConcurrentFetches,
		PendingTiles:   t.pendingLocks(),
	}
}

// StatusHandler serves Status as JSON.
func (t *Tiles) StatusHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		if err := json.NewEncoder(w).Encode(t.Status()); err != nil {
			t.log().Error("failed to encode status", "error", err)
		}
	})
}

// Handler returns the handler for /tiles/ requests.
func (t *Tiles) Handler() http.Handler {
	return http.HandlerFunc(t.serveTile)
}

func (t *Tiles) serveTile(w http.ResponseWriter, r *http.Request) {
	coords, ok := parseTilePath(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}

	fullPath := coords.Path(t.cfg.TilesDir)
	w.Header().Set("Cache-Control", t.cfg.CacheControl)

	if fileExists(fullPath) {
		http.ServeFile(w, r, fullPath)
		return
	}
	if !t.cfg.FetchMissing || int(coords.Z) > tile.MaxBulkZoom {
		http.Error(w, fmt.Sprintf("tile not found: %s", coords), http.StatusNotFound)
		return
	}
	if item := t.failures.Get(coords); item != nil {
		http.Error(w, fmt.Sprintf("tile %s recently failed: %s", coords, item.Value()), http.StatusBadGateway)
		return
	}

	unlock := t.lock(coords)
	defer unlock()

	// Another request may have fetched it, or failed to, while we waited.
	if fileExists(fullPath) {
		http.ServeFile(w, r, fullPath)
		return
	}
	if item := t.failures.Get(coords); item != nil {
		http.Error(w, fmt.Sprintf("tile %s recently failed: %s", coords, item.Value()), http.StatusBadGateway)
		return
	}

	select {
	case t.sem <- struct{}{}:
		defer func() { <-t.sem }()
	case <-r.Context().Done():
		http.Error(w, "request cancelled", http.StatusRequestTimeout)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), t.cfg.FetchTimeout)
	defer cancel()

	start := time.Now()
	t.activeFetches.Add(1)
	data, err := t.fetcher.FetchTile(ctx, coords)
	t.activeFetches.Add(-1)

	if err != nil {
		t.totalFailed.Add(1)
		if r.Context().Err() == nil {
			t.failures.Set(coords, err.Error(), ttlcache.DefaultTTL)
		}
		t.log().Warn("failed to fetch tile", "tile", coords.String(), "error", err)
		http.Error(w, fmt.Sprintf("failed to fetch tile %s: %v", coords, err), http.StatusBadGateway)
		return
	}
	if err := download.SaveTile(t.cfg.TilesDir, coords, data); err != nil {
		t.log().Error("failed to store tile", "tile", coords.String(), "error", err)
		http.Error(w, "failed to store tile", http.StatusInternalServerError)
		return
	}
	t.totalFetched.Add(1)
	t.log().Info("tile fetched on demand", "tile", coords.String(), "ms", time.Since(start).Milliseconds())

	http.ServeFile(w, r, fullPath)
}

// lock takes the per-tile lock for c and returns its release.
func (t *Tiles) lock(c tile.Coords) func() {
	t.locksMu.Lock()
	l, ok := t.locks[c]
	if !ok {
		l = &tileLock{}
		t.locks[c] = l
	}
	l.refs++
	t.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		t.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(t.locks, c)
		}
		t.locksMu.Unlock()
	}
}

// pendingLocks is the number of tiles with a fetch in progress or queued.
func (t *Tiles) pendingLocks() int {
	t.locksMu.Lock()
	defer t.locksMu.Unlock()
	return len(t.locks)
}

func (t *Tiles) log() *slog.Logger {
	if t.logger != nil {
		return t.logger
	}
	return slog.Default()
}

// parseTilePath parses /tiles/{z}/{x}/{y}.png.
func parseTilePath(requestPath string) (tile.Coords, bool) {
	rest, ok := strings.CutPrefix(path.Clean(requestPath), "/tiles/")
	if !ok {
		return tile.Coords{}, false
	}
	name, ok := strings.CutSuffix(rest, ".png")
	if !ok || strings.Count(name, "/") != 2 {
		return tile.Coords{}, false
	}
	coords, err := tile.ParseCoords(name)
	if err != nil || coords.String() != name {
		return tile.Coords{}, false
	}
	return coords, true
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return false
	}
	return err == nil && !info.IsDir()
}
