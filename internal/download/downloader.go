package download

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/dustin/go-humanize"

	"github.com/MeKo-Tech/cldfoffline/internal/tile"
	"github.com/MeKo-Tech/cldfoffline/internal/types"
	"github.com/MeKo-Tech/cldfoffline/internal/worker"
)

// Summary reports what a download run did.
type Summary struct {
	// Failures maps failed tiles to their error.
	Failures map[tile.Coords]error
	Fetched  int
	Present  int
	// TooDeep counts tiles above the bulk download zoom ceiling.
	TooDeep int
	Failed  int
	Bytes   int64
}

// String renders a one-line report.
func (s Summary) String() string {
	return fmt.Sprintf("fetched %d tiles (%s), %d already present, %d above zoom %d, %d failed",
		s.Fetched, humanize.Bytes(uint64(s.Bytes)), s.Present, s.TooDeep, tile.MaxBulkZoom, s.Failed)
}

// Downloader fetches the missing tiles of a tile list into a directory.
type Downloader struct {
	fetcher  Fetcher
	logger   *slog.Logger
	workers  int
	progress bool
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithWorkers sets the number of concurrent fetches.
func WithWorkers(n int) Option {
	return func(d *Downloader) { d.workers = n }
}

// WithProgress enables the terminal progress bar.
func WithProgress(enabled bool) Option {
	return func(d *Downloader) { d.progress = enabled }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Downloader) { d.logger = logger }
}

// NewDownloader creates a Downloader using fetcher.
func NewDownloader(fetcher Fetcher, opts ...Option) *Downloader {
	d := &Downloader{fetcher: fetcher, workers: 4}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Downloader) log() *slog.Logger {
	if d.logger != nil {
		return d.logger
	}
	return slog.Default()
}

// Download fetches every tile of list that is not yet stored under dir.
// Individual fetch failures are counted in the summary and do not stop the
// run; the returned error reports storage failures and cancellation.
func (d *Downloader) Download(ctx context.Context, list *tile.List, dir string) (Summary, error) {
	summary := Summary{Failures: map[tile.Coords]error{}}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return summary, fmt.Errorf("%w: creating tile directory: %v", types.ErrStorage, err)
	}

	var pending []tile.Coords
	for c := range list.All() {
		if int(c.Z) > tile.MaxBulkZoom {
			summary.TooDeep++
			continue
		}
		ok, err := tile.Exists(c, dir)
		if err != nil {
			return summary, err
		}
		if ok {
			summary.Present++
			continue
		}
		pending = append(pending, c)
	}
	if summary.TooDeep > 0 {
		d.log().Warn("skipping tiles above bulk download zoom",
			"count", summary.TooDeep,
			"max_zoom", tile.MaxBulkZoom)
	}

	d.log().Info("downloading tiles",
		"missing", len(pending),
		"present", summary.Present,
		"workers", d.workers)
	if len(pending) == 0 {
		return summary, nil
	}

	var storageErr atomic.Pointer[error]
	progress := worker.NewProgress(len(pending), d.progress)
	pool := worker.New(worker.Config{
		Workers:    d.workers,
		OnProgress: progress.Report,
		Handler: worker.HandlerFunc(func(ctx context.Context, c tile.Coords) (int64, error) {
			data, err := d.fetcher.FetchTile(ctx, c)
			if err != nil {
				return 0, err
			}
			if err := SaveTile(dir, c, data); err != nil {
				storageErr.CompareAndSwap(nil, &err)
				return 0, err
			}
			return int64(len(data)), nil
		}),
	})

	results := pool.Run(ctx, pending)
	progress.Done()

	for _, r := range results {
		if r.Err != nil {
			summary.Failed++
			summary.Failures[r.Coords] = r.Err
			d.log().Debug("tile failed", "tile", r.Coords.String(), "error", r.Err)
			continue
		}
		summary.Fetched++
		summary.Bytes += r.Bytes
	}

	d.log().Info("tile download finished", "summary", summary.String())

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	if p := storageErr.Load(); p != nil {
		return summary, *p
	}
	return summary, nil
}

// SaveTile writes data to dir/z/x/y.png. The file appears atomically so
// concurrent presence checks never see a partial tile.
func SaveTile(dir string, c tile.Coords, data []byte) error {
	path := c.Path(dir)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: %v", types.ErrStorage, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tile-*")
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrStorage, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: %v", types.ErrStorage, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: writing %s: %v", types.ErrStorage, c, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: writing %s: %v", types.ErrStorage, c, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: %v", types.ErrStorage, err)
	}
	return nil
}
