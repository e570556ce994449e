// Package pipeline builds a complete offline site from a CLDF Wordlist.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/cldfoffline/internal/dataset"
	"github.com/MeKo-Tech/cldfoffline/internal/download"
	"github.com/MeKo-Tech/cldfoffline/internal/geo"
	"github.com/MeKo-Tech/cldfoffline/internal/geojson"
	"github.com/MeKo-Tech/cldfoffline/internal/media"
	"github.com/MeKo-Tech/cldfoffline/internal/site"
	"github.com/MeKo-Tech/cldfoffline/internal/tile"
	"github.com/MeKo-Tech/cldfoffline/internal/tilelist"
	"github.com/MeKo-Tech/cldfoffline/internal/types"
)

// Config controls a build.
type Config struct {
	DatasetPath string
	OutDir      string
	UserAgent   string
	Padding     float64
	MinZoom     int
	MaxZoom     int
	Workers     int
	// SkipTiles keeps whatever tiles are on disk and fetches nothing.
	SkipTiles bool
	// SkipAudio links recordings already in the output but copies no new ones.
	SkipAudio bool
	Progress  bool
}

// Result summarizes a build.
type Result struct {
	Box         types.BoundingBox
	Download    download.Summary
	Tiles       int
	Missing     int
	Audio       int
	AudioFailed int
}

// Builder runs the build steps in order: read the dataset, compute the tile
// list, fetch missing tiles, copy audio, render the site.
type Builder struct {
	fetcher download.Fetcher
	logger  *slog.Logger
	cfg     Config
}

// NewBuilder validates cfg. fetcher may be nil when cfg.SkipTiles is set.
func NewBuilder(cfg Config, fetcher download.Fetcher, logger *slog.Logger) (*Builder, error) {
	if err := tile.ValidateParams(cfg.MinZoom, cfg.MaxZoom, cfg.Padding); err != nil {
		return nil, err
	}
	if cfg.OutDir == "" {
		return nil, fmt.Errorf("%w: no output directory", types.ErrConfig)
	}
	if fetcher == nil && !cfg.SkipTiles {
		return nil, fmt.Errorf("%w: no tile source", types.ErrConfig)
	}

	return &Builder{cfg: cfg, fetcher: fetcher, logger: logger}, nil
}

func (b *Builder) log() *slog.Logger {
	if b.logger != nil {
		return b.logger
	}
	return slog.Default()
}

// Build writes the site to the configured output directory. Rebuilding an
// existing output only fetches what is missing.
func (b *Builder) Build(ctx context.Context) (Result, error) {
	var res Result

	ds, err := dataset.Read(b.cfg.DatasetPath)
	if err != nil {
		return res, err
	}
	b.log().Info("read dataset",
		"title", ds.Title,
		"languages", len(ds.Languages),
		"concepts", len(ds.Concepts),
		"forms", len(ds.Forms))

	layout := site.Layout{Root: b.cfg.OutDir}
	if err := layout.Create(); err != nil {
		return res, err
	}

	list, err := b.tiles(ds, &res)
	if err != nil {
		return res, err
	}
	if err := tilelist.WriteFile(filepath.Join(layout.TilesDir(), tilelist.DefaultFilename), list); err != nil {
		return res, err
	}

	if err := b.fetchTiles(ctx, list, layout.TilesDir(), &res); err != nil {
		return res, err
	}

	data, err := b.siteData(ctx, ds, layout, &res)
	if err != nil {
		return res, err
	}

	opts := site.Options{MinZoom: b.cfg.MinZoom, MaxZoom: b.cfg.MaxZoom}
	if err := layout.Render(data, opts); err != nil {
		return res, err
	}
	if err := geojson.WriteFile(layout.Root, data); err != nil {
		return res, err
	}

	b.log().Info("site written",
		"output_dir", b.cfg.OutDir,
		"tiles", res.Tiles,
		"audio", res.Audio)
	return res, nil
}

func (b *Builder) tiles(ds *dataset.Dataset, res *Result) (*tile.List, error) {
	coords := ds.Coordinates()
	if skipped := len(ds.Languages) - len(coords); skipped > 0 {
		b.log().Warn("languages without coordinates are not shown on the map", "count", skipped)
	}

	box, err := geo.ComputeBoundingBox(coords)
	if err != nil {
		return nil, fmt.Errorf("no language has coordinates: %w", err)
	}
	res.Box = box

	list, err := tile.BuildListForBox(box, b.cfg.MinZoom, b.cfg.MaxZoom, b.cfg.Padding)
	if err != nil {
		return nil, err
	}
	res.Tiles = list.Len()

	b.log().Info("computed tile list",
		"bbox", box.String(),
		"antimeridian", box.CrossesAntimeridian(),
		"min_zoom", b.cfg.MinZoom,
		"max_zoom", b.cfg.MaxZoom,
		"tiles", res.Tiles)
	return list, nil
}

func (b *Builder) fetchTiles(ctx context.Context, list *tile.List, dir string, res *Result) error {
	missing, n, err := tile.Prune(list, dir)
	if err != nil {
		return err
	}
	res.Missing = n
	if n == 0 {
		b.log().Info("all tiles present")
		return nil
	}
	if b.cfg.SkipTiles {
		b.log().Warn("tiles missing, not downloading", "missing", n)
		return nil
	}

	b.log().Info("must download tiles", "missing", n)
	d := download.NewDownloader(b.fetcher,
		download.WithWorkers(b.cfg.Workers),
		download.WithProgress(b.cfg.Progress),
		download.WithLogger(b.logger))
	summary, err := d.Download(ctx, missing, dir)
	res.Download = summary
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		b.log().Warn("some tiles could not be downloaded; rerun to retry", "failed", summary.Failed)
	}
	return nil
}

func (b *Builder) siteData(ctx context.Context, ds *dataset.Dataset, layout site.Layout, res *Result) (*site.Data, error) {
	data := site.NewData(ds.Title)
	for _, c := range ds.Concepts {
		data.AddConcept(c.ID, c.Name)
	}
	for _, l := range ds.Languages {
		if c, ok := l.Coordinate(); ok {
			data.AddLanguage(l.ID, site.Language{
				Name:       l.Name,
				Glottocode: l.Glottocode,
				Latitude:   c.Lat,
				Longitude:  c.Lon,
			})
		}
	}

	downloader := media.NewDownloader(ds.Dir, b.cfg.UserAgent, b.logger)
	for _, f := range ds.Forms {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data.SetForm(f.ConceptID, f.LanguageID, f.Value)

		audio, ok := media.BestAudio(ds.FilesFor(f))
		if !ok {
			continue
		}
		name := fileName(f.ConceptID) + "_" + fileName(f.LanguageID) + media.Extension(audio)

		if b.cfg.SkipAudio {
			if _, err := os.Stat(filepath.Join(layout.AudioDir(), name)); errors.Is(err, fs.ErrNotExist) {
				continue
			}
		} else if _, err := downloader.Download(ctx, audio, layout.AudioDir(), name); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			res.AudioFailed++
			b.log().Warn("audio unavailable", "form_id", f.ID, "media_id", audio.ID, "error", err)
			continue
		}

		data.SetAudio(f.ConceptID, f.LanguageID, name, audio.MediaType)
		res.Audio++
	}
	return data, nil
}

// fileName replaces characters that are unsafe in file names and URLs.
func fileName(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		}
		return '_'
	}, id)
}
