package mbtiles

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb"

	"github.com/MeKo-Tech/cldfoffline/internal/tile"
	"github.com/MeKo-Tech/cldfoffline/internal/types"
)

// ExportDir packs every z/x/y.png tile below dir into a new archive at path.
// Other files are ignored. The archive is built next to path and renamed
// into place once complete. When meta has no bounds, bounds, center and zoom
// range are taken from the exported tiles.
func ExportDir(ctx context.Context, dir, path string, meta Metadata, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}

	tmp := path + ".partial"
	if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
		return 0, fmt.Errorf("%w: %v", types.ErrStorage, err)
	}

	w, err := Create(tmp, meta)
	if err != nil {
		return 0, err
	}

	var (
		extent           orb.Bound
		minZoom, maxZoom int
		found            bool
	)

	walkErr := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(p) != ".png" {
			return nil
		}

		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		c, err := tile.ParseCoords(strings.TrimSuffix(filepath.ToSlash(rel), ".png"))
		if err != nil {
			logger.Debug("skipping non-tile file", "path", p)
			return nil
		}

		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		if !found {
			extent, minZoom, maxZoom, found = c.Bound(), int(c.Z), int(c.Z), true
		} else {
			extent = extent.Union(c.Bound())
			minZoom, maxZoom = min(minZoom, int(c.Z)), max(maxZoom, int(c.Z))
		}
		return w.WriteTile(c, data)
	})
	if walkErr == nil && found && meta.Bounds == ([4]float64{}) {
		walkErr = w.SetMetadata(meta.withExtent(extent, minZoom, maxZoom))
	}

	closeErr := w.Close()
	if walkErr == nil {
		walkErr = closeErr
	}
	if walkErr != nil {
		os.Remove(tmp)
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, fmt.Errorf("%w: exporting %s: %v", types.ErrStorage, dir, walkErr)
	}

	if err := os.Rename(tmp, path); err != nil {
		return 0, fmt.Errorf("%w: %v", types.ErrStorage, err)
	}

	n := w.Written()
	logger.Info("exported tiles", "count", n, "output", path)
	return n, nil
}
