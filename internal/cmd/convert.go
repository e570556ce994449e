package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/cldfoffline/internal/dataset"
	"github.com/MeKo-Tech/cldfoffline/internal/geo"
	"github.com/MeKo-Tech/cldfoffline/internal/mbtiles"
	"github.com/MeKo-Tech/cldfoffline/internal/tile"
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Pack the downloaded tiles into an MBTiles archive",
	Long: `Pack the z/x/y.png tiles of a built site into a single MBTiles archive.

When --dataset is given, the archive bounds and center are taken from the
bounding box of its languages and the zoom range from the flags; otherwise
bounds and zoom range are those of the tiles found.`,
	RunE: runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)

	convertCmd.Flags().String("input-dir", "", "Tile directory (default: <outdir>/tiles)")
	convertCmd.Flags().StringP("output", "o", "", "Output MBTiles file (default: <outdir>/tiles.mbtiles)")
	convertCmd.Flags().String("dataset", "", "CLDF Wordlist used for the archive bounds (optional)")
	convertCmd.Flags().String("name", "", "Tileset name (default: dataset title)")
	convertCmd.Flags().String("description", "OpenStreetMap tiles for an offline wordlist", "Tileset description")
	convertCmd.Flags().Int("min-zoom", 1, "Minimum zoom level recorded with --dataset")
	convertCmd.Flags().Int("max-zoom", 10, "Maximum zoom level recorded with --dataset")

	bindFlags(convertCmd, "convert", "input-dir", "output", "dataset", "name", "description", "min-zoom", "max-zoom")
}

func runConvert(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	outDir := expandPath(viper.GetString("outdir"))
	inputDir := tilesDir(viper.GetString("convert.input_dir"))
	output := filepath.Join(outDir, "tiles.mbtiles")
	if o := viper.GetString("convert.output"); o != "" {
		output = expandPath(o)
	}
	name := viper.GetString("convert.name")
	minZoom := viper.GetInt("convert.min_zoom")
	maxZoom := viper.GetInt("convert.max_zoom")

	if err := tile.ValidateZoomRange(minZoom, maxZoom); err != nil {
		return err
	}
	if info, err := os.Stat(inputDir); err != nil || !info.IsDir() {
		return fmt.Errorf("input directory does not exist: %s", inputDir)
	}

	meta := mbtiles.Metadata{Format: "png", Attribution: "© OpenStreetMap contributors", Type: "baselayer", Version: "1.0"}
	bbox := "from tiles"
	if p := viper.GetString("convert.dataset"); p != "" {
		ds, err := dataset.Read(expandPath(p))
		if err != nil {
			return err
		}
		box, err := geo.ComputeBoundingBox(ds.Coordinates())
		if err != nil {
			return fmt.Errorf("no language has coordinates: %w", err)
		}
		if name == "" {
			name = ds.Title
		}
		meta = mbtiles.MetadataForBox(name, box, minZoom, maxZoom)
		bbox = box.String()
	}
	if name == "" {
		name = "cldfoffline"
	}
	meta.Name = name
	meta.Description = viper.GetString("convert.description")

	logger.Info("Converting folder tiles to MBTiles",
		"input_dir", inputDir,
		"output", output,
		"name", name,
		"bbox", bbox,
	)

	ctx, cancel := signalContext()
	defer cancel()

	n, err := mbtiles.ExportDir(ctx, inputDir, output, meta, logger)
	if err != nil {
		return fmt.Errorf("conversion failed: %w", err)
	}
	if n == 0 {
		logger.Warn("No tiles found", "input_dir", inputDir)
	}

	var size uint64
	if info, err := os.Stat(output); err == nil {
		size = uint64(info.Size())
	}
	logger.Info("Conversion complete", "output", output, "tiles", n, "size", humanize.Bytes(size))
	return nil
}
