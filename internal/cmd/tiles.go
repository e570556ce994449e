package cmd

import (
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/cldfoffline/internal/dataset"
	"github.com/MeKo-Tech/cldfoffline/internal/download"
	"github.com/MeKo-Tech/cldfoffline/internal/geo"
	"github.com/MeKo-Tech/cldfoffline/internal/tile"
	"github.com/MeKo-Tech/cldfoffline/internal/tilelist"
)

var tilesCmd = &cobra.Command{
	Use:   "tiles",
	Short: "Compute, prune and download map tile lists",
}

var tilesListCmd = &cobra.Command{
	Use:   "list [dataset]",
	Short: "Compute the tiles covering all languages and write them to a list file",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTilesList,
}

var tilesPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove tiles that are already on disk from a list file",
	RunE:  runTilesPrune,
}

var tilesDownloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download the tiles of a list file that are not on disk yet",
	RunE:  runTilesDownload,
}

func init() {
	rootCmd.AddCommand(tilesCmd)
	tilesCmd.AddCommand(tilesListCmd, tilesPruneCmd, tilesDownloadCmd)

	tilesListCmd.Flags().String("dataset", ".", "CLDF Wordlist metadata file or directory")
	tilesListCmd.Flags().Int("min-zoom", 1, "Minimum zoom level")
	tilesListCmd.Flags().Int("max-zoom", 10, "Maximum zoom level (at most 12)")
	tilesListCmd.Flags().Float64("padding", 10, "Padding around the languages in degrees at zoom 0")
	tilesListCmd.Flags().StringP("output", "o", "", "List file (default: <outdir>/tiles/tilelist.yaml)")
	bindFlags(tilesListCmd, "tiles.list", "dataset", "min-zoom", "max-zoom", "padding", "output")

	tilesPruneCmd.Flags().String("list", "", "List file (default: <outdir>/tiles/tilelist.yaml)")
	tilesPruneCmd.Flags().String("tiles-dir", "", "Tile directory (default: <outdir>/tiles)")
	tilesPruneCmd.Flags().StringP("output", "o", "", "Where to write the pruned list (default: overwrite --list)")
	bindFlags(tilesPruneCmd, "tiles.prune", "list", "tiles-dir", "output")

	tilesDownloadCmd.Flags().String("list", "", "List file (default: <outdir>/tiles/tilelist.yaml)")
	tilesDownloadCmd.Flags().String("tiles-dir", "", "Tile directory (default: <outdir>/tiles)")
	tilesDownloadCmd.Flags().IntP("workers", "w", 4, "Number of parallel tile downloads")
	tilesDownloadCmd.Flags().Bool("progress", true, "Show progress bar")
	addFetchFlags(tilesDownloadCmd, "tiles.download")
	bindFlags(tilesDownloadCmd, "tiles.download", "list", "tiles-dir", "workers", "progress")
}

func tilesDir(configured string) string {
	if configured != "" {
		return expandPath(configured)
	}
	return filepath.Join(expandPath(viper.GetString("outdir")), "tiles")
}

func listFile(configured string) string {
	if configured != "" {
		return expandPath(configured)
	}
	return filepath.Join(tilesDir(""), tilelist.DefaultFilename)
}

func runTilesList(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	datasetPath := viper.GetString("tiles.list.dataset")
	if len(args) == 1 {
		datasetPath = args[0]
	}
	minZoom := viper.GetInt("tiles.list.min_zoom")
	maxZoom := viper.GetInt("tiles.list.max_zoom")
	padding := viper.GetFloat64("tiles.list.padding")
	output := listFile(viper.GetString("tiles.list.output"))

	if err := tile.ValidateParams(minZoom, maxZoom, padding); err != nil {
		return err
	}

	ds, err := dataset.Read(expandPath(datasetPath))
	if err != nil {
		return err
	}
	box, err := geo.ComputeBoundingBox(ds.Coordinates())
	if err != nil {
		return fmt.Errorf("no language has coordinates: %w", err)
	}
	list, err := tile.BuildListForBox(box, minZoom, maxZoom, padding)
	if err != nil {
		return err
	}
	if err := tilelist.WriteFile(output, list); err != nil {
		return err
	}

	logger.Info("Tile list written",
		"output", output,
		"bbox", box.String(),
		"antimeridian", box.CrossesAntimeridian(),
		"tiles", list.Len(),
	)
	for _, z := range list.Zooms() {
		logger.Debug("tiles per zoom", "zoom", z, "tiles", len(list.Tiles(z)))
	}
	return nil
}

func runTilesPrune(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	input := listFile(viper.GetString("tiles.prune.list"))
	dir := tilesDir(viper.GetString("tiles.prune.tiles_dir"))
	output := input
	if o := viper.GetString("tiles.prune.output"); o != "" {
		output = expandPath(o)
	}

	list, err := tilelist.ReadFile(input)
	if err != nil {
		return err
	}
	total := list.Len()
	missing, err := list.Prune(dir)
	if err != nil {
		return err
	}
	if err := tilelist.WriteFile(output, list); err != nil {
		return err
	}

	logger.Info("Tile list pruned",
		"output", output,
		"tiles", total,
		"present", total-missing,
		"missing", missing,
	)
	return nil
}

func runTilesDownload(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	input := listFile(viper.GetString("tiles.download.list"))
	dir := tilesDir(viper.GetString("tiles.download.tiles_dir"))
	workers := viper.GetInt("tiles.download.workers")
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	list, err := tilelist.ReadFile(input)
	if err != nil {
		return err
	}
	fetcher, err := newFetcher("tiles.download")
	if err != nil {
		return err
	}

	logger.Info("Starting tile download",
		"list", input,
		"tiles_dir", dir,
		"tiles", list.Len(),
		"workers", workers,
	)

	ctx, cancel := signalContext()
	defer cancel()

	d := download.NewDownloader(fetcher,
		download.WithWorkers(workers),
		download.WithProgress(viper.GetBool("tiles.download.progress")),
		download.WithLogger(logger))
	summary, err := d.Download(ctx, list, dir)
	if err != nil {
		return err
	}

	logger.Info(summary.String())
	if summary.Failed > 0 {
		return fmt.Errorf("%d tiles failed to download", summary.Failed)
	}
	return nil
}
