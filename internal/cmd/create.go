package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/cldfoffline/internal/download"
	"github.com/MeKo-Tech/cldfoffline/internal/pipeline"
)

var createCmd = &cobra.Command{
	Use:   "create [dataset]",
	Short: "Build the offline site for a CLDF Wordlist",
	Long: `Build the offline site for a CLDF Wordlist.

The dataset argument is a metadata JSON file or a directory containing one.
Tiles and recordings already present in the output directory are reused, so
an interrupted build can simply be started again.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCreate,
}

func init() {
	rootCmd.AddCommand(createCmd)

	createCmd.Flags().String("dataset", ".", "CLDF Wordlist metadata file or directory")
	createCmd.Flags().Int("min-zoom", 1, "Minimum zoom level of the map")
	createCmd.Flags().Int("max-zoom", 10, "Maximum zoom level of the map (at most 12)")
	createCmd.Flags().Float64("padding", 10, "Padding around the languages in degrees at zoom 0")
	createCmd.Flags().IntP("workers", "w", 4, "Number of parallel tile downloads")
	createCmd.Flags().Bool("progress", true, "Show progress bar while downloading tiles")
	createCmd.Flags().Bool("skip-tiles", false, "Do not download missing tiles")
	createCmd.Flags().Bool("skip-audio", false, "Do not copy recordings")
	addFetchFlags(createCmd, "create")

	bindFlags(createCmd, "create",
		"dataset", "min-zoom", "max-zoom", "padding", "workers", "progress", "skip-tiles", "skip-audio")
}

func runCreate(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	datasetPath := viper.GetString("create.dataset")
	if len(args) == 1 {
		datasetPath = args[0]
	}
	workers := viper.GetInt("create.workers")
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	cfg := pipeline.Config{
		DatasetPath: expandPath(datasetPath),
		OutDir:      expandPath(viper.GetString("outdir")),
		UserAgent:   viper.GetString("create.user_agent"),
		Padding:     viper.GetFloat64("create.padding"),
		MinZoom:     viper.GetInt("create.min_zoom"),
		MaxZoom:     viper.GetInt("create.max_zoom"),
		Workers:     workers,
		SkipTiles:   viper.GetBool("create.skip_tiles"),
		SkipAudio:   viper.GetBool("create.skip_audio"),
		Progress:    viper.GetBool("create.progress"),
	}

	var fetcher download.Fetcher
	if !cfg.SkipTiles {
		f, err := newFetcher("create")
		if err != nil {
			return err
		}
		fetcher = f
	}

	builder, err := pipeline.NewBuilder(cfg, fetcher, logger)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger.Info("Starting offline build",
		"dataset", cfg.DatasetPath,
		"output_dir", cfg.OutDir,
		"zoom_range", fmt.Sprintf("%d-%d", cfg.MinZoom, cfg.MaxZoom),
		"padding", cfg.Padding,
		"workers", cfg.Workers,
	)

	ctx, cancel := signalContext()
	defer cancel()

	res, err := builder.Build(ctx)
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	logger.Info("Build complete",
		"output_dir", cfg.OutDir,
		"bbox", res.Box.String(),
		"tiles", res.Tiles,
		"missing", res.Missing,
		"audio", res.Audio,
		"audio_failed", res.AudioFailed,
	)
	if res.Download.Fetched+res.Download.Failed > 0 {
		logger.Info(res.Download.String())
	}
	if res.Download.Failed > 0 {
		return fmt.Errorf("%d tiles failed to download; run create again to retry", res.Download.Failed)
	}
	return nil
}
