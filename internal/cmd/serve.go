package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/cldfoffline/internal/download"
	"github.com/MeKo-Tech/cldfoffline/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Preview a built site over HTTP (optionally fetching missing tiles on demand)",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "127.0.0.1:8080", "Listen address (host:port)")
	serveCmd.Flags().String("tiles-dir", "", "Directory containing tiles (defaults to <outdir>/tiles)")
	serveCmd.Flags().String("mbtiles", "", "Serve tiles from this MBTiles archive instead of the tile directory")
	serveCmd.Flags().Bool("fetch-missing", false, "Fetch tiles missing on disk from the tile server and store them")
	serveCmd.Flags().Int("max-concurrent-fetches", 2, "Max concurrent on-demand tile fetches")
	serveCmd.Flags().Duration("fetch-timeout", 0, "Timeout per on-demand tile fetch (default 30s)")
	serveCmd.Flags().Duration("failure-ttl", 0, "How long a failed tile is not requested again (default 1m)")
	serveCmd.Flags().String("cache-control", "no-cache", "Cache-Control header for served tiles")
	addFetchFlags(serveCmd, "serve")

	bindFlags(serveCmd, "serve",
		"addr", "tiles-dir", "mbtiles", "fetch-missing", "max-concurrent-fetches",
		"fetch-timeout", "failure-ttl", "cache-control")
}

func runServe(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	cfg := server.Config{
		SiteDir:              expandPath(viper.GetString("outdir")),
		TilesDir:             tilesDir(viper.GetString("serve.tiles_dir")),
		CacheControl:         viper.GetString("serve.cache_control"),
		FetchMissing:         viper.GetBool("serve.fetch_missing"),
		MaxConcurrentFetches: viper.GetInt("serve.max_concurrent_fetches"),
		FetchTimeout:         viper.GetDuration("serve.fetch_timeout"),
		FailureTTL:           viper.GetDuration("serve.failure_ttl"),
	}
	if p := viper.GetString("serve.mbtiles"); p != "" {
		cfg.MBTilesPath = expandPath(p)
	}

	var fetcher download.Fetcher
	if cfg.FetchMissing {
		f, err := newFetcher("serve")
		if err != nil {
			return err
		}
		fetcher = f
	}

	srv, err := server.New(cfg, fetcher, logger)
	if err != nil {
		return err
	}
	defer srv.Close()

	ctx, cancel := signalContext()
	defer cancel()

	return srv.ListenAndServe(ctx, viper.GetString("serve.addr"))
}
