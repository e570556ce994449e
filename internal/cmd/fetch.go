package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/cldfoffline/internal/download"
)

// addFetchFlags registers the tile server flags shared by create, tiles
// download and serve.
func addFetchFlags(cmd *cobra.Command, section string) {
	cmd.Flags().String("url", download.DefaultURLTemplate, "Tile URL template with {z}, {x}, {y} or {-y} and optional {s}")
	cmd.Flags().String("subdomains", strings.Join(download.DefaultSubdomains, ","), "Comma separated values for {s}")
	cmd.Flags().String("user-agent", download.DefaultUserAgent, "User-Agent sent to the tile server")
	cmd.Flags().Float64("rate", download.DefaultRate, "Maximum tile requests per second (negative: unlimited)")
	cmd.Flags().Bool("http2", true, "Allow HTTP/2 connections to the tile server")

	bindFlags(cmd, section, "url", "subdomains", "user-agent", "rate", "http2")
}

func newFetcher(section string) (*download.HTTPFetcher, error) {
	var subdomains []string
	for _, s := range strings.Split(viper.GetString(section+".subdomains"), ",") {
		if s = strings.TrimSpace(s); s != "" {
			subdomains = append(subdomains, s)
		}
	}

	return download.NewHTTPFetcher(download.HTTPConfig{
		URLTemplate: viper.GetString(section + ".url"),
		UserAgent:   viper.GetString(section + ".user_agent"),
		Subdomains:  subdomains,
		Rate:        viper.GetFloat64(section + ".rate"),
		UseHTTP2:    viper.GetBool(section + ".http2"),
	}, logger)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Info("Received interrupt signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}
