package download

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/time/rate"

	"github.com/MeKo-Tech/cldfoffline/internal/tile"
	"github.com/MeKo-Tech/cldfoffline/internal/types"
)

const (
	// DefaultURLTemplate is the OpenStreetMap standard tile layer.
	DefaultURLTemplate = "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png"
	// DefaultUserAgent identifies the tool to tile servers.
	DefaultUserAgent = "cldfoffline/0.1"
	// DefaultRate is the default request rate in requests per second.
	DefaultRate = 10

	maxTileBytes = 4 << 20
)

// DefaultSubdomains are substituted for {s} in round-robin order.
var DefaultSubdomains = []string{"a", "b", "c"}

// HTTPConfig configures an HTTPFetcher. Zero values select the defaults.
type HTTPConfig struct {
	URLTemplate string
	UserAgent   string
	Subdomains  []string
	// Rate limits requests per second across all workers. Negative disables
	// the limiter.
	Rate     float64
	Timeout  time.Duration
	UseHTTP2 bool
}

// HTTPFetcher downloads tiles from a slippy-map tile server.
type HTTPFetcher struct {
	client     *http.Client
	limiter    *rate.Limiter
	template   string
	userAgent  string
	subdomains []string
	next       atomic.Uint64
}

// NewHTTPFetcher validates cfg and builds a fetcher.
func NewHTTPFetcher(cfg HTTPConfig, logger *slog.Logger) (*HTTPFetcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.URLTemplate == "" {
		cfg.URLTemplate = DefaultURLTemplate
	}
	for _, p := range []string{"{z}", "{x}"} {
		if !strings.Contains(cfg.URLTemplate, p) {
			return nil, fmt.Errorf("%w: tile url %q lacks %s", types.ErrConfig, cfg.URLTemplate, p)
		}
	}
	if !strings.Contains(cfg.URLTemplate, "{y}") && !strings.Contains(cfg.URLTemplate, "{-y}") {
		return nil, fmt.Errorf("%w: tile url %q lacks {y}", types.ErrConfig, cfg.URLTemplate)
	}
	if len(cfg.Subdomains) == 0 {
		cfg.Subdomains = DefaultSubdomains
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Rate == 0 {
		cfg.Rate = DefaultRate
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   15 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:   cfg.UseHTTP2,
		MaxIdleConnsPerHost: 16,
		IdleConnTimeout:     30 * time.Second,
		TLSHandshakeTimeout: 15 * time.Second,
		TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
	}
	if cfg.UseHTTP2 {
		if err := http2.ConfigureTransport(transport); err != nil {
			logger.Warn("HTTP/2 unavailable, using HTTP/1.1", "error", err)
		}
	}

	f := &HTTPFetcher{
		client:     &http.Client{Transport: transport, Timeout: cfg.Timeout},
		template:   cfg.URLTemplate,
		userAgent:  cfg.UserAgent,
		subdomains: cfg.Subdomains,
	}
	if cfg.Rate > 0 {
		f.limiter = rate.NewLimiter(rate.Limit(cfg.Rate), max(1, int(cfg.Rate)))
	}

	logger.Debug("tile fetcher ready",
		"url_template", cfg.URLTemplate,
		"rate", cfg.Rate,
		"http2", cfg.UseHTTP2)

	return f, nil
}

// URL expands the template for coords. {s} rotates through the subdomains.
func (f *HTTPFetcher) URL(coords tile.Coords) string {
	sub := f.subdomains[(f.next.Add(1)-1)%uint64(len(f.subdomains))]
	z := int(coords.Z)
	r := strings.NewReplacer(
		"{s}", sub,
		"{z}", strconv.Itoa(z),
		"{x}", strconv.FormatUint(uint64(coords.X), 10),
		"{y}", strconv.FormatUint(uint64(coords.Y), 10),
		"{-y}", strconv.Itoa(1<<z-1-int(coords.Y)),
	)
	return r.Replace(f.template)
}

// FetchTile implements Fetcher.
func (f *HTTPFetcher) FetchTile(ctx context.Context, coords tile.Coords) ([]byte, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	url := f.URL(coords)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", coords, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "image/png,image/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", coords, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: %s", url, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxTileBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", url, err)
	}
	if len(data) > maxTileBytes {
		return nil, fmt.Errorf("tile %s exceeds %d bytes", coords, maxTileBytes)
	}
	if !IsImage(data) {
		return nil, fmt.Errorf("%s: %w", url, ErrNotImage)
	}
	return data, nil
}
