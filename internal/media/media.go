// Package media copies the audio recordings of a wordlist into the output
// directory.
package media

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/MeKo-Tech/cldfoffline/internal/dataset"
	"github.com/MeKo-Tech/cldfoffline/internal/types"
)

// ErrChecksum is returned when downloaded content does not match the
// expected md5 sum.
var ErrChecksum = errors.New("md5 mismatch")

// BestAudio picks the recording to ship for a form: MP3 when available,
// otherwise the first audio file.
func BestAudio(files []dataset.Media) (dataset.Media, bool) {
	var first *dataset.Media
	for i, m := range files {
		if !m.IsAudio() {
			continue
		}
		if m.MediaType == "audio/mpeg" {
			return m, true
		}
		if first == nil {
			first = &files[i]
		}
	}
	if first == nil {
		return dataset.Media{}, false
	}
	return *first, true
}

var extensions = map[string]string{
	"audio/mpeg":  ".mp3",
	"audio/mp3":   ".mp3",
	"audio/wav":   ".wav",
	"audio/x-wav": ".wav",
	"audio/ogg":   ".ogg",
	"audio/webm":  ".webm",
	"audio/mp4":   ".m4a",
	"audio/flac":  ".flac",
}

// Extension returns the file extension for m, derived from its media type or
// else from its URL.
func Extension(m dataset.Media) string {
	if ext, ok := extensions[m.MediaType]; ok {
		return ext
	}
	if u, err := url.Parse(m.URL); err == nil {
		return path.Ext(u.Path)
	}
	return ""
}

// Downloader fetches media files over HTTP or copies them from disk.
type Downloader struct {
	client    *http.Client
	logger    *slog.Logger
	baseDir   string
	userAgent string
}

// NewDownloader creates a Downloader resolving relative URLs against baseDir.
func NewDownloader(baseDir, userAgent string, logger *slog.Logger) *Downloader {
	return &Downloader{
		client:    &http.Client{Timeout: 2 * time.Minute},
		logger:    logger,
		baseDir:   baseDir,
		userAgent: userAgent,
	}
}

func (d *Downloader) log() *slog.Logger {
	if d.logger != nil {
		return d.logger
	}
	return slog.Default()
}

// Download stores m as dir/name. An existing file is kept when no checksum is
// known or when it matches. It returns the path of the stored file.
func (d *Downloader) Download(ctx context.Context, m dataset.Media, dir, name string) (string, error) {
	target := filepath.Join(dir, name)

	if ok, err := upToDate(target, m.MD5); err != nil {
		return "", err
	} else if ok {
		d.log().Debug("media up to date", "media_id", m.ID, "path", target)
		return target, nil
	}

	src, err := d.open(ctx, m)
	if err != nil {
		return "", fmt.Errorf("media %s: %w", m.ID, err)
	}
	defer src.Close()

	if err := writeVerified(target, src, m.MD5); err != nil {
		return "", fmt.Errorf("media %s: %w", m.ID, err)
	}
	d.log().Debug("media stored", "media_id", m.ID, "path", target)
	return target, nil
}

func (d *Downloader) open(ctx context.Context, m dataset.Media) (io.ReadCloser, error) {
	if m.URL == "" {
		return nil, fmt.Errorf("%w: no download URL", types.ErrInvalidInput)
	}
	u, err := url.Parse(m.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidInput, err)
	}

	switch u.Scheme {
	case "http", "https":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.URL, nil)
		if err != nil {
			return nil, err
		}
		if d.userAgent != "" {
			req.Header.Set("User-Agent", d.userAgent)
		}
		resp, err := d.client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("GET %s: %s", m.URL, resp.Status)
		}
		return resp.Body, nil
	case "file":
		return os.Open(filepath.FromSlash(u.Path))
	case "":
		p := filepath.FromSlash(u.Path)
		if !filepath.IsAbs(p) {
			p = filepath.Join(d.baseDir, p)
		}
		return os.Open(p)
	default:
		return nil, fmt.Errorf("%w: unsupported URL scheme %q", types.ErrInvalidInput, u.Scheme)
	}
}

func upToDate(path, sum string) (bool, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %v", types.ErrStorage, err)
	}
	defer f.Close()

	if sum == "" {
		return true, nil
	}
	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return false, fmt.Errorf("%w: %v", types.ErrStorage, err)
	}
	return strings.EqualFold(hex.EncodeToString(h.Sum(nil)), sum), nil
}

// writeVerified copies src to path through a temp file, checking the md5 sum
// when one is given.
func writeVerified(path string, src io.Reader, sum string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", types.ErrStorage, err)
	}
	tmp, err := os.CreateTemp(dir, ".media-*")
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrStorage, err)
	}
	defer os.Remove(tmp.Name()) // nolint:errcheck // no-op after rename

	h := md5.New()
	if _, err := io.Copy(io.MultiWriter(tmp, h), src); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", types.ErrStorage, err)
	}
	if got := hex.EncodeToString(h.Sum(nil)); sum != "" && !strings.EqualFold(got, sum) {
		return fmt.Errorf("%w: got %s, want %s", ErrChecksum, got, sum)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("%w: %v", types.ErrStorage, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("%w: %v", types.ErrStorage, err)
	}
	return nil
}
