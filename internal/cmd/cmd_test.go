package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/cldfoffline/internal/download"
	"github.com/MeKo-Tech/cldfoffline/internal/tile"
	"github.com/MeKo-Tech/cldfoffline/internal/tilelist"
)

func TestSnakeCase(t *testing.T) {
	tests := []struct {
		flag string
		want string
	}{
		{"min-zoom", "min_zoom"},
		{"max-concurrent-fetches", "max_concurrent_fetches"},
		{"padding", "padding"},
	}

	for _, tt := range tests {
		if got := snakeCase(tt.flag); got != tt.want {
			t.Errorf("snakeCase(%q) = %q, want %q", tt.flag, got, tt.want)
		}
	}
}

func TestExpandPath(t *testing.T) {
	home, err := homedir.Dir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "data"), expandPath("~/data"))
	assert.Equal(t, "/tmp/data", expandPath("/tmp/data"))
	assert.Equal(t, "relative", expandPath("relative"))
}

func TestDefaultPathsFollowOutdir(t *testing.T) {
	viper.Set("outdir", "/srv/site")
	t.Cleanup(func() { viper.Set("outdir", "") })

	assert.Equal(t, filepath.Join("/srv/site", "tiles"), tilesDir(""))
	assert.Equal(t, filepath.Join("/srv/site", "tiles", "tilelist.yaml"), listFile(""))
	assert.Equal(t, "/other", tilesDir("/other"))
	assert.Equal(t, "/other/list.yaml", listFile("/other/list.yaml"))
}

func TestNewFetcherUsesFlags(t *testing.T) {
	viper.Set("test.url", "https://{s}.example.org/{z}/{x}/{y}.png")
	viper.Set("test.subdomains", " x , y ,")
	viper.Set("test.user_agent", "tester")
	viper.Set("test.rate", -1.0)

	f, err := newFetcher("test")
	require.NoError(t, err)
	c := tile.NewCoords(1, 0, 1)
	assert.Equal(t, "https://x.example.org/1/0/1.png", f.URL(c))
	assert.Equal(t, "https://y.example.org/1/0/1.png", f.URL(c))

	viper.Set("test.url", "https://example.org/tiles.png")
	_, err = newFetcher("test")
	require.Error(t, err)
}

func TestTilesListAndPrune(t *testing.T) {
	initLogging()
	outDir := t.TempDir()
	fixture, err := filepath.Abs(filepath.Join("..", "dataset", "testdata", "wordlist"))
	require.NoError(t, err)

	viper.Set("outdir", outDir)
	viper.Set("tiles.list.dataset", fixture)
	viper.Set("tiles.list.min_zoom", 0)
	viper.Set("tiles.list.max_zoom", 2)
	viper.Set("tiles.list.padding", 1.0)
	t.Cleanup(func() { viper.Set("outdir", "") })

	require.NoError(t, runTilesList(tilesListCmd, nil))

	path := filepath.Join(outDir, "tiles", tilelist.DefaultFilename)
	list, err := tilelist.ReadFile(path)
	require.NoError(t, err)
	require.True(t, list.Contains(tile.NewCoords(0, 0, 0)))
	total := list.Len()

	// One tile already downloaded.
	require.NoError(t, download.SaveTile(filepath.Join(outDir, "tiles"), tile.NewCoords(0, 0, 0), []byte("png")))

	require.NoError(t, runTilesPrune(tilesPruneCmd, nil))
	pruned, err := tilelist.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, total-1, pruned.Len())
	assert.False(t, pruned.Contains(tile.NewCoords(0, 0, 0)))
}

func TestTilesListRejectsDeepZoom(t *testing.T) {
	initLogging()
	viper.Set("outdir", t.TempDir())
	viper.Set("tiles.list.min_zoom", 1)
	viper.Set("tiles.list.max_zoom", 13)
	t.Cleanup(func() { viper.Set("outdir", "") })

	err := runTilesList(tilesListCmd, nil)
	require.Error(t, err)
	_, statErr := os.Stat(filepath.Join(viper.GetString("outdir"), "tiles"))
	assert.True(t, os.IsNotExist(statErr))
}
