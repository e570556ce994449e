package tile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MeKo-Tech/cldfoffline/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTile(t *testing.T, dir string, c Coords) {
	t.Helper()
	p := c.Path(dir)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(" "), 0o644))
}

func sampleList() *List {
	l := NewList()
	l.Add(NewCoords(1, 1, 1))
	l.Add(NewCoords(2, 3, 2))
	l.Add(NewCoords(2, 2, 2))
	return l
}

func TestPruneNothingPresent(t *testing.T) {
	dir := t.TempDir()
	list := sampleList()

	remaining, missing, err := Prune(list, dir)
	require.NoError(t, err)
	assert.Equal(t, 3, missing)
	assert.True(t, remaining.Equal(list))
}

func TestPrunePartial(t *testing.T) {
	dir := t.TempDir()
	writeTile(t, dir, NewCoords(2, 3, 2))

	remaining, missing, err := Prune(sampleList(), dir)
	require.NoError(t, err)
	assert.Equal(t, 2, missing)
	assert.False(t, remaining.Contains(NewCoords(2, 3, 2)))
	assert.True(t, remaining.Contains(NewCoords(1, 1, 1)))
}

func TestPruneAllPresentIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	list := sampleList()
	for c := range list.All() {
		writeTile(t, dir, c)
	}

	missing, err := list.Prune(dir)
	require.NoError(t, err)
	assert.Equal(t, 0, missing)
	assert.Equal(t, 0, list.Len())

	missing, err = list.Prune(dir)
	require.NoError(t, err)
	assert.Equal(t, 0, missing)
	assert.Equal(t, 0, list.Len())
}

func TestPruneMissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "does-not-exist")

	_, missing, err := Prune(sampleList(), dir)
	require.NoError(t, err)
	assert.Equal(t, 3, missing)
}

func TestPruneFileInPlaceOfDirectory(t *testing.T) {
	dir := t.TempDir()
	// A regular file where the zoom directory should be.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "1"), []byte("x"), 0o644))
	// And one where a column directory should be.
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "2"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2", "3"), []byte("x"), 0o644))

	ok, err := Exists(NewCoords(1, 1, 1), dir)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = Exists(NewCoords(2, 3, 2), dir)
	require.NoError(t, err)
	assert.False(t, ok)

	_, missing, err := Prune(sampleList(), dir)
	require.NoError(t, err)
	assert.Equal(t, 3, missing)
}

func TestPruneStorageError(t *testing.T) {
	dir := filepath.Join(t.TempDir(), strings.Repeat("x", 300))

	_, _, err := Prune(sampleList(), dir)
	require.ErrorIs(t, err, types.ErrStorage)
}
