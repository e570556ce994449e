package tile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"syscall"

	"github.com/MeKo-Tech/cldfoffline/internal/types"
)

// Exists reports whether the image for c is present below dir.
// A missing path counts as absent, as does a regular file standing where a
// directory of the path should be. Other stat failures (permissions, I/O)
// are returned as storage errors.
func Exists(c Coords, dir string) (bool, error) {
	_, err := os.Stat(c.Path(dir))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, syscall.ENOTDIR):
		return false, nil
	default:
		return false, fmt.Errorf("%w: checking tile %s: %v", types.ErrStorage, c, err)
	}
}

// Prune returns the tiles of list that are not yet present below dir
// (as dir/z/x/y.png) together with their count. list itself is left untouched.
func Prune(list *List, dir string) (*List, int, error) {
	remaining := NewList()
	for c := range list.All() {
		ok, err := Exists(c, dir)
		if err != nil {
			return nil, 0, err
		}
		if !ok {
			remaining.Add(c)
		}
	}
	return remaining, remaining.Len(), nil
}

// Prune removes the tiles already present below dir from l and returns the
// number of tiles still missing.
func (l *List) Prune(dir string) (int, error) {
	remaining, missing, err := Prune(l, dir)
	if err != nil {
		return 0, err
	}
	l.zooms = remaining.zooms
	return missing, nil
}
