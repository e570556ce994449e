// Package site writes the static offline browser: the page, its data file,
// the viewer assets and the directories for tiles and audio.
package site

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/cldfoffline/assets"
	"github.com/MeKo-Tech/cldfoffline/internal/types"
)

var indexTemplate = template.Must(template.ParseFS(assets.TemplatesFS, "templates/index.html.tmpl"))

// Layout names the parts of an output directory.
type Layout struct {
	Root string
}

// AudioDir holds the copied recordings.
func (l Layout) AudioDir() string { return filepath.Join(l.Root, "audio") }

// TilesDir holds the z/x/y.png tile tree and the tile list.
func (l Layout) TilesDir() string { return filepath.Join(l.Root, "tiles") }

// StaticDir holds the viewer script and stylesheet.
func (l Layout) StaticDir() string { return filepath.Join(l.Root, "static") }

// Create makes the output directory and its subdirectories.
func (l Layout) Create() error {
	for _, dir := range []string{l.Root, l.AudioDir(), l.TilesDir(), l.StaticDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: %v", types.ErrStorage, err)
		}
	}
	return nil
}

// CopyStatic writes the embedded viewer assets into StaticDir.
func (l Layout) CopyStatic() error {
	static, err := fs.Sub(assets.StaticFS, "static")
	if err != nil {
		return err
	}
	return fs.WalkDir(static, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := fs.ReadFile(static, path)
		if err != nil {
			return err
		}
		return writeFile(filepath.Join(l.StaticDir(), filepath.FromSlash(path)), data)
	})
}

// WriteData writes data.js, which defines the globals `options` and `data`.
func (l Layout) WriteData(d *Data, opts Options) error {
	o, err := json.Marshal(opts)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(d)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "var options = %s;\n", o)
	fmt.Fprintf(&buf, "var data = %s;\n", payload)
	return writeFile(filepath.Join(l.Root, "data.js"), buf.Bytes())
}

// WriteIndex renders index.html.
func (l Layout) WriteIndex(d *Data) error {
	var buf bytes.Buffer
	err := indexTemplate.Execute(&buf, map[string]any{
		"Title":     d.Title,
		"Concepts":  d.Concepts,
		"Languages": d.Languages,
		"Audio":     d.Audio(),
	})
	if err != nil {
		return fmt.Errorf("rendering index.html: %w", err)
	}
	return writeFile(filepath.Join(l.Root, "index.html"), buf.Bytes())
}

// Render writes the static assets, data.js and index.html.
func (l Layout) Render(d *Data, opts Options) error {
	if err := l.CopyStatic(); err != nil {
		return err
	}
	if err := l.WriteData(d, opts); err != nil {
		return err
	}
	return l.WriteIndex(d)
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: %v", types.ErrStorage, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("%w: %v", types.ErrStorage, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: %v", types.ErrStorage, err)
	}
	return nil
}
