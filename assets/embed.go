// Package assets holds the static files and page templates of the generated
// offline site.
package assets

import "embed"

// StaticFS holds the files copied verbatim into the static/ directory of a
// site.
//
// go:embed patterns must not use ".." and must be relative to this file.
//
//go:embed static
var StaticFS embed.FS

// TemplatesFS holds the html/template sources.
//
//go:embed templates/*.tmpl
var TemplatesFS embed.FS
