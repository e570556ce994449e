package dataset

import (
	"cmp"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/MeKo-Tech/cldfoffline/internal/types"
)

// Component names as used in dc:conformsTo.
const (
	LanguageTable  = "LanguageTable"
	ParameterTable = "ParameterTable"
	FormTable      = "FormTable"
	MediaTable     = "MediaTable"
)

var defaultTableURLs = map[string]string{
	LanguageTable:  "languages.csv",
	ParameterTable: "parameters.csv",
	FormTable:      "forms.csv",
	MediaTable:     "media.csv",
}

// column describes one CSVW column of a table schema.
type column struct {
	name      string
	term      string // CLDF ontology term, e.g. "languageReference"
	separator string
	valueURL  string
}

// table describes one table listed in the metadata.
type table struct {
	url       string
	component string
	delimiter rune
	columns   []column
}

// lookup finds a column by CLDF term, then by any of the conventional names.
func (t *table) lookup(term string, names ...string) (column, bool) {
	for _, c := range t.columns {
		if term != "" && c.term == term {
			return c, true
		}
	}
	for _, n := range names {
		for _, c := range t.columns {
			if strings.EqualFold(c.name, n) {
				return c, true
			}
		}
	}
	return column{}, false
}

type metadata struct {
	title  string
	module string
	tables map[string]*table
}

// findMetadata resolves path to a metadata file. path is either the file
// itself or a directory holding exactly one *-metadata.json.
func findMetadata(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrInvalidInput, err)
	}
	if !info.IsDir() {
		return path, nil
	}

	for _, pattern := range []string{"*-metadata.json", "cldf/*-metadata.json"} {
		matches, err := filepath.Glob(filepath.Join(path, pattern))
		if err != nil {
			return "", err
		}
		switch len(matches) {
		case 0:
			continue
		case 1:
			return matches[0], nil
		default:
			return "", fmt.Errorf("%w: several metadata files in %s", types.ErrInvalidInput, path)
		}
	}
	return "", fmt.Errorf("%w: no *-metadata.json in %s", types.ErrInvalidInput, path)
}

// termName strips the ontology namespace from a CLDF term URI.
func termName(uri string) string {
	if i := strings.LastIndexByte(uri, '#'); i >= 0 {
		return uri[i+1:]
	}
	return ""
}

func parseMetadata(data []byte) (*metadata, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: metadata is not valid JSON", types.ErrInvalidInput)
	}
	doc := gjson.ParseBytes(data)

	md := &metadata{
		title:  doc.Get(`dc:title`).String(),
		module: termName(doc.Get(`dc:conformsTo`).String()),
		tables: make(map[string]*table),
	}
	rootDelimiter := doc.Get("dialect.delimiter").String()

	doc.Get("tables").ForEach(func(_, t gjson.Result) bool {
		tbl := &table{
			url:       t.Get("url").String(),
			component: termName(t.Get(`dc:conformsTo`).String()),
			delimiter: ',',
		}
		if d := cmp.Or(t.Get("dialect.delimiter").String(), rootDelimiter); d != "" {
			tbl.delimiter = []rune(d)[0]
		}
		t.Get("tableSchema.columns").ForEach(func(_, c gjson.Result) bool {
			tbl.columns = append(tbl.columns, column{
				name:      c.Get("name").String(),
				term:      termName(c.Get("propertyUrl").String()),
				separator: c.Get("separator").String(),
				valueURL:  c.Get("valueUrl").String(),
			})
			return true
		})

		key := tbl.component
		if key == "" {
			key = componentForURL(tbl.url)
		}
		if key != "" {
			md.tables[key] = tbl
		}
		return true
	})

	return md, nil
}

func componentForURL(url string) string {
	for component, name := range defaultTableURLs {
		if url == name {
			return component
		}
	}
	return ""
}
