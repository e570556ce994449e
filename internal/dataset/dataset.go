// Package dataset reads the parts of a CLDF Wordlist needed to build an
// offline browser: languages with coordinates, concepts, forms and the audio
// recordings attached to forms.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/cldfoffline/internal/types"
)

// Language is a row of the LanguageTable.
type Language struct {
	Latitude   *float64
	Longitude  *float64
	ID         string
	Name       string
	Glottocode string
}

// Coordinate returns the language location, if it has one.
func (l Language) Coordinate() (types.Coordinate, bool) {
	if l.Latitude == nil || l.Longitude == nil {
		return types.Coordinate{}, false
	}
	return types.Coordinate{Lat: *l.Latitude, Lon: *l.Longitude}, true
}

// Concept is a row of the ParameterTable.
type Concept struct {
	ID   string
	Name string
}

// Form is a row of the FormTable.
type Form struct {
	ID         string
	LanguageID string
	ConceptID  string
	Value      string
	MediaIDs   []string
}

// Media is a row of the MediaTable.
type Media struct {
	ID        string
	MediaType string
	URL       string
	MD5       string
	FormID    string
}

// IsAudio reports whether the file is an audio recording.
func (m Media) IsAudio() bool {
	return strings.HasPrefix(m.MediaType, "audio/")
}

// Dataset is an in-memory CLDF Wordlist.
type Dataset struct {
	media      map[string]Media
	languages  map[string]int
	mediaOrder []string
	// Dir is the directory of the metadata file; relative URLs resolve
	// against it.
	Dir       string
	Title     string
	Languages []Language
	Concepts  []Concept
	Forms     []Form
}

// Read loads the Wordlist whose metadata is at path, or in the directory path.
func Read(path string) (*Dataset, error) {
	mdPath, err := findMetadata(path)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(mdPath)
	if err != nil {
		return nil, fmt.Errorf("%w: reading metadata: %v", types.ErrInvalidInput, err)
	}
	md, err := parseMetadata(raw)
	if err != nil {
		return nil, err
	}
	if md.module != "" && md.module != "Wordlist" {
		return nil, fmt.Errorf("%w: %s is a %s, not a Wordlist", types.ErrInvalidInput, mdPath, md.module)
	}

	ds := &Dataset{
		Dir:       filepath.Dir(mdPath),
		Title:     md.title,
		media:     make(map[string]Media),
		languages: make(map[string]int),
	}

	if err := ds.readLanguages(md.tables[LanguageTable]); err != nil {
		return nil, err
	}
	if err := ds.readConcepts(md.tables[ParameterTable]); err != nil {
		return nil, err
	}
	forms := md.tables[FormTable]
	if forms == nil {
		return nil, fmt.Errorf("%w: %s has no FormTable", types.ErrInvalidInput, mdPath)
	}
	if err := ds.readForms(forms); err != nil {
		return nil, err
	}
	if err := ds.readMedia(md.tables[MediaTable]); err != nil {
		return nil, err
	}

	return ds, nil
}

// Language returns the language with id.
func (ds *Dataset) Language(id string) (Language, bool) {
	i, ok := ds.languages[id]
	if !ok {
		return Language{}, false
	}
	return ds.Languages[i], true
}

// Media returns the media file with id.
func (ds *Dataset) Media(id string) (Media, bool) {
	m, ok := ds.media[id]
	return m, ok
}

// Coordinates returns the locations of all languages that have one, in table
// order. Languages without coordinates are skipped.
func (ds *Dataset) Coordinates() []types.Coordinate {
	coords := make([]types.Coordinate, 0, len(ds.Languages))
	for _, l := range ds.Languages {
		if c, ok := l.Coordinate(); ok {
			coords = append(coords, c)
		}
	}
	return coords
}

// FilesFor returns the media files attached to a form, either listed on the
// form itself or pointing back at it through a form reference.
func (ds *Dataset) FilesFor(f Form) []Media {
	var files []Media
	seen := make(map[string]bool)
	for _, id := range f.MediaIDs {
		if m, ok := ds.media[id]; ok && !seen[id] {
			files = append(files, m)
			seen[id] = true
		}
	}
	for _, id := range ds.mediaOrder {
		m := ds.media[id]
		if m.FormID == f.ID && f.ID != "" && !seen[id] {
			files = append(files, m)
			seen[id] = true
		}
	}
	return files
}

// rows calls fn for every record of t. get returns the trimmed value of a
// column, or "" when the file lacks it.
func (ds *Dataset) rows(t *table, fn func(line int, get func(column) string) error) error {
	path := filepath.Join(ds.Dir, filepath.FromSlash(t.url))
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrInvalidInput, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = t.delimiter
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %v", types.ErrInvalidInput, t.url, err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimPrefix(name, "\ufeff")] = i
	}

	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %s: %v", types.ErrInvalidInput, t.url, err)
		}
		line, _ := r.FieldPos(0)
		get := func(c column) string {
			i, ok := index[c.name]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}
		if err := fn(line, get); err != nil {
			return fmt.Errorf("%w: %s line %d: %v", types.ErrInvalidInput, t.url, line, err)
		}
	}
}

func (ds *Dataset) readLanguages(t *table) error {
	if t == nil {
		return nil
	}
	id, _ := t.lookup("id", "ID")
	name, _ := t.lookup("name", "Name")
	lat, _ := t.lookup("latitude", "Latitude")
	lon, _ := t.lookup("longitude", "Longitude")
	glotto, _ := t.lookup("glottocode", "Glottocode")

	return ds.rows(t, func(_ int, get func(column) string) error {
		l := Language{ID: get(id), Name: get(name), Glottocode: get(glotto)}
		var err error
		if l.Latitude, err = parseOptionalFloat(get(lat)); err != nil {
			return fmt.Errorf("latitude of %s: %w", l.ID, err)
		}
		if l.Longitude, err = parseOptionalFloat(get(lon)); err != nil {
			return fmt.Errorf("longitude of %s: %w", l.ID, err)
		}
		ds.languages[l.ID] = len(ds.Languages)
		ds.Languages = append(ds.Languages, l)
		return nil
	})
}

func (ds *Dataset) readConcepts(t *table) error {
	if t == nil {
		return nil
	}
	id, _ := t.lookup("id", "ID")
	name, _ := t.lookup("name", "Name")

	return ds.rows(t, func(_ int, get func(column) string) error {
		ds.Concepts = append(ds.Concepts, Concept{ID: get(id), Name: get(name)})
		return nil
	})
}

func (ds *Dataset) readForms(t *table) error {
	id, _ := t.lookup("id", "ID")
	lang, _ := t.lookup("languageReference", "Language_ID")
	param, _ := t.lookup("parameterReference", "Parameter_ID")
	value, _ := t.lookup("form", "Form")
	media, hasMedia := t.lookup("mediaReference", "Audio_Files", "Media", "Audio")

	return ds.rows(t, func(_ int, get func(column) string) error {
		f := Form{
			ID:         get(id),
			LanguageID: get(lang),
			ConceptID:  get(param),
			Value:      get(value),
		}
		if hasMedia {
			f.MediaIDs = splitList(get(media), media.separator)
		}
		ds.Forms = append(ds.Forms, f)
		return nil
	})
}

func (ds *Dataset) readMedia(t *table) error {
	if t == nil {
		return nil
	}
	id, _ := t.lookup("id", "ID")
	mediaType, _ := t.lookup("mediaType", "Media_Type", "mimetype")
	url, _ := t.lookup("downloadUrl", "Download_URL", "URL", "url")
	sum, _ := t.lookup("", "MD5", "md5")
	form, _ := t.lookup("formReference", "Form_ID")

	return ds.rows(t, func(_ int, get func(column) string) error {
		m := Media{
			ID:        get(id),
			MediaType: get(mediaType),
			URL:       get(url),
			MD5:       strings.ToLower(get(sum)),
			FormID:    get(form),
		}
		if m.URL == "" && id.valueURL != "" {
			m.URL = expandValueURL(id.valueURL, t, get)
		}
		if _, dup := ds.media[m.ID]; !dup {
			ds.mediaOrder = append(ds.mediaOrder, m.ID)
		}
		ds.media[m.ID] = m
		return nil
	})
}

// expandValueURL fills a CSVW URI template such as
// "https://example.org/{objid}/{Name}" from the row.
func expandValueURL(tmpl string, t *table, get func(column) string) string {
	pairs := make([]string, 0, 2*len(t.columns))
	for _, c := range t.columns {
		pairs = append(pairs, "{"+c.name+"}", get(c))
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

func parseOptionalFloat(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func splitList(s, sep string) []string {
	if s == "" {
		return nil
	}
	if sep == "" {
		return []string{s}
	}
	var out []string
	for _, part := range strings.Split(s, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
