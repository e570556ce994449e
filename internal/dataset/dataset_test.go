package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/cldfoffline/internal/types"
)

const fixture = "testdata/wordlist"

func TestRead(t *testing.T) {
	ds, err := Read(fixture)
	require.NoError(t, err)

	assert.Equal(t, "Pacific test wordlist", ds.Title)
	assert.Len(t, ds.Languages, 4)
	assert.Equal(t, []Concept{{ID: "water", Name: "water"}, {ID: "fire", Name: "fire"}}, ds.Concepts)
	assert.Len(t, ds.Forms, 5)

	fij, ok := ds.Language("fij")
	require.True(t, ok)
	assert.Equal(t, "Fijian", fij.Name)
	assert.Equal(t, "fiji1243", fij.Glottocode)
	c, ok := fij.Coordinate()
	require.True(t, ok)
	assert.Equal(t, types.Coordinate{Lat: -17.71, Lon: 178.07}, c)

	unlocated, ok := ds.Language("xxx")
	require.True(t, ok)
	_, ok = unlocated.Coordinate()
	assert.False(t, ok)

	assert.Equal(t, []string{"m3", "m2"}, ds.Forms[1].MediaIDs)
	assert.Empty(t, ds.Forms[2].MediaIDs)
}

func TestReadMetadataFile(t *testing.T) {
	ds, err := Read(filepath.Join(fixture, "Wordlist-metadata.json"))
	require.NoError(t, err)
	assert.Equal(t, "testdata/wordlist", filepath.ToSlash(ds.Dir))
}

func TestCoordinatesSkipsMissing(t *testing.T) {
	ds, err := Read(fixture)
	require.NoError(t, err)

	assert.Equal(t, []types.Coordinate{
		{Lat: -17.71, Lon: 178.07},
		{Lat: -13.76, Lon: -171.85},
		{Lat: -21.18, Lon: -175.2},
	}, ds.Coordinates())
}

func TestFilesFor(t *testing.T) {
	ds, err := Read(fixture)
	require.NoError(t, err)

	ids := func(files []Media) []string {
		var out []string
		for _, m := range files {
			out = append(out, m.ID)
		}
		return out
	}

	assert.Equal(t, []string{"m1"}, ids(ds.FilesFor(ds.Forms[0])))
	assert.Equal(t, []string{"m3", "m2"}, ids(ds.FilesFor(ds.Forms[1])))
	assert.Empty(t, ds.FilesFor(ds.Forms[2]))
	// linked from the media table only
	assert.Equal(t, []string{"m4"}, ids(ds.FilesFor(ds.Forms[3])))

	m1, ok := ds.Media("m1")
	require.True(t, ok)
	assert.True(t, m1.IsAudio())
	assert.Equal(t, "aa7a6852513972fc989c4f61df6b7fe1", m1.MD5)

	m5, _ := ds.Media("m5")
	assert.False(t, m5.IsAudio())
}

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func TestReadConventionalNames(t *testing.T) {
	// Bare metadata without terms, tab separated, with a BOM.
	dir := writeFiles(t, map[string]string{
		"cldf-metadata.json": `{
			"dialect": {"delimiter": "\t"},
			"tables": [
				{"url": "languages.csv", "tableSchema": {"columns": [
					{"name": "ID"}, {"name": "Name"}, {"name": "Latitude"}, {"name": "Longitude"}]}},
				{"url": "forms.csv", "tableSchema": {"columns": [
					{"name": "ID"}, {"name": "Language_ID"}, {"name": "Parameter_ID"}, {"name": "Form"}]}},
				{"url": "media.csv", "tableSchema": {"columns": [
					{"name": "ID", "valueUrl": "https://media.example/{ID}/{Name}"},
					{"name": "Name"}, {"name": "mimetype"}]}}
			]}`,
		"languages.csv": "\ufeffID\tName\tLatitude\tLongitude\na\tAlpha\t1.5\t-2\n",
		"forms.csv":     "ID\tLanguage_ID\tParameter_ID\tForm\nf1\ta\tp1\tx\n",
		"media.csv":     "ID\tName\tmimetype\nm1\tf.mp3\taudio/mpeg\n",
	})

	ds, err := Read(dir)
	require.NoError(t, err)

	require.Len(t, ds.Languages, 1)
	assert.Equal(t, []types.Coordinate{{Lat: 1.5, Lon: -2}}, ds.Coordinates())
	assert.Equal(t, "p1", ds.Forms[0].ConceptID)
	assert.Empty(t, ds.Concepts)

	m, ok := ds.Media("m1")
	require.True(t, ok)
	assert.Equal(t, "https://media.example/m1/f.mp3", m.URL)
	assert.Equal(t, "audio/mpeg", m.MediaType)
}

func TestReadErrors(t *testing.T) {
	tests := map[string]map[string]string{
		"no metadata": {"forms.csv": "ID\n"},
		"invalid json": {"x-metadata.json": `{"tables": [`},
		"not a wordlist": {"x-metadata.json": `{
			"dc:conformsTo": "http://cldf.clld.org/v1.0/terms.rdf#StructureDataset",
			"tables": []}`},
		"no form table": {"x-metadata.json": `{"tables": []}`},
		"bad latitude": {
			"x-metadata.json": `{"tables": [
				{"url": "languages.csv", "tableSchema": {"columns": [{"name": "ID"}, {"name": "Latitude"}]}},
				{"url": "forms.csv", "tableSchema": {"columns": [{"name": "ID"}]}}]}`,
			"languages.csv": "ID,Latitude\na,north\n",
			"forms.csv":     "ID\n",
		},
		"missing csv": {"x-metadata.json": `{"tables": [
			{"url": "forms.csv", "tableSchema": {"columns": [{"name": "ID"}]}}]}`},
	}

	for name, files := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Read(writeFiles(t, files))
			require.ErrorIs(t, err, types.ErrInvalidInput)
		})
	}
}

func TestReadMissingPath(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "nope"))
	require.ErrorIs(t, err, types.ErrInvalidInput)
}
