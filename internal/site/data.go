package site

import (
	"cmp"
	"maps"
	"slices"
)

// Options are the map settings passed to the viewer.
type Options struct {
	MinZoom int `json:"minZoom"`
	MaxZoom int `json:"maxZoom"`
}

// Concept is an entry of the concept selector.
type Concept struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Language is a map marker.
type Language struct {
	Name       string  `json:"name"`
	Glottocode string  `json:"glottocode,omitempty"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
}

// AudioRef points a form at its <audio> element.
type AudioRef struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	MediaType string `json:"mediaType"`
}

// Form is the word shown for a language when a concept is selected.
type Form struct {
	Audio *AudioRef `json:"audio,omitempty"`
	Form  string    `json:"form"`
}

// Data is everything the viewer shows. Forms are keyed by concept, then by
// language.
type Data struct {
	Languages map[string]Language        `json:"languages"`
	Forms     map[string]map[string]Form `json:"forms"`
	Title     string                     `json:"title"`
	Concepts  []Concept                  `json:"concepts"`
}

// NewData returns empty site data.
func NewData(title string) *Data {
	return &Data{
		Title:     cmp.Or(title, "Offline wordlist"),
		Languages: make(map[string]Language),
		Forms:     make(map[string]map[string]Form),
		Concepts:  []Concept{},
	}
}

// AddConcept appends a concept to the selector.
func (d *Data) AddConcept(id, name string) {
	d.Concepts = append(d.Concepts, Concept{ID: id, Name: cmp.Or(name, id)})
}

// AddLanguage adds a marker.
func (d *Data) AddLanguage(id string, l Language) {
	d.Languages[id] = l
}

// SetForm records the form of a language for a concept. A later form for the
// same pair replaces an earlier one.
func (d *Data) SetForm(conceptID, languageID, form string) {
	forms, ok := d.Forms[conceptID]
	if !ok {
		forms = make(map[string]Form)
		d.Forms[conceptID] = forms
	}
	forms[languageID] = Form{Form: form}
}

// SetAudio attaches a recording stored at audio/name to a form set before.
func (d *Data) SetAudio(conceptID, languageID, name, mediaType string) bool {
	f, ok := d.Forms[conceptID][languageID]
	if !ok {
		return false
	}
	f.Audio = &AudioRef{
		ID:        "audio-" + conceptID + "-" + languageID,
		Name:      "audio/" + name,
		MediaType: mediaType,
	}
	d.Forms[conceptID][languageID] = f
	return true
}

// audioElement is an <audio> tag on the index page.
type audioElement struct {
	ID  string
	Src string
}

// Audio lists all recordings in concept, then language order.
func (d *Data) Audio() []audioElement {
	var out []audioElement
	for _, c := range slices.Sorted(maps.Keys(d.Forms)) {
		forms := d.Forms[c]
		for _, l := range slices.Sorted(maps.Keys(forms)) {
			if a := forms[l].Audio; a != nil {
				out = append(out, audioElement{ID: a.ID, Src: a.Name})
			}
		}
	}
	return out
}
