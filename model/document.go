package model

import (
	"sort"
	"strings"
)

// Structure is the position of the narrative within its outline
type Structure struct {
	Act      *string  `json:"act,omitempty" yaml:"act,omitempty"`
	Chapter  *string  `json:"chapter,omitempty" yaml:"chapter,omitempty"`
	Beat     *string  `json:"beat,omitempty" yaml:"beat,omitempty"`
	Progress *float64 `json:"progress,omitempty" yaml:"progress,omitempty"`
}

// IsEmpty reports whether no structure field is present
func (s *Structure) IsEmpty() bool {
	return s == nil || (s.Act == nil && s.Chapter == nil && s.Beat == nil && s.Progress == nil)
}

// DocumentSections is the sparse, flattened section map of one structured
// reference document. Every field is optional and must be presence-checked.
type DocumentSections struct {
	Key            string            `json:"key" yaml:"key"`
	Title          *string           `json:"title,omitempty" yaml:"title,omitempty"`
	Premise        *string           `json:"premise,omitempty" yaml:"premise,omitempty"`
	Scene          *string           `json:"scene,omitempty" yaml:"scene,omitempty"`
	Structure      *Structure        `json:"structure,omitempty" yaml:"structure,omitempty"`
	WorldRules     []string          `json:"world_rules,omitempty" yaml:"world_rules,omitempty"`
	Decisions      []string          `json:"decisions,omitempty" yaml:"decisions,omitempty"`
	Guidance       *string           `json:"guidance,omitempty" yaml:"guidance,omitempty"`
	CharacterNotes map[string]string `json:"character_notes,omitempty" yaml:"character_notes,omitempty"`
}

// HasPremise reports whether the premise section is present
func (d *DocumentSections) HasPremise() bool { return d != nil && d.Premise != nil && *d.Premise != "" }

// HasScene reports whether the scene section is present
func (d *DocumentSections) HasScene() bool { return d != nil && d.Scene != nil && *d.Scene != "" }

// HasStructure reports whether any structure field is present
func (d *DocumentSections) HasStructure() bool { return d != nil && !d.Structure.IsEmpty() }

// HasWorldRules reports whether world rules are present
func (d *DocumentSections) HasWorldRules() bool { return d != nil && len(d.WorldRules) > 0 }

// HasDecisions reports whether a decision log is present
func (d *DocumentSections) HasDecisions() bool { return d != nil && len(d.Decisions) > 0 }

// HasGuidance reports whether guidance text is present
func (d *DocumentSections) HasGuidance() bool {
	return d != nil && d.Guidance != nil && *d.Guidance != ""
}

// CharacterNote returns the note for a character name, if any
func (d *DocumentSections) CharacterNote(name string) (string, bool) {
	if d == nil || d.CharacterNotes == nil {
		return "", false
	}
	if note, ok := d.CharacterNotes[name]; ok {
		return note, note != ""
	}
	keys := make([]string, 0, len(d.CharacterNotes))
	for key := range d.CharacterNotes {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if strings.EqualFold(key, name) {
			note := d.CharacterNotes[key]
			return note, note != ""
		}
	}
	return "", false
}

// StringPtr returns a pointer to s, handy for building sparse sections
func StringPtr(s string) *string {
	return &s
}

// Float64Ptr returns a pointer to f
func Float64Ptr(f float64) *float64 {
	return &f
}
