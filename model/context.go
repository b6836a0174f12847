package model

// SectionCategory is one of the fixed context priority categories.
// Declaration order is priority order, highest first.
type SectionCategory string

const (
	SectionCharacterCore SectionCategory = "character_core"
	SectionScene         SectionCategory = "scene"
	SectionRelationships SectionCategory = "relationships"
	SectionStructure     SectionCategory = "structure"
	SectionWorldRules    SectionCategory = "world_rules"
	SectionDecisions     SectionCategory = "decisions"
	SectionGuidance      SectionCategory = "guidance"
)

// SectionPriority lists all categories, highest priority first
var SectionPriority = []SectionCategory{
	SectionCharacterCore,
	SectionScene,
	SectionRelationships,
	SectionStructure,
	SectionWorldRules,
	SectionDecisions,
	SectionGuidance,
}

// ContextSection is one rendered category of an assembled context
type ContextSection struct {
	Category  SectionCategory `json:"category"`
	Text      string          `json:"text"`
	Tokens    int             `json:"tokens"`
	Truncated bool            `json:"truncated"`
}

// SectionStatus records what assembly did with a category
type SectionStatus string

const (
	SectionIncluded  SectionStatus = "included"
	SectionTruncated SectionStatus = "truncated"
	SectionOmitted   SectionStatus = "omitted"
)

// ManifestEntry describes the fate of one category
type ManifestEntry struct {
	Category SectionCategory `json:"category"`
	Status   SectionStatus   `json:"status"`
	Tokens   int             `json:"tokens"`
	Reason   string          `json:"reason,omitempty"`
}

// SourceReport records whether a knowledge source answered
type SourceReport struct {
	Source    SourceType `json:"source"`
	Available bool       `json:"available"`
	Error     string     `json:"error,omitempty"`
}

// Manifest lists what an assembled context contains
type Manifest struct {
	Profile           string          `json:"profile"`
	Entries           []ManifestEntry `json:"entries"`
	TotalTokens       int             `json:"total_tokens"`
	TruncationMarkers []string        `json:"truncation_markers,omitempty"`
	Sources           []SourceReport  `json:"sources,omitempty"`
}

// Included returns the categories present in the output, truncated ones included
func (m *Manifest) Included() []SectionCategory {
	var categories []SectionCategory
	for _, e := range m.Entries {
		if e.Status == SectionIncluded || e.Status == SectionTruncated {
			categories = append(categories, e.Category)
		}
	}
	return categories
}

// Omitted returns the categories that were rendered but left out
func (m *Manifest) Omitted() []SectionCategory {
	var categories []SectionCategory
	for _, e := range m.Entries {
		if e.Status == SectionOmitted {
			categories = append(categories, e.Category)
		}
	}
	return categories
}

// Entry returns the manifest entry of a category
func (m *Manifest) Entry(category SectionCategory) (ManifestEntry, bool) {
	for _, e := range m.Entries {
		if e.Category == category {
			return e, true
		}
	}
	return ManifestEntry{}, false
}

// UnavailableSources returns the sources that failed during retrieval
func (m *Manifest) UnavailableSources() []SourceType {
	var sources []SourceType
	for _, s := range m.Sources {
		if !s.Available {
			sources = append(sources, s.Source)
		}
	}
	return sources
}

// AssembledContext is the bounded context produced for one query
type AssembledContext struct {
	Query    ClassifiedQuery  `json:"query"`
	Text     string           `json:"text"`
	Sections []ContextSection `json:"sections"`
	Manifest Manifest         `json:"manifest"`
}
