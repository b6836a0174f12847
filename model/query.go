package model

// Intent is the closed set of query intents
type Intent string

const (
	IntentCharacterLookup    Intent = "CHARACTER_LOOKUP"
	IntentCharacterDeep      Intent = "CHARACTER_DEEP"
	IntentRelationship       Intent = "RELATIONSHIP"
	IntentStructuralStatus   Intent = "STRUCTURAL_STATUS"
	IntentWorldRules         Intent = "WORLD_RULES"
	IntentReferenceGuidance  Intent = "REFERENCE_GUIDANCE"
	IntentSceneContext       Intent = "SCENE_CONTEXT"
	IntentContradictionCheck Intent = "CONTRADICTION_CHECK"
	IntentHybrid             Intent = "HYBRID"
)

// SourceType names a knowledge source a query fans out to
type SourceType string

const (
	SourceGraph          SourceType = "graph"
	SourceStructuredDocs SourceType = "structured_docs"
	SourceReference      SourceType = "reference_collaborator"
)

// AllSources lists every source type in fan-out order
var AllSources = []SourceType{SourceGraph, SourceStructuredDocs, SourceReference}

// ClassifiedQuery is the per-call result of query classification
type ClassifiedQuery struct {
	Text           string       `json:"text"`
	Intent         Intent       `json:"intent"`
	Entities       []string     `json:"entities"`
	Keywords       []string     `json:"keywords"`
	Sources        []SourceType `json:"sources"`
	Confidence     float64      `json:"confidence"`
	SemanticSearch bool         `json:"semantic_search"`
}

// HasSource reports whether the query requested the given source
func (q *ClassifiedQuery) HasSource(source SourceType) bool {
	for _, s := range q.Sources {
		if s == source {
			return true
		}
	}
	return false
}
