package model

import (
	"time"

	"github.com/google/uuid"
)

// EntityType classifies a node of the knowledge graph
type EntityType string

const (
	EntityTypeCharacter EntityType = "CHARACTER"
	EntityTypeLocation  EntityType = "LOCATION"
	EntityTypeItem      EntityType = "ITEM"
	EntityTypeEvent     EntityType = "EVENT"
	EntityTypeTheme     EntityType = "THEME"
	EntityTypeFaction   EntityType = "FACTION"
	EntityTypeConcept   EntityType = "CONCEPT"
)

// Entity is a named node of the knowledge graph (character, location, item, ...).
// Everything but the embedding fields is owned by ingestion; reindexing
// overwrites Embedding, EmbeddingDim, EmbeddingModel and EmbeddedAt in place.
type Entity struct {
	ID             uuid.UUID  `json:"id"`
	Type           EntityType `json:"entity_type"`
	Name           string     `json:"name"`
	Description    string     `json:"description,omitempty"`
	Embedding      []float32  `json:"embedding,omitempty"`
	EmbeddingDim   int        `json:"embedding_dim,omitempty"`
	EmbeddingModel string     `json:"embedding_model,omitempty"`
	EmbeddedAt     *time.Time `json:"embedded_at,omitempty"`
	Provenance     string     `json:"provenance,omitempty"`
	Metadata       Metadata   `json:"metadata,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// HasEmbedding reports whether the entity carries a usable embedding
func (e *Entity) HasEmbedding() bool {
	return e != nil && len(e.Embedding) > 0 && e.EmbeddingDim == len(e.Embedding)
}

// SetEmbedding replaces the embedding fields, tagging them with model and time.
func (e *Entity) SetEmbedding(vector []float32, modelTag string, at time.Time) {
	e.Embedding = vector
	e.EmbeddingDim = len(vector)
	e.EmbeddingModel = modelTag
	embeddedAt := at.UTC()
	e.EmbeddedAt = &embeddedAt
}

// SearchHit is one semantic search result. Similarity is in [-1, 1] and
// hits are returned in the order the store ranked them.
type SearchHit struct {
	Entity     *Entity `json:"entity"`
	Similarity float64 `json:"similarity"`
}
