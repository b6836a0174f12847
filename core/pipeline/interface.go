package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/loregraph/model"
)

// EmbedFunc is a function that generates embeddings for text
type EmbedFunc func(text string) ([]float32, error)

// MentionExtractFunc finds named mentions (people, places, ...) in text
type MentionExtractFunc func(text string) ([]Mention, error)

// Mention is one named span found in a text
type Mention struct {
	Text  string  `json:"text"`
	Label string  `json:"label"`
	Score float32 `json:"score"`
	Start int     `json:"start"`
	End   int     `json:"end"`
}

// Embedder pairs an embedding function with the tag stored next to its vectors.
// Vectors from different tags are not comparable.
type Embedder struct {
	Embed    EmbedFunc
	ModelTag string

	close func() error
}

// NewEmbedder wraps an arbitrary EmbedFunc
func NewEmbedder(modelTag string, embed EmbedFunc) *Embedder {
	return &Embedder{Embed: embed, ModelTag: modelTag}
}

// Close releases the model session, if the embedder owns one
func (e *Embedder) Close() error {
	if e == nil || e.close == nil {
		return nil
	}
	return e.close()
}

// EntityStore is what reindexing reads entities from and writes embeddings to
type EntityStore interface {
	SelectEntity(ctx context.Context, id uuid.UUID) (*model.Entity, error)
	UpdateEntityEmbedding(ctx context.Context, id uuid.UUID, embedding []float32, modelTag string, at time.Time) error
}
