package sources

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/loregraph/core/graph"
	"github.com/siherrmann/loregraph/core/pipeline"
	"github.com/siherrmann/loregraph/database"
	"github.com/siherrmann/loregraph/helper"
	"github.com/siherrmann/loregraph/model"
)

// PostgresGraph is the pgvector backed graph store
type PostgresGraph struct {
	entities      database.EntitiesDBHandlerFunctions
	relationships database.RelationshipsDBHandlerFunctions
	embedder      *pipeline.Embedder
}

// NewPostgresGraph creates the store over the two handlers. embedder may be
// nil, semantic search is then unavailable.
func NewPostgresGraph(entities database.EntitiesDBHandlerFunctions, relationships database.RelationshipsDBHandlerFunctions, embedder *pipeline.Embedder) *PostgresGraph {
	return &PostgresGraph{entities: entities, relationships: relationships, embedder: embedder}
}

// SelectEntity implements pipeline.EntityStore
func (p *PostgresGraph) SelectEntity(ctx context.Context, id uuid.UUID) (*model.Entity, error) {
	entity, err := p.entities.SelectEntity(ctx, id)
	if errors.Is(err, database.ErrEntityNotFound) {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return entity, err
}

// UpdateEntityEmbedding implements pipeline.EntityStore
func (p *PostgresGraph) UpdateEntityEmbedding(ctx context.Context, id uuid.UUID, embedding []float32, modelTag string, at time.Time) error {
	return p.entities.UpdateEntityEmbedding(ctx, id, embedding, modelTag, at)
}

// SelectEntities implements graph.GraphDB
func (p *PostgresGraph) SelectEntities(ctx context.Context, ids []uuid.UUID) ([]*model.Entity, error) {
	return p.entities.SelectEntities(ctx, ids)
}

// SelectRelationshipsTouching implements graph.GraphDB
func (p *PostgresGraph) SelectRelationshipsTouching(ctx context.Context, ids []uuid.UUID, onlyActive bool) ([]*model.Relationship, error) {
	return p.relationships.SelectRelationshipsTouching(ctx, ids, onlyActive)
}

// EntitiesByNames resolves names case-insensitively
func (p *PostgresGraph) EntitiesByNames(ctx context.Context, names []string) ([]*model.Entity, error) {
	return p.entities.SelectEntitiesByNames(ctx, names)
}

// EntityNames returns the known-entity snapshot
func (p *PostgresGraph) EntityNames(ctx context.Context) ([]string, error) {
	return p.entities.SelectEntityNames(ctx)
}

// EgoNetwork walks the relationships table one hop per query
func (p *PostgresGraph) EgoNetwork(ctx context.Context, ids []uuid.UUID, maxHops int) (*model.EgoNetwork, error) {
	return graph.EgoNetwork(ctx, p, ids, maxHops, graph.TraversalOptions{})
}

// SemanticSearch embeds text and lets pgvector rank by cosine distance.
// Only entities embedded with the current model are compared.
func (p *PostgresGraph) SemanticSearch(ctx context.Context, text string, typeFilter *model.EntityType, topK int) ([]*model.SearchHit, error) {
	if p.embedder == nil || p.embedder.Embed == nil {
		return nil, ErrSemanticSearchUnavailable
	}

	query, err := p.embedder.Embed(text)
	if err != nil {
		return nil, helper.NewError("embed query", err)
	}

	return p.entities.SelectEntitiesBySimilarity(ctx, query, typeFilter, p.embedder.ModelTag, topK)
}

// PostgresDocuments reads structured sections from the document_sections table
type PostgresDocuments struct {
	sections database.SectionsDBHandlerFunctions
}

// NewPostgresDocuments creates the document store over the sections handler
func NewPostgresDocuments(sections database.SectionsDBHandlerFunctions) *PostgresDocuments {
	return &PostgresDocuments{sections: sections}
}

// GetSections returns the sparse sections of the document stored under key
func (p *PostgresDocuments) GetSections(ctx context.Context, key string) (*model.DocumentSections, error) {
	sections, err := p.sections.SelectSections(ctx, key)
	if errors.Is(err, database.ErrSectionsNotFound) {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return sections, err
}
