package sources

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/loregraph/core/graph"
	"github.com/siherrmann/loregraph/core/pipeline"
	"github.com/siherrmann/loregraph/helper"
	"github.com/siherrmann/loregraph/model"
)

// MemoryGraph is an in-process graph store, used by tests and the CLI demo
// graph. It implements GraphStore and pipeline.EntityStore.
type MemoryGraph struct {
	mu            sync.RWMutex
	entities      map[uuid.UUID]*model.Entity
	relationships map[uuid.UUID]*model.Relationship
	embedder      *pipeline.Embedder
}

// NewMemoryGraph creates an empty graph. embedder may be nil, semantic
// search is then unavailable.
func NewMemoryGraph(embedder *pipeline.Embedder) *MemoryGraph {
	return &MemoryGraph{
		entities:      make(map[uuid.UUID]*model.Entity),
		relationships: make(map[uuid.UUID]*model.Relationship),
		embedder:      embedder,
	}
}

// AddEntity stores a copy of entity, assigning an id if it has none
func (m *MemoryGraph) AddEntity(entity *model.Entity) *model.Entity {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *entity
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	m.entities[stored.ID] = &stored
	entity.ID = stored.ID
	return entity
}

// AddRelationship stores a copy of relationship. Both endpoints must exist.
func (m *MemoryGraph) AddRelationship(relationship *model.Relationship) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range []uuid.UUID{relationship.SourceID, relationship.TargetID} {
		if _, ok := m.entities[id]; !ok {
			return helper.NewError("add relationship", fmt.Errorf("endpoint %s: %w", id, ErrNotFound))
		}
	}
	if relationship.Type == model.RelationshipStatus && relationship.Status == "" {
		return helper.NewError("add relationship", fmt.Errorf("STATUS relationship needs a status value"))
	}

	stored := *relationship
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}
	if stored.Weight == 0 {
		stored.Weight = 1.0
	}
	m.relationships[stored.ID] = &stored
	relationship.ID = stored.ID
	return nil
}

// SelectEntity returns a copy of the entity with id
func (m *MemoryGraph) SelectEntity(ctx context.Context, id uuid.UUID) (*model.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entities[id]
	if !ok {
		return nil, helper.NewError("select entity "+id.String(), ErrNotFound)
	}
	return copyEntity(e), nil
}

// SelectEntities returns copies of the entities with the given ids, unknown ids are skipped
func (m *MemoryGraph) SelectEntities(ctx context.Context, ids []uuid.UUID) ([]*model.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entities := make([]*model.Entity, 0, len(ids))
	for _, id := range ids {
		if e, ok := m.entities[id]; ok {
			entities = append(entities, copyEntity(e))
		}
	}
	return entities, nil
}

// SelectRelationshipsTouching returns relationships with an endpoint in ids
func (m *MemoryGraph) SelectRelationshipsTouching(ctx context.Context, ids []uuid.UUID, onlyActive bool) ([]*model.Relationship, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	wanted := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}

	var out []*model.Relationship
	for _, rel := range m.relationships {
		if onlyActive && !rel.Active {
			continue
		}
		if wanted[rel.SourceID] || wanted[rel.TargetID] {
			copied := *rel
			out = append(out, &copied)
		}
	}
	graph.SortRelationships(out)
	return out, nil
}

// UpdateEntityEmbedding overwrites the embedding fields in place
func (m *MemoryGraph) UpdateEntityEmbedding(ctx context.Context, id uuid.UUID, embedding []float32, modelTag string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entities[id]
	if !ok {
		return helper.NewError("update embedding "+id.String(), ErrNotFound)
	}
	e.SetEmbedding(append([]float32(nil), embedding...), modelTag, at)
	return nil
}

// EntitiesByNames resolves names case-insensitively
func (m *MemoryGraph) EntitiesByNames(ctx context.Context, names []string) ([]*model.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[strings.ToLower(name)] = true
	}

	var out []*model.Entity
	for _, e := range m.entities {
		if wanted[strings.ToLower(e.Name)] {
			out = append(out, copyEntity(e))
		}
	}
	sortEntities(out, func(*model.Entity) int { return 0 })
	return out, nil
}

// EntityNames returns the sorted distinct entity names
func (m *MemoryGraph) EntityNames(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool, len(m.entities))
	names := make([]string, 0, len(m.entities))
	for _, e := range m.entities {
		if !seen[e.Name] {
			seen[e.Name] = true
			names = append(names, e.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// EgoNetwork walks the stored relationships breadth-first
func (m *MemoryGraph) EgoNetwork(ctx context.Context, ids []uuid.UUID, maxHops int) (*model.EgoNetwork, error) {
	return graph.EgoNetwork(ctx, m, ids, maxHops, graph.TraversalOptions{})
}

// SemanticSearch embeds text and ranks entities embedded with the same model
func (m *MemoryGraph) SemanticSearch(ctx context.Context, text string, typeFilter *model.EntityType, topK int) ([]*model.SearchHit, error) {
	if m.embedder == nil || m.embedder.Embed == nil {
		return nil, ErrSemanticSearchUnavailable
	}
	query, err := m.embedder.Embed(text)
	if err != nil {
		return nil, helper.NewError("embed query", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	candidates := make([]*model.Entity, 0, len(m.entities))
	for _, e := range m.entities {
		if e.EmbeddingModel != m.embedder.ModelTag {
			continue
		}
		if typeFilter != nil && e.Type != *typeFilter {
			continue
		}
		candidates = append(candidates, copyEntity(e))
	}
	m.mu.RUnlock()

	return rankBySimilarity(candidates, query, topK), nil
}

func copyEntity(e *model.Entity) *model.Entity {
	copied := *e
	copied.Embedding = append([]float32(nil), e.Embedding...)
	if e.EmbeddedAt != nil {
		at := *e.EmbeddedAt
		copied.EmbeddedAt = &at
	}
	return &copied
}
