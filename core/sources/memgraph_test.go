package sources

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/siherrmann/loregraph/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCypher answers the read queries of MemgraphGraph from fixtures
type fakeCypher struct {
	entities      []*model.Entity
	relationships []*model.Relationship
	queries       []string
	fail          error
}

func (f *fakeCypher) ExecuteQuery(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error) {
	f.queries = append(f.queries, query)
	if f.fail != nil {
		return nil, f.fail
	}

	result := &neo4j.EagerResult{}
	switch {
	case strings.Contains(query, "RETURN DISTINCT e.name"):
		for _, e := range f.entities {
			result.Records = append(result.Records, &neo4j.Record{Keys: []string{"name"}, Values: []any{e.Name}})
		}
	case strings.Contains(query, "[r:RELATES]->(b:Entity)") && strings.Contains(query, "a.id IN $ids"):
		ids := toSet(params["ids"].([]string))
		for _, rel := range f.relationships {
			if onlyActive, _ := params["only_active"].(bool); onlyActive && !rel.Active {
				continue
			}
			if ids[rel.SourceID.String()] || ids[rel.TargetID.String()] {
				result.Records = append(result.Records, relationshipRecord(rel))
			}
		}
	case strings.Contains(query, "e.id IN $ids"):
		ids := toSet(params["ids"].([]string))
		for _, e := range f.entities {
			if ids[e.ID.String()] {
				result.Records = append(result.Records, entityRecord(e))
			}
		}
	case strings.Contains(query, "toLower(e.name) IN $names"):
		names := toSet(params["names"].([]string))
		for _, e := range f.entities {
			if names[strings.ToLower(e.Name)] {
				result.Records = append(result.Records, entityRecord(e))
			}
		}
	case strings.Contains(query, "e.embedding IS NOT NULL"):
		for _, e := range f.entities {
			if e.EmbeddingModel == params["model"] {
				result.Records = append(result.Records, entityRecord(e))
			}
		}
	case strings.Contains(query, "RETURN count(e) AS updated"):
		updated := int64(0)
		for _, e := range f.entities {
			if e.ID.String() == params["id"] {
				updated = 1
			}
		}
		result.Records = append(result.Records, &neo4j.Record{Keys: []string{"updated"}, Values: []any{updated}})
	}
	return result, nil
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

func entityRecord(e *model.Entity) *neo4j.Record {
	var embedding any
	if len(e.Embedding) > 0 {
		list := make([]any, len(e.Embedding))
		for i, v := range e.Embedding {
			list[i] = float64(v)
		}
		embedding = list
	}
	return &neo4j.Record{
		Keys:   []string{"id", "entity_type", "name", "description", "embedding", "embedding_model", "embedded_at", "provenance"},
		Values: []any{e.ID.String(), string(e.Type), e.Name, e.Description, embedding, e.EmbeddingModel, nil, e.Provenance},
	}
}

func relationshipRecord(r *model.Relationship) *neo4j.Record {
	return &neo4j.Record{
		Keys: []string{"id", "source_id", "target_id", "relationship_type", "description", "weight", "active", "status"},
		Values: []any{r.ID.String(), r.SourceID.String(), r.TargetID.String(), string(r.Type),
			r.Description, r.Weight, r.Active, r.Status},
	}
}

func TestMemgraphGraph(t *testing.T) {
	ctx := context.Background()

	mara := &model.Entity{ID: uuid.New(), Name: "Mara", Type: model.EntityTypeCharacter}
	teodor := &model.Entity{ID: uuid.New(), Name: "Teodor", Type: model.EntityTypeCharacter}
	tower := &model.Entity{ID: uuid.New(), Name: "Bell Tower", Type: model.EntityTypeLocation}
	motivates := model.NewRelationship(mara.ID, teodor.ID, model.RelationshipMotivates, "protects")
	motivates.ID = uuid.New()
	stale := model.NewRelationship(teodor.ID, tower.ID, model.RelationshipCauses, "")
	stale.ID = uuid.New()
	stale.Active = false

	fake := &fakeCypher{
		entities:      []*model.Entity{mara, teodor, tower},
		relationships: []*model.Relationship{motivates, stale},
	}
	g := NewMemgraphGraph(fake, nil, quietLogger())

	t.Run("Entity names", func(t *testing.T) {
		names, err := g.EntityNames(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"Mara", "Teodor", "Bell Tower"}, names)
	})

	t.Run("Entities by names", func(t *testing.T) {
		entities, err := g.EntitiesByNames(ctx, []string{"MARA"})
		require.NoError(t, err)
		require.Len(t, entities, 1)
		assert.Equal(t, mara.ID, entities[0].ID)
		assert.Equal(t, model.EntityTypeCharacter, entities[0].Type)
	})

	t.Run("Ego network skips inactive relationships", func(t *testing.T) {
		network, err := g.EgoNetwork(ctx, []uuid.UUID{mara.ID}, 2)
		require.NoError(t, err)
		require.Len(t, network.Nodes, 2)
		assert.Equal(t, mara.ID, network.Nodes[0].Entity.ID)
		assert.Equal(t, teodor.ID, network.Nodes[1].Entity.ID)
		require.Len(t, network.Edges, 1)
		assert.Equal(t, motivates.ID, network.Edges[0].ID)
		assert.Equal(t, "protects", network.Edges[0].Description)
		assert.True(t, network.Edges[0].Active)
	})

	t.Run("Update embedding of unknown entity", func(t *testing.T) {
		err := g.UpdateEntityEmbedding(ctx, uuid.New(), []float32{1, 0}, "vocab", mara.CreatedAt)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Semantic search ranks stored vectors", func(t *testing.T) {
		embedder := vocabEmbedder("Mara", "Teodor")
		maraVector, _ := embedder.Embed("Mara")
		teodorVector, _ := embedder.Embed("Teodor")
		mara.SetEmbedding(maraVector, "vocab", mara.CreatedAt)
		teodor.SetEmbedding(teodorVector, "vocab", mara.CreatedAt)
		defer func() {
			mara.Embedding, teodor.Embedding = nil, nil
		}()

		hits, err := NewMemgraphGraph(fake, embedder, quietLogger()).SemanticSearch(ctx, "Teodor", nil, 1)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, teodor.ID, hits[0].Entity.ID)
		assert.InDelta(t, 1.0, hits[0].Similarity, 1e-6)
	})

	t.Run("Driver errors are wrapped", func(t *testing.T) {
		broken := NewMemgraphGraph(&fakeCypher{fail: errors.New("connection refused")}, nil, quietLogger())
		_, err := broken.EntityNames(ctx)
		assert.ErrorContains(t, err, "connection refused")
	})
}
