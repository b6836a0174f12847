package graph

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/siherrmann/loregraph/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockGraphDB is a mock implementation of GraphDB for testing
type MockGraphDB struct {
	entities      map[uuid.UUID]*model.Entity
	relationships []*model.Relationship
	calls         int
}

func NewMockGraphDB() *MockGraphDB {
	return &MockGraphDB{entities: make(map[uuid.UUID]*model.Entity)}
}

func (m *MockGraphDB) addEntity(name string) *model.Entity {
	e := &model.Entity{ID: uuid.New(), Name: name, Type: model.EntityTypeCharacter}
	m.entities[e.ID] = e
	return e
}

func (m *MockGraphDB) link(a, b *model.Entity, relType model.RelationshipType) *model.Relationship {
	rel := model.NewRelationship(a.ID, b.ID, relType, "")
	rel.ID = uuid.New()
	m.relationships = append(m.relationships, rel)
	return rel
}

func (m *MockGraphDB) SelectEntities(ctx context.Context, ids []uuid.UUID) ([]*model.Entity, error) {
	var out []*model.Entity
	for _, id := range ids {
		if e, ok := m.entities[id]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MockGraphDB) SelectRelationshipsTouching(ctx context.Context, ids []uuid.UUID, onlyActive bool) ([]*model.Relationship, error) {
	m.calls++
	var out []*model.Relationship
	for _, rel := range m.relationships {
		if onlyActive && !rel.Active {
			continue
		}
		for _, id := range ids {
			if rel.Touches(id) {
				out = append(out, rel)
				break
			}
		}
	}
	return out, nil
}

func TestEgoNetwork(t *testing.T) {
	ctx := context.Background()
	mockDB := NewMockGraphDB()

	// Mara -> Teodor -> Ilse -> Brann, Vell -> Mara
	mara := mockDB.addEntity("Mara")
	teodor := mockDB.addEntity("Teodor")
	ilse := mockDB.addEntity("Ilse")
	brann := mockDB.addEntity("Brann")
	vell := mockDB.addEntity("Vell")
	mockDB.link(mara, teodor, model.RelationshipMotivates)
	mockDB.link(teodor, ilse, model.RelationshipHinders)
	mockDB.link(ilse, brann, model.RelationshipCauses)
	mockDB.link(vell, mara, model.RelationshipContradicts)

	t.Run("Zero hops returns only the seed", func(t *testing.T) {
		network, err := EgoNetwork(ctx, mockDB, []uuid.UUID{mara.ID}, 0, TraversalOptions{})
		require.NoError(t, err)
		require.Len(t, network.Nodes, 1)
		assert.Equal(t, mara.ID, network.Nodes[0].Entity.ID)
		assert.Empty(t, network.Edges, "Expected no edge with both endpoints inside")
	})

	t.Run("One hop follows both directions", func(t *testing.T) {
		network, err := EgoNetwork(ctx, mockDB, []uuid.UUID{mara.ID}, 1, TraversalOptions{})
		require.NoError(t, err)

		var names []string
		for _, node := range network.Nodes {
			names = append(names, node.Entity.Name)
		}
		assert.Equal(t, []string{"Mara", "Teodor", "Vell"}, names, "Expected nodes ordered by distance then name")
		assert.Len(t, network.Edges, 2)
		assert.Equal(t, 1, network.Nodes[1].Distance)
	})

	t.Run("Two hops reaches Ilse but not Brann", func(t *testing.T) {
		network, err := EgoNetwork(ctx, mockDB, []uuid.UUID{mara.ID}, 2, TraversalOptions{})
		require.NoError(t, err)
		assert.NotNil(t, network.Entity(ilse.ID))
		assert.Nil(t, network.Entity(brann.ID))
		for _, edge := range network.Edges {
			assert.NotNil(t, network.Entity(edge.SourceID))
			assert.NotNil(t, network.Entity(edge.TargetID))
		}
	})

	t.Run("Relationship type filter", func(t *testing.T) {
		network, err := EgoNetwork(ctx, mockDB, []uuid.UUID{mara.ID}, 3, TraversalOptions{
			RelationshipTypes: []model.RelationshipType{model.RelationshipContradicts},
		})
		require.NoError(t, err)
		assert.Len(t, network.Nodes, 2)
		assert.Nil(t, network.Entity(teodor.ID))
	})

	t.Run("Inactive relationships are skipped by default", func(t *testing.T) {
		cut := mockDB.link(brann, vell, model.RelationshipHinders)
		cut.Active = false

		network, err := EgoNetwork(ctx, mockDB, []uuid.UUID{vell.ID}, 1, TraversalOptions{})
		require.NoError(t, err)
		assert.Nil(t, network.Entity(brann.ID))

		network, err = EgoNetwork(ctx, mockDB, []uuid.UUID{vell.ID}, 1, TraversalOptions{IncludeInactive: true})
		require.NoError(t, err)
		assert.NotNil(t, network.Entity(brann.ID))
	})

	t.Run("Duplicate seeds are collapsed", func(t *testing.T) {
		network, err := EgoNetwork(ctx, mockDB, []uuid.UUID{mara.ID, mara.ID}, 0, TraversalOptions{})
		require.NoError(t, err)
		assert.Len(t, network.Nodes, 1)
	})

	t.Run("Negative hops are rejected", func(t *testing.T) {
		_, err := EgoNetwork(ctx, mockDB, []uuid.UUID{mara.ID}, -1, TraversalOptions{})
		assert.Error(t, err)
	})

	t.Run("Cancelled context stops traversal", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := EgoNetwork(cancelled, mockDB, []uuid.UUID{mara.ID}, 2, TraversalOptions{})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestNeighbors(t *testing.T) {
	mockDB := NewMockGraphDB()
	a := mockDB.addEntity("A")
	b := mockDB.addEntity("B")
	c := mockDB.addEntity("C")
	mockDB.link(a, b, model.RelationshipCauses)
	mockDB.link(b, c, model.RelationshipCauses)

	neighbors, err := Neighbors(context.Background(), mockDB, b.ID, TraversalOptions{})
	require.NoError(t, err)
	require.Len(t, neighbors, 2)
	assert.Equal(t, "A", neighbors[0].Name)
	assert.Equal(t, "C", neighbors[1].Name)
}
