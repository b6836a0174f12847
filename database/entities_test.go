package database

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/loregraph/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uniqueName(prefix string) string {
	return prefix + " " + uuid.NewString()[:8]
}

func TestEntitiesNewEntitiesDBHandler(t *testing.T) {
	database := initDB(t)

	t.Run("Valid call NewEntitiesDBHandler", func(t *testing.T) {
		entitiesDbHandler, err := NewEntitiesDBHandler(database, true)
		assert.NoError(t, err, "Expected NewEntitiesDBHandler to not return an error")
		require.NotNil(t, entitiesDbHandler, "Expected NewEntitiesDBHandler to return a non-nil instance")
		require.NotNil(t, entitiesDbHandler.db.Instance, "Expected a non-nil database connection instance")
	})

	t.Run("Invalid call NewEntitiesDBHandler with nil database", func(t *testing.T) {
		_, err := NewEntitiesDBHandler(nil, false)
		assert.Error(t, err, "Expected error when creating EntitiesDBHandler with nil database")
		assert.Contains(t, err.Error(), "database connection is nil")
	})
}

func TestEntitiesInsertAndSelect(t *testing.T) {
	ctx := context.Background()
	entitiesDbHandler, err := NewEntitiesDBHandler(initDB(t), true)
	require.NoError(t, err)

	t.Run("Insert sets id and created_at", func(t *testing.T) {
		entity := &model.Entity{
			Name:        uniqueName("Mara"),
			Type:        model.EntityTypeCharacter,
			Description: "A cartographer who lost her brother at sea.",
			Provenance:  "characters/mara.md",
			Metadata:    model.Metadata{"age": 34},
		}

		err := entitiesDbHandler.InsertEntity(ctx, entity)
		require.NoError(t, err, "Expected InsertEntity to not return an error")
		assert.NotEqual(t, uuid.Nil, entity.ID, "Expected inserted entity to have an ID")
		assert.WithinDuration(t, time.Now(), entity.CreatedAt, 5*time.Second)
		assert.False(t, entity.HasEmbedding(), "Expected fresh entity to have no embedding")

		selected, err := entitiesDbHandler.SelectEntity(ctx, entity.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.Name, selected.Name)
		assert.Equal(t, model.EntityTypeCharacter, selected.Type)
		assert.Equal(t, "characters/mara.md", selected.Provenance)
		assert.Nil(t, selected.EmbeddedAt)

		require.NoError(t, entitiesDbHandler.DeleteEntity(ctx, entity.ID))
	})

	t.Run("Insert same name and type updates in place", func(t *testing.T) {
		name := uniqueName("Teodor")
		first := &model.Entity{Name: name, Type: model.EntityTypeCharacter, Description: "first"}
		require.NoError(t, entitiesDbHandler.InsertEntity(ctx, first))

		second := &model.Entity{Name: name, Type: model.EntityTypeCharacter, Description: "second"}
		require.NoError(t, entitiesDbHandler.InsertEntity(ctx, second))

		assert.Equal(t, first.ID, second.ID, "Expected upsert to keep the id")
		assert.Equal(t, "second", second.Description)

		require.NoError(t, entitiesDbHandler.DeleteEntity(ctx, first.ID))
	})

	t.Run("Select missing entity returns ErrEntityNotFound", func(t *testing.T) {
		_, err := entitiesDbHandler.SelectEntity(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrEntityNotFound)
	})
}

func TestEntitiesSelectByNames(t *testing.T) {
	ctx := context.Background()
	entitiesDbHandler, err := NewEntitiesDBHandler(initDB(t), true)
	require.NoError(t, err)

	names := []string{uniqueName("Ilse"), uniqueName("Brann")}
	var ids []uuid.UUID
	for _, name := range names {
		entity := &model.Entity{Name: name, Type: model.EntityTypeCharacter}
		require.NoError(t, entitiesDbHandler.InsertEntity(ctx, entity))
		ids = append(ids, entity.ID)
	}
	defer func() {
		for _, id := range ids {
			entitiesDbHandler.DeleteEntity(ctx, id)
		}
	}()

	t.Run("Matches names ignoring case", func(t *testing.T) {
		entities, err := entitiesDbHandler.SelectEntitiesByNames(ctx, []string{
			names[0],
			names[1],
		})
		require.NoError(t, err)
		assert.Len(t, entities, 2)

		upper, err := entitiesDbHandler.SelectEntitiesByNames(ctx, []string{"ILSE " + names[0][5:]})
		require.NoError(t, err)
		require.Len(t, upper, 1)
		assert.Equal(t, ids[0], upper[0].ID)
	})

	t.Run("Select by ids", func(t *testing.T) {
		entities, err := entitiesDbHandler.SelectEntities(ctx, ids)
		require.NoError(t, err)
		assert.Len(t, entities, 2)
	})

	t.Run("Names snapshot contains inserted names", func(t *testing.T) {
		all, err := entitiesDbHandler.SelectEntityNames(ctx)
		require.NoError(t, err)
		assert.Subset(t, all, names)
	})
}

func TestEntitiesEmbedding(t *testing.T) {
	ctx := context.Background()
	entitiesDbHandler, err := NewEntitiesDBHandler(initDB(t), true)
	require.NoError(t, err)

	north := &model.Entity{Name: uniqueName("North Keep"), Type: model.EntityTypeLocation}
	south := &model.Entity{Name: uniqueName("South Keep"), Type: model.EntityTypeLocation}
	blade := &model.Entity{Name: uniqueName("Blade"), Type: model.EntityTypeItem}
	for _, e := range []*model.Entity{north, south, blade} {
		require.NoError(t, entitiesDbHandler.InsertEntity(ctx, e))
		defer entitiesDbHandler.DeleteEntity(ctx, e.ID)
	}

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, entitiesDbHandler.UpdateEntityEmbedding(ctx, north.ID, []float32{1, 0, 0}, "test-model", at))
	require.NoError(t, entitiesDbHandler.UpdateEntityEmbedding(ctx, south.ID, []float32{0.6, 0.8, 0}, "test-model", at))
	require.NoError(t, entitiesDbHandler.UpdateEntityEmbedding(ctx, blade.ID, []float32{0.9, 0.1, 0}, "test-model", at))

	t.Run("Update writes vector, dimension, model and timestamp", func(t *testing.T) {
		selected, err := entitiesDbHandler.SelectEntity(ctx, north.ID)
		require.NoError(t, err)
		assert.Equal(t, []float32{1, 0, 0}, selected.Embedding)
		assert.Equal(t, 3, selected.EmbeddingDim)
		assert.Equal(t, "test-model", selected.EmbeddingModel)
		require.NotNil(t, selected.EmbeddedAt)
		assert.True(t, at.Equal(*selected.EmbeddedAt))
	})

	t.Run("Update of unknown entity fails", func(t *testing.T) {
		err := entitiesDbHandler.UpdateEntityEmbedding(ctx, uuid.New(), []float32{1, 0, 0}, "test-model", at)
		assert.ErrorIs(t, err, ErrEntityNotFound)
	})

	t.Run("Similarity ranks the exact vector first", func(t *testing.T) {
		hits, err := entitiesDbHandler.SelectEntitiesBySimilarity(ctx, []float32{1, 0, 0}, nil, "", 50)
		require.NoError(t, err)
		require.NotEmpty(t, hits)
		assert.Equal(t, north.ID, hits[0].Entity.ID)
		assert.InDelta(t, 1.0, hits[0].Similarity, 1e-6)
	})

	t.Run("Similarity honours the type filter", func(t *testing.T) {
		itemType := model.EntityTypeItem
		hits, err := entitiesDbHandler.SelectEntitiesBySimilarity(ctx, []float32{1, 0, 0}, &itemType, "", 50)
		require.NoError(t, err)
		for _, hit := range hits {
			assert.Equal(t, model.EntityTypeItem, hit.Entity.Type)
		}
	})

	t.Run("Other dimensions are skipped", func(t *testing.T) {
		hits, err := entitiesDbHandler.SelectEntitiesBySimilarity(ctx, []float32{1, 0}, nil, "", 50)
		require.NoError(t, err)
		for _, hit := range hits {
			assert.Equal(t, 2, hit.Entity.EmbeddingDim)
		}
	})

	t.Run("Model tag is filtered before the limit", func(t *testing.T) {
		stale := &model.Entity{Name: uniqueName("Old Keep"), Type: model.EntityTypeLocation}
		require.NoError(t, entitiesDbHandler.InsertEntity(ctx, stale))
		defer entitiesDbHandler.DeleteEntity(ctx, stale.ID)
		// ranks between north and blade
		require.NoError(t, entitiesDbHandler.UpdateEntityEmbedding(ctx, stale.ID, []float32{0.995, 0.0998, 0}, "legacy-model", at))

		all, err := entitiesDbHandler.SelectEntitiesBySimilarity(ctx, []float32{1, 0, 0}, nil, "", 2)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, []uuid.UUID{north.ID, stale.ID}, []uuid.UUID{all[0].Entity.ID, all[1].Entity.ID})

		current, err := entitiesDbHandler.SelectEntitiesBySimilarity(ctx, []float32{1, 0, 0}, nil, "test-model", 2)
		require.NoError(t, err)
		require.Len(t, current, 2, "stale vectors must not take a slot of the limit")
		assert.Equal(t, []uuid.UUID{north.ID, blade.ID}, []uuid.UUID{current[0].Entity.ID, current[1].Entity.ID})
		for _, hit := range current {
			assert.Equal(t, "test-model", hit.Entity.EmbeddingModel)
		}
	})
}
