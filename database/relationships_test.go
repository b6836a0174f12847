package database

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/siherrmann/loregraph/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelationships(t *testing.T) {
	ctx := context.Background()
	database := initDB(t)

	entitiesDbHandler, err := NewEntitiesDBHandler(database, true)
	require.NoError(t, err)
	relationshipsDbHandler, err := NewRelationshipsDBHandler(database, true)
	require.NoError(t, err)

	mara := &model.Entity{Name: uniqueName("Mara"), Type: model.EntityTypeCharacter}
	teodor := &model.Entity{Name: uniqueName("Teodor"), Type: model.EntityTypeCharacter}
	harbor := &model.Entity{Name: uniqueName("Harbor"), Type: model.EntityTypeLocation}
	for _, e := range []*model.Entity{mara, teodor, harbor} {
		require.NoError(t, entitiesDbHandler.InsertEntity(ctx, e))
		defer entitiesDbHandler.DeleteEntity(ctx, e.ID)
	}

	t.Run("Invalid call NewRelationshipsDBHandler with nil database", func(t *testing.T) {
		_, err := NewRelationshipsDBHandler(nil, false)
		assert.Error(t, err)
	})

	t.Run("Insert defaults weight to 1.0", func(t *testing.T) {
		rel := &model.Relationship{SourceID: mara.ID, TargetID: teodor.ID, Type: model.RelationshipMotivates, Active: true}
		require.NoError(t, relationshipsDbHandler.InsertRelationship(ctx, rel))
		assert.NotEqual(t, uuid.Nil, rel.ID)
		assert.Equal(t, 1.0, rel.Weight)

		selected, err := relationshipsDbHandler.SelectRelationship(ctx, rel.ID)
		require.NoError(t, err)
		assert.Equal(t, model.RelationshipMotivates, selected.Type)
		assert.True(t, selected.Active)
	})

	t.Run("Insert with dangling endpoint fails", func(t *testing.T) {
		rel := model.NewRelationship(mara.ID, uuid.New(), model.RelationshipHinders, "")
		err := relationshipsDbHandler.InsertRelationship(ctx, rel)
		assert.Error(t, err, "Expected foreign key violation")
	})

	t.Run("STATUS relationship requires a status value", func(t *testing.T) {
		rel := model.NewRelationship(teodor.ID, teodor.ID, model.RelationshipStatus, "")
		err := relationshipsDbHandler.InsertRelationship(ctx, rel)
		assert.Error(t, err)
	})

	t.Run("Touching and active-by-type selection", func(t *testing.T) {
		status := model.NewStatusRelationship(teodor.ID, "deceased")
		require.NoError(t, relationshipsDbHandler.InsertRelationship(ctx, status))

		contradiction := model.NewRelationship(mara.ID, harbor.ID, model.RelationshipContradicts, "")
		require.NoError(t, relationshipsDbHandler.InsertRelationship(ctx, contradiction))

		touching, err := relationshipsDbHandler.SelectRelationshipsTouching(ctx, []uuid.UUID{harbor.ID}, true)
		require.NoError(t, err)
		require.Len(t, touching, 1)
		assert.Equal(t, contradiction.ID, touching[0].ID)

		statuses, err := relationshipsDbHandler.SelectActiveRelationshipsByType(ctx, model.RelationshipStatus, []uuid.UUID{teodor.ID})
		require.NoError(t, err)
		require.Len(t, statuses, 1)
		assert.Equal(t, "deceased", statuses[0].Status)

		require.NoError(t, relationshipsDbHandler.UpdateRelationshipActive(ctx, status.ID, false))
		statuses, err = relationshipsDbHandler.SelectActiveRelationshipsByType(ctx, model.RelationshipStatus, []uuid.UUID{teodor.ID})
		require.NoError(t, err)
		assert.Empty(t, statuses, "Expected inactive STATUS to be filtered")

		all, err := relationshipsDbHandler.SelectRelationshipsTouching(ctx, []uuid.UUID{teodor.ID}, false)
		require.NoError(t, err)
		assert.Len(t, all, 2, "Expected MOTIVATES and inactive STATUS")
	})

	t.Run("Deleting an entity cascades to its relationships", func(t *testing.T) {
		ghost := &model.Entity{Name: uniqueName("Ghost"), Type: model.EntityTypeCharacter}
		require.NoError(t, entitiesDbHandler.InsertEntity(ctx, ghost))
		rel := model.NewRelationship(ghost.ID, mara.ID, model.RelationshipCauses, "")
		require.NoError(t, relationshipsDbHandler.InsertRelationship(ctx, rel))

		require.NoError(t, entitiesDbHandler.DeleteEntity(ctx, ghost.ID))
		_, err := relationshipsDbHandler.SelectRelationship(ctx, rel.ID)
		assert.ErrorIs(t, err, ErrRelationshipNotFound)
	})
}
