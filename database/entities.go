package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/siherrmann/loregraph/helper"
	"github.com/siherrmann/loregraph/model"
	loresql "github.com/siherrmann/loregraph/sql"
)

// ErrEntityNotFound is returned when no entity matches the lookup
var ErrEntityNotFound = errors.New("entity not found")

// EntitiesDBHandlerFunctions defines the interface for Entities database operations.
type EntitiesDBHandlerFunctions interface {
	InsertEntity(ctx context.Context, entity *model.Entity) error
	DeleteEntity(ctx context.Context, id uuid.UUID) error
	SelectEntity(ctx context.Context, id uuid.UUID) (*model.Entity, error)
	SelectEntities(ctx context.Context, ids []uuid.UUID) ([]*model.Entity, error)
	SelectEntitiesByNames(ctx context.Context, names []string) ([]*model.Entity, error)
	SelectEntityNames(ctx context.Context) ([]string, error)
	UpdateEntityEmbedding(ctx context.Context, id uuid.UUID, embedding []float32, modelTag string, at time.Time) error
	SelectEntitiesBySimilarity(ctx context.Context, embedding []float32, entityType *model.EntityType, modelTag string, limit int) ([]*model.SearchHit, error)
}

// EntitiesDBHandler handles entity-related database operations
type EntitiesDBHandler struct {
	db *helper.Database
}

// NewEntitiesDBHandler creates a new entities database handler.
// It loads the entity SQL functions and creates the table.
// If force is true, it will reload the SQL functions even if they already exist.
func NewEntitiesDBHandler(db *helper.Database, force bool) (*EntitiesDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	entitiesDbHandler := &EntitiesDBHandler{
		db: db,
	}

	err := loresql.LoadEntitiesSql(entitiesDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load entities sql", err)
	}

	err = entitiesDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized EntitiesDBHandler")

	return entitiesDbHandler, nil
}

// CreateTable creates the 'entities' table and its indexes if missing.
func (h *EntitiesDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_entities();`)
	if err != nil {
		log.Panicf("error initializing entities table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table entities")

	return nil
}

// InsertEntity inserts an entity, or updates description, provenance and
// metadata of the entity with the same name and type.
func (h *EntitiesDBHandler) InsertEntity(ctx context.Context, entity *model.Entity) error {
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM insert_entity($1, $2, $3, $4, $5)`,
		entity.Name,
		entity.Type,
		entity.Description,
		entity.Provenance,
		entity.Metadata,
	)

	err := scanEntity(row, entity)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// DeleteEntity deletes an entity by ID, its relationships cascade
func (h *EntitiesDBHandler) DeleteEntity(ctx context.Context, id uuid.UUID) error {
	_, err := h.db.Instance.ExecContext(ctx, `SELECT delete_entity($1)`, id)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// SelectEntity retrieves an entity by ID
func (h *EntitiesDBHandler) SelectEntity(ctx context.Context, id uuid.UUID) (*model.Entity, error) {
	entity := &model.Entity{}
	row := h.db.Instance.QueryRowContext(ctx, `SELECT * FROM select_entity($1)`, id)

	err := scanEntity(row, entity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, helper.NewError("select entity "+id.String(), ErrEntityNotFound)
	}
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return entity, nil
}

// SelectEntities retrieves all entities with the given IDs, ordered by name
func (h *EntitiesDBHandler) SelectEntities(ctx context.Context, ids []uuid.UUID) ([]*model.Entity, error) {
	rows, err := h.db.Instance.QueryContext(ctx, `SELECT * FROM select_entities($1)`, pq.Array(uuidStrings(ids)))
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	return collectEntities(rows)
}

// SelectEntitiesByNames retrieves entities whose name matches one of names, ignoring case
func (h *EntitiesDBHandler) SelectEntitiesByNames(ctx context.Context, names []string) ([]*model.Entity, error) {
	rows, err := h.db.Instance.QueryContext(ctx, `SELECT * FROM select_entities_by_names($1)`, pq.Array(names))
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	return collectEntities(rows)
}

// SelectEntityNames returns the sorted distinct names of all entities.
// It is the known-entity snapshot handed to the classifier.
func (h *EntitiesDBHandler) SelectEntityNames(ctx context.Context) ([]string, error) {
	rows, err := h.db.Instance.QueryContext(ctx, `SELECT * FROM select_entity_names()`)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, helper.NewError("scan", err)
		}
		names = append(names, name)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return names, nil
}

// UpdateEntityEmbedding overwrites the embedding, its dimension, model tag and timestamp
func (h *EntitiesDBHandler) UpdateEntityEmbedding(ctx context.Context, id uuid.UUID, embedding []float32, modelTag string, at time.Time) error {
	if len(embedding) == 0 {
		return helper.NewError("update embedding", fmt.Errorf("embedding of entity %s is empty", id))
	}

	var updated int
	err := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT update_entity_embedding($1, $2, $3, $4)`,
		id,
		pgvector.NewVector(embedding),
		modelTag,
		at.UTC(),
	).Scan(&updated)
	if err != nil {
		return helper.NewError("update embedding", err)
	}
	if updated == 0 {
		return helper.NewError("update embedding "+id.String(), ErrEntityNotFound)
	}

	return nil
}

// SelectEntitiesBySimilarity ranks embedded entities by cosine similarity to embedding.
// A nil entityType searches all types, an empty modelTag compares every model.
// Both filters apply before the limit.
func (h *EntitiesDBHandler) SelectEntitiesBySimilarity(ctx context.Context, embedding []float32, entityType *model.EntityType, modelTag string, limit int) ([]*model.SearchHit, error) {
	var typeFilter *string
	if entityType != nil {
		t := string(*entityType)
		typeFilter = &t
	}

	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_entities_by_similarity($1, $2, $3, $4)`,
		pgvector.NewVector(embedding),
		typeFilter,
		modelTag,
		limit,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var hits []*model.SearchHit
	for rows.Next() {
		entity := &model.Entity{}
		hit := &model.SearchHit{Entity: entity}
		err := rows.Scan(append(entityColumns(entity), &hit.Similarity)...)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		hits = append(hits, hit)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return hits, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func entityColumns(entity *model.Entity) []any {
	return []any{
		&entity.ID,
		&entity.Type,
		&entity.Name,
		&entity.Description,
		pq.Array(&entity.Embedding),
		&entity.EmbeddingDim,
		&entity.EmbeddingModel,
		&entity.EmbeddedAt,
		&entity.Provenance,
		&entity.Metadata,
		&entity.CreatedAt,
	}
}

func scanEntity(row rowScanner, entity *model.Entity) error {
	return row.Scan(entityColumns(entity)...)
}

func collectEntities(rows *sql.Rows) ([]*model.Entity, error) {
	defer rows.Close()

	var entities []*model.Entity
	for rows.Next() {
		entity := &model.Entity{}
		if err := scanEntity(rows, entity); err != nil {
			return nil, helper.NewError("scan", err)
		}
		entities = append(entities, entity)
	}

	err := rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return entities, nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
