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
	"github.com/siherrmann/loregraph/helper"
	"github.com/siherrmann/loregraph/model"
	loresql "github.com/siherrmann/loregraph/sql"
)

// ErrRelationshipNotFound is returned when no relationship matches the lookup
var ErrRelationshipNotFound = errors.New("relationship not found")

// RelationshipsDBHandlerFunctions defines the interface for Relationships database operations.
type RelationshipsDBHandlerFunctions interface {
	InsertRelationship(ctx context.Context, relationship *model.Relationship) error
	SelectRelationship(ctx context.Context, id uuid.UUID) (*model.Relationship, error)
	SelectRelationshipsTouching(ctx context.Context, ids []uuid.UUID, onlyActive bool) ([]*model.Relationship, error)
	SelectActiveRelationshipsByType(ctx context.Context, relType model.RelationshipType, ids []uuid.UUID) ([]*model.Relationship, error)
	UpdateRelationshipActive(ctx context.Context, id uuid.UUID, active bool) error
	DeleteRelationship(ctx context.Context, id uuid.UUID) error
}

// RelationshipsDBHandler handles relationship-related database operations
type RelationshipsDBHandler struct {
	db *helper.Database
}

// NewRelationshipsDBHandler creates a new relationships database handler.
// The entities table must exist, relationships reference it.
func NewRelationshipsDBHandler(db *helper.Database, force bool) (*RelationshipsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	relationshipsDbHandler := &RelationshipsDBHandler{
		db: db,
	}

	err := loresql.LoadRelationshipsSql(relationshipsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load relationships sql", err)
	}

	err = relationshipsDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized RelationshipsDBHandler")

	return relationshipsDbHandler, nil
}

// CreateTable creates the 'relationships' table and its indexes if missing.
func (h *RelationshipsDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_relationships();`)
	if err != nil {
		log.Panicf("error initializing relationships table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table relationships")

	return nil
}

// InsertRelationship inserts a relationship. A zero weight is stored as the default 1.0.
func (h *RelationshipsDBHandler) InsertRelationship(ctx context.Context, relationship *model.Relationship) error {
	if relationship.Type == model.RelationshipStatus && relationship.Status == "" {
		return helper.NewError("insert relationship", fmt.Errorf("STATUS relationship needs a status value"))
	}

	var weight *float64
	if relationship.Weight != 0 {
		weight = &relationship.Weight
	}

	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM insert_relationship($1, $2, $3, $4, $5, $6, $7, $8)`,
		relationship.SourceID,
		relationship.TargetID,
		relationship.Type,
		relationship.Description,
		weight,
		relationship.Active,
		relationship.Status,
		relationship.Metadata,
	)

	err := scanRelationship(row, relationship)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// SelectRelationship retrieves a relationship by ID
func (h *RelationshipsDBHandler) SelectRelationship(ctx context.Context, id uuid.UUID) (*model.Relationship, error) {
	relationship := &model.Relationship{}
	row := h.db.Instance.QueryRowContext(ctx, `SELECT * FROM select_relationship($1)`, id)

	err := scanRelationship(row, relationship)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, helper.NewError("select relationship "+id.String(), ErrRelationshipNotFound)
	}
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return relationship, nil
}

// SelectRelationshipsTouching retrieves relationships with at least one endpoint in ids
func (h *RelationshipsDBHandler) SelectRelationshipsTouching(ctx context.Context, ids []uuid.UUID, onlyActive bool) ([]*model.Relationship, error) {
	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_relationships_touching($1, $2)`,
		pq.Array(uuidStrings(ids)),
		onlyActive,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	return collectRelationships(rows)
}

// SelectActiveRelationshipsByType retrieves active relationships of one type.
// A nil ids slice selects across the whole graph.
func (h *RelationshipsDBHandler) SelectActiveRelationshipsByType(ctx context.Context, relType model.RelationshipType, ids []uuid.UUID) ([]*model.Relationship, error) {
	var idFilter interface{}
	if ids != nil {
		idFilter = pq.Array(uuidStrings(ids))
	}

	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_active_relationships_by_type($1, $2)`,
		relType,
		idFilter,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	return collectRelationships(rows)
}

// UpdateRelationshipActive toggles the active flag
func (h *RelationshipsDBHandler) UpdateRelationshipActive(ctx context.Context, id uuid.UUID, active bool) error {
	var updated int
	err := h.db.Instance.QueryRowContext(ctx, `SELECT update_relationship_active($1, $2)`, id, active).Scan(&updated)
	if err != nil {
		return helper.NewError("update active", err)
	}
	if updated == 0 {
		return helper.NewError("update active "+id.String(), ErrRelationshipNotFound)
	}
	return nil
}

// DeleteRelationship deletes a relationship by ID
func (h *RelationshipsDBHandler) DeleteRelationship(ctx context.Context, id uuid.UUID) error {
	_, err := h.db.Instance.ExecContext(ctx, `SELECT delete_relationship($1)`, id)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

func scanRelationship(row rowScanner, relationship *model.Relationship) error {
	return row.Scan(
		&relationship.ID,
		&relationship.SourceID,
		&relationship.TargetID,
		&relationship.Type,
		&relationship.Description,
		&relationship.Weight,
		&relationship.Active,
		&relationship.Status,
		&relationship.Metadata,
		&relationship.CreatedAt,
	)
}

func collectRelationships(rows *sql.Rows) ([]*model.Relationship, error) {
	defer rows.Close()

	var relationships []*model.Relationship
	for rows.Next() {
		relationship := &model.Relationship{}
		if err := scanRelationship(rows, relationship); err != nil {
			return nil, helper.NewError("scan", err)
		}
		relationships = append(relationships, relationship)
	}

	err := rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return relationships, nil
}
