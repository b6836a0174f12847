package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/siherrmann/loregraph/helper"
	"github.com/siherrmann/loregraph/model"
	loresql "github.com/siherrmann/loregraph/sql"
)

// ErrSectionsNotFound is returned when a document key has no stored sections
var ErrSectionsNotFound = errors.New("document sections not found")

// SectionsDBHandlerFunctions defines the interface for document section operations.
type SectionsDBHandlerFunctions interface {
	UpsertSections(ctx context.Context, sections *model.DocumentSections) error
	SelectSections(ctx context.Context, key string) (*model.DocumentSections, error)
	DeleteSections(ctx context.Context, key string) error
}

// SectionsDBHandler stores parsed structured documents as JSONB, one row per document key
type SectionsDBHandler struct {
	db *helper.Database
}

// NewSectionsDBHandler creates a new document sections database handler.
func NewSectionsDBHandler(db *helper.Database, force bool) (*SectionsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	sectionsDbHandler := &SectionsDBHandler{
		db: db,
	}

	err := loresql.LoadSectionsSql(sectionsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load sections sql", err)
	}

	err = sectionsDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized SectionsDBHandler")

	return sectionsDbHandler, nil
}

// CreateTable creates the 'document_sections' table if missing.
func (h *SectionsDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_document_sections();`)
	if err != nil {
		log.Panicf("error initializing document_sections table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table document_sections")

	return nil
}

// UpsertSections stores the sections under their key, replacing any previous version
func (h *SectionsDBHandler) UpsertSections(ctx context.Context, sections *model.DocumentSections) error {
	if sections == nil || sections.Key == "" {
		return helper.NewError("upsert sections", fmt.Errorf("document key is empty"))
	}

	payload, err := json.Marshal(sections)
	if err != nil {
		return helper.NewError("marshal sections", err)
	}

	var key string
	var raw []byte
	var updatedAt time.Time
	err = h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM upsert_document_sections($1, $2)`,
		sections.Key,
		payload,
	).Scan(&key, &raw, &updatedAt)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// SelectSections returns the sections stored under key
func (h *SectionsDBHandler) SelectSections(ctx context.Context, key string) (*model.DocumentSections, error) {
	var storedKey string
	var raw []byte
	var updatedAt time.Time
	err := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM select_document_sections($1)`,
		key,
	).Scan(&storedKey, &raw, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, helper.NewError("select sections "+key, ErrSectionsNotFound)
	}
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	sections := &model.DocumentSections{}
	err = json.Unmarshal(raw, sections)
	if err != nil {
		return nil, helper.NewError("unmarshal sections", err)
	}
	sections.Key = storedKey

	return sections, nil
}

// DeleteSections removes the sections stored under key
func (h *SectionsDBHandler) DeleteSections(ctx context.Context, key string) error {
	_, err := h.db.Instance.ExecContext(ctx, `SELECT delete_document_sections($1)`, key)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}
