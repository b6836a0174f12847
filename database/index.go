package database

import (
	"context"
	"fmt"
	"time"

	"github.com/siherrmann/loregraph/helper"
)

// ChangeIndexType (re)creates the vector index over entity embeddings of one dimension.
// The embedding column is unconstrained, so the index is a partial expression
// index per dimension, named idx_entities_embedding_<dim>.
// indexType: "hnsw" or "ivfflat"
// params: optional parameters for index creation
//   - For HNSW: "m" (int, default 16), "ef_construction" (int, default 64)
//   - For IVFFlat: "lists" (int, default 100)
func (h *EntitiesDBHandler) ChangeIndexType(ctx context.Context, indexType string, dim int, params map[string]interface{}) error {
	if dim <= 0 {
		return helper.NewError("change index type", fmt.Errorf("invalid embedding dimension %d", dim))
	}

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	indexName := fmt.Sprintf("idx_entities_embedding_%d", dim)
	column := fmt.Sprintf("(embedding::vector(%d))", dim)

	var createIndexSQL string
	switch indexType {
	case "hnsw":
		m := 16
		efConstruction := 64
		if mVal, ok := params["m"].(int); ok {
			m = mVal
		}
		if efVal, ok := params["ef_construction"].(int); ok {
			efConstruction = efVal
		}

		createIndexSQL = fmt.Sprintf(
			`CREATE INDEX %s ON entities USING hnsw (%s vector_cosine_ops) WITH (m = %d, ef_construction = %d) WHERE embedding_dim = %d;`,
			indexName, column, m, efConstruction, dim,
		)

	case "ivfflat":
		lists := 100
		if listsVal, ok := params["lists"].(int); ok {
			lists = listsVal
		}

		createIndexSQL = fmt.Sprintf(
			`CREATE INDEX %s ON entities USING ivfflat (%s vector_cosine_ops) WITH (lists = %d) WHERE embedding_dim = %d;`,
			indexName, column, lists, dim,
		)

	default:
		return helper.NewError("change index type", fmt.Errorf("unsupported index type: %s (use 'hnsw' or 'ivfflat')", indexType))
	}

	_, err := h.db.Instance.ExecContext(ctx, fmt.Sprintf(`DROP INDEX IF EXISTS %s;`, indexName))
	if err != nil {
		return helper.NewError("drop index", err)
	}

	_, err = h.db.Instance.ExecContext(ctx, createIndexSQL)
	if err != nil {
		return helper.NewError("create index", err)
	}

	h.db.Logger.Info("Created vector index", "type", indexType, "dim", dim, "params", params)

	return nil
}
