package sources

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/siherrmann/loregraph/core/graph"
	"github.com/siherrmann/loregraph/core/pipeline"
	"github.com/siherrmann/loregraph/helper"
	"github.com/siherrmann/loregraph/model"
)

// CypherRunner executes one Cypher statement and returns all records
type CypherRunner interface {
	ExecuteQuery(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error)
}

// MemgraphDriver runs Cypher against Memgraph over bolt
type MemgraphDriver struct {
	Driver neo4j.DriverWithContext
}

// NewMemgraphDriver connects and verifies connectivity
func NewMemgraphDriver(ctx context.Context, uri, username, password string) (*MemgraphDriver, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, helper.NewError("memgraph driver", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, helper.NewError("memgraph connectivity", err)
	}
	return &MemgraphDriver{Driver: driver}, nil
}

// ExecuteQuery implements CypherRunner
func (d *MemgraphDriver) ExecuteQuery(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error) {
	result, err := neo4j.ExecuteQuery(ctx, d.Driver, query, params, neo4j.EagerResultTransformer)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return result, nil
}

// Close closes the driver
func (d *MemgraphDriver) Close(ctx context.Context) error {
	return d.Driver.Close(ctx)
}

const entityReturn = `e.id AS id, e.entity_type AS entity_type, e.name AS name, e.description AS description,
	e.embedding AS embedding, e.embedding_model AS embedding_model, e.embedded_at AS embedded_at,
	e.provenance AS provenance`

const relationshipReturn = `r.id AS id, a.id AS source_id, b.id AS target_id, r.relationship_type AS relationship_type,
	r.description AS description, r.weight AS weight, r.active AS active, r.status AS status`

// MemgraphGraph stores entities as (:Entity) nodes and relationships as
// [:RELATES] edges carrying the relationship type as a property.
type MemgraphGraph struct {
	runner   CypherRunner
	embedder *pipeline.Embedder
	logger   *slog.Logger
}

// NewMemgraphGraph creates the store. embedder may be nil.
func NewMemgraphGraph(runner CypherRunner, embedder *pipeline.Embedder, logger *slog.Logger) *MemgraphGraph {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemgraphGraph{runner: runner, embedder: embedder, logger: logger}
}

// BuildIndices creates the label-property indexes the queries rely on.
// Failures are logged, an index may already exist.
func (m *MemgraphGraph) BuildIndices(ctx context.Context) {
	for _, q := range []string{
		"CREATE INDEX ON :Entity(id);",
		"CREATE INDEX ON :Entity(name);",
	} {
		if _, err := m.runner.ExecuteQuery(ctx, q, nil); err != nil {
			m.logger.Warn("Failed to create index", slog.String("query", q), slog.String("error", err.Error()))
		}
	}
}

// InsertEntity merges an entity node on (name, entity_type)
func (m *MemgraphGraph) InsertEntity(ctx context.Context, entity *model.Entity) error {
	if entity.ID == uuid.Nil {
		entity.ID = uuid.New()
	}
	res, err := m.runner.ExecuteQuery(ctx, `
		MERGE (e:Entity {name: $name, entity_type: $entity_type})
		ON CREATE SET e.id = $id
		SET e.description = $description, e.provenance = $provenance
		RETURN e.id AS id`,
		map[string]any{
			"id":          entity.ID.String(),
			"name":        entity.Name,
			"entity_type": string(entity.Type),
			"description": entity.Description,
			"provenance":  entity.Provenance,
		})
	if err != nil {
		return helper.NewError("insert entity", err)
	}
	if len(res.Records) > 0 {
		if id, err := uuid.Parse(recordString(res.Records[0], "id")); err == nil {
			entity.ID = id
		}
	}
	return nil
}

// InsertRelationship creates a [:RELATES] edge; both endpoints must exist
func (m *MemgraphGraph) InsertRelationship(ctx context.Context, rel *model.Relationship) error {
	if rel.ID == uuid.Nil {
		rel.ID = uuid.New()
	}
	if rel.Weight == 0 {
		rel.Weight = 1.0
	}
	res, err := m.runner.ExecuteQuery(ctx, `
		MATCH (a:Entity {id: $source_id}), (b:Entity {id: $target_id})
		CREATE (a)-[r:RELATES {id: $id, relationship_type: $relationship_type, description: $description,
			weight: $weight, active: $active, status: $status}]->(b)
		RETURN r.id AS id`,
		map[string]any{
			"id":                rel.ID.String(),
			"source_id":         rel.SourceID.String(),
			"target_id":         rel.TargetID.String(),
			"relationship_type": string(rel.Type),
			"description":       rel.Description,
			"weight":            rel.Weight,
			"active":            rel.Active,
			"status":            rel.Status,
		})
	if err != nil {
		return helper.NewError("insert relationship", err)
	}
	if len(res.Records) == 0 {
		return helper.NewError("insert relationship", fmt.Errorf("endpoint missing: %w", ErrNotFound))
	}
	return nil
}

// SelectEntity implements pipeline.EntityStore
func (m *MemgraphGraph) SelectEntity(ctx context.Context, id uuid.UUID) (*model.Entity, error) {
	entities, err := m.SelectEntities(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, helper.NewError("select entity "+id.String(), ErrNotFound)
	}
	return entities[0], nil
}

// SelectEntities implements graph.GraphDB
func (m *MemgraphGraph) SelectEntities(ctx context.Context, ids []uuid.UUID) ([]*model.Entity, error) {
	res, err := m.runner.ExecuteQuery(ctx,
		`MATCH (e:Entity) WHERE e.id IN $ids RETURN `+entityReturn+` ORDER BY name, id`,
		map[string]any{"ids": idStrings(ids)})
	if err != nil {
		return nil, helper.NewError("select entities", err)
	}
	return entitiesFromRecords(res.Records), nil
}

// SelectRelationshipsTouching implements graph.GraphDB
func (m *MemgraphGraph) SelectRelationshipsTouching(ctx context.Context, ids []uuid.UUID, onlyActive bool) ([]*model.Relationship, error) {
	res, err := m.runner.ExecuteQuery(ctx, `
		MATCH (a:Entity)-[r:RELATES]->(b:Entity)
		WHERE (a.id IN $ids OR b.id IN $ids) AND (NOT $only_active OR r.active)
		RETURN `+relationshipReturn,
		map[string]any{"ids": idStrings(ids), "only_active": onlyActive})
	if err != nil {
		return nil, helper.NewError("select relationships", err)
	}

	relationships := make([]*model.Relationship, 0, len(res.Records))
	for _, record := range res.Records {
		relationships = append(relationships, relationshipFromRecord(record))
	}
	graph.SortRelationships(relationships)
	return relationships, nil
}

// UpdateEntityEmbedding implements pipeline.EntityStore
func (m *MemgraphGraph) UpdateEntityEmbedding(ctx context.Context, id uuid.UUID, embedding []float32, modelTag string, at time.Time) error {
	vector := make([]float64, len(embedding))
	for i, v := range embedding {
		vector[i] = float64(v)
	}
	res, err := m.runner.ExecuteQuery(ctx, `
		MATCH (e:Entity {id: $id})
		SET e.embedding = $embedding, e.embedding_dim = $dim, e.embedding_model = $model, e.embedded_at = $at
		RETURN count(e) AS updated`,
		map[string]any{
			"id":        id.String(),
			"embedding": vector,
			"dim":       len(vector),
			"model":     modelTag,
			"at":        at.UTC().Format(time.RFC3339Nano),
		})
	if err != nil {
		return helper.NewError("update embedding", err)
	}
	if len(res.Records) == 0 || recordInt(res.Records[0], "updated") == 0 {
		return helper.NewError("update embedding "+id.String(), ErrNotFound)
	}
	return nil
}

// EntitiesByNames resolves names case-insensitively
func (m *MemgraphGraph) EntitiesByNames(ctx context.Context, names []string) ([]*model.Entity, error) {
	lowered := make([]string, len(names))
	for i, name := range names {
		lowered[i] = strings.ToLower(name)
	}
	res, err := m.runner.ExecuteQuery(ctx,
		`MATCH (e:Entity) WHERE toLower(e.name) IN $names RETURN `+entityReturn+` ORDER BY name, id`,
		map[string]any{"names": lowered})
	if err != nil {
		return nil, helper.NewError("entities by names", err)
	}
	return entitiesFromRecords(res.Records), nil
}

// EntityNames returns the known-entity snapshot
func (m *MemgraphGraph) EntityNames(ctx context.Context) ([]string, error) {
	res, err := m.runner.ExecuteQuery(ctx, `MATCH (e:Entity) RETURN DISTINCT e.name AS name ORDER BY name`, nil)
	if err != nil {
		return nil, helper.NewError("entity names", err)
	}
	names := make([]string, 0, len(res.Records))
	for _, record := range res.Records {
		names = append(names, recordString(record, "name"))
	}
	return names, nil
}

// EgoNetwork expands one hop per Cypher round trip
func (m *MemgraphGraph) EgoNetwork(ctx context.Context, ids []uuid.UUID, maxHops int) (*model.EgoNetwork, error) {
	return graph.EgoNetwork(ctx, m, ids, maxHops, graph.TraversalOptions{})
}

// SemanticSearch ranks embedded entities of the same model tag by cosine similarity
func (m *MemgraphGraph) SemanticSearch(ctx context.Context, text string, typeFilter *model.EntityType, topK int) ([]*model.SearchHit, error) {
	if m.embedder == nil || m.embedder.Embed == nil {
		return nil, ErrSemanticSearchUnavailable
	}
	query, err := m.embedder.Embed(text)
	if err != nil {
		return nil, helper.NewError("embed query", err)
	}

	var entityType any
	if typeFilter != nil {
		entityType = string(*typeFilter)
	}
	res, err := m.runner.ExecuteQuery(ctx, `
		MATCH (e:Entity)
		WHERE e.embedding IS NOT NULL AND e.embedding_model = $model
			AND ($entity_type IS NULL OR e.entity_type = $entity_type)
		RETURN `+entityReturn,
		map[string]any{"model": m.embedder.ModelTag, "entity_type": entityType})
	if err != nil {
		return nil, helper.NewError("semantic search", err)
	}

	return rankBySimilarity(entitiesFromRecords(res.Records), query, topK), nil
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func entitiesFromRecords(records []*neo4j.Record) []*model.Entity {
	entities := make([]*model.Entity, 0, len(records))
	for _, record := range records {
		entities = append(entities, entityFromRecord(record))
	}
	return entities
}

func entityFromRecord(record *neo4j.Record) *model.Entity {
	id, _ := uuid.Parse(recordString(record, "id"))
	entity := &model.Entity{
		ID:             id,
		Type:           model.EntityType(recordString(record, "entity_type")),
		Name:           recordString(record, "name"),
		Description:    recordString(record, "description"),
		EmbeddingModel: recordString(record, "embedding_model"),
		Provenance:     recordString(record, "provenance"),
	}

	if raw, ok := record.Get("embedding"); ok {
		if list, ok := raw.([]any); ok && len(list) > 0 {
			vector := make([]float32, 0, len(list))
			for _, v := range list {
				switch n := v.(type) {
				case float64:
					vector = append(vector, float32(n))
				case int64:
					vector = append(vector, float32(n))
				}
			}
			entity.Embedding = vector
			entity.EmbeddingDim = len(vector)
		}
	}
	if at, err := time.Parse(time.RFC3339Nano, recordString(record, "embedded_at")); err == nil {
		entity.EmbeddedAt = &at
	}
	return entity
}

func relationshipFromRecord(record *neo4j.Record) *model.Relationship {
	id, _ := uuid.Parse(recordString(record, "id"))
	source, _ := uuid.Parse(recordString(record, "source_id"))
	target, _ := uuid.Parse(recordString(record, "target_id"))

	rel := &model.Relationship{
		ID:          id,
		SourceID:    source,
		TargetID:    target,
		Type:        model.RelationshipType(recordString(record, "relationship_type")),
		Description: recordString(record, "description"),
		Weight:      1.0,
		Status:      recordString(record, "status"),
	}
	if w, ok := record.Get("weight"); ok {
		if f, ok := w.(float64); ok {
			rel.Weight = f
		}
	}
	if a, ok := record.Get("active"); ok {
		rel.Active, _ = a.(bool)
	}
	return rel
}

func recordString(record *neo4j.Record, key string) string {
	v, ok := record.Get(key)
	if !ok || v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

func recordInt(record *neo4j.Record, key string) int64 {
	v, ok := record.Get(key)
	if !ok || v == nil {
		return 0
	}
	n, _ := v.(int64)
	return n
}
