package loregraph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/siherrmann/loregraph/core/assembler"
	"github.com/siherrmann/loregraph/core/classifier"
	"github.com/siherrmann/loregraph/core/graph"
	"github.com/siherrmann/loregraph/core/pipeline"
	"github.com/siherrmann/loregraph/core/sources"
	"github.com/siherrmann/loregraph/core/verification"
	"github.com/siherrmann/loregraph/database"
	"github.com/siherrmann/loregraph/helper"
	"github.com/siherrmann/loregraph/model"
)

// Store is a graph backend usable for retrieval, traversal and reindexing
type Store interface {
	sources.GraphStore
	pipeline.EntityStore
	graph.GraphDB
}

// Loregraph wires classification, retrieval, assembly, verification and
// reindexing over one graph backend.
type Loregraph struct {
	// Postgres backend only
	DB            *helper.Database
	Entities      *database.EntitiesDBHandler
	Relationships *database.RelationshipsDBHandler
	Sections      *database.SectionsDBHandler
	// Memory backend only
	Memory *sources.MemoryGraph

	Graph      Store
	Classifier *classifier.Classifier
	Retriever  *sources.Retriever
	Assembler  *assembler.Assembler
	Verifier   *verification.Service
	Reindexer  *pipeline.Reindexer
	Budgets    model.BudgetProfiles

	embedder  *pipeline.Embedder
	maxHops   int
	indexType string
	closers   []func() error
	// Logging
	log *slog.Logger
}

// ResolveRequest is the input of ResolveQuery
type ResolveRequest struct {
	Text string `json:"text" binding:"required"`
	// Known is the known-entity snapshot. Nil takes a fresh one from the graph.
	Known   []string `json:"known_entities,omitempty"`
	Profile string   `json:"profile" binding:"required"`
	// Scene is the caller supplied scene scaffold
	Scene *string `json:"scene,omitempty"`
}

// ResolveQuery classifies the text, retrieves from the requested sources
// concurrently and assembles the result into the budget of the profile.
// Source failures only show up in the manifest; a character core that cannot
// be rendered is an error.
func (g *Loregraph) ResolveQuery(ctx context.Context, req ResolveRequest) (*model.AssembledContext, error) {
	budget, err := g.Budgets.Lookup(req.Profile)
	if err != nil {
		return nil, helper.NewError("resolve query", err)
	}

	known := req.Known
	if known == nil {
		known, err = g.KnownEntities(ctx)
		if err != nil {
			// classification degrades to the fallback rules without a snapshot
			g.log.Warn("Resolving without entity snapshot", slog.String("error", err.Error()))
			known = []string{}
		}
	}

	query := g.Classifier.Classify(req.Text, known)
	g.log.Debug("Classified query",
		slog.String("intent", string(query.Intent)),
		slog.Float64("confidence", query.Confidence),
		slog.Any("entities", query.Entities),
	)

	retrieval := g.Retriever.Retrieve(ctx, query)

	assembled, err := g.Assembler.Assemble(assembler.RenderInput{
		Query:     query,
		Retrieval: retrieval,
		Scene:     req.Scene,
	}, budget)
	if err != nil {
		return nil, helper.NewError("assemble context", err)
	}

	g.log.Info("Resolved query",
		slog.String("intent", string(query.Intent)),
		slog.String("profile", budget.Profile),
		slog.Int("total_tokens", assembled.Manifest.TotalTokens),
	)
	return assembled, nil
}

// KnownEntities takes a snapshot of all entity names of the graph
func (g *Loregraph) KnownEntities(ctx context.Context) ([]string, error) {
	names, err := g.Graph.EntityNames(ctx)
	if err != nil {
		return nil, helper.NewError("select entity names", err)
	}
	return names, nil
}

// Verify runs one verification tier synchronously
func (g *Loregraph) Verify(ctx context.Context, tier model.Tier, text string, scope *model.VerificationScope) (*model.VerificationResult, error) {
	return g.Verifier.Verify(ctx, tier, text, scope)
}

// VerifyGeneration runs FAST and schedules MEDIUM in the background. The
// MEDIUM result arrives on Results under requestID.
func (g *Loregraph) VerifyGeneration(ctx context.Context, requestID string, text string, scope *model.VerificationScope) (*model.VerificationResult, error) {
	return g.Verifier.VerifyGeneration(ctx, requestID, text, scope)
}

// Results delivers the background MEDIUM results
func (g *Loregraph) Results() <-chan verification.AsyncResult {
	return g.Verifier.Results()
}

// ScopeFor builds a verification scope from the ego network around the named
// entities. No names means every entity of the graph.
func (g *Loregraph) ScopeFor(ctx context.Context, names []string) (*model.VerificationScope, error) {
	if len(names) == 0 {
		var err error
		names, err = g.KnownEntities(ctx)
		if err != nil {
			return nil, err
		}
	}

	entities, err := g.Graph.EntitiesByNames(ctx, names)
	if err != nil {
		return nil, helper.NewError("select entities by names", err)
	}
	scope := &model.VerificationScope{}
	if len(entities) == 0 {
		return scope, nil
	}

	ids := make([]uuid.UUID, 0, len(entities))
	for _, e := range entities {
		ids = append(ids, e.ID)
	}
	network, err := g.Graph.EgoNetwork(ctx, ids, max(g.maxHops, 1))
	if err != nil {
		return nil, helper.NewError("ego network", err)
	}

	scope.Entities = network.Entities()
	scope.Relationships = network.Edges
	return scope, nil
}

// Reindex recomputes the embeddings of the given entities. No ids reindexes
// the whole graph.
func (g *Loregraph) Reindex(ctx context.Context, ids []uuid.UUID) (*model.ReindexResult, error) {
	if g.Reindexer == nil {
		return nil, helper.NewError("reindex", fmt.Errorf("no embedder configured"))
	}

	if len(ids) == 0 {
		names, err := g.KnownEntities(ctx)
		if err != nil {
			return nil, err
		}
		entities, err := g.Graph.EntitiesByNames(ctx, names)
		if err != nil {
			return nil, helper.NewError("select entities by names", err)
		}
		for _, e := range entities {
			ids = append(ids, e.ID)
		}
	}

	result, err := g.Reindexer.Reindex(ctx, ids)
	if err != nil {
		return nil, err
	}

	if g.indexType != "" && g.Entities != nil && result.IndexedCount > 0 {
		if err := g.ChangeIndexType(ctx, g.indexType, nil); err != nil {
			return result, err
		}
	}
	return result, nil
}

// ChangeIndexType (re)creates the pgvector index for the embedder's dimension
func (g *Loregraph) ChangeIndexType(ctx context.Context, indexType string, params map[string]interface{}) error {
	if g.Entities == nil {
		return helper.NewError("change index type", fmt.Errorf("vector index needs the postgres backend"))
	}
	if g.embedder == nil {
		return helper.NewError("change index type", fmt.Errorf("no embedder configured"))
	}

	sample, err := g.embedder.Embed("dimension check")
	if err != nil {
		return helper.NewError("embed dimension check", err)
	}
	return g.Entities.ChangeIndexType(ctx, indexType, len(sample), params)
}

// Profiles returns the sorted budget profile names
func (g *Loregraph) Profiles() []string {
	return g.Budgets.Names()
}

// Close stops background verification and releases every backend
func (g *Loregraph) Close() error {
	if g.Verifier != nil {
		g.Verifier.Close()
	}

	var errs []error
	for i := len(g.closers) - 1; i >= 0; i-- {
		if err := g.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	g.closers = nil
	return errors.Join(errs...)
}

func (g *Loregraph) onClose(fn func() error) {
	g.closers = append(g.closers, fn)
}

func defaultLogger() *slog.Logger {
	return helper.NewLogger(os.Stdout, slog.LevelInfo)
}

// ParseIDs parses entity ids, reporting every invalid one
func ParseIDs(values []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(values))
	var invalid []string
	for _, value := range values {
		id, err := uuid.Parse(strings.TrimSpace(value))
		if err != nil {
			invalid = append(invalid, value)
			continue
		}
		ids = append(ids, id)
	}
	if len(invalid) > 0 {
		sort.Strings(invalid)
		return nil, fmt.Errorf("invalid entity ids: %s", strings.Join(invalid, ", "))
	}
	return ids, nil
}
