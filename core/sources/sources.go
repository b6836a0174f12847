package sources

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/loregraph/model"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrNotFound is returned by stores when the requested item does not exist
	ErrNotFound = errors.New("not found")
	// ErrNotConfigured marks a requested source that has no backing collaborator
	ErrNotConfigured = errors.New("source not configured")
	// ErrSemanticSearchUnavailable is returned when a graph store has no embedder
	ErrSemanticSearchUnavailable = errors.New("semantic search unavailable: no embedder configured")
)

// GraphStore is the graph knowledge source
type GraphStore interface {
	// EntitiesByNames resolves names case-insensitively; unknown names are skipped
	EntitiesByNames(ctx context.Context, names []string) ([]*model.Entity, error)
	// EntityNames is the known-entity snapshot for classification
	EntityNames(ctx context.Context) ([]string, error)
	// EgoNetwork returns the subgraph within maxHops of the seeds
	EgoNetwork(ctx context.Context, ids []uuid.UUID, maxHops int) (*model.EgoNetwork, error)
	// SemanticSearch ranks entities by embedding similarity to text. The
	// ranking is returned as is, callers never re-score it.
	SemanticSearch(ctx context.Context, text string, typeFilter *model.EntityType, topK int) ([]*model.SearchHit, error)
}

// DocumentStore is the structured reference document source
type DocumentStore interface {
	GetSections(ctx context.Context, key string) (*model.DocumentSections, error)
}

// ReferenceCollaborator answers a free-text question with free text
type ReferenceCollaborator interface {
	Answer(ctx context.Context, query string) (string, error)
}

// ReferenceFunc adapts a function to ReferenceCollaborator
type ReferenceFunc func(ctx context.Context, query string) (string, error)

// Answer calls f
func (f ReferenceFunc) Answer(ctx context.Context, query string) (string, error) {
	return f(ctx, query)
}

// RetrieverConfig tunes the retrieval fan-out
type RetrieverConfig struct {
	// DocumentKey selects the structured document to read sections from
	DocumentKey string
	// MaxHops is the ego-network radius around matched entities
	MaxHops int
	// TopK bounds semantic search hits
	TopK int
	// SourceTimeout bounds each source call, zero means no extra bound
	SourceTimeout time.Duration
}

// DefaultRetrieverConfig returns the defaults used when no config is given
func DefaultRetrieverConfig() RetrieverConfig {
	return RetrieverConfig{
		DocumentKey:   "story",
		MaxHops:       1,
		TopK:          5,
		SourceTimeout: 5 * time.Second,
	}
}

// Retriever fans one classified query out to the requested sources concurrently
type Retriever struct {
	graph     GraphStore
	documents DocumentStore
	reference ReferenceCollaborator
	config    RetrieverConfig
	logger    *slog.Logger
}

// NewRetriever creates a retriever. Any collaborator may be nil; requesting
// it then yields an unavailable report instead of a failure.
func NewRetriever(graph GraphStore, documents DocumentStore, reference ReferenceCollaborator, config RetrieverConfig, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	if config.MaxHops < 0 {
		config.MaxHops = 0
	}
	if config.TopK <= 0 {
		config.TopK = DefaultRetrieverConfig().TopK
	}
	return &Retriever{
		graph:     graph,
		documents: documents,
		reference: reference,
		config:    config,
		logger:    logger,
	}
}

// Retrieve queries every source of q concurrently and merges once all have
// returned. It never fails: a failing source leaves its result empty and is
// reported as unavailable. Reports follow the fixed source order.
func (r *Retriever) Retrieve(ctx context.Context, q model.ClassifiedQuery) *model.RetrievalSet {
	set := &model.RetrievalSet{Reports: []model.SourceReport{}}

	// each goroutine writes only its own result and error, merged after Wait
	var (
		graphResult  *model.GraphRetrieval
		graphWarning string
		documents    *model.DocumentSections
		reference    *string
		errs         = map[model.SourceType]*error{
			model.SourceGraph:          new(error),
			model.SourceStructuredDocs: new(error),
			model.SourceReference:      new(error),
		}
	)

	g, gctx := errgroup.WithContext(ctx)
	if q.HasSource(model.SourceGraph) {
		g.Go(func() error {
			*errs[model.SourceGraph] = r.guard(gctx, model.SourceGraph, func(ctx context.Context) (err error) {
				graphResult, graphWarning, err = r.retrieveGraph(ctx, q)
				return err
			})
			// Don't fail the group on a source error
			return nil
		})
	}
	if q.HasSource(model.SourceStructuredDocs) {
		g.Go(func() error {
			*errs[model.SourceStructuredDocs] = r.guard(gctx, model.SourceStructuredDocs, func(ctx context.Context) (err error) {
				documents, err = r.retrieveDocuments(ctx)
				return err
			})
			return nil
		})
	}
	if q.HasSource(model.SourceReference) {
		g.Go(func() error {
			*errs[model.SourceReference] = r.guard(gctx, model.SourceReference, func(ctx context.Context) (err error) {
				reference, err = r.retrieveReference(ctx, q)
				return err
			})
			return nil
		})
	}
	_ = g.Wait()

	for _, source := range model.AllSources {
		if !q.HasSource(source) {
			continue
		}
		err := *errs[source]
		report := model.SourceReport{Source: source, Available: err == nil}
		if err != nil {
			report.Error = err.Error()
			r.logger.Warn("Knowledge source unavailable", slog.String("source", string(source)), slog.String("error", report.Error))
		} else if source == model.SourceGraph && graphWarning != "" {
			report.Error = graphWarning
		}
		set.Reports = append(set.Reports, report)
	}

	if *errs[model.SourceGraph] == nil {
		set.Graph = graphResult
	}
	if *errs[model.SourceStructuredDocs] == nil {
		set.Documents = documents
	}
	if *errs[model.SourceReference] == nil {
		set.Reference = reference
	}

	return set
}

// guard applies the per-source timeout and turns a panic into an error
func (r *Retriever) guard(ctx context.Context, source model.SourceType, fn func(ctx context.Context) error) (err error) {
	if r.config.SourceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.SourceTimeout)
		defer cancel()
	}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%s source panicked: %v", source, p)
		}
	}()
	return fn(ctx)
}

func (r *Retriever) retrieveGraph(ctx context.Context, q model.ClassifiedQuery) (*model.GraphRetrieval, string, error) {
	if r.graph == nil {
		return nil, "", ErrNotConfigured
	}

	result := &model.GraphRetrieval{Matched: []*model.Entity{}}
	if len(q.Entities) > 0 {
		entities, err := r.graph.EntitiesByNames(ctx, q.Entities)
		if err != nil {
			return nil, "", fmt.Errorf("resolve entities: %w", err)
		}
		result.Matched = orderByNames(entities, q.Entities)
	}

	if len(result.Matched) > 0 {
		ids := make([]uuid.UUID, len(result.Matched))
		for i, e := range result.Matched {
			ids[i] = e.ID
		}
		network, err := r.graph.EgoNetwork(ctx, ids, r.config.MaxHops)
		if err != nil {
			return nil, "", fmt.Errorf("ego network: %w", err)
		}
		result.Network = network
	}

	var warning string
	if q.SemanticSearch {
		hits, err := r.graph.SemanticSearch(ctx, q.Text, nil, r.config.TopK)
		if err != nil {
			// the lexical part of the graph answer is still usable
			warning = "semantic search: " + err.Error()
			r.logger.Warn("Semantic search failed", slog.String("error", err.Error()))
		} else {
			result.Hits = hits
		}
	}

	return result, warning, nil
}

func (r *Retriever) retrieveDocuments(ctx context.Context) (*model.DocumentSections, error) {
	if r.documents == nil {
		return nil, ErrNotConfigured
	}
	sections, err := r.documents.GetSections(ctx, r.config.DocumentKey)
	if err != nil {
		return nil, fmt.Errorf("get sections %q: %w", r.config.DocumentKey, err)
	}
	return sections, nil
}

func (r *Retriever) retrieveReference(ctx context.Context, q model.ClassifiedQuery) (*string, error) {
	if r.reference == nil {
		return nil, ErrNotConfigured
	}
	answer, err := r.reference.Answer(ctx, q.Text)
	if err != nil {
		return nil, fmt.Errorf("reference answer: %w", err)
	}
	answer = strings.TrimSpace(answer)
	return &answer, nil
}

// orderByNames orders entities like names (case-insensitive), leftovers last by name
func orderByNames(entities []*model.Entity, names []string) []*model.Entity {
	rank := make(map[string]int, len(names))
	for i, name := range names {
		key := strings.ToLower(name)
		if _, ok := rank[key]; !ok {
			rank[key] = i
		}
	}

	ordered := make([]*model.Entity, 0, len(entities))
	ordered = append(ordered, entities...)
	sortEntities(ordered, func(e *model.Entity) int {
		if i, ok := rank[strings.ToLower(e.Name)]; ok {
			return i
		}
		return len(names)
	})
	return ordered
}
