package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/loregraph/helper"
	"github.com/siherrmann/loregraph/model"
	"golang.org/x/sync/errgroup"
)

// SelfMatchThreshold is the similarity a freshly reindexed entity must reach
// when searched by its exact name.
const SelfMatchThreshold = 0.95

// DefaultReindexConcurrency bounds the parallel embed-and-write workers
const DefaultReindexConcurrency = 4

// EmbedTextFunc selects the text of an entity that gets embedded
type EmbedTextFunc func(entity *model.Entity) string

// EmbedName embeds the name only. A search for the exact name then ranks the
// entity first above SelfMatchThreshold.
func EmbedName(entity *model.Entity) string {
	return entity.Name
}

// EmbedNameAndDescription embeds "name: description" so queries can reach an
// entity through what it is rather than what it is called. Exact name
// searches score lower than with EmbedName.
func EmbedNameAndDescription(entity *model.Entity) string {
	description := strings.TrimSpace(entity.Description)
	if description == "" {
		return entity.Name
	}
	return entity.Name + ": " + description
}

// EmbedTextFor maps a configured mode ("name", "name_description") onto its func
func EmbedTextFor(mode string) (EmbedTextFunc, error) {
	switch strings.ToLower(mode) {
	case "", "name":
		return EmbedName, nil
	case "name_description":
		return EmbedNameAndDescription, nil
	default:
		return nil, fmt.Errorf("unsupported embed text mode: %s", mode)
	}
}

// Reindexer recomputes entity embeddings and writes them back in place.
// Different entities are processed in parallel. Callers must not reindex the
// same entity from two concurrent Reindex calls; ids repeated within one call
// are collapsed.
type Reindexer struct {
	store       EntityStore
	embedder    *Embedder
	text        EmbedTextFunc
	concurrency int
	logger      *slog.Logger
	now         func() time.Time
}

// NewReindexer creates a reindexer. concurrency <= 0 uses DefaultReindexConcurrency.
func NewReindexer(store EntityStore, embedder *Embedder, concurrency int, logger *slog.Logger) *Reindexer {
	if concurrency <= 0 {
		concurrency = DefaultReindexConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reindexer{
		store:       store,
		embedder:    embedder,
		text:        EmbedName,
		concurrency: concurrency,
		logger:      logger,
		now:         time.Now,
	}
}

// WithEmbedText replaces the text selection, nil keeps the current one
func (r *Reindexer) WithEmbedText(text EmbedTextFunc) *Reindexer {
	if text != nil {
		r.text = text
	}
	return r
}

// Reindex embeds the text of every entity in ids and overwrites its embedding,
// dimension, model tag and timestamp. Per-entity failures are counted and
// reported in the result; the error is only set when nothing could run.
func (r *Reindexer) Reindex(ctx context.Context, ids []uuid.UUID) (*model.ReindexResult, error) {
	if r.store == nil || r.embedder == nil || r.embedder.Embed == nil {
		return nil, helper.NewError("reindex", fmt.Errorf("reindexer needs an entity store and an embedder"))
	}

	unique := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}

	result := &model.ReindexResult{}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for _, id := range unique {
		g.Go(func() error {
			err := r.reindexOne(gctx, id)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.FailedCount++
				result.Failures = append(result.Failures, model.ReindexFailure{ID: id.String(), Error: err.Error()})
				r.logger.Warn("Reindex failed", slog.String("entity_id", id.String()), slog.String("error", err.Error()))
				return nil
			}
			result.IndexedCount++
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(result.Failures, func(i, j int) bool { return result.Failures[i].ID < result.Failures[j].ID })

	r.logger.Info("Reindex finished",
		slog.Int("indexed", result.IndexedCount),
		slog.Int("failed", result.FailedCount),
		slog.String("model", r.embedder.ModelTag),
	)

	return result, nil
}

func (r *Reindexer) reindexOne(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	entity, err := r.store.SelectEntity(ctx, id)
	if err != nil {
		return helper.NewError("select entity", err)
	}

	embedding, err := r.embedder.Embed(r.text(entity))
	if err != nil {
		return helper.NewError("embed", err)
	}
	if len(embedding) == 0 {
		return helper.NewError("embed", fmt.Errorf("empty embedding for %q", entity.Name))
	}

	err = r.store.UpdateEntityEmbedding(ctx, id, embedding, r.embedder.ModelTag, r.now())
	if err != nil {
		return helper.NewError("update embedding", err)
	}

	return nil
}
