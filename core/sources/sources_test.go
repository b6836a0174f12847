package sources

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/loregraph/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubDocuments struct {
	sections *model.DocumentSections
	err      error
	delay    time.Duration
}

func (s stubDocuments) GetSections(ctx context.Context, key string) (*model.DocumentSections, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.sections, s.err
}

func seededGraph(t *testing.T) (*MemoryGraph, *model.Entity, *model.Entity) {
	g := NewMemoryGraph(nil)
	mara := g.AddEntity(&model.Entity{Name: "Mara", Type: model.EntityTypeCharacter})
	teodor := g.AddEntity(&model.Entity{Name: "Teodor", Type: model.EntityTypeCharacter})
	require.NoError(t, g.AddRelationship(model.NewRelationship(mara.ID, teodor.ID, model.RelationshipMotivates, "protects")))
	return g, mara, teodor
}

func TestRetrieve(t *testing.T) {
	ctx := context.Background()
	premise := "A cartographer maps a drowned city."

	t.Run("Only requested sources are queried and reported", func(t *testing.T) {
		g, mara, teodor := seededGraph(t)
		called := false
		reference := ReferenceFunc(func(ctx context.Context, query string) (string, error) {
			called = true
			return "unused", nil
		})
		r := NewRetriever(g, stubDocuments{sections: &model.DocumentSections{Premise: &premise}}, reference, DefaultRetrieverConfig(), quietLogger())

		set := r.Retrieve(ctx, model.ClassifiedQuery{
			Text:     "Who is Mara?",
			Intent:   model.IntentCharacterLookup,
			Entities: []string{"Mara"},
			Sources:  []model.SourceType{model.SourceGraph, model.SourceStructuredDocs},
		})

		assert.False(t, called)
		require.Len(t, set.Reports, 2)
		assert.Equal(t, model.SourceGraph, set.Reports[0].Source)
		assert.True(t, set.Reports[0].Available)
		require.NotNil(t, set.Graph)
		require.Len(t, set.Graph.Matched, 1)
		assert.Equal(t, mara.ID, set.Graph.Matched[0].ID)
		require.NotNil(t, set.Graph.Network)
		assert.NotNil(t, set.Graph.Network.Entity(teodor.ID), "Expected one-hop neighbour in network")
		require.NotNil(t, set.Documents)
		assert.True(t, set.Documents.HasPremise())
		assert.Nil(t, set.Reference)
	})

	t.Run("Failing source is isolated", func(t *testing.T) {
		g, _, _ := seededGraph(t)
		r := NewRetriever(g, stubDocuments{err: errors.New("parser crashed")}, ReferenceFunc(func(ctx context.Context, q string) (string, error) {
			return "  The tide rises at dusk.  ", nil
		}), DefaultRetrieverConfig(), quietLogger())

		set := r.Retrieve(ctx, model.ClassifiedQuery{
			Text:     "Mara",
			Entities: []string{"Mara"},
			Sources:  model.AllSources,
		})

		require.Len(t, set.Reports, 3)
		assert.True(t, set.Reports[0].Available)
		assert.False(t, set.Reports[1].Available)
		assert.Contains(t, set.Reports[1].Error, "parser crashed")
		assert.True(t, set.Reports[2].Available)
		assert.Nil(t, set.Documents)
		require.NotNil(t, set.Reference)
		assert.Equal(t, "The tide rises at dusk.", *set.Reference)
		assert.NotNil(t, set.Graph)
	})

	t.Run("Missing collaborator is reported unavailable", func(t *testing.T) {
		r := NewRetriever(nil, nil, nil, DefaultRetrieverConfig(), quietLogger())
		set := r.Retrieve(ctx, model.ClassifiedQuery{Text: "x", Sources: model.AllSources})
		require.Len(t, set.Reports, 3)
		for _, report := range set.Reports {
			assert.False(t, report.Available)
			assert.Contains(t, report.Error, ErrNotConfigured.Error())
		}
	})

	t.Run("Panicking source becomes unavailable", func(t *testing.T) {
		reference := ReferenceFunc(func(ctx context.Context, q string) (string, error) {
			panic("boom")
		})
		r := NewRetriever(nil, nil, reference, DefaultRetrieverConfig(), quietLogger())
		set := r.Retrieve(ctx, model.ClassifiedQuery{Text: "x", Sources: []model.SourceType{model.SourceReference}})
		require.Len(t, set.Reports, 1)
		assert.False(t, set.Reports[0].Available)
		assert.Contains(t, set.Reports[0].Error, "panicked")
	})

	t.Run("Slow source is cut by the source timeout", func(t *testing.T) {
		config := DefaultRetrieverConfig()
		config.SourceTimeout = 20 * time.Millisecond
		r := NewRetriever(nil, stubDocuments{delay: time.Second}, nil, config, quietLogger())

		start := time.Now()
		set := r.Retrieve(ctx, model.ClassifiedQuery{Text: "x", Sources: []model.SourceType{model.SourceStructuredDocs}})
		assert.Less(t, time.Since(start), 500*time.Millisecond)
		assert.False(t, set.Reports[0].Available)
	})

	t.Run("Sources run concurrently", func(t *testing.T) {
		var calls int32
		docs := stubDocuments{delay: 100 * time.Millisecond, sections: &model.DocumentSections{}}
		reference := ReferenceFunc(func(ctx context.Context, q string) (string, error) {
			atomic.AddInt32(&calls, 1)
			time.Sleep(100 * time.Millisecond)
			return "answer", nil
		})
		r := NewRetriever(nil, docs, reference, DefaultRetrieverConfig(), quietLogger())

		start := time.Now()
		r.Retrieve(ctx, model.ClassifiedQuery{Text: "x", Sources: []model.SourceType{model.SourceStructuredDocs, model.SourceReference}})
		assert.Less(t, time.Since(start), 190*time.Millisecond, "Expected both sources to overlap")
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})

	t.Run("Semantic search failure keeps the graph available", func(t *testing.T) {
		g, _, _ := seededGraph(t)
		r := NewRetriever(g, nil, nil, DefaultRetrieverConfig(), quietLogger())
		set := r.Retrieve(ctx, model.ClassifiedQuery{
			Text:           "drowned city",
			Sources:        []model.SourceType{model.SourceGraph},
			SemanticSearch: true,
		})
		require.Len(t, set.Reports, 1)
		assert.True(t, set.Reports[0].Available)
		assert.Contains(t, set.Reports[0].Error, "semantic search")
		require.NotNil(t, set.Graph)
		assert.Empty(t, set.Graph.Hits)
	})

	t.Run("Matched entities follow query order", func(t *testing.T) {
		g, _, _ := seededGraph(t)
		r := NewRetriever(g, nil, nil, DefaultRetrieverConfig(), quietLogger())
		set := r.Retrieve(ctx, model.ClassifiedQuery{
			Text:     "Teodor and Mara",
			Entities: []string{"teodor", "MARA"},
			Sources:  []model.SourceType{model.SourceGraph},
		})
		require.Len(t, set.Graph.Matched, 2)
		assert.Equal(t, "Teodor", set.Graph.Matched[0].Name)
		assert.Equal(t, "Mara", set.Graph.Matched[1].Name)
	})
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, Cosine([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Equal(t, 0.0, Cosine([]float32{1}, []float32{1, 0}))
	assert.Equal(t, 0.0, Cosine([]float32{0, 0}, []float32{1, 0}))
}

func TestOrderByNames(t *testing.T) {
	a := &model.Entity{ID: uuid.New(), Name: "A"}
	b := &model.Entity{ID: uuid.New(), Name: "B"}
	c := &model.Entity{ID: uuid.New(), Name: "C"}
	ordered := orderByNames([]*model.Entity{a, b, c}, []string{"c", "a"})
	assert.Equal(t, []*model.Entity{c, a, b}, ordered)
}
