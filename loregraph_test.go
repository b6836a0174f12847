package loregraph

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/loregraph/config"
	"github.com/siherrmann/loregraph/core/pipeline"
	"github.com/siherrmann/loregraph/core/verification"
	"github.com/siherrmann/loregraph/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const storyYAML = `title: The Drowned Atlas
premise: A cartographer maps a city that sinks a little every night.
world_rules:
  - Maps drawn at night change by morning.
character_notes:
  Mara: Counts steps when nervous.
`

// bagOfWords embeds text as token counts over a fixed vocabulary
func bagOfWords(vocabulary ...string) *pipeline.Embedder {
	index := map[string]int{}
	for _, word := range vocabulary {
		index[strings.ToLower(word)] = len(index)
	}
	return pipeline.NewEmbedder("bag-of-words", func(text string) ([]float32, error) {
		vector := make([]float32, len(index)+1)
		for _, token := range strings.Fields(strings.ToLower(text)) {
			if i, ok := index[token]; ok {
				vector[i]++
			} else {
				vector[len(index)]++
			}
		}
		return vector, nil
	})
}

func initLoregraph(t *testing.T, opts ...Option) (*Loregraph, *model.Entity, *model.Entity) {
	return initLoregraphWithConfig(t, config.Default(), opts...)
}

func initLoregraphWithConfig(t *testing.T, cfg *config.Config, opts ...Option) (*Loregraph, *model.Entity, *model.Entity) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "story.yaml"), []byte(storyYAML), 0o600))

	cfg.Graph.Backend = config.BackendMemory
	cfg.Embedding.Model = ""
	cfg.Retrieval.DocumentsDir = dir

	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	g, err := NewLoregraph(context.Background(), cfg, opts...)
	require.NoError(t, err, "failed to create loregraph")
	require.NotNil(t, g.Memory, "expected memory backend")
	t.Cleanup(func() {
		assert.NoError(t, g.Close())
	})

	mara := g.Memory.AddEntity(&model.Entity{Name: "Mara", Type: model.EntityTypeCharacter, Description: "A stubborn cartographer."})
	teodor := g.Memory.AddEntity(&model.Entity{Name: "Teodor", Type: model.EntityTypeCharacter, Description: "The bell keeper."})
	require.NoError(t, g.Memory.AddRelationship(model.NewRelationship(teodor.ID, mara.ID, model.RelationshipMotivates, "owes her his life")))

	return g, mara, teodor
}

func TestNewLoregraph(t *testing.T) {
	t.Run("Invalid backend", func(t *testing.T) {
		cfg := config.Default()
		cfg.Graph.Backend = "sqlite"
		_, err := NewLoregraph(context.Background(), cfg)
		assert.Error(t, err)
	})

	t.Run("Memory backend without embedder", func(t *testing.T) {
		g, _, _ := initLoregraph(t)
		assert.Nil(t, g.Reindexer, "expected no reindexer without embedder")
		assert.Nil(t, g.DB)
		assert.Equal(t, []string{"analysis", "chat", "draft", "outline"}, g.Profiles())
	})

	t.Run("Close is idempotent", func(t *testing.T) {
		g, _, _ := initLoregraph(t)
		assert.NoError(t, g.Close())
		assert.NoError(t, g.Close())
	})
}

func TestResolveQuery(t *testing.T) {
	ctx := context.Background()
	g, _, _ := initLoregraph(t)

	t.Run("Single entity lookup", func(t *testing.T) {
		assembled, err := g.ResolveQuery(ctx, ResolveRequest{
			Text:    "Who is Mara?",
			Known:   []string{"Mara", "Teodor"},
			Profile: "chat",
		})
		require.NoError(t, err)

		assert.Equal(t, model.IntentCharacterLookup, assembled.Query.Intent)
		assert.Equal(t, []string{"Mara"}, assembled.Query.Entities)
		assert.ElementsMatch(t, []model.SourceType{model.SourceGraph, model.SourceStructuredDocs}, assembled.Query.Sources)

		assert.Contains(t, assembled.Text, "### Mara (CHARACTER)")
		assert.Contains(t, assembled.Text, "Counts steps when nervous.")
		assert.Contains(t, assembled.Text, "owes her his life")
		assert.Contains(t, assembled.Manifest.Included(), model.SectionCharacterCore)
		assert.Empty(t, assembled.Manifest.UnavailableSources())
		assert.LessOrEqual(t, assembled.Manifest.TotalTokens, 2000)
	})

	t.Run("Nil snapshot reads the graph", func(t *testing.T) {
		assembled, err := g.ResolveQuery(ctx, ResolveRequest{Text: "Tell me about Teodor", Profile: "chat"})
		require.NoError(t, err)
		assert.Equal(t, []string{"Teodor"}, assembled.Query.Entities)
	})

	t.Run("Empty snapshot falls back to hybrid", func(t *testing.T) {
		assembled, err := g.ResolveQuery(ctx, ResolveRequest{Text: "Mara at dawn", Known: []string{}, Profile: "chat"})
		require.NoError(t, err)
		assert.Equal(t, model.IntentHybrid, assembled.Query.Intent)
		assert.Equal(t, []model.SourceType{model.SourceReference}, assembled.Manifest.UnavailableSources())
	})

	t.Run("Deterministic output", func(t *testing.T) {
		req := ResolveRequest{Text: "Who is Mara?", Known: []string{"Mara", "Teodor"}, Profile: "outline"}
		first, err := g.ResolveQuery(ctx, req)
		require.NoError(t, err)
		second, err := g.ResolveQuery(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, first.Text, second.Text)
		assert.Equal(t, first.Manifest, second.Manifest)
	})

	t.Run("Unknown profile", func(t *testing.T) {
		_, err := g.ResolveQuery(ctx, ResolveRequest{Text: "Who is Mara?", Profile: "novel"})
		assert.ErrorContains(t, err, "unknown budget profile")
	})
}

func TestVerify(t *testing.T) {
	ctx := context.Background()
	g, mara, _ := initLoregraph(t)
	require.NoError(t, g.Memory.AddRelationship(&model.Relationship{
		SourceID: mara.ID,
		TargetID: mara.ID,
		Type:     model.RelationshipStatus,
		Status:   "deceased",
		Active:   true,
	}))

	t.Run("Scope from the graph", func(t *testing.T) {
		scope, err := g.ScopeFor(ctx, []string{"mara"})
		require.NoError(t, err)
		assert.Len(t, scope.Entities, 2)
		assert.Len(t, scope.Relationships, 2)

		all, err := g.ScopeFor(ctx, nil)
		require.NoError(t, err)
		assert.Len(t, all.Entities, 2)

		none, err := g.ScopeFor(ctx, []string{"Nobody"})
		require.NoError(t, err)
		assert.Empty(t, none.Entities)
	})

	t.Run("Retired entity mentioned", func(t *testing.T) {
		scope, err := g.ScopeFor(ctx, []string{"Mara"})
		require.NoError(t, err)

		result, err := g.Verify(ctx, model.TierFast, "Mara climbed the bell tower.", scope)
		require.NoError(t, err)
		assert.False(t, result.Passed)
		assert.Len(t, result.IssuesByCheck(verification.CheckEntityStatusConflict), 1)

		result, err = g.Verify(ctx, model.TierFast, "Teodor climbed the bell tower.", scope)
		require.NoError(t, err)
		assert.True(t, result.Passed)
	})

	t.Run("Background result follows the fast result", func(t *testing.T) {
		scope, err := g.ScopeFor(ctx, nil)
		require.NoError(t, err)
		current := 30
		scope.CurrentPosition = &current
		scope.Events = []model.EventRecord{{Type: "storm", Position: 12}}
		scope.GapThresholds = map[string]int{"storm": 10}

		fast, err := g.VerifyGeneration(ctx, "req-1", "Teodor rang the bell.", scope)
		require.NoError(t, err)
		assert.Equal(t, model.TierFast, fast.Tier)

		select {
		case async := <-g.Results():
			assert.Equal(t, "req-1", async.RequestID)
			assert.Equal(t, model.TierMedium, async.Result.Tier)
			assert.Len(t, async.Result.IssuesByCheck(verification.CheckEventGap), 1)
		case <-time.After(2 * time.Second):
			t.Fatal("expected a background result")
		}
	})
}

func TestReindex(t *testing.T) {
	ctx := context.Background()

	t.Run("Without embedder", func(t *testing.T) {
		g, _, _ := initLoregraph(t)
		_, err := g.Reindex(ctx, nil)
		assert.Error(t, err)
		assert.Error(t, g.ChangeIndexType(ctx, "hnsw", nil), "memory backend has no vector index")
	})

	t.Run("Whole graph then self match", func(t *testing.T) {
		g, mara, teodor := initLoregraph(t, WithEmbedder(bagOfWords("mara", "teodor")))
		require.NotNil(t, g.Reindexer)

		result, err := g.Reindex(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, 2, result.IndexedCount)
		assert.Equal(t, 0, result.FailedCount)

		for _, entity := range []*model.Entity{mara, teodor} {
			hits, err := g.Graph.SemanticSearch(ctx, entity.Name, nil, 2)
			require.NoError(t, err)
			require.NotEmpty(t, hits)
			assert.Equal(t, entity.ID, hits[0].Entity.ID)
			assert.Greater(t, hits[0].Similarity, pipeline.SelfMatchThreshold)
		}
	})

	t.Run("Description reaches the entity when embedded", func(t *testing.T) {
		embedder := bagOfWords("mara", "teodor", "bell", "stubborn")

		g, _, _ := initLoregraph(t, WithEmbedder(embedder))
		_, err := g.Reindex(ctx, nil)
		require.NoError(t, err)
		hits, err := g.Graph.SemanticSearch(ctx, "who rings the bell", nil, 2)
		require.NoError(t, err)
		for _, hit := range hits {
			assert.Zero(t, hit.Similarity, "name only embeddings know nothing about bells")
		}

		cfg := config.Default()
		cfg.Reindex.EmbedText = "name_description"
		g, _, teodor := initLoregraphWithConfig(t, cfg, WithEmbedder(embedder))
		_, err = g.Reindex(ctx, nil)
		require.NoError(t, err)
		hits, err = g.Graph.SemanticSearch(ctx, "who rings the bell", nil, 2)
		require.NoError(t, err)
		require.NotEmpty(t, hits)
		assert.Equal(t, teodor.ID, hits[0].Entity.ID)
		assert.Greater(t, hits[0].Similarity, 0.9)
	})

	t.Run("Unknown id is counted as failure", func(t *testing.T) {
		g, mara, _ := initLoregraph(t, WithEmbedder(bagOfWords("mara", "teodor")))
		result, err := g.Reindex(ctx, []uuid.UUID{mara.ID, uuid.New()})
		require.NoError(t, err)
		assert.Equal(t, 1, result.IndexedCount)
		assert.Equal(t, 1, result.FailedCount)
	})
}

func TestParseIDs(t *testing.T) {
	id := uuid.New()
	ids, err := ParseIDs([]string{" " + id.String() + " "})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{id}, ids)

	_, err = ParseIDs([]string{id.String(), "zzz", "abc"})
	assert.ErrorContains(t, err, "abc, zzz")
}
