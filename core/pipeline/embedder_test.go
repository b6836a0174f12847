package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEmbedder(t *testing.T) {
	embedder := NewEmbedder("fixed", func(text string) ([]float32, error) {
		return []float32{1, 2, 3}, nil
	})

	vector, err := embedder.Embed("anything")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, vector)
	assert.Equal(t, "fixed", embedder.ModelTag)
	assert.NoError(t, embedder.Close(), "Expected Close without session to be a no-op")

	var nilEmbedder *Embedder
	assert.NoError(t, nilEmbedder.Close())
}

func TestDefaultEmbedder(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping DefaultEmbedder test in short mode (requires model download)")
	}

	embedder, err := DefaultEmbedder()
	require.NoError(t, err)
	defer embedder.Close()

	assert.Equal(t, DefaultEmbeddingModel, embedder.ModelTag)

	t.Run("Produces 384 dimensions", func(t *testing.T) {
		embedding, err := embedder.Embed("Mara crosses the drowned city.")
		require.NoError(t, err)
		assert.Len(t, embedding, 384)
	})

	t.Run("Same text produces same embedding", func(t *testing.T) {
		a, err := embedder.Embed("Teodor")
		require.NoError(t, err)
		b, err := embedder.Embed("Teodor")
		require.NoError(t, err)
		require.Equal(t, len(a), len(b))
		for i := range a {
			assert.InDelta(t, a[i], b[i], 1e-4)
		}
	})
}
