package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeMentionLabel(t *testing.T) {
	assert.Equal(t, "PER", NormalizeMentionLabel("B-PER"))
	assert.Equal(t, "LOC", NormalizeMentionLabel("I-LOC"))
	assert.Equal(t, "MISC", NormalizeMentionLabel("MISC"))
}

func TestDefaultMentionExtractor(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping mention extractor test in short mode (requires model download)")
	}

	extractor, err := DefaultMentionExtractor()
	require.NoError(t, err)

	t.Run("Finds a person", func(t *testing.T) {
		mentions, err := extractor("Wolfgang walked through Berlin at night.")
		require.NoError(t, err)
		var labels []string
		for _, m := range mentions {
			labels = append(labels, m.Label)
		}
		assert.Contains(t, labels, "PER")
	})

	t.Run("Empty text has no mentions", func(t *testing.T) {
		mentions, err := extractor("   ")
		require.NoError(t, err)
		assert.Empty(t, mentions)
	})
}
