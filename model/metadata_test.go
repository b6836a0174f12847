package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataValue(t *testing.T) {
	t.Run("Nil metadata is an empty object", func(t *testing.T) {
		var m Metadata
		value, err := m.Value()
		require.NoError(t, err)
		assert.Equal(t, []byte("{}"), value)
	})

	t.Run("Values are stored as JSON", func(t *testing.T) {
		m := Metadata{"source": "chapter-3", "weight": 2}
		value, err := m.Value()
		require.NoError(t, err)
		assert.JSONEq(t, `{"source":"chapter-3","weight":2}`, string(value.([]byte)))
	})
}

func TestMetadataScan(t *testing.T) {
	t.Run("Scan nil", func(t *testing.T) {
		m := Metadata{"stale": true}
		require.NoError(t, m.Scan(nil))
		assert.Empty(t, m)
	})

	t.Run("Scan bytes and strings", func(t *testing.T) {
		var fromBytes, fromString Metadata
		require.NoError(t, fromBytes.Scan([]byte(`{"arc":"redemption"}`)))
		require.NoError(t, fromString.Scan(`{"arc":"redemption"}`))
		assert.Equal(t, "redemption", fromBytes.String("arc"))
		assert.Equal(t, fromBytes, fromString)
	})

	t.Run("Scan invalid JSON", func(t *testing.T) {
		var m Metadata
		assert.Error(t, m.Scan([]byte(`{"arc":`)))
	})

	t.Run("Scan unsupported type", func(t *testing.T) {
		var m Metadata
		assert.Error(t, m.Scan(42))
	})
}

func TestMetadataString(t *testing.T) {
	m := Metadata{"name": "Mara", "age": 31}
	assert.Equal(t, "Mara", m.String("name"))
	assert.Equal(t, "", m.String("age"))
	assert.Equal(t, "", m.String("missing"))
	assert.Equal(t, "", Metadata(nil).String("name"))
}
