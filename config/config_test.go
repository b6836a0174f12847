package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
[graph]
backend = "Memgraph"

[memgraph]
uri = "bolt://graph:7687"
user = "writer"

[llm]
provider = "claude"
model = "claude-3-5-haiku-latest"

[retrieval]
max_hops = 2
source_timeout = "750ms"

[verification]
fast_timeout = "250ms"
slow_threshold = 0.6

[budgets.chat]
hard_max_tokens = 1500
recommended_tokens = 900

[budgets.scene]
hard_max_tokens = 5000
recommended_tokens = 3000
`

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "loregraph.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("File values override defaults", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, sampleConfig))
		require.NoError(t, err)

		assert.Equal(t, BackendMemgraph, cfg.Graph.Backend)
		assert.Equal(t, "bolt://graph:7687", cfg.Memgraph.URI)
		assert.Equal(t, "claude", cfg.LLM.Provider)
		assert.Equal(t, 2, cfg.Retrieval.MaxHops)
		assert.Equal(t, 750*time.Millisecond, cfg.Retrieval.SourceTimeout.Duration)
		assert.Equal(t, 250*time.Millisecond, cfg.Verification.FastTimeout.Duration)
		assert.Equal(t, 5*time.Second, cfg.Verification.MediumTimeout.Duration, "Expected unset values to keep their default")
		assert.Equal(t, "story", cfg.Retrieval.DocumentKey)
	})

	t.Run("Budgets merge over the built-in profiles", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, sampleConfig))
		require.NoError(t, err)

		profiles, err := cfg.BudgetProfiles()
		require.NoError(t, err)
		chat, err := profiles.Lookup("chat")
		require.NoError(t, err)
		assert.Equal(t, 1500, chat.HardMaxTokens)
		scene, err := profiles.Lookup("scene")
		require.NoError(t, err)
		assert.Equal(t, "scene", scene.Profile)
		_, err = profiles.Lookup("analysis")
		assert.NoError(t, err)
	})

	t.Run("Environment overrides the file", func(t *testing.T) {
		t.Setenv("LLM_PROVIDER", "openai")
		t.Setenv("LLM_API_KEY", "sk-test")
		t.Setenv("LOREGRAPH_GRAPH_BACKEND", "memory")
		t.Setenv("LOREGRAPH_REINDEX_CONCURRENCY", "9")

		cfg, err := Load(writeConfig(t, sampleConfig))
		require.NoError(t, err)
		assert.Equal(t, "openai", cfg.LLM.Provider)
		assert.Equal(t, "sk-test", cfg.LLM.APIKey)
		assert.Equal(t, BackendMemory, cfg.Graph.Backend)
		assert.Equal(t, 9, cfg.Reindex.Concurrency)
	})

	t.Run("No file uses defaults", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, Default().Server.Addr, cfg.Server.Addr)
	})

	t.Run("Invalid values", func(t *testing.T) {
		_, err := Load(writeConfig(t, "[graph]\nbackend = \"sqlite\"\n"))
		assert.ErrorContains(t, err, "unsupported graph backend")

		_, err = Load(writeConfig(t, "[budgets.broken]\nhard_max_tokens = 0\n"))
		assert.Error(t, err)

		_, err = Load(writeConfig(t, "[retrieval]\nsource_timeout = \"soon\"\n"))
		assert.Error(t, err)

		_, err = Load(writeConfig(t, "[reindex]\nembed_text = \"summary\"\n"))
		assert.ErrorContains(t, err, "embed_text")

		_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
		assert.ErrorContains(t, err, "failed to read config file")
	})

	t.Run("Invalid concurrency override", func(t *testing.T) {
		t.Setenv("LOREGRAPH_REINDEX_CONCURRENCY", "many")
		_, err := Load("")
		assert.Error(t, err)
	})
}
