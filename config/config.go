package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/siherrmann/loregraph/model"
)

// Graph backends
const (
	BackendPostgres = "postgres"
	BackendMemgraph = "memgraph"
	BackendMemory   = "memory"
)

// Duration reads "500ms" style strings from TOML
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

type LLMConfig struct {
	Provider  string `toml:"provider"`
	Model     string `toml:"model"`
	APIKey    string `toml:"api_key"`
	BaseURL   string `toml:"base_url"`
	MaxTokens int    `toml:"max_tokens"`
}

type MemgraphConfig struct {
	URI      string `toml:"uri"`
	User     string `toml:"user"`
	Password string `toml:"password"`
}

type GraphConfig struct {
	// Backend is one of postgres, memgraph or memory
	Backend string `toml:"backend"`
	// ForceInit recreates the SQL functions on startup
	ForceInit bool `toml:"force_init"`
}

type EmbeddingConfig struct {
	// Model is a huggingface model name, empty disables semantic search
	Model    string `toml:"model"`
	OnnxFile string `toml:"onnx_file"`
	ModelDir string `toml:"model_dir"`
	// Tokenizer is a tokenizer.json used for budget counting, empty uses the word count
	Tokenizer string `toml:"tokenizer"`
}

type RetrievalConfig struct {
	DocumentKey   string   `toml:"document_key"`
	DocumentsDir  string   `toml:"documents_dir"`
	MaxHops       int      `toml:"max_hops"`
	TopK          int      `toml:"top_k"`
	SourceTimeout Duration `toml:"source_timeout"`
	// Reference enables the LLM backed reference collaborator
	Reference bool `toml:"reference"`
}

type VerificationConfig struct {
	FastTimeout   Duration `toml:"fast_timeout"`
	MediumTimeout Duration `toml:"medium_timeout"`
	ResultBuffer  int      `toml:"result_buffer"`
	SlowThreshold float64  `toml:"slow_threshold"`
	// Mentions enables the NER based unknown_mention check
	Mentions bool `toml:"mentions"`
	// Semantic enables the LLM backed SLOW tier
	Semantic bool `toml:"semantic"`
}

type ReindexConfig struct {
	Concurrency int `toml:"concurrency"`
	// IndexType is hnsw or ivfflat, empty skips index creation
	IndexType string `toml:"index_type"`
	// EmbedText is "name" or "name_description"
	EmbedText string `toml:"embed_text"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
	// ResultRetention bounds how many background results are kept for polling
	ResultRetention int `toml:"result_retention"`
}

type Config struct {
	Graph        GraphConfig                    `toml:"graph"`
	Memgraph     MemgraphConfig                 `toml:"memgraph"`
	LLM          LLMConfig                      `toml:"llm"`
	Embedding    EmbeddingConfig                `toml:"embedding"`
	Retrieval    RetrievalConfig                `toml:"retrieval"`
	Verification VerificationConfig             `toml:"verification"`
	Reindex      ReindexConfig                  `toml:"reindex"`
	Server       ServerConfig                   `toml:"server"`
	Budgets      map[string]model.ContextBudget `toml:"budgets"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Graph:    GraphConfig{Backend: BackendPostgres},
		Memgraph: MemgraphConfig{URI: "bolt://localhost:7687"},
		LLM: LLMConfig{
			Provider:  "ollama",
			Model:     "llama3.1",
			BaseURL:   "http://localhost:11434",
			MaxTokens: 1024,
		},
		Embedding: EmbeddingConfig{
			Model:    "sentence-transformers/all-MiniLM-L6-v2",
			OnnxFile: "onnx/model.onnx",
			ModelDir: "./models",
		},
		Retrieval: RetrievalConfig{
			DocumentKey:   "story",
			MaxHops:       1,
			TopK:          5,
			SourceTimeout: Duration{5 * time.Second},
		},
		Verification: VerificationConfig{
			FastTimeout:   Duration{500 * time.Millisecond},
			MediumTimeout: Duration{5 * time.Second},
			ResultBuffer:  64,
			SlowThreshold: 0.7,
		},
		Reindex: ReindexConfig{Concurrency: 4, EmbedText: "name"},
		Server:  ServerConfig{Addr: ":8080", ResultRetention: 1024},
	}
}

// Load reads a TOML file over the defaults and applies environment
// overrides. An empty path only applies the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse TOML: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	overrides := map[string]*string{
		"LOREGRAPH_GRAPH_BACKEND":   &c.Graph.Backend,
		"LOREGRAPH_DOCUMENTS_DIR":   &c.Retrieval.DocumentsDir,
		"LOREGRAPH_DOCUMENT_KEY":    &c.Retrieval.DocumentKey,
		"LOREGRAPH_EMBEDDING_MODEL": &c.Embedding.Model,
		"LOREGRAPH_MODEL_DIR":       &c.Embedding.ModelDir,
		"LOREGRAPH_TOKENIZER":       &c.Embedding.Tokenizer,
		"LOREGRAPH_ADDR":            &c.Server.Addr,
		"LLM_PROVIDER":              &c.LLM.Provider,
		"LLM_MODEL":                 &c.LLM.Model,
		"LLM_API_KEY":               &c.LLM.APIKey,
		"LLM_BASE_URL":              &c.LLM.BaseURL,
		"MEMGRAPH_URI":              &c.Memgraph.URI,
		"MEMGRAPH_USER":             &c.Memgraph.User,
		"MEMGRAPH_PASSWORD":         &c.Memgraph.Password,
	}
	for key, target := range overrides {
		if value, ok := os.LookupEnv(key); ok {
			*target = value
		}
	}

	if value, ok := os.LookupEnv("LOREGRAPH_REINDEX_CONCURRENCY"); ok {
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("LOREGRAPH_REINDEX_CONCURRENCY: %w", err)
		}
		c.Reindex.Concurrency = n
	}
	return nil
}

// Validate checks the values a running system depends on
func (c *Config) Validate() error {
	switch strings.ToLower(c.Graph.Backend) {
	case BackendPostgres, BackendMemgraph, BackendMemory:
		c.Graph.Backend = strings.ToLower(c.Graph.Backend)
	default:
		return fmt.Errorf("unsupported graph backend: %s", c.Graph.Backend)
	}
	if c.Retrieval.MaxHops < 0 {
		return fmt.Errorf("retrieval.max_hops must not be negative")
	}
	if c.Verification.SlowThreshold < 0 || c.Verification.SlowThreshold > 1 {
		return fmt.Errorf("verification.slow_threshold must be within [0, 1]")
	}
	switch strings.ToLower(c.Reindex.EmbedText) {
	case "", "name", "name_description":
	default:
		return fmt.Errorf("unsupported reindex.embed_text: %s", c.Reindex.EmbedText)
	}
	if _, err := c.BudgetProfiles(); err != nil {
		return err
	}
	return nil
}

// BudgetProfiles merges the configured budgets over the built-in profiles
func (c *Config) BudgetProfiles() (model.BudgetProfiles, error) {
	profiles := model.DefaultBudgetProfiles()
	for name, budget := range c.Budgets {
		budget.Profile = name
		if err := budget.Validate(); err != nil {
			return nil, err
		}
		profiles[name] = budget
	}
	return profiles, nil
}
