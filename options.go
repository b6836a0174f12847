package loregraph

import (
	"log/slog"

	"github.com/siherrmann/loregraph/core/assembler"
	"github.com/siherrmann/loregraph/core/pipeline"
	"github.com/siherrmann/loregraph/core/sources"
	"github.com/siherrmann/loregraph/core/verification"
	"github.com/siherrmann/loregraph/llm"
)

type options struct {
	logger    *slog.Logger
	graph     Store
	documents sources.DocumentStore
	reference sources.ReferenceCollaborator
	analyzer  verification.SemanticAnalyzer
	extract   pipeline.MentionExtractFunc
	embedder  *pipeline.Embedder
	tokenizer assembler.Tokenizer
	llm       llm.Client
}

// Option overrides a collaborator that would otherwise be built from config
type Option func(*options)

// WithLogger sets the logger of every component
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithGraph uses store instead of the configured graph backend
func WithGraph(store Store) Option {
	return func(o *options) { o.graph = store }
}

// WithDocuments sets the structured document store
func WithDocuments(documents sources.DocumentStore) Option {
	return func(o *options) { o.documents = documents }
}

// WithReference sets the reference collaborator
func WithReference(reference sources.ReferenceCollaborator) Option {
	return func(o *options) { o.reference = reference }
}

// WithAnalyzer sets the SLOW tier analyzer
func WithAnalyzer(analyzer verification.SemanticAnalyzer) Option {
	return func(o *options) { o.analyzer = analyzer }
}

// WithMentionExtractor sets the extractor of the unknown mention check
func WithMentionExtractor(extract pipeline.MentionExtractFunc) Option {
	return func(o *options) { o.extract = extract }
}

// WithEmbedder skips loading the configured embedding model
func WithEmbedder(embedder *pipeline.Embedder) Option {
	return func(o *options) { o.embedder = embedder }
}

// WithTokenizer sets the tokenizer budgets are measured with
func WithTokenizer(tokenizer assembler.Tokenizer) Option {
	return func(o *options) { o.tokenizer = tokenizer }
}

// WithLLM sets the model client used for reference answers and SLOW analysis
func WithLLM(client llm.Client) Option {
	return func(o *options) { o.llm = client }
}
