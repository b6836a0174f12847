package loregraph

import (
	"context"
	"io"
	"log/slog"

	"github.com/siherrmann/loregraph/config"
	"github.com/siherrmann/loregraph/core/assembler"
	"github.com/siherrmann/loregraph/core/classifier"
	"github.com/siherrmann/loregraph/core/pipeline"
	"github.com/siherrmann/loregraph/core/sources"
	"github.com/siherrmann/loregraph/core/verification"
	"github.com/siherrmann/loregraph/database"
	"github.com/siherrmann/loregraph/helper"
	"github.com/siherrmann/loregraph/llm"
	loresql "github.com/siherrmann/loregraph/sql"
)

// NewLoregraph builds every component from cfg. Options replace single
// collaborators; anything not configured stays nil and the matching source
// or check reports itself unavailable.
func NewLoregraph(ctx context.Context, cfg *config.Config, opts ...Option) (*Loregraph, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, helper.NewError("validate config", err)
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = defaultLogger()
	}

	budgets, err := cfg.BudgetProfiles()
	if err != nil {
		return nil, helper.NewError("budget profiles", err)
	}

	g := &Loregraph{
		Budgets:   budgets,
		maxHops:   cfg.Retrieval.MaxHops,
		indexType: cfg.Reindex.IndexType,
		log:       o.logger,
	}

	// Embedder
	g.embedder = o.embedder
	if g.embedder == nil && cfg.Embedding.Model != "" {
		if cfg.Embedding.ModelDir != "" {
			helper.ModelDir = cfg.Embedding.ModelDir
		}
		g.embedder, err = pipeline.NewHugotEmbedder(cfg.Embedding.Model, cfg.Embedding.OnnxFile)
		if err != nil {
			return nil, helper.NewError("create embedder", err)
		}
		g.onClose(g.embedder.Close)
	}

	// Graph store
	if o.graph != nil {
		g.Graph = o.graph
	} else if err := g.openGraph(ctx, cfg); err != nil {
		g.Close()
		return nil, err
	}

	// Documents
	documents := o.documents
	if documents == nil {
		if cfg.Retrieval.DocumentsDir != "" {
			documents = sources.NewYAMLDocuments(cfg.Retrieval.DocumentsDir)
		} else if g.Sections != nil {
			documents = sources.NewPostgresDocuments(g.Sections)
		}
	}

	// Model backed collaborators
	client := o.llm
	if client == nil && (cfg.Retrieval.Reference || cfg.Verification.Semantic) {
		client, err = llm.NewClient(ctx, cfg.LLM)
		if err != nil {
			g.Close()
			return nil, helper.NewError("create llm client", err)
		}
		if closer, ok := client.(io.Closer); ok {
			g.onClose(closer.Close)
		}
	}

	reference := o.reference
	if reference == nil && cfg.Retrieval.Reference && client != nil {
		reference = llm.NewReferenceAnswerer(client)
	}
	analyzer := o.analyzer
	if analyzer == nil && cfg.Verification.Semantic && client != nil {
		analyzer = llm.NewSemanticAnalyzer(client)
	}

	extract := o.extract
	if extract == nil && cfg.Verification.Mentions {
		extract, err = pipeline.DefaultMentionExtractor()
		if err != nil {
			g.Close()
			return nil, helper.NewError("create mention extractor", err)
		}
	}

	// Tokenizer
	tokenizer := o.tokenizer
	if tokenizer == nil && cfg.Embedding.Tokenizer != "" {
		hf, err := assembler.NewHFTokenizer(cfg.Embedding.Tokenizer)
		if err != nil {
			g.Close()
			return nil, helper.NewError("load tokenizer", err)
		}
		tokenizer = hf
	}

	g.Classifier = classifier.NewClassifier()
	g.Retriever = sources.NewRetriever(g.Graph, documents, reference, sources.RetrieverConfig{
		DocumentKey:   cfg.Retrieval.DocumentKey,
		MaxHops:       cfg.Retrieval.MaxHops,
		TopK:          cfg.Retrieval.TopK,
		SourceTimeout: cfg.Retrieval.SourceTimeout.Duration,
	}, g.log)
	g.Assembler = assembler.NewAssembler(tokenizer, g.log)
	g.Verifier = verification.NewService(verification.Config{
		FastTimeout:   cfg.Verification.FastTimeout.Duration,
		MediumTimeout: cfg.Verification.MediumTimeout.Duration,
		ResultBuffer:  cfg.Verification.ResultBuffer,
		SlowThreshold: cfg.Verification.SlowThreshold,
	}, analyzer, extract, g.log)
	if g.embedder != nil {
		embedText, err := pipeline.EmbedTextFor(cfg.Reindex.EmbedText)
		if err != nil {
			return nil, helper.NewError("reindexer", err)
		}
		g.Reindexer = pipeline.NewReindexer(g.Graph, g.embedder, cfg.Reindex.Concurrency, g.log).WithEmbedText(embedText)
	}

	g.log.Info("Initialized loregraph",
		slog.String("backend", cfg.Graph.Backend),
		slog.Bool("semantic_search", g.embedder != nil),
		slog.Bool("documents", documents != nil),
		slog.Bool("reference", reference != nil),
		slog.Bool("slow_tier", analyzer != nil),
	)
	return g, nil
}

func (g *Loregraph) openGraph(ctx context.Context, cfg *config.Config) error {
	switch cfg.Graph.Backend {
	case config.BackendMemory:
		g.Memory = sources.NewMemoryGraph(g.embedder)
		g.Graph = g.Memory

	case config.BackendMemgraph:
		driver, err := sources.NewMemgraphDriver(ctx, cfg.Memgraph.URI, cfg.Memgraph.User, cfg.Memgraph.Password)
		if err != nil {
			return helper.NewError("connect memgraph", err)
		}
		g.onClose(func() error { return driver.Close(context.Background()) })

		memgraph := sources.NewMemgraphGraph(driver, g.embedder, g.log)
		memgraph.BuildIndices(ctx)
		g.Graph = memgraph

	default:
		dbConfig, err := helper.NewDatabaseConfiguration()
		if err != nil {
			return err
		}
		g.DB = helper.NewDatabase("loregraph", dbConfig, g.log)
		g.onClose(g.DB.Instance.Close)

		if err := loresql.Init(g.DB.Instance); err != nil {
			return helper.NewError("initialize database extensions", err)
		}

		force := cfg.Graph.ForceInit
		if g.Entities, err = database.NewEntitiesDBHandler(g.DB, force); err != nil {
			return helper.NewError("create entities handler", err)
		}
		if g.Relationships, err = database.NewRelationshipsDBHandler(g.DB, force); err != nil {
			return helper.NewError("create relationships handler", err)
		}
		if g.Sections, err = database.NewSectionsDBHandler(g.DB, force); err != nil {
			return helper.NewError("create sections handler", err)
		}
		g.Graph = sources.NewPostgresGraph(g.Entities, g.Relationships, g.embedder)
	}
	return nil
}
