package graphrag

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	graphrag "github.com/soundprediction/graphrag"
	"github.com/soundprediction/graphrag/pkg/chunker"
	"github.com/soundprediction/graphrag/pkg/config"
	"github.com/soundprediction/graphrag/pkg/embedder"
	"github.com/soundprediction/graphrag/pkg/logger"
	"github.com/soundprediction/graphrag/pkg/nlp"
	"github.com/soundprediction/graphrag/pkg/semantic"
	"github.com/soundprediction/graphrag/pkg/server"
	"github.com/soundprediction/graphrag/pkg/store"
	"github.com/soundprediction/graphrag/pkg/vector"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the GraphRAG HTTP server",
	RunE:  runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().String("host", "", "host to bind (overrides config)")
	serverCmd.Flags().Int("port", 0, "port to bind (overrides config)")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if host, _ := cmd.Flags().GetString("host"); host != "" {
		cfg.Server.Host = host
	}
	if port, _ := cmd.Flags().GetInt("port"); port > 0 {
		cfg.Server.Port = port
	}
	if err := validateServerConfig(cfg); err != nil {
		return err
	}

	log := logger.NewDefaultLogger(logger.ParseLevel(cfg.Log.Level))
	slog.SetDefault(log)

	engine, cleanup, err := initializeEngine(cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	srv := server.New(cfg, engine, log)
	srv.Setup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

func validateServerConfig(cfg *config.Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", cfg.Server.Port)
	}
	if cfg.Store.Driver != "memory" && cfg.Store.URI == "" {
		return fmt.Errorf("store URI is required for driver %q", cfg.Store.Driver)
	}
	return nil
}

func initializeEngine(cfg *config.Config, log *slog.Logger) (*graphrag.Engine, func(), error) {
	graphStore, err := initializeStore(cfg)
	if err != nil {
		return nil, nil, err
	}

	embedderClient, err := initializeEmbedder(cfg)
	if err != nil {
		return nil, nil, err
	}

	memory, err := initializeVectorMemory(cfg, embedderClient)
	if err != nil {
		return nil, nil, err
	}

	llmClient, err := initializeLLM(cfg, log)
	if err != nil {
		return nil, nil, err
	}

	engine := graphrag.NewEngine(graphStore, memory, semantic.NewLLMClient(llmClient),
		graphrag.WithLogger(log),
		graphrag.WithChunker(chunker.New(cfg.Chunker.LinesPerSplit, cfg.Chunker.TokensPerParagraph)),
		graphrag.WithSearchConfig(&graphrag.SearchConfig{
			SearchLimit:        cfg.Search.Limit,
			SearchMinRelevance: cfg.Search.MinRelevance,
			NodeDepth:          cfg.Search.NodeDepth,
			MaxNodes:           cfg.Search.MaxNodes,
			MaxTokens:          cfg.Search.MaxTokens,
		}),
	)

	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := engine.Close(ctx); err != nil {
			log.Warn("closing engine", "error", err)
		}
		llmClient.Close()
	}
	return engine, cleanup, nil
}

func initializeStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Driver {
	case "memory":
		return store.NewMemoryStore(), nil
	case "neo4j":
		s, err := store.NewNeo4jStore(cfg.Store.URI, cfg.Store.Username, cfg.Store.Password, cfg.Store.Database)
		if err != nil {
			return nil, fmt.Errorf("create neo4j store: %w", err)
		}
		return s, nil
	case "postgres":
		s, err := store.NewPostgresStore(cfg.Store.URI, nil)
		if err != nil {
			return nil, fmt.Errorf("create postgres store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initializeEmbedder(cfg *config.Config) (embedder.Client, error) {
	embedderConfig := embedder.Config{
		Provider:   cfg.Embedding.Provider,
		Model:      cfg.Embedding.Model,
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Dimensions: cfg.Embedding.Dimensions,
		BatchSize:  cfg.Embedding.BatchSize,
	}
	switch cfg.Embedding.Provider {
	case "openai":
		if embedderConfig.APIKey == "" {
			return nil, fmt.Errorf("embedding API key is required (set OPENAI_API_KEY)")
		}
		return embedder.NewOpenAIClient(embedderConfig), nil
	case "embedeverything":
		client, err := embedder.NewEmbedEverythingClient(embedderConfig)
		if err != nil {
			return nil, fmt.Errorf("create embedder: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Embedding.Provider)
	}
}

func initializeVectorMemory(cfg *config.Config, emb embedder.Client) (vector.Memory, error) {
	switch cfg.Vector.Driver {
	case "badger":
		memory, err := vector.NewBadgerMemory(cfg.Vector.Path, emb)
		if err != nil {
			return nil, fmt.Errorf("create badger vector memory: %w", err)
		}
		return memory, nil
	case "qdrant":
		memory, err := vector.NewQdrantMemory(vector.QdrantConfig{
			URL:              cfg.Vector.URL,
			CollectionPrefix: cfg.Vector.CollectionPrefix,
			VectorDim:        cfg.Vector.Dimensions,
			Timeout:          cfg.Vector.Timeout,
		}, emb)
		if err != nil {
			return nil, fmt.Errorf("create qdrant vector memory: %w", err)
		}
		return memory, nil
	default:
		return nil, fmt.Errorf("unsupported vector driver: %s", cfg.Vector.Driver)
	}
}

func initializeLLM(cfg *config.Config, log *slog.Logger) (nlp.Client, error) {
	if cfg.LLM.APIKey == "" {
		return nil, fmt.Errorf("LLM API key is required (set OPENAI_API_KEY)")
	}

	var client nlp.Client = nlp.NewOpenAIClient(nlp.Config{
		Provider:    cfg.LLM.Provider,
		Model:       cfg.LLM.Model,
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Temperature: cfg.LLM.Temperature,
	})

	retryConfig := nlp.DefaultRetryConfig()
	if cfg.LLM.MaxRetries > 0 {
		retryConfig.MaxRetries = cfg.LLM.MaxRetries
	}
	client = nlp.NewRetryClient(client, retryConfig)

	if cfg.CircuitBreaker.Enabled {
		client = nlp.NewCircuitBreakerClient(client, nlp.BreakerConfig{
			Enabled:          true,
			MaxRequests:      cfg.CircuitBreaker.MaxRequests,
			Interval:         time.Duration(cfg.CircuitBreaker.Interval) * time.Second,
			Timeout:          time.Duration(cfg.CircuitBreaker.Timeout) * time.Second,
			ReadyToTripRatio: cfg.CircuitBreaker.ReadyToTripRatio,
		}, log, "llm")
	}
	return client, nil
}
