package narratex

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/narratex/narratex"
	"github.com/narratex/narratex/pkg/alert"
	"github.com/narratex/narratex/pkg/config"
	"github.com/narratex/narratex/pkg/nlp"
	"github.com/narratex/narratex/pkg/similarity"
	"github.com/narratex/narratex/pkg/telemetry"
)

// buildLogger assembles the process logger: the configured text or JSON
// handler, wrapped with Parquet error tracking when a telemetry path is set.
func buildLogger(cfg *config.Config) *slog.Logger {
	handler := telemetry.NewLogHandler(os.Stderr, cfg.Log)

	if cfg.Telemetry.ParquetPath != "" {
		parquetHandler, err := telemetry.NewParquetHandler(handler, cfg.Telemetry.ParquetPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to initialize error tracking: %v\n", err)
		} else {
			handler = parquetHandler
			fmt.Println("Error tracking enabled")
		}
	}

	return slog.New(handler)
}

// buildEngine wires the conversational engine from configuration.
func buildEngine(cfg *config.Config, logger *slog.Logger) (*narratex.Engine, error) {
	defaultModel := cfg.NLP.Models["default"]
	if defaultModel.APIKey == "" {
		return nil, fmt.Errorf("no API key configured for the default model (set OPENAI_API_KEY)")
	}

	nlpConfig := nlp.Config{
		Model:       defaultModel.Model,
		Temperature: &defaultModel.Temperature,
		BaseURL:     defaultModel.BaseURL,
	}
	if defaultModel.MaxTokens > 0 {
		nlpConfig.MaxTokens = &defaultModel.MaxTokens
	}

	var oracle nlp.Client
	oracle, err := nlp.NewOpenAIClient(defaultModel.APIKey, nlpConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create NLP client: %w", err)
	}

	if cfg.CircuitBreaker.Enabled {
		var alerter alert.Alerter = &alert.NoOpAlerter{}
		if cfg.Alert.Enabled {
			alerter = alert.NewEmailAlerter(cfg.Alert)
		}
		oracle = nlp.NewCircuitBreakerClient(oracle, cfg.CircuitBreaker, alerter, logger, "oracle")
	}

	var embedder similarity.Embedder
	if embeddingModel := cfg.NLP.Models["embedding"]; embeddingModel.APIKey != "" {
		embedder = similarity.NewOpenAIEmbedder(embeddingModel.APIKey, similarity.EmbedderConfig{
			Model:   embeddingModel.Model,
			BaseURL: embeddingModel.BaseURL,
		})
	}

	engine, err := narratex.NewEngine(narratex.Config{
		KBDir:              cfg.KB.Dir,
		MaxTurns:           cfg.Session.MaxTurns,
		TopK:               cfg.Retrieval.TopK,
		SessionPersistPath: cfg.Session.PersistPath,
		CacheSize:          cfg.Retrieval.CacheSize,
		CacheTTL:           time.Duration(cfg.Retrieval.CacheTTL) * time.Second,
	}, oracle, embedder, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	fmt.Printf("Engine initialized over knowledge base: %s\n", cfg.KB.Dir)
	fmt.Printf("NLP model: %s\n", defaultModel.Model)
	if embedder != nil {
		fmt.Printf("Embedding model: %s\n", cfg.NLP.Models["embedding"].Model)
	}

	return engine, nil
}
