package narratex

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/narratex/narratex/pkg/config"
	"github.com/narratex/narratex/pkg/server"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the Narratex HTTP server",
	Long: `Start the Narratex HTTP server to provide REST API access to the
conversational retrieval engine.

The server provides endpoints for:
- Asking questions over the knowledge base
- Managing conversation sessions
- Reading knowledge base metadata
- Health checks

Configuration can be provided through config files, environment variables, or command-line flags.`,
	RunE: runServer,
}

var (
	serverHost string
	serverPort int
	serverMode string
)

func init() {
	rootCmd.AddCommand(serverCmd)

	// Server-specific flags
	serverCmd.Flags().StringVar(&serverHost, "host", "localhost", "Server host")
	serverCmd.Flags().IntVar(&serverPort, "port", 8080, "Server port")
	serverCmd.Flags().StringVar(&serverMode, "mode", "debug", "Server mode (debug, release, test)")

	// Knowledge base flags
	serverCmd.Flags().String("kb-dir", "./kb", "Knowledge base snapshot directory")

	// Session flags
	serverCmd.Flags().Int("session-max-turns", 10, "Maximum turn pairs kept per session")
	serverCmd.Flags().String("session-path", "", "Path for durable session storage (empty keeps sessions in memory)")

	// NLP flags
	serverCmd.Flags().String("nlp-model", "gpt-4o-mini", "NLP model")
	serverCmd.Flags().String("nlp-api-key", "", "NLP API key")
	serverCmd.Flags().String("nlp-base-url", "", "NLP base URL")
	serverCmd.Flags().Float32("nlp-temperature", 0.2, "NLP temperature")
	serverCmd.Flags().Int("nlp-max-tokens", 1024, "NLP max tokens")

	// Embedding flags
	serverCmd.Flags().String("embedding-model", "text-embedding-3-small", "Embedding model")
	serverCmd.Flags().String("embedding-api-key", "", "Embedding API key")
	serverCmd.Flags().String("embedding-base-url", "", "Embedding base URL")

	// Retrieval flags
	serverCmd.Flags().Int("top-k", 10, "Default number of retrieval results per question")

	// Telemetry flags
	serverCmd.Flags().String("telemetry-parquet-path", "", "Path to directory for error telemetry")
}

func runServer(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Override config with command-line flags
	overrideConfigWithFlags(cmd, cfg)

	// Validate configuration
	if err := validateServerConfig(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Initialize engine
	fmt.Println("Initializing Narratex...")
	logger := buildLogger(cfg)
	engine, err := buildEngine(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize Narratex: %w", err)
	}
	defer engine.Close()

	// Create and setup server
	srv := server.New(cfg, engine)
	srv.Setup()

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in a goroutine
	serverErrChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			serverErrChan <- err
		}
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		fmt.Printf("\nReceived signal: %v\n", sig)

		// Create shutdown context with timeout
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		// Shutdown server
		if err := srv.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}

		fmt.Println("Server stopped gracefully")
		return nil
	}
}

func overrideConfigWithFlags(cmd *cobra.Command, cfg *config.Config) {
	// Server flags
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = serverHost
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = serverPort
	}
	if cmd.Flags().Changed("mode") {
		cfg.Server.Mode = serverMode
	}

	// Knowledge base flags
	if cmd.Flags().Changed("kb-dir") {
		cfg.KB.Dir, _ = cmd.Flags().GetString("kb-dir")
	}

	// Session flags
	if cmd.Flags().Changed("session-max-turns") {
		cfg.Session.MaxTurns, _ = cmd.Flags().GetInt("session-max-turns")
	}
	if cmd.Flags().Changed("session-path") {
		cfg.Session.PersistPath, _ = cmd.Flags().GetString("session-path")
	}

	// NLP flags
	if cmd.Flags().Changed("nlp-model") {
		m := cfg.NLP.Models["default"]
		m.Model, _ = cmd.Flags().GetString("nlp-model")
		cfg.NLP.Models["default"] = m
	}
	if cmd.Flags().Changed("nlp-api-key") {
		m := cfg.NLP.Models["default"]
		m.APIKey, _ = cmd.Flags().GetString("nlp-api-key")
		cfg.NLP.Models["default"] = m
	}
	if cmd.Flags().Changed("nlp-base-url") {
		m := cfg.NLP.Models["default"]
		m.BaseURL, _ = cmd.Flags().GetString("nlp-base-url")
		cfg.NLP.Models["default"] = m
	}
	if cmd.Flags().Changed("nlp-temperature") {
		m := cfg.NLP.Models["default"]
		m.Temperature, _ = cmd.Flags().GetFloat32("nlp-temperature")
		cfg.NLP.Models["default"] = m
	}
	if cmd.Flags().Changed("nlp-max-tokens") {
		m := cfg.NLP.Models["default"]
		m.MaxTokens, _ = cmd.Flags().GetInt("nlp-max-tokens")
		cfg.NLP.Models["default"] = m
	}

	// Embedding flags
	if cmd.Flags().Changed("embedding-model") {
		m := cfg.NLP.Models["embedding"]
		m.Model, _ = cmd.Flags().GetString("embedding-model")
		cfg.NLP.Models["embedding"] = m
	}
	if cmd.Flags().Changed("embedding-api-key") {
		m := cfg.NLP.Models["embedding"]
		m.APIKey, _ = cmd.Flags().GetString("embedding-api-key")
		cfg.NLP.Models["embedding"] = m
	}
	if cmd.Flags().Changed("embedding-base-url") {
		m := cfg.NLP.Models["embedding"]
		m.BaseURL, _ = cmd.Flags().GetString("embedding-base-url")
		cfg.NLP.Models["embedding"] = m
	}

	// Retrieval flags
	if cmd.Flags().Changed("top-k") {
		cfg.Retrieval.TopK, _ = cmd.Flags().GetInt("top-k")
	}

	// Telemetry flags
	if cmd.Flags().Changed("telemetry-parquet-path") {
		cfg.Telemetry.ParquetPath, _ = cmd.Flags().GetString("telemetry-parquet-path")
	}
}

func validateServerConfig(cfg *config.Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", cfg.Server.Port)
	}

	if cfg.KB.Dir == "" {
		return fmt.Errorf("knowledge base directory is required")
	}
	return nil
}
