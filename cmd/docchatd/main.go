// Docchatd is a document question-answering daemon.
//
// It ingests uploaded documents into in-memory vector collections and
// answers questions about them with retrieval-augmented generation, streaming
// completions over HTTP.
//
// Configuration is loaded from an optional YAML file and environment
// variables. See internal/config for details.
//
// Usage:
//
//	# Start server with defaults
//	docchatd
//
//	# Configure via flags and environment
//	SERVER_PORT=9000 docchatd -config /etc/docchat/config.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docchat/internal/config"
	"github.com/fyrsmithlabs/docchat/internal/embeddings"
	"github.com/fyrsmithlabs/docchat/internal/generation"
	docchathttp "github.com/fyrsmithlabs/docchat/internal/http"
	"github.com/fyrsmithlabs/docchat/internal/logging"
	"github.com/fyrsmithlabs/docchat/internal/rag"
	"github.com/fyrsmithlabs/docchat/internal/registry"
	"github.com/fyrsmithlabs/docchat/internal/storage"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()
	args := flag.Args()

	// Handle subcommands
	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  docchatd           Start the docchat daemon\n")
			fmt.Fprintf(os.Stderr, "  docchatd version   Show version information\n")
			os.Exit(1)
		}
	}

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("docchatd by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the docchat server and blocks until context is cancelled.
//
// Initialization order: configuration, logger, file storage, registry,
// provider clients, orchestrator, HTTP server. Shutdown drains in-flight
// requests within the configured timeout.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() {
		_ = logging.Sync(logger)
	}()

	logger.Info("Starting docchatd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.Duration("shutdown_timeout", cfg.Server.ShutdownTimeout))

	files, err := storage.New(cfg.Uploads.Dir)
	if err != nil {
		return fmt.Errorf("initializing upload storage: %w", err)
	}

	embeddingService, err := embeddings.NewService(embeddings.Config{
		BaseURL: cfg.Embeddings.BaseURL,
		Model:   cfg.Embeddings.Model,
		APIKey:  cfg.Embeddings.APIKey.Value(),
	}, logger)
	if err != nil {
		return fmt.Errorf("initializing embedding service: %w", err)
	}

	generationService, err := generation.NewService(generation.Config{
		BaseURL: cfg.Generation.BaseURL,
		Model:   cfg.Generation.Model,
		APIKey:  cfg.Generation.APIKey.Value(),
	}, logger)
	if err != nil {
		return fmt.Errorf("initializing generation service: %w", err)
	}

	ragService, err := rag.NewService(rag.Config{
		ChunkSize:      cfg.Splitter.ChunkSize,
		ChunkOverlap:   cfg.Splitter.ChunkOverlap,
		TopK:           cfg.Retrieval.TopK,
		VectorProvider: cfg.VectorStore.Provider,
	}, registry.New(), files, embeddingService, generationService, logger)
	if err != nil {
		return fmt.Errorf("initializing rag service: %w", err)
	}

	srv, err := docchathttp.NewServer(ragService, logger, &docchathttp.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	})
	if err != nil {
		return fmt.Errorf("initializing http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}

	if err := <-errCh; err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
