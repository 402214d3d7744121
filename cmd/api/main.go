// Package main implements the Cinemate API server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/CinemateAI/cinemate-mvp/engine/chat"
	"github.com/CinemateAI/cinemate-mvp/engine/graph"
	"github.com/CinemateAI/cinemate-mvp/engine/retrieve"
	"github.com/CinemateAI/cinemate-mvp/engine/semantic"
	"github.com/CinemateAI/cinemate-mvp/pkg/metrics"
	"github.com/CinemateAI/cinemate-mvp/pkg/mid"
	"github.com/CinemateAI/cinemate-mvp/pkg/ollama"
)

// Config holds all environment-based configuration.
type Config struct {
	Port       string
	OllamaURL  string
	EmbedModel string
	ChatModel  string
	QdrantURL  string
	Collection string
	Neo4jURL   string
	Neo4jUser  string
	Neo4jPass  string
	UseGraph   bool
	CORSOrigin string
}

func loadConfig() Config {
	return Config{
		Port:       envOr("PORT", "8080"),
		OllamaURL:  envOr("OLLAMA_URL", "http://localhost:11434"),
		EmbedModel: envOr("EMBED_MODEL", "nomic-embed-text"),
		ChatModel:  envOr("CHAT_MODEL", "llama3.1"),
		QdrantURL:  envOr("QDRANT_URL", "localhost:6334"),
		Collection: envOr("QDRANT_COLLECTION", "movies"),
		Neo4jURL:   envOr("NEO4J_URL", "neo4j://localhost:7687"),
		Neo4jUser:  envOr("NEO4J_USER", "neo4j"),
		Neo4jPass:  envOr("NEO4J_PASS", "password"),
		UseGraph:   os.Getenv("USE_GRAPH") == "true",
		CORSOrigin: envOr("CORS_ORIGIN", "*"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Connect to Qdrant ---
	vectorStore, err := semantic.New(cfg.QdrantURL, cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer vectorStore.Close()

	// --- Ollama adapters ---
	embedder := ollama.NewEmbedClient(cfg.OllamaURL, cfg.EmbedModel)
	llm := ollama.NewChatClient(cfg.OllamaURL, cfg.ChatModel)

	// --- Retriever ---
	retriever := retrieve.New(embedder, vectorStore, retrieve.DefaultOptions(), logger)

	// --- Optional graph enrichment ---
	var enricher chat.Enricher
	chatOpts := chat.DefaultOptions()
	if cfg.UseGraph {
		driver, err := neo4j.NewDriverWithContext(cfg.Neo4jURL, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
		if err != nil {
			return fmt.Errorf("neo4j driver: %w", err)
		}
		defer driver.Close(ctx)
		enricher = &graphEnricher{store: graph.New(driver, logger)}
		chatOpts.RelatedTitles = true
	}

	// --- Orchestrator ---
	orchestrator := chat.New(llm, retriever, enricher, chatOpts, logger)

	// --- HTTP server ---
	reg := metrics.New()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("POST /api/search", handleSearch(retriever, reg, logger))
	mux.HandleFunc("POST /api/chat_search", handleChatSearch(orchestrator, reg, logger))
	mux.Handle("GET /metrics", reg.Handler())

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.CORS(cfg.CORSOrigin),
		mid.OTel("cinemate-api"),
		mid.MaxBody(1<<20),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// graphEnricher adapts the graph store to the chat.Enricher interface.
type graphEnricher struct {
	store *graph.Store
}

func (g *graphEnricher) RelatedTitles(ctx context.Context, movieIDs []string, limit int) ([]string, error) {
	return g.store.RelatedByGenre(ctx, movieIDs, limit)
}
