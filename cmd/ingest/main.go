// Command ingest indexes the movie catalog: it reads CSV or JSON drops from
// a data directory, embeds each movie, and stores vectors in Qdrant plus
// nodes in Neo4j. With -nats it also consumes live ingest messages.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/CinemateAI/cinemate-mvp/engine/catalog"
	"github.com/CinemateAI/cinemate-mvp/engine/domain"
	"github.com/CinemateAI/cinemate-mvp/engine/graph"
	"github.com/CinemateAI/cinemate-mvp/engine/ingest"
	"github.com/CinemateAI/cinemate-mvp/engine/semantic"
	"github.com/CinemateAI/cinemate-mvp/pkg/metrics"
	"github.com/CinemateAI/cinemate-mvp/pkg/ollama"
)

const vectorDims = 768 // nomic-embed-text

var met = metrics.New()

var (
	mMoviesIngested = met.Counter("cinemate_ingest_movies_total", "Movies indexed")
	mFilesProcessed = met.Counter("cinemate_ingest_files_total", "Catalog files processed")
	mErrors         = met.Counter("cinemate_ingest_errors_total", "Ingestion errors")
	mBatchDur       = met.Histogram("cinemate_ingest_batch_duration_seconds", "Per-file pipeline time", nil)
)

func main() {
	var (
		dataDir     = flag.String("dir", "", "directory of movie CSV/JSON files to index")
		ollamaURL   = flag.String("ollama", "http://localhost:11434", "Ollama base URL")
		ollamaModel = flag.String("model", "nomic-embed-text", "Ollama embedding model")
		qdrantAddr  = flag.String("qdrant", "localhost:6334", "Qdrant gRPC address")
		collection  = flag.String("collection", "movies", "Qdrant collection name")
		neo4jURL    = flag.String("neo4j", "", "Neo4j bolt URL (empty disables graph writes)")
		neo4jUser   = flag.String("neo4j-user", "neo4j", "Neo4j username")
		neo4jPass   = flag.String("neo4j-pass", "password", "Neo4j password")
		natsURL     = flag.String("nats", "", "NATS URL (empty disables the consumer)")
		workers     = flag.Int("workers", 4, "concurrent embedding calls")
		metricsPort = flag.Int("metrics-port", 9091, "metrics side port")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", met.Handler())
		if err := http.ListenAndServe(fmt.Sprintf(":%d", *metricsPort), mux); err != nil {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	vs, err := semantic.New(*qdrantAddr, *collection)
	if err != nil {
		logger.Error("qdrant connect failed", "error", err)
		os.Exit(1)
	}
	defer vs.Close()
	if err := vs.EnsureCollection(ctx, vectorDims); err != nil {
		logger.Error("qdrant ensure collection failed", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to qdrant", "collection", *collection, "dims", vectorDims)

	embedder := ollama.NewEmbedClient(*ollamaURL, *ollamaModel)

	var graphStore ingest.GraphWriter
	if *neo4jURL != "" {
		driver, err := neo4j.NewDriverWithContext(*neo4jURL, neo4j.BasicAuth(*neo4jUser, *neo4jPass, ""))
		if err != nil {
			logger.Error("neo4j connect failed", "error", err)
			os.Exit(1)
		}
		defer driver.Close(ctx)
		if err := driver.VerifyConnectivity(ctx); err != nil {
			logger.Error("neo4j verify failed", "error", err)
			os.Exit(1)
		}
		graphStore = graph.New(driver, logger)
		logger.Info("connected to neo4j")
	}

	pipeline := ingest.New(embedder, vs, graphStore, ingest.Options{EmbedWorkers: *workers}, logger)

	if *dataDir != "" {
		if err := indexDirectory(ctx, pipeline, *dataDir, logger); err != nil {
			logger.Error("directory ingest failed", "error", err)
			os.Exit(1)
		}
	}

	if *natsURL != "" {
		nc, err := nats.Connect(*natsURL, nats.Name("cinemate-ingest"))
		if err != nil {
			logger.Error("nats connect failed", "error", err)
			os.Exit(1)
		}
		defer nc.Drain()

		sub, err := ingest.NewConsumer(nc, pipeline, logger).Start()
		if err != nil {
			logger.Error("nats subscribe failed", "error", err)
			os.Exit(1)
		}
		defer sub.Unsubscribe()

		logger.Info("consuming ingest messages", "subject", ingest.SubjectIngest)
		<-ctx.Done()
	}
}

// indexDirectory runs every movie file in dir through the pipeline.
func indexDirectory(ctx context.Context, pipeline *ingest.Pipeline, dir string, logger *slog.Logger) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dir: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		movies, err := loadMovieFile(path)
		if err != nil {
			logger.Warn("skipping unreadable file", "file", e.Name(), "error", err)
			mErrors.Inc()
			continue
		}
		if movies == nil {
			continue // unsupported extension
		}

		start := time.Now()
		stored, err := pipeline.Run(ctx, movies)
		if err != nil {
			logger.Error("file ingest failed", "file", e.Name(), "error", err)
			mErrors.Inc()
			continue
		}
		mBatchDur.Since(start)
		mFilesProcessed.Inc()
		mMoviesIngested.Add(int64(stored))
		logger.Info("file indexed", "file", e.Name(), "movies", stored)
	}
	return nil
}

// loadMovieFile parses a movies CSV or a JSON array of movies. Returns nil
// for extensions it does not handle.
func loadMovieFile(path string) ([]domain.Movie, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return catalog.ReadCSV(f)
	case ".json":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var movies []domain.Movie
		if err := json.Unmarshal(data, &movies); err != nil {
			return nil, err
		}
		return movies, nil
	default:
		return nil, nil
	}
}
