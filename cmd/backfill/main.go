// Command backfill restores the single-embedder-version invariant after a
// model upgrade: it scrolls the collection for points embedded with any
// other model, re-embeds their documents with the configured one, and
// upserts them in place.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	pb "github.com/qdrant/go-client/qdrant"

	"github.com/CinemateAI/cinemate-mvp/engine/semantic"
	"github.com/CinemateAI/cinemate-mvp/pkg/ollama"
)

func main() {
	var (
		ollamaURL   = flag.String("ollama", "http://localhost:11434", "Ollama base URL")
		ollamaModel = flag.String("model", "nomic-embed-text", "target embedding model")
		qdrantAddr  = flag.String("qdrant", "localhost:6334", "Qdrant gRPC address")
		collection  = flag.String("collection", "movies", "Qdrant collection name")
		pageSize    = flag.Uint("page", 64, "scroll page size")
		dryRun      = flag.Bool("dry-run", false, "count stale points without re-embedding")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	vs, err := semantic.New(*qdrantAddr, *collection)
	if err != nil {
		logger.Error("qdrant connect failed", "error", err)
		os.Exit(1)
	}
	defer vs.Close()

	embedder := ollama.NewEmbedClient(*ollamaURL, *ollamaModel)
	version := embedder.Version()
	logger.Info("backfill starting", "collection", *collection, "target_embedder", version)

	var (
		offset    *pb.PointId
		reindexed int
		stale     int
	)
	for {
		hits, next, err := vs.ScrollNotEmbedder(ctx, version, uint32(*pageSize), offset)
		if err != nil {
			logger.Error("scroll failed", "error", err)
			os.Exit(1)
		}
		stale += len(hits)

		if !*dryRun && len(hits) > 0 {
			points := make([]semantic.MoviePoint, 0, len(hits))
			for _, h := range hits {
				vec, err := embedder.Embed(ctx, h.Movie.Document())
				if err != nil {
					logger.Error("re-embed failed", "movie", h.Movie.ID, "error", err)
					os.Exit(1)
				}
				points = append(points, semantic.MoviePoint{Movie: h.Movie, Vector: vec, Embedder: version})
			}
			if err := vs.Upsert(ctx, points); err != nil {
				logger.Error("upsert failed", "error", err)
				os.Exit(1)
			}
			reindexed += len(points)
			logger.Info("page reindexed", "points", len(points), "total", reindexed)
		}

		if next == nil {
			break
		}
		offset = next

		select {
		case <-ctx.Done():
			logger.Info("interrupted", "reindexed", reindexed)
			return
		default:
		}
	}

	if *dryRun {
		logger.Info("dry run done", "stale_points", stale)
		return
	}
	logger.Info("backfill done", "reindexed", reindexed)
}
