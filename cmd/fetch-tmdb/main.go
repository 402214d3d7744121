// Command fetch-tmdb pulls popular movies from the TMDB discover API and
// writes the movies CSV consumed by cmd/ingest.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/CinemateAI/cinemate-mvp/engine/catalog"
)

func main() {
	var (
		apiKey = flag.String("api-key", os.Getenv("TMDB_API_KEY"), "TMDB API key (defaults to TMDB_API_KEY)")
		pages  = flag.Int("pages", 59, "discover pages to fetch, ~17 movies each")
		out    = flag.String("out", "movies_with_genres.csv", "output CSV path")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if *apiKey == "" {
		logger.Error("TMDB API key required, set -api-key or TMDB_API_KEY")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client := catalog.NewTMDBClient(*apiKey)
	movies, err := client.FetchMovies(ctx, *pages)
	if err != nil {
		logger.Error("tmdb fetch failed", "error", err)
		os.Exit(1)
	}
	logger.Info("fetched movies", "count", len(movies), "pages", *pages)

	f, err := os.Create(*out)
	if err != nil {
		logger.Error("create output failed", "error", err)
		os.Exit(1)
	}
	defer f.Close()

	if err := catalog.WriteCSV(f, movies); err != nil {
		logger.Error("write csv failed", "error", err)
		os.Exit(1)
	}
	logger.Info("catalog written", "path", *out, "movies", len(movies))
}
