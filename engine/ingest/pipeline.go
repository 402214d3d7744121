// Package ingest builds the catalog indexing pipeline: validate movies,
// render their embedding documents, embed with bounded parallelism, and
// store vectors in Qdrant plus nodes in the knowledge graph.
package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/CinemateAI/cinemate-mvp/engine/domain"
	"github.com/CinemateAI/cinemate-mvp/engine/semantic"
	"github.com/CinemateAI/cinemate-mvp/pkg/fn"
)

// Embedder turns text into a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Version() string
}

// Index receives embedded movie points.
type Index interface {
	Upsert(ctx context.Context, points []semantic.MoviePoint) error
}

// GraphWriter persists movie nodes in the knowledge graph. Optional.
type GraphWriter interface {
	SaveMovie(ctx context.Context, m domain.Movie) error
}

// Options configures the pipeline.
type Options struct {
	// EmbedWorkers bounds concurrent embedding calls.
	EmbedWorkers int
}

// Pipeline indexes batches of movies. Safe for concurrent use.
type Pipeline struct {
	embed  Embedder
	index  Index
	graph  GraphWriter // nil disables graph writes
	opts   Options
	logger *slog.Logger

	run fn.Stage[[]domain.Movie, int]
}

// New creates an ingestion Pipeline. graph may be nil.
func New(embed Embedder, index Index, graph GraphWriter, opts Options, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.EmbedWorkers <= 0 {
		opts.EmbedWorkers = 4
	}
	p := &Pipeline{embed: embed, index: index, graph: graph, opts: opts, logger: logger}
	p.run = fn.Then(
		fn.TracedStage("ingest.validate", p.validateStage()),
		fn.Then(
			fn.TracedStage("ingest.embed", p.embedStage()),
			fn.TracedStage("ingest.store", p.storeStage()),
		),
	)
	return p
}

// Run indexes the batch and returns how many movies were stored. Invalid
// movies are skipped with a warning, not fatal; embedding or storage
// failures abort the batch.
func (p *Pipeline) Run(ctx context.Context, movies []domain.Movie) (int, error) {
	stored, err := p.run(ctx, movies).Unwrap()
	if err != nil {
		return 0, fmt.Errorf("ingest: %w", err)
	}
	return stored, nil
}

// validateStage drops movies that fail validation and dedups by id.
func (p *Pipeline) validateStage() fn.Stage[[]domain.Movie, []domain.Movie] {
	return func(_ context.Context, movies []domain.Movie) fn.Result[[]domain.Movie] {
		valid := make([]domain.Movie, 0, len(movies))
		for _, m := range movies {
			if err := domain.ValidateMovie(m); err != nil {
				p.logger.Warn("skipping invalid movie", "id", m.ID, "title", m.Title, "error", err)
				continue
			}
			valid = append(valid, m)
		}
		return fn.Ok(fn.UniqueBy(valid, func(m domain.Movie) string { return m.ID }))
	}
}

// embedStage renders each movie's document and embeds it with bounded
// parallel workers. The first failure aborts the batch.
func (p *Pipeline) embedStage() fn.Stage[[]domain.Movie, []semantic.MoviePoint] {
	return func(ctx context.Context, movies []domain.Movie) fn.Result[[]semantic.MoviePoint] {
		version := p.embed.Version()
		results := fn.ParMapResult(movies, p.opts.EmbedWorkers, func(m domain.Movie) fn.Result[semantic.MoviePoint] {
			vec, err := p.embed.Embed(ctx, m.Document())
			if err != nil {
				return fn.Errf[semantic.MoviePoint]("embed movie %s: %w", m.ID, domain.EmbeddingFailure(err))
			}
			return fn.Ok(semantic.MoviePoint{Movie: m, Vector: vec, Embedder: version})
		})
		return fn.Collect(results)
	}
}

// storeStage upserts vectors and, when enabled, writes graph nodes. Graph
// failures are logged and skipped so the vector index stays the source of
// truth.
func (p *Pipeline) storeStage() fn.Stage[[]semantic.MoviePoint, int] {
	return func(ctx context.Context, points []semantic.MoviePoint) fn.Result[int] {
		if len(points) == 0 {
			return fn.Ok(0)
		}
		if err := p.index.Upsert(ctx, points); err != nil {
			return fn.Err[int](err)
		}
		if p.graph != nil {
			for _, pt := range points {
				if err := p.graph.SaveMovie(ctx, pt.Movie); err != nil {
					p.logger.Warn("graph write failed, continuing", "id", pt.Movie.ID, "error", err)
				}
			}
		}
		p.logger.Info("batch stored", "movies", len(points), "embedder", p.embed.Version())
		return fn.Ok(len(points))
	}
}
