// Package retrieve implements semantic movie search: embed the query text,
// run k-NN against the vector index, and return movies ranked by ascending
// distance. The service is stateless and safe for concurrent use.
package retrieve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/CinemateAI/cinemate-mvp/engine/domain"
	"github.com/CinemateAI/cinemate-mvp/engine/semantic"
	"github.com/CinemateAI/cinemate-mvp/pkg/fn"
	"github.com/CinemateAI/cinemate-mvp/pkg/resilience"
)

// Embedder turns text into a fixed-length vector. Implementations must be
// deterministic for identical (text, model version) up to provider float
// noise.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Version() string
}

// Index abstracts the vector store's k-NN query.
type Index interface {
	Query(ctx context.Context, vector []float32, k int, embedder string) ([]semantic.Hit, error)
}

// Options configures the retriever.
type Options struct {
	// MaxResults caps n_results to protect the index.
	MaxResults int
	// EmbedTimeout bounds a single embedding provider call.
	EmbedTimeout time.Duration
	// QueryTimeout bounds a single index query.
	QueryTimeout time.Duration
	// Retry is the bounded-retry policy for the embedding provider.
	Retry fn.RetryOpts
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	retry := fn.DefaultRetry
	retry.Retryable = domain.Retryable
	return Options{
		MaxResults:   domain.MaxResults,
		EmbedTimeout: 10 * time.Second,
		QueryTimeout: 5 * time.Second,
		Retry:        retry,
	}
}

// Service is the retriever. It performs only reads and needs no
// coordination between concurrent callers.
type Service struct {
	embed   Embedder
	index   Index
	breaker *resilience.Breaker
	opts    Options
	logger  *slog.Logger
}

// New creates a retriever Service.
func New(embed Embedder, index Index, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = domain.MaxResults
	}
	return &Service{
		embed:   embed,
		index:   index,
		breaker: resilience.NewBreaker(resilience.DefaultBreakerOpts),
		opts:    opts,
		logger:  logger,
	}
}

// Search embeds queryText and returns up to nResults movies ordered by
// ascending distance, ties broken by ascending movie ID. Empty or
// whitespace-only query text fails before any provider call. An index
// holding fewer than nResults movies yields all of them, not an error.
func (s *Service) Search(ctx context.Context, queryText string, nResults int) ([]domain.SearchResult, error) {
	if err := domain.ValidateQueryText(queryText); err != nil {
		return nil, err
	}
	if nResults <= 0 {
		return nil, domain.Invalid("n_results must be positive, got %d", nResults)
	}
	if nResults > s.opts.MaxResults {
		nResults = s.opts.MaxResults
	}

	vector, err := s.embedQuery(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("retrieve: embed query: %w", err)
	}

	queryCtx, cancel := context.WithTimeout(ctx, s.opts.QueryTimeout)
	defer cancel()

	hits, err := s.index.Query(queryCtx, vector, nResults, s.embed.Version())
	if err != nil {
		if !errors.Is(err, domain.ErrIndexUnavailable) {
			err = domain.IndexFailure(err)
		}
		return nil, fmt.Errorf("retrieve: index query: %w", err)
	}

	results := make([]domain.SearchResult, len(hits))
	for i, h := range hits {
		results[i] = domain.SearchResult{Movie: h.Movie, Distance: h.Distance}
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].ID < results[j].ID
	})

	s.logger.Debug("search done", "query_len", len(queryText), "results", len(results))
	return results, nil
}

// embedQuery calls the embedding provider through the circuit breaker with
// bounded retries and classifies failures.
func (s *Service) embedQuery(ctx context.Context, text string) ([]float32, error) {
	vector, err := fn.Retry(ctx, s.opts.Retry, func(ctx context.Context) ([]float32, error) {
		var vec []float32
		callErr := s.breaker.Call(ctx, func(ctx context.Context) error {
			embedCtx, cancel := context.WithTimeout(ctx, s.opts.EmbedTimeout)
			defer cancel()
			var inner error
			vec, inner = s.embed.Embed(embedCtx, text)
			return inner
		})
		return vec, callErr
	})
	if err != nil {
		return nil, domain.EmbeddingFailure(err)
	}
	return vector, nil
}
