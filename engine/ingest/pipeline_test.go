package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/CinemateAI/cinemate-mvp/engine/domain"
	"github.com/CinemateAI/cinemate-mvp/engine/semantic"
)

type mockEmbedder struct {
	mu    sync.Mutex
	err   error
	calls int
	texts []string
}

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.texts = append(m.texts, text)
	if m.err != nil {
		return nil, m.err
	}
	return []float32{0.1, 0.2}, nil
}

func (m *mockEmbedder) Version() string { return "test-embed-v1" }

type mockIndex struct {
	err      error
	upserted [][]semantic.MoviePoint
}

func (m *mockIndex) Upsert(_ context.Context, points []semantic.MoviePoint) error {
	if m.err != nil {
		return m.err
	}
	m.upserted = append(m.upserted, points)
	return nil
}

type mockGraph struct {
	err   error
	saved []string
}

func (m *mockGraph) SaveMovie(_ context.Context, movie domain.Movie) error {
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, movie.ID)
	return nil
}

func movie(id, title string) domain.Movie {
	return domain.Movie{
		ID: id, Title: title, ReleaseDate: "1999-03-30",
		Genres: []string{"Action"}, Overview: "overview for " + title,
	}
}

func TestRunIndexesValidMovies(t *testing.T) {
	embedder := &mockEmbedder{}
	index := &mockIndex{}
	graph := &mockGraph{}
	p := New(embedder, index, graph, Options{EmbedWorkers: 2}, nil)

	stored, err := p.Run(context.Background(), []domain.Movie{movie("1", "A"), movie("2", "B")})
	if err != nil {
		t.Fatal(err)
	}
	if stored != 2 {
		t.Errorf("stored = %d, want 2", stored)
	}
	if len(index.upserted) != 1 || len(index.upserted[0]) != 2 {
		t.Fatalf("upserted batches = %v", index.upserted)
	}
	for _, pt := range index.upserted[0] {
		if pt.Embedder != "test-embed-v1" {
			t.Errorf("point embedder = %q", pt.Embedder)
		}
		if len(pt.Vector) == 0 {
			t.Error("point has no vector")
		}
	}
	if len(graph.saved) != 2 {
		t.Errorf("graph writes = %v", graph.saved)
	}
}

func TestRunEmbedsRenderedDocuments(t *testing.T) {
	embedder := &mockEmbedder{}
	p := New(embedder, &mockIndex{}, nil, Options{EmbedWorkers: 1}, nil)

	m := movie("603", "The Matrix")
	if _, err := p.Run(context.Background(), []domain.Movie{m}); err != nil {
		t.Fatal(err)
	}
	if len(embedder.texts) != 1 || embedder.texts[0] != m.Document() {
		t.Errorf("embedded %q, want the rendered document %q", embedder.texts, m.Document())
	}
}

func TestRunSkipsInvalidAndDedups(t *testing.T) {
	embedder := &mockEmbedder{}
	index := &mockIndex{}
	p := New(embedder, index, nil, Options{}, nil)

	movies := []domain.Movie{
		movie("1", "A"),
		{Title: "missing id"},
		movie("1", "A duplicate"),
	}
	stored, err := p.Run(context.Background(), movies)
	if err != nil {
		t.Fatal(err)
	}
	if stored != 1 {
		t.Errorf("stored = %d, want 1", stored)
	}
	if embedder.calls != 1 {
		t.Errorf("embed calls = %d, want 1", embedder.calls)
	}
}

func TestRunEmptyBatch(t *testing.T) {
	index := &mockIndex{}
	p := New(&mockEmbedder{}, index, nil, Options{}, nil)

	stored, err := p.Run(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if stored != 0 {
		t.Errorf("stored = %d, want 0", stored)
	}
	if len(index.upserted) != 0 {
		t.Error("upsert called for empty batch")
	}
}

func TestRunEmbedFailureAbortsBatch(t *testing.T) {
	embedder := &mockEmbedder{err: errors.New("connection refused")}
	index := &mockIndex{}
	p := New(embedder, index, nil, Options{}, nil)

	_, err := p.Run(context.Background(), []domain.Movie{movie("1", "A")})
	if !errors.Is(err, domain.ErrEmbeddingProvider) {
		t.Fatalf("got %v, want ErrEmbeddingProvider", err)
	}
	if len(index.upserted) != 0 {
		t.Error("upsert ran despite embed failure")
	}
}

func TestRunIndexFailureAbortsBatch(t *testing.T) {
	index := &mockIndex{err: domain.IndexFailure(errors.New("rpc unavailable"))}
	p := New(&mockEmbedder{}, index, nil, Options{}, nil)

	_, err := p.Run(context.Background(), []domain.Movie{movie("1", "A")})
	if !errors.Is(err, domain.ErrIndexUnavailable) {
		t.Fatalf("got %v, want ErrIndexUnavailable", err)
	}
}

func TestRunGraphFailureDoesNotAbort(t *testing.T) {
	graph := &mockGraph{err: errors.New("neo4j down")}
	p := New(&mockEmbedder{}, &mockIndex{}, graph, Options{}, nil)

	stored, err := p.Run(context.Background(), []domain.Movie{movie("1", "A")})
	if err != nil {
		t.Fatalf("graph failure aborted the batch: %v", err)
	}
	if stored != 1 {
		t.Errorf("stored = %d, want 1", stored)
	}
}
