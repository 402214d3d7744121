package retrieve

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/CinemateAI/cinemate-mvp/engine/domain"
	"github.com/CinemateAI/cinemate-mvp/engine/semantic"
	"github.com/CinemateAI/cinemate-mvp/pkg/fn"
)

// --- mocks ---

type mockEmbedder struct {
	vector  []float32
	err     error
	calls   int
	version string
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	m.calls++
	return m.vector, m.err
}

func (m *mockEmbedder) Version() string {
	if m.version == "" {
		return "test-embed-v1"
	}
	return m.version
}

type mockIndex struct {
	hits         []semantic.Hit
	err          error
	calls        int
	lastK        int
	lastEmbedder string
}

func (m *mockIndex) Query(_ context.Context, _ []float32, k int, embedder string) ([]semantic.Hit, error) {
	m.calls++
	m.lastK = k
	m.lastEmbedder = embedder
	if m.err != nil {
		return nil, m.err
	}
	if k < len(m.hits) {
		return m.hits[:k], nil
	}
	return m.hits, nil
}

func hit(id, title string, distance float64) semantic.Hit {
	return semantic.Hit{Movie: domain.Movie{ID: id, Title: title}, Distance: distance}
}

func fastRetry() fn.RetryOpts {
	return fn.RetryOpts{
		MaxAttempts: 3,
		InitialWait: time.Millisecond,
		MaxWait:     time.Millisecond,
		Retryable:   domain.Retryable,
	}
}

func newService(e *mockEmbedder, ix *mockIndex) *Service {
	opts := DefaultOptions()
	opts.Retry = fastRetry()
	return New(e, ix, opts, nil)
}

// --- tests ---

func TestSearch_OrderedWithTieBreak(t *testing.T) {
	embedder := &mockEmbedder{vector: []float32{0.1, 0.2}}
	index := &mockIndex{hits: []semantic.Hit{
		hit("30", "C", 0.4),
		hit("10", "A", 0.2),
		hit("21", "B2", 0.3),
		hit("20", "B1", 0.3),
	}}
	svc := newService(embedder, index)

	results, err := svc.Search(context.Background(), "space movie with aliens", 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var ids []string
	for i, r := range results {
		ids = append(ids, r.ID)
		if i > 0 && results[i-1].Distance > r.Distance {
			t.Errorf("results not sorted by distance at %d", i)
		}
	}
	want := []string{"10", "20", "21", "30"}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("order = %v, want %v (ties broken by id)", ids, want)
	}
	if index.lastEmbedder != "test-embed-v1" {
		t.Errorf("query did not carry embedder version, got %q", index.lastEmbedder)
	}
}

func TestSearch_ReturnsMinOfNAndIndexSize(t *testing.T) {
	embedder := &mockEmbedder{vector: []float32{0.1}}
	index := &mockIndex{hits: []semantic.Hit{hit("1", "A", 0.1), hit("2", "B", 0.2)}}
	svc := newService(embedder, index)

	// More requested than indexed: all available, no error.
	results, err := svc.Search(context.Background(), "anything", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("got %d results, want 2", len(results))
	}

	// Fewer requested than indexed: exactly n.
	results, err = svc.Search(context.Background(), "anything", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("got %d results, want 1", len(results))
	}
}

func TestSearch_InvalidQueryMakesNoProviderCalls(t *testing.T) {
	for _, q := range []string{"", "   ", "\t\n"} {
		embedder := &mockEmbedder{vector: []float32{0.1}}
		index := &mockIndex{}
		svc := newService(embedder, index)

		_, err := svc.Search(context.Background(), q, 5)
		if !errors.Is(err, domain.ErrInvalidQuery) {
			t.Errorf("query %q: got %v, want ErrInvalidQuery", q, err)
		}
		if embedder.calls != 0 || index.calls != 0 {
			t.Errorf("query %q: provider calls made (embed=%d index=%d)", q, embedder.calls, index.calls)
		}
	}
}

func TestSearch_NonPositiveN(t *testing.T) {
	svc := newService(&mockEmbedder{vector: []float32{0.1}}, &mockIndex{})
	for _, n := range []int{0, -3} {
		if _, err := svc.Search(context.Background(), "ok", n); !errors.Is(err, domain.ErrInvalidQuery) {
			t.Errorf("n=%d: got %v, want ErrInvalidQuery", n, err)
		}
	}
}

func TestSearch_ClampsToMaxResults(t *testing.T) {
	embedder := &mockEmbedder{vector: []float32{0.1}}
	index := &mockIndex{}
	svc := newService(embedder, index)

	if _, err := svc.Search(context.Background(), "ok", domain.MaxResults+100); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if index.lastK != domain.MaxResults {
		t.Errorf("k = %d, want clamp to %d", index.lastK, domain.MaxResults)
	}
}

func TestSearch_Idempotent(t *testing.T) {
	embedder := &mockEmbedder{vector: []float32{0.5, 0.5}}
	index := &mockIndex{hits: []semantic.Hit{hit("2", "B", 0.3), hit("1", "A", 0.1)}}
	svc := newService(embedder, index)

	first, err := svc.Search(context.Background(), "heist thriller", 2)
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.Search(context.Background(), "heist thriller", 2)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("identical searches differ:\n%v\n%v", first, second)
	}
}

func TestSearch_EmbedFailureRetriesThenClassifies(t *testing.T) {
	embedder := &mockEmbedder{err: fmt.Errorf("connection refused")}
	index := &mockIndex{}
	svc := newService(embedder, index)

	_, err := svc.Search(context.Background(), "ok", 5)
	if !errors.Is(err, domain.ErrEmbeddingProvider) {
		t.Fatalf("got %v, want ErrEmbeddingProvider", err)
	}
	if embedder.calls != 3 {
		t.Errorf("embed attempts = %d, want 3 (bounded retry)", embedder.calls)
	}
	if index.calls != 0 {
		t.Error("index queried despite embed failure")
	}
}

func TestSearch_IndexFailureClassifies(t *testing.T) {
	embedder := &mockEmbedder{vector: []float32{0.1}}
	index := &mockIndex{err: errors.New("rpc unavailable")}
	svc := newService(embedder, index)

	_, err := svc.Search(context.Background(), "ok", 5)
	if !errors.Is(err, domain.ErrIndexUnavailable) {
		t.Fatalf("got %v, want ErrIndexUnavailable", err)
	}
}

func TestSearch_EmptyIndex(t *testing.T) {
	svc := newService(&mockEmbedder{vector: []float32{0.1}}, &mockIndex{})
	results, err := svc.Search(context.Background(), "anything", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results from empty index", len(results))
	}
}
