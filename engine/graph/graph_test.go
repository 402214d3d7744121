package graph

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/CinemateAI/cinemate-mvp/engine/domain"
	"github.com/CinemateAI/cinemate-mvp/pkg/repo"
)

type fakeResult struct {
	records []*neo4j.Record
	pos     int
}

func (f *fakeResult) Next(context.Context) bool {
	if f.pos >= len(f.records) {
		return false
	}
	f.pos++
	return true
}

func (f *fakeResult) Record() *neo4j.Record { return f.records[f.pos-1] }

type fakeSession struct {
	cyphers []string
	params  []map[string]any
	result  *fakeResult
	err     error
}

func (f *fakeSession) Run(_ context.Context, cypher string, params map[string]any) (result, error) {
	f.cyphers = append(f.cyphers, cypher)
	f.params = append(f.params, params)
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &fakeResult{}, nil
}

func (f *fakeSession) Close(context.Context) error { return nil }

type fakeMovieRepo struct {
	merged []domain.Movie
	err    error
}

func (f *fakeMovieRepo) Get(context.Context, string) (domain.Movie, error) {
	return domain.Movie{}, errors.New("not implemented")
}

func (f *fakeMovieRepo) List(context.Context, repo.ListOpts) ([]domain.Movie, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeMovieRepo) Create(_ context.Context, m domain.Movie) (domain.Movie, error) {
	return m, nil
}

func (f *fakeMovieRepo) Merge(_ context.Context, m domain.Movie) (domain.Movie, error) {
	if f.err != nil {
		return domain.Movie{}, f.err
	}
	f.merged = append(f.merged, m)
	return m, nil
}

func (f *fakeMovieRepo) Update(_ context.Context, m domain.Movie) (domain.Movie, error) {
	return m, nil
}

func (f *fakeMovieRepo) Delete(context.Context, string) error { return nil }

func titleRecord(title string, overlap int64) *neo4j.Record {
	return &neo4j.Record{Values: []any{title, overlap}, Keys: []string{"title", "overlap"}}
}

func newTestStore(sess *fakeSession, movies *fakeMovieRepo) *Store {
	s := New(nil, nil)
	s.movies = movies
	s.newSession = func(context.Context) runner { return sess }
	return s
}

func matrix() domain.Movie {
	return domain.Movie{
		ID: "603", Title: "The Matrix", ReleaseDate: "1999-03-30",
		Genres: []string{"Action", "Science Fiction"}, Overview: "A hacker learns the truth.",
	}
}

func TestSaveMovieMergesNodeAndGenreEdges(t *testing.T) {
	sess := &fakeSession{}
	movies := &fakeMovieRepo{}
	s := newTestStore(sess, movies)

	if err := s.SaveMovie(context.Background(), matrix()); err != nil {
		t.Fatal(err)
	}
	if len(movies.merged) != 1 {
		t.Fatalf("merged %d movies, want 1", len(movies.merged))
	}
	if len(sess.cyphers) != 2 {
		t.Fatalf("ran %d genre cyphers, want 2", len(sess.cyphers))
	}
	if !strings.Contains(sess.cyphers[0], "MERGE (m)-[:HAS_GENRE]->(g)") {
		t.Errorf("cypher = %q", sess.cyphers[0])
	}
	if sess.params[1]["genre"] != "Science Fiction" {
		t.Errorf("second genre param = %v", sess.params[1]["genre"])
	}
}

func TestSaveMovieRejectsInvalid(t *testing.T) {
	s := newTestStore(&fakeSession{}, &fakeMovieRepo{})
	err := s.SaveMovie(context.Background(), domain.Movie{Title: "no id"})
	if !errors.Is(err, domain.ErrInvalidQuery) {
		t.Fatalf("got %v, want ErrInvalidQuery", err)
	}
}

func TestSaveMovieWrapsMergeFailure(t *testing.T) {
	movies := &fakeMovieRepo{err: errors.New("neo4j down")}
	s := newTestStore(&fakeSession{}, movies)
	if err := s.SaveMovie(context.Background(), matrix()); err == nil {
		t.Fatal("expected error")
	}
}

func TestRelatedByGenre(t *testing.T) {
	sess := &fakeSession{result: &fakeResult{records: []*neo4j.Record{
		titleRecord("The Matrix Reloaded", 2),
		titleRecord("Inception", 1),
	}}}
	s := newTestStore(sess, &fakeMovieRepo{})

	titles, err := s.RelatedByGenre(context.Background(), []string{"603"}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(titles) != 2 || titles[0] != "The Matrix Reloaded" {
		t.Fatalf("titles = %v", titles)
	}
	if !strings.Contains(sess.cyphers[0], "NOT rec.id IN $ids") {
		t.Error("query does not exclude input movies")
	}
	if sess.params[0]["limit"] != 5 {
		t.Errorf("limit param = %v", sess.params[0]["limit"])
	}
}

func TestRelatedByGenreEmptyInput(t *testing.T) {
	sess := &fakeSession{}
	s := newTestStore(sess, &fakeMovieRepo{})
	titles, err := s.RelatedByGenre(context.Background(), nil, 5)
	if err != nil {
		t.Fatal(err)
	}
	if titles != nil {
		t.Errorf("titles = %v, want nil", titles)
	}
	if len(sess.cyphers) != 0 {
		t.Error("query ran for empty input")
	}
}
