// Package graph maintains the movie knowledge graph in Neo4j: Movie and
// Genre nodes linked by HAS_GENRE edges, written at ingest time and queried
// for related-title enrichment during chat.
package graph

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/CinemateAI/cinemate-mvp/engine/domain"
	"github.com/CinemateAI/cinemate-mvp/pkg/repo"
)

// result is the minimal interface needed from a neo4j result.
type result interface {
	Next(ctx context.Context) bool
	Record() *neo4j.Record
}

// runner is the minimal interface needed from a neo4j session.
type runner interface {
	Run(ctx context.Context, cypher string, params map[string]any) (result, error)
	Close(ctx context.Context) error
}

// Store writes and queries the movie graph.
type Store struct {
	driver     neo4j.DriverWithContext
	movies     repo.Repository[domain.Movie, string]
	logger     *slog.Logger
	newSession func(ctx context.Context) runner // for testing
}

// New creates a Store over an established Neo4j driver.
func New(driver neo4j.DriverWithContext, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	movies := repo.NewNeo4jRepo[domain.Movie, string](
		driver,
		"Movie",
		movieToMap,
		movieFromRecord,
	)
	return &Store{driver: driver, movies: movies, logger: logger}
}

func movieToMap(m domain.Movie) map[string]any {
	return map[string]any{
		"id":           m.ID,
		"title":        m.Title,
		"release_date": m.ReleaseDate,
		"genres":       m.GenresJoined(),
		"overview":     m.Overview,
		"poster_path":  m.PosterPath,
	}
}

func movieFromRecord(rec *neo4j.Record) (domain.Movie, error) {
	node, ok := rec.Values[0].(neo4j.Node)
	if !ok {
		return domain.Movie{}, fmt.Errorf("record value is %T, not a node", rec.Values[0])
	}
	str := func(key string) string {
		v, _ := node.Props[key].(string)
		return v
	}
	return domain.Movie{
		ID:          str("id"),
		Title:       str("title"),
		ReleaseDate: str("release_date"),
		Genres:      domain.SplitGenres(str("genres")),
		Overview:    str("overview"),
		PosterPath:  str("poster_path"),
	}, nil
}

type neo4jSessionAdapter struct {
	sess neo4j.SessionWithContext
}

func (a *neo4jSessionAdapter) Run(ctx context.Context, cypher string, params map[string]any) (result, error) {
	return a.sess.Run(ctx, cypher, params)
}

func (a *neo4jSessionAdapter) Close(ctx context.Context) error {
	return a.sess.Close(ctx)
}

func (s *Store) session(ctx context.Context) runner {
	if s.newSession != nil {
		return s.newSession(ctx)
	}
	return &neo4jSessionAdapter{sess: s.driver.NewSession(ctx, neo4j.SessionConfig{})}
}

// SaveMovie merges the movie node and its genre edges. Re-running with the
// same movie is a no-op, so redelivered ingest messages are safe.
func (s *Store) SaveMovie(ctx context.Context, m domain.Movie) error {
	if err := domain.ValidateMovie(m); err != nil {
		return err
	}
	if _, err := s.movies.Merge(ctx, m); err != nil {
		return fmt.Errorf("graph: merge movie %s: %w", m.ID, err)
	}

	sess := s.session(ctx)
	defer sess.Close(ctx)

	for _, genre := range m.Genres {
		cypher := `MATCH (m:Movie {id: $id})
MERGE (g:Genre {name: $genre})
MERGE (m)-[:HAS_GENRE]->(g)`
		if _, err := sess.Run(ctx, cypher, map[string]any{"id": m.ID, "genre": genre}); err != nil {
			return fmt.Errorf("graph: link genre %q: %w", genre, err)
		}
	}
	return nil
}

// RelatedByGenre returns titles of movies sharing genres with the given
// movies, strongest overlap first, excluding the inputs themselves.
func (s *Store) RelatedByGenre(ctx context.Context, movieIDs []string, limit int) ([]string, error) {
	if len(movieIDs) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 5
	}

	sess := s.session(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (m:Movie)-[:HAS_GENRE]->(g:Genre)<-[:HAS_GENRE]-(rec:Movie)
WHERE m.id IN $ids AND NOT rec.id IN $ids
RETURN rec.title AS title, count(DISTINCT g) AS overlap
ORDER BY overlap DESC, title ASC
LIMIT $limit`
	res, err := sess.Run(ctx, cypher, map[string]any{"ids": movieIDs, "limit": limit})
	if err != nil {
		return nil, fmt.Errorf("graph: related by genre: %w", err)
	}

	var titles []string
	for res.Next(ctx) {
		rec := res.Record()
		if title, ok := rec.Values[0].(string); ok && title != "" {
			titles = append(titles, title)
		}
	}
	return titles, nil
}

// Movie returns one movie node by id.
func (s *Store) Movie(ctx context.Context, id string) (domain.Movie, error) {
	return s.movies.Get(ctx, id)
}
