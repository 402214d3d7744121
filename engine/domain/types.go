// Package domain defines core domain types, the error taxonomy, and
// validation for the Cinemate engine. It acts as the validation gate at
// the entry points of the retrieval and chat pipelines.
package domain

import (
	"fmt"
	"strings"
)

// Movie is a single catalog record. Immutable once indexed; re-ingestion
// replaces the indexed copy by ID.
type Movie struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	ReleaseDate string   `json:"release_date,omitempty"`
	Genres      []string `json:"genres,omitempty"`
	Overview    string   `json:"overview,omitempty"`
	PosterPath  string   `json:"poster_path,omitempty"`
}

// GenresJoined returns the comma-joined genre list, the form stored in the
// vector payload and in the catalog CSV.
func (m Movie) GenresJoined() string {
	return strings.Join(m.Genres, ", ")
}

// SplitGenres parses a comma-joined genre string back into a list.
func SplitGenres(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Document renders the text that gets embedded for this movie. Indexing and
// backfill must use the same rendering or query vectors stop lining up with
// stored ones.
func (m Movie) Document() string {
	return fmt.Sprintf("%s (%s) - Genres: %s. Plot: %s",
		m.Title, m.ReleaseDate, m.GenresJoined(), m.Overview)
}

// SearchResult is a movie plus its similarity distance. Lower distance means
// more similar. Result lists are ordered by ascending distance with ties
// broken by ascending ID.
type SearchResult struct {
	Movie
	Distance float64 `json:"distance"`
}

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is a single conversation turn. The full ordered history travels
// with every request; the service holds no session state.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
