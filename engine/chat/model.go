// Package chat implements the tool-use orchestrator: it owns the
// conversation cycle, decides per turn whether the LLM answers directly or
// calls the movie search tool, and folds tool output back into a final
// assistant reply.
package chat

import (
	"context"
	"encoding/json"

	"github.com/CinemateAI/cinemate-mvp/engine/domain"
)

// ToolCall is a structured tool invocation emitted by the LLM.
type ToolCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Turn is a single conversation turn as seen by the LLM: plain text, an
// assistant tool invocation, or a tool result (role "tool").
type Turn struct {
	Role     domain.Role `json:"role"`
	Content  string      `json:"content,omitempty"`
	ToolCall *ToolCall   `json:"tool_call,omitempty"`
}

// Completion is the tagged variant an LLM response decodes into: exactly one
// of Text or ToolCall is meaningful. A nil ToolCall means plain text.
type Completion struct {
	Text     string
	ToolCall *ToolCall
}

// ToolSpec declares a callable tool to the LLM. Parameters is a JSON
// schema object.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// CompletionRequest is one drafting call to the LLM.
type CompletionRequest struct {
	Messages    []Turn
	Tools       []ToolSpec
	Temperature float32
	MaxTokens   int
}

// LLM abstracts the chat-completion provider.
type LLM interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
}

// Searcher abstracts the retriever the LLM may invoke as a tool.
type Searcher interface {
	Search(ctx context.Context, queryText string, nResults int) ([]domain.SearchResult, error)
}

// Enricher optionally contributes related titles from the knowledge graph
// to the tool result. Failures are skipped, never fatal.
type Enricher interface {
	RelatedTitles(ctx context.Context, movieIDs []string, limit int) ([]string, error)
}

// ToolSearchMovies is the single tool declared to the LLM.
const ToolSearchMovies = "search_movies"

// searchArgs are the arguments of a search_movies call.
type searchArgs struct {
	QueryText string `json:"query_text"`
	NResults  int    `json:"n_results"`
}

// searchToolSpec declares search_movies to the LLM.
func searchToolSpec() ToolSpec {
	return ToolSpec{
		Name:        ToolSearchMovies,
		Description: "Semantic search over the movie catalog. Use it whenever the user wants movie recommendations. Distill the user's intent into a short descriptive query.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query_text": map[string]any{
					"type":        "string",
					"description": "Free-text description of the movies to find, e.g. 'space movie with aliens'.",
				},
				"n_results": map[string]any{
					"type":        "integer",
					"description": "How many movies to return.",
				},
			},
			"required": []string{"query_text"},
		},
	}
}

// toolResult is the payload of the tool-result turn fed back to the LLM.
type toolResult struct {
	Results       []domain.SearchResult `json:"results"`
	Note          string                `json:"note,omitempty"`
	RelatedTitles []string              `json:"related_titles,omitempty"`
}

// Reply is the outward-facing result of one conversation cycle.
type Reply struct {
	Answer  string                `json:"answer"`
	Results []domain.SearchResult `json:"results"`
}
