package domain

import "strings"

const (
	// MaxResults bounds n_results to protect the vector index.
	MaxResults = 50
	// DefaultResults is applied when a request omits n_results.
	DefaultResults = 5
)

// ValidateQueryText rejects empty or whitespace-only query text before any
// provider call is made.
func ValidateQueryText(text string) error {
	if strings.TrimSpace(text) == "" {
		return Invalid("query_text is empty")
	}
	return nil
}

// ValidateResults checks the requested result count. Zero means "use the
// default" at the HTTP edge and is rejected here; callers substitute
// DefaultResults before reaching the retriever.
func ValidateResults(n int) error {
	if n <= 0 {
		return Invalid("n_results must be positive, got %d", n)
	}
	if n > MaxResults {
		return Invalid("n_results must be at most %d, got %d", MaxResults, n)
	}
	return nil
}

// ValidateMovie checks a catalog record before ingestion.
func ValidateMovie(m Movie) error {
	if strings.TrimSpace(m.ID) == "" {
		return Invalid("movie id is empty")
	}
	if strings.TrimSpace(m.Title) == "" {
		return Invalid("movie %s has no title", m.ID)
	}
	if strings.TrimSpace(m.Overview) == "" {
		return Invalid("movie %s has no overview", m.ID)
	}
	return nil
}

// ValidateHistory checks inbound conversation history. Only user and
// assistant turns are accepted from clients; tool turns are synthesized
// server-side within a cycle.
func ValidateHistory(msgs []Message) error {
	if len(msgs) == 0 {
		return Invalid("no messages provided")
	}
	for i, m := range msgs {
		if m.Role != RoleUser && m.Role != RoleAssistant {
			return Invalid("message %d has unsupported role %q", i, m.Role)
		}
		if strings.TrimSpace(m.Content) == "" {
			return Invalid("message %d is empty", i)
		}
	}
	if msgs[len(msgs)-1].Role != RoleUser {
		return Invalid("last message must be from the user")
	}
	return nil
}
