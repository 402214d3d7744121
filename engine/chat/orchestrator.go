package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/CinemateAI/cinemate-mvp/engine/domain"
	"github.com/CinemateAI/cinemate-mvp/pkg/fn"
	"github.com/CinemateAI/cinemate-mvp/pkg/resilience"
)

const defaultSystemPrompt = `You are Cinemate, a friendly movie recommendation assistant.
When the user wants movie suggestions, call the search_movies tool with a short
descriptive query distilled from the conversation, then recommend from its results
ONLY. Mention titles and why they fit. If the tool reports a failure or returns
nothing, apologize and ask the user to rephrase. For greetings and questions that
need no recommendations, answer directly without the tool.`

// Options configures the orchestrator.
type Options struct {
	Temperature  float32
	MaxTokens    int
	SystemPrompt string
	// LLMTimeout bounds a single completion call.
	LLMTimeout time.Duration
	// SearchTimeout bounds the tool execution.
	SearchTimeout time.Duration
	// Retry is the bounded-retry policy for the LLM provider.
	Retry fn.RetryOpts
	// RelatedTitles enables graph enrichment of tool results.
	RelatedTitles bool
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	retry := fn.DefaultRetry
	retry.Retryable = domain.Retryable
	return Options{
		Temperature:   0.3,
		MaxTokens:     1024,
		SystemPrompt:  defaultSystemPrompt,
		LLMTimeout:    60 * time.Second,
		SearchTimeout: 15 * time.Second,
		Retry:         retry,
	}
}

// Service is the tool-use orchestrator.
type Service struct {
	llm      LLM
	searcher Searcher
	enricher Enricher
	breaker  *resilience.Breaker
	opts     Options
	logger   *slog.Logger
}

// New creates an orchestrator Service. enricher may be nil.
func New(llm LLM, searcher Searcher, enricher Enricher, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		llm:      llm,
		searcher: searcher,
		enricher: enricher,
		breaker:  resilience.NewBreaker(resilience.DefaultBreakerOpts),
		opts:     opts,
		logger:   logger,
	}
}

// Respond runs one conversation cycle over the supplied history. The cycle
// allows at most one tool-call round trip: a second tool request in the same
// cycle is not executed and the orchestrator forces a direct answer from the
// first tool result. Tool execution failures degrade into an empty tool
// result rather than failing the turn; only a failed final drafting call
// aborts it.
func (s *Service) Respond(ctx context.Context, history []domain.Message, nResults int) (*Reply, error) {
	if err := domain.ValidateHistory(history); err != nil {
		return nil, err
	}
	if nResults <= 0 {
		nResults = domain.DefaultResults
	}
	if nResults > domain.MaxResults {
		nResults = domain.MaxResults
	}

	turns := make([]Turn, 0, len(history)+4)
	turns = append(turns, Turn{Role: domain.RoleSystem, Content: s.opts.SystemPrompt})
	for _, m := range history {
		turns = append(turns, Turn{Role: m.Role, Content: m.Content})
	}

	// Drafting: the LLM sees the history plus the tool declaration.
	comp, err := s.complete(ctx, turns, true)
	if err != nil {
		return nil, fmt.Errorf("chat: draft: %w", err)
	}

	if comp.ToolCall == nil {
		// Direct answer, no recommendations attached.
		return &Reply{Answer: comp.Text, Results: []domain.SearchResult{}}, nil
	}

	// Tool-requested: execute the single allowed search round trip.
	results, result := s.executeTool(ctx, comp.ToolCall, nResults)

	payload, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("chat: encode tool result: %w", err)
	}
	turns = append(turns,
		Turn{Role: domain.RoleAssistant, ToolCall: comp.ToolCall},
		Turn{Role: domain.RoleTool, Content: string(payload)},
	)

	// Final drafting over the augmented history.
	final, err := s.complete(ctx, turns, true)
	if err != nil {
		return nil, fmt.Errorf("chat: final draft: %w", err)
	}

	if final.ToolCall != nil {
		// Second tool call in the same cycle: truncate and force a direct
		// answer using only the first tool result. Deliberate policy.
		s.logger.Warn("second tool call in one cycle, forcing direct answer",
			"tool", final.ToolCall.Name)
		final, err = s.complete(ctx, turns, false)
		if err != nil {
			return nil, fmt.Errorf("chat: forced draft: %w", err)
		}
	}

	answer := strings.TrimSpace(final.Text)
	if answer == "" {
		answer = fallbackAnswer(results)
	}
	return &Reply{Answer: answer, Results: results}, nil
}

// executeTool validates and runs a search_movies invocation. Failures are
// folded into the tool result so the conversation stays usable; this is the
// one sanctioned place a retrieval error is absorbed.
func (s *Service) executeTool(ctx context.Context, call *ToolCall, nResults int) ([]domain.SearchResult, toolResult) {
	empty := []domain.SearchResult{}

	if call.Name != ToolSearchMovies {
		s.logger.Warn("llm requested unknown tool", "tool", call.Name)
		return empty, toolResult{Results: empty, Note: fmt.Sprintf("unknown tool %q", call.Name)}
	}

	var args searchArgs
	if err := json.Unmarshal(call.Arguments, &args); err != nil {
		s.logger.Warn("malformed tool arguments", "error", err)
		return empty, toolResult{Results: empty, Note: "search failed: malformed arguments"}
	}
	if args.NResults <= 0 {
		args.NResults = nResults
	}
	if args.NResults > domain.MaxResults {
		args.NResults = domain.MaxResults
	}

	searchCtx, cancel := context.WithTimeout(ctx, s.opts.SearchTimeout)
	defer cancel()

	results, err := s.searcher.Search(searchCtx, args.QueryText, args.NResults)
	if err != nil {
		s.logger.Warn("tool search failed, degrading", "error", err)
		return empty, toolResult{Results: empty, Note: "search failed: " + safeNote(err)}
	}
	if results == nil {
		results = empty
	}

	tr := toolResult{Results: results}
	if len(results) == 0 {
		tr.Note = "no matches found"
	} else if s.opts.RelatedTitles && s.enricher != nil {
		ids := fn.Map(results, func(r domain.SearchResult) string { return r.ID })
		if titles, err := s.enricher.RelatedTitles(ctx, ids, 5); err != nil {
			s.logger.Warn("graph enrichment failed, continuing without", "error", err)
		} else {
			tr.RelatedTitles = titles
		}
	}
	return results, tr
}

// complete calls the LLM through the circuit breaker with bounded retries.
// withTools controls whether the search tool is declared.
func (s *Service) complete(ctx context.Context, turns []Turn, withTools bool) (*Completion, error) {
	req := CompletionRequest{
		Messages:    turns,
		Temperature: s.opts.Temperature,
		MaxTokens:   s.opts.MaxTokens,
	}
	if withTools {
		req.Tools = []ToolSpec{searchToolSpec()}
	}

	comp, err := fn.Retry(ctx, s.opts.Retry, func(ctx context.Context) (*Completion, error) {
		var c *Completion
		callErr := s.breaker.Call(ctx, func(ctx context.Context) error {
			llmCtx, cancel := context.WithTimeout(ctx, s.opts.LLMTimeout)
			defer cancel()
			var inner error
			c, inner = s.llm.Complete(llmCtx, req)
			return inner
		})
		return c, callErr
	})
	if err != nil {
		return nil, domain.LLMFailure(err)
	}
	return comp, nil
}

// fallbackAnswer covers the rare case of an empty final completion.
func fallbackAnswer(results []domain.SearchResult) string {
	if len(results) == 0 {
		return "I couldn't find any matching movies. Could you rephrase what you're in the mood for?"
	}
	titles := fn.Map(results, func(r domain.SearchResult) string { return r.Title })
	return "Here are some movies you might like: " + strings.Join(titles, ", ") + "."
}

// safeNote keeps provider error detail out of the model context.
func safeNote(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidQuery):
		return "the search query was invalid"
	case errors.Is(err, domain.ErrEmbeddingProvider):
		return "the search backend was unavailable"
	case errors.Is(err, domain.ErrIndexUnavailable):
		return "the movie index was unavailable"
	default:
		return "the search could not be completed"
	}
}
