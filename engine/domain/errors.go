package domain

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors classifying every failure the engine surfaces.
var (
	// ErrInvalidQuery marks bad caller input. Never retried.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrEmbeddingProvider marks an embedding upstream failure, surfaced
	// after bounded retries.
	ErrEmbeddingProvider = errors.New("embedding provider failure")
	// ErrLLMProvider marks a chat-completion upstream failure, surfaced
	// after bounded retries.
	ErrLLMProvider = errors.New("llm provider failure")
	// ErrIndexUnavailable marks the vector index as unreachable.
	ErrIndexUnavailable = errors.New("vector index unavailable")
)

// Invalid wraps a caller-input problem as ErrInvalidQuery.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidQuery, fmt.Sprintf(format, args...))
}

// EmbeddingFailure classifies an upstream embedding error. Context errors
// pass through untouched so deadline handling stays visible to callers.
func EmbeddingFailure(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrEmbeddingProvider, err)
}

// LLMFailure classifies an upstream chat-completion error.
func LLMFailure(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrLLMProvider, err)
}

// IndexFailure classifies a vector index error.
func IndexFailure(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
}

// Retryable reports whether an error is worth another attempt. Caller input
// problems and cancelled contexts are not.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrInvalidQuery):
		return false
	case errors.Is(err, context.Canceled):
		return false
	default:
		return true
	}
}
