package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/CinemateAI/cinemate-mvp/engine/chat"
	"github.com/CinemateAI/cinemate-mvp/engine/domain"
	"github.com/CinemateAI/cinemate-mvp/pkg/metrics"
)

// searcher is the retriever surface the search endpoint needs.
type searcher interface {
	Search(ctx context.Context, queryText string, nResults int) ([]domain.SearchResult, error)
}

// responder is the orchestrator surface the chat endpoint needs.
type responder interface {
	Respond(ctx context.Context, history []domain.Message, nResults int) (*chat.Reply, error)
}

// SearchRequest is the JSON body for POST /api/search.
type SearchRequest struct {
	QueryText string `json:"query_text"`
	NResults  int    `json:"n_results"`
}

// SearchResponse is the JSON response for POST /api/search.
type SearchResponse struct {
	Results []domain.SearchResult `json:"results"`
}

// ChatSearchRequest is the JSON body for POST /api/chat_search.
type ChatSearchRequest struct {
	Messages []domain.Message `json:"messages"`
	NResults int              `json:"n_results"`
}

// ChatSearchResponse is the JSON response for POST /api/chat_search.
type ChatSearchResponse struct {
	Answer  string                `json:"answer"`
	Results []domain.SearchResult `json:"results"`
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func handleSearch(svc searcher, reg *metrics.Registry, logger *slog.Logger) http.HandlerFunc {
	latency := reg.Histogram("search_duration_seconds", "Search endpoint latency", nil)
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		var req SearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, reg, "search", http.StatusBadRequest, "invalid request body")
			return
		}
		if req.NResults == 0 {
			req.NResults = domain.DefaultResults
		}

		results, err := svc.Search(r.Context(), req.QueryText, req.NResults)
		if err != nil {
			status := statusFor(err)
			logger.Error("search failed", "status", status, "err", err)
			writeError(w, reg, "search", status, publicDetail(err, status))
			return
		}

		latency.Since(start)
		reg.Counter(metrics.WithLabels("requests_total", "endpoint", "search", "status", "200"),
			"Requests by endpoint and status").Inc()
		writeJSON(w, http.StatusOK, SearchResponse{Results: results})
	}
}

func handleChatSearch(svc responder, reg *metrics.Registry, logger *slog.Logger) http.HandlerFunc {
	latency := reg.Histogram("chat_search_duration_seconds", "Chat search endpoint latency", nil)
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		var req ChatSearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, reg, "chat_search", http.StatusBadRequest, "invalid request body")
			return
		}
		if req.NResults == 0 {
			req.NResults = domain.DefaultResults
		}

		reply, err := svc.Respond(r.Context(), req.Messages, req.NResults)
		if err != nil {
			status := statusFor(err)
			logger.Error("chat search failed", "status", status, "err", err)
			writeError(w, reg, "chat_search", status, publicDetail(err, status))
			return
		}

		latency.Since(start)
		reg.Counter(metrics.WithLabels("requests_total", "endpoint", "chat_search", "status", "200"),
			"Requests by endpoint and status").Inc()
		writeJSON(w, http.StatusOK, ChatSearchResponse{Answer: reply.Answer, Results: reply.Results})
	}
}

// statusFor maps the error taxonomy to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidQuery):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrEmbeddingProvider), errors.Is(err, domain.ErrLLMProvider):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrIndexUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// publicDetail keeps upstream error text out of 5xx responses.
func publicDetail(err error, status int) string {
	if status == http.StatusBadRequest {
		return err.Error()
	}
	switch status {
	case http.StatusBadGateway:
		return "upstream provider unavailable"
	case http.StatusServiceUnavailable:
		return "search index unavailable"
	case http.StatusGatewayTimeout:
		return "upstream timeout"
	default:
		return "internal server error"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, reg *metrics.Registry, endpoint string, status int, detail string) {
	reg.Counter(metrics.WithLabels("requests_total", "endpoint", endpoint, "status", strconv.Itoa(status)),
		"Requests by endpoint and status").Inc()
	writeJSON(w, status, map[string]string{"detail": detail})
}
