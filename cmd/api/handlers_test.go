package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/CinemateAI/cinemate-mvp/engine/chat"
	"github.com/CinemateAI/cinemate-mvp/engine/domain"
	"github.com/CinemateAI/cinemate-mvp/pkg/metrics"
)

type stubSearcher struct {
	results []domain.SearchResult
	err     error
	lastN   int
}

func (s *stubSearcher) Search(_ context.Context, _ string, n int) ([]domain.SearchResult, error) {
	s.lastN = n
	return s.results, s.err
}

type stubResponder struct {
	reply *chat.Reply
	err   error
	lastN int
}

func (s *stubResponder) Respond(_ context.Context, _ []domain.Message, n int) (*chat.Reply, error) {
	s.lastN = n
	return s.reply, s.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func doSearch(t *testing.T, svc searcher, body string) *httptest.ResponseRecorder {
	t.Helper()
	h := handleSearch(svc, metrics.New(), testLogger())
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest("POST", "/api/search", strings.NewReader(body)))
	return rec
}

func doChatSearch(t *testing.T, svc responder, body string) *httptest.ResponseRecorder {
	t.Helper()
	h := handleChatSearch(svc, metrics.New(), testLogger())
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest("POST", "/api/chat_search", strings.NewReader(body)))
	return rec
}

func TestSearchEndpoint(t *testing.T) {
	svc := &stubSearcher{results: []domain.SearchResult{
		{Movie: domain.Movie{ID: "603", Title: "The Matrix"}, Distance: 0.12},
	}}

	rec := doSearch(t, svc, `{"query_text":"hacker simulation","n_results":3}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if svc.lastN != 3 {
		t.Errorf("n_results = %d, want 3", svc.lastN)
	}
	var resp SearchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 1 || resp.Results[0].Title != "The Matrix" {
		t.Errorf("results = %+v", resp.Results)
	}
}

func TestSearchDefaultsNResults(t *testing.T) {
	svc := &stubSearcher{}
	doSearch(t, svc, `{"query_text":"anything"}`)
	if svc.lastN != domain.DefaultResults {
		t.Errorf("default n = %d, want %d", svc.lastN, domain.DefaultResults)
	}
}

func TestSearchErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"invalid query", domain.Invalid("query_text must not be empty"), http.StatusBadRequest},
		{"embedding provider", domain.EmbeddingFailure(errors.New("down")), http.StatusBadGateway},
		{"index unavailable", domain.IndexFailure(errors.New("down")), http.StatusServiceUnavailable},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doSearch(t, &stubSearcher{err: tc.err}, `{"query_text":"q"}`)
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d", rec.Code, tc.status)
			}
			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("error body not JSON: %v", err)
			}
			if body["detail"] == "" {
				t.Error("missing detail field")
			}
			if tc.status >= 500 && strings.Contains(body["detail"], "down") {
				t.Errorf("5xx detail leaks upstream error: %q", body["detail"])
			}
		})
	}
}

func TestSearchMalformedBody(t *testing.T) {
	rec := doSearch(t, &stubSearcher{}, `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestChatSearchEndpoint(t *testing.T) {
	svc := &stubResponder{reply: &chat.Reply{
		Answer:  "Try The Matrix.",
		Results: []domain.SearchResult{{Movie: domain.Movie{ID: "603", Title: "The Matrix"}, Distance: 0.12}},
	}}

	rec := doChatSearch(t, svc, `{"messages":[{"role":"user","content":"sci-fi"}],"n_results":2}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if svc.lastN != 2 {
		t.Errorf("n_results = %d, want 2", svc.lastN)
	}
	var resp ChatSearchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Answer != "Try The Matrix." || len(resp.Results) != 1 {
		t.Errorf("response = %+v", resp)
	}
}

func TestChatSearchTextOnlyReply(t *testing.T) {
	svc := &stubResponder{reply: &chat.Reply{Answer: "Hello!", Results: []domain.SearchResult{}}}

	rec := doChatSearch(t, svc, `{"messages":[{"role":"user","content":"hello"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"results":[]`) {
		t.Errorf("results not an empty array: %s", rec.Body)
	}
}

func TestChatSearchErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{domain.Invalid("messages must not be empty"), http.StatusBadRequest},
		{domain.LLMFailure(errors.New("down")), http.StatusBadGateway},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
	}
	for _, tc := range cases {
		rec := doChatSearch(t, &stubResponder{err: tc.err}, `{"messages":[{"role":"user","content":"x"}]}`)
		if rec.Code != tc.status {
			t.Errorf("err %v: status = %d, want %d", tc.err, rec.Code, tc.status)
		}
	}
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	handleHealth(rec, httptest.NewRequest("GET", "/api/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("body = %s", rec.Body)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg := loadConfig()
	if cfg.Port != "8080" {
		t.Errorf("port = %q", cfg.Port)
	}
	if cfg.Collection != "movies" {
		t.Errorf("collection = %q", cfg.Collection)
	}
	if cfg.UseGraph {
		t.Error("graph enrichment should default off")
	}
}
