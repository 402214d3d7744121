package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/CinemateAI/cinemate-mvp/engine/domain"
)

func testClient(t *testing.T, handler http.HandlerFunc) *TMDBClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewTMDBClient("test-key")
	c.baseURL = srv.URL
	return c
}

func TestFetchGenres(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/genre/movie/list" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.URL.Query().Get("api_key") != "test-key" {
			t.Error("api key not sent")
		}
		json.NewEncoder(w).Encode(map[string]any{
			"genres": []map[string]any{
				{"id": 28, "name": "Action"},
				{"id": 878, "name": "Science Fiction"},
			},
		})
	})

	genres, err := c.FetchGenres(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if genres[28] != "Action" || genres[878] != "Science Fiction" {
		t.Fatalf("genres = %v", genres)
	}
}

func TestFetchMoviesResolvesGenresAndDedups(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/genre/movie/list":
			json.NewEncoder(w).Encode(map[string]any{
				"genres": []map[string]any{{"id": 878, "name": "Science Fiction"}},
			})
		case "/discover/movie":
			// Both pages include movie 603 so dedup is observable.
			json.NewEncoder(w).Encode(map[string]any{
				"results": []map[string]any{
					{"id": 603, "title": "The Matrix", "release_date": "1999-03-30",
						"overview": "A hacker learns the truth.", "genre_ids": []int{878, 999},
						"poster_path": "/matrix.jpg"},
				},
				"total_pages": 10,
			})
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
		}
	})

	movies, err := c.FetchMovies(context.Background(), 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(movies) != 1 {
		t.Fatalf("got %d movies, want 1 after dedup", len(movies))
	}
	m := movies[0]
	if m.ID != "603" {
		t.Errorf("id = %q", m.ID)
	}
	if !reflect.DeepEqual(m.Genres, []string{"Science Fiction", "Unknown"}) {
		t.Errorf("genres = %v", m.Genres)
	}
}

func TestFetchMoviesHTTPError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	if _, err := c.FetchMovies(context.Background(), 1); err == nil {
		t.Fatal("expected error on 401")
	}
}

func TestCSVRoundTrip(t *testing.T) {
	movies := []domain.Movie{
		{ID: "603", Title: "The Matrix", ReleaseDate: "1999-03-30",
			Overview: "A hacker learns the truth.", Genres: []string{"Action", "Science Fiction"},
			PosterPath: "/matrix.jpg"},
		{ID: "27205", Title: "Inception", ReleaseDate: "2010-07-15",
			Overview: "A thief enters dreams.", Genres: []string{"Science Fiction"}},
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, movies); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), "id,title,release_date,overview,genres,poster_path\n") {
		t.Errorf("header = %q", strings.SplitN(buf.String(), "\n", 2)[0])
	}
	if !strings.Contains(buf.String(), `"Action, Science Fiction"`) {
		t.Error("genres not comma-joined in one column")
	}

	got, err := ReadCSV(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, movies) {
		t.Errorf("round trip mismatch:\ngot  %+v\nwant %+v", got, movies)
	}
}

func TestReadCSVMissingColumn(t *testing.T) {
	in := strings.NewReader("id,title\n1,A\n")
	if _, err := ReadCSV(in); err == nil {
		t.Fatal("expected error for missing overview column")
	}
}
