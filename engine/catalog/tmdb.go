// Package catalog fetches movie metadata from the TMDB API and reads and
// writes the movies CSV that feeds ingestion.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/CinemateAI/cinemate-mvp/engine/domain"
	"github.com/CinemateAI/cinemate-mvp/pkg/fn"
)

const defaultBaseURL = "https://api.themoviedb.org/3"

// TMDBClient fetches popular movies via the discover endpoint. Requests are
// rate limited to stay under TMDB's 40 req / 10s hard limit.
type TMDBClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
}

// NewTMDBClient creates a TMDB client.
func NewTMDBClient(apiKey string) *TMDBClient {
	return &TMDBClient{
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Every(300*time.Millisecond), 1),
	}
}

type genreListResponse struct {
	Genres []struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"genres"`
}

type discoverResponse struct {
	Page    int `json:"page"`
	Results []struct {
		ID          int    `json:"id"`
		Title       string `json:"title"`
		ReleaseDate string `json:"release_date"`
		Overview    string `json:"overview"`
		GenreIDs    []int  `json:"genre_ids"`
		PosterPath  string `json:"poster_path"`
	} `json:"results"`
	TotalPages int `json:"total_pages"`
}

// FetchGenres returns the id-to-name genre mapping.
func (c *TMDBClient) FetchGenres(ctx context.Context) (map[int]string, error) {
	var resp genreListResponse
	if err := c.get(ctx, "/genre/movie/list", nil, &resp); err != nil {
		return nil, fmt.Errorf("tmdb genres: %w", err)
	}
	genres := make(map[int]string, len(resp.Genres))
	for _, g := range resp.Genres {
		genres[g.ID] = g.Name
	}
	return genres, nil
}

// FetchMovies pulls up to pages of discover results sorted by popularity,
// resolving genre ids to names and deduplicating by movie id. Page order is
// preserved so the most popular movies come first.
func (c *TMDBClient) FetchMovies(ctx context.Context, pages int) ([]domain.Movie, error) {
	genres, err := c.FetchGenres(ctx)
	if err != nil {
		return nil, err
	}

	var movies []domain.Movie
	for page := 1; page <= pages; page++ {
		var resp discoverResponse
		params := url.Values{
			"sort_by": {"popularity.desc"},
			"page":    {strconv.Itoa(page)},
		}
		if err := c.get(ctx, "/discover/movie", params, &resp); err != nil {
			return nil, fmt.Errorf("tmdb discover page %d: %w", page, err)
		}
		for _, m := range resp.Results {
			names := make([]string, 0, len(m.GenreIDs))
			for _, id := range m.GenreIDs {
				name, ok := genres[id]
				if !ok {
					name = "Unknown"
				}
				names = append(names, name)
			}
			movies = append(movies, domain.Movie{
				ID:          strconv.Itoa(m.ID),
				Title:       m.Title,
				ReleaseDate: m.ReleaseDate,
				Overview:    m.Overview,
				Genres:      names,
				PosterPath:  m.PosterPath,
			})
		}
		if resp.TotalPages > 0 && page >= resp.TotalPages {
			break
		}
	}
	return fn.UniqueBy(movies, func(m domain.Movie) string { return m.ID }), nil
}

func (c *TMDBClient) get(ctx context.Context, path string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("http %d from %s", resp.StatusCode, path)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
