package catalog

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/CinemateAI/cinemate-mvp/engine/domain"
)

// csvFields is the movies CSV column set, genres comma-joined in one column.
var csvFields = []string{"id", "title", "release_date", "overview", "genres", "poster_path"}

// WriteCSV writes movies with a header row.
func WriteCSV(w io.Writer, movies []domain.Movie) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvFields); err != nil {
		return fmt.Errorf("csv header: %w", err)
	}
	for _, m := range movies {
		row := []string{m.ID, m.Title, m.ReleaseDate, m.Overview, m.GenresJoined(), m.PosterPath}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("csv row %s: %w", m.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a movies CSV produced by WriteCSV. Column order follows the
// header row, so files with reordered columns still parse.
func ReadCSV(r io.Reader) ([]domain.Movie, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("csv header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, want := range []string{"id", "title", "overview"} {
		if _, ok := col[want]; !ok {
			return nil, fmt.Errorf("csv missing column %q", want)
		}
	}

	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	var movies []domain.Movie
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv read: %w", err)
		}
		movies = append(movies, domain.Movie{
			ID:          field(row, "id"),
			Title:       field(row, "title"),
			ReleaseDate: field(row, "release_date"),
			Overview:    field(row, "overview"),
			Genres:      domain.SplitGenres(field(row, "genres")),
			PosterPath:  field(row, "poster_path"),
		})
	}
	return movies, nil
}
