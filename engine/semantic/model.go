package semantic

import "github.com/CinemateAI/cinemate-mvp/engine/domain"

// MoviePoint is a single vector to store in Qdrant: one movie, one
// embedding, one embedder version.
type MoviePoint struct {
	Movie    domain.Movie
	Vector   []float32
	Embedder string
}

// Hit is a single k-NN match. Distance is 1 - cosine score, so lower means
// more similar, matching the public search contract.
type Hit struct {
	Movie    domain.Movie
	Distance float64
	Embedder string
}
