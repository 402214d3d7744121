// Package semantic owns all Qdrant operations for the movie collection.
package semantic

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/CinemateAI/cinemate-mvp/engine/domain"
)

// pointsAPI is the slice of pb.PointsClient the store uses.
type pointsAPI interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
	Scroll(ctx context.Context, in *pb.ScrollPoints, opts ...grpc.CallOption) (*pb.ScrollResponse, error)
	Count(ctx context.Context, in *pb.CountPoints, opts ...grpc.CallOption) (*pb.CountResponse, error)
}

// collectionsAPI is the slice of pb.CollectionsClient the store uses.
type collectionsAPI interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeleteCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// Store is the sole owner of the movies collection in Qdrant. The distance
// metric is cosine, fixed at collection creation. Reads are safe for
// concurrent use; writes happen only during offline ingestion.
type Store struct {
	conn           *grpc.ClientConn
	points         pointsAPI
	collections    collectionsAPI
	collection     string
	enforceVersion bool
}

// New creates a Store connected to Qdrant at the given gRPC address.
// Embedder-version filtering is on by default.
func New(addr, collection string) (*Store, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("semantic: dial qdrant %s: %w", addr, err)
	}
	return &Store{
		conn:           conn,
		points:         pb.NewPointsClient(conn),
		collections:    pb.NewCollectionsClient(conn),
		collection:     collection,
		enforceVersion: true,
	}, nil
}

// NewWithClients builds a Store around existing clients. Used by tests.
func NewWithClients(points pointsAPI, collections collectionsAPI, collection string) *Store {
	return &Store{
		points:         points,
		collections:    collections,
		collection:     collection,
		enforceVersion: true,
	}
}

// IgnoreEmbedderVersion disables the version filter on Query. Only for
// operational tooling; mixing embedder versions in answers is otherwise a
// consistency violation.
func (s *Store) IgnoreEmbedderVersion() { s.enforceVersion = false }

// Close closes the underlying gRPC connection.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// EnsureCollection creates the movies collection if it doesn't exist.
func (s *Store) EnsureCollection(ctx context.Context, dims int) error {
	list, err := s.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return domain.IndexFailure(fmt.Errorf("list collections: %w", err))
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == s.collection {
			return nil
		}
	}

	_, err = s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dims),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return domain.IndexFailure(fmt.Errorf("create collection %s: %w", s.collection, err))
	}
	return nil
}

// DeleteCollection drops the movies collection.
func (s *Store) DeleteCollection(ctx context.Context) error {
	_, err := s.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: s.collection})
	if err != nil {
		return domain.IndexFailure(fmt.Errorf("delete collection %s: %w", s.collection, err))
	}
	return nil
}

// PointID derives the deterministic Qdrant point id for a movie. Upserting
// the same movie twice therefore replaces its vector and payload.
func PointID(movieID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("cinemate:movie:"+movieID)).String()
}

// Upsert stores movie points. Called by engine/ingest and cmd/backfill.
func (s *Store) Upsert(ctx context.Context, points []MoviePoint) error {
	if len(points) == 0 {
		return nil
	}

	pts := make([]*pb.PointStruct, len(points))
	for i, p := range points {
		pts[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: PointID(p.Movie.ID)},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: p.Vector},
				},
			},
			Payload: payloadFromMovie(p.Movie, p.Embedder),
		}
	}

	wait := true
	_, err := s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points:         pts,
	})
	if err != nil {
		return domain.IndexFailure(fmt.Errorf("upsert %d points: %w", len(points), err))
	}
	return nil
}

// Query performs k-NN search against the collection. It never returns more
// than k hits, and with version enforcement on it never returns a hit whose
// vector came from a different embedder version than the query vector.
func (s *Store) Query(ctx context.Context, vector []float32, k int, embedder string) ([]Hit, error) {
	req := &pb.SearchPoints{
		CollectionName: s.collection,
		Vector:         vector,
		Limit:          uint64(k),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	}
	if s.enforceVersion && embedder != "" {
		req.Filter = &pb.Filter{Must: []*pb.Condition{fieldMatch("embedder", embedder)}}
	}

	resp, err := s.points.Search(ctx, req)
	if err != nil {
		return nil, domain.IndexFailure(fmt.Errorf("search: %w", err))
	}

	hits := make([]Hit, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		hits[i] = hitFromPayload(r.GetPayload(), float64(1-r.GetScore()))
	}
	return hits, nil
}

// Count returns the number of points in the collection.
func (s *Store) Count(ctx context.Context) (uint64, error) {
	exact := true
	resp, err := s.points.Count(ctx, &pb.CountPoints{
		CollectionName: s.collection,
		Exact:          &exact,
	})
	if err != nil {
		return 0, domain.IndexFailure(fmt.Errorf("count: %w", err))
	}
	return resp.GetResult().GetCount(), nil
}

// ScrollNotEmbedder pages through points whose stored embedder version
// differs from the given one. Used by cmd/backfill after a model upgrade.
// The returned offset is nil once the scroll is exhausted.
func (s *Store) ScrollNotEmbedder(ctx context.Context, embedder string, limit uint32, offset *pb.PointId) ([]Hit, *pb.PointId, error) {
	resp, err := s.points.Scroll(ctx, &pb.ScrollPoints{
		CollectionName: s.collection,
		Limit:          &limit,
		Offset:         offset,
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
		Filter: &pb.Filter{
			MustNot: []*pb.Condition{fieldMatch("embedder", embedder)},
		},
	})
	if err != nil {
		return nil, nil, domain.IndexFailure(fmt.Errorf("scroll: %w", err))
	}

	hits := make([]Hit, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		hits[i] = hitFromPayload(r.GetPayload(), 0)
	}
	return hits, resp.GetNextPageOffset(), nil
}

func payloadFromMovie(m domain.Movie, embedder string) map[string]*pb.Value {
	p := map[string]*pb.Value{
		"movie_id":     strValue(m.ID),
		"title":        strValue(m.Title),
		"release_date": strValue(m.ReleaseDate),
		"genres":       strValue(m.GenresJoined()),
		"overview":     strValue(m.Overview),
		"embedder":     strValue(embedder),
	}
	if m.PosterPath != "" {
		p["poster_path"] = strValue(m.PosterPath)
	}
	return p
}

func hitFromPayload(payload map[string]*pb.Value, distance float64) Hit {
	h := Hit{Distance: distance}
	for k, v := range payload {
		s := v.GetStringValue()
		switch k {
		case "movie_id":
			h.Movie.ID = s
		case "title":
			h.Movie.Title = s
		case "release_date":
			h.Movie.ReleaseDate = s
		case "genres":
			h.Movie.Genres = domain.SplitGenres(s)
		case "overview":
			h.Movie.Overview = s
		case "poster_path":
			h.Movie.PosterPath = s
		case "embedder":
			h.Embedder = s
		}
	}
	return h
}

func strValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

func fieldMatch(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key: key,
				Match: &pb.Match{
					MatchValue: &pb.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}
