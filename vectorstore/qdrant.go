package vectorstore

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantStore implements Store over the qdrant gRPC client.
type QdrantStore struct {
	client *qdrant.Client
}

// NewQdrantStore dials addr ("host:port") and returns a ready Store.
func NewQdrantStore(addr string) (*QdrantStore, error) {
	host, port, err := splitAddr(addr)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: %w", err)
	}
	client, err := qdrant.NewClient(&qdrant.Config{Host: host, Port: port})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: connecting to qdrant: %w", err)
	}
	return &QdrantStore{client: client}, nil
}

func splitAddr(addr string) (string, int, error) {
	var host string
	var port int
	if _, err := fmt.Sscanf(addr, "%s", &host); err != nil {
		return "", 0, err
	}
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			host = addr[:i]
			if _, err := fmt.Sscanf(addr[i+1:], "%d", &port); err != nil {
				return "", 0, fmt.Errorf("invalid qdrant address %q: %w", addr, err)
			}
			return host, port, nil
		}
	}
	return addr, 6334, nil
}

// EnsureCollection creates collection with cosine distance if it doesn't
// exist yet, mirroring the teacher's connect-or-bootstrap pattern in
// composite.go's graceful backend initialization.
func (s *QdrantStore) EnsureCollection(ctx context.Context, collection string, vectorSize int) error {
	exists, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return fmt.Errorf("vectorstore: checking collection %s: %w", collection, err)
	}
	if exists {
		return nil
	}
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size: uint64(vectorSize),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("vectorstore: creating collection %s: %w", collection, err)
	}
	return nil
}

func (s *QdrantStore) Upsert(ctx context.Context, collection string, points []Point) error {
	converted := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		converted = append(converted, &qdrant.PointStruct{
			Id: qdrant.NewIDNum(p.ID),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: qdrant.NewValueMap(p.Payload),
		})
	}
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points: converted,
	})
	if err != nil {
		return fmt.Errorf("vectorstore: upsert into %s: %w", collection, err)
	}
	return nil
}

func (s *QdrantStore) Search(ctx context.Context, collection string, vector []float32, limit int, filter *Filter) ([]SearchHit, error) {
	limit64 := uint64(limit)
	query := &qdrant.QueryPoints{
		CollectionName: collection,
		Query: qdrant.NewQuery(vector...),
		Limit: &limit64,
		WithPayload: qdrant.NewWithPayload(true),
	}
	if filter != nil {
		query.Filter = &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch(filter.Key, filter.Value)},
		}
	}

	result, err := s.client.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: search in %s: %w", collection, err)
	}

	hits := make([]SearchHit, 0, len(result))
	for _, point := range result {
		hits = append(hits, SearchHit{
			ID: point.GetId().GetNum(),
			Score: point.GetScore(),
			Payload: valuesToMap(point.GetPayload()),
		})
	}
	return hits, nil
}

func (s *QdrantStore) DeleteByFilter(ctx context.Context, collection string, filter Filter) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch(filter.Key, filter.Value)},
		}),
	})
	if err != nil {
		return fmt.Errorf("vectorstore: delete from %s: %w", collection, err)
	}
	return nil
}

func (s *QdrantStore) Close() error {
	return s.client.Close()
}

func valuesToMap(payload map[string]*qdrant.Value) map[string]interface{} {
	out := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		out[k] = v.AsInterface()
	}
	return out
}
