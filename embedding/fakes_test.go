package embedding

import (
	"context"
	"fmt"

	"github.com/evalgo/memento/vectorstore"
)

// fakeProvider is a hand-rolled in-memory Provider: deterministic per-call
// behavior controlled by the test, not a generated mock.
type fakeProvider struct {
	vectorSize int
	failBatch bool
	failEmbed bool
	embedCalls int
	batchCalls int
}

func (p *fakeProvider) Embed(ctx context.Context, text string) (Result, error) {
	p.embedCalls++
	if p.failEmbed {
		return Result{}, fmt.Errorf("fakeProvider: embed failed")
	}
	return Result{Embedding: fixedVector(p.vectorSize, text)}, nil
}

func (p *fakeProvider) EmbedBatch(ctx context.Context, inputs []Input) (BatchResult, error) {
	p.batchCalls++
	if p.failBatch {
		return BatchResult{}, fmt.Errorf("fakeProvider: batch embed failed")
	}
	results := make([]Result, len(inputs))
	for i, in := range inputs {
		results[i] = Result{Embedding: fixedVector(p.vectorSize, in.Content)}
	}
	return BatchResult{Results: results}, nil
}

func (p *fakeProvider) VectorSize() int { return p.vectorSize }

func fixedVector(size int, seed string) []float32 {
	vec := make([]float32, size)
	for i, r := range seed {
		vec[i%size] += float32(r)
	}
	return vec
}

// fakeVectorStore is an in-memory vectorstore.Store: real storage, no
// network, so Upsert/Search/DeleteByFilter behave exactly like the
// production client would for these tests' purposes.
type fakeVectorStore struct {
	points map[string][]vectorstore.Point
	failUpsert bool
	upsertCalls int
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{points: make(map[string][]vectorstore.Point)}
}

func (s *fakeVectorStore) EnsureCollection(ctx context.Context, collection string, vectorSize int) error {
	return nil
}

func (s *fakeVectorStore) Upsert(ctx context.Context, collection string, points []vectorstore.Point) error {
	s.upsertCalls++
	if s.failUpsert {
		return fmt.Errorf("fakeVectorStore: upsert failed")
	}
	s.points[collection] = append(s.points[collection], points...)
	return nil
}

func (s *fakeVectorStore) Search(ctx context.Context, collection string, vector []float32, limit int, filter *vectorstore.Filter) ([]vectorstore.SearchHit, error) {
	var hits []vectorstore.SearchHit
	for _, p := range s.points[collection] {
		if filter != nil {
			if v, _ := p.Payload[filter.Key].(string); v != filter.Value {
				continue
			}
		}
		hits = append(hits, vectorstore.SearchHit{ID: p.ID, Payload: p.Payload})
		if len(hits) >= limit {
			break
		}
	}
	return hits, nil
}

func (s *fakeVectorStore) DeleteByFilter(ctx context.Context, collection string, filter vectorstore.Filter) error {
	kept := s.points[collection][:0]
	for _, p := range s.points[collection] {
		if v, _ := p.Payload[filter.Key].(string); v == filter.Value {
			continue
		}
		kept = append(kept, p)
	}
	s.points[collection] = kept
	return nil
}

func (s *fakeVectorStore) Close() error { return nil }
