package embedding

import (
	"context"
	"math/rand"

	"github.com/evalgo/memento/logging"
	"github.com/evalgo/memento/model"
	"github.com/evalgo/memento/vectorstore"
)

// EntityInput is one entity queued for embedding.
type EntityInput struct {
	EntityID string
	Type model.EntityType
	Path string
	Language string
	LastModified string
	Content string
	CheckpointID string
}

// DispatchResult reports, per entity, whether the embedding fell back to a
// random vector so tests can detect degraded operation.
type DispatchResult struct {
	EntityID string
	Fallback bool
	Err error
}

// Dispatcher batches EntityInputs by collection, embeds them, and upserts
// the resulting points into the vector store.
type Dispatcher struct {
	provider Provider
	store vectorstore.Store
	log *logging.ContextLogger
}

// NewDispatcher builds a Dispatcher over provider and store.
func NewDispatcher(provider Provider, store vectorstore.Store, log *logging.ContextLogger) *Dispatcher {
	return &Dispatcher{provider: provider, store: store, log: log}
}

// PointID computes the numeric point id spec §4.4 requires: a 32-bit
// polynomial rolling hash of the entity id, wrapping on overflow, taken as
// an absolute value so it fits the vector store's unsigned point id space.
func PointID(entityID string) uint64 {
	var hash int32
	for _, r := range entityID {
		hash = hash*31 + int32(r)
	}
	abs := int64(hash)
	if abs < 0 {
		abs = -abs
	}
	return uint64(abs)
}

// Dispatch groups entities by collection, embeds each group in one batch
// call, and upserts the resulting points. On provider failure it falls back
// first to per-entity Embed calls, then to a marked random vector, so
// partial progress is always preserved.
func (d *Dispatcher) Dispatch(ctx context.Context, entities []EntityInput) []DispatchResult {
	byCollection := make(map[string][]EntityInput)
	for _, e := range entities {
		collection := vectorstore.CollectionFor(string(e.Type))
		byCollection[collection] = append(byCollection[collection], e)
	}

	var results []DispatchResult
	for collection, group := range byCollection {
		results = append(results, d.dispatchGroup(ctx, collection, group)...)
	}
	return results
}

func (d *Dispatcher) dispatchGroup(ctx context.Context, collection string, group []EntityInput) []DispatchResult {
	inputs := make([]Input, len(group))
	for i, e := range group {
		inputs[i] = Input{EntityID: e.EntityID, Content: e.Content}
	}

	batch, err := d.provider.EmbedBatch(ctx, inputs)
	if err == nil && len(batch.Results) == len(group) {
		points := make([]vectorstore.Point, len(group))
		for i, e := range group {
			points[i] = d.toPoint(e, batch.Results[i].Embedding)
		}
		if err := d.store.Upsert(ctx, collection, points); err == nil {
			results := make([]DispatchResult, len(group))
			for i, e := range group {
				results[i] = DispatchResult{EntityID: e.EntityID}
			}
			return results
		}
		d.log.WithField("collection", collection).Warn("batch upsert failed, falling back to per-entity upsert")
	} else if err != nil {
		d.log.WithError(err).Warn("batch embedding failed, falling back to per-entity embedding")
	}

	// Per-entity fallback: embed and upsert one at a time so a single bad
	// item doesn't sink the whole group.
	results := make([]DispatchResult, 0, len(group))
	for _, e := range group {
		results = append(results, d.dispatchOne(ctx, collection, e))
	}
	return results
}

func (d *Dispatcher) dispatchOne(ctx context.Context, collection string, e EntityInput) DispatchResult {
	vec, fallback, err := d.embedOrFallback(ctx, e.Content)
	if err != nil {
		return DispatchResult{EntityID: e.EntityID, Err: err}
	}
	point := d.toPoint(e, vec)
	if err := d.store.Upsert(ctx, collection, []vectorstore.Point{point}); err != nil {
		return DispatchResult{EntityID: e.EntityID, Fallback: fallback, Err: err}
	}
	return DispatchResult{EntityID: e.EntityID, Fallback: fallback}
}

// embedOrFallback embeds text, degrading to a marked random unit-variance
// vector on provider failure.
func (d *Dispatcher) embedOrFallback(ctx context.Context, text string) ([]float32, bool, error) {
	res, err := d.provider.Embed(ctx, text)
	if err == nil {
		return res.Embedding, false, nil
	}
	d.log.WithError(err).Warn("embedding provider failed, emitting random fallback vector")
	return randomVector(d.provider.VectorSize()), true, nil
}

func randomVector(size int) []float32 {
	vec := make([]float32, size)
	for i := range vec {
		vec[i] = float32(rand.NormFloat64())
	}
	return vec
}

func (d *Dispatcher) toPoint(e EntityInput, vector []float32) vectorstore.Point {
	payload := map[string]interface{}{
		"entityId": e.EntityID,
		"type": string(e.Type),
		"path": e.Path,
		"language": e.Language,
		"lastModified": e.LastModified,
	}
	if e.CheckpointID != "" {
		payload["checkpointId"] = e.CheckpointID
	}
	return vectorstore.Point{
		ID: PointID(e.EntityID),
		Vector: vector,
		Payload: payload,
	}
}

// DispatchCheckpointMember embeds entityID tagged with checkpointId, for
// HISTORY_EMBED_VERSIONS checkpoints. Implements
// temporal.VersionEmbedder.
func (d *Dispatcher) DispatchCheckpointMember(ctx context.Context, entityID, checkpointID string) error {
	results := d.Dispatch(ctx, []EntityInput{{
		EntityID: entityID,
		Content: entityID,
		CheckpointID: checkpointID,
	}})
	for _, r := range results {
		if r.Err != nil {
			return r.Err
		}
	}
	return nil
}

// DeleteEmbedding deletes every point carrying entityId in its payload from
// both collections, idempotently.
func (d *Dispatcher) DeleteEmbedding(ctx context.Context, entityID string) error {
	filter := vectorstore.Filter{Key: "entityId", Value: entityID}
	if err := d.store.DeleteByFilter(ctx, vectorstore.CollectionCode, filter); err != nil {
		return err
	}
	return d.store.DeleteByFilter(ctx, vectorstore.CollectionDocumentation, filter)
}
