package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/evalgo/memento/events"
	"github.com/evalgo/memento/kgs"
	"github.com/evalgo/memento/mementoerr"
	"github.com/evalgo/memento/model"
)

// syncOp copies op's mutable progress fields into the registry's tracked
// copy, so GetStatus observes progress made mid-operation.
func (e *Engine) syncOp(op *SyncOperation) {
	e.registry.Update(op.ID, func(o *SyncOperation) {
		o.Counters = op.Counters
		o.Errors = append([]RecoverableError(nil), op.Errors...)
		o.Conflicts = append([]Conflict(nil), op.Conflicts...)
	})
	e.persist(op.ID)
}

// runFull performs a full-repository scan: walk roots, parse and upsert
// every file in batches, then deactivate edges not seen since the scan
// started.
func (e *Engine) runFull(ctx context.Context, op *SyncOperation) error {
	if e.lock != nil {
		if err := e.lock.Acquire(ctx, 5*time.Minute); err != nil {
			return mementoerr.New(mementoerr.KindDatabase, "", fmt.Sprintf("acquiring full-sync lock: %v", err), err)
		}
		defer e.lock.Release(context.Background())
	}

	scanStart := op.StartTime
	e.emitProgress(op.ID, "scanning", 0.05)

	files, err := e.walk(op.Roots)
	if err != nil {
		return mementoerr.New(mementoerr.KindDatabase, "", fmt.Sprintf("scanning roots: %v", err), err)
	}

	e.emitProgress(op.ID, "parsing", 0.1)
	if err := e.processFiles(ctx, op, files); err != nil {
		return err
	}

	if _, err := e.kgs.MarkInactiveEdgesNotSeenSince(ctx, scanStart, kgs.MarkInactiveOptions{}); err != nil {
		e.log.WithError(err).Warn("coordinator: markInactiveEdgesNotSeenSince failed during full-sync finalisation")
	}
	return nil
}

// runIncremental applies a set of file-level changes: deletions are handled
// directly, creates/modifies go through the same per-file pipeline a full
// scan uses.
func (e *Engine) runIncremental(ctx context.Context, op *SyncOperation) error {
	e.emitProgress(op.ID, "processing_changes", 0.1)

	var toParse []string
	for _, c := range op.FileChanges {
		if c.Type == "delete" {
			if err := e.deleteFile(ctx, op, c.Path); err != nil {
				op.Errors = append(op.Errors, RecoverableError{File: c.Path, Message: err.Error()})
			}
			continue
		}
		toParse = append(toParse, c.Path)
	}

	if len(toParse) == 0 {
		e.syncOp(op)
		return nil
	}
	return e.processFiles(ctx, op, toParse)
}

// runPartial applies entity-level updates directly, bypassing the parser
//.
func (e *Engine) runPartial(ctx context.Context, op *SyncOperation) error {
	e.emitProgress(op.ID, "processing_partial", 0.1)

	for _, u := range op.Partial {
		select {
		case <-ctx.Done():
			return mementoerr.New(mementoerr.KindCancellation, "", "operation cancelled", ctx.Err())
		default:
		}

		switch u.Type {
		case "delete":
			if err := e.kgs.DeleteEntity(ctx, u.EntityID); err != nil {
				op.Errors = append(op.Errors, RecoverableError{Message: err.Error()})
				continue
			}
		default:
			inbound := entityFromPartialUpdate(u)
			conflict, cerr := detectConflict(ctx, e.kgs.GetEntity, inbound, false)
			if cerr != nil {
				op.Errors = append(op.Errors, RecoverableError{Message: cerr.Error()})
				continue
			}
			persist := inbound
			if conflict != nil {
				op.Conflicts = append(op.Conflicts, *conflict)
				stored, _ := e.kgs.GetEntity(ctx, inbound.ID)
				resolved, proceed := resolveConflict(op.ConflictResolution, stored, inbound)
				if !proceed {
					continue
				}
				persist = resolved
			}
			if _, _, err := e.kgs.CreateEntity(ctx, persist, kgs.CreateEntityOptions{SkipEmbedding: true}); err != nil {
				op.Errors = append(op.Errors, RecoverableError{Message: err.Error()})
				continue
			}
			if u.Type == "create" {
				op.Counters.EntitiesCreated++
			} else {
				op.Counters.EntitiesUpdated++
				e.bus.Emit(events.EntityUpdated, inbound.ID)
			}
		}
	}
	e.syncOp(op)
	return nil
}

// entityFromPartialUpdate builds a model.Entity from a PartialUpdate's
// loosely-typed Changes map, for callers that update the graph directly
// without going through a parser.
func entityFromPartialUpdate(u PartialUpdate) model.Entity {
	e := model.Entity{ID: u.EntityID}
	if u.Changes == nil {
		return e
	}
	if v, ok := u.Changes["type"].(string); ok {
		e.Type = model.EntityType(v)
	}
	if v, ok := u.Changes["path"].(string); ok {
		e.Path = v
	}
	if v, ok := u.Changes["contentHash"].(string); ok {
		e.ContentHash = v
	}
	if v, ok := u.Changes["language"].(string); ok {
		e.Language = v
	}
	if v, ok := u.Changes["name"].(string); ok {
		e.Name = v
	}
	if v, ok := u.Changes["metadata"].(map[string]interface{}); ok {
		e.Metadata = v
	}
	return e
}

// processFiles runs the per-file pipeline over files in op.BatchSize-sized
// batches, fanning each batch out across op.MaxConcurrency workers, then
// resolves any relationships parked during the batches.
func (e *Engine) processFiles(ctx context.Context, op *SyncOperation, files []string) error {
	for _, batch := range batchOf(files, op.BatchSize) {
		select {
		case <-ctx.Done():
			return mementoerr.New(mementoerr.KindCancellation, "", "operation cancelled", ctx.Err())
		default:
		}

		results := e.processBatch(ctx, op, batch)
		e.applyBatch(ctx, op, results)
		e.syncOp(op)
	}

	resolved := resolveParked(ctx, e.kgs, op)
	if len(resolved) > 0 {
		n, err := e.kgs.CreateRelationshipsBulk(ctx, resolved, kgs.NewCreateRelationshipOptions())
		if err != nil {
			op.Errors = append(op.Errors, RecoverableError{Message: err.Error()})
		} else {
			op.Counters.RelationshipsCreated += n
		}
	}
	e.syncOp(op)
	return nil
}

// processBatch runs processFile over batch with bounded concurrency.
func (e *Engine) processBatch(ctx context.Context, op *SyncOperation, batch []string) []fileResult {
	results := make([]fileResult, len(batch))
	sem := make(chan struct{}, op.MaxConcurrency)
	var wg sync.WaitGroup
	for i, path := range batch {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, path string) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = processFile(ctx, e.parser, e.kgs.GetEntity, op.ConflictResolution, path)
		}(i, path)
	}
	wg.Wait()
	return results
}

// applyBatch writes every file result's entities and relationships, parking
// relationships whose target didn't resolve in this write.
func (e *Engine) applyBatch(ctx context.Context, op *SyncOperation, results []fileResult) {
	var entities []model.Entity
	var relationships []model.Relationship
	var relFiles []string

	for _, r := range results {
		op.Counters.FilesProcessed++
		op.Errors = append(op.Errors, r.errors...)
		op.Conflicts = append(op.Conflicts, r.conflicts...)
		entities = append(entities, r.entities...)
		for _, rel := range r.relationships {
			relationships = append(relationships, rel)
			relFiles = append(relFiles, r.file)
		}
	}

	if len(entities) > 0 {
		bulk, err := e.kgs.CreateEntitiesBulk(ctx, entities)
		if err != nil {
			op.Errors = append(op.Errors, RecoverableError{Message: err.Error()})
		} else {
			op.Counters.EntitiesCreated += bulk.Created
			op.Counters.EntitiesUpdated += bulk.Updated
			for original, persisted := range bulk.IDMap {
				if original != persisted {
					rewriteRelationshipEndpoints(relationships, original, persisted)
				}
			}
		}
	}

	if len(relationships) == 0 {
		return
	}

	// Deterministic ids are derived from from/to/type, so they must be
	// (re)computed after endpoint rewriting above, not before.
	for i := range relationships {
		if relationships[i].ID == "" {
			relationships[i].ID = model.DeterministicID(relationships[i].FromEntityID, relationships[i].ToEntityID, relationships[i].Type)
		}
	}

	n, resolvedIdx, err := e.bulkUpsertAndTrackRelationships(ctx, relationships)
	if err != nil {
		op.Errors = append(op.Errors, RecoverableError{Message: err.Error()})
		return
	}
	op.Counters.RelationshipsCreated += n

	for i, rel := range relationships {
		if resolvedIdx[i] {
			continue
		}
		op.unresolvedRelationships = append(op.unresolvedRelationships, unresolvedRelationship{
			FromEntityID: rel.FromEntityID,
			ToPlaceholder: rel.ToEntityID,
			Type: rel.Type,
			FromFile: relFiles[i],
		})
	}
	op.Counters.Unresolved = len(op.unresolvedRelationships)
}

// bulkUpsertAndTrackRelationships upserts rels and reports which indices
// were actually written, so callers can park the rest.
func (e *Engine) bulkUpsertAndTrackRelationships(ctx context.Context, rels []model.Relationship) (int, map[int]bool, error) {
	resolved := make(map[int]bool, len(rels))
	var ok []model.Relationship
	var okIdx []int
	for i, r := range rels {
		if r.FromEntityID == "" || r.ToEntityID == "" {
			continue
		}
		if _, err := e.kgs.GetEntity(ctx, r.ToEntityID); err != nil {
			continue
		}
		ok = append(ok, r)
		okIdx = append(okIdx, i)
	}
	if len(ok) == 0 {
		return 0, resolved, nil
	}
	n, err := e.kgs.CreateRelationshipsBulk(ctx, ok, kgs.NewCreateRelationshipOptions())
	if err != nil {
		return 0, resolved, err
	}
	for _, idx := range okIdx {
		resolved[idx] = true
	}
	return n, resolved, nil
}

func rewriteRelationshipEndpoints(rels []model.Relationship, from, to string) {
	for i := range rels {
		if rels[i].FromEntityID == from {
			rels[i].FromEntityID = to
		}
		if rels[i].ToEntityID == from {
			rels[i].ToEntityID = to
		}
	}
}

// deleteFile removes every entity whose path is file, detaching their edges
//.
func (e *Engine) deleteFile(ctx context.Context, op *SyncOperation, file string) error {
	owned, err := e.kgs.Search(ctx, kgs.SearchRequest{Mode: kgs.SearchStructural, Path: file})
	if err != nil {
		return fmt.Errorf("coordinator: deleteFile: finding entities for %s: %w", file, err)
	}
	for _, ent := range owned.Entities {
		if ent.Path != file {
			continue
		}
		if err := e.kgs.DeleteEntity(ctx, ent.ID); err != nil {
			return fmt.Errorf("coordinator: deleteFile: %w", err)
		}
	}
	return nil
}
