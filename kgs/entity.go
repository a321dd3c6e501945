package kgs

import (
	"context"
	"fmt"
	"time"

	"github.com/evalgo/memento/embedding"
	"github.com/evalgo/memento/events"
	"github.com/evalgo/memento/model"
)

// CreateEntityOptions configures a single entity upsert.
type CreateEntityOptions struct {
	SkipEmbedding bool
	ChangeSetID string
	Content string // text to embed when SkipEmbedding is false
}

// CreateEntity upserts e using one of the two MERGE patterns spec §4.2
// names: codebase entities key on (type, path) and preserve their existing
// id; everything else keys on id directly. Returns the persisted id, which
// callers must adopt — it may differ from e.ID when (type, path) already
// existed under a different id — and whether the MERGE actually created a
// new node (false means an existing node was matched and updated).
func (s *Service) CreateEntity(ctx context.Context, e model.Entity, opts CreateEntityOptions) (string, bool, error) {
	label := labelFor(e.Type)
	props := propsFromEntity(e)

	var query string
	var params map[string]interface{}

	if model.IsCodebaseEntity(e.Type) {
		query = fmt.Sprintf(`
			MERGE (n:%s {type: $type, path: $path})
			ON CREATE SET n.id = $id, n._created = true
			WITH n, n._created AS wasCreated
			SET n += $props
			REMOVE n._created
			RETURN n.id AS id, coalesce(wasCreated, false) AS created`, label)
		params = map[string]interface{}{
			"type": string(e.Type),
			"path": e.Path,
			"id": e.ID,
			"props": props,
		}
	} else {
		query = fmt.Sprintf(`
			MERGE (n:%s {id: $id})
			ON CREATE SET n._created = true
			WITH n, n._created AS wasCreated
			SET n += $props
			REMOVE n._created
			RETURN n.id AS id, coalesce(wasCreated, false) AS created`, label)
		params = map[string]interface{}{
			"id": e.ID,
			"props": props,
		}
	}

	records, err := s.store.ExecuteWrite(ctx, query, params)
	if err != nil {
		return "", false, fmt.Errorf("kgs: createEntity: %w", err)
	}
	if len(records) == 0 {
		return "", false, fmt.Errorf("kgs: createEntity: no id returned")
	}
	persistedID, _ := records[0]["id"].(string)
	if persistedID == "" {
		persistedID = e.ID
	}
	created, _ := records[0]["created"].(bool)

	s.invalidate(persistedID)
	if created {
		s.bus.Emit(events.EntityCreated, persistedID)
	} else {
		s.bus.Emit(events.EntityUpdated, persistedID)
	}

	if s.historyEnabled {
		persisted := e
		persisted.ID = persistedID
		if _, err := s.history.AppendVersion(ctx, persisted, opts.ChangeSetID); err != nil {
			s.log.WithError(err).Warn("kgs: appendVersion failed after createEntity")
		}
	}

	if !opts.SkipEmbedding && s.dispatcher != nil && opts.Content != "" {
		s.dispatchEmbedding(ctx, e, persistedID, opts.Content)
	}

	return persistedID, created, nil
}

func (s *Service) dispatchEmbedding(ctx context.Context, e model.Entity, persistedID, content string) {
	input := embedding.EntityInput{
		EntityID: persistedID,
		Type: e.Type,
		Path: e.Path,
		Language: e.Language,
		LastModified: e.LastModified.UTC().Format(time.RFC3339),
		Content: content,
	}
	results := s.dispatcher.Dispatch(ctx, []embedding.EntityInput{input})
	for _, r := range results {
		if r.Err != nil {
			s.log.WithError(r.Err).Warn("kgs: embedding dispatch failed for entity")
		}
	}
}
