package kgs

import (
	"context"
	"fmt"

	"github.com/evalgo/memento/events"
	"github.com/evalgo/memento/graphstore"
	"github.com/evalgo/memento/model"
)

// BulkEntityResult reports the outcome of CreateEntitiesBulk.
type BulkEntityResult struct {
	// IDMap maps each input entity's in-memory id to its persisted id.
	// Callers must adopt IDMap[e.ID] for every subsequent reference,
	// including the embedding points fed to the dispatcher.
	IDMap map[string]string
	// Created counts rows the MERGE actually created; Updated counts rows
	// that matched an existing node. A re-run with no changes reports
	// Created == 0.
	Created int
	Updated int
}

// CreateEntitiesBulk groups entities by primary label and performs one
// UNWIND-based MERGE per group. After a
// path-keyed upsert it fetches persisted ids in the same round trip so
// in-memory ids can be rewritten before relationships reference them.
func (s *Service) CreateEntitiesBulk(ctx context.Context, entities []model.Entity) (BulkEntityResult, error) {
	result := BulkEntityResult{IDMap: make(map[string]string, len(entities))}
	if len(entities) == 0 {
		return result, nil
	}

	byLabel := make(map[string][]model.Entity)
	for _, e := range entities {
		byLabel[labelFor(e.Type)] = append(byLabel[labelFor(e.Type)], e)
	}

	for label, group := range byLabel {
		if err := s.bulkUpsertGroup(ctx, label, group, &result); err != nil {
			return result, err
		}
	}
	return result, nil
}

func (s *Service) bulkUpsertGroup(ctx context.Context, label string, group []model.Entity, result *BulkEntityResult) error {
	codebase := model.IsCodebaseEntity(group[0].Type)

	rows := make([]map[string]interface{}, len(group))
	for i, e := range group {
		rows[i] = map[string]interface{}{
			"id": e.ID,
			"type": string(e.Type),
			"path": e.Path,
			"props": propsFromEntity(e),
		}
	}

	var query string
	if codebase {
		query = fmt.Sprintf(`
			UNWIND $rows AS row
			MERGE (n:%s {type: row.type, path: row.path})
			ON CREATE SET n.id = row.id, n._created = true
			WITH row, n, n._created AS wasCreated
			SET n += row.props
			REMOVE n._created
			RETURN row.id AS originalId, n.id AS persistedId, coalesce(wasCreated, false) AS created`, label)
	} else {
		query = fmt.Sprintf(`
			UNWIND $rows AS row
			MERGE (n:%s {id: row.id})
			ON CREATE SET n._created = true
			WITH row, n, n._created AS wasCreated
			SET n += row.props
			REMOVE n._created
			RETURN row.id AS originalId, n.id AS persistedId, coalesce(wasCreated, false) AS created`, label)
	}

	for _, chunk := range graphstore.Chunk(rows, graphstore.MaxUnwindRows) {
		records, err := s.store.ExecuteWrite(ctx, query, map[string]interface{}{"rows": chunk})
		if err != nil {
			return fmt.Errorf("kgs: createEntitiesBulk(%s): %w", label, err)
		}

		for _, rec := range records {
			original, _ := rec["originalId"].(string)
			persisted, _ := rec["persistedId"].(string)
			if persisted == "" {
				persisted = original
			}
			created, _ := rec["created"].(bool)
			result.IDMap[original] = persisted
			s.invalidate(persisted)
			if created {
				result.Created++
				s.bus.Emit(events.EntityCreated, persisted)
			} else {
				result.Updated++
				s.bus.Emit(events.EntityUpdated, persisted)
			}
		}
	}
	return nil
}
