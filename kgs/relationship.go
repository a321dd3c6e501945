package kgs

import (
	"context"
	"fmt"
	"time"

	"github.com/evalgo/memento/events"
	"github.com/evalgo/memento/graphstore"
	"github.com/evalgo/memento/model"
)

// CreateRelationshipOptions configures a single relationship upsert.
type CreateRelationshipOptions struct {
	Validate bool // default true; see NewCreateRelationshipOptions
}

// NewCreateRelationshipOptions returns the spec default (Validate: true).
func NewCreateRelationshipOptions() CreateRelationshipOptions {
	return CreateRelationshipOptions{Validate: true}
}

// CreateRelationship upserts rel, assigning the deterministic id
// `rel_<from>_<to>_<TYPE>` when none was supplied (invariant I3), and fires
// the OpenEdge history hook when enabled (invariant I5).
func (s *Service) CreateRelationship(ctx context.Context, rel model.Relationship, opts CreateRelationshipOptions) (string, error) {
	if err := graphstore.ValidateRelationshipType(rel.Type); err != nil {
		return "", err
	}
	if rel.ID == "" {
		rel.ID = model.DeterministicID(rel.FromEntityID, rel.ToEntityID, rel.Type)
	}

	if opts.Validate {
		if err := s.assertEndpointsExist(ctx, rel.FromEntityID, rel.ToEntityID); err != nil {
			return "", err
		}
	}

	now := rel.LastModified
	if now.IsZero() {
		now = time.Now()
	}
	created := rel.Created
	if created.IsZero() {
		created = now
	}

	query := fmt.Sprintf(`
		MATCH (a {id: $from}), (b {id: $to})
		MERGE (a)-[r:%s {id: $id}]->(b)
		ON CREATE SET r.created = $created, r.version = $version
		SET r.lastModified = $lastModified, r.metadata = $metadata
		RETURN r.id AS id`, rel.Type)

	params := map[string]interface{}{
		"from": rel.FromEntityID,
		"to": rel.ToEntityID,
		"id": rel.ID,
		"created": created.UTC().Format(time.RFC3339),
		"version": rel.Version,
		"lastModified": now.UTC().Format(time.RFC3339),
		"metadata": model.FlattenProperties(map[string]interface{}{"metadata": rel.Metadata})["metadata"],
	}

	records, err := s.store.ExecuteWrite(ctx, query, params)
	if err != nil {
		return "", fmt.Errorf("kgs: createRelationship: %w", err)
	}
	if len(records) == 0 {
		return "", fmt.Errorf("kgs: createRelationship: endpoint missing for %s -> %s", rel.FromEntityID, rel.ToEntityID)
	}

	s.bus.Emit(events.RelationshipCreated, rel.ID)

	if s.historyEnabled {
		if err := s.history.OpenEdge(ctx, rel.FromEntityID, rel.ToEntityID, rel.Type, now, ""); err != nil {
			s.log.WithError(err).Warn("kgs: openEdge failed after createRelationship")
		}
	}

	return rel.ID, nil
}

func (s *Service) assertEndpointsExist(ctx context.Context, from, to string) error {
	records, err := s.store.ExecuteRead(ctx,
		`MATCH (a {id: $from}), (b {id: $to}) RETURN a.id AS a, b.id AS b`,
		map[string]interface{}{"from": from, "to": to})
	if err != nil {
		return fmt.Errorf("kgs: createRelationship: validating endpoints: %w", err)
	}
	if len(records) == 0 {
		return fmt.Errorf("kgs: createRelationship: endpoint missing for %s -> %s", from, to)
	}
	return nil
}

// CreateRelationshipsBulk groups rels by type and issues one UNWIND per
// group. opts is not read: endpoint existence is not validated beforehand,
// and a row whose endpoints do not exist matches nothing, is not written,
// and is left out of the returned count.
func (s *Service) CreateRelationshipsBulk(ctx context.Context, rels []model.Relationship, opts CreateRelationshipOptions) (int, error) {
	if len(rels) == 0 {
		return 0, nil
	}

	byType := make(map[model.RelationshipType][]model.Relationship)
	for _, r := range rels {
		if r.ID == "" {
			r.ID = model.DeterministicID(r.FromEntityID, r.ToEntityID, r.Type)
		}
		byType[r.Type] = append(byType[r.Type], r)
	}

	total := 0
	for relType, group := range byType {
		if err := graphstore.ValidateRelationshipType(relType); err != nil {
			return total, err
		}
		n, err := s.bulkUpsertRelType(ctx, relType, group)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func (s *Service) bulkUpsertRelType(ctx context.Context, relType model.RelationshipType, group []model.Relationship) (int, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	rows := make([]map[string]interface{}, len(group))
	for i, r := range group {
		lastModified := r.LastModified
		if lastModified.IsZero() {
			lastModified = time.Now()
		}
		created := r.Created
		if created.IsZero() {
			created = lastModified
		}
		rows[i] = map[string]interface{}{
			"from": r.FromEntityID,
			"to": r.ToEntityID,
			"id": r.ID,
			"created": created.UTC().Format(time.RFC3339),
			"version": r.Version,
			"lastModified": lastModified.UTC().Format(time.RFC3339),
			"metadata": model.FlattenProperties(map[string]interface{}{"metadata": r.Metadata})["metadata"],
		}
	}

	query := fmt.Sprintf(`
		UNWIND $rows AS row
		MATCH (a {id: row.from}), (b {id: row.to})
		MERGE (a)-[r:%s {id: row.id}]->(b)
		ON CREATE SET r.created = row.created, r.version = row.version
		SET r.lastModified = row.lastModified, r.metadata = row.metadata
		RETURN r.id AS id`, relType)

	total := 0
	for _, chunk := range graphstore.Chunk(rows, graphstore.MaxUnwindRows) {
		records, err := s.store.ExecuteWrite(ctx, query, map[string]interface{}{"rows": chunk, "now": now})
		if err != nil {
			return total, fmt.Errorf("kgs: createRelationshipsBulk(%s): %w", relType, err)
		}
		for _, rec := range records {
			if id, ok := rec["id"].(string); ok {
				s.bus.Emit(events.RelationshipCreated, id)
			}
		}
		total += len(records)
	}
	return total, nil
}

// UpsertEdgeEvidenceBulk merges incremental occurrence/evidence/location
// data onto existing relationships, matched by id.
func (s *Service) UpsertEdgeEvidenceBulk(ctx context.Context, rels []model.Relationship) (int, error) {
	if len(rels) == 0 {
		return 0, nil
	}
	now := time.Now().UTC().Format(time.RFC3339)
	rows := make([]map[string]interface{}, len(rels))
	for i, r := range rels {
		locs := make([]map[string]interface{}, len(r.Locations))
		for j, l := range r.Locations {
			locs[j] = map[string]interface{}{"path": l.Path, "line": l.Line, "column": l.Column}
		}
		rows[i] = map[string]interface{}{
			"id": r.ID,
			"occurrences": r.Occurrences,
			"evidence": r.Evidence,
			"locations": locs,
			"lastSeenAt": now,
		}
	}

	query := `
		UNWIND $rows AS row
		MATCH ()-[r {id: row.id}]->()
		SET r.occurrences = coalesce(r.occurrences, 0) + row.occurrences,
		 r.evidence = row.evidence,
		 r.locations = row.locations,
		 r.lastSeenAt = row.lastSeenAt
		RETURN r.id AS id`

	total := 0
	for _, chunk := range graphstore.Chunk(rows, graphstore.MaxUnwindRows) {
		records, err := s.store.ExecuteWrite(ctx, query, map[string]interface{}{"rows": chunk})
		if err != nil {
			return total, fmt.Errorf("kgs: upsertEdgeEvidenceBulk: %w", err)
		}
		total += len(records)
	}
	return total, nil
}

// MarkInactiveOptions restricts MarkInactiveEdgesNotSeenSince to edges from
// a single source file, when ToRefFile is non-empty.
type MarkInactiveOptions struct {
	ToRefFile string
}

// MarkInactiveEdgesNotSeenSince deactivates code edges with lastSeenAt <
// cutoff. When history is enabled it
// also sets validTo via the CloseEdge hook (invariant I5).
func (s *Service) MarkInactiveEdgesNotSeenSince(ctx context.Context, cutoff time.Time, opts MarkInactiveOptions) (int, error) {
	query := `
		MATCH (a)-[r]->(b)
		WHERE r.lastSeenAt < $cutoff AND r.active <> false`
	params := map[string]interface{}{"cutoff": cutoff.UTC().Format(time.RFC3339)}
	if opts.ToRefFile != "" {
		query += ` AND a.path = $path`
		params["path"] = opts.ToRefFile
	}
	query += `
		SET r.active = false
		RETURN r.id AS id, type(r) AS type, a.id AS from, b.id AS to`

	records, err := s.store.ExecuteWrite(ctx, query, params)
	if err != nil {
		return 0, fmt.Errorf("kgs: markInactiveEdgesNotSeenSince: %w", err)
	}

	if s.historyEnabled {
		for _, rec := range records {
			from, _ := rec["from"].(string)
			to, _ := rec["to"].(string)
			relType, _ := rec["type"].(string)
			if err := s.history.CloseEdge(ctx, from, to, model.RelationshipType(relType), cutoff); err != nil {
				s.log.WithError(err).Warn("kgs: closeEdge failed during markInactiveEdgesNotSeenSince")
			}
		}
	}
	return len(records), nil
}

// DeleteEntity hard-deletes a node and detaches its edges, then best-effort
// deletes its embeddings.
func (s *Service) DeleteEntity(ctx context.Context, id string) error {
	_, err := s.store.ExecuteWrite(ctx, `MATCH (n {id: $id}) DETACH DELETE n`, map[string]interface{}{"id": id})
	if err != nil {
		return fmt.Errorf("kgs: deleteEntity: %w", err)
	}
	s.invalidate(id)
	s.bus.Emit(events.EntityDeleted, id)

	if s.dispatcher != nil {
		if derr := s.dispatcher.DeleteEmbedding(ctx, id); derr != nil {
			s.log.WithError(derr).Warn("kgs: deleteEmbedding failed after deleteEntity; vectors will be stale until reconciliation")
		}
	}
	return nil
}
