package temporal

import (
	"context"
	"fmt"
	"time"

	"github.com/evalgo/memento/model"
)

// CheckpointExport is the serializable form exportCheckpoint/importCheckpoint
// exchange.
type CheckpointExport struct {
	Checkpoint model.Checkpoint
	Members []model.Entity
	Relationships []model.Relationship
}

// ExportCheckpoint yields the checkpoint node, its members, and the
// relationships that exist between those members.
func (s *Service) ExportCheckpoint(ctx context.Context, checkpointID string) (CheckpointExport, error) {
	records, err := s.store.ExecuteRead(ctx,
		`MATCH (c:checkpoint {checkpointId: $id}) RETURN c`,
		map[string]interface{}{"id": checkpointID})
	if err != nil {
		return CheckpointExport{}, fmt.Errorf("temporal: exportCheckpoint: %w", err)
	}
	if len(records) == 0 {
		return CheckpointExport{}, fmt.Errorf("temporal: exportCheckpoint: checkpoint %s not found", checkpointID)
	}
	props, _ := records[0]["c"].(map[string]interface{})
	checkpoint := model.Checkpoint{
		ID: asString(props["checkpointId"]),
		Timestamp: asTime(props["timestamp"]),
		Reason: model.CheckpointReason(asString(props["reason"])),
		Hops: asInt(props["hops"]),
	}

	memberRecords, err := s.store.ExecuteRead(ctx,
		`MATCH (c:checkpoint {checkpointId: $id})-[:CHECKPOINT_INCLUDES]->(n) RETURN n`,
		map[string]interface{}{"id": checkpointID})
	if err != nil {
		return CheckpointExport{}, fmt.Errorf("temporal: exportCheckpoint: members: %w", err)
	}
	members := make([]model.Entity, 0, len(memberRecords))
	memberIDs := make([]string, 0, len(memberRecords))
	for _, rec := range memberRecords {
		nodeProps, _ := rec["n"].(map[string]interface{})
		e := entityFromProps(nodeProps)
		members = append(members, e)
		memberIDs = append(memberIDs, e.ID)
	}

	relRecords, err := s.store.ExecuteRead(ctx, `
		MATCH (a)-[r]->(b)
		WHERE a.id IN $memberIds AND b.id IN $memberIds
		RETURN r, type(r) AS relType, a.id AS from, b.id AS to`,
		map[string]interface{}{"memberIds": memberIDs})
	if err != nil {
		return CheckpointExport{}, fmt.Errorf("temporal: exportCheckpoint: relationships: %w", err)
	}
	rels := make([]model.Relationship, 0, len(relRecords))
	for _, rec := range relRecords {
		relProps, _ := rec["r"].(map[string]interface{})
		rel := relationshipFromProps(relProps)
		rel.Type = model.RelationshipType(asString(rec["relType"]))
		rel.FromEntityID = asString(rec["from"])
		rel.ToEntityID = asString(rec["to"])
		rels = append(rels, rel)
	}

	return CheckpointExport{Checkpoint: checkpoint, Members: members, Relationships: rels}, nil
}

// ImportOptions configures ImportCheckpoint.
type ImportOptions struct {
	UseOriginalID bool
}

// ImportCheckpoint merges data.Checkpoint as a node and links only the
// members that already exist in the graph. It never creates entity nodes.
func (s *Service) ImportCheckpoint(ctx context.Context, data CheckpointExport, opts ImportOptions) (string, error) {
	if !s.Enabled() {
		return syntheticID("checkpoint"), nil
	}
	id := data.Checkpoint.ID
	if !opts.UseOriginalID || id == "" {
		id = "chk_" + base36Now(time.Now().UTC())
	}

	query := `
		MERGE (c:checkpoint {checkpointId: $id})
		SET c.id = $id, c.timestamp = $timestamp, c.reason = $reason, c.hops = $hops`
	if _, err := s.store.ExecuteWrite(ctx, query, map[string]interface{}{
		"id": id,
		"timestamp": data.Checkpoint.Timestamp.Format(time.RFC3339Nano),
		"reason": string(data.Checkpoint.Reason),
		"hops": data.Checkpoint.Hops,
	}); err != nil {
		return "", fmt.Errorf("temporal: importCheckpoint: %w", err)
	}

	memberIDs := make([]string, 0, len(data.Members))
	for _, m := range data.Members {
		memberIDs = append(memberIDs, m.ID)
	}
	linkQuery := `
		UNWIND $memberIds AS memberId
		MATCH (c:checkpoint {checkpointId: $id}), (n {id: memberId})
		MERGE (c)-[:CHECKPOINT_INCLUDES]->(n)`
	if _, err := s.store.ExecuteWrite(ctx, linkQuery, map[string]interface{}{
		"id": id,
		"memberIds": memberIDs,
	}); err != nil {
		return "", fmt.Errorf("temporal: importCheckpoint: linking members: %w", err)
	}

	return id, nil
}
