package temporal

import (
	"context"
	"fmt"
	"time"

	"github.com/evalgo/memento/events"
	"github.com/evalgo/memento/model"
)

// CheckpointResult is the outcome of CreateCheckpoint.
type CheckpointResult struct {
	CheckpointID string
	Members []string
}

// CreateCheckpoint materialises the subgraph reachable within hops of seeds
// as a checkpoint node, linking every member via CHECKPOINT_INCLUDES (spec
// §4.3, I6, P7). hops is clamped to [1,5]. When history is disabled it
// returns a synthetic id and does not touch the graph.
func (s *Service) CreateCheckpoint(ctx context.Context, seeds []string, reason model.CheckpointReason, hops int) (CheckpointResult, error) {
	if !s.Enabled() {
		return CheckpointResult{CheckpointID: syntheticID("checkpoint")}, nil
	}
	if len(seeds) == 0 {
		return CheckpointResult{}, fmt.Errorf("temporal: createCheckpoint: no seed entities")
	}

	hops = clampHops(hops)
	now := time.Now().UTC()
	id := "chk_" + base36Now(now)

	members, err := s.reachableMembers(ctx, seeds, hops)
	if err != nil {
		return CheckpointResult{}, fmt.Errorf("temporal: createCheckpoint: %w", err)
	}

	checkpoint := model.Checkpoint{
		ID: id,
		Timestamp: now,
		Reason: reason,
		Hops: hops,
		SeedEntities: seeds,
	}

	createQuery := `
		MERGE (c:checkpoint {checkpointId: $id})
		SET c.id = $id, c.timestamp = $timestamp, c.reason = $reason,
		 c.hops = $hops, c.seedEntities = $seedEntities`
	if _, err := s.store.ExecuteWrite(ctx, createQuery, map[string]interface{}{
		"id": checkpoint.ID,
		"timestamp": checkpoint.Timestamp.Format(time.RFC3339Nano),
		"reason": string(checkpoint.Reason),
		"hops": checkpoint.Hops,
		"seedEntities": checkpoint.SeedEntities,
	}); err != nil {
		return CheckpointResult{}, fmt.Errorf("temporal: createCheckpoint: creating node: %w", err)
	}

	if err := s.linkMembers(ctx, id, members); err != nil {
		return CheckpointResult{}, err
	}

	s.bus.Emit(events.EntityCreated, id)

	if s.cfg.EmbedVersions && s.embedder != nil {
		for _, m := range members {
			if err := s.embedder.DispatchCheckpointMember(ctx, m, id); err != nil {
				s.log.WithError(err).Warn("temporal: embedding checkpoint member failed")
			}
		}
	}

	return CheckpointResult{CheckpointID: id, Members: members}, nil
}

// reachableMembers returns seeds union every node reachable from them
// within hops undirected hops, via a single UNWIND traversal.
func (s *Service) reachableMembers(ctx context.Context, seeds []string, hops int) ([]string, error) {
	query := fmt.Sprintf(`
		UNWIND $seeds AS seedId
		MATCH (seed {id: seedId})
		MATCH (seed)-[*1..%d]-(n)
		RETURN DISTINCT n.id AS id`, hops)

	records, err := s.store.ExecuteRead(ctx, query, map[string]interface{}{"seeds": seeds})
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(seeds)+len(records))
	members := make([]string, 0, len(seeds)+len(records))
	for _, id := range seeds {
		if !seen[id] {
			seen[id] = true
			members = append(members, id)
		}
	}
	for _, rec := range records {
		id, _ := rec["id"].(string)
		if id != "" && !seen[id] {
			seen[id] = true
			members = append(members, id)
		}
	}
	return members, nil
}

func (s *Service) linkMembers(ctx context.Context, checkpointID string, members []string) error {
	if len(members) == 0 {
		return nil
	}
	query := `
		UNWIND $members AS memberId
		MATCH (c:checkpoint {checkpointId: $checkpointId}), (n {id: memberId})
		MERGE (c)-[:CHECKPOINT_INCLUDES]->(n)`
	_, err := s.store.ExecuteWrite(ctx, query, map[string]interface{}{
		"checkpointId": checkpointID,
		"members": members,
	})
	if err != nil {
		return fmt.Errorf("temporal: createCheckpoint: linking members: %w", err)
	}
	return nil
}

// GetCheckpointMembers returns the entity ids linked to a checkpoint.
func (s *Service) GetCheckpointMembers(ctx context.Context, checkpointID string) ([]string, error) {
	records, err := s.store.ExecuteRead(ctx,
		`MATCH (c:checkpoint {checkpointId: $id})-[:CHECKPOINT_INCLUDES]->(n) RETURN n.id AS id`,
		map[string]interface{}{"id": checkpointID})
	if err != nil {
		return nil, fmt.Errorf("temporal: getCheckpointMembers: %w", err)
	}
	members := make([]string, 0, len(records))
	for _, rec := range records {
		if id, ok := rec["id"].(string); ok {
			members = append(members, id)
		}
	}
	return members, nil
}
