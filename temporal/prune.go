package temporal

import (
	"context"
	"fmt"
	"time"
)

// PruneOptions configures PruneHistory.
type PruneOptions struct {
	RetentionDays int
	DryRun bool
}

// PruneResult reports what PruneHistory deleted, or would delete under
// DryRun.
type PruneResult struct {
	CheckpointsDeleted int
	EdgesDeleted int
	VersionsDeleted int
	DryRun bool
	Cutoff time.Time
}

// PruneHistory deletes checkpoints older than the retention cutoff, edges
// closed before it, and versions older than it that no surviving checkpoint
// references.
func (s *Service) PruneHistory(ctx context.Context, opts PruneOptions) (PruneResult, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -opts.RetentionDays)
	cutoffStr := cutoff.Format(time.RFC3339Nano)
	result := PruneResult{DryRun: opts.DryRun, Cutoff: cutoff}

	checkpointsDeleted, err := s.pruneCheckpoints(ctx, cutoffStr, opts.DryRun)
	if err != nil {
		return result, err
	}
	result.CheckpointsDeleted = checkpointsDeleted

	edgesDeleted, err := s.pruneEdges(ctx, cutoffStr, opts.DryRun)
	if err != nil {
		return result, err
	}
	result.EdgesDeleted = edgesDeleted

	versionsDeleted, err := s.pruneVersions(ctx, cutoffStr, opts.DryRun)
	if err != nil {
		return result, err
	}
	result.VersionsDeleted = versionsDeleted

	if !opts.DryRun {
		if err := s.recordLastPrune(ctx, result); err != nil {
			s.log.WithError(err).Warn("temporal: recording lastPrune summary failed")
		}
	}
	return result, nil
}

func (s *Service) pruneCheckpoints(ctx context.Context, cutoffStr string, dryRun bool) (int, error) {
	if dryRun {
		records, err := s.store.ExecuteRead(ctx,
			`MATCH (c:checkpoint) WHERE c.timestamp < $cutoff RETURN c.checkpointId AS id`,
			map[string]interface{}{"cutoff": cutoffStr})
		if err != nil {
			return 0, fmt.Errorf("temporal: pruneHistory: counting checkpoints: %w", err)
		}
		return len(records), nil
	}
	records, err := s.store.ExecuteWrite(ctx,
		`MATCH (c:checkpoint) WHERE c.timestamp < $cutoff DETACH DELETE c RETURN c.checkpointId AS id`,
		map[string]interface{}{"cutoff": cutoffStr})
	if err != nil {
		return 0, fmt.Errorf("temporal: pruneHistory: deleting checkpoints: %w", err)
	}
	return len(records), nil
}

func (s *Service) pruneEdges(ctx context.Context, cutoffStr string, dryRun bool) (int, error) {
	if dryRun {
		records, err := s.store.ExecuteRead(ctx,
			`MATCH ()-[r]->() WHERE r.validTo IS NOT NULL AND r.validTo < $cutoff RETURN r.id AS id`,
			map[string]interface{}{"cutoff": cutoffStr})
		if err != nil {
			return 0, fmt.Errorf("temporal: pruneHistory: counting edges: %w", err)
		}
		return len(records), nil
	}
	records, err := s.store.ExecuteWrite(ctx,
		`MATCH ()-[r]->() WHERE r.validTo IS NOT NULL AND r.validTo < $cutoff DELETE r RETURN r.id AS id`,
		map[string]interface{}{"cutoff": cutoffStr})
	if err != nil {
		return 0, fmt.Errorf("temporal: pruneHistory: deleting edges: %w", err)
	}
	return len(records), nil
}

// pruneVersions deletes versions older than cutoff that aren't linked from a
// checkpoint whose own timestamp is still >= cutoff (P6).
func (s *Service) pruneVersions(ctx context.Context, cutoffStr string, dryRun bool) (int, error) {
	guard := `
		MATCH (v:version) WHERE v.timestamp < $cutoff
		AND NOT EXISTS {
			MATCH (c:checkpoint)-[:CHECKPOINT_INCLUDES]->(v)
			WHERE c.timestamp >= $cutoff
		}`
	if dryRun {
		records, err := s.store.ExecuteRead(ctx, guard+" RETURN v.id AS id",
			map[string]interface{}{"cutoff": cutoffStr})
		if err != nil {
			return 0, fmt.Errorf("temporal: pruneHistory: counting versions: %w", err)
		}
		return len(records), nil
	}
	records, err := s.store.ExecuteWrite(ctx, guard+" DETACH DELETE v RETURN v.id AS id",
		map[string]interface{}{"cutoff": cutoffStr})
	if err != nil {
		return 0, fmt.Errorf("temporal: pruneHistory: deleting versions: %w", err)
	}
	return len(records), nil
}

func (s *Service) recordLastPrune(ctx context.Context, result PruneResult) error {
	query := `
		MERGE (m:historyMeta {id: 'lastPrune'})
		SET m.timestamp = $timestamp, m.checkpointsDeleted = $checkpointsDeleted,
		 m.edgesDeleted = $edgesDeleted, m.versionsDeleted = $versionsDeleted`
	_, err := s.store.ExecuteWrite(ctx, query, map[string]interface{}{
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"checkpointsDeleted": result.CheckpointsDeleted,
		"edgesDeleted": result.EdgesDeleted,
		"versionsDeleted": result.VersionsDeleted,
	})
	return err
}
