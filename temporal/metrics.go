package temporal

import (
	"context"
	"fmt"
)

// CheckpointStats is one checkpoint's member count.
type CheckpointStats struct {
	CheckpointID string
	MemberCount int
}

// LastPruneSummary mirrors the historyMeta node PruneHistory writes.
type LastPruneSummary struct {
	Timestamp string
	CheckpointsDeleted int
	EdgesDeleted int
	VersionsDeleted int
}

// HistoryMetrics is the result of GetHistoryMetrics.
type HistoryMetrics struct {
	NodeCount int
	EdgeCount int
	VersionCount int
	CheckpointCount int
	OpenEdgeCount int
	ClosedEdgeCount int
	Checkpoints []CheckpointStats
	LastPrune *LastPruneSummary
}

// GetHistoryMetrics reports graph-wide history counters plus per-checkpoint
// member stats and the last prune summary, if any.
func (s *Service) GetHistoryMetrics(ctx context.Context) (HistoryMetrics, error) {
	metrics := HistoryMetrics{}

	counts, err := s.store.ExecuteRead(ctx, `
		MATCH (n) WITH count(n) AS nodeCount
		MATCH ()-[r]->() WITH nodeCount, count(r) AS edgeCount
		MATCH (v:version) WITH nodeCount, edgeCount, count(v) AS versionCount
		MATCH (c:checkpoint) WITH nodeCount, edgeCount, versionCount, count(c) AS checkpointCount
		OPTIONAL MATCH ()-[open]->() WHERE open.validTo IS NULL AND open.validFrom IS NOT NULL
		WITH nodeCount, edgeCount, versionCount, checkpointCount, count(open) AS openCount
		OPTIONAL MATCH ()-[closed]->() WHERE closed.validTo IS NOT NULL
		RETURN nodeCount, edgeCount, versionCount, checkpointCount, openCount, count(closed) AS closedCount`,
		nil)
	if err != nil {
		return metrics, fmt.Errorf("temporal: getHistoryMetrics: counting: %w", err)
	}
	if len(counts) > 0 {
		rec := counts[0]
		metrics.NodeCount = asInt(rec["nodeCount"])
		metrics.EdgeCount = asInt(rec["edgeCount"])
		metrics.VersionCount = asInt(rec["versionCount"])
		metrics.CheckpointCount = asInt(rec["checkpointCount"])
		metrics.OpenEdgeCount = asInt(rec["openCount"])
		metrics.ClosedEdgeCount = asInt(rec["closedCount"])
	}

	checkpointRecords, err := s.store.ExecuteRead(ctx, `
		MATCH (c:checkpoint)
		OPTIONAL MATCH (c)-[:CHECKPOINT_INCLUDES]->(n)
		RETURN c.checkpointId AS id, count(n) AS members`, nil)
	if err != nil {
		return metrics, fmt.Errorf("temporal: getHistoryMetrics: checkpoint stats: %w", err)
	}
	for _, rec := range checkpointRecords {
		metrics.Checkpoints = append(metrics.Checkpoints, CheckpointStats{
			CheckpointID: asString(rec["id"]),
			MemberCount: asInt(rec["members"]),
		})
	}

	pruneRecords, err := s.store.ExecuteRead(ctx,
		`MATCH (m:historyMeta {id: 'lastPrune'}) RETURN m`, nil)
	if err != nil {
		return metrics, fmt.Errorf("temporal: getHistoryMetrics: last prune: %w", err)
	}
	if len(pruneRecords) > 0 {
		props, _ := pruneRecords[0]["m"].(map[string]interface{})
		metrics.LastPrune = &LastPruneSummary{
			Timestamp: asString(props["timestamp"]),
			CheckpointsDeleted: asInt(props["checkpointsDeleted"]),
			EdgesDeleted: asInt(props["edgesDeleted"]),
			VersionsDeleted: asInt(props["versionsDeleted"]),
		}
	}

	return metrics, nil
}

func asInt(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
