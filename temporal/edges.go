package temporal

import (
	"context"
	"fmt"
	"time"

	"github.com/evalgo/memento/model"
)

// OpenEdge upserts the edge between from and to, setting validFrom on
// create and leaving validTo unset for an open edge.
// Implements kgs.History.
func (s *Service) OpenEdge(ctx context.Context, from, to string, relType model.RelationshipType, ts time.Time, changeSetID string) error {
	if !s.Enabled() {
		return nil
	}

	id := model.DeterministicID(from, to, relType)
	query := fmt.Sprintf(`
		MATCH (a {id: $from}), (b {id: $to})
		MERGE (a)-[r:%s {id: $id}]->(b)
		ON CREATE SET r.validFrom = $validFrom, r.version = 1
		ON MATCH SET r.version = coalesce(r.version, 0) + 1
		SET r.validTo = null, r.changeSetId = $changeSetId`, relType)

	_, err := s.store.ExecuteWrite(ctx, query, map[string]interface{}{
		"from": from,
		"to": to,
		"id": id,
		"validFrom": ts.UTC().Format(time.RFC3339Nano),
		"changeSetId": changeSetID,
	})
	if err != nil {
		return fmt.Errorf("temporal: openEdge: %w", err)
	}
	return nil
}

// CloseEdge sets validTo on the edge between from and to, unless it is
// already closed.
// Implements kgs.History.
func (s *Service) CloseEdge(ctx context.Context, from, to string, relType model.RelationshipType, ts time.Time) error {
	if !s.Enabled() {
		return nil
	}

	query := fmt.Sprintf(`
		MATCH (a {id: $from})-[r:%s]->(b {id: $to})
		SET r.validTo = coalesce(r.validTo, $validTo)`, relType)

	_, err := s.store.ExecuteWrite(ctx, query, map[string]interface{}{
		"from": from,
		"to": to,
		"validTo": ts.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("temporal: closeEdge: %w", err)
	}
	return nil
}
