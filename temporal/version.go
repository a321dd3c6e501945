package temporal

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/evalgo/memento/model"
)

// AppendVersion records a new version node for e, linking it to the entity
// via OF and to its predecessor via PREVIOUS_VERSION.
// Implements kgs.History.
func (s *Service) AppendVersion(ctx context.Context, e model.Entity, changeSetID string) (string, error) {
	if !s.Enabled() {
		return syntheticID("version"), nil
	}

	previousID, err := s.latestVersionID(ctx, e.ID)
	if err != nil {
		return "", fmt.Errorf("temporal: appendVersion: finding predecessor: %w", err)
	}

	v := model.Version{
		ID: "ver_" + uuid.NewString(),
		EntityID: e.ID,
		Hash: e.ContentHash,
		Timestamp: time.Now().UTC(),
		Path: e.Path,
		Language: e.Language,
		ChangeSetID: changeSetID,
		PreviousVersionID: previousID,
	}

	query := `
		MATCH (e {id: $entityId})
		MERGE (v:version {id: $id})
		SET v.entityId = $entityId, v.hash = $hash, v.timestamp = $timestamp,
		 v.path = $path, v.language = $language, v.changeSetId = $changeSetId
		MERGE (v)-[:OF]->(e)`
	params := map[string]interface{}{
		"id": v.ID,
		"entityId": v.EntityID,
		"hash": v.Hash,
		"timestamp": v.Timestamp.Format(time.RFC3339Nano),
		"path": v.Path,
		"language": v.Language,
		"changeSetId": v.ChangeSetID,
	}
	if _, err := s.store.ExecuteWrite(ctx, query, params); err != nil {
		return "", fmt.Errorf("temporal: appendVersion: %w", err)
	}

	if previousID != "" {
		linkQuery := `
			MATCH (v:version {id: $id}), (p:version {id: $previousId})
			MERGE (v)-[:PREVIOUS_VERSION]->(p)`
		if _, err := s.store.ExecuteWrite(ctx, linkQuery, map[string]interface{}{
			"id": v.ID, "previousId": previousID,
		}); err != nil {
			return "", fmt.Errorf("temporal: appendVersion: linking predecessor: %w", err)
		}
	}

	return v.ID, nil
}

func (s *Service) latestVersionID(ctx context.Context, entityID string) (string, error) {
	records, err := s.store.ExecuteRead(ctx,
		`MATCH (v:version {entityId: $entityId}) RETURN v.id AS id ORDER BY v.timestamp DESC LIMIT 1`,
		map[string]interface{}{"entityId": entityID})
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "", nil
	}
	id, _ := records[0]["id"].(string)
	return id, nil
}
