package temporal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evalgo/memento/graphstore"
	"github.com/evalgo/memento/model"
)

func TestExportCheckpoint_NotFound(t *testing.T) {
	store := newFakeStore()
	store.pushRead(nil, nil)
	s := enabledService(store)

	_, err := s.ExportCheckpoint(context.Background(), "chk_missing")
	assert.Error(t, err)
}

func TestExportCheckpoint_GathersMembersAndInternalRelationships(t *testing.T) {
	store := newFakeStore()
	store.pushRead([]graphstore.Record{
		{"c": map[string]interface{}{"checkpointId": "chk_1", "reason": "manual"}},
	}, nil)
	store.pushRead([]graphstore.Record{
		{"n": map[string]interface{}{"id": "e1", "type": "file"}},
		{"n": map[string]interface{}{"id": "e2", "type": "file"}},
	}, nil)
	store.pushRead([]graphstore.Record{
		{"r": map[string]interface{}{"id": "rel_1"}, "relType": "CALLS", "from": "e1", "to": "e2"},
	}, nil)
	s := enabledService(store)

	export, err := s.ExportCheckpoint(context.Background(), "chk_1")
	require.NoError(t, err)
	assert.Equal(t, "chk_1", export.Checkpoint.ID)
	assert.Equal(t, model.CheckpointManual, export.Checkpoint.Reason)
	require.Len(t, export.Members, 2)
	require.Len(t, export.Relationships, 1)
	assert.Equal(t, model.RelCalls, export.Relationships[0].Type)
	assert.Equal(t, "e1", export.Relationships[0].FromEntityID)
}

func TestImportCheckpoint_MintsNewIDByDefault(t *testing.T) {
	store := newFakeStore()
	store.pushWrite(nil, nil)
	store.pushWrite(nil, nil)
	s := enabledService(store)

	data := CheckpointExport{
		Checkpoint: model.Checkpoint{ID: "chk_original"},
		Members: []model.Entity{{ID: "e1"}},
	}
	id, err := s.ImportCheckpoint(context.Background(), data, ImportOptions{})
	require.NoError(t, err)
	assert.NotEqual(t, "chk_original", id)
}

func TestImportCheckpoint_ReusesIDWhenRequested(t *testing.T) {
	store := newFakeStore()
	store.pushWrite(nil, nil)
	store.pushWrite(nil, nil)
	s := enabledService(store)

	data := CheckpointExport{
		Checkpoint: model.Checkpoint{ID: "chk_original"},
		Members: []model.Entity{{ID: "e1"}},
	}
	id, err := s.ImportCheckpoint(context.Background(), data, ImportOptions{UseOriginalID: true})
	require.NoError(t, err)
	assert.Equal(t, "chk_original", id)
}

func TestImportCheckpoint_LinksOnlyExistingMembersNeverCreatesEntities(t *testing.T) {
	store := newFakeStore()
	store.pushWrite(nil, nil)
	store.pushWrite(nil, nil)
	s := enabledService(store)

	data := CheckpointExport{
		Checkpoint: model.Checkpoint{ID: "chk_1"},
		Members: []model.Entity{{ID: "e1"}, {ID: "e2"}},
	}
	_, err := s.ImportCheckpoint(context.Background(), data, ImportOptions{UseOriginalID: true})
	require.NoError(t, err)
	require.Len(t, store.writes, 2)
	assert.NotContains(t, store.writes[1].query, "CREATE")
	assert.Contains(t, store.writes[1].query, "MATCH (c:checkpoint {checkpointId: $id}), (n {id: memberId})")
}
