package coordinator

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperationStore_SaveAndLoadAllRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "operations.db")
	store, err := OpenOperationStore(path)
	require.NoError(t, err)
	defer store.Close()

	op := newOperation("op_1", OperationFull, StartOptions{})
	op.Status = StatusCompleted
	require.NoError(t, store.Save(op))

	loaded, err := store.LoadAll()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "op_1", loaded[0].ID)
	assert.Equal(t, StatusCompleted, loaded[0].Status)
}

func TestOperationStore_SaveOverwritesExistingEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "operations.db")
	store, err := OpenOperationStore(path)
	require.NoError(t, err)
	defer store.Close()

	op := newOperation("op_1", OperationFull, StartOptions{})
	require.NoError(t, store.Save(op))
	op.Status = StatusFailed
	require.NoError(t, store.Save(op))

	loaded, err := store.LoadAll()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, StatusFailed, loaded[0].Status)
}

func TestOperationStore_LoadAllOnEmptyStoreReturnsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "operations.db")
	store, err := OpenOperationStore(path)
	require.NoError(t, err)
	defer store.Close()

	loaded, err := store.LoadAll()
	require.NoError(t, err)
	assert.Empty(t, loaded)
}
