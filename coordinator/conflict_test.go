package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evalgo/memento/model"
)

func getterReturning(e model.Entity, err error) func(context.Context, string) (model.Entity, error) {
	return func(ctx context.Context, id string) (model.Entity, error) { return e, err }
}

func TestDetectConflict_NewEntityIsNotAConflict(t *testing.T) {
	conflict, err := detectConflict(context.Background(), getterReturning(model.Entity{}, errEntityNotFound), model.Entity{ID: "e1"}, false)
	require.NoError(t, err)
	assert.Nil(t, conflict)
}

func TestDetectConflict_DeletingMissingEntityIsDeletionConflict(t *testing.T) {
	conflict, err := detectConflict(context.Background(), getterReturning(model.Entity{}, errEntityNotFound), model.Entity{ID: "e1"}, true)
	require.NoError(t, err)
	require.NotNil(t, conflict)
	assert.Equal(t, ConflictDeletion, conflict.Kind)
}

func TestDetectConflict_DeletingExistingEntityIsNotAConflict(t *testing.T) {
	stored := model.Entity{ID: "e1", ContentHash: "h1"}
	conflict, err := detectConflict(context.Background(), getterReturning(stored, nil), model.Entity{ID: "e1"}, true)
	require.NoError(t, err)
	assert.Nil(t, conflict)
}

func TestDetectConflict_SameContentHashIsNotAConflict(t *testing.T) {
	stored := model.Entity{ID: "e1", ContentHash: "h1"}
	inbound := model.Entity{ID: "e1", ContentHash: "h1"}
	conflict, err := detectConflict(context.Background(), getterReturning(stored, nil), inbound, false)
	require.NoError(t, err)
	assert.Nil(t, conflict)
}

func TestDetectConflict_OlderInboundIsVersionConflict(t *testing.T) {
	now := time.Now()
	stored := model.Entity{ID: "e1", ContentHash: "h1", LastModified: now}
	inbound := model.Entity{ID: "e1", ContentHash: "h2", LastModified: now.Add(-time.Hour)}

	conflict, err := detectConflict(context.Background(), getterReturning(stored, nil), inbound, false)
	require.NoError(t, err)
	require.NotNil(t, conflict)
	assert.Equal(t, ConflictVersion, conflict.Kind)
}

func TestDetectConflict_NewerInboundIsNotAConflict(t *testing.T) {
	now := time.Now()
	stored := model.Entity{ID: "e1", ContentHash: "h1", LastModified: now.Add(-time.Hour)}
	inbound := model.Entity{ID: "e1", ContentHash: "h2", LastModified: now}

	conflict, err := detectConflict(context.Background(), getterReturning(stored, nil), inbound, false)
	require.NoError(t, err)
	assert.Nil(t, conflict)
}

func TestResolveConflict_Overwrite(t *testing.T) {
	inbound := model.Entity{ID: "e1", ContentHash: "h2"}
	result, proceed := resolveConflict(ResolveOverwrite, model.Entity{ID: "e1", ContentHash: "h1"}, inbound)
	assert.True(t, proceed)
	assert.Equal(t, inbound, result)
}

func TestResolveConflict_MergeKeepsNewestLastModifiedAndUnionsMetadata(t *testing.T) {
	now := time.Now()
	stored := model.Entity{ID: "e1", LastModified: now, Metadata: map[string]interface{}{"a": 1}}
	inbound := model.Entity{ID: "e1", LastModified: now.Add(-time.Hour), Metadata: map[string]interface{}{"b": 2}}

	result, proceed := resolveConflict(ResolveMerge, stored, inbound)
	assert.True(t, proceed)
	assert.Equal(t, now, result.LastModified)
	assert.Equal(t, 1, result.Metadata["a"])
	assert.Equal(t, 2, result.Metadata["b"])
}

func TestResolveConflict_SkipAndManualDoNotProceed(t *testing.T) {
	_, proceed := resolveConflict(ResolveSkip, model.Entity{}, model.Entity{})
	assert.False(t, proceed)

	_, proceed = resolveConflict(ResolveManual, model.Entity{}, model.Entity{})
	assert.False(t, proceed)
}
