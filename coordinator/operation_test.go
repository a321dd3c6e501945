package coordinator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewOperation_AppliesDefaults(t *testing.T) {
	op := newOperation("op_1", OperationFull, StartOptions{})
	assert.Equal(t, StatusPending, op.Status)
	assert.Equal(t, ResolveOverwrite, op.ConflictResolution)
	assert.Equal(t, 4, op.MaxConcurrency)
	assert.Equal(t, 10, op.BatchSize)
}

func TestNewOperation_HonorsExplicitOptions(t *testing.T) {
	op := newOperation("op_1", OperationIncremental, StartOptions{
		ConflictResolution: ResolveMerge,
		MaxConcurrency: 8,
		BatchSize: 50,
	})
	assert.Equal(t, ResolveMerge, op.ConflictResolution)
	assert.Equal(t, 8, op.MaxConcurrency)
	assert.Equal(t, 50, op.BatchSize)
}

func TestOperationClone_DeepCopiesSlices(t *testing.T) {
	op := newOperation("op_1", OperationFull, StartOptions{})
	op.Errors = append(op.Errors, RecoverableError{File: "a.go"})
	op.Conflicts = append(op.Conflicts, Conflict{EntityID: "e1"})

	clone := op.clone()
	clone.Errors[0].File = "mutated.go"
	clone.Conflicts[0].EntityID = "mutated"

	assert.Equal(t, "a.go", op.Errors[0].File)
	assert.Equal(t, "e1", op.Conflicts[0].EntityID)
}

func TestOperationClone_AppendingToCloneDoesNotAffectOriginal(t *testing.T) {
	op := newOperation("op_1", OperationFull, StartOptions{})
	op.FileChanges = append(op.FileChanges, FileChange{Path: "a.go"})

	clone := op.clone()
	clone.FileChanges = append(clone.FileChanges, FileChange{Path: "b.go"})

	assert.Len(t, op.FileChanges, 1)
	assert.Len(t, clone.FileChanges, 2)
}
