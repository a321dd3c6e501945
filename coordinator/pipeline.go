package coordinator

import (
	"context"

	"github.com/evalgo/memento/model"
	"github.com/evalgo/memento/parserapi"
)

// fileResult accumulates one file's contribution to a batch.
type fileResult struct {
	file string
	entities []model.Entity
	relationships []model.Relationship
	errors []RecoverableError
	conflicts []Conflict
}

// entityGetter is the narrow kgs capability conflict detection needs.
type entityGetter func(ctx context.Context, id string) (model.Entity, error)

// processFile runs the per-file pipeline spec §4.1 describes: parse,
// detect/resolve conflicts, collect entities and relationships. It does not
// write to the graph — callers batch writes across files (steps 3-4).
func processFile(ctx context.Context, parser parserapi.Parser, getEntity entityGetter, resolution Resolution, path string) fileResult {
	result := fileResult{file: path}

	parsed, err := parser.ParseFile(path)
	if err != nil {
		result.errors = append(result.errors, RecoverableError{File: path, Message: err.Error()})
		return result
	}
	for _, perr := range parsed.Errors {
		result.errors = append(result.errors, RecoverableError{File: path, Message: perr.Message})
	}

	for _, e := range parsed.Entities {
		conflict, cerr := detectConflict(ctx, getEntity, e, false)
		if cerr != nil {
			result.errors = append(result.errors, RecoverableError{File: path, Message: cerr.Error()})
			continue
		}
		if conflict == nil {
			result.entities = append(result.entities, e)
			continue
		}
		result.conflicts = append(result.conflicts, *conflict)
		stored, _ := getEntity(ctx, e.ID)
		if resolved, proceed := resolveConflict(resolution, stored, e); proceed {
			result.entities = append(result.entities, resolved)
		}
	}

	result.relationships = parsed.Relationships
	return result
}

// batchOf splits paths into op.BatchSize-sized groups, for the coordinator's
// batch-at-a-time scan loop.
func batchOf(paths []string, size int) [][]string {
	if size <= 0 {
		size = 10
	}
	var batches [][]string
	for i := 0; i < len(paths); i += size {
		end := i + size
		if end > len(paths) {
			end = len(paths)
		}
		batches = append(batches, paths[i:end])
	}
	return batches
}
