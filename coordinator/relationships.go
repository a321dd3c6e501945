package coordinator

import (
	"context"

	"github.com/evalgo/memento/model"
)

// unresolvedRelationship is a relationship whose target couldn't be
// resolved to a real entity id yet, parked for a post-batch pass (spec
// §4.1 step 5).
type unresolvedRelationship struct {
	FromEntityID string
	ToPlaceholder string // e.g. a bare symbol name or "file:name" reference
	Type model.RelationshipType
	FromFile string
}

// resolver looks targets up against the knowledge graph, mirroring the
// lookups kgs exposes for placeholder-to-real resolution.
type resolver interface {
	FindSymbolInFile(ctx context.Context, filePath, name string) (model.Entity, error)
	FindNearbySymbols(ctx context.Context, file, name string) ([]model.Entity, error)
}

// resolvePlaceholder finds the real entity id a placeholder relationship
// target refers to, preferring a same-file match, then the nearest symbol
// by directory distance.
func resolvePlaceholder(ctx context.Context, r resolver, u unresolvedRelationship) (string, bool) {
	if e, err := r.FindSymbolInFile(ctx, u.FromFile, u.ToPlaceholder); err == nil {
		return e.ID, true
	}
	candidates, err := r.FindNearbySymbols(ctx, u.FromFile, u.ToPlaceholder)
	if err != nil || len(candidates) == 0 {
		return "", false
	}
	return candidates[0].ID, true
}

// resolveParked runs resolvePlaceholder over every parked relationship,
// returning the ones that resolved as upsertable relationships and leaving
// the rest in op.unresolvedRelationships.
func resolveParked(ctx context.Context, r resolver, op *SyncOperation) []model.Relationship {
	resolved := make([]model.Relationship, 0, len(op.unresolvedRelationships))
	stillUnresolved := op.unresolvedRelationships[:0]
	for _, u := range op.unresolvedRelationships {
		if toID, ok := resolvePlaceholder(ctx, r, u); ok {
			resolved = append(resolved, model.Relationship{
				FromEntityID: u.FromEntityID,
				ToEntityID: toID,
				Type: u.Type,
			})
			continue
		}
		stillUnresolved = append(stillUnresolved, u)
	}
	op.unresolvedRelationships = stillUnresolved
	op.Counters.Unresolved = len(stillUnresolved)
	return resolved
}
