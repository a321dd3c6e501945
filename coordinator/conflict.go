package coordinator

import (
	"context"
	"errors"
	"fmt"

	"github.com/evalgo/memento/model"
)

// detectConflict compares inbound against the currently stored entity (if
// any) and classifies the disagreement per spec §4.1's taxonomy. A nil
// result means no conflict: either the entity is new, or inbound and
// stored agree.
func detectConflict(ctx context.Context, getEntity func(context.Context, string) (model.Entity, error), inbound model.Entity, deleting bool) (*Conflict, error) {
	stored, err := getEntity(ctx, inbound.ID)
	if err != nil {
		if deleting {
			return &Conflict{
				EntityID: inbound.ID,
				Kind: ConflictDeletion,
				Detail: "update targets an entity that no longer exists",
			}, nil
		}
		return nil, nil // not found: this is a create, not a conflict
	}

	if deleting {
		return nil, nil
	}

	if stored.ContentHash == inbound.ContentHash {
		return nil, nil
	}
	if inbound.LastModified.Before(stored.LastModified) {
		return &Conflict{
			EntityID: inbound.ID,
			Kind: ConflictVersion,
			Detail: fmt.Sprintf("inbound lastModified %s precedes stored %s", inbound.LastModified, stored.LastModified),
		}, nil
	}
	return nil, nil
}

// resolveConflict applies op's resolution policy to a detected conflict,
// returning the entity to persist (if any) and whether the write should
// proceed at all.
func resolveConflict(resolution Resolution, stored, inbound model.Entity) (model.Entity, bool) {
	switch resolution {
	case ResolveOverwrite:
		return inbound, true
	case ResolveMerge:
		merged := inbound
		merged.Metadata = mergeMetadata(stored.Metadata, inbound.Metadata)
		if stored.LastModified.After(inbound.LastModified) {
			merged.LastModified = stored.LastModified
		}
		return merged, true
	case ResolveSkip:
		return model.Entity{}, false
	case ResolveManual:
		return model.Entity{}, false
	default:
		return inbound, true
	}
}

func mergeMetadata(a, b map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(a)+len(b))
	for k, v := range a {
		merged[k] = v
	}
	for k, v := range b {
		merged[k] = v
	}
	return merged
}

// errEntityNotFound is the error the package's test getters return for a
// missing entity. detectConflict does not compare against it: any lookup
// error, a store failure included, is treated as "no stored entity".
var errEntityNotFound = errors.New("coordinator: entity not found")
