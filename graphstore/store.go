// Package graphstore wraps a labeled-property-graph backend behind the
// minimal contract spec §6 assigns it: parameterised Cypher-style queries,
// UNWIND batching, variable-length paths, and DETACH DELETE. Domain logic
// (which Cypher to run) lives in kgs and temporal; this package only owns
// the connection, transaction semantics, and the relationship-type
// allow-list check that keeps edge labels out of bound parameters.
package graphstore

import (
	"context"
	"fmt"

	"github.com/evalgo/memento/model"
)

// Record is one row of a query result, keyed by return alias.
type Record map[string]interface{}

// Store is the contract the knowledge graph service and temporal layer
// depend on. Implementations must be safe for concurrent use.
type Store interface {
	// ExecuteWrite runs query in a write transaction and returns its result rows.
	ExecuteWrite(ctx context.Context, query string, params map[string]interface{}) ([]Record, error)
	// ExecuteRead runs query in a read transaction and returns its result rows.
	ExecuteRead(ctx context.Context, query string, params map[string]interface{}) ([]Record, error)
	// EnsureIndexes best-effort creates the indexes kgs/temporal rely on.
	EnsureIndexes(ctx context.Context) error
	// IndexHealth reports which expected indexes are present.
	IndexHealth(ctx context.Context) (IndexHealth, error)
	Close(ctx context.Context) error
}

// IndexHealth reports the state of the expected index set.
type IndexHealth struct {
	Supported bool
	Present map[string]bool
	Missing []string
}

// ValidateRelationshipType rejects any type outside model.AllowedRelationshipTypes
// before it can reach a Cypher string as literal text.
func ValidateRelationshipType(t model.RelationshipType) error {
	if !model.AllowedRelationshipTypes[t] {
		return fmt.Errorf("graphstore: relationship type %q is not in the allow-list", t)
	}
	return nil
}
