package kgs

import (
	"context"
	"fmt"
	"strings"

	"github.com/evalgo/memento/graphstore"
	"github.com/evalgo/memento/model"
)

// maxPathDepth is the maxDepth ceiling for FindPaths and TraverseGraph,
// per spec §4.2 boundary B1 ("depth clamps to [1,5]").
const maxPathDepth = 5

// defaultTraverseLimit is TraverseGraph's node cap when Limit is unset.
const defaultTraverseLimit = 50

func clampDepth(depth int) int {
	if depth < 1 {
		return 1
	}
	if depth > maxPathDepth {
		return maxPathDepth
	}
	return depth
}

// PathQuery filters FindPaths.
type PathQuery struct {
	Start string
	End string // optional; when empty, returns every path up to MaxDepth from Start
	Types []model.RelationshipType
	MaxDepth int
}

// Path is one path result: the ordered node ids it visits.
type Path struct {
	NodeIDs []string
}

// FindPaths returns variable-length paths from q.Start, optionally
// constrained to q.End and to q.Types, per spec §4.2 findPaths.
func (s *Service) FindPaths(ctx context.Context, q PathQuery) ([]Path, error) {
	depth := clampDepth(q.MaxDepth)

	relPattern := "*1.." + fmt.Sprint(depth)
	if len(q.Types) > 0 {
		for _, t := range q.Types {
			if err := graphstore.ValidateRelationshipType(t); err != nil {
				return nil, err
			}
		}
		labels := make([]string, len(q.Types))
		for i, t := range q.Types {
			labels[i] = string(t)
		}
		relPattern = strings.Join(labels, "|") + relPattern
	}

	params := map[string]interface{}{"start": q.Start}
	query := fmt.Sprintf("MATCH p = (a {id: $start})-[%s]->(b)", relPattern)
	if q.End != "" {
		query += " WHERE b.id = $end"
		params["end"] = q.End
	}
	query += " RETURN [n IN nodes(p) | n.id] AS nodeIds"

	records, err := s.store.ExecuteRead(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("kgs: findPaths: %w", err)
	}

	paths := make([]Path, 0, len(records))
	for _, rec := range records {
		raw, _ := rec["nodeIds"].([]interface{})
		ids := make([]string, 0, len(raw))
		for _, v := range raw {
			if id, ok := v.(string); ok {
				ids = append(ids, id)
			}
		}
		paths = append(paths, Path{NodeIDs: ids})
	}
	return paths, nil
}

// TraverseQuery filters TraverseGraph.
type TraverseQuery struct {
	Start string
	Types []model.RelationshipType
	MaxDepth int // default 3
	Limit int // default 50
}

// TraverseGraph returns the set of distinct nodes reachable from q.Start
// within q.MaxDepth hops, per spec §4.2 traverseGraph.
func (s *Service) TraverseGraph(ctx context.Context, q TraverseQuery) ([]model.Entity, error) {
	depth := q.MaxDepth
	if depth == 0 {
		depth = 3
	}
	depth = clampDepth(depth)

	limit := q.Limit
	if limit <= 0 {
		limit = defaultTraverseLimit
	}

	relPattern := "*1.." + fmt.Sprint(depth)
	if len(q.Types) > 0 {
		for _, t := range q.Types {
			if err := graphstore.ValidateRelationshipType(t); err != nil {
				return nil, err
			}
		}
		labels := make([]string, len(q.Types))
		for i, t := range q.Types {
			labels[i] = string(t)
		}
		relPattern = strings.Join(labels, "|") + relPattern
	}

	query := fmt.Sprintf(`
		MATCH (a {id: $start})-[%s]->(n)
		RETURN DISTINCT n
		LIMIT %d`, relPattern, limit)

	records, err := s.store.ExecuteRead(ctx, query, map[string]interface{}{"start": q.Start})
	if err != nil {
		return nil, fmt.Errorf("kgs: traverseGraph: %w", err)
	}
	return entitiesFromRecords(records)
}
