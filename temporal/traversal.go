package temporal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/evalgo/memento/graphstore"
	"github.com/evalgo/memento/model"
)

// TimeTravelQuery filters TimeTravelTraversal. Exactly one of AtTime or
// Since/Until should be set.
type TimeTravelQuery struct {
	Start string
	AtTime *time.Time
	Since *time.Time
	Until *time.Time
	MaxDepth int
	Types []model.RelationshipType
}

// TimeTravelResult is the subgraph TimeTravelTraversal found valid.
type TimeTravelResult struct {
	Entities []model.Entity
	Relationships []model.Relationship
}

// TimeTravelTraversal returns the entities and relationships on paths from
// q.Start whose every edge satisfies the validity predicate for the
// requested instant or window:
//
//	at a point: validFrom <= at AND (validTo IS NULL OR validTo > at)
//	over a window: overlap [since,until]
func (s *Service) TimeTravelTraversal(ctx context.Context, q TimeTravelQuery) (TimeTravelResult, error) {
	depth := clampHops(q.MaxDepth)
	if q.MaxDepth == 0 {
		depth = 5
	}

	relPattern := fmt.Sprintf("*1..%d", depth)
	if len(q.Types) > 0 {
		labels := make([]string, len(q.Types))
		for i, t := range q.Types {
			labels[i] = string(t)
		}
		relPattern = strings.Join(labels, "|") + relPattern
	}

	predicate, params, err := q.validityPredicate()
	if err != nil {
		return TimeTravelResult{}, err
	}
	params["start"] = q.Start

	query := fmt.Sprintf(`
		MATCH p = (a {id: $start})-[%s]-(b)
		WHERE all(r IN relationships(p) WHERE %s)
		RETURN nodes(p) AS pathNodes, relationships(p) AS pathRels`, relPattern, predicate)

	records, err := s.store.ExecuteRead(ctx, query, params)
	if err != nil {
		return TimeTravelResult{}, fmt.Errorf("temporal: timeTravelTraversal: %w", err)
	}

	return collectTimeTravelResult(records)
}

func (q TimeTravelQuery) validityPredicate() (string, map[string]interface{}, error) {
	params := map[string]interface{}{}
	switch {
	case q.AtTime != nil:
		params["at"] = q.AtTime.UTC().Format(time.RFC3339Nano)
		return "r.validFrom <= $at AND (r.validTo IS NULL OR r.validTo > $at)", params, nil
	case q.Since != nil && q.Until != nil:
		params["since"] = q.Since.UTC().Format(time.RFC3339Nano)
		params["until"] = q.Until.UTC().Format(time.RFC3339Nano)
		return "r.validFrom <= $until AND (r.validTo IS NULL OR r.validTo >= $since)", params, nil
	default:
		return "", nil, fmt.Errorf("temporal: timeTravelTraversal: exactly one of atTime or (since,until) is required")
	}
}

func collectTimeTravelResult(records []graphstore.Record) (TimeTravelResult, error) {
	seenNodes := map[string]bool{}
	seenRels := map[string]bool{}
	result := TimeTravelResult{}

	for _, rec := range records {
		nodes, _ := rec["pathNodes"].([]interface{})
		for _, raw := range nodes {
			props, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			id, _ := props["id"].(string)
			if id == "" || seenNodes[id] {
				continue
			}
			seenNodes[id] = true
			result.Entities = append(result.Entities, entityFromProps(props))
		}

		rels, _ := rec["pathRels"].([]interface{})
		for _, raw := range rels {
			props, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			id, _ := props["id"].(string)
			if id == "" || seenRels[id] {
				continue
			}
			seenRels[id] = true
			result.Relationships = append(result.Relationships, relationshipFromProps(props))
		}
	}
	return result, nil
}
