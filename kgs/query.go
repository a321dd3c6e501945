package kgs

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/evalgo/memento/graphstore"
	"github.com/evalgo/memento/model"
)

// FindEntitiesByType returns every entity carrying the given primary type.
func (s *Service) FindEntitiesByType(ctx context.Context, t model.EntityType) ([]model.Entity, error) {
	records, err := s.store.ExecuteRead(ctx,
		fmt.Sprintf(`MATCH (n:%s) RETURN n`, labelFor(t)), nil)
	if err != nil {
		return nil, fmt.Errorf("kgs: findEntitiesByType: %w", err)
	}
	return entitiesFromRecords(records)
}

// FindSymbolsByName returns every symbol entity with the given name.
func (s *Service) FindSymbolsByName(ctx context.Context, name string) ([]model.Entity, error) {
	records, err := s.store.ExecuteRead(ctx,
		`MATCH (n:symbol {name: $name}) RETURN n`,
		map[string]interface{}{"name": name})
	if err != nil {
		return nil, fmt.Errorf("kgs: findSymbolsByName: %w", err)
	}
	return entitiesFromRecords(records)
}

// FindSymbolByKindAndName returns symbols matching both kind and name.
func (s *Service) FindSymbolByKindAndName(ctx context.Context, kind model.SymbolKind, name string) ([]model.Entity, error) {
	records, err := s.store.ExecuteRead(ctx,
		`MATCH (n:symbol {kind: $kind, name: $name}) RETURN n`,
		map[string]interface{}{"kind": string(kind), "name": name})
	if err != nil {
		return nil, fmt.Errorf("kgs: findSymbolByKindAndName: %w", err)
	}
	return entitiesFromRecords(records)
}

// FindSymbolInFile looks up the symbol addressed by the composite path
// `"<filePath>:<name>"`.
func (s *Service) FindSymbolInFile(ctx context.Context, filePath, name string) (model.Entity, error) {
	symbolPath := model.SymbolPath(filePath, name)
	records, err := s.store.ExecuteRead(ctx,
		`MATCH (n:symbol {path: $path}) RETURN n`,
		map[string]interface{}{"path": symbolPath})
	if err != nil {
		return model.Entity{}, fmt.Errorf("kgs: findSymbolInFile: %w", err)
	}
	if len(records) == 0 {
		return model.Entity{}, fmt.Errorf("kgs: no symbol %q in %s", name, filePath)
	}
	return entityFromRecord(records[0])
}

// FindNearbySymbols returns symbols named name across the codebase, ordered
// by directory distance from file: the number of directory segments, on
// either side, that lie outside the two directories' common prefix. The
// nearest sorts first; ties keep the store's order.
func (s *Service) FindNearbySymbols(ctx context.Context, file, name string) ([]model.Entity, error) {
	candidates, err := s.FindSymbolsByName(ctx, name)
	if err != nil {
		return nil, err
	}
	dir := path.Dir(file)
	sortByDirDistance(candidates, dir)
	return candidates, nil
}

func sortByDirDistance(entities []model.Entity, dir string) {
	dirSegments := strings.Split(dir, "/")
	distance := func(e model.Entity) int {
		otherDir := path.Dir(e.Path)
		otherSegments := strings.Split(otherDir, "/")
		common := 0
		for common < len(dirSegments) && common < len(otherSegments) && dirSegments[common] == otherSegments[common] {
			common++
		}
		return len(dirSegments) + len(otherSegments) - 2*common
	}
	for i := 1; i < len(entities); i++ {
		for j := i; j > 0 && distance(entities[j]) < distance(entities[j-1]); j-- {
			entities[j], entities[j-1] = entities[j-1], entities[j]
		}
	}
}

// RelationshipQuery filters GetRelationships.
type RelationshipQuery struct {
	From string
	To string
	Type model.RelationshipType
	Since *time.Time
	Until *time.Time
	Limit int
	Offset int
}

// GetRelationships returns relationships matching query's filters.
func (s *Service) GetRelationships(ctx context.Context, q RelationshipQuery) ([]model.Relationship, error) {
	matchType := "[r]"
	if q.Type != "" {
		if err := graphstore.ValidateRelationshipType(q.Type); err != nil {
			return nil, err
		}
		matchType = fmt.Sprintf("[r:%s]", q.Type)
	}

	clauses := []string{}
	params := map[string]interface{}{}
	if q.From != "" {
		clauses = append(clauses, "a.id = $from")
		params["from"] = q.From
	}
	if q.To != "" {
		clauses = append(clauses, "b.id = $to")
		params["to"] = q.To
	}
	if q.Since != nil {
		clauses = append(clauses, "r.lastModified >= $since")
		params["since"] = q.Since.UTC().Format(time.RFC3339)
	}
	if q.Until != nil {
		clauses = append(clauses, "r.lastModified <= $until")
		params["until"] = q.Until.UTC().Format(time.RFC3339)
	}

	query := fmt.Sprintf("MATCH (a)-%s->(b)", matchType)
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " RETURN r, type(r) AS relType, a.id AS from, b.id AS to"
	if q.Offset > 0 {
		query += fmt.Sprintf(" SKIP %d", q.Offset)
	}
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	}

	records, err := s.store.ExecuteRead(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("kgs: getRelationships: %w", err)
	}
	return relationshipsFromRecords(records)
}

func entitiesFromRecords(records []graphstore.Record) ([]model.Entity, error) {
	entities := make([]model.Entity, 0, len(records))
	for _, rec := range records {
		e, err := entityFromRecord(rec)
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	return entities, nil
}

func relationshipsFromRecords(records []graphstore.Record) ([]model.Relationship, error) {
	rels := make([]model.Relationship, 0, len(records))
	for _, rec := range records {
		props, _ := rec["r"].(map[string]interface{})
		rel := model.Relationship{
			FromEntityID: asString(rec["from"]),
			ToEntityID: asString(rec["to"]),
			Type: model.RelationshipType(asString(rec["relType"])),
			ID: asString(props["id"]),
			LastModified: asTime(props["lastModified"]),
			Created: asTime(props["created"]),
		}
		rels = append(rels, rel)
	}
	return rels, nil
}
