package kgs

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/evalgo/memento/graphstore"
	"github.com/evalgo/memento/mementoerr"
	"github.com/evalgo/memento/model"
	"github.com/evalgo/memento/vectorstore"
)

// logicalKindMap maps the requested logical type to (entity type, symbol
// kind) pairs, per spec §4.2 structural search: "ordered mapping from
// requested logical types function|class|interface|file|module to
// (type,kind) pairs".
var logicalKindMap = map[string][2]string{
	"function": {string(model.EntitySymbol), string(model.KindFunction)},
	"class": {string(model.EntitySymbol), string(model.KindClass)},
	"interface": {string(model.EntitySymbol), string(model.KindInterface)},
	"file": {string(model.EntityFile), ""},
	"module": {string(model.EntityModule), ""},
}

var uuidPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// SearchMode selects semantic or structural search.
type SearchMode string

const (
	SearchSemantic SearchMode = "semantic"
	SearchStructural SearchMode = "structural"
)

// SearchRequest is the input to Search.
type SearchRequest struct {
	Mode SearchMode
	Query string
	Types []string // logical types: function|class|interface|file|module
	Path string
	Language string
	LastModifiedFrom *time.Time
	LastModifiedTo *time.Time
	CheckpointID string
	Limit int
}

// SearchResult is the output of Search.
type SearchResult struct {
	Entities []model.Entity
	FellBackToStructural bool
}

// cacheKey normalizes req into the search-cache key.
func (req SearchRequest) cacheKey() string {
	data, _ := json.Marshal(req)
	return string(data)
}

// Search dispatches to semantic or structural search, caching by normalized
// request. Semantic search falls back to structural on zero hits or errors.
func (s *Service) Search(ctx context.Context, req SearchRequest) (SearchResult, error) {
	if req.Mode == SearchSemantic && req.Limit <= 0 {
		return SearchResult{}, mementoerr.New(mementoerr.KindValidation, "", "semantic search requires limit > 0", nil)
	}
	if req.Limit < 0 {
		return SearchResult{}, mementoerr.New(mementoerr.KindValidation, "", "search: limit must be >= 0", nil)
	}

	key := req.cacheKey()
	if cached, ok := s.searchCache.Get(key); ok {
		return cached, nil
	}

	var result SearchResult
	var err error
	if req.Mode == SearchSemantic {
		result, err = s.semanticSearch(ctx, req)
		if err != nil || len(result.Entities) == 0 {
			result, err = s.structuralSearch(ctx, req)
			result.FellBackToStructural = true
		}
	} else {
		result, err = s.structuralSearch(ctx, req)
	}
	if err != nil {
		return SearchResult{}, err
	}

	s.searchCache.Set(key, result)
	return result, nil
}

func (s *Service) semanticSearch(ctx context.Context, req SearchRequest) (SearchResult, error) {
	if s.dispatcher == nil {
		return SearchResult{}, fmt.Errorf("kgs: semantic search unavailable: no embedding dispatcher configured")
	}
	embedded, err := s.embedQuery(ctx, req.Query)
	if err != nil {
		return SearchResult{}, err
	}

	var filter *vectorstore.Filter
	if req.CheckpointID != "" {
		filter = &vectorstore.Filter{Key: "checkpointId", Value: req.CheckpointID}
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 20
	}

	hits, err := s.vectors.Search(ctx, vectorstore.CollectionCode, embedded, limit, filter)
	if err != nil {
		return SearchResult{}, fmt.Errorf("kgs: semantic search: %w", err)
	}

	entities := make([]model.Entity, 0, len(hits))
	for _, hit := range hits {
		entityID, _ := hit.Payload["entityId"].(string)
		if entityID == "" {
			continue
		}
		e, err := s.GetEntity(ctx, entityID)
		if err != nil {
			continue
		}
		entities = append(entities, e)
	}
	return SearchResult{Entities: entities}, nil
}

func (s *Service) embedQuery(ctx context.Context, query string) ([]float32, error) {
	if s.provider == nil {
		return nil, fmt.Errorf("kgs: no embedding provider configured")
	}
	res, err := s.provider.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("kgs: embedding query: %w", err)
	}
	return res.Embedding, nil
}

// structuralSearch compiles req's predicates into a Cypher query. On an
// unsupported-function error from the store it retries with exact-match
// text predicates only.
func (s *Service) structuralSearch(ctx context.Context, req SearchRequest) (SearchResult, error) {
	records, err := s.runStructuralQuery(ctx, req, true)
	if err != nil {
		records, err = s.runStructuralQuery(ctx, req, false)
		if err != nil {
			return SearchResult{}, fmt.Errorf("kgs: structural search: %w", err)
		}
	}
	entities, err := entitiesFromRecords(records)
	if err != nil {
		return SearchResult{}, err
	}
	return SearchResult{Entities: entities}, nil
}

func (s *Service) runStructuralQuery(ctx context.Context, req SearchRequest, fuzzyText bool) ([]graphstore.Record, error) {
	clauses := []string{}
	params := map[string]interface{}{}

	typeClauses := []string{}
	for _, logical := range req.Types {
		pair, ok := logicalKindMap[logical]
		if !ok {
			continue
		}
		if pair[1] != "" {
			typeClauses = append(typeClauses, fmt.Sprintf("(n.type = %q AND n.kind = %q)", pair[0], pair[1]))
		} else {
			typeClauses = append(typeClauses, fmt.Sprintf("n.type = %q", pair[0]))
		}
	}
	if len(typeClauses) > 0 {
		clauses = append(clauses, "("+strings.Join(typeClauses, " OR ")+")")
	}

	if req.Path != "" {
		if strings.HasPrefix(req.Path, "/") {
			clauses = append(clauses, "n.path STARTS WITH $path")
		} else {
			clauses = append(clauses, "n.path CONTAINS $path")
		}
		params["path"] = req.Path
	}
	if req.Language != "" {
		clauses = append(clauses, "n.language = $language")
		params["language"] = req.Language
	}
	if req.LastModifiedFrom != nil {
		clauses = append(clauses, "n.lastModified >= $lastModifiedFrom")
		params["lastModifiedFrom"] = req.LastModifiedFrom.UTC().Format(time.RFC3339)
	}
	if req.LastModifiedTo != nil {
		clauses = append(clauses, "n.lastModified <= $lastModifiedTo")
		params["lastModifiedTo"] = req.LastModifiedTo.UTC().Format(time.RFC3339)
	}

	textClause, textParams := textPredicate(req.Query, fuzzyText)
	if textClause != "" {
		clauses = append(clauses, textClause)
		for k, v := range textParams {
			params[k] = v
		}
	}

	if req.CheckpointID != "" {
		clauses = append(clauses, "EXISTS { MATCH (c:checkpoint {checkpointId: $checkpointId})-[:CHECKPOINT_INCLUDES]->(n) }")
		params["checkpointId"] = req.CheckpointID
	}

	query := "MATCH (n)"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " RETURN n"
	if req.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", req.Limit)
	}

	return s.store.ExecuteRead(ctx, query, params)
}

// textPredicate builds the name/docstring/path/id text predicate spec §4.2
// describes: exact id match for UUID-shaped queries, otherwise an OR over
// per-term comparisons (CONTAINS on name, docstring and path; = on id).
// With fuzzy disabled, only
// exact-match equality is used (the B3 unsupported-function fallback path).
func textPredicate(query string, fuzzy bool) (string, map[string]interface{}) {
	if query == "" {
		return "", nil
	}
	if uuidPattern.MatchString(query) {
		return "n.id = $textExact", map[string]interface{}{"textExact": query}
	}
	if !fuzzy {
		return "(toLower(n.name) = toLower($textExact) OR toLower(n.id) = toLower($textExact))",
			map[string]interface{}{"textExact": query}
	}

	terms := strings.Fields(query)
	clauses := make([]string, 0, len(terms))
	params := make(map[string]interface{}, len(terms))
	for i, term := range terms {
		key := fmt.Sprintf("term%d", i)
		clauses = append(clauses, fmt.Sprintf(
			`(toLower(n.name) CONTAINS toLower($%s) OR toLower(n.docstring) CONTAINS toLower($%s) OR toLower(n.path) CONTAINS toLower($%s) OR toLower(n.id) = toLower($%s))`,
			key, key, key, key))
		params[key] = term
	}
	return "(" + strings.Join(clauses, " OR ") + ")", params
}
