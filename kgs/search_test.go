package kgs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evalgo/memento/events"
	"github.com/evalgo/memento/graphstore"
)

func TestSearch_SemanticModeRejectsNonPositiveLimit(t *testing.T) {
	s := New(newFakeStore(), events.New(), testLogger())

	_, err := s.Search(context.Background(), SearchRequest{Mode: SearchSemantic, Query: "q", Limit: 0})
	assert.Error(t, err)

	_, err = s.Search(context.Background(), SearchRequest{Mode: SearchSemantic, Query: "q", Limit: -1})
	assert.Error(t, err)
}

func TestSearch_StructuralModeRejectsNegativeLimit(t *testing.T) {
	s := New(newFakeStore(), events.New(), testLogger())

	_, err := s.Search(context.Background(), SearchRequest{Mode: SearchStructural, Limit: -1})
	assert.Error(t, err)
}

func TestSearch_StructuralModeAllowsZeroLimit(t *testing.T) {
	store := newFakeStore()
	store.pushRead(nil, nil)
	s := New(store, events.New(), testLogger())

	_, err := s.Search(context.Background(), SearchRequest{Mode: SearchStructural, Limit: 0})
	assert.NoError(t, err)
}

func TestSearch_StructuralWithoutSemanticBackendNeverCallsVectorStore(t *testing.T) {
	store := newFakeStore()
	store.pushRead([]graphstore.Record{
		{"n": map[string]interface{}{"id": "sym_1", "type": "symbol", "name": "Foo"}},
	}, nil)
	s := New(store, events.New(), testLogger())

	result, err := s.Search(context.Background(), SearchRequest{Mode: SearchStructural, Query: "Foo", Limit: 10})
	require.NoError(t, err)
	require.Len(t, result.Entities, 1)
	assert.Equal(t, "sym_1", result.Entities[0].ID)
}

func TestSearch_SemanticWithNoDispatcherFallsBackToStructural(t *testing.T) {
	store := newFakeStore()
	store.pushRead([]graphstore.Record{
		{"n": map[string]interface{}{"id": "sym_1", "type": "symbol", "name": "Foo"}},
	}, nil)
	s := New(store, events.New(), testLogger())

	result, err := s.Search(context.Background(), SearchRequest{Mode: SearchSemantic, Query: "Foo", Limit: 10})
	require.NoError(t, err)
	assert.True(t, result.FellBackToStructural)
	require.Len(t, result.Entities, 1)
}

func TestSearch_CachesByNormalizedRequest(t *testing.T) {
	store := newFakeStore()
	store.pushRead([]graphstore.Record{
		{"n": map[string]interface{}{"id": "sym_1", "type": "symbol", "name": "Foo"}},
	}, nil)
	s := New(store, events.New(), testLogger())

	req := SearchRequest{Mode: SearchStructural, Query: "Foo", Limit: 10}
	_, err := s.Search(context.Background(), req)
	require.NoError(t, err)
	_, err = s.Search(context.Background(), req)
	require.NoError(t, err)

	assert.Len(t, store.reads, 1, "second identical request must be served from the search cache")
}

func TestStructuralSearch_RetriesWithFuzzyDisabledOnUnsupportedFunctionError(t *testing.T) {
	store := newFakeStore()
	store.pushRead(nil, assert.AnError) // fuzzy attempt fails
	store.pushRead([]graphstore.Record{
		{"n": map[string]interface{}{"id": "sym_1", "type": "symbol", "name": "Foo"}},
	}, nil) // exact-match retry succeeds
	s := New(store, events.New(), testLogger())

	result, err := s.Search(context.Background(), SearchRequest{Mode: SearchStructural, Query: "Foo bar", Limit: 10})

	require.NoError(t, err)
	require.Len(t, result.Entities, 1)
	require.Len(t, store.reads, 2)
	assert.Contains(t, store.reads[0].query, "CONTAINS")
	assert.NotContains(t, store.reads[1].query, "CONTAINS")
}

func TestStructuralSearch_BothAttemptsFailingReturnsError(t *testing.T) {
	store := newFakeStore()
	store.pushRead(nil, assert.AnError)
	store.pushRead(nil, assert.AnError)
	s := New(store, events.New(), testLogger())

	_, err := s.Search(context.Background(), SearchRequest{Mode: SearchStructural, Query: "Foo bar", Limit: 10})
	assert.Error(t, err)
}

func TestTextPredicate_UUIDQueryUsesExactIDMatch(t *testing.T) {
	clause, params := textPredicate("123e4567-e89b-12d3-a456-426614174000", true)
	assert.Equal(t, "n.id = $textExact", clause)
	assert.Equal(t, "123e4567-e89b-12d3-a456-426614174000", params["textExact"])
}

func TestTextPredicate_EmptyQueryReturnsNoClause(t *testing.T) {
	clause, params := textPredicate("", true)
	assert.Empty(t, clause)
	assert.Nil(t, params)
}

func TestTextPredicate_NonFuzzyIsExactNameOrID(t *testing.T) {
	clause, _ := textPredicate("Foo", false)
	assert.Contains(t, clause, "toLower(n.name) = toLower($textExact)")
	assert.NotContains(t, clause, "CONTAINS")
}
