package kgs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evalgo/memento/events"
	"github.com/evalgo/memento/graphstore"
	"github.com/evalgo/memento/logging"
	"github.com/evalgo/memento/model"
)

func testLogger() *logging.ContextLogger {
	return logging.NewContextLogger(logging.New(logging.DefaultConfig()), nil)
}

func TestCreateEntity_CodebaseEntityUsesPathKeyedMerge(t *testing.T) {
	store := newFakeStore()
	store.pushWrite([]graphstore.Record{{"id": "file_1", "created": true}}, nil)
	s := New(store, events.New(), testLogger())

	e := model.Entity{ID: "file_1", Type: model.EntityFile, Path: "a/b.go"}
	id, created, err := s.CreateEntity(context.Background(), e, CreateEntityOptions{SkipEmbedding: true})

	require.NoError(t, err)
	assert.Equal(t, "file_1", id)
	assert.True(t, created)
	require.Len(t, store.writes, 1)
	assert.Contains(t, store.writes[0].query, "MERGE (n:file {type: $type, path: $path})")
	assert.Contains(t, store.writes[0].query, "ON CREATE SET n.id = $id, n._created = true")
	assert.Equal(t, "a/b.go", store.writes[0].params["path"])
}

func TestCreateEntity_NonCodebaseEntityUsesIDKeyedMerge(t *testing.T) {
	store := newFakeStore()
	store.pushWrite([]graphstore.Record{{"id": "chk_1", "created": true}}, nil)
	s := New(store, events.New(), testLogger())

	e := model.Entity{ID: "chk_1", Type: model.EntityCheckpoint}
	_, _, err := s.CreateEntity(context.Background(), e, CreateEntityOptions{SkipEmbedding: true})

	require.NoError(t, err)
	assert.Contains(t, store.writes[0].query, "MERGE (n:checkpoint {id: $id})")
}

func TestCreateEntity_AdoptsPersistedIDWhenDifferent(t *testing.T) {
	store := newFakeStore()
	store.pushWrite([]graphstore.Record{{"id": "file_existing", "created": false}}, nil)
	s := New(store, events.New(), testLogger())

	e := model.Entity{ID: "file_new", Type: model.EntityFile, Path: "a/b.go"}
	id, created, err := s.CreateEntity(context.Background(), e, CreateEntityOptions{SkipEmbedding: true})

	require.NoError(t, err)
	assert.Equal(t, "file_existing", id)
	assert.False(t, created)
}

func TestCreateEntity_InvalidatesCacheAndEmitsEvent(t *testing.T) {
	store := newFakeStore()
	store.pushWrite([]graphstore.Record{{"id": "file_1", "created": true}}, nil)
	bus := events.New()
	var gotID any
	bus.On(events.EntityCreated, func(p any) { gotID = p })
	s := New(store, bus, testLogger())
	s.entityCache.Set("file_1", model.Entity{ID: "file_1"})

	e := model.Entity{ID: "file_1", Type: model.EntityFile, Path: "a/b.go"}
	_, _, err := s.CreateEntity(context.Background(), e, CreateEntityOptions{SkipEmbedding: true})

	require.NoError(t, err)
	assert.Equal(t, "file_1", gotID)
	_, ok := s.entityCache.Get("file_1")
	assert.False(t, ok, "cache entry for the written entity must be invalidated")
}

func TestCreateEntity_MatchedExistingEmitsEntityUpdated(t *testing.T) {
	store := newFakeStore()
	store.pushWrite([]graphstore.Record{{"id": "file_1", "created": false}}, nil)
	bus := events.New()
	var gotID any
	bus.On(events.EntityUpdated, func(p any) { gotID = p })
	s := New(store, bus, testLogger())

	e := model.Entity{ID: "file_1", Type: model.EntityFile, Path: "a/b.go"}
	_, created, err := s.CreateEntity(context.Background(), e, CreateEntityOptions{SkipEmbedding: true})

	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "file_1", gotID)
}

func TestCreateEntity_AppendsVersionWhenHistoryEnabled(t *testing.T) {
	store := newFakeStore()
	store.pushWrite([]graphstore.Record{{"id": "file_1", "created": true}}, nil)
	s := New(store, events.New(), testLogger())
	hist := &fakeHistory{}
	s.SetHistory(hist)

	e := model.Entity{ID: "file_1", Type: model.EntityFile, Path: "a/b.go"}
	_, _, err := s.CreateEntity(context.Background(), e, CreateEntityOptions{SkipEmbedding: true, ChangeSetID: "cs1"})

	require.NoError(t, err)
	require.Len(t, hist.appended, 1)
	assert.Equal(t, "file_1", hist.appended[0].ID)
}

func TestCreateEntity_WriteErrorPropagates(t *testing.T) {
	store := newFakeStore()
	store.pushWrite(nil, assert.AnError)
	s := New(store, events.New(), testLogger())

	_, _, err := s.CreateEntity(context.Background(), model.Entity{ID: "file_1", Type: model.EntityFile}, CreateEntityOptions{SkipEmbedding: true})
	assert.Error(t, err)
}

func TestGetEntity_PrefersCache(t *testing.T) {
	store := newFakeStore()
	s := New(store, events.New(), testLogger())
	s.entityCache.Set("file_1", model.Entity{ID: "file_1", Type: model.EntityFile, Path: "a.go"})

	e, err := s.GetEntity(context.Background(), "file_1")
	require.NoError(t, err)
	assert.Equal(t, "a.go", e.Path)
	assert.Empty(t, store.reads, "cached lookup must not hit the store")
}

func TestGetEntity_MissReadsStoreAndPopulatesCache(t *testing.T) {
	store := newFakeStore()
	store.pushRead([]graphstore.Record{{"n": map[string]interface{}{"id": "file_1", "type": "file", "path": "a.go"}}}, nil)
	s := New(store, events.New(), testLogger())

	e, err := s.GetEntity(context.Background(), "file_1")
	require.NoError(t, err)
	assert.Equal(t, "a.go", e.Path)

	cached, ok := s.entityCache.Get("file_1")
	require.True(t, ok)
	assert.Equal(t, "a.go", cached.Path)
}

func TestGetEntity_NotFound(t *testing.T) {
	store := newFakeStore()
	store.pushRead(nil, nil)
	s := New(store, events.New(), testLogger())

	_, err := s.GetEntity(context.Background(), "missing")
	assert.Error(t, err)
}

func TestDeleteEntity_InvalidatesAndEmits(t *testing.T) {
	store := newFakeStore()
	store.pushWrite(nil, nil)
	bus := events.New()
	var gotID any
	bus.On(events.EntityDeleted, func(p any) { gotID = p })
	s := New(store, bus, testLogger())
	s.entityCache.Set("file_1", model.Entity{ID: "file_1"})

	err := s.DeleteEntity(context.Background(), "file_1")
	require.NoError(t, err)
	assert.Equal(t, "file_1", gotID)
	_, ok := s.entityCache.Get("file_1")
	assert.False(t, ok)
}
