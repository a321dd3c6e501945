package temporal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evalgo/memento/config"
	"github.com/evalgo/memento/events"
	"github.com/evalgo/memento/model"
)

func TestOpenEdge_DisabledHistoryIsNoop(t *testing.T) {
	store := newFakeStore()
	s := New(store, events.New(), testLogger(), config.HistoryConfig{Enabled: false})

	err := s.OpenEdge(context.Background(), "a", "b", model.RelCalls, time.Now(), "cs1")
	require.NoError(t, err)
	assert.Empty(t, store.writes)
}

func TestOpenEdge_SetsValidFromAndChangeSetID(t *testing.T) {
	store := newFakeStore()
	store.pushWrite(nil, nil)
	s := enabledService(store)

	err := s.OpenEdge(context.Background(), "a", "b", model.RelCalls, time.Now(), "cs1")
	require.NoError(t, err)
	require.Len(t, store.writes, 1)
	assert.Equal(t, "cs1", store.writes[0].params["changeSetId"])
	assert.Contains(t, store.writes[0].query, "[r:CALLS")
}

func TestCloseEdge_DisabledHistoryIsNoop(t *testing.T) {
	store := newFakeStore()
	s := New(store, events.New(), testLogger(), config.HistoryConfig{Enabled: false})

	err := s.CloseEdge(context.Background(), "a", "b", model.RelCalls, time.Now())
	require.NoError(t, err)
	assert.Empty(t, store.writes)
}

func TestCloseEdge_SetsValidToOnlyIfUnset(t *testing.T) {
	store := newFakeStore()
	store.pushWrite(nil, nil)
	s := enabledService(store)

	err := s.CloseEdge(context.Background(), "a", "b", model.RelCalls, time.Now())
	require.NoError(t, err)
	assert.Contains(t, store.writes[0].query, "coalesce(r.validTo, $validTo)")
}
