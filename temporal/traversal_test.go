package temporal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evalgo/memento/graphstore"
)

func TestTimeTravelTraversal_RequiresAtTimeOrWindow(t *testing.T) {
	s := enabledService(newFakeStore())

	_, err := s.TimeTravelTraversal(context.Background(), TimeTravelQuery{Start: "a"})
	assert.Error(t, err)
}

func TestTimeTravelTraversal_PointInTimeUsesOpenOrNotYetClosedPredicate(t *testing.T) {
	store := newFakeStore()
	store.pushRead(nil, nil)
	s := enabledService(store)

	at := time.Now()
	_, err := s.TimeTravelTraversal(context.Background(), TimeTravelQuery{Start: "a", AtTime: &at})
	require.NoError(t, err)
	assert.Contains(t, store.reads[0].query, "r.validFrom <= $at AND (r.validTo IS NULL OR r.validTo > $at)")
}

func TestTimeTravelTraversal_WindowUsesOverlapPredicate(t *testing.T) {
	store := newFakeStore()
	store.pushRead(nil, nil)
	s := enabledService(store)

	since := time.Now().Add(-time.Hour)
	until := time.Now()
	_, err := s.TimeTravelTraversal(context.Background(), TimeTravelQuery{Start: "a", Since: &since, Until: &until})
	require.NoError(t, err)
	assert.Contains(t, store.reads[0].query, "r.validFrom <= $until AND (r.validTo IS NULL OR r.validTo >= $since)")
}

func TestTimeTravelTraversal_DefaultsDepthToFive(t *testing.T) {
	store := newFakeStore()
	store.pushRead(nil, nil)
	s := enabledService(store)

	at := time.Now()
	_, err := s.TimeTravelTraversal(context.Background(), TimeTravelQuery{Start: "a", AtTime: &at})
	require.NoError(t, err)
	assert.Contains(t, store.reads[0].query, "*1..5")
}

func TestTimeTravelTraversal_CollectsDistinctNodesAndRelationships(t *testing.T) {
	store := newFakeStore()
	store.pushRead([]graphstore.Record{
		{
			"pathNodes": []interface{}{
				map[string]interface{}{"id": "e1", "type": "file"},
				map[string]interface{}{"id": "e2", "type": "file"},
			},
			"pathRels": []interface{}{
				map[string]interface{}{"id": "rel_1", "type": "CALLS"},
			},
		},
		{
			"pathNodes": []interface{}{
				map[string]interface{}{"id": "e1", "type": "file"}, // duplicate
			},
			"pathRels": []interface{}{},
		},
	}, nil)
	s := enabledService(store)

	at := time.Now()
	result, err := s.TimeTravelTraversal(context.Background(), TimeTravelQuery{Start: "e1", AtTime: &at})
	require.NoError(t, err)
	assert.Len(t, result.Entities, 2)
	assert.Len(t, result.Relationships, 1)
}
