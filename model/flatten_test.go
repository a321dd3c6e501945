package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlattenProperties_TimeBecomesRFC3339(t *testing.T) {
	ts := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	out := FlattenProperties(map[string]interface{}{"lastModified": ts})
	assert.Equal(t, "2026-03-04T05:06:07Z", out["lastModified"])
}

func TestFlattenProperties_NilPointerTimeOmitted(t *testing.T) {
	out := FlattenProperties(map[string]interface{}{"validTo": (*time.Time)(nil)})
	assert.Nil(t, out["validTo"])
}

func TestFlattenProperties_SlicesAndMapsBecomeJSONStrings(t *testing.T) {
	out := FlattenProperties(map[string]interface{}{
		"dependencies": []string{"a", "b"},
		"metadata": map[string]interface{}{"k": "v"},
	})
	assert.Equal(t, `["a","b"]`, out["dependencies"])
	assert.Equal(t, `{"k":"v"}`, out["metadata"])
}

func TestFlattenProperties_ScalarsPassThrough(t *testing.T) {
	out := FlattenProperties(map[string]interface{}{
		"name": "foo",
		"count": 3,
		"active": true,
	})
	assert.Equal(t, "foo", out["name"])
	assert.Equal(t, 3, out["count"])
	assert.Equal(t, true, out["active"])
}

func TestUnflattenKnownField_RoundTrips(t *testing.T) {
	var deps []string
	require.NoError(t, UnflattenKnownField("dependencies", `["a","b"]`, &deps))
	assert.Equal(t, []string{"a", "b"}, deps)
}

func TestClampHops(t *testing.T) {
	assert.Equal(t, 1, ClampHops(0))
	assert.Equal(t, 1, ClampHops(-3))
	assert.Equal(t, 5, ClampHops(9))
	assert.Equal(t, 3, ClampHops(3))
}
