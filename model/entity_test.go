package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsCodebaseEntity(t *testing.T) {
	assert.True(t, IsCodebaseEntity(EntityFile))
	assert.True(t, IsCodebaseEntity(EntitySymbol))
	assert.False(t, IsCodebaseEntity(EntityCheckpoint))
	assert.False(t, IsCodebaseEntity(EntitySecurityIssue))
}

func TestSymbolPath(t *testing.T) {
	assert.Equal(t, "src/a.go:Foo", SymbolPath("src/a.go", "Foo"))
}

func TestEntityClone_DeepCopiesSlicesAndMaps(t *testing.T) {
	e := Entity{
		ID: "e1",
		Dependencies: []string{"a", "b"},
		Metadata: map[string]interface{}{"k": "v"},
	}
	clone := e.Clone()

	clone.Dependencies[0] = "mutated"
	clone.Metadata["k"] = "mutated"

	assert.Equal(t, "a", e.Dependencies[0])
	assert.Equal(t, "v", e.Metadata["k"])
}

func TestEntityClone_NilFieldsStayNil(t *testing.T) {
	e := Entity{ID: "e1"}
	clone := e.Clone()
	assert.Nil(t, clone.Dependencies)
	assert.Nil(t, clone.Metadata)
}
