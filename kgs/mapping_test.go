package kgs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/evalgo/memento/model"
)

func TestPropsFromEntity_IncludesSymbolFieldsOnlyForSymbols(t *testing.T) {
	e := model.Entity{ID: "sym_1", Type: model.EntitySymbol, Name: "Foo", Kind: model.KindFunction}
	props := propsFromEntity(e)
	assert.Equal(t, "Foo", props["name"])
	assert.Equal(t, "function", props["kind"])

	fileProps := propsFromEntity(model.Entity{ID: "file_1", Type: model.EntityFile, Path: "a.go"})
	_, hasName := fileProps["name"]
	assert.False(t, hasName)
}

func TestPropsFromEntity_OmitsProvenanceForNonCodebaseTypes(t *testing.T) {
	props := propsFromEntity(model.Entity{ID: "chk_1", Type: model.EntityCheckpoint})
	_, hasPath := props["path"]
	assert.False(t, hasPath)
}

func TestEntityFromProps_RoundTripsCodebaseEntity(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	e := model.Entity{
		ID: "file_1", Type: model.EntityFile, Path: "a.go",
		Language: "go", LastModified: now, Dependencies: []string{"x", "y"},
	}
	props := propsFromEntity(e)
	back := entityFromProps(props)

	assert.Equal(t, e.ID, back.ID)
	assert.Equal(t, e.Path, back.Path)
	assert.Equal(t, e.Language, back.Language)
	assert.Equal(t, e.LastModified.Unix(), back.LastModified.Unix())
	assert.Equal(t, []string{"x", "y"}, back.Dependencies)
}

func TestLabelFor_UsesRawEntityTypeString(t *testing.T) {
	assert.Equal(t, "file", labelFor(model.EntityFile))
	assert.Equal(t, "symbol", labelFor(model.EntitySymbol))
}
