package graphstore

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/evalgo/memento/model"
)

func TestValidateRelationshipType_AcceptsAllowListed(t *testing.T) {
	assert.NoError(t, ValidateRelationshipType(model.RelCalls))
	assert.NoError(t, ValidateRelationshipType(model.RelCheckpointIncludes))
}

func TestValidateRelationshipType_RejectsArbitraryText(t *testing.T) {
	err := ValidateRelationshipType(model.RelationshipType("CALLS} DETACH DELETE (n) //"))
	assert.Error(t, err)
}
