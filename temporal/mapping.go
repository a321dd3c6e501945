package temporal

import (
	"time"

	"github.com/evalgo/memento/model"
)

// entityFromProps reconstructs the fields timeTravelTraversal callers need
// from a raw Neo4j node property map. It intentionally covers fewer fields
// than kgs's mapper — temporal results are for display/diffing, not for
// feeding back into createEntity.
func entityFromProps(props map[string]interface{}) model.Entity {
	return model.Entity{
		ID: asString(props["id"]),
		Type: model.EntityType(asString(props["type"])),
		Path: asString(props["path"]),
		Language: asString(props["language"]),
		Name: asString(props["name"]),
		LastModified: asTime(props["lastModified"]),
	}
}

func relationshipFromProps(props map[string]interface{}) model.Relationship {
	rel := model.Relationship{
		ID: asString(props["id"]),
		Type: model.RelationshipType(asString(props["type"])),
	}
	if v, ok := props["validFrom"]; ok {
		t := asTime(v)
		rel.ValidFrom = &t
	}
	if v, ok := props["validTo"]; ok && v != nil {
		t := asTime(v)
		rel.ValidTo = &t
	}
	return rel
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func asTime(v interface{}) time.Time {
	s, ok := v.(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
