package kgs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/evalgo/memento/graphstore"
	"github.com/evalgo/memento/model"
)

// propsFromEntity flattens e into the scalar-only property map the graph
// store accepts.
func propsFromEntity(e model.Entity) map[string]interface{} {
	raw := map[string]interface{}{
		"id": e.ID,
		"type": string(e.Type),
	}
	if model.IsCodebaseEntity(e.Type) {
		raw["path"] = e.Path
		raw["contentHash"] = e.ContentHash
		raw["language"] = e.Language
		raw["lastModified"] = e.LastModified
		raw["created"] = e.Created
	}
	if e.Type == model.EntitySymbol {
		raw["name"] = e.Name
		raw["kind"] = string(e.Kind)
		raw["signature"] = e.Signature
		raw["docstring"] = e.Docstring
		raw["visibility"] = e.Visibility
		raw["isExported"] = e.IsExported
	}
	if e.Type == model.EntityFile {
		raw["isTest"] = e.IsTest
		raw["isConfig"] = e.IsConfig
		raw["dependencies"] = e.Dependencies
	}
	if e.Metadata != nil {
		raw["metadata"] = e.Metadata
	}
	return model.FlattenProperties(raw)
}

// entityFromRecord reconstructs a model.Entity from a graph record whose
// node is bound to alias "n".
func entityFromRecord(rec graphstore.Record) (model.Entity, error) {
	node, ok := rec["n"]
	if !ok {
		return model.Entity{}, fmt.Errorf("kgs: record missing node alias 'n'")
	}
	props, ok := node.(map[string]interface{})
	if !ok {
		return model.Entity{}, fmt.Errorf("kgs: unexpected node shape %T", node)
	}
	return entityFromProps(props), nil
}

func entityFromProps(props map[string]interface{}) model.Entity {
	e := model.Entity{
		ID: asString(props["id"]),
		Type: model.EntityType(asString(props["type"])),
	}
	e.Path = asString(props["path"])
	e.ContentHash = asString(props["contentHash"])
	e.Language = asString(props["language"])
	e.LastModified = asTime(props["lastModified"])
	e.Created = asTime(props["created"])
	e.Name = asString(props["name"])
	e.Kind = model.SymbolKind(asString(props["kind"]))
	e.Signature = asString(props["signature"])
	e.Docstring = asString(props["docstring"])
	e.Visibility = asString(props["visibility"])
	e.IsExported, _ = props["isExported"].(bool)
	e.IsTest, _ = props["isTest"].(bool)
	e.IsConfig, _ = props["isConfig"].(bool)
	if deps := asString(props["dependencies"]); deps != "" {
		var parsed []string
		if json.Unmarshal([]byte(deps), &parsed) == nil {
			e.Dependencies = parsed
		}
	}
	if meta := asString(props["metadata"]); meta != "" {
		var parsed map[string]interface{}
		if json.Unmarshal([]byte(meta), &parsed) == nil {
			e.Metadata = parsed
		}
	}
	return e
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
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// labelFor returns the Cypher label for an entity type: the raw type string.
// Nodes carry this single label; no secondary label is added.
func labelFor(t model.EntityType) string {
	return string(t)
}
