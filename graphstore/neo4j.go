package graphstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Neo4jStore implements Store on top of neo4j.DriverWithContext, the same
// driver and session pattern as the teacher's Neo4jRepository.
type Neo4jStore struct {
	driver neo4j.DriverWithContext
}

// NewNeo4jStore connects to uri and verifies connectivity before returning.
func NewNeo4jStore(ctx context.Context, uri, username, password string) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("graphstore: creating neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("graphstore: connecting to neo4j: %w", err)
	}
	return &Neo4jStore{driver: driver}, nil
}

func recordsFrom(result neo4j.ResultWithContext, ctx context.Context) ([]Record, error) {
	var records []Record
	for result.Next(ctx) {
		records = append(records, Record(result.Record().AsMap()))
	}
	if err := result.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Neo4jStore) ExecuteWrite(ctx context.Context, query string, params map[string]interface{}) ([]Record, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return recordsFrom(res, ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("graphstore: write failed: %w", err)
	}
	records, _ := result.([]Record)
	return records, nil
}

func (s *Neo4jStore) ExecuteRead(ctx context.Context, query string, params map[string]interface{}) ([]Record, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return recordsFrom(res, ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("graphstore: read failed: %w", err)
	}
	records, _ := result.([]Record)
	return records, nil
}

func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// expectedIndexes names the indexes spec §4.2 ensureGraphIndexes/getIndexHealth
// track: one per node label key, plus the two edge validity-interval indexes.
var expectedIndexes = []struct {
	name string
	query string
}{
	{"file_path", "CREATE INDEX file_path IF NOT EXISTS FOR (n:file) ON (n.path)"},
	{"symbol_path", "CREATE INDEX symbol_path IF NOT EXISTS FOR (n:symbol) ON (n.path)"},
	{"version_entityId", "CREATE INDEX version_entityId IF NOT EXISTS FOR (n:version) ON (n.entityId)"},
	{"checkpoint_checkpointId", "CREATE INDEX checkpoint_checkpointId IF NOT EXISTS FOR (n:checkpoint) ON (n.checkpointId)"},
	{"edge_validFrom", "CREATE INDEX edge_validFrom IF NOT EXISTS FOR ()-[r]-() ON (r.validFrom)"},
	{"edge_validTo", "CREATE INDEX edge_validTo IF NOT EXISTS FOR ()-[r]-() ON (r.validTo)"},
}

// legacyIndexQuery rewrites a modern CREATE INDEX ... IF NOT EXISTS statement
// into the older `CREATE INDEX ON:label(prop)` form for servers that reject
// the modern syntax. Relationship-property indexes have no legacy
// equivalent and are skipped on fallback.
func legacyIndexQuery(name, modern string) (string, bool) {
	switch name {
	case "file_path":
		return "CREATE INDEX ON:file(path)", true
	case "symbol_path":
		return "CREATE INDEX ON:symbol(path)", true
	case "version_entityId":
		return "CREATE INDEX ON:version(entityId)", true
	case "checkpoint_checkpointId":
		return "CREATE INDEX ON:checkpoint(checkpointId)", true
	default:
		return "", false
	}
}

// EnsureIndexes best-effort creates the indexes kgs queries rely on,
// swallowing failures per spec §4.2 ("failures are swallowed").
func (s *Neo4jStore) EnsureIndexes(ctx context.Context) error {
	for _, idx := range expectedIndexes {
		if _, err := s.ExecuteWrite(ctx, idx.query, nil); err != nil {
			if legacy, ok := legacyIndexQuery(idx.name, idx.query); ok {
				s.ExecuteWrite(ctx, legacy, nil) // nolint:errcheck — best-effort fallback
			}
		}
	}
	return nil
}

// IndexHealth reports which expected indexes are visible via `SHOW INDEXES`,
// degrading to Supported:false if the server doesn't support that call.
func (s *Neo4jStore) IndexHealth(ctx context.Context) (IndexHealth, error) {
	records, err := s.ExecuteRead(ctx, "SHOW INDEXES YIELD name RETURN name", nil)
	if err != nil {
		return IndexHealth{Supported: false}, nil
	}

	present := make(map[string]bool, len(expectedIndexes))
	seen := make(map[string]bool, len(records))
	for _, rec := range records {
		if name, ok := rec["name"].(string); ok {
			seen[strings.ToLower(name)] = true
		}
	}
	var missing []string
	for _, idx := range expectedIndexes {
		if seen[strings.ToLower(idx.name)] {
			present[idx.name] = true
		} else {
			missing = append(missing, idx.name)
		}
	}
	return IndexHealth{Supported: true, Present: present, Missing: missing}, nil
}
