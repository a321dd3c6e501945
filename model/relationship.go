package model

import "time"

// RelationshipType enumerates the edge labels the graph store will accept as
// literal Cypher text. This is the allow-list spec §6 requires callers to
// validate against before a type reaches the graph store adapter. The check
// is graphstore.ValidateRelationshipType; the adapter receives finished query
// text and does not repeat it.
type RelationshipType string

const (
	RelCalls RelationshipType = "CALLS"
	RelReferences RelationshipType = "REFERENCES"
	RelDependsOn RelationshipType = "DEPENDS_ON"
	RelTests RelationshipType = "TESTS"
	RelCoverageProvides RelationshipType = "COVERAGE_PROVIDES"
	RelHasSecurityIssue RelationshipType = "HAS_SECURITY_ISSUE"
	RelDependsOnVulnerable RelationshipType = "DEPENDS_ON_VULNERABLE"
	RelSecurityImpacts RelationshipType = "SECURITY_IMPACTS"
	RelPerformanceImpact RelationshipType = "PERFORMANCE_IMPACT"
	RelPerformanceRegression RelationshipType = "PERFORMANCE_REGRESSION"
	RelOf RelationshipType = "OF"
	RelPreviousVersion RelationshipType = "PREVIOUS_VERSION"
	RelCheckpointIncludes RelationshipType = "CHECKPOINT_INCLUDES"
)

// AllowedRelationshipTypes is the compile-time allow-list
// graphstore.ValidateRelationshipType checks against. kgs calls that check
// before formatting a type into Cypher text; temporal formats the types it
// receives without it.
var AllowedRelationshipTypes = map[RelationshipType]bool{
	RelCalls: true,
	RelReferences: true,
	RelDependsOn: true,
	RelTests: true,
	RelCoverageProvides: true,
	RelHasSecurityIssue: true,
	RelDependsOnVulnerable: true,
	RelSecurityImpacts: true,
	RelPerformanceImpact: true,
	RelPerformanceRegression: true,
	RelOf: true,
	RelPreviousVersion: true,
	RelCheckpointIncludes: true,
}

// Relationship is a directed, typed edge between two entities.
type Relationship struct {
	ID string
	FromEntityID string
	ToEntityID string
	Type RelationshipType

	Created time.Time
	LastModified time.Time
	Version int
	Metadata map[string]interface{}

	// Temporal fields, populated when history.enabled.
	ValidFrom *time.Time
	ValidTo *time.Time
	Active bool
	LastSeenAt *time.Time

	// Edge evidence accumulated incrementally.
	Occurrences int
	Evidence []string
	Locations []Location
}

// Location identifies a single occurrence of a relationship in source text.
type Location struct {
	Path string
	Line int
	Column int
}

// DeterministicID computes `rel_<from>_<to>_<TYPE>` per invariant I3.
// Callers needing multiple edges between the same endpoints and type (e.g.
// per-evidence edges) must supply their own id instead of calling this.
func DeterministicID(from, to string, relType RelationshipType) string {
	return "rel_" + from + "_" + to + "_" + string(relType)
}

// mergeLocations unions two location slices, deduplicating by
// (path, line, column) per the relationship-merge design note.
func mergeLocations(a, b []Location) []Location {
	seen := make(map[Location]bool, len(a)+len(b))
	out := make([]Location, 0, len(a)+len(b))
	for _, l := range a {
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	for _, l := range b {
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	return out
}

// mergeEvidence unions two evidence string slices, deduplicating exact matches.
func mergeEvidence(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, e := range append(append([]string(nil), a...), b...) {
		if !seen[e] {
			seen[e] = true
			out = append(out, e)
		}
	}
	return out
}

// MergeRelationship merges inbound onto stored per the open-question
// resolution in spec §9: merge metadata, keep the latest lastModified, union
// evidence/locations deduplicated by (path,line,column).
func MergeRelationship(stored, inbound Relationship) Relationship {
	merged := stored
	if inbound.LastModified.After(stored.LastModified) {
		merged.LastModified = inbound.LastModified
	}
	merged.Metadata = mergeMetadata(stored.Metadata, inbound.Metadata)
	merged.Evidence = mergeEvidence(stored.Evidence, inbound.Evidence)
	merged.Locations = mergeLocations(stored.Locations, inbound.Locations)
	merged.Occurrences = stored.Occurrences + inbound.Occurrences
	return merged
}

func mergeMetadata(a, b map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(a)+len(b))
	for k, v := range a {
		merged[k] = v
	}
	for k, v := range b {
		merged[k] = v
	}
	return merged
}
