// Package temporal implements the History & Checkpoint layer:
// version nodes, edge validity intervals, checkpoints, time-travel
// traversal, and pruning. It is built on top of the graph store kgs already
// owns a connection to, and implements kgs.History so the knowledge graph
// service can fire its write hooks without importing this package.
package temporal

import (
	"context"
	"strconv"
	"time"

	"github.com/evalgo/memento/config"
	"github.com/evalgo/memento/events"
	"github.com/evalgo/memento/graphstore"
	"github.com/evalgo/memento/logging"
	"github.com/evalgo/memento/model"
)

// Service is the temporal history layer.
type Service struct {
	store graphstore.Store
	bus *events.Bus
	log *logging.ContextLogger
	cfg config.HistoryConfig

	embedder VersionEmbedder // optional; nil disables embedVersions
}

// VersionEmbedder is the narrow embedding capability createCheckpoint needs
// when HISTORY_EMBED_VERSIONS is on: embedding a version's content tagged
// with the checkpoint id. kgs's embedding.Dispatcher satisfies this directly.
type VersionEmbedder interface {
	DispatchCheckpointMember(ctx context.Context, entityID, checkpointID string) error
}

// Option configures a Service at construction time.
type Option func(*Service)

// WithVersionEmbedder attaches the embedder used for embedVersions=true
// checkpoints. Omitted, createCheckpoint skips that step entirely.
func WithVersionEmbedder(e VersionEmbedder) Option {
	return func(s *Service) { s.embedder = e }
}

// New builds a Service over store. Of cfg it reads Enabled and
// EmbedVersions; hop counts always come from the caller.
func New(store graphstore.Store, bus *events.Bus, log *logging.ContextLogger, cfg config.HistoryConfig, opts ...Option) *Service {
	s := &Service{store: store, bus: bus, log: log, cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enabled reports whether history writes are active.
func (s *Service) Enabled() bool {
	return s.cfg.Enabled
}

// clampHops enforces the [1,5] bound spec §4.3's createCheckpoint and
// timeTravelTraversal share (invariant/boundary B1).
func clampHops(hops int) int {
	return model.ClampHops(hops)
}

// base36Now formats t as a lowercase base-36 string for checkpoint ids
//.
func base36Now(t time.Time) string {
	return strconv.FormatInt(t.UnixNano(), 36)
}

// syntheticIDPrefix starts the id every history-emitting method returns when
// history is disabled, so callers never need their own enabled/disabled branching
//.
const syntheticIDPrefix = "noop_"

func syntheticID(kind string) string {
	return syntheticIDPrefix + kind
}
