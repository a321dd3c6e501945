// Package cli provides the command-line interface for memento-sync: a
// cobra-based command tree that wires configuration, logging, the three
// backing stores, and the sync coordinator into a running engine.
//
// Command Structure:
//
//	memento-sync [flags]
//	 ├── full run a full-repository sync
//	 ├── watch <path> run an incremental sync on every filesystem change
//	 ├── status <opID> print a tracked operation's status
//	 ├── stats print aggregate operation statistics
//	 ├── search <query> run a structural/semantic search against the graph
//	 └── checkpoint create, export, or import history checkpoints
//
// Configuration Precedence (highest to lowest):
// 1. Command-line flags
// 2. Environment variables (MEMENTO_*, HISTORY_*)
// 3. Configuration file (--config)
// 4. Defaults from config.Load
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	memconfig "github.com/evalgo/memento/config"
	"github.com/evalgo/memento/coordinator"
	"github.com/evalgo/memento/embedding"
	"github.com/evalgo/memento/events"
	"github.com/evalgo/memento/graphstore"
	"github.com/evalgo/memento/kgs"
	"github.com/evalgo/memento/langparse"
	"github.com/evalgo/memento/logging"
	"github.com/evalgo/memento/temporal"
	"github.com/evalgo/memento/vectorstore"
)

var cfgFile string

// RootCmd is the memento-sync entry point.
var RootCmd = &cobra.Command{
	Use: "memento-sync",
	Short: "Knowledge-graph sync engine for codebases",
	Long: `memento-sync keeps a Neo4j property graph and a Qdrant vector store in
sync with a codebase: it parses files into entities and relationships,
upserts them idempotently, dispatches embeddings, and tracks every sync
as a cancellable, retryable operation.`,
}

func init() {
	cobra.OnInitialize(initConfig)
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml/json/toml)")
	RootCmd.AddCommand(fullCmd, watchCmd, statusCmd, statsCmd, searchCmd, checkpointCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

// app bundles the wired services every subcommand needs.
type app struct {
	cfg *memconfig.Config
	log *logging.ContextLogger
	bus *events.Bus
	kgs *kgs.Service
	hist *temporal.Service
	engine *coordinator.Engine
	store graphstore.Store
	opStore *coordinator.OperationStore
	metricsStore *coordinator.MetricsStore
}

// bootstrap loads configuration and constructs the full service graph: graph
// store, optional vector store/embedding provider, KGS, temporal history, and
// the sync coordinator engine.
func bootstrap(ctx context.Context) (*app, error) {
	cfg, err := memconfig.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("cli: loading config: %w", err)
	}

	base := logging.New(logging.Config{
		Level: logging.Level(cfg.LogLevel),
		Format: cfg.LogFormat,
	})
	log := logging.ServiceLogger(base, "memento-sync", "dev")

	store, err := graphstore.NewNeo4jStore(ctx, cfg.Store.Neo4jURL, cfg.Store.Neo4jUser, cfg.Store.Neo4jPassword)
	if err != nil {
		return nil, fmt.Errorf("cli: connecting to graph store: %w", err)
	}
	if err := store.EnsureIndexes(ctx); err != nil {
		log.WithError(err).Warn("cli: ensureIndexes reported failures")
	}

	bus := events.New()

	var kgsOpts []kgs.Option
	if cfg.Store.OpenAIAPIKey != "" {
		vecStore, err := vectorstore.NewQdrantStore(cfg.Store.QdrantAddr)
		if err != nil {
			log.WithError(err).Warn("cli: qdrant unavailable, continuing without semantic search")
		} else {
			provider := embedding.NewOpenAIProvider(cfg.Store.OpenAIAPIKey, cfg.Store.OpenAIModel, 1536)
			dispatcher := embedding.NewDispatcher(provider, vecStore, log)
			kgsOpts = append(kgsOpts, kgs.WithDispatcher(dispatcher), kgs.WithSemanticSearch(vecStore, provider))
		}
	}

	kgsvc := kgs.New(store, bus, log, kgsOpts...)

	var histSvc *temporal.Service
	if cfg.History.Enabled {
		histSvc = temporal.New(store, bus, log, cfg.History)
		kgsvc.SetHistory(histSvc)
	}

	parser := langparse.New()
	engine := coordinator.New(kgsvc, parser, bus, log, cfg.Retry, cfg.Sync, nil)

	var opStore *coordinator.OperationStore
	if cfg.Store.BoltPath != "" {
		opStore, err = coordinator.OpenOperationStore(cfg.Store.BoltPath)
		if err != nil {
			log.WithError(err).Warn("cli: operation history will not persist across restarts")
			opStore = nil
		} else if err := engine.SetDurableStore(opStore); err != nil {
			log.WithError(err).Warn("cli: failed to reload persisted operations")
		}
	}

	var metricsStore *coordinator.MetricsStore
	if cfg.Store.PostgresURL != "" {
		metricsStore, err = coordinator.NewMetricsStore(ctx, cfg.Store.PostgresURL)
		if err != nil {
			log.WithError(err).Warn("cli: operation audit trail disabled")
			metricsStore = nil
		} else {
			engine.SetMetricsStore(metricsStore)
		}
	}

	if cfg.Store.RedisURL != "" {
		fsLock, err := coordinator.NewRedisFullSyncLock(cfg.Store.RedisURL)
		if err != nil {
			log.WithError(err).Warn("cli: full-sync lock falling back to a local mutex")
		} else {
			engine.SetFullSyncLock(fsLock)
		}
	}

	return &app{cfg: cfg, log: log, bus: bus, kgs: kgsvc, hist: histSvc, engine: engine, store: store, opStore: opStore, metricsStore: metricsStore}, nil
}

// runEngine starts the coordinator loop on its own goroutine and returns a
// context derived from ctx together with its cancel function, which stops
// the loop. Closing the stores is left to close.
func (a *app) runEngine(ctx context.Context) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithCancel(ctx)
	go a.engine.Run(runCtx)
	return runCtx, cancel
}

func (a *app) close(ctx context.Context) {
	a.engine.Stop()
	if err := a.store.Close(ctx); err != nil {
		a.log.WithError(err).Warn("cli: error closing graph store")
	}
	if a.opStore != nil {
		if err := a.opStore.Close(); err != nil {
			a.log.WithError(err).Warn("cli: error closing operation store")
		}
	}
	a.metricsStore.Close()
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
	}()
	return ctx, cancel
}
