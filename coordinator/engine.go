package coordinator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/evalgo/memento/config"
	"github.com/evalgo/memento/events"
	"github.com/evalgo/memento/kgs"
	"github.com/evalgo/memento/logging"
	"github.com/evalgo/memento/mementoerr"
	"github.com/evalgo/memento/parserapi"
)

// FileWalker lists the files a full sync should parse under roots. The
// default implementation walks the filesystem; tests substitute an
// in-memory lister.
type FileWalker func(roots []string) ([]string, error)

// Engine is the Synchronization Coordinator: it owns the
// SyncOperation registry, a single FIFO queue drained by one loop goroutine,
// and fans per-operation work out to a bounded worker pool.
type Engine struct {
	kgs *kgs.Service
	parser parserapi.Parser
	bus *events.Bus
	log *logging.ContextLogger
	walk FileWalker

	registry *Registry

	retry config.RetryConfig
	sync config.SyncConfig

	durable *OperationStore
	metrics *MetricsStore
	lock *FullSyncLock

	alertThreshold int

	mu sync.Mutex
	queue []*SyncOperation
	notify chan struct{}
	paused bool
	cancelFns map[string]context.CancelFunc
	consecutiveErr int

	stopOnce sync.Once
	stopCh chan struct{}
	wg sync.WaitGroup
}

// New builds an Engine. walk is optional; a nil value defaults to a
// filesystem walk over op.Roots.
func New(kgsvc *kgs.Service, parser parserapi.Parser, bus *events.Bus, log *logging.ContextLogger, retry config.RetryConfig, sync config.SyncConfig, walk FileWalker) *Engine {
	if walk == nil {
		walk = defaultFileWalker
	}
	return &Engine{
		kgs: kgsvc,
		parser: parser,
		bus: bus,
		log: log,
		walk: walk,
		registry: NewRegistry(1000),
		retry: retry,
		sync: sync,
		lock: NewLocalFullSyncLock(),
		alertThreshold: 3,
		notify: make(chan struct{}, 1),
		cancelFns: make(map[string]context.CancelFunc),
		stopCh: make(chan struct{}),
	}
}

// Run starts the single coordinator loop goroutine that drains the queue.
// It blocks until ctx is cancelled or Stop is called.
func (e *Engine) Run(ctx context.Context) {
	e.wg.Add(1)
	defer e.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		case <-e.notify:
		}
		for {
			op := e.dequeue()
			if op == nil {
				break
			}
			e.execute(ctx, op)
		}
	}
}

// Stop halts the loop goroutine and waits for it to return.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
	e.wg.Wait()
}

// SetDurableStore wires store in and reloads its persisted operations into
// the registry, so `status`/`stats` survive a process restart. Operations
// that were still pending or running when the process stopped are marked
// failed: nothing resumed their in-flight work.
func (e *Engine) SetDurableStore(store *OperationStore) error {
	ops, err := store.LoadAll()
	if err != nil {
		return fmt.Errorf("coordinator: loading persisted operations: %w", err)
	}
	for _, op := range ops {
		if op.Status == StatusPending || op.Status == StatusRunning {
			op.Status = StatusFailed
			op.Errors = append(op.Errors, RecoverableError{Message: "operation was in flight when the process stopped"})
			end := time.Now()
			op.EndTime = &end
		}
		e.registry.Put(op)
	}
	e.durable = store
	return nil
}

// SetMetricsStore wires in an optional audit trail that records every
// finished operation as a Postgres row.
func (e *Engine) SetMetricsStore(store *MetricsStore) {
	e.metrics = store
}

// SetFullSyncLock replaces the default local-mutex full-sync lock with a
// distributed one, so multiple coordinator processes sharing a graph don't
// race a full scan.
func (e *Engine) SetFullSyncLock(lock *FullSyncLock) {
	e.lock = lock
}

// persist saves op's current tracked state if a durable store is attached.
func (e *Engine) persist(opID string) {
	if e.durable == nil {
		return
	}
	if op, ok := e.registry.Get(opID); ok {
		if err := e.durable.Save(op); err != nil {
			e.log.WithError(err).Warn("coordinator: failed to persist operation state")
		}
	}
}

// recordMetrics mirrors op's terminal state into the optional audit store.
func (e *Engine) recordMetrics(opID string) {
	if e.metrics == nil {
		return
	}
	op, ok := e.registry.Get(opID)
	if !ok {
		return
	}
	if err := e.metrics.RecordRun(context.Background(), op); err != nil {
		e.log.WithError(err).Warn("coordinator: failed to record operation metrics")
	}
}

// Pause prevents the loop from starting new operations; in-flight work
// continues until its next batch boundary observes the pause.
func (e *Engine) Pause() {
	e.mu.Lock()
	e.paused = true
	e.mu.Unlock()
}

// Resume clears the pause flag and wakes the loop.
func (e *Engine) Resume() {
	e.mu.Lock()
	e.paused = false
	e.mu.Unlock()
	e.kick()
}

func (e *Engine) kick() {
	select {
	case e.notify <- struct{}{}:
	default:
	}
}

func (e *Engine) dequeue() *SyncOperation {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.paused || len(e.queue) == 0 {
		return nil
	}
	op := e.queue[0]
	e.queue = e.queue[1:]
	return op
}

func (e *Engine) enqueue(op *SyncOperation) {
	e.registry.Put(op)
	e.persist(op.ID)
	e.mu.Lock()
	e.queue = append(e.queue, op)
	e.mu.Unlock()
	e.watchPendingGuard(op)
	e.kick()
}

// watchPendingGuard fails op if it never leaves StatusPending within its
// guard window.
func (e *Engine) watchPendingGuard(op *SyncOperation) {
	guard := 2 * time.Second
	if op.Timeout > 0 && op.Timeout < guard {
		guard = op.Timeout
	}
	time.AfterFunc(guard, func() {
		e.registry.Update(op.ID, func(o *SyncOperation) {
			if o.Status != StatusPending {
				return
			}
			o.Status = StatusFailed
			o.Errors = append(o.Errors, RecoverableError{Message: "operation did not start before its pending guard window elapsed"})
			end := time.Now()
			o.EndTime = &end
		})
		if updated, ok := e.registry.Get(op.ID); ok && updated.Status == StatusFailed {
			e.persist(op.ID)
			e.bus.Emit(events.OperationFailed, updated)
		}
	})
}

// StartFullSync enqueues a full-repository scan.
func (e *Engine) StartFullSync(opts StartOptions) string {
	op := newOperation(uuid.NewString(), OperationFull, e.withDefaults(opts))
	e.enqueue(op)
	return op.ID
}

// SyncFileChanges enqueues an incremental sync over changes.
func (e *Engine) SyncFileChanges(changes []FileChange, opts StartOptions) string {
	op := newOperation(uuid.NewString(), OperationIncremental, e.withDefaults(opts))
	op.FileChanges = changes
	e.enqueue(op)
	return op.ID
}

// SyncPartial enqueues an entity-level sync over updates.
func (e *Engine) SyncPartial(updates []PartialUpdate, opts StartOptions) string {
	op := newOperation(uuid.NewString(), OperationPartial, e.withDefaults(opts))
	op.Partial = updates
	e.enqueue(op)
	return op.ID
}

func (e *Engine) withDefaults(opts StartOptions) StartOptions {
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = e.sync.MaxConcurrency
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = e.sync.BatchSize
	}
	return opts
}

// Cancel removes opID from the queue/retry set if still pending, or signals
// in-flight work to stop at its next batch boundary.
func (e *Engine) Cancel(opID string) bool {
	e.mu.Lock()
	for i, op := range e.queue {
		if op.ID == opID {
			e.queue = append(e.queue[:i], e.queue[i+1:]...)
			break
		}
	}
	cancel, inFlight := e.cancelFns[opID]
	e.mu.Unlock()

	if inFlight {
		cancel()
	}

	found := e.registry.Update(opID, func(op *SyncOperation) {
		if op.Status == StatusCompleted || op.Status == StatusRolledBack {
			return
		}
		op.Status = StatusFailed
		op.Errors = append(op.Errors, RecoverableError{Message: "operation cancelled"})
		end := time.Now()
		op.EndTime = &end
	})
	if found {
		e.persist(opID)
		e.bus.Emit(events.OperationCancelled, opID)
	}
	return found
}

// GetStatus returns a defensive copy of the tracked operation.
func (e *Engine) GetStatus(opID string) (*SyncOperation, bool) {
	return e.registry.Get(opID)
}

// GetStatistics aggregates counts across tracked operations.
func (e *Engine) GetStatistics() Statistics {
	return e.registry.Stats()
}

// UpdateTuning adjusts a tracked operation's concurrency/batch size at
// runtime. A pending operation runs with the new values; an operation that
// is already running keeps the sizing it started with. The status is not
// checked, so finished operations are updated too.
func (e *Engine) UpdateTuning(opID string, maxConcurrency, batchSize int) bool {
	return e.registry.Update(opID, func(op *SyncOperation) {
		if maxConcurrency > 0 {
			op.MaxConcurrency = maxConcurrency
		}
		if batchSize > 0 {
			op.BatchSize = batchSize
		}
	})
}

// execute runs one operation to completion (or failure), then handles retry
// scheduling or final state transitions.
func (e *Engine) execute(ctx context.Context, op *SyncOperation) {
	opCtx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.cancelFns[op.ID] = cancel
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.cancelFns, op.ID)
		e.mu.Unlock()
		cancel()
	}()

	if before, ok := e.registry.Get(op.ID); ok && before.Status == StatusFailed {
		return // already cancelled between dequeue and execute
	}

	e.registry.Update(op.ID, func(o *SyncOperation) { o.Status = StatusRunning })
	e.bus.Emit(events.OperationStarted, op.ID)

	current, _ := e.registry.Get(op.ID)
	if current == nil {
		return
	}

	var runErr error
	switch current.Type {
	case OperationFull:
		runErr = e.runFull(opCtx, current)
	case OperationIncremental:
		runErr = e.runIncremental(opCtx, current)
	case OperationPartial:
		runErr = e.runPartial(opCtx, current)
	}

	if opCtx.Err() != nil {
		if after, ok := e.registry.Get(op.ID); ok && after.Status == StatusFailed {
			return // Cancel already finalized this operation
		}
	}

	e.emitProgress(current.ID, "completed", 1)
	e.finish(current, runErr)
}

func (e *Engine) emitProgress(opID, phase string, progress float64) {
	e.bus.Emit(events.SyncProgress, map[string]interface{}{
		"operationId": opID,
		"phase": phase,
		"progress": progress,
	})
}

// finish reconciles the operation's accumulated errors/conflicts into a
// terminal state, scheduling a retry when any recoverable error remains
//.
func (e *Engine) finish(op *SyncOperation, runErr error) {
	if runErr != nil && !mementoerr.IsRecoverable(runErr) {
		e.registry.Update(op.ID, func(o *SyncOperation) {
			o.Status = StatusFailed
			end := time.Now()
			o.EndTime = &end
		})
		e.persist(op.ID)
		e.recordMetrics(op.ID)
		e.bus.Emit(events.OperationFailed, op.ID)
		e.recordFailureForAlert()
		return
	}

	hasRecoverable := (runErr != nil && mementoerr.IsRecoverable(runErr)) || len(op.Errors) > 0
	if hasRecoverable {
		e.scheduleRetry(op)
		return
	}

	e.registry.Update(op.ID, func(o *SyncOperation) {
		o.Status = StatusCompleted
		end := time.Now()
		o.EndTime = &end
	})
	e.persist(op.ID)
	e.recordMetrics(op.ID)
	e.bus.Emit(events.OperationCompleted, op.ID)
	e.mu.Lock()
	e.consecutiveErr = 0
	e.mu.Unlock()
}

func (e *Engine) recordFailureForAlert() {
	e.mu.Lock()
	e.consecutiveErr++
	n := e.consecutiveErr
	e.mu.Unlock()
	if n >= e.alertThreshold {
		e.bus.Emit(events.AlertTriggered, fmt.Sprintf("%d consecutive non-recoverable operation failures", n))
	}
}

// scheduleRetry re-enqueues op at the tail after delay*attempt, per spec
// §4.1; once maxRetryAttempts is exceeded it abandons the operation instead.
func (e *Engine) scheduleRetry(op *SyncOperation) {
	maxAttempts := e.retry.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	delay := e.retry.Delay
	if delay <= 0 {
		delay = 5 * time.Second
	}

	attempt := op.Attempt + 1
	wait, ok := nextRetryDelay(delay, maxAttempts, op.Attempt)
	if !ok {
		e.registry.Update(op.ID, func(o *SyncOperation) {
			o.Status = StatusFailed
			end := time.Now()
			o.EndTime = &end
		})
		e.persist(op.ID)
		e.recordMetrics(op.ID)
		e.bus.Emit(events.OperationAbandoned, op.ID)
		return
	}

	time.AfterFunc(wait, func() {
		requeue := false
		e.registry.Update(op.ID, func(o *SyncOperation) {
			if o.Status == StatusFailed {
				return // cancelled while waiting for its retry
			}
			o.Status = StatusPending
			o.Attempt = attempt
			o.Errors = nil
			o.Conflicts = nil
			requeue = true
		})
		if !requeue {
			return
		}
		if retried, ok := e.registry.Get(op.ID); ok {
			e.enqueue(retried)
		}
	})
}

// defaultFileWalker lists every regular file under roots, skipping dotfiles
// and vendored-looking directories the way a source scan normally would.
func defaultFileWalker(roots []string) ([]string, error) {
	var files []string
	for _, root := range roots {
		err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			name := info.Name()
			if info.IsDir() {
				if name != "." && name != "/" && len(name) > 0 && name[0] == '.' {
					return filepath.SkipDir
				}
				if name == "node_modules" || name == "vendor" {
					return filepath.SkipDir
				}
				return nil
			}
			files = append(files, path)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("coordinator: walking %s: %w", root, err)
		}
	}
	return files, nil
}
