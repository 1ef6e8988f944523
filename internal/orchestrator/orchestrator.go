package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/mirage-protocol/mirage-indexer/internal/domain"
	"github.com/mirage-protocol/mirage-indexer/internal/logger"
	"github.com/mirage-protocol/mirage-indexer/internal/processor"
	"github.com/mirage-protocol/mirage-indexer/internal/store"
)

const (
	DEFAULT_POOL_SIZE  = 4
	DEFAULT_QUEUE_SIZE = 64
)

// ErrStopped is returned by Submit once the orchestrator no longer accepts ranges
var ErrStopped = errors.New("orchestrator stopped")

// RetryConfig configures the exponential backoff applied to storage failures
type RetryConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
}

// Config holds the orchestrator configuration
type Config struct {
	ProcessorName string
	// StartingVersion is the first version indexed when no checkpoint is stored
	StartingVersion int64
	PoolSize        int
	QueueSize       int
	Retry           RetryConfig
}

// Callback receives the outcome of one submitted range: nil once it committed, otherwise the
// error that ended its retries
type Callback func(err error)

//go:generate mockgen -source=orchestrator.go -destination=../mocks/orchestrator.go -package=mocks -mock_names=Orchestrator=MockOrchestrator

// Orchestrator runs transaction ranges concurrently and advances the processor checkpoint
type Orchestrator interface {
	// Start loads the checkpoint and starts the worker pool
	Start(ctx context.Context) error
	// Submit schedules a range. It blocks while the queue is full.
	Submit(batch *domain.TransactionBatch, done Callback) error
	// Checkpoint returns the last version below which every range has committed
	Checkpoint() int64
	// Done is closed when the orchestrator stops, either from its context or a fatal error
	Done() <-chan struct{}
	// Err returns the fatal error that stopped the orchestrator, if any
	Err() error
	// Stop waits for running ranges and stops the worker pool
	Stop()
}

type orchestrator struct {
	config      Config
	processor   processor.Processor
	checkpoints store.CheckpointStore

	ctx    context.Context
	cancel context.CancelFunc
	pool   pond.Pool

	mu      sync.Mutex
	tracker *gapTracker
	fatal   error
}

// New creates an orchestrator
func New(cfg Config, proc processor.Processor, checkpoints store.CheckpointStore) Orchestrator {
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = DEFAULT_POOL_SIZE
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DEFAULT_QUEUE_SIZE
	}

	return &orchestrator{
		config:      cfg,
		processor:   proc,
		checkpoints: checkpoints,
	}
}

func (o *orchestrator) Start(ctx context.Context) error {
	version, found, err := o.checkpoints.GetCheckpoint(ctx, o.config.ProcessorName)
	if err != nil {
		return fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if !found {
		version = o.config.StartingVersion - 1
	}

	o.mu.Lock()
	o.tracker = newGapTracker(version)
	o.mu.Unlock()

	o.ctx, o.cancel = context.WithCancel(ctx)
	o.pool = pond.NewPool(
		o.config.PoolSize,
		pond.WithQueueSize(o.config.QueueSize),
		pond.WithContext(o.ctx),
	)

	logger.InfoCtx(ctx, "Orchestrator started",
		zap.String("processor", o.config.ProcessorName),
		zap.Int64("checkpoint", version),
		zap.Bool("resumed", found),
		zap.Int("pool_size", o.config.PoolSize))

	return nil
}

func (o *orchestrator) Submit(batch *domain.TransactionBatch, done Callback) error {
	if o.pool == nil || o.pool.Stopped() || o.ctx.Err() != nil {
		return ErrStopped
	}

	if checkpoint := o.Checkpoint(); batch.EndVersion <= checkpoint {
		logger.Debug("Range already committed",
			zap.Stringer("range", batch),
			zap.Int64("checkpoint", checkpoint))
		done(nil)
		return nil
	}

	o.pool.Submit(func() {
		done(o.run(batch))
	})

	return nil
}

// run processes one range, retrying storage failures with the identical batch
func (o *orchestrator) run(batch *domain.TransactionBatch) error {
	ctx := logger.WithFields(o.ctx, zap.Stringer("range", batch))

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = o.config.Retry.InitialInterval
	b.MaxInterval = o.config.Retry.MaxInterval
	b.MaxElapsedTime = o.config.Retry.MaxElapsedTime

	operation := func() error {
		_, err := o.processor.Process(ctx, batch)
		if err != nil && domain.IsFatal(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	var attemptCount int
	notifyOnError := func(err error, duration time.Duration) {
		attemptCount++
		logger.WarnCtx(ctx, "Range failed, retrying",
			zap.Error(err),
			zap.Int("attempt", attemptCount),
			zap.Duration("next_retry_in", duration))
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(b, ctx), notifyOnError); err != nil {
		if domain.IsFatal(err) {
			o.stop(ctx, err)
		}
		return fmt.Errorf("failed after %d attempts: %w", attemptCount+1, err)
	}

	o.advance(ctx, batch)
	return nil
}

func (o *orchestrator) advance(ctx context.Context, batch *domain.TransactionBatch) {
	o.mu.Lock()
	checkpoint, advanced := o.tracker.complete(batch.StartVersion, batch.EndVersion)
	waiting := o.tracker.gaps()
	o.mu.Unlock()

	if !advanced {
		logger.DebugCtx(ctx, "Range committed behind a gap", zap.Int("waiting_ranges", waiting))
		return
	}

	// a failed write leaves the stored checkpoint behind, so the ranges after it are replayed on restart
	if err := o.checkpoints.SetCheckpoint(ctx, o.config.ProcessorName, checkpoint); err != nil {
		logger.WarnCtx(ctx, "Failed to store checkpoint", zap.Error(err), zap.Int64("checkpoint", checkpoint))
		return
	}

	logger.InfoCtx(ctx, "Checkpoint advanced", zap.Int64("checkpoint", checkpoint))
}

// stop records the first fatal error and stops accepting ranges. The checkpoint stays where it is.
func (o *orchestrator) stop(ctx context.Context, err error) {
	o.mu.Lock()
	if o.fatal == nil {
		o.fatal = err
	}
	o.mu.Unlock()

	logger.ErrorCtx(ctx, err, zap.String("message", "Fatal error, stopping orchestrator"))
	o.cancel()
}

func (o *orchestrator) Checkpoint() int64 {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.tracker == nil {
		return o.config.StartingVersion - 1
	}
	return o.tracker.checkpoint
}

func (o *orchestrator) Done() <-chan struct{} {
	return o.ctx.Done()
}

func (o *orchestrator) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.fatal
}

func (o *orchestrator) Stop() {
	if o.pool == nil {
		return
	}

	logger.Info("Stopping orchestrator",
		zap.Uint64("submitted", o.pool.SubmittedTasks()),
		zap.Uint64("waiting", o.pool.WaitingTasks()))

	o.pool.StopAndWait()
	o.cancel()

	logger.Info("Orchestrator stopped", zap.Int64("checkpoint", o.Checkpoint()))
}
