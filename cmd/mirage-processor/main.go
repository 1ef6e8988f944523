package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/mirage-protocol/mirage-indexer/internal/adapter"
	"github.com/mirage-protocol/mirage-indexer/internal/bridge"
	"github.com/mirage-protocol/mirage-indexer/internal/config"
	"github.com/mirage-protocol/mirage-indexer/internal/decoder"
	"github.com/mirage-protocol/mirage-indexer/internal/logger"
	"github.com/mirage-protocol/mirage-indexer/internal/mapper"
	"github.com/mirage-protocol/mirage-indexer/internal/orchestrator"
	"github.com/mirage-protocol/mirage-indexer/internal/processor"
	"github.com/mirage-protocol/mirage-indexer/internal/store"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadProcessorConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("Invalid config: %v", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logger with sentry integration
	err = logger.Initialize(logger.Config{
		Debug:           cfg.Debug,
		SentryDSN:       cfg.SentryDSN,
		BreadcrumbLevel: zapcore.InfoLevel,
		Tags: map[string]string{
			"service":   "mirage-processor",
			"processor": cfg.Processor.Name,
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting Mirage processor",
		zap.String("processor", cfg.Processor.Name),
		zap.String("lifecycle_mode", cfg.Processor.LifecycleMode))

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{})
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to database", zap.Error(err), zap.String("host", cfg.Database.Host))
	}

	writeConcurrency := cfg.Processor.WriteConcurrency
	if writeConcurrency <= 0 {
		writeConcurrency = store.DEFAULT_WRITE_CONCURRENCY
	}
	pool := store.PoolSettings{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		Writers:         cfg.Worker.WorkerPoolSize * writeConcurrency,
	}
	if err := store.ConfigureConnectionPool(db, pool); err != nil {
		logger.FatalCtx(ctx, "Failed to configure connection pool", zap.Error(err))
	}
	logger.InfoCtx(ctx, "Connected to database", zap.Int("max_open_conns", pool.Normalize().MaxOpenConns))

	// Build the projection pipeline
	dec, err := decoder.New(cfg.Processor.DeployerAddress)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to create decoder", zap.Error(err))
	}
	logger.InfoCtx(ctx, "Resolved module addresses",
		zap.String("vault", dec.VaultAddress()),
		zap.String("market", dec.MarketAddress()))

	overrides, err := mapper.ParseLabelOverrides(cfg.Processor.LabelOverrides)
	if err != nil {
		logger.FatalCtx(ctx, "Invalid activity label overrides", zap.Error(err))
	}
	m, err := mapper.New(mapper.DefaultLabels().WithOverrides(overrides), overrides)
	if err != nil {
		logger.FatalCtx(ctx, "Invalid activity labels", zap.Error(err))
	}

	writer, err := store.NewWriter(db, store.WriterConfig{
		Mode:        store.LifecycleMode(cfg.Processor.LifecycleMode),
		ChunkSizes:  cfg.Processor.TableChunkSizes,
		Concurrency: writeConcurrency,
	})
	if err != nil {
		logger.FatalCtx(ctx, "Failed to create storage writer", zap.Error(err))
	}

	orch := orchestrator.New(orchestrator.Config{
		ProcessorName:   cfg.Processor.Name,
		StartingVersion: cfg.Processor.StartingVersion,
		PoolSize:        cfg.Worker.WorkerPoolSize,
		QueueSize:       cfg.Worker.WorkerQueueSize,
		Retry: orchestrator.RetryConfig{
			InitialInterval: cfg.Retry.InitialInterval,
			MaxInterval:     cfg.Retry.MaxInterval,
			MaxElapsedTime:  cfg.Retry.MaxElapsedTime,
		},
	}, processor.New(dec, m, writer), store.NewCheckpointStore(db))
	if err := orch.Start(ctx); err != nil {
		logger.FatalCtx(ctx, "Failed to start orchestrator", zap.Error(err))
	}

	// Create bridge
	transactionBridge, err := bridge.NewBridge(
		bridge.Config{
			URL:            cfg.NATS.URL,
			StreamName:     cfg.NATS.StreamName,
			ConsumerName:   cfg.NATS.ConsumerName,
			Subject:        cfg.NATS.Subject,
			MaxReconnects:  cfg.NATS.MaxReconnects,
			ReconnectWait:  cfg.NATS.ReconnectWait,
			ConnectionName: cfg.NATS.ConnectionName,
			AckWaitTimeout: cfg.NATS.AckWait,
			MaxDeliver:     cfg.NATS.MaxDeliver,
		},
		adapter.NewNatsJetStream(),
		orch,
		adapter.NewJSON(),
	)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to create transaction bridge", zap.Error(err))
	}
	defer transactionBridge.Close()

	errCh := make(chan error, 1)
	go func() {
		if err := transactionBridge.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	exitCode := 0
	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errCh:
		logger.ErrorCtx(ctx, err, zap.String("component", "bridge"))
		exitCode = 1
	case <-orch.Done():
		if err := orch.Err(); err != nil {
			logger.ErrorCtx(ctx, err, zap.String("component", "orchestrator"))
			exitCode = 1
		}
	}

	cancel()
	orch.Stop()

	logger.InfoCtx(context.Background(), "Mirage processor stopped", zap.Int64("checkpoint", orch.Checkpoint()))
	if exitCode != 0 {
		logger.Flush(2 * time.Second)
		os.Exit(exitCode)
	}
}
