package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/mirage-protocol/mirage-indexer/internal/adapter"
	"github.com/mirage-protocol/mirage-indexer/internal/domain"
	"github.com/mirage-protocol/mirage-indexer/internal/logger"
	"github.com/mirage-protocol/mirage-indexer/internal/orchestrator"
)

// Config holds the configuration for the transaction bridge
type Config struct {
	URL            string
	StreamName     string
	ConsumerName   string
	Subject        string
	MaxReconnects  int
	ReconnectWait  time.Duration
	ConnectionName string
	AckWaitTimeout time.Duration
	MaxDeliver     int
}

// Bridge consumes transaction batches from JetStream and hands them to the orchestrator
type Bridge interface {
	// Run consumes until ctx is cancelled
	Run(ctx context.Context) error
	// Close closes the NATS connection
	Close()
}

type bridge struct {
	nc           adapter.NatsConn
	js           adapter.JetStream
	orchestrator orchestrator.Orchestrator
	json         adapter.JSON
	config       Config
}

// NewBridge connects to NATS and creates a bridge
func NewBridge(
	cfg Config,
	natsJS adapter.NatsJetStream,
	orch orchestrator.Orchestrator,
	jsonAdapter adapter.JSON,
) (Bridge, error) {
	opts := []nats.Option{
		nats.Name(cfg.ConnectionName),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Error(err, zap.String("message", "Disconnected from NATS"))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("Reconnected to NATS", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
	}

	nc, js, err := natsJS.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS and create JetStream: %w", err)
	}

	return &bridge{
		nc:           nc,
		js:           js,
		orchestrator: orch,
		json:         jsonAdapter,
		config:       cfg,
	}, nil
}

func (b *bridge) Run(ctx context.Context) error {
	logger.InfoCtx(ctx, "Starting transaction bridge",
		zap.String("stream", b.config.StreamName),
		zap.String("consumer", b.config.ConsumerName),
		zap.String("subject", b.config.Subject))

	consumer, err := b.js.CreateOrUpdateConsumer(ctx, b.config.StreamName, jetstream.ConsumerConfig{
		Durable:       b.config.ConsumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       b.config.AckWaitTimeout,
		MaxDeliver:    b.config.MaxDeliver,
		FilterSubject: b.config.Subject,
	})
	if err != nil {
		return fmt.Errorf("failed to create/update consumer: %w", err)
	}

	info, err := consumer.Info(ctx)
	if err != nil {
		return fmt.Errorf("failed to get consumer info: %w", err)
	}
	logger.InfoCtx(ctx, "Consumer created/retrieved",
		zap.String("consumer", info.Name),
		zap.Uint64("pending", info.NumPending))

	msgChan := make(chan adapter.Message, 100)
	sub, err := consumer.Consume(func(msg adapter.Message) {
		msgChan <- msg
	})
	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	defer sub.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.InfoCtx(ctx, "Shutting down transaction bridge")
			return ctx.Err()
		case msg := <-msgChan:
			// Submit blocks while the orchestrator queue is full, which holds back delivery
			b.handleMessage(ctx, msg)
		}
	}
}

// handleMessage decodes one batch and submits it. The message is acked once the range
// commits and naked when its retries are exhausted.
func (b *bridge) handleMessage(ctx context.Context, msg adapter.Message) {
	var delivered uint64
	if metadata, err := msg.Metadata(); err == nil && metadata != nil {
		delivered = metadata.NumDelivered
	}

	var batch domain.TransactionBatch
	if err := b.json.Unmarshal(msg.Data(), &batch); err != nil {
		logger.ErrorCtx(ctx, err, zap.String("message", "Failed to unmarshal transaction batch"))
		b.term(ctx, msg)
		return
	}
	if err := batch.Validate(); err != nil {
		logger.ErrorCtx(ctx, err, zap.String("message", "Rejected transaction batch"))
		b.term(ctx, msg)
		return
	}

	ctx = logger.WithFields(ctx, zap.Stringer("range", &batch), zap.Uint64("delivery_count", delivered))
	logger.DebugCtx(ctx, "Received transaction batch", zap.Int("transactions", len(batch.Transactions)))

	err := b.orchestrator.Submit(&batch, func(err error) {
		switch {
		case err == nil:
			if err := msg.Ack(); err != nil {
				logger.ErrorCtx(ctx, err, zap.String("message", "Failed to ACK message"))
			}
		case domain.IsFatal(err):
			// left unacknowledged so the range is redelivered once the indexer restarts
			logger.WarnCtx(ctx, "Range failed with a fatal error", zap.Error(err))
		default:
			if err := msg.Nak(); err != nil {
				logger.ErrorCtx(ctx, err, zap.String("message", "Failed to NAK message"))
			}
		}
	})
	if err != nil {
		logger.WarnCtx(ctx, "Failed to submit range", zap.Error(err))
	}
}

func (b *bridge) term(ctx context.Context, msg adapter.Message) {
	if err := msg.Term(); err != nil {
		logger.ErrorCtx(ctx, err, zap.String("message", "Failed to terminate message"))
	}
}

func (b *bridge) Close() {
	if b.nc == nil {
		return
	}

	b.nc.Close()
}
