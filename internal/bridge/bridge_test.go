package bridge_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirage-protocol/mirage-indexer/internal/adapter"
	"github.com/mirage-protocol/mirage-indexer/internal/bridge"
	"github.com/mirage-protocol/mirage-indexer/internal/domain"
	"github.com/mirage-protocol/mirage-indexer/internal/logger"
	mockspkg "github.com/mirage-protocol/mirage-indexer/internal/mocks"
	"github.com/mirage-protocol/mirage-indexer/internal/orchestrator"
)

func TestMain(m *testing.M) {
	err := logger.Initialize(logger.Config{
		Debug: false,
	})
	if err != nil {
		panic(err)
	}

	code := m.Run()
	os.Exit(code)
}

// testBridgeMocks contains all the mocks needed for testing the bridge
type testBridgeMocks struct {
	ctrl           *gomock.Controller
	natsJS         *mockspkg.MockNatsJetStream
	natsConn       *mockspkg.MockNatsConn
	jetStream      *mockspkg.MockJetStream
	consumer       *mockspkg.MockNatsConsumer
	consumeContext *mockspkg.MockConsumeContext
	orchestrator   *mockspkg.MockOrchestrator
}

func setupTestBridge(t *testing.T) *testBridgeMocks {
	ctrl := gomock.NewController(t)

	return &testBridgeMocks{
		ctrl:           ctrl,
		natsJS:         mockspkg.NewMockNatsJetStream(ctrl),
		natsConn:       mockspkg.NewMockNatsConn(ctrl),
		jetStream:      mockspkg.NewMockJetStream(ctrl),
		consumer:       mockspkg.NewMockNatsConsumer(ctrl),
		consumeContext: mockspkg.NewMockConsumeContext(ctrl),
		orchestrator:   mockspkg.NewMockOrchestrator(ctrl),
	}
}

func tearDownTestBridge(mocks *testBridgeMocks) {
	mocks.ctrl.Finish()
}

func testConfig() bridge.Config {
	return bridge.Config{
		URL:            "nats://localhost:4222",
		StreamName:     "TRANSACTIONS",
		ConsumerName:   "mirage-processor",
		Subject:        "transactions.mirage_processor",
		MaxReconnects:  10,
		ReconnectWait:  1 * time.Second,
		ConnectionName: "test-bridge",
		AckWaitTimeout: 30 * time.Second,
		MaxDeliver:     5,
	}
}

func newTestBridge(t *testing.T, mocks *testBridgeMocks) bridge.Bridge {
	mocks.natsJS.
		EXPECT().
		Connect("nats://localhost:4222", gomock.Any()).
		Return(mocks.natsConn, mocks.jetStream, nil)

	b, err := bridge.NewBridge(testConfig(), mocks.natsJS, mocks.orchestrator, adapter.NewJSON())
	require.NoError(t, err)
	require.NotNil(t, b)
	return b
}

func TestBridge_NewBridge_ConnectError(t *testing.T) {
	mocks := setupTestBridge(t)
	defer tearDownTestBridge(mocks)

	mocks.natsJS.
		EXPECT().
		Connect(gomock.Any(), gomock.Any()).
		Return(nil, nil, assert.AnError)

	b, err := bridge.NewBridge(testConfig(), mocks.natsJS, mocks.orchestrator, adapter.NewJSON())

	assert.Error(t, err)
	assert.Nil(t, b)
	assert.Contains(t, err.Error(), "failed to connect to NATS")
}

func TestBridge_Run_CreateConsumerError(t *testing.T) {
	mocks := setupTestBridge(t)
	defer tearDownTestBridge(mocks)

	b := newTestBridge(t, mocks)
	cfg := testConfig()

	mocks.jetStream.
		EXPECT().
		CreateOrUpdateConsumer(gomock.Any(),
			"TRANSACTIONS",
			jetstream.ConsumerConfig{
				Durable:       cfg.ConsumerName,
				AckPolicy:     jetstream.AckExplicitPolicy,
				AckWait:       cfg.AckWaitTimeout,
				MaxDeliver:    cfg.MaxDeliver,
				FilterSubject: "transactions.mirage_processor",
			}).
		Return(nil, assert.AnError)

	err := b.Run(context.Background())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create/update consumer")
}

func TestBridge_Run_ConsumerInfoError(t *testing.T) {
	mocks := setupTestBridge(t)
	defer tearDownTestBridge(mocks)

	b := newTestBridge(t, mocks)

	mocks.consumer.EXPECT().
		Info(gomock.Any()).
		Return(nil, assert.AnError)
	mocks.jetStream.
		EXPECT().
		CreateOrUpdateConsumer(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(mocks.consumer, nil)

	err := b.Run(context.Background())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to get consumer info")
}

func TestBridge_Run_ConsumeError(t *testing.T) {
	mocks := setupTestBridge(t)
	defer tearDownTestBridge(mocks)

	b := newTestBridge(t, mocks)

	mocks.consumer.EXPECT().
		Info(gomock.Any()).
		Return(&jetstream.ConsumerInfo{Name: "mirage-processor"}, nil)
	mocks.consumer.EXPECT().
		Consume(gomock.Any(), gomock.Any()).
		Return(nil, assert.AnError)
	mocks.jetStream.
		EXPECT().
		CreateOrUpdateConsumer(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(mocks.consumer, nil)

	err := b.Run(context.Background())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create subscription")
}

// runWithMessage delivers msg to a running bridge and stops it once handled is closed
func runWithMessage(t *testing.T, mocks *testBridgeMocks, msg adapter.Message, handled <-chan struct{}) {
	t.Helper()

	b := newTestBridge(t, mocks)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mocks.consumeContext.EXPECT().Stop().AnyTimes()
	mocks.consumer.EXPECT().
		Info(gomock.Any()).
		Return(&jetstream.ConsumerInfo{Name: "mirage-processor"}, nil)
	mocks.consumer.EXPECT().
		Consume(gomock.Any(), gomock.Any()).
		DoAndReturn(func(handler adapter.MessageHandler, opts ...jetstream.PullConsumeOpt) (adapter.ConsumeContext, error) {
			go handler(msg)
			return mocks.consumeContext, nil
		})
	mocks.jetStream.
		EXPECT().
		CreateOrUpdateConsumer(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(mocks.consumer, nil)

	errChan := make(chan error, 1)
	go func() {
		errChan <- b.Run(ctx)
	}()

	select {
	case <-handled:
	case <-time.After(5 * time.Second):
		t.Fatal("message was not handled")
	}

	cancel()
	select {
	case err := <-errChan:
		assert.Equal(t, context.Canceled, err)
	case <-time.After(5 * time.Second):
		t.Fatal("bridge did not stop")
	}
}

func newMessage(mocks *testBridgeMocks, data string) *mockspkg.MockJetStreamMessage {
	msg := mockspkg.NewMockJetStreamMessage(mocks.ctrl)
	msg.EXPECT().Data().Return([]byte(data)).AnyTimes()
	msg.EXPECT().Metadata().Return(&jetstream.MsgMetadata{NumDelivered: 1}, nil).AnyTimes()
	return msg
}

const validBatch = `{"start_version": 100, "end_version": 101, "transactions": [
	{"version": 100, "timestamp": "2024-01-01T00:00:00Z", "sender": "0x1", "changes": [], "events": []}]}`

func TestBridge_Run_AcksCommittedRange(t *testing.T) {
	mocks := setupTestBridge(t)
	defer tearDownTestBridge(mocks)

	handled := make(chan struct{})
	msg := newMessage(mocks, validBatch)
	msg.EXPECT().Ack().DoAndReturn(func() error {
		close(handled)
		return nil
	})
	msg.EXPECT().Nak().Times(0)

	mocks.orchestrator.EXPECT().
		Submit(gomock.Any(), gomock.Any()).
		DoAndReturn(func(batch *domain.TransactionBatch, done orchestrator.Callback) error {
			assert.Equal(t, int64(100), batch.StartVersion)
			assert.Equal(t, int64(101), batch.EndVersion)
			if assert.Len(t, batch.Transactions, 1) {
				assert.Equal(t, "0x1", *batch.Transactions[0].Sender)
			}
			done(nil)
			return nil
		})

	runWithMessage(t, mocks, msg, handled)
}

func TestBridge_Run_TerminatesRejectedMessages(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "invalid json", data: `{"start_version": 100,`},
		{name: "inverted range", data: `{"start_version": 101, "end_version": 100, "transactions": []}`},
		{name: "transaction outside range", data: `{"start_version": 100, "end_version": 100, "transactions": [{"version": 105}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mocks := setupTestBridge(t)
			defer tearDownTestBridge(mocks)

			handled := make(chan struct{})
			msg := newMessage(mocks, tt.data)
			msg.EXPECT().Term().DoAndReturn(func() error {
				close(handled)
				return nil
			})
			mocks.orchestrator.EXPECT().Submit(gomock.Any(), gomock.Any()).Times(0)

			runWithMessage(t, mocks, msg, handled)
		})
	}
}

func TestBridge_Run_NaksExhaustedRange(t *testing.T) {
	mocks := setupTestBridge(t)
	defer tearDownTestBridge(mocks)

	handled := make(chan struct{})
	msg := newMessage(mocks, validBatch)
	msg.EXPECT().Ack().Times(0)
	msg.EXPECT().Nak().DoAndReturn(func() error {
		close(handled)
		return nil
	})

	mocks.orchestrator.EXPECT().
		Submit(gomock.Any(), gomock.Any()).
		DoAndReturn(func(batch *domain.TransactionBatch, done orchestrator.Callback) error {
			done(&domain.StorageWriteError{Table: "current_positions", Err: errors.New("connection reset")})
			return nil
		})

	runWithMessage(t, mocks, msg, handled)
}

func TestBridge_Run_LeavesFatalRangeUnacknowledged(t *testing.T) {
	mocks := setupTestBridge(t)
	defer tearDownTestBridge(mocks)

	handled := make(chan struct{})
	msg := newMessage(mocks, validBatch)
	msg.EXPECT().Ack().Times(0)
	msg.EXPECT().Nak().Times(0)
	msg.EXPECT().Term().Times(0)

	mocks.orchestrator.EXPECT().
		Submit(gomock.Any(), gomock.Any()).
		DoAndReturn(func(batch *domain.TransactionBatch, done orchestrator.Callback) error {
			done(&domain.DecodeError{Version: 100, Tag: "0x1::object::ObjectCore", Err: errors.New("bad owner")})
			close(handled)
			return nil
		})

	runWithMessage(t, mocks, msg, handled)
}

func TestBridge_Run_SubmitAfterStop(t *testing.T) {
	mocks := setupTestBridge(t)
	defer tearDownTestBridge(mocks)

	handled := make(chan struct{})
	msg := newMessage(mocks, validBatch)
	msg.EXPECT().Ack().Times(0)
	msg.EXPECT().Nak().Times(0)

	mocks.orchestrator.EXPECT().
		Submit(gomock.Any(), gomock.Any()).
		DoAndReturn(func(batch *domain.TransactionBatch, done orchestrator.Callback) error {
			close(handled)
			return orchestrator.ErrStopped
		})

	runWithMessage(t, mocks, msg, handled)
}

func TestBridge_Close(t *testing.T) {
	mocks := setupTestBridge(t)
	defer tearDownTestBridge(mocks)

	b := newTestBridge(t, mocks)
	mocks.natsConn.EXPECT().Close()

	b.Close()
}
