package processor_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirage-protocol/mirage-indexer/internal/decoder"
	"github.com/mirage-protocol/mirage-indexer/internal/domain"
	"github.com/mirage-protocol/mirage-indexer/internal/logger"
	"github.com/mirage-protocol/mirage-indexer/internal/mapper"
	"github.com/mirage-protocol/mirage-indexer/internal/mocks"
	"github.com/mirage-protocol/mirage-indexer/internal/processor"
	"github.com/mirage-protocol/mirage-indexer/internal/store"
	"github.com/mirage-protocol/mirage-indexer/internal/store/schema"
)

const (
	testDeployer     = "0xcafe"
	testMarketModule = "0x6219cc5d81b16ddb49ae2c8592098981c2f76349fd092c96002ef0d4473dc0df"
)

var (
	positionID = domain.StandardizeAddress("0xb1")
	alice      = domain.StandardizeAddress("0xa11ce")
	testTime   = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
)

func TestMain(m *testing.M) {
	if err := logger.Initialize(logger.Config{Debug: false}); err != nil {
		panic(err)
	}

	code := m.Run()
	os.Exit(code)
}

type testProcessorMocks struct {
	ctrl   *gomock.Controller
	writer *mocks.MockWriter
}

func setupTestProcessor(t *testing.T) (*testProcessorMocks, processor.Processor) {
	ctrl := gomock.NewController(t)
	tm := &testProcessorMocks{
		ctrl:   ctrl,
		writer: mocks.NewMockWriter(ctrl),
	}

	dec, err := decoder.New(testDeployer)
	require.NoError(t, err)
	m, err := mapper.New(mapper.DefaultLabels(), nil)
	require.NoError(t, err)

	return tm, processor.New(dec, m, tm.writer)
}

func tearDownTestProcessor(mocks *testProcessorMocks) {
	mocks.ctrl.Finish()
}

func marketEvent(index int64, name string, data string) domain.Event {
	return domain.Event{Index: index, Type: testMarketModule + "::market::" + name, Data: json.RawMessage(data)}
}

// openTxn opens position 0xb1 at version 100 without any ownership information
func openTxn() domain.Transaction {
	return domain.Transaction{
		Version:   100,
		Timestamp: testTime,
		Events: []domain.Event{
			marketEvent(0, "OpenPositionEvent", `{"market":{"inner":"0xa1"},"position":{"inner":"0xb1"},
				"opening_price":"2000","is_long":true,"margin_amount":"10.0","position_size":"100","fee":"0.1"}`),
		},
	}
}

// increaseTxn adds margin at version 101 and carries the position snapshot and its owner.
// swapped reverses the write-set order of the two resources.
func increaseTxn(swapped bool) domain.Transaction {
	position := domain.WriteSetChange{
		Index: 0, Type: domain.ChangeTypeWriteResource, Address: "0xb1",
		ResourceType: testMarketModule + "::market::Position",
		Data: json.RawMessage(`{"market":{"inner":"0xa1"},"last_settled_price":"2000","last_open_timestamp":"1704067200",
			"side":"1","margin_amount":"15.0","unsettled_margin":"0","total_strategy_margin_amount":"0","position_size":"100",
			"last_funding_accumulated":{"negative":false,"magnitude":"0"},"strategy_refs":[]}`),
	}
	core := domain.WriteSetChange{
		Index: 1, Type: domain.ChangeTypeWriteResource, Address: "0xb1",
		ResourceType: "0x1::object::ObjectCore",
		Data:         json.RawMessage(`{"owner":"0xa11ce","allow_ungated_transfer":false}`),
	}
	changes := []domain.WriteSetChange{position, core}
	if swapped {
		position.Index, core.Index = 1, 0
		changes = []domain.WriteSetChange{core, position}
	}

	return domain.Transaction{
		Version:   101,
		Timestamp: testTime.Add(time.Second),
		Changes:   changes,
		Events: []domain.Event{
			marketEvent(0, "IncreaseMarginEvent", `{"market":{"inner":"0xa1"},"position":{"inner":"0xb1"},"margin_amount":"5.0"}`),
		},
	}
}

// limitOrderTxns places limit order 0xb3 at version 100 and raises its trigger payment at 101.
// Only the placement carries the order's terms.
func limitOrderTxns() []domain.Transaction {
	place := domain.Transaction{
		Version:   100,
		Timestamp: testTime,
		Events: []domain.Event{{
			Index: 0,
			Type:  testMarketModule + "::limit_order::PlaceLimitOrderEvent",
			Data: json.RawMessage(`{"market":{"inner":"0xa1"},"position":{"inner":"0xb1"},"limit_order":{"inner":"0xb3"},
				"is_decrease_only":false,"is_long":true,"position_size":"4","margin_amount":"10","trigger_price":"1950",
				"triggers_above":false,"max_price_slippage":"0.01","expiration":"1704153600"}`),
		}},
	}
	payment := domain.Transaction{
		Version:   101,
		Timestamp: testTime.Add(time.Second),
		Changes: []domain.WriteSetChange{{
			Index: 0, Type: domain.ChangeTypeWriteResource, Address: "0xb3",
			ResourceType: testMarketModule + "::market::Strategy",
			Data: json.RawMessage(`{"market":{"inner":"0xa1"},"position":{"inner":"0xb1"},
				"strategy_margin_amount":"10","trigger_payment_amount":"0.3"}`),
		}},
		Events: []domain.Event{{
			Index: 0,
			Type:  testMarketModule + "::limit_order::IncreaseLimitOrderTriggerPaymentEvent",
			Data:  json.RawMessage(`{"market":{"inner":"0xa1"},"position":{"inner":"0xb1"},"limit_order":{"inner":"0xb3"},"increase_amount":"0.3"}`),
		}},
	}
	return []domain.Transaction{place, payment}
}

// upsertLimitOrders applies rows the way the storage upsert does: a row only replaces an older
// one, and columns it leaves NULL keep the stored value
func upsertLimitOrders(stored map[string]schema.CurrentLimitOrder, rows []schema.CurrentLimitOrder) {
	for _, row := range rows {
		existing, ok := stored[row.EntityID()]
		switch {
		case !ok:
			stored[row.EntityID()] = row
		case existing.Clock().Before(row.Clock()):
			stored[row.EntityID()] = row.Merge(existing)
		}
	}
}

func captureWrites(tm *testProcessorMocks, captured *[]*store.WriteSet) {
	tm.writer.
		EXPECT().
		Write(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, set *store.WriteSet) (*store.WriteSummary, error) {
			*captured = append(*captured, set)
			return &store.WriteSummary{Rows: map[string]int{}}, nil
		}).
		AnyTimes()
}

func captureWrite(tm *testProcessorMocks, captured **store.WriteSet) {
	tm.writer.
		EXPECT().
		Write(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, set *store.WriteSet) (*store.WriteSummary, error) {
			*captured = set
			return &store.WriteSummary{Rows: map[string]int{"market_activities": len(set.MarketActivities)}}, nil
		})
}

func TestProcessor_Process_OpenThenIncreaseMargin(t *testing.T) {
	tm, p := setupTestProcessor(t)
	defer tearDownTestProcessor(tm)

	var set *store.WriteSet
	captureWrite(tm, &set)

	batch := &domain.TransactionBatch{
		StartVersion: 100,
		EndVersion:   101,
		Transactions: []domain.Transaction{openTxn(), increaseTxn(false)},
	}

	summary, err := p.Process(context.Background(), batch)
	require.NoError(t, err)
	require.NotNil(t, set)

	assert.NotEmpty(t, summary.BatchID)
	assert.Equal(t, int64(100), summary.StartVersion)
	assert.Equal(t, int64(101), summary.EndVersion)
	assert.Equal(t, 2, summary.Transactions)
	assert.Equal(t, 2, summary.Rows["market_activities"])

	require.Len(t, set.MarketActivities, 2)
	assert.Equal(t, "OpenPositionEvent", set.MarketActivities[0].EventType)
	assert.Nil(t, set.MarketActivities[0].OwnerAddr)
	assert.Equal(t, "IncreaseMarginEvent", set.MarketActivities[1].EventType)
	assert.Empty(t, set.Trades)

	require.Len(t, set.PositionDatas, 1)
	assert.Equal(t, alice, set.PositionDatas[0].OwnerAddr)

	require.Len(t, set.Positions, 1)
	position := set.Positions[0]
	assert.Equal(t, positionID, position.PositionID)
	assert.Equal(t, domain.NewLogicalClock(101, 0), position.Clock())
	assert.False(t, position.IsClosed)
	require.NotNil(t, position.OwnerAddr)
	assert.Equal(t, alice, *position.OwnerAddr)
	require.NotNil(t, position.MarginAmount)
	assert.True(t, decimal.NewFromInt(15).Equal(*position.MarginAmount))
}

func TestProcessor_Process_WriteSetOrderIndependent(t *testing.T) {
	project := func(swapped bool) *store.WriteSet {
		tm, p := setupTestProcessor(t)
		defer tearDownTestProcessor(tm)

		var set *store.WriteSet
		captureWrite(tm, &set)

		batch := &domain.TransactionBatch{
			StartVersion: 101,
			EndVersion:   101,
			Transactions: []domain.Transaction{increaseTxn(swapped)},
		}
		_, err := p.Process(context.Background(), batch)
		require.NoError(t, err)
		return set
	}

	ordered := project(false)
	swapped := project(true)

	require.Len(t, ordered.Positions, 1)
	require.Len(t, swapped.Positions, 1)
	assert.Equal(t, ordered.Positions[0].OwnerAddr, swapped.Positions[0].OwnerAddr)
	assert.True(t, ordered.Positions[0].MarginAmount.Equal(*swapped.Positions[0].MarginAmount))
	assert.Equal(t, ordered.PositionDatas[0].OwnerAddr, swapped.PositionDatas[0].OwnerAddr)
}

func TestProcessor_Process_EventsOnlyKeepMargin(t *testing.T) {
	tm, p := setupTestProcessor(t)
	defer tearDownTestProcessor(tm)

	var set *store.WriteSet
	captureWrite(tm, &set)

	increase := increaseTxn(false)
	increase.Changes = nil

	_, err := p.Process(context.Background(), &domain.TransactionBatch{
		StartVersion: 100,
		EndVersion:   101,
		Transactions: []domain.Transaction{openTxn(), increase},
	})
	require.NoError(t, err)

	assert.Empty(t, set.PositionDatas)
	require.Len(t, set.MarketActivities, 2)
	assert.True(t, decimal.NewFromInt(5).Equal(*set.MarketActivities[1].MarginAmount))

	require.Len(t, set.Positions, 1)
	position := set.Positions[0]
	assert.Equal(t, domain.NewLogicalClock(101, 0), position.Clock())
	assert.Nil(t, position.OwnerAddr)
	require.NotNil(t, position.MarginAmount)
	assert.True(t, decimal.NewFromInt(10).Equal(*position.MarginAmount))
	require.NotNil(t, position.PositionSize)
	assert.True(t, decimal.NewFromInt(100).Equal(*position.PositionSize))
	require.NotNil(t, position.IsLong)
	assert.True(t, *position.IsLong)
}

func TestProcessor_Process_BatchBoundaryIndependent(t *testing.T) {
	txns := limitOrderTxns()

	project := func(batches ...[]domain.Transaction) map[string]schema.CurrentLimitOrder {
		tm, p := setupTestProcessor(t)
		defer tearDownTestProcessor(tm)

		var sets []*store.WriteSet
		captureWrites(tm, &sets)

		stored := make(map[string]schema.CurrentLimitOrder)
		for _, txns := range batches {
			_, err := p.Process(context.Background(), &domain.TransactionBatch{
				StartVersion: txns[0].Version,
				EndVersion:   txns[len(txns)-1].Version,
				Transactions: txns,
			})
			require.NoError(t, err)
			upsertLimitOrders(stored, sets[len(sets)-1].LimitOrders)
		}
		return stored
	}

	single := project(txns)
	split := project(txns[:1], txns[1:])
	assert.Equal(t, single, split)

	require.Len(t, single, 1)
	order := single[domain.StandardizeAddress("0xb3")]
	assert.Equal(t, domain.NewLogicalClock(101, 0), order.Clock())
	require.NotNil(t, order.IsLong)
	assert.True(t, *order.IsLong)
	require.NotNil(t, order.PositionSize)
	assert.True(t, decimal.NewFromInt(4).Equal(*order.PositionSize))
	require.NotNil(t, order.TriggerPrice)
	assert.True(t, decimal.NewFromInt(1950).Equal(*order.TriggerPrice))
	require.NotNil(t, order.Expiration)
	assert.True(t, decimal.NewFromInt(1704153600).Equal(*order.Expiration))
	require.NotNil(t, order.TriggerPaymentAmount)
	assert.True(t, decimal.RequireFromString("0.3").Equal(*order.TriggerPaymentAmount))
}

func TestProcessor_Process_EmptyRange(t *testing.T) {
	tm, p := setupTestProcessor(t)
	defer tearDownTestProcessor(tm)

	var set *store.WriteSet
	captureWrite(tm, &set)

	summary, err := p.Process(context.Background(), &domain.TransactionBatch{StartVersion: 5, EndVersion: 9})
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Transactions)
	assert.Equal(t, 0, set.Len())
}

func TestProcessor_Process_InvalidBatch(t *testing.T) {
	tm, p := setupTestProcessor(t)
	defer tearDownTestProcessor(tm)

	tm.writer.EXPECT().Write(gomock.Any(), gomock.Any()).Times(0)

	batch := &domain.TransactionBatch{
		StartVersion: 100,
		EndVersion:   101,
		Transactions: []domain.Transaction{increaseTxn(false), openTxn()},
	}

	_, err := p.Process(context.Background(), batch)
	require.ErrorIs(t, err, domain.ErrInvalidBatch)
	assert.True(t, domain.IsFatal(err))
}

func TestProcessor_Process_DecodeErrorIsFatal(t *testing.T) {
	tm, p := setupTestProcessor(t)
	defer tearDownTestProcessor(tm)

	tm.writer.EXPECT().Write(gomock.Any(), gomock.Any()).Times(0)

	txn := openTxn()
	txn.Events[0].Data = json.RawMessage(`{"market":{"inner":"0xa1"},"position":{"inner":"0xb1"},"is_long":"yes"}`)

	_, err := p.Process(context.Background(), &domain.TransactionBatch{
		StartVersion: 100,
		EndVersion:   100,
		Transactions: []domain.Transaction{txn},
	})

	var decodeErr *domain.DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, int64(100), decodeErr.Version)
	assert.True(t, domain.IsFatal(err))
}

func TestProcessor_Process_MissingPositionOwnerIsFatal(t *testing.T) {
	tm, p := setupTestProcessor(t)
	defer tearDownTestProcessor(tm)

	tm.writer.EXPECT().Write(gomock.Any(), gomock.Any()).Times(0)

	txn := increaseTxn(false)
	txn.Changes = txn.Changes[:1]

	_, err := p.Process(context.Background(), &domain.TransactionBatch{
		StartVersion: 101,
		EndVersion:   101,
		Transactions: []domain.Transaction{txn},
	})

	var ownershipErr *domain.MissingOwnershipError
	require.ErrorAs(t, err, &ownershipErr)
	assert.Equal(t, positionID, ownershipErr.ObjectAddress)
}

func TestProcessor_Process_WriterError(t *testing.T) {
	tm, p := setupTestProcessor(t)
	defer tearDownTestProcessor(tm)

	writeErr := &domain.StorageWriteError{Table: "market_activities", Chunk: 0, Rows: 1, Err: errors.New("connection reset")}
	tm.writer.
		EXPECT().
		Write(gomock.Any(), gomock.Any()).
		Return(nil, writeErr)

	_, err := p.Process(context.Background(), &domain.TransactionBatch{
		StartVersion: 100,
		EndVersion:   100,
		Transactions: []domain.Transaction{openTxn()},
	})

	var storageErr *domain.StorageWriteError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "market_activities", storageErr.Table)
	assert.False(t, domain.IsFatal(err))
}
