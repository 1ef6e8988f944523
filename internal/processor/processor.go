package processor

import (
	"context"
	"fmt"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/mirage-protocol/mirage-indexer/internal/decoder"
	"github.com/mirage-protocol/mirage-indexer/internal/domain"
	"github.com/mirage-protocol/mirage-indexer/internal/logger"
	"github.com/mirage-protocol/mirage-indexer/internal/mapper"
	"github.com/mirage-protocol/mirage-indexer/internal/ownership"
	"github.com/mirage-protocol/mirage-indexer/internal/reducer"
	"github.com/mirage-protocol/mirage-indexer/internal/store"
	"github.com/mirage-protocol/mirage-indexer/internal/store/schema"
)

// Summary describes one processed batch
type Summary struct {
	BatchID      string
	StartVersion int64
	EndVersion   int64
	Transactions int
	// Rows is the number of rows submitted per table
	Rows map[string]int
}

//go:generate mockgen -source=processor.go -destination=../mocks/processor.go -package=mocks -mock_names=Processor=MockProcessor

// Processor projects a contiguous range of transactions into storage
type Processor interface {
	// Process decodes, maps, reduces and writes one batch. Errors for which domain.IsFatal is
	// true will fail again on retry.
	Process(ctx context.Context, batch *domain.TransactionBatch) (*Summary, error)
}

type processor struct {
	decoder *decoder.Decoder
	mapper  *mapper.Mapper
	writer  store.Writer
}

// New creates a processor
func New(dec *decoder.Decoder, m *mapper.Mapper, writer store.Writer) Processor {
	return &processor{
		decoder: dec,
		mapper:  m,
		writer:  writer,
	}
}

func (p *processor) Process(ctx context.Context, batch *domain.TransactionBatch) (*Summary, error) {
	batchID := ulid.Make().String()
	ctx = logger.WithFields(ctx,
		zap.String("batch_id", batchID),
		zap.Int64("start_version", batch.StartVersion),
		zap.Int64("end_version", batch.EndVersion))

	set, err := p.Project(batch)
	if err != nil {
		logger.ErrorCtx(ctx, err)
		return nil, err
	}

	written, err := p.writer.Write(ctx, set)
	if err != nil {
		logger.WarnCtx(ctx, "Failed to write batch", zap.Error(err))
		return nil, err
	}

	summary := &Summary{
		BatchID:      batchID,
		StartVersion: batch.StartVersion,
		EndVersion:   batch.EndVersion,
		Transactions: len(batch.Transactions),
		Rows:         written.Rows,
	}

	logger.InfoCtx(ctx, "Processed batch",
		zap.Int("transactions", summary.Transactions),
		zap.Int("rows", written.Total()))

	return summary, nil
}

// Project runs the pure part of the pipeline: it decodes and maps every transaction of the
// batch in ledger order and reduces current-state rows to one per entity.
func (p *processor) Project(batch *domain.TransactionBatch) (*store.WriteSet, error) {
	if err := batch.Validate(); err != nil {
		return nil, err
	}

	set := &store.WriteSet{}
	var (
		positions   []schema.CurrentPosition
		tpsls       []schema.CurrentTpsl
		limitOrders []schema.CurrentLimitOrder
		vaults      []schema.CurrentVault
	)

	for i := range batch.Transactions {
		txn, err := p.decoder.DecodeTransaction(&batch.Transactions[i])
		if err != nil {
			return nil, err
		}

		facts := ownership.Resolve(txn)
		bundles, err := p.mapper.MapTransaction(txn, facts)
		if err != nil {
			return nil, fmt.Errorf("failed to map transaction %d: %w", txn.Version, err)
		}

		for _, b := range bundles {
			appendRow(&set.MarketActivities, b.MarketActivity)
			appendRow(&set.VaultActivities, b.VaultActivity)
			appendRow(&set.Trades, b.Trade)
			appendRow(&set.MarketDatas, b.MarketData)
			appendRow(&set.PositionDatas, b.PositionData)
			appendRow(&set.VaultCollectionDatas, b.VaultCollectionData)
			appendRow(&set.VaultDatas, b.VaultData)
			appendRow(&set.MarketConfigs, b.MarketConfig)
			appendRow(&set.VaultConfigs, b.VaultConfig)
			appendRow(&set.TpslDatas, b.TpslData)
			appendRow(&set.LimitOrderDatas, b.LimitOrderData)
			appendRow(&set.FeeStoreDatas, b.FeeStoreData)
			appendRow(&set.DebtStoreDatas, b.DebtStoreData)
			appendRow(&positions, b.Position)
			appendRow(&tpsls, b.Tpsl)
			appendRow(&limitOrders, b.LimitOrder)
			appendRow(&vaults, b.Vault)
		}
	}

	set.Positions = reducer.Reduce(positions)
	set.Tpsls = reducer.Reduce(tpsls)
	set.LimitOrders = reducer.Reduce(limitOrders)
	set.Vaults = reducer.Reduce(vaults)

	return set, nil
}

func appendRow[T any](rows *[]T, row *T) {
	if row != nil {
		*rows = append(*rows, *row)
	}
}
