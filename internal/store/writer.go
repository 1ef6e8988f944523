package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mirage-protocol/mirage-indexer/internal/domain"
	"github.com/mirage-protocol/mirage-indexer/internal/logger"
	"github.com/mirage-protocol/mirage-indexer/internal/store/schema"
)

// DEFAULT_WRITE_CONCURRENCY is the number of tables written at the same time when unset
const DEFAULT_WRITE_CONCURRENCY = 4

// WriteSet is every row produced for one batch. Current-state slices must already be reduced
// to one row per entity.
type WriteSet struct {
	MarketActivities     []schema.MarketActivity
	VaultActivities      []schema.VaultActivity
	Trades               []schema.Trade
	MarketDatas          []schema.MarketData
	PositionDatas        []schema.PositionData
	VaultCollectionDatas []schema.VaultCollectionData
	VaultDatas           []schema.VaultData
	MarketConfigs        []schema.MarketConfig
	VaultConfigs         []schema.VaultConfig
	TpslDatas            []schema.TpslData
	LimitOrderDatas      []schema.LimitOrderData
	FeeStoreDatas        []schema.FeeStoreData
	DebtStoreDatas       []schema.DebtStoreData

	Positions   []schema.CurrentPosition
	Tpsls       []schema.CurrentTpsl
	LimitOrders []schema.CurrentLimitOrder
	Vaults      []schema.CurrentVault
}

// Len returns the total number of rows in the set
func (s *WriteSet) Len() int {
	return len(s.MarketActivities) + len(s.VaultActivities) + len(s.Trades) +
		len(s.MarketDatas) + len(s.PositionDatas) + len(s.VaultCollectionDatas) + len(s.VaultDatas) +
		len(s.MarketConfigs) + len(s.VaultConfigs) + len(s.TpslDatas) + len(s.LimitOrderDatas) +
		len(s.FeeStoreDatas) + len(s.DebtStoreDatas) +
		len(s.Positions) + len(s.Tpsls) + len(s.LimitOrders) + len(s.Vaults)
}

// WriteSummary reports the rows submitted per logical table
type WriteSummary struct {
	Rows map[string]int
}

// Total returns the number of rows submitted across all tables
func (s *WriteSummary) Total() int {
	total := 0
	for _, n := range s.Rows {
		total += n
	}
	return total
}

//go:generate mockgen -source=writer.go -destination=../mocks/writer.go -package=mocks -mock_names=Writer=MockWriter

// Writer persists the rows of one batch
type Writer interface {
	// Write applies history inserts and current-state transitions. It does not retry; a failed
	// chunk is reported as *domain.StorageWriteError and the whole set may be written again.
	Write(ctx context.Context, set *WriteSet) (*WriteSummary, error)
}

// WriterConfig configures the storage writer
type WriterConfig struct {
	Mode LifecycleMode
	// ChunkSizes caps the rows per statement for a table, keyed by physical table name
	ChunkSizes map[string]int
	// Concurrency is the number of tables written in parallel
	Concurrency int
}

type writer struct {
	db          *gorm.DB
	lifecycle   LifecycleApplier
	concurrency int
	chunkSizes  map[*Table]int
}

// NewWriter creates a storage writer. Unknown table names in the chunk size configuration are
// rejected so a typo cannot silently fall back to the default.
func NewWriter(db *gorm.DB, cfg WriterConfig) (Writer, error) {
	if !cfg.Mode.Valid() {
		return nil, &domain.ConfigError{Key: "processor.lifecycle_mode", Reason: fmt.Sprintf("unknown mode %q", cfg.Mode)}
	}

	known := make(map[string]bool)
	for _, name := range TableNames() {
		known[name] = true
	}
	for name, size := range cfg.ChunkSizes {
		if !known[name] {
			return nil, &domain.ConfigError{Key: "processor.table_chunk_sizes." + name, Reason: "unknown table"}
		}
		if size <= 0 {
			return nil, &domain.ConfigError{Key: "processor.table_chunk_sizes." + name, Reason: "chunk size must be positive"}
		}
	}

	lifecycle, err := NewLifecycleApplier(db, cfg.Mode)
	if err != nil {
		return nil, &domain.ConfigError{Key: "processor.lifecycle_mode", Reason: err.Error()}
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DEFAULT_WRITE_CONCURRENCY
	}

	w := &writer{
		db:          db,
		lifecycle:   lifecycle,
		concurrency: concurrency,
		chunkSizes:  make(map[*Table]int),
	}
	for _, t := range append(append([]*Table{}, historyTables...), entityTables...) {
		w.chunkSizes[t] = safeChunkSize(len(t.Columns), ceiling(cfg.ChunkSizes, t, cfg.Mode))
	}

	return w, nil
}

// ceiling returns the configured cap of the table, taking the smallest one when a table pair
// has both halves configured
func ceiling(sizes map[string]int, t *Table, mode LifecycleMode) int {
	names := []string{t.Name}
	if mode == LifecycleTablePair && t.Open != "" {
		names = []string{t.Open, t.Closed}
	}

	limit := 0
	for _, name := range names {
		if size, ok := sizes[name]; ok && (limit == 0 || size < limit) {
			limit = size
		}
	}
	return limit
}

// ChunkSize returns the rows per statement used for the named logical table
func (w *writer) ChunkSize(name string) int {
	for t, size := range w.chunkSizes {
		if t.Name == name {
			return size
		}
	}
	return 0
}

type tableWrite struct {
	table *Table
	rows  int
	apply func(ctx context.Context) error
}

func (w *writer) Write(ctx context.Context, set *WriteSet) (*WriteSummary, error) {
	writes := []tableWrite{
		historyWrite(w, marketActivities, set.MarketActivities),
		historyWrite(w, vaultActivities, set.VaultActivities),
		historyWrite(w, trades, set.Trades),
		historyWrite(w, marketDatas, set.MarketDatas),
		historyWrite(w, positionDatas, set.PositionDatas),
		historyWrite(w, vaultCollectionDatas, set.VaultCollectionDatas),
		historyWrite(w, vaultDatas, set.VaultDatas),
		historyWrite(w, marketConfigs, set.MarketConfigs),
		historyWrite(w, vaultConfigs, set.VaultConfigs),
		historyWrite(w, tpslDatas, set.TpslDatas),
		historyWrite(w, limitOrderDatas, set.LimitOrderDatas),
		historyWrite(w, feeStoreDatas, set.FeeStoreDatas),
		historyWrite(w, debtStoreDatas, set.DebtStoreDatas),
		entityWrite(w, currentPositions, set.Positions),
		entityWrite(w, currentTpsls, set.Tpsls),
		entityWrite(w, currentLimitOrders, set.LimitOrders),
		entityWrite(w, currentVaults, set.Vaults),
	}

	pool := pond.NewPool(w.concurrency, pond.WithContext(ctx))
	defer pool.StopAndWait()

	group := pool.NewGroup()
	summary := &WriteSummary{Rows: make(map[string]int)}
	var mu sync.Mutex

	for _, write := range writes {
		if write.rows == 0 {
			continue
		}
		group.SubmitErr(func() error {
			if err := write.apply(ctx); err != nil {
				return err
			}
			mu.Lock()
			summary.Rows[write.table.Name] = write.rows
			mu.Unlock()
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	logger.DebugCtx(ctx, "Batch written",
		zap.Int("rows", summary.Total()),
		zap.Int("tables", len(summary.Rows)))

	return summary, nil
}

// historyWrite inserts immutable rows chunk by chunk; rows already present are left untouched
func historyWrite[T any](w *writer, table *Table, rows []T) tableWrite {
	return tableWrite{
		table: table,
		rows:  len(rows),
		apply: func(ctx context.Context) error {
			for i, chunk := range splitChunks(rows, w.chunkSizes[table]) {
				err := w.db.WithContext(ctx).
					Table(table.Name).
					Clauses(clause.OnConflict{DoNothing: true}).
					Create(&chunk).Error
				if err != nil {
					return &domain.StorageWriteError{Table: table.Name, Chunk: i, Rows: len(chunk), Err: err}
				}
			}
			return nil
		},
	}
}

type currentRow interface {
	EntityID() string
	Closed() bool
}

// entityWrite applies current-state rows chunk by chunk in entity id order
func entityWrite[T currentRow](w *writer, table *Table, rows []T) tableWrite {
	return tableWrite{
		table: table,
		rows:  len(rows),
		apply: func(ctx context.Context) error {
			sorted := make([]T, len(rows))
			copy(sorted, rows)
			sort.Slice(sorted, func(i, j int) bool { return sorted[i].EntityID() < sorted[j].EntityID() })

			for i, chunk := range splitChunks(sorted, w.chunkSizes[table]) {
				if err := w.lifecycle.ApplyLifecycle(ctx, table, partition(chunk)); err != nil {
					return &domain.StorageWriteError{Table: table.Name, Chunk: i, Rows: len(chunk), Err: err}
				}
			}
			return nil
		},
	}
}

func partition[T currentRow](rows []T) LifecycleBatch {
	var active, closed []T
	var activeIDs, closedIDs []string
	for _, row := range rows {
		if row.Closed() {
			closed = append(closed, row)
			closedIDs = append(closedIDs, row.EntityID())
		} else {
			active = append(active, row)
			activeIDs = append(activeIDs, row.EntityID())
		}
	}
	return LifecycleBatch{Active: &active, ActiveIDs: activeIDs, Closed: &closed, ClosedIDs: closedIDs}
}
