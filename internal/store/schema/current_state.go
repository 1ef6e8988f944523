package schema

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mirage-protocol/mirage-indexer/internal/domain"
)

// Lifecycle holds the columns shared by every current-state table. The logical clock of the row
// is (LastTransactionVersion, EventIndex); resource-derived rows store the write set change
// index in EventIndex.
type Lifecycle struct {
	// IsClosed is set once a terminal event has been applied
	IsClosed bool `gorm:"column:is_closed;not null"`
	// LastTransactionVersion is the version of the change that produced the row
	LastTransactionVersion int64 `gorm:"column:last_transaction_version;not null"`
	// EventIndex is the index of that change within its transaction
	EventIndex           int64     `gorm:"column:event_index;not null"`
	TransactionTimestamp time.Time `gorm:"column:transaction_timestamp;not null;type:timestamptz"`
	InsertedAt           time.Time `gorm:"column:inserted_at;not null;autoCreateTime;type:timestamptz"`
}

// Clock returns the logical clock of the row
func (l Lifecycle) Clock() domain.LogicalClock {
	return domain.NewLogicalClock(l.LastTransactionVersion, l.EventIndex)
}

// Closed reports whether the row records a terminal transition
func (l Lifecycle) Closed() bool {
	return l.IsClosed
}

// coalesce returns v, or older when v is unset
func coalesce[T any](v, older *T) *T {
	if v != nil {
		return v
	}
	return older
}

func coalesceString(v, older string) string {
	if v != "" {
		return v
	}
	return older
}

// CurrentPosition represents the current_positions table (open_positions / closed_positions in table pair mode)
type CurrentPosition struct {
	// PositionID is the position object address
	PositionID string `gorm:"column:position_id;primaryKey;type:text"`
	MarketID   string `gorm:"column:market_id;not null;type:text"`
	// OwnerAddr is NULL until an owner has been resolved for the position
	OwnerAddr    *string          `gorm:"column:owner_addr;type:text;index:idx_current_positions_owner"`
	IsLong       *bool            `gorm:"column:is_long"`
	MarginAmount *decimal.Decimal `gorm:"column:margin_amount;type:numeric"`
	PositionSize *decimal.Decimal `gorm:"column:position_size;type:numeric"`
	// LastPrice is the last settled or opening price of the position
	LastPrice *decimal.Decimal `gorm:"column:last_price;type:numeric"`
	Lifecycle `gorm:"embedded"`
}

// TableName specifies the table name for the CurrentPosition model
func (CurrentPosition) TableName() string {
	return "current_positions"
}

// EntityID returns the position object address
func (p CurrentPosition) EntityID() string {
	return p.PositionID
}

// Merge fills the columns p leaves NULL from an older row of the same position
func (p CurrentPosition) Merge(older CurrentPosition) CurrentPosition {
	p.MarketID = coalesceString(p.MarketID, older.MarketID)
	p.OwnerAddr = coalesce(p.OwnerAddr, older.OwnerAddr)
	p.IsLong = coalesce(p.IsLong, older.IsLong)
	p.MarginAmount = coalesce(p.MarginAmount, older.MarginAmount)
	p.PositionSize = coalesce(p.PositionSize, older.PositionSize)
	p.LastPrice = coalesce(p.LastPrice, older.LastPrice)
	return p
}

// CurrentTpsl represents the current_tpsls table
type CurrentTpsl struct {
	// TpslID is the tpsl object address
	TpslID               string           `gorm:"column:tpsl_id;primaryKey;type:text"`
	PositionID           string           `gorm:"column:position_id;not null;type:text;index:idx_current_tpsls_position"`
	MarketID             string           `gorm:"column:market_id;not null;type:text"`
	OwnerAddr            *string          `gorm:"column:owner_addr;type:text"`
	IsLong               *bool            `gorm:"column:is_long"`
	TakeProfitPrice      *decimal.Decimal `gorm:"column:take_profit_price;type:numeric"`
	StopLossPrice        *decimal.Decimal `gorm:"column:stop_loss_price;type:numeric"`
	TriggerPaymentAmount *decimal.Decimal `gorm:"column:trigger_payment_amount;type:numeric"`
	Lifecycle            `gorm:"embedded"`
}

// TableName specifies the table name for the CurrentTpsl model
func (CurrentTpsl) TableName() string {
	return "current_tpsls"
}

// EntityID returns the tpsl object address
func (t CurrentTpsl) EntityID() string {
	return t.TpslID
}

// Merge fills the columns t leaves NULL from an older row of the same tpsl
func (t CurrentTpsl) Merge(older CurrentTpsl) CurrentTpsl {
	t.PositionID = coalesceString(t.PositionID, older.PositionID)
	t.MarketID = coalesceString(t.MarketID, older.MarketID)
	t.OwnerAddr = coalesce(t.OwnerAddr, older.OwnerAddr)
	t.IsLong = coalesce(t.IsLong, older.IsLong)
	t.TakeProfitPrice = coalesce(t.TakeProfitPrice, older.TakeProfitPrice)
	t.StopLossPrice = coalesce(t.StopLossPrice, older.StopLossPrice)
	t.TriggerPaymentAmount = coalesce(t.TriggerPaymentAmount, older.TriggerPaymentAmount)
	return t
}

// CurrentLimitOrder represents the current_limit_orders table
type CurrentLimitOrder struct {
	// LimitOrderID is the limit order object address
	LimitOrderID         string           `gorm:"column:limit_order_id;primaryKey;type:text"`
	PositionID           string           `gorm:"column:position_id;not null;type:text;index:idx_current_limit_orders_position"`
	MarketID             string           `gorm:"column:market_id;not null;type:text"`
	OwnerAddr            *string          `gorm:"column:owner_addr;type:text"`
	IsLong               *bool            `gorm:"column:is_long"`
	IsDecreaseOnly       *bool            `gorm:"column:is_decrease_only"`
	PositionSize         *decimal.Decimal `gorm:"column:position_size;type:numeric"`
	MarginAmount         *decimal.Decimal `gorm:"column:margin_amount;type:numeric"`
	TriggerPrice         *decimal.Decimal `gorm:"column:trigger_price;type:numeric"`
	TriggersAbove        *bool            `gorm:"column:triggers_above"`
	MaxPriceSlippage     *decimal.Decimal `gorm:"column:max_price_slippage;type:numeric"`
	Expiration           *decimal.Decimal `gorm:"column:expiration;type:numeric"`
	TriggerPaymentAmount *decimal.Decimal `gorm:"column:trigger_payment_amount;type:numeric"`
	Lifecycle            `gorm:"embedded"`
}

// TableName specifies the table name for the CurrentLimitOrder model
func (CurrentLimitOrder) TableName() string {
	return "current_limit_orders"
}

// EntityID returns the limit order object address
func (o CurrentLimitOrder) EntityID() string {
	return o.LimitOrderID
}

// Merge fills the columns o leaves NULL from an older row of the same limit order
func (o CurrentLimitOrder) Merge(older CurrentLimitOrder) CurrentLimitOrder {
	o.PositionID = coalesceString(o.PositionID, older.PositionID)
	o.MarketID = coalesceString(o.MarketID, older.MarketID)
	o.OwnerAddr = coalesce(o.OwnerAddr, older.OwnerAddr)
	o.IsLong = coalesce(o.IsLong, older.IsLong)
	o.IsDecreaseOnly = coalesce(o.IsDecreaseOnly, older.IsDecreaseOnly)
	o.PositionSize = coalesce(o.PositionSize, older.PositionSize)
	o.MarginAmount = coalesce(o.MarginAmount, older.MarginAmount)
	o.TriggerPrice = coalesce(o.TriggerPrice, older.TriggerPrice)
	o.TriggersAbove = coalesce(o.TriggersAbove, older.TriggersAbove)
	o.MaxPriceSlippage = coalesce(o.MaxPriceSlippage, older.MaxPriceSlippage)
	o.Expiration = coalesce(o.Expiration, older.Expiration)
	o.TriggerPaymentAmount = coalesce(o.TriggerPaymentAmount, older.TriggerPaymentAmount)
	return o
}

// CurrentVault represents the current_vaults table
type CurrentVault struct {
	// VaultID is the vault object address
	VaultID          string           `gorm:"column:vault_id;primaryKey;type:text"`
	CollectionID     *string          `gorm:"column:collection_id;type:text"`
	OwnerAddr        *string          `gorm:"column:owner_addr;type:text;index:idx_current_vaults_owner"`
	CollateralAmount *decimal.Decimal `gorm:"column:collateral_amount;type:numeric"`
	BorrowPart       *decimal.Decimal `gorm:"column:borrow_part;type:numeric"`
	Lifecycle        `gorm:"embedded"`
}

// TableName specifies the table name for the CurrentVault model
func (CurrentVault) TableName() string {
	return "current_vaults"
}

// EntityID returns the vault object address
func (v CurrentVault) EntityID() string {
	return v.VaultID
}

// Merge fills the columns v leaves NULL from an older row of the same vault
func (v CurrentVault) Merge(older CurrentVault) CurrentVault {
	v.CollectionID = coalesce(v.CollectionID, older.CollectionID)
	v.OwnerAddr = coalesce(v.OwnerAddr, older.OwnerAddr)
	v.CollateralAmount = coalesce(v.CollateralAmount, older.CollateralAmount)
	v.BorrowPart = coalesce(v.BorrowPart, older.BorrowPart)
	return v
}
