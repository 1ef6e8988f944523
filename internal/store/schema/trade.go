package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade represents the trade_datas table - fills that change a position's size
type Trade struct {
	// TransactionVersion is the ledger version of the trade
	TransactionVersion int64 `gorm:"column:transaction_version;primaryKey"`
	// EventIndex is the position of the originating event in the transaction
	EventIndex int64 `gorm:"column:event_index;primaryKey"`
	// MarketID is the market object address
	MarketID string `gorm:"column:market_id;not null;type:text"`
	// PositionID is the position object address
	PositionID string `gorm:"column:position_id;not null;type:text;index:idx_trade_datas_position"`
	// OwnerAddr is the position owner; trades are only recorded when it is known
	OwnerAddr    string          `gorm:"column:owner_addr;not null;type:text;index:idx_trade_datas_owner"`
	IsLong       bool            `gorm:"column:is_long;not null"`
	PositionSize decimal.Decimal `gorm:"column:position_size;not null;type:numeric"`
	Price        decimal.Decimal `gorm:"column:price;not null;type:numeric"`
	Fee          decimal.Decimal `gorm:"column:fee;not null;type:numeric"`
	// Pnl is the realized profit or loss, zero for opening trades
	Pnl decimal.Decimal `gorm:"column:pnl;not null;type:numeric"`
	// TransactionTimestamp is the ledger timestamp of the transaction
	TransactionTimestamp time.Time `gorm:"column:transaction_timestamp;not null;type:timestamptz"`
	InsertedAt           time.Time `gorm:"column:inserted_at;not null;autoCreateTime;type:timestamptz"`
}

// TableName specifies the table name for the Trade model
func (Trade) TableName() string {
	return "trade_datas"
}
