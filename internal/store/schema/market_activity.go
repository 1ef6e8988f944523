package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketActivity represents the market_activities table - one immutable row per market module event
type MarketActivity struct {
	// TransactionVersion is the ledger version of the transaction that emitted the event
	TransactionVersion int64 `gorm:"column:transaction_version;primaryKey"`
	// EventCreationNumber is the creation number of the event handle (0 for module events)
	EventCreationNumber int64 `gorm:"column:event_creation_number;primaryKey"`
	// EventSequenceNumber is the sequence number within the event handle (0 for module events)
	EventSequenceNumber int64 `gorm:"column:event_sequence_number;primaryKey"`
	// EventIndex is the position of the event in the transaction
	EventIndex int64 `gorm:"column:event_index;primaryKey"`
	// MarketID is the market object address
	MarketID string `gorm:"column:market_id;not null;type:text;index:idx_market_activities_market"`
	// EventType is the activity label of the event kind (e.g. OpenPositionEvent)
	EventType string `gorm:"column:event_type;not null;type:text"`
	// PositionID is the position object address, nil for market-wide events
	PositionID *string `gorm:"column:position_id;type:text;index:idx_market_activities_position"`
	// StrategyID is the tpsl or limit order object address
	StrategyID *string `gorm:"column:strategy_id;type:text"`
	// OwnerAddr is the position owner, nil when it could not be resolved in the transaction
	OwnerAddr *string          `gorm:"column:owner_addr;type:text;index:idx_market_activities_owner"`
	PerpPrice *decimal.Decimal `gorm:"column:perp_price;type:numeric"`
	IsLong    *bool            `gorm:"column:is_long"`
	// MarginAmount is the margin posted or moved by the event
	MarginAmount     *decimal.Decimal `gorm:"column:margin_amount;type:numeric"`
	PositionSize     *decimal.Decimal `gorm:"column:position_size;type:numeric"`
	Fee              *decimal.Decimal `gorm:"column:fee;type:numeric"`
	Pnl              *decimal.Decimal `gorm:"column:pnl;type:numeric"`
	TakeProfitPrice  *decimal.Decimal `gorm:"column:take_profit_price;type:numeric"`
	StopLossPrice    *decimal.Decimal `gorm:"column:stop_loss_price;type:numeric"`
	TriggerPrice     *decimal.Decimal `gorm:"column:trigger_price;type:numeric"`
	MaxPriceSlippage *decimal.Decimal `gorm:"column:max_price_slippage;type:numeric"`
	// IsIncrease distinguishes increasing from decreasing size changes and limit orders
	IsIncrease           *bool            `gorm:"column:is_increase"`
	TriggersAbove        *bool            `gorm:"column:triggers_above"`
	Expiration           *decimal.Decimal `gorm:"column:expiration;type:numeric"`
	TriggerPaymentAmount *decimal.Decimal `gorm:"column:trigger_payment_amount;type:numeric"`
	// NextFundingRate is the signed funding rate of UpdateFundingEvent
	NextFundingRate *decimal.Decimal `gorm:"column:next_funding_rate;type:numeric"`
	// TransactionTimestamp is the ledger timestamp of the transaction
	TransactionTimestamp time.Time `gorm:"column:transaction_timestamp;not null;type:timestamptz"`
	// InsertedAt is the timestamp when this row was indexed
	InsertedAt time.Time `gorm:"column:inserted_at;not null;autoCreateTime;type:timestamptz"`
}

// TableName specifies the table name for the MarketActivity model
func (MarketActivity) TableName() string {
	return "market_activities"
}
