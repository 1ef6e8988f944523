package schema

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// MarketData represents the market_datas table - snapshots of market resources
type MarketData struct {
	// TransactionVersion is the ledger version that wrote the resource
	TransactionVersion int64 `gorm:"column:transaction_version;primaryKey"`
	// WriteSetChangeIndex is the position of the resource in the transaction's write set
	WriteSetChangeIndex int64 `gorm:"column:write_set_change_index;primaryKey"`
	// MarketID is the market object address
	MarketID         string          `gorm:"column:market_id;not null;type:text;index:idx_market_datas_market"`
	PerpSymbol       string          `gorm:"column:perp_symbol;not null;type:text"`
	MarginToken      string          `gorm:"column:margin_token;not null;type:text"`
	TotalLongMargin  decimal.Decimal `gorm:"column:total_long_margin;not null;type:numeric"`
	TotalShortMargin decimal.Decimal `gorm:"column:total_short_margin;not null;type:numeric"`
	LongOI           decimal.Decimal `gorm:"column:long_oi;not null;type:numeric"`
	ShortOI          decimal.Decimal `gorm:"column:short_oi;not null;type:numeric"`
	// NextFundingRate is the signed funding rate applied at the next funding round
	NextFundingRate      decimal.Decimal `gorm:"column:next_funding_rate;not null;type:numeric"`
	LastFundingRound     decimal.Decimal `gorm:"column:last_funding_round;not null;type:numeric"`
	IsLongCloseOnly      bool            `gorm:"column:is_long_close_only;not null"`
	IsShortCloseOnly     bool            `gorm:"column:is_short_close_only;not null"`
	TransactionTimestamp time.Time       `gorm:"column:transaction_timestamp;not null;type:timestamptz"`
	InsertedAt           time.Time       `gorm:"column:inserted_at;not null;autoCreateTime;type:timestamptz"`
}

// TableName specifies the table name for the MarketData model
func (MarketData) TableName() string {
	return "market_datas"
}

// PositionData represents the position_datas table - snapshots of position resources
type PositionData struct {
	TransactionVersion  int64 `gorm:"column:transaction_version;primaryKey"`
	WriteSetChangeIndex int64 `gorm:"column:write_set_change_index;primaryKey"`
	// PositionID is the position object address
	PositionID string `gorm:"column:position_id;not null;type:text;index:idx_position_datas_position"`
	MarketID   string `gorm:"column:market_id;not null;type:text"`
	// OwnerAddr is the position owner; a snapshot is never written without one
	OwnerAddr                 string          `gorm:"column:owner_addr;not null;type:text"`
	LastSettledPrice          decimal.Decimal `gorm:"column:last_settled_price;not null;type:numeric"`
	LastOpenTimestamp         decimal.Decimal `gorm:"column:last_open_timestamp;not null;type:numeric"`
	Side                      decimal.Decimal `gorm:"column:side;not null;type:numeric"`
	MarginAmount              decimal.Decimal `gorm:"column:margin_amount;not null;type:numeric"`
	UnsettledMargin           decimal.Decimal `gorm:"column:unsettled_margin;not null;type:numeric"`
	TotalStrategyMarginAmount decimal.Decimal `gorm:"column:total_strategy_margin_amount;not null;type:numeric"`
	PositionSize              decimal.Decimal `gorm:"column:position_size;not null;type:numeric"`
	LastFundingAccumulated    decimal.Decimal `gorm:"column:last_funding_accumulated;not null;type:numeric"`
	// StrategyRefs lists the tpsl and limit order objects attached to the position
	StrategyRefs         datatypes.JSON `gorm:"column:strategy_refs;type:jsonb"`
	TransactionTimestamp time.Time      `gorm:"column:transaction_timestamp;not null;type:timestamptz"`
	InsertedAt           time.Time      `gorm:"column:inserted_at;not null;autoCreateTime;type:timestamptz"`
}

// TableName specifies the table name for the PositionData model
func (PositionData) TableName() string {
	return "position_datas"
}

// VaultCollectionData represents the vault_collection_datas table - snapshots of vault collection resources
type VaultCollectionData struct {
	TransactionVersion  int64 `gorm:"column:transaction_version;primaryKey"`
	WriteSetChangeIndex int64 `gorm:"column:write_set_change_index;primaryKey"`
	// CollectionID is the vault collection object address
	CollectionID         string          `gorm:"column:collection_id;not null;type:text;index:idx_vault_collection_datas_collection"`
	CollateralToken      string          `gorm:"column:collateral_token;not null;type:text"`
	BorrowToken          string          `gorm:"column:borrow_token;not null;type:text"`
	TotalCollateral      decimal.Decimal `gorm:"column:total_collateral;not null;type:numeric"`
	BorrowElastic        decimal.Decimal `gorm:"column:borrow_elastic;not null;type:numeric"`
	BorrowBase           decimal.Decimal `gorm:"column:borrow_base;not null;type:numeric"`
	GlobalDebtPart       decimal.Decimal `gorm:"column:global_debt_part;not null;type:numeric"`
	LastInterestPayment  decimal.Decimal `gorm:"column:last_interest_payment;not null;type:numeric"`
	CachedExchangeRate   decimal.Decimal `gorm:"column:cached_exchange_rate;not null;type:numeric"`
	TransactionTimestamp time.Time       `gorm:"column:transaction_timestamp;not null;type:timestamptz"`
	InsertedAt           time.Time       `gorm:"column:inserted_at;not null;autoCreateTime;type:timestamptz"`
}

// TableName specifies the table name for the VaultCollectionData model
func (VaultCollectionData) TableName() string {
	return "vault_collection_datas"
}

// VaultData represents the vault_datas table - snapshots of vault resources
type VaultData struct {
	TransactionVersion  int64 `gorm:"column:transaction_version;primaryKey"`
	WriteSetChangeIndex int64 `gorm:"column:write_set_change_index;primaryKey"`
	// VaultID is the vault object address
	VaultID      string `gorm:"column:vault_id;not null;type:text;index:idx_vault_datas_vault"`
	CollectionID string `gorm:"column:collection_id;not null;type:text"`
	// OwnerAddr is the vault owner; a snapshot is never written without one
	OwnerAddr            string          `gorm:"column:owner_addr;not null;type:text"`
	CollateralAmount     decimal.Decimal `gorm:"column:collateral_amount;not null;type:numeric"`
	BorrowPart           decimal.Decimal `gorm:"column:borrow_part;not null;type:numeric"`
	TransactionTimestamp time.Time       `gorm:"column:transaction_timestamp;not null;type:timestamptz"`
	InsertedAt           time.Time       `gorm:"column:inserted_at;not null;autoCreateTime;type:timestamptz"`
}

// TableName specifies the table name for the VaultData model
func (VaultData) TableName() string {
	return "vault_datas"
}

// TpslData represents the tpsl_datas table - snapshots of tpsl strategy resources
type TpslData struct {
	TransactionVersion  int64 `gorm:"column:transaction_version;primaryKey"`
	WriteSetChangeIndex int64 `gorm:"column:write_set_change_index;primaryKey"`
	// TpslID is the tpsl object address
	TpslID string `gorm:"column:tpsl_id;not null;type:text;index:idx_tpsl_datas_tpsl"`
	// PositionID is the position the strategy object belongs to
	PositionID           string          `gorm:"column:position_id;not null;type:text"`
	MarketID             *string         `gorm:"column:market_id;type:text"`
	IsLong               bool            `gorm:"column:is_long;not null"`
	TakeProfitPrice      decimal.Decimal `gorm:"column:take_profit_price;not null;type:numeric"`
	StopLossPrice        decimal.Decimal `gorm:"column:stop_loss_price;not null;type:numeric"`
	TransactionTimestamp time.Time       `gorm:"column:transaction_timestamp;not null;type:timestamptz"`
	InsertedAt           time.Time       `gorm:"column:inserted_at;not null;autoCreateTime;type:timestamptz"`
}

// TableName specifies the table name for the TpslData model
func (TpslData) TableName() string {
	return "tpsl_datas"
}

// LimitOrderData represents the limit_order_datas table - snapshots of limit order strategy resources
type LimitOrderData struct {
	TransactionVersion  int64 `gorm:"column:transaction_version;primaryKey"`
	WriteSetChangeIndex int64 `gorm:"column:write_set_change_index;primaryKey"`
	// LimitOrderID is the limit order object address
	LimitOrderID     string          `gorm:"column:limit_order_id;not null;type:text;index:idx_limit_order_datas_limit_order"`
	PositionID       string          `gorm:"column:position_id;not null;type:text"`
	MarketID         *string         `gorm:"column:market_id;type:text"`
	IsDecreaseOnly   bool            `gorm:"column:is_decrease_only;not null"`
	IsLong           bool            `gorm:"column:is_long;not null"`
	PositionSize     decimal.Decimal `gorm:"column:position_size;not null;type:numeric"`
	TriggerPrice     decimal.Decimal `gorm:"column:trigger_price;not null;type:numeric"`
	TriggersAbove    bool            `gorm:"column:triggers_above;not null"`
	MaxPriceSlippage decimal.Decimal `gorm:"column:max_price_slippage;not null;type:numeric"`
	Expiration       decimal.Decimal `gorm:"column:expiration;not null;type:numeric"`
	// MarginAmount is the strategy margin, NULL when the Strategy resource was not written alongside
	MarginAmount         *decimal.Decimal `gorm:"column:margin_amount;type:numeric"`
	TransactionTimestamp time.Time        `gorm:"column:transaction_timestamp;not null;type:timestamptz"`
	InsertedAt           time.Time        `gorm:"column:inserted_at;not null;autoCreateTime;type:timestamptz"`
}

// TableName specifies the table name for the LimitOrderData model
func (LimitOrderData) TableName() string {
	return "limit_order_datas"
}

// FeeStoreData represents the fee_store_datas table
type FeeStoreData struct {
	TransactionVersion   int64           `gorm:"column:transaction_version;primaryKey"`
	WriteSetChangeIndex  int64           `gorm:"column:write_set_change_index;primaryKey"`
	ObjectAddress        string          `gorm:"column:object_address;not null;type:text;index:idx_fee_store_datas_object"`
	NetAccumulatedFees   decimal.Decimal `gorm:"column:net_accumulated_fees;not null;type:numeric"`
	TransactionTimestamp time.Time       `gorm:"column:transaction_timestamp;not null;type:timestamptz"`
	InsertedAt           time.Time       `gorm:"column:inserted_at;not null;autoCreateTime;type:timestamptz"`
}

// TableName specifies the table name for the FeeStoreData model
func (FeeStoreData) TableName() string {
	return "fee_store_datas"
}

// DebtStoreData represents the mirage_debt_store_datas table - global debt of a mirage asset
// with the state of its burn and mint rate limiters
type DebtStoreData struct {
	TransactionVersion    int64           `gorm:"column:transaction_version;primaryKey"`
	WriteSetChangeIndex   int64           `gorm:"column:write_set_change_index;primaryKey"`
	ObjectAddress         string          `gorm:"column:object_address;not null;type:text;index:idx_mirage_debt_store_datas_object"`
	DebtElastic           decimal.Decimal `gorm:"column:debt_elastic;not null;type:numeric"`
	DebtBase              decimal.Decimal `gorm:"column:debt_base;not null;type:numeric"`
	BurnPrevQty           decimal.Decimal `gorm:"column:burn_prev_qty;not null;type:numeric"`
	BurnCurQty            decimal.Decimal `gorm:"column:burn_cur_qty;not null;type:numeric"`
	BurnWindowStart       time.Time       `gorm:"column:burn_window_start;not null;type:timestamptz"`
	BurnWindowDurationSec decimal.Decimal `gorm:"column:burn_window_duration_sec;not null;type:numeric"`
	BurnMaxOutflow        decimal.Decimal `gorm:"column:burn_max_outflow;not null;type:numeric"`
	MintPrevQty           decimal.Decimal `gorm:"column:mint_prev_qty;not null;type:numeric"`
	MintCurQty            decimal.Decimal `gorm:"column:mint_cur_qty;not null;type:numeric"`
	MintWindowStart       time.Time       `gorm:"column:mint_window_start;not null;type:timestamptz"`
	MintWindowDurationSec decimal.Decimal `gorm:"column:mint_window_duration_sec;not null;type:numeric"`
	MintMaxOutflow        decimal.Decimal `gorm:"column:mint_max_outflow;not null;type:numeric"`
	TransactionTimestamp  time.Time       `gorm:"column:transaction_timestamp;not null;type:timestamptz"`
	InsertedAt            time.Time       `gorm:"column:inserted_at;not null;autoCreateTime;type:timestamptz"`
}

// TableName specifies the table name for the DebtStoreData model
func (DebtStoreData) TableName() string {
	return "mirage_debt_store_datas"
}
