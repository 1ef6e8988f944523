package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketConfig represents the market_configs table - the configuration carried by every market snapshot
type MarketConfig struct {
	TransactionVersion  int64  `gorm:"column:transaction_version;primaryKey"`
	WriteSetChangeIndex int64  `gorm:"column:write_set_change_index;primaryKey"`
	MarketID            string `gorm:"column:market_id;not null;type:text;index:idx_market_configs_market"`
	MarginToken         string `gorm:"column:margin_token;not null;type:text"`
	PerpSymbol          string `gorm:"column:perp_symbol;not null;type:text"`

	MinTakerFee     decimal.Decimal `gorm:"column:min_taker_fee;not null;type:numeric"`
	MaxTakerFee     decimal.Decimal `gorm:"column:max_taker_fee;not null;type:numeric"`
	MinMakerFee     decimal.Decimal `gorm:"column:min_maker_fee;not null;type:numeric"`
	MaxMakerFee     decimal.Decimal `gorm:"column:max_maker_fee;not null;type:numeric"`
	MinFundingRate  decimal.Decimal `gorm:"column:min_funding_rate;not null;type:numeric"`
	MaxFundingRate  decimal.Decimal `gorm:"column:max_funding_rate;not null;type:numeric"`
	BaseFundingRate decimal.Decimal `gorm:"column:base_funding_rate;not null;type:numeric"`
	FundingInterval decimal.Decimal `gorm:"column:funding_interval;not null;type:numeric"`

	MaxOI             decimal.Decimal `gorm:"column:max_oi;not null;type:numeric"`
	MaxOIImbalance    decimal.Decimal `gorm:"column:max_oi_imbalance;not null;type:numeric"`
	MaintenanceMargin decimal.Decimal `gorm:"column:maintenance_margin;not null;type:numeric"`
	MaxLeverage       decimal.Decimal `gorm:"column:max_leverage;not null;type:numeric"`
	MinOrderSize      decimal.Decimal `gorm:"column:min_order_size;not null;type:numeric"`
	MaxOrderSize      decimal.Decimal `gorm:"column:max_order_size;not null;type:numeric"`
	MinMarginAmount   decimal.Decimal `gorm:"column:min_margin_amount;not null;type:numeric"`

	TransactionTimestamp time.Time `gorm:"column:transaction_timestamp;not null;type:timestamptz"`
	InsertedAt           time.Time `gorm:"column:inserted_at;not null;autoCreateTime;type:timestamptz"`
}

// TableName specifies the table name for the MarketConfig model
func (MarketConfig) TableName() string {
	return "market_configs"
}

// VaultConfig represents the vault_configs table - the configuration carried by every vault collection snapshot
type VaultConfig struct {
	TransactionVersion  int64  `gorm:"column:transaction_version;primaryKey"`
	WriteSetChangeIndex int64  `gorm:"column:write_set_change_index;primaryKey"`
	CollectionID        string `gorm:"column:collection_id;not null;type:text;index:idx_vault_configs_collection"`
	CollateralToken     string `gorm:"column:collateral_token;not null;type:text"`
	BorrowToken         string `gorm:"column:borrow_token;not null;type:text"`

	InterestPerSecond                decimal.Decimal `gorm:"column:interest_per_second;not null;type:numeric"`
	InitialCollateralizationRate     decimal.Decimal `gorm:"column:initial_collateralization_rate;not null;type:numeric"`
	MaintenanceCollateralizationRate decimal.Decimal `gorm:"column:maintenance_collateralization_rate;not null;type:numeric"`
	LiquidationMultiplier            decimal.Decimal `gorm:"column:liquidation_multiplier;not null;type:numeric"`
	BorrowFee                        decimal.Decimal `gorm:"column:borrow_fee;not null;type:numeric"`
	ProtocolLiquidationFee           decimal.Decimal `gorm:"column:protocol_liquidation_fee;not null;type:numeric"`

	TransactionTimestamp time.Time `gorm:"column:transaction_timestamp;not null;type:timestamptz"`
	InsertedAt           time.Time `gorm:"column:inserted_at;not null;autoCreateTime;type:timestamptz"`
}

// TableName specifies the table name for the VaultConfig model
func (VaultConfig) TableName() string {
	return "vault_configs"
}
