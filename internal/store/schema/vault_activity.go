package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// VaultActivity represents the vault_activities table - one immutable row per vault module event
type VaultActivity struct {
	// TransactionVersion is the ledger version of the transaction that emitted the event
	TransactionVersion  int64 `gorm:"column:transaction_version;primaryKey"`
	EventCreationNumber int64 `gorm:"column:event_creation_number;primaryKey"`
	EventSequenceNumber int64 `gorm:"column:event_sequence_number;primaryKey"`
	EventIndex          int64 `gorm:"column:event_index;primaryKey"`
	// CollectionID is the vault collection object address
	CollectionID string `gorm:"column:collection_id;not null;type:text;index:idx_vault_activities_collection"`
	// EventType is the activity label of the event kind (e.g. BorrowEvent)
	EventType string `gorm:"column:event_type;not null;type:text"`
	// VaultID is the vault object address, nil for collection-wide events
	VaultID *string `gorm:"column:vault_id;type:text;index:idx_vault_activities_vault"`
	// OwnerAddr is the vault owner, nil when it could not be resolved in the transaction
	OwnerAddr                   *string          `gorm:"column:owner_addr;type:text"`
	CollateralAmount            *decimal.Decimal `gorm:"column:collateral_amount;type:numeric"`
	BorrowAmount                *decimal.Decimal `gorm:"column:borrow_amount;type:numeric"`
	FeeAmount                   *decimal.Decimal `gorm:"column:fee_amount;type:numeric"`
	SocializedAmount            *decimal.Decimal `gorm:"column:socialized_amount;type:numeric"`
	CollateralizationRateBefore *decimal.Decimal `gorm:"column:collateralization_rate_before;type:numeric"`
	CollateralizationRateAfter  *decimal.Decimal `gorm:"column:collateralization_rate_after;type:numeric"`
	NewInterestPerSecond        *decimal.Decimal `gorm:"column:new_interest_per_second;type:numeric"`
	// TransactionTimestamp is the ledger timestamp of the transaction
	TransactionTimestamp time.Time `gorm:"column:transaction_timestamp;not null;type:timestamptz"`
	// InsertedAt is the timestamp when this row was indexed
	InsertedAt time.Time `gorm:"column:inserted_at;not null;autoCreateTime;type:timestamptz"`
}

// TableName specifies the table name for the VaultActivity model
func (VaultActivity) TableName() string {
	return "vault_activities"
}
