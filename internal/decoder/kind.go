package decoder

import "strings"

// Module identifies the account a supported type tag is published under
type Module int

const (
	ModuleNative Module = iota
	// ModuleVault also publishes the mirage asset and fee manager modules
	ModuleVault
	ModuleMarket
)

// Kind is the closed set of ledger values this indexer understands
type Kind int

const (
	KindUnknown Kind = iota

	KindObjectCore
	KindTokenBurn

	KindMarket
	KindPosition
	KindStrategy
	KindTpsl
	KindLimitOrder

	KindUpdateFunding
	KindOpenPosition
	KindClosePosition
	KindIncreaseMargin
	KindDecreaseMargin
	KindIncreasePositionSize
	KindDecreasePositionSize
	KindLiquidatePosition
	KindSettlePnl
	KindPlaceTpsl
	KindUpdateTpsl
	KindCancelTpsl
	KindTriggerTpsl
	KindIncreaseTpslTriggerPayment
	KindDecreaseTpslTriggerPayment
	KindPlaceLimitOrder
	KindUpdateLimitOrder
	KindCancelLimitOrder
	KindTriggerLimitOrder
	KindIncreaseLimitOrderTriggerPayment
	KindDecreaseLimitOrderTriggerPayment

	KindVaultCollection
	KindVault
	KindFeeStore
	KindDebtStore

	KindAddCollateral
	KindRemoveCollateral
	KindBorrow
	KindRepay
	KindLiquidation
	KindInterestRateChange

	kindCount
)

// kindEntry describes where a kind's type tag lives and how its payload decodes
type kindEntry struct {
	module Module
	path   string // "<module>::<Name>" relative to the module address, or the full tag for native kinds
	event  bool
	decode func(data []byte) (any, error)
}

var kindTable = [kindCount]kindEntry{
	KindObjectCore: {module: ModuleNative, path: "0x1::object::ObjectCore", decode: decodeAs[ObjectCore]},
	KindTokenBurn:  {module: ModuleNative, path: "0x4::collection::Burn", event: true, decode: decodeAs[TokenBurnEvent]},

	KindMarket:   {module: ModuleMarket, path: "market::Market", decode: decodeAs[MarketResource]},
	KindPosition: {module: ModuleMarket, path: "market::Position", decode: decodeAs[PositionResource]},
	KindStrategy: {module: ModuleMarket, path: "market::Strategy", decode: decodeAs[StrategyResource]},

	KindTpsl:       {module: ModuleMarket, path: "tpsl::TpSl", decode: decodeAs[TpslResource]},
	KindLimitOrder: {module: ModuleMarket, path: "limit_order::LimitOrder", decode: decodeAs[LimitOrderResource]},

	KindUpdateFunding:        {module: ModuleMarket, path: "market::UpdateFundingEvent", event: true, decode: decodeAs[UpdateFundingEvent]},
	KindOpenPosition:         {module: ModuleMarket, path: "market::OpenPositionEvent", event: true, decode: decodeAs[OpenPositionEvent]},
	KindClosePosition:        {module: ModuleMarket, path: "market::ClosePositionEvent", event: true, decode: decodeAs[ClosePositionEvent]},
	KindIncreaseMargin:       {module: ModuleMarket, path: "market::IncreaseMarginEvent", event: true, decode: decodeAs[MarginEvent]},
	KindDecreaseMargin:       {module: ModuleMarket, path: "market::DecreaseMarginEvent", event: true, decode: decodeAs[MarginEvent]},
	KindIncreasePositionSize: {module: ModuleMarket, path: "market::IncreasePositionSizeEvent", event: true, decode: decodeAs[IncreasePositionSizeEvent]},
	KindDecreasePositionSize: {module: ModuleMarket, path: "market::DecreasePositionSizeEvent", event: true, decode: decodeAs[DecreasePositionSizeEvent]},
	KindLiquidatePosition:    {module: ModuleMarket, path: "market::LiquidatePositionEvent", event: true, decode: decodeAs[LiquidatePositionEvent]},
	KindSettlePnl:            {module: ModuleMarket, path: "market::SettlePnlEvent", event: true, decode: decodeAs[SettlePnlEvent]},

	KindPlaceTpsl:                  {module: ModuleMarket, path: "tpsl::PlaceTpslEvent", event: true, decode: decodeAs[TpslEvent]},
	KindUpdateTpsl:                 {module: ModuleMarket, path: "tpsl::UpdateTpslEvent", event: true, decode: decodeAs[TpslEvent]},
	KindCancelTpsl:                 {module: ModuleMarket, path: "tpsl::CancelTpslEvent", event: true, decode: decodeAs[TpslRefEvent]},
	KindTriggerTpsl:                {module: ModuleMarket, path: "tpsl::TriggerTpslEvent", event: true, decode: decodeAs[TpslRefEvent]},
	KindIncreaseTpslTriggerPayment: {module: ModuleMarket, path: "tpsl::IncreaseTpslTriggerPaymentEvent", event: true, decode: decodeAs[IncreaseTpslTriggerPaymentEvent]},
	KindDecreaseTpslTriggerPayment: {module: ModuleMarket, path: "tpsl::DecreaseTpslTriggerPaymentEvent", event: true, decode: decodeAs[DecreaseTpslTriggerPaymentEvent]},

	KindPlaceLimitOrder:                  {module: ModuleMarket, path: "limit_order::PlaceLimitOrderEvent", event: true, decode: decodeAs[LimitOrderEvent]},
	KindUpdateLimitOrder:                 {module: ModuleMarket, path: "limit_order::UpdateLimitOrderEvent", event: true, decode: decodeAs[LimitOrderEvent]},
	KindCancelLimitOrder:                 {module: ModuleMarket, path: "limit_order::CancelLimitOrderEvent", event: true, decode: decodeAs[LimitOrderRefEvent]},
	KindTriggerLimitOrder:                {module: ModuleMarket, path: "limit_order::TriggerLimitOrderEvent", event: true, decode: decodeAs[LimitOrderRefEvent]},
	KindIncreaseLimitOrderTriggerPayment: {module: ModuleMarket, path: "limit_order::IncreaseLimitOrderTriggerPaymentEvent", event: true, decode: decodeAs[IncreaseLimitOrderTriggerPaymentEvent]},
	KindDecreaseLimitOrderTriggerPayment: {module: ModuleMarket, path: "limit_order::DecreaseLimitOrderTriggerPaymentEvent", event: true, decode: decodeAs[DecreaseLimitOrderTriggerPaymentEvent]},

	KindVaultCollection: {module: ModuleVault, path: "vault::VaultCollection", decode: decodeAs[VaultCollectionResource]},
	KindVault:           {module: ModuleVault, path: "vault::Vault", decode: decodeAs[VaultResource]},
	KindFeeStore:        {module: ModuleVault, path: "fee_manager::FeeStore", decode: decodeAs[FeeStoreResource]},
	KindDebtStore:       {module: ModuleVault, path: "mirage::MirageDebtStore", decode: decodeAs[DebtStoreResource]},

	KindAddCollateral:      {module: ModuleVault, path: "vault::AddCollateralEvent", event: true, decode: decodeAs[CollateralEvent]},
	KindRemoveCollateral:   {module: ModuleVault, path: "vault::RemoveCollateralEvent", event: true, decode: decodeAs[CollateralEvent]},
	KindBorrow:             {module: ModuleVault, path: "vault::BorrowEvent", event: true, decode: decodeAs[BorrowEvent]},
	KindRepay:              {module: ModuleVault, path: "vault::RepayEvent", event: true, decode: decodeAs[BorrowEvent]},
	KindLiquidation:        {module: ModuleVault, path: "vault::LiquidationEvent", event: true, decode: decodeAs[VaultLiquidationEvent]},
	KindInterestRateChange: {module: ModuleVault, path: "vault::InterestRateChangeEvent", event: true, decode: decodeAs[InterestRateChangeEvent]},
}

// Kinds returns every supported kind
func Kinds() []Kind {
	kinds := make([]Kind, 0, kindCount-1)
	for k := KindUnknown + 1; k < kindCount; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

// IsEvent reports whether the kind is decoded from events rather than resources
func (k Kind) IsEvent() bool {
	return k.valid() && kindTable[k].event
}

// Module returns the module the kind is published under
func (k Kind) Module() Module {
	if !k.valid() {
		return ModuleNative
	}
	return kindTable[k].module
}

// String returns the move struct name of the kind, e.g. OpenPositionEvent
func (k Kind) String() string {
	if !k.valid() {
		return "Unknown"
	}
	path := kindTable[k].path
	return path[strings.LastIndex(path, "::")+2:]
}

func (k Kind) valid() bool {
	return k > KindUnknown && k < kindCount
}
