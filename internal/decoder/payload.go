package decoder

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/shopspring/decimal"

	"github.com/mirage-protocol/mirage-indexer/internal/domain"
)

// validator is implemented by every payload to reject shapes json.Unmarshal accepts
type validator interface {
	validate() error
}

// decodeAs decodes a payload whose fields are all required unless tagged omitempty
func decodeAs[T validator](data []byte) (any, error) {
	var v T
	if err := requireFields(data, reflect.TypeOf(v)); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	if err := v.validate(); err != nil {
		return nil, err
	}
	return &v, nil
}

// ResourceReference is an object reference, serialized as {"inner": "0x..."}
type ResourceReference struct {
	Inner string `json:"inner"`
}

// Address returns the standardized object address
func (r ResourceReference) Address() string {
	return domain.StandardizeAddress(r.Inner)
}

// Signed64 is a signed quantity kept as sign and magnitude until it is mapped to a row
type Signed64 struct {
	Negative  bool            `json:"negative"`
	Magnitude decimal.Decimal `json:"magnitude"`
}

// Decimal returns the signed value
func (s Signed64) Decimal() decimal.Decimal {
	if s.Negative {
		return s.Magnitude.Neg()
	}
	return s.Magnitude
}

func requireAddresses(addresses ...string) error {
	for _, address := range addresses {
		if _, err := domain.ParseAddress(address); err != nil {
			return fmt.Errorf("invalid reference: %w", err)
		}
	}
	return nil
}

func requireRefs(refs ...ResourceReference) error {
	addresses := make([]string, len(refs))
	for i, ref := range refs {
		addresses[i] = ref.Inner
	}
	return requireAddresses(addresses...)
}

// ObjectCore is the ledger's object metadata resource
type ObjectCore struct {
	Owner                string `json:"owner"`
	AllowUngatedTransfer bool   `json:"allow_ungated_transfer"`
}

func (o ObjectCore) validate() error { return requireAddresses(o.Owner) }

// TokenBurnEvent is emitted when a token object is burned
type TokenBurnEvent struct {
	Collection    string          `json:"collection"`
	Index         decimal.Decimal `json:"index"`
	Token         string          `json:"token"`
	PreviousOwner string          `json:"previous_owner"`
}

func (e TokenBurnEvent) validate() error { return requireAddresses(e.Token, e.PreviousOwner) }

// MarketResource is the perpetual market state
type MarketResource struct {
	MarginToken      ResourceReference `json:"margin_token"`
	PerpSymbol       string            `json:"perp_symbol"`
	TotalLongMargin  decimal.Decimal   `json:"total_long_margin"`
	TotalShortMargin decimal.Decimal   `json:"total_short_margin"`
	LongOI           decimal.Decimal   `json:"long_oi"`
	ShortOI          decimal.Decimal   `json:"short_oi"`
	NextFundingRate  Signed64          `json:"next_funding_rate"`
	LastFundingRound decimal.Decimal   `json:"last_funding_round"`
	IsLongCloseOnly  bool              `json:"is_long_close_only"`
	IsShortCloseOnly bool              `json:"is_short_close_only"`
	Config           MarketConfig      `json:"config"`
}

type FeeInfo struct {
	MinTakerFee decimal.Decimal `json:"min_taker_fee"`
	MaxTakerFee decimal.Decimal `json:"max_taker_fee"`
	MinMakerFee decimal.Decimal `json:"min_maker_fee"`
	MaxMakerFee decimal.Decimal `json:"max_maker_fee"`
}

type FundingInfo struct {
	MinFundingRate  decimal.Decimal `json:"min_funding_rate"`
	MaxFundingRate  decimal.Decimal `json:"max_funding_rate"`
	BaseFundingRate decimal.Decimal `json:"base_funding_rate"`
	FundingInterval decimal.Decimal `json:"funding_interval"`
}

// MarketConfig holds the fee, funding and sizing limits of a market
type MarketConfig struct {
	Fees              FeeInfo         `json:"fees"`
	Funding           FundingInfo     `json:"funding"`
	MaxOI             decimal.Decimal `json:"max_oi"`
	MaxOIImbalance    decimal.Decimal `json:"max_oi_imbalance"`
	MaintenanceMargin decimal.Decimal `json:"maintenance_margin"`
	MaxLeverage       decimal.Decimal `json:"max_leverage"`
	MinOrderSize      decimal.Decimal `json:"min_order_size"`
	MaxOrderSize      decimal.Decimal `json:"max_order_size"`
	MinMarginAmount   decimal.Decimal `json:"min_margin_amount"`
}

func (m MarketResource) validate() error {
	if m.PerpSymbol == "" {
		return errors.New("missing perp_symbol")
	}
	return requireRefs(m.MarginToken)
}

// PositionResource is a position object's state
type PositionResource struct {
	Market                    ResourceReference `json:"market"`
	LastSettledPrice          decimal.Decimal   `json:"last_settled_price"`
	LastOpenTimestamp         decimal.Decimal   `json:"last_open_timestamp"`
	Side                      decimal.Decimal   `json:"side"`
	MarginAmount              decimal.Decimal   `json:"margin_amount"`
	UnsettledMargin           decimal.Decimal   `json:"unsettled_margin"`
	TotalStrategyMarginAmount decimal.Decimal   `json:"total_strategy_margin_amount"`
	PositionSize              decimal.Decimal   `json:"position_size"`
	LastFundingAccumulated    Signed64          `json:"last_funding_accumulated"`
	StrategyRefs              []string          `json:"strategy_refs"`
}

func (p PositionResource) validate() error { return requireRefs(p.Market) }

// StrategyResource is the common state of tpsl and limit order objects
type StrategyResource struct {
	Market               ResourceReference `json:"market"`
	Position             ResourceReference `json:"position"`
	StrategyMarginAmount decimal.Decimal   `json:"strategy_margin_amount"`
	TriggerPaymentAmount decimal.Decimal   `json:"trigger_payment_amount"`
}

func (s StrategyResource) validate() error { return requireRefs(s.Market, s.Position) }

// UpdateFundingEvent is emitted when a market's funding rate is recalculated
type UpdateFundingEvent struct {
	Market          ResourceReference `json:"market"`
	NextFundingRate Signed64          `json:"next_funding_rate"`
	LongFunding     Signed64          `json:"long_funding"`
	ShortFunding    Signed64          `json:"short_funding"`
}

func (e UpdateFundingEvent) validate() error { return requireRefs(e.Market) }

type OpenPositionEvent struct {
	Market       ResourceReference `json:"market"`
	Position     ResourceReference `json:"position"`
	OpeningPrice decimal.Decimal   `json:"opening_price"`
	IsLong       bool              `json:"is_long"`
	MarginAmount decimal.Decimal   `json:"margin_amount"`
	PositionSize decimal.Decimal   `json:"position_size"`
	Fee          decimal.Decimal   `json:"fee"`
}

func (e OpenPositionEvent) validate() error { return requireRefs(e.Market, e.Position) }

type ClosePositionEvent struct {
	Market       ResourceReference `json:"market"`
	Position     ResourceReference `json:"position"`
	IsLong       bool              `json:"is_long"`
	PositionSize decimal.Decimal   `json:"position_size"`
	ClosingPrice decimal.Decimal   `json:"closing_price"`
	Fee          decimal.Decimal   `json:"fee"`
	Pnl          Signed64          `json:"pnl"`
}

func (e ClosePositionEvent) validate() error { return requireRefs(e.Market, e.Position) }

// MarginEvent is shared by IncreaseMarginEvent and DecreaseMarginEvent
type MarginEvent struct {
	Market       ResourceReference `json:"market"`
	Position     ResourceReference `json:"position"`
	MarginAmount decimal.Decimal   `json:"margin_amount"`
}

func (e MarginEvent) validate() error { return requireRefs(e.Market, e.Position) }

type IncreasePositionSizeEvent struct {
	Market          ResourceReference `json:"market"`
	Position        ResourceReference `json:"position"`
	IsLong          bool              `json:"is_long"`
	Amount          decimal.Decimal   `json:"amount"`
	NewOpeningPrice decimal.Decimal   `json:"new_opening_price"`
	Fee             decimal.Decimal   `json:"fee"`
}

func (e IncreasePositionSizeEvent) validate() error { return requireRefs(e.Market, e.Position) }

type DecreasePositionSizeEvent struct {
	Market       ResourceReference `json:"market"`
	Position     ResourceReference `json:"position"`
	IsLong       bool              `json:"is_long"`
	Amount       decimal.Decimal   `json:"amount"`
	ClosingPrice decimal.Decimal   `json:"closing_price"`
	Fee          decimal.Decimal   `json:"fee"`
}

func (e DecreasePositionSizeEvent) validate() error { return requireRefs(e.Market, e.Position) }

type LiquidatePositionEvent struct {
	Market                     ResourceReference `json:"market"`
	Position                   ResourceReference `json:"position"`
	IsLong                     bool              `json:"is_long"`
	PositionSize               decimal.Decimal   `json:"position_size"`
	ClosingPrice               decimal.Decimal   `json:"closing_price"`
	LiquidationFee             decimal.Decimal   `json:"liquidation_fee"`
	RemainingMaintenanceMargin decimal.Decimal   `json:"remaining_maintenance_margin"`
	ProtocolFee                decimal.Decimal   `json:"protocol_fee"`
	ClosingFee                 decimal.Decimal   `json:"closing_fee"`
	Winnings                   Signed64          `json:"winnings"`
}

func (e LiquidatePositionEvent) validate() error { return requireRefs(e.Market, e.Position) }

type SettlePnlEvent struct {
	Market   ResourceReference `json:"market"`
	Position ResourceReference `json:"position"`
	Pnl      Signed64          `json:"pnl"`
}

func (e SettlePnlEvent) validate() error { return requireRefs(e.Market, e.Position) }

// TpslEvent is shared by PlaceTpslEvent and UpdateTpslEvent
type TpslEvent struct {
	Market          ResourceReference `json:"market"`
	Position        ResourceReference `json:"position"`
	Tpsl            ResourceReference `json:"tpsl"`
	IsLong          bool              `json:"is_long"`
	TakeProfitPrice decimal.Decimal   `json:"take_profit_price"`
	StopLossPrice   decimal.Decimal   `json:"stop_loss_price"`
}

func (e TpslEvent) validate() error { return requireRefs(e.Market, e.Position, e.Tpsl) }

// TpslRefEvent is shared by CancelTpslEvent and TriggerTpslEvent
type TpslRefEvent struct {
	Market   ResourceReference `json:"market"`
	Position ResourceReference `json:"position"`
	Tpsl     ResourceReference `json:"tpsl"`
}

func (e TpslRefEvent) validate() error { return requireRefs(e.Market, e.Position, e.Tpsl) }

// IncreaseTpslTriggerPaymentEvent adds to the payment a keeper receives for triggering a tpsl
type IncreaseTpslTriggerPaymentEvent struct {
	Market         ResourceReference `json:"market"`
	Position       ResourceReference `json:"position"`
	Tpsl           ResourceReference `json:"tpsl"`
	IncreaseAmount decimal.Decimal   `json:"increase_amount"`
}

func (e IncreaseTpslTriggerPaymentEvent) validate() error {
	return requireRefs(e.Market, e.Position, e.Tpsl)
}

type DecreaseTpslTriggerPaymentEvent struct {
	Market         ResourceReference `json:"market"`
	Position       ResourceReference `json:"position"`
	Tpsl           ResourceReference `json:"tpsl"`
	DecreaseAmount decimal.Decimal   `json:"decrease_amount"`
}

func (e DecreaseTpslTriggerPaymentEvent) validate() error {
	return requireRefs(e.Market, e.Position, e.Tpsl)
}

// LimitOrderEvent is shared by PlaceLimitOrderEvent and UpdateLimitOrderEvent
type LimitOrderEvent struct {
	Market           ResourceReference `json:"market"`
	Position         ResourceReference `json:"position"`
	LimitOrder       ResourceReference `json:"limit_order"`
	IsDecreaseOnly   bool              `json:"is_decrease_only"`
	IsLong           bool              `json:"is_long"`
	PositionSize     decimal.Decimal   `json:"position_size"`
	MarginAmount     decimal.Decimal   `json:"margin_amount"`
	TriggerPrice     decimal.Decimal   `json:"trigger_price"`
	TriggersAbove    bool              `json:"triggers_above"`
	MaxPriceSlippage decimal.Decimal   `json:"max_price_slippage"`
	Expiration       decimal.Decimal   `json:"expiration"`
}

func (e LimitOrderEvent) validate() error { return requireRefs(e.Market, e.Position, e.LimitOrder) }

// LimitOrderRefEvent is shared by CancelLimitOrderEvent and TriggerLimitOrderEvent
type LimitOrderRefEvent struct {
	Market     ResourceReference `json:"market"`
	Position   ResourceReference `json:"position"`
	LimitOrder ResourceReference `json:"limit_order"`
}

func (e LimitOrderRefEvent) validate() error {
	return requireRefs(e.Market, e.Position, e.LimitOrder)
}

// IncreaseLimitOrderTriggerPaymentEvent adds to the payment a keeper receives for triggering a limit order
type IncreaseLimitOrderTriggerPaymentEvent struct {
	Market         ResourceReference `json:"market"`
	Position       ResourceReference `json:"position"`
	LimitOrder     ResourceReference `json:"limit_order"`
	IncreaseAmount decimal.Decimal   `json:"increase_amount"`
}

func (e IncreaseLimitOrderTriggerPaymentEvent) validate() error {
	return requireRefs(e.Market, e.Position, e.LimitOrder)
}

type DecreaseLimitOrderTriggerPaymentEvent struct {
	Market         ResourceReference `json:"market"`
	Position       ResourceReference `json:"position"`
	LimitOrder     ResourceReference `json:"limit_order"`
	DecreaseAmount decimal.Decimal   `json:"decrease_amount"`
}

func (e DecreaseLimitOrderTriggerPaymentEvent) validate() error {
	return requireRefs(e.Market, e.Position, e.LimitOrder)
}

// TpslResource is the tpsl strategy stored on its own object
type TpslResource struct {
	TakeProfitPrice decimal.Decimal `json:"take_profit_price"`
	StopLossPrice   decimal.Decimal `json:"stop_loss_price"`
	IsLong          bool            `json:"is_long"`
}

func (TpslResource) validate() error { return nil }

// LimitOrderResource is the limit order strategy stored on its own object
type LimitOrderResource struct {
	IsDecreaseOnly   bool            `json:"is_decrease_only"`
	PositionSize     decimal.Decimal `json:"position_size"`
	IsLong           bool            `json:"is_long"`
	TriggerPrice     decimal.Decimal `json:"trigger_price"`
	TriggersAbove    bool            `json:"triggers_above"`
	MaxPriceSlippage decimal.Decimal `json:"max_price_slippage"`
	Expiration       decimal.Decimal `json:"expiration"`
}

func (LimitOrderResource) validate() error { return nil }

// Rebase is an elastic/base share pair
type Rebase struct {
	Elastic decimal.Decimal `json:"elastic"`
	Base    decimal.Decimal `json:"base"`
}

// Base is a share amount
type Base struct {
	Amount decimal.Decimal `json:"amount"`
}

// VaultCollectionResource is the shared state of all vaults of one collateral/borrow pair
type VaultCollectionResource struct {
	CollateralToken     ResourceReference `json:"collateral_token"`
	BorrowToken         ResourceReference `json:"borrow_token"`
	TotalCollateral     decimal.Decimal   `json:"total_collateral"`
	Borrow              Rebase            `json:"borrow"`
	GlobalDebtPart      Base              `json:"global_debt_part"`
	LastInterestPayment decimal.Decimal   `json:"last_interest_payment"`
	CachedExchangeRate  decimal.Decimal   `json:"cached_exchange_rate"`
	Config              VaultConfig       `json:"config"`
}

// VaultConfig holds the interest and collateralization parameters of a vault collection
type VaultConfig struct {
	InterestPerSecond                decimal.Decimal `json:"interest_per_second"`
	InitialCollateralizationRate     decimal.Decimal `json:"initial_collateralization_rate"`
	MaintenanceCollateralizationRate decimal.Decimal `json:"maintenance_collateralization_rate"`
	LiquidationMultiplier            decimal.Decimal `json:"liquidation_multiplier"`
	BorrowFee                        decimal.Decimal `json:"borrow_fee"`
	ProtocolLiquidationFee           decimal.Decimal `json:"protocol_liquidation_fee"`
}

func (v VaultCollectionResource) validate() error {
	return requireRefs(v.CollateralToken, v.BorrowToken)
}

// VaultResource is a single user vault
type VaultResource struct {
	Collection       ResourceReference `json:"collection"`
	Collateral       ResourceReference `json:"collateral"`
	CollateralAmount decimal.Decimal   `json:"collateral_amount"`
	BorrowPart       Base              `json:"borrow_part"`
}

func (v VaultResource) validate() error { return requireRefs(v.Collection) }

// CollateralEvent is shared by AddCollateralEvent and RemoveCollateralEvent
type CollateralEvent struct {
	Collection       ResourceReference `json:"collection"`
	Vault            ResourceReference `json:"vault"`
	CollateralAmount decimal.Decimal   `json:"collateral_amount"`
}

func (e CollateralEvent) validate() error { return requireRefs(e.Collection, e.Vault) }

// BorrowEvent is shared by BorrowEvent and RepayEvent
type BorrowEvent struct {
	Collection   ResourceReference `json:"collection"`
	Vault        ResourceReference `json:"vault"`
	BorrowAmount decimal.Decimal   `json:"borrow_amount"`
	FeeAmount    decimal.Decimal   `json:"fee_amount"`
}

func (e BorrowEvent) validate() error { return requireRefs(e.Collection, e.Vault) }

type VaultLiquidationEvent struct {
	Collection                  ResourceReference `json:"collection"`
	Vault                       ResourceReference `json:"vault"`
	CollateralAmount            decimal.Decimal   `json:"collateral_amount"`
	BorrowAmount                decimal.Decimal   `json:"borrow_amount"`
	ProtocolLiquidationFee      decimal.Decimal   `json:"protocol_liquidation_fee"`
	SocializedAmount            decimal.Decimal   `json:"socialized_amount"`
	CollateralizationRateBefore decimal.Decimal   `json:"collateralization_rate_before"`
	CollateralizationRateAfter  decimal.Decimal   `json:"collateralization_rate_after"`
}

func (e VaultLiquidationEvent) validate() error { return requireRefs(e.Collection, e.Vault) }

type InterestRateChangeEvent struct {
	Collection           ResourceReference `json:"collection"`
	NewInterestPerSecond decimal.Decimal   `json:"new_interest_per_second"`
}

func (e InterestRateChangeEvent) validate() error { return requireRefs(e.Collection) }

// FeeStoreResource tracks the protocol fees accumulated by one store object
type FeeStoreResource struct {
	NetAccumulatedFees decimal.Decimal `json:"net_accumulated_fees"`
}

func (FeeStoreResource) validate() error { return nil }

type RateLimiterConfig struct {
	Name              string          `json:"name,omitempty"`
	WindowDurationSec decimal.Decimal `json:"window_duration_sec"`
	MaxOutflow        decimal.Decimal `json:"max_outflow"`
}

// RateLimiter caps the outflow of one asset over a sliding window
type RateLimiter struct {
	PrevQty        decimal.Decimal   `json:"prev_qty"`
	WindowStartSec decimal.Decimal   `json:"window_start_sec"`
	CurQty         decimal.Decimal   `json:"cur_qty"`
	Config         RateLimiterConfig `json:"config"`
}

// DebtStoreResource is the global debt of a mirage asset with its mint and burn limits
type DebtStoreResource struct {
	Debt            Rebase      `json:"debt"`
	BurnRateLimiter RateLimiter `json:"burn_rate_limiter"`
	MintRateLimiter RateLimiter `json:"mint_rate_limiter"`
}

func (DebtStoreResource) validate() error { return nil }
