package mapper

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/mirage-protocol/mirage-indexer/internal/decoder"
	"github.com/mirage-protocol/mirage-indexer/internal/domain"
	"github.com/mirage-protocol/mirage-indexer/internal/store/schema"
)

// marketData maps a Market resource to its snapshot and the configuration it carries
func marketData(c *resourceContext, r *decoder.MarketResource) (*Bundle, error) {
	market, marginToken := c.resource.Address, r.MarginToken.Address()
	cfg := r.Config

	return &Bundle{
		MarketData: &schema.MarketData{
			TransactionVersion:   c.version,
			WriteSetChangeIndex:  c.resource.Index,
			MarketID:             market,
			PerpSymbol:           r.PerpSymbol,
			MarginToken:          marginToken,
			TotalLongMargin:      r.TotalLongMargin,
			TotalShortMargin:     r.TotalShortMargin,
			LongOI:               r.LongOI,
			ShortOI:              r.ShortOI,
			NextFundingRate:      r.NextFundingRate.Decimal(),
			LastFundingRound:     r.LastFundingRound,
			IsLongCloseOnly:      r.IsLongCloseOnly,
			IsShortCloseOnly:     r.IsShortCloseOnly,
			TransactionTimestamp: c.timestamp,
		},
		MarketConfig: &schema.MarketConfig{
			TransactionVersion:   c.version,
			WriteSetChangeIndex:  c.resource.Index,
			MarketID:             market,
			MarginToken:          marginToken,
			PerpSymbol:           r.PerpSymbol,
			MinTakerFee:          cfg.Fees.MinTakerFee,
			MaxTakerFee:          cfg.Fees.MaxTakerFee,
			MinMakerFee:          cfg.Fees.MinMakerFee,
			MaxMakerFee:          cfg.Fees.MaxMakerFee,
			MinFundingRate:       cfg.Funding.MinFundingRate,
			MaxFundingRate:       cfg.Funding.MaxFundingRate,
			BaseFundingRate:      cfg.Funding.BaseFundingRate,
			FundingInterval:      cfg.Funding.FundingInterval,
			MaxOI:                cfg.MaxOI,
			MaxOIImbalance:       cfg.MaxOIImbalance,
			MaintenanceMargin:    cfg.MaintenanceMargin,
			MaxLeverage:          cfg.MaxLeverage,
			MinOrderSize:         cfg.MinOrderSize,
			MaxOrderSize:         cfg.MaxOrderSize,
			MinMarginAmount:      cfg.MinMarginAmount,
			TransactionTimestamp: c.timestamp,
		},
	}, nil
}

func positionData(c *resourceContext, r *decoder.PositionResource) (*Bundle, error) {
	owner, err := c.requireOwner()
	if err != nil {
		return nil, err
	}

	refs := make([]string, len(r.StrategyRefs))
	for i, ref := range r.StrategyRefs {
		refs[i] = domain.StandardizeAddress(ref)
	}
	strategyRefs, err := json.Marshal(refs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal strategy refs: %w", err)
	}

	return &Bundle{
		PositionData: &schema.PositionData{
			TransactionVersion:        c.version,
			WriteSetChangeIndex:       c.resource.Index,
			PositionID:                c.resource.Address,
			MarketID:                  r.Market.Address(),
			OwnerAddr:                 owner,
			LastSettledPrice:          r.LastSettledPrice,
			LastOpenTimestamp:         r.LastOpenTimestamp,
			Side:                      r.Side,
			MarginAmount:              r.MarginAmount,
			UnsettledMargin:           r.UnsettledMargin,
			TotalStrategyMarginAmount: r.TotalStrategyMarginAmount,
			PositionSize:              r.PositionSize,
			LastFundingAccumulated:    r.LastFundingAccumulated.Decimal(),
			StrategyRefs:              datatypes.JSON(strategyRefs),
			TransactionTimestamp:      c.timestamp,
		},
	}, nil
}

func vaultCollectionData(c *resourceContext, r *decoder.VaultCollectionResource) (*Bundle, error) {
	collection := c.resource.Address
	collateralToken, borrowToken := r.CollateralToken.Address(), r.BorrowToken.Address()

	return &Bundle{
		VaultCollectionData: &schema.VaultCollectionData{
			TransactionVersion:   c.version,
			WriteSetChangeIndex:  c.resource.Index,
			CollectionID:         collection,
			CollateralToken:      collateralToken,
			BorrowToken:          borrowToken,
			TotalCollateral:      r.TotalCollateral,
			BorrowElastic:        r.Borrow.Elastic,
			BorrowBase:           r.Borrow.Base,
			GlobalDebtPart:       r.GlobalDebtPart.Amount,
			LastInterestPayment:  r.LastInterestPayment,
			CachedExchangeRate:   r.CachedExchangeRate,
			TransactionTimestamp: c.timestamp,
		},
		VaultConfig: &schema.VaultConfig{
			TransactionVersion:               c.version,
			WriteSetChangeIndex:              c.resource.Index,
			CollectionID:                     collection,
			CollateralToken:                  collateralToken,
			BorrowToken:                      borrowToken,
			InterestPerSecond:                r.Config.InterestPerSecond,
			InitialCollateralizationRate:     r.Config.InitialCollateralizationRate,
			MaintenanceCollateralizationRate: r.Config.MaintenanceCollateralizationRate,
			LiquidationMultiplier:            r.Config.LiquidationMultiplier,
			BorrowFee:                        r.Config.BorrowFee,
			ProtocolLiquidationFee:           r.Config.ProtocolLiquidationFee,
			TransactionTimestamp:             c.timestamp,
		},
	}, nil
}

// vaultData maps a Vault resource to its snapshot and the vault's current state
func vaultData(c *resourceContext, r *decoder.VaultResource) (*Bundle, error) {
	owner, err := c.requireOwner()
	if err != nil {
		return nil, err
	}
	vault, collection := c.resource.Address, r.Collection.Address()

	return &Bundle{
		VaultData: &schema.VaultData{
			TransactionVersion:   c.version,
			WriteSetChangeIndex:  c.resource.Index,
			VaultID:              vault,
			CollectionID:         collection,
			OwnerAddr:            owner,
			CollateralAmount:     r.CollateralAmount,
			BorrowPart:           r.BorrowPart.Amount,
			TransactionTimestamp: c.timestamp,
		},
		Vault: &schema.CurrentVault{
			VaultID:          vault,
			CollectionID:     &collection,
			OwnerAddr:        &owner,
			CollateralAmount: ptr(r.CollateralAmount),
			BorrowPart:       ptr(r.BorrowPart.Amount),
			Lifecycle:        c.lifecycle(false),
		},
		Transition: TransitionUpdate,
	}, nil
}

func deleteVault(c *resourceContext) *Bundle {
	return &Bundle{
		Vault: &schema.CurrentVault{
			VaultID:   c.resource.Address,
			Lifecycle: c.lifecycle(true),
		},
		Transition: TransitionClose,
	}
}

// strategyParent returns the position and market a strategy object belongs to. The Strategy
// resource written alongside is preferred; otherwise the position is the object's owner.
func (c *resourceContext) strategyParent() (string, *string, bool) {
	if fact, ok := c.facts.Strategy(c.resource.Address); ok {
		return fact.Position, &fact.Market, true
	}
	if owner, ok := c.facts.Owner(c.resource.Address); ok {
		return owner, nil, true
	}
	return "", nil, false
}

// tpslData maps a TpSl resource to its snapshot. Resources whose position cannot be resolved
// are skipped.
func tpslData(c *resourceContext, r *decoder.TpslResource) (*Bundle, error) {
	position, market, ok := c.strategyParent()
	if !ok {
		return nil, nil
	}

	return &Bundle{
		TpslData: &schema.TpslData{
			TransactionVersion:   c.version,
			WriteSetChangeIndex:  c.resource.Index,
			TpslID:               c.resource.Address,
			PositionID:           position,
			MarketID:             market,
			IsLong:               r.IsLong,
			TakeProfitPrice:      r.TakeProfitPrice,
			StopLossPrice:        r.StopLossPrice,
			TransactionTimestamp: c.timestamp,
		},
	}, nil
}

func limitOrderData(c *resourceContext, r *decoder.LimitOrderResource) (*Bundle, error) {
	position, market, ok := c.strategyParent()
	if !ok {
		return nil, nil
	}

	var margin *decimal.Decimal
	if fact, ok := c.facts.Strategy(c.resource.Address); ok {
		margin = ptr(fact.StrategyMarginAmount)
	}

	return &Bundle{
		LimitOrderData: &schema.LimitOrderData{
			TransactionVersion:   c.version,
			WriteSetChangeIndex:  c.resource.Index,
			LimitOrderID:         c.resource.Address,
			PositionID:           position,
			MarketID:             market,
			IsDecreaseOnly:       r.IsDecreaseOnly,
			IsLong:               r.IsLong,
			PositionSize:         r.PositionSize,
			TriggerPrice:         r.TriggerPrice,
			TriggersAbove:        r.TriggersAbove,
			MaxPriceSlippage:     r.MaxPriceSlippage,
			Expiration:           r.Expiration,
			MarginAmount:         margin,
			TransactionTimestamp: c.timestamp,
		},
	}, nil
}

func feeStoreData(c *resourceContext, r *decoder.FeeStoreResource) (*Bundle, error) {
	return &Bundle{
		FeeStoreData: &schema.FeeStoreData{
			TransactionVersion:   c.version,
			WriteSetChangeIndex:  c.resource.Index,
			ObjectAddress:        c.resource.Address,
			NetAccumulatedFees:   r.NetAccumulatedFees,
			TransactionTimestamp: c.timestamp,
		},
	}, nil
}

func debtStoreData(c *resourceContext, r *decoder.DebtStoreResource) (*Bundle, error) {
	burn, mint := r.BurnRateLimiter, r.MintRateLimiter

	return &Bundle{
		DebtStoreData: &schema.DebtStoreData{
			TransactionVersion:    c.version,
			WriteSetChangeIndex:   c.resource.Index,
			ObjectAddress:         c.resource.Address,
			DebtElastic:           r.Debt.Elastic,
			DebtBase:              r.Debt.Base,
			BurnPrevQty:           burn.PrevQty,
			BurnCurQty:            burn.CurQty,
			BurnWindowStart:       unixSeconds(burn.WindowStartSec),
			BurnWindowDurationSec: burn.Config.WindowDurationSec,
			BurnMaxOutflow:        burn.Config.MaxOutflow,
			MintPrevQty:           mint.PrevQty,
			MintCurQty:            mint.CurQty,
			MintWindowStart:       unixSeconds(mint.WindowStartSec),
			MintWindowDurationSec: mint.Config.WindowDurationSec,
			MintMaxOutflow:        mint.Config.MaxOutflow,
			TransactionTimestamp:  c.timestamp,
		},
	}, nil
}

func unixSeconds(sec decimal.Decimal) time.Time {
	return time.Unix(sec.IntPart(), 0).UTC()
}
