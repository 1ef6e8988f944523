package mapper

import (
	"fmt"

	"github.com/mirage-protocol/mirage-indexer/internal/decoder"
	"github.com/mirage-protocol/mirage-indexer/internal/domain"
)

type eventRule func(c *eventContext) (*Bundle, error)

type resourceRule func(c *resourceContext) (*Bundle, error)

// on adapts a typed event mapping to the rule table
func on[T any](fn func(c *eventContext, data *T) *Bundle) eventRule {
	return func(c *eventContext) (*Bundle, error) {
		data, ok := c.event.Data.(*T)
		if !ok {
			return nil, fmt.Errorf("%w: %s carries %T", domain.ErrUnexpectedPayload, c.event.Kind, c.event.Data)
		}
		return fn(c, data), nil
	}
}

// onResource adapts a typed resource mapping to the rule table. Deletes go to onDelete,
// which may be nil when a delete produces no rows.
func onResource[T any](fn func(c *resourceContext, data *T) (*Bundle, error), onDelete func(c *resourceContext) *Bundle) resourceRule {
	return func(c *resourceContext) (*Bundle, error) {
		if c.resource.Deleted {
			if onDelete == nil {
				return nil, nil
			}
			return onDelete(c), nil
		}
		data, ok := c.resource.Data.(*T)
		if !ok {
			return nil, fmt.Errorf("%w: %s carries %T", domain.ErrUnexpectedPayload, c.resource.Kind, c.resource.Data)
		}
		return fn(c, data)
	}
}

// skipEvent and skipResource mark kinds that only feed ownership resolution
func skipEvent(*eventContext) (*Bundle, error) {
	return nil, nil
}

func skipResource(*resourceContext) (*Bundle, error) {
	return nil, nil
}

var eventRules = map[decoder.Kind]eventRule{
	decoder.KindTokenBurn: skipEvent,

	decoder.KindUpdateFunding:        on(updateFunding),
	decoder.KindOpenPosition:         on(openPosition),
	decoder.KindClosePosition:        on(closePosition),
	decoder.KindIncreaseMargin:       on(changeMargin),
	decoder.KindDecreaseMargin:       on(changeMargin),
	decoder.KindIncreasePositionSize: on(increasePositionSize),
	decoder.KindDecreasePositionSize: on(decreasePositionSize),
	decoder.KindLiquidatePosition:    on(liquidatePosition),
	decoder.KindSettlePnl:            on(settlePnl),

	decoder.KindPlaceTpsl:                  on(placeTpsl),
	decoder.KindUpdateTpsl:                 on(placeTpsl),
	decoder.KindCancelTpsl:                 on(endTpsl),
	decoder.KindTriggerTpsl:                on(endTpsl),
	decoder.KindIncreaseTpslTriggerPayment: on(increaseTpslTriggerPayment),
	decoder.KindDecreaseTpslTriggerPayment: on(decreaseTpslTriggerPayment),

	decoder.KindPlaceLimitOrder:                  on(placeLimitOrder),
	decoder.KindUpdateLimitOrder:                 on(placeLimitOrder),
	decoder.KindCancelLimitOrder:                 on(endLimitOrder),
	decoder.KindTriggerLimitOrder:                on(endLimitOrder),
	decoder.KindIncreaseLimitOrderTriggerPayment: on(increaseLimitOrderTriggerPayment),
	decoder.KindDecreaseLimitOrderTriggerPayment: on(decreaseLimitOrderTriggerPayment),

	decoder.KindAddCollateral:      on(changeCollateral),
	decoder.KindRemoveCollateral:   on(changeCollateral),
	decoder.KindBorrow:             on(changeDebt),
	decoder.KindRepay:              on(changeDebt),
	decoder.KindLiquidation:        on(liquidateVault),
	decoder.KindInterestRateChange: on(changeInterestRate),
}

var resourceRules = map[decoder.Kind]resourceRule{
	decoder.KindObjectCore: skipResource,
	decoder.KindStrategy:   skipResource,

	decoder.KindMarket:          onResource(marketData, nil),
	decoder.KindPosition:        onResource(positionData, nil),
	decoder.KindVaultCollection: onResource(vaultCollectionData, nil),
	decoder.KindVault:           onResource(vaultData, deleteVault),
	decoder.KindTpsl:            onResource(tpslData, nil),
	decoder.KindLimitOrder:      onResource(limitOrderData, nil),
	decoder.KindFeeStore:        onResource(feeStoreData, nil),
	decoder.KindDebtStore:       onResource(debtStoreData, nil),
}
