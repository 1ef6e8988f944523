package mapper

import (
	"github.com/shopspring/decimal"

	"github.com/mirage-protocol/mirage-indexer/internal/decoder"
	"github.com/mirage-protocol/mirage-indexer/internal/store/schema"
)

func updateFunding(c *eventContext, e *decoder.UpdateFundingEvent) *Bundle {
	activity := c.marketActivity(e.Market.Address(), nil)
	activity.NextFundingRate = signed(e.NextFundingRate)
	return &Bundle{MarketActivity: activity}
}

// positionState builds the current-state row of a position. Values the ledger wrote to the
// Position resource in the same transaction take precedence over the event's own fields.
func (c *eventContext) positionState(position, market string, owner *string, isLong *bool, margin, size, price *decimal.Decimal, closed bool) *schema.CurrentPosition {
	if fact, ok := c.facts.Position(position); ok && !closed {
		margin = ptr(fact.MarginAmount)
		size = ptr(fact.PositionSize)
		price = ptr(fact.LastSettledPrice)
	}
	return &schema.CurrentPosition{
		PositionID:   position,
		MarketID:     market,
		OwnerAddr:    owner,
		IsLong:       isLong,
		MarginAmount: margin,
		PositionSize: size,
		LastPrice:    price,
		Lifecycle:    c.lifecycle(closed),
	}
}

// trade returns a trade row, or nil when the position owner is unknown
func (c *eventContext) trade(market, position string, owner *string, isLong bool, size, price, fee, pnl decimal.Decimal) *schema.Trade {
	if owner == nil {
		return nil
	}
	return &schema.Trade{
		TransactionVersion:   c.version,
		EventIndex:           c.event.Index,
		MarketID:             market,
		PositionID:           position,
		OwnerAddr:            *owner,
		IsLong:               isLong,
		PositionSize:         size,
		Price:                price,
		Fee:                  fee,
		Pnl:                  pnl,
		TransactionTimestamp: c.timestamp,
	}
}

func openPosition(c *eventContext, e *decoder.OpenPositionEvent) *Bundle {
	market, position := e.Market.Address(), e.Position.Address()
	owner := c.facts.OwnerOf(position)

	activity := c.marketActivity(market, &position)
	activity.OwnerAddr = owner
	activity.PerpPrice = ptr(e.OpeningPrice)
	activity.IsLong = ptr(e.IsLong)
	activity.MarginAmount = ptr(e.MarginAmount)
	activity.PositionSize = ptr(e.PositionSize)
	activity.Fee = ptr(e.Fee)

	return &Bundle{
		MarketActivity: activity,
		Trade:          c.trade(market, position, owner, e.IsLong, e.PositionSize, e.OpeningPrice, e.Fee, decimal.Zero),
		Position:       c.positionState(position, market, owner, ptr(e.IsLong), ptr(e.MarginAmount), ptr(e.PositionSize), ptr(e.OpeningPrice), false),
		Transition:     TransitionOpen,
	}
}

func closePosition(c *eventContext, e *decoder.ClosePositionEvent) *Bundle {
	market, position := e.Market.Address(), e.Position.Address()
	owner := c.facts.OwnerOf(position)
	pnl := e.Pnl.Decimal()

	activity := c.marketActivity(market, &position)
	activity.OwnerAddr = owner
	activity.PerpPrice = ptr(e.ClosingPrice)
	activity.IsLong = ptr(e.IsLong)
	activity.PositionSize = ptr(e.PositionSize)
	activity.Fee = ptr(e.Fee)
	activity.Pnl = ptr(pnl)

	return &Bundle{
		MarketActivity: activity,
		Trade:          c.trade(market, position, owner, e.IsLong, e.PositionSize, e.ClosingPrice, e.Fee, pnl),
		Position:       c.positionState(position, market, owner, ptr(e.IsLong), nil, nil, ptr(e.ClosingPrice), true),
		Transition:     TransitionClose,
	}
}

// changeMargin maps both margin events. The event carries the delta only, so the position row
// keeps its stored margin unless the Position resource was written alongside.
func changeMargin(c *eventContext, e *decoder.MarginEvent) *Bundle {
	market, position := e.Market.Address(), e.Position.Address()
	owner := c.facts.OwnerOf(position)

	activity := c.marketActivity(market, &position)
	activity.OwnerAddr = owner
	activity.MarginAmount = ptr(e.MarginAmount)
	activity.IsIncrease = ptr(c.event.Kind == decoder.KindIncreaseMargin)

	return &Bundle{
		MarketActivity: activity,
		Position:       c.positionState(position, market, owner, nil, nil, nil, nil, false),
		Transition:     TransitionUpdate,
	}
}

func increasePositionSize(c *eventContext, e *decoder.IncreasePositionSizeEvent) *Bundle {
	market, position := e.Market.Address(), e.Position.Address()
	owner := c.facts.OwnerOf(position)

	activity := c.marketActivity(market, &position)
	activity.OwnerAddr = owner
	activity.PerpPrice = ptr(e.NewOpeningPrice)
	activity.IsLong = ptr(e.IsLong)
	activity.PositionSize = ptr(e.Amount)
	activity.Fee = ptr(e.Fee)
	activity.IsIncrease = ptr(true)

	return &Bundle{
		MarketActivity: activity,
		Trade:          c.trade(market, position, owner, e.IsLong, e.Amount, e.NewOpeningPrice, e.Fee, decimal.Zero),
		Position:       c.positionState(position, market, owner, ptr(e.IsLong), nil, nil, ptr(e.NewOpeningPrice), false),
		Transition:     TransitionUpdate,
	}
}

func decreasePositionSize(c *eventContext, e *decoder.DecreasePositionSizeEvent) *Bundle {
	market, position := e.Market.Address(), e.Position.Address()
	owner := c.facts.OwnerOf(position)

	activity := c.marketActivity(market, &position)
	activity.OwnerAddr = owner
	activity.PerpPrice = ptr(e.ClosingPrice)
	activity.IsLong = ptr(e.IsLong)
	activity.PositionSize = ptr(e.Amount)
	activity.Fee = ptr(e.Fee)
	activity.IsIncrease = ptr(false)

	return &Bundle{
		MarketActivity: activity,
		Trade:          c.trade(market, position, owner, e.IsLong, e.Amount, e.ClosingPrice, e.Fee, decimal.Zero),
		Position:       c.positionState(position, market, owner, ptr(e.IsLong), nil, nil, ptr(e.ClosingPrice), false),
		Transition:     TransitionUpdate,
	}
}

func liquidatePosition(c *eventContext, e *decoder.LiquidatePositionEvent) *Bundle {
	market, position := e.Market.Address(), e.Position.Address()
	owner := c.facts.OwnerOf(position)

	activity := c.marketActivity(market, &position)
	activity.OwnerAddr = owner
	activity.PerpPrice = ptr(e.ClosingPrice)
	activity.IsLong = ptr(e.IsLong)
	activity.PositionSize = ptr(e.PositionSize)
	activity.Fee = ptr(e.LiquidationFee)
	activity.Pnl = signed(e.Winnings)

	return &Bundle{
		MarketActivity: activity,
		Position:       c.positionState(position, market, owner, ptr(e.IsLong), nil, nil, ptr(e.ClosingPrice), true),
		Transition:     TransitionClose,
	}
}

func settlePnl(c *eventContext, e *decoder.SettlePnlEvent) *Bundle {
	position := e.Position.Address()

	activity := c.marketActivity(e.Market.Address(), &position)
	activity.OwnerAddr = c.facts.OwnerOf(position)
	activity.Pnl = signed(e.Pnl)

	return &Bundle{MarketActivity: activity}
}

// strategyActivity is the activity row shared by tpsl and limit order events
func (c *eventContext) strategyActivity(market, position, strategy string, owner *string) *schema.MarketActivity {
	activity := c.marketActivity(market, &position)
	activity.StrategyID = &strategy
	activity.OwnerAddr = owner
	return activity
}

// triggerPayment returns the strategy's trigger payment written in the same transaction
func (c *eventContext) triggerPayment(strategy string) *decimal.Decimal {
	if fact, ok := c.facts.Strategy(strategy); ok {
		return ptr(fact.TriggerPaymentAmount)
	}
	return nil
}

func placeTpsl(c *eventContext, e *decoder.TpslEvent) *Bundle {
	market, position, tpsl := e.Market.Address(), e.Position.Address(), e.Tpsl.Address()
	owner := c.facts.StrategyOwnerOf(tpsl, position)

	activity := c.strategyActivity(market, position, tpsl, owner)
	activity.IsLong = ptr(e.IsLong)
	activity.TakeProfitPrice = ptr(e.TakeProfitPrice)
	activity.StopLossPrice = ptr(e.StopLossPrice)

	transition := TransitionUpdate
	if c.event.Kind == decoder.KindPlaceTpsl {
		transition = TransitionOpen
	}

	return &Bundle{
		MarketActivity: activity,
		Tpsl: &schema.CurrentTpsl{
			TpslID:               tpsl,
			PositionID:           position,
			MarketID:             market,
			OwnerAddr:            owner,
			IsLong:               ptr(e.IsLong),
			TakeProfitPrice:      ptr(e.TakeProfitPrice),
			StopLossPrice:        ptr(e.StopLossPrice),
			TriggerPaymentAmount: c.triggerPayment(tpsl),
			Lifecycle:            c.lifecycle(false),
		},
		Transition: transition,
	}
}

func endTpsl(c *eventContext, e *decoder.TpslRefEvent) *Bundle {
	market, position, tpsl := e.Market.Address(), e.Position.Address(), e.Tpsl.Address()
	owner := c.facts.StrategyOwnerOf(tpsl, position)

	return &Bundle{
		MarketActivity: c.strategyActivity(market, position, tpsl, owner),
		Tpsl: &schema.CurrentTpsl{
			TpslID:     tpsl,
			PositionID: position,
			MarketID:   market,
			OwnerAddr:  owner,
			Lifecycle:  c.lifecycle(true),
		},
		Transition: TransitionClose,
	}
}

func increaseTpslTriggerPayment(c *eventContext, e *decoder.IncreaseTpslTriggerPaymentEvent) *Bundle {
	return c.tpslTriggerPayment(e.Market, e.Position, e.Tpsl, e.IncreaseAmount, true)
}

func decreaseTpslTriggerPayment(c *eventContext, e *decoder.DecreaseTpslTriggerPaymentEvent) *Bundle {
	return c.tpslTriggerPayment(e.Market, e.Position, e.Tpsl, e.DecreaseAmount, false)
}

func (c *eventContext) tpslTriggerPayment(marketRef, positionRef, tpslRef decoder.ResourceReference, amount decimal.Decimal, increase bool) *Bundle {
	market, position, tpsl := marketRef.Address(), positionRef.Address(), tpslRef.Address()
	owner := c.facts.StrategyOwnerOf(tpsl, position)

	activity := c.strategyActivity(market, position, tpsl, owner)
	activity.IsIncrease = ptr(increase)
	activity.TriggerPaymentAmount = ptr(amount)

	return &Bundle{
		MarketActivity: activity,
		Tpsl: &schema.CurrentTpsl{
			TpslID:               tpsl,
			PositionID:           position,
			MarketID:             market,
			OwnerAddr:            owner,
			TriggerPaymentAmount: c.triggerPayment(tpsl),
			Lifecycle:            c.lifecycle(false),
		},
		Transition: TransitionUpdate,
	}
}

func placeLimitOrder(c *eventContext, e *decoder.LimitOrderEvent) *Bundle {
	market, position, order := e.Market.Address(), e.Position.Address(), e.LimitOrder.Address()
	owner := c.facts.StrategyOwnerOf(order, position)

	activity := c.strategyActivity(market, position, order, owner)
	activity.IsLong = ptr(e.IsLong)
	activity.IsIncrease = ptr(!e.IsDecreaseOnly)
	activity.PositionSize = ptr(e.PositionSize)
	activity.MarginAmount = ptr(e.MarginAmount)
	activity.TriggerPrice = ptr(e.TriggerPrice)
	activity.TriggersAbove = ptr(e.TriggersAbove)
	activity.MaxPriceSlippage = ptr(e.MaxPriceSlippage)
	activity.Expiration = ptr(e.Expiration)

	transition := TransitionUpdate
	if c.event.Kind == decoder.KindPlaceLimitOrder {
		transition = TransitionOpen
	}

	return &Bundle{
		MarketActivity: activity,
		LimitOrder: &schema.CurrentLimitOrder{
			LimitOrderID:         order,
			PositionID:           position,
			MarketID:             market,
			OwnerAddr:            owner,
			IsLong:               ptr(e.IsLong),
			IsDecreaseOnly:       ptr(e.IsDecreaseOnly),
			PositionSize:         ptr(e.PositionSize),
			MarginAmount:         ptr(e.MarginAmount),
			TriggerPrice:         ptr(e.TriggerPrice),
			TriggersAbove:        ptr(e.TriggersAbove),
			MaxPriceSlippage:     ptr(e.MaxPriceSlippage),
			Expiration:           ptr(e.Expiration),
			TriggerPaymentAmount: c.triggerPayment(order),
			Lifecycle:            c.lifecycle(false),
		},
		Transition: transition,
	}
}

func endLimitOrder(c *eventContext, e *decoder.LimitOrderRefEvent) *Bundle {
	market, position, order := e.Market.Address(), e.Position.Address(), e.LimitOrder.Address()
	owner := c.facts.StrategyOwnerOf(order, position)

	return &Bundle{
		MarketActivity: c.strategyActivity(market, position, order, owner),
		LimitOrder: &schema.CurrentLimitOrder{
			LimitOrderID: order,
			PositionID:   position,
			MarketID:     market,
			OwnerAddr:    owner,
			Lifecycle:    c.lifecycle(true),
		},
		Transition: TransitionClose,
	}
}

func increaseLimitOrderTriggerPayment(c *eventContext, e *decoder.IncreaseLimitOrderTriggerPaymentEvent) *Bundle {
	return c.limitOrderTriggerPayment(e.Market, e.Position, e.LimitOrder, e.IncreaseAmount, true)
}

func decreaseLimitOrderTriggerPayment(c *eventContext, e *decoder.DecreaseLimitOrderTriggerPaymentEvent) *Bundle {
	return c.limitOrderTriggerPayment(e.Market, e.Position, e.LimitOrder, e.DecreaseAmount, false)
}

func (c *eventContext) limitOrderTriggerPayment(marketRef, positionRef, orderRef decoder.ResourceReference, amount decimal.Decimal, increase bool) *Bundle {
	market, position, order := marketRef.Address(), positionRef.Address(), orderRef.Address()
	owner := c.facts.StrategyOwnerOf(order, position)

	activity := c.strategyActivity(market, position, order, owner)
	activity.IsIncrease = ptr(increase)
	activity.TriggerPaymentAmount = ptr(amount)

	return &Bundle{
		MarketActivity: activity,
		LimitOrder: &schema.CurrentLimitOrder{
			LimitOrderID:         order,
			PositionID:           position,
			MarketID:             market,
			OwnerAddr:            owner,
			TriggerPaymentAmount: c.triggerPayment(order),
			Lifecycle:            c.lifecycle(false),
		},
		Transition: TransitionUpdate,
	}
}
