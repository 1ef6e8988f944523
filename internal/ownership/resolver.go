package ownership

import (
	"github.com/shopspring/decimal"

	"github.com/mirage-protocol/mirage-indexer/internal/decoder"
	"github.com/mirage-protocol/mirage-indexer/internal/domain"
)

// StrategyFact is the parent metadata of a tpsl or limit order object
type StrategyFact struct {
	Market               string
	Position             string
	StrategyMarginAmount decimal.Decimal
	TriggerPaymentAmount decimal.Decimal
}

// PositionFact is the position resource state written by the transaction
type PositionFact struct {
	Market           string
	MarginAmount     decimal.Decimal
	PositionSize     decimal.Decimal
	LastSettledPrice decimal.Decimal
	Side             decimal.Decimal
}

// Facts holds the side mappings of one transaction. It is read-only once built.
type Facts struct {
	owners     map[string]string
	strategies map[string]StrategyFact
	positions  map[string]PositionFact
}

// Resolve builds the facts of one transaction. Every resource is scanned before any event so
// that an event listed ahead of its object's metadata still resolves.
func Resolve(txn *decoder.Transaction) *Facts {
	f := &Facts{
		owners:     make(map[string]string),
		strategies: make(map[string]StrategyFact),
		positions:  make(map[string]PositionFact),
	}

	for _, resource := range txn.Resources {
		if resource.Deleted {
			continue
		}
		switch data := resource.Data.(type) {
		case *decoder.ObjectCore:
			f.owners[resource.Address] = domain.StandardizeAddress(data.Owner)
		case *decoder.StrategyResource:
			f.strategies[resource.Address] = StrategyFact{
				Market:               data.Market.Address(),
				Position:             data.Position.Address(),
				StrategyMarginAmount: data.StrategyMarginAmount,
				TriggerPaymentAmount: data.TriggerPaymentAmount,
			}
		case *decoder.PositionResource:
			f.positions[resource.Address] = PositionFact{
				Market:           data.Market.Address(),
				MarginAmount:     data.MarginAmount,
				PositionSize:     data.PositionSize,
				LastSettledPrice: data.LastSettledPrice,
				Side:             data.Side,
			}
		}
	}

	// The burned token's ObjectCore is deleted, not written, so the event is the only
	// record of who owned it.
	for _, event := range txn.Events {
		if burn, ok := event.Data.(*decoder.TokenBurnEvent); ok {
			f.owners[domain.StandardizeAddress(burn.Token)] = domain.StandardizeAddress(burn.PreviousOwner)
		}
	}

	return f
}

// Owner returns the owner of an object
func (f *Facts) Owner(address string) (string, bool) {
	owner, ok := f.owners[address]
	return owner, ok
}

// OwnerOf returns the owner of an object or nil when it cannot be resolved
func (f *Facts) OwnerOf(address string) *string {
	if owner, ok := f.owners[address]; ok {
		return &owner
	}
	return nil
}

// StrategyOwnerOf returns the owner of a strategy object's parent position, falling back to the
// strategy object's own owner
func (f *Facts) StrategyOwnerOf(strategy string, position string) *string {
	if fact, ok := f.strategies[strategy]; ok {
		position = fact.Position
	}
	if owner := f.OwnerOf(position); owner != nil {
		return owner
	}
	return f.OwnerOf(strategy)
}

// Strategy returns the strategy metadata of a tpsl or limit order object
func (f *Facts) Strategy(address string) (StrategyFact, bool) {
	fact, ok := f.strategies[address]
	return fact, ok
}

// Position returns the position state written by the transaction
func (f *Facts) Position(address string) (PositionFact, bool) {
	fact, ok := f.positions[address]
	return fact, ok
}
