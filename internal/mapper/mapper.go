package mapper

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mirage-protocol/mirage-indexer/internal/decoder"
	"github.com/mirage-protocol/mirage-indexer/internal/domain"
	"github.com/mirage-protocol/mirage-indexer/internal/ownership"
	"github.com/mirage-protocol/mirage-indexer/internal/store/schema"
)

// Transition is the lifecycle change a bundle applies to its current-state record
type Transition int

const (
	TransitionNone Transition = iota
	TransitionOpen
	TransitionUpdate
	TransitionClose
)

func (t Transition) String() string {
	switch t {
	case TransitionOpen:
		return "open"
	case TransitionUpdate:
		return "update"
	case TransitionClose:
		return "close"
	default:
		return "none"
	}
}

// Bundle is the output of one decoded event or resource.
// At most one history row of each kind and at most one current-state record is set.
type Bundle struct {
	MarketActivity      *schema.MarketActivity
	VaultActivity       *schema.VaultActivity
	Trade               *schema.Trade
	MarketData          *schema.MarketData
	PositionData        *schema.PositionData
	VaultCollectionData *schema.VaultCollectionData
	VaultData           *schema.VaultData
	MarketConfig        *schema.MarketConfig
	VaultConfig         *schema.VaultConfig
	TpslData            *schema.TpslData
	LimitOrderData      *schema.LimitOrderData
	FeeStoreData        *schema.FeeStoreData
	DebtStoreData       *schema.DebtStoreData

	Position   *schema.CurrentPosition
	Tpsl       *schema.CurrentTpsl
	LimitOrder *schema.CurrentLimitOrder
	Vault      *schema.CurrentVault
	Transition Transition
}

// Mapper maps decoded values to rows using one label table
type Mapper struct {
	labels Labels
}

// New creates a mapper after checking that every supported kind has a rule and that the
// label table is consistent. Labels differing from their event name must be listed in allowed.
func New(labels Labels, allowed LabelOverrides) (*Mapper, error) {
	if err := CheckRules(); err != nil {
		return nil, err
	}
	if err := ValidateLabels(labels, allowed); err != nil {
		return nil, err
	}
	return &Mapper{labels: labels}, nil
}

// CheckRules reports every supported kind without a mapping rule
func CheckRules() error {
	for _, kind := range decoder.Kinds() {
		var ok bool
		if kind.IsEvent() {
			_, ok = eventRules[kind]
		} else {
			_, ok = resourceRules[kind]
		}
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrMissingRule, kind)
		}
	}
	return nil
}

// MapTransaction maps every decoded value of txn. facts must have been resolved from the
// same transaction.
func (m *Mapper) MapTransaction(txn *decoder.Transaction, facts *ownership.Facts) ([]Bundle, error) {
	bundles := make([]Bundle, 0, len(txn.Resources)+len(txn.Events))

	for i := range txn.Resources {
		bundle, err := m.MapResource(txn, &txn.Resources[i], facts)
		if err != nil {
			return nil, err
		}
		if bundle != nil {
			bundles = append(bundles, *bundle)
		}
	}

	for i := range txn.Events {
		bundle, err := m.MapEvent(txn, &txn.Events[i], facts)
		if err != nil {
			return nil, err
		}
		if bundle != nil {
			bundles = append(bundles, *bundle)
		}
	}

	return bundles, nil
}

// MapEvent maps one decoded event. It returns nil when the event produces no rows.
func (m *Mapper) MapEvent(txn *decoder.Transaction, event *decoder.Event, facts *ownership.Facts) (*Bundle, error) {
	rule, ok := eventRules[event.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrMissingRule, event.Kind)
	}
	return rule(&eventContext{
		version:   txn.Version,
		timestamp: txn.Timestamp,
		event:     event,
		facts:     facts,
		label:     m.labels[event.Kind],
	})
}

// MapResource maps one decoded write-set change. It returns nil when the change produces no rows.
func (m *Mapper) MapResource(txn *decoder.Transaction, resource *decoder.Resource, facts *ownership.Facts) (*Bundle, error) {
	rule, ok := resourceRules[resource.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrMissingRule, resource.Kind)
	}
	return rule(&resourceContext{
		version:   txn.Version,
		timestamp: txn.Timestamp,
		resource:  resource,
		facts:     facts,
	})
}

type eventContext struct {
	version   int64
	timestamp time.Time
	event     *decoder.Event
	facts     *ownership.Facts
	label     string
}

func (c *eventContext) lifecycle(closed bool) schema.Lifecycle {
	return schema.Lifecycle{
		IsClosed:               closed,
		LastTransactionVersion: c.version,
		EventIndex:             c.event.Index,
		TransactionTimestamp:   c.timestamp,
	}
}

func (c *eventContext) marketActivity(market string, position *string) *schema.MarketActivity {
	return &schema.MarketActivity{
		TransactionVersion:   c.version,
		EventCreationNumber:  c.event.CreationNumber,
		EventSequenceNumber:  c.event.SequenceNumber,
		EventIndex:           c.event.Index,
		MarketID:             market,
		EventType:            c.label,
		PositionID:           position,
		TransactionTimestamp: c.timestamp,
	}
}

func (c *eventContext) vaultActivity(collection string, vault *string) *schema.VaultActivity {
	return &schema.VaultActivity{
		TransactionVersion:   c.version,
		EventCreationNumber:  c.event.CreationNumber,
		EventSequenceNumber:  c.event.SequenceNumber,
		EventIndex:           c.event.Index,
		CollectionID:         collection,
		EventType:            c.label,
		VaultID:              vault,
		TransactionTimestamp: c.timestamp,
	}
}

type resourceContext struct {
	version   int64
	timestamp time.Time
	resource  *decoder.Resource
	facts     *ownership.Facts
}

// requireOwner resolves the owner of the resource's object; snapshots are never written without one
func (c *resourceContext) requireOwner() (string, error) {
	owner, ok := c.facts.Owner(c.resource.Address)
	if !ok {
		return "", &domain.MissingOwnershipError{
			Version:       c.version,
			Tag:           c.resource.Tag,
			ObjectAddress: c.resource.Address,
		}
	}
	return owner, nil
}

func (c *resourceContext) lifecycle(closed bool) schema.Lifecycle {
	return schema.Lifecycle{
		IsClosed:               closed,
		LastTransactionVersion: c.version,
		EventIndex:             c.resource.Index,
		TransactionTimestamp:   c.timestamp,
	}
}

func ptr[T any](v T) *T {
	return &v
}

func signed(s decoder.Signed64) *decimal.Decimal {
	return ptr(s.Decimal())
}
