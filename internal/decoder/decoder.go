package decoder

import (
	"time"

	"github.com/mirage-protocol/mirage-indexer/internal/domain"
)

// Decoded is a typed ledger value. Data holds a pointer to the payload struct of Kind.
type Decoded struct {
	Kind Kind
	Tag  string
	Data any
}

// Resource is a decoded write-set change. Data is nil for deletes.
type Resource struct {
	Decoded
	Index   int64
	Address string
	Deleted bool
}

// Event is a decoded module event
type Event struct {
	Decoded
	Index          int64
	CreationNumber int64
	SequenceNumber int64
}

// Transaction holds the supported values of one transaction in ledger order
type Transaction struct {
	Version   int64
	Timestamp time.Time
	Resources []Resource
	Events    []Event
}

// Decoder turns raw (type tag, payload) pairs into typed values for one protocol deployment
type Decoder struct {
	vaultAddress  string
	marketAddress string
	tags          map[string]Kind
}

// New builds the tag allow-list for the protocol deployed by deployer
func New(deployer string) (*Decoder, error) {
	vaultAddress, err := domain.CreateResourceAddress(deployer, domain.VaultModuleSeed)
	if err != nil {
		return nil, &domain.ConfigError{Key: "processor.deployer_address", Reason: err.Error()}
	}
	marketAddress, err := domain.CreateResourceAddress(deployer, domain.MarketModuleSeed)
	if err != nil {
		return nil, &domain.ConfigError{Key: "processor.deployer_address", Reason: err.Error()}
	}

	d := &Decoder{
		vaultAddress:  vaultAddress,
		marketAddress: marketAddress,
		tags:          make(map[string]Kind, kindCount),
	}
	for _, kind := range Kinds() {
		d.tags[d.tag(kind)] = kind
	}

	return d, nil
}

// VaultAddress returns the address of the vault module
func (d *Decoder) VaultAddress() string {
	return d.vaultAddress
}

// MarketAddress returns the address of the market module
func (d *Decoder) MarketAddress() string {
	return d.marketAddress
}

func (d *Decoder) tag(kind Kind) string {
	s := kindTable[kind]
	switch s.module {
	case ModuleVault:
		return d.vaultAddress + "::" + s.path
	case ModuleMarket:
		return d.marketAddress + "::" + s.path
	default:
		return s.path
	}
}

// Lookup returns the kind registered for tag, or KindUnknown
func (d *Decoder) Lookup(tag string) Kind {
	return d.tags[tag]
}

// Decode decodes payload as the value registered for tag.
// It returns nil without error when tag is not supported or names a value of the other
// category (resource tag on an event or the reverse).
func (d *Decoder) Decode(version int64, tag string, payload []byte, event bool) (*Decoded, error) {
	kind := d.tags[tag]
	if kind == KindUnknown || kindTable[kind].event != event {
		return nil, nil
	}

	data, err := kindTable[kind].decode(payload)
	if err != nil {
		return nil, &domain.DecodeError{Version: version, Tag: tag, Payload: payload, Err: err}
	}

	return &Decoded{Kind: kind, Tag: tag, Data: data}, nil
}

// DecodeTransaction decodes every supported write-set change and event of txn.
// Any decode error fails the whole transaction.
func (d *Decoder) DecodeTransaction(txn *domain.Transaction) (*Transaction, error) {
	out := &Transaction{
		Version:   txn.Version,
		Timestamp: txn.Timestamp,
	}

	for _, change := range txn.Changes {
		switch change.Type {
		case domain.ChangeTypeWriteResource:
			decoded, err := d.Decode(txn.Version, change.ResourceType, change.Data, false)
			if err != nil {
				return nil, err
			}
			if decoded == nil {
				continue
			}
			out.Resources = append(out.Resources, Resource{
				Decoded: *decoded,
				Index:   change.Index,
				Address: domain.StandardizeAddress(change.Address),
			})
		case domain.ChangeTypeDeleteResource:
			kind := d.Lookup(change.ResourceType)
			if kind == KindUnknown || kind.IsEvent() {
				continue
			}
			out.Resources = append(out.Resources, Resource{
				Decoded: Decoded{Kind: kind, Tag: change.ResourceType},
				Index:   change.Index,
				Address: domain.StandardizeAddress(change.Address),
				Deleted: true,
			})
		}
	}

	for _, event := range txn.Events {
		decoded, err := d.Decode(txn.Version, event.Type, event.Data, true)
		if err != nil {
			return nil, err
		}
		if decoded == nil {
			continue
		}
		out.Events = append(out.Events, Event{
			Decoded:        *decoded,
			Index:          event.Index,
			CreationNumber: event.CreationNumber,
			SequenceNumber: event.SequenceNumber,
		})
	}

	return out, nil
}
