package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// ChangeType identifies the kind of write-set change
type ChangeType string

const (
	ChangeTypeWriteResource  ChangeType = "write_resource"
	ChangeTypeDeleteResource ChangeType = "delete_resource"
)

// WriteSetChange is a resource mutation recorded by a transaction
type WriteSetChange struct {
	Index        int64           `json:"index"`          // position in the transaction's write set
	Type         ChangeType      `json:"type"`           // write_resource or delete_resource
	Address      string          `json:"address"`        // account or object address holding the resource
	ResourceType string          `json:"resource_type"`  // fully qualified move type tag
	Data         json.RawMessage `json:"data,omitempty"` // resource payload (absent for deletes)
}

// Event is a module event emitted by a transaction
type Event struct {
	Index          int64           `json:"index"`           // position in the transaction's event list
	Type           string          `json:"type"`            // fully qualified move type tag
	CreationNumber int64           `json:"creation_number"` // event handle creation number (0 for module events)
	SequenceNumber int64           `json:"sequence_number"` // event handle sequence number (0 for module events)
	Data           json.RawMessage `json:"data"`            // event payload
}

// Transaction is a finalized ledger transaction
type Transaction struct {
	Version   int64            `json:"version"`
	Timestamp time.Time        `json:"timestamp"`
	Sender    *string          `json:"sender,omitempty"` // nil for system transactions
	Changes   []WriteSetChange `json:"changes"`
	Events    []Event          `json:"events"`
}

// TransactionBatch is a contiguous version range with the transactions it contains
type TransactionBatch struct {
	StartVersion int64         `json:"start_version"`
	EndVersion   int64         `json:"end_version"`
	Transactions []Transaction `json:"transactions"`
}

// Validate checks the batch range and that transactions are inside it in ledger order
func (b *TransactionBatch) Validate() error {
	if b.StartVersion < 0 || b.EndVersion < b.StartVersion {
		return fmt.Errorf("%w: range [%d, %d]", ErrInvalidBatch, b.StartVersion, b.EndVersion)
	}

	previous := b.StartVersion - 1
	for _, txn := range b.Transactions {
		if txn.Version <= previous || txn.Version > b.EndVersion {
			return fmt.Errorf("%w: version %d out of order in range [%d, %d]", ErrInvalidBatch, txn.Version, b.StartVersion, b.EndVersion)
		}
		previous = txn.Version
	}

	return nil
}

// String returns the batch range in [start, end] form
func (b *TransactionBatch) String() string {
	return fmt.Sprintf("[%d, %d]", b.StartVersion, b.EndVersion)
}
