package domain

import (
	"cmp"
	"fmt"
)

// LogicalClock orders updates to the same entity. Versions are compared first, then the
// index of the event (or write-set change) inside the transaction.
type LogicalClock struct {
	TransactionVersion int64 `json:"transaction_version"`
	EventIndex         int64 `json:"event_index"`
}

// NewLogicalClock creates a logical clock
func NewLogicalClock(version, index int64) LogicalClock {
	return LogicalClock{TransactionVersion: version, EventIndex: index}
}

// Compare returns -1, 0 or 1 when c is older than, equal to or newer than o
func (c LogicalClock) Compare(o LogicalClock) int {
	if r := cmp.Compare(c.TransactionVersion, o.TransactionVersion); r != 0 {
		return r
	}
	return cmp.Compare(c.EventIndex, o.EventIndex)
}

// Before reports whether c is strictly older than o
func (c LogicalClock) Before(o LogicalClock) bool {
	return c.Compare(o) < 0
}

func (c LogicalClock) String() string {
	return fmt.Sprintf("%d:%d", c.TransactionVersion, c.EventIndex)
}
