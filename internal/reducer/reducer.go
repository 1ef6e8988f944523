package reducer

import (
	"sort"

	"github.com/mirage-protocol/mirage-indexer/internal/domain"
)

// Record is a current-state row keyed by entity and ordered by logical clock.
// Merge returns the receiver with every unset field taken from older.
type Record[T any] interface {
	EntityID() string
	Clock() domain.LogicalClock
	Merge(older T) T
}

// Reduce folds the records of every entity into one, walking them in logical clock order so the
// newest record wins field by field and fields it leaves unset keep the latest older value.
// The result does not depend on the order of records and is sorted by entity id.
func Reduce[T Record[T]](records []T) []T {
	if len(records) == 0 {
		return nil
	}

	groups := make(map[string][]T, len(records))
	for _, record := range records {
		id := record.EntityID()
		groups[id] = append(groups[id], record)
	}

	out := make([]T, 0, len(groups))
	for _, group := range groups {
		sort.SliceStable(group, func(i, j int) bool { return group[i].Clock().Before(group[j].Clock()) })

		merged := group[0]
		for _, record := range group[1:] {
			merged = record.Merge(merged)
		}
		out = append(out, merged)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID() < out[j].EntityID() })

	return out
}
