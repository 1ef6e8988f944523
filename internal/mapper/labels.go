package mapper

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mirage-protocol/mirage-indexer/internal/decoder"
	"github.com/mirage-protocol/mirage-indexer/internal/domain"
)

// Labels maps event kinds to the event_type stored on activity rows.
// Labels belong to a protocol version; deployments of a different version supply their own table.
type Labels map[decoder.Kind]string

// LabelOverrides lists the labels a protocol version renames on purpose
type LabelOverrides map[decoder.Kind]string

// DefaultLabels returns the labels of the current protocol version
func DefaultLabels() Labels {
	labels := make(Labels)
	for _, kind := range decoder.Kinds() {
		if producesActivity(kind) {
			labels[kind] = kind.String()
		}
	}
	return labels
}

// WithOverrides returns a copy of l with every override applied
func (l Labels) WithOverrides(overrides LabelOverrides) Labels {
	out := make(Labels, len(l))
	for kind, label := range l {
		out[kind] = label
	}
	for kind, label := range overrides {
		out[kind] = label
	}
	return out
}

// ParseLabelOverrides resolves overrides keyed by event name, e.g. SettlePnlEvent. Names are
// matched case-insensitively since configuration keys are lower-cased when loaded.
func ParseLabelOverrides(raw map[string]string) (LabelOverrides, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	overrides := make(LabelOverrides, len(raw))
	var errs []error
	for name, label := range raw {
		kind, ok := activityKind(name)
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %q is not an activity event", domain.ErrLabelMismatch, name))
			continue
		}
		if label == "" {
			errs = append(errs, fmt.Errorf("%w: %s has an empty override", domain.ErrLabelMismatch, kind))
			continue
		}
		overrides[kind] = label
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return overrides, nil
}

func activityKind(name string) (decoder.Kind, bool) {
	for _, kind := range decoder.Kinds() {
		if producesActivity(kind) && strings.EqualFold(kind.String(), name) {
			return kind, true
		}
	}
	return decoder.KindUnknown, false
}

// producesActivity reports whether events of kind are written to an activity table
func producesActivity(kind decoder.Kind) bool {
	return kind.IsEvent() && kind.Module() != decoder.ModuleNative
}

// ValidateLabels reports every activity kind whose label is missing or differs from its event
// name without being listed in allowed. An override may never name another activity event.
func ValidateLabels(labels Labels, allowed LabelOverrides) error {
	names := make(map[string]decoder.Kind)
	for _, kind := range decoder.Kinds() {
		if producesActivity(kind) {
			names[kind.String()] = kind
		}
	}

	var errs []error
	for _, kind := range decoder.Kinds() {
		if !producesActivity(kind) {
			continue
		}
		label, ok := labels[kind]
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %s has no label", domain.ErrLabelMismatch, kind))
			continue
		}
		if label == kind.String() {
			continue
		}
		if other, taken := names[label]; taken {
			errs = append(errs, fmt.Errorf("%w: %s is labelled as %s", domain.ErrLabelMismatch, kind, other))
			continue
		}
		if override, ok := allowed[kind]; !ok || override != label {
			errs = append(errs, fmt.Errorf("%w: %s is labelled %q", domain.ErrLabelMismatch, kind, label))
		}
	}
	return errors.Join(errs...)
}
