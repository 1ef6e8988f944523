package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidBatch is returned when a transaction batch envelope is inconsistent
	ErrInvalidBatch = errors.New("invalid transaction batch")

	// ErrMissingRule is returned when a supported kind has no mapping rule
	ErrMissingRule = errors.New("missing mapping rule")

	// ErrLabelMismatch is returned when an activity label names a different event kind
	ErrLabelMismatch = errors.New("activity label mismatch")

	// ErrUnexpectedPayload is returned when a decoded value does not carry the payload of its kind
	ErrUnexpectedPayload = errors.New("unexpected payload type")
)

// DecodeError reports a recognized type tag whose payload does not match its expected shape.
// It is fatal for the enclosing transaction.
type DecodeError struct {
	Version int64
	Tag     string
	Payload []byte
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode %s at version %d: %v (payload: %s)", e.Tag, e.Version, e.Err, e.Payload)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// MissingOwnershipError reports a resource-derived record whose object has no resolvable owner
type MissingOwnershipError struct {
	Version       int64
	Tag           string
	ObjectAddress string
}

func (e *MissingOwnershipError) Error() string {
	return fmt.Sprintf("missing owner for %s at %s (version %d)", e.Tag, e.ObjectAddress, e.Version)
}

// StorageWriteError reports a failed chunk write
type StorageWriteError struct {
	Table string
	Chunk int
	Rows  int
	Err   error
}

func (e *StorageWriteError) Error() string {
	return fmt.Sprintf("failed to write chunk %d (%d rows) of %s: %v", e.Chunk, e.Rows, e.Table, e.Err)
}

func (e *StorageWriteError) Unwrap() error {
	return e.Err
}

// ConfigError reports invalid startup configuration
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Key, e.Reason)
}

// IsFatal reports whether err must stop indexing until an operator intervenes
func IsFatal(err error) bool {
	var decodeErr *DecodeError
	var ownershipErr *MissingOwnershipError
	var configErr *ConfigError
	return errors.As(err, &decodeErr) || errors.As(err, &ownershipErr) || errors.As(err, &configErr) ||
		errors.Is(err, ErrInvalidBatch)
}
