package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mirage-protocol/mirage-indexer/internal/store/schema"
)

//go:generate mockgen -source=cursor_store.go -destination=../mocks/checkpoint_store.go -package=mocks -mock_names=CheckpointStore=MockCheckpointStore

// CheckpointStore defines the interface for storing and retrieving processor checkpoints
type CheckpointStore interface {
	// GetCheckpoint retrieves the last contiguous fully committed version of a processor.
	// The boolean is false when the processor has never committed a range.
	GetCheckpoint(ctx context.Context, processor string) (int64, bool, error)
	// SetCheckpoint stores the checkpoint of a processor. A checkpoint never moves backwards.
	SetCheckpoint(ctx context.Context, processor string, version int64) error
}

type checkpointStore struct {
	db *gorm.DB
}

// NewCheckpointStore creates a new checkpoint store
func NewCheckpointStore(db *gorm.DB) CheckpointStore {
	return &checkpointStore{db: db}
}

func checkpointKey(processor string) string {
	return fmt.Sprintf("processor_checkpoint:%s", processor)
}

// GetCheckpoint retrieves the last contiguous fully committed version of a processor
func (s *checkpointStore) GetCheckpoint(ctx context.Context, processor string) (int64, bool, error) {
	var kv schema.KeyValueStore
	err := s.db.WithContext(ctx).Where("key = ?", checkpointKey(processor)).First(&kv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to get checkpoint: %w", err)
	}

	version, err := strconv.ParseInt(kv.Value, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("failed to parse checkpoint: %w", err)
	}

	return version, true, nil
}

// SetCheckpoint stores the checkpoint of a processor
func (s *checkpointStore) SetCheckpoint(ctx context.Context, processor string, version int64) error {
	kv := schema.KeyValueStore{
		Key:   checkpointKey(processor),
		Value: strconv.FormatInt(version, 10),
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		Where: clause.Where{Exprs: []clause.Expression{
			gorm.Expr("key_value_store.value::bigint < excluded.value::bigint"),
		}},
	}).Create(&kv).Error
	if err != nil {
		return fmt.Errorf("failed to set checkpoint: %w", err)
	}

	return nil
}
