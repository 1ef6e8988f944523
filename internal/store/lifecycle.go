package store

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LifecycleBatch is one chunk of reduced current-state rows for a single entity table.
// Active and Closed hold pointers to slices of the table's model.
type LifecycleBatch struct {
	Active    any
	ActiveIDs []string
	Closed    any
	ClosedIDs []string
}

// LifecycleApplier applies open, update and close transitions of current-state rows
type LifecycleApplier interface {
	// ApplyLifecycle writes one chunk atomically
	ApplyLifecycle(ctx context.Context, table *Table, batch LifecycleBatch) error
}

// NewLifecycleApplier returns the applier for the given mode
func NewLifecycleApplier(db *gorm.DB, mode LifecycleMode) (LifecycleApplier, error) {
	switch mode {
	case LifecycleFlag:
		return &flagLifecycle{db: db}, nil
	case LifecycleTablePair:
		return &tablePairLifecycle{db: db}, nil
	default:
		return nil, fmt.Errorf("unknown lifecycle mode %q", mode)
	}
}

// flagLifecycle keeps every entity in one table and marks closed rows with is_closed
type flagLifecycle struct {
	db *gorm.DB
}

func (l *flagLifecycle) ApplyLifecycle(ctx context.Context, table *Table, batch LifecycleBatch) error {
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(batch.ActiveIDs) > 0 {
			if err := tx.Table(table.Name).Clauses(guardedUpsert(table, table.Name)).Create(batch.Active).Error; err != nil {
				return fmt.Errorf("failed to upsert %s: %w", table.Name, err)
			}
		}
		if len(batch.ClosedIDs) > 0 {
			if err := tx.Table(table.Name).Clauses(guardedUpsert(table, table.Name)).Create(batch.Closed).Error; err != nil {
				return fmt.Errorf("failed to upsert closed %s: %w", table.Name, err)
			}
		}
		return nil
	})
}

// tablePairLifecycle keeps open and closed entities in two disjoint tables
type tablePairLifecycle struct {
	db *gorm.DB
}

func (l *tablePairLifecycle) ApplyLifecycle(ctx context.Context, table *Table, batch LifecycleBatch) error {
	key := table.Key[0]

	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(batch.ActiveIDs) > 0 {
			if err := tx.Table(table.Open).Clauses(guardedUpsert(table, table.Open)).Create(batch.Active).Error; err != nil {
				return fmt.Errorf("failed to upsert %s: %w", table.Open, err)
			}

			// An entity already closed by a newer range stays closed
			if err := tx.Exec(
				fmt.Sprintf(`DELETE FROM %[1]s o USING %[2]s c WHERE o.%[3]s = c.%[3]s AND o.%[3]s IN ?`, table.Open, table.Closed, key),
				batch.ActiveIDs,
			).Error; err != nil {
				return fmt.Errorf("failed to drop closed rows from %s: %w", table.Open, err)
			}
		}

		if len(batch.ClosedIDs) > 0 {
			if err := tx.Table(table.Closed).Clauses(clause.OnConflict{DoNothing: true}).Create(batch.Closed).Error; err != nil {
				return fmt.Errorf("failed to insert %s: %w", table.Closed, err)
			}

			if len(table.Merge) > 0 {
				if err := tx.Exec(carryOverSQL(table), batch.ClosedIDs).Error; err != nil {
					return fmt.Errorf("failed to carry over open values into %s: %w", table.Closed, err)
				}
			}

			if err := tx.Exec(
				fmt.Sprintf(`DELETE FROM %s WHERE %s IN ?`, table.Open, key),
				batch.ClosedIDs,
			).Error; err != nil {
				return fmt.Errorf("failed to delete from %s: %w", table.Open, err)
			}
		}

		return nil
	})
}

// guardedUpsert builds the ON CONFLICT clause that only lets a row move forward in logical clock.
// Nullable columns keep their stored value when the incoming row does not carry one.
func guardedUpsert(table *Table, name string) clause.OnConflict {
	columns := make([]clause.Column, len(table.Key))
	for i, key := range table.Key {
		columns[i] = clause.Column{Name: key}
	}

	updates := clause.AssignmentColumns(table.Overwrite)
	for _, column := range table.Merge {
		updates = append(updates, clause.Assignment{
			Column: clause.Column{Name: column},
			Value:  gorm.Expr(fmt.Sprintf("COALESCE(excluded.%[1]s, %[2]s.%[1]s)", column, name)),
		})
	}

	return clause.OnConflict{
		Columns:   columns,
		DoUpdates: updates,
		Where: clause.Where{Exprs: []clause.Expression{
			gorm.Expr(regressionGuard(name)),
		}},
	}
}

func regressionGuard(name string) string {
	return fmt.Sprintf(
		"(%[1]s.last_transaction_version < excluded.last_transaction_version OR "+
			"(%[1]s.last_transaction_version = excluded.last_transaction_version AND %[1]s.event_index <= excluded.event_index))",
		name,
	)
}

// carryOverSQL fills NULL detail columns of freshly closed rows from their open counterpart
func carryOverSQL(table *Table) string {
	sets := make([]string, len(table.Merge))
	for i, column := range table.Merge {
		sets[i] = fmt.Sprintf("%[1]s = COALESCE(c.%[1]s, o.%[1]s)", column)
	}
	key := table.Key[0]

	return fmt.Sprintf(
		"UPDATE %[1]s c SET %[2]s FROM %[3]s o WHERE c.%[4]s = o.%[4]s AND c.%[4]s IN ?",
		table.Closed, strings.Join(sets, ", "), table.Open, key,
	)
}
