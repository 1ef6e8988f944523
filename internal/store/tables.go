package store

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"gorm.io/gorm/schema"

	dbschema "github.com/mirage-protocol/mirage-indexer/internal/store/schema"
)

// LifecycleMode selects how current-state rows are stored
type LifecycleMode string

const (
	// LifecycleFlag keeps one table per entity kind with an is_closed flag
	LifecycleFlag LifecycleMode = "flag"
	// LifecycleTablePair moves rows from an open table to a closed table
	LifecycleTablePair LifecycleMode = "table_pair"
)

// Valid reports whether the mode is supported
func (m LifecycleMode) Valid() bool {
	return m == LifecycleFlag || m == LifecycleTablePair
}

// Table describes the physical layout of one model, derived from its gorm schema
type Table struct {
	// Name is the table name in flag mode, and the history table name
	Name string
	// Open and Closed are the table pair names; empty for history tables
	Open   string
	Closed string
	// Key is the primary key column list
	Key []string
	// Columns is every column written on insert
	Columns []string
	// Overwrite are the non-nullable columns replaced on upsert
	Overwrite []string
	// Merge are the nullable columns that keep their stored value when the incoming one is NULL
	Merge []string
}

var (
	schemaCache = &sync.Map{}

	marketActivities     = mustTable(&dbschema.MarketActivity{}, false)
	vaultActivities      = mustTable(&dbschema.VaultActivity{}, false)
	trades               = mustTable(&dbschema.Trade{}, false)
	marketDatas          = mustTable(&dbschema.MarketData{}, false)
	positionDatas        = mustTable(&dbschema.PositionData{}, false)
	vaultCollectionDatas = mustTable(&dbschema.VaultCollectionData{}, false)
	vaultDatas           = mustTable(&dbschema.VaultData{}, false)
	marketConfigs        = mustTable(&dbschema.MarketConfig{}, false)
	vaultConfigs         = mustTable(&dbschema.VaultConfig{}, false)
	tpslDatas            = mustTable(&dbschema.TpslData{}, false)
	limitOrderDatas      = mustTable(&dbschema.LimitOrderData{}, false)
	feeStoreDatas        = mustTable(&dbschema.FeeStoreData{}, false)
	debtStoreDatas       = mustTable(&dbschema.DebtStoreData{}, false)

	currentPositions   = mustTable(&dbschema.CurrentPosition{}, true)
	currentTpsls       = mustTable(&dbschema.CurrentTpsl{}, true)
	currentLimitOrders = mustTable(&dbschema.CurrentLimitOrder{}, true)
	currentVaults      = mustTable(&dbschema.CurrentVault{}, true)

	historyTables = []*Table{
		marketActivities, vaultActivities, trades, marketDatas, positionDatas, vaultCollectionDatas, vaultDatas,
		marketConfigs, vaultConfigs, tpslDatas, limitOrderDatas, feeStoreDatas, debtStoreDatas,
	}
	entityTables = []*Table{currentPositions, currentTpsls, currentLimitOrders, currentVaults}
)

func mustTable(model any, entity bool) *Table {
	t, err := newTable(model, entity)
	if err != nil {
		panic(err)
	}
	return t
}

func newTable(model any, entity bool) (*Table, error) {
	s, err := schema.Parse(model, schemaCache, schema.NamingStrategy{})
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema of %T: %w", model, err)
	}

	t := &Table{
		Name: s.Table,
		Key:  s.PrimaryFieldDBNames,
	}
	if entity {
		suffix := s.Table[len("current_"):]
		t.Open = "open_" + suffix
		t.Closed = "closed_" + suffix
	}

	for _, field := range s.Fields {
		if field.DBName == "" {
			continue
		}
		t.Columns = append(t.Columns, field.DBName)
		if field.PrimaryKey || field.AutoCreateTime > 0 {
			continue
		}
		if field.FieldType.Kind() == reflect.Ptr {
			t.Merge = append(t.Merge, field.DBName)
		} else {
			t.Overwrite = append(t.Overwrite, field.DBName)
		}
	}

	return t, nil
}

// Names returns every physical table name of t
func (t *Table) Names() []string {
	if t.Open == "" {
		return []string{t.Name}
	}
	return []string{t.Name, t.Open, t.Closed}
}

// TableNames returns every table the writer can write to, sorted
func TableNames() []string {
	var names []string
	for _, t := range historyTables {
		names = append(names, t.Names()...)
	}
	for _, t := range entityTables {
		names = append(names, t.Names()...)
	}
	sort.Strings(names)
	return names
}
