package store

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// PoolSettings configures the database/sql pool behind a gorm connection
type PoolSettings struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	// Writers is the number of chunks that may be written at the same time
	// (orchestrator pool size times per-batch table concurrency)
	Writers int
}

// Normalize fills zero settings with defaults. MaxOpenConns is raised to Writers so concurrent
// chunk transactions never wait on each other for a connection, and MaxIdleConns never exceeds it.
func (s PoolSettings) Normalize() PoolSettings {
	if s.MaxOpenConns == 0 {
		s.MaxOpenConns = 20
	}
	if s.MaxOpenConns < s.Writers {
		s.MaxOpenConns = s.Writers
	}
	if s.MaxIdleConns == 0 {
		s.MaxIdleConns = 5
	}
	if s.MaxIdleConns > s.MaxOpenConns {
		s.MaxIdleConns = s.MaxOpenConns
	}
	if s.ConnMaxLifetime == 0 {
		s.ConnMaxLifetime = 5 * time.Minute
	}
	if s.ConnMaxIdleTime == 0 {
		s.ConnMaxIdleTime = 10 * time.Minute
	}
	return s
}

// ConfigureConnectionPool applies the normalized settings to the underlying *sql.DB
func ConfigureConnectionPool(db *gorm.DB, settings PoolSettings) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	s := settings.Normalize()
	sqlDB.SetMaxOpenConns(s.MaxOpenConns)
	sqlDB.SetMaxIdleConns(s.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(s.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(s.ConnMaxIdleTime)

	return nil
}
