// Package dbtest opens throwaway databases and deterministic clocks for tests.
package dbtest

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"helpdesk/database"
)

// SetupTestDatabase opens a migrated sqlite database in a per-test temp dir.
func SetupTestDatabase(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := database.SetupDatabase(database.BackendSqlite, filepath.Join(t.TempDir(), "test.db"), false)
	if err != nil {
		t.Fatalf("failed to set up test database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// StepClock returns a clock that advances by step on every call, starting at start.
func StepClock(start time.Time, step time.Duration) func() time.Time {
	var mu sync.Mutex
	current := start.Add(-step)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(step)
		return current
	}
}
