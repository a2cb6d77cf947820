// Package dbtest opens throwaway sqlite databases migrated with the service models.
package dbtest

import (
	"path/filepath"
	"testing"

	"github.com/foodrescue/rescue-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// concurrentPoolSize bounds the pool handed out by OpenConcurrent.
const concurrentPoolSize = 8

// Open returns an in-memory database holding every service table. The pool is
// capped at one connection because shared-cache memory databases reject a
// second writer with "database table is locked".
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := "file:rescue_" + uuid.NewString() + "?mode=memory&cache=shared"
	return open(t, dsn, 1)
}

// OpenConcurrent returns a file-backed database served by a pool of several
// connections, so goroutines run their transactions on separate connections.
// Transactions begin IMMEDIATE and wait on the busy timeout, which makes
// writers queue on sqlite's database lock the way they would block on a
// Postgres row lock.
func OpenConcurrent(t testing.TB) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rescue.db")
	dsn := "file:" + path + "?_journal_mode=WAL&_busy_timeout=10000&_txlock=immediate"
	return open(t, dsn, concurrentPoolSize)
}

func open(t testing.TB, dsn string, maxConns int) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(maxConns)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := conn.AutoMigrate(
		&models.User{},
		&models.Business{},
		&models.Favorite{},
		&models.RescueBag{},
		&models.Reservation{},
		&models.ImpactCredit{},
		&models.Notification{},
		&models.OutboxEvent{},
		&models.OutboxDLQ{},
	); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return conn
}
