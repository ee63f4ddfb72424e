// Package storagetest opens isolated in-memory sqlite databases for tests.
package storagetest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nmezhenskyi/gastronomy-api/internal/storage"
)

// Open returns a migrated in-memory database private to t. The pool is capped
// at one connection so the shared-cache database lives exactly as long as t.
func Open(t testing.TB, models ...any) *gorm.DB {
	t.Helper()
	db, err := storage.Open(storage.Config{
		Dialect:      storage.DialectSQLite,
		Datasource:   fmt.Sprintf("file:%s?mode=memory&cache=shared&_fk=1", uuid.NewString()),
		MaxOpenConns: 1,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := storage.Migrate(db, models...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { _ = storage.Close(db) })
	return db
}
