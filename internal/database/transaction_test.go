package database

import (
	"context"
	"errors"
	"testing"

	"gorm.io/gorm"
)

func openTestDBWithTable(t *testing.T) Database {
	t.Helper()
	db := openTestDB(t)
	ctx := context.Background()
	if err := db.Session(ctx).Exec("CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT)").Error; err != nil {
		t.Fatalf("create table: %v", err)
	}
	return db
}

func countItems(t *testing.T, db Database) int64 {
	t.Helper()
	var count int64
	if err := db.Session(context.Background()).Raw("SELECT COUNT(*) FROM items").Scan(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return count
}

func TestTransaction_Commit(t *testing.T) {
	ctx := context.Background()
	db := openTestDBWithTable(t)

	txn, err := NewTransaction(ctx, db)
	if err != nil {
		t.Fatalf("NewTransaction: %v", err)
	}
	if err := txn.Session().Exec("INSERT INTO items (name) VALUES (?)", "a").Error; err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if got := countItems(t, db); got != 1 {
		t.Errorf("expected 1 row after commit, got %d", got)
	}

	// Repeated Commit and Rollback are no-ops once finished.
	if err := txn.Commit(); err != nil {
		t.Errorf("second Commit: %v", err)
	}
	if err := txn.Rollback(); err != nil {
		t.Errorf("Rollback after Commit: %v", err)
	}
}

func TestTransaction_Rollback(t *testing.T) {
	ctx := context.Background()
	db := openTestDBWithTable(t)

	txn, err := NewTransaction(ctx, db)
	if err != nil {
		t.Fatalf("NewTransaction: %v", err)
	}
	if err := txn.Session().Exec("INSERT INTO items (name) VALUES (?)", "a").Error; err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := txn.Rollback(); err != nil {
		t.Fatalf("Rollback: %v", err)
	}

	if got := countItems(t, db); got != 0 {
		t.Errorf("expected 0 rows after rollback, got %d", got)
	}
}

func TestWithTransaction(t *testing.T) {
	ctx := context.Background()
	db := openTestDBWithTable(t)

	err := WithTransaction(ctx, db, func(tx *gorm.DB) error {
		return tx.Exec("INSERT INTO items (name) VALUES (?)", "a").Error
	})
	if err != nil {
		t.Fatalf("WithTransaction: %v", err)
	}
	if got := countItems(t, db); got != 1 {
		t.Errorf("expected 1 row, got %d", got)
	}
}

func TestWithTransaction_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	db := openTestDBWithTable(t)

	boom := errors.New("boom")
	err := WithTransaction(ctx, db, func(tx *gorm.DB) error {
		if err := tx.Exec("INSERT INTO items (name) VALUES (?)", "a").Error; err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("expected fn error, got: %v", err)
	}
	if got := countItems(t, db); got != 0 {
		t.Errorf("expected rollback, got %d rows", got)
	}
}
