package db

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/angelmondragon/aquaflow-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/aquaflow-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testModel struct {
	ID   int
	Name string
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:dbclient_%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), gormConfig(nil, 0))
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&testModel{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return conn
}

func TestWithTx_CommitsAndRollbacks(t *testing.T) {
	db := newTestDB(t)
	client := NewWithConn(db, config.DBConfig{Driver: config.DBDriverSQLite})

	ctx := context.Background()
	if err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&testModel{Name: "committed"}).Error
	}); err != nil {
		t.Fatalf("WithTx commit failed: %v", err)
	}

	var count int64
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 record, got %d", count)
	}

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&testModel{Name: "rolled"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected WithTx to return an error")
	}
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed after rollback: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected rollback to leave 1 record, got %d", count)
	}
}

func TestWithTx_RetriesConflicts(t *testing.T) {
	db := newTestDB(t)
	client := NewWithConn(db, config.DBConfig{
		Driver:          config.DBDriverSQLite,
		ConflictRetries: 3,
		ConflictBackoff: time.Millisecond,
	})

	attempts := 0
	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		attempts++
		if err := tx.Create(&testModel{Name: fmt.Sprintf("attempt-%d", attempts)}).Error; err != nil {
			return err
		}
		if attempts < 3 {
			return pkgerrors.New(pkgerrors.CodeConcurrency, "stock changed underneath")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}

	var count int64
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected only the successful attempt to persist, got %d rows", count)
	}
}

func TestWithTx_SurfacesConflictAfterBudget(t *testing.T) {
	db := newTestDB(t)
	client := NewWithConn(db, config.DBConfig{
		Driver:          config.DBDriverSQLite,
		ConflictRetries: 2,
		ConflictBackoff: time.Millisecond,
	})

	attempts := 0
	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		attempts++
		return &pgconn.PgError{Code: "40P01", Message: "deadlock detected"}
	})
	if attempts != 3 {
		t.Fatalf("expected initial attempt plus 2 retries, got %d", attempts)
	}
	if !pkgerrors.IsCode(err, pkgerrors.CodeConcurrency) {
		t.Fatalf("expected concurrency conflict, got %v", err)
	}
}

func TestWithTx_DoesNotRetryDomainErrors(t *testing.T) {
	db := newTestDB(t)
	client := NewWithConn(db, config.DBConfig{Driver: config.DBDriverSQLite, ConflictRetries: 5})

	attempts := 0
	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		attempts++
		return pkgerrors.New(pkgerrors.CodeInsufficientStock, "short")
	})
	if attempts != 1 {
		t.Fatalf("expected a single attempt, got %d", attempts)
	}
	if !pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
}

func TestIsConflictClassification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "pgx serialization", err: &pgconn.PgError{Code: "40001"}, want: true},
		{name: "pgx lock timeout", err: fmt.Errorf("select: %w", &pgconn.PgError{Code: "55P03"}), want: true},
		{name: "pq deadlock", err: &pq.Error{Code: "40P01"}, want: true},
		{name: "pq unique", err: &pq.Error{Code: "23505"}, want: false},
		{name: "sqlite busy", err: errors.New("database is locked"), want: true},
		{name: "typed", err: pkgerrors.New(pkgerrors.CodeConcurrency, "cas"), want: true},
		{name: "other", err: errors.New("boom"), want: false},
	}
	for _, tc := range cases {
		if got := IsConflict(tc.err); got != tc.want {
			t.Fatalf("%s: expected %v got %v", tc.name, tc.want, got)
		}
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !IsUniqueViolation(&pq.Error{Code: "23505"}, "") {
		t.Fatal("expected pq unique violation")
	}
	if !IsUniqueViolation(errors.New("UNIQUE constraint failed: orders.subscription_id"), "") {
		t.Fatal("expected sqlite unique violation")
	}
	if IsUniqueViolation(errors.New("duplicate key value violates ux_other"), "ux_orders_subscription_due") {
		t.Fatal("constraint name should be matched when provided")
	}
}

func TestPing(t *testing.T) {
	db := newTestDB(t)
	client := NewWithConn(db, config.DBConfig{Driver: config.DBDriverSQLite})
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}
}
