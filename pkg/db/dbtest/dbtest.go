// Package dbtest opens isolated in-memory sqlite databases carrying the full schema.
package dbtest

import (
	"fmt"
	"io"
	"log"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/aquaflow-backend/pkg/config"
	"github.com/angelmondragon/aquaflow-backend/pkg/db"
	"github.com/angelmondragon/aquaflow-backend/pkg/db/models"
	"github.com/angelmondragon/aquaflow-backend/pkg/enums"
)

// Open returns a client over a fresh database. A single pooled connection keeps
// sqlite writers serialized, so concurrent callers queue instead of failing.
func Open(t testing.TB) *db.Client {
	t.Helper()
	dsn := fmt.Sprintf("file:aquaflow_%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.New(log.New(io.Discard, "", 0), gormlogger.Config{LogLevel: gormlogger.Silent}),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := conn.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db.NewWithConn(conn, config.DBConfig{
		Driver:          config.DBDriverSQLite,
		ConflictRetries: 3,
		ConflictBackoff: time.Millisecond,
	})
}

// SeedProduct inserts an active refill product. Opening stock is booked as a
// restock ledger row so reconciliation holds from the start.
func SeedProduct(t testing.TB, client *db.Client, name string, priceCents int64, stock, threshold int) models.Product {
	t.Helper()
	return SeedProductInCategory(t, client, name, enums.ProductCategoryRefill, priceCents, stock, threshold)
}

// SeedProductInCategory is SeedProduct for an explicit category.
func SeedProductInCategory(t testing.TB, client *db.Client, name string, category enums.ProductCategory, priceCents int64, stock, threshold int) models.Product {
	t.Helper()
	product := models.Product{
		Name:              name,
		Category:          category,
		PriceCents:        priceCents,
		StockQuantity:     stock,
		LowStockThreshold: threshold,
		IsActive:          true,
	}
	if err := client.DB().Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	if stock > 0 {
		entry := models.InventoryLog{
			ProductID:        product.ID,
			ChangeQuantity:   stock,
			PreviousQuantity: 0,
			NewQuantity:      stock,
			ChangeType:       enums.InventoryChangeRestock,
			Reason:           "opening stock",
		}
		if err := client.DB().Create(&entry).Error; err != nil {
			t.Fatalf("seed opening stock: %v", err)
		}
	}
	return product
}

// SeedCustomer inserts a customer with the given points balance, booked as an
// adjustment ledger row.
func SeedCustomer(t testing.TB, client *db.Client, name string, points int) models.Customer {
	t.Helper()
	customer := models.Customer{Name: name, PointsBalance: points}
	if err := client.DB().Create(&customer).Error; err != nil {
		t.Fatalf("seed customer: %v", err)
	}
	if points > 0 {
		entry := models.LoyaltyLog{
			CustomerID:   customer.ID,
			PointsChange: points,
			BalanceAfter: points,
			EntryType:    enums.LoyaltyEntryAdjustment,
			Reason:       "opening balance",
		}
		if err := client.DB().Create(&entry).Error; err != nil {
			t.Fatalf("seed opening balance: %v", err)
		}
	}
	return customer
}

// SeedZone inserts an active zone; a nil fee defers to the default delivery fee.
func SeedZone(t testing.TB, client *db.Client, name string, feeCents *int64) models.Zone {
	t.Helper()
	zone := models.Zone{Name: name, DeliveryFeeCents: feeCents, IsActive: true}
	if err := client.DB().Create(&zone).Error; err != nil {
		t.Fatalf("seed zone: %v", err)
	}
	return zone
}
