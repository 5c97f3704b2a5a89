// Package dbtest opens isolated sqlite databases migrated with the storefront
// models for repository and service tests.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Open returns a fresh in-memory database. The pool is capped at one
// connection so concurrent transactions queue instead of failing with
// SQLITE_LOCKED.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:storefront_%s?mode=memory&cache=shared&_fk=1", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
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
	return conn
}

// ProductOption tweaks a seeded product.
type ProductOption func(*models.Product)

func WithStock(onHand, reserved int) ProductOption {
	return func(p *models.Product) {
		p.OnHand = onHand
		p.Reserved = reserved
	}
}

func WithPrice(price string) ProductOption {
	return func(p *models.Product) {
		p.Price = decimal.RequireFromString(price)
	}
}

func WithStatus(status enums.ProductStatus) ProductOption {
	return func(p *models.Product) { p.Status = status }
}

func Untracked() ProductOption {
	return func(p *models.Product) { p.TracksInventory = false }
}

func WithWeight(grams int) ProductOption {
	return func(p *models.Product) { p.WeightGrams = grams }
}

// SeedProduct inserts an active, tracked product priced at 10.00.
func SeedProduct(t testing.TB, conn *gorm.DB, opts ...ProductOption) *models.Product {
	t.Helper()

	id := uuid.New()
	product := &models.Product{
		ID:              id,
		SKU:             "SKU-" + id.String()[:8],
		Name:            "Product " + id.String()[:8],
		Status:          enums.ProductStatusActive,
		Price:           decimal.RequireFromString("10.00"),
		TracksInventory: true,
	}
	for _, opt := range opts {
		opt(product)
	}
	if err := conn.Create(product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product
}

// ReloadProduct fetches the current counters for id.
func ReloadProduct(t testing.TB, conn *gorm.DB, id uuid.UUID) models.Product {
	t.Helper()
	var product models.Product
	if err := conn.First(&product, "id = ?", id).Error; err != nil {
		t.Fatalf("reload product: %v", err)
	}
	return product
}
