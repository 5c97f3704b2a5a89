package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Product holds the catalog fields the order engine reads plus the stock
// counters owned by the inventory ledger. Order code never writes OnHand,
// Reserved or SoldCount directly.
type Product struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	SKU             string              `gorm:"column:sku;not null;uniqueIndex"`
	Name            string              `gorm:"column:name;not null"`
	Status          enums.ProductStatus `gorm:"column:status;type:varchar(16);not null"`
	Price           decimal.Decimal     `gorm:"column:price;type:numeric(12,2);not null"`
	WeightGrams     int                 `gorm:"column:weight_grams;not null;default:0"`
	TracksInventory bool                `gorm:"column:tracks_inventory;not null"`
	OnHand          int                 `gorm:"column:on_hand;not null;default:0"`
	Reserved        int                 `gorm:"column:reserved;not null;default:0"`
	SoldCount       int                 `gorm:"column:sold_count;not null;default:0"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (Product) TableName() string { return "products" }

// Available is the quantity that can still be sold.
func (p Product) Available() int {
	return p.OnHand - p.Reserved
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
