package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderLineItem snapshots the product as it was sold. InventoryTracked records
// whether stock was reserved for this line so later transitions reconcile
// exactly what was claimed, even if the product stops tracking inventory.
type OrderLineItem struct {
	ID               uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID          uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID        uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	ProductName      string          `gorm:"column:product_name;not null"`
	SKU              string          `gorm:"column:sku;not null"`
	UnitPrice        decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	Quantity         int             `gorm:"column:quantity;not null"`
	LineTotal        decimal.Decimal `gorm:"column:line_total;type:numeric(12,2);not null"`
	InventoryTracked bool            `gorm:"column:inventory_tracked;not null"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (OrderLineItem) TableName() string { return "order_line_items" }

func (li *OrderLineItem) BeforeCreate(*gorm.DB) error {
	if li.ID == uuid.Nil {
		li.ID = uuid.New()
	}
	return nil
}
