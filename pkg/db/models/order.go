package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Order is created once with frozen totals; afterwards only Status and the
// status-derived timestamps change.
type Order struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber     string              `gorm:"column:order_number;not null;uniqueIndex"`
	OwnerID         *uuid.UUID          `gorm:"column:owner_id;type:uuid;index"`
	ContactEmail    string              `gorm:"column:contact_email;not null"`
	ContactPhone    *string             `gorm:"column:contact_phone"`
	Status          enums.OrderStatus   `gorm:"column:status;type:varchar(16);not null;index"`
	Currency        enums.Currency      `gorm:"column:currency;type:varchar(3);not null"`
	PaymentMethod   enums.PaymentMethod `gorm:"column:payment_method;type:varchar(32);not null"`
	PaymentRef      *string             `gorm:"column:payment_ref"`
	Subtotal        decimal.Decimal     `gorm:"column:subtotal;type:numeric(12,2);not null"`
	ShippingCost    decimal.Decimal     `gorm:"column:shipping_cost;type:numeric(12,2);not null"`
	Tax             decimal.Decimal     `gorm:"column:tax;type:numeric(12,2);not null"`
	Discount        decimal.Decimal     `gorm:"column:discount;type:numeric(12,2);not null"`
	Total           decimal.Decimal     `gorm:"column:total;type:numeric(12,2);not null"`
	PromotionCode   *string             `gorm:"column:promotion_code"`
	ShippingAddress types.Address       `gorm:"column:shipping_address;type:jsonb;not null"`
	Notes           *string             `gorm:"column:notes"`
	CancelReason    *string             `gorm:"column:cancel_reason"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime;index"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
	ShippedAt       *time.Time          `gorm:"column:shipped_at"`
	DeliveredAt     *time.Time          `gorm:"column:delivered_at"`
	CancelledAt     *time.Time          `gorm:"column:cancelled_at"`
	ReturnedAt      *time.Time          `gorm:"column:returned_at"`
	RefundedAt      *time.Time          `gorm:"column:refunded_at"`

	LineItems []OrderLineItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

func (Order) TableName() string { return "orders" }

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
