package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// OrderStatusEvent is an append-only audit row written with every status change.
// Sequence numbers events per order from 1 and orders the history when
// timestamps collide.
type OrderStatusEvent struct {
	ID         uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	OrderID    uuid.UUID          `gorm:"column:order_id;type:uuid;not null;uniqueIndex:order_status_events_order_seq_key,priority:1"`
	Sequence   int                `gorm:"column:sequence;not null;uniqueIndex:order_status_events_order_seq_key,priority:2"`
	FromStatus *enums.OrderStatus `gorm:"column:from_status;type:varchar(16)"`
	Status     enums.OrderStatus  `gorm:"column:status;type:varchar(16);not null"`
	Note       *string            `gorm:"column:note"`
	Actor      *string            `gorm:"column:actor"`
	CreatedAt  time.Time          `gorm:"column:created_at;autoCreateTime"`
}

func (OrderStatusEvent) TableName() string { return "order_status_events" }

func (e *OrderStatusEvent) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
