package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// OrderDetail is the public shape of an order.
type OrderDetail struct {
	ID              uuid.UUID           `json:"id"`
	OrderNumber     string              `json:"order_number"`
	OwnerID         *uuid.UUID          `json:"owner_id,omitempty"`
	ContactEmail    string              `json:"contact_email"`
	ContactPhone    *string             `json:"contact_phone,omitempty"`
	Status          enums.OrderStatus   `json:"status"`
	Currency        enums.Currency      `json:"currency"`
	PaymentMethod   enums.PaymentMethod `json:"payment_method"`
	Subtotal        decimal.Decimal     `json:"subtotal"`
	ShippingCost    decimal.Decimal     `json:"shipping_cost"`
	Tax             decimal.Decimal     `json:"tax"`
	Discount        decimal.Decimal     `json:"discount"`
	Total           decimal.Decimal     `json:"total"`
	PromotionCode   *string             `json:"promotion_code,omitempty"`
	ShippingAddress types.Address       `json:"shipping_address"`
	Notes           *string             `json:"notes,omitempty"`
	CancelReason    *string             `json:"cancel_reason,omitempty"`
	LineItems       []LineItemDetail    `json:"line_items"`
	CreatedAt       time.Time           `json:"created_at"`
	ShippedAt       *time.Time          `json:"shipped_at,omitempty"`
	DeliveredAt     *time.Time          `json:"delivered_at,omitempty"`
	CancelledAt     *time.Time          `json:"cancelled_at,omitempty"`
	ReturnedAt      *time.Time          `json:"returned_at,omitempty"`
	RefundedAt      *time.Time          `json:"refunded_at,omitempty"`
	NextStatuses    []enums.OrderStatus `json:"next_statuses"`
}

type LineItemDetail struct {
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	SKU         string          `json:"sku"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// OrderSummary is one row of an order history list.
type OrderSummary struct {
	ID          uuid.UUID         `json:"id"`
	OrderNumber string            `json:"order_number"`
	Status      enums.OrderStatus `json:"status"`
	Currency    enums.Currency    `json:"currency"`
	Total       decimal.Decimal   `json:"total"`
	TotalItems  int               `json:"total_items"`
	CreatedAt   time.Time         `json:"created_at"`
}

type OrderList struct {
	Orders     []OrderSummary `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

type StatusEventDetail struct {
	Sequence   int                `json:"sequence"`
	FromStatus *enums.OrderStatus `json:"from_status,omitempty"`
	Status     enums.OrderStatus  `json:"status"`
	Note       *string            `json:"note,omitempty"`
	Actor      *string            `json:"actor,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
}

func NewOrderDetail(order *models.Order) OrderDetail {
	items := make([]LineItemDetail, 0, len(order.LineItems))
	for _, li := range order.LineItems {
		items = append(items, LineItemDetail{
			ProductID:   li.ProductID,
			ProductName: li.ProductName,
			SKU:         li.SKU,
			UnitPrice:   li.UnitPrice,
			Quantity:    li.Quantity,
			LineTotal:   li.LineTotal,
		})
	}
	return OrderDetail{
		ID:              order.ID,
		OrderNumber:     order.OrderNumber,
		OwnerID:         order.OwnerID,
		ContactEmail:    order.ContactEmail,
		ContactPhone:    order.ContactPhone,
		Status:          order.Status,
		Currency:        order.Currency,
		PaymentMethod:   order.PaymentMethod,
		Subtotal:        order.Subtotal,
		ShippingCost:    order.ShippingCost,
		Tax:             order.Tax,
		Discount:        order.Discount,
		Total:           order.Total,
		PromotionCode:   order.PromotionCode,
		ShippingAddress: order.ShippingAddress,
		Notes:           order.Notes,
		CancelReason:    order.CancelReason,
		LineItems:       items,
		CreatedAt:       order.CreatedAt,
		ShippedAt:       order.ShippedAt,
		DeliveredAt:     order.DeliveredAt,
		CancelledAt:     order.CancelledAt,
		ReturnedAt:      order.ReturnedAt,
		RefundedAt:      order.RefundedAt,
		NextStatuses:    AllowedTransitions(order.Status),
	}
}

func NewOrderList(page pagination.Page[models.Order]) OrderList {
	out := OrderList{Orders: make([]OrderSummary, 0, len(page.Items)), NextCursor: page.NextCursor}
	for _, order := range page.Items {
		qty := 0
		for _, li := range order.LineItems {
			qty += li.Quantity
		}
		out.Orders = append(out.Orders, OrderSummary{
			ID:          order.ID,
			OrderNumber: order.OrderNumber,
			Status:      order.Status,
			Currency:    order.Currency,
			Total:       order.Total,
			TotalItems:  qty,
			CreatedAt:   order.CreatedAt,
		})
	}
	return out
}

func NewStatusEventDetails(events []models.OrderStatusEvent) []StatusEventDetail {
	out := make([]StatusEventDetail, 0, len(events))
	for _, e := range events {
		out = append(out, StatusEventDetail{
			Sequence:   e.Sequence,
			FromStatus: e.FromStatus,
			Status:     e.Status,
			Note:       e.Note,
			Actor:      e.Actor,
			CreatedAt:  e.CreatedAt,
		})
	}
	return out
}
