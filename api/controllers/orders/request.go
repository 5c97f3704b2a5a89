package orders

import (
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

type createOrderRequest struct {
	ContactEmail    string               `json:"contact_email" validate:"omitempty,email"`
	ContactPhone    string               `json:"contact_phone" validate:"omitempty,max=32"`
	ShippingAddress types.Address        `json:"shipping_address" validate:"required"`
	PaymentMethod   string               `json:"payment_method" validate:"required"`
	Currency        string               `json:"currency" validate:"omitempty,len=3"`
	PromotionCode   string               `json:"promotion_code" validate:"omitempty,max=64"`
	Notes           string               `json:"notes" validate:"omitempty,max=1000"`
	Items           []checkout.ItemInput `json:"items" validate:"required,min=1,dive"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
	Email  string `json:"email" validate:"omitempty,email"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
	Note   string `json:"note" validate:"omitempty,max=500"`
}
