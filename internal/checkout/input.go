package checkout

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/checkout/helpers"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// ItemInput is one requested line.
type ItemInput = helpers.LineRequest

// CreateOrderInput is everything needed to place an order. OwnerID is nil
// for guest checkout.
type CreateOrderInput struct {
	OwnerID         *uuid.UUID
	ContactEmail    string
	ContactPhone    string
	ShippingAddress types.Address
	PaymentMethod   string
	Currency        string
	PromotionCode   string
	Notes           string
	Items           []ItemInput
	Cart            cart.CartRef
}

type normalizedInput struct {
	CreateOrderInput
	email    string
	currency enums.Currency
	method   enums.PaymentMethod
	items    []helpers.LineRequest
}

var inputValidator = validator.New()

func normalize(input CreateOrderInput, defaultCurrency enums.Currency) (*normalizedInput, error) {
	items, err := helpers.MergeLines(input.Items)
	if err != nil {
		return nil, err
	}

	email := strings.TrimSpace(input.ContactEmail)
	if err := inputValidator.Var(email, "required,email"); err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a valid contact email is required").
			WithDetails(map[string]any{"field": "contact_email"})
	}

	currency := defaultCurrency
	if strings.TrimSpace(input.Currency) != "" {
		parsed, err := enums.ParseCurrency(input.Currency)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unsupported currency").
				WithDetails(map[string]any{"field": "currency", "value": input.Currency})
		}
		currency = parsed
	}

	method, err := enums.ParsePaymentMethod(input.PaymentMethod)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unsupported payment method").
			WithDetails(map[string]any{"field": "payment_method", "value": input.PaymentMethod})
	}

	if err := inputValidator.Struct(input.ShippingAddress); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "shipping address is incomplete").
			WithDetails(map[string]any{"field": "shipping_address", "error": err.Error()})
	}

	input.PromotionCode = strings.TrimSpace(input.PromotionCode)
	return &normalizedInput{
		CreateOrderInput: input,
		email:            email,
		currency:         currency,
		method:           method,
		items:            items,
	}, nil
}
