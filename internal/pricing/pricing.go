// Package pricing computes order totals. Shipping, tax and promotions are
// resolved through narrow collaborator interfaces so the rate sources can be
// swapped without touching order creation.
package pricing

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// MoneyPlaces is the fixed-point scale of every stored amount.
const MoneyPlaces = 2

// ShippingResolver prices delivery for a parcel.
type ShippingResolver interface {
	ResolveShippingCost(ctx context.Context, subtotal decimal.Decimal, weightGrams int, destination types.Address) (decimal.Decimal, error)
}

// TaxResolver prices sales tax for a destination.
type TaxResolver interface {
	ResolveTax(ctx context.Context, subtotal decimal.Decimal, destination types.Address) (decimal.Decimal, error)
}

// OrderContext is what a promotion validator may inspect.
type OrderContext struct {
	OwnerEmail  string
	Subtotal    decimal.Decimal
	Currency    enums.Currency
	Destination types.Address
	ItemCount   int
}

// PromotionResult is the outcome of validating a code.
type PromotionResult struct {
	Valid          bool
	DiscountAmount decimal.Decimal
	FreeShipping   bool
}

// PromotionValidator checks a promotion code against the pending order.
type PromotionValidator interface {
	ValidatePromotionCode(ctx context.Context, code string, order OrderContext) (PromotionResult, error)
}

// Line is a priced line ready to be summed.
type Line struct {
	UnitPrice   decimal.Decimal
	Quantity    int
	WeightGrams int
}

func (l Line) Total() decimal.Decimal {
	return Round(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
}

// Totals is the frozen monetary snapshot stored on an order.
type Totals struct {
	Subtotal     decimal.Decimal
	ShippingCost decimal.Decimal
	Tax          decimal.Decimal
	Discount     decimal.Decimal
	Total        decimal.Decimal
}

// QuoteRequest carries everything Quote needs.
type QuoteRequest struct {
	Lines         []Line
	Destination   types.Address
	Currency      enums.Currency
	ContactEmail  string
	PromotionCode string
}

// Quoter wires the three collaborators together.
type Quoter struct {
	shipping   ShippingResolver
	tax        TaxResolver
	promotions PromotionValidator
}

func NewQuoter(shipping ShippingResolver, tax TaxResolver, promotions PromotionValidator) (*Quoter, error) {
	if shipping == nil {
		return nil, fmt.Errorf("shipping resolver required")
	}
	if tax == nil {
		return nil, fmt.Errorf("tax resolver required")
	}
	if promotions == nil {
		promotions = NoPromotions{}
	}
	return &Quoter{shipping: shipping, tax: tax, promotions: promotions}, nil
}

// Quote computes totals. An invalid promotion code is rejected rather than
// silently ignored so the buyer is not charged more than they expected.
func (q *Quoter) Quote(ctx context.Context, req QuoteRequest) (Totals, error) {
	if len(req.Lines) == 0 {
		return Totals{}, pkgerrors.New(pkgerrors.CodeValidation, "at least one line is required")
	}

	subtotal := decimal.Zero
	weight := 0
	items := 0
	for _, line := range req.Lines {
		subtotal = subtotal.Add(line.Total())
		weight += line.WeightGrams * line.Quantity
		items += line.Quantity
	}
	subtotal = Round(subtotal)

	promo := PromotionResult{DiscountAmount: decimal.Zero}
	if req.PromotionCode != "" {
		result, err := q.promotions.ValidatePromotionCode(ctx, req.PromotionCode, OrderContext{
			OwnerEmail:  req.ContactEmail,
			Subtotal:    subtotal,
			Currency:    req.Currency,
			Destination: req.Destination,
			ItemCount:   items,
		})
		if err != nil {
			return Totals{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate promotion code")
		}
		if !result.Valid {
			return Totals{}, pkgerrors.New(pkgerrors.CodeValidation, "promotion code is not valid").
				WithDetails(map[string]any{"promotion_code": req.PromotionCode})
		}
		promo = result
	}

	shipping := decimal.Zero
	if !promo.FreeShipping {
		cost, err := q.shipping.ResolveShippingCost(ctx, subtotal, weight, req.Destination)
		if err != nil {
			return Totals{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve shipping cost")
		}
		shipping = cost
	}

	tax, err := q.tax.ResolveTax(ctx, subtotal, req.Destination)
	if err != nil {
		return Totals{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve tax")
	}

	return Compute(subtotal, shipping, tax, promo.DiscountAmount), nil
}

// Compute assembles totals with total = subtotal + shipping + tax - discount.
// Negative inputs count as zero and the discount is capped so the total never
// goes below zero.
func Compute(subtotal, shipping, tax, discount decimal.Decimal) Totals {
	subtotal = nonNegative(Round(subtotal))
	shipping = nonNegative(Round(shipping))
	tax = nonNegative(Round(tax))
	discount = nonNegative(Round(discount))

	gross := subtotal.Add(shipping).Add(tax)
	if discount.GreaterThan(gross) {
		discount = gross
	}
	return Totals{
		Subtotal:     subtotal,
		ShippingCost: shipping,
		Tax:          tax,
		Discount:     discount,
		Total:        gross.Sub(discount),
	}
}

// Round applies half-up rounding to cents.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
