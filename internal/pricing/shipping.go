package pricing

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// FlatRateShipping charges a flat fee plus an optional per-kg surcharge,
// waived once the subtotal reaches the free-shipping threshold.
type FlatRateShipping struct {
	Flat          decimal.Decimal
	FreeThreshold decimal.Decimal
	PerKg         decimal.Decimal
}

func NewFlatRateShipping(cfg config.PricingConfig) FlatRateShipping {
	return FlatRateShipping{
		Flat:          cfg.FlatShipping,
		FreeThreshold: cfg.FreeShippingThreshold,
		PerKg:         cfg.PerKgSurcharge,
	}
}

func (s FlatRateShipping) ResolveShippingCost(_ context.Context, subtotal decimal.Decimal, weightGrams int, _ types.Address) (decimal.Decimal, error) {
	if s.FreeThreshold.IsPositive() && subtotal.GreaterThanOrEqual(s.FreeThreshold) {
		return decimal.Zero, nil
	}
	cost := s.Flat
	if s.PerKg.IsPositive() && weightGrams > 0 {
		kg := decimal.NewFromInt(int64(weightGrams)).Div(decimal.NewFromInt(1000))
		cost = cost.Add(kg.Mul(s.PerKg))
	}
	return Round(cost), nil
}
