package pricing

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// RegionTaxTable looks up a rate by "COUNTRY-STATE", then by country, then
// falls back to the default rate.
type RegionTaxTable struct {
	rates       map[string]decimal.Decimal
	defaultRate decimal.Decimal
}

func NewRegionTaxTable(cfg config.PricingConfig) (*RegionTaxTable, error) {
	rates, err := cfg.TaxTable()
	if err != nil {
		return nil, err
	}
	return &RegionTaxTable{rates: rates, defaultRate: cfg.DefaultTaxRate}, nil
}

func (t *RegionTaxTable) ResolveTax(_ context.Context, subtotal decimal.Decimal, destination types.Address) (decimal.Decimal, error) {
	return Round(subtotal.Mul(t.rateFor(destination))), nil
}

func (t *RegionTaxTable) rateFor(destination types.Address) decimal.Decimal {
	if rate, ok := t.rates[destination.Region()]; ok {
		return rate
	}
	if rate, ok := t.rates[types.Address{Country: destination.Country}.Region()]; ok {
		return rate
	}
	return t.defaultRate
}
