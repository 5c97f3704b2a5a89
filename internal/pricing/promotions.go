package pricing

import (
	"context"

	"github.com/shopspring/decimal"
)

// NoPromotions rejects every code. Used until a promotions service is wired.
type NoPromotions struct{}

func (NoPromotions) ValidatePromotionCode(context.Context, string, OrderContext) (PromotionResult, error) {
	return PromotionResult{Valid: false, DiscountAmount: decimal.Zero}, nil
}
