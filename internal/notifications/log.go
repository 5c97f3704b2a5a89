package notifications

import (
	"context"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// LogNotifier writes order events to the structured log.
type LogNotifier struct {
	logg *logger.Logger
}

func NewLogNotifier(logg *logger.Logger) *LogNotifier {
	if logg == nil {
		logg = logger.Nop()
	}
	return &LogNotifier{logg: logg}
}

func (n *LogNotifier) NotifyOrderCreated(ctx context.Context, order models.Order) error {
	ctx = n.logg.WithFields(ctx, map[string]any{
		"event":        EventOrderCreated,
		"order_id":     order.ID.String(),
		"order_number": order.OrderNumber,
		"total":        order.Total.StringFixed(2),
		"currency":     string(order.Currency),
	})
	n.logg.Info(ctx, "order created")
	return nil
}

func (n *LogNotifier) NotifyStatusChanged(ctx context.Context, order models.Order, from, to enums.OrderStatus) error {
	ctx = n.logg.WithFields(ctx, map[string]any{
		"event":        EventOrderStatusChanged,
		"order_id":     order.ID.String(),
		"order_number": order.OrderNumber,
		"from_status":  string(from),
		"to_status":    string(to),
	})
	n.logg.Info(ctx, "order status changed")
	return nil
}
