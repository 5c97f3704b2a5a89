package notifications

import (
	"context"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"go.uber.org/multierr"
)

const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
)

// Notifier receives order lifecycle events after the owning transaction commits.
// Callers log failures and never roll back because of them.
type Notifier interface {
	NotifyOrderCreated(ctx context.Context, order models.Order) error
	NotifyStatusChanged(ctx context.Context, order models.Order, from, to enums.OrderStatus) error
}

// Multi fans an event out to every notifier and combines their errors.
type Multi []Notifier

func (m Multi) NotifyOrderCreated(ctx context.Context, order models.Order) error {
	var err error
	for _, n := range m {
		if n == nil {
			continue
		}
		err = multierr.Append(err, n.NotifyOrderCreated(ctx, order))
	}
	return err
}

func (m Multi) NotifyStatusChanged(ctx context.Context, order models.Order, from, to enums.OrderStatus) error {
	var err error
	for _, n := range m {
		if n == nil {
			continue
		}
		err = multierr.Append(err, n.NotifyStatusChanged(ctx, order, from, to))
	}
	return err
}

// Noop discards every event.
type Noop struct{}

func (Noop) NotifyOrderCreated(context.Context, models.Order) error { return nil }

func (Noop) NotifyStatusChanged(context.Context, models.Order, enums.OrderStatus, enums.OrderStatus) error {
	return nil
}
