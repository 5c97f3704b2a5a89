package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

const (
	OrderExpiryJobName = "order-expiry"
	orderExpiryActor   = "system:order-expiry"
	defaultExpiryBatch = 200
)

type pendingOrderFinder interface {
	FindPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)
}

type orderTransitioner interface {
	Transition(ctx context.Context, input orders.TransitionInput) (*models.Order, error)
}

// OrderExpiryJobParams configure the stale pending order sweep.
type OrderExpiryJobParams struct {
	Logger      *logger.Logger
	Orders      pendingOrderFinder
	Transitions orderTransitioner
	Metrics     *metrics.OrderMetrics
	TTL         time.Duration
	BatchSize   int
	Now         func() time.Time
}

type orderExpiryJob struct {
	logg        *logger.Logger
	orders      pendingOrderFinder
	transitions orderTransitioner
	metrics     *metrics.OrderMetrics
	ttl         time.Duration
	batchSize   int
	now         func() time.Time
}

// NewOrderExpiryJob builds the job that cancels orders left pending longer
// than the TTL. Cancelling goes through the state machine so reservations are
// released in the same transaction as the status change.
func NewOrderExpiryJob(params OrderExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("pending order finder required")
	}
	if params.Transitions == nil {
		return nil, fmt.Errorf("order transitioner required")
	}
	if params.TTL <= 0 {
		return nil, fmt.Errorf("pending ttl must be positive")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultExpiryBatch
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &orderExpiryJob{
		logg:        params.Logger,
		orders:      params.Orders,
		transitions: params.Transitions,
		metrics:     params.Metrics,
		ttl:         params.TTL,
		batchSize:   batch,
		now:         now,
	}, nil
}

func (j *orderExpiryJob) Name() string { return OrderExpiryJobName }

func (j *orderExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	ids, err := j.orders.FindPendingBefore(ctx, cutoff, j.batchSize)
	if err != nil {
		return fmt.Errorf("find pending orders: %w", err)
	}

	var (
		errs    error
		expired int
	)
	note := fmt.Sprintf("payment not received within %s", j.ttl)
	for _, id := range ids {
		orderCtx := j.logg.WithOrderID(ctx, id.String())
		_, err := j.transitions.Transition(orderCtx, orders.TransitionInput{
			OrderID: id,
			Target:  enums.OrderStatusCancelled,
			Note:    note,
			Actor:   orderExpiryActor,
		})
		switch {
		case err == nil:
			expired++
		case pkgerrors.IsCode(err, pkgerrors.CodeInvalidStatusTransition), pkgerrors.IsCode(err, pkgerrors.CodeOrderNotFound):
			// moved on (paid or cancelled) since the sweep read it
			j.logg.Info(orderCtx, "pending order no longer expirable")
		default:
			errs = multierr.Append(errs, fmt.Errorf("expire order %s: %w", id, err))
		}
	}

	j.metrics.AddExpired(expired)
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"candidates": len(ids),
		"expired":    expired,
		"cutoff":     cutoff.Format(time.RFC3339),
	}), "order expiry sweep finished")
	return errs
}
