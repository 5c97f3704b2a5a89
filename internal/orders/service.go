package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/notifications"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

const paymentActor = "system:payments"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// InventoryLedger is the subset of the stock ledger status changes need.
type InventoryLedger interface {
	Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
	ConvertToSale(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
	Fulfill(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
	Restock(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
}

// Service drives the order state machine and the read-only query surface.
type Service interface {
	Transition(ctx context.Context, input TransitionInput) (*models.Order, error)
	Cancel(ctx context.Context, input CancelInput) (*models.Order, error)
	ConfirmPayment(ctx context.Context, event PaymentEvent) (*models.Order, error)

	GetByID(ctx context.Context, id uuid.UUID, viewer Viewer) (*models.Order, error)
	GetByNumber(ctx context.Context, number, email string, viewer Viewer) (*models.Order, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, params pagination.Params, viewer Viewer) (pagination.Page[models.Order], error)
	ListStatusEvents(ctx context.Context, orderID uuid.UUID, viewer Viewer) ([]models.OrderStatusEvent, error)
}

// TransitionInput requests a status change. Actor is recorded on the audit row.
type TransitionInput struct {
	OrderID uuid.UUID
	Target  enums.OrderStatus
	Note    string
	Actor   string
}

// CancelInput is a customer or staff cancellation.
type CancelInput struct {
	OrderID uuid.UUID
	Reason  string
	Viewer  Viewer
}

// PaymentEvent is an inbound payment confirmation.
type PaymentEvent struct {
	OrderNumber string
	Reference   string
}

// ServiceParams groups dependencies for the orders service.
type ServiceParams struct {
	Repo     Repository
	Tx       txRunner
	Ledger   InventoryLedger
	Notifier notifications.Notifier
	Metrics  *metrics.OrderMetrics
	Logger   *logger.Logger
	Now      func() time.Time
}

type service struct {
	repo     Repository
	tx       txRunner
	ledger   InventoryLedger
	notifier notifications.Notifier
	metrics  *metrics.OrderMetrics
	logg     *logger.Logger
	now      func() time.Time
}

// NewService wires the orders service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	notifier := params.Notifier
	if notifier == nil {
		notifier = notifications.Noop{}
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:     params.Repo,
		tx:       params.Tx,
		ledger:   params.Ledger,
		notifier: notifier,
		metrics:  params.Metrics,
		logg:     logg,
		now:      now,
	}, nil
}

func (s *service) Transition(ctx context.Context, input TransitionInput) (*models.Order, error) {
	return s.transition(ctx, input, nil)
}

func (s *service) Cancel(ctx context.Context, input CancelInput) (*models.Order, error) {
	order, err := s.load(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if err := authorize(order, input.Viewer); err != nil {
		return nil, err
	}
	return s.transition(ctx, TransitionInput{
		OrderID: input.OrderID,
		Target:  enums.OrderStatusCancelled,
		Note:    input.Reason,
		Actor:   input.Viewer.Actor(),
	}, nil)
}

func (s *service) ConfirmPayment(ctx context.Context, event PaymentEvent) (*models.Order, error) {
	number := strings.TrimSpace(event.OrderNumber)
	ref := strings.TrimSpace(event.Reference)
	if number == "" || ref == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order number and payment reference are required")
	}

	order, err := s.repo.FindByNumber(ctx, number)
	if err != nil {
		return nil, s.mapLookupError(err)
	}
	// Providers redeliver webhooks; a repeat of the recorded payment is a no-op.
	if order.PaymentRef != nil && *order.PaymentRef == ref && order.Status != enums.OrderStatusPending {
		return order, nil
	}

	return s.transition(ctx, TransitionInput{
		OrderID: order.ID,
		Target:  enums.OrderStatusConfirmed,
		Note:    "payment " + ref,
		Actor:   paymentActor,
	}, map[string]any{"payment_ref": ref})
}

func (s *service) transition(ctx context.Context, input TransitionInput, extra map[string]any) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if !input.Target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown order status %q", input.Target))
	}
	ctx = s.logg.WithOrderID(ctx, input.OrderID.String())

	var (
		updated *models.Order
		from    enums.OrderStatus
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		current, err := repo.FindByID(ctx, input.OrderID)
		if err != nil {
			return s.mapLookupError(err)
		}
		from = current.Status
		if !CanTransition(current.Status, input.Target) {
			return invalidTransition(current.Status, input.Target)
		}

		now := s.now().UTC()
		fields := statusFields(current, input, now)
		for k, v := range extra {
			fields[k] = v
		}
		fields["updated_at"] = now

		ok, err := repo.UpdateStatus(ctx, current.ID, current.Status, input.Target, fields)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !ok {
			// Lost the race: someone else moved the order after we read it.
			latest, loadErr := repo.FindByID(ctx, current.ID)
			if loadErr != nil {
				return s.mapLookupError(loadErr)
			}
			return invalidTransition(latest.Status, input.Target)
		}

		if err := repo.CreateStatusEvent(ctx, &models.OrderStatusEvent{
			OrderID:    current.ID,
			FromStatus: &from,
			Status:     input.Target,
			Note:       optionalString(input.Note),
			Actor:      optionalString(input.Actor),
			CreatedAt:  now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record status event")
		}

		if err := s.applyInventory(ctx, tx, current.LineItems, input.Target); err != nil {
			return err
		}

		applyFields(current, input.Target, fields)
		updated = current
		return nil
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, err
		}
		s.logg.Error(ctx, "order transition failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "commit order transition")
	}

	s.metrics.IncTransition(string(from), string(input.Target))
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"from_status": string(from),
		"to_status":   string(input.Target),
		"actor":       input.Actor,
	})
	s.logg.Info(logCtx, "order status changed")

	if err := s.notifier.NotifyStatusChanged(ctx, *updated, from, input.Target); err != nil {
		s.metrics.IncNotifyFailure(notifications.EventOrderStatusChanged)
		s.logg.Error(logCtx, "notify status change failed", err)
	}
	return updated, nil
}

// applyInventory reconciles stock for lines that reserved it at creation.
// Lines are merged per product and visited in id order to keep row lock
// order stable across concurrent transitions.
func (s *service) applyInventory(ctx context.Context, tx *gorm.DB, items []models.OrderLineItem, target enums.OrderStatus) error {
	var apply []func(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
	switch target {
	case enums.OrderStatusDelivered:
		apply = append(apply, s.ledger.ConvertToSale, s.ledger.Fulfill)
	case enums.OrderStatusCancelled:
		apply = append(apply, s.ledger.Release)
	case enums.OrderStatusReturned:
		apply = append(apply, s.ledger.Restock)
	default:
		return nil
	}

	for _, line := range trackedQuantities(items) {
		for _, fn := range apply {
			if err := fn(ctx, tx, line.productID, line.qty); err != nil {
				return err
			}
		}
	}
	return nil
}

type trackedLine struct {
	productID uuid.UUID
	qty       int
}

func trackedQuantities(items []models.OrderLineItem) []trackedLine {
	totals := make(map[uuid.UUID]int)
	for _, item := range items {
		if !item.InventoryTracked || item.Quantity <= 0 {
			continue
		}
		totals[item.ProductID] += item.Quantity
	}
	lines := make([]trackedLine, 0, len(totals))
	for id, qty := range totals {
		lines = append(lines, trackedLine{productID: id, qty: qty})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].productID.String() < lines[j].productID.String() })
	return lines
}

func statusFields(order *models.Order, input TransitionInput, now time.Time) map[string]any {
	fields := map[string]any{}
	switch input.Target {
	case enums.OrderStatusShipped:
		if order.ShippedAt == nil {
			fields["shipped_at"] = now
		}
	case enums.OrderStatusDelivered:
		if order.DeliveredAt == nil {
			fields["delivered_at"] = now
		}
	case enums.OrderStatusCancelled:
		fields["cancelled_at"] = now
		if note := strings.TrimSpace(input.Note); note != "" {
			fields["cancel_reason"] = note
		}
	case enums.OrderStatusReturned:
		fields["returned_at"] = now
	case enums.OrderStatusRefunded:
		fields["refunded_at"] = now
	}
	return fields
}

// applyFields mirrors the persisted column updates onto the in-memory order.
func applyFields(order *models.Order, target enums.OrderStatus, fields map[string]any) {
	order.Status = target
	for key, value := range fields {
		switch v := value.(type) {
		case time.Time:
			t := v
			switch key {
			case "shipped_at":
				order.ShippedAt = &t
			case "delivered_at":
				order.DeliveredAt = &t
			case "cancelled_at":
				order.CancelledAt = &t
			case "returned_at":
				order.ReturnedAt = &t
			case "refunded_at":
				order.RefundedAt = &t
			case "updated_at":
				order.UpdatedAt = t
			}
		case string:
			s := v
			switch key {
			case "cancel_reason":
				order.CancelReason = &s
			case "payment_ref":
				order.PaymentRef = &s
			}
		}
	}
}

func (s *service) load(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapLookupError(err)
	}
	return order, nil
}

func (s *service) mapLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeOrderNotFound, "order not found")
	}
	if typed := pkgerrors.As(err); typed != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
}

func optionalString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
