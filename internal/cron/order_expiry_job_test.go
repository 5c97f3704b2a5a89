package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

func TestOrderExpiryJobCancelsStaleOrdersAndReleasesStock(t *testing.T) {
	conn := dbtest.Open(t)
	repo := orders.NewRepository(conn)
	svc, err := orders.NewService(orders.ServiceParams{
		Repo:   repo,
		Tx:     db.FromConn(conn),
		Ledger: inventory.NewLedger(nil),
	})
	require.NoError(t, err)

	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	product := dbtest.SeedProduct(t, conn, dbtest.WithStock(10, 5))
	stale := seedPendingOrder(t, conn, product, 3, now.Add(-72*time.Hour))
	fresh := seedPendingOrder(t, conn, product, 2, now.Add(-time.Hour))

	job, err := NewOrderExpiryJob(OrderExpiryJobParams{
		Logger:      logger.Nop(),
		Orders:      repo,
		Transitions: svc,
		TTL:         48 * time.Hour,
		Now:         func() time.Time { return now },
	})
	require.NoError(t, err)
	assert.Equal(t, OrderExpiryJobName, job.Name())
	require.NoError(t, job.Run(context.Background()))

	got, err := repo.FindByID(context.Background(), stale.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, got.Status)
	require.NotNil(t, got.CancelReason)

	got, err = repo.FindByID(context.Background(), fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, got.Status)

	stock := dbtest.ReloadProduct(t, conn, product.ID)
	assert.Equal(t, 2, stock.Reserved)
	assert.Equal(t, 10, stock.OnHand)

	events, err := repo.ListStatusEvents(context.Background(), stale.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, orderExpiryActor, *events[0].Actor)
}

type stubFinder struct {
	ids []uuid.UUID
	err error
}

func (s stubFinder) FindPendingBefore(context.Context, time.Time, int) ([]uuid.UUID, error) {
	return s.ids, s.err
}

type stubTransitioner struct {
	errs map[uuid.UUID]error
	seen []uuid.UUID
}

func (s *stubTransitioner) Transition(_ context.Context, input orders.TransitionInput) (*models.Order, error) {
	s.seen = append(s.seen, input.OrderID)
	if err := s.errs[input.OrderID]; err != nil {
		return nil, err
	}
	return &models.Order{ID: input.OrderID, Status: input.Target}, nil
}

func TestOrderExpiryJobCombinesFailuresAndSkipsRaces(t *testing.T) {
	raced, broken, otherBroken, ok := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	transitions := &stubTransitioner{errs: map[uuid.UUID]error{
		raced:       pkgerrors.New(pkgerrors.CodeInvalidStatusTransition, "already confirmed"),
		broken:      errors.New("db down"),
		otherBroken: errors.New("db still down"),
	}}
	job, err := NewOrderExpiryJob(OrderExpiryJobParams{
		Logger:      logger.Nop(),
		Orders:      stubFinder{ids: []uuid.UUID{raced, broken, ok, otherBroken}},
		Transitions: transitions,
		TTL:         time.Hour,
	})
	require.NoError(t, err)

	err = job.Run(context.Background())
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2)
	assert.Len(t, transitions.seen, 4)
}

func TestOrderExpiryJobFinderError(t *testing.T) {
	job, err := NewOrderExpiryJob(OrderExpiryJobParams{
		Logger:      logger.Nop(),
		Orders:      stubFinder{err: errors.New("timeout")},
		Transitions: &stubTransitioner{},
		TTL:         time.Hour,
	})
	require.NoError(t, err)
	require.Error(t, job.Run(context.Background()))
}

func TestNewOrderExpiryJobValidates(t *testing.T) {
	_, err := NewOrderExpiryJob(OrderExpiryJobParams{Logger: logger.Nop(), Orders: stubFinder{}, Transitions: &stubTransitioner{}})
	require.Error(t, err)
}

func seedPendingOrder(t *testing.T, conn *gorm.DB, product *models.Product, qty int, created time.Time) *models.Order {
	t.Helper()
	total := product.Price.Mul(decimal.NewFromInt(int64(qty)))
	order := &models.Order{
		OrderNumber:   "SF-" + uuid.NewString(),
		ContactEmail:  "buyer@example.com",
		Status:        enums.OrderStatusPending,
		Currency:      enums.CurrencyUSD,
		PaymentMethod: enums.PaymentMethodCard,
		Subtotal:      total,
		ShippingCost:  decimal.Zero,
		Tax:           decimal.Zero,
		Discount:      decimal.Zero,
		Total:         total,
		ShippingAddress: types.Address{
			Name: "Buyer", Line1: "1 Main St", City: "Austin", State: "TX", PostalCode: "78701", Country: "US",
		},
		CreatedAt: created,
		LineItems: []models.OrderLineItem{{
			ProductID:        product.ID,
			ProductName:      product.Name,
			SKU:              product.SKU,
			UnitPrice:        product.Price,
			Quantity:         qty,
			LineTotal:        total,
			InventoryTracked: true,
		}},
	}
	require.NoError(t, conn.Create(order).Error)
	return order
}
