package orders

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

type recordedChange struct {
	from, to enums.OrderStatus
}

type stubNotifier struct {
	mu      sync.Mutex
	changes []recordedChange
	err     error
}

func (s *stubNotifier) NotifyOrderCreated(context.Context, models.Order) error { return nil }

func (s *stubNotifier) NotifyStatusChanged(_ context.Context, _ models.Order, from, to enums.OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.changes = append(s.changes, recordedChange{from: from, to: to})
	return s.err
}

type harness struct {
	conn     *gorm.DB
	repo     Repository
	svc      Service
	notifier *stubNotifier
	now      time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	conn := dbtest.Open(t)
	h := &harness{
		conn:     conn,
		repo:     NewRepository(conn),
		notifier: &stubNotifier{},
		now:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	svc, err := NewService(ServiceParams{
		Repo:     h.repo,
		Tx:       db.FromConn(conn),
		Ledger:   inventory.NewLedger(nil),
		Notifier: h.notifier,
		Now:      func() time.Time { return h.now },
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	h.svc = svc
	return h
}

type lineSpec struct {
	product *models.Product
	qty     int
}

type orderOption func(*models.Order)

func ownedBy(id uuid.UUID) orderOption {
	return func(o *models.Order) { o.OwnerID = &id }
}

func createdAt(t time.Time) orderOption {
	return func(o *models.Order) { o.CreatedAt = t }
}

// seedOrder inserts an order in the given status. Tracked lines are assumed
// to have been reserved already, mirroring what checkout leaves behind.
func seedOrder(t *testing.T, conn *gorm.DB, status enums.OrderStatus, lines []lineSpec, opts ...orderOption) *models.Order {
	t.Helper()
	subtotal := decimal.Zero
	items := make([]models.OrderLineItem, 0, len(lines))
	for _, l := range lines {
		total := l.product.Price.Mul(decimal.NewFromInt(int64(l.qty)))
		subtotal = subtotal.Add(total)
		items = append(items, models.OrderLineItem{
			ProductID:        l.product.ID,
			ProductName:      l.product.Name,
			SKU:              l.product.SKU,
			UnitPrice:        l.product.Price,
			Quantity:         l.qty,
			LineTotal:        total,
			InventoryTracked: l.product.TracksInventory,
		})
	}
	order := &models.Order{
		OrderNumber:   NewNumberGenerator("SF").mustNext(t),
		ContactEmail:  "Guest@Example.com",
		Status:        status,
		Currency:      enums.CurrencyUSD,
		PaymentMethod: enums.PaymentMethodCard,
		Subtotal:      subtotal,
		ShippingCost:  decimal.Zero,
		Tax:           decimal.Zero,
		Discount:      decimal.Zero,
		Total:         subtotal,
		ShippingAddress: types.Address{
			Name: "Test Buyer", Line1: "1 Main St", City: "Austin", State: "TX", PostalCode: "78701", Country: "US",
		},
		CreatedAt: time.Now().UTC(),
		LineItems: items,
	}
	for _, opt := range opts {
		opt(order)
	}
	if err := conn.Create(order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return order
}

func (g *NumberGenerator) mustNext(t *testing.T) string {
	t.Helper()
	n, err := g.Next()
	if err != nil {
		t.Fatalf("order number: %v", err)
	}
	return n
}
