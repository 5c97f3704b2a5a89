package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/checkout/helpers"
	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/internal/notifications"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

const (
	orderNumberConstraint = "order_number"
	orderNumberAttempts   = 3
	initialStatusNote     = "order placed"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Reserver claims stock for every line inside the order transaction and
// reports which products it actually reserved.
type Reserver interface {
	ReserveAll(ctx context.Context, tx *gorm.DB, lines []inventory.Line) (inventory.Reservation, error)
}

// Quoter prices the order before the transaction opens.
type Quoter interface {
	Quote(ctx context.Context, req pricing.QuoteRequest) (pricing.Totals, error)
}

// NumberSource issues order numbers.
type NumberSource interface {
	Next() (string, error)
}

// Service creates orders.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error)
}

// ServiceParams groups dependencies for the checkout service.
type ServiceParams struct {
	Products        ProductReader
	Orders          orders.Repository
	Tx              txRunner
	Inventory       Reserver
	Quoter          Quoter
	Numbers         NumberSource
	Cart            cart.Clearer
	Notifier        notifications.Notifier
	Metrics         *metrics.OrderMetrics
	Logger          *logger.Logger
	DefaultCurrency enums.Currency
	Now             func() time.Time
}

type service struct {
	products        ProductReader
	orders          orders.Repository
	tx              txRunner
	inventory       Reserver
	quoter          Quoter
	numbers         NumberSource
	cart            cart.Clearer
	notifier        notifications.Notifier
	metrics         *metrics.OrderMetrics
	logg            *logger.Logger
	defaultCurrency enums.Currency
	now             func() time.Time
}

// NewService wires the checkout service.
func NewService(params ServiceParams) (Service, error) {
	if params.Products == nil {
		return nil, fmt.Errorf("product reader required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory reserver required")
	}
	if params.Quoter == nil {
		return nil, fmt.Errorf("quoter required")
	}
	if params.Numbers == nil {
		return nil, fmt.Errorf("order number source required")
	}
	s := &service{
		products:        params.Products,
		orders:          params.Orders,
		tx:              params.Tx,
		inventory:       params.Inventory,
		quoter:          params.Quoter,
		numbers:         params.Numbers,
		cart:            params.Cart,
		notifier:        params.Notifier,
		metrics:         params.Metrics,
		logg:            params.Logger,
		defaultCurrency: params.DefaultCurrency,
		now:             params.Now,
	}
	if s.cart == nil {
		s.cart = cart.NoopClearer{}
	}
	if s.notifier == nil {
		s.notifier = notifications.Noop{}
	}
	if s.logg == nil {
		s.logg = logger.Nop()
	}
	if !s.defaultCurrency.IsValid() {
		s.defaultCurrency = enums.CurrencyUSD
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// CreateOrder validates, prices and persists an order, reserving stock in the
// same transaction. Nothing is written unless every step succeeds.
func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	order, err := s.createOrder(ctx, input)
	if err != nil {
		code := pkgerrors.CodeInternal
		if typed := pkgerrors.As(err); typed != nil {
			code = typed.Code()
		}
		s.metrics.IncCreateFailure(string(code))
		if code == pkgerrors.CodeInsufficientStock {
			s.metrics.IncStockConflict()
		}
		return nil, err
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"order_id":     order.ID.String(),
		"order_number": order.OrderNumber,
	})
	s.metrics.IncCreated(string(order.Currency))
	s.logg.Info(ctx, "order created")

	if err := s.cart.ClearCart(ctx, input.Cart); err != nil {
		s.logg.Error(ctx, "clear cart after checkout failed", err)
	}
	if err := s.notifier.NotifyOrderCreated(ctx, *order); err != nil {
		s.metrics.IncNotifyFailure(notifications.EventOrderCreated)
		s.logg.Error(ctx, "notify order created failed", err)
	}
	return order, nil
}

func (s *service) createOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	in, err := normalize(input, s.defaultCurrency)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(in.items))
	for _, item := range in.items {
		ids = append(ids, item.ProductID)
	}
	products, err := s.products.FindProducts(ctx, ids)
	if err != nil {
		return nil, s.internal(ctx, err, "load products")
	}
	for _, item := range in.items {
		if err := helpers.ValidateProduct(item.ProductID, products[item.ProductID]); err != nil {
			return nil, err
		}
	}
	if shortages := helpers.Shortages(in.items, products); len(shortages) > 0 {
		return nil, inventory.InsufficientStock(shortages...)
	}

	order := buildOrder(in, products, s.now().UTC())
	priceLines := make([]pricing.Line, 0, len(in.items))
	for _, item := range in.items {
		p := products[item.ProductID]
		priceLines = append(priceLines, pricing.Line{UnitPrice: p.Price, Quantity: item.Quantity, WeightGrams: p.WeightGrams})
	}
	totals, err := s.quoter.Quote(ctx, pricing.QuoteRequest{
		Lines:         priceLines,
		Destination:   in.ShippingAddress,
		Currency:      in.currency,
		ContactEmail:  in.email,
		PromotionCode: in.PromotionCode,
	})
	if err != nil {
		return nil, err
	}
	order.Subtotal = totals.Subtotal
	order.ShippingCost = totals.ShippingCost
	order.Tax = totals.Tax
	order.Discount = totals.Discount
	order.Total = totals.Total

	reserve := make([]inventory.Line, 0, len(in.items))
	for _, li := range order.LineItems {
		reserve = append(reserve, inventory.Line{ProductID: li.ProductID, Quantity: li.Quantity})
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		// Tracking can be switched off after the product read; the flag
		// stored on each line must match the reservation taken here.
		reserved, err := s.inventory.ReserveAll(ctx, tx, reserve)
		if err != nil {
			return err
		}
		for i := range order.LineItems {
			order.LineItems[i].InventoryTracked = reserved.Tracked(order.LineItems[i].ProductID)
		}

		repo := s.orders.WithTx(tx)
		if err := s.insertWithNumber(ctx, tx, repo, order); err != nil {
			return err
		}
		if err := repo.CreateStatusEvent(ctx, &models.OrderStatusEvent{
			OrderID:   order.ID,
			Status:    enums.OrderStatusPending,
			Note:      strPtr(initialStatusNote),
			Actor:     strPtr(actorFor(in)),
			CreatedAt: order.CreatedAt,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record initial status")
		}
		return nil
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, s.internal(ctx, err, "commit order")
	}
	return order, nil
}

// insertWithNumber retries on order-number collisions inside a savepoint so
// a failed insert does not poison the surrounding postgres transaction.
func (s *service) insertWithNumber(ctx context.Context, tx *gorm.DB, repo orders.Repository, order *models.Order) error {
	var lastErr error
	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		number, err := s.numbers.Next()
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate order number")
		}
		order.OrderNumber = number

		savepoint := fmt.Sprintf("order_number_%d", attempt)
		if err := tx.SavePoint(savepoint).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create savepoint")
		}
		err = repo.CreateOrder(ctx, order)
		if err == nil {
			return nil
		}
		if !db.IsUniqueViolation(err, orderNumberConstraint) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert order")
		}
		if rbErr := tx.RollbackTo(savepoint).Error; rbErr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, rbErr, "rollback savepoint")
		}
		lastErr = err
		s.logg.Warn(s.logg.WithField(ctx, "order_number", number), "order number collision, retrying")
	}
	return pkgerrors.Wrap(pkgerrors.CodeConflict, lastErr, "could not allocate a unique order number")
}

func (s *service) internal(ctx context.Context, err error, msg string) error {
	s.logg.Error(ctx, msg, err)
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}

func buildOrder(in *normalizedInput, products map[uuid.UUID]*models.Product, createdAt time.Time) *models.Order {
	order := &models.Order{
		ID:              uuid.New(),
		OwnerID:         in.OwnerID,
		ContactEmail:    in.email,
		ContactPhone:    strPtr(in.ContactPhone),
		Status:          enums.OrderStatusPending,
		Currency:        in.currency,
		PaymentMethod:   in.method,
		PromotionCode:   strPtr(in.PromotionCode),
		ShippingAddress: in.ShippingAddress,
		Notes:           strPtr(in.Notes),
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
		LineItems:       make([]models.OrderLineItem, 0, len(in.items)),
	}
	for _, item := range in.items {
		p := products[item.ProductID]
		order.LineItems = append(order.LineItems, models.OrderLineItem{
			ID:               uuid.New(),
			OrderID:          order.ID,
			ProductID:        p.ID,
			ProductName:      p.Name,
			SKU:              p.SKU,
			UnitPrice:        p.Price,
			Quantity:         item.Quantity,
			LineTotal:        pricing.Round(p.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))),
			InventoryTracked: p.TracksInventory,
			CreatedAt:        createdAt,
		})
	}
	return order
}

func actorFor(in *normalizedInput) string {
	if in.OwnerID != nil {
		return "customer:" + in.OwnerID.String()
	}
	return "guest"
}

func strPtr(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
