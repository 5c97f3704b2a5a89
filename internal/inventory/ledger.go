// Package inventory owns the product stock counters. Every mutation of
// on_hand, reserved or sold_count goes through a single guarded UPDATE issued
// on the caller's transaction, so the check and the write cannot interleave
// with a concurrent request.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const releaseAttempts = 3

// Line is one product/quantity pair to reserve.
type Line struct {
	ProductID uuid.UUID
	Quantity  int
}

// Shortage names a product that could not be reserved.
type Shortage struct {
	ProductID uuid.UUID `json:"product_id"`
	Requested int       `json:"requested"`
	Available int       `json:"available"`
}

// ShortageDetails is attached to INSUFFICIENT_STOCK errors.
type ShortageDetails struct {
	Items []Shortage `json:"items"`
}

// Stock is a read-only view of a product's counters.
type Stock struct {
	ProductID       uuid.UUID
	TracksInventory bool
	OnHand          int
	Reserved        int
	SoldCount       int
}

func (s Stock) Available() int {
	return s.OnHand - s.Reserved
}

// Ledger applies stock mutations. It holds no connection of its own; every
// call runs on the transaction handed in by the caller.
type Ledger struct {
	logg *logger.Logger
}

func NewLedger(logg *logger.Logger) *Ledger {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Ledger{logg: logg}
}

// InsufficientStock builds the typed error callers surface to clients.
func InsufficientStock(items ...Shortage) error {
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
		WithDetails(ShortageDetails{Items: items})
}

// ShortagesFrom extracts shortage details from an INSUFFICIENT_STOCK error.
func ShortagesFrom(err error) []Shortage {
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		return nil
	}
	details, ok := typed.Details().(ShortageDetails)
	if !ok {
		return nil
	}
	return details.Items
}

// Reserve claims qty units. Untracked products succeed without touching any
// counter.
func (l *Ledger) Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	_, err := l.reserve(ctx, tx, productID, qty)
	return err
}

// reserve reports whether the reserved counter moved. false with a nil error
// means the product does not track inventory as of this transaction.
func (l *Ledger) reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) (bool, error) {
	if err := checkArgs(tx, productID, qty); err != nil {
		return false, err
	}

	res := tx.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND tracks_inventory = ? AND on_hand - reserved >= ?", productID, true, qty).
		Update("reserved", gorm.Expr("reserved + ?", qty))
	if res.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "reserve stock")
	}
	if res.RowsAffected == 1 {
		return true, nil
	}

	stock, err := l.stock(ctx, tx, productID)
	if err != nil {
		return false, err
	}
	if !stock.TracksInventory {
		return false, nil
	}
	return false, InsufficientStock(Shortage{
		ProductID: productID,
		Requested: qty,
		Available: max(stock.Available(), 0),
	})
}

// Reservation is the set of products whose reserved counter a ReserveAll call
// moved. Line items must record tracking from it, not from an earlier read,
// so later releases match what was actually claimed.
type Reservation map[uuid.UUID]bool

func (r Reservation) Tracked(productID uuid.UUID) bool {
	return r[productID]
}

// ReserveAll reserves every line in product-id order so concurrent orders lock
// rows in the same sequence. Duplicate product ids are merged. All shortages
// are collected before failing; the caller must roll back on error.
func (l *Ledger) ReserveAll(ctx context.Context, tx *gorm.DB, lines []Line) (Reservation, error) {
	reserved := make(Reservation, len(lines))
	if len(lines) == 0 {
		return reserved, nil
	}

	var shortages []Shortage
	for _, line := range mergeLines(lines) {
		ok, err := l.reserve(ctx, tx, line.ProductID, line.Quantity)
		if err == nil {
			if ok {
				reserved[line.ProductID] = true
			}
			continue
		}
		if items := ShortagesFrom(err); items != nil {
			shortages = append(shortages, items...)
			continue
		}
		return nil, err
	}
	if len(shortages) > 0 {
		return nil, InsufficientStock(shortages...)
	}
	return reserved, nil
}

// Release returns reserved units to availability. Releasing more than is
// reserved clamps at zero and logs a warning instead of failing.
func (l *Ledger) Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if err := checkArgs(tx, productID, qty); err != nil {
		return err
	}

	for attempt := 0; attempt < releaseAttempts; attempt++ {
		res := tx.WithContext(ctx).
			Model(&models.Product{}).
			Where("id = ? AND reserved >= ?", productID, qty).
			Update("reserved", gorm.Expr("reserved - ?", qty))
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "release stock")
		}
		if res.RowsAffected == 1 {
			return nil
		}

		stock, err := l.stock(ctx, tx, productID)
		if err != nil {
			return err
		}

		warnCtx := l.logg.WithFields(ctx, map[string]any{
			"product_id": productID.String(),
			"requested":  qty,
			"reserved":   stock.Reserved,
		})
		l.logg.Warn(warnCtx, "inventory over-release clamped to zero")

		// reserved may have grown since the read; only clamp if it is still short.
		clamp := tx.WithContext(ctx).
			Model(&models.Product{}).
			Where("id = ? AND reserved < ?", productID, qty).
			Update("reserved", 0)
		if clamp.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, clamp.Error, "clamp reserved stock")
		}
		if clamp.RowsAffected == 1 {
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeConflict, "release did not settle").
		WithDetails(map[string]any{"product_id": productID, "quantity": qty})
}

// ConvertToSale moves qty from reserved into sold_count. on_hand is left to
// Fulfill so each counter has exactly one writer operation.
func (l *Ledger) ConvertToSale(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if err := checkArgs(tx, productID, qty); err != nil {
		return err
	}

	res := tx.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND reserved >= ?", productID, qty).
		Updates(map[string]any{
			"reserved":   gorm.Expr("reserved - ?", qty),
			"sold_count": gorm.Expr("sold_count + ?", qty),
		})
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "convert reservation to sale")
	}
	if res.RowsAffected == 1 {
		return nil
	}
	return l.counterConflict(ctx, tx, productID, qty, "reservation smaller than sale quantity")
}

// Fulfill removes qty units of physical stock once goods have left. It must
// run after ConvertToSale so on_hand never drops below the remaining reserved.
func (l *Ledger) Fulfill(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if err := checkArgs(tx, productID, qty); err != nil {
		return err
	}

	res := tx.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND on_hand - ? >= reserved", productID, qty).
		Update("on_hand", gorm.Expr("on_hand - ?", qty))
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "fulfill stock")
	}
	if res.RowsAffected == 1 {
		return nil
	}
	return l.counterConflict(ctx, tx, productID, qty, "on hand stock below fulfilled quantity")
}

// Restock adds qty units of physical stock, e.g. for returned goods.
func (l *Ledger) Restock(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if err := checkArgs(tx, productID, qty); err != nil {
		return err
	}

	res := tx.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Update("on_hand", gorm.Expr("on_hand + ?", qty))
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "restock")
	}
	if res.RowsAffected == 0 {
		return productNotFound(productID)
	}
	return nil
}

// Availability reads the counters for productID on db, which may be a
// transaction or the plain connection.
func (l *Ledger) Availability(ctx context.Context, db *gorm.DB, productID uuid.UUID) (Stock, error) {
	if db == nil {
		return Stock{}, pkgerrors.New(pkgerrors.CodeDependency, "database handle required")
	}
	return l.stock(ctx, db, productID)
}

func (l *Ledger) stock(ctx context.Context, db *gorm.DB, productID uuid.UUID) (Stock, error) {
	var product models.Product
	err := db.WithContext(ctx).
		Select("id", "tracks_inventory", "on_hand", "reserved", "sold_count").
		Where("id = ?", productID).
		First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Stock{}, productNotFound(productID)
	}
	if err != nil {
		return Stock{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock")
	}
	return Stock{
		ProductID:       product.ID,
		TracksInventory: product.TracksInventory,
		OnHand:          product.OnHand,
		Reserved:        product.Reserved,
		SoldCount:       product.SoldCount,
	}, nil
}

func (l *Ledger) counterConflict(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int, msg string) error {
	stock, err := l.stock(ctx, tx, productID)
	if err != nil {
		return err
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, msg).WithDetails(map[string]any{
		"product_id": productID,
		"quantity":   qty,
		"on_hand":    stock.OnHand,
		"reserved":   stock.Reserved,
	})
}

func checkArgs(tx *gorm.DB, productID uuid.UUID, qty int) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required")
	}
	if productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("quantity must be positive, got %d", qty))
	}
	return nil
}

func productNotFound(productID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeProductNotFound, "product not found").
		WithDetails(map[string]any{"product_id": productID})
}

func mergeLines(lines []Line) []Line {
	totals := make(map[uuid.UUID]int, len(lines))
	order := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		if _, ok := totals[line.ProductID]; !ok {
			order = append(order, line.ProductID)
		}
		totals[line.ProductID] += line.Quantity
	}
	sort.Slice(order, func(i, j int) bool { return order[i].String() < order[j].String() })

	merged := make([]Line, 0, len(order))
	for _, id := range order {
		merged = append(merged, Line{ProductID: id, Quantity: totals[id]})
	}
	return merged
}
