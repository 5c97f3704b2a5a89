package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// Repository persists orders, their line items and the status audit trail.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	// CreateOrder inserts the order together with its LineItems.
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateStatusEvent(ctx context.Context, event *models.OrderStatusEvent) error

	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByNumber(ctx context.Context, number string) (*models.Order, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, params pagination.Params) (pagination.Page[models.Order], error)
	ListStatusEvents(ctx context.Context, orderID uuid.UUID) ([]models.OrderStatusEvent, error)

	// UpdateStatus moves the order from -> to only if it is still in from.
	// It reports false when another writer changed the status first.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, fields map[string]any) (bool, error)

	// FindPendingBefore returns ids of pending orders created before cutoff,
	// oldest first.
	FindPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)
}
