package orders

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

func (s *service) GetByID(ctx context.Context, id uuid.UUID, viewer Viewer) (*models.Order, error) {
	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(order, viewer); err != nil {
		return nil, err
	}
	return order, nil
}

// GetByNumber looks an order up by its public number. email, when given,
// overrides the viewer's address for guest verification.
func (s *service) GetByNumber(ctx context.Context, number, email string, viewer Viewer) (*models.Order, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order number is required")
	}
	order, err := s.repo.FindByNumber(ctx, number)
	if err != nil {
		return nil, s.mapLookupError(err)
	}
	if strings.TrimSpace(email) != "" {
		viewer.Email = email
	}
	if err := authorize(order, viewer); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) ListByOwner(ctx context.Context, ownerID uuid.UUID, params pagination.Params, viewer Viewer) (pagination.Page[models.Order], error) {
	if ownerID == uuid.Nil {
		return pagination.Page[models.Order]{}, pkgerrors.New(pkgerrors.CodeValidation, "owner id is required")
	}
	if !viewer.Role.IsStaff() {
		if !viewer.Authenticated() {
			return pagination.Page[models.Order]{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in to list orders")
		}
		if *viewer.UserID != ownerID {
			return pagination.Page[models.Order]{}, pkgerrors.New(pkgerrors.CodeForbidden, "cannot list another customer's orders")
		}
	}
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return pagination.Page[models.Order]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	page, err := s.repo.ListByOwner(ctx, ownerID, params)
	if err != nil {
		return pagination.Page[models.Order]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	if page.Items == nil {
		page.Items = []models.Order{}
	}
	return page, nil
}

func (s *service) ListStatusEvents(ctx context.Context, orderID uuid.UUID, viewer Viewer) ([]models.OrderStatusEvent, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := authorize(order, viewer); err != nil {
		return nil, err
	}
	events, err := s.repo.ListStatusEvents(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list status events")
	}
	return events, nil
}
