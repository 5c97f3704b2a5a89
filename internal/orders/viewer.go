package orders

import (
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// Viewer is the caller an order is being read or changed on behalf of.
// Guests have no UserID and prove access with the order's contact email.
type Viewer struct {
	UserID *uuid.UUID
	Role   enums.Role
	Email  string
}

// SystemViewer is used by background jobs and inbound webhooks.
func SystemViewer() Viewer {
	return Viewer{Role: enums.RoleSystem}
}

func (v Viewer) Authenticated() bool {
	return v.UserID != nil && *v.UserID != uuid.Nil
}

// Actor renders the viewer for the status audit trail.
func (v Viewer) Actor() string {
	switch {
	case v.Role == enums.RoleSystem:
		return "system"
	case v.Authenticated():
		role := v.Role
		if role == "" {
			role = enums.RoleCustomer
		}
		return role.String() + ":" + v.UserID.String()
	default:
		return "guest"
	}
}

// authorize applies the ownership rules: staff see everything, owned orders
// need the owner, guest orders need the contact email.
func authorize(order *models.Order, viewer Viewer) error {
	if viewer.Role.IsStaff() {
		return nil
	}
	if order.OwnerID != nil {
		if !viewer.Authenticated() {
			return pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in to view this order")
		}
		if *viewer.UserID != *order.OwnerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another customer")
		}
		return nil
	}

	email := strings.TrimSpace(viewer.Email)
	if email == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "contact email required for guest orders")
	}
	if !strings.EqualFold(email, strings.TrimSpace(order.ContactEmail)) {
		return pkgerrors.New(pkgerrors.CodeForbidden, "contact email does not match order")
	}
	return nil
}
