package orders

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	internalorders "github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// viewerFromRequest builds the caller identity from the auth middleware.
// guestEmail is only consulted for anonymous callers.
func viewerFromRequest(r *http.Request, guestEmail string) internalorders.Viewer {
	ctx := r.Context()
	viewer := internalorders.Viewer{
		Role:  enums.Role(middleware.RoleFromContext(ctx)),
		Email: strings.TrimSpace(middleware.EmailFromContext(ctx)),
	}
	if raw := middleware.UserIDFromContext(ctx); raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			viewer.UserID = &id
		}
	}
	if !viewer.Authenticated() {
		viewer.Email = strings.TrimSpace(guestEmail)
	}
	return viewer
}

func orderIDParam(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "orderId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id")
	}
	return id, nil
}
