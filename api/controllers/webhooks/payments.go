package webhooks

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	internalorders "github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// SecretHeader carries the shared secret configured with the payment provider.
const SecretHeader = "X-Webhook-Secret"

type paymentConfirmer interface {
	ConfirmPayment(ctx context.Context, event internalorders.PaymentEvent) (*models.Order, error)
}

type paymentEventRequest struct {
	OrderNumber string `json:"order_number" validate:"required,max=64"`
	Reference   string `json:"reference" validate:"required,max=128"`
}

// PaymentWebhook confirms pending orders when the payment provider reports a
// successful charge. Redelivery of an already applied event is answered with
// the current order.
func PaymentWebhook(svc paymentConfirmer, secret string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		if secret == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "payment webhook not configured"))
			return
		}
		provided := strings.TrimSpace(r.Header.Get(SecretHeader))
		if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid webhook secret"))
			return
		}

		var payload paymentEventRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithFields(ctx, map[string]any{
				"order_number":      payload.OrderNumber,
				"payment_reference": payload.Reference,
			})
		}
		order, err := svc.ConfirmPayment(ctx, internalorders.PaymentEvent{
			OrderNumber: strings.TrimSpace(payload.OrderNumber),
			Reference:   strings.TrimSpace(payload.Reference),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if logg != nil {
			logg.Info(ctx, "payment confirmed")
		}
		responses.WriteSuccess(w, internalorders.NewOrderDetail(order))
	}
}
