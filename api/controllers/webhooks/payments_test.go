package webhooks

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internalorders "github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

type stubConfirmer struct {
	events []internalorders.PaymentEvent
	err    error
}

func (s *stubConfirmer) ConfirmPayment(_ context.Context, event internalorders.PaymentEvent) (*models.Order, error) {
	s.events = append(s.events, event)
	if s.err != nil {
		return nil, s.err
	}
	return &models.Order{ID: uuid.New(), OrderNumber: event.OrderNumber, Status: enums.OrderStatusConfirmed}, nil
}

func post(handler http.Handler, secret, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payments", strings.NewReader(body))
	if secret != "" {
		req.Header.Set(SecretHeader, secret)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestPaymentWebhookConfirmsOrder(t *testing.T) {
	svc := &stubConfirmer{}
	rec := post(PaymentWebhook(svc, "s3cret", nil), "s3cret", `{"order_number":"SF-1","reference":" pi_123 "}`)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, svc.events, 1)
	assert.Equal(t, "pi_123", svc.events[0].Reference)

	var body struct {
		Data struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "confirmed", body.Data.Status)
}

func TestPaymentWebhookRejectsBadSecret(t *testing.T) {
	svc := &stubConfirmer{}
	handler := PaymentWebhook(svc, "s3cret", nil)

	assert.Equal(t, http.StatusUnauthorized, post(handler, "", `{"order_number":"SF-1","reference":"x"}`).Code)
	assert.Equal(t, http.StatusUnauthorized, post(handler, "wrong", `{"order_number":"SF-1","reference":"x"}`).Code)
	assert.Empty(t, svc.events)
}

func TestPaymentWebhookUnconfigured(t *testing.T) {
	rec := post(PaymentWebhook(&stubConfirmer{}, "", nil), "anything", `{}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestPaymentWebhookValidatesBody(t *testing.T) {
	rec := post(PaymentWebhook(&stubConfirmer{}, "s3cret", nil), "s3cret", `{"order_number":"SF-1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPaymentWebhookMapsTransitionErrors(t *testing.T) {
	svc := &stubConfirmer{err: pkgerrors.New(pkgerrors.CodeInvalidStatusTransition, "order is cancelled")}
	rec := post(PaymentWebhook(svc, "s3cret", nil), "s3cret", `{"order_number":"SF-1","reference":"pi_1"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var body types.ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, string(pkgerrors.CodeInvalidStatusTransition), body.Error.Code)
}
