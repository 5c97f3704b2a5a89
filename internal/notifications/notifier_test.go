package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

type stubPublisher struct {
	data  [][]byte
	attrs []map[string]string
	err   error
}

func (s *stubPublisher) Publish(_ context.Context, data []byte, attrs map[string]string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.data = append(s.data, data)
	s.attrs = append(s.attrs, attrs)
	return "msg-1", nil
}

type recordingNotifier struct {
	created int
	changed int
	err     error
}

func (r *recordingNotifier) NotifyOrderCreated(context.Context, models.Order) error {
	r.created++
	return r.err
}

func (r *recordingNotifier) NotifyStatusChanged(context.Context, models.Order, enums.OrderStatus, enums.OrderStatus) error {
	r.changed++
	return r.err
}

func sampleOrder() models.Order {
	return models.Order{
		ID:           uuid.New(),
		OrderNumber:  "SF-01JABCDEFGHJKMNPQRSTVWXYZ0",
		ContactEmail: "buyer@example.com",
		Status:       enums.OrderStatusPending,
		Currency:     enums.CurrencyUSD,
		Total:        decimal.RequireFromString("25.50"),
		LineItems:    []models.OrderLineItem{{}, {}},
	}
}

func TestPubSubNotifierPublishesEnvelope(t *testing.T) {
	pub := &stubPublisher{}
	n, err := NewPubSubNotifier(pub)
	require.NoError(t, err)
	fixed := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	n.now = func() time.Time { return fixed }

	order := sampleOrder()
	require.NoError(t, n.NotifyOrderCreated(context.Background(), order))
	require.Len(t, pub.data, 1)

	assert.Equal(t, EventOrderCreated, pub.attrs[0]["event_type"])
	assert.Equal(t, order.ID.String(), pub.attrs[0]["order_id"])

	var env struct {
		EventType   string    `json:"event_type"`
		OccurredAt  time.Time `json:"occurred_at"`
		OrderNumber string    `json:"order_number"`
		Data        struct {
			Total     string `json:"total"`
			LineCount int    `json:"line_count"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(pub.data[0], &env))
	assert.Equal(t, EventOrderCreated, env.EventType)
	assert.True(t, fixed.Equal(env.OccurredAt))
	assert.Equal(t, order.OrderNumber, env.OrderNumber)
	assert.Equal(t, "25.50", env.Data.Total)
	assert.Equal(t, 2, env.Data.LineCount)
}

func TestPubSubNotifierStatusChanged(t *testing.T) {
	pub := &stubPublisher{}
	n, err := NewPubSubNotifier(pub)
	require.NoError(t, err)

	require.NoError(t, n.NotifyStatusChanged(context.Background(), sampleOrder(), enums.OrderStatusPending, enums.OrderStatusCancelled))
	require.Len(t, pub.data, 1)
	assert.Contains(t, string(pub.data[0]), `"to_status":"cancelled"`)
	assert.Equal(t, EventOrderStatusChanged, pub.attrs[0]["event_type"])
}

func TestPubSubNotifierWrapsPublishError(t *testing.T) {
	boom := errors.New("unavailable")
	n, err := NewPubSubNotifier(&stubPublisher{err: boom})
	require.NoError(t, err)

	err = n.NotifyOrderCreated(context.Background(), sampleOrder())
	require.ErrorIs(t, err, boom)
}

func TestNewPubSubNotifierRequiresPublisher(t *testing.T) {
	_, err := NewPubSubNotifier(nil)
	require.Error(t, err)
}

func TestMultiFansOutAndCombinesErrors(t *testing.T) {
	first := &recordingNotifier{err: errors.New("first")}
	second := &recordingNotifier{}
	third := &recordingNotifier{err: errors.New("third")}
	m := Multi{first, nil, second, third}

	err := m.NotifyOrderCreated(context.Background(), sampleOrder())
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2)
	assert.Equal(t, 1, first.created)
	assert.Equal(t, 1, second.created)
	assert.Equal(t, 1, third.created)

	require.Error(t, m.NotifyStatusChanged(context.Background(), sampleOrder(), enums.OrderStatusPending, enums.OrderStatusConfirmed))
	assert.Equal(t, 1, second.changed)
}

func TestLogNotifierNeverFails(t *testing.T) {
	n := NewLogNotifier(nil)
	require.NoError(t, n.NotifyOrderCreated(context.Background(), sampleOrder()))
	require.NoError(t, n.NotifyStatusChanged(context.Background(), sampleOrder(), enums.OrderStatusShipped, enums.OrderStatusDelivered))
}
