package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

func TestGetByNumberGuestEmailCheck(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	product := dbtest.SeedProduct(t, h.conn)
	order := seedOrder(t, h.conn, enums.OrderStatusPending, []lineSpec{{product, 1}})

	got, err := h.svc.GetByNumber(ctx, order.OrderNumber, "  guest@EXAMPLE.com ", Viewer{})
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)
	assert.Len(t, got.LineItems, 1)

	_, err = h.svc.GetByNumber(ctx, order.OrderNumber, "someone@else.com", Viewer{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	_, err = h.svc.GetByNumber(ctx, order.OrderNumber, "", Viewer{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	_, err = h.svc.GetByNumber(ctx, "SF-MISSING", "guest@example.com", Viewer{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeOrderNotFound))

	admin := uuid.New()
	_, err = h.svc.GetByNumber(ctx, order.OrderNumber, "", Viewer{UserID: &admin, Role: enums.RoleAdmin})
	require.NoError(t, err)
}

func TestGetByIDOwnedOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := uuid.New()
	other := uuid.New()
	product := dbtest.SeedProduct(t, h.conn)
	order := seedOrder(t, h.conn, enums.OrderStatusPending, []lineSpec{{product, 1}}, ownedBy(owner))

	_, err := h.svc.GetByID(ctx, order.ID, Viewer{UserID: &owner, Role: enums.RoleCustomer})
	require.NoError(t, err)

	_, err = h.svc.GetByID(ctx, order.ID, Viewer{UserID: &other, Role: enums.RoleCustomer})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	// a matching email is not enough once the order has an owner
	_, err = h.svc.GetByID(ctx, order.ID, Viewer{Email: "guest@example.com"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	_, err = h.svc.GetByID(ctx, uuid.New(), Viewer{UserID: &owner})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeOrderNotFound))
}

func TestListByOwnerNewestFirstWithCursor(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := uuid.New()
	product := dbtest.SeedProduct(t, h.conn)
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		o := seedOrder(t, h.conn, enums.OrderStatusPending, []lineSpec{{product, i + 1}}, ownedBy(owner), createdAt(base.Add(time.Duration(i)*time.Hour)))
		ids = append(ids, o.ID)
	}
	seedOrder(t, h.conn, enums.OrderStatusPending, []lineSpec{{product, 1}}, ownedBy(uuid.New()))

	viewer := Viewer{UserID: &owner, Role: enums.RoleCustomer}
	first, err := h.svc.ListByOwner(ctx, owner, pagination.Params{Limit: 2}, viewer)
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	assert.Equal(t, ids[4], first.Items[0].ID)
	assert.Equal(t, ids[3], first.Items[1].ID)
	require.NotEmpty(t, first.NextCursor)

	second, err := h.svc.ListByOwner(ctx, owner, pagination.Params{Limit: 2, Cursor: first.NextCursor}, viewer)
	require.NoError(t, err)
	require.Len(t, second.Items, 2)
	assert.Equal(t, ids[2], second.Items[0].ID)
	assert.Equal(t, ids[1], second.Items[1].ID)

	third, err := h.svc.ListByOwner(ctx, owner, pagination.Params{Limit: 2, Cursor: second.NextCursor}, viewer)
	require.NoError(t, err)
	require.Len(t, third.Items, 1)
	assert.Equal(t, ids[0], third.Items[0].ID)
	assert.Empty(t, third.NextCursor)

	summary := NewOrderList(first)
	assert.Equal(t, 5, summary.Orders[0].TotalItems)
}

func TestListByOwnerAccess(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := uuid.New()
	other := uuid.New()

	_, err := h.svc.ListByOwner(ctx, owner, pagination.Params{}, Viewer{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	_, err = h.svc.ListByOwner(ctx, owner, pagination.Params{}, Viewer{UserID: &other})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	_, err = h.svc.ListByOwner(ctx, owner, pagination.Params{Cursor: "%%%"}, Viewer{UserID: &owner})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	page, err := h.svc.ListByOwner(ctx, owner, pagination.Params{}, Viewer{Role: enums.RoleAdmin})
	require.NoError(t, err)
	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Items)
}

func TestListStatusEventsRequiresAccess(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	product := dbtest.SeedProduct(t, h.conn, dbtest.WithStock(5, 1))
	order := seedOrder(t, h.conn, enums.OrderStatusPending, []lineSpec{{product, 1}})

	_, err := h.svc.Transition(ctx, TransitionInput{OrderID: order.ID, Target: enums.OrderStatusConfirmed, Note: "paid"})
	require.NoError(t, err)

	events, err := h.svc.ListStatusEvents(ctx, order.ID, Viewer{Email: "guest@example.com"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.NotNil(t, events[0].Note)
	assert.Equal(t, "paid", *events[0].Note)

	_, err = h.svc.ListStatusEvents(ctx, order.ID, Viewer{Email: "x@y.z"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}

func TestFindPendingBefore(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	product := dbtest.SeedProduct(t, h.conn)
	cutoff := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)

	old := seedOrder(t, h.conn, enums.OrderStatusPending, []lineSpec{{product, 1}}, createdAt(cutoff.Add(-48*time.Hour)))
	older := seedOrder(t, h.conn, enums.OrderStatusPending, []lineSpec{{product, 1}}, createdAt(cutoff.Add(-72*time.Hour)))
	seedOrder(t, h.conn, enums.OrderStatusConfirmed, []lineSpec{{product, 1}}, createdAt(cutoff.Add(-72*time.Hour)))
	seedOrder(t, h.conn, enums.OrderStatusPending, []lineSpec{{product, 1}}, createdAt(cutoff.Add(time.Hour)))

	ids, err := h.repo.FindPendingBefore(ctx, cutoff, 10)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{older.ID, old.ID}, ids)

	ids, err = h.repo.FindPendingBefore(ctx, cutoff, 1)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{older.ID}, ids)
}

func TestOrderDetailExposesNextStatuses(t *testing.T) {
	h := newHarness(t)
	product := dbtest.SeedProduct(t, h.conn)
	order := seedOrder(t, h.conn, enums.OrderStatusShipped, []lineSpec{{product, 2}})

	detail := NewOrderDetail(order)
	assert.Equal(t, []enums.OrderStatus{enums.OrderStatusDelivered}, detail.NextStatuses)
	require.Len(t, detail.LineItems, 1)
	assert.Equal(t, "20", detail.LineItems[0].LineTotal.String())
}

func TestListStatusEventsOrderedBySequenceUnderFixedClock(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	product := dbtest.SeedProduct(t, h.conn, dbtest.WithStock(5, 1))
	order := seedOrder(t, h.conn, enums.OrderStatusPending, []lineSpec{{product, 1}})

	steps := []enums.OrderStatus{
		enums.OrderStatusConfirmed,
		enums.OrderStatusProcessing,
		enums.OrderStatusShipped,
		enums.OrderStatusDelivered,
	}
	for _, status := range steps {
		_, err := h.svc.Transition(ctx, TransitionInput{OrderID: order.ID, Target: status, Actor: "admin:test"})
		require.NoError(t, err)
	}

	events, err := h.repo.ListStatusEvents(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, events, len(steps))
	for i, e := range events {
		assert.Equal(t, i+1, e.Sequence)
		assert.Equal(t, steps[i], e.Status)
		assert.True(t, e.CreatedAt.Equal(h.now), "clock is fixed so timestamps tie")
	}
}
