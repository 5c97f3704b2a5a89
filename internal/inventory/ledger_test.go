package inventory

import (
	"bytes"
	"context"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

func TestReserveIncrementsReserved(t *testing.T) {
	t.Parallel()
	conn := dbtest.Open(t)
	ledger := NewLedger(nil)
	product := dbtest.SeedProduct(t, conn, dbtest.WithStock(5, 0))

	require.NoError(t, ledger.Reserve(context.Background(), conn, product.ID, 3))

	got := dbtest.ReloadProduct(t, conn, product.ID)
	assert.Equal(t, 5, got.OnHand)
	assert.Equal(t, 3, got.Reserved)
	assert.Equal(t, 2, got.Available())
}

func TestReserveInsufficientCarriesDetails(t *testing.T) {
	t.Parallel()
	conn := dbtest.Open(t)
	ledger := NewLedger(nil)
	product := dbtest.SeedProduct(t, conn, dbtest.WithStock(5, 4))

	err := ledger.Reserve(context.Background(), conn, product.ID, 2)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock))

	shortages := ShortagesFrom(err)
	require.Len(t, shortages, 1)
	assert.Equal(t, Shortage{ProductID: product.ID, Requested: 2, Available: 1}, shortages[0])

	got := dbtest.ReloadProduct(t, conn, product.ID)
	assert.Equal(t, 4, got.Reserved, "failed reservation must not change counters")
}

func TestReserveUntrackedIsNoop(t *testing.T) {
	t.Parallel()
	conn := dbtest.Open(t)
	ledger := NewLedger(nil)
	product := dbtest.SeedProduct(t, conn, dbtest.Untracked())

	require.NoError(t, ledger.Reserve(context.Background(), conn, product.ID, 1000))

	got := dbtest.ReloadProduct(t, conn, product.ID)
	assert.Zero(t, got.Reserved)
	assert.Zero(t, got.OnHand)
}

func TestReserveUnknownProduct(t *testing.T) {
	t.Parallel()
	conn := dbtest.Open(t)
	err := NewLedger(nil).Reserve(context.Background(), conn, uuid.New(), 1)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeProductNotFound))
}

func TestLedgerRejectsInvalidArguments(t *testing.T) {
	t.Parallel()
	conn := dbtest.Open(t)
	ledger := NewLedger(nil)
	ctx := context.Background()
	id := uuid.New()

	ops := map[string]func(*gorm.DB, uuid.UUID, int) error{
		"reserve": func(tx *gorm.DB, id uuid.UUID, q int) error { return ledger.Reserve(ctx, tx, id, q) },
		"release": func(tx *gorm.DB, id uuid.UUID, q int) error { return ledger.Release(ctx, tx, id, q) },
		"convert": func(tx *gorm.DB, id uuid.UUID, q int) error { return ledger.ConvertToSale(ctx, tx, id, q) },
		"fulfill": func(tx *gorm.DB, id uuid.UUID, q int) error { return ledger.Fulfill(ctx, tx, id, q) },
		"restock": func(tx *gorm.DB, id uuid.UUID, q int) error { return ledger.Restock(ctx, tx, id, q) },
	}
	for name, op := range ops {
		assert.True(t, pkgerrors.IsCode(op(conn, id, 0), pkgerrors.CodeValidation), "%s zero qty", name)
		assert.True(t, pkgerrors.IsCode(op(conn, id, -2), pkgerrors.CodeValidation), "%s negative qty", name)
		assert.True(t, pkgerrors.IsCode(op(conn, uuid.Nil, 1), pkgerrors.CodeValidation), "%s nil id", name)
		assert.True(t, pkgerrors.IsCode(op(nil, id, 1), pkgerrors.CodeDependency), "%s nil tx", name)
	}
}

func TestReleaseRestoresAvailability(t *testing.T) {
	t.Parallel()
	conn := dbtest.Open(t)
	ledger := NewLedger(nil)
	product := dbtest.SeedProduct(t, conn, dbtest.WithStock(10, 3))

	require.NoError(t, ledger.Release(context.Background(), conn, product.ID, 3))

	got := dbtest.ReloadProduct(t, conn, product.ID)
	assert.Zero(t, got.Reserved)
	assert.Equal(t, 10, got.Available())
}

func TestReleaseOverReleaseClampsAndWarns(t *testing.T) {
	t.Parallel()
	conn := dbtest.Open(t)
	buf := &bytes.Buffer{}
	ledger := NewLedger(logger.New(logger.Options{ServiceName: "test", Output: buf}))
	product := dbtest.SeedProduct(t, conn, dbtest.WithStock(10, 2))

	require.NoError(t, ledger.Release(context.Background(), conn, product.ID, 5))

	got := dbtest.ReloadProduct(t, conn, product.ID)
	assert.Zero(t, got.Reserved)
	assert.Contains(t, buf.String(), "over-release")
	assert.Contains(t, buf.String(), product.ID.String())
}

func TestConvertToSaleAndFulfill(t *testing.T) {
	t.Parallel()
	conn := dbtest.Open(t)
	ledger := NewLedger(nil)
	ctx := context.Background()
	product := dbtest.SeedProduct(t, conn, dbtest.WithStock(10, 4))

	require.NoError(t, ledger.ConvertToSale(ctx, conn, product.ID, 3))
	got := dbtest.ReloadProduct(t, conn, product.ID)
	assert.Equal(t, 1, got.Reserved)
	assert.Equal(t, 3, got.SoldCount)
	assert.Equal(t, 10, got.OnHand, "conversion leaves physical stock alone")

	require.NoError(t, ledger.Fulfill(ctx, conn, product.ID, 3))
	got = dbtest.ReloadProduct(t, conn, product.ID)
	assert.Equal(t, 7, got.OnHand)
	assert.Equal(t, 6, got.Available())
}

func TestConvertToSaleWithoutReservationFails(t *testing.T) {
	t.Parallel()
	conn := dbtest.Open(t)
	ledger := NewLedger(nil)
	product := dbtest.SeedProduct(t, conn, dbtest.WithStock(10, 1))

	err := ledger.ConvertToSale(context.Background(), conn, product.ID, 2)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	got := dbtest.ReloadProduct(t, conn, product.ID)
	assert.Equal(t, 1, got.Reserved)
	assert.Zero(t, got.SoldCount)
}

func TestFulfillNeverBreaksReservedInvariant(t *testing.T) {
	t.Parallel()
	conn := dbtest.Open(t)
	ledger := NewLedger(nil)
	product := dbtest.SeedProduct(t, conn, dbtest.WithStock(5, 4))

	err := ledger.Fulfill(context.Background(), conn, product.ID, 2)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	assert.Equal(t, 5, dbtest.ReloadProduct(t, conn, product.ID).OnHand)
}

func TestRestock(t *testing.T) {
	t.Parallel()
	conn := dbtest.Open(t)
	ledger := NewLedger(nil)
	product := dbtest.SeedProduct(t, conn, dbtest.WithStock(2, 0))

	require.NoError(t, ledger.Restock(context.Background(), conn, product.ID, 4))
	assert.Equal(t, 6, dbtest.ReloadProduct(t, conn, product.ID).OnHand)

	err := ledger.Restock(context.Background(), conn, uuid.New(), 1)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeProductNotFound))
}

func TestReserveAllCollectsEveryShortage(t *testing.T) {
	t.Parallel()
	conn := dbtest.Open(t)
	ledger := NewLedger(nil)
	client := db.FromConn(conn)
	ok := dbtest.SeedProduct(t, conn, dbtest.WithStock(5, 0))
	shortA := dbtest.SeedProduct(t, conn, dbtest.WithStock(1, 0))
	shortB := dbtest.SeedProduct(t, conn, dbtest.WithStock(2, 2))

	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		_, err := ledger.ReserveAll(context.Background(), tx, []Line{
			{ProductID: ok.ID, Quantity: 2},
			{ProductID: shortA.ID, Quantity: 1},
			{ProductID: shortA.ID, Quantity: 1},
			{ProductID: shortB.ID, Quantity: 1},
		})
		return err
	})
	require.Error(t, err)

	shortages := ShortagesFrom(err)
	require.Len(t, shortages, 2)
	byID := map[uuid.UUID]Shortage{}
	for _, s := range shortages {
		byID[s.ProductID] = s
	}
	assert.Equal(t, 2, byID[shortA.ID].Requested, "duplicate lines are merged")
	assert.Equal(t, 1, byID[shortA.ID].Available)
	assert.Equal(t, 0, byID[shortB.ID].Available)

	assert.Zero(t, dbtest.ReloadProduct(t, conn, ok.ID).Reserved, "rollback undoes successful lines")
	assert.Zero(t, dbtest.ReloadProduct(t, conn, shortA.ID).Reserved)
}

func TestReserveConcurrentCallersNeverOversell(t *testing.T) {
	t.Parallel()
	conn := dbtest.Open(t)
	ledger := NewLedger(nil)
	client := db.FromConn(conn)
	product := dbtest.SeedProduct(t, conn, dbtest.WithStock(5, 0))

	var succeeded, rejected atomic.Int32
	var g errgroup.Group
	for i := 0; i < 10; i++ {
		g.Go(func() error {
			err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
				return ledger.Reserve(context.Background(), tx, product.ID, 1)
			})
			switch {
			case err == nil:
				succeeded.Add(1)
			case pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock):
				rejected.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.EqualValues(t, 5, succeeded.Load())
	assert.EqualValues(t, 5, rejected.Load())
	got := dbtest.ReloadProduct(t, conn, product.ID)
	assert.Equal(t, 5, got.Reserved)
	assert.LessOrEqual(t, got.Reserved, got.OnHand)
}

func TestAvailability(t *testing.T) {
	t.Parallel()
	conn := dbtest.Open(t)
	product := dbtest.SeedProduct(t, conn, dbtest.WithStock(8, 3))

	stock, err := NewLedger(nil).Availability(context.Background(), conn, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, stock.Available())
	assert.True(t, stock.TracksInventory)
}

func TestReserveAllReportsOnlyTrackedProducts(t *testing.T) {
	t.Parallel()
	conn := dbtest.Open(t)
	ledger := NewLedger(nil)
	client := db.FromConn(conn)
	tracked := dbtest.SeedProduct(t, conn, dbtest.WithStock(5, 0))
	untracked := dbtest.SeedProduct(t, conn, dbtest.Untracked())

	var reserved Reservation
	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		var err error
		reserved, err = ledger.ReserveAll(context.Background(), tx, []Line{
			{ProductID: tracked.ID, Quantity: 2},
			{ProductID: untracked.ID, Quantity: 4},
		})
		return err
	})
	require.NoError(t, err)

	assert.True(t, reserved.Tracked(tracked.ID))
	assert.False(t, reserved.Tracked(untracked.ID))
	assert.Equal(t, 2, dbtest.ReloadProduct(t, conn, tracked.ID).Reserved)
	assert.Zero(t, dbtest.ReloadProduct(t, conn, untracked.ID).Reserved)
}
