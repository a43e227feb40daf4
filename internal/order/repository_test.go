package order_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/grosir-api/internal/order"
)

func sampleOrder(email string, created time.Time) order.Order {
	id := uuid.NewString()
	return order.Order{
		ID:       id,
		Number:   order.NewNumber(id, created),
		Status:   order.StatusPendingPayment,
		Customer: order.Customer{Name: "Buyer", Email: email},
		Lines: []order.Line{{
			ProductID: "p1", Slug: "tee", Title: "Tee", Quantity: 24,
			UnitPrice: decimal.RequireFromString("8.50"), LineTotal: decimal.RequireFromString("204.00"),
			Tags: []string{"cotton"},
		}},
		Subtotal:  decimal.RequireFromString("204.00"),
		Total:     decimal.RequireFromString("213.99"),
		Currency:  "usd",
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func exerciseRepository(t *testing.T, repo order.Repository) {
	ctx := context.Background()
	base := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	first := sampleOrder("a@example.com", base)
	second := sampleOrder("B@example.com", base.Add(time.Hour))
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))
	require.ErrorIs(t, repo.Create(ctx, first), order.ErrDuplicate)

	got, err := repo.Get(ctx, first.ID)
	require.NoError(t, err)
	require.Equal(t, first.Number, got.Number)
	require.True(t, got.Total.Equal(first.Total))

	_, err = repo.Get(ctx, "missing")
	require.ErrorIs(t, err, order.ErrNotFound)

	list, total, err := repo.List(ctx, order.Filter{Page: 1, Limit: 1})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Len(t, list, 1)
	require.Equal(t, second.ID, list[0].ID, "newest first")

	list, total, err = repo.List(ctx, order.Filter{Email: "b@example.com"})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, second.ID, list[0].ID)

	paidAt := base.Add(2 * time.Hour)
	updated, err := repo.UpdateStatus(ctx, first.ID, order.StatusPaid, paidAt)
	require.NoError(t, err)
	require.Equal(t, order.StatusPaid, updated.Status)
	require.NotNil(t, updated.PaidAt)

	_, err = repo.UpdateStatus(ctx, first.ID, order.StatusPendingPayment, paidAt)
	require.ErrorIs(t, err, order.ErrInvalidTransition)

	list, total, err = repo.List(ctx, order.Filter{Status: order.StatusPaid})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, first.ID, list[0].ID)

	tracked, err := repo.SetTracking(ctx, first.ID, order.Tracking{TrackingNumber: "1Z999", LabelURL: "https://labels/1"}, paidAt)
	require.NoError(t, err)
	require.Equal(t, "1Z999", tracked.Tracking.TrackingNumber)

	tracked, err = repo.SetTracking(ctx, first.ID, order.Tracking{Status: "TRANSIT"}, paidAt)
	require.NoError(t, err)
	require.Equal(t, "https://labels/1", tracked.Tracking.LabelURL, "empty fields keep prior values")
	require.Equal(t, "TRANSIT", tracked.Tracking.Status)

	found, err := repo.FindByTracking(ctx, "1Z999")
	require.NoError(t, err)
	require.Equal(t, first.ID, found.ID)

	require.NoError(t, repo.Delete(ctx, second.ID))
	require.ErrorIs(t, repo.Delete(ctx, second.ID), order.ErrNotFound)
}

func TestMemoryRepository(t *testing.T) {
	exerciseRepository(t, order.NewMemoryRepository())
}

func TestMemoryRepositoryReturnsCopies(t *testing.T) {
	repo := order.NewMemoryRepository()
	o := sampleOrder("a@example.com", time.Now())
	require.NoError(t, repo.Create(context.Background(), o))

	got, err := repo.Get(context.Background(), o.ID)
	require.NoError(t, err)
	got.Lines[0].Quantity = 1
	got.Lines[0].Tags[0] = "changed"

	again, err := repo.Get(context.Background(), o.ID)
	require.NoError(t, err)
	require.Equal(t, 24, again.Lines[0].Quantity)
	require.Equal(t, "cotton", again.Lines[0].Tags[0])
}

func TestPostgresRepository(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	require.NoError(t, order.Migrate(dsn))
	pool, err := pgxpool.New(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	_, err = pool.Exec(context.Background(), `TRUNCATE orders`)
	require.NoError(t, err)

	exerciseRepository(t, order.NewPostgresRepository(pool))
}
