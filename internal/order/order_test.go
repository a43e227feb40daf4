package order

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPendingPayment, StatusPaid, true},
		{StatusPendingPayment, StatusCanceled, true},
		{StatusPendingPayment, StatusProcessing, false},
		{StatusPendingPayment, StatusShipped, false},
		{StatusPaid, StatusProcessing, true},
		{StatusPaid, StatusShipped, true},
		{StatusPaid, StatusPendingPayment, false},
		{StatusProcessing, StatusPaid, false},
		{StatusProcessing, StatusDelivered, true},
		{StatusShipped, StatusDelivered, true},
		{StatusShipped, StatusCanceled, true},
		{StatusDelivered, StatusCanceled, false},
		{StatusCanceled, StatusPaid, false},
		{StatusPaid, StatusPaid, false},
		{Status("bogus"), StatusPaid, false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestParseStatus(t *testing.T) {
	s, ok := ParseStatus(" Shipped ")
	require.True(t, ok)
	require.Equal(t, StatusShipped, s)
	_, ok = ParseStatus("packed")
	require.False(t, ok)
}

func TestNewNumber(t *testing.T) {
	at := time.Date(2026, 3, 9, 23, 0, 0, 0, time.UTC)
	require.Equal(t, "WS-20260309-0A1B2C3D", NewNumber("0a1b2c3d-4e5f-6789-abcd-ef0123456789", at))
}

func TestMigrateURL(t *testing.T) {
	require.Equal(t, "pgx5://u:p@db:5432/grosir?sslmode=disable&x-migrations-table=grosir_schema_migrations",
		migrateURL("postgres://u:p@db:5432/grosir?sslmode=disable"))
	require.Equal(t, "pgx5://db/grosir?x-migrations-table=grosir_schema_migrations",
		migrateURL("postgresql://db/grosir"))
}
