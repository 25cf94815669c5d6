package tipping

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/UkralStul/tipping-service/internal/domain"
	"github.com/UkralStul/tipping-service/internal/storage/postgres"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Суммы должны помещаться в numeric(20,8) без округления.
func TestTipTarget_AmountsFitLedgerColumns(t *testing.T) {
	store, err := postgres.NewSQLite(filepath.Join(t.TempDir(), "tipping.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	svc := NewService(store, WithBalanceSeeding(true))

	owner, err := svc.CreateUser(ctx, "owner", decimal.Zero)
	require.NoError(t, err)
	fan, err := svc.CreateUser(ctx, "fan", decimal.RequireFromString("1.00000001"))
	require.NoError(t, err)
	post, err := svc.CreatePost(ctx, owner.ID, domain.PostDraft{Title: "t", Body: "b"})
	require.NoError(t, err)

	_, err = svc.CreateUser(ctx, "whale", decimal.New(1, 12))
	assert.ErrorIs(t, err, domain.ErrValidation)

	for _, raw := range []string{"0.000000001", "1000000000000", "0.123456789"} {
		_, _, err = svc.TipTarget(ctx, post.ID, "", fan.ID, decimal.RequireFromString(raw), domain.CurrencyNGN)
		assert.ErrorIs(t, err, domain.ErrInvalidAmount, raw)
	}

	got, err := svc.GetUser(ctx, fan.ID)
	require.NoError(t, err)
	assert.Equal(t, "1.00000001", got.Balance.String())

	_, tip, err := svc.TipTarget(ctx, post.ID, "", fan.ID, decimal.RequireFromString("0.00000001"), domain.CurrencyNGN)
	require.NoError(t, err)
	assert.Equal(t, "0.00000001", tip.Amount.String())

	// SQLite хранит numeric как REAL, поэтому баланс сверяется с допуском.
	got, err = svc.GetUser(ctx, fan.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Sub(decimal.NewFromInt(1)).Abs().LessThan(decimal.New(1, -12)), got.Balance.String())

	stored, err := svc.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.True(t, stored.TotalTips.Equal(decimal.RequireFromString("0.00000001")), stored.TotalTips.String())
}
