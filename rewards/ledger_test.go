package rewards

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/00anuyh/souvenir/store"
)

func newTestLedger(t *testing.T) (*Ledger, context.Context) {
	t.Helper()
	return NewLedger(store.NewMemory()), context.Background()
}

func TestAccountDefaultsToZero(t *testing.T) {
	l, ctx := newTestLedger(t)

	acct, err := l.Account(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, Account{UserID: "u1"}, acct)
}

func TestAccountRequiresUserID(t *testing.T) {
	l, ctx := newTestLedger(t)

	_, err := l.Account(ctx, "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAddThenSpendPoints(t *testing.T) {
	l, ctx := newTestLedger(t)

	_, err := l.AddPoints(ctx, "u1", 1000)
	require.NoError(t, err)

	spent, err := l.SpendPoints(ctx, "u1", 400)
	require.NoError(t, err)
	assert.Equal(t, 400, spent)

	acct, err := l.Account(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 600, acct.Points)
}

func TestSpendPointsClampsAtBalance(t *testing.T) {
	l, ctx := newTestLedger(t)

	_, err := l.AddPoints(ctx, "u1", 300)
	require.NoError(t, err)

	// Overspending returns the prior balance and zeroes the account,
	// never an error and never a negative balance.
	spent, err := l.SpendPoints(ctx, "u1", 1000)
	require.NoError(t, err)
	assert.Equal(t, 300, spent)

	acct, err := l.Account(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, acct.Points)
}

func TestSpendPointsRejectsNegativeAmount(t *testing.T) {
	l, ctx := newTestLedger(t)

	_, err := l.SpendPoints(ctx, "u1", -5)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAddPointsDoesNotClamp(t *testing.T) {
	l, ctx := newTestLedger(t)

	// AddPoints is the raw primitive; callers needing the floor use
	// SpendPoints.
	acct, err := l.AddPoints(ctx, "u1", -50)
	require.NoError(t, err)
	assert.Equal(t, -50, acct.Points)
}

func TestAddCouponsAndGiftsFloorAtZero(t *testing.T) {
	l, ctx := newTestLedger(t)

	acct, err := l.AddCoupons(ctx, "u1", -3)
	require.NoError(t, err)
	assert.Equal(t, 0, acct.Coupons)

	acct, err = l.AddGifts(ctx, "u1", -1)
	require.NoError(t, err)
	assert.Equal(t, 0, acct.Gifts)

	acct, err = l.AddCoupons(ctx, "u1", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, acct.Coupons)
}

func TestGrantSignupBonusOnce(t *testing.T) {
	l, ctx := newTestLedger(t)

	granted, err := l.GrantSignupBonusOnce(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, granted)

	acct, err := l.Account(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, SignupBonusPoints, acct.Points)
	assert.Equal(t, SignupBonusCoupons, acct.Coupons)

	// A repeat grant is a reported no-op: same end state as one call.
	granted, err = l.GrantSignupBonusOnce(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, granted)

	again, err := l.Account(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, acct, again)
}
