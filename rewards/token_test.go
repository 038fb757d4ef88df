package rewards

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/00anuyh/souvenir/store"
)

func TestPurchaseTokenLifecycle(t *testing.T) {
	tokens := NewTokens(store.NewMemory())
	ctx := context.Background()

	valid, err := tokens.HasValidRecentPurchase(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, valid, "no token before any purchase")

	require.NoError(t, tokens.MarkRecentPurchase(ctx, "u1", map[string]string{"order_id": "ORD1"}, 24))

	valid, err = tokens.HasValidRecentPurchase(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, valid)

	tok, err := tokens.Active(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, tok)
	assert.Equal(t, "ORD1", tok.Meta["order_id"])

	require.NoError(t, tokens.ConsumeRecentPurchase(ctx, "u1"))

	valid, err = tokens.HasValidRecentPurchase(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, valid, "consumed token is gone")
}

func TestPurchaseTokenZeroTTLExpiresImmediately(t *testing.T) {
	tokens := NewTokens(store.NewMemory())
	ctx := context.Background()

	require.NoError(t, tokens.MarkRecentPurchase(ctx, "u1", nil, 0))

	valid, err := tokens.HasValidRecentPurchase(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestPurchaseTokenIsPerUser(t *testing.T) {
	tokens := NewTokens(store.NewMemory())
	ctx := context.Background()

	require.NoError(t, tokens.MarkRecentPurchase(ctx, "u1", nil, 24))

	valid, err := tokens.HasValidRecentPurchase(ctx, "u2")
	require.NoError(t, err)
	assert.False(t, valid, "u2 must not see u1's token")
}

func TestMarkRecentPurchaseOverwrites(t *testing.T) {
	tokens := NewTokens(store.NewMemory())
	ctx := context.Background()

	require.NoError(t, tokens.MarkRecentPurchase(ctx, "u1", map[string]string{"order_id": "A"}, 0))
	require.NoError(t, tokens.MarkRecentPurchase(ctx, "u1", map[string]string{"order_id": "B"}, 24))

	valid, err := tokens.HasValidRecentPurchase(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, valid, "newer token replaces the expired one")

	tok, err := tokens.Active(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, tok)
	assert.Equal(t, "B", tok.Meta["order_id"])
}
