package wallet

import (
	"context"
	"testing"

	"github.com/dkeye/cardlobby/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerReserveAndRelease(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(decimal.NewFromInt(100))

	require.NoError(t, l.Reserve(ctx, "alice", "t1", decimal.NewFromInt(60)))
	assert.True(t, l.Balance("alice").Equal(decimal.NewFromInt(40)))

	held, ok := l.Held("alice", "t1")
	require.True(t, ok)
	assert.True(t, held.Equal(decimal.NewFromInt(60)))

	// a second hold for the same table is not taken twice
	require.NoError(t, l.Reserve(ctx, "alice", "t1", decimal.NewFromInt(60)))
	assert.True(t, l.Balance("alice").Equal(decimal.NewFromInt(40)))

	err := l.Reserve(ctx, "alice", "t2", decimal.NewFromInt(60))
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	require.NoError(t, l.Release(ctx, "alice", "t1"))
	require.NoError(t, l.Release(ctx, "alice", "t1"))
	assert.True(t, l.Balance("alice").Equal(decimal.NewFromInt(100)))
	_, ok = l.Held("alice", "t1")
	assert.False(t, ok)
}

func TestLedgerDeposit(t *testing.T) {
	l := NewLedger(decimal.Zero)
	assert.ErrorIs(t, l.Reserve(context.Background(), "bob", "t1", decimal.NewFromInt(1)), domain.ErrInsufficientFunds)

	l.Deposit("bob", decimal.RequireFromString("2.50"))
	require.NoError(t, l.Reserve(context.Background(), "bob", "t1", decimal.NewFromInt(1)))
	assert.True(t, l.Balance("bob").Equal(decimal.RequireFromString("1.5")))
}

func TestLedgerSettleKeepsStakes(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(decimal.NewFromInt(100))
	require.NoError(t, l.Reserve(ctx, "alice", "t1", decimal.NewFromInt(10)))
	require.NoError(t, l.Reserve(ctx, "bob", "t1", decimal.NewFromInt(10)))
	require.NoError(t, l.Reserve(ctx, "alice", "t2", decimal.NewFromInt(5)))

	require.NoError(t, l.Settle(ctx, "t1"))
	_, ok := l.Held("alice", "t1")
	assert.False(t, ok)
	_, ok = l.Held("bob", "t1")
	assert.False(t, ok)
	assert.True(t, l.Balance("alice").Equal(decimal.NewFromInt(85)))
	assert.True(t, l.Balance("bob").Equal(decimal.NewFromInt(90)))

	// other tables are untouched, and a later release has nothing to refund
	_, ok = l.Held("alice", "t2")
	assert.True(t, ok)
	require.NoError(t, l.Release(ctx, "bob", "t1"))
	assert.True(t, l.Balance("bob").Equal(decimal.NewFromInt(90)))
}
