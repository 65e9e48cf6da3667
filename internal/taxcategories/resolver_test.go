package taxcategories

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/chargeledger/internal/ledger"
)

type countingResolver struct {
	calls    int
	category ledger.TaxCategory
	found    bool
	err      error
}

func (c *countingResolver) ByID(context.Context, uuid.UUID) (ledger.TaxCategory, bool, error) {
	c.calls++
	return c.category, c.found, c.err
}

func (c *countingResolver) ByBusinessAndOwner(context.Context, uuid.UUID, uuid.UUID) (ledger.TaxCategory, bool, error) {
	c.calls++
	return c.category, c.found, c.err
}

func (c *countingResolver) AccountTaxCategory(context.Context, uuid.UUID, string) (ledger.TaxCategory, bool, error) {
	c.calls++
	return c.category, c.found, c.err
}

func TestMemoCachesHitsAndMisses(t *testing.T) {
	next := &countingResolver{category: ledger.TaxCategory{ID: uuid.New(), Name: "Bank USD"}, found: true}
	memo := NewMemo(next)
	ctx := context.Background()
	account := uuid.New()

	for i := 0; i < 3; i++ {
		tc, ok, err := memo.AccountTaxCategory(ctx, account, "usd")
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "Bank USD", tc.Name)
	}
	_, _, err := memo.AccountTaxCategory(ctx, account, "USD")
	require.NoError(t, err)
	require.Equal(t, 1, next.calls)

	next.found = false
	fees := uuid.New()
	_, ok, err := memo.ByID(ctx, fees)
	require.NoError(t, err)
	require.False(t, ok)
	_, ok, _ = memo.ByID(ctx, fees)
	require.False(t, ok)
	require.Equal(t, 2, next.calls)
}

func TestMemoDoesNotCacheErrors(t *testing.T) {
	next := &countingResolver{err: errors.New("timeout")}
	memo := NewMemo(next)
	ctx := context.Background()
	business, owner := uuid.New(), uuid.New()

	_, _, err := memo.ByBusinessAndOwner(ctx, business, owner)
	require.Error(t, err)

	next.err = nil
	next.found = true
	_, ok, err := memo.ByBusinessAndOwner(ctx, business, owner)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 2, next.calls)
}

func TestMemoInvalidate(t *testing.T) {
	next := &countingResolver{category: ledger.TaxCategory{ID: uuid.New(), Name: "Income"}, found: true}
	memo := NewMemo(next)

	id := next.category.ID
	_, _, err := memo.ByID(context.Background(), id)
	require.NoError(t, err)
	require.NoError(t, memo.Invalidate(context.Background()))
	_, _, err = memo.ByID(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, 2, next.calls)
}
