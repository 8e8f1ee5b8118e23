package memory

import (
	"context"
	"testing"
	"time"

	"github.com/jpanzo/debt-tracker/internal/model"
	"github.com/jpanzo/debt-tracker/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccounts(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.GetAccount(ctx, "acc-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	s.PutAccount(model.Account{ID: "acc-1", Balance: 42})

	a, err := s.GetAccount(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, int64(42), a.Balance)
	assert.False(t, a.UpdatedAt.IsZero())

	ts := time.Now().Add(time.Second)
	require.NoError(t, s.UpdateBalance(ctx, "acc-1", 32, ts))

	a, err = s.GetAccount(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, int64(32), a.Balance)
	assert.True(t, a.UpdatedAt.Equal(ts))

	assert.ErrorIs(t, s.UpdateBalance(ctx, "acc-ghost", 1, ts), storage.ErrNotFound)
}

func TestListAccountIDsSorted(t *testing.T) {
	ctx := context.Background()
	s := New()
	for _, id := range []string{"acc-3", "acc-1", "acc-2"} {
		s.PutAccount(model.Account{ID: id})
	}

	ids, err := s.ListAccountIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"acc-1", "acc-2", "acc-3"}, ids)
}

func TestDebtHistoryOrderAndRecentIDs(t *testing.T) {
	ctx := context.Background()
	s := New()

	for i := 1; i <= 5; i++ {
		require.NoError(t, s.InsertDebtHistory(ctx, "acc-1", int64(i)))
	}

	rows, err := s.ListDebtHistory(ctx, "acc-1")
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, int64(1), rows[0].Balance) // oldest first
	assert.Equal(t, int64(5), rows[4].Balance)

	recent, err := s.ListRecentDebtIDs(ctx, "acc-1", 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{rows[4].ID, rows[3].ID}, recent)
}

func TestDeleteDebtExcept(t *testing.T) {
	ctx := context.Background()
	s := New()

	for i := 1; i <= 5; i++ {
		require.NoError(t, s.InsertDebtHistory(ctx, "acc-1", int64(i)))
	}
	keep, err := s.ListRecentDebtIDs(ctx, "acc-1", 2)
	require.NoError(t, err)

	deleted, err := s.DeleteDebtExcept(ctx, "acc-1", keep)
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)

	rows, err := s.ListDebtHistory(ctx, "acc-1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(4), rows[0].Balance)
	assert.Equal(t, int64(5), rows[1].Balance)
}

func TestPaymentHistoryMostRecentFirst(t *testing.T) {
	ctx := context.Background()
	s := New()

	for i := 1; i <= 3; i++ {
		require.NoError(t, s.InsertPaymentHistory(ctx, "acc-1", int64(i*10)))
	}

	rows, err := s.ListPaymentHistory(ctx, "acc-1")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, int64(30), rows[0].Amount)
	assert.Equal(t, int64(10), rows[2].Amount)
}

func TestAtomicallyPassesSameStore(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.PutAccount(model.Account{ID: "acc-1", Balance: 10})

	err := s.Atomically(ctx, func(tx storage.Store) error {
		a, err := tx.GetAccountForUpdate(ctx, "acc-1")
		if err != nil {
			return err
		}
		return tx.UpdateBalance(ctx, "acc-1", a.Balance+5, time.Now())
	})
	require.NoError(t, err)

	a, err := s.GetAccount(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, int64(15), a.Balance)
}
