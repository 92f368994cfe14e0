package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/subhoplz/TOKEN-FOR-CANTEEN/internal/models"
)

func newTestStore(t *testing.T, seed []models.Account) *AccountStore {
	t.Helper()
	s := NewAccountStore(NewMemoryStorage())
	assert.NoError(t, s.Load(context.Background(), seed))
	return s
}

func seededAccount(id, externalID string, balance int64) models.Account {
	now := time.Now().UTC()
	return models.Account{
		ID:          id,
		ExternalID:  externalID,
		DisplayName: "Test " + externalID,
		Role:        models.RoleCardholder,
		Log: []models.TransactionEntry{{
			ID:          "seed-" + id,
			Direction:   models.DirectionCredit,
			Amount:      balance,
			Description: "Initial token grant",
			Timestamp:   now,
			SyncState:   models.SyncPending,
		}},
		LastUpdated: now,
	}
}

func TestAccountStoreLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("seeds an empty store", func(t *testing.T) {
		s := newTestStore(t, []models.Account{seededAccount("acct-1", "E12345", 100)})
		balance, err := s.Balance("acct-1")
		assert.NoError(t, err)
		assert.EqualValues(t, 100, balance)
	})

	t.Run("recomputes balance from the log on load", func(t *testing.T) {
		seed := seededAccount("acct-1", "E12345", 100)
		seed.Balance = 9999 // stale stored value, the log wins
		s := newTestStore(t, []models.Account{seed})

		balance, err := s.Balance("acct-1")
		assert.NoError(t, err)
		assert.EqualValues(t, 100, balance)
	})

	t.Run("prefers stored accounts over the seed", func(t *testing.T) {
		storage := NewMemoryStorage()
		first := NewAccountStore(storage)
		assert.NoError(t, first.Load(ctx, []models.Account{seededAccount("acct-1", "E12345", 100)}))
		_, err := first.Credit(ctx, "acct-1", 50, "Top up")
		assert.NoError(t, err)

		second := NewAccountStore(storage)
		assert.NoError(t, second.Load(ctx, []models.Account{seededAccount("acct-1", "E12345", 100)}))
		balance, err := second.Balance("acct-1")
		assert.NoError(t, err)
		assert.EqualValues(t, 150, balance)
	})
}

func TestAccountStoreDebit(t *testing.T) {
	ctx := context.Background()

	t.Run("sufficient balance", func(t *testing.T) {
		s := newTestStore(t, []models.Account{seededAccount("acct-1", "E12345", 100)})

		entry, err := s.Debit(ctx, "acct-1", 30, "Meal served")
		assert.NoError(t, err)
		assert.Equal(t, models.DirectionDebit, entry.Direction)
		assert.EqualValues(t, 30, entry.Amount)
		assert.Equal(t, models.SyncPending, entry.SyncState)

		balance, _ := s.Balance("acct-1")
		assert.EqualValues(t, 70, balance)
	})

	t.Run("insufficient balance leaves everything unchanged", func(t *testing.T) {
		s := newTestStore(t, []models.Account{seededAccount("acct-1", "E12345", 10)})

		_, err := s.Debit(ctx, "acct-1", 30, "Meal served")
		assert.ErrorIs(t, err, models.ErrInsufficientBalance)

		balance, _ := s.Balance("acct-1")
		assert.EqualValues(t, 10, balance)
		log, _ := s.Log("acct-1")
		assert.Len(t, log, 1)
	})

	t.Run("zero and negative amounts rejected", func(t *testing.T) {
		s := newTestStore(t, []models.Account{seededAccount("acct-1", "E12345", 100)})

		_, err := s.Debit(ctx, "acct-1", 0, "Meal served")
		assert.ErrorIs(t, err, models.ErrInvalidAmount)
		_, err = s.Debit(ctx, "acct-1", -5, "Meal served")
		assert.ErrorIs(t, err, models.ErrInvalidAmount)
	})

	t.Run("unknown account", func(t *testing.T) {
		s := newTestStore(t, nil)
		_, err := s.Debit(ctx, "nobody", 1, "Meal served")
		assert.ErrorIs(t, err, models.ErrAccountNotFound)
	})

	t.Run("concurrent debits never overdraw", func(t *testing.T) {
		s := newTestStore(t, []models.Account{seededAccount("acct-1", "E12345", 50)})

		var wg sync.WaitGroup
		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.Debit(ctx, "acct-1", 1, "Meal served")
			}()
		}
		wg.Wait()

		balance, _ := s.Balance("acct-1")
		assert.EqualValues(t, 0, balance)
		log, _ := s.Log("acct-1")
		assert.Len(t, log, 51) // seed credit plus exactly 50 debits
	})
}

func TestAccountStoreCredit(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, []models.Account{seededAccount("acct-1", "E12345", 100)})

	t.Run("raises the balance", func(t *testing.T) {
		entry, err := s.Credit(ctx, "acct-1", 25, "Tokens added by admin")
		assert.NoError(t, err)
		assert.Equal(t, models.DirectionCredit, entry.Direction)

		balance, _ := s.Balance("acct-1")
		assert.EqualValues(t, 125, balance)
	})

	t.Run("invalid amount", func(t *testing.T) {
		_, err := s.Credit(ctx, "acct-1", 0, "Tokens added by admin")
		assert.ErrorIs(t, err, models.ErrInvalidAmount)
	})
}

func TestBalanceAlwaysEqualsFold(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, []models.Account{seededAccount("acct-1", "E12345", 100)})

	s.Credit(ctx, "acct-1", 40, "Top up")
	s.Debit(ctx, "acct-1", 15, "Meal served")
	s.Debit(ctx, "acct-1", 5, "Snack")

	account, err := s.Get("acct-1")
	assert.NoError(t, err)
	assert.Equal(t, account.FoldBalance(), account.Balance)
	assert.EqualValues(t, 120, account.Balance)
}

func TestAccountStoreLog(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, []models.Account{seededAccount("acct-1", "E12345", 100)})
	s.Debit(ctx, "acct-1", 10, "first")
	s.Debit(ctx, "acct-1", 20, "second")

	log, err := s.Log("acct-1")
	assert.NoError(t, err)
	assert.Len(t, log, 3)
	// Most recent first.
	assert.Equal(t, "second", log[0].Description)
	assert.Equal(t, "first", log[1].Description)
}

func TestAccountStoreCRUD(t *testing.T) {
	ctx := context.Background()

	t.Run("create and resolve by external id", func(t *testing.T) {
		s := newTestStore(t, nil)
		created, err := s.CreateAccount(ctx, "New Person", "E55555", models.RoleCardholder, "")
		assert.NoError(t, err)
		assert.Contains(t, created.ID, "cardholder-")

		found, err := s.ByExternalID("E55555")
		assert.NoError(t, err)
		assert.Equal(t, created.ID, found.ID)
		assert.EqualValues(t, 0, found.Balance)
	})

	t.Run("edit", func(t *testing.T) {
		s := newTestStore(t, []models.Account{seededAccount("acct-1", "E12345", 100)})
		assert.NoError(t, s.EditAccount(ctx, "acct-1", "Renamed", "E99999"))

		account, _ := s.Get("acct-1")
		assert.Equal(t, "Renamed", account.DisplayName)
		assert.Equal(t, "E99999", account.ExternalID)
	})

	t.Run("delete", func(t *testing.T) {
		s := newTestStore(t, []models.Account{seededAccount("acct-1", "E12345", 100)})
		assert.NoError(t, s.DeleteAccount(ctx, "acct-1"))
		_, err := s.Get("acct-1")
		assert.ErrorIs(t, err, models.ErrAccountNotFound)
	})

	t.Run("admin accounts are protected", func(t *testing.T) {
		admin := seededAccount("admin-1", "A00001", 0)
		admin.Role = models.RoleAdmin
		admin.Log = nil
		s := newTestStore(t, []models.Account{admin})

		err := s.DeleteAccount(ctx, "admin-1")
		assert.ErrorIs(t, err, models.ErrProtectedAccount)
	})
}

func TestMarkSynced(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, []models.Account{seededAccount("acct-1", "E12345", 100)})
	entry, err := s.Debit(ctx, "acct-1", 10, "Meal served")
	assert.NoError(t, err)

	t.Run("flips pending to synced", func(t *testing.T) {
		assert.NoError(t, s.MarkSynced(ctx, "acct-1", []string{entry.ID}))

		account, _ := s.Get("acct-1")
		assert.Len(t, account.PendingEntries(), 1) // only the seed credit remains
		for _, e := range account.Log {
			if e.ID == entry.ID {
				assert.Equal(t, models.SyncSynced, e.SyncState)
			}
		}
	})

	t.Run("idempotent, unknown ids ignored", func(t *testing.T) {
		assert.NoError(t, s.MarkSynced(ctx, "acct-1", []string{entry.ID, "no-such-entry"}))
		account, _ := s.Get("acct-1")
		assert.Len(t, account.PendingEntries(), 1)
	})
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, []models.Account{seededAccount("acct-1", "E12345", 100)})

	current, err := s.Session(ctx)
	assert.NoError(t, err)
	assert.Empty(t, current)

	assert.NoError(t, s.SetSession(ctx, "acct-1"))
	current, err = s.Session(ctx)
	assert.NoError(t, err)
	assert.Equal(t, "acct-1", current)

	assert.NoError(t, s.ClearSession(ctx))
	current, _ = s.Session(ctx)
	assert.Empty(t, current)
}

func TestDeleteAccountClearsItsSession(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, []models.Account{seededAccount("acct-1", "E12345", 100)})
	assert.NoError(t, s.SetSession(ctx, "acct-1"))

	assert.NoError(t, s.DeleteAccount(ctx, "acct-1"))
	current, _ := s.Session(ctx)
	assert.Empty(t, current)
}
