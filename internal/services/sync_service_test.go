package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/subhoplz/TOKEN-FOR-CANTEEN/internal/audit"
	"github.com/subhoplz/TOKEN-FOR-CANTEEN/internal/ledger"
	"github.com/subhoplz/TOKEN-FOR-CANTEEN/internal/models"
	"github.com/subhoplz/TOKEN-FOR-CANTEEN/internal/reconcile"
	"github.com/subhoplz/TOKEN-FOR-CANTEEN/internal/store"
)

// recordingLedger accepts every commit and remembers balances, enough to
// drive the sync surface end to end.
type recordingLedger struct {
	balances map[string]int64
}

func (f *recordingLedger) FetchAccount(_ context.Context, accountID string) (*ledger.RemoteAccount, error) {
	return &ledger.RemoteAccount{ID: accountID}, nil
}

func (f *recordingLedger) CommitEntries(_ context.Context, account *models.Account, _ []models.TransactionEntry, newBalance int64, _ int) error {
	if f.balances == nil {
		f.balances = make(map[string]int64)
	}
	f.balances[account.ID] = newBalance
	return nil
}

func syncFixture(t *testing.T) (*SyncService, *store.AccountStore, *reconcile.Reconciler) {
	t.Helper()

	s := store.NewAccountStore(store.NewMemoryStorage())
	err := s.Load(context.Background(), []models.Account{{
		ID:          "acct-1",
		ExternalID:  "E12345",
		DisplayName: "Alex Doe",
		Role:        models.RoleCardholder,
		Log: []models.TransactionEntry{{
			ID:          "seed-1",
			Direction:   models.DirectionCredit,
			Amount:      100,
			Description: "Initial token grant",
			Timestamp:   time.Now().UTC(),
			SyncState:   models.SyncPending,
		}},
	}})
	assert.NoError(t, err)

	r := reconcile.NewReconciler(s, &recordingLedger{}, audit.NewLogger(), 0)
	return NewSyncService(s, r), s, r
}

func TestSyncStatus(t *testing.T) {
	svc, _, _ := syncFixture(t)

	w := httptest.NewRecorder()
	svc.Status(w, httptest.NewRequest(http.MethodGet, "/api/v1/sync/status", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Online       bool           `json:"online"`
		Pending      map[string]int `json:"pending"`
		TotalPending int            `json:"totalPending"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Online)
	assert.Equal(t, 1, resp.TotalPending)
	assert.Equal(t, 1, resp.Pending["acct-1"])
}

func TestSetConnectivity(t *testing.T) {
	t.Run("reports online", func(t *testing.T) {
		svc, _, r := syncFixture(t)

		w := httptest.NewRecorder()
		svc.SetConnectivity(w, httptest.NewRequest(http.MethodPost, "/api/v1/sync/connectivity",
			strings.NewReader(`{"online":true}`)))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, r.Online())
	})

	t.Run("reports offline", func(t *testing.T) {
		svc, _, r := syncFixture(t)
		r.SetOnline(true)

		w := httptest.NewRecorder()
		svc.SetConnectivity(w, httptest.NewRequest(http.MethodPost, "/api/v1/sync/connectivity",
			strings.NewReader(`{"online":false}`)))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.False(t, r.Online())
	})

	t.Run("missing field rejected", func(t *testing.T) {
		svc, _, _ := syncFixture(t)

		w := httptest.NewRecorder()
		svc.SetConnectivity(w, httptest.NewRequest(http.MethodPost, "/api/v1/sync/connectivity",
			strings.NewReader(`{}`)))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestRunSync(t *testing.T) {
	t.Run("offline run refused", func(t *testing.T) {
		svc, _, _ := syncFixture(t)

		w := httptest.NewRecorder()
		svc.RunSync(w, httptest.NewRequest(http.MethodPost, "/api/v1/sync/run", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("online run drains the queue", func(t *testing.T) {
		svc, s, r := syncFixture(t)
		r.SetOnline(true)

		w := httptest.NewRecorder()
		svc.RunSync(w, httptest.NewRequest(http.MethodPost, "/api/v1/sync/run", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		account, _ := s.Get("acct-1")
		assert.Empty(t, account.PendingEntries())

		var resp struct {
			Status  string         `json:"status"`
			Pending map[string]int `json:"pending"`
		}
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "reconciled", resp.Status)
		assert.Empty(t, resp.Pending)
	})
}
