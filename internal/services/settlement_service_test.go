package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/subhoplz/TOKEN-FOR-CANTEEN/internal/models"
	"github.com/subhoplz/TOKEN-FOR-CANTEEN/internal/store"
)

func TestSettlementExport(t *testing.T) {
	ctx := context.Background()

	t.Run("nothing synced exports nothing", func(t *testing.T) {
		s := store.NewAccountStore(store.NewMemoryStorage())
		assert.NoError(t, s.Load(ctx, nil))
		svc := NewSettlementService(s)

		w := httptest.NewRecorder()
		svc.Export(w, httptest.NewRequest(http.MethodGet, "/api/v1/settlement/export", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		var resp map[string]any
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "empty", resp["status"])
	})

	t.Run("synced debits become pacs.008 transactions", func(t *testing.T) {
		s := store.NewAccountStore(store.NewMemoryStorage())
		assert.NoError(t, s.Load(ctx, []models.Account{{
			ID:          "acct-1",
			ExternalID:  "E12345",
			DisplayName: "Alex Doe",
			Role:        models.RoleCardholder,
			Log: []models.TransactionEntry{
				{
					ID:          "entry-debit",
					Direction:   models.DirectionDebit,
					Amount:      10,
					Description: "Meal served",
					Timestamp:   time.Now().UTC(),
					SyncState:   models.SyncSynced,
				},
				{
					ID:          "entry-pending",
					Direction:   models.DirectionDebit,
					Amount:      5,
					Description: "Snack",
					Timestamp:   time.Now().UTC(),
					SyncState:   models.SyncPending,
				},
				{
					ID:          "entry-credit",
					Direction:   models.DirectionCredit,
					Amount:      100,
					Description: "Initial token grant",
					Timestamp:   time.Now().UTC(),
					SyncState:   models.SyncSynced,
				},
			},
		}}))
		svc := NewSettlementService(s)

		w := httptest.NewRecorder()
		svc.Export(w, httptest.NewRequest(http.MethodGet, "/api/v1/settlement/export", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Status      string `json:"status"`
			MessageType string `json:"messageType"`
			Entries     int    `json:"entries"`
			XML         string `json:"xml"`
		}
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "exported", resp.Status)
		assert.Equal(t, "pacs.008.001.08", resp.MessageType)
		// Only the synced debit qualifies: pending entries wait for their
		// cycle, and credits are token grants, not vendor settlement.
		assert.Equal(t, 1, resp.Entries)
		assert.Contains(t, resp.XML, "entry-debit")
		assert.NotContains(t, resp.XML, "entry-pending")
		assert.NotContains(t, resp.XML, "entry-credit")
		assert.Contains(t, resp.XML, "E12345")
	})
}
