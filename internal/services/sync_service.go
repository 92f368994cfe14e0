package services

import (
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/subhoplz/TOKEN-FOR-CANTEEN/internal/reconcile"
	"github.com/subhoplz/TOKEN-FOR-CANTEEN/internal/store"
)

// SyncService exposes the connectivity toggle and the reconciliation surface:
// the device UI reports online/offline transitions here, and the status
// endpoint shows the queue depth per account.
type SyncService struct {
	store      *store.AccountStore
	reconciler *reconcile.Reconciler
	validator  *ValidationHelper
}

func NewSyncService(accounts *store.AccountStore, reconciler *reconcile.Reconciler) *SyncService {
	return &SyncService{
		store:      accounts,
		reconciler: reconciler,
		validator:  NewValidationHelper(),
	}
}

type connectivityRequest struct {
	Online *bool `json:"online" validate:"required"`
}

// SetConnectivity records an online/offline transition
// @Summary Report connectivity
// @Description Record the device's connectivity; going online schedules a reconciliation run
// @Tags sync
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body connectivityRequest true "Connectivity state"
// @Success 200 {object} map[string]bool
// @Failure 400 {object} ErrorResponse
// @Router /sync/connectivity [post]
func (s *SyncService) SetConnectivity(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req connectivityRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	s.reconciler.SetOnline(*req.Online)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"online": *req.Online})
}

// RunSync triggers a reconciliation run now
// @Summary Run reconciliation
// @Description Merge pending entries into the system of record immediately
// @Tags sync
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{status=string,pending=map[string]int}
// @Failure 503 {object} ErrorResponse
// @Router /sync/run [post]
func (s *SyncService) RunSync(w http.ResponseWriter, r *http.Request) {
	if !s.reconciler.Online() {
		SendErrorResponse(w, "Device is offline, entries will sync when connectivity returns", http.StatusServiceUnavailable, nil)
		return
	}

	if err := s.reconciler.Run(r.Context()); err != nil {
		log.Printf("[SYNC] Manual run finished with errors: %v", err)
		SendErrorResponse(w, err.Error(), StatusForError(err), nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "reconciled",
		"pending": s.reconciler.PendingCounts(),
	})
}

// Status reports connectivity and queue depth
// @Summary Sync status
// @Description Report the connectivity state and the pending entry count per account
// @Tags sync
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{online=bool,pending=map[string]int,totalPending=int}
// @Router /sync/status [get]
func (s *SyncService) Status(w http.ResponseWriter, r *http.Request) {
	pending := s.reconciler.PendingCounts()
	total := 0
	for _, n := range pending {
		total += n
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"online":       s.reconciler.Online(),
		"pending":      pending,
		"totalPending": total,
	})
}
