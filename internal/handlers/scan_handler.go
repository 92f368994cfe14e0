package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/subhoplz/TOKEN-FOR-CANTEEN/internal/audit"
	"github.com/subhoplz/TOKEN-FOR-CANTEEN/internal/config"
	"github.com/subhoplz/TOKEN-FOR-CANTEEN/internal/models"
	"github.com/subhoplz/TOKEN-FOR-CANTEEN/internal/scan"
	"github.com/subhoplz/TOKEN-FOR-CANTEEN/internal/services"
)

// ScanHandler is the vendor-side HTTP surface over the scan validator. The
// validate endpoint classifies a raw scan without touching any balance; the
// serve endpoint validates and applies the meal debit in one step.
type ScanHandler struct {
	validator *scan.Validator
	audit     *audit.Logger
	cfg       *config.CanteenConfig
}

func NewScanHandler(validator *scan.Validator, auditLogger *audit.Logger, cfg *config.CanteenConfig) *ScanHandler {
	return &ScanHandler{
		validator: validator,
		audit:     auditLogger,
		cfg:       cfg,
	}
}

type scanRequest struct {
	Data     string `json:"data"`
	Override bool   `json:"override,omitempty"`
}

type scanResponse struct {
	Valid          bool                     `json:"valid"`
	Reason         string                   `json:"reason,omitempty"`
	Payload        *models.QrPayload        `json:"payload,omitempty"`
	Account        *accountView             `json:"account,omitempty"`
	SignatureValid bool                     `json:"signature_valid"`
	Entry          *models.TransactionEntry `json:"entry,omitempty"`
}

type accountView struct {
	ID          string `json:"id"`
	ExternalID  string `json:"employee_id"`
	DisplayName string `json:"name"`
	Balance     int64  `json:"balance"`
}

// Validate classifies a scanned payload
// @Summary Validate scan
// @Description Classify a scanned QR payload without changing any balance
// @Tags scan
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body scanRequest true "Raw scanned data"
// @Success 200 {object} scanResponse
// @Failure 400 {object} services.ErrorResponse "Malformed payload"
// @Failure 401 {object} scanResponse "Invalid signature"
// @Failure 404 {object} services.ErrorResponse "Unknown subject"
// @Router /scan/validate [post]
func (h *ScanHandler) Validate(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	result, err := h.validator.Validate(req.Data)
	h.respond(w, result, err)
}

// Serve validates a scan and applies the meal debit
// @Summary Serve meal
// @Description Validate a scanned payload and deduct the meal cost; an invalid signature blocks the deduction unless override is set
// @Tags scan
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body scanRequest true "Raw scanned data with optional override"
// @Success 200 {object} scanResponse
// @Failure 400 {object} services.ErrorResponse "Malformed payload or insufficient balance"
// @Failure 401 {object} scanResponse "Invalid signature, override required"
// @Failure 404 {object} services.ErrorResponse "Unknown subject"
// @Router /scan/serve [post]
func (h *ScanHandler) Serve(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	result, err := h.validator.Validate(req.Data)
	if err != nil && !(errors.Is(err, models.ErrInvalidSignature) && req.Override) {
		h.respond(w, result, err)
		return
	}

	entry, err := h.validator.Deduct(r.Context(), result, h.cfg.MealCost, h.cfg.MealDescription, req.Override)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), services.StatusForError(err), nil)
		return
	}
	h.audit.LogMutation(result.Account.ID, entry.ID, string(entry.Direction), entry.Amount)
	log.Printf("[SCAN] Meal served to %s (%s)", result.Account.DisplayName, result.Account.ExternalID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(scanResponse{
		Valid:          true,
		Payload:        result.Payload,
		Account:        viewOf(result.Account),
		SignatureValid: result.SignatureValid,
		Entry:          entry,
	})
}

func (h *ScanHandler) decode(w http.ResponseWriter, r *http.Request) (*scanRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req scanRequest
	if err := dec.Decode(&req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return nil, false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return nil, false
	}
	return &req, true
}

// respond maps the three scan failure kinds onto distinct responses. An
// invalid signature still reveals who the payload claims to be, so the
// operator can decide about an override.
func (h *ScanHandler) respond(w http.ResponseWriter, result *scan.Result, err error) {
	w.Header().Set("Content-Type", "application/json")

	switch {
	case err == nil:
		json.NewEncoder(w).Encode(scanResponse{
			Valid:          true,
			Payload:        result.Payload,
			Account:        viewOf(result.Account),
			SignatureValid: true,
		})
	case errors.Is(err, models.ErrInvalidSignature):
		w.WriteHeader(http.StatusUnauthorized)
		resp := scanResponse{
			Valid:  false,
			Reason: "invalid_signature",
		}
		if result != nil {
			resp.Payload = result.Payload
			resp.Account = viewOf(result.Account)
		}
		json.NewEncoder(w).Encode(resp)
	case errors.Is(err, models.ErrUnknownSubject):
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(scanResponse{Valid: false, Reason: "unknown_subject"})
	default:
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(scanResponse{Valid: false, Reason: "malformed_payload"})
	}
}

func viewOf(a *models.Account) *accountView {
	if a == nil {
		return nil
	}
	return &accountView{
		ID:          a.ID,
		ExternalID:  a.ExternalID,
		DisplayName: a.DisplayName,
		Balance:     a.Balance,
	}
}
