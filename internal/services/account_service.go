package services

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/subhoplz/TOKEN-FOR-CANTEEN/internal/audit"
	"github.com/subhoplz/TOKEN-FOR-CANTEEN/internal/models"
	"github.com/subhoplz/TOKEN-FOR-CANTEEN/internal/qr"
	"github.com/subhoplz/TOKEN-FOR-CANTEEN/internal/store"
	"github.com/subhoplz/TOKEN-FOR-CANTEEN/internal/token"
)

// AccountService exposes the balance, log and CRUD operations over the local
// account cache, plus the payer-side spend flow that issues signed QR
// payloads.
type AccountService struct {
	store     *store.AccountStore
	signer    token.Signer
	codec     *qr.Codec
	audit     *audit.Logger
	validator *ValidationHelper
}

func NewAccountService(accounts *store.AccountStore, signer token.Signer, codec *qr.Codec, auditLogger *audit.Logger) *AccountService {
	return &AccountService{
		store:     accounts,
		signer:    signer,
		codec:     codec,
		audit:     auditLogger,
		validator: NewValidationHelper(),
	}
}

type createAccountRequest struct {
	Name       string `json:"name" validate:"required,min=2"`
	EmployeeID string `json:"employeeId" validate:"required,min=2"`
	Role       string `json:"role" validate:"omitempty,oneof=cardholder vendor admin"`
	Credential string `json:"credential,omitempty" validate:"omitempty,min=6"`
}

type editAccountRequest struct {
	Name       string `json:"name" validate:"required,min=2"`
	EmployeeID string `json:"employeeId" validate:"required,min=2"`
}

type amountRequest struct {
	Amount      int64  `json:"amount" validate:"required"`
	Description string `json:"description" validate:"max=200"`
}

// ListAccounts lists all cached accounts
// @Summary List accounts
// @Description List every account in the local cache
// @Tags accounts
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{accounts=[]models.Account,count=int}
// @Router /accounts [get]
func (s *AccountService) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts := s.store.Accounts()
	for i := range accounts {
		accounts[i].Credential = "" // never serve hashes
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"accounts": accounts,
		"count":    len(accounts),
	})
}

// CreateAccount registers a new account
// @Summary Create account
// @Description Create a cardholder, vendor or administrator account
// @Tags accounts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body createAccountRequest true "New account"
// @Success 201 {object} models.Account
// @Failure 400 {object} ErrorResponse
// @Router /accounts [post]
func (s *AccountService) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if !s.decode(w, r, &req) {
		return
	}

	role := models.Role(req.Role)
	if role == "" {
		role = models.RoleCardholder
	}

	var credentialHash string
	if req.Credential != "" {
		hash, err := HashCredential(req.Credential)
		if err != nil {
			SendErrorResponse(w, "Failed to store credential", http.StatusInternalServerError, nil)
			return
		}
		credentialHash = hash
	}

	account, err := s.store.CreateAccount(r.Context(), req.Name, req.EmployeeID, role, credentialHash)
	if err != nil {
		SendErrorResponse(w, err.Error(), StatusForError(err), nil)
		return
	}

	log.Printf("[ACCOUNT] Created %s account %s (%s)", role, account.ID, req.Name)
	account.Credential = ""
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(account)
}

// EditAccount updates an account's identity fields
// @Summary Edit account
// @Description Change an account's display name and employee id
// @Tags accounts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Account ID"
// @Param request body editAccountRequest true "Updated fields"
// @Success 200 {object} map[string]string
// @Failure 404 {object} ErrorResponse
// @Router /accounts/{id} [put]
func (s *AccountService) EditAccount(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")

	var req editAccountRequest
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.store.EditAccount(r.Context(), accountID, req.Name, req.EmployeeID); err != nil {
		SendErrorResponse(w, err.Error(), StatusForError(err), nil)
		return
	}

	log.Printf("[ACCOUNT] Updated account %s", accountID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Account updated"})
}

// DeleteAccount removes a non-privileged account
// @Summary Delete account
// @Description Delete an account; administrator accounts are protected
// @Tags accounts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Account ID"
// @Success 200 {object} map[string]string
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /accounts/{id} [delete]
func (s *AccountService) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")

	if err := s.store.DeleteAccount(r.Context(), accountID); err != nil {
		SendErrorResponse(w, err.Error(), StatusForError(err), nil)
		return
	}

	log.Printf("[ACCOUNT] Deleted account %s", accountID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Account deleted"})
}

// GetBalance reports the folded balance
// @Summary Get balance
// @Description Report the account's balance, always derived from its log
// @Tags accounts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Account ID"
// @Success 200 {object} object{accountId=string,balance=int64}
// @Failure 404 {object} ErrorResponse
// @Router /accounts/{id}/balance [get]
func (s *AccountService) GetBalance(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")

	balance, err := s.store.Balance(accountID)
	if err != nil {
		SendErrorResponse(w, err.Error(), StatusForError(err), nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"accountId": accountID,
		"balance":   balance,
	})
}

// GetTransactions returns the account's log, most recent first
// @Summary Get transaction log
// @Description Return the account's transaction entries, newest first
// @Tags accounts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Account ID"
// @Success 200 {object} object{transactions=[]models.TransactionEntry,count=int}
// @Failure 404 {object} ErrorResponse
// @Router /accounts/{id}/transactions [get]
func (s *AccountService) GetTransactions(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")

	entries, err := s.store.Log(accountID)
	if err != nil {
		SendErrorResponse(w, err.Error(), StatusForError(err), nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"transactions": entries,
		"count":        len(entries),
	})
}

// AllTransactions returns every account's entries for the admin view
// @Summary All transactions
// @Description Flatten every account's log, newest first
// @Tags accounts
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{transactions=[]models.TransactionEntry,count=int}
// @Router /transactions [get]
func (s *AccountService) AllTransactions(w http.ResponseWriter, r *http.Request) {
	entries := s.store.AllTransactions()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"transactions": entries,
		"count":        len(entries),
	})
}

// Credit grants tokens to an account
// @Summary Credit tokens
// @Description Append a credit entry and raise the balance
// @Tags accounts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Account ID"
// @Param request body amountRequest true "Credit amount"
// @Success 200 {object} models.TransactionEntry
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /accounts/{id}/credit [post]
func (s *AccountService) Credit(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")

	var req amountRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Description == "" {
		req.Description = "Tokens added by admin"
	}

	entry, err := s.store.Credit(r.Context(), accountID, req.Amount, req.Description)
	if err != nil {
		SendErrorResponse(w, err.Error(), StatusForError(err), nil)
		return
	}

	s.audit.LogMutation(accountID, entry.ID, string(entry.Direction), entry.Amount)
	log.Printf("[ACCOUNT] Credited %d tokens to %s", req.Amount, accountID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entry)
}

// Spend debits the account and issues the signed QR payload
// @Summary Spend tokens
// @Description Debit the account and return the signed, transportable QR payload
// @Tags accounts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Account ID"
// @Param request body amountRequest true "Debit amount"
// @Success 200 {object} object{entry=models.TransactionEntry,qrData=string,qrImage=string}
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /accounts/{id}/spend [post]
func (s *AccountService) Spend(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")

	var req amountRequest
	if !s.decode(w, r, &req) {
		return
	}

	entry, err := s.store.Debit(r.Context(), accountID, req.Amount, req.Description)
	if err != nil {
		SendErrorResponse(w, err.Error(), StatusForError(err), nil)
		return
	}
	s.audit.LogMutation(accountID, entry.ID, string(entry.Direction), entry.Amount)

	account, err := s.store.Get(accountID)
	if err != nil {
		SendErrorResponse(w, err.Error(), StatusForError(err), nil)
		return
	}

	payload := s.buildPayload(account, entry)
	qrData, err := s.codec.Encode(payload)
	if err != nil {
		SendErrorResponse(w, "Failed to encode payload", http.StatusInternalServerError, nil)
		return
	}
	qrImage, err := s.codec.RenderPNG(payload)
	if err != nil {
		log.Printf("[ACCOUNT] QR rendering failed for %s: %v", accountID, err)
	}

	log.Printf("[ACCOUNT] Debited %d tokens from %s, payload issued", req.Amount, accountID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"entry":   entry,
		"qrData":  qrData,
		"qrImage": qrImage,
	})
}

// Habits summarizes the account's debit history
// @Summary Spending habits
// @Description Digest of purchase count, average amount and daily frequency
// @Tags accounts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Account ID"
// @Success 200 {object} object{summary=string}
// @Failure 404 {object} ErrorResponse
// @Router /accounts/{id}/habits [get]
func (s *AccountService) Habits(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")

	entries, err := s.store.Log(accountID)
	if err != nil {
		SendErrorResponse(w, err.Error(), StatusForError(err), nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"summary": spendingHabits(entries)})
}

func (s *AccountService) buildPayload(account *models.Account, entry *models.TransactionEntry) *models.QrPayload {
	issuedAt := account.LastUpdated.UTC().Format(time.RFC3339Nano)
	balance := account.Balance
	return &models.QrPayload{
		SubjectExternalID: account.ExternalID,
		IssuedAt:          issuedAt,
		Signature:         s.signer.Sign(account.ExternalID, issuedAt),
		DisplayName:       account.DisplayName,
		BalanceAfter:      &balance,
		Transaction: &models.TransactionSummary{
			Amount:      entry.Amount,
			Description: entry.Description,
		},
	}
}

// spendingHabits mirrors the suggestion-input digest: purchase count,
// average spend, and rough daily frequency since the oldest debit.
func spendingHabits(entries []models.TransactionEntry) string {
	var debits []models.TransactionEntry
	for _, e := range entries {
		if e.Direction == models.DirectionDebit {
			debits = append(debits, e)
		}
	}
	if len(debits) < 3 {
		return "Not enough spending history to make a suggestion. Please make a few more purchases."
	}

	var total int64
	for _, e := range debits {
		total += e.Amount
	}
	avg := float64(total) / float64(len(debits))

	oldest := debits[len(debits)-1].Timestamp
	days := time.Since(oldest).Hours() / 24
	if days <= 0 {
		days = 1
	}
	frequency := float64(len(debits)) / days

	return fmt.Sprintf("User has made %d purchases. Average purchase amount is %.2f tokens. They spend tokens approximately %.1f times a day.",
		len(debits), avg, frequency)
}

func (s *AccountService) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return false
	}
	if err := s.validator.ValidateStruct(dst); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return false
	}
	return true
}
