package scan

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/subhoplz/TOKEN-FOR-CANTEEN/internal/models"
	"github.com/subhoplz/TOKEN-FOR-CANTEEN/internal/qr"
	"github.com/subhoplz/TOKEN-FOR-CANTEEN/internal/store"
	"github.com/subhoplz/TOKEN-FOR-CANTEEN/internal/token"
)

// Result is what the vendor UI gets back from a scan: the decoded payload,
// the locally cached account it refers to, and the signature verdict.
type Result struct {
	Payload        *models.QrPayload `json:"payload"`
	Account        *models.Account   `json:"account"`
	SignatureValid bool              `json:"signature_valid"`
}

// Validator checks a scanned payload against the local account cache. The
// three failure kinds are independent so the UI can present them
// differently: malformed code, unknown subject needing sync, and a tampered
// signature that demands an operator decision.
type Validator struct {
	codec  *qr.Codec
	signer token.Signer
	store  *store.AccountStore
}

func NewValidator(codec *qr.Codec, signer token.Signer, accounts *store.AccountStore) *Validator {
	return &Validator{codec: codec, signer: signer, store: accounts}
}

func (v *Validator) Validate(raw string) (*Result, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: empty scan", models.ErrMalformedPayload)
	}

	payload, err := v.codec.Decode(raw)
	if err != nil {
		// No account lookup on a malformed payload.
		return nil, err
	}

	account, err := v.store.ByExternalID(payload.SubjectExternalID)
	if err != nil {
		log.Printf("[SCAN] Subject %s not in local cache, device needs sync", payload.SubjectExternalID)
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownSubject, payload.SubjectExternalID)
	}

	result := &Result{
		Payload: payload,
		Account: account,
	}
	if !v.signer.Verify(payload.SubjectExternalID, payload.IssuedAt, payload.Signature) {
		log.Printf("[SCAN] Signature mismatch for subject %s", payload.SubjectExternalID)
		// The result still carries the account so the operator sees who the
		// payload claims to be while deciding whether to override.
		return result, models.ErrInvalidSignature
	}
	result.SignatureValid = true
	return result, nil
}

// Deduct applies the meal debit for a validated scan. A failed signature
// check blocks the deduction unless the operator explicitly overrides.
func (v *Validator) Deduct(ctx context.Context, result *Result, amount int64, description string, override bool) (*models.TransactionEntry, error) {
	if !result.SignatureValid && !override {
		return nil, models.ErrInvalidSignature
	}
	if !result.SignatureValid && override {
		log.Printf("[SCAN] Operator override: deducting despite invalid signature for %s", result.Account.ID)
	}
	return v.store.Debit(ctx, result.Account.ID, amount, description)
}
