package models

// TransactionSummary is the display-only description of the debit a payload
// was issued for. It is not covered by the signature.
type TransactionSummary struct {
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
}

// QrPayload is the portable, signed representation of a debit. Only
// employee_id and timestamp are covered by device_signature; name, balance
// and transaction exist for vendor-side display and must never drive an
// authorization decision.
//
// Field order matters: the codec serializes in declaration order so the
// signer's input string is reconstructed unambiguously on both sides.
type QrPayload struct {
	SubjectExternalID string              `json:"employee_id"`
	IssuedAt          string              `json:"timestamp"` // ISO 8601
	Signature         string              `json:"device_signature"`
	DisplayName       string              `json:"name,omitempty"`
	BalanceAfter      *int64              `json:"balance,omitempty"`
	Transaction       *TransactionSummary `json:"transaction,omitempty"`
}
