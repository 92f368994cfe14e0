package models

import "errors"

// Failure kinds returned by the core. Callers discriminate with errors.Is;
// none of these are ever raised as panics.
var (
	// ErrInvalidAmount rejects zero or negative credit/debit amounts before
	// anything touches the log.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrInsufficientBalance rejects a debit that would overdraw the account.
	// No state change occurs.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrMalformedPayload means a scanned payload is not parseable or is
	// missing one of the signature-relevant fields.
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrInvalidSignature means the payload parsed but its signature does not
	// verify. The vendor flow must not deduct without an explicit override.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrUnknownSubject means the payload's subject is not present in the
	// local account cache; recoverable once the device syncs.
	ErrUnknownSubject = errors.New("unknown subject")

	// ErrConnectivity marks a transient remote failure. Pending entries stay
	// pending and the reconciler retries on the next connectivity event.
	ErrConnectivity = errors.New("remote ledger unreachable")

	// ErrDataIntegrity marks a merge that produced an impossible state, such
	// as a negative balance after folding. Surfaced to an operator, never
	// auto-resolved.
	ErrDataIntegrity = errors.New("ledger data integrity violation")

	// ErrAccountNotFound is returned for operations on ids absent from the
	// local cache.
	ErrAccountNotFound = errors.New("account not found")

	// ErrProtectedAccount rejects deletion of administrator accounts.
	ErrProtectedAccount = errors.New("administrator accounts cannot be deleted")
)
