package models

import (
	"time"
)

type Role string

const (
	RoleCardholder Role = "cardholder"
	RoleVendor     Role = "vendor"
	RoleAdmin      Role = "admin"
)

type Direction string

const (
	DirectionCredit Direction = "credit"
	DirectionDebit  Direction = "debit"
)

type SyncState string

const (
	SyncPending SyncState = "pending"
	SyncSynced  SyncState = "synced"
)

// TransactionEntry is one ledger line item. Entries are created exactly once
// and never mutated afterwards except for SyncState flipping pending -> synced.
type TransactionEntry struct {
	ID          string    `json:"id" db:"id"`
	Direction   Direction `json:"direction" db:"direction"`
	Amount      int64     `json:"amount" db:"amount"` // magnitude only, always > 0
	Description string    `json:"description" db:"description"`
	Timestamp   time.Time `json:"timestamp" db:"created_at"`
	SyncState   SyncState `json:"sync_state" db:"sync_state"`
}

// Signed returns the entry's contribution to the balance fold: credits
// positive, debits negative.
func (e TransactionEntry) Signed() int64 {
	if e.Direction == DirectionDebit {
		return -e.Amount
	}
	return e.Amount
}

// Account holds a token balance and its append-only transaction log.
// The log is kept most-recent-first; Balance must always equal the fold of
// the log and is recomputed from it, never tracked independently.
type Account struct {
	ID          string             `json:"id"`
	ExternalID  string             `json:"employee_id"`
	DisplayName string             `json:"name"`
	Role        Role               `json:"role"`
	Credential  string             `json:"credential,omitempty"` // argon2id hash, cardholders only
	Balance     int64              `json:"balance"`
	Log         []TransactionEntry `json:"transactions"`
	LastUpdated time.Time          `json:"last_updated"`
}

// FoldBalance derives the balance from the log.
func (a *Account) FoldBalance() int64 {
	var total int64
	for _, e := range a.Log {
		total += e.Signed()
	}
	return total
}

// PendingEntries returns the account's offline queue content: log entries not
// yet merged into the system of record, oldest first so the reconciler folds
// them in creation order.
func (a *Account) PendingEntries() []TransactionEntry {
	var pending []TransactionEntry
	for i := len(a.Log) - 1; i >= 0; i-- {
		if a.Log[i].SyncState == SyncPending {
			pending = append(pending, a.Log[i])
		}
	}
	return pending
}
