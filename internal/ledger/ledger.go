package ledger

import (
	"context"

	"github.com/subhoplz/TOKEN-FOR-CANTEEN/internal/models"
)

// RemoteAccount is the system of record's view of one account: authoritative
// balance plus the full entry log, as read during a reconciliation cycle.
type RemoteAccount struct {
	ID      string
	Balance int64
	Version int
	Exists  bool
	Entries []models.TransactionEntry
}

// EntryIDs returns the set of entry ids already present remotely, the
// reconciler's deduplication input.
func (r *RemoteAccount) EntryIDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(r.Entries))
	for _, e := range r.Entries {
		ids[e.ID] = struct{}{}
	}
	return ids
}

// RemoteLedger is the authoritative ledger collaborator. Both operations can
// fail transiently; callers bound them with a context deadline and treat
// failure as a connectivity problem, never as data loss.
type RemoteLedger interface {
	// FetchAccount reads the full remote record. A missing account is not an
	// error: it comes back with Exists=false and a zero balance.
	FetchAccount(ctx context.Context, accountID string) (*RemoteAccount, error)

	// CommitEntries atomically appends the entries and writes the recomputed
	// balance. Re-committing an already-present entry id is a no-op, so a
	// retried cycle cannot double-apply.
	CommitEntries(ctx context.Context, account *models.Account, entries []models.TransactionEntry, newBalance int64, version int) error
}
