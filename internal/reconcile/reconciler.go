package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/subhoplz/TOKEN-FOR-CANTEEN/internal/audit"
	"github.com/subhoplz/TOKEN-FOR-CANTEEN/internal/ledger"
	"github.com/subhoplz/TOKEN-FOR-CANTEEN/internal/models"
	"github.com/subhoplz/TOKEN-FOR-CANTEEN/internal/store"
)

// Reconciler merges offline-originated pending entries into the system of
// record when connectivity returns. Each account runs the cycle
// Idle -> Fetching -> Merging -> Recomputing -> Committing -> Idle
// independently; merging deduplicates strictly by entry id, which makes the
// whole protocol idempotent under retry and safe to abort at any point.
type Reconciler struct {
	store       *store.AccountStore
	remote      ledger.RemoteLedger
	audit       *audit.Logger
	timeout     time.Duration
	maxParallel int

	online  atomic.Bool
	signals chan struct{}
}

func NewReconciler(accounts *store.AccountStore, remote ledger.RemoteLedger, auditLogger *audit.Logger, timeout time.Duration) *Reconciler {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Reconciler{
		store:       accounts,
		remote:      remote,
		audit:       auditLogger,
		timeout:     timeout,
		maxParallel: 4,
		signals:     make(chan struct{}, 1),
	}
}

// SetOnline records the connectivity signal pushed from outside the core.
// A transition to online schedules a reconciliation run.
func (r *Reconciler) SetOnline(online bool) {
	was := r.online.Swap(online)
	if online && !was {
		log.Printf("[RECONCILE] Connectivity restored, scheduling run")
		select {
		case r.signals <- struct{}{}:
		default:
		}
	}
	if !online && was {
		log.Printf("[RECONCILE] Working offline, mutations will queue locally")
	}
}

func (r *Reconciler) Online() bool {
	return r.online.Load()
}

// Start runs the background worker until ctx is canceled. Runs are triggered
// by connectivity transitions and by Trigger.
func (r *Reconciler) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-r.signals:
				if err := r.Run(ctx); err != nil {
					log.Printf("[RECONCILE] Run finished with errors: %v", err)
				}
			}
		}
	}()
}

// Trigger schedules a run without changing the connectivity state.
func (r *Reconciler) Trigger() {
	select {
	case r.signals <- struct{}{}:
	default:
	}
}

// Run reconciles every account with pending entries. Accounts are
// independent, so they proceed concurrently up to maxParallel. The first
// error per account is collected; connectivity errors leave entries pending
// for the next run.
func (r *Reconciler) Run(ctx context.Context) error {
	if !r.online.Load() {
		return nil
	}
	if r.remote == nil {
		return fmt.Errorf("%w: no remote ledger configured", models.ErrConnectivity)
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	sem := make(chan struct{}, r.maxParallel)

	for _, account := range r.store.Accounts() {
		if len(account.PendingEntries()) == 0 {
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(id string) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := r.ReconcileAccount(ctx, id); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("account %s: %w", id, err))
				mu.Unlock()
			}
		}(account.ID)
	}
	wg.Wait()

	return errors.Join(errs...)
}

// ReconcileAccount runs one full cycle for a single account.
func (r *Reconciler) ReconcileAccount(ctx context.Context, accountID string) error {
	account, err := r.store.Get(accountID)
	if err != nil {
		return err
	}

	pending := account.PendingEntries()
	if len(pending) == 0 {
		return nil // Idle
	}

	// Fetching. A deadline turns a hung remote into a connectivity failure
	// instead of a stuck cycle.
	fetchCtx, cancel := context.WithTimeout(ctx, r.timeout)
	remote, err := r.remote.FetchAccount(fetchCtx, accountID)
	cancel()
	if err != nil {
		r.audit.LogError(accountID, err)
		return err
	}

	// Merging: drop anything the remote log already has. Entries that made
	// it remotely on an aborted earlier cycle only need their local flag
	// flipped.
	remoteIDs := remote.EntryIDs()
	var newEntries []models.TransactionEntry
	var alreadyRemote []string
	for _, e := range pending {
		if _, dup := remoteIDs[e.ID]; dup {
			alreadyRemote = append(alreadyRemote, e.ID)
			continue
		}
		newEntries = append(newEntries, e)
	}
	if len(alreadyRemote) > 0 {
		log.Printf("[RECONCILE] Account %s: %d entries already remote, marking synced", accountID, len(alreadyRemote))
		if err := r.store.MarkSynced(ctx, accountID, alreadyRemote); err != nil {
			return err
		}
	}
	if len(newEntries) == 0 {
		return nil
	}

	// Recomputing: fold the new entries onto the remote balance in creation
	// order. A fold that dips negative means a debit was accepted somewhere
	// without its precondition; that is an operator problem, not ours to
	// paper over.
	sort.Slice(newEntries, func(i, j int) bool {
		return newEntries[i].Timestamp.Before(newEntries[j].Timestamp)
	})
	balance := remote.Balance
	for _, e := range newEntries {
		balance += e.Signed()
		if balance < 0 {
			err := fmt.Errorf("%w: entry %s folds balance to %d", models.ErrDataIntegrity, e.ID, balance)
			r.audit.LogIntegrityFailure(accountID, err)
			return err
		}
	}

	// Committing. Entries cross the wire already flagged synced; a failure
	// anywhere before the local flip leaves them pending, and the id-dedup
	// step absorbs the replay.
	committed := make([]models.TransactionEntry, len(newEntries))
	copy(committed, newEntries)
	for i := range committed {
		committed[i].SyncState = models.SyncSynced
	}

	commitCtx, cancel := context.WithTimeout(ctx, r.timeout)
	err = r.remote.CommitEntries(commitCtx, account, committed, balance, remote.Version)
	cancel()
	if err != nil {
		r.audit.LogError(accountID, err)
		return err
	}

	ids := make([]string, len(newEntries))
	for i, e := range newEntries {
		ids[i] = e.ID
	}
	if err := r.store.MarkSynced(ctx, accountID, ids); err != nil {
		return err
	}

	r.audit.LogReconcile(accountID, len(newEntries), balance)
	log.Printf("[RECONCILE] Account %s: merged %d entries, remote balance %d", accountID, len(newEntries), balance)
	return nil // Idle
}

// PendingCounts reports the offline queue depth per account, for the sync
// status surface.
func (r *Reconciler) PendingCounts() map[string]int {
	counts := make(map[string]int)
	for _, a := range r.store.Accounts() {
		if n := len(a.PendingEntries()); n > 0 {
			counts[a.ID] = n
		}
	}
	return counts
}
