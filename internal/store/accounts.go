package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/subhoplz/TOKEN-FOR-CANTEEN/internal/models"
)

const (
	accountsKey = "canteen:accounts"
	sessionKey  = "canteen:session"
)

// AccountStore holds the device's cached copy of every account and its
// transaction log, and exposes the atomic credit/debit operations. All
// mutations are applied locally first (entries start out pending); the
// reconciler later merges them into the system of record.
//
// Mutations on a single account are serialized by a per-account mutex so the
// check-balance-then-append step is atomic. Different accounts never contend.
type AccountStore struct {
	mu       sync.RWMutex
	accounts map[string]*models.Account
	locks    map[string]*sync.Mutex
	storage  Storage
}

func NewAccountStore(storage Storage) *AccountStore {
	return &AccountStore{
		accounts: make(map[string]*models.Account),
		locks:    make(map[string]*sync.Mutex),
		storage:  storage,
	}
}

// Load restores the accounts collection from durable storage. When the store
// is empty the provided seed accounts are written instead.
func (s *AccountStore) Load(ctx context.Context, seed []models.Account) error {
	data, err := s.storage.Get(ctx, accountsKey)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if data != nil {
		var loaded []models.Account
		if err := json.Unmarshal(data, &loaded); err != nil {
			return fmt.Errorf("corrupt accounts blob: %w", err)
		}
		for i := range loaded {
			a := loaded[i]
			a.Balance = a.FoldBalance()
			s.accounts[a.ID] = &a
			s.locks[a.ID] = &sync.Mutex{}
		}
		log.Printf("[STORE] Loaded %d accounts from local storage", len(loaded))
		return nil
	}

	for i := range seed {
		a := seed[i]
		a.Balance = a.FoldBalance()
		s.accounts[a.ID] = &a
		s.locks[a.ID] = &sync.Mutex{}
	}
	log.Printf("[STORE] Seeded %d initial accounts", len(seed))
	return s.persistLocked(ctx)
}

// persistLocked writes the whole collection back as one blob. Callers must
// hold s.mu.
func (s *AccountStore) persistLocked(ctx context.Context) error {
	all := make([]models.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		all = append(all, *a)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	data, err := json.Marshal(all)
	if err != nil {
		return err
	}
	return s.storage.Set(ctx, accountsKey, data)
}

func (s *AccountStore) persist(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.persistLocked(ctx)
}

func (s *AccountStore) lockFor(id string) (*sync.Mutex, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.locks[id]
	return l, ok
}

// Credit appends a credit entry and raises the balance. Amount must be
// positive; nothing else can fail once that holds.
func (s *AccountStore) Credit(ctx context.Context, accountID string, amount int64, description string) (*models.TransactionEntry, error) {
	if amount <= 0 {
		return nil, models.ErrInvalidAmount
	}

	l, ok := s.lockFor(accountID)
	if !ok {
		return nil, models.ErrAccountNotFound
	}
	l.Lock()
	defer l.Unlock()

	entry := models.TransactionEntry{
		ID:          uuid.NewString(),
		Direction:   models.DirectionCredit,
		Amount:      amount,
		Description: description,
		Timestamp:   time.Now().UTC(),
		SyncState:   models.SyncPending,
	}
	if !s.append(accountID, entry) {
		return nil, models.ErrAccountNotFound
	}

	if err := s.persist(ctx); err != nil {
		log.Printf("[STORE] Failed to persist after credit on %s: %v", accountID, err)
	}
	return &entry, nil
}

// Debit appends a debit entry after checking the balance under the account
// lock. On failure nothing changes and the specific kind is returned so
// callers can tell bad input from insufficient funds.
func (s *AccountStore) Debit(ctx context.Context, accountID string, amount int64, description string) (*models.TransactionEntry, error) {
	if amount <= 0 {
		return nil, models.ErrInvalidAmount
	}

	l, ok := s.lockFor(accountID)
	if !ok {
		return nil, models.ErrAccountNotFound
	}
	l.Lock()
	defer l.Unlock()

	if balance, _ := s.balance(accountID); balance < amount {
		return nil, models.ErrInsufficientBalance
	}

	entry := models.TransactionEntry{
		ID:          uuid.NewString(),
		Direction:   models.DirectionDebit,
		Amount:      amount,
		Description: description,
		Timestamp:   time.Now().UTC(),
		SyncState:   models.SyncPending,
	}
	if !s.append(accountID, entry) {
		return nil, models.ErrAccountNotFound
	}

	if err := s.persist(ctx); err != nil {
		log.Printf("[STORE] Failed to persist after debit on %s: %v", accountID, err)
	}
	return &entry, nil
}

func (s *AccountStore) append(accountID string, entry models.TransactionEntry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return false
	}
	a.Log = append([]models.TransactionEntry{entry}, a.Log...)
	a.Balance = a.FoldBalance()
	a.LastUpdated = entry.Timestamp
	return true
}

func (s *AccountStore) balance(accountID string) (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return 0, false
	}
	return a.FoldBalance(), true
}

// Balance reports the folded balance for the account.
func (s *AccountStore) Balance(accountID string) (int64, error) {
	balance, ok := s.balance(accountID)
	if !ok {
		return 0, models.ErrAccountNotFound
	}
	return balance, nil
}

// Log returns a copy of the account's transaction log, most recent first.
func (s *AccountStore) Log(accountID string) ([]models.TransactionEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return nil, models.ErrAccountNotFound
	}
	out := make([]models.TransactionEntry, len(a.Log))
	copy(out, a.Log)
	return out, nil
}

// Get returns a copy of the account.
func (s *AccountStore) Get(accountID string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return nil, models.ErrAccountNotFound
	}
	cp := *a
	cp.Log = append([]models.TransactionEntry(nil), a.Log...)
	return &cp, nil
}

// ByExternalID resolves the human-facing identifier to an account copy.
func (s *AccountStore) ByExternalID(externalID string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.accounts {
		if a.ExternalID == externalID {
			cp := *a
			cp.Log = append([]models.TransactionEntry(nil), a.Log...)
			return &cp, nil
		}
	}
	return nil, models.ErrAccountNotFound
}

// Accounts lists every cached account, sorted by display name.
func (s *AccountStore) Accounts() []models.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		cp := *a
		cp.Log = append([]models.TransactionEntry(nil), a.Log...)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayName < out[j].DisplayName })
	return out
}

// AllTransactions flattens every account's log, newest first. Administrators
// use this for the global activity view.
func (s *AccountStore) AllTransactions() []models.TransactionEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.TransactionEntry
	for _, a := range s.accounts {
		out = append(out, a.Log...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out
}

// CreateAccount registers a new account with an empty log.
func (s *AccountStore) CreateAccount(ctx context.Context, displayName, externalID string, role models.Role, credentialHash string) (*models.Account, error) {
	a := &models.Account{
		ID:          fmt.Sprintf("%s-%s", role, uuid.NewString()),
		ExternalID:  externalID,
		DisplayName: displayName,
		Role:        role,
		Credential:  credentialHash,
		LastUpdated: time.Now().UTC(),
	}

	s.mu.Lock()
	s.accounts[a.ID] = a
	s.locks[a.ID] = &sync.Mutex{}
	s.mu.Unlock()

	if err := s.persist(ctx); err != nil {
		return nil, err
	}
	cp := *a
	return &cp, nil
}

// EditAccount updates the mutable identity fields.
func (s *AccountStore) EditAccount(ctx context.Context, accountID, displayName, externalID string) error {
	s.mu.Lock()
	a, ok := s.accounts[accountID]
	if !ok {
		s.mu.Unlock()
		return models.ErrAccountNotFound
	}
	a.DisplayName = displayName
	a.ExternalID = externalID
	a.LastUpdated = time.Now().UTC()
	s.mu.Unlock()

	return s.persist(ctx)
}

// DeleteAccount removes a non-privileged account entirely. Administrator
// accounts are protected, matching the original access rules.
func (s *AccountStore) DeleteAccount(ctx context.Context, accountID string) error {
	s.mu.Lock()
	a, ok := s.accounts[accountID]
	if !ok {
		s.mu.Unlock()
		return models.ErrAccountNotFound
	}
	if a.Role == models.RoleAdmin {
		s.mu.Unlock()
		return models.ErrProtectedAccount
	}
	delete(s.accounts, accountID)
	delete(s.locks, accountID)
	s.mu.Unlock()

	if current, err := s.Session(ctx); err == nil && current == accountID {
		s.ClearSession(ctx)
	}
	return s.persist(ctx)
}

// MarkSynced flips the listed entries from pending to synced. Called by the
// reconciler after a successful remote commit; unknown ids are ignored, which
// keeps the operation idempotent.
func (s *AccountStore) MarkSynced(ctx context.Context, accountID string, entryIDs []string) error {
	ids := make(map[string]struct{}, len(entryIDs))
	for _, id := range entryIDs {
		ids[id] = struct{}{}
	}

	s.mu.Lock()
	a, ok := s.accounts[accountID]
	if !ok {
		s.mu.Unlock()
		return models.ErrAccountNotFound
	}
	for i := range a.Log {
		if _, hit := ids[a.Log[i].ID]; hit {
			a.Log[i].SyncState = models.SyncSynced
		}
	}
	s.mu.Unlock()

	return s.persist(ctx)
}

// Session returns the current session subject's account id, or empty when no
// session is active.
func (s *AccountStore) Session(ctx context.Context) (string, error) {
	data, err := s.storage.Get(ctx, sessionKey)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *AccountStore) SetSession(ctx context.Context, accountID string) error {
	return s.storage.Set(ctx, sessionKey, []byte(accountID))
}

func (s *AccountStore) ClearSession(ctx context.Context) error {
	return s.storage.Delete(ctx, sessionKey)
}
