package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/subhoplz/TOKEN-FOR-CANTEEN/internal/models"
)

// PostgresLedger is the production system of record. Accounts carry an
// optimistic version column; entry appends are idempotent through the
// primary key on transaction_entries.id.
type PostgresLedger struct {
	db *sql.DB
}

func NewPostgresLedger(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

func (l *PostgresLedger) FetchAccount(ctx context.Context, accountID string) (*RemoteAccount, error) {
	remote := &RemoteAccount{ID: accountID}

	err := l.db.QueryRowContext(ctx, `
		SELECT balance, version FROM accounts WHERE id = $1
	`, accountID).Scan(&remote.Balance, &remote.Version)
	if err == sql.ErrNoRows {
		return remote, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: fetch account %s: %v", models.ErrConnectivity, accountID, err)
	}
	remote.Exists = true

	rows, err := l.db.QueryContext(ctx, `
		SELECT id, direction, amount, description, created_at
		FROM transaction_entries
		WHERE account_id = $1
		ORDER BY created_at ASC
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch entries %s: %v", models.ErrConnectivity, accountID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var e models.TransactionEntry
		if err := rows.Scan(&e.ID, &e.Direction, &e.Amount, &e.Description, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("%w: scan entry: %v", models.ErrConnectivity, err)
		}
		e.SyncState = models.SyncSynced
		remote.Entries = append(remote.Entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: fetch entries %s: %v", models.ErrConnectivity, accountID, err)
	}

	return remote, nil
}

func (l *PostgresLedger) CommitEntries(ctx context.Context, account *models.Account, entries []models.TransactionEntry, newBalance int64, version int) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin commit: %v", models.ErrConnectivity, err)
	}
	defer tx.Rollback()

	if version == 0 {
		if err := l.ensureAccount(ctx, tx, account); err != nil {
			return err
		}
	} else {
		var locked int
		err := tx.QueryRowContext(ctx, `
			SELECT version FROM accounts WHERE id = $1 FOR UPDATE
		`, account.ID).Scan(&locked)
		if err != nil {
			return fmt.Errorf("%w: lock account %s: %v", models.ErrConnectivity, account.ID, err)
		}
		if locked != version {
			return fmt.Errorf("%w: account %s changed during cycle", models.ErrConnectivity, account.ID)
		}
	}

	for _, e := range entries {
		// ON CONFLICT keeps a retried commit from double-inserting an entry
		// that made it through on a previous attempt.
		_, err := tx.ExecContext(ctx, `
			INSERT INTO transaction_entries (id, account_id, direction, amount, description, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO NOTHING
		`, e.ID, account.ID, e.Direction, e.Amount, e.Description, e.Timestamp)
		if err != nil {
			return fmt.Errorf("%w: append entry %s: %v", models.ErrConnectivity, e.ID, err)
		}
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET balance = $1, version = version + 1, updated_at = $2
		WHERE id = $3
	`, newBalance, time.Now().UTC(), account.ID)
	if err != nil {
		return fmt.Errorf("%w: write balance %s: %v", models.ErrConnectivity, account.ID, err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("%w: account %s vanished during commit", models.ErrConnectivity, account.ID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit %s: %v", models.ErrConnectivity, account.ID, err)
	}

	log.Printf("[LEDGER] Committed %d entries for account %s, balance %d", len(entries), account.ID, newBalance)
	return nil
}

func (l *PostgresLedger) ensureAccount(ctx context.Context, tx *sql.Tx, account *models.Account) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO accounts (id, external_id, display_name, role, balance, version, updated_at)
		VALUES ($1, $2, $3, $4, 0, 1, $5)
		ON CONFLICT (id) DO NOTHING
	`, account.ID, account.ExternalID, account.DisplayName, account.Role, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("%w: create account %s: %v", models.ErrConnectivity, account.ID, err)
	}
	return nil
}
