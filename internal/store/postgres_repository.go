/**
 * @description
 * This file provides the PostgreSQL implementation of the AccountStore and
 * LedgerStore interfaces. It contains all the SQL needed by the transfer
 * engine and the surrounding API: account lookups, the conditional balance
 * update, unique account-number generation, and the append-only ledger.
 *
 * @dependencies
 * - context, time, errors: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sbkbank/transfer-service/internal/domain"
)

// PostgresRepository is a concrete implementation of AccountStore and
// LedgerStore for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const accountColumns = "id, user_id, account_number, account_type, balance, daily_limit, is_active, created_at"

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var a domain.Account
	err := row.Scan(&a.ID, &a.UserID, &a.AccountNumber, &a.Type, &a.Balance, &a.DailyLimit, &a.IsActive, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &a, nil
}

// FindActiveByOwner returns the user's single active account.
func (r *PostgresRepository) FindActiveByOwner(ctx context.Context, userID uuid.UUID) (*domain.Account, error) {
	query := "SELECT " + accountColumns + " FROM accounts WHERE user_id = $1 AND is_active = TRUE"
	return scanAccount(r.db.QueryRow(ctx, query, userID))
}

// FindActiveByAccountNumber resolves an account number to an active account.
func (r *PostgresRepository) FindActiveByAccountNumber(ctx context.Context, number string) (*domain.Account, error) {
	query := "SELECT " + accountColumns + " FROM accounts WHERE account_number = $1 AND is_active = TRUE"
	return scanAccount(r.db.QueryRow(ctx, query, number))
}

// FindByAccountNumber resolves an account number regardless of the active flag.
func (r *PostgresRepository) FindByAccountNumber(ctx context.Context, number string) (*domain.Account, error) {
	query := "SELECT " + accountColumns + " FROM accounts WHERE account_number = $1"
	return scanAccount(r.db.QueryRow(ctx, query, number))
}

// AtomicAdjustBalance applies delta to the account's balance in one
// conditional UPDATE. The `balance + delta >= 0` guard makes an overdraw
// impossible at the storage layer regardless of what the caller checked
// beforehand; a non-applying update on an existing account is reported as
// ErrBalanceConflict so the engine can re-validate and retry.
func (r *PostgresRepository) AtomicAdjustBalance(ctx context.Context, accountID uuid.UUID, delta int64) error {
	tag, err := r.db.Exec(ctx,
		"UPDATE accounts SET balance = balance + $1 WHERE id = $2 AND balance + $1 >= 0",
		delta, accountID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)", accountID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrAccountNotFound
	}
	return ErrBalanceConflict
}

// GenerateUniqueAccountNumber draws random candidates until one is absent
// from the accounts table. The returned number is only guaranteed unique at
// the time of the call; CreateAccount still enforces the unique index.
func (r *PostgresRepository) GenerateUniqueAccountNumber(ctx context.Context) (string, error) {
	for i := 0; i < generateAttempts; i++ {
		candidate := randomAccountNumber()
		var exists bool
		if err := r.db.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM accounts WHERE account_number = $1)", candidate).Scan(&exists); err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("exhausted %d account number candidates", generateAttempts)
}

// CreateAccount inserts the account. The unique index on account_number is
// the source of truth for uniqueness; a conflicting insert surfaces as
// ErrAccountNumberTaken so the caller can regenerate and retry.
func (r *PostgresRepository) CreateAccount(ctx context.Context, account *domain.Account) error {
	query := `
		INSERT INTO accounts (id, user_id, account_number, account_type, balance, daily_limit, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (account_number) DO NOTHING
	`
	tag, err := r.db.Exec(ctx, query,
		account.ID, account.UserID, account.AccountNumber, account.Type,
		account.Balance, account.DailyLimit, account.IsActive, account.CreatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNumberTaken
	}
	return nil
}

// DeactivateAccount clears the active flag. Idempotent: deactivating an
// already-inactive account succeeds.
func (r *PostgresRepository) DeactivateAccount(ctx context.Context, accountNumber string) error {
	tag, err := r.db.Exec(ctx,
		"UPDATE accounts SET is_active = FALSE WHERE account_number = $1", accountNumber)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// UpdateDailyLimit replaces the account's daily outgoing ceiling.
func (r *PostgresRepository) UpdateDailyLimit(ctx context.Context, accountNumber string, limit int64) error {
	tag, err := r.db.Exec(ctx,
		"UPDATE accounts SET daily_limit = $1 WHERE account_number = $2", limit, accountNumber)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// Append writes one immutable ledger row. Rows are never updated or deleted.
func (r *PostgresRepository) Append(ctx context.Context, tx *domain.Transaction) (uuid.UUID, error) {
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	query := `
		INSERT INTO transactions (id, from_account, to_account, amount, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.Exec(ctx, query, tx.ID, tx.FromAccount, tx.ToAccount, tx.Amount, tx.Timestamp)
	if err != nil {
		return uuid.Nil, err
	}
	return tx.ID, nil
}

// QueryByAccountAndWindow returns ledger rows touching the account in
// [start, end), newest first. The (from_account, created_at) and
// (to_account, created_at) indexes keep the daily-limit aggregation cheap.
func (r *PostgresRepository) QueryByAccountAndWindow(ctx context.Context, accountNumber string, direction domain.LedgerDirection, start, end time.Time) ([]domain.Transaction, error) {
	var where string
	switch direction {
	case domain.DirectionOutgoing:
		where = "from_account = $1"
	case domain.DirectionIncoming:
		where = "to_account = $1"
	case domain.DirectionBoth:
		where = "(from_account = $1 OR to_account = $1)"
	default:
		return nil, fmt.Errorf("unknown ledger direction %q", direction)
	}

	query := "SELECT id, from_account, to_account, amount, created_at FROM transactions WHERE " +
		where + " AND created_at >= $2 AND created_at < $3 ORDER BY created_at DESC"
	rows, err := r.db.Query(ctx, query, accountNumber, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		if err := rows.Scan(&t.ID, &t.FromAccount, &t.ToAccount, &t.Amount, &t.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
