/**
 * @description
 * This file defines the store adapter interfaces the transfer engine depends
 * on, together with the sentinel errors the adapters surface. The engine only
 * ever talks to these interfaces; the concrete Postgres and in-memory
 * implementations live alongside them in this package.
 *
 * @dependencies
 * - context, errors, time: Standard Go libraries.
 * - github.com/google/uuid: Entity identifiers.
 * - internal/domain: Typed records crossing the store boundary.
 */

package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sbkbank/transfer-service/internal/domain"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountNumberTaken indicates an insert lost the uniqueness race on
	// the account number.
	ErrAccountNumberTaken = errors.New("account number already exists")
	// ErrBalanceConflict indicates a conditional balance update did not apply
	// because it would have driven the balance negative. The engine treats it
	// as a lost race and retries with a full precondition re-check.
	ErrBalanceConflict = errors.New("balance update conflict")
)

// AccountStore is the account persistence boundary of the transfer engine.
// Balance fields may only be mutated through AtomicAdjustBalance, never
// through a read-modify-write pair performed outside the store.
type AccountStore interface {
	// FindActiveByOwner returns the owner's single active account.
	FindActiveByOwner(ctx context.Context, userID uuid.UUID) (*domain.Account, error)
	// FindActiveByAccountNumber resolves an account number to an active account.
	FindActiveByAccountNumber(ctx context.Context, number string) (*domain.Account, error)
	// FindByAccountNumber resolves an account number regardless of active flag.
	FindByAccountNumber(ctx context.Context, number string) (*domain.Account, error)
	// AtomicAdjustBalance applies delta to the account balance as one
	// conditional update. It returns ErrBalanceConflict instead of applying a
	// delta that would leave the balance negative.
	AtomicAdjustBalance(ctx context.Context, accountID uuid.UUID, delta int64) error
	// GenerateUniqueAccountNumber returns a prefix + 9-digit candidate absent
	// from the store at the time of the call.
	GenerateUniqueAccountNumber(ctx context.Context) (string, error)
	// CreateAccount inserts a new account, enforcing account-number uniqueness.
	CreateAccount(ctx context.Context, account *domain.Account) error
	// DeactivateAccount clears the active flag. Deactivated accounts keep
	// their balance and ledger rows but can no longer send or receive.
	DeactivateAccount(ctx context.Context, accountNumber string) error
	// UpdateDailyLimit replaces the account's outgoing ceiling per UTC day.
	UpdateDailyLimit(ctx context.Context, accountNumber string, limit int64) error
}

// LedgerStore is the append-only transaction ledger boundary.
type LedgerStore interface {
	// Append writes one immutable ledger row and returns its assigned id.
	Append(ctx context.Context, tx *domain.Transaction) (uuid.UUID, error)
	// QueryByAccountAndWindow returns the ledger rows touching the account in
	// [start, end), newest first, filtered by direction.
	QueryByAccountAndWindow(ctx context.Context, accountNumber string, direction domain.LedgerDirection, start, end time.Time) ([]domain.Transaction, error)
}
