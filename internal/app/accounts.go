/**
 * @description
 * Account lifecycle and reporting logic that surrounds the transfer engine:
 * opening accounts with type-dependent defaults, user-facing transaction
 * history, and the admin account view.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sbkbank/transfer-service/internal/domain"
	"github.com/sbkbank/transfer-service/internal/store"
)

// OpeningBalance is credited to every new account, in paise.
const OpeningBalance int64 = 500_000 // 5000.00

// defaultDailyLimits maps each account type to its outgoing ceiling per UTC
// day, in paise. Fixed-deposit accounts get a zero limit, consistent with
// the rule that they never originate transfers.
var defaultDailyLimits = map[domain.AccountType]int64{
	domain.AccountTypeSavings:      5_000_000,  // 50000.00
	domain.AccountTypeCurrent:      20_000_000, // 200000.00
	domain.AccountTypeFixedDeposit: 0,
}

// createAttempts bounds regeneration when an account-number insert loses the
// uniqueness race.
const createAttempts = 3

// OpenAccount creates an active account of the given type for userID, with
// the type's default daily limit and the standard opening balance.
func (s *Service) OpenAccount(ctx context.Context, userID uuid.UUID, accountType domain.AccountType) (*domain.Account, error) {
	if !accountType.Valid() {
		return nil, ErrInvalidAccountType
	}

	for attempt := 0; attempt < createAttempts; attempt++ {
		number, err := s.accounts.GenerateUniqueAccountNumber(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: account number generation: %v", ErrStorageUnavailable, err)
		}
		account := &domain.Account{
			ID:            uuid.New(),
			UserID:        userID,
			AccountNumber: number,
			Type:          accountType,
			Balance:       OpeningBalance,
			DailyLimit:    defaultDailyLimits[accountType],
			IsActive:      true,
			CreatedAt:     time.Now().UTC(),
		}
		err = s.accounts.CreateAccount(ctx, account)
		if err == nil {
			return account, nil
		}
		// The generated number was taken between generation and insert;
		// regenerate and try again.
		if errors.Is(err, store.ErrAccountNumberTaken) {
			continue
		}
		return nil, fmt.Errorf("%w: account insert: %v", ErrStorageUnavailable, err)
	}
	return nil, fmt.Errorf("%w: account number collisions on %d attempts", ErrStorageUnavailable, createAttempts)
}

// History returns the caller's ledger rows newest first, each annotated as a
// debit or credit from the caller's point of view.
func (s *Service) History(ctx context.Context, userID uuid.UUID) ([]domain.HistoryEntry, error) {
	account, err := s.accounts.FindActiveByOwner(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return nil, ErrSenderAccountNotFound
		}
		return nil, fmt.Errorf("%w: account lookup: %v", ErrStorageUnavailable, err)
	}
	rows, err := s.ledger.QueryByAccountAndWindow(ctx, account.AccountNumber, domain.DirectionBoth, time.Time{}, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("%w: ledger query: %v", ErrStorageUnavailable, err)
	}

	entries := make([]domain.HistoryEntry, 0, len(rows))
	for _, tx := range rows {
		entry := domain.HistoryEntry{Amount: tx.Amount, Time: tx.Timestamp}
		if tx.FromAccount == account.AccountNumber {
			entry.Type = "debit"
			entry.CounterpartyAccount = tx.ToAccount
		} else {
			entry.Type = "credit"
			entry.CounterpartyAccount = tx.FromAccount
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// DeactivateAccount closes the account identified by accountNumber. The
// balance and ledger rows survive; the account just stops sending and
// receiving. Re-deactivating an already-closed account succeeds.
func (s *Service) DeactivateAccount(ctx context.Context, accountNumber string) error {
	if err := s.accounts.DeactivateAccount(ctx, accountNumber); err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return ErrReceiverAccountNotFound
		}
		return fmt.Errorf("%w: account deactivation: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// UpdateDailyLimit replaces the account's per-day outgoing ceiling and
// returns the updated account. A zero limit blocks all outgoing transfers;
// negative limits are rejected.
func (s *Service) UpdateDailyLimit(ctx context.Context, accountNumber string, limit int64) (*domain.Account, error) {
	if limit < 0 {
		return nil, ErrInvalidDailyLimit
	}
	if err := s.accounts.UpdateDailyLimit(ctx, accountNumber, limit); err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return nil, ErrReceiverAccountNotFound
		}
		return nil, fmt.Errorf("%w: daily limit update: %v", ErrStorageUnavailable, err)
	}
	account, err := s.accounts.FindByAccountNumber(ctx, accountNumber)
	if err != nil {
		return nil, fmt.Errorf("%w: account re-read: %v", ErrStorageUnavailable, err)
	}
	return account, nil
}

// AccountView bundles an account with its full ledger history for the admin
// lookup endpoint.
type AccountView struct {
	Account *domain.Account      `json:"account"`
	Ledger  []domain.Transaction `json:"transactions"`
}

// InspectAccount returns any account (active or not) by number together with
// every ledger row that touches it, newest first.
func (s *Service) InspectAccount(ctx context.Context, accountNumber string) (*AccountView, error) {
	account, err := s.accounts.FindByAccountNumber(ctx, accountNumber)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return nil, ErrReceiverAccountNotFound
		}
		return nil, fmt.Errorf("%w: account lookup: %v", ErrStorageUnavailable, err)
	}
	rows, err := s.ledger.QueryByAccountAndWindow(ctx, accountNumber, domain.DirectionBoth, time.Time{}, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("%w: ledger query: %v", ErrStorageUnavailable, err)
	}
	return &AccountView{Account: account, Ledger: rows}, nil
}
