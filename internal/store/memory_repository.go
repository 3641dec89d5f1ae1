/**
 * @description
 * This file provides a mutex-guarded in-memory implementation of the
 * AccountStore and LedgerStore interfaces. It backs the test suite and
 * database-less local runs with the same semantics the Postgres adapter
 * provides: conditional balance updates, account-number uniqueness, and an
 * append-only ledger.
 */

package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sbkbank/transfer-service/internal/domain"
)

// MemoryRepository keeps all state behind a single mutex. Lookups return
// copies, never internal pointers, so callers cannot bypass
// AtomicAdjustBalance.
type MemoryRepository struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*domain.Account
	byNumber map[string]uuid.UUID
	ledger   []domain.Transaction
}

// NewMemoryRepository creates an empty in-memory store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		accounts: make(map[uuid.UUID]*domain.Account),
		byNumber: make(map[string]uuid.UUID),
	}
}

func copyAccount(a *domain.Account) *domain.Account {
	cp := *a
	return &cp
}

func (r *MemoryRepository) FindActiveByOwner(_ context.Context, userID uuid.UUID) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.UserID == userID && a.IsActive {
			return copyAccount(a), nil
		}
	}
	return nil, ErrAccountNotFound
}

func (r *MemoryRepository) FindActiveByAccountNumber(_ context.Context, number string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byNumber[number]
	if !ok || !r.accounts[id].IsActive {
		return nil, ErrAccountNotFound
	}
	return copyAccount(r.accounts[id]), nil
}

func (r *MemoryRepository) FindByAccountNumber(_ context.Context, number string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byNumber[number]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return copyAccount(r.accounts[id]), nil
}

// AtomicAdjustBalance mirrors the Postgres conditional UPDATE: the delta is
// refused, not clamped, when it would leave the balance negative.
func (r *MemoryRepository) AtomicAdjustBalance(_ context.Context, accountID uuid.UUID, delta int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[accountID]
	if !ok {
		return ErrAccountNotFound
	}
	if a.Balance+delta < 0 {
		return ErrBalanceConflict
	}
	a.Balance += delta
	return nil
}

func (r *MemoryRepository) GenerateUniqueAccountNumber(_ context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := 0; i < generateAttempts; i++ {
		candidate := randomAccountNumber()
		if _, taken := r.byNumber[candidate]; !taken {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("exhausted %d account number candidates", generateAttempts)
}

func (r *MemoryRepository) CreateAccount(_ context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.byNumber[account.AccountNumber]; taken {
		return ErrAccountNumberTaken
	}
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	r.accounts[account.ID] = copyAccount(account)
	r.byNumber[account.AccountNumber] = account.ID
	return nil
}

func (r *MemoryRepository) DeactivateAccount(_ context.Context, accountNumber string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byNumber[accountNumber]
	if !ok {
		return ErrAccountNotFound
	}
	r.accounts[id].IsActive = false
	return nil
}

func (r *MemoryRepository) UpdateDailyLimit(_ context.Context, accountNumber string, limit int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byNumber[accountNumber]
	if !ok {
		return ErrAccountNotFound
	}
	r.accounts[id].DailyLimit = limit
	return nil
}

func (r *MemoryRepository) Append(_ context.Context, tx *domain.Transaction) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	r.ledger = append(r.ledger, *tx)
	return tx.ID, nil
}

func (r *MemoryRepository) QueryByAccountAndWindow(_ context.Context, accountNumber string, direction domain.LedgerDirection, start, end time.Time) ([]domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Transaction
	for _, t := range r.ledger {
		if t.Timestamp.Before(start) || !t.Timestamp.Before(end) {
			continue
		}
		switch direction {
		case domain.DirectionOutgoing:
			if t.FromAccount != accountNumber {
				continue
			}
		case domain.DirectionIncoming:
			if t.ToAccount != accountNumber {
				continue
			}
		case domain.DirectionBoth:
			if t.FromAccount != accountNumber && t.ToAccount != accountNumber {
				continue
			}
		default:
			return nil, fmt.Errorf("unknown ledger direction %q", direction)
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

// LedgerLen reports the number of appended rows. Test helper.
func (r *MemoryRepository) LedgerLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ledger)
}
