/**
 * @description
 * This file contains the core business logic for the transfer-service: the
 * transfer engine. The `Service` struct orchestrates a money transfer end to
 * end: it validates the request, enforces the balance and daily-limit
 * invariants, performs the debit/credit pair through the account store, and
 * appends the immutable ledger record.
 *
 * Key features:
 * - Per-account serialization: both account numbers are locked (in sorted
 *   order) for the whole validate-and-mutate sequence, so two concurrent
 *   transfers from the same sender can never both pass the balance or limit
 *   check against a stale read. Transfers on disjoint account pairs proceed
 *   in parallel; there is no global lock.
 * - Conditional balance updates: the stores refuse any adjustment that would
 *   drive a balance negative. A refused debit is retried with the full
 *   precondition re-check a bounded number of times before the engine gives
 *   up with ErrStorageUnavailable.
 * - Compensation: a credit or ledger failure after the debit reverses the
 *   already-applied adjustments so no partial transfer survives the call.
 * - Publishes a transfer.completed event to RabbitMQ for asynchronous
 *   consumers; publish failures never fail the transfer.
 *
 * @dependencies
 * - context, errors, fmt, log, time: Standard Go libraries.
 * - github.com/google/uuid: For transaction id generation.
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/rabbitmq: For event publication.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/sbkbank/transfer-service/internal/domain"
	"github.com/sbkbank/transfer-service/internal/store"
	"github.com/sbkbank/transfer-service/pkg/rabbitmq"
)

// DefaultTransferRetries bounds how often a lost balance-update race is
// retried before the transfer fails with ErrStorageUnavailable.
const DefaultTransferRetries = 3

// Service provides the core business logic for transfers and accounts.
type Service struct {
	accounts   store.AccountStore
	ledger     store.LedgerStore
	events     rabbitmq.Publisher
	locks      *accountLockTable
	maxRetries int
}

// NewService creates a new transfer service instance.
func NewService(accounts store.AccountStore, ledger store.LedgerStore, events rabbitmq.Publisher, maxRetries int) *Service {
	if maxRetries <= 0 {
		maxRetries = DefaultTransferRetries
	}
	if events == nil {
		events = &rabbitmq.EventProducerFallback{}
	}
	return &Service{
		accounts:   accounts,
		ledger:     ledger,
		events:     events,
		locks:      newAccountLockTable(),
		maxRetries: maxRetries,
	}
}

// Transfer moves amount paise from the sender's active account to the
// account identified by toAccountNumber and returns the appended ledger
// record. Preconditions are checked in a fixed order, each with its own
// failure kind; on success the debit, credit and ledger append are applied
// as one unit with respect to concurrent transfers touching either account.
//
// Replaying the same input performs a second, independent transfer: there is
// no idempotency key, so callers retrying after a timeout will duplicate the
// movement.
func (s *Service) Transfer(ctx context.Context, senderUserID uuid.UUID, toAccountNumber string, amount int64) (*domain.Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	sender, err := s.accounts.FindActiveByOwner(ctx, senderUserID)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return nil, ErrSenderAccountNotFound
		}
		return nil, fmt.Errorf("%w: sender lookup: %v", ErrStorageUnavailable, err)
	}
	if sender.Type == domain.AccountTypeFixedDeposit {
		return nil, ErrTransferNotAllowed
	}

	receiver, err := s.accounts.FindActiveByAccountNumber(ctx, toAccountNumber)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return nil, ErrReceiverAccountNotFound
		}
		return nil, fmt.Errorf("%w: receiver lookup: %v", ErrStorageUnavailable, err)
	}

	// Serialize against every other transfer touching either account. All
	// balance and limit re-checks below run under these locks, closing the
	// check-then-act race between validation and mutation.
	release := s.locks.acquire(sender.AccountNumber, receiver.AccountNumber)
	defer release()

	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		tx, err := s.transferLocked(ctx, sender.AccountNumber, receiver.AccountNumber, amount)
		if errors.Is(err, store.ErrBalanceConflict) {
			log.Printf("level=warn component=engine msg=\"balance update conflict; re-validating\" from=%s attempt=%d", sender.AccountNumber, attempt+1)
			continue
		}
		if err != nil {
			return nil, err
		}
		s.publishTransferCompleted(ctx, tx)
		return tx, nil
	}

	log.Printf("level=error component=engine msg=\"conflict retries exhausted\" from=%s retries=%d", sender.AccountNumber, s.maxRetries)
	return nil, ErrStorageUnavailable
}

// transferLocked runs the full precondition check and the mutation sequence.
// The caller must hold the locks for both account numbers. Every check reads
// fresh state so a retry after a lost race re-validates rather than trusting
// stale values.
func (s *Service) transferLocked(ctx context.Context, fromNumber, toNumber string, amount int64) (*domain.Transaction, error) {
	sender, err := s.accounts.FindActiveByAccountNumber(ctx, fromNumber)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return nil, ErrSenderAccountNotFound
		}
		return nil, fmt.Errorf("%w: sender re-read: %v", ErrStorageUnavailable, err)
	}
	receiver, err := s.accounts.FindActiveByAccountNumber(ctx, toNumber)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return nil, ErrReceiverAccountNotFound
		}
		return nil, fmt.Errorf("%w: receiver re-read: %v", ErrStorageUnavailable, err)
	}

	if sender.Balance < amount {
		return nil, ErrInsufficientBalance
	}

	spentToday, err := s.OutgoingTotalToday(ctx, sender.AccountNumber)
	if err != nil {
		return nil, fmt.Errorf("%w: daily limit aggregation: %v", ErrStorageUnavailable, err)
	}
	if spentToday+amount > sender.DailyLimit {
		return nil, ErrDailyLimitExceeded
	}

	// Last point of no return: a cancelled call must leave state untouched.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := s.accounts.AtomicAdjustBalance(ctx, sender.ID, -amount); err != nil {
		if errors.Is(err, store.ErrBalanceConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: debit: %v", ErrStorageUnavailable, err)
	}

	if err := s.accounts.AtomicAdjustBalance(ctx, receiver.ID, amount); err != nil {
		s.compensate(sender.ID, amount, "credit failed")
		return nil, fmt.Errorf("%w: credit: %v", ErrStorageUnavailable, err)
	}

	tx := &domain.Transaction{
		ID:          uuid.New(),
		FromAccount: sender.AccountNumber,
		ToAccount:   receiver.AccountNumber,
		Amount:      amount,
		Timestamp:   time.Now().UTC(),
	}
	if _, err := s.ledger.Append(ctx, tx); err != nil {
		s.compensate(receiver.ID, -amount, "ledger append failed")
		s.compensate(sender.ID, amount, "ledger append failed")
		return nil, fmt.Errorf("%w: ledger append: %v", ErrStorageUnavailable, err)
	}
	return tx, nil
}

// compensate reverses an already-applied balance adjustment after a later
// step failed. A failed reversal leaves the books inconsistent and is logged
// for operator intervention.
func (s *Service) compensate(accountID uuid.UUID, delta int64, reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.accounts.AtomicAdjustBalance(ctx, accountID, delta); err != nil {
		log.Printf("level=error component=engine msg=\"compensation failed; manual reconciliation required\" account_id=%s delta=%d reason=%q err=%v",
			accountID, delta, reason, err)
	}
}

func (s *Service) publishTransferCompleted(ctx context.Context, tx *domain.Transaction) {
	event := rabbitmq.TransferCompletedEvent{
		TransactionID: tx.ID,
		FromAccount:   tx.FromAccount,
		ToAccount:     tx.ToAccount,
		Amount:        tx.Amount,
		Timestamp:     tx.Timestamp,
	}
	if err := s.events.PublishTransferCompleted(ctx, event); err != nil {
		log.Printf("level=warn component=engine msg=\"transfer.completed publish failed\" transaction_id=%s err=%v", tx.ID, err)
	}
}
