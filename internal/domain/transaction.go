/**
 * @description
 * This file defines the ledger and transfer domain models for the
 * transfer-service. These structs represent the main entities and data
 * transfer objects (DTOs) used throughout the service's business logic,
 * database interactions, and API layers.
 *
 * @notes
 * - A Transaction is immutable once written; the ledger is append-only and
 *   rows are never updated or deleted.
 * - Amounts are `int64` in paise, matching the account model.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Transaction is the immutable ledger record of one committed transfer.
// Accounts are referenced by account-number value, not by ownership pointer.
// This struct maps directly to the `transactions` table in the database.
type Transaction struct {
	ID          uuid.UUID `json:"id"`
	FromAccount string    `json:"from_account"`
	ToAccount   string    `json:"to_account"`
	Amount      int64     `json:"amount"` // in paise, always > 0
	Timestamp   time.Time `json:"timestamp"`
}

// LedgerDirection selects which side of the ledger a windowed query matches.
type LedgerDirection string

const (
	DirectionOutgoing LedgerDirection = "outgoing"
	DirectionIncoming LedgerDirection = "incoming"
	DirectionBoth     LedgerDirection = "both"
)

// TransferRequest is the DTO for incoming transfer API requests.
type TransferRequest struct {
	ToAccountNumber string `json:"to_account_number"`
	Amount          int64  `json:"amount"` // in paise
}

// OpenAccountRequest is the DTO for incoming account creation API requests.
type OpenAccountRequest struct {
	AccountType AccountType `json:"account_type"`
}

// UpdateLimitRequest is the DTO for admin daily-limit updates.
type UpdateLimitRequest struct {
	AccountNumber string `json:"account_number"`
	DailyLimit    int64  `json:"daily_limit"` // in paise, >= 0
}

// HistoryEntry is one row of a user's transaction history, annotated with the
// direction of the movement from that user's point of view.
type HistoryEntry struct {
	CounterpartyAccount string    `json:"account_number"`
	Amount              int64     `json:"amount"`
	Type                string    `json:"type"` // "debit" or "credit"
	Time                time.Time `json:"time"`
}
