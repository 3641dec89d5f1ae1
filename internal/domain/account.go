/**
 * @description
 * This file defines the account domain model for the transfer-service.
 * An account is the unit of balance in the bank: it belongs to exactly one
 * user, carries a type-dependent daily outgoing limit, and is addressed by a
 * globally unique account number.
 *
 * @notes
 * - Monetary values are stored as `int64` in the smallest currency unit
 *   (paise), which avoids floating-point inaccuracies with financial data.
 * - The account number format is a fixed 3-letter bank prefix followed by
 *   9 decimal digits, e.g. "SBK100000001".
 */

package domain

import (
	"regexp"
	"time"

	"github.com/google/uuid"
)

// AccountType enumerates the supported account products. The type is fixed at
// account creation and never changes afterwards.
type AccountType string

const (
	AccountTypeSavings      AccountType = "savings"
	AccountTypeCurrent      AccountType = "current"
	AccountTypeFixedDeposit AccountType = "fd"
)

// Valid reports whether t is one of the known account types.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeSavings, AccountTypeCurrent, AccountTypeFixedDeposit:
		return true
	}
	return false
}

// AccountNumberPrefix is the fixed bank prefix of every account number.
const AccountNumberPrefix = "SBK"

var accountNumberPattern = regexp.MustCompile(`^[A-Z]{3}[0-9]{9}$`)

// ValidAccountNumber reports whether s matches the 3-letter + 9-digit
// account number format.
func ValidAccountNumber(s string) bool {
	return accountNumberPattern.MatchString(s)
}

// Account maps directly to the `accounts` table in the database.
type Account struct {
	ID            uuid.UUID   `json:"id"`
	UserID        uuid.UUID   `json:"user_id"`
	AccountNumber string      `json:"account_number"`
	Type          AccountType `json:"account_type"`
	Balance       int64       `json:"balance"`     // in paise
	DailyLimit    int64       `json:"daily_limit"` // in paise, per UTC calendar day
	IsActive      bool        `json:"is_active"`
	CreatedAt     time.Time   `json:"created_at"`
}
