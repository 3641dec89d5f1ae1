package store

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/sbkbank/transfer-service/internal/domain"
)

// randomAccountNumber returns a candidate account number: the fixed bank
// prefix followed by 9 random decimal digits. Uniqueness is the caller's
// problem; both stores retry until the candidate is absent.
func randomAccountNumber() string {
	num, _ := rand.Int(rand.Reader, big.NewInt(1_000_000_000))
	return fmt.Sprintf("%s%09d", domain.AccountNumberPrefix, num.Int64())
}

// generateAttempts bounds the retry loop so a pathologically full number
// space surfaces an error instead of spinning forever.
const generateAttempts = 32
