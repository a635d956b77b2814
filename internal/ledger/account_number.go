package ledger

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Account numbers are a two-letter type prefix followed by 8 decimal digits
// drawn from crypto/rand, so issued numbers are not trivially enumerable.
// Uniqueness is enforced by the store; creation retries on collision.

// maxNumberAttempts bounds the insert-retry loop on account number
// collisions before giving up with an internal error.
const maxNumberAttempts = 8

var numberPrefixes = map[AccountType]string{
	AccountTypeSavings:  "SV",
	AccountTypeChecking: "CH",
	AccountTypeWallet:   "WA",
	AccountTypeLoan:     "LN",
}

var numberDomain = big.NewInt(100_000_000)

// newAccountNumber generates a candidate account number for the given type.
func newAccountNumber(t AccountType) (string, error) {
	prefix, ok := numberPrefixes[t]
	if !ok {
		return "", ErrInvalidAccountType
	}
	n, err := rand.Int(rand.Reader, numberDomain)
	if err != nil {
		return "", fmt.Errorf("failed to draw account number: %w", err)
	}
	return fmt.Sprintf("%s%08d", prefix, n), nil
}
