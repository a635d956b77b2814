package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/crestbank/core/pkg/money"
)

// Pre-commit invariant guards. These run inside the store transaction, on
// rows read under lock, so the checked values cannot move before commit.
// The schema carries a CHECK constraint for the non-negative balance rule
// as a second line of defense.

// guardMovementAmount rejects amounts that are not strictly positive with
// at most 4 fractional digits.
func guardMovementAmount(amount decimal.Decimal) error {
	if err := money.ValidatePositive(amount); err != nil {
		return ErrInvalidAmount
	}
	return nil
}

// guardAccountOpen rejects mutations against frozen or closed accounts.
func guardAccountOpen(a *Account) error {
	switch a.Status {
	case AccountStatusActive:
		return nil
	case AccountStatusClosed:
		return ErrAccountClosed
	default:
		return ErrAccountNotActive
	}
}

// guardSufficientFunds rejects a debit that would take a non-loan account
// below zero. The balance must be the locked value.
func guardSufficientFunds(a *Account, debit decimal.Decimal) error {
	if a.Type.AllowsOverdraft() {
		return nil
	}
	if a.Balance.Sub(debit).Sign() < 0 {
		return ErrInsufficientFunds
	}
	return nil
}

// guardSameCurrency rejects transfers between accounts of different
// currencies. Cross-currency movement is out of scope.
func guardSameCurrency(a, b *Account) error {
	if a.Currency != b.Currency {
		return ErrCurrencyMismatch
	}
	return nil
}

// guardCloseable rejects closing an account that is already closed or still
// carries a balance. The zero comparison is exact.
func guardCloseable(a *Account) error {
	if a.Status == AccountStatusClosed {
		return ErrAlreadyClosed
	}
	if !money.IsZero(a.Balance) {
		return ErrNonZeroBalance
	}
	return nil
}
