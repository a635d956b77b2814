// Package money provides fixed-point monetary arithmetic for the ledger.
//
// All amounts and balances carry at most 4 fractional digits and are stored
// as NUMERIC(20,4). Binary floating-point is never used; comparisons,
// including the zero check that gates account closure, are exact.
package money

import (
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits carried by every amount.
const Scale = 4

// Zero is the canonical zero amount.
var Zero = decimal.Zero

// currencyPattern matches an ISO-4217 alphabetic currency code.
var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// ParseAmount parses a decimal string and validates it as a monetary amount:
// finite, at most Scale fractional digits.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if err := ValidateScale(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// ValidateScale rejects amounts with more than Scale fractional digits.
func ValidateScale(d decimal.Decimal) error {
	if d.Exponent() < -Scale {
		// Trailing zeros beyond the scale are harmless; compare against the
		// value truncated to Scale digits instead of the exponent alone.
		if !d.Equal(d.Truncate(Scale)) {
			return fmt.Errorf("amount %s exceeds scale %d", d.String(), Scale)
		}
	}
	return nil
}

// ValidatePositive rejects amounts that are not strictly greater than zero
// or that carry too many fractional digits.
func ValidatePositive(d decimal.Decimal) error {
	if err := ValidateScale(d); err != nil {
		return err
	}
	if d.Sign() <= 0 {
		return fmt.Errorf("amount %s must be positive", d.String())
	}
	return nil
}

// ValidateCurrency rejects anything that is not a three-letter uppercase
// ISO-4217 code.
func ValidateCurrency(code string) error {
	if !currencyPattern.MatchString(code) {
		return fmt.Errorf("invalid currency code %q", code)
	}
	return nil
}

// IsZero reports whether the amount is exactly zero.
func IsZero(d decimal.Decimal) bool {
	return d.Sign() == 0
}

// Format renders an amount with exactly Scale fractional digits, the form
// amounts take at the API boundary.
func Format(d decimal.Decimal) string {
	return d.StringFixed(Scale)
}
