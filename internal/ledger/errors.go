package ledger

import (
	apperrors "github.com/crestbank/core/internal/shared/errors"
)

// Sentinel errors for the engine. Each is a single *AppError instance so
// errors.Is works by identity through wrapped chains, and the transport
// layer can map the code to a status.
var (
	// Input validation
	ErrInvalidAmount      = apperrors.InvalidInput("amount must be positive with at most 4 decimal places")
	ErrInvalidAccountType = apperrors.InvalidInput("invalid account type")
	ErrInvalidCurrency    = apperrors.InvalidInput("invalid currency code")

	// Lookups
	ErrAccountNotFound     = apperrors.NotFound("account")
	ErrUserNotFound        = apperrors.NotFound("user")
	ErrTransactionNotFound = apperrors.NotFound("transaction")

	// Business rules
	ErrSameAccount         = apperrors.Precondition("sender and receiver accounts must differ")
	ErrAccountNotActive    = apperrors.Precondition("account is not active")
	ErrAccountClosed       = apperrors.Precondition("account is closed")
	ErrAlreadyClosed       = apperrors.Precondition("account is already closed")
	ErrCurrencyMismatch    = apperrors.Precondition("accounts have different currencies")
	ErrNonZeroBalance      = apperrors.Precondition("account must have zero balance to close")
	ErrUserNotActive       = apperrors.Precondition("user is not active")
	ErrAccountLimitReached = apperrors.Precondition("user already has an open account")
	ErrNegativeBalance     = apperrors.Precondition("balance cannot be negative on a non-loan account")
	ErrNotReversible       = apperrors.Precondition("only completed transactions can be reversed")
	ErrInsufficientFunds   = apperrors.InsufficientFunds("insufficient funds")

	// Idempotency
	ErrDuplicateReference = apperrors.DuplicateReference("reference id already used")

	// ErrAccountNumberTaken signals a losing race on account number
	// generation; account creation retries with a fresh number.
	ErrAccountNumberTaken = apperrors.Conflict("account number already taken", nil)
)
