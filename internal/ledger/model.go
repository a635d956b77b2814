// Package ledger implements the transactional core of the bank: the
// double-entry data model and the balance-mutating operations (transfer,
// deposit, withdrawal, account lifecycle).
//
// Every mutating operation runs as exactly one store transaction. Account
// rows are locked in ascending account id order before any balance change,
// balance checks use the locked value, and entries carry the balance
// snapshotted immediately after posting.
package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/crestbank/core/pkg/money"
)

// AccountType classifies an account. Loan accounts are the only type
// allowed to carry a negative balance.
type AccountType string

const (
	AccountTypeSavings  AccountType = "savings"
	AccountTypeChecking AccountType = "checking"
	AccountTypeWallet   AccountType = "wallet"
	AccountTypeLoan     AccountType = "loan"
)

// Valid reports whether the account type is one of the known types.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeSavings, AccountTypeChecking, AccountTypeWallet, AccountTypeLoan:
		return true
	}
	return false
}

// AllowsOverdraft reports whether the account type may go below zero.
func (t AccountType) AllowsOverdraft() bool {
	return t == AccountTypeLoan
}

// AccountStatus is the lifecycle state of an account.
// active ⇄ frozen; either → closed (terminal).
type AccountStatus string

const (
	AccountStatusActive AccountStatus = "active"
	AccountStatusFrozen AccountStatus = "frozen"
	AccountStatusClosed AccountStatus = "closed"
)

// Account is a customer account row. Balance is denormalized: invariantly it
// equals the sum of all completed entries for the account.
type Account struct {
	ID        int64
	UserID    int64
	Number    string
	Type      AccountType
	Currency  string
	Balance   decimal.Decimal
	Status    AccountStatus
	CreatedAt time.Time
}

// Validate checks the account row for structural soundness.
func (a *Account) Validate() error {
	if !a.Type.Valid() {
		return ErrInvalidAccountType
	}
	if err := money.ValidateCurrency(a.Currency); err != nil {
		return ErrInvalidCurrency
	}
	if err := money.ValidateScale(a.Balance); err != nil {
		return ErrInvalidAmount
	}
	if a.Balance.Sign() < 0 && !a.Type.AllowsOverdraft() {
		return ErrNegativeBalance
	}
	return nil
}

// TypeCode identifies the business meaning of a transaction.
type TypeCode string

const (
	TypeDeposit    TypeCode = "DEPOSIT"
	TypeWithdrawal TypeCode = "WITHDRAWAL"
	TypeTransfer   TypeCode = "TRANSFER"
	TypePayment    TypeCode = "PAYMENT"
	TypeInterest   TypeCode = "INTEREST"
	TypeFee        TypeCode = "FEE"
)

// TransactionType is a row of the transaction_types catalog.
type TransactionType struct {
	ID                int64
	Code              TypeCode
	Description       string
	IsSystemGenerated bool
}

// Status is the lifecycle state of a transaction header.
// pending → completed | failed; completed → reversed via a compensating
// transaction, never an in-place edit of entries.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusReversed  Status = "reversed"
)

// Transaction is a header grouping one or more entries under a single
// reference id.
type Transaction struct {
	ID          int64
	ReferenceID uuid.UUID
	TypeID      int64
	TypeCode    TypeCode // populated on reads that join transaction_types
	Description string
	InitiatedBy *int64 // nil for system-generated transactions
	Status      Status
	CreatedAt   time.Time
	CompletedAt *time.Time
	Entries     []*Entry
}

// EntriesSum returns the algebraic sum of the transaction's entry amounts.
// For a completed transfer this is exactly zero.
func (t *Transaction) EntriesSum() decimal.Decimal {
	sum := decimal.Zero
	for _, e := range t.Entries {
		sum = sum.Add(e.Amount)
	}
	return sum
}

// EntryType is derived from the sign of an entry's amount.
type EntryType string

const (
	EntryDebit  EntryType = "debit"
	EntryCredit EntryType = "credit"
)

// Entry is one leg of a transaction affecting exactly one account.
// Amount is signed: negative debits the account, positive credits it.
// BalanceAfter snapshots the account balance immediately after this leg
// in commit order.
type Entry struct {
	ID            int64
	TransactionID int64
	AccountID     int64
	Amount        decimal.Decimal
	BalanceAfter  decimal.Decimal
	CreatedAt     time.Time
}

// Type derives debit/credit from the amount's sign. Stored nowhere; the
// sign is authoritative.
func (e *Entry) Type() EntryType {
	if e.Amount.Sign() < 0 {
		return EntryDebit
	}
	return EntryCredit
}

// Validate checks the entry for structural soundness.
func (e *Entry) Validate() error {
	if e.AccountID == 0 {
		return ErrAccountNotFound
	}
	if e.Amount.Sign() == 0 {
		return ErrInvalidAmount
	}
	if err := money.ValidateScale(e.Amount); err != nil {
		return ErrInvalidAmount
	}
	if err := money.ValidateScale(e.BalanceAfter); err != nil {
		return ErrInvalidAmount
	}
	return nil
}

// StatementLine is one row of an account statement: an entry joined with
// its header and type.
type StatementLine struct {
	TransactionID int64
	Date          time.Time
	Type          TypeCode
	Narrative     string
	Amount        decimal.Decimal
	BalanceAfter  decimal.Decimal
	Status        Status
	AccountNumber string
}
