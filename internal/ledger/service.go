package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apperrors "github.com/crestbank/core/internal/shared/errors"
)

// Config carries the deployment-time switches of the engine.
type Config struct {
	// DefaultCurrency is assigned to accounts created without an explicit
	// currency.
	DefaultCurrency string

	// SingleAccountPerUser enforces at most one non-closed account per user.
	SingleAccountPerUser bool
}

// Service is the ledger engine. All balance-mutating operations go through
// it; each runs as one store transaction with row locks acquired in
// canonical (ascending account id) order.
type Service struct {
	repo  Repository
	audit AuditRecorder
	cfg   Config
}

// NewService creates a new ledger engine.
func NewService(repo Repository, audit AuditRecorder, cfg Config) *Service {
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = "USD"
	}
	return &Service{
		repo:  repo,
		audit: audit,
		cfg:   cfg,
	}
}

// TransferParams are the inputs to Transfer.
type TransferParams struct {
	SenderAccountID   int64
	ReceiverAccountID int64
	Amount            decimal.Decimal
	Description       string
	// ReferenceID deduplicates retries of the same logical transfer.
	// uuid.Nil lets the engine generate one.
	ReferenceID uuid.UUID
	InitiatedBy *int64
}

// MovementParams are the inputs to Deposit and Withdraw.
type MovementParams struct {
	AccountID   int64
	Amount      decimal.Decimal
	Description string
	ReferenceID uuid.UUID
	InitiatedBy *int64
}

// Result reports a posted (or idempotently re-observed) transaction.
type Result struct {
	TransactionID int64
	ReferenceID   uuid.UUID
	Status        Status
	// AlreadyApplied is true when the reference id matched a previously
	// completed transaction and no new rows were written.
	AlreadyApplied bool
	// BalanceAfter is the caller's account balance after the operation.
	// For transfers it is the sender's balance.
	BalanceAfter decimal.Decimal
}

// Transfer moves amount between two active accounts of the same currency as
// one balanced double-entry transaction: a debit on the sender, a credit on
// the receiver, entries summing to exactly zero.
func (s *Service) Transfer(ctx context.Context, p TransferParams) (*Result, error) {
	if err := guardMovementAmount(p.Amount); err != nil {
		return nil, err
	}
	if p.SenderAccountID == p.ReceiverAccountID {
		return nil, ErrSameAccount
	}

	ref := p.ReferenceID
	if ref == uuid.Nil {
		ref = uuid.New()
	}
	description := p.Description
	if description == "" {
		description = "Fund Transfer"
	}

	var res *Result
	err := s.withinTx(ctx, func(ctx context.Context) error {
		applied, err := s.findApplied(ctx, ref, p.SenderAccountID)
		if err != nil {
			return err
		}
		if applied != nil {
			res = applied
			return nil
		}

		// Lock both rows in ascending id order, then sort out which is
		// sender and which is receiver.
		accounts, err := s.repo.LockAccounts(ctx, []int64{p.SenderAccountID, p.ReceiverAccountID})
		if err != nil {
			return err
		}
		sender, ok := accounts[p.SenderAccountID]
		if !ok {
			return fmt.Errorf("sender %d: %w", p.SenderAccountID, ErrAccountNotFound)
		}
		receiver, ok := accounts[p.ReceiverAccountID]
		if !ok {
			return fmt.Errorf("receiver %d: %w", p.ReceiverAccountID, ErrAccountNotFound)
		}

		if err := guardAccountOpen(sender); err != nil {
			return err
		}
		if err := guardAccountOpen(receiver); err != nil {
			return err
		}
		if err := guardSameCurrency(sender, receiver); err != nil {
			return err
		}
		if err := guardSufficientFunds(sender, p.Amount); err != nil {
			return err
		}

		header, err := s.openHeader(ctx, TypeTransfer, ref, description, p.InitiatedBy)
		if err != nil {
			return err
		}

		senderAfter, err := s.postEntry(ctx, header.ID, sender, p.Amount.Neg())
		if err != nil {
			return err
		}
		if _, err := s.postEntry(ctx, header.ID, receiver, p.Amount); err != nil {
			return err
		}

		if err := s.repo.CompleteTransaction(ctx, header.ID, time.Now()); err != nil {
			return err
		}

		res = &Result{
			TransactionID: header.ID,
			ReferenceID:   ref,
			Status:        StatusCompleted,
			BalanceAfter:  senderAfter,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Deposit credits amount to an active account as a single-entry transaction.
func (s *Service) Deposit(ctx context.Context, p MovementParams) (*Result, error) {
	if p.Description == "" {
		p.Description = "Cash Deposit"
	}
	return s.singleMovement(ctx, TypeDeposit, p, false)
}

// Withdraw debits amount from an active account as a single-entry
// transaction, rejecting debits that would take a non-loan account below
// zero.
func (s *Service) Withdraw(ctx context.Context, p MovementParams) (*Result, error) {
	if p.Description == "" {
		p.Description = "Cash Withdrawal"
	}
	return s.singleMovement(ctx, TypeWithdrawal, p, true)
}

// singleMovement posts a one-legged transaction against a single account.
func (s *Service) singleMovement(ctx context.Context, code TypeCode, p MovementParams, debit bool) (*Result, error) {
	if err := guardMovementAmount(p.Amount); err != nil {
		return nil, err
	}

	ref := p.ReferenceID
	if ref == uuid.Nil {
		ref = uuid.New()
	}

	var res *Result
	err := s.withinTx(ctx, func(ctx context.Context) error {
		applied, err := s.findApplied(ctx, ref, p.AccountID)
		if err != nil {
			return err
		}
		if applied != nil {
			res = applied
			return nil
		}

		accounts, err := s.repo.LockAccounts(ctx, []int64{p.AccountID})
		if err != nil {
			return err
		}
		account, ok := accounts[p.AccountID]
		if !ok {
			return ErrAccountNotFound
		}
		if err := guardAccountOpen(account); err != nil {
			return err
		}

		amount := p.Amount
		if debit {
			if err := guardSufficientFunds(account, p.Amount); err != nil {
				return err
			}
			amount = amount.Neg()
		}

		header, err := s.openHeader(ctx, code, ref, p.Description, p.InitiatedBy)
		if err != nil {
			return err
		}

		balanceAfter, err := s.postEntry(ctx, header.ID, account, amount)
		if err != nil {
			return err
		}

		if err := s.repo.CompleteTransaction(ctx, header.ID, time.Now()); err != nil {
			return err
		}

		res = &Result{
			TransactionID: header.ID,
			ReferenceID:   ref,
			Status:        StatusCompleted,
			BalanceAfter:  balanceAfter,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// CreateAccountParams are the inputs to CreateAccount.
type CreateAccountParams struct {
	UserID   int64
	Type     AccountType
	Currency string // empty → deployment default
	// PerformedBy is recorded in the audit trail: the user for
	// self-service creation, the employee for admin creation.
	PerformedBy *int64
}

// CreateAccount opens a zero-balance active account with a freshly
// generated account number, retrying on number collision up to a bounded
// number of attempts.
func (s *Service) CreateAccount(ctx context.Context, p CreateAccountParams) (*Account, error) {
	if !p.Type.Valid() {
		return nil, ErrInvalidAccountType
	}
	currency := p.Currency
	if currency == "" {
		currency = s.cfg.DefaultCurrency
	}

	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		number, err := newAccountNumber(p.Type)
		if err != nil {
			return nil, apperrors.Internal("account number generation failed", err)
		}

		account := &Account{
			UserID:   p.UserID,
			Number:   number,
			Type:     p.Type,
			Currency: currency,
			Balance:  decimal.Zero,
			Status:   AccountStatusActive,
		}
		if err := account.Validate(); err != nil {
			return nil, err
		}

		err = s.withinTx(ctx, func(ctx context.Context) error {
			active, err := s.repo.GetUserActive(ctx, p.UserID)
			if err != nil {
				return err
			}
			if !active {
				return ErrUserNotActive
			}

			if s.cfg.SingleAccountPerUser {
				open, err := s.repo.CountOpenAccounts(ctx, p.UserID)
				if err != nil {
					return err
				}
				if open > 0 {
					return ErrAccountLimitReached
				}
			}

			if err := s.repo.CreateAccount(ctx, account); err != nil {
				return err
			}
			return s.audit.AccountCreated(ctx, account, p.PerformedBy)
		})
		if errors.Is(err, ErrAccountNumberTaken) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return account, nil
	}

	return nil, apperrors.Internal("exhausted account number attempts", nil)
}

// ToggleFreeze flips an account between active and frozen. Closed accounts
// stay closed.
func (s *Service) ToggleFreeze(ctx context.Context, accountID int64, performedBy *int64) (AccountStatus, error) {
	var newStatus AccountStatus
	err := s.withinTx(ctx, func(ctx context.Context) error {
		accounts, err := s.repo.LockAccounts(ctx, []int64{accountID})
		if err != nil {
			return err
		}
		account, ok := accounts[accountID]
		if !ok {
			return ErrAccountNotFound
		}
		if account.Status == AccountStatusClosed {
			return ErrAccountClosed
		}

		newStatus = AccountStatusFrozen
		if account.Status == AccountStatusFrozen {
			newStatus = AccountStatusActive
		}

		if err := s.repo.UpdateAccountStatus(ctx, accountID, newStatus); err != nil {
			return err
		}
		return s.audit.AccountStatusChanged(ctx, accountID, account.Status, newStatus, performedBy)
	})
	if err != nil {
		return "", err
	}
	return newStatus, nil
}

// CloseAccount transitions an account to closed. The account must carry an
// exactly zero balance; closed is terminal.
func (s *Service) CloseAccount(ctx context.Context, accountID int64, performedBy *int64) error {
	return s.withinTx(ctx, func(ctx context.Context) error {
		accounts, err := s.repo.LockAccounts(ctx, []int64{accountID})
		if err != nil {
			return err
		}
		account, ok := accounts[accountID]
		if !ok {
			return ErrAccountNotFound
		}
		if err := guardCloseable(account); err != nil {
			return err
		}

		if err := s.repo.UpdateAccountStatus(ctx, accountID, AccountStatusClosed); err != nil {
			return err
		}
		return s.audit.AccountStatusChanged(ctx, accountID, account.Status, AccountStatusClosed, performedBy)
	})
}

// Reverse posts a compensating transaction whose entries exactly negate a
// completed transaction's entries, and marks the original reversed. The
// original's rows are never edited.
func (s *Service) Reverse(ctx context.Context, transactionID int64, initiatedBy *int64) (*Result, error) {
	var res *Result
	err := s.withinTx(ctx, func(ctx context.Context) error {
		original, err := s.repo.GetTransaction(ctx, transactionID)
		if err != nil {
			return err
		}
		if original.Status != StatusCompleted {
			return ErrNotReversible
		}

		ids := make([]int64, 0, len(original.Entries))
		for _, e := range original.Entries {
			ids = append(ids, e.AccountID)
		}
		accounts, err := s.repo.LockAccounts(ctx, ids)
		if err != nil {
			return err
		}

		// Validate every touched account before writing anything.
		for _, e := range original.Entries {
			account, ok := accounts[e.AccountID]
			if !ok {
				return ErrAccountNotFound
			}
			if err := guardAccountOpen(account); err != nil {
				return err
			}
			if e.Amount.Sign() > 0 {
				// Reversing a credit debits the account.
				if err := guardSufficientFunds(account, e.Amount); err != nil {
					return err
				}
			}
		}

		header := &Transaction{
			ReferenceID: uuid.New(),
			TypeID:      original.TypeID,
			Description: fmt.Sprintf("Reversal of %s", original.ReferenceID),
			InitiatedBy: initiatedBy,
			Status:      StatusPending,
		}
		if err := s.repo.InsertTransaction(ctx, header); err != nil {
			return err
		}

		for _, e := range original.Entries {
			if _, err := s.postEntry(ctx, header.ID, accounts[e.AccountID], e.Amount.Neg()); err != nil {
				return err
			}
		}

		if err := s.repo.CompleteTransaction(ctx, header.ID, time.Now()); err != nil {
			return err
		}
		if err := s.repo.MarkTransactionReversed(ctx, original.ID); err != nil {
			return err
		}

		res = &Result{
			TransactionID: header.ID,
			ReferenceID:   header.ReferenceID,
			Status:        StatusCompleted,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// QueryBalance returns the account row including its current balance.
func (s *Service) QueryBalance(ctx context.Context, accountID int64) (*Account, error) {
	return s.repo.GetAccount(ctx, accountID)
}

// QueryStatement returns the most recent statement lines for one account,
// newest first. limit is clamped to [1, 500] with a default of 100.
func (s *Service) QueryStatement(ctx context.Context, accountID int64, limit int) ([]*StatementLine, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}
	if _, err := s.repo.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return s.repo.GetAccountStatement(ctx, accountID, limit)
}

// GetTransaction returns a transaction header with its entries.
func (s *Service) GetTransaction(ctx context.Context, id int64) (*Transaction, error) {
	return s.repo.GetTransaction(ctx, id)
}

// GetTransactionByReference resolves a reference id to its transaction.
// Callers whose timeout fired mid-commit use this to learn the
// authoritative outcome.
func (s *Service) GetTransactionByReference(ctx context.Context, ref uuid.UUID) (*Transaction, error) {
	return s.repo.GetTransactionByReference(ctx, ref)
}

// GetAccountsByUser lists a user's accounts.
func (s *Service) GetAccountsByUser(ctx context.Context, userID int64) ([]*Account, error) {
	return s.repo.GetAccountsByUser(ctx, userID)
}

// withinTx runs fn inside one store transaction, rolling back on any error.
// Cancellation before commit rolls back; after commit the effect is durable.
func (s *Service) withinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	txCtx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return apperrors.Internal("failed to begin store transaction", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = s.repo.RollbackTx(txCtx)
		}
	}()

	if err := fn(txCtx); err != nil {
		return err
	}

	if err := s.repo.CommitTx(txCtx); err != nil {
		return err
	}
	committed = true
	return nil
}

// findApplied checks the reference id before posting. A completed match is
// returned as an idempotent success carrying the balance snapshot the
// original posting produced for accountID, so a replayed response reads the
// same as the first one. A pending or failed match is a duplicate the engine
// never resumes.
func (s *Service) findApplied(ctx context.Context, ref uuid.UUID, accountID int64) (*Result, error) {
	existing, err := s.repo.GetTransactionByReference(ctx, ref)
	if errors.Is(err, ErrTransactionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if existing.Status != StatusCompleted {
		return nil, fmt.Errorf("reference %s is %s: %w", ref, existing.Status, ErrDuplicateReference)
	}

	res := &Result{
		TransactionID:  existing.ID,
		ReferenceID:    ref,
		Status:         existing.Status,
		AlreadyApplied: true,
	}
	for _, e := range existing.Entries {
		if e.AccountID == accountID {
			res.BalanceAfter = e.BalanceAfter
			break
		}
	}
	return res, nil
}

// openHeader inserts a pending transaction header.
func (s *Service) openHeader(ctx context.Context, code TypeCode, ref uuid.UUID, description string, initiatedBy *int64) (*Transaction, error) {
	typeID, err := s.repo.GetTransactionTypeID(ctx, code)
	if err != nil {
		return nil, err
	}
	header := &Transaction{
		ReferenceID: ref,
		TypeID:      typeID,
		Description: description,
		InitiatedBy: initiatedBy,
		Status:      StatusPending,
	}
	if err := s.repo.InsertTransaction(ctx, header); err != nil {
		return nil, err
	}
	return header, nil
}

// postEntry writes one leg and the matching balance update. The balance
// snapshot is computed from the locked row, so balance_after reflects the
// commit order of entries on the account.
func (s *Service) postEntry(ctx context.Context, transactionID int64, account *Account, amount decimal.Decimal) (decimal.Decimal, error) {
	newBalance := account.Balance.Add(amount)
	if newBalance.Sign() < 0 && !account.Type.AllowsOverdraft() {
		return decimal.Zero, ErrInsufficientFunds
	}

	entry := &Entry{
		TransactionID: transactionID,
		AccountID:     account.ID,
		Amount:        amount,
		BalanceAfter:  newBalance,
	}
	if err := entry.Validate(); err != nil {
		return decimal.Zero, err
	}
	if err := s.repo.InsertEntry(ctx, entry); err != nil {
		return decimal.Zero, err
	}
	if err := s.repo.UpdateAccountBalance(ctx, account.ID, newBalance); err != nil {
		return decimal.Zero, err
	}

	account.Balance = newBalance
	return newBalance, nil
}
