package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Repository defines the persistence operations the engine needs.
//
// Store transactions are threaded through the context: BeginTx returns a
// derived context carrying the open transaction, and every other method
// executes against that transaction when present, the pool otherwise.
type Repository interface {
	// Store transaction management
	BeginTx(ctx context.Context) (context.Context, error)
	CommitTx(ctx context.Context) error
	RollbackTx(ctx context.Context) error

	// Account operations
	CreateAccount(ctx context.Context, account *Account) error
	GetAccount(ctx context.Context, id int64) (*Account, error)
	GetAccountByNumber(ctx context.Context, number string) (*Account, error)
	GetAccountsByUser(ctx context.Context, userID int64) ([]*Account, error)
	CountOpenAccounts(ctx context.Context, userID int64) (int, error)

	// LockAccounts reads the given account rows FOR UPDATE in ascending id
	// order, the canonical lock order that prevents A→B/B→A deadlock. Only
	// valid inside a store transaction. Missing ids are absent from the map.
	LockAccounts(ctx context.Context, ids []int64) (map[int64]*Account, error)

	UpdateAccountBalance(ctx context.Context, id int64, balance decimal.Decimal) error
	UpdateAccountStatus(ctx context.Context, id int64, status AccountStatus) error

	// User state needed by account creation
	GetUserActive(ctx context.Context, userID int64) (bool, error)

	// Transaction header and entry operations (insert-only; entries are
	// immutable once the header leaves pending)
	GetTransactionTypeID(ctx context.Context, code TypeCode) (int64, error)
	InsertTransaction(ctx context.Context, tx *Transaction) error
	InsertEntry(ctx context.Context, entry *Entry) error
	CompleteTransaction(ctx context.Context, id int64, completedAt time.Time) error
	MarkTransactionReversed(ctx context.Context, id int64) error
	GetTransaction(ctx context.Context, id int64) (*Transaction, error)
	GetTransactionByReference(ctx context.Context, ref uuid.UUID) (*Transaction, error)
	GetEntriesByTransaction(ctx context.Context, transactionID int64) ([]*Entry, error)

	// Statement reads for the engine's query surface
	GetAccountStatement(ctx context.Context, accountID int64, limit int) ([]*StatementLine, error)
}

// AuditRecorder receives state-transition notifications and persists them
// within the same store transaction as the mutation (the context carries
// the open transaction).
type AuditRecorder interface {
	AccountCreated(ctx context.Context, account *Account, performedBy *int64) error
	AccountStatusChanged(ctx context.Context, accountID int64, oldStatus, newStatus AccountStatus, performedBy *int64) error
}
