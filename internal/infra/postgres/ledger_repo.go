package postgres

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/crestbank/core/internal/ledger"
)

// LedgerRepository implements the ledger repository interface using
// PostgreSQL. Monetary columns are NUMERIC(20,4) and travel as strings
// between the driver and decimal.Decimal.
type LedgerRepository struct {
	db *DB
}

// NewLedgerRepository creates a new PostgreSQL ledger repository
func NewLedgerRepository(db *DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Transaction management

// BeginTx starts a new database transaction and stores it in the context
func (r *LedgerRepository) BeginTx(ctx context.Context) (context.Context, error) {
	return beginTx(ctx, r.db.Pool)
}

// CommitTx commits the database transaction from the context
func (r *LedgerRepository) CommitTx(ctx context.Context) error {
	return commitTx(ctx)
}

// RollbackTx rolls back the database transaction from the context
func (r *LedgerRepository) RollbackTx(ctx context.Context) error {
	return rollbackTx(ctx)
}

// Account operations

// CreateAccount inserts a new account row and fills in its generated id.
func (r *LedgerRepository) CreateAccount(ctx context.Context, account *ledger.Account) error {
	if err := account.Validate(); err != nil {
		return fmt.Errorf("invalid account: %w", err)
	}

	query := `
		INSERT INTO accounts (user_id, account_number, account_type, currency, current_balance, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	q := getQueryer(ctx, r.db.Pool)
	err := q.QueryRow(ctx, query,
		account.UserID,
		account.Number,
		string(account.Type),
		account.Currency,
		account.Balance.String(),
		string(account.Status),
	).Scan(&account.ID, &account.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "accounts_account_number_key") {
			return ledger.ErrAccountNumberTaken
		}
		return fmt.Errorf("failed to create account: %w", mapPgError(err))
	}

	return nil
}

const accountColumns = `id, user_id, account_number, account_type, currency, current_balance, status, created_at`

// scanAccount scans a single account from a row
func scanAccount(row pgx.Row) (*ledger.Account, error) {
	var account ledger.Account
	var balanceStr string

	err := row.Scan(
		&account.ID,
		&account.UserID,
		&account.Number,
		&account.Type,
		&account.Currency,
		&balanceStr,
		&account.Status,
		&account.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	balance, err := decimal.NewFromString(balanceStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse balance: %w", err)
	}
	account.Balance = balance

	return &account, nil
}

// GetAccount retrieves an account by ID
func (r *LedgerRepository) GetAccount(ctx context.Context, id int64) (*ledger.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	q := getQueryer(ctx, r.db.Pool)
	account, err := scanAccount(q.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ledger.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

// GetAccountByNumber retrieves an account by its account number
func (r *LedgerRepository) GetAccountByNumber(ctx context.Context, number string) (*ledger.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_number = $1`

	q := getQueryer(ctx, r.db.Pool)
	account, err := scanAccount(q.QueryRow(ctx, query, number))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ledger.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

// GetAccountsByUser retrieves all accounts for a user
func (r *LedgerRepository) GetAccountsByUser(ctx context.Context, userID int64) ([]*ledger.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1 ORDER BY created_at ASC`

	q := getQueryer(ctx, r.db.Pool)
	rows, err := q.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*ledger.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}

	return accounts, nil
}

// CountOpenAccounts counts a user's non-closed accounts
func (r *LedgerRepository) CountOpenAccounts(ctx context.Context, userID int64) (int, error) {
	query := `SELECT COUNT(*) FROM accounts WHERE user_id = $1 AND status <> 'closed'`

	var count int
	q := getQueryer(ctx, r.db.Pool)
	if err := q.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count accounts: %w", err)
	}
	return count, nil
}

// LockAccounts reads the given account rows FOR UPDATE in ascending id
// order. One row lock per statement keeps the acquisition order exact
// regardless of the planner.
func (r *LedgerRepository) LockAccounts(ctx context.Context, ids []int64) (map[int64]*ledger.Account, error) {
	if txFromContext(ctx) == nil {
		return nil, fmt.Errorf("LockAccounts requires a transaction in context")
	}

	sorted := make([]int64, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 FOR UPDATE`

	q := getQueryer(ctx, r.db.Pool)
	accounts := make(map[int64]*ledger.Account, len(sorted))
	for _, id := range sorted {
		if _, ok := accounts[id]; ok {
			continue
		}
		account, err := scanAccount(q.QueryRow(ctx, query, id))
		if err != nil {
			if err == pgx.ErrNoRows {
				continue // absent from the map; the caller decides
			}
			return nil, fmt.Errorf("failed to lock account %d: %w", id, mapPgError(err))
		}
		accounts[id] = account
	}

	return accounts, nil
}

// UpdateAccountBalance writes the denormalized balance for an account
func (r *LedgerRepository) UpdateAccountBalance(ctx context.Context, id int64, balance decimal.Decimal) error {
	query := `UPDATE accounts SET current_balance = $2 WHERE id = $1`

	q := getQueryer(ctx, r.db.Pool)
	tag, err := q.Exec(ctx, query, id, balance.String())
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", mapPgError(err))
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrAccountNotFound
	}
	return nil
}

// UpdateAccountStatus writes the lifecycle status for an account
func (r *LedgerRepository) UpdateAccountStatus(ctx context.Context, id int64, status ledger.AccountStatus) error {
	query := `UPDATE accounts SET status = $2 WHERE id = $1`

	q := getQueryer(ctx, r.db.Pool)
	tag, err := q.Exec(ctx, query, id, string(status))
	if err != nil {
		return fmt.Errorf("failed to update status: %w", mapPgError(err))
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrAccountNotFound
	}
	return nil
}

// GetUserActive reports whether the user exists and is active
func (r *LedgerRepository) GetUserActive(ctx context.Context, userID int64) (bool, error) {
	query := `SELECT is_active FROM users WHERE id = $1`

	var active bool
	q := getQueryer(ctx, r.db.Pool)
	if err := q.QueryRow(ctx, query, userID).Scan(&active); err != nil {
		if err == pgx.ErrNoRows {
			return false, ledger.ErrUserNotFound
		}
		return false, fmt.Errorf("failed to get user: %w", err)
	}
	return active, nil
}

// Transaction header and entry operations

// GetTransactionTypeID resolves a type code in the transaction_types catalog
func (r *LedgerRepository) GetTransactionTypeID(ctx context.Context, code ledger.TypeCode) (int64, error) {
	query := `SELECT id FROM transaction_types WHERE code = $1`

	var id int64
	q := getQueryer(ctx, r.db.Pool)
	if err := q.QueryRow(ctx, query, string(code)).Scan(&id); err != nil {
		if err == pgx.ErrNoRows {
			return 0, fmt.Errorf("unknown transaction type %s: %w", code, ledger.ErrTransactionNotFound)
		}
		return 0, fmt.Errorf("failed to get transaction type: %w", err)
	}
	return id, nil
}

// InsertTransaction inserts a transaction header and fills in its id.
// A duplicate reference id surfaces as ErrDuplicateReference.
func (r *LedgerRepository) InsertTransaction(ctx context.Context, tx *ledger.Transaction) error {
	query := `
		INSERT INTO transactions (reference_id, type_id, description, initiated_by, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	q := getQueryer(ctx, r.db.Pool)
	err := q.QueryRow(ctx, query,
		tx.ReferenceID,
		tx.TypeID,
		tx.Description,
		tx.InitiatedBy,
		string(tx.Status),
	).Scan(&tx.ID, &tx.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "transactions_reference_id_key") {
			return ledger.ErrDuplicateReference
		}
		return fmt.Errorf("failed to insert transaction: %w", mapPgError(err))
	}

	return nil
}

// InsertEntry inserts a single entry and fills in its id
func (r *LedgerRepository) InsertEntry(ctx context.Context, entry *ledger.Entry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("invalid entry: %w", err)
	}

	query := `
		INSERT INTO transaction_entries (transaction_id, account_id, amount, balance_after)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	q := getQueryer(ctx, r.db.Pool)
	err := q.QueryRow(ctx, query,
		entry.TransactionID,
		entry.AccountID,
		entry.Amount.String(),
		entry.BalanceAfter.String(),
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert entry: %w", mapPgError(err))
	}

	return nil
}

// CompleteTransaction moves a pending header to completed
func (r *LedgerRepository) CompleteTransaction(ctx context.Context, id int64, completedAt time.Time) error {
	query := `UPDATE transactions SET status = 'completed', completed_at = $2 WHERE id = $1 AND status = 'pending'`

	q := getQueryer(ctx, r.db.Pool)
	tag, err := q.Exec(ctx, query, id, completedAt)
	if err != nil {
		return fmt.Errorf("failed to complete transaction: %w", mapPgError(err))
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrTransactionNotFound
	}
	return nil
}

// MarkTransactionReversed moves a completed header to reversed
func (r *LedgerRepository) MarkTransactionReversed(ctx context.Context, id int64) error {
	query := `UPDATE transactions SET status = 'reversed' WHERE id = $1 AND status = 'completed'`

	q := getQueryer(ctx, r.db.Pool)
	tag, err := q.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark transaction reversed: %w", mapPgError(err))
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrNotReversible
	}
	return nil
}

const transactionColumns = `
	t.id, t.reference_id, t.type_id, tt.code, t.description, t.initiated_by,
	t.status, t.created_at, t.completed_at`

// scanTransaction scans a transaction header joined with its type code
func scanTransaction(row pgx.Row) (*ledger.Transaction, error) {
	var tx ledger.Transaction
	err := row.Scan(
		&tx.ID,
		&tx.ReferenceID,
		&tx.TypeID,
		&tx.TypeCode,
		&tx.Description,
		&tx.InitiatedBy,
		&tx.Status,
		&tx.CreatedAt,
		&tx.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// GetTransaction retrieves a transaction by ID with its entries
func (r *LedgerRepository) GetTransaction(ctx context.Context, id int64) (*ledger.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions t
		JOIN transaction_types tt ON tt.id = t.type_id
		WHERE t.id = $1
	`

	q := getQueryer(ctx, r.db.Pool)
	tx, err := scanTransaction(q.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ledger.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	entries, err := r.GetEntriesByTransaction(ctx, tx.ID)
	if err != nil {
		return nil, err
	}
	tx.Entries = entries

	return tx, nil
}

// GetTransactionByReference retrieves a transaction by its reference id
// with its entries
func (r *LedgerRepository) GetTransactionByReference(ctx context.Context, ref uuid.UUID) (*ledger.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions t
		JOIN transaction_types tt ON tt.id = t.type_id
		WHERE t.reference_id = $1
	`

	q := getQueryer(ctx, r.db.Pool)
	tx, err := scanTransaction(q.QueryRow(ctx, query, ref))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ledger.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	entries, err := r.GetEntriesByTransaction(ctx, tx.ID)
	if err != nil {
		return nil, err
	}
	tx.Entries = entries

	return tx, nil
}

// GetEntriesByTransaction retrieves all entries for a transaction in
// posting order
func (r *LedgerRepository) GetEntriesByTransaction(ctx context.Context, transactionID int64) ([]*ledger.Entry, error) {
	query := `
		SELECT id, transaction_id, account_id, amount, balance_after, created_at
		FROM transaction_entries
		WHERE transaction_id = $1
		ORDER BY id ASC
	`

	q := getQueryer(ctx, r.db.Pool)
	rows, err := q.Query(ctx, query, transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []*ledger.Entry
	for rows.Next() {
		var entry ledger.Entry
		var amountStr, balanceAfterStr string

		err := rows.Scan(
			&entry.ID,
			&entry.TransactionID,
			&entry.AccountID,
			&amountStr,
			&balanceAfterStr,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}

		if entry.Amount, err = decimal.NewFromString(amountStr); err != nil {
			return nil, fmt.Errorf("failed to parse amount: %w", err)
		}
		if entry.BalanceAfter, err = decimal.NewFromString(balanceAfterStr); err != nil {
			return nil, fmt.Errorf("failed to parse balance_after: %w", err)
		}

		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entries: %w", err)
	}

	return entries, nil
}

// GetAccountStatement returns the account's most recent entries joined with
// their headers, newest first
func (r *LedgerRepository) GetAccountStatement(ctx context.Context, accountID int64, limit int) ([]*ledger.StatementLine, error) {
	query := `
		SELECT t.id, e.created_at, tt.code, t.description, e.amount, e.balance_after, t.status, a.account_number
		FROM transaction_entries e
		JOIN transactions t ON t.id = e.transaction_id
		JOIN transaction_types tt ON tt.id = t.type_id
		JOIN accounts a ON a.id = e.account_id
		WHERE e.account_id = $1
		ORDER BY e.id DESC
		LIMIT $2
	`

	q := getQueryer(ctx, r.db.Pool)
	rows, err := q.Query(ctx, query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query statement: %w", err)
	}
	defer rows.Close()

	var lines []*ledger.StatementLine
	for rows.Next() {
		var line ledger.StatementLine
		var amountStr, balanceAfterStr string

		err := rows.Scan(
			&line.TransactionID,
			&line.Date,
			&line.Type,
			&line.Narrative,
			&amountStr,
			&balanceAfterStr,
			&line.Status,
			&line.AccountNumber,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan statement line: %w", err)
		}

		if line.Amount, err = decimal.NewFromString(amountStr); err != nil {
			return nil, fmt.Errorf("failed to parse amount: %w", err)
		}
		if line.BalanceAfter, err = decimal.NewFromString(balanceAfterStr); err != nil {
			return nil, fmt.Errorf("failed to parse balance_after: %w", err)
		}

		lines = append(lines, &line)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating statement: %w", err)
	}

	return lines, nil
}

var _ ledger.Repository = (*LedgerRepository)(nil)
