//go:build integration

package ledger_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crestbank/core/internal/audit"
	"github.com/crestbank/core/internal/infra/postgres"
	"github.com/crestbank/core/internal/ledger"
	"github.com/crestbank/core/testutil/testdb"
)

var testDB *testdb.TestDB

func TestMain(m *testing.M) {
	ctx := context.Background()

	var err error
	testDB, err = testdb.NewTestDB(ctx)
	if err != nil {
		panic("failed to create test database: " + err.Error())
	}

	code := m.Run()

	testDB.Close(ctx)
	if code != 0 {
		panic("tests failed")
	}
}

func setupTest(t *testing.T) (*ledger.Service, *postgres.DB, context.Context) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, testDB.Reset(ctx))

	db := &postgres.DB{Pool: testDB.Pool}
	repo := postgres.NewLedgerRepository(db)
	recorder := audit.NewRecorder(postgres.NewAuditRepository(db))

	svc := ledger.NewService(repo, recorder, ledger.Config{DefaultCurrency: "USD"})
	return svc, db, ctx
}

var userSeq int

// seedUser inserts an active, verified customer directly.
func seedUser(t *testing.T, ctx context.Context, db *postgres.DB) int64 {
	t.Helper()
	userSeq++
	var id int64
	err := db.QueryRow(ctx, `
		INSERT INTO users (username, password_hash, email, full_name, date_of_birth, kyc_status)
		VALUES ($1, 'hash', $2, 'Test User', '1990-01-01', 'verified')
		RETURNING id
	`, fmt.Sprintf("test_user_%d", userSeq), fmt.Sprintf("test%d@example.com", userSeq)).Scan(&id)
	require.NoError(t, err)
	return id
}

// seedAccount creates an account through the engine and funds it via a
// deposit, so the seeded state itself satisfies the ledger invariants.
func seedAccount(t *testing.T, ctx context.Context, svc *ledger.Service, userID int64, balance string) *ledger.Account {
	t.Helper()
	account, err := svc.CreateAccount(ctx, ledger.CreateAccountParams{
		UserID: userID,
		Type:   ledger.AccountTypeChecking,
	})
	require.NoError(t, err)

	amount := decimal.RequireFromString(balance)
	if !amount.IsZero() {
		_, err = svc.Deposit(ctx, ledger.MovementParams{
			AccountID: account.ID,
			Amount:    amount,
		})
		require.NoError(t, err)
		account.Balance = amount
	}
	return account
}

// requireIntegrity asserts every account's stored balance equals the sum of
// its entries, and that no multi-leg transaction's entries sum to anything
// but zero.
func requireIntegrity(t *testing.T, ctx context.Context, db *postgres.DB) {
	t.Helper()
	var violations int
	err := db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM accounts a
		LEFT JOIN (
			SELECT account_id, SUM(amount) AS total
			FROM transaction_entries
			GROUP BY account_id
		) e ON e.account_id = a.id
		WHERE a.current_balance <> COALESCE(e.total, 0)
	`).Scan(&violations)
	require.NoError(t, err)
	require.Zero(t, violations, "stored balances must equal the sum of entries")

	var unbalanced int
	err = db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM (
			SELECT t.id
			FROM transactions t
			JOIN transaction_types tt ON tt.id = t.type_id
			JOIN transaction_entries e ON e.transaction_id = t.id
			GROUP BY t.id, tt.code
			HAVING (tt.code = 'TRANSFER' OR COUNT(e.id) > 1)
			   AND ABS(SUM(e.amount)) >= 0.0001
		) u
	`).Scan(&unbalanced)
	require.NoError(t, err)
	require.Zero(t, unbalanced, "every transfer's entries must sum to zero")
}

// =============================================================================
// Transfer
// =============================================================================

func TestIntegration_TransferCorrectness(t *testing.T) {
	svc, db, ctx := setupTest(t)

	alice := seedUser(t, ctx, db)
	bob := seedUser(t, ctx, db)
	from := seedAccount(t, ctx, svc, alice, "100.00")
	to := seedAccount(t, ctx, svc, bob, "0")

	res, err := svc.Transfer(ctx, ledger.TransferParams{
		SenderAccountID:   from.ID,
		ReceiverAccountID: to.ID,
		Amount:            decimal.RequireFromString("33.25"),
		Description:       "rent share",
		InitiatedBy:       &alice,
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusCompleted, res.Status)
	assert.True(t, res.BalanceAfter.Equal(decimal.RequireFromString("66.75")))

	// The persisted header carries both legs summing to zero.
	tx, err := svc.GetTransaction(ctx, res.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, ledger.TypeTransfer, tx.TypeCode)
	assert.NotNil(t, tx.CompletedAt)
	require.Len(t, tx.Entries, 2)
	assert.True(t, tx.EntriesSum().IsZero())

	sender, err := svc.QueryBalance(ctx, from.ID)
	require.NoError(t, err)
	assert.True(t, sender.Balance.Equal(decimal.RequireFromString("66.75")))

	receiver, err := svc.QueryBalance(ctx, to.ID)
	require.NoError(t, err)
	assert.True(t, receiver.Balance.Equal(decimal.RequireFromString("33.25")))

	requireIntegrity(t, ctx, db)
}

func TestIntegration_TransferInsufficientFundsLeavesNoTrace(t *testing.T) {
	svc, db, ctx := setupTest(t)

	alice := seedUser(t, ctx, db)
	bob := seedUser(t, ctx, db)
	from := seedAccount(t, ctx, svc, alice, "10.00")
	to := seedAccount(t, ctx, svc, bob, "0")

	ref := uuid.New()
	_, err := svc.Transfer(ctx, ledger.TransferParams{
		SenderAccountID:   from.ID,
		ReceiverAccountID: to.ID,
		Amount:            decimal.RequireFromString("10.01"),
		ReferenceID:       ref,
	})
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	// The rejected attempt rolled back completely: no header under the
	// reference, balances unchanged.
	_, err = svc.GetTransactionByReference(ctx, ref)
	assert.ErrorIs(t, err, ledger.ErrTransactionNotFound)

	sender, err := svc.QueryBalance(ctx, from.ID)
	require.NoError(t, err)
	assert.True(t, sender.Balance.Equal(decimal.RequireFromString("10.00")))

	requireIntegrity(t, ctx, db)
}

// =============================================================================
// Idempotency
// =============================================================================

func TestIntegration_IdempotentRetry(t *testing.T) {
	svc, db, ctx := setupTest(t)

	alice := seedUser(t, ctx, db)
	bob := seedUser(t, ctx, db)
	from := seedAccount(t, ctx, svc, alice, "100.00")
	to := seedAccount(t, ctx, svc, bob, "0")

	params := ledger.TransferParams{
		SenderAccountID:   from.ID,
		ReceiverAccountID: to.ID,
		Amount:            decimal.RequireFromString("40"),
		ReferenceID:       uuid.New(),
	}

	first, err := svc.Transfer(ctx, params)
	require.NoError(t, err)
	require.False(t, first.AlreadyApplied)

	second, err := svc.Transfer(ctx, params)
	require.NoError(t, err)
	assert.True(t, second.AlreadyApplied)
	assert.Equal(t, first.TransactionID, second.TransactionID)
	assert.True(t, second.BalanceAfter.Equal(first.BalanceAfter),
		"the replay reports the sender balance the original posting produced")

	sender, err := svc.QueryBalance(ctx, from.ID)
	require.NoError(t, err)
	assert.True(t, sender.Balance.Equal(decimal.RequireFromString("60")), "funds moved exactly once")

	var entryCount int
	require.NoError(t, db.QueryRow(ctx,
		`SELECT COUNT(*) FROM transaction_entries WHERE transaction_id = $1`,
		first.TransactionID).Scan(&entryCount))
	assert.Equal(t, 2, entryCount)
}

// =============================================================================
// Statement
// =============================================================================

func TestIntegration_Statement(t *testing.T) {
	svc, db, ctx := setupTest(t)

	alice := seedUser(t, ctx, db)
	account := seedAccount(t, ctx, svc, alice, "0")

	for i := 1; i <= 3; i++ {
		_, err := svc.Deposit(ctx, ledger.MovementParams{
			AccountID:   account.ID,
			Amount:      decimal.NewFromInt(int64(i * 10)),
			Description: fmt.Sprintf("deposit %d", i),
		})
		require.NoError(t, err)
	}
	_, err := svc.Withdraw(ctx, ledger.MovementParams{
		AccountID: account.ID,
		Amount:    decimal.NewFromInt(15),
	})
	require.NoError(t, err)

	lines, err := svc.QueryStatement(ctx, account.ID, 10)
	require.NoError(t, err)
	require.Len(t, lines, 4)

	// Newest first, with running balances that replay to the stored balance.
	assert.Equal(t, ledger.TypeWithdrawal, lines[0].Type)
	assert.True(t, lines[0].Amount.Equal(decimal.NewFromInt(-15)))
	assert.True(t, lines[0].BalanceAfter.Equal(decimal.NewFromInt(45)))
	assert.Equal(t, "deposit 3", lines[1].Narrative)
	assert.True(t, lines[3].BalanceAfter.Equal(decimal.NewFromInt(10)))

	limited, err := svc.QueryStatement(ctx, account.ID, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

// =============================================================================
// Account lifecycle
// =============================================================================

func TestIntegration_AccountLifecycle(t *testing.T) {
	svc, db, ctx := setupTest(t)

	alice := seedUser(t, ctx, db)
	account := seedAccount(t, ctx, svc, alice, "25.00")

	// Freeze blocks movement in both directions.
	status, err := svc.ToggleFreeze(ctx, account.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, ledger.AccountStatusFrozen, status)

	_, err = svc.Withdraw(ctx, ledger.MovementParams{
		AccountID: account.ID, Amount: decimal.NewFromInt(5),
	})
	assert.ErrorIs(t, err, ledger.ErrAccountNotActive)
	_, err = svc.Deposit(ctx, ledger.MovementParams{
		AccountID: account.ID, Amount: decimal.NewFromInt(5),
	})
	assert.ErrorIs(t, err, ledger.ErrAccountNotActive)

	// Unfreeze, drain, close.
	status, err = svc.ToggleFreeze(ctx, account.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, ledger.AccountStatusActive, status)

	err = svc.CloseAccount(ctx, account.ID, nil)
	assert.ErrorIs(t, err, ledger.ErrNonZeroBalance)

	_, err = svc.Withdraw(ctx, ledger.MovementParams{
		AccountID: account.ID, Amount: decimal.RequireFromString("25.00"),
	})
	require.NoError(t, err)
	require.NoError(t, svc.CloseAccount(ctx, account.ID, nil))

	// Closed is terminal.
	_, err = svc.ToggleFreeze(ctx, account.ID, nil)
	assert.ErrorIs(t, err, ledger.ErrAccountClosed)
	_, err = svc.Deposit(ctx, ledger.MovementParams{
		AccountID: account.ID, Amount: decimal.NewFromInt(1),
	})
	assert.ErrorIs(t, err, ledger.ErrAccountClosed)
}

// =============================================================================
// Reversal
// =============================================================================

func TestIntegration_Reversal(t *testing.T) {
	svc, db, ctx := setupTest(t)

	alice := seedUser(t, ctx, db)
	bob := seedUser(t, ctx, db)
	from := seedAccount(t, ctx, svc, alice, "100.00")
	to := seedAccount(t, ctx, svc, bob, "0")

	orig, err := svc.Transfer(ctx, ledger.TransferParams{
		SenderAccountID:   from.ID,
		ReceiverAccountID: to.ID,
		Amount:            decimal.RequireFromString("40"),
	})
	require.NoError(t, err)

	rev, err := svc.Reverse(ctx, orig.TransactionID, nil)
	require.NoError(t, err)

	origTx, err := svc.GetTransaction(ctx, orig.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusReversed, origTx.Status)

	revTx, err := svc.GetTransaction(ctx, rev.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusCompleted, revTx.Status)
	assert.True(t, revTx.EntriesSum().IsZero())

	sender, err := svc.QueryBalance(ctx, from.ID)
	require.NoError(t, err)
	assert.True(t, sender.Balance.Equal(decimal.RequireFromString("100.00")))

	// Statement keeps both the original and the compensating legs.
	lines, err := svc.QueryStatement(ctx, from.ID, 10)
	require.NoError(t, err)
	assert.Len(t, lines, 3) // seed deposit, transfer debit, reversal credit

	requireIntegrity(t, ctx, db)
}

// =============================================================================
// Audit atomicity
// =============================================================================

func TestIntegration_AuditRowsCommitWithTheMutation(t *testing.T) {
	svc, db, ctx := setupTest(t)

	alice := seedUser(t, ctx, db)
	account := seedAccount(t, ctx, svc, alice, "0")

	var auditRows int
	require.NoError(t, db.QueryRow(ctx, `
		SELECT COUNT(*) FROM system_audit_logs
		WHERE entity_type = 'ACCOUNT' AND entity_id = $1 AND action = 'CREATE'
	`, account.ID).Scan(&auditRows))
	assert.Equal(t, 1, auditRows, "account creation audited")

	_, err := svc.ToggleFreeze(ctx, account.ID, nil)
	require.NoError(t, err)

	require.NoError(t, db.QueryRow(ctx, `
		SELECT COUNT(*) FROM system_audit_logs
		WHERE entity_type = 'ACCOUNT' AND entity_id = $1 AND action = 'STATUS_CHANGE'
	`, account.ID).Scan(&auditRows))
	assert.Equal(t, 1, auditRows, "status change audited")

	// A failed close must not leave an audit row behind.
	_, err = svc.Deposit(ctx, ledger.MovementParams{
		AccountID: account.ID, Amount: decimal.NewFromInt(5),
	})
	require.ErrorIs(t, err, ledger.ErrAccountNotActive) // still frozen

	err = svc.CloseAccount(ctx, account.ID, nil)
	require.NoError(t, err) // frozen with zero balance closes fine

	require.NoError(t, db.QueryRow(ctx, `
		SELECT COUNT(*) FROM system_audit_logs
		WHERE entity_type = 'ACCOUNT' AND entity_id = $1
	`, account.ID).Scan(&auditRows))
	assert.Equal(t, 3, auditRows, "create, freeze, close; nothing for the rejected deposit")
}
