//go:build integration

package ledger_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crestbank/core/internal/ledger"
)

// Opposing transfers between the same two accounts, the classic deadlock
// shape. Canonical lock ordering must let every round finish and conserve
// the combined balance.
func TestIntegration_ConcurrentOpposingTransfers(t *testing.T) {
	svc, db, ctx := setupTest(t)

	alice := seedUser(t, ctx, db)
	bob := seedUser(t, ctx, db)
	a := seedAccount(t, ctx, svc, alice, "1000.00")
	b := seedAccount(t, ctx, svc, bob, "1000.00")

	const rounds = 100
	amount := decimal.RequireFromString("1.00")

	var wg sync.WaitGroup
	errs := make(chan error, rounds*2)

	for i := 0; i < rounds; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := svc.Transfer(ctx, ledger.TransferParams{
				SenderAccountID:   a.ID,
				ReceiverAccountID: b.ID,
				Amount:            amount,
			})
			errs <- err
		}()
		go func() {
			defer wg.Done()
			_, err := svc.Transfer(ctx, ledger.TransferParams{
				SenderAccountID:   b.ID,
				ReceiverAccountID: a.ID,
				Amount:            amount,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err, "opposing transfers must not deadlock or fail")
	}

	balanceA, err := svc.QueryBalance(ctx, a.ID)
	require.NoError(t, err)
	balanceB, err := svc.QueryBalance(ctx, b.ID)
	require.NoError(t, err)

	total := balanceA.Balance.Add(balanceB.Balance)
	assert.True(t, total.Equal(decimal.RequireFromString("2000.00")),
		"combined balance conserved, got %s", total)

	requireIntegrity(t, ctx, db)
}

// Many withdrawals racing for a balance that can only cover some of them.
// The locked balance check must admit exactly the affordable number and
// never drive the account negative.
func TestIntegration_ConcurrentOverWithdrawal(t *testing.T) {
	svc, db, ctx := setupTest(t)

	alice := seedUser(t, ctx, db)
	account := seedAccount(t, ctx, svc, alice, "50.00")

	const attempts = 20
	amount := decimal.RequireFromString("10.00") // only 5 can succeed

	var wg sync.WaitGroup
	errs := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Withdraw(ctx, ledger.MovementParams{
				AccountID: account.ID,
				Amount:    amount,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var succeeded, rejected int
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ledger.ErrInsufficientFunds):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 5, succeeded)
	assert.Equal(t, attempts-5, rejected)

	final, err := svc.QueryBalance(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, final.Balance.IsZero(), "balance drained to exactly zero, got %s", final.Balance)
	assert.False(t, final.Balance.IsNegative())

	requireIntegrity(t, ctx, db)
}

// The same reference id raced by many clients applies exactly once; losers
// either observe the completed transaction idempotently or get a duplicate
// rejection, never a second application.
func TestIntegration_ConcurrentIdempotentRetries(t *testing.T) {
	svc, db, ctx := setupTest(t)

	alice := seedUser(t, ctx, db)
	bob := seedUser(t, ctx, db)
	from := seedAccount(t, ctx, svc, alice, "100.00")
	to := seedAccount(t, ctx, svc, bob, "0")

	params := ledger.TransferParams{
		SenderAccountID:   from.ID,
		ReceiverAccountID: to.ID,
		Amount:            decimal.RequireFromString("10.00"),
		ReferenceID:       uuid.New(),
	}

	const clients = 10
	var wg sync.WaitGroup
	results := make(chan *ledger.Result, clients)
	errs := make(chan error, clients)

	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.Transfer(ctx, params)
			if err != nil {
				errs <- err
				return
			}
			results <- res
		}()
	}
	wg.Wait()
	close(results)
	close(errs)

	var fresh int
	for res := range results {
		if !res.AlreadyApplied {
			fresh++
		}
	}
	for err := range errs {
		// Racing a not-yet-committed header is reported as a duplicate.
		require.ErrorIs(t, err, ledger.ErrDuplicateReference)
	}
	assert.Equal(t, 1, fresh, "exactly one client performs the transfer")

	sender, err := svc.QueryBalance(ctx, from.ID)
	require.NoError(t, err)
	assert.True(t, sender.Balance.Equal(decimal.RequireFromString("90.00")),
		"funds moved exactly once, got %s", sender.Balance)

	var headers int
	require.NoError(t, db.QueryRow(ctx,
		`SELECT COUNT(*) FROM transactions WHERE reference_id = $1`,
		params.ReferenceID).Scan(&headers))
	assert.Equal(t, 1, headers)

	requireIntegrity(t, ctx, db)
}

// Parallel account creation across users; every insert lands with a unique
// number and the creation audit row.
func TestIntegration_ConcurrentAccountCreation(t *testing.T) {
	svc, db, ctx := setupTest(t)

	const users = 10
	ids := make([]int64, users)
	for i := range ids {
		ids[i] = seedUser(t, ctx, db)
	}

	var wg sync.WaitGroup
	errs := make(chan error, users)
	for _, userID := range ids {
		wg.Add(1)
		go func(uid int64) {
			defer wg.Done()
			_, err := svc.CreateAccount(ctx, ledger.CreateAccountParams{
				UserID: uid,
				Type:   ledger.AccountTypeSavings,
			})
			errs <- err
		}(userID)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	var accounts, numbers int
	require.NoError(t, db.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT account_number) FROM accounts`).Scan(&accounts, &numbers))
	assert.Equal(t, users, accounts)
	assert.Equal(t, users, numbers)
}
