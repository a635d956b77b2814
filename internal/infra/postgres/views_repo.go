package postgres

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/crestbank/core/internal/views"
)

// ViewsRepository implements the read-side projections using PostgreSQL.
// Every query here runs against the pool; the read layer never joins an
// engine transaction.
type ViewsRepository struct {
	db *DB
}

// NewViewsRepository creates a new PostgreSQL views repository
func NewViewsRepository(db *DB) *ViewsRepository {
	return &ViewsRepository{db: db}
}

// BalanceSheet aggregates non-closed accounts per currency
func (r *ViewsRepository) BalanceSheet(ctx context.Context) ([]*views.BalanceSheetRow, error) {
	query := `
		SELECT currency, COUNT(*), COALESCE(SUM(current_balance), 0)
		FROM accounts
		WHERE status <> 'closed'
		GROUP BY currency
		ORDER BY currency
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query balance sheet: %w", err)
	}
	defer rows.Close()

	var result []*views.BalanceSheetRow
	for rows.Next() {
		var row views.BalanceSheetRow
		var totalStr string
		if err := rows.Scan(&row.Currency, &row.AccountCount, &totalStr); err != nil {
			return nil, fmt.Errorf("failed to scan balance sheet row: %w", err)
		}
		if row.TotalBalance, err = decimal.NewFromString(totalStr); err != nil {
			return nil, fmt.Errorf("failed to parse total balance: %w", err)
		}
		result = append(result, &row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating balance sheet: %w", err)
	}

	return result, nil
}

// IntegrityViolations returns accounts whose denormalized balance drifted
// from the sum of their entries beyond the smallest representable amount.
// A healthy ledger returns zero rows.
func (r *ViewsRepository) IntegrityViolations(ctx context.Context) ([]*views.IntegrityViolation, error) {
	query := `
		SELECT a.id, a.account_number, a.current_balance,
		       COALESCE(e.total, 0), a.current_balance - COALESCE(e.total, 0)
		FROM accounts a
		LEFT JOIN (
			SELECT account_id, SUM(amount) AS total
			FROM transaction_entries
			GROUP BY account_id
		) e ON e.account_id = a.id
		WHERE ABS(a.current_balance - COALESCE(e.total, 0)) >= 0.0001
		ORDER BY a.id
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query integrity violations: %w", err)
	}
	defer rows.Close()

	var result []*views.IntegrityViolation
	for rows.Next() {
		var v views.IntegrityViolation
		var balanceStr, sumStr, driftStr string
		if err := rows.Scan(&v.AccountID, &v.AccountNumber, &balanceStr, &sumStr, &driftStr); err != nil {
			return nil, fmt.Errorf("failed to scan integrity violation: %w", err)
		}
		if v.CurrentBalance, err = decimal.NewFromString(balanceStr); err != nil {
			return nil, fmt.Errorf("failed to parse current balance: %w", err)
		}
		if v.EntriesSum, err = decimal.NewFromString(sumStr); err != nil {
			return nil, fmt.Errorf("failed to parse entries sum: %w", err)
		}
		if v.Drift, err = decimal.NewFromString(driftStr); err != nil {
			return nil, fmt.Errorf("failed to parse drift: %w", err)
		}
		result = append(result, &v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating integrity violations: %w", err)
	}

	return result, nil
}

// UnbalancedTransactions returns multi-leg transactions whose entries do not
// sum to zero. Failed transactions never have entries, so only posted state
// is inspected. A healthy ledger returns zero rows.
func (r *ViewsRepository) UnbalancedTransactions(ctx context.Context) ([]*views.UnbalancedTransaction, error) {
	query := `
		SELECT t.id, t.reference_id, tt.code, COUNT(e.id), SUM(e.amount), t.created_at
		FROM transactions t
		JOIN transaction_types tt ON tt.id = t.type_id
		JOIN transaction_entries e ON e.transaction_id = t.id
		GROUP BY t.id, t.reference_id, tt.code, t.created_at
		HAVING (tt.code = 'TRANSFER' OR COUNT(e.id) > 1)
		   AND ABS(SUM(e.amount)) >= 0.0001
		ORDER BY t.id
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query unbalanced transactions: %w", err)
	}
	defer rows.Close()

	var result []*views.UnbalancedTransaction
	for rows.Next() {
		var u views.UnbalancedTransaction
		var sumStr string
		if err := rows.Scan(&u.TransactionID, &u.ReferenceID, &u.TypeCode, &u.EntryCount, &sumStr, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan unbalanced transaction: %w", err)
		}
		if u.EntriesSum, err = decimal.NewFromString(sumStr); err != nil {
			return nil, fmt.Errorf("failed to parse entries sum: %w", err)
		}
		result = append(result, &u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating unbalanced transactions: %w", err)
	}

	return result, nil
}

// History returns filtered entry lines joined with their headers
func (r *ViewsRepository) History(ctx context.Context, f views.HistoryFilters) ([]*views.HistoryLine, error) {
	builder := sq.Select(
		"e.id", "t.id", "t.reference_id", "e.account_id", "tt.code",
		"t.description", "e.amount", "e.balance_after", "t.status", "e.created_at",
	).
		From("transaction_entries e").
		Join("transactions t ON t.id = e.transaction_id").
		Join("transaction_types tt ON tt.id = t.type_id").
		OrderBy("e.id DESC").
		PlaceholderFormat(sq.Dollar)

	if f.UserID != 0 {
		builder = builder.
			Join("accounts a ON a.id = e.account_id").
			Where(sq.Eq{"a.user_id": f.UserID})
	}
	if f.AccountID != 0 {
		builder = builder.Where(sq.Eq{"e.account_id": f.AccountID})
	}
	if f.TypeCode != "" {
		builder = builder.Where(sq.Eq{"tt.code": string(f.TypeCode)})
	}
	if f.From != nil {
		builder = builder.Where(sq.GtOrEq{"e.created_at": *f.From})
	}
	if f.To != nil {
		builder = builder.Where(sq.LtOrEq{"e.created_at": *f.To})
	}
	if f.MinAmount != nil {
		builder = builder.Where(sq.GtOrEq{"ABS(e.amount)": f.MinAmount.String()})
	}
	if f.MaxAmount != nil {
		builder = builder.Where(sq.LtOrEq{"ABS(e.amount)": f.MaxAmount.String()})
	}
	if f.Search != "" {
		builder = builder.Where(sq.ILike{"t.description": "%" + f.Search + "%"})
	}
	if f.Limit > 0 {
		builder = builder.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		builder = builder.Offset(uint64(f.Offset))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build history query: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var lines []*views.HistoryLine
	for rows.Next() {
		var line views.HistoryLine
		var amountStr, balanceAfterStr string
		err := rows.Scan(
			&line.EntryID,
			&line.TransactionID,
			&line.ReferenceID,
			&line.AccountID,
			&line.TypeCode,
			&line.Description,
			&amountStr,
			&balanceAfterStr,
			&line.Status,
			&line.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history line: %w", err)
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
		return nil, fmt.Errorf("error iterating history: %w", err)
	}

	return lines, nil
}

// SpendingSummary aggregates a user's flow across all their accounts in the
// window. Failed transactions never have entries; reversed ones keep both
// the original and the compensating legs, so the net is honest.
func (r *ViewsRepository) SpendingSummary(ctx context.Context, userID int64, from, to time.Time) (*views.SpendingSummary, error) {
	query := `
		SELECT
			COALESCE(SUM(CASE WHEN e.amount > 0 THEN e.amount ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN e.amount < 0 THEN -e.amount ELSE 0 END), 0)
		FROM transaction_entries e
		JOIN accounts a ON a.id = e.account_id
		WHERE a.user_id = $1 AND e.created_at >= $2 AND e.created_at <= $3
	`

	var incomeStr, expensesStr string
	if err := r.db.QueryRow(ctx, query, userID, from, to).Scan(&incomeStr, &expensesStr); err != nil {
		return nil, fmt.Errorf("failed to query spending summary: %w", err)
	}

	income, err := decimal.NewFromString(incomeStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse income: %w", err)
	}
	expenses, err := decimal.NewFromString(expensesStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse expenses: %w", err)
	}

	return &views.SpendingSummary{
		UserID:   userID,
		From:     from,
		To:       to,
		Income:   income,
		Expenses: expenses,
		NetFlow:  income.Sub(expenses),
	}, nil
}

const riskScoreColumns = `rs.id, rs.transaction_id, rs.risk_score, rs.verdict, rs.features_used, rs.model_version, rs.scored_at`

// scanRiskScore reads one risk score row. features_used and model_version
// are nullable; the worker omits them when feature extraction fails.
func scanRiskScore(row pgx.Row, s *views.RiskScore) error {
	var scoreStr string
	var features []byte
	var modelVersion *string
	if err := row.Scan(&s.ID, &s.TransactionID, &scoreStr, &s.Verdict, &features, &modelVersion, &s.ScoredAt); err != nil {
		return err
	}
	var err error
	if s.Score, err = decimal.NewFromString(scoreStr); err != nil {
		return fmt.Errorf("failed to parse risk score: %w", err)
	}
	s.FeaturesUsed = features
	if modelVersion != nil {
		s.ModelVersion = *modelVersion
	}
	return nil
}

// RiskScoresByUser lists scores for transactions touching the user's
// accounts, newest first. Scores attach to whole transactions, so the link
// to a user runs through the entries.
func (r *ViewsRepository) RiskScoresByUser(ctx context.Context, userID int64, limit int) ([]*views.RiskScore, error) {
	query := `
		SELECT DISTINCT ` + riskScoreColumns + `
		FROM transaction_risk_scores rs
		JOIN transaction_entries e ON e.transaction_id = rs.transaction_id
		JOIN accounts a ON a.id = e.account_id
		WHERE a.user_id = $1
		ORDER BY rs.scored_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query risk scores: %w", err)
	}
	defer rows.Close()

	var scores []*views.RiskScore
	for rows.Next() {
		var s views.RiskScore
		if err := scanRiskScore(rows, &s); err != nil {
			return nil, fmt.Errorf("failed to scan risk score: %w", err)
		}
		scores = append(scores, &s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating risk scores: %w", err)
	}

	return scores, nil
}

// FlaggedTransactions returns the review queue: SUSPICIOUS and CRITICAL
// verdicts by descending score. The lateral picks the debit leg (or the
// single leg of a one-sided movement) to name the amount and the customer.
func (r *ViewsRepository) FlaggedTransactions(ctx context.Context, limit int) ([]*views.FlaggedTransaction, error) {
	query := `
		SELECT ` + riskScoreColumns + `,
		       t.reference_id, t.description, ABS(leg.amount), u.username
		FROM transaction_risk_scores rs
		JOIN transactions t ON t.id = rs.transaction_id
		JOIN LATERAL (
			SELECT e.amount, a.user_id
			FROM transaction_entries e
			JOIN accounts a ON a.id = e.account_id
			WHERE e.transaction_id = t.id
			ORDER BY e.amount ASC
			LIMIT 1
		) leg ON TRUE
		JOIN users u ON u.id = leg.user_id
		WHERE rs.verdict IN ('SUSPICIOUS', 'CRITICAL')
		ORDER BY rs.risk_score DESC
		LIMIT $1
	`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query flagged transactions: %w", err)
	}
	defer rows.Close()

	var flagged []*views.FlaggedTransaction
	for rows.Next() {
		var f views.FlaggedTransaction
		var scoreStr, amountStr string
		var features []byte
		var modelVersion *string
		err := rows.Scan(
			&f.ID, &f.TransactionID, &scoreStr, &f.Verdict, &features, &modelVersion, &f.ScoredAt,
			&f.ReferenceID, &f.Description, &amountStr, &f.Username,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan flagged transaction: %w", err)
		}
		if f.Score, err = decimal.NewFromString(scoreStr); err != nil {
			return nil, fmt.Errorf("failed to parse risk score: %w", err)
		}
		f.FeaturesUsed = features
		if modelVersion != nil {
			f.ModelVersion = *modelVersion
		}
		if f.Amount, err = decimal.NewFromString(amountStr); err != nil {
			return nil, fmt.Errorf("failed to parse amount: %w", err)
		}
		flagged = append(flagged, &f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating flagged transactions: %w", err)
	}

	return flagged, nil
}

// DashboardMetrics collects the admin KPIs in one round trip
func (r *ViewsRepository) DashboardMetrics(ctx context.Context) (*views.DashboardMetrics, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM accounts),
			(SELECT COUNT(*) FROM transactions),
			(SELECT COALESCE(SUM(current_balance), 0) FROM accounts WHERE status <> 'closed'),
			(SELECT COUNT(*) FROM users WHERE kyc_status = 'pending'),
			(SELECT COUNT(*) FROM accounts WHERE status = 'frozen'),
			(SELECT COUNT(*) FROM transactions WHERE created_at >= NOW() - INTERVAL '24 hours')
	`

	var m views.DashboardMetrics
	var balanceStr string
	err := r.db.QueryRow(ctx, query).Scan(
		&m.TotalUsers,
		&m.TotalAccounts,
		&m.TotalTransactions,
		&balanceStr,
		&m.PendingKYC,
		&m.FrozenAccounts,
		&m.TransactionsLast24h,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query dashboard metrics: %w", err)
	}
	if m.SystemBalance, err = decimal.NewFromString(balanceStr); err != nil {
		return nil, fmt.Errorf("failed to parse system balance: %w", err)
	}

	return &m, nil
}

var _ views.Repository = (*ViewsRepository)(nil)
