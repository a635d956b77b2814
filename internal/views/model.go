// Package views is the read-only projection layer. Everything here reads
// committed state; nothing mutates the ledger. Staleness is bounded by the
// cache TTL on the cached views and is zero on the direct ones.
package views

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/crestbank/core/internal/ledger"
)

// BalanceSheetRow aggregates non-closed accounts for one currency.
type BalanceSheetRow struct {
	Currency     string          `json:"currency"`
	AccountCount int64           `json:"account_count"`
	TotalBalance decimal.Decimal `json:"total_balance"`
}

// IntegrityViolation is one account whose denormalized balance drifted from
// the sum of its entries. The healthy result set is empty.
type IntegrityViolation struct {
	AccountID      int64           `json:"account_id"`
	AccountNumber  string          `json:"account_number"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
	EntriesSum     decimal.Decimal `json:"entries_sum"`
	Drift          decimal.Decimal `json:"drift"`
}

// UnbalancedTransaction is a multi-leg transaction whose entries do not sum
// to zero. The healthy result set is empty.
type UnbalancedTransaction struct {
	TransactionID int64           `json:"transaction_id"`
	ReferenceID   string          `json:"reference_id"`
	TypeCode      ledger.TypeCode `json:"type"`
	EntryCount    int64           `json:"entry_count"`
	EntriesSum    decimal.Decimal `json:"entries_sum"`
	CreatedAt     time.Time       `json:"created_at"`
}

// IntegrityReport is the full consistency check: transactions whose legs do
// not cancel out, plus accounts whose stored balance disagrees with their
// entries. Healthy is true when both lists are empty.
type IntegrityReport struct {
	UnbalancedTransactions []*UnbalancedTransaction `json:"unbalanced_transactions"`
	BalanceDrift           []*IntegrityViolation    `json:"balance_drift"`
	Healthy                bool                     `json:"healthy"`
}

// HistoryFilters narrows the transaction history query. Zero values mean
// "no constraint".
type HistoryFilters struct {
	UserID    int64 // spans all of the user's accounts
	AccountID int64
	TypeCode  ledger.TypeCode
	From      *time.Time
	To        *time.Time
	MinAmount *decimal.Decimal
	MaxAmount *decimal.Decimal
	Search    string // substring match on description
	Limit     int
	Offset    int
}

// HistoryLine is one entry joined with its transaction header.
type HistoryLine struct {
	EntryID       int64           `json:"entry_id"`
	TransactionID int64           `json:"transaction_id"`
	ReferenceID   string          `json:"reference_id"`
	AccountID     int64           `json:"account_id"`
	TypeCode      ledger.TypeCode `json:"type"`
	Description   string          `json:"description"`
	Amount        decimal.Decimal `json:"amount"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	Status        ledger.Status   `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
}

// SpendingSummary aggregates a user's money flow over a period.
type SpendingSummary struct {
	UserID   int64           `json:"user_id"`
	From     time.Time       `json:"from"`
	To       time.Time       `json:"to"`
	Income   decimal.Decimal `json:"income"`
	Expenses decimal.Decimal `json:"expenses"` // reported as a positive figure
	NetFlow  decimal.Decimal `json:"net_flow"`
}

// Verdict is the scoring worker's classification of a transaction.
type Verdict string

const (
	VerdictSafe       Verdict = "SAFE"
	VerdictSuspicious Verdict = "SUSPICIOUS"
	VerdictCritical   Verdict = "CRITICAL"
)

// RiskScore is one scored transaction, written by the external scoring
// worker; at most one row exists per transaction. Score is normalized to
// [0, 1]. This module only reads them.
type RiskScore struct {
	ID            int64           `json:"id"`
	TransactionID int64           `json:"transaction_id"`
	Score         decimal.Decimal `json:"risk_score"`
	Verdict       Verdict         `json:"verdict"`
	FeaturesUsed  json.RawMessage `json:"features_used,omitempty"`
	ModelVersion  string          `json:"model_version,omitempty"`
	ScoredAt      time.Time       `json:"scored_at"`
}

// FlaggedTransaction is a suspicious or critical score joined with its
// transaction header for the review queue.
type FlaggedTransaction struct {
	RiskScore
	ReferenceID string          `json:"reference_id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Username    string          `json:"username"`
}

// DashboardMetrics are the admin landing-page KPIs.
type DashboardMetrics struct {
	TotalUsers        int64           `json:"total_users"`
	TotalAccounts     int64           `json:"total_accounts"`
	TotalTransactions int64           `json:"total_transactions"`
	SystemBalance     decimal.Decimal `json:"system_balance"`
	PendingKYC        int64           `json:"pending_kyc"`
	FrozenAccounts    int64           `json:"frozen_accounts"`
	TransactionsLast24h int64         `json:"transactions_last_24h"`
}

// CustomerStatement is an account detail with its recent activity.
type CustomerStatement struct {
	Account *ledger.Account         `json:"account"`
	Lines   []*ledger.StatementLine `json:"lines"`
}
