package views

import (
	"context"
	"time"
)

// Repository is the read-side store surface. All queries run against
// committed state on the pool; none participate in engine transactions.
type Repository interface {
	BalanceSheet(ctx context.Context) ([]*BalanceSheetRow, error)
	IntegrityViolations(ctx context.Context) ([]*IntegrityViolation, error)
	UnbalancedTransactions(ctx context.Context) ([]*UnbalancedTransaction, error)
	History(ctx context.Context, f HistoryFilters) ([]*HistoryLine, error)
	SpendingSummary(ctx context.Context, userID int64, from, to time.Time) (*SpendingSummary, error)
	RiskScoresByUser(ctx context.Context, userID int64, limit int) ([]*RiskScore, error)
	FlaggedTransactions(ctx context.Context, limit int) ([]*FlaggedTransaction, error)
	DashboardMetrics(ctx context.Context) (*DashboardMetrics, error)
}

// Cache is a short-TTL store for expensive aggregate views. Misses and
// cache errors both fall through to the repository.
type Cache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any) error
}
