package views

import (
	"context"
	"time"

	"github.com/crestbank/core/internal/ledger"
	apperrors "github.com/crestbank/core/internal/shared/errors"
	"github.com/crestbank/core/pkg/logger"
)

const (
	cacheKeyDashboard    = "views:dashboard"
	cacheKeyBalanceSheet = "views:balance_sheet"
)

// Service assembles read views, caching the expensive admin aggregates.
type Service struct {
	repo   Repository
	ledger *ledger.Service
	cache  Cache
	log    *logger.Logger
}

// NewService creates a new view service. cache may be nil, in which case
// every read goes to the store.
func NewService(repo Repository, ledgerSvc *ledger.Service, cache Cache, log *logger.Logger) *Service {
	return &Service{
		repo:   repo,
		ledger: ledgerSvc,
		cache:  cache,
		log:    log,
	}
}

// cached runs fetch through the cache under key. Cache failures are logged
// and degrade to a direct read.
func cached[T any](ctx context.Context, s *Service, key string, fetch func(context.Context) (T, error)) (T, error) {
	var zero T
	if s.cache != nil {
		var v T
		hit, err := s.cache.Get(ctx, key, &v)
		if err != nil {
			s.log.WithContext(ctx).WithError(err).Warn("view cache read failed", "key", key)
		} else if hit {
			return v, nil
		}
	}

	v, err := fetch(ctx)
	if err != nil {
		return zero, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, v); err != nil {
			s.log.WithContext(ctx).WithError(err).Warn("view cache write failed", "key", key)
		}
	}
	return v, nil
}

// Dashboard returns the admin KPIs, served from cache when fresh.
func (s *Service) Dashboard(ctx context.Context) (*DashboardMetrics, error) {
	return cached(ctx, s, cacheKeyDashboard, s.repo.DashboardMetrics)
}

// BalanceSheet returns per-currency balance aggregates over non-closed
// accounts, served from cache when fresh.
func (s *Service) BalanceSheet(ctx context.Context) ([]*BalanceSheetRow, error) {
	return cached(ctx, s, cacheKeyBalanceSheet, s.repo.BalanceSheet)
}

// IntegrityCheck runs the full consistency check: transactions whose legs do
// not sum to zero, and accounts whose stored balance disagrees with the sum
// of their entries. Always a direct read; a stale answer here would defeat
// the point.
func (s *Service) IntegrityCheck(ctx context.Context) (*IntegrityReport, error) {
	unbalanced, err := s.repo.UnbalancedTransactions(ctx)
	if err != nil {
		return nil, err
	}
	drift, err := s.repo.IntegrityViolations(ctx)
	if err != nil {
		return nil, err
	}
	return &IntegrityReport{
		UnbalancedTransactions: unbalanced,
		BalanceDrift:           drift,
		Healthy:                len(unbalanced) == 0 && len(drift) == 0,
	}, nil
}

// History returns filtered transaction history lines. The limit is clamped
// to [1, 500] with a default of 50.
func (s *Service) History(ctx context.Context, f HistoryFilters) ([]*HistoryLine, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Limit > 500 {
		f.Limit = 500
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	if f.MinAmount != nil && f.MaxAmount != nil && f.MinAmount.GreaterThan(*f.MaxAmount) {
		return nil, apperrors.InvalidInput("min_amount exceeds max_amount")
	}
	return s.repo.History(ctx, f)
}

// Statement returns an account with its most recent ledger lines.
func (s *Service) Statement(ctx context.Context, accountID int64, limit int) (*CustomerStatement, error) {
	account, err := s.ledger.QueryBalance(ctx, accountID)
	if err != nil {
		return nil, err
	}
	lines, err := s.ledger.QueryStatement(ctx, accountID, limit)
	if err != nil {
		return nil, err
	}
	return &CustomerStatement{Account: account, Lines: lines}, nil
}

// MiniStatement returns the last few lines for an account detail card.
func (s *Service) MiniStatement(ctx context.Context, accountID int64) ([]*ledger.StatementLine, error) {
	return s.ledger.QueryStatement(ctx, accountID, 5)
}

// Spending summarizes a user's flow over the window, defaulting to the last
// 30 days.
func (s *Service) Spending(ctx context.Context, userID int64, from, to time.Time) (*SpendingSummary, error) {
	if to.IsZero() {
		to = time.Now()
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -30)
	}
	if from.After(to) {
		return nil, apperrors.InvalidInput("from is after to")
	}
	return s.repo.SpendingSummary(ctx, userID, from, to)
}

// RiskScores lists recent risk scores for one user, newest first.
func (s *Service) RiskScores(ctx context.Context, userID int64, limit int) ([]*RiskScore, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.RiskScoresByUser(ctx, userID, limit)
}

// Flagged lists SUSPICIOUS and CRITICAL verdicts by descending score for the
// review queue.
func (s *Service) Flagged(ctx context.Context, limit int) ([]*FlaggedTransaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.FlaggedTransactions(ctx, limit)
}
