package views_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crestbank/core/internal/views"
	"github.com/crestbank/core/pkg/logger"
)

type fakeViewsRepo struct {
	dashboardCalls int
	dashboard      *views.DashboardMetrics

	balanceSheetCalls int

	historyFilters []views.HistoryFilters

	spendingFrom time.Time
	spendingTo   time.Time

	riskLimit    int
	flaggedLimit int

	drift      []*views.IntegrityViolation
	unbalanced []*views.UnbalancedTransaction
}

func (f *fakeViewsRepo) BalanceSheet(ctx context.Context) ([]*views.BalanceSheetRow, error) {
	f.balanceSheetCalls++
	return []*views.BalanceSheetRow{
		{Currency: "USD", AccountCount: 3, TotalBalance: decimal.NewFromInt(1000)},
	}, nil
}

func (f *fakeViewsRepo) IntegrityViolations(ctx context.Context) ([]*views.IntegrityViolation, error) {
	return f.drift, nil
}

func (f *fakeViewsRepo) UnbalancedTransactions(ctx context.Context) ([]*views.UnbalancedTransaction, error) {
	return f.unbalanced, nil
}

func (f *fakeViewsRepo) History(ctx context.Context, filters views.HistoryFilters) ([]*views.HistoryLine, error) {
	f.historyFilters = append(f.historyFilters, filters)
	return nil, nil
}

func (f *fakeViewsRepo) SpendingSummary(ctx context.Context, userID int64, from, to time.Time) (*views.SpendingSummary, error) {
	f.spendingFrom = from
	f.spendingTo = to
	return &views.SpendingSummary{UserID: userID, From: from, To: to}, nil
}

func (f *fakeViewsRepo) RiskScoresByUser(ctx context.Context, userID int64, limit int) ([]*views.RiskScore, error) {
	f.riskLimit = limit
	return nil, nil
}

func (f *fakeViewsRepo) FlaggedTransactions(ctx context.Context, limit int) ([]*views.FlaggedTransaction, error) {
	f.flaggedLimit = limit
	return nil, nil
}

func (f *fakeViewsRepo) DashboardMetrics(ctx context.Context) (*views.DashboardMetrics, error) {
	f.dashboardCalls++
	if f.dashboard == nil {
		f.dashboard = &views.DashboardMetrics{TotalUsers: 12}
	}
	return f.dashboard, nil
}

// fakeCache is an in-memory views.Cache with no expiry.
type fakeCache struct {
	data map[string][]byte
	sets int
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string][]byte)}
}

func (c *fakeCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	raw, ok := c.data[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *fakeCache) Set(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.data[key] = raw
	c.sets++
	return nil
}

// brokenCache fails every operation, standing in for an unreachable Redis.
type brokenCache struct{}

func (brokenCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	return false, errors.New("connection refused")
}

func (brokenCache) Set(ctx context.Context, key string, value any) error {
	return errors.New("connection refused")
}

func newViewsService(repo views.Repository, cache views.Cache) *views.Service {
	return views.NewService(repo, nil, cache, logger.NewDefault("test"))
}

func TestDashboard_CachesResult(t *testing.T) {
	repo := &fakeViewsRepo{}
	cache := newFakeCache()
	svc := newViewsService(repo, cache)
	ctx := context.Background()

	first, err := svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(12), first.TotalUsers)
	assert.Equal(t, 1, repo.dashboardCalls)

	second, err := svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(12), second.TotalUsers)
	assert.Equal(t, 1, repo.dashboardCalls, "second read served from cache")
}

func TestBalanceSheet_CachesResult(t *testing.T) {
	repo := &fakeViewsRepo{}
	svc := newViewsService(repo, newFakeCache())
	ctx := context.Background()

	_, err := svc.BalanceSheet(ctx)
	require.NoError(t, err)

	rows, err := svc.BalanceSheet(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "USD", rows[0].Currency)
	assert.True(t, rows[0].TotalBalance.Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, 1, repo.balanceSheetCalls)
}

func TestDashboard_BrokenCacheDegradesToDirectRead(t *testing.T) {
	repo := &fakeViewsRepo{}
	svc := newViewsService(repo, brokenCache{})
	ctx := context.Background()

	_, err := svc.Dashboard(ctx)
	require.NoError(t, err)
	_, err = svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.dashboardCalls, "every read hits the store when the cache is down")
}

func TestDashboard_NilCache(t *testing.T) {
	repo := &fakeViewsRepo{}
	svc := newViewsService(repo, nil)

	_, err := svc.Dashboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, repo.dashboardCalls)
}

func TestIntegrityCheck(t *testing.T) {
	repo := &fakeViewsRepo{}
	svc := newViewsService(repo, nil)
	ctx := context.Background()

	report, err := svc.IntegrityCheck(ctx)
	require.NoError(t, err)
	assert.True(t, report.Healthy)

	repo.unbalanced = []*views.UnbalancedTransaction{
		{TransactionID: 9, EntryCount: 2, EntriesSum: decimal.RequireFromString("-10")},
	}
	report, err = svc.IntegrityCheck(ctx)
	require.NoError(t, err)
	assert.False(t, report.Healthy, "a transaction whose legs do not cancel out fails the check")

	repo.unbalanced = nil
	repo.drift = []*views.IntegrityViolation{
		{AccountID: 3, Drift: decimal.RequireFromString("0.5")},
	}
	report, err = svc.IntegrityCheck(ctx)
	require.NoError(t, err)
	assert.False(t, report.Healthy, "balance drift alone also fails the check")
}

func TestHistory_LimitClamping(t *testing.T) {
	repo := &fakeViewsRepo{}
	svc := newViewsService(repo, nil)
	ctx := context.Background()

	_, err := svc.History(ctx, views.HistoryFilters{})
	require.NoError(t, err)
	_, err = svc.History(ctx, views.HistoryFilters{Limit: 9999, Offset: -5})
	require.NoError(t, err)
	_, err = svc.History(ctx, views.HistoryFilters{Limit: 10, Offset: 20})
	require.NoError(t, err)

	require.Len(t, repo.historyFilters, 3)
	assert.Equal(t, 50, repo.historyFilters[0].Limit)
	assert.Equal(t, 500, repo.historyFilters[1].Limit)
	assert.Equal(t, 0, repo.historyFilters[1].Offset)
	assert.Equal(t, 10, repo.historyFilters[2].Limit)
	assert.Equal(t, 20, repo.historyFilters[2].Offset)
}

func TestHistory_RejectsInvertedAmountRange(t *testing.T) {
	svc := newViewsService(&fakeViewsRepo{}, nil)

	lo := decimal.NewFromInt(10)
	hi := decimal.NewFromInt(5)
	_, err := svc.History(context.Background(), views.HistoryFilters{
		MinAmount: &lo,
		MaxAmount: &hi,
	})
	assert.Error(t, err)
}

func TestSpending_DefaultWindow(t *testing.T) {
	repo := &fakeViewsRepo{}
	svc := newViewsService(repo, nil)

	before := time.Now()
	_, err := svc.Spending(context.Background(), 1, time.Time{}, time.Time{})
	require.NoError(t, err)

	assert.WithinDuration(t, before, repo.spendingTo, 2*time.Second)
	assert.WithinDuration(t, before.AddDate(0, 0, -30), repo.spendingFrom, 2*time.Second)
}

func TestSpending_RejectsInvertedWindow(t *testing.T) {
	svc := newViewsService(&fakeViewsRepo{}, nil)

	now := time.Now()
	_, err := svc.Spending(context.Background(), 1, now, now.Add(-time.Hour))
	assert.Error(t, err)
}

func TestRiskScores_LimitClamping(t *testing.T) {
	repo := &fakeViewsRepo{}
	svc := newViewsService(repo, nil)
	ctx := context.Background()

	_, err := svc.RiskScores(ctx, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 20, repo.riskLimit)

	_, err = svc.RiskScores(ctx, 1, 500)
	require.NoError(t, err)
	assert.Equal(t, 20, repo.riskLimit, "out-of-range limit falls back to the default")

	_, err = svc.RiskScores(ctx, 1, 40)
	require.NoError(t, err)
	assert.Equal(t, 40, repo.riskLimit)
}

func TestFlagged_LimitClamping(t *testing.T) {
	repo := &fakeViewsRepo{}
	svc := newViewsService(repo, nil)
	ctx := context.Background()

	_, err := svc.Flagged(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 50, repo.flaggedLimit)

	_, err = svc.Flagged(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 100, repo.flaggedLimit)
}
