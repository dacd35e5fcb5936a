package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-backoffice-api/internal/dto"
	"github.com/noah-isme/sma-backoffice-api/internal/models"
	"github.com/noah-isme/sma-backoffice-api/internal/rules"
	appErrors "github.com/noah-isme/sma-backoffice-api/pkg/errors"
)

var testActor = models.Actor{UserID: "u1", Role: models.RoleFinance, IP: "10.0.0.1", UserAgent: "test"}

func newTestFinanceService(repo *fakeFinanceRepo, audit AuditWriter, cache *CacheService) *FinanceService {
	svc := NewFinanceService(FinanceServiceParams{
		Repo:    repo,
		Audit:   audit,
		Cache:   cache,
		Metrics: NewMetricsService(),
		Logger:  zap.NewNop(),
	})
	svc.clock = fixedClock(time.UTC)
	return svc
}

func TestFinanceServiceListStudentsLabelsRecords(t *testing.T) {
	repo := newFakeFinanceRepo(
		feeRecord("s1", "c1", "500", testDay(-10), testDay(30)),
		feeRecord("s2", "c1", "0", testDay(-40), testDay(-1)),
		feeRecord("s3", "c1", "200", nil, testDay(30)),
	)
	svc := newTestFinanceService(repo, nil, nil)

	views, pagination, err := svc.ListStudents(context.Background(), models.StudentFinanceFilter{})
	require.NoError(t, err)
	require.Len(t, views, 3)
	assert.Equal(t, 3, pagination.TotalCount)
	assert.Equal(t, 1, pagination.Page)

	assert.Equal(t, string(rules.PaymentOverdue), views[0].PaymentStatus)
	assert.Equal(t, 10, views[0].DaysOverdue)
	assert.Equal(t, string(rules.ClearanceNotEligibleBalance), views[0].ClearanceState)
	require.NotNil(t, views[0].Installments)

	assert.Equal(t, string(rules.PaymentPaid), views[1].PaymentStatus)
	assert.Equal(t, string(rules.ClearanceEligiblePending), views[1].ClearanceState)

	assert.Equal(t, dto.StatusNotDeterminable, views[2].PaymentStatus)
	assert.NotEmpty(t, views[2].StatusError)
}

func TestFinanceServiceListStudentsRepositoryError(t *testing.T) {
	repo := newFakeFinanceRepo()
	repo.listErr = errors.New("db down")
	svc := newTestFinanceService(repo, nil, nil)

	_, _, err := svc.ListStudents(context.Background(), models.StudentFinanceFilter{})
	assert.ErrorIs(t, err, appErrors.ErrInternal)
}

func TestFinanceServiceStatusSummaryCountsAndCaches(t *testing.T) {
	suspended := feeRecord("s4", "c1", "300", testDay(5), testDay(30))
	suspended.IsSuspended = true
	unpaid := feeRecord("s5", "c1", "1500", testDay(5), testDay(30))
	repo := newFakeFinanceRepo(
		feeRecord("s1", "c1", "500", testDay(-10), testDay(30)),
		feeRecord("s2", "c1", "0", nil, testDay(-1)),
		feeRecord("s3", "c1", "200", nil, nil),
		suspended,
		unpaid,
	)
	cache, _ := newStubCache()
	svc := newTestFinanceService(repo, nil, cache)

	summary, hit, err := svc.StatusSummary(context.Background(), models.StudentFinanceFilter{})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 1, summary.Counts.Overdue)
	assert.Equal(t, 1, summary.Counts.Paid)
	assert.Equal(t, 1, summary.Counts.Suspended)
	assert.Equal(t, 1, summary.Counts.Unpaid)
	assert.Equal(t, 4, summary.Counts.Total)
	assert.Equal(t, 1, summary.NotDeterminable)
	assert.True(t, amount("2500").Equal(summary.TotalOutstanding), summary.TotalOutstanding.String())
	assert.True(t, amount("7500").Equal(summary.TotalBilled))
	assert.Equal(t, 1, summary.ClearanceCounts.EligiblePending)
	assert.Equal(t, 4, summary.ClearanceCounts.NotEligibleBalance)

	cachedSummary, hit, err := svc.StatusSummary(context.Background(), models.StudentFinanceFilter{})
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, summary.Counts, cachedSummary.Counts)
	assert.Equal(t, 1, repo.listAllCalls)
}

func TestFinanceServiceStatusSummaryCachesPerFilter(t *testing.T) {
	suspended := feeRecord("s1", "c1", "300", testDay(5), testDay(30))
	suspended.IsSuspended = true
	cleared := feeRecord("s3", "c2", "0", nil, testDay(-5))
	cleared.IsCleared = true
	repo := newFakeFinanceRepo(suspended, feeRecord("s2", "c1", "1500", testDay(5), testDay(30)), cleared)
	cache, _ := newStubCache()
	svc := newTestFinanceService(repo, nil, cache)
	yes, no := true, false

	onlySuspended, hit, err := svc.StatusSummary(context.Background(), models.StudentFinanceFilter{Suspended: &yes})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 1, onlySuspended.Counts.Total)

	all, hit, err := svc.StatusSummary(context.Background(), models.StudentFinanceFilter{})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 3, all.Counts.Total)

	notSuspended, hit, err := svc.StatusSummary(context.Background(), models.StudentFinanceFilter{Suspended: &no})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, notSuspended.Counts.Total)

	onlyCleared, hit, err := svc.StatusSummary(context.Background(), models.StudentFinanceFilter{Cleared: &yes})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 1, onlyCleared.ClearanceCounts.Cleared)

	oneStudent, hit, err := svc.StatusSummary(context.Background(), models.StudentFinanceFilter{StudentID: "s2"})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 1, oneStudent.Counts.Unpaid)
	assert.Equal(t, 5, repo.listAllCalls)

	again, hit, err := svc.StatusSummary(context.Background(), models.StudentFinanceFilter{Suspended: &yes})
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, again.Counts.Total)
	assert.Equal(t, 5, repo.listAllCalls)
}

func TestFinanceServiceStudentDetail(t *testing.T) {
	repo := newFakeFinanceRepo(
		feeRecord("s1", "c1", "500", testDay(-10), testDay(30)),
		feeRecord("s1", "c2", "0", nil, testDay(-5)),
		feeRecord("s2", "c1", "0", nil, testDay(-5)),
	)
	repo.transactions = []models.TransactionSummary{{StudentID: "s1", ClassID: "c1", Count: 2, TotalPaid: amount("1000")}}
	svc := newTestFinanceService(repo, nil, nil)

	detail, err := svc.StudentDetail(context.Background(), "s1")
	require.NoError(t, err)
	assert.Len(t, detail.Records, 2)
	assert.Len(t, detail.Transactions, 1)

	_, err = svc.StudentDetail(context.Background(), "missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestFinanceServiceSuspendWritesAuditAndInvalidates(t *testing.T) {
	repo := newFakeFinanceRepo(feeRecord("s1", "c1", "500", testDay(3), testDay(30)))
	audit := &fakeAuditWriter{}
	cache, cacheRepo := newStubCache()
	svc := newTestFinanceService(repo, audit, cache)

	view, err := svc.Suspend(context.Background(), testActor, "s1", "c1")
	require.NoError(t, err)
	assert.True(t, view.IsSuspended)
	assert.Equal(t, string(rules.PaymentSuspended), view.PaymentStatus)
	assert.Equal(t, 1, repo.writes)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionSuspend, audit.logs[0].Action)
	assert.Equal(t, "s1/c1", *audit.logs[0].ResourceID)
	assert.Equal(t, "u1", *audit.logs[0].UserID)
	assert.Contains(t, cacheRepo.deleted, financeCachePattern)

	// already suspended: nothing written
	_, err = svc.Suspend(context.Background(), testActor, "s1", "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, repo.writes)
	assert.Len(t, audit.logs, 1)

	view, err = svc.Unsuspend(context.Background(), testActor, "s1", "c1")
	require.NoError(t, err)
	assert.False(t, view.IsSuspended)
	assert.Equal(t, models.AuditActionUnsuspend, audit.logs[1].Action)
}

func TestFinanceServiceSuspendNotFound(t *testing.T) {
	svc := newTestFinanceService(newFakeFinanceRepo(), nil, nil)

	_, err := svc.Suspend(context.Background(), testActor, "s1", "c1")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = svc.Suspend(context.Background(), testActor, "", "c1")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestFinanceServiceBulkSuspendPartialSuccess(t *testing.T) {
	repo := newFakeFinanceRepo(
		feeRecord("s1", "c1", "500", testDay(-3), testDay(30)),
		feeRecord("s2", "c1", "500", testDay(-3), testDay(30)),
	)
	audit := &fakeAuditWriter{}
	svc := newTestFinanceService(repo, audit, nil)

	result, err := svc.BulkSuspend(context.Background(), testActor, dto.BulkRequest{Items: []models.StudentClassRef{
		{StudentID: "s1", ClassID: "c1"},
		{StudentID: "ghost", ClassID: "c1"},
		{StudentID: "s2", ClassID: "c1"},
	}})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Requested)
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "ghost", result.Failures[0].StudentID)
	assert.Equal(t, appErrors.ErrNotFound.Code, result.Failures[0].Code)
	assert.True(t, repo.records["s1/c1"].IsSuspended)
	assert.True(t, repo.records["s2/c1"].IsSuspended)

	// two item entries and one bulk summary
	require.Len(t, audit.logs, 3)
	assert.Equal(t, models.AuditActionBulkSuspend, audit.logs[2].Action)

	snapshot := svc.metrics.Snapshot()
	assert.Equal(t, uint64(2), snapshot.BulkItemsSucceeded)
	assert.Equal(t, uint64(1), snapshot.BulkItemsFailed)
}

func TestFinanceServiceBulkSuspendValidation(t *testing.T) {
	svc := newTestFinanceService(newFakeFinanceRepo(), nil, nil)

	_, err := svc.BulkSuspend(context.Background(), testActor, dto.BulkRequest{})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.BulkSuspend(context.Background(), testActor, dto.BulkRequest{Items: []models.StudentClassRef{{StudentID: "s1"}}})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestFinanceServiceRevenue(t *testing.T) {
	academic := "academic"
	repo := newFakeFinanceRepo()
	repo.revenue = []models.RevenueRow{
		{ServiceName: "Tuition", Category: &academic, PaymentMethod: "transfer", Transactions: 3, Amount: amount("1500")},
		{ServiceName: "Uniform", PaymentMethod: "cash", Transactions: 1, Amount: amount("80")},
	}
	cache, _ := newStubCache()
	svc := newTestFinanceService(repo, nil, cache)

	report, hit, err := svc.Revenue(context.Background(), models.RevenueFilter{})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.True(t, amount("1580").Equal(report.Summary.TotalAmount))
	assert.Equal(t, 4, report.Summary.TotalTransactions)
	require.Len(t, report.Summary.ByCategory, 2)
	assert.Equal(t, "uncategorized", report.Summary.ByCategory[1].Label)

	_, hit, err = svc.Revenue(context.Background(), models.RevenueFilter{})
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, repo.revenueCalls)
}

func TestFinanceServiceRevenueCachesPerFilter(t *testing.T) {
	repo := newFakeFinanceRepo()
	repo.revenue = []models.RevenueRow{
		{ServiceName: "Tuition", PaymentMethod: "transfer", Transactions: 3, Amount: amount("1500")},
		{ServiceName: "Uniform", PaymentMethod: "cash", Transactions: 1, Amount: amount("80")},
	}
	cache, _ := newStubCache()
	svc := newTestFinanceService(repo, nil, cache)

	cash, hit, err := svc.Revenue(context.Background(), models.RevenueFilter{PaymentMethod: "cash"})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.True(t, amount("80").Equal(cash.Summary.TotalAmount))

	all, hit, err := svc.Revenue(context.Background(), models.RevenueFilter{})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.True(t, amount("1580").Equal(all.Summary.TotalAmount))

	from := time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC)
	_, hit, err = svc.Revenue(context.Background(), models.RevenueFilter{DateFrom: &from})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 3, repo.revenueCalls)
}

func TestFinanceServiceRevenueRejectsInvertedRange(t *testing.T) {
	svc := newTestFinanceService(newFakeFinanceRepo(), nil, nil)
	from := testNow
	to := testNow.AddDate(0, 0, -1)

	_, _, err := svc.Revenue(context.Background(), models.RevenueFilter{DateFrom: &from, DateTo: &to})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}
