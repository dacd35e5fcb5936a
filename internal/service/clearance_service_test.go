package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-backoffice-api/internal/dto"
	"github.com/noah-isme/sma-backoffice-api/internal/models"
	"github.com/noah-isme/sma-backoffice-api/internal/rules"
	appErrors "github.com/noah-isme/sma-backoffice-api/pkg/errors"
	"github.com/noah-isme/sma-backoffice-api/pkg/export"
)

type fakeRenderer struct {
	certs []export.Certificate
}

func (f *fakeRenderer) RenderCertificate(cert export.Certificate) ([]byte, error) {
	f.certs = append(f.certs, cert)
	return []byte("%PDF-certificate"), nil
}

func newTestClearanceService(repo *fakeFinanceRepo, audit AuditWriter, renderer *fakeRenderer) *ClearanceService {
	svc := NewClearanceService(ClearanceServiceParams{
		Repo:     repo,
		Audit:    audit,
		Renderer: renderer,
		Metrics:  NewMetricsService(),
		Logger:   zap.NewNop(),
		Config:   ClearanceServiceConfig{Institution: "SMA Academy"},
	})
	svc.clock = fixedClock(time.UTC)
	return svc
}

func TestClearanceServiceClearEligible(t *testing.T) {
	repo := newFakeFinanceRepo(feeRecord("s1", "c1", "0", nil, testDay(-1)))
	audit := &fakeAuditWriter{}
	svc := newTestClearanceService(repo, audit, &fakeRenderer{})

	view, err := svc.Clear(context.Background(), testActor, "s1", "c1")
	require.NoError(t, err)
	assert.Equal(t, string(rules.ClearanceCleared), view.State)
	assert.False(t, view.CanClear)
	require.NotNil(t, view.ClearedAt)
	assert.True(t, repo.records["s1/c1"].IsCleared)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionClear, audit.logs[0].Action)
}

func TestClearanceServiceClearRejectsIneligible(t *testing.T) {
	repo := newFakeFinanceRepo(
		feeRecord("s1", "c1", "100", nil, testDay(-1)),
		feeRecord("s2", "c1", "0", nil, testDay(0)),
		feeRecord("s3", "c1", "0", nil, nil),
	)
	svc := newTestClearanceService(repo, &fakeAuditWriter{}, &fakeRenderer{})

	_, err := svc.Clear(context.Background(), testActor, "s1", "c1")
	assert.ErrorIs(t, err, appErrors.ErrIneligible)
	assert.Contains(t, err.Error(), "outstanding balance")

	// class ending today has not ended yet
	_, err = svc.Clear(context.Background(), testActor, "s2", "c1")
	assert.ErrorIs(t, err, appErrors.ErrIneligible)

	_, err = svc.Clear(context.Background(), testActor, "s3", "c1")
	assert.ErrorIs(t, err, appErrors.ErrNotDeterminable)

	_, err = svc.Clear(context.Background(), testActor, "ghost", "c1")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	assert.Zero(t, repo.writes)
}

func TestClearanceServiceClearTwiceIsRejected(t *testing.T) {
	repo := newFakeFinanceRepo(feeRecord("s1", "c1", "0", nil, testDay(-1)))
	svc := newTestClearanceService(repo, nil, &fakeRenderer{})

	_, err := svc.Clear(context.Background(), testActor, "s1", "c1")
	require.NoError(t, err)
	_, err = svc.Clear(context.Background(), testActor, "s1", "c1")
	assert.ErrorIs(t, err, appErrors.ErrIneligible)
}

func TestClearanceServiceUnclear(t *testing.T) {
	cleared := feeRecord("s1", "c1", "0", nil, testDay(-1))
	cleared.IsCleared = true
	cleared.ClearedAt = &testNow
	repo := newFakeFinanceRepo(cleared, feeRecord("s2", "c1", "0", nil, testDay(-1)))
	audit := &fakeAuditWriter{}
	svc := newTestClearanceService(repo, audit, &fakeRenderer{})

	view, err := svc.Unclear(context.Background(), testActor, "s1", "c1")
	require.NoError(t, err)
	assert.Equal(t, string(rules.ClearanceEligiblePending), view.State)
	assert.True(t, view.CanClear)
	assert.Nil(t, view.ClearedAt)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionUnclear, audit.logs[0].Action)

	_, err = svc.Unclear(context.Background(), testActor, "s2", "c1")
	assert.ErrorIs(t, err, appErrors.ErrIneligible)
}

func TestClearanceServiceBulkClearIsIndependentPerItem(t *testing.T) {
	repo := newFakeFinanceRepo(
		feeRecord("s1", "c1", "0", nil, testDay(-10)),
		feeRecord("s2", "c1", "50", nil, testDay(-10)),
		feeRecord("s3", "c1", "0", nil, testDay(-2)),
	)
	audit := &fakeAuditWriter{}
	svc := newTestClearanceService(repo, audit, &fakeRenderer{})

	result, err := svc.BulkClear(context.Background(), testActor, dto.BulkRequest{Items: []models.StudentClassRef{
		{StudentID: "s1", ClassID: "c1"},
		{StudentID: "s2", ClassID: "c1"},
		{StudentID: "s3", ClassID: "c1"},
	}})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Requested)
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, result.Requested, result.Succeeded+result.Failed)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "s2", result.Failures[0].StudentID)
	assert.Equal(t, appErrors.ErrIneligible.Code, result.Failures[0].Code)
	assert.True(t, repo.records["s1/c1"].IsCleared)
	assert.False(t, repo.records["s2/c1"].IsCleared)
	assert.True(t, repo.records["s3/c1"].IsCleared)
	assert.Equal(t, models.AuditActionBulkClear, audit.logs[len(audit.logs)-1].Action)
}

func TestClearanceServiceList(t *testing.T) {
	repo := newFakeFinanceRepo(
		feeRecord("s1", "c1", "0", nil, testDay(-1)),
		feeRecord("s2", "c1", "0", nil, nil),
	)
	svc := newTestClearanceService(repo, nil, &fakeRenderer{})

	views, pagination, err := svc.List(context.Background(), models.StudentFinanceFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, pagination.TotalCount)
	require.Len(t, views, 2)
	assert.True(t, views[0].CanClear)
	assert.Equal(t, dto.StatusNotDeterminable, views[1].State)
	assert.False(t, views[1].CanClear)
}

func TestClearanceServiceCertificate(t *testing.T) {
	cleared := feeRecord("s1", "c1", "0", nil, testDay(-1))
	cleared.IsCleared = true
	clearedAt := testNow.Add(-time.Hour)
	cleared.ClearedAt = &clearedAt
	repo := newFakeFinanceRepo(cleared, feeRecord("s2", "c1", "0", nil, testDay(-1)))
	renderer := &fakeRenderer{}
	svc := newTestClearanceService(repo, nil, renderer)

	body, filename, err := svc.Certificate(context.Background(), "s1", "c1")
	require.NoError(t, err)
	assert.Equal(t, "clearance-s1-c1.pdf", filename)
	assert.NotEmpty(t, body)
	require.Len(t, renderer.certs, 1)
	assert.Equal(t, "SMA Academy", renderer.certs[0].Institution)
	assert.Equal(t, "diploma", renderer.certs[0].Program)
	assert.True(t, clearedAt.Equal(renderer.certs[0].ClearedAt))

	_, _, err = svc.Certificate(context.Background(), "s2", "c1")
	assert.ErrorIs(t, err, appErrors.ErrIneligible)
}
