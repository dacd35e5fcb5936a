package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-backoffice-api/internal/dto"
	"github.com/noah-isme/sma-backoffice-api/internal/models"
	appErrors "github.com/noah-isme/sma-backoffice-api/pkg/errors"
)

type financeServiceMock struct {
	filter      models.StudentFinanceFilter
	revenue     models.RevenueFilter
	actor       models.Actor
	suspended   []string
	unsuspended []string
	bulk        dto.BulkRequest
	err         error
}

func (m *financeServiceMock) ListStudents(_ context.Context, filter models.StudentFinanceFilter) ([]dto.StudentFinanceView, *models.Pagination, error) {
	m.filter = filter
	if m.err != nil {
		return nil, nil, m.err
	}
	views := []dto.StudentFinanceView{{StudentFinancialRecord: models.StudentFinancialRecord{StudentID: "s1", ClassID: "c1"}, PaymentStatus: "overdue"}}
	return views, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: 1}, nil
}

func (m *financeServiceMock) StatusSummary(_ context.Context, filter models.StudentFinanceFilter) (*dto.PaymentStatusSummary, bool, error) {
	m.filter = filter
	return &dto.PaymentStatusSummary{AsOf: time.Date(2026, time.October, 16, 0, 0, 0, 0, time.UTC)}, true, m.err
}

func (m *financeServiceMock) StudentDetail(_ context.Context, studentID string) (*dto.StudentFinanceDetail, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &dto.StudentFinanceDetail{StudentID: studentID}, nil
}

func (m *financeServiceMock) Suspend(_ context.Context, actor models.Actor, studentID, classID string) (*dto.StudentFinanceView, error) {
	m.actor = actor
	m.suspended = append(m.suspended, studentID+"/"+classID)
	return &dto.StudentFinanceView{PaymentStatus: "suspended"}, m.err
}

func (m *financeServiceMock) Unsuspend(_ context.Context, actor models.Actor, studentID, classID string) (*dto.StudentFinanceView, error) {
	m.actor = actor
	m.unsuspended = append(m.unsuspended, studentID+"/"+classID)
	return &dto.StudentFinanceView{PaymentStatus: "unpaid"}, m.err
}

func (m *financeServiceMock) BulkSuspend(_ context.Context, actor models.Actor, req dto.BulkRequest) (*dto.BulkResult, error) {
	m.actor = actor
	m.bulk = req
	return &dto.BulkResult{Requested: len(req.Items), Succeeded: len(req.Items), Failures: []dto.BulkFailure{}}, m.err
}

func (m *financeServiceMock) Revenue(_ context.Context, filter models.RevenueFilter) (*dto.RevenueReport, bool, error) {
	m.revenue = filter
	return &dto.RevenueReport{DateFrom: filter.DateFrom, DateTo: filter.DateTo}, false, m.err
}

type overdueServiceMock struct {
	filter models.OverdueFilter
}

func (m *overdueServiceMock) Report(_ context.Context, filter models.OverdueFilter) (*dto.OverdueReport, bool, error) {
	m.filter = filter
	return &dto.OverdueReport{AsOf: time.Date(2026, time.October, 16, 0, 0, 0, 0, time.UTC), Items: []dto.OverdueItem{}}, false, nil
}

func (m *overdueServiceMock) ReportPDF(_ context.Context, filter models.OverdueFilter) ([]byte, string, error) {
	m.filter = filter
	return []byte("%PDF-1.3"), "overdue-20261016.pdf", nil
}

func TestFinanceHandlerListStudents(t *testing.T) {
	svc := &financeServiceMock{}
	handler := NewFinanceHandler(svc, &overdueServiceMock{}, nil)

	c, w := newGinContext(http.MethodGet, "/finance/students?search=ana&classId=c1&suspended=true&page=2&limit=5", nil)
	handler.ListStudents(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ana", svc.filter.Search)
	assert.Equal(t, "c1", svc.filter.ClassID)
	require.NotNil(t, svc.filter.Suspended)
	assert.True(t, *svc.filter.Suspended)
	assert.Nil(t, svc.filter.Cleared)
	assert.Equal(t, 2, svc.filter.Page)
	assert.Equal(t, 5, svc.filter.PageSize)

	env := decodeEnvelope(t, w)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 1, env.Pagination.TotalCount)
}

func TestFinanceHandlerListStudentsRejectsBadBool(t *testing.T) {
	handler := NewFinanceHandler(&financeServiceMock{}, &overdueServiceMock{}, nil)

	c, w := newGinContext(http.MethodGet, "/finance/students?cleared=maybe", nil)
	handler.ListStudents(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFinanceHandlerSummaryMeta(t *testing.T) {
	handler := NewFinanceHandler(&financeServiceMock{}, &overdueServiceMock{}, nil)

	c, w := newGinContext(http.MethodGet, "/finance/students/summary", nil)
	handler.Summary(c)

	require.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, true, env.Meta["cache_hit"])
	assert.Equal(t, "2026-10-16", env.Meta["as_of"])
}

func TestFinanceHandlerStudentDetailNotFound(t *testing.T) {
	handler := NewFinanceHandler(&financeServiceMock{err: appErrors.Clone(appErrors.ErrNotFound, "student has no fee records")}, &overdueServiceMock{}, nil)

	c, w := newGinContext(http.MethodGet, "/finance/students/ghost", nil)
	c.Params = gin.Params{{Key: "studentId", Value: "ghost"}}
	handler.StudentDetail(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decodeEnvelope(t, w).Error.Code)
}

func TestFinanceHandlerSuspendRequiresClaims(t *testing.T) {
	svc := &financeServiceMock{}
	handler := NewFinanceHandler(svc, &overdueServiceMock{}, nil)

	c, w := newGinContext(http.MethodPost, "/finance/students/s1/classes/c1/suspend", nil)
	c.Params = gin.Params{{Key: "studentId", Value: "s1"}, {Key: "classId", Value: "c1"}}
	handler.Suspend(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, svc.suspended)
}

func TestFinanceHandlerSuspendAndUnsuspend(t *testing.T) {
	svc := &financeServiceMock{}
	handler := NewFinanceHandler(svc, &overdueServiceMock{}, nil)

	c, w := newGinContext(http.MethodPost, "/finance/students/s1/classes/c1/suspend", nil)
	c.Params = gin.Params{{Key: "studentId", Value: "s1"}, {Key: "classId", Value: "c1"}}
	withClaims(c, models.RoleFinance)
	handler.Suspend(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"s1/c1"}, svc.suspended)
	assert.Equal(t, "u1", svc.actor.UserID)
	assert.Equal(t, "handler-test", svc.actor.UserAgent)

	c, w = newGinContext(http.MethodDelete, "/finance/students/s1/classes/c1/suspend", nil)
	c.Params = gin.Params{{Key: "studentId", Value: "s1"}, {Key: "classId", Value: "c1"}}
	withClaims(c, models.RoleFinance)
	handler.Unsuspend(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"s1/c1"}, svc.unsuspended)
}

func TestFinanceHandlerBulkSuspend(t *testing.T) {
	svc := &financeServiceMock{}
	handler := NewFinanceHandler(svc, &overdueServiceMock{}, nil)

	payload, _ := json.Marshal(dto.BulkRequest{Items: []models.StudentClassRef{{StudentID: "s1", ClassID: "c1"}, {StudentID: "s2", ClassID: "c1"}}})
	c, w := newGinContext(http.MethodPost, "/finance/suspensions/bulk", payload)
	withClaims(c, models.RoleAdmin)
	handler.BulkSuspend(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, svc.bulk.Items, 2)

	c, w = newGinContext(http.MethodPost, "/finance/suspensions/bulk", []byte("{"))
	withClaims(c, models.RoleAdmin)
	handler.BulkSuspend(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFinanceHandlerRevenueParsesDatesInLocation(t *testing.T) {
	svc := &financeServiceMock{}
	jakarta := time.FixedZone("WIB", 7*60*60)
	handler := NewFinanceHandler(svc, &overdueServiceMock{}, jakarta)

	c, w := newGinContext(http.MethodGet, "/finance/revenue?date_from=2026-09-01&date_to=2026-09-30&payment_method=cash", nil)
	handler.Revenue(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, svc.revenue.DateFrom)
	assert.True(t, time.Date(2026, time.September, 1, 0, 0, 0, 0, jakarta).Equal(*svc.revenue.DateFrom))
	assert.Equal(t, "cash", svc.revenue.PaymentMethod)

	c, w = newGinContext(http.MethodGet, "/finance/revenue?date_from=01-09-2026", nil)
	handler.Revenue(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFinanceHandlerOverdueFormats(t *testing.T) {
	overdue := &overdueServiceMock{}
	handler := NewFinanceHandler(&financeServiceMock{}, overdue, nil)

	c, w := newGinContext(http.MethodGet, "/finance/overdue?programId=p1", nil)
	handler.Overdue(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "p1", overdue.filter.ProgramID)

	c, w = newGinContext(http.MethodGet, "/finance/overdue?format=pdf", nil)
	handler.Overdue(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "overdue-20261016.pdf")

	c, w = newGinContext(http.MethodGet, "/finance/overdue?format=xlsx", nil)
	handler.Overdue(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
