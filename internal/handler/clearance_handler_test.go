package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-backoffice-api/internal/dto"
	"github.com/noah-isme/sma-backoffice-api/internal/models"
	appErrors "github.com/noah-isme/sma-backoffice-api/pkg/errors"
)

type clearanceServiceMock struct {
	clearErr error
	actor    models.Actor
	cleared  []string
	bulk     dto.BulkRequest
	certErr  error
}

func (m *clearanceServiceMock) List(_ context.Context, filter models.StudentFinanceFilter) ([]dto.ClearanceView, *models.Pagination, error) {
	return []dto.ClearanceView{{StudentID: "s1", State: "eligible-pending", CanClear: true}}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, nil
}

func (m *clearanceServiceMock) Clear(_ context.Context, actor models.Actor, studentID, classID string) (*dto.ClearanceView, error) {
	m.actor = actor
	if m.clearErr != nil {
		return nil, m.clearErr
	}
	m.cleared = append(m.cleared, studentID+"/"+classID)
	return &dto.ClearanceView{StudentID: studentID, ClassID: classID, State: "cleared"}, nil
}

func (m *clearanceServiceMock) Unclear(_ context.Context, actor models.Actor, studentID, classID string) (*dto.ClearanceView, error) {
	m.actor = actor
	return &dto.ClearanceView{StudentID: studentID, ClassID: classID, State: "eligible-pending"}, nil
}

func (m *clearanceServiceMock) BulkClear(_ context.Context, actor models.Actor, req dto.BulkRequest) (*dto.BulkResult, error) {
	m.bulk = req
	return &dto.BulkResult{
		Requested: len(req.Items),
		Succeeded: len(req.Items) - 1,
		Failed:    1,
		Failures:  []dto.BulkFailure{{StudentID: req.Items[0].StudentID, ClassID: req.Items[0].ClassID, Code: "NOT_ELIGIBLE", Reason: "outstanding balance"}},
	}, nil
}

func (m *clearanceServiceMock) Certificate(_ context.Context, studentID, classID string) ([]byte, string, error) {
	if m.certErr != nil {
		return nil, "", m.certErr
	}
	return []byte("%PDF-1.3"), "clearance-" + studentID + "-" + classID + ".pdf", nil
}

func TestClearanceHandlerList(t *testing.T) {
	handler := NewClearanceHandler(&clearanceServiceMock{})

	c, w := newGinContext(http.MethodGet, "/finance/clearances", nil)
	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	var views []dto.ClearanceView
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &views))
	require.Len(t, views, 1)
	assert.True(t, views[0].CanClear)
}

func TestClearanceHandlerClear(t *testing.T) {
	svc := &clearanceServiceMock{}
	handler := NewClearanceHandler(svc)

	c, w := newGinContext(http.MethodPost, "/finance/students/s1/classes/c1/clearance", nil)
	c.Params = gin.Params{{Key: "studentId", Value: "s1"}, {Key: "classId", Value: "c1"}}
	withClaims(c, models.RoleFinance)
	handler.Clear(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"s1/c1"}, svc.cleared)
	assert.Equal(t, models.RoleFinance, svc.actor.Role)
}

func TestClearanceHandlerClearIneligible(t *testing.T) {
	handler := NewClearanceHandler(&clearanceServiceMock{clearErr: appErrors.Clone(appErrors.ErrIneligible, "not eligible for clearance: outstanding balance")})

	c, w := newGinContext(http.MethodPost, "/finance/students/s1/classes/c1/clearance", nil)
	c.Params = gin.Params{{Key: "studentId", Value: "s1"}, {Key: "classId", Value: "c1"}}
	withClaims(c, models.RoleFinance)
	handler.Clear(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "NOT_ELIGIBLE", decodeEnvelope(t, w).Error.Code)
}

func TestClearanceHandlerClearNotDeterminable(t *testing.T) {
	handler := NewClearanceHandler(&clearanceServiceMock{clearErr: appErrors.Clone(appErrors.ErrNotDeterminable, "clearance state cannot be determined")})

	c, w := newGinContext(http.MethodPost, "/finance/students/s1/classes/c1/clearance", nil)
	withClaims(c, models.RoleFinance)
	handler.Clear(c)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestClearanceHandlerBulkClearReportsFailures(t *testing.T) {
	svc := &clearanceServiceMock{}
	handler := NewClearanceHandler(svc)

	payload, _ := json.Marshal(dto.BulkRequest{Items: []models.StudentClassRef{{StudentID: "s1", ClassID: "c1"}, {StudentID: "s2", ClassID: "c1"}}})
	c, w := newGinContext(http.MethodPost, "/finance/clearances/bulk", payload)
	withClaims(c, models.RoleAdmin)
	handler.BulkClear(c)

	require.Equal(t, http.StatusOK, w.Code)
	var result dto.BulkResult
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &result))
	assert.Equal(t, 2, result.Requested)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, "NOT_ELIGIBLE", result.Failures[0].Code)
}

func TestClearanceHandlerCertificate(t *testing.T) {
	handler := NewClearanceHandler(&clearanceServiceMock{})

	c, w := newGinContext(http.MethodGet, "/finance/students/s1/classes/c1/certificate", nil)
	c.Params = gin.Params{{Key: "studentId", Value: "s1"}, {Key: "classId", Value: "c1"}}
	handler.Certificate(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "clearance-s1-c1.pdf")

	handler = NewClearanceHandler(&clearanceServiceMock{certErr: appErrors.Clone(appErrors.ErrIneligible, "certificate is only available for cleared records")})
	c, w = newGinContext(http.MethodGet, "/finance/students/s1/classes/c1/certificate", nil)
	handler.Certificate(c)
	assert.Equal(t, http.StatusConflict, w.Code)
}
