package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-backoffice-api/internal/dto"
	"github.com/noah-isme/sma-backoffice-api/internal/middleware"
	"github.com/noah-isme/sma-backoffice-api/internal/models"
	appErrors "github.com/noah-isme/sma-backoffice-api/pkg/errors"
	"github.com/noah-isme/sma-backoffice-api/pkg/response"
)

type financeService interface {
	ListStudents(ctx context.Context, filter models.StudentFinanceFilter) ([]dto.StudentFinanceView, *models.Pagination, error)
	StatusSummary(ctx context.Context, filter models.StudentFinanceFilter) (*dto.PaymentStatusSummary, bool, error)
	StudentDetail(ctx context.Context, studentID string) (*dto.StudentFinanceDetail, error)
	Suspend(ctx context.Context, actor models.Actor, studentID, classID string) (*dto.StudentFinanceView, error)
	Unsuspend(ctx context.Context, actor models.Actor, studentID, classID string) (*dto.StudentFinanceView, error)
	BulkSuspend(ctx context.Context, actor models.Actor, req dto.BulkRequest) (*dto.BulkResult, error)
	Revenue(ctx context.Context, filter models.RevenueFilter) (*dto.RevenueReport, bool, error)
}

type overdueService interface {
	Report(ctx context.Context, filter models.OverdueFilter) (*dto.OverdueReport, bool, error)
	ReportPDF(ctx context.Context, filter models.OverdueFilter) ([]byte, string, error)
}

// FinanceHandler exposes student finance, suspension, revenue and overdue endpoints.
type FinanceHandler struct {
	finance financeService
	overdue overdueService
	loc     *time.Location
}

// NewFinanceHandler constructs a FinanceHandler. Date query values are read in loc.
func NewFinanceHandler(finance financeService, overdue overdueService, loc *time.Location) *FinanceHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &FinanceHandler{finance: finance, overdue: overdue, loc: loc}
}

// ListStudents godoc
// @Summary List student fee records with payment and clearance status
// @Tags Finance
// @Produce json
// @Param search query string false "Name, student number or batch"
// @Param classId query string false "Class ID"
// @Param programId query string false "Program ID"
// @Param suspended query bool false "Suspension flag"
// @Param cleared query bool false "Clearance flag"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /finance/students [get]
func (h *FinanceHandler) ListStudents(c *gin.Context) {
	filter, err := parseFinanceFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	views, pagination, err := h.finance.ListStudents(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, views, pagination)
}

// Summary godoc
// @Summary Count fee records per payment status
// @Tags Finance
// @Produce json
// @Param classId query string false "Class ID"
// @Param programId query string false "Program ID"
// @Success 200 {object} response.Envelope
// @Router /finance/students/summary [get]
func (h *FinanceHandler) Summary(c *gin.Context) {
	filter, err := parseFinanceFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	summary, hit, err := h.finance.StatusSummary(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetAsOf(c, summary.AsOf)
	respondReport(c, summary, hit)
}

// StudentDetail godoc
// @Summary Fee records and payment history of a student
// @Tags Finance
// @Produce json
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /finance/students/{studentId} [get]
func (h *FinanceHandler) StudentDetail(c *gin.Context) {
	detail, err := h.finance.StudentDetail(c.Request.Context(), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Suspend godoc
// @Summary Suspend a student from a class
// @Tags Finance
// @Produce json
// @Param studentId path string true "Student ID"
// @Param classId path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /finance/students/{studentId}/classes/{classId}/suspend [post]
func (h *FinanceHandler) Suspend(c *gin.Context) {
	h.toggleSuspension(c, true)
}

// Unsuspend godoc
// @Summary Lift a finance suspension
// @Tags Finance
// @Produce json
// @Param studentId path string true "Student ID"
// @Param classId path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /finance/students/{studentId}/classes/{classId}/suspend [delete]
func (h *FinanceHandler) Unsuspend(c *gin.Context) {
	h.toggleSuspension(c, false)
}

// BulkSuspend godoc
// @Summary Suspend many student/class pairs
// @Description Items are processed one by one; failures are reported per item.
// @Tags Finance
// @Accept json
// @Produce json
// @Param payload body dto.BulkRequest true "Items"
// @Success 200 {object} response.Envelope
// @Router /finance/suspensions/bulk [post]
func (h *FinanceHandler) BulkSuspend(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.BulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid bulk suspension payload"))
		return
	}
	result, err := h.finance.BulkSuspend(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Revenue godoc
// @Summary Service revenue for a period
// @Tags Finance
// @Produce json
// @Param date_from query string false "From (YYYY-MM-DD)"
// @Param date_to query string false "To, inclusive (YYYY-MM-DD)"
// @Param category query string false "Service category"
// @Param payment_method query string false "Payment method"
// @Success 200 {object} response.Envelope
// @Router /finance/revenue [get]
func (h *FinanceHandler) Revenue(c *gin.Context) {
	from, err := parseDateParam(c, "date_from", h.loc)
	if err != nil {
		response.Error(c, err)
		return
	}
	to, err := parseDateParam(c, "date_to", h.loc)
	if err != nil {
		response.Error(c, err)
		return
	}
	report, hit, err := h.finance.Revenue(c.Request.Context(), models.RevenueFilter{
		DateFrom:      from,
		DateTo:        to,
		Category:      strings.TrimSpace(c.Query("category")),
		PaymentMethod: strings.TrimSpace(c.Query("payment_method")),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	respondReport(c, report, hit)
}

// Overdue godoc
// @Summary Overdue aging report
// @Tags Finance
// @Produce json
// @Produce application/pdf
// @Param search query string false "Name or batch"
// @Param classId query string false "Class ID"
// @Param programId query string false "Program ID"
// @Param format query string false "json (default) or pdf"
// @Success 200 {object} response.Envelope
// @Router /finance/overdue [get]
func (h *FinanceHandler) Overdue(c *gin.Context) {
	filter := models.OverdueFilter{
		Search:    strings.TrimSpace(c.Query("search")),
		ClassID:   strings.TrimSpace(c.Query("classId")),
		ProgramID: strings.TrimSpace(c.Query("programId")),
	}

	switch strings.ToLower(c.DefaultQuery("format", "json")) {
	case "json":
		report, hit, err := h.overdue.Report(c.Request.Context(), filter)
		if err != nil {
			response.Error(c, err)
			return
		}
		middleware.SetAsOf(c, report.AsOf)
		respondReport(c, report, hit)
	case "pdf":
		body, filename, err := h.overdue.ReportPDF(c.Request.Context(), filter)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Attachment(c, "application/pdf", filename, body)
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "format must be json or pdf"))
	}
}

func (h *FinanceHandler) toggleSuspension(c *gin.Context, suspend bool) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	studentID, classID := c.Param("studentId"), c.Param("classId")

	var (
		view *dto.StudentFinanceView
		err  error
	)
	if suspend {
		view, err = h.finance.Suspend(c.Request.Context(), actor, studentID, classID)
	} else {
		view, err = h.finance.Unsuspend(c.Request.Context(), actor, studentID, classID)
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}
