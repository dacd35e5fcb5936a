package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-backoffice-api/internal/dto"
	"github.com/noah-isme/sma-backoffice-api/internal/models"
	appErrors "github.com/noah-isme/sma-backoffice-api/pkg/errors"
	"github.com/noah-isme/sma-backoffice-api/pkg/response"
)

type clearanceService interface {
	List(ctx context.Context, filter models.StudentFinanceFilter) ([]dto.ClearanceView, *models.Pagination, error)
	Clear(ctx context.Context, actor models.Actor, studentID, classID string) (*dto.ClearanceView, error)
	Unclear(ctx context.Context, actor models.Actor, studentID, classID string) (*dto.ClearanceView, error)
	BulkClear(ctx context.Context, actor models.Actor, req dto.BulkRequest) (*dto.BulkResult, error)
	Certificate(ctx context.Context, studentID, classID string) ([]byte, string, error)
}

// ClearanceHandler exposes the clearance workflow.
type ClearanceHandler struct {
	service clearanceService
}

// NewClearanceHandler constructs a ClearanceHandler.
func NewClearanceHandler(service clearanceService) *ClearanceHandler {
	return &ClearanceHandler{service: service}
}

// List godoc
// @Summary List fee records with their clearance state
// @Tags Clearance
// @Produce json
// @Param search query string false "Name, student number or batch"
// @Param classId query string false "Class ID"
// @Param cleared query bool false "Clearance flag"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /finance/clearances [get]
func (h *ClearanceHandler) List(c *gin.Context) {
	filter, err := parseFinanceFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	views, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, views, pagination)
}

// Clear godoc
// @Summary Clear a student for a class
// @Description Only records with a settled balance whose class has ended can be cleared.
// @Tags Clearance
// @Produce json
// @Param studentId path string true "Student ID"
// @Param classId path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /finance/students/{studentId}/classes/{classId}/clearance [post]
func (h *ClearanceHandler) Clear(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	view, err := h.service.Clear(c.Request.Context(), actor, c.Param("studentId"), c.Param("classId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Unclear godoc
// @Summary Revert a clearance
// @Tags Clearance
// @Produce json
// @Param studentId path string true "Student ID"
// @Param classId path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /finance/students/{studentId}/classes/{classId}/clearance [delete]
func (h *ClearanceHandler) Unclear(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	view, err := h.service.Unclear(c.Request.Context(), actor, c.Param("studentId"), c.Param("classId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// BulkClear godoc
// @Summary Clear many student/class pairs
// @Description Items are processed one by one; ineligible items are reported and skipped.
// @Tags Clearance
// @Accept json
// @Produce json
// @Param payload body dto.BulkRequest true "Items"
// @Success 200 {object} response.Envelope
// @Router /finance/clearances/bulk [post]
func (h *ClearanceHandler) BulkClear(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.BulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid bulk clearance payload"))
		return
	}
	result, err := h.service.BulkClear(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Certificate godoc
// @Summary Download the clearance certificate
// @Tags Clearance
// @Produce application/pdf
// @Param studentId path string true "Student ID"
// @Param classId path string true "Class ID"
// @Success 200 {file} file
// @Failure 409 {object} response.Envelope
// @Router /finance/students/{studentId}/classes/{classId}/certificate [get]
func (h *ClearanceHandler) Certificate(c *gin.Context) {
	body, filename, err := h.service.Certificate(c.Request.Context(), c.Param("studentId"), c.Param("classId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, "application/pdf", filename, body)
}
