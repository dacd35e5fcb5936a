package handler

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-backoffice-api/internal/dto"
	"github.com/noah-isme/sma-backoffice-api/internal/service"
	"github.com/noah-isme/sma-backoffice-api/pkg/response"
)

type workloadService interface {
	Report(ctx context.Context, req service.WorkloadRequest) (*dto.WorkloadReport, bool, error)
}

// WorkloadHandler exposes instructor workload scoring.
type WorkloadHandler struct {
	service workloadService
	loc     *time.Location
}

// NewWorkloadHandler constructs a WorkloadHandler.
func NewWorkloadHandler(service workloadService, loc *time.Location) *WorkloadHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &WorkloadHandler{service: service, loc: loc}
}

// Report godoc
// @Summary Instructor workload scores for a period
// @Description Classes count when their start date falls within [from, to].
// @Tags Instructors
// @Produce json
// @Param from query string false "From (YYYY-MM-DD)"
// @Param to query string false "To (YYYY-MM-DD), defaults to today"
// @Param search query string false "Name or email"
// @Param instructorId query string false "Instructor ID"
// @Param activeOnly query bool false "Only active instructors"
// @Success 200 {object} response.Envelope
// @Router /instructors/workload [get]
func (h *WorkloadHandler) Report(c *gin.Context) {
	from, err := parseDateParam(c, "from", h.loc)
	if err != nil {
		response.Error(c, err)
		return
	}
	to, err := parseDateParam(c, "to", h.loc)
	if err != nil {
		response.Error(c, err)
		return
	}
	activeOnly, err := parseBoolParam(c, "activeOnly")
	if err != nil {
		response.Error(c, err)
		return
	}

	req := service.WorkloadRequest{
		From:         from,
		To:           to,
		Search:       strings.TrimSpace(c.Query("search")),
		InstructorID: strings.TrimSpace(c.Query("instructorId")),
		ActiveOnly:   activeOnly != nil && *activeOnly,
	}
	report, hit, err := h.service.Report(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondReport(c, report, hit)
}
