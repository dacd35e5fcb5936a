package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-backoffice-api/internal/dto"
	"github.com/noah-isme/sma-backoffice-api/internal/models"
	"github.com/noah-isme/sma-backoffice-api/internal/rules"
	appErrors "github.com/noah-isme/sma-backoffice-api/pkg/errors"
	"github.com/noah-isme/sma-backoffice-api/pkg/export"
)

type clearanceRepository interface {
	List(ctx context.Context, filter models.StudentFinanceFilter) ([]models.StudentFinancialRecord, int, error)
	FindByStudentClass(ctx context.Context, studentID, classID string) (*models.StudentFinancialRecord, error)
	SetCleared(ctx context.Context, studentID, classID string, cleared bool, at time.Time) error
}

type certificateRenderer interface {
	RenderCertificate(cert export.Certificate) ([]byte, error)
}

// ClearanceServiceConfig tunes clearance behaviour.
type ClearanceServiceConfig struct {
	Location    *time.Location
	Institution string
}

// ClearanceServiceParams groups constructor dependencies.
type ClearanceServiceParams struct {
	Repo      clearanceRepository
	Audit     AuditWriter
	Renderer  certificateRenderer
	Cache     *CacheService
	Metrics   *MetricsService
	Validator *validator.Validate
	Logger    *zap.Logger
	Config    ClearanceServiceConfig
}

// ClearanceService runs the clearance workflow: listing eligibility, clearing,
// reverting and issuing certificates.
type ClearanceService struct {
	repo      clearanceRepository
	audit     auditTrail
	renderer  certificateRenderer
	cache     reportCache
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	clock     institutionClock
	cfg       ClearanceServiceConfig
}

// NewClearanceService constructs a ClearanceService.
func NewClearanceService(params ClearanceServiceParams) *ClearanceService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	validate := params.Validator
	if validate == nil {
		validate = validator.New()
	}
	renderer := params.Renderer
	if renderer == nil {
		renderer = export.NewPDFExporter()
	}
	return &ClearanceService{
		repo:      params.Repo,
		audit:     auditTrail{writer: params.Audit, logger: logger},
		renderer:  renderer,
		cache:     reportCache{cache: params.Cache, logger: logger},
		metrics:   params.Metrics,
		validator: validate,
		logger:    logger,
		clock:     newInstitutionClock(params.Config.Location),
		cfg:       params.Config,
	}
}

// List returns one page of fee records with their clearance state.
func (s *ClearanceService) List(ctx context.Context, filter models.StudentFinanceFilter) ([]dto.ClearanceView, *models.Pagination, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	if filter.SortBy == "" {
		filter.SortBy = "class_end_date"
	}

	records, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list clearances")
	}

	now := s.clock.Now()
	views := make([]dto.ClearanceView, 0, len(records))
	for _, record := range records {
		views = append(views, clearanceView(record, now))
	}
	return views, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Clear marks an eligible record as cleared.
func (s *ClearanceService) Clear(ctx context.Context, actor models.Actor, studentID, classID string) (*dto.ClearanceView, error) {
	view, err := s.clear(ctx, actor, studentID, classID)
	if err != nil {
		return nil, err
	}
	s.cache.invalidate(ctx, financeCachePattern)
	return view, nil
}

// Unclear reverts a clearance.
func (s *ClearanceService) Unclear(ctx context.Context, actor models.Actor, studentID, classID string) (*dto.ClearanceView, error) {
	record, err := s.load(ctx, studentID, classID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	state, err := rules.EvaluateClearance(clearanceInput(*record), now)
	if err != nil {
		return nil, ruleError(err, "clearance state cannot be determined")
	}
	if !rules.CanUnclear(state) {
		return nil, appErrors.Clone(appErrors.ErrIneligible, "record is not cleared")
	}

	if err := s.repo.SetCleared(ctx, studentID, classID, false, now); err != nil {
		return nil, lookupError(err, "fee record not found", "failed to revert clearance")
	}
	s.audit.record(ctx, actor, models.AuditActionUnclear, resourceKey(studentID, classID),
		map[string]interface{}{"is_cleared": true, "cleared_at": record.ClearedAt},
		map[string]interface{}{"is_cleared": false})
	s.cache.invalidate(ctx, financeCachePattern)

	record.IsCleared = false
	record.ClearedAt = nil
	view := clearanceView(*record, now)
	return &view, nil
}

// BulkClear clears each listed record independently. Ineligible or missing
// records are reported as failures and the rest are still processed.
func (s *ClearanceService) BulkClear(ctx context.Context, actor models.Actor, req dto.BulkRequest) (*dto.BulkResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk clearance payload")
	}

	result := &dto.BulkResult{Requested: len(req.Items), Failures: []dto.BulkFailure{}}
	for _, item := range req.Items {
		if err := ctx.Err(); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "bulk clearance interrupted")
		}
		if _, err := s.clear(ctx, actor, item.StudentID, item.ClassID); err != nil {
			result.Failed++
			result.Failures = append(result.Failures, bulkFailure(item, err))
			s.metrics.RecordBulkItem("clear", false)
			continue
		}
		result.Succeeded++
		s.metrics.RecordBulkItem("clear", true)
	}

	s.audit.record(ctx, actor, models.AuditActionBulkClear, "bulk", nil, result)
	if result.Succeeded > 0 {
		s.cache.invalidate(ctx, financeCachePattern)
	}
	s.logger.Info("bulk clearance processed",
		zap.String("actor", actor.UserID),
		zap.Int("requested", result.Requested),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed))
	return result, nil
}

// Certificate renders the clearance certificate of a cleared record and returns
// the PDF with a suggested file name.
func (s *ClearanceService) Certificate(ctx context.Context, studentID, classID string) ([]byte, string, error) {
	record, err := s.load(ctx, studentID, classID)
	if err != nil {
		return nil, "", err
	}
	if !record.IsCleared {
		return nil, "", appErrors.Clone(appErrors.ErrIneligible, "certificate is only available for cleared records")
	}

	clearedAt := s.clock.Now()
	if record.ClearedAt != nil {
		clearedAt = record.ClearedAt.In(s.clock.loc)
	}
	cert := export.Certificate{
		Institution:  s.cfg.Institution,
		StudentName:  record.StudentName,
		BatchCode:    record.BatchCode,
		Program:      record.Program(),
		ClassEndDate: record.ClassEndDate,
		ClearedAt:    clearedAt,
		Reference:    resourceKey(studentID, classID),
	}
	if record.StudentNumber != nil {
		cert.StudentNumber = *record.StudentNumber
	}

	body, err := s.renderer.RenderCertificate(cert)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render certificate")
	}
	return body, fmt.Sprintf("clearance-%s-%s.pdf", studentID, classID), nil
}

func (s *ClearanceService) clear(ctx context.Context, actor models.Actor, studentID, classID string) (*dto.ClearanceView, error) {
	record, err := s.load(ctx, studentID, classID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	state, err := rules.EvaluateClearance(clearanceInput(*record), now)
	if err != nil {
		return nil, ruleError(err, "clearance state cannot be determined")
	}
	if !rules.CanClear(state) {
		return nil, appErrors.Clone(appErrors.ErrIneligible, "not eligible for clearance: "+state.Reason())
	}

	if err := s.repo.SetCleared(ctx, studentID, classID, true, now); err != nil {
		return nil, lookupError(err, "fee record not found", "failed to clear record")
	}
	s.audit.record(ctx, actor, models.AuditActionClear, resourceKey(studentID, classID),
		map[string]interface{}{"is_cleared": false},
		map[string]interface{}{"is_cleared": true, "cleared_at": now})

	record.IsCleared = true
	record.ClearedAt = &now
	view := clearanceView(*record, now)
	return &view, nil
}

func (s *ClearanceService) load(ctx context.Context, studentID, classID string) (*models.StudentFinancialRecord, error) {
	if studentID == "" || classID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "studentId and classId are required")
	}
	record, err := s.repo.FindByStudentClass(ctx, studentID, classID)
	if err != nil {
		return nil, lookupError(err, "fee record not found", "failed to load fee record")
	}
	return record, nil
}

func clearanceView(record models.StudentFinancialRecord, now time.Time) dto.ClearanceView {
	view := dto.ClearanceView{
		StudentID:    record.StudentID,
		ClassID:      record.ClassID,
		StudentName:  record.StudentName,
		BatchCode:    record.BatchCode,
		Balance:      record.Balance,
		ClassEndDate: record.ClassEndDate,
		ClearedAt:    record.ClearedAt,
	}
	state, err := rules.EvaluateClearance(clearanceInput(record), now)
	if err != nil {
		view.State = dto.StatusNotDeterminable
		view.Reason = err.Error()
		return view
	}
	view.State = string(state)
	view.Reason = state.Reason()
	view.CanClear = rules.CanClear(state)
	return view
}
