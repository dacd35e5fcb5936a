package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-backoffice-api/internal/dto"
	"github.com/noah-isme/sma-backoffice-api/internal/models"
	"github.com/noah-isme/sma-backoffice-api/internal/rules"
	appErrors "github.com/noah-isme/sma-backoffice-api/pkg/errors"
)

type financeRecordRepository interface {
	List(ctx context.Context, filter models.StudentFinanceFilter) ([]models.StudentFinancialRecord, int, error)
	ListAll(ctx context.Context, filter models.StudentFinanceFilter) ([]models.StudentFinancialRecord, error)
	FindByStudentClass(ctx context.Context, studentID, classID string) (*models.StudentFinancialRecord, error)
	TransactionSummaries(ctx context.Context, studentID string) ([]models.TransactionSummary, error)
	Revenue(ctx context.Context, filter models.RevenueFilter) ([]models.RevenueRow, error)
	SetSuspended(ctx context.Context, studentID, classID string, suspended bool, at time.Time) error
}

// FinanceServiceConfig tunes finance behaviour.
type FinanceServiceConfig struct {
	CacheTTL time.Duration
	Location *time.Location
}

// FinanceServiceParams groups constructor dependencies.
type FinanceServiceParams struct {
	Repo      financeRecordRepository
	Audit     AuditWriter
	Cache     *CacheService
	Metrics   *MetricsService
	Validator *validator.Validate
	Logger    *zap.Logger
	Config    FinanceServiceConfig
}

// FinanceService serves student fee listings, status summaries, suspensions and revenue.
type FinanceService struct {
	repo      financeRecordRepository
	audit     auditTrail
	cache     reportCache
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	clock     institutionClock
	cfg       FinanceServiceConfig
}

// NewFinanceService constructs a FinanceService.
func NewFinanceService(params FinanceServiceParams) *FinanceService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	validate := params.Validator
	if validate == nil {
		validate = validator.New()
	}
	return &FinanceService{
		repo:      params.Repo,
		audit:     auditTrail{writer: params.Audit, logger: logger},
		cache:     reportCache{cache: params.Cache, ttl: cfg.CacheTTL, logger: logger},
		metrics:   params.Metrics,
		validator: validate,
		logger:    logger,
		clock:     newInstitutionClock(cfg.Location),
		cfg:       cfg,
	}
}

// ListStudents returns one page of fee records labelled with their payment and clearance state.
func (s *FinanceService) ListStudents(ctx context.Context, filter models.StudentFinanceFilter) ([]dto.StudentFinanceView, *models.Pagination, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	records, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list student finances")
	}

	now := s.clock.Now()
	views := make([]dto.StudentFinanceView, 0, len(records))
	for _, record := range records {
		view := financeView(record, now)
		if view.StatusError != "" {
			s.logger.Debug("fee record not determinable",
				zap.String("student_id", record.StudentID),
				zap.String("class_id", record.ClassID),
				zap.String("reason", view.StatusError))
		}
		views = append(views, view)
	}

	return views, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// StatusSummary counts fee records per payment status and clearance state.
func (s *FinanceService) StatusSummary(ctx context.Context, filter models.StudentFinanceFilter) (*dto.PaymentStatusSummary, bool, error) {
	now := s.clock.Now()
	key := fmt.Sprintf("finance:summary:%s:%s:%s:%s:%s:%s:%s", now.Format("2006-01-02"), filter.StudentID, filter.ClassID, filter.ProgramID,
		formatOptionalBool(filter.Suspended), formatOptionalBool(filter.Cleared), filter.Search)

	var cached dto.PaymentStatusSummary
	if s.cache.get(ctx, key, &cached) {
		return &cached, true, nil
	}

	start := time.Now()
	records, err := s.repo.ListAll(ctx, filter)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student finances")
	}
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("finance_summary", time.Since(start))
	}

	summary := dto.PaymentStatusSummary{
		AsOf:             now,
		TotalOutstanding: decimal.Zero,
		TotalCollected:   decimal.Zero,
		TotalBilled:      decimal.Zero,
	}
	for _, record := range records {
		summary.TotalBilled = summary.TotalBilled.Add(record.TotalFee)
		summary.TotalCollected = summary.TotalCollected.Add(record.PaidAmount)
		if record.Balance.IsPositive() {
			summary.TotalOutstanding = summary.TotalOutstanding.Add(record.Balance)
		}

		status, err := rules.ClassifyPayment(paymentInput(record), now)
		if err != nil {
			summary.NotDeterminable++
		} else if err := summary.Counts.Add(status); err != nil {
			return nil, false, ruleError(err, "failed to count payment status")
		}

		state, err := rules.EvaluateClearance(clearanceInput(record), now)
		if err != nil {
			summary.ClearanceUndecided++
		} else if err := summary.ClearanceCounts.Add(state); err != nil {
			return nil, false, ruleError(err, "failed to count clearance state")
		}
	}

	s.cache.set(ctx, key, summary)
	return &summary, false, nil
}

// StudentDetail returns every fee record of a student with their payment history.
func (s *FinanceService) StudentDetail(ctx context.Context, studentID string) (*dto.StudentFinanceDetail, error) {
	if studentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "studentId is required")
	}
	records, err := s.repo.ListAll(ctx, models.StudentFinanceFilter{StudentID: studentID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student finances")
	}
	if len(records) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student has no fee records")
	}

	transactions, err := s.repo.TransactionSummaries(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment history")
	}
	if transactions == nil {
		transactions = []models.TransactionSummary{}
	}

	now := s.clock.Now()
	detail := &dto.StudentFinanceDetail{StudentID: studentID, Records: make([]dto.StudentFinanceView, 0, len(records)), Transactions: transactions}
	for _, record := range records {
		detail.Records = append(detail.Records, financeView(record, now))
	}
	return detail, nil
}

// Suspend blocks a student from a class for finance reasons.
func (s *FinanceService) Suspend(ctx context.Context, actor models.Actor, studentID, classID string) (*dto.StudentFinanceView, error) {
	view, err := s.setSuspended(ctx, actor, studentID, classID, true)
	if err != nil {
		return nil, err
	}
	s.cache.invalidate(ctx, financeCachePattern)
	return view, nil
}

// Unsuspend lifts a finance suspension.
func (s *FinanceService) Unsuspend(ctx context.Context, actor models.Actor, studentID, classID string) (*dto.StudentFinanceView, error) {
	view, err := s.setSuspended(ctx, actor, studentID, classID, false)
	if err != nil {
		return nil, err
	}
	s.cache.invalidate(ctx, financeCachePattern)
	return view, nil
}

// BulkSuspend suspends each listed record independently. A failing item is
// reported and never stops the remaining items.
func (s *FinanceService) BulkSuspend(ctx context.Context, actor models.Actor, req dto.BulkRequest) (*dto.BulkResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk suspension payload")
	}

	result := &dto.BulkResult{Requested: len(req.Items), Failures: []dto.BulkFailure{}}
	for _, item := range req.Items {
		if err := ctx.Err(); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "bulk suspension interrupted")
		}
		if _, err := s.setSuspended(ctx, actor, item.StudentID, item.ClassID, true); err != nil {
			result.Failed++
			result.Failures = append(result.Failures, bulkFailure(item, err))
			s.metrics.RecordBulkItem("suspend", false)
			continue
		}
		result.Succeeded++
		s.metrics.RecordBulkItem("suspend", true)
	}

	s.audit.record(ctx, actor, models.AuditActionBulkSuspend, "bulk", nil, result)
	if result.Succeeded > 0 {
		s.cache.invalidate(ctx, financeCachePattern)
	}
	s.logger.Info("bulk suspension processed",
		zap.String("actor", actor.UserID),
		zap.Int("requested", result.Requested),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed))
	return result, nil
}

// Revenue summarises completed payments for a period.
func (s *FinanceService) Revenue(ctx context.Context, filter models.RevenueFilter) (*dto.RevenueReport, bool, error) {
	if filter.DateFrom != nil && filter.DateTo != nil && filter.DateTo.Before(*filter.DateFrom) {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "date_to must not be before date_from")
	}

	key := fmt.Sprintf("finance:revenue:%s:%s:%s:%s", formatOptionalDate(filter.DateFrom), formatOptionalDate(filter.DateTo), filter.Category, filter.PaymentMethod)
	var cached dto.RevenueReport
	if s.cache.get(ctx, key, &cached) {
		return &cached, true, nil
	}

	start := time.Now()
	rows, err := s.repo.Revenue(ctx, filter)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load revenue")
	}
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("finance_revenue", time.Since(start))
	}

	lines := make([]rules.RevenueLine, 0, len(rows))
	for _, row := range rows {
		category := "uncategorized"
		if row.Category != nil && *row.Category != "" {
			category = *row.Category
		}
		lines = append(lines, rules.RevenueLine{
			Service:       row.ServiceName,
			Category:      category,
			PaymentMethod: row.PaymentMethod,
			Transactions:  row.Transactions,
			Amount:        row.Amount,
		})
	}
	summary, err := rules.SummarizeRevenue(lines)
	if err != nil {
		return nil, false, ruleError(err, "failed to summarise revenue")
	}

	report := dto.RevenueReport{DateFrom: filter.DateFrom, DateTo: filter.DateTo, Summary: summary}
	s.cache.set(ctx, key, report)
	return &report, false, nil
}

func (s *FinanceService) setSuspended(ctx context.Context, actor models.Actor, studentID, classID string, suspended bool) (*dto.StudentFinanceView, error) {
	if studentID == "" || classID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "studentId and classId are required")
	}
	record, err := s.repo.FindByStudentClass(ctx, studentID, classID)
	if err != nil {
		return nil, lookupError(err, "fee record not found", "failed to load fee record")
	}

	now := s.clock.Now()
	if record.IsSuspended == suspended {
		view := financeView(*record, now)
		return &view, nil
	}

	if err := s.repo.SetSuspended(ctx, studentID, classID, suspended, now); err != nil {
		return nil, lookupError(err, "fee record not found", "failed to update suspension")
	}

	action := models.AuditActionUnsuspend
	if suspended {
		action = models.AuditActionSuspend
	}
	s.audit.record(ctx, actor, action, resourceKey(studentID, classID),
		map[string]bool{"is_suspended": record.IsSuspended},
		map[string]bool{"is_suspended": suspended})

	record.IsSuspended = suspended
	view := financeView(*record, now)
	return &view, nil
}

func formatOptionalDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return strconv.FormatInt(t.Unix(), 10)
}

func formatOptionalBool(b *bool) string {
	if b == nil {
		return "-"
	}
	return strconv.FormatBool(*b)
}
