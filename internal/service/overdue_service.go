package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-backoffice-api/internal/dto"
	"github.com/noah-isme/sma-backoffice-api/internal/models"
	"github.com/noah-isme/sma-backoffice-api/internal/rules"
	appErrors "github.com/noah-isme/sma-backoffice-api/pkg/errors"
	"github.com/noah-isme/sma-backoffice-api/pkg/export"
)

type overdueRepository interface {
	ListOverdue(ctx context.Context, filter models.OverdueFilter, asOf time.Time) ([]models.OverdueRow, error)
}

type tableRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// OverdueServiceConfig tunes overdue reporting.
type OverdueServiceConfig struct {
	CacheTTL time.Duration
	Location *time.Location
}

// OverdueService builds the overdue aging report.
type OverdueService struct {
	repo     overdueRepository
	renderer tableRenderer
	cache    reportCache
	logger   *zap.Logger
	clock    institutionClock
}

// NewOverdueService constructs an OverdueService.
func NewOverdueService(repo overdueRepository, renderer tableRenderer, cache *CacheService, logger *zap.Logger, cfg OverdueServiceConfig) *OverdueService {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if renderer == nil {
		renderer = export.NewPDFExporter()
	}
	return &OverdueService{
		repo:     repo,
		renderer: renderer,
		cache:    reportCache{cache: cache, ttl: cfg.CacheTTL, logger: logger},
		logger:   logger,
		clock:    newInstitutionClock(cfg.Location),
	}
}

// Report buckets every overdue record by age and summarises amounts per program.
func (s *OverdueService) Report(ctx context.Context, filter models.OverdueFilter) (*dto.OverdueReport, bool, error) {
	asOf := s.clock.Now()
	key := fmt.Sprintf("finance:overdue:%s:%s:%s:%s", asOf.Format("2006-01-02"), filter.ClassID, filter.ProgramID, filter.Search)

	var cached dto.OverdueReport
	if s.cache.get(ctx, key, &cached) {
		return &cached, true, nil
	}

	rows, err := s.repo.ListOverdue(ctx, filter, asOf)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load overdue records")
	}

	items := make([]dto.OverdueItem, 0, len(rows))
	records := make([]rules.OverdueRecord, 0, len(rows))
	for _, row := range rows {
		bucket, err := rules.AgingBucketFor(row.DaysOverdue)
		if err != nil {
			s.logger.Warn("overdue row has no valid age",
				zap.String("student_id", row.StudentID),
				zap.String("class_id", row.ClassID),
				zap.Int("days_overdue", row.DaysOverdue))
			return nil, false, ruleError(err, "overdue record has an invalid age")
		}
		items = append(items, dto.OverdueItem{OverdueRow: row, Bucket: bucket})

		program := ""
		if row.ProgramType != nil {
			program = *row.ProgramType
		}
		records = append(records, rules.OverdueRecord{
			StudentID:   row.StudentID,
			ProgramType: program,
			Balance:     row.Balance,
			DaysOverdue: row.DaysOverdue,
		})
	}

	summary, err := rules.SummarizeOverdue(records)
	if err != nil {
		return nil, false, ruleError(err, "failed to summarise overdue records")
	}

	report := dto.OverdueReport{AsOf: asOf, Summary: summary, Items: items}
	s.cache.set(ctx, key, report)
	return &report, false, nil
}

// ReportPDF renders the overdue report as a printable table.
func (s *OverdueService) ReportPDF(ctx context.Context, filter models.OverdueFilter) ([]byte, string, error) {
	report, _, err := s.Report(ctx, filter)
	if err != nil {
		return nil, "", err
	}

	dataset := export.Dataset{Headers: []string{"Student", "Batch", "Program", "Due", "Days", "Bucket", "Balance"}}
	for _, item := range report.Items {
		program := rules.UnknownProgram
		if item.ProgramType != nil && *item.ProgramType != "" {
			program = *item.ProgramType
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Student": item.StudentName,
			"Batch":   item.BatchCode,
			"Program": program,
			"Due":     item.NextPaymentDue.Format("2006-01-02"),
			"Days":    strconv.Itoa(item.DaysOverdue),
			"Bucket":  string(item.Bucket),
			"Balance": item.Balance.StringFixed(2),
		})
	}

	title := fmt.Sprintf("Overdue payments as of %s", report.AsOf.Format("2006-01-02"))
	body, err := s.renderer.Render(dataset, title)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render overdue report")
	}
	return body, fmt.Sprintf("overdue-%s.pdf", report.AsOf.Format("20060102")), nil
}
