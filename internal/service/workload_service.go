package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-backoffice-api/internal/dto"
	"github.com/noah-isme/sma-backoffice-api/internal/models"
	"github.com/noah-isme/sma-backoffice-api/internal/rules"
	appErrors "github.com/noah-isme/sma-backoffice-api/pkg/errors"
)

type workloadRepository interface {
	Aggregate(ctx context.Context, filter models.WorkloadFilter) ([]models.InstructorWorkloadRow, error)
}

// WorkloadServiceConfig tunes workload reporting.
type WorkloadServiceConfig struct {
	CacheTTL      time.Duration
	DefaultPeriod time.Duration
	Location      *time.Location
}

// WorkloadRequest selects the period and instructors to score. A missing bound
// defaults to the configured period ending today.
type WorkloadRequest struct {
	From         *time.Time
	To           *time.Time
	Search       string
	InstructorID string
	ActiveOnly   bool
}

// WorkloadService scores instructor workload over a period.
type WorkloadService struct {
	repo   workloadRepository
	cache  reportCache
	logger *zap.Logger
	clock  institutionClock
	cfg    WorkloadServiceConfig
}

// NewWorkloadService constructs a WorkloadService.
func NewWorkloadService(repo workloadRepository, cache *CacheService, logger *zap.Logger, cfg WorkloadServiceConfig) *WorkloadService {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 15 * time.Minute
	}
	if cfg.DefaultPeriod <= 0 {
		cfg.DefaultPeriod = 90 * 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkloadService{
		repo:   repo,
		cache:  reportCache{cache: cache, ttl: cfg.CacheTTL, logger: logger},
		logger: logger,
		clock:  newInstitutionClock(cfg.Location),
		cfg:    cfg,
	}
}

// Report aggregates and scores every instructor for the requested period.
func (s *WorkloadService) Report(ctx context.Context, req WorkloadRequest) (*dto.WorkloadReport, bool, error) {
	from, to := s.period(req)
	if to.Before(from) {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "to must not be before from")
	}

	key := fmt.Sprintf("workload:%s:%s:%s:%s:%t", from.Format("2006-01-02"), to.Format("2006-01-02"), req.InstructorID, req.Search, req.ActiveOnly)
	var cached dto.WorkloadReport
	if s.cache.get(ctx, key, &cached) {
		return &cached, true, nil
	}

	rows, err := s.repo.Aggregate(ctx, models.WorkloadFilter{
		From:         from,
		To:           to,
		Search:       req.Search,
		InstructorID: req.InstructorID,
		ActiveOnly:   req.ActiveOnly,
	})
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate instructor workload")
	}

	report := dto.WorkloadReport{From: from, To: to, Instructors: make([]dto.InstructorWorkload, 0, len(rows))}
	for _, row := range rows {
		assessment, err := rules.AssessWorkload(rules.WorkloadCounts{
			TotalClasses:     row.TotalClasses,
			ActiveClasses:    row.ActiveClasses,
			ScheduledClasses: row.ScheduledClasses,
			TotalStudents:    row.TotalStudents,
			TotalAssignments: row.TotalAssignments,
			TotalMaterials:   row.TotalMaterials,
		})
		if err != nil {
			return nil, false, ruleError(err, fmt.Sprintf("invalid workload aggregate for instructor %s", row.InstructorID))
		}
		if err := report.Tiers.Add(assessment.Tier); err != nil {
			return nil, false, ruleError(err, "failed to count workload tier")
		}
		report.Instructors = append(report.Instructors, dto.InstructorWorkload{InstructorWorkloadRow: row, WorkloadAssessment: assessment})
	}

	s.cache.set(ctx, key, report)
	return &report, false, nil
}

func (s *WorkloadService) period(req WorkloadRequest) (time.Time, time.Time) {
	today := s.clock.Now()
	to := today
	if req.To != nil {
		to = *req.To
	}
	from := to.Add(-s.cfg.DefaultPeriod)
	if req.From != nil {
		from = *req.From
	}
	return dateOnly(from), dateOnly(to)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
