package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-backoffice-api/internal/models"
)

// InstructorWorkloadRepository aggregates instructor load over a period.
type InstructorWorkloadRepository struct {
	db *sqlx.DB
}

// NewInstructorWorkloadRepository constructs the repository.
func NewInstructorWorkloadRepository(db *sqlx.DB) *InstructorWorkloadRepository {
	return &InstructorWorkloadRepository{db: db}
}

// Aggregate counts classes, enrolments, assignments and materials per instructor.
// Only classes whose start date lies in [From, To] are joined, so instructors
// without classes in the period still appear with zero counts.
func (r *InstructorWorkloadRepository) Aggregate(ctx context.Context, filter models.WorkloadFilter) ([]models.InstructorWorkloadRow, error) {
	var builder strings.Builder
	builder.WriteString(`SELECT i.id AS instructor_id, i.full_name, i.email,
		COUNT(DISTINCT cs.id) AS total_classes,
		COUNT(DISTINCT cs.id) FILTER (WHERE cs.status = 'active') AS active_classes,
		COUNT(DISTINCT cs.id) FILTER (WHERE cs.status = 'scheduled') AS scheduled_classes,
		COUNT(DISTINCT ce.id) AS total_students,
		COUNT(DISTINCT a.id) AS total_assignments,
		COUNT(DISTINCT m.id) AS total_materials
		FROM instructors i
		LEFT JOIN class_schedules cs ON cs.instructor_id = i.id AND cs.start_date BETWEEN $1 AND $2
		LEFT JOIN class_enrollments ce ON ce.class_id = cs.id
		LEFT JOIN assignments a ON a.class_id = cs.id
		LEFT JOIN course_materials m ON m.class_id = cs.id
		WHERE 1=1`)
	args := []interface{}{filter.From.Format("2006-01-02"), filter.To.Format("2006-01-02")}

	if filter.ActiveOnly {
		builder.WriteString(" AND i.active = TRUE")
	}
	if filter.InstructorID != "" {
		args = append(args, filter.InstructorID)
		builder.WriteString(fmt.Sprintf(" AND i.id = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		builder.WriteString(fmt.Sprintf(" AND (LOWER(i.full_name) LIKE $%d OR LOWER(COALESCE(i.email, '')) LIKE $%d)", len(args), len(args)))
	}
	builder.WriteString(" GROUP BY i.id, i.full_name, i.email ORDER BY i.full_name")

	var rows []models.InstructorWorkloadRow
	if err := r.db.SelectContext(ctx, &rows, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("aggregate instructor workload: %w", err)
	}
	return rows, nil
}
