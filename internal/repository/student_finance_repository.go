package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-backoffice-api/internal/models"
)

const financeRecordColumns = `sp.student_id, sp.class_id, s.full_name AS student_name, s.student_number,
		cs.batch_code, p.program_type, sp.total_fee, sp.paid_amount, sp.balance, sp.next_payment_due,
		sp.is_suspended, sp.is_cleared, sp.cleared_at, sp.registration_paid, sp.block1_paid, sp.block2_paid,
		sp.current_block, cs.start_date AS class_start_date, cs.end_date AS class_end_date`

const financeRecordFrom = ` FROM student_payments sp
		JOIN students s ON s.id = sp.student_id
		JOIN class_schedules cs ON cs.id = sp.class_id
		LEFT JOIN programs p ON p.id = cs.program_id
		WHERE 1=1`

// StudentFinanceRepository reads student fee records and applies the few writes
// the finance workflows need (clearance and suspension flags).
type StudentFinanceRepository struct {
	db *sqlx.DB
}

// NewStudentFinanceRepository constructs a StudentFinanceRepository.
func NewStudentFinanceRepository(db *sqlx.DB) *StudentFinanceRepository {
	return &StudentFinanceRepository{db: db}
}

func buildFinanceConditions(filter models.StudentFinanceFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("(LOWER(s.full_name) LIKE $%d OR LOWER(COALESCE(s.student_number, '')) LIKE $%d OR LOWER(cs.batch_code) LIKE $%d)", len(args), len(args), len(args)))
	}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("sp.student_id = $%d", len(args)))
	}
	if filter.ClassID != "" {
		args = append(args, filter.ClassID)
		conditions = append(conditions, fmt.Sprintf("sp.class_id = $%d", len(args)))
	}
	if filter.ProgramID != "" {
		args = append(args, filter.ProgramID)
		conditions = append(conditions, fmt.Sprintf("cs.program_id = $%d", len(args)))
	}
	if filter.Suspended != nil {
		args = append(args, *filter.Suspended)
		conditions = append(conditions, fmt.Sprintf("sp.is_suspended = $%d", len(args)))
	}
	if filter.Cleared != nil {
		args = append(args, *filter.Cleared)
		conditions = append(conditions, fmt.Sprintf("sp.is_cleared = $%d", len(args)))
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " AND " + strings.Join(conditions, " AND "), args
}

// List returns one page of fee records matching filters along with the total count.
func (r *StudentFinanceRepository) List(ctx context.Context, filter models.StudentFinanceFilter) ([]models.StudentFinancialRecord, int, error) {
	where, args := buildFinanceConditions(filter)

	allowedSorts := map[string]string{
		"student_name":     "s.full_name",
		"balance":          "sp.balance",
		"next_payment_due": "sp.next_payment_due",
		"batch_code":       "cs.batch_code",
		"class_end_date":   "cs.end_date",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "s.full_name"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s%s%s ORDER BY %s %s, sp.student_id, sp.class_id LIMIT %d OFFSET %d", financeRecordColumns, financeRecordFrom, where, column, order, size, offset)
	var records []models.StudentFinancialRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list student finance records: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*)%s%s", financeRecordFrom, where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count student finance records: %w", err)
	}

	return records, total, nil
}

// ListAll returns every fee record matching filters, ignoring pagination. Used for summaries.
func (r *StudentFinanceRepository) ListAll(ctx context.Context, filter models.StudentFinanceFilter) ([]models.StudentFinancialRecord, error) {
	where, args := buildFinanceConditions(filter)
	query := fmt.Sprintf("SELECT %s%s%s ORDER BY sp.student_id, sp.class_id", financeRecordColumns, financeRecordFrom, where)
	var records []models.StudentFinancialRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list all student finance records: %w", err)
	}
	return records, nil
}

// FindByStudentClass fetches a single fee record.
func (r *StudentFinanceRepository) FindByStudentClass(ctx context.Context, studentID, classID string) (*models.StudentFinancialRecord, error) {
	query := fmt.Sprintf("SELECT %s%s AND sp.student_id = $1 AND sp.class_id = $2", financeRecordColumns, financeRecordFrom)
	var record models.StudentFinancialRecord
	if err := r.db.GetContext(ctx, &record, query, studentID, classID); err != nil {
		return nil, err
	}
	return &record, nil
}

// ListOverdue returns fee records whose due date is before asOf with an outstanding
// balance, most overdue first. days_overdue is computed against asOf.
func (r *StudentFinanceRepository) ListOverdue(ctx context.Context, filter models.OverdueFilter, asOf time.Time) ([]models.OverdueRow, error) {
	var builder strings.Builder
	builder.WriteString(`SELECT sp.student_id, sp.class_id, s.full_name AS student_name, cs.batch_code, p.program_type,
		sp.balance, sp.next_payment_due, ($1::date - sp.next_payment_due) AS days_overdue, sp.is_suspended
		FROM student_payments sp
		JOIN students s ON s.id = sp.student_id
		JOIN class_schedules cs ON cs.id = sp.class_id
		LEFT JOIN programs p ON p.id = cs.program_id
		WHERE sp.next_payment_due < $1::date AND sp.balance > 0`)
	args := []interface{}{asOf.Format("2006-01-02")}

	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		builder.WriteString(fmt.Sprintf(" AND (LOWER(s.full_name) LIKE $%d OR LOWER(cs.batch_code) LIKE $%d)", len(args), len(args)))
	}
	if filter.ClassID != "" {
		args = append(args, filter.ClassID)
		builder.WriteString(fmt.Sprintf(" AND sp.class_id = $%d", len(args)))
	}
	if filter.ProgramID != "" {
		args = append(args, filter.ProgramID)
		builder.WriteString(fmt.Sprintf(" AND cs.program_id = $%d", len(args)))
	}
	builder.WriteString(" ORDER BY days_overdue DESC, sp.balance DESC")

	var rows []models.OverdueRow
	if err := r.db.SelectContext(ctx, &rows, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list overdue records: %w", err)
	}
	return rows, nil
}

// TransactionSummaries returns per-class payment history for a student.
func (r *StudentFinanceRepository) TransactionSummaries(ctx context.Context, studentID string) ([]models.TransactionSummary, error) {
	const query = `SELECT pt.student_id, pt.class_id, COUNT(*) AS transaction_count,
		COALESCE(SUM(pt.amount), 0) AS total_paid, MAX(pt.paid_at) AS last_payment_date,
		ARRAY_AGG(DISTINCT pt.payment_method) AS methods_used
		FROM payment_transactions pt
		WHERE pt.student_id = $1 AND pt.status = 'completed'
		GROUP BY pt.student_id, pt.class_id
		ORDER BY last_payment_date DESC`
	var summaries []models.TransactionSummary
	if err := r.db.SelectContext(ctx, &summaries, query, studentID); err != nil {
		return nil, fmt.Errorf("list transaction summaries: %w", err)
	}
	return summaries, nil
}

// Revenue returns completed payment totals grouped by service and payment method.
// DateTo is inclusive: payments made any time on that day count.
func (r *StudentFinanceRepository) Revenue(ctx context.Context, filter models.RevenueFilter) ([]models.RevenueRow, error) {
	var builder strings.Builder
	builder.WriteString(`SELECT COALESCE(sv.name, 'Tuition') AS service_name, sv.category, pt.payment_method,
		COUNT(*) AS transactions, COALESCE(SUM(pt.amount), 0) AS amount
		FROM payment_transactions pt
		LEFT JOIN services sv ON sv.id = pt.service_id
		WHERE pt.status = 'completed'`)
	var args []interface{}
	if filter.DateFrom != nil {
		args = append(args, *filter.DateFrom)
		builder.WriteString(fmt.Sprintf(" AND pt.paid_at >= $%d", len(args)))
	}
	if filter.DateTo != nil {
		args = append(args, filter.DateTo.AddDate(0, 0, 1))
		builder.WriteString(fmt.Sprintf(" AND pt.paid_at < $%d", len(args)))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		builder.WriteString(fmt.Sprintf(" AND sv.category = $%d", len(args)))
	}
	if filter.PaymentMethod != "" {
		args = append(args, filter.PaymentMethod)
		builder.WriteString(fmt.Sprintf(" AND pt.payment_method = $%d", len(args)))
	}
	builder.WriteString(" GROUP BY sv.name, sv.category, pt.payment_method ORDER BY amount DESC")

	var rows []models.RevenueRow
	if err := r.db.SelectContext(ctx, &rows, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("query revenue: %w", err)
	}
	return rows, nil
}

// SetCleared flips the clearance flag of a fee record. It returns sql.ErrNoRows when
// the record does not exist.
func (r *StudentFinanceRepository) SetCleared(ctx context.Context, studentID, classID string, cleared bool, at time.Time) error {
	var clearedAt interface{}
	if cleared {
		clearedAt = at.UTC()
	}
	const query = `UPDATE student_payments SET is_cleared = $3, cleared_at = $4, updated_at = $5 WHERE student_id = $1 AND class_id = $2`
	result, err := r.db.ExecContext(ctx, query, studentID, classID, cleared, clearedAt, at.UTC())
	if err != nil {
		return fmt.Errorf("set cleared: %w", err)
	}
	return requireAffected(result)
}

// SetSuspended flips the suspension flag of a fee record.
func (r *StudentFinanceRepository) SetSuspended(ctx context.Context, studentID, classID string, suspended bool, at time.Time) error {
	const query = `UPDATE student_payments SET is_suspended = $3, updated_at = $4 WHERE student_id = $1 AND class_id = $2`
	result, err := r.db.ExecContext(ctx, query, studentID, classID, suspended, at.UTC())
	if err != nil {
		return fmt.Errorf("set suspended: %w", err)
	}
	return requireAffected(result)
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
