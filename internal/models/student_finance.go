package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// StudentFinancialRecord is the fee position of one student in one class, joined
// with the class schedule and program it belongs to.
type StudentFinancialRecord struct {
	StudentID        string          `db:"student_id" json:"student_id"`
	ClassID          string          `db:"class_id" json:"class_id"`
	StudentName      string          `db:"student_name" json:"student_name"`
	StudentNumber    *string         `db:"student_number" json:"student_number,omitempty"`
	BatchCode        string          `db:"batch_code" json:"batch_code"`
	ProgramType      *string         `db:"program_type" json:"program_type,omitempty"`
	TotalFee         decimal.Decimal `db:"total_fee" json:"total_fee"`
	PaidAmount       decimal.Decimal `db:"paid_amount" json:"paid_amount"`
	Balance          decimal.Decimal `db:"balance" json:"balance"`
	NextPaymentDue   *time.Time      `db:"next_payment_due" json:"next_payment_due,omitempty"`
	IsSuspended      bool            `db:"is_suspended" json:"is_suspended"`
	IsCleared        bool            `db:"is_cleared" json:"is_cleared"`
	ClearedAt        *time.Time      `db:"cleared_at" json:"cleared_at,omitempty"`
	RegistrationPaid bool            `db:"registration_paid" json:"registration_paid"`
	Block1Paid       bool            `db:"block1_paid" json:"block1_paid"`
	Block2Paid       bool            `db:"block2_paid" json:"block2_paid"`
	CurrentBlock     int             `db:"current_block" json:"current_block"`
	ClassStartDate   *time.Time      `db:"class_start_date" json:"class_start_date,omitempty"`
	ClassEndDate     *time.Time      `db:"class_end_date" json:"class_end_date,omitempty"`
}

// Program returns the program type or an empty string.
func (r StudentFinancialRecord) Program() string {
	if r.ProgramType == nil {
		return ""
	}
	return *r.ProgramType
}

// StudentFinanceFilter captures filtering options for fee record listings.
type StudentFinanceFilter struct {
	Search    string
	ClassID   string
	ProgramID string
	StudentID string
	Suspended *bool
	Cleared   *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// TransactionSummary describes the payment history of a student in a class.
type TransactionSummary struct {
	StudentID       string          `db:"student_id" json:"student_id"`
	ClassID         string          `db:"class_id" json:"class_id"`
	Count           int             `db:"transaction_count" json:"count"`
	TotalPaid       decimal.Decimal `db:"total_paid" json:"total_paid"`
	LastPaymentDate *time.Time      `db:"last_payment_date" json:"last_payment_date,omitempty"`
	MethodsUsed     pq.StringArray  `db:"methods_used" json:"methods_used"`
}

// OverdueRow is an overdue fee record with the days elapsed since its due date,
// as computed by the database against the supplied reference date.
type OverdueRow struct {
	StudentID      string          `db:"student_id" json:"student_id"`
	ClassID        string          `db:"class_id" json:"class_id"`
	StudentName    string          `db:"student_name" json:"student_name"`
	BatchCode      string          `db:"batch_code" json:"batch_code"`
	ProgramType    *string         `db:"program_type" json:"program_type,omitempty"`
	Balance        decimal.Decimal `db:"balance" json:"balance"`
	NextPaymentDue time.Time       `db:"next_payment_due" json:"next_payment_due"`
	DaysOverdue    int             `db:"days_overdue" json:"days_overdue"`
	IsSuspended    bool            `db:"is_suspended" json:"is_suspended"`
}

// OverdueFilter narrows the overdue report.
type OverdueFilter struct {
	Search    string
	ClassID   string
	ProgramID string
}

// RevenueRow is revenue grouped by service and payment method.
type RevenueRow struct {
	ServiceName   string          `db:"service_name" json:"service_name"`
	Category      *string         `db:"category" json:"category,omitempty"`
	PaymentMethod string          `db:"payment_method" json:"payment_method"`
	Transactions  int             `db:"transactions" json:"transactions"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
}

// RevenueFilter bounds a revenue query.
type RevenueFilter struct {
	DateFrom      *time.Time
	DateTo        *time.Time
	Category      string
	PaymentMethod string
}

// StudentClassRef identifies a fee record.
type StudentClassRef struct {
	StudentID string `json:"student_id" validate:"required"`
	ClassID   string `json:"class_id" validate:"required"`
}
