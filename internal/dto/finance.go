package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/sma-backoffice-api/internal/models"
	"github.com/noah-isme/sma-backoffice-api/internal/rules"
)

// StatusNotDeterminable labels a record whose stored data cannot produce a status.
const StatusNotDeterminable = "not_determinable"

// StudentFinanceView is a fee record with its derived labels.
type StudentFinanceView struct {
	models.StudentFinancialRecord
	PaymentStatus  string                     `json:"payment_status"`
	ClearanceState string                     `json:"clearance_state"`
	DaysOverdue    int                        `json:"days_overdue,omitempty"`
	Installments   *rules.InstallmentProgress `json:"installments,omitempty"`
	StatusError    string                     `json:"status_error,omitempty"`
}

// PaymentStatusSummary counts fee records per payment status.
type PaymentStatusSummary struct {
	AsOf               time.Time                 `json:"as_of"`
	Counts             rules.PaymentStatusCounts `json:"counts"`
	NotDeterminable    int                       `json:"not_determinable"`
	TotalOutstanding   decimal.Decimal           `json:"total_outstanding"`
	TotalCollected     decimal.Decimal           `json:"total_collected"`
	TotalBilled        decimal.Decimal           `json:"total_billed"`
	ClearanceCounts    rules.ClearanceCounts     `json:"clearance_counts"`
	ClearanceUndecided int                       `json:"clearance_not_determinable"`
}

// StudentFinanceDetail is every fee record of a student plus their payment history.
type StudentFinanceDetail struct {
	StudentID    string                      `json:"student_id"`
	Records      []StudentFinanceView        `json:"records"`
	Transactions []models.TransactionSummary `json:"transactions"`
}

// OverdueItem is one row of the overdue report.
type OverdueItem struct {
	models.OverdueRow
	Bucket rules.AgingBucket `json:"bucket"`
}

// OverdueReport is the overdue aging report.
type OverdueReport struct {
	AsOf    time.Time            `json:"as_of"`
	Summary rules.OverdueSummary `json:"summary"`
	Items   []OverdueItem        `json:"items"`
}

// RevenueReport is the service revenue report for a period.
type RevenueReport struct {
	DateFrom *time.Time           `json:"date_from,omitempty"`
	DateTo   *time.Time           `json:"date_to,omitempty"`
	Summary  rules.RevenueSummary `json:"summary"`
}

// ClearanceView is a fee record seen from the clearance workflow.
type ClearanceView struct {
	StudentID    string          `json:"student_id"`
	ClassID      string          `json:"class_id"`
	StudentName  string          `json:"student_name"`
	BatchCode    string          `json:"batch_code"`
	Balance      decimal.Decimal `json:"balance"`
	ClassEndDate *time.Time      `json:"class_end_date,omitempty"`
	ClearedAt    *time.Time      `json:"cleared_at,omitempty"`
	State        string          `json:"state"`
	Reason       string          `json:"reason"`
	CanClear     bool            `json:"can_clear"`
}

// BulkRequest lists fee records for a bulk action.
type BulkRequest struct {
	Items []models.StudentClassRef `json:"items" validate:"required,min=1,max=500,dive"`
}

// BulkFailure describes why one item of a bulk action failed.
type BulkFailure struct {
	StudentID string `json:"student_id"`
	ClassID   string `json:"class_id"`
	Code      string `json:"code"`
	Reason    string `json:"reason"`
}

// BulkResult reports per-item outcomes of a bulk action. Items are independent:
// a failure never rolls back an item that already succeeded.
type BulkResult struct {
	Requested int           `json:"requested"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Failures  []BulkFailure `json:"failures"`
}
