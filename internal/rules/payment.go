package rules

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is the single label derived for a student's fee record.
type PaymentStatus string

const (
	PaymentPaid      PaymentStatus = "paid"
	PaymentPartial   PaymentStatus = "partial"
	PaymentUnpaid    PaymentStatus = "unpaid"
	PaymentOverdue   PaymentStatus = "overdue"
	PaymentSuspended PaymentStatus = "suspended"
)

// PaymentStatuses lists every label ClassifyPayment can return.
var PaymentStatuses = []PaymentStatus{PaymentPaid, PaymentPartial, PaymentUnpaid, PaymentOverdue, PaymentSuspended}

// Valid reports whether s is one of the known labels.
func (s PaymentStatus) Valid() bool {
	for _, known := range PaymentStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// PaymentInput carries the stored fields the classifier reads. Balance is trusted
// as stored and never re-derived from TotalFee and PaidAmount.
type PaymentInput struct {
	TotalFee       decimal.Decimal
	PaidAmount     decimal.Decimal
	Balance        decimal.Decimal
	NextPaymentDue *time.Time
	Suspended      bool
}

// ClassifyPayment applies the status priority chain; the first matching rule wins:
//
//  1. due date before today with an outstanding balance: overdue
//  2. suspended: suspended
//  3. nothing outstanding: paid
//  4. something paid: partial
//  5. otherwise: unpaid
func ClassifyPayment(in PaymentInput, now time.Time) (PaymentStatus, error) {
	if in.TotalFee.IsNegative() {
		return "", fmt.Errorf("%w: total fee %s is negative", ErrInvalidInput, in.TotalFee)
	}
	if in.PaidAmount.IsNegative() {
		return "", fmt.Errorf("%w: paid amount %s is negative", ErrInvalidInput, in.PaidAmount)
	}

	outstanding := in.Balance.IsPositive()
	if outstanding {
		if in.NextPaymentDue == nil {
			return "", fmt.Errorf("%w: next payment due date is missing", ErrNotDeterminable)
		}
		if beforeToday(*in.NextPaymentDue, now) {
			return PaymentOverdue, nil
		}
	}

	switch {
	case in.Suspended:
		return PaymentSuspended, nil
	case !outstanding:
		return PaymentPaid, nil
	case in.PaidAmount.IsPositive():
		return PaymentPartial, nil
	default:
		return PaymentUnpaid, nil
	}
}

// IsOverdue is the overdue predicate on its own, for callers that only gate on it.
func IsOverdue(balance decimal.Decimal, due *time.Time, now time.Time) (bool, error) {
	if !balance.IsPositive() {
		return false, nil
	}
	if due == nil {
		return false, fmt.Errorf("%w: next payment due date is missing", ErrNotDeterminable)
	}
	return beforeToday(*due, now), nil
}

// PaymentStatusCounts is the fold of many classified records.
type PaymentStatusCounts struct {
	Paid      int `json:"paid"`
	Partial   int `json:"partial"`
	Unpaid    int `json:"unpaid"`
	Overdue   int `json:"overdue"`
	Suspended int `json:"suspended"`
	Total     int `json:"total"`
}

// Add counts one label. Unknown labels are rejected so totals always match the per-status counts.
func (c *PaymentStatusCounts) Add(status PaymentStatus) error {
	switch status {
	case PaymentPaid:
		c.Paid++
	case PaymentPartial:
		c.Partial++
	case PaymentUnpaid:
		c.Unpaid++
	case PaymentOverdue:
		c.Overdue++
	case PaymentSuspended:
		c.Suspended++
	default:
		return fmt.Errorf("%w: unknown payment status %q", ErrInvalidInput, status)
	}
	c.Total++
	return nil
}

// SummarizePaymentStatuses counts labels per status.
func SummarizePaymentStatuses(statuses []PaymentStatus) (PaymentStatusCounts, error) {
	var counts PaymentStatusCounts
	for _, status := range statuses {
		if err := counts.Add(status); err != nil {
			return PaymentStatusCounts{}, err
		}
	}
	return counts, nil
}
