package rules

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// AgingBucket groups overdue records by how many days have passed since the due date.
type AgingBucket string

const (
	BucketOneToSeven    AgingBucket = "1_7"
	BucketEightToThirty AgingBucket = "8_30"
	BucketOverThirty    AgingBucket = "30+"
)

// UnknownProgram labels overdue records without a program type.
const UnknownProgram = "unassigned"

// AgingBucketFor assigns a bucket. Callers only pass rows already filtered to
// "due before today with a balance", so days is at least 1; anything else is rejected.
func AgingBucketFor(daysOverdue int) (AgingBucket, error) {
	switch {
	case daysOverdue < 1:
		return "", fmt.Errorf("%w: days overdue must be at least 1, got %d", ErrInvalidInput, daysOverdue)
	case daysOverdue <= 7:
		return BucketOneToSeven, nil
	case daysOverdue <= 30:
		return BucketEightToThirty, nil
	default:
		return BucketOverThirty, nil
	}
}

// OverdueRecord is one overdue student/class pair.
type OverdueRecord struct {
	StudentID   string
	ProgramType string
	Balance     decimal.Decimal
	DaysOverdue int
}

// BucketCounts counts records per aging bucket.
type BucketCounts struct {
	OneToSeven    int `json:"1_7"`
	EightToThirty int `json:"8_30"`
	OverThirty    int `json:"30+"`
}

// Total sums every bucket.
func (b BucketCounts) Total() int {
	return b.OneToSeven + b.EightToThirty + b.OverThirty
}

// Add counts one bucket. Unknown buckets are rejected.
func (b *BucketCounts) Add(bucket AgingBucket) error {
	switch bucket {
	case BucketOneToSeven:
		b.OneToSeven++
	case BucketEightToThirty:
		b.EightToThirty++
	case BucketOverThirty:
		b.OverThirty++
	default:
		return fmt.Errorf("%w: unknown aging bucket %q", ErrInvalidInput, bucket)
	}
	return nil
}

// ProgramOverdue is the per-program-type breakdown of an overdue report.
type ProgramOverdue struct {
	ProgramType        string          `json:"program_type"`
	Count              int             `json:"count"`
	TotalOverdue       decimal.Decimal `json:"total_overdue"`
	AverageDaysOverdue float64         `json:"average_days_overdue"`
}

// OverdueSummary aggregates a set of overdue records.
type OverdueSummary struct {
	TotalStudents  int              `json:"total_students"`
	Buckets        BucketCounts     `json:"buckets"`
	TotalAmount    decimal.Decimal  `json:"total_amount"`
	AverageAmount  decimal.Decimal  `json:"average_amount"`
	Programs       []ProgramOverdue `json:"programs"`
	MaxDaysOverdue int              `json:"max_days_overdue"`
}

// SummarizeOverdue folds overdue records into bucket counts, currency totals and a
// per-program breakdown sorted by program type. Averages are rounded to cents.
func SummarizeOverdue(records []OverdueRecord) (OverdueSummary, error) {
	summary := OverdueSummary{
		TotalAmount:   decimal.Zero,
		AverageAmount: decimal.Zero,
		Programs:      []ProgramOverdue{},
	}

	type programAcc struct {
		count     int
		total     decimal.Decimal
		daysTotal int
	}
	programs := make(map[string]*programAcc)

	for _, record := range records {
		bucket, err := AgingBucketFor(record.DaysOverdue)
		if err != nil {
			return OverdueSummary{}, fmt.Errorf("student %s: %w", record.StudentID, err)
		}
		if !record.Balance.IsPositive() {
			return OverdueSummary{}, fmt.Errorf("%w: student %s has no outstanding balance", ErrInvalidInput, record.StudentID)
		}
		if err := summary.Buckets.Add(bucket); err != nil {
			return OverdueSummary{}, err
		}
		summary.TotalStudents++
		summary.TotalAmount = summary.TotalAmount.Add(record.Balance)
		if record.DaysOverdue > summary.MaxDaysOverdue {
			summary.MaxDaysOverdue = record.DaysOverdue
		}

		program := record.ProgramType
		if program == "" {
			program = UnknownProgram
		}
		acc, ok := programs[program]
		if !ok {
			acc = &programAcc{total: decimal.Zero}
			programs[program] = acc
		}
		acc.count++
		acc.total = acc.total.Add(record.Balance)
		acc.daysTotal += record.DaysOverdue
	}

	if summary.TotalStudents > 0 {
		summary.AverageAmount = summary.TotalAmount.Div(decimal.NewFromInt(int64(summary.TotalStudents))).Round(2)
	}

	for program, acc := range programs {
		summary.Programs = append(summary.Programs, ProgramOverdue{
			ProgramType:        program,
			Count:              acc.count,
			TotalOverdue:       acc.total,
			AverageDaysOverdue: roundTo(float64(acc.daysTotal)/float64(acc.count), 1),
		})
	}
	sort.Slice(summary.Programs, func(i, j int) bool {
		return summary.Programs[i].ProgramType < summary.Programs[j].ProgramType
	})

	return summary, nil
}

func roundTo(value float64, places int32) float64 {
	rounded, _ := decimal.NewFromFloat(value).Round(places).Float64()
	return rounded
}
