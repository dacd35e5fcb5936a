package rules

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// RevenueLine is one grouped revenue row (service x payment method).
type RevenueLine struct {
	Service       string
	Category      string
	PaymentMethod string
	Transactions  int
	Amount        decimal.Decimal
}

// RevenueBreakdown is a labelled share of revenue.
type RevenueBreakdown struct {
	Label        string          `json:"label"`
	Transactions int             `json:"transactions"`
	Amount       decimal.Decimal `json:"amount"`
}

// RevenueSummary aggregates revenue lines.
type RevenueSummary struct {
	TotalAmount       decimal.Decimal    `json:"total_amount"`
	TotalTransactions int                `json:"total_transactions"`
	AverageAmount     decimal.Decimal    `json:"average_amount"`
	ByService         []RevenueBreakdown `json:"by_service"`
	ByCategory        []RevenueBreakdown `json:"by_category"`
	ByPaymentMethod   []RevenueBreakdown `json:"by_payment_method"`
}

// SummarizeRevenue folds revenue lines into totals per service, category and
// payment method. Each breakdown is ordered by amount, largest first.
func SummarizeRevenue(lines []RevenueLine) (RevenueSummary, error) {
	summary := RevenueSummary{TotalAmount: decimal.Zero, AverageAmount: decimal.Zero}
	byService := newBreakdownAcc()
	byCategory := newBreakdownAcc()
	byMethod := newBreakdownAcc()

	for _, line := range lines {
		if line.Transactions < 0 || line.Amount.IsNegative() {
			return RevenueSummary{}, fmt.Errorf("%w: negative revenue for service %q", ErrInvalidInput, line.Service)
		}
		summary.TotalAmount = summary.TotalAmount.Add(line.Amount)
		summary.TotalTransactions += line.Transactions
		byService.add(line.Service, line)
		byCategory.add(line.Category, line)
		byMethod.add(line.PaymentMethod, line)
	}

	if summary.TotalTransactions > 0 {
		summary.AverageAmount = summary.TotalAmount.Div(decimal.NewFromInt(int64(summary.TotalTransactions))).Round(2)
	}
	summary.ByService = byService.sorted()
	summary.ByCategory = byCategory.sorted()
	summary.ByPaymentMethod = byMethod.sorted()
	return summary, nil
}

type breakdownAcc map[string]*RevenueBreakdown

func newBreakdownAcc() breakdownAcc {
	return make(breakdownAcc)
}

func (b breakdownAcc) add(label string, line RevenueLine) {
	if label == "" {
		label = "other"
	}
	entry, ok := b[label]
	if !ok {
		entry = &RevenueBreakdown{Label: label, Amount: decimal.Zero}
		b[label] = entry
	}
	entry.Transactions += line.Transactions
	entry.Amount = entry.Amount.Add(line.Amount)
}

func (b breakdownAcc) sorted() []RevenueBreakdown {
	out := make([]RevenueBreakdown, 0, len(b))
	for _, entry := range b {
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if cmp := out[i].Amount.Cmp(out[j].Amount); cmp != 0 {
			return cmp > 0
		}
		return out[i].Label < out[j].Label
	})
	return out
}
