package rules

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ClearanceState is the displayable clearance position of a student in a class.
type ClearanceState string

const (
	ClearanceCleared            ClearanceState = "cleared"
	ClearanceEligiblePending    ClearanceState = "eligible-pending"
	ClearanceNotEligibleBalance ClearanceState = "not-eligible-balance"
	ClearanceNotEligibleOngoing ClearanceState = "not-eligible-ongoing"
)

// ClearanceInput carries the stored flags the evaluator reads.
type ClearanceInput struct {
	Balance      decimal.Decimal
	Cleared      bool
	ClassEndDate *time.Time
}

// EvaluateClearance computes the current clearance state. It never transitions
// anything; Clear and Unclear in the service layer consult CanClear/CanUnclear.
func EvaluateClearance(in ClearanceInput, now time.Time) (ClearanceState, error) {
	if in.Cleared {
		return ClearanceCleared, nil
	}
	if in.Balance.IsPositive() {
		return ClearanceNotEligibleBalance, nil
	}
	if in.ClassEndDate == nil {
		return "", fmt.Errorf("%w: class end date is missing", ErrNotDeterminable)
	}
	if beforeToday(*in.ClassEndDate, now) {
		return ClearanceEligiblePending, nil
	}
	return ClearanceNotEligibleOngoing, nil
}

// CanClear reports whether a clear action is permitted from state.
func CanClear(state ClearanceState) bool {
	return state == ClearanceEligiblePending
}

// CanUnclear reports whether an unclear action is permitted from state.
func CanUnclear(state ClearanceState) bool {
	return state == ClearanceCleared
}

// Reason gives a short human explanation of why a state does or does not allow clearing.
func (s ClearanceState) Reason() string {
	switch s {
	case ClearanceCleared:
		return "already cleared"
	case ClearanceEligiblePending:
		return "balance settled and class completed"
	case ClearanceNotEligibleBalance:
		return "outstanding balance"
	case ClearanceNotEligibleOngoing:
		return "class has not ended"
	default:
		return "unknown state"
	}
}

// ClearanceCounts folds many states into per-state counts.
type ClearanceCounts struct {
	Cleared            int `json:"cleared"`
	EligiblePending    int `json:"eligible_pending"`
	NotEligibleBalance int `json:"not_eligible_balance"`
	NotEligibleOngoing int `json:"not_eligible_ongoing"`
	Total              int `json:"total"`
}

// Add counts one state.
func (c *ClearanceCounts) Add(state ClearanceState) error {
	switch state {
	case ClearanceCleared:
		c.Cleared++
	case ClearanceEligiblePending:
		c.EligiblePending++
	case ClearanceNotEligibleBalance:
		c.NotEligibleBalance++
	case ClearanceNotEligibleOngoing:
		c.NotEligibleOngoing++
	default:
		return fmt.Errorf("%w: unknown clearance state %q", ErrInvalidInput, state)
	}
	c.Total++
	return nil
}
