package rules

import "fmt"

// WorkloadTier buckets an instructor's workload score.
type WorkloadTier string

const (
	TierOverloaded  WorkloadTier = "Overloaded"
	TierBalanced    WorkloadTier = "Balanced"
	TierUnderloaded WorkloadTier = "Underloaded"
)

// Scoring constants. They are heuristic and changing any of them changes reported tiers.
const (
	PointsPerClass    = 10.0
	PointsPerStudent  = 0.5
	OverloadedAbove   = 30.0
	BalancedFromScore = 15.0
)

// WorkloadScore is classes*10 + students*0.5.
func WorkloadScore(totalClasses, totalStudents int) float64 {
	return float64(totalClasses)*PointsPerClass + float64(totalStudents)*PointsPerStudent
}

// WorkloadTierFor maps a score to a tier; the balanced band is inclusive at both ends.
func WorkloadTierFor(score float64) WorkloadTier {
	switch {
	case score > OverloadedAbove:
		return TierOverloaded
	case score >= BalancedFromScore:
		return TierBalanced
	default:
		return TierUnderloaded
	}
}

// WorkloadCounts are the per-instructor aggregates over a period.
type WorkloadCounts struct {
	TotalClasses     int
	ActiveClasses    int
	ScheduledClasses int
	TotalStudents    int
	TotalAssignments int
	TotalMaterials   int
}

// WorkloadAssessment is the scored result for one instructor.
type WorkloadAssessment struct {
	Score float64      `json:"workload_score"`
	Tier  WorkloadTier `json:"workload_tier"`
}

// AssessWorkload validates the aggregates and scores them. Only classes and
// students feed the score; the other counts are validated and reported as-is.
func AssessWorkload(counts WorkloadCounts) (WorkloadAssessment, error) {
	fields := map[string]int{
		"total_classes":     counts.TotalClasses,
		"active_classes":    counts.ActiveClasses,
		"scheduled_classes": counts.ScheduledClasses,
		"total_students":    counts.TotalStudents,
		"total_assignments": counts.TotalAssignments,
		"total_materials":   counts.TotalMaterials,
	}
	for name, value := range fields {
		if value < 0 {
			return WorkloadAssessment{}, fmt.Errorf("%w: %s is negative (%d)", ErrInvalidInput, name, value)
		}
	}
	score := WorkloadScore(counts.TotalClasses, counts.TotalStudents)
	return WorkloadAssessment{Score: score, Tier: WorkloadTierFor(score)}, nil
}

// TierCounts counts instructors per tier.
type TierCounts struct {
	Overloaded  int `json:"overloaded"`
	Balanced    int `json:"balanced"`
	Underloaded int `json:"underloaded"`
}

// Add counts one tier. Unknown tiers are rejected.
func (t *TierCounts) Add(tier WorkloadTier) error {
	switch tier {
	case TierOverloaded:
		t.Overloaded++
	case TierBalanced:
		t.Balanced++
	case TierUnderloaded:
		t.Underloaded++
	default:
		return fmt.Errorf("%w: unknown workload tier %q", ErrInvalidInput, tier)
	}
	return nil
}
