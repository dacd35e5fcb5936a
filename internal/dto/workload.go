package dto

import (
	"time"

	"github.com/noah-isme/sma-backoffice-api/internal/models"
	"github.com/noah-isme/sma-backoffice-api/internal/rules"
)

// InstructorWorkload is one scored instructor.
type InstructorWorkload struct {
	models.InstructorWorkloadRow
	rules.WorkloadAssessment
}

// WorkloadReport is the instructor workload report for a period.
type WorkloadReport struct {
	From        time.Time            `json:"from"`
	To          time.Time            `json:"to"`
	Tiers       rules.TierCounts     `json:"tiers"`
	Instructors []InstructorWorkload `json:"instructors"`
}
