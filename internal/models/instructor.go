package models

import "time"

// InstructorWorkloadRow aggregates one instructor's load over a period.
type InstructorWorkloadRow struct {
	InstructorID     string  `db:"instructor_id" json:"instructor_id"`
	FullName         string  `db:"full_name" json:"full_name"`
	Email            *string `db:"email" json:"email,omitempty"`
	TotalClasses     int     `db:"total_classes" json:"total_classes"`
	ActiveClasses    int     `db:"active_classes" json:"active_classes"`
	ScheduledClasses int     `db:"scheduled_classes" json:"scheduled_classes"`
	TotalStudents    int     `db:"total_students" json:"total_students"`
	TotalAssignments int     `db:"total_assignments" json:"total_assignments"`
	TotalMaterials   int     `db:"total_materials" json:"total_materials"`
}

// WorkloadFilter bounds the workload aggregation. Classes count when their start
// date falls within [From, To].
type WorkloadFilter struct {
	From         time.Time
	To           time.Time
	Search       string
	InstructorID string
	ActiveOnly   bool
}
