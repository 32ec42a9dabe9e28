package models

import (
	"math"
	"time"

	id "registrar/pkg/domain"
)

// CourseStatistics aggregates the records referencing one course. Enrolled counts
// every referencing record regardless of status.
type CourseStatistics struct {
	ID               id.CourseID `json:"id"`
	Name             string      `json:"name"`
	Code             string      `json:"code"`
	Capacity         int         `json:"maxStudents"`
	Enrolled         int         `json:"enrolledStudents"`
	Active           int         `json:"activeStudents"`
	Graduated        int         `json:"graduatedStudents"`
	Inactive         int         `json:"inactiveStudents"`
	Suspended        int         `json:"suspendedStudents"`
	AverageGPA       float64     `json:"averageGpa"`
	FirstEnrollment  *time.Time  `json:"firstEnrollment"`
	LatestEnrollment *time.Time  `json:"latestEnrollment"`
	UtilizationRate  float64     `json:"utilizationRate"`
}

// Finalize rounds the average gpa to two decimals and derives the utilization
// percentage (one decimal) from enrolled over capacity.
func (s *CourseStatistics) Finalize() {
	s.AverageGPA = math.Round(s.AverageGPA*100) / 100
	if s.Capacity > 0 {
		s.UtilizationRate = math.Round(float64(s.Enrolled)/float64(s.Capacity)*1000) / 10
	} else {
		s.UtilizationRate = 0
	}
}
