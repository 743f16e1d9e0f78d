package models

import "time"

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "PRESENT"
	AttendanceStatusAbsent  AttendanceStatus = "ABSENT"
	AttendanceStatusLate    AttendanceStatus = "LATE"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusAbsent, AttendanceStatusLate:
		return true
	default:
		return false
	}
}

// AttendanceRecord is one ledger entry. At most one exists per course, student and calendar day.
type AttendanceRecord struct {
	ID        string           `json:"id" bson:"_id"`
	CourseID  string           `json:"courseId" bson:"courseId"`
	StudentID string           `json:"studentId" bson:"studentId"`
	Date      time.Time        `json:"date" bson:"date"`
	Status    AttendanceStatus `json:"status" bson:"status"`
}

// AttendanceSummary is derived from a set of records; late counts as half credit.
type AttendanceSummary struct {
	Present           int     `json:"present"`
	Absent            int     `json:"absent"`
	Late              int     `json:"late"`
	Total             int     `json:"total"`
	PresentPercentage float64 `json:"presentPercentage"`
}

// StudentAttendanceSummary pairs a student with their summary inside a course.
type StudentAttendanceSummary struct {
	StudentID string            `json:"studentId"`
	Summary   AttendanceSummary `json:"summary"`
}

// CourseAttendanceSummary aggregates the ledger of one course.
type CourseAttendanceSummary struct {
	CourseID string                     `json:"courseId"`
	Overall  AttendanceSummary          `json:"overall"`
	Students []StudentAttendanceSummary `json:"students"`
}
