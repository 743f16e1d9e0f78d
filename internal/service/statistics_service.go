package service

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-attendance-api/internal/models"
)

// lateWeight is the credit a LATE record earns towards the present percentage.
const lateWeight = 0.5

// Summarize counts statuses and derives the weighted present percentage.
func Summarize(records []models.AttendanceRecord) models.AttendanceSummary {
	var summary models.AttendanceSummary
	for _, record := range records {
		switch record.Status {
		case models.AttendanceStatusPresent:
			summary.Present++
		case models.AttendanceStatusAbsent:
			summary.Absent++
		case models.AttendanceStatusLate:
			summary.Late++
		}
	}
	summary.Total = summary.Present + summary.Absent + summary.Late
	if summary.Total > 0 {
		summary.PresentPercentage = (float64(summary.Present) + float64(summary.Late)*lateWeight) * 100 / float64(summary.Total)
	}
	return summary
}

type attendanceReader interface {
	GetAttendanceForCourse(ctx context.Context, courseID string) ([]models.AttendanceRecord, error)
	GetStudentAttendance(ctx context.Context, studentID, courseID string) ([]models.AttendanceRecord, error)
}

// StatisticsService derives summaries from the ledger.
type StatisticsService struct {
	ledger attendanceReader
	logger *zap.Logger
}

// NewStatisticsService constructs StatisticsService.
func NewStatisticsService(ledger attendanceReader, logger *zap.Logger) *StatisticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatisticsService{ledger: ledger, logger: logger}
}

// StudentSummary summarises one student's attendance in a course.
func (s *StatisticsService) StudentSummary(ctx context.Context, studentID, courseID string) (*models.AttendanceSummary, error) {
	records, err := s.ledger.GetStudentAttendance(ctx, studentID, courseID)
	if err != nil {
		return nil, err
	}
	summary := Summarize(records)
	return &summary, nil
}

// CourseSummary summarises the whole course and each student in it, ordered by student ID.
func (s *StatisticsService) CourseSummary(ctx context.Context, courseID string) (*models.CourseAttendanceSummary, error) {
	records, err := s.ledger.GetAttendanceForCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	byStudent := make(map[string][]models.AttendanceRecord)
	for _, record := range records {
		byStudent[record.StudentID] = append(byStudent[record.StudentID], record)
	}
	students := make([]models.StudentAttendanceSummary, 0, len(byStudent))
	for studentID, own := range byStudent {
		students = append(students, models.StudentAttendanceSummary{StudentID: studentID, Summary: Summarize(own)})
	}
	sort.Slice(students, func(i, j int) bool { return students[i].StudentID < students[j].StudentID })

	return &models.CourseAttendanceSummary{
		CourseID: courseID,
		Overall:  Summarize(records),
		Students: students,
	}, nil
}
