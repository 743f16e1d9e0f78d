package service

import (
	"context"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-attendance-api/internal/models"
	appErrors "github.com/noah-isme/campus-attendance-api/pkg/errors"
)

type attendanceRepository interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.AttendanceRecord, error)
	ListByCourseAndStudent(ctx context.Context, courseID, studentID string) ([]models.AttendanceRecord, error)
	Save(ctx context.Context, record *models.AttendanceRecord) error
}

// MarkAttendanceRequest records one student's status for a day. Date defaults to now.
type MarkAttendanceRequest struct {
	CourseID  string                  `json:"courseId" validate:"required"`
	StudentID string                  `json:"studentId" validate:"required"`
	Status    models.AttendanceStatus `json:"status" validate:"required,oneof=PRESENT ABSENT LATE"`
	Date      *time.Time              `json:"date,omitempty"`
}

// AttendanceServiceOption configures the service.
type AttendanceServiceOption func(*AttendanceService)

// WithAttendanceClock overrides the clock used when a request carries no date.
func WithAttendanceClock(now func() time.Time) AttendanceServiceOption {
	return func(s *AttendanceService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithAttendanceLocation sets the zone whose calendar days bound a ledger entry.
func WithAttendanceLocation(loc *time.Location) AttendanceServiceOption {
	return func(s *AttendanceService) {
		if loc != nil {
			s.location = loc
		}
	}
}

// AttendanceService is the attendance ledger: one record per course, student and calendar day.
type AttendanceService struct {
	repo      attendanceRepository
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string
	location  *time.Location
}

// NewAttendanceService constructs the attendance service.
func NewAttendanceService(repo attendanceRepository, validate *validator.Validate, logger *zap.Logger, opts ...AttendanceServiceOption) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &AttendanceService{
		repo:      repo,
		validator: validate,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
		location:  time.Local,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// MarkAttendance upserts the record for the request's calendar day. An existing
// record for that day keeps its ID and has status and date overwritten.
//
// The lookup and the write are separate store calls, so two concurrent marks for
// the same new day may both insert.
func (s *AttendanceService) MarkAttendance(ctx context.Context, req MarkAttendanceRequest) (*models.AttendanceRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	date := s.now()
	if req.Date != nil && !req.Date.IsZero() {
		date = *req.Date
	}

	existing, err := s.repo.ListByCourseAndStudent(ctx, req.CourseID, req.StudentID)
	if err != nil {
		return nil, appErrors.Persistence(err, "failed to load attendance")
	}

	record := &models.AttendanceRecord{
		ID:        s.newID(),
		CourseID:  req.CourseID,
		StudentID: req.StudentID,
		Date:      date,
		Status:    req.Status,
	}
	updated := false
	for _, candidate := range existing {
		if s.sameDay(candidate.Date, date) {
			record.ID = candidate.ID
			updated = true
			break
		}
	}

	if err := s.repo.Save(ctx, record); err != nil {
		return nil, appErrors.Persistence(err, "failed to mark attendance")
	}

	s.logger.Info("attendance marked",
		zap.String("attendance_id", record.ID),
		zap.String("course_id", record.CourseID),
		zap.String("student_id", record.StudentID),
		zap.String("status", string(record.Status)),
		zap.Bool("updated", updated),
	)
	return record, nil
}

// GetAttendanceForCourse returns the course ledger, newest first.
func (s *AttendanceService) GetAttendanceForCourse(ctx context.Context, courseID string) ([]models.AttendanceRecord, error) {
	if courseID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "course id is required")
	}
	records, err := s.repo.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Persistence(err, "failed to load course attendance")
	}
	sortNewestFirst(records)
	return records, nil
}

// GetStudentAttendance returns one student's records in a course, newest first.
func (s *AttendanceService) GetStudentAttendance(ctx context.Context, studentID, courseID string) ([]models.AttendanceRecord, error) {
	if studentID == "" || courseID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student id and course id are required")
	}
	records, err := s.repo.ListByCourseAndStudent(ctx, courseID, studentID)
	if err != nil {
		return nil, appErrors.Persistence(err, "failed to load student attendance")
	}
	sortNewestFirst(records)
	return records, nil
}

func (s *AttendanceService) sameDay(a, b time.Time) bool {
	ay, am, ad := a.In(s.location).Date()
	by, bm, bd := b.In(s.location).Date()
	return ay == by && am == bm && ad == bd
}

func sortNewestFirst(records []models.AttendanceRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Date.After(records[j].Date)
	})
}
