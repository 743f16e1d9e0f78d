package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-attendance-api/internal/docstore"
	"github.com/noah-isme/campus-attendance-api/internal/models"
	appErrors "github.com/noah-isme/campus-attendance-api/pkg/errors"
	applog "github.com/noah-isme/campus-attendance-api/pkg/logger"
)

type enrollmentCourseStore interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	AddStudent(ctx context.Context, courseID, studentID string) error
	RemoveStudent(ctx context.Context, courseID, studentID string) error
}

type enrollmentUserStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	AddCourse(ctx context.Context, userID, courseID string) error
	RemoveCourse(ctx context.Context, userID, courseID string) error
}

// Enrollment operation labels used in logs, metrics and repair jobs.
const (
	EnrollmentOpEnroll   = "enroll"
	EnrollmentOpUnenroll = "unenroll"
	EnrollmentOpRepair   = "repair"
)

// HalfAppliedError reports an enrollment change that reached the course roster
// but not the student's course list.
type HalfAppliedError struct {
	Op        string
	CourseID  string
	StudentID string
	Err       error
}

func (e *HalfAppliedError) Error() string {
	return fmt.Sprintf("%s of %s in %s reached the roster only: %v", e.Op, e.StudentID, e.CourseID, e.Err)
}

func (e *HalfAppliedError) Unwrap() error {
	return e.Err
}

// IsHalfApplied reports whether err left an enrollment edge with one side written.
func IsHalfApplied(err error) bool {
	var half *HalfAppliedError
	return errors.As(err, &half)
}

// EnrollmentService keeps Course.enrolledStudents and User.courses in step.
//
// The two sides are updated by separate set operations with no transaction. When
// the second update fails the first is not rolled back; because both operations
// are idempotent, repeating the call converges the edge.
type EnrollmentService struct {
	courses enrollmentCourseStore
	users   enrollmentUserStore
	metrics *MetricsService
	logger  *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService. metrics may be nil.
func NewEnrollmentService(courses enrollmentCourseStore, users enrollmentUserStore, metrics *MetricsService, logger *zap.Logger) *EnrollmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{courses: courses, users: users, metrics: metrics, logger: logger}
}

// Enroll adds the student to the course roster, then the course to the student's list.
func (s *EnrollmentService) Enroll(ctx context.Context, courseID, studentID string) (err error) {
	defer func() { s.metrics.ObserveEnrollment(EnrollmentOpEnroll, err) }()

	if err := s.requireCourse(ctx, courseID, studentID); err != nil {
		return err
	}
	if err := s.courses.AddStudent(ctx, courseID, studentID); err != nil {
		return appErrors.Persistence(err, "failed to add student to course")
	}
	if err := s.users.AddCourse(ctx, studentID, courseID); err != nil {
		applog.WithContext(ctx, s.logger).Warn("enrollment left half applied",
			zap.String("course_id", courseID),
			zap.String("student_id", studentID),
			zap.Error(err),
		)
		return appErrors.Persistence(&HalfAppliedError{Op: EnrollmentOpEnroll, CourseID: courseID, StudentID: studentID, Err: err}, "failed to add course to student")
	}

	applog.WithContext(ctx, s.logger).Info("student enrolled", zap.String("course_id", courseID), zap.String("student_id", studentID))
	return nil
}

// Unenroll removes the student from the course roster, then the course from the student's list.
func (s *EnrollmentService) Unenroll(ctx context.Context, courseID, studentID string) (err error) {
	defer func() { s.metrics.ObserveEnrollment(EnrollmentOpUnenroll, err) }()

	if err := s.requireCourse(ctx, courseID, studentID); err != nil {
		return err
	}
	if err := s.courses.RemoveStudent(ctx, courseID, studentID); err != nil {
		return appErrors.Persistence(err, "failed to remove student from course")
	}
	if err := s.users.RemoveCourse(ctx, studentID, courseID); err != nil {
		applog.WithContext(ctx, s.logger).Warn("unenrollment left half applied",
			zap.String("course_id", courseID),
			zap.String("student_id", studentID),
			zap.Error(err),
		)
		return appErrors.Persistence(&HalfAppliedError{Op: EnrollmentOpUnenroll, CourseID: courseID, StudentID: studentID, Err: err}, "failed to remove course from student")
	}

	applog.WithContext(ctx, s.logger).Info("student unenrolled", zap.String("course_id", courseID), zap.String("student_id", studentID))
	return nil
}

// Audit compares the course roster against each enrolled student's course list.
// Students named in studentIDs are also checked when they are not on the roster,
// which finds users still listing the course after a half-applied unenroll.
func (s *EnrollmentService) Audit(ctx context.Context, courseID string, studentIDs ...string) (*models.EnrollmentDrift, error) {
	course, err := s.loadCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	drift := &models.EnrollmentDrift{CourseID: courseID, MissingOnUser: []string{}, StaleOnUser: []string{}, UnknownUsers: []string{}}
	for _, studentID := range course.EnrolledStudents {
		user, err := s.users.FindByID(ctx, studentID)
		if err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				drift.UnknownUsers = append(drift.UnknownUsers, studentID)
				continue
			}
			return nil, appErrors.Persistence(err, "failed to load enrolled student")
		}
		if !user.HasCourse(courseID) {
			drift.MissingOnUser = append(drift.MissingOnUser, studentID)
		}
	}

	seen := make(map[string]struct{}, len(studentIDs))
	for _, studentID := range studentIDs {
		if _, dup := seen[studentID]; dup || studentID == "" {
			continue
		}
		seen[studentID] = struct{}{}
		// The instructor lists the course without being on the roster.
		if course.HasStudent(studentID) || studentID == course.InstructorID {
			continue
		}
		user, err := s.users.FindByID(ctx, studentID)
		if err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				continue
			}
			return nil, appErrors.Persistence(err, "failed to load student")
		}
		if user.HasCourse(courseID) {
			drift.StaleOnUser = append(drift.StaleOnUser, studentID)
		}
	}
	return drift, nil
}

// Repair brings every audited user side in line with the roster: the course is
// added where it is missing and removed where it is stale. Unknown users are
// reported, not touched. The returned drift is what was found before repairing.
func (s *EnrollmentService) Repair(ctx context.Context, courseID string, studentIDs ...string) (drift *models.EnrollmentDrift, err error) {
	defer func() { s.metrics.ObserveEnrollment(EnrollmentOpRepair, err) }()

	drift, err = s.Audit(ctx, courseID, studentIDs...)
	if err != nil {
		return nil, err
	}
	for _, studentID := range drift.MissingOnUser {
		if err := s.users.AddCourse(ctx, studentID, courseID); err != nil {
			return nil, appErrors.Persistence(err, "failed to repair enrollment")
		}
	}
	for _, studentID := range drift.StaleOnUser {
		if err := s.users.RemoveCourse(ctx, studentID, courseID); err != nil {
			return nil, appErrors.Persistence(err, "failed to repair unenrollment")
		}
	}
	if !drift.Consistent() {
		applog.WithContext(ctx, s.logger).Info("enrollment drift repaired",
			zap.String("course_id", courseID),
			zap.Strings("added", drift.MissingOnUser),
			zap.Strings("removed", drift.StaleOnUser),
			zap.Strings("unknown_users", drift.UnknownUsers),
		)
	}
	return drift, nil
}

func (s *EnrollmentService) requireCourse(ctx context.Context, courseID, studentID string) error {
	if studentID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "student id is required")
	}
	_, err := s.loadCourse(ctx, courseID)
	return err
}

func (s *EnrollmentService) loadCourse(ctx context.Context, courseID string) (*models.Course, error) {
	if courseID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "course id is required")
	}
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Persistence(err, "failed to load course")
	}
	return course, nil
}
