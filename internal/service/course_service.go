package service

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-attendance-api/internal/docstore"
	"github.com/noah-isme/campus-attendance-api/internal/models"
	appErrors "github.com/noah-isme/campus-attendance-api/pkg/errors"
)

type courseRepository interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	List(ctx context.Context, instructorID string) ([]models.Course, error)
	Create(ctx context.Context, course *models.Course) error
}

type courseOwnerStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	AddCourse(ctx context.Context, userID, courseID string) error
}

type identityAccessor interface {
	Require(ctx context.Context) (string, error)
}

// CreateCourseRequest is the payload for creating a course owned by the caller.
type CreateCourseRequest struct {
	Name     string `json:"name" validate:"required,max=200"`
	Code     string `json:"code" validate:"required,max=32"`
	Schedule string `json:"schedule" validate:"max=200"`
}

// CourseService manages the course catalogue.
type CourseService struct {
	courses   courseRepository
	users     courseOwnerStore
	identity  identityAccessor
	validator *validator.Validate
	logger    *zap.Logger
	newID     func() string
}

// NewCourseService constructs CourseService.
func NewCourseService(courses courseRepository, users courseOwnerStore, identity identityAccessor, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{courses: courses, users: users, identity: identity, validator: validate, logger: logger, newID: uuid.NewString}
}

// CreateCourse writes the course with an empty roster and then adds it to the
// instructor's course list. The second write is not rolled back on failure.
func (s *CourseService) CreateCourse(ctx context.Context, req CreateCourseRequest) (*models.Course, error) {
	instructorID, err := s.identity.Require(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	course := &models.Course{
		ID:               s.newID(),
		Name:             req.Name,
		Code:             req.Code,
		InstructorID:     instructorID,
		Schedule:         req.Schedule,
		EnrolledStudents: []string{},
	}
	if err := s.courses.Create(ctx, course); err != nil {
		return nil, appErrors.Persistence(err, "failed to create course")
	}
	if err := s.users.AddCourse(ctx, instructorID, course.ID); err != nil {
		s.logger.Warn("course created without instructor link",
			zap.String("course_id", course.ID),
			zap.String("instructor_id", instructorID),
			zap.Error(err),
		)
		return nil, appErrors.Persistence(err, "failed to link course to instructor")
	}

	s.logger.Info("course created", zap.String("course_id", course.ID), zap.String("instructor_id", instructorID))
	return course, nil
}

// GetCourse returns a single course.
func (s *CourseService) GetCourse(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Persistence(err, "failed to load course")
	}
	return course, nil
}

// ListCourses returns all courses, or one instructor's when instructorID is set.
func (s *CourseService) ListCourses(ctx context.Context, instructorID string) ([]models.Course, error) {
	courses, err := s.courses.List(ctx, instructorID)
	if err != nil {
		return nil, appErrors.Persistence(err, "failed to list courses")
	}
	return courses, nil
}

// ListEnrolledStudents resolves the roster to profiles, skipping IDs without one.
func (s *CourseService) ListEnrolledStudents(ctx context.Context, courseID string) ([]models.User, error) {
	course, err := s.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	students := make([]models.User, 0, len(course.EnrolledStudents))
	for _, id := range course.EnrolledStudents {
		user, err := s.users.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				s.logger.Debug("enrolled student has no profile", zap.String("course_id", courseID), zap.String("student_id", id))
				continue
			}
			return nil, appErrors.Persistence(err, "failed to load enrolled student")
		}
		students = append(students, *user)
	}
	return students, nil
}
