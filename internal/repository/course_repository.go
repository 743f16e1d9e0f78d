package repository

import (
	"context"
	"fmt"

	"github.com/noah-isme/campus-attendance-api/internal/docstore"
	"github.com/noah-isme/campus-attendance-api/internal/models"
)

const (
	// CollectionCourses holds course documents keyed by course ID.
	CollectionCourses = "courses"

	fieldEnrolledStudents = "enrolledStudents"
)

// CourseRepository reads and mutates course documents.
type CourseRepository struct {
	store docstore.Store
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(store docstore.Store) *CourseRepository {
	return &CourseRepository{store: store}
}

// FindByID returns the course or docstore.ErrNotFound.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	doc, err := r.store.Read(ctx, CollectionCourses, id)
	if err != nil {
		return nil, err
	}
	var course models.Course
	if err := doc.Decode(&course); err != nil {
		return nil, err
	}
	if course.ID == "" {
		course.ID = doc.ID
	}
	if course.EnrolledStudents == nil {
		course.EnrolledStudents = []string{}
	}
	return &course, nil
}

// List returns every course, optionally narrowed to one instructor.
func (r *CourseRepository) List(ctx context.Context, instructorID string) ([]models.Course, error) {
	var filters []docstore.Filter
	if instructorID != "" {
		filters = append(filters, docstore.Eq("instructorId", instructorID))
	}
	docs, err := r.store.Query(ctx, CollectionCourses, filters...)
	if err != nil {
		return nil, err
	}
	courses := make([]models.Course, 0, len(docs))
	for _, doc := range docs {
		var course models.Course
		if err := doc.Decode(&course); err != nil {
			return nil, err
		}
		if course.ID == "" {
			course.ID = doc.ID
		}
		if course.EnrolledStudents == nil {
			course.EnrolledStudents = []string{}
		}
		courses = append(courses, course)
	}
	return courses, nil
}

// Create writes a new course document. A nil student set is stored as empty.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course == nil || course.ID == "" {
		return fmt.Errorf("course requires an id")
	}
	if course.EnrolledStudents == nil {
		course.EnrolledStudents = []string{}
	}
	return r.store.Write(ctx, CollectionCourses, course.ID, course)
}

// AddStudent set-unions the student into the course roster.
func (r *CourseRepository) AddStudent(ctx context.Context, courseID, studentID string) error {
	return r.store.UpdateField(ctx, CollectionCourses, courseID, fieldEnrolledStudents, docstore.ArrayUnion, studentID)
}

// RemoveStudent set-removes the student from the course roster.
func (r *CourseRepository) RemoveStudent(ctx context.Context, courseID, studentID string) error {
	return r.store.UpdateField(ctx, CollectionCourses, courseID, fieldEnrolledStudents, docstore.ArrayRemove, studentID)
}
