package repository

import (
	"context"
	"fmt"

	"github.com/noah-isme/campus-attendance-api/internal/docstore"
	"github.com/noah-isme/campus-attendance-api/internal/models"
)

const (
	// CollectionUsers holds profile documents keyed by the identity provider's user ID.
	CollectionUsers = "users"

	fieldCourses = "courses"
)

// UserRepository reads and mutates user profile documents.
type UserRepository struct {
	store docstore.Store
}

// NewUserRepository constructs the repository.
func NewUserRepository(store docstore.Store) *UserRepository {
	return &UserRepository{store: store}
}

// FindByID returns the profile or docstore.ErrNotFound.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	doc, err := r.store.Read(ctx, CollectionUsers, id)
	if err != nil {
		return nil, err
	}
	var user models.User
	if err := doc.Decode(&user); err != nil {
		return nil, err
	}
	if user.ID == "" {
		user.ID = doc.ID
	}
	if user.Courses == nil {
		user.Courses = []string{}
	}
	return &user, nil
}

// Create writes the profile document, overwriting any previous one.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user == nil || user.ID == "" {
		return fmt.Errorf("user requires an id")
	}
	if user.Courses == nil {
		user.Courses = []string{}
	}
	return r.store.Write(ctx, CollectionUsers, user.ID, user)
}

// AddCourse set-unions the course into the user's course list.
func (r *UserRepository) AddCourse(ctx context.Context, userID, courseID string) error {
	return r.store.UpdateField(ctx, CollectionUsers, userID, fieldCourses, docstore.ArrayUnion, courseID)
}

// RemoveCourse set-removes the course from the user's course list.
func (r *UserRepository) RemoveCourse(ctx context.Context, userID, courseID string) error {
	return r.store.UpdateField(ctx, CollectionUsers, userID, fieldCourses, docstore.ArrayRemove, courseID)
}
