package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-attendance-api/internal/models"
	"github.com/noah-isme/campus-attendance-api/internal/repository"
	appErrors "github.com/noah-isme/campus-attendance-api/pkg/errors"
)

func TestCreateProfileNormalisesInput(t *testing.T) {
	svc := NewUserService(repository.NewUserRepository(newFaultyStore()), stubIdentity{id: "u1"}, nil, nil)
	ctx := context.Background()

	user, err := svc.CreateProfile(ctx, CreateProfileRequest{ID: "u1", Email: " Ada@Campus.Test ", Name: "Ada", Role: "student"})
	require.NoError(t, err)
	assert.Equal(t, "ada@campus.test", user.Email)
	assert.Equal(t, models.RoleStudent, user.Role)
	assert.Equal(t, []string{}, user.Courses)

	me, err := svc.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Ada", me.Name)
}

func TestCreateProfileRejectsUnknownRole(t *testing.T) {
	svc := NewUserService(repository.NewUserRepository(newFaultyStore()), stubIdentity{id: "u1"}, nil, nil)

	_, err := svc.CreateProfile(context.Background(), CreateProfileRequest{ID: "u1", Email: "a@campus.test", Name: "Ada", Role: "ADMIN"})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
}

func TestGetUserNotFound(t *testing.T) {
	svc := NewUserService(repository.NewUserRepository(newFaultyStore()), stubIdentity{}, nil, nil)

	_, err := svc.GetUser(context.Background(), "ghost")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))

	_, err = svc.CurrentUser(context.Background())
	assert.True(t, appErrors.HasCode(err, appErrors.ErrUnauthenticated))
}

func TestCreateProfileDoesNotOverwriteEnrollments(t *testing.T) {
	store := newFaultyStore()
	courses := repository.NewCourseRepository(store)
	users := repository.NewUserRepository(store)
	svc := NewUserService(users, stubIdentity{id: "s1"}, nil, nil)
	enrollment := NewEnrollmentService(courses, users, NewMetricsService(), nil)
	ctx := context.Background()
	require.NoError(t, courses.Create(ctx, &models.Course{ID: "c1", Name: "Databases", Code: "CS301", InstructorID: "i1"}))

	_, err := svc.CreateProfile(ctx, CreateProfileRequest{Email: "s1@campus.test", Name: "Sam", Role: "STUDENT"})
	require.NoError(t, err)
	require.NoError(t, enrollment.Enroll(ctx, "c1", "s1"))

	_, err = svc.CreateProfile(ctx, CreateProfileRequest{Email: "s1@campus.test", Name: "Sam Again", Role: "STUDENT"})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrConflict))

	user, err := users.FindByID(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, user.Courses)
	assert.Equal(t, "Sam", user.Name)

	drift, err := enrollment.Audit(ctx, "c1", "s1")
	require.NoError(t, err)
	assert.True(t, drift.Consistent())
}

func TestCreateProfileExistenceCheckFailure(t *testing.T) {
	store := newFaultyStore()
	store.readErr = errors.New("unavailable")
	svc := NewUserService(repository.NewUserRepository(store), stubIdentity{id: "u1"}, nil, nil)

	_, err := svc.CreateProfile(context.Background(), CreateProfileRequest{Email: "a@campus.test", Name: "Ada", Role: "STUDENT"})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrPersistence))
	assert.Zero(t, store.writes)
}

func TestCreateProfileRequiresPrincipal(t *testing.T) {
	svc := NewUserService(repository.NewUserRepository(newFaultyStore()), stubIdentity{}, nil, nil)

	_, err := svc.CreateProfile(context.Background(), CreateProfileRequest{Email: "a@campus.test", Name: "Ada", Role: "STUDENT"})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrUnauthenticated))
}
