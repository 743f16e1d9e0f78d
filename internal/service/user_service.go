package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-attendance-api/internal/docstore"
	"github.com/noah-isme/campus-attendance-api/internal/models"
	appErrors "github.com/noah-isme/campus-attendance-api/pkg/errors"
)

type userRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
}

// CreateProfileRequest carries the profile captured at registration.
type CreateProfileRequest struct {
	ID    string          `json:"-" validate:"required"`
	Email string          `json:"email" validate:"required,email"`
	Name  string          `json:"name" validate:"required,max=200"`
	Role  models.UserRole `json:"role" validate:"required,oneof=STUDENT INSTRUCTOR"`
}

// UserService manages user profile documents.
type UserService struct {
	repo      userRepository
	identity  identityAccessor
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService constructs UserService.
func NewUserService(repo userRepository, identity identityAccessor, validate *validator.Validate, logger *zap.Logger) *UserService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{repo: repo, identity: identity, validator: validate, logger: logger}
}

// CreateProfile writes the caller's profile with an empty course list. It is
// create-only: an existing profile is never overwritten, because its course list
// mirrors course rosters. The existence check and the write are separate calls.
func (s *UserService) CreateProfile(ctx context.Context, req CreateProfileRequest) (*models.User, error) {
	id, err := s.identity.Require(ctx)
	if err != nil {
		return nil, err
	}
	req.ID = id
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Role = models.UserRole(strings.ToUpper(string(req.Role)))
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid profile payload")
	}
	if _, err := s.repo.FindByID(ctx, req.ID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "profile already exists")
	} else if !errors.Is(err, docstore.ErrNotFound) {
		return nil, appErrors.Persistence(err, "failed to check existing profile")
	}

	user := &models.User{ID: req.ID, Email: req.Email, Name: req.Name, Role: req.Role, Courses: []string{}}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, appErrors.Persistence(err, "failed to create profile")
	}
	s.logger.Info("profile created", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return user, nil
}

// GetUser returns a profile by ID.
func (s *UserService) GetUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Persistence(err, "failed to load user")
	}
	return user, nil
}

// CurrentUser returns the caller's profile.
func (s *UserService) CurrentUser(ctx context.Context) (*models.User, error) {
	id, err := s.identity.Require(ctx)
	if err != nil {
		return nil, err
	}
	return s.GetUser(ctx, id)
}
