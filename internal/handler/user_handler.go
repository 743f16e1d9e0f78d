package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-attendance-api/internal/models"
	"github.com/noah-isme/campus-attendance-api/internal/service"
	"github.com/noah-isme/campus-attendance-api/internal/session"
	appErrors "github.com/noah-isme/campus-attendance-api/pkg/errors"
	"github.com/noah-isme/campus-attendance-api/pkg/response"
)

type userService interface {
	CreateProfile(ctx context.Context, req service.CreateProfileRequest) (*models.User, error)
	CurrentUser(ctx context.Context) (*models.User, error)
}

// UserHandler exposes the caller's profile.
type UserHandler struct {
	users userService
}

// NewUserHandler constructs UserHandler.
func NewUserHandler(users userService) *UserHandler {
	return &UserHandler{users: users}
}

// CreateMe godoc
// @Summary Create the caller's profile after registration
// @Tags Users
// @Accept json
// @Produce json
// @Param payload body service.CreateProfileRequest true "Profile payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /users/me [post]
func (h *UserHandler) CreateMe(c *gin.Context) {
	claims, ok := session.ClaimsFromContext(c.Request.Context())
	if !ok || claims.UserID() == "" {
		response.Error(c, appErrors.ErrUnauthenticated)
		return
	}
	var req service.CreateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}
	if req.Email == "" {
		req.Email = claims.Email
	}
	if req.Role == "" {
		req.Role = claims.Role
	}
	user, err := h.users.CreateProfile(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Created(c, user)
}

// Me godoc
// @Summary Get the caller's profile
// @Tags Users
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /users/me [get]
func (h *UserHandler) Me(c *gin.Context) {
	user, err := h.users.CurrentUser(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	response.OK(c, user)
}
