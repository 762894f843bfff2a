package handlers

import (
	"net/http"

	"github.com/anonto42/letterbox/backend/internal/apperr"
	"github.com/anonto42/letterbox/backend/internal/models"
	"github.com/anonto42/letterbox/backend/internal/repositories"
	"github.com/anonto42/letterbox/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// UserHandler handles HTTP requests related to users
type UserHandler struct {
	userRepository repositories.UserRepository
	permissions    *services.Permissions
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(userRepo repositories.UserRepository, perms *services.Permissions) *UserHandler {
	return &UserHandler{userRepository: userRepo, permissions: perms}
}

// RegisterProfileRoutes registers user profile-related routes
func (h *UserHandler) RegisterProfileRoutes(g *echo.Group) {
	g.GET("/profile", h.GetProfile)
	g.GET("/users/:id", h.GetUser)
	g.PUT("/users/:id/role", h.UpdateRole)
}

// GetProfile retrieves the authenticated user's profile
func (h *UserHandler) GetProfile(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	user, err := h.userRepository.GetUserByID(c.Request().Context(), userID)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, user)
}

func (h *UserHandler) GetUser(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	user, err := h.userRepository.GetUserByID(c.Request().Context(), id)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, user.ToCompact())
}

// UpdateRole promotes or demotes a user. Admins only.
func (h *UserHandler) UpdateRole(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req models.UpdateRoleRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	ok, err := h.permissions.HasPermission(ctx, userID, services.ResourceUser, services.ActionManageRoles)
	if err != nil {
		return errorResponse(err)
	}
	if !ok {
		return errorResponse(apperr.ErrForbidden)
	}
	if err := h.userRepository.UpdateRole(ctx, id, req.Role); err != nil {
		return errorResponse(err)
	}
	return c.NoContent(http.StatusNoContent)
}
