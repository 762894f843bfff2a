package handlers

import (
	"net/http"

	"github.com/anonto42/letterbox/backend/internal/models"
	"github.com/anonto42/letterbox/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// PushHandler registers and removes device tokens for push delivery
type PushHandler struct {
	subscriptions repositories.PushSubscriptionRepository
}

func NewPushHandler(subs repositories.PushSubscriptionRepository) *PushHandler {
	return &PushHandler{subscriptions: subs}
}

func (h *PushHandler) RegisterPushRoutes(g *echo.Group) {
	g.POST("/push/subscriptions", h.Register)
	g.DELETE("/push/subscriptions/:token", h.Remove)
}

// Register stores the caller's device token
func (h *PushHandler) Register(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	var req models.RegisterPushSubscriptionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	sub := &models.PushSubscription{UserID: userID, Token: req.Token, Platform: req.Platform}
	if err := h.subscriptions.Register(c.Request().Context(), sub); err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusCreated, sub)
}

// Remove unregisters one of the caller's device tokens
func (h *PushHandler) Remove(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	token := c.Param("token")
	if token == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid token")
	}

	if err := h.subscriptions.Remove(c.Request().Context(), userID, token); err != nil {
		return errorResponse(err)
	}
	return c.NoContent(http.StatusNoContent)
}
