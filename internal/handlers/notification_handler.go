package handlers

import (
	"math"
	"net/http"
	"strconv"

	"github.com/anonto42/letterbox/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// NotificationHandler handles notification-related HTTP requests
type NotificationHandler struct {
	notificationRepository repositories.NotificationRepository
	unreadCounter          repositories.UnreadCounter
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(notifRepo repositories.NotificationRepository, counter repositories.UnreadCounter) *NotificationHandler {
	return &NotificationHandler{
		notificationRepository: notifRepo,
		unreadCounter:          counter,
	}
}

// RegisterNotificationRoutes registers notification routes
func (h *NotificationHandler) RegisterNotificationRoutes(g *echo.Group) {
	g.GET("/notifications", h.GetNotifications)
	g.GET("/notifications/new-count", h.GetNewCount)
	g.POST("/notifications/opened", h.MarkOpened)
	g.PUT("/notifications/:id/read", h.MarkAsRead)
	g.PUT("/notifications/read-all", h.MarkAllAsRead)
}

// GetNotifications returns paginated notifications, most recent activity first
func (h *NotificationHandler) GetNotifications(c echo.Context) error {
	currentUserID, err := currentUser(c)
	if err != nil {
		return err
	}
	page, limit := pagination(c)

	notifications, total, err := h.notificationRepository.GetByRecipientID(c.Request().Context(), currentUserID, page, limit)
	if err != nil {
		return errorResponse(err)
	}

	totalPages := int(math.Ceil(float64(total) / float64(limit)))

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"notifications": notifications,
		},
		"meta": echo.Map{
			"currentPage":     page,
			"totalPages":      totalPages,
			"totalItems":      total,
			"itemsPerPage":    limit,
			"hasNextPage":     page < totalPages,
			"hasPreviousPage": page > 1,
		},
	})
}

// GetNewCount returns how many notifications arrived since the list was last opened
func (h *NotificationHandler) GetNewCount(c echo.Context) error {
	currentUserID, err := currentUser(c)
	if err != nil {
		return err
	}

	count, err := h.unreadCounter.CountNew(c.Request().Context(), currentUserID)
	if err != nil {
		return errorResponse(err)
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"count": count}})
}

// MarkOpened resets the new-count badge
func (h *NotificationHandler) MarkOpened(c echo.Context) error {
	currentUserID, err := currentUser(c)
	if err != nil {
		return err
	}

	cleared, err := h.unreadCounter.MarkOpened(c.Request().Context(), currentUserID)
	if err != nil {
		return errorResponse(err)
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"cleared": cleared}})
}

// MarkAsRead marks a notification as read
func (h *NotificationHandler) MarkAsRead(c echo.Context) error {
	currentUserID, err := currentUser(c)
	if err != nil {
		return err
	}

	notifID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid notification ID")
	}

	if err := h.notificationRepository.MarkAsRead(c.Request().Context(), currentUserID, notifID); err != nil {
		return errorResponse(err)
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// MarkAllAsRead marks all notifications as read
func (h *NotificationHandler) MarkAllAsRead(c echo.Context) error {
	currentUserID, err := currentUser(c)
	if err != nil {
		return err
	}

	updated, err := h.notificationRepository.MarkAllAsRead(c.Request().Context(), currentUserID)
	if err != nil {
		return errorResponse(err)
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"updated": updated}})
}
