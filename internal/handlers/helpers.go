package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/anonto42/letterbox/backend/internal/apperr"
	"github.com/anonto42/letterbox/backend/internal/middleware"
	"github.com/dustin/go-humanize"
	"github.com/labstack/echo/v4"
)

// statusFor maps taxonomy errors to HTTP statuses.
var statusFor = map[error]int{
	apperr.ErrAlreadyLiked:      http.StatusConflict,
	apperr.ErrAlreadyDeleted:    http.StatusConflict,
	apperr.ErrNotDeleted:        http.StatusConflict,
	apperr.ErrHighlightConflict: http.StatusConflict,
	apperr.ErrEmailTaken:        http.StatusConflict,
	apperr.ErrNotLiked:          http.StatusNotFound,
	apperr.ErrTargetNotFound:    http.StatusNotFound,
	apperr.ErrUserNotFound:      http.StatusNotFound,
	apperr.ErrForbidden:         http.StatusForbidden,
}

// errorResponse turns a service error into an echo HTTP error with a
// {code, message} body.
func errorResponse(err error) error {
	var locked *apperr.HighlightLockedError
	if errors.As(err, &locked) {
		return echo.NewHTTPError(http.StatusLocked, echo.Map{
			"code":         apperr.Code(err),
			"message":      err.Error(),
			"remaining_ms": locked.RemainingMs(),
			"available":    humanize.Time(time.Now().Add(locked.Remaining)),
		})
	}

	for sentinel, status := range statusFor {
		if errors.Is(err, sentinel) {
			return echo.NewHTTPError(status, echo.Map{
				"code":    apperr.Code(err),
				"message": sentinel.Error(),
			})
		}
	}
	return echo.NewHTTPError(http.StatusInternalServerError, echo.Map{
		"code":    "INTERNAL",
		"message": "internal server error",
	}).SetInternal(err)
}

func currentUser(c echo.Context) (uint, error) {
	id, ok := middleware.CurrentUserID(c)
	if !ok {
		return 0, echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}
	return id, nil
}

func parseID(c echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "Invalid "+name)
	}
	return uint(id), nil
}

// pagination reads page/limit query params, defaulting to page 1 of 20.
func pagination(c echo.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.QueryParam("page"))
	limit, _ = strconv.Atoi(c.QueryParam("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 50 {
		limit = 20
	}
	return page, limit
}

// bindAndValidate binds the request body and runs the echo validator.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	return c.Validate(req)
}
