package middleware

import "github.com/labstack/echo/v4"

const userIDKey = "userID"

// CurrentUserID returns the authenticated user id stored by the auth middleware.
func CurrentUserID(c echo.Context) (uint, bool) {
	id, ok := c.Get(userIDKey).(uint)
	return id, ok && id != 0
}
