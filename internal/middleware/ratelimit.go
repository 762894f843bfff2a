package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/anonto42/letterbox/backend/internal/ratelimit"
	"github.com/labstack/echo/v4"
)

// RateLimit gates mutating requests per authenticated user. Reads pass
// through untouched.
func RateLimit(limiter *ratelimit.Limiter, perMinute int) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Method == http.MethodGet || c.Request().Method == http.MethodHead {
				return next(c)
			}
			userID, ok := CurrentUserID(c)
			if !ok {
				return next(c)
			}

			now := time.Now()
			res := limiter.Allow("writes:"+strconv.FormatUint(uint64(userID), 10), perMinute, time.Minute, now)
			if res.Limit > 0 {
				h := c.Response().Header()
				h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
				h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
				h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
			}
			if !res.Allowed {
				retryAfter := int(res.ResetAt.Sub(now).Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfter))
				return echo.NewHTTPError(http.StatusTooManyRequests, map[string]any{
					"code":    "RATE_LIMITED",
					"message": "too many requests",
				})
			}
			return next(c)
		}
	}
}
