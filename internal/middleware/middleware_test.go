package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/anonto42/letterbox/backend/internal/models"
	"github.com/anonto42/letterbox/backend/internal/ratelimit"
	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
)

const secret = "test-secret"

func signed(t *testing.T, userID uint, key string) string {
	t.Helper()
	claims := &models.JwtCustomClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func serve(mw echo.MiddlewareFunc, method, header string) (*httptest.ResponseRecorder, uint) {
	e := echo.New()
	var seen uint
	e.Add(method, "/", func(c echo.Context) error {
		seen, _ = CurrentUserID(c)
		return c.NoContent(http.StatusNoContent)
	}, mw)

	req := httptest.NewRequest(method, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec, seen
}

func TestJWTAuthMiddleware(t *testing.T) {
	tests := []struct {
		name   string
		header string
		status int
		userID uint
	}{
		{"valid", "Bearer " + signed(t, 42, secret), http.StatusNoContent, 42},
		{"missing", "", http.StatusUnauthorized, 0},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, 0},
		{"bad signature", "Bearer " + signed(t, 42, "other"), http.StatusUnauthorized, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, seen := serve(JWTAuthMiddleware(secret), http.MethodGet, tt.header)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if seen != tt.userID {
				t.Fatalf("user id = %d, want %d", seen, tt.userID)
			}
		})
	}
}

type fakeVerifier struct{}

func (fakeVerifier) VerifyIDToken(_ context.Context, idToken string) (*auth.Token, error) {
	if idToken != "good" {
		return nil, errors.New("expired")
	}
	return &auth.Token{UID: "fb-1"}, nil
}

type fakeUsers struct{}

func (fakeUsers) GetUserByFirebaseUID(_ context.Context, uid string) (*models.User, error) {
	if uid != "fb-1" {
		return nil, errors.New("not found")
	}
	return &models.User{ID: 9}, nil
}

func TestFirebaseAuthMiddleware(t *testing.T) {
	rec, seen := serve(FirebaseAuthMiddleware(fakeVerifier{}, fakeUsers{}), http.MethodGet, "Bearer good")
	if rec.Code != http.StatusNoContent || seen != 9 {
		t.Fatalf("status=%d user=%d", rec.Code, seen)
	}
	rec, _ = serve(FirebaseAuthMiddleware(fakeVerifier{}, fakeUsers{}), http.MethodGet, "Bearer bad")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestRateLimitOnlyGatesWrites(t *testing.T) {
	e := echo.New()
	limiter := ratelimit.NewLimiter()
	auth := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(userIDKey, uint(1))
			return next(c)
		}
	}
	ok := func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }
	e.POST("/", ok, auth, RateLimit(limiter, 1))
	e.GET("/", ok, auth, RateLimit(limiter, 1))

	do := func(method string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(method, "/", nil))
		return rec
	}

	if rec := do(http.MethodPost); rec.Code != http.StatusNoContent {
		t.Fatalf("first write = %d", rec.Code)
	}
	rec := do(http.MethodPost)
	if rec.Code != http.StatusTooManyRequests || rec.Header().Get("Retry-After") == "" {
		t.Fatalf("second write = %d, retry-after %q", rec.Code, rec.Header().Get("Retry-After"))
	}
	if rec := do(http.MethodGet); rec.Code != http.StatusNoContent {
		t.Fatalf("reads are not gated, got %d", rec.Code)
	}
}
