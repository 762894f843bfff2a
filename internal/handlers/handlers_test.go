package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anonto42/letterbox/backend/internal/middleware"
	"github.com/anonto42/letterbox/backend/internal/models"
	"github.com/anonto42/letterbox/backend/internal/repositories"
	"github.com/anonto42/letterbox/backend/internal/services"
	"github.com/anonto42/letterbox/backend/internal/storetest"
	"github.com/anonto42/letterbox/backend/internal/validators"
	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
)

const testSecret = "handler-secret"

type seqIDs struct{ n atomic.Int64 }

func (s *seqIDs) Next() int64 { return s.n.Add(1) }

type server struct {
	t     *testing.T
	e     *echo.Echo
	users *repositories.PostgresUserRepository
}

func newServer(t *testing.T) *server {
	t.Helper()

	db := storetest.Open(t)
	if err := repositories.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	users := repositories.NewPostgresUserRepository(db)
	content := repositories.NewPostgresContentRepository(db)
	likes := repositories.NewPostgresLikeRepository(db)
	notifications := repositories.NewPostgresNotificationRepository(db, &seqIDs{}, 3*time.Hour)
	highlights := repositories.NewPostgresHighlightRepository(db, 24*time.Hour)

	perms := services.NewPermissions(users)
	merger := services.NewNotificationMerger(notifications, nil, log)
	interactions := services.NewInteractions(likes, content, merger)
	lifecycle := services.NewLifecycle(content, merger, perms, log)

	e := echo.New()
	e.Validator = validators.New()
	NewAuthHandler(users, nil, testSecret).RegisterAuthRoutes(e.Group("/api/v1/auth"))

	api := e.Group("/api/v1", middleware.JWTAuthMiddleware(testSecret))
	NewUserHandler(users, perms).RegisterProfileRoutes(api)
	NewContentHandler(interactions, lifecycle, content).RegisterContentRoutes(api)
	NewLikeHandler(interactions, likes).RegisterLikeRoutes(api)
	NewNotificationHandler(notifications, repositories.NewPostgresUnreadCounter(db)).RegisterNotificationRoutes(api)
	NewHighlightHandler(services.NewHighlighter(highlights, perms)).RegisterHighlightRoutes(api)

	return &server{t: t, e: e, users: users}
}

func (s *server) user(name string, role models.Role) string {
	s.t.Helper()
	_, token := s.account(name, role)
	return token
}

func (s *server) account(name string, role models.Role) (uint, string) {
	s.t.Helper()
	u := &models.User{Name: name, Email: name + "@example.com", Role: role}
	if err := s.users.CreateUser(context.Background(), u); err != nil {
		s.t.Fatalf("create user: %v", err)
	}
	claims := &models.JwtCustomClaims{
		UserID: u.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		s.t.Fatalf("sign: %v", err)
	}
	return u.ID, token
}

func (s *server) do(method, path, token, body string) (*httptest.ResponseRecorder, map[string]any) {
	s.t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		_ = json.Unmarshal(rec.Body.Bytes(), &out)
	}
	return rec, out
}

func (s *server) letter(token string) uint {
	s.t.Helper()
	rec, body := s.do(http.MethodPost, "/api/v1/letters", token, `{"title":"hello","body":"dear reader"}`)
	if rec.Code != http.StatusCreated {
		s.t.Fatalf("create letter = %d: %s", rec.Code, rec.Body.String())
	}
	return uint(body["id"].(float64))
}

func TestLikeEndpoints(t *testing.T) {
	s := newServer(t)
	author := s.user("author", models.RoleUser)
	fan := s.user("fan", models.RoleUser)
	id := s.letter(author)
	path := fmt.Sprintf("/api/v1/letters/%d/likes", id)

	rec, body := s.do(http.MethodPost, path, fan, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("like = %d: %s", rec.Code, rec.Body.String())
	}
	if body["like_count"].(float64) != 1 {
		t.Fatalf("like_count = %v", body["like_count"])
	}

	rec, body = s.do(http.MethodPost, path, fan, "")
	if rec.Code != http.StatusConflict || body["code"] != "ALREADY_LIKED" {
		t.Fatalf("second like = %d %v", rec.Code, body)
	}

	rec, body = s.do(http.MethodGet, path+"/status", fan, "")
	if rec.Code != http.StatusOK || body["has_liked"] != true {
		t.Fatalf("status = %d %v", rec.Code, body)
	}

	if rec, _ = s.do(http.MethodDelete, path, fan, ""); rec.Code != http.StatusOK {
		t.Fatalf("unlike = %d", rec.Code)
	}
	rec, body = s.do(http.MethodDelete, path, fan, "")
	if rec.Code != http.StatusNotFound || body["code"] != "NOT_LIKED" {
		t.Fatalf("second unlike = %d %v", rec.Code, body)
	}

	rec, body = s.do(http.MethodPost, "/api/v1/letters/9999/likes", fan, "")
	if rec.Code != http.StatusNotFound || body["code"] != "TARGET_NOT_FOUND" {
		t.Fatalf("like missing = %d %v", rec.Code, body)
	}
}

func TestRequiresAuthentication(t *testing.T) {
	s := newServer(t)
	rec, _ := s.do(http.MethodGet, "/api/v1/notifications", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestValidationFailure(t *testing.T) {
	s := newServer(t)
	author := s.user("author", models.RoleUser)

	rec, body := s.do(http.MethodPost, "/api/v1/letters", author, `{"title":""}`)
	if rec.Code != http.StatusBadRequest || body["code"] != "VALIDATION_FAILED" {
		t.Fatalf("status = %d %v", rec.Code, body)
	}
}

func TestNotificationFlow(t *testing.T) {
	s := newServer(t)
	author := s.user("author", models.RoleUser)
	id := s.letter(author)
	for i := 0; i < 3; i++ {
		fan := s.user(fmt.Sprintf("fan%d", i), models.RoleUser)
		if rec, _ := s.do(http.MethodPost, fmt.Sprintf("/api/v1/letters/%d/likes", id), fan, ""); rec.Code != http.StatusCreated {
			t.Fatalf("like = %d", rec.Code)
		}
	}

	rec, body := s.do(http.MethodGet, "/api/v1/notifications/new-count", author, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("new-count = %d", rec.Code)
	}
	if got := body["data"].(map[string]any)["count"].(float64); got != 1 {
		t.Fatalf("new count = %v, want 1", got)
	}

	rec, body = s.do(http.MethodGet, "/api/v1/notifications", author, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list = %d", rec.Code)
	}
	list := body["data"].(map[string]any)["notifications"].([]any)
	if len(list) != 1 {
		t.Fatalf("notifications = %d, want 1", len(list))
	}
	n := list[0].(map[string]any)
	if n["actor_count"].(float64) != 3 {
		t.Fatalf("actor_count = %v", n["actor_count"])
	}

	if rec, _ = s.do(http.MethodPost, "/api/v1/notifications/opened", author, ""); rec.Code != http.StatusOK {
		t.Fatalf("opened = %d", rec.Code)
	}
	_, body = s.do(http.MethodGet, "/api/v1/notifications/new-count", author, "")
	if got := body["data"].(map[string]any)["count"].(float64); got != 0 {
		t.Fatalf("new count after open = %v", got)
	}

	rec, _ = s.do(http.MethodPut, fmt.Sprintf("/api/v1/notifications/%s/read", n["id"]), author, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("read = %d: %s", rec.Code, rec.Body.String())
	}
	rec, _ = s.do(http.MethodPut, "/api/v1/notifications/424242/read", author, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("read missing = %d", rec.Code)
	}
}

func TestDeletePermissions(t *testing.T) {
	s := newServer(t)
	author := s.user("author", models.RoleUser)
	stranger := s.user("stranger", models.RoleUser)
	mod := s.user("mod", models.RoleModerator)
	id := s.letter(author)
	path := fmt.Sprintf("/api/v1/letters/%d", id)

	rec, body := s.do(http.MethodDelete, path, stranger, "")
	if rec.Code != http.StatusForbidden || body["code"] != "FORBIDDEN" {
		t.Fatalf("stranger delete = %d %v", rec.Code, body)
	}
	if rec, _ = s.do(http.MethodDelete, path, mod, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("moderator delete = %d", rec.Code)
	}
	rec, body = s.do(http.MethodDelete, path, author, "")
	if rec.Code != http.StatusConflict || body["code"] != "ALREADY_DELETED" {
		t.Fatalf("second delete = %d %v", rec.Code, body)
	}
	if rec, _ = s.do(http.MethodPost, path+"/restore", mod, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("restore = %d", rec.Code)
	}
	rec, body = s.do(http.MethodDelete, path+"/purge", mod, "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("moderator purge = %d %v", rec.Code, body)
	}
}

func TestHighlightLocked(t *testing.T) {
	s := newServer(t)
	author := s.user("author", models.RoleUser)
	other := s.user("other", models.RoleUser)
	first := s.letter(author)
	second := s.letter(other)

	rec, _ := s.do(http.MethodPut, "/api/v1/highlight", author, fmt.Sprintf(`{"letter_id":%d}`, first))
	if rec.Code != http.StatusOK {
		t.Fatalf("set = %d: %s", rec.Code, rec.Body.String())
	}

	rec, body := s.do(http.MethodPut, "/api/v1/highlight", other, fmt.Sprintf(`{"letter_id":%d}`, second))
	if rec.Code != http.StatusLocked {
		t.Fatalf("locked set = %d", rec.Code)
	}
	if body["code"] != "HIGHLIGHT_LOCKED" || body["remaining_ms"].(float64) <= 0 || body["available"] == "" {
		t.Fatalf("locked body = %v", body)
	}

	rec, body = s.do(http.MethodGet, "/api/v1/highlight", other, "")
	if rec.Code != http.StatusOK || body["letter_id"].(float64) != float64(first) {
		t.Fatalf("get = %d %v", rec.Code, body)
	}
}

func TestSignupAndSignIn(t *testing.T) {
	s := newServer(t)

	rec, body := s.do(http.MethodPost, "/api/v1/auth/signup", "", `{"name":"Ada","email":"ada@example.com","password":"correct horse"}`)
	if rec.Code != http.StatusCreated || body["token"] == "" {
		t.Fatalf("signup = %d %v", rec.Code, body)
	}
	rec, body = s.do(http.MethodPost, "/api/v1/auth/signup", "", `{"name":"Ada","email":"ada@example.com","password":"correct horse"}`)
	if rec.Code != http.StatusConflict || body["code"] != "EMAIL_TAKEN" {
		t.Fatalf("duplicate signup = %d %v", rec.Code, body)
	}

	rec, _ = s.do(http.MethodPost, "/api/v1/auth/signin", "", `{"email":"ada@example.com","password":"wrong password"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad signin = %d", rec.Code)
	}
	rec, body = s.do(http.MethodPost, "/api/v1/auth/signin", "", `{"email":"ada@example.com","password":"correct horse"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("signin = %d", rec.Code)
	}

	token := body["token"].(string)
	rec, body = s.do(http.MethodGet, "/api/v1/profile", token, "")
	if rec.Code != http.StatusOK || body["email"] != "ada@example.com" {
		t.Fatalf("profile = %d %v", rec.Code, body)
	}
	if _, ok := body["Password"]; ok {
		t.Fatal("password hash leaked")
	}
}

func TestUpdateRoleAdminOnly(t *testing.T) {
	s := newServer(t)
	admin := s.user("admin", models.RoleAdmin)
	mod := s.user("mod", models.RoleModerator)
	targetID, _ := s.account("target", models.RoleUser)
	path := fmt.Sprintf("/api/v1/users/%d/role", targetID)

	rec, _ := s.do(http.MethodPut, path, mod, `{"role":"moderator"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("moderator promote = %d", rec.Code)
	}
	rec, _ = s.do(http.MethodPut, path, admin, `{"role":"moderator"}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("admin promote = %d", rec.Code)
	}
	rec, _ = s.do(http.MethodPut, path, admin, `{"role":"root"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid role = %d", rec.Code)
	}
}
