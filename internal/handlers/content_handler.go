package handlers

import (
	"context"
	"net/http"

	"github.com/anonto42/letterbox/backend/internal/models"
	"github.com/anonto42/letterbox/backend/internal/repositories"
	"github.com/anonto42/letterbox/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// ContentHandler serves letters, replies, threads and comments along with
// their delete/restore/purge lifecycle
type ContentHandler struct {
	interactions      *services.Interactions
	lifecycle         *services.Lifecycle
	contentRepository repositories.ContentRepository
}

// NewContentHandler creates a new ContentHandler
func NewContentHandler(interactions *services.Interactions, lifecycle *services.Lifecycle, contentRepo repositories.ContentRepository) *ContentHandler {
	return &ContentHandler{
		interactions:      interactions,
		lifecycle:         lifecycle,
		contentRepository: contentRepo,
	}
}

// RegisterContentRoutes registers content and lifecycle routes
func (h *ContentHandler) RegisterContentRoutes(g *echo.Group) {
	g.POST("/letters", h.CreateLetter)
	g.GET("/letters", h.ListLetters)
	g.GET("/letters/:id", h.GetLetter)
	g.POST("/letters/:id/replies", h.CreateReply)
	g.GET("/letters/:id/replies", h.ListReplies)
	g.POST("/letters/:id/review", h.MarkPendingReview)
	g.POST("/letters/:id/approve", h.Approve)

	g.POST("/threads", h.CreateThread)
	g.GET("/threads/:id", h.GetThread)
	g.POST("/threads/:id/comments", h.CreateComment)
	g.GET("/threads/:id/comments", h.ListComments)

	for segment, kind := range contentKinds {
		g.DELETE("/"+segment+"/:id", h.Delete(kind))
		g.POST("/"+segment+"/:id/restore", h.Restore(kind))
		g.DELETE("/"+segment+"/:id/purge", h.Purge(kind))
	}
}

// CreateLetter handles writing a new letter
func (h *ContentHandler) CreateLetter(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	var req models.CreateLetterRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	letter, err := h.interactions.CreateLetter(c.Request().Context(), userID, &req)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusCreated, letter)
}

// ListLetters returns published letters, newest first
func (h *ContentHandler) ListLetters(c echo.Context) error {
	page, limit := pagination(c)
	letters, err := h.contentRepository.ListLetters(c.Request().Context(), page, limit)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"letters": letters,
		"meta":    echo.Map{"currentPage": page, "itemsPerPage": limit},
	})
}

func (h *ContentHandler) GetLetter(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	letter, err := h.contentRepository.GetLetter(c.Request().Context(), id)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, letter)
}

// CreateReply handles replying to a letter
func (h *ContentHandler) CreateReply(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	letterID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req models.CreateReplyRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	reply, err := h.interactions.Reply(c.Request().Context(), userID, letterID, &req)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusCreated, reply)
}

func (h *ContentHandler) ListReplies(c echo.Context) error {
	letterID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	replies, err := h.contentRepository.ListReplies(c.Request().Context(), letterID)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"replies": replies})
}

// CreateThread handles opening a thread
func (h *ContentHandler) CreateThread(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	var req models.CreateThreadRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	thread, err := h.interactions.CreateThread(c.Request().Context(), userID, &req)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusCreated, thread)
}

func (h *ContentHandler) GetThread(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	thread, err := h.contentRepository.GetThread(c.Request().Context(), id)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, thread)
}

// CreateComment handles commenting on a thread
func (h *ContentHandler) CreateComment(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	threadID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req models.CreateCommentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	comment, err := h.interactions.Comment(c.Request().Context(), userID, threadID, &req)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusCreated, comment)
}

func (h *ContentHandler) ListComments(c echo.Context) error {
	threadID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	comments, err := h.contentRepository.ListComments(c.Request().Context(), threadID)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"comments": comments})
}

// Delete soft-deletes content and drops the notifications pointing at it
func (h *ContentHandler) Delete(kind models.TargetType) echo.HandlerFunc {
	return h.lifecycleAction(kind, h.lifecycle.Delete)
}

// Restore brings soft-deleted content back
func (h *ContentHandler) Restore(kind models.TargetType) echo.HandlerFunc {
	return h.lifecycleAction(kind, h.lifecycle.Restore)
}

// Purge removes soft-deleted content for good
func (h *ContentHandler) Purge(kind models.TargetType) echo.HandlerFunc {
	return h.lifecycleAction(kind, h.lifecycle.Purge)
}

func (h *ContentHandler) lifecycleAction(kind models.TargetType, action func(ctx context.Context, actorID uint, target models.Target) error) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := currentUser(c)
		if err != nil {
			return err
		}
		id, err := parseID(c, "id")
		if err != nil {
			return err
		}
		if err := action(c.Request().Context(), userID, models.Target{Type: kind, ID: id}); err != nil {
			return errorResponse(err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

// MarkPendingReview pulls a letter back for moderation
func (h *ContentHandler) MarkPendingReview(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.lifecycle.MarkPendingReview(c.Request().Context(), userID, id); err != nil {
		return errorResponse(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Approve publishes a letter pending review
func (h *ContentHandler) Approve(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.lifecycle.Approve(c.Request().Context(), userID, id); err != nil {
		return errorResponse(err)
	}
	return c.NoContent(http.StatusNoContent)
}
