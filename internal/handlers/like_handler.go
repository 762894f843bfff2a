package handlers

import (
	"net/http"

	"github.com/anonto42/letterbox/backend/internal/models"
	"github.com/anonto42/letterbox/backend/internal/repositories"
	"github.com/anonto42/letterbox/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// contentKinds maps the URL segment of each likeable, deletable kind.
var contentKinds = map[string]models.TargetType{
	"letters":  models.TargetLetter,
	"replies":  models.TargetLetterReply,
	"threads":  models.TargetThread,
	"comments": models.TargetThreadComment,
}

// LikeHandler handles HTTP requests related to likes
type LikeHandler struct {
	interactions   *services.Interactions
	likeRepository repositories.LikeRepository
}

// NewLikeHandler creates a new LikeHandler
func NewLikeHandler(interactions *services.Interactions, likeRepo repositories.LikeRepository) *LikeHandler {
	return &LikeHandler{interactions: interactions, likeRepository: likeRepo}
}

// RegisterLikeRoutes registers like routes for every content kind
func (h *LikeHandler) RegisterLikeRoutes(g *echo.Group) {
	for segment, kind := range contentKinds {
		g.POST("/"+segment+"/:id/likes", h.Like(kind))
		g.DELETE("/"+segment+"/:id/likes", h.Unlike(kind))
		g.GET("/"+segment+"/:id/likes/status", h.Status(kind))
	}
}

// Like handles liking a piece of content
func (h *LikeHandler) Like(kind models.TargetType) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := currentUser(c)
		if err != nil {
			return err
		}
		id, err := parseID(c, "id")
		if err != nil {
			return err
		}

		res, err := h.interactions.Like(c.Request().Context(), userID, models.Target{Type: kind, ID: id})
		if err != nil {
			return errorResponse(err)
		}
		return c.JSON(http.StatusCreated, res)
	}
}

// Unlike handles removing a like
func (h *LikeHandler) Unlike(kind models.TargetType) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := currentUser(c)
		if err != nil {
			return err
		}
		id, err := parseID(c, "id")
		if err != nil {
			return err
		}

		res, err := h.interactions.Unlike(c.Request().Context(), userID, models.Target{Type: kind, ID: id})
		if err != nil {
			return errorResponse(err)
		}
		return c.JSON(http.StatusOK, res)
	}
}

// Status reports whether the authenticated user likes the content, with its
// current like count
func (h *LikeHandler) Status(kind models.TargetType) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := currentUser(c)
		if err != nil {
			return err
		}
		id, err := parseID(c, "id")
		if err != nil {
			return err
		}

		ctx := c.Request().Context()
		target := models.Target{Type: kind, ID: id}
		count, err := h.likeRepository.CountLikes(ctx, target)
		if err != nil {
			return errorResponse(err)
		}
		hasLiked, err := h.likeRepository.HasLiked(ctx, userID, target)
		if err != nil {
			return errorResponse(err)
		}

		return c.JSON(http.StatusOK, echo.Map{
			"target":     target,
			"has_liked":  hasLiked,
			"like_count": count,
		})
	}
}
