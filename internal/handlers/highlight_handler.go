package handlers

import (
	"net/http"

	"github.com/anonto42/letterbox/backend/internal/models"
	"github.com/anonto42/letterbox/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// HighlightHandler serves the single highlighted letter
type HighlightHandler struct {
	highlighter *services.Highlighter
}

func NewHighlightHandler(highlighter *services.Highlighter) *HighlightHandler {
	return &HighlightHandler{highlighter: highlighter}
}

func (h *HighlightHandler) RegisterHighlightRoutes(g *echo.Group) {
	g.GET("/highlight", h.Get)
	g.PUT("/highlight", h.Set)
	g.DELETE("/highlight", h.Clear)
}

func (h *HighlightHandler) Get(c echo.Context) error {
	hl, err := h.highlighter.Get(c.Request().Context())
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, hl)
}

// Set highlights a letter. Inside the cooldown this answers 423 with the time left.
func (h *HighlightHandler) Set(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	var req models.SetHighlightRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	hl, err := h.highlighter.Set(c.Request().Context(), userID, req.LetterID)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, hl)
}

func (h *HighlightHandler) Clear(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	hl, err := h.highlighter.Clear(c.Request().Context(), userID)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, hl)
}
