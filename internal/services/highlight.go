package services

import (
	"context"

	"github.com/anonto42/letterbox/backend/internal/models"
	"github.com/anonto42/letterbox/backend/internal/repositories"
)

// Highlighter sets and clears the highlighted letter. Moderators and admins
// skip the cooldown.
type Highlighter struct {
	repo  repositories.HighlightRepository
	perms *Permissions
}

func NewHighlighter(repo repositories.HighlightRepository, perms *Permissions) *Highlighter {
	return &Highlighter{repo: repo, perms: perms}
}

func (h *Highlighter) Get(ctx context.Context) (*models.Highlight, error) {
	return h.repo.Get(ctx)
}

func (h *Highlighter) Set(ctx context.Context, actorID, letterID uint) (*models.Highlight, error) {
	privileged, err := h.perms.HasPermission(ctx, actorID, ResourceHighlight, ActionOverrideLock)
	if err != nil {
		return nil, err
	}
	return h.repo.Set(ctx, letterID, actorID, privileged)
}

func (h *Highlighter) Clear(ctx context.Context, actorID uint) (*models.Highlight, error) {
	privileged, err := h.perms.HasPermission(ctx, actorID, ResourceHighlight, ActionOverrideLock)
	if err != nil {
		return nil, err
	}
	return h.repo.Clear(ctx, actorID, privileged)
}
