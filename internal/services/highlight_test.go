package services

import (
	"errors"
	"testing"
	"time"

	"github.com/anonto42/letterbox/backend/internal/apperr"
	"github.com/anonto42/letterbox/backend/internal/models"
)

func TestHighlightLock(t *testing.T) {
	e := newEnv(t)
	alice, bob := e.user("alice", models.RoleUser), e.user("bob", models.RoleUser)
	mod := e.user("mod", models.RoleModerator)
	x, y := e.letter(alice), e.letter(bob)

	if _, err := e.highlighter.Set(e.ctx, alice, x.ID); err != nil {
		t.Fatalf("set X: %v", err)
	}

	e.clock.Advance(time.Hour)
	_, err := e.highlighter.Set(e.ctx, bob, y.ID)
	var locked *apperr.HighlightLockedError
	if !errors.As(err, &locked) {
		t.Fatalf("set Y by user: got %v, want HighlightLockedError", err)
	}
	if locked.RemainingMs() <= 0 || locked.Remaining != testLock-time.Hour {
		t.Fatalf("remaining = %s, want %s", locked.Remaining, testLock-time.Hour)
	}

	h, err := e.highlighter.Set(e.ctx, mod, y.ID)
	if err != nil {
		t.Fatalf("set Y by moderator: %v", err)
	}
	if h.LetterID == nil || *h.LetterID != y.ID {
		t.Fatalf("highlight = %+v, want Y", h)
	}

	var highlighted []models.Letter
	if err := e.db.Where("highlighted_at IS NOT NULL").Find(&highlighted).Error; err != nil {
		t.Fatalf("load highlighted: %v", err)
	}
	if len(highlighted) != 1 || highlighted[0].ID != y.ID {
		t.Fatalf("highlighted letters = %+v, want only Y", highlighted)
	}
}

func TestHighlightCooldownExpires(t *testing.T) {
	e := newEnv(t)
	alice := e.user("alice", models.RoleUser)
	x, y := e.letter(alice), e.letter(alice)

	if _, err := e.highlighter.Set(e.ctx, alice, x.ID); err != nil {
		t.Fatalf("set X: %v", err)
	}
	e.clock.Advance(testLock)
	if _, err := e.highlighter.Set(e.ctx, alice, y.ID); err != nil {
		t.Fatalf("set Y after cooldown: %v", err)
	}
	if _, err := e.highlighter.Clear(e.ctx, alice); !errors.Is(err, apperr.ErrHighlightLocked) {
		t.Fatalf("clear during cooldown: got %v, want ErrHighlightLocked", err)
	}
}

func TestHighlightRejectsDeletedLetter(t *testing.T) {
	e := newEnv(t)
	alice := e.user("alice", models.RoleUser)
	x := e.letter(alice)
	if err := e.lifecycle.Delete(e.ctx, alice, x); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := e.highlighter.Set(e.ctx, alice, x.ID); !errors.Is(err, apperr.ErrTargetNotFound) {
		t.Fatalf("highlight deleted letter: got %v, want ErrTargetNotFound", err)
	}
}

func TestHighlightExpiry(t *testing.T) {
	e := newEnv(t)
	alice := e.user("alice", models.RoleUser)
	x := e.letter(alice)
	if _, err := e.highlighter.Set(e.ctx, alice, x.ID); err != nil {
		t.Fatalf("set: %v", err)
	}

	expired, err := e.highlights.ExpireOlderThan(e.ctx, e.clock.Now().Add(-time.Hour))
	if err != nil || expired {
		t.Fatalf("fresh highlight expired=%v err=%v", expired, err)
	}
	e.clock.Advance(48 * time.Hour)
	expired, err = e.highlights.ExpireOlderThan(e.ctx, e.clock.Now().Add(-24*time.Hour))
	if err != nil || !expired {
		t.Fatalf("old highlight expired=%v err=%v", expired, err)
	}
	h, err := e.highlighter.Get(e.ctx)
	if err != nil || h.LetterID != nil {
		t.Fatalf("highlight after expiry = %+v, %v", h, err)
	}
}

func TestDeletingHighlightedLetterReleasesHighlight(t *testing.T) {
	e := newEnv(t)
	alice, bob := e.user("alice", models.RoleUser), e.user("bob", models.RoleUser)
	mod := e.user("mod", models.RoleModerator)
	x, y := e.letter(alice), e.letter(bob)

	if _, err := e.highlighter.Set(e.ctx, alice, x.ID); err != nil {
		t.Fatalf("set X: %v", err)
	}
	if err := e.lifecycle.Delete(e.ctx, alice, x); err != nil {
		t.Fatalf("delete X: %v", err)
	}

	h, err := e.highlighter.Get(e.ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if h.LetterID != nil || h.HighlightedAt != nil {
		t.Fatalf("highlight still points at deleted letter: %+v", h)
	}
	if n := e.countHighlighted(); n != 0 {
		t.Fatalf("highlighted letters = %d, want 0", n)
	}

	if err := e.lifecycle.Restore(e.ctx, mod, x); err != nil {
		t.Fatalf("restore X: %v", err)
	}
	if h, _ := e.highlighter.Get(e.ctx); h.LetterID != nil {
		t.Fatalf("restore brought the highlight back: %+v", h)
	}

	if _, err := e.highlighter.Set(e.ctx, bob, y.ID); err != nil {
		t.Fatalf("set Y after release should not be locked: %v", err)
	}
}

func (e *env) countHighlighted() int64 {
	e.t.Helper()
	var n int64
	if err := e.db.Model(&models.Letter{}).Where("highlighted_at IS NOT NULL").Count(&n).Error; err != nil {
		e.t.Fatalf("count highlighted: %v", err)
	}
	return n
}
