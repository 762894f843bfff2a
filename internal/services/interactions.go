package services

import (
	"context"

	"github.com/anonto42/letterbox/backend/internal/models"
	"github.com/anonto42/letterbox/backend/internal/repositories"
)

// Interactions runs the user-facing write actions: the content or ledger write
// first, then the notification bookkeeping. Only the first step can fail the
// action.
type Interactions struct {
	likes   repositories.LikeRepository
	content repositories.ContentRepository
	merger  *NotificationMerger
}

func NewInteractions(likes repositories.LikeRepository, content repositories.ContentRepository, merger *NotificationMerger) *Interactions {
	return &Interactions{likes: likes, content: content, merger: merger}
}

// Like records the like and notifies the owner. ErrAlreadyLiked and
// ErrTargetNotFound come back unchanged.
func (s *Interactions) Like(ctx context.Context, actorID uint, target models.Target) (*models.LikeResult, error) {
	res, err := s.likes.Like(ctx, actorID, target)
	if err != nil {
		return nil, err
	}
	s.merger.OnLike(ctx, res)
	return res, nil
}

// Unlike removes the like and withdraws the actor from the owner's
// notification. ErrNotLiked comes back unchanged.
func (s *Interactions) Unlike(ctx context.Context, actorID uint, target models.Target) (*models.LikeResult, error) {
	res, err := s.likes.Unlike(ctx, actorID, target)
	if err != nil {
		return nil, err
	}
	s.merger.OnUnlike(ctx, res)
	return res, nil
}

func (s *Interactions) CreateLetter(ctx context.Context, authorID uint, req *models.CreateLetterRequest) (*models.Letter, error) {
	letter := &models.Letter{AuthorID: authorID, Title: req.Title, Body: req.Body}
	if err := s.content.CreateLetter(ctx, letter); err != nil {
		return nil, err
	}
	return letter, nil
}

func (s *Interactions) CreateThread(ctx context.Context, authorID uint, req *models.CreateThreadRequest) (*models.Thread, error) {
	thread := &models.Thread{AuthorID: authorID, Title: req.Title, Body: req.Body}
	if err := s.content.CreateThread(ctx, thread); err != nil {
		return nil, err
	}
	return thread, nil
}

// Reply adds a reply to a live letter and sends the letter's author a
// standalone notification.
func (s *Interactions) Reply(ctx context.Context, actorID, letterID uint, req *models.CreateReplyRequest) (*models.LetterReply, error) {
	reply := &models.LetterReply{LetterID: letterID, AuthorID: actorID, Body: req.Body}
	if err := s.content.CreateReply(ctx, reply); err != nil {
		return nil, err
	}

	if letter, err := s.content.GetRef(ctx, models.Target{Type: models.TargetLetter, ID: letterID}); err == nil {
		s.merger.OnStandalone(ctx, letter.AuthorID, actorID, models.ReplyTarget(letterID, reply.ID))
	} else {
		s.merger.writeFailed(ctx, models.ReplyTarget(letterID, reply.ID), 0, actorID, err)
	}
	return reply, nil
}

// Comment adds a comment to a live thread and notifies the thread's author.
func (s *Interactions) Comment(ctx context.Context, actorID, threadID uint, req *models.CreateCommentRequest) (*models.ThreadComment, error) {
	comment := &models.ThreadComment{ThreadID: threadID, AuthorID: actorID, Body: req.Body}
	if err := s.content.CreateComment(ctx, comment); err != nil {
		return nil, err
	}

	if thread, err := s.content.GetRef(ctx, models.Target{Type: models.TargetThread, ID: threadID}); err == nil {
		s.merger.OnStandalone(ctx, thread.AuthorID, actorID, models.ThreadCommentTarget(threadID, comment.ID))
	} else {
		s.merger.writeFailed(ctx, models.ThreadCommentTarget(threadID, comment.ID), 0, actorID, err)
	}
	return comment, nil
}
