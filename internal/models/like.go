package models

import "time"

// Like records that an actor currently likes a target. Its existence is the
// liked state; the unique index is the authority for idempotency.
type Like struct {
	ID         uint       `json:"id" gorm:"primaryKey"`
	ActorID    uint       `json:"actor_id" gorm:"not null;uniqueIndex:idx_like_actor_target,priority:1"`
	TargetType TargetType `json:"target_type" gorm:"size:20;not null;uniqueIndex:idx_like_actor_target,priority:2;index:idx_like_target,priority:1"`
	TargetID   uint       `json:"target_id" gorm:"not null;uniqueIndex:idx_like_actor_target,priority:3;index:idx_like_target,priority:2"`
	CreatedAt  time.Time  `json:"created_at"`
}

// LikeResult carries what the orchestrating action needs to call the
// notification merger after a like or unlike.
type LikeResult struct {
	ActorID     uint   `json:"actor_id"`
	RecipientID uint   `json:"recipient_id"`
	Target      Target `json:"target"`
	// ParentID is the letter of a reply or the thread of a comment; zero otherwise.
	ParentID  uint  `json:"parent_id,omitempty"`
	LikeCount int64 `json:"like_count"`
}

// SelfAction reports whether the actor acted on their own content.
func (r LikeResult) SelfAction() bool {
	return r.ActorID == r.RecipientID
}

// NotificationTarget maps the liked content to the notification bucket it feeds.
func (r LikeResult) NotificationTarget() NotificationTarget {
	switch r.Target.Type {
	case TargetLetterReply:
		return ReplyLikeTarget(r.ParentID, r.Target.ID)
	case TargetThread:
		return ThreadLikeTarget(r.Target.ID)
	case TargetThreadComment:
		return CommentLikeTarget(r.ParentID, r.Target.ID)
	default:
		return LetterLikeTarget(r.Target.ID)
	}
}
