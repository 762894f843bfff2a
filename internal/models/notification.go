package models

import "time"

// NotificationType tags a notification and decides which target column is its key
type NotificationType string

const (
	NotificationLetterLike    NotificationType = "letter_like"
	NotificationReplyLike     NotificationType = "reply_like"
	NotificationReply         NotificationType = "reply"
	NotificationPendingReview NotificationType = "pending_review"
	NotificationThreadLike    NotificationType = "thread_like"
	NotificationCommentLike   NotificationType = "comment_like"
	NotificationThreadComment NotificationType = "thread_comment"
)

// Mergeable reports whether repeated events fold into one notification within
// the activity window. Replies and review notices are always standalone.
func (t NotificationType) Mergeable() bool {
	switch t {
	case NotificationLetterLike, NotificationReplyLike, NotificationThreadLike, NotificationCommentLike:
		return true
	}
	return false
}

// Notification is an aggregated event bucket for one recipient, one type and one
// target. Which of the target columns is the key depends on Type; the remaining
// ones hold the parent so deleting a letter or thread reaches its children too.
type Notification struct {
	ID                 int64            `json:"id,string" gorm:"primaryKey;autoIncrement:false"`
	RecipientID        uint             `json:"recipient_id" gorm:"not null;index:idx_notification_recipient,priority:1"`
	Type               NotificationType `json:"type" gorm:"size:30;not null;index:idx_notification_recipient,priority:2"`
	LetterID           *uint            `json:"letter_id,omitempty" gorm:"index"`
	ReplyID            *uint            `json:"reply_id,omitempty" gorm:"index"`
	ThreadID           *uint            `json:"thread_id,omitempty" gorm:"index"`
	CommentID          *uint            `json:"comment_id,omitempty" gorm:"index"`
	IsRead             bool             `json:"is_read" gorm:"not null;default:false"`
	IsCountDecremented bool             `json:"-" gorm:"not null;default:false;index"`
	LastActivityAt     time.Time        `json:"last_activity_at" gorm:"not null;index"`
	CreatedAt          time.Time        `json:"created_at"`

	Actors []NotificationActor `json:"-" gorm:"foreignKey:NotificationID"`
}

// NotificationActor is one contributing actor of a notification
type NotificationActor struct {
	NotificationID int64     `json:"notification_id,string" gorm:"primaryKey;autoIncrement:false"`
	UserID         uint      `json:"user_id" gorm:"primaryKey;autoIncrement:false;index"`
	CreatedAt      time.Time `json:"created_at"`
}

// NotificationTarget is the tagged variant a notification points at. Only the
// fields relevant to Type are set.
type NotificationTarget struct {
	Type      NotificationType
	LetterID  uint
	ReplyID   uint
	ThreadID  uint
	CommentID uint
}

func LetterLikeTarget(letterID uint) NotificationTarget {
	return NotificationTarget{Type: NotificationLetterLike, LetterID: letterID}
}

func ReplyLikeTarget(letterID, replyID uint) NotificationTarget {
	return NotificationTarget{Type: NotificationReplyLike, LetterID: letterID, ReplyID: replyID}
}

func ReplyTarget(letterID, replyID uint) NotificationTarget {
	return NotificationTarget{Type: NotificationReply, LetterID: letterID, ReplyID: replyID}
}

func PendingReviewTarget(letterID uint) NotificationTarget {
	return NotificationTarget{Type: NotificationPendingReview, LetterID: letterID}
}

func ThreadLikeTarget(threadID uint) NotificationTarget {
	return NotificationTarget{Type: NotificationThreadLike, ThreadID: threadID}
}

func CommentLikeTarget(threadID, commentID uint) NotificationTarget {
	return NotificationTarget{Type: NotificationCommentLike, ThreadID: threadID, CommentID: commentID}
}

func ThreadCommentTarget(threadID, commentID uint) NotificationTarget {
	return NotificationTarget{Type: NotificationThreadComment, ThreadID: threadID, CommentID: commentID}
}

// Key returns the column and id that identify the target for merge and demerge.
func (t NotificationTarget) Key() (string, uint) {
	switch t.Type {
	case NotificationReplyLike, NotificationReply:
		return "reply_id", t.ReplyID
	case NotificationThreadLike:
		return "thread_id", t.ThreadID
	case NotificationCommentLike, NotificationThreadComment:
		return "comment_id", t.CommentID
	default:
		return "letter_id", t.LetterID
	}
}

// Content returns the content row the notification is about.
func (t NotificationTarget) Content() Target {
	switch t.Type {
	case NotificationReplyLike, NotificationReply:
		return Target{Type: TargetLetterReply, ID: t.ReplyID}
	case NotificationThreadLike:
		return Target{Type: TargetThread, ID: t.ThreadID}
	case NotificationCommentLike, NotificationThreadComment:
		return Target{Type: TargetThreadComment, ID: t.CommentID}
	default:
		return Target{Type: TargetLetter, ID: t.LetterID}
	}
}

// Apply copies the target onto a notification row.
func (t NotificationTarget) Apply(n *Notification) {
	n.Type = t.Type
	n.LetterID = optionalID(t.LetterID)
	n.ReplyID = optionalID(t.ReplyID)
	n.ThreadID = optionalID(t.ThreadID)
	n.CommentID = optionalID(t.CommentID)
}

// Target rebuilds the tagged variant from a stored row.
func (n *Notification) Target() NotificationTarget {
	return NotificationTarget{
		Type:      n.Type,
		LetterID:  derefID(n.LetterID),
		ReplyID:   derefID(n.ReplyID),
		ThreadID:  derefID(n.ThreadID),
		CommentID: derefID(n.CommentID),
	}
}

// TargetColumn maps a content kind to the notification column referencing it.
func TargetColumn(t TargetType) string {
	switch t {
	case TargetLetterReply:
		return "reply_id"
	case TargetThread:
		return "thread_id"
	case TargetThreadComment:
		return "comment_id"
	default:
		return "letter_id"
	}
}

func optionalID(id uint) *uint {
	if id == 0 {
		return nil
	}
	return &id
}

func derefID(id *uint) uint {
	if id == nil {
		return 0
	}
	return *id
}
