package models

import "time"

// TargetType names a likeable, deletable content kind.
type TargetType string

const (
	TargetLetter        TargetType = "letter"
	TargetLetterReply   TargetType = "letter_reply"
	TargetThread        TargetType = "thread"
	TargetThreadComment TargetType = "thread_comment"
)

// TargetTypes lists every content kind, in purge order (children first).
var TargetTypes = []TargetType{TargetLetterReply, TargetThreadComment, TargetLetter, TargetThread}

func (t TargetType) Valid() bool {
	switch t {
	case TargetLetter, TargetLetterReply, TargetThread, TargetThreadComment:
		return true
	}
	return false
}

// Table is the relational table holding content of this kind.
func (t TargetType) Table() string {
	switch t {
	case TargetLetterReply:
		return "letter_replies"
	case TargetThread:
		return "threads"
	case TargetThreadComment:
		return "thread_comments"
	default:
		return "letters"
	}
}

// ParentColumn is the column pointing at the parent content, if any.
func (t TargetType) ParentColumn() string {
	switch t {
	case TargetLetterReply:
		return "letter_id"
	case TargetThreadComment:
		return "thread_id"
	}
	return ""
}

// Target identifies one piece of content.
type Target struct {
	Type TargetType `json:"type"`
	ID   uint       `json:"id"`
}

type LetterStatus string

const (
	LetterPublished     LetterStatus = "published"
	LetterPendingReview LetterStatus = "pending_review"
)

// Letter is a top-level post addressed to the community
type Letter struct {
	ID            uint         `json:"id" gorm:"primaryKey"`
	AuthorID      uint         `json:"author_id" gorm:"not null;index"`
	Title         string       `json:"title" gorm:"size:200"`
	Body          string       `json:"body" gorm:"type:text"`
	Status        LetterStatus `json:"status" gorm:"size:20;not null;default:'published'"`
	LikeCount     int64        `json:"like_count" gorm:"not null;default:0"`
	HighlightedAt *time.Time   `json:"highlighted_at,omitempty"`
	DeletedAt     *time.Time   `json:"deleted_at,omitempty" gorm:"index"`
	DeletedByID   *uint        `json:"deleted_by_id,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// LetterReply is a reply to a letter
type LetterReply struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	LetterID    uint       `json:"letter_id" gorm:"not null;index"`
	AuthorID    uint       `json:"author_id" gorm:"not null;index"`
	Body        string     `json:"body" gorm:"type:text"`
	LikeCount   int64      `json:"like_count" gorm:"not null;default:0"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty" gorm:"index"`
	DeletedByID *uint      `json:"deleted_by_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Thread is a discussion thread
type Thread struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	AuthorID    uint       `json:"author_id" gorm:"not null;index"`
	Title       string     `json:"title" gorm:"size:200"`
	Body        string     `json:"body" gorm:"type:text"`
	LikeCount   int64      `json:"like_count" gorm:"not null;default:0"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty" gorm:"index"`
	DeletedByID *uint      `json:"deleted_by_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ThreadComment is a comment on a thread
type ThreadComment struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	ThreadID    uint       `json:"thread_id" gorm:"not null;index"`
	AuthorID    uint       `json:"author_id" gorm:"not null;index"`
	Body        string     `json:"body" gorm:"type:text"`
	LikeCount   int64      `json:"like_count" gorm:"not null;default:0"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty" gorm:"index"`
	DeletedByID *uint      `json:"deleted_by_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ContentRef is the ownership view of a target used by the ledger and lifecycle.
type ContentRef struct {
	ID       uint
	AuthorID uint
	// ParentID is the letter of a reply or the thread of a comment.
	ParentID        uint
	DeletedAt       *time.Time
	ParentDeletedAt *time.Time
}

// Live reports whether neither the content nor its parent is soft-deleted.
func (r *ContentRef) Live() bool {
	return r.DeletedAt == nil && r.ParentDeletedAt == nil
}

// CreateLetterRequest defines the request body for writing a letter
type CreateLetterRequest struct {
	Title string `json:"title" validate:"required,min=1,max=200"`
	Body  string `json:"body" validate:"required,min=1,max=10000"`
}

// CreateReplyRequest defines the request body for replying to a letter
type CreateReplyRequest struct {
	Body string `json:"body" validate:"required,min=1,max=5000"`
}

// CreateThreadRequest defines the request body for opening a thread
type CreateThreadRequest struct {
	Title string `json:"title" validate:"required,min=1,max=200"`
	Body  string `json:"body" validate:"required,min=1,max=10000"`
}

// CreateCommentRequest defines the request body for commenting on a thread
type CreateCommentRequest struct {
	Body string `json:"body" validate:"required,min=1,max=2000"`
}
