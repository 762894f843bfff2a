package apperr

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for the like/notification core. Repositories translate storage
// errors into these before returning, so callers only ever match on this set.
var (
	ErrAlreadyLiked            = errors.New("target already liked by this user")
	ErrNotLiked                = errors.New("target not liked by this user")
	ErrTargetNotFound          = errors.New("target not found")
	ErrAlreadyDeleted          = errors.New("content already deleted")
	ErrNotDeleted              = errors.New("content is not deleted")
	ErrUserNotFound            = errors.New("user not found")
	ErrEmailTaken              = errors.New("email already registered")
	ErrForbidden               = errors.New("forbidden")
	ErrHighlightLocked         = errors.New("highlight is locked")
	ErrHighlightConflict       = errors.New("highlight changed concurrently")
	ErrNotificationWriteFailed = errors.New("notification write failed")
)

// HighlightLockedError is returned when a non-privileged actor tries to change
// the highlight before the cooldown has elapsed.
type HighlightLockedError struct {
	Remaining time.Duration
}

func (e *HighlightLockedError) Error() string {
	return fmt.Sprintf("highlight is locked for another %s", e.Remaining.Round(time.Second))
}

func (e *HighlightLockedError) Is(target error) bool {
	return target == ErrHighlightLocked
}

// RemainingMs is the cooldown left, in milliseconds.
func (e *HighlightLockedError) RemainingMs() int64 {
	return e.Remaining.Milliseconds()
}

// NotificationWriteError wraps a failed notification write with the context
// needed to investigate it offline. It is logged, never surfaced.
type NotificationWriteError struct {
	Type        string
	TargetID    uint
	ActorID     uint
	RecipientID uint
	Err         error
}

func (e *NotificationWriteError) Error() string {
	return fmt.Sprintf("notification write failed (type=%s target=%d actor=%d): %v", e.Type, e.TargetID, e.ActorID, e.Err)
}

func (e *NotificationWriteError) Unwrap() []error {
	return []error{ErrNotificationWriteFailed, e.Err}
}

var codes = map[error]string{
	ErrAlreadyLiked:            "ALREADY_LIKED",
	ErrNotLiked:                "NOT_LIKED",
	ErrTargetNotFound:          "TARGET_NOT_FOUND",
	ErrAlreadyDeleted:          "ALREADY_DELETED",
	ErrNotDeleted:              "NOT_DELETED",
	ErrUserNotFound:            "USER_NOT_FOUND",
	ErrEmailTaken:              "EMAIL_TAKEN",
	ErrForbidden:               "FORBIDDEN",
	ErrHighlightLocked:         "HIGHLIGHT_LOCKED",
	ErrHighlightConflict:       "HIGHLIGHT_CONFLICT",
	ErrNotificationWriteFailed: "NOTIFICATION_WRITE_FAILED",
}

// Code returns the stable code for a taxonomy error, or "INTERNAL".
func Code(err error) string {
	for sentinel, code := range codes {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return "INTERNAL"
}

// IsIdempotent reports whether err is one of the soft, retry-safe outcomes
// (AlreadyLiked, NotLiked, AlreadyDeleted, NotDeleted).
func IsIdempotent(err error) bool {
	return errors.Is(err, ErrAlreadyLiked) ||
		errors.Is(err, ErrNotLiked) ||
		errors.Is(err, ErrAlreadyDeleted) ||
		errors.Is(err, ErrNotDeleted)
}
