package repositories

import (
	"github.com/anonto42/letterbox/backend/internal/apperr"
	"github.com/anonto42/letterbox/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// lookupRef loads ownership and deletion state of a target, including whether
// its parent letter or thread has been soft-deleted. With a lock, the content
// row and its parent row are both read under it.
func lookupRef(db *gorm.DB, target models.Target, lock ...clause.Locking) (*models.ContentRef, error) {
	ref := &models.ContentRef{ID: target.ID}
	q := func() *gorm.DB {
		if len(lock) > 0 {
			return db.Clauses(lock[0])
		}
		return db
	}

	switch target.Type {
	case models.TargetLetter:
		var letter models.Letter
		if err := q().Select("id", "author_id", "deleted_at").Take(&letter, target.ID).Error; err != nil {
			return nil, notFoundAs(err, apperr.ErrTargetNotFound)
		}
		ref.AuthorID, ref.DeletedAt = letter.AuthorID, letter.DeletedAt

	case models.TargetThread:
		var thread models.Thread
		if err := q().Select("id", "author_id", "deleted_at").Take(&thread, target.ID).Error; err != nil {
			return nil, notFoundAs(err, apperr.ErrTargetNotFound)
		}
		ref.AuthorID, ref.DeletedAt = thread.AuthorID, thread.DeletedAt

	case models.TargetLetterReply:
		var reply models.LetterReply
		if err := q().Select("id", "letter_id", "author_id", "deleted_at").Take(&reply, target.ID).Error; err != nil {
			return nil, notFoundAs(err, apperr.ErrTargetNotFound)
		}
		ref.AuthorID, ref.ParentID, ref.DeletedAt = reply.AuthorID, reply.LetterID, reply.DeletedAt

		var letter models.Letter
		if err := q().Select("id", "deleted_at").Take(&letter, reply.LetterID).Error; err != nil {
			return nil, notFoundAs(err, apperr.ErrTargetNotFound)
		}
		ref.ParentDeletedAt = letter.DeletedAt

	case models.TargetThreadComment:
		var comment models.ThreadComment
		if err := q().Select("id", "thread_id", "author_id", "deleted_at").Take(&comment, target.ID).Error; err != nil {
			return nil, notFoundAs(err, apperr.ErrTargetNotFound)
		}
		ref.AuthorID, ref.ParentID, ref.DeletedAt = comment.AuthorID, comment.ThreadID, comment.DeletedAt

		var thread models.Thread
		if err := q().Select("id", "deleted_at").Take(&thread, comment.ThreadID).Error; err != nil {
			return nil, notFoundAs(err, apperr.ErrTargetNotFound)
		}
		ref.ParentDeletedAt = thread.DeletedAt

	default:
		return nil, apperr.ErrTargetNotFound
	}

	return ref, nil
}

// bumpLikeCount adjusts the denormalised like counter and returns the new value.
func bumpLikeCount(tx *gorm.DB, target models.Target, delta int) (int64, error) {
	expr := gorm.Expr("like_count + ?", delta)
	if delta < 0 {
		expr = gorm.Expr("CASE WHEN like_count > 0 THEN like_count - 1 ELSE 0 END")
	}
	if err := tx.Table(target.Type.Table()).Where("id = ?", target.ID).UpdateColumn("like_count", expr).Error; err != nil {
		return 0, err
	}
	var counts []int64
	if err := tx.Table(target.Type.Table()).Where("id = ?", target.ID).Pluck("like_count", &counts).Error; err != nil {
		return 0, err
	}
	if len(counts) == 0 {
		return 0, apperr.ErrTargetNotFound
	}
	return counts[0], nil
}
