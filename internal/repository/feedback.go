package repository

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/slonweiss/node-proxy/internal/model"
)

var (
	ErrFeedbackNotFound = errors.New("feedback not found")
	ErrFeedbackExists   = errors.New("feedback already exists")
)

type FeedbackRepository interface {
	ByImageAndUser(imageHash, userID string) (*model.Feedback, error)
	// SubmitNew inserts a first vote and increments the matching aggregate
	// counter, both inside one transaction.
	SubmitNew(fb *model.Feedback) error
	// ChangeVote replaces an existing vote and applies the compensating
	// aggregate update (+1 new, -1 previous) as a single statement, so no
	// intermediate state where both or neither counter reflects the vote is
	// ever visible.
	ChangeVote(fb *model.Feedback, previous string) error
}

type feedbackRepository struct {
	db *sqlx.DB
}

func NewFeedbackRepository(db *sqlx.DB) *feedbackRepository {
	return &feedbackRepository{db: db}
}

func (r *feedbackRepository) ByImageAndUser(imageHash, userID string) (*model.Feedback, error) {
	fb := &model.Feedback{}
	query := `SELECT * FROM feedback WHERE image_hash = $1 AND user_id = $2`

	err := r.db.Get(fb, query, imageHash, userID)
	if err == sql.ErrNoRows {
		return nil, ErrFeedbackNotFound
	}

	return fb, err
}

func (r *feedbackRepository) SubmitNew(fb *model.Feedback) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	query := `INSERT INTO feedback (image_hash, user_id, vote_type, comment, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6)`

	_, err = tx.Exec(query,
		fb.ImageHash,
		fb.UserID,
		fb.VoteType,
		fb.Comment,
		fb.CreatedAt,
		fb.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrFeedbackExists
		}
		return err
	}

	if err := r.applyDelta(tx, fb.ImageHash, fb.VoteType, ""); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *feedbackRepository) ChangeVote(fb *model.Feedback, previous string) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	query := `UPDATE feedback SET vote_type = $1, comment = $2, updated_at = $3
	          WHERE image_hash = $4 AND user_id = $5`

	res, err := tx.Exec(query, fb.VoteType, fb.Comment, fb.UpdatedAt, fb.ImageHash, fb.UserID)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrFeedbackNotFound
	}

	if err := r.applyDelta(tx, fb.ImageHash, fb.VoteType, previous); err != nil {
		return err
	}

	return tx.Commit()
}

// applyDelta moves the aggregate counters on the image row. With a previous
// vote the increment and the decrement travel in the same statement.
func (r *feedbackRepository) applyDelta(tx *sqlx.Tx, imageHash, vote, previous string) error {
	upDelta, downDelta := 0, 0
	switch vote {
	case model.VoteUp:
		upDelta++
	case model.VoteDown:
		downDelta++
	}
	switch previous {
	case model.VoteUp:
		upDelta--
	case model.VoteDown:
		downDelta--
	}

	res, err := tx.Exec(`UPDATE images SET thumbs_up = thumbs_up + $1, thumbs_down = thumbs_down + $2 WHERE content_hash = $3`,
		upDelta, downDelta, imageHash)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrImageNotFound
	}

	return nil
}

// isUniqueViolation matches the constraint errors of both supported drivers
// (modernc sqlite and pgx) without importing either here.
func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
