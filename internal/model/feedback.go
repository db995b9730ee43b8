package model

import (
	"time"
)

const (
	VoteUp   = "up"
	VoteDown = "down"
)

// Feedback is one record per (image, user) pair. A second submission by the
// same user for the same image replaces the first, never duplicates it.
type Feedback struct {
	ImageHash string    `db:"image_hash"`
	UserID    string    `db:"user_id"`
	VoteType  string    `db:"vote_type"`
	Comment   string    `db:"comment"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// ValidVoteType reports whether v is one of the two allowed vote values.
func ValidVoteType(v string) bool {
	return v == VoteUp || v == VoteDown
}
