package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slonweiss/node-proxy/internal/model"
)

func testFeedback(imageHash, userID, vote string) *model.Feedback {
	now := time.Now().UTC()
	return &model.Feedback{
		ImageHash: imageHash,
		UserID:    userID,
		VoteType:  vote,
		Comment:   "looks generated",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestFeedbackRepository_SubmitNew(t *testing.T) {
	database := newTestDB(t)
	images := NewImageRepository(database)
	repo := NewFeedbackRepository(database)

	_, err := images.Create(testImage("h1", "p1"), "https://realeyes.ai")
	require.NoError(t, err)

	require.NoError(t, repo.SubmitNew(testFeedback("h1", "u1", model.VoteUp)))

	fb, err := repo.ByImageAndUser("h1", "u1")
	require.NoError(t, err)
	assert.Equal(t, model.VoteUp, fb.VoteType)
	assert.Equal(t, "looks generated", fb.Comment)

	img, err := images.ByContentHash("h1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), img.ThumbsUp)
	assert.Equal(t, int64(0), img.ThumbsDown)
}

func TestFeedbackRepository_SubmitNewDuplicate(t *testing.T) {
	database := newTestDB(t)
	images := NewImageRepository(database)
	repo := NewFeedbackRepository(database)

	_, err := images.Create(testImage("h1", "p1"), "")
	require.NoError(t, err)

	require.NoError(t, repo.SubmitNew(testFeedback("h1", "u1", model.VoteUp)))
	err = repo.SubmitNew(testFeedback("h1", "u1", model.VoteDown))
	assert.ErrorIs(t, err, ErrFeedbackExists)

	// The losing insert must leave the aggregate untouched.
	img, err := images.ByContentHash("h1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), img.ThumbsUp)
	assert.Equal(t, int64(0), img.ThumbsDown)
}

func TestFeedbackRepository_SubmitNewUnknownImageRollsBack(t *testing.T) {
	database := newTestDB(t)
	repo := NewFeedbackRepository(database)

	err := repo.SubmitNew(testFeedback("missing", "u1", model.VoteUp))
	assert.ErrorIs(t, err, ErrImageNotFound)

	// The transaction rolled back: no orphan feedback row survives.
	_, err = repo.ByImageAndUser("missing", "u1")
	assert.ErrorIs(t, err, ErrFeedbackNotFound)
}

func TestFeedbackRepository_ChangeVoteCompensates(t *testing.T) {
	database := newTestDB(t)
	images := NewImageRepository(database)
	repo := NewFeedbackRepository(database)

	_, err := images.Create(testImage("h1", "p1"), "")
	require.NoError(t, err)

	require.NoError(t, repo.SubmitNew(testFeedback("h1", "u1", model.VoteUp)))

	changed := testFeedback("h1", "u1", model.VoteDown)
	changed.Comment = "changed my mind"
	require.NoError(t, repo.ChangeVote(changed, model.VoteUp))

	img, err := images.ByContentHash("h1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), img.ThumbsUp)
	assert.Equal(t, int64(1), img.ThumbsDown)

	fb, err := repo.ByImageAndUser("h1", "u1")
	require.NoError(t, err)
	assert.Equal(t, model.VoteDown, fb.VoteType)
	assert.Equal(t, "changed my mind", fb.Comment)
}

func TestFeedbackRepository_AggregateSumTracksVoters(t *testing.T) {
	database := newTestDB(t)
	images := NewImageRepository(database)
	repo := NewFeedbackRepository(database)

	_, err := images.Create(testImage("h1", "p1"), "")
	require.NoError(t, err)

	require.NoError(t, repo.SubmitNew(testFeedback("h1", "u1", model.VoteUp)))
	require.NoError(t, repo.SubmitNew(testFeedback("h1", "u2", model.VoteDown)))
	require.NoError(t, repo.ChangeVote(testFeedback("h1", "u1", model.VoteDown), model.VoteUp))

	img, err := images.ByContentHash("h1")
	require.NoError(t, err)
	// Two distinct voters, regardless of how often they flip.
	assert.Equal(t, int64(2), img.ThumbsUp+img.ThumbsDown)
	assert.Equal(t, int64(0), img.ThumbsUp)
	assert.Equal(t, int64(2), img.ThumbsDown)
}

func TestFeedbackRepository_ChangeVoteMissingRow(t *testing.T) {
	database := newTestDB(t)
	images := NewImageRepository(database)
	repo := NewFeedbackRepository(database)

	_, err := images.Create(testImage("h1", "p1"), "")
	require.NoError(t, err)

	err = repo.ChangeVote(testFeedback("h1", "u1", model.VoteDown), model.VoteUp)
	assert.ErrorIs(t, err, ErrFeedbackNotFound)
}
