package service

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/slonweiss/node-proxy/internal/model"
	"github.com/slonweiss/node-proxy/internal/repository"
)

var (
	ErrMissingImageHash = errors.New("imageHash is required")
	ErrMissingUserID    = errors.New("userId is required")
	ErrInvalidFeedback  = errors.New("feedbackType must be \"up\" or \"down\"")
)

// Feedback submission outcomes.
const (
	FeedbackSubmitted = "submitted"
	FeedbackUnchanged = "unchanged"
	FeedbackUpdated   = "updated"
)

// FeedbackInput is one vote submission, identity already resolved upstream.
type FeedbackInput struct {
	ImageHash string
	UserID    string
	VoteType  string
	Comment   string
}

// FeedbackOutcome reports how a submission reconciled against the user's
// prior vote for the same image.
type FeedbackOutcome struct {
	Status   string
	Previous string // previous vote type, set only for FeedbackUpdated
}

type FeedbackService struct {
	feedbackRepo repository.FeedbackRepository
}

func NewFeedbackService(feedbackRepo repository.FeedbackRepository) *FeedbackService {
	return &FeedbackService{feedbackRepo: feedbackRepo}
}

// Submit reconciles a vote against the user's prior state for the image.
// First vote inserts record and counter; an identical repeat is a no-op; a
// changed vote replaces the record and compensates both counters atomically.
// Validation failures happen before any storage access.
func (s *FeedbackService) Submit(in *FeedbackInput) (*FeedbackOutcome, error) {
	if strings.TrimSpace(in.ImageHash) == "" {
		return nil, ErrMissingImageHash
	}
	if strings.TrimSpace(in.UserID) == "" {
		return nil, ErrMissingUserID
	}
	if !model.ValidVoteType(in.VoteType) {
		return nil, ErrInvalidFeedback
	}

	existing, err := s.feedbackRepo.ByImageAndUser(in.ImageHash, in.UserID)
	if err != nil && !errors.Is(err, repository.ErrFeedbackNotFound) {
		return nil, fmt.Errorf("failed to read feedback: %w", err)
	}

	now := time.Now().UTC()

	if existing == nil {
		fb := &model.Feedback{
			ImageHash: in.ImageHash,
			UserID:    in.UserID,
			VoteType:  in.VoteType,
			Comment:   in.Comment,
			CreatedAt: now,
			UpdatedAt: now,
		}
		err = s.feedbackRepo.SubmitNew(fb)
		if err != nil {
			return nil, err
		}

		slog.Info("feedback submitted",
			"image_hash", in.ImageHash,
			"vote", in.VoteType,
		)
		return &FeedbackOutcome{Status: FeedbackSubmitted}, nil
	}

	if existing.VoteType == in.VoteType {
		// Idempotent no-op, nothing is written.
		return &FeedbackOutcome{Status: FeedbackUnchanged}, nil
	}

	fb := &model.Feedback{
		ImageHash: in.ImageHash,
		UserID:    in.UserID,
		VoteType:  in.VoteType,
		Comment:   in.Comment,
		UpdatedAt: now,
	}
	err = s.feedbackRepo.ChangeVote(fb, existing.VoteType)
	if err != nil {
		return nil, err
	}

	slog.Info("feedback updated",
		"image_hash", in.ImageHash,
		"vote", in.VoteType,
		"previous", existing.VoteType,
	)
	return &FeedbackOutcome{Status: FeedbackUpdated, Previous: existing.VoteType}, nil
}
