package handler

import (
	"encoding/json"
	"net/http"

	"github.com/slonweiss/node-proxy/internal/service"
)

type feedbackRequest struct {
	ImageHash    string `json:"imageHash"`
	FeedbackType string `json:"feedbackType"`
	Comment      string `json:"comment"`
	UserID       string `json:"userId"`
}

type feedbackResponse struct {
	Message          string `json:"message"`
	ImageHash        string `json:"imageHash"`
	UserID           string `json:"userId"`
	FeedbackType     string `json:"feedbackType"`
	PreviousFeedback string `json:"previousFeedback,omitempty"`
}

type FeedbackHandler struct {
	feedbackService *service.FeedbackService
	authService     *service.AuthService
}

func NewFeedbackHandler(feedbackService *service.FeedbackService, authService *service.AuthService) *FeedbackHandler {
	return &FeedbackHandler{
		feedbackService: feedbackService,
		authService:     authService,
	}
}

// Submit records an up/down vote with an optional comment. Identity comes
// from the Authorization token when one is presented, else from the body.
func (h *FeedbackHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		renderJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed JSON body"})
		return
	}

	userID, err := h.authService.ResolveUserID(r.Header.Get("Authorization"), req.UserID)
	if err != nil {
		renderError(w, r, err)
		return
	}

	outcome, err := h.feedbackService.Submit(&service.FeedbackInput{
		ImageHash: req.ImageHash,
		UserID:    userID,
		VoteType:  req.FeedbackType,
		Comment:   req.Comment,
	})
	if err != nil {
		renderError(w, r, err)
		return
	}

	resp := feedbackResponse{
		ImageHash:    req.ImageHash,
		UserID:       userID,
		FeedbackType: req.FeedbackType,
	}
	switch outcome.Status {
	case service.FeedbackSubmitted:
		resp.Message = "Feedback submitted successfully"
	case service.FeedbackUnchanged:
		resp.Message = "Feedback already received"
	case service.FeedbackUpdated:
		resp.Message = "Feedback updated successfully"
		resp.PreviousFeedback = outcome.Previous
	}

	renderJSON(w, http.StatusOK, resp)
}
