package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/slonweiss/node-proxy/internal/ctxkeys"
	"github.com/slonweiss/node-proxy/internal/fingerprint"
	"github.com/slonweiss/node-proxy/internal/repository"
	"github.com/slonweiss/node-proxy/internal/service"
)

type errorResponse struct {
	Error     string `json:"error"`
	Details   string `json:"details,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

func renderJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(body)
	if err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// renderError translates the error taxonomy to HTTP statuses. Nothing crosses
// the request boundary unhandled; unknown errors become opaque 500s.
func renderError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := ctxkeys.RequestID(r.Context())

	var status int
	var msg string
	var details string

	switch {
	case errors.Is(err, fingerprint.ErrUnsupportedType),
		errors.Is(err, fingerprint.ErrDecode),
		errors.Is(err, service.ErrEmptyUpload),
		errors.Is(err, service.ErrMissingImageHash),
		errors.Is(err, service.ErrMissingUserID),
		errors.Is(err, service.ErrInvalidFeedback):
		status = http.StatusBadRequest
		msg = err.Error()
	case errors.Is(err, service.ErrInvalidToken):
		status = http.StatusUnauthorized
		msg = err.Error()
	case errors.Is(err, repository.ErrImageNotFound):
		status = http.StatusNotFound
		msg = "image not found"
	case errors.Is(err, repository.ErrFeedbackExists):
		status = http.StatusConflict
		msg = "feedback already recorded for this image and user"
	case errors.Is(err, service.ErrIntegrity):
		status = http.StatusInternalServerError
		msg = "internal storage error"
		details = "stored object failed verification"
	default:
		status = http.StatusInternalServerError
		msg = "internal server error"
	}

	if status >= http.StatusInternalServerError {
		slog.Error("request failed",
			"error", err,
			"status", status,
			"path", r.URL.Path,
			"request_id", requestID,
		)
	} else {
		slog.Warn("request rejected",
			"error", err,
			"status", status,
			"path", r.URL.Path,
			"request_id", requestID,
		)
	}

	renderJSON(w, status, errorResponse{Error: msg, Details: details, RequestID: requestID})
}
