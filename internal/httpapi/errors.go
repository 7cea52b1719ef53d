package httpapi

import (
	"errors"
	"net/http"

	"github.com/hupe1980/findmymeow"
)

// statusFor maps service errors onto HTTP status codes. A dimension mismatch
// comes from the embedding provider, not the client, and falls through to 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, findmymeow.ErrValidation),
		errors.Is(err, findmymeow.ErrNoSubjectDetected):
		return http.StatusBadRequest
	case errors.Is(err, findmymeow.ErrNotFound),
		errors.Is(err, findmymeow.ErrNoMatches):
		return http.StatusNotFound
	case errors.Is(err, findmymeow.ErrStorageUnavailable),
		errors.Is(err, findmymeow.ErrPersistFailure),
		errors.Is(err, findmymeow.ErrEmbeddingUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes err as {"detail": ...}. Internal errors are logged and
// replaced by a generic message.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)

	detail := err.Error()
	switch {
	case errors.Is(err, findmymeow.ErrNoMatches):
		detail = "No matching posts found"
	case errors.Is(err, findmymeow.ErrNoSubjectDetected):
		detail = "No cat detected in the image"
	case status >= http.StatusInternalServerError:
		h.logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		if status == http.StatusInternalServerError {
			detail = "internal error"
		}
	}

	h.writeDetail(w, status, detail)
}
