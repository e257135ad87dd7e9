package api

import (
	stderrors "errors"
	"net/http"
	"pick-roll/errors"
)

// statusOf maps domain errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case stderrors.Is(err, errors.ErrInvalidArgument),
		stderrors.Is(err, errors.ErrIncompleteMessage),
		stderrors.Is(err, errors.ErrInvalidPassword):
		return http.StatusBadRequest
	case stderrors.Is(err, errors.ErrNotAuthenticated),
		stderrors.Is(err, errors.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case stderrors.Is(err, errors.ErrPermissionDenied):
		return http.StatusForbidden
	case stderrors.Is(err, errors.ErrNotFound):
		return http.StatusNotFound
	case stderrors.Is(err, errors.ErrUserAlreadyExists),
		stderrors.Is(err, errors.ErrAlreadyExists):
		return http.StatusConflict
	case stderrors.Is(err, errors.ErrBackendUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		s.log.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		message = http.StatusText(status)
	} else {
		s.log.Debug("Request refused", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: message})
}
