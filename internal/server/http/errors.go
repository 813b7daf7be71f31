package httpserver

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/and161185/ctfarena/internal/errs"
)

var statusTable = []struct {
	err    error
	status int
}{
	{errs.ErrMissingCredentials, http.StatusUnauthorized},
	{errs.ErrInvalidCredentials, http.StatusUnauthorized},
	{errs.ErrUnknownUser, http.StatusUnauthorized},
	{errs.ErrUnauthorized, http.StatusUnauthorized},
	{errs.ErrAccountBlocked, http.StatusForbidden},
	{errs.ErrForbidden, http.StatusForbidden},
	{errs.ErrIdentityMismatch, http.StatusForbidden},
	{errs.ErrValidation, http.StatusBadRequest},
	{errs.ErrNotFound, http.StatusNotFound},
	{errs.ErrAlreadyExists, http.StatusConflict},
	{errs.ErrAlreadySolved, http.StatusConflict},
	{errs.ErrRateLimited, http.StatusTooManyRequests},
}

// statusOf maps err to an HTTP status and a client-safe message.
// Validation errors keep their detail; everything else collapses to the
// sentinel text. Unknown errors become a bare 500.
func statusOf(err error) (int, string) {
	if errors.Is(err, errs.ErrValidation) {
		return http.StatusBadRequest, err.Error()
	}
	for _, e := range statusTable {
		if errors.Is(err, e.err) {
			return e.status, e.err.Error()
		}
	}
	return http.StatusInternalServerError, "internal error"
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusOf(err)
	if status == http.StatusInternalServerError {
		s.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	respondMessage(w, status, msg)
}
