package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"

	"github.com/tendant/simple-media/internal/logger"
	"github.com/tendant/simple-media/pkg/mediarepo"
)

// badRequestError reports a malformed request
type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string { return e.msg }

// StatusFor maps repository errors to HTTP status codes
func StatusFor(err error) int {
	var badRequest *badRequestError
	switch {
	case errors.Is(err, mediarepo.ErrResourceAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, mediarepo.ErrResourceNotFound):
		return http.StatusNotFound
	case errors.Is(err, mediarepo.ErrFileSizeLimitExceeded):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, mediarepo.ErrMimeTypeNotSupported),
		errors.Is(err, mediarepo.ErrCategoryTypeNotSupported),
		errors.Is(err, mediarepo.ErrEncodingTypeNotSupported),
		errors.As(err, &badRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *MediaHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	log := logger.FromContext(r.Context())
	if status == http.StatusInternalServerError {
		log.Error("request failed", "error", err)
	} else {
		log.Debug("request rejected", "status", status, "error", err)
	}
	render.Status(r, status)
	render.PlainText(w, r, err.Error())
}
