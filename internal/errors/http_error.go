package errors

import (
	"errors"
	"net/http"

	"parkhub/internal/repository"
	"parkhub/internal/service"
)

// HTTPError pairs a user-facing message with a status code.
type HTTPError struct {
	Code    int
	Message string
}

func (e *HTTPError) Error() string {
	return e.Message
}

func NewHTTPError(code int, message string) *HTTPError {
	return &HTTPError{Code: code, Message: message}
}

// FromError maps the engine's failure taxonomy onto HTTP. Anything outside
// the taxonomy is treated as transient storage trouble: the whole operation
// is safe to retry from scratch, so the client gets a generic retry prompt.
func FromError(err error) *HTTPError {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return NewHTTPError(http.StatusNotFound, "Not found")
	case errors.Is(err, service.ErrSlotUnavailable), errors.Is(err, repository.ErrConflict):
		return NewHTTPError(http.StatusConflict, "Slot no longer available, please pick another")
	case errors.Is(err, service.ErrUnauthorized):
		return NewHTTPError(http.StatusForbidden, "Not authorized")
	case errors.Is(err, service.ErrInvalidAction):
		return NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return NewHTTPError(http.StatusServiceUnavailable, "Temporary error, please try again")
}
