package apperr

import (
	"errors"
	"net/http"
)

var (
	ErrBadRequest       = errors.New("bad request")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")
	ErrNotFound         = errors.New("not found")
	ErrInvalidOrExpired = errors.New("invalid or expired")
	ErrInvalidCode      = errors.New("invalid code")
	ErrConflict         = errors.New("conflict")
	ErrLocked           = errors.New("locked")
	ErrTransient        = errors.New("transient")
)

// Error carries a message that is safe to show to the client and
// the internal cause that only goes to the logs.
type Error struct {
	Kind  error
	Msg   string
	Cause error
}

func New(kind error, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Msg + ": " + e.Cause.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}

// Status maps an error to the HTTP status and public message.
func Status(err error) (int, string) {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError, "Internal server error"
	}

	switch {
	case errors.Is(e.Kind, ErrBadRequest),
		errors.Is(e.Kind, ErrInvalidOrExpired),
		errors.Is(e.Kind, ErrInvalidCode):
		return http.StatusBadRequest, e.Msg
	case errors.Is(e.Kind, ErrUnauthorized):
		return http.StatusUnauthorized, e.Msg
	case errors.Is(e.Kind, ErrForbidden):
		return http.StatusForbidden, e.Msg
	case errors.Is(e.Kind, ErrNotFound):
		return http.StatusNotFound, e.Msg
	case errors.Is(e.Kind, ErrConflict):
		return http.StatusConflict, e.Msg
	case errors.Is(e.Kind, ErrLocked):
		return http.StatusTooManyRequests, e.Msg
	default:
		return http.StatusInternalServerError, e.Msg
	}
}
