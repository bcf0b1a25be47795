package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrDuplicateConnection is returned when a connection id is registered twice.
	ErrDuplicateConnection = fmt.Errorf("connection already registered")
	// ErrNotAuthorized is returned when a user tries to join a room they are not a member of.
	ErrNotAuthorized = fmt.Errorf("not authorized for this room")
	// ErrNotJoined is returned for typing signals on a room the connection never joined.
	ErrNotJoined = fmt.Errorf("room not joined")
	// ErrNotFound is returned on a collaborator lookup miss.
	ErrNotFound = fmt.Errorf("not found")

	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity requirements")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrEmailTaken         = fmt.Errorf("email already registered")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
	ErrContentTooLong     = fmt.Errorf("content exceeds maximum length")
	ErrWorkerPanic        = fmt.Errorf("worker panic")
)

// MapToHTTPStatus converts a domain error into the status code exposed
// by the HTTP/WebSocket boundary. All conditions are local and recoverable,
// never process-fatal.
func MapToHTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotJoined),
		errors.Is(err, ErrDuplicateConnection),
		errors.Is(err, ErrEmailTaken),
		errors.Is(err, ErrInvalidPassword):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
