// Package errors defines the business error taxonomy of the relay.
//
// Callers classify failures with errors.Is against the sentinels below.
// Collaborator failures (store, encryption) are kept distinct from the
// four business kinds so clients can tell "you can't do this" apart from
// "the system is unavailable".
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound is returned when a referenced chat, message, call or user
	// does not exist.
	ErrNotFound = fmt.Errorf("not found")

	// ErrForbidden covers membership and authorization failures: the actor
	// is not a participant, not the sender, or acting outside an allowed
	// role or time window.
	ErrForbidden = fmt.Errorf("forbidden")

	// ErrInvalidState is returned when an operation is not valid in the
	// entity's current lifecycle state (answering a call that is not
	// ringing, signaling on a terminated call).
	ErrInvalidState = fmt.Errorf("invalid state")

	// ErrValidation is returned on malformed input.
	ErrValidation = fmt.Errorf("validation failed")

	// ErrStoreFailure wraps failures of the persistent store or the
	// encryption collaborator.
	ErrStoreFailure = fmt.Errorf("store failure")

	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
	ErrWorkerPanic        = fmt.Errorf("worker panic")
)

// HTTPStatus maps a business error to the status code exposed at the
// transport edge. Unrecognized errors are treated as collaborator failures.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
