// Package errs holds the error taxonomy shared by the stores, the sync engine and the remote client.
package errs

import (
	"errors"
	"fmt"
)

// Validation errors, detected locally before any network call.
var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrUpdateInProgress  = errors.New("status update already in progress")
	ErrInvalidMessage    = errors.New("invalid message")
)

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrNotFound       = errors.New("not found")
	ErrRemoteRejected = errors.New("remote rejected the request")
	ErrNetworkFailure = errors.New("network failure")
	ErrRateLimited    = errors.New("rate limited")
)

// IsValidation reports whether err was raised by local validation.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrUpdateInProgress) ||
		errors.Is(err, ErrInvalidMessage)
}

// IsRetryable reports whether a failed write may be offered to the user for one explicit retry.
// Writes are never retried automatically.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrNetworkFailure)
}

// Classify keeps errors from the taxonomy as they are and treats anything else as a network failure.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	for _, known := range []error{
		ErrUnauthorized,
		ErrNotFound,
		ErrRemoteRejected,
		ErrNetworkFailure,
		ErrRateLimited,
		ErrInvalidTransition,
		ErrUpdateInProgress,
		ErrInvalidMessage,
	} {
		if errors.Is(err, known) {
			return err
		}
	}

	return fmt.Errorf("%w: %w", ErrNetworkFailure, err)
}
