package services

import (
	"errors"
	"fmt"

	"google.golang.org/api/googleapi"

	"github.com/inboxd/inboxd/internal/label"
	"github.com/inboxd/inboxd/internal/store"
)

// Standard service errors surfaced by the action, bulk, view and sync layers
var (
	// ErrUnsupportedAction is returned for action names outside the transition table.
	ErrUnsupportedAction = errors.New("unsupported action")
	// ErrInvalidPrecondition is returned when an action's state precondition fails,
	// e.g. restoring an email that is not in the trash.
	ErrInvalidPrecondition = errors.New("invalid precondition")
	// ErrRemoteRejected is returned when the backend rejects an otherwise valid action.
	ErrRemoteRejected = errors.New("remote rejected the action")
	// ErrNotFound is returned when the targeted email does not exist.
	ErrNotFound = errors.New("email not found")
	// ErrAuthExpired is returned when credentials are no longer accepted.
	ErrAuthExpired = errors.New("authentication expired")
	// ErrSyncUnavailable is returned when the sync backend cannot be reached.
	ErrSyncUnavailable = errors.New("sync backend unavailable")
)

// IsRetryableError determines if an error should be retried
func IsRetryableError(err error) bool {
	return errors.Is(err, ErrRemoteRejected) ||
		errors.Is(err, ErrSyncUnavailable)
}

// IsPermanentError determines if an error is permanent and should not be retried
func IsPermanentError(err error) bool {
	return errors.Is(err, ErrUnsupportedAction) ||
		errors.Is(err, ErrInvalidPrecondition) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrAuthExpired)
}

// classifyStoreErr translates store and transition errors into the service
// error vocabulary, keeping the cause in the chain.
func classifyStoreErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, label.ErrUnknownAction):
		return fmt.Errorf("%w: %v", ErrUnsupportedAction, err)
	case errors.Is(err, label.ErrNotInTrash), errors.Is(err, label.ErrMissingLabel):
		return fmt.Errorf("%w: %v", ErrInvalidPrecondition, err)
	default:
		return fmt.Errorf("%w: %v", ErrRemoteRejected, err)
	}
}

// classifyProviderErr translates Gmail API failures into the service error
// vocabulary based on the HTTP status.
func classifyProviderErr(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 401, 403:
			return fmt.Errorf("%w: %v", ErrAuthExpired, err)
		case 404:
			return fmt.Errorf("%w: %v", ErrNotFound, err)
		default:
			// the server answered and said no
			return fmt.Errorf("%w: %v", ErrRemoteRejected, err)
		}
	}
	// no HTTP response at all: transport-level failure
	return fmt.Errorf("%w: %v", ErrSyncUnavailable, err)
}
