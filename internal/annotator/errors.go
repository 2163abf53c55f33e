package annotator

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the asset or revision does not exist upstream.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized means the viewer lacks access, as decided upstream.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrValidation means the server rejected the request body or query, for
	// example an annotation whose coordinates fall outside the canvas.
	ErrValidation = errors.New("validation failed")
	// ErrEmptyComment rejects a submission whose comment trims to nothing.
	// No network call is made.
	ErrEmptyComment = errors.New("comment is required")
	// ErrSubmitInFlight rejects a re-submission while one is outstanding.
	ErrSubmitInFlight = errors.New("submission already in flight")
	// ErrReadOnlyRevision rejects writes while viewing a historical revision.
	ErrReadOnlyRevision = errors.New("revision is read-only")
	// ErrApplyInFlight rejects a workflow action while one is outstanding.
	ErrApplyInFlight = errors.New("transition already in flight")
)

// NetworkError wraps a failed collaborator call. The view stays interactive;
// retry is manual.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }
