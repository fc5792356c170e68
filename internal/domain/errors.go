package domain

import (
	"errors"
	"fmt"
)

// Error categories. Concrete errors below wrap exactly one of them so callers
// can classify with errors.Is.
var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrState      = errors.New("invalid state")
	ErrStore      = errors.New("store error")
	ErrConflict   = errors.New("version conflict")
)

var (
	// ErrSessionNotFound is returned when no session matches an id or join code.
	ErrSessionNotFound = fmt.Errorf("%w: quiz session not found", ErrNotFound)
	// ErrContestantNotFound is returned when a contestant is not on the roster.
	ErrContestantNotFound = fmt.Errorf("%w: contestant not found in session", ErrNotFound)
	// ErrQuestionNotFound indicates a question id that is not in the pool.
	ErrQuestionNotFound = fmt.Errorf("%w: question not found", ErrNotFound)
	// ErrGameNotFound is returned when no game show or self-paced quiz is stored.
	ErrGameNotFound = fmt.Errorf("%w: no game in progress", ErrNotFound)

	ErrPoolNotLoaded       = fmt.Errorf("%w: no question pool loaded", ErrValidation)
	ErrEmptyTitle          = fmt.Errorf("%w: title is required", ErrValidation)
	ErrEmptyName           = fmt.Errorf("%w: name is required", ErrValidation)
	ErrInvalidQuestion     = fmt.Errorf("%w: invalid question", ErrValidation)
	ErrInvalidOption       = fmt.Errorf("%w: option index out of range", ErrValidation)
	ErrQuestionUnavailable = fmt.Errorf("%w: question already answered or out of range", ErrValidation)
	ErrContestantCount     = fmt.Errorf("%w: game show needs between 2 and 8 contestants", ErrValidation)

	ErrSessionFinished   = fmt.Errorf("%w: session already finished", ErrState)
	ErrSessionNotWaiting = fmt.Errorf("%w: session is not waiting", ErrState)
	ErrSessionNotActive  = fmt.Errorf("%w: session is not active", ErrState)
	ErrWrongPhase        = fmt.Errorf("%w: action not allowed in current phase", ErrState)
	ErrQuizCompleted     = fmt.Errorf("%w: quiz already completed", ErrState)
)

// StoreError wraps a backend failure for the given operation and key.
func StoreError(op, key string, err error) error {
	return fmt.Errorf("%w: %s %q: %w", ErrStore, op, key, err)
}
