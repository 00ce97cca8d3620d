package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound is returned when a session has not been started.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionComplete is returned when a finalized session is acted on.
	ErrSessionComplete = errors.New("session already complete")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrProfileNotFound indicates the user has no stored profile.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrInvalidPerformance rejects malformed performance input.
	ErrInvalidPerformance = errors.New("invalid performance input")
)

func invalidPerformance(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidPerformance, fmt.Sprintf(format, args...))
}
