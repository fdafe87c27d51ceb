package store

import "errors"

var (
	// ErrNotFound is returned when a mention does not exist.
	ErrNotFound = errors.New("mention not found")

	// ErrInvalidState is returned when a mention is not in the state an operation requires.
	ErrInvalidState = errors.New("invalid mention state")

	// ErrInvalidSentiment is returned for labels outside positive, negative and neutral.
	ErrInvalidSentiment = errors.New("invalid sentiment label")

	// ErrInvalidPriority is returned for priorities outside 1..4.
	ErrInvalidPriority = errors.New("priority must be between 1 and 4")
)
