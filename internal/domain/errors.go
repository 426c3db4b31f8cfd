package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrRateLimited     = errors.New("rate limited")
	ErrLockHeld        = errors.New("lock already held")
	ErrCycleInProgress = errors.New("cycle already in progress")

	// ErrDataUnavailable reports that market data could not be fetched, was
	// empty, or timed out.
	ErrDataUnavailable = errors.New("market data unavailable")
	// ErrInsufficientHistory reports fewer bars than a computation needs.
	ErrInsufficientHistory = errors.New("insufficient history")
	// ErrStateConflict reports an operation that the current portfolio state
	// does not allow.
	ErrStateConflict = errors.New("portfolio state conflict")

	ErrAtCapacity       = fmt.Errorf("%w: portfolio at capacity", ErrStateConflict)
	ErrAlreadyHeld      = fmt.Errorf("%w: symbol already held", ErrStateConflict)
	ErrInsufficientCash = fmt.Errorf("%w: insufficient cash", ErrStateConflict)
	ErrInvalidRatio     = errors.New("sell ratio must be within (0, 1]")
	ErrInvalidCandidate = errors.New("invalid candidate")
)
