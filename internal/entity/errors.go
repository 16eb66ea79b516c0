package entity

import (
	"errors"
	"fmt"
)

// Error kinds. Every domain error wraps exactly one of them so callers can
// branch with errors.Is without knowing the specific failure.
var (
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("conflict")
	ErrNotFound   = errors.New("not found")
	ErrDependency = errors.New("dependency unavailable")
)

// Domain errors for audio records and related aggregates.
var (
	ErrInvalidAttribution = fmt.Errorf("%w: exactly one of user or author must be set", ErrValidation)
	ErrInvalidSentenceID  = fmt.Errorf("%w: sentence id must be a positive number", ErrValidation)
	ErrInvalidLicenceID   = fmt.Errorf("%w: licence id is required and must be a non-negative number", ErrValidation)
	ErrInvalidAudioID     = fmt.Errorf("%w: invalid audio id", ErrValidation)
	ErrInvalidOwnerName   = fmt.Errorf("%w: owner name must not be empty", ErrValidation)
	ErrUnknownReference   = fmt.Errorf("%w: referenced sentence or user does not exist", ErrValidation)
	ErrAudioNotFound      = fmt.Errorf("audio %w", ErrNotFound)
	ErrAudioConflict      = fmt.Errorf("%w: sentence already has audio", ErrConflict)
)

// Dependency wraps an infrastructure failure so it is reported as ErrDependency
// while keeping the original cause reachable through errors.Is / errors.As.
func Dependency(op string, err error) error {
	if err == nil {
		return nil
	}
	return &DependencyError{Op: op, Err: err}
}

// DependencyError reports that a collaborator (store, user directory) failed.
type DependencyError struct {
	Op  string
	Err error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, ErrDependency, e.Err)
}

// Is reports ErrDependency as the error kind.
func (e *DependencyError) Is(target error) bool { return target == ErrDependency }

func (e *DependencyError) Unwrap() error { return e.Err }
