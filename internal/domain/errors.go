package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrInvalidState      = errors.New("invalid state")
	ErrValidation        = errors.New("validation failed")
)

// NotFoundError names the entity kind and id that did not resolve.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

func (e NotFoundError) Unwrap() error { return ErrNotFound }

// TransitionError carries the legal destinations for the current state so
// callers can offer them.
type TransitionError struct {
	From    TaskStatus
	To      TaskStatus
	Allowed []TaskStatus
}

func (e TransitionError) Error() string {
	return fmt.Sprintf("invalid task status transition %s -> %s; allowed: %s", e.From, e.To, JoinStatuses(e.Allowed))
}

func (e TransitionError) Unwrap() error { return ErrInvalidTransition }

type StateError struct {
	Entity string
	ID     string
	Status string
	Reason string
}

func (e StateError) Error() string {
	return fmt.Sprintf("%s %s %s (status %s)", e.Entity, e.ID, e.Reason, e.Status)
}

func (e StateError) Unwrap() error { return ErrInvalidState }

type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e ValidationError) Unwrap() error { return ErrValidation }

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
