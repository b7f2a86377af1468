// Package shared contains common domain types, errors and events that are
// used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidConfig   = errors.New("invalid configuration")

	// State errors
	ErrInvalidState    = errors.New("invalid state")
	ErrStateTransition = errors.New("invalid state transition")
	ErrImmutable       = errors.New("entity is immutable")
	ErrExpired         = errors.New("expired")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrLockHeld               = errors.New("lock is held by another process")

	// Infrastructure errors
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "season", "ranking", "reward"
	Op      string // Operation that failed, e.g., "Create", "Recalculate"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Season domain errors
var (
	ErrSeasonNotFound      = NewDomainError("season", "Find", ErrNotFound, "season not found")
	ErrActiveSeasonExists  = NewDomainError("season", "Create", ErrAlreadyExists, "an active season already exists")
	ErrNoActiveSeason      = NewDomainError("season", "Resolve", ErrNotFound, "no active season")
	ErrSeasonNotActive     = NewDomainError("season", "CheckStatus", ErrInvalidState, "season is not active")
	ErrSeasonAlreadyEnded  = NewDomainError("season", "End", ErrStateTransition, "season already ended")
	ErrSeasonConfigFrozen  = NewDomainError("season", "UpdateConfig", ErrImmutable, "season config is frozen without an explicit override")
	ErrInvalidSeasonConfig = NewDomainError("season", "Validate", ErrInvalidConfig, "invalid season config")
	ErrInvalidTierBands    = NewDomainError("season", "Validate", ErrInvalidConfig, "tier bands must be contiguous, non-overlapping and start at zero")
)

// Ranking domain errors
var (
	ErrEntryNotFound     = NewDomainError("ranking", "Find", ErrNotFound, "ranking entry not found")
	ErrEntryFrozen       = NewDomainError("ranking", "Update", ErrImmutable, "ranking entry belongs to an ended season")
	ErrScoreBelowBands   = NewDomainError("ranking", "AssignTier", ErrInvalidConfig, "composite score falls below the lowest tier band")
	ErrMalformedSignal   = NewDomainError("ranking", "Aggregate", ErrInvalidEntity, "malformed signal record")
	ErrRecalcInFlight    = NewDomainError("ranking", "Recalculate", ErrLockHeld, "recalculation already in flight for this season")
	ErrRecalcInterrupted = NewDomainError("ranking", "Recalculate", ErrTimeout, "recalculation interrupted before the ranking pass")
)

// Reward domain errors
var (
	ErrRewardNotFound      = NewDomainError("reward", "Find", ErrNotFound, "seasonal reward not found")
	ErrRewardAlreadyExists = NewDomainError("reward", "Grant", ErrAlreadyExists, "reward already granted for this season and creator")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange) ||
		errors.Is(err, ErrInvalidConfig)
}

// IsConflict checks if the error is a concurrency conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConcurrentModification) ||
		errors.Is(err, ErrLockHeld)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStorageUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConcurrentModification)
}
