package service

import (
	"fmt"
	"time"
)

// ValidationError is terminal. It is raised before any network call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

type TransportError struct {
	Attempt int
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("attempt %d: transport failed: %v", e.Attempt, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// TimeoutError is retried exactly like a TransportError.
type TimeoutError struct {
	Attempt int
	After   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("attempt %d: no response within %s", e.Attempt, e.After)
}

type RateLimitedError struct {
	Reason     string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("submission rejected: %s (retry in %s)", e.Reason, e.RetryAfter.Round(time.Millisecond))
	}
	return "submission rejected: " + e.Reason
}

// PersistenceWarning describes a failed local write. It is logged and
// never returned to callers.
type PersistenceWarning struct {
	Op        string
	VentureID string
	Err       error
}

func (e *PersistenceWarning) Error() string {
	return fmt.Sprintf("local %s of venture %s failed: %v", e.Op, e.VentureID, e.Err)
}

func (e *PersistenceWarning) Unwrap() error {
	return e.Err
}

const (
	reasonInFlight = "a submission is already in flight"
	reasonCooldown = "cooldown"
)
