package commission

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoActiveSettings = errors.New("commission: no active settings")
	ErrVersionNotFound  = errors.New("commission: settings version not found")
	ErrVersionConflict  = errors.New("commission: settings version conflict")
	ErrUnknownPlan      = errors.New("commission: unknown subscription plan")
)

// ValidationError carries every rule a candidate violated.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return "commission: invalid settings: " + strings.Join(e.Errors, "; ")
}

// ConflictError means another activation committed first. Re-read and retry.
type ConflictError struct {
	ExpectedVersion int
	Err             error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("commission: active version changed since version %d was read", e.ExpectedVersion)
}

func (e *ConflictError) Unwrap() error { return e.Err }

// ConfigurationError means no rule can be resolved for a plan and cadence.
// It points at a setup bug, not at bad input.
type ConfigurationError struct {
	PlanID  string
	Cadence Cadence
	Reason  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("commission: no rule for plan %q (%s): %s", e.PlanID, e.Cadence, e.Reason)
}

// PersistenceError wraps a storage failure verbatim.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("commission: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
