package onboarding

import (
	"errors"
	"fmt"

	"github.com/agentflow/onboarding/pkg/types"
)

// ErrForbidden is returned when the actor may not see or act on an agent.
var ErrForbidden = errors.New("forbidden")

// ValidationError rejects a request before anything is written.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func unknownAgent(id string) error {
	return &ValidationError{Field: "agentId", Reason: fmt.Sprintf("unknown agent %q", id), Err: types.ErrNotFound}
}

// StorageError means a blob, metadata or identity write failed. The step the
// request targeted is not marked complete.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsStorage reports whether err is (or wraps) a StorageError.
func IsStorage(err error) bool {
	var s *StorageError
	return errors.As(err, &s)
}
