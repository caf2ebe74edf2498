package lead

import (
	"errors"
	"fmt"
)

// ErrDuplicateEmail is reported by stores when the email is already captured.
var ErrDuplicateEmail = errors.New("email already in use")

// ValidationError is raised before any network call for malformed input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid lead: %s", e.Reason)
	}
	return fmt.Sprintf("invalid lead field %s: %s", e.Field, e.Reason)
}

// PersistenceError carries the store's rejection of an insert.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persisting lead: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Duplicate reports whether the store refused the email as already present.
func (e *PersistenceError) Duplicate() bool {
	return errors.Is(e.Err, ErrDuplicateEmail)
}

// NotificationError carries a failed confirmation email. The lead stays persisted.
type NotificationError struct {
	Err error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("sending confirmation: %v", e.Err)
}

func (e *NotificationError) Unwrap() error { return e.Err }

// IsDuplicate reports whether err signals an already captured email.
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicateEmail)
}
