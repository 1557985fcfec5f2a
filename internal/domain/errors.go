package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by the stores and the HTTP collaborators. Stores
// return these to the caller; transport problems never panic the process.
var (
	ErrNotFound             = errors.New("not found")
	ErrAuthenticationFailed = errors.New("invalid credentials")
)

// ValidationError reports a missing or invalid required field on create.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s is required", e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// TransportError wraps a collaborator that was unreachable or returned an
// unexpected status.
type TransportError struct {
	Op  string
	Err error
}

func (e TransportError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e TransportError) Unwrap() error { return e.Err }
