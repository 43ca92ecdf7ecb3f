package gateway

import (
	"errors"
	"fmt"
)

// ErrUnauthorized means a privileged operation ran without a valid admin
// session; the operation had no partial effect.
var ErrUnauthorized = errors.New("unauthorized")

// ConnectivityError wraps a transport failure: the store was unreachable.
// Retry-able; optimistic state is preserved by the caller.
type ConnectivityError struct {
	Err error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("store unreachable: %v", e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// RejectedError means the store refused the write (validation and the like).
// The sender should mark the optimistic record failed, not drop it.
type RejectedError struct {
	Status int
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("store rejected request (%d): %s", e.Status, e.Reason)
}
