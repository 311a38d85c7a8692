// Package errors defines the typed error kinds the map kernel can raise.
//
// Each kind is its own struct implementing error, mirroring how callers
// are expected to type-assert on specific failures rather than match on
// strings.
package errors

import "fmt"

// InvalidKeyError is returned when set/delete is called with a key that
// is empty, null, or undefined at the public boundary.
type InvalidKeyError struct {
	Key string
}

func (e *InvalidKeyError) Error() string {
	return fmt.Sprintf("invalid key %q: keys must be non-empty", e.Key)
}

// UnknownValueKindError is returned when a wire value carries a "kind"
// the value encoder does not recognize. The containing operation fails
// in its entirety; nothing is applied.
type UnknownValueKindError struct {
	Kind string
}

func (e *UnknownValueKindError) Error() string {
	return fmt.Sprintf("unknown value kind %q", e.Kind)
}

// InvariantViolationError marks a broken kernel invariant: a pending id
// mismatch on ack/resubmit/rollback, a local op observed with no pending
// id, or a local key op arriving out of order under a pending clear. It
// is fatal — the kernel that raises it must be treated as poisoned.
type InvariantViolationError struct {
	Reason string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("invariant violation: %s", e.Reason)
}

// UsageError marks a caller mistake the kernel cannot recover from, such
// as rollback called with metadata that does not match the op it is
// paired with. Fatal, like InvariantViolationError.
type UsageError struct {
	Reason string
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("usage error: %s", e.Reason)
}

// PoisonedError wraps the error that first poisoned a kernel. It is
// returned by every call made after the kernel entered that state.
type PoisonedError struct {
	Cause error
}

func (e *PoisonedError) Error() string {
	return fmt.Sprintf("kernel is poisoned: %v", e.Cause)
}

func (e *PoisonedError) Unwrap() error {
	return e.Cause
}

// IsFatal reports whether err is one of the two kernel-poisoning kinds.
func IsFatal(err error) bool {
	switch err.(type) {
	case *InvariantViolationError, *UsageError:
		return true
	default:
		return false
	}
}
