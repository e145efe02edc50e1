package action

import "fmt"

// ErrorKind classifies why an action failed. The kind is reported back to
// the acting agent so it can correct itself on retry.
type ErrorKind string

const (
	// ErrUnknownAction means the call named an unregistered action.
	ErrUnknownAction ErrorKind = "unknown_action"
	// ErrInvalidParams means a required parameter was missing or mistyped.
	ErrInvalidParams ErrorKind = "invalid_params"
	// ErrNotFound means the named target does not exist in reach.
	ErrNotFound ErrorKind = "not_found"
	// ErrNotReady means the target exists but cannot be used yet.
	ErrNotReady ErrorKind = "not_ready"
	// ErrConflict means the world state rejected the change.
	ErrConflict ErrorKind = "conflict"
)

// Error is a failed action outcome with a machine-readable kind.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string { return e.Message }

// NewError creates an action error.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
