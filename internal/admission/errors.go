package admission

import "fmt"

// ErrorKind enumerates the typed failures the admission pipeline can
// short-circuit with (spec §7).
type ErrorKind string

const (
	ErrMissingToken    ErrorKind = "MissingToken"
	ErrInvalidToken    ErrorKind = "InvalidToken"
	ErrExpiredToken    ErrorKind = "ExpiredToken"
	ErrWrongTokenKind  ErrorKind = "WrongTokenKind"
	ErrTenantUnknown   ErrorKind = "TenantUnknown"
	ErrTenantSuspended ErrorKind = "TenantSuspended"
	ErrTenantDeleted   ErrorKind = "TenantDeleted"
	ErrRateLimited     ErrorKind = "RateLimited"
)

// StepError is the typed short-circuit result a pipeline step returns
// instead of raising, per spec §9's "exceptions as control flow" note.
type StepError struct {
	Kind       ErrorKind
	Message    string
	RetryAfter int // seconds; only meaningful for ErrRateLimited
}

func (e *StepError) Error() string {
	return fmt.Sprintf("admission: %s: %s", e.Kind, e.Message)
}

func newStepError(kind ErrorKind, format string, args ...any) *StepError {
	return &StepError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
