package queue

import (
	"errors"

	"github.com/vietddude/interviewer/internal/core/domain"
)

// ErrQuotaExhausted marks a job that failed because every model provider
// is out of quota. Retrying would only burn more quota, so it is terminal.
var ErrQuotaExhausted = errors.New("provider quota exhausted")

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return "permanent: " + e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so the job fails without further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsTerminal reports whether err must not be retried.
func IsTerminal(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe) ||
		errors.Is(err, ErrQuotaExhausted) ||
		errors.Is(err, domain.ErrUnknownJobKind)
}
