package decision

import "errors"

// ErrContext is returned when Decide is invoked without the required
// host context (session manager, cwd). It is always surfaced, never
// folded into a baseline fallback.
var ErrContext = errors.New("readcache: decision requires a host context")

// ErrAborted is returned, uniformly, whenever the cancellation signal
// fires at any of the documented suspension points. Callers receive no
// partial result.
var ErrAborted = errors.New("readcache: aborted")

// ValidationError is surfaced (never fail-open) for a malformed
// explicit range or an out-of-bounds offset.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "readcache: validation error: " + e.Reason
}

func errValidation(reason string) error {
	return &ValidationError{Reason: reason}
}
