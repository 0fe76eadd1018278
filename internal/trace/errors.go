package trace

import (
	"errors"
	"fmt"
)

// Trace-related errors.
var (
	// ErrInvalidMaxHops indicates max hops is out of valid range (1-255)
	ErrInvalidMaxHops = errors.New("max hops must be between 1 and 255")

	// ErrInvalidMaxTimeouts indicates the consecutive timeout limit is out of range
	ErrInvalidMaxTimeouts = errors.New("max consecutive timeouts must be between 1 and 255")

	// ErrInvalidTimeout indicates timeout is too short
	ErrInvalidTimeout = errors.New("timeout must be at least 100ms")

	// ErrConflictingFamily indicates both IPv4 and IPv6 were forced
	ErrConflictingFamily = errors.New("ipv4 and ipv6 cannot both be forced")

	// ErrTargetResolution indicates the target could not be resolved
	ErrTargetResolution = errors.New("could not resolve target hostname")

	// ErrInterrupted indicates the run was cancelled before reaching a terminal state
	ErrInterrupted = errors.New("trace interrupted")

	// ErrProbeFailed indicates the transport failed for a reason other than a timeout
	ErrProbeFailed = errors.New("probe failed")
)

// ResolutionError is returned when a destination cannot be resolved before
// the run starts. No probe is ever sent for such a target.
type ResolutionError struct {
	Target string
	Err    error
}

func (e *ResolutionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", ErrTargetResolution, e.Target)
	}
	return fmt.Sprintf("%s: %s: %v", ErrTargetResolution, e.Target, e.Err)
}

// Unwrap returns the underlying resolver error.
func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrTargetResolution.
func (e *ResolutionError) Is(target error) bool {
	return target == ErrTargetResolution
}
