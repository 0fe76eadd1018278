package probe

import (
	"errors"
	"net"
)

// Probe-related errors.
var (
	// ErrTimeout indicates the probe timed out waiting for a response
	ErrTimeout = errors.New("probe timeout")

	// ErrPermissionDenied indicates insufficient privileges for ICMP sockets
	ErrPermissionDenied = errors.New("permission denied: ICMP socket requires elevated privileges")

	// ErrInvalidPacket indicates a malformed or unexpected packet was received
	ErrInvalidPacket = errors.New("invalid packet received")

	// ErrSocketClosed indicates the socket has been closed
	ErrSocketClosed = errors.New("socket closed")

	// ErrInvalidTTL indicates the TTL value is out of range
	ErrInvalidTTL = errors.New("TTL must be between 1 and 255")
)

// IsTimeout returns true if the error indicates a timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsPermissionError returns true if the error is a permission error.
func IsPermissionError(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

func isTimeoutError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}
