package wamp

import (
	"errors"
	"fmt"
)

// ErrProtocolViolation is wrapped by every error reporting data received from
// a router that does not conform to the expected message shape, or that
// refers to a request or subscription the client does not know about.
var ErrProtocolViolation = errors.New("protocol violation")

// ProtocolViolation returns an error wrapping ErrProtocolViolation.
func ProtocolViolation(format string, a ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrProtocolViolation, fmt.Sprintf(format, a...))
}
