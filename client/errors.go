package client

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gammazero/wampsub/wamp"
)

var (
	ErrInvalidURL      = errors.New("invalid router url")
	ErrConnection      = errors.New("cannot connect to router")
	ErrDecode          = errors.New("cannot decode payload")
	ErrNotConn         = errors.New("not connected")
	ErrInternalChannel = errors.New("outbound queue closed")
	ErrConnClosed      = errors.New("connection closed")
	ErrJoinRejected    = errors.New("join rejected")
	ErrAlreadyJoined   = errors.New("already joined")
	ErrNotSubscribed   = errors.New("not subscribed to topic")
	ErrReplyTimeout    = errors.New("timeout waiting for reply")
)

// RequestError is returned when the router answers a SUBSCRIBE, UNSUBSCRIBE,
// or acknowledged PUBLISH with an ERROR message.
type RequestError struct {
	// Request is the type of request that failed.
	Request wamp.MessageType
	Err     wamp.URI
	Details wamp.Dict
	Args    wamp.List
	Kwargs  wamp.Dict
}

func newRequestError(msg *wamp.Error) RequestError {
	return RequestError{
		Request: msg.Type,
		Err:     msg.Error,
		Details: msg.Details,
		Args:    msg.Arguments,
		Kwargs:  msg.ArgumentsKw,
	}
}

func (e RequestError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s failed: %s", e.Request, e.Err)
	if len(e.Args) != 0 {
		if s, ok := wamp.AsString(e.Args[0]); ok {
			b.WriteString(": ")
			b.WriteString(s)
		}
	}
	return b.String()
}

// closedError returns the error given to requests that are still waiting when
// the session ends.
func closedError(cause error) error {
	if cause == nil || errors.Is(cause, ErrConnClosed) {
		return ErrConnClosed
	}
	return fmt.Errorf("%w: %s", ErrConnClosed, cause)
}

func unexpectedMsgError(msg wamp.Message, expected wamp.MessageType) error {
	s := fmt.Sprint("received unexpected ", msg.MessageType(),
		" message when expecting ", expected)

	var details wamp.Dict
	var reason string
	switch m := msg.(type) {
	case *wamp.Abort:
		reason = string(m.Reason)
		details = m.Details
	case *wamp.Goodbye:
		reason = string(m.Reason)
		details = m.Details
	}
	var extra []string
	if reason != "" {
		extra = append(extra, reason)
	}
	if len(details) != 0 {
		var ds []string
		for k, v := range details {
			ds = append(ds, fmt.Sprintf("%s=%v", k, v))
		}
		extra = append(extra, strings.Join(ds, " "))
	}
	if len(extra) != 0 {
		s = fmt.Sprint(s, ": ", strings.Join(extra, " "))
	}
	return wamp.ProtocolViolation("%s", s)
}
