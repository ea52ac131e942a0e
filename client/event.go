package client

import (
	"fmt"

	"github.com/gammazero/wampsub/transport/serialize"
	"github.com/gammazero/wampsub/wamp"
)

// EventHandler is a function that handles a publish event.  Handlers for a
// session run one at a time, in the order events arrive.
type EventHandler func(*Event)

// Event is a publication received for a subscription.
//
// The positional and keyword arguments are kept in the generic form the
// serializer produced, until a handler decodes them with DecodeArgs or
// DecodeKwargs, or converts them with ArgValues or KwargValues.
type Event struct {
	Topic        string
	Subscription wamp.ID
	Publication  wamp.ID
	Details      wamp.Dict

	args   wamp.List
	kwargs wamp.Dict
}

func newEvent(topic string, msg *wamp.Event) *Event {
	return &Event{
		Topic:        topic,
		Subscription: msg.Subscription,
		Publication:  msg.Publication,
		Details:      msg.Details,
		args:         msg.Arguments,
		kwargs:       msg.ArgumentsKw,
	}
}

// Args returns the positional arguments as received.  Returns nil if the
// event has none.
func (e *Event) Args() wamp.List { return e.args }

// Kwargs returns the keyword arguments as received.  Returns nil if the
// event has none.
func (e *Event) Kwargs() wamp.Dict { return e.kwargs }

// DecodeArgs decodes the positional arguments into the value pointed to by v.
// A struct tagged `codec:",toarray"` receives the arguments by position.
//
// Returns an error wrapping ErrDecode if the event has no positional
// arguments, or if they do not fit v.
func (e *Event) DecodeArgs(v interface{}) error {
	if e.args == nil {
		return fmt.Errorf("%w: event has no positional arguments", ErrDecode)
	}
	if err := serialize.Decode(e.args, v); err != nil {
		return fmt.Errorf("%w: args: %s", ErrDecode, err)
	}
	return nil
}

// DecodeKwargs decodes the keyword arguments into the value pointed to by v.
//
// Returns an error wrapping ErrDecode if the event has no keyword arguments,
// or if they do not fit v.
func (e *Event) DecodeKwargs(v interface{}) error {
	if e.kwargs == nil {
		return fmt.Errorf("%w: event has no keyword arguments", ErrDecode)
	}
	if err := serialize.Decode(e.kwargs, v); err != nil {
		return fmt.Errorf("%w: kwargs: %s", ErrDecode, err)
	}
	return nil
}

// ArgValues returns the positional arguments as Values.
func (e *Event) ArgValues() (wamp.Seq, error) {
	if e.args == nil {
		return nil, fmt.Errorf("%w: event has no positional arguments", ErrDecode)
	}
	seq, err := wamp.SeqOf(e.args)
	if err != nil {
		return nil, fmt.Errorf("%w: args: %s", ErrDecode, err)
	}
	return seq, nil
}

// KwargValues returns the keyword arguments as Values.
func (e *Event) KwargValues() (wamp.Map, error) {
	if e.kwargs == nil {
		return nil, fmt.Errorf("%w: event has no keyword arguments", ErrDecode)
	}
	m, err := wamp.MapOf(e.kwargs)
	if err != nil {
		return nil, fmt.Errorf("%w: kwargs: %s", ErrDecode, err)
	}
	return m, nil
}
