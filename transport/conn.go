package transport

import (
	"errors"
	"sync"

	"github.com/gammazero/wampsub/transport/serialize"
)

// ErrClosed is returned when sending on a connection that has been closed.
var ErrClosed = errors.New("connection closed")

// Conn is a message-oriented connection to a WAMP router.  Each frame holds
// one encoded WAMP message.
//
// SendFrame may be called from one goroutine at a time.  Frames received from
// the router are delivered on the Recv channel in arrival order.  The Recv
// channel is closed when the connection ends, after which Err returns the
// reason, or nil if the connection was closed locally.
type Conn interface {
	// SendFrame writes one frame to the router.
	SendFrame(frame []byte) error

	// Recv returns the channel of frames received from the router.
	Recv() <-chan []byte

	// Err returns the error that ended the connection.  Only valid after
	// the Recv channel is closed.
	Err() error

	// Serialization returns the serialization negotiated for the connection.
	Serialization() serialize.Serialization

	// Close closes the connection.  Safe to call more than once.
	Close() error
}

// connErr holds the first error that ends a connection.
type connErr struct {
	mu  sync.Mutex
	err error
}

func (c *connErr) set(err error) {
	c.mu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.mu.Unlock()
}

func (c *connErr) get() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}
