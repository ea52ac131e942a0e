package transport

import (
	"sync"

	"github.com/gammazero/wampsub/transport/serialize"
)

const linkedQueueSize = 64

// LinkedConns creates two connected Conns.  Frames sent on one appear in the
// Recv of the other.  Closing either one ends the Recv of the other.  This is
// used to run a client session against an in-process router, such as a stub
// router in tests.
func LinkedConns(serialization serialize.Serialization) (Conn, Conn) {
	aToB := make(chan []byte, linkedQueueSize)
	bToA := make(chan []byte, linkedQueueSize)

	a := &localConn{rd: bToA, wr: aToB, closed: make(chan struct{}),
		serialization: serialization}
	b := &localConn{rd: aToB, wr: bToA, closed: make(chan struct{}),
		serialization: serialization}
	a.peer = b
	b.peer = a
	return a, b
}

// localConn implements Conn with channels.
type localConn struct {
	rd <-chan []byte
	wr chan<- []byte

	peer *localConn

	// Serializes senders with closing the write channel.
	mu        sync.Mutex
	closed    chan struct{}
	closeOnce sync.Once

	serialization serialize.Serialization
}

func (p *localConn) Recv() <-chan []byte { return p.rd }

// Err always returns nil, since a linked connection ends only when one side
// closes it.
func (p *localConn) Err() error { return nil }

func (p *localConn) Serialization() serialize.Serialization {
	return p.serialization
}

func (p *localConn) SendFrame(frame []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	select {
	case <-p.closed:
		return ErrClosed
	default:
	}
	select {
	case p.wr <- frame:
		return nil
	case <-p.closed:
	case <-p.peer.closed:
	}
	return ErrClosed
}

// Close closes the outgoing channel, waking any readers waiting on data from
// this side.
func (p *localConn) Close() error {
	p.closeOnce.Do(func() {
		close(p.closed)
		p.mu.Lock()
		close(p.wr)
		p.mu.Unlock()
	})
	return nil
}
