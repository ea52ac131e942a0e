package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/gammazero/wampsub/stdlog"
	"github.com/gammazero/wampsub/transport/serialize"
)

// rawSocketConn implements Conn over a TCP or unix socket, using the WAMP
// RawSocket framing.
type rawSocketConn struct {
	conn          net.Conn
	serialization serialize.Serialization
	sendLimit     int
	recvLimit     int

	// Used to signal the socket is closed explicitly.
	closed    chan struct{}
	closeOnce sync.Once

	rd chan []byte

	// Frames and PONG replies are written from different goroutines.
	wlock sync.Mutex

	err connErr
	log stdlog.StdLog
}

const (
	// Serializers
	rawsocketJSON    = 1
	rawsocketMsgpack = 2
	// compatibility with crossbar.io router.
	rawsocketCBOR = 3

	// RawSocket header ID.
	magic = 0x7f

	// Frame types in the low 3 bits of the first header byte.
	frameMessage = 0
	framePing    = 1
	framePong    = 2
)

// ConnectRawSocket dials the WAMP router at the specified address, and
// performs the RawSocket handshake.  If a non-nil tlsConfig is given, then
// TLS is used to secure the connection.
//
// The provided Context must be non-nil.  If the context expires before the
// connection is complete, an error is returned.  Once successfully connected,
// any expiration of the context will not affect the connection.
//
// If recvLimit is > 0, then the client will not receive messages with size
// larger than the nearest power of 2 greater than or equal to recvLimit.  If
// recvLimit is <= 0, then the default of 16M is used.
func ConnectRawSocket(ctx context.Context, network, addr string, serialization serialize.Serialization, tlsConfig *tls.Config, logger stdlog.StdLog, recvLimit int) (Conn, error) {
	err := checkNetworkType(network)
	if err != nil {
		return nil, err
	}

	protocol, err := getProtoByte(serialization)
	if err != nil {
		return nil, err
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	if tlsConfig != nil {
		colonPos := strings.LastIndex(addr, ":")
		if colonPos == -1 {
			colonPos = len(addr)
		}
		hostname := addr[:colonPos]

		// If no ServerName, infer ServerName from hostname to connect to.
		if tlsConfig.ServerName == "" {
			// Make a copy to avoid polluting argument.
			c := tlsConfig.Clone()
			c.ServerName = hostname
			tlsConfig = c
		}

		tlsConn := tls.Client(conn, tlsConfig)
		if err = tlsConn.HandshakeContext(ctx); err != nil {
			conn.Close()
			return nil, err
		}
		conn = tlsConn
	}

	// Bound the handshake by the context.
	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()
	rs, err := clientHandshake(conn, logger, protocol, recvLimit)
	close(stop)
	if err != nil {
		conn.Close()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return rs, nil
}

// AcceptRawSocket handles the router side of the handshake on an accepted
// connection, and returns a Conn for it.
func AcceptRawSocket(conn net.Conn, logger stdlog.StdLog, recvLimit int) (Conn, error) {
	rs, err := serverHandshake(conn, logger, recvLimit)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return rs, nil
}

// maxFrameLen is the largest length a 3-byte frame header can hold.  A router
// announcing 2^24 still gets frames of at most this size.
const maxFrameLen = 1<<24 - 1

// newRawSocketConn creates a rawsocket Conn from a socket connection that has
// completed the handshake.
func newRawSocketConn(conn net.Conn, serialization serialize.Serialization, logger stdlog.StdLog, sendLimit, recvLimit int) *rawSocketConn {
	if sendLimit > maxFrameLen {
		sendLimit = maxFrameLen
	}
	rs := &rawSocketConn{
		conn:          conn,
		serialization: serialization,
		sendLimit:     sendLimit,
		recvLimit:     recvLimit,
		closed:        make(chan struct{}),
		rd:            make(chan []byte),
		log:           logger,
	}
	go rs.recvHandler()
	return rs
}

func (rs *rawSocketConn) Recv() <-chan []byte { return rs.rd }

func (rs *rawSocketConn) Err() error { return rs.err.get() }

func (rs *rawSocketConn) Serialization() serialize.Serialization {
	return rs.serialization
}

// SendFrame writes a WAMP message frame.  Frames larger than the limit the
// router announced in the handshake are rejected.
func (rs *rawSocketConn) SendFrame(frame []byte) error {
	select {
	case <-rs.closed:
		return ErrClosed
	default:
	}
	if len(frame) > rs.sendLimit {
		return fmt.Errorf("message size %d exceeds limit of %d", len(frame),
			rs.sendLimit)
	}
	return rs.writeFrame(frameMessage, frame)
}

func (rs *rawSocketConn) writeFrame(frameType byte, b []byte) error {
	lenBytes := intToBytes(len(b))
	header := []byte{frameType, lenBytes[0], lenBytes[1], lenBytes[2]}
	rs.wlock.Lock()
	defer rs.wlock.Unlock()
	if _, err := rs.conn.Write(header); err != nil {
		return fmt.Errorf("error writing header: %w", err)
	}
	if _, err := rs.conn.Write(b); err != nil {
		return fmt.Errorf("error writing message: %w", err)
	}
	return nil
}

// ping sends a PING frame.  The router answers with a PONG carrying the same
// payload, which is read and discarded.
func (rs *rawSocketConn) ping(payload []byte) error {
	select {
	case <-rs.closed:
		return ErrClosed
	default:
	}
	return rs.writeFrame(framePing, payload)
}

// Close closes the socket.  Errors are ignored since the socket may have been
// closed by other side first in response to a goodbye message.
func (rs *rawSocketConn) Close() error {
	rs.closeOnce.Do(func() {
		close(rs.closed)
		rs.conn.Close()
	})
	return nil
}

// recvHandler pulls frames from the socket and pushes them to the read
// channel.
func (rs *rawSocketConn) recvHandler() {
	defer close(rs.rd)
	for {
		frame, err := rs.readFrame()
		if err != nil {
			select {
			case <-rs.closed:
				// Closed explicitly.
			default:
				rs.err.set(err)
				rs.conn.Close()
			}
			return
		}
		if frame == nil {
			continue
		}
		select {
		case rs.rd <- frame:
		case <-rs.closed:
			return
		}
	}
}

// readFrame reads the next frame from the socket.  PING frames are answered
// and PONG frames are discarded, returning a nil frame in both cases.
func (rs *rawSocketConn) readFrame() ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(rs.conn, header[:]); err != nil {
		return nil, err
	}
	length := bytesToInt(header[1:])
	if length > rs.recvLimit {
		return nil, fmt.Errorf("received message size %d exceeds limit of %d",
			length, rs.recvLimit)
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(rs.conn, buf); err != nil {
		return nil, fmt.Errorf("error reading message: %w", err)
	}

	switch header[0] & 0x07 {
	case frameMessage:
		return buf, nil
	case framePing:
		if err := rs.writeFrame(framePong, buf); err != nil {
			return nil, fmt.Errorf("error responding to PING: %w", err)
		}
	case framePong:
	default:
		return nil, fmt.Errorf("unknown frame type %d", header[0]&0x07)
	}
	return nil, nil
}

// clientHandshake handles the client-side of a RawSocket transport handshake.
func clientHandshake(conn net.Conn, logger stdlog.StdLog, protocol byte, recvLimit int) (*rawSocketConn, error) {
	maxRecvLen := fitRecvLimit(recvLimit)

	_, err := conn.Write([]byte{magic, (maxRecvLen&0xf)<<4 | protocol, 0, 0})
	if err != nil {
		return nil, fmt.Errorf("error sending handshake: %s", err)
	}

	var buf [4]byte
	if _, err = io.ReadFull(conn, buf[:]); err != nil {
		return nil, err
	}

	if buf[0] != magic {
		return nil, errors.New("not a rawsocket handshake")
	}

	repSerializer := buf[1] & 0xf
	if repSerializer == 0 {
		errCode := buf[1] >> 4
		switch errCode {
		case 0:
			return nil, errors.New("illegal error code")
		case 1:
			return nil, errors.New("serializer unsupported")
		case 2:
			return nil, errors.New("maximum message length unacceptable")
		case 3:
			return nil, errors.New("use of reserved bits (unsupported feature)")
		case 4:
			return nil, errors.New("maximum connection count reached")
		default:
			return nil, fmt.Errorf("unknown error: %d", errCode)
		}
	}

	if repSerializer != protocol {
		return nil, errors.New("serializer mismatch")
	}
	serialization, _ := getSerialization(protocol)

	sendLimit := byteToLength(buf[1] >> 4)
	recvLimit = byteToLength(maxRecvLen)
	return newRawSocketConn(conn, serialization, logger, sendLimit, recvLimit), nil
}

// serverHandshake handles the server-side of a RawSocket transport handshake.
func serverHandshake(conn net.Conn, logger stdlog.StdLog, recvLimit int) (*rawSocketConn, error) {
	var buf [4]byte
	if _, err := io.ReadFull(conn, buf[:]); err != nil {
		return nil, err
	}

	if buf[0] != magic {
		return nil, errors.New("not a rawsocket handshake")
	}
	if buf[2] != 0 || buf[3] != 0 {
		conn.Write([]byte{magic, byte(0x3 << 4), 0, 0})
		return nil, errors.New("use of reserved bits (unsupported feature)")
	}

	protocol := buf[1] & 0xf
	if protocol == 0 {
		return nil, errors.New("illegal serializer value")
	}
	serialization, err := getSerialization(protocol)
	if err != nil {
		conn.Write([]byte{magic, byte(0x1 << 4), 0, 0})
		return nil, err
	}

	maxRecvLen := fitRecvLimit(recvLimit)

	_, err = conn.Write([]byte{magic, maxRecvLen<<4 | protocol, 0, 0})
	if err != nil {
		return nil, fmt.Errorf("error sending handshake: %s", err)
	}

	sendLimit := byteToLength(buf[1] >> 4)
	recvLimit = byteToLength(maxRecvLen)
	return newRawSocketConn(conn, serialization, logger, sendLimit, recvLimit), nil
}

// fitRecvLimit finds the power of 2 that is greater than or equal to the
// specified receive limit.  This value is returned as the RawSocket transport
// byte representation of this value.
func fitRecvLimit(recvLimit int) byte {
	if recvLimit > 0 {
		for b := byte(0); b < 0xf; b++ {
			if byteToLength(b) >= recvLimit {
				return b
			}
		}
	}
	return 0xf
}

// intToBytes encodes a 24-bit integer into 3 bytes.
func intToBytes(i int) [3]byte {
	return [3]byte{
		byte((i >> 16) & 0xff),
		byte((i >> 8) & 0xff),
		byte(i & 0xff),
	}
}

// bytesToInt decodes a slice of bytes into an int value.
func bytesToInt(b []byte) int {
	var n, shift uint
	for i := len(b) - 1; i >= 0; i-- {
		n |= uint(b[i]) << shift
		shift += 8
	}
	return int(n)
}

// byteToLength returns the value corresponding to a RawSocket length byte.
func byteToLength(b byte) int {
	return int(1 << (b + 9))
}

// checkNetworkType checks for acceptable network types.
func checkNetworkType(network string) error {
	switch network {
	case "tcp", "tcp4", "tcp6", "unix":
	default:
		return errors.New("unsupported network type: " + network)
	}
	return nil
}

// getProtoByte returns the RawSocket byte value for a serialization protocol.
func getProtoByte(serialization serialize.Serialization) (byte, error) {
	switch serialization {
	case serialize.JSON:
		return rawsocketJSON, nil
	case serialize.MSGPACK:
		return rawsocketMsgpack, nil
	case serialize.CBOR:
		return rawsocketCBOR, nil
	default:
		return 0, errors.New("serialization not supported by rawsocket")
	}
}

// getSerialization returns the serialization for a RawSocket byte value.
func getSerialization(protocol byte) (serialize.Serialization, error) {
	switch protocol {
	case rawsocketJSON:
		return serialize.JSON, nil
	case rawsocketMsgpack:
		return serialize.MSGPACK, nil
	case rawsocketCBOR:
		return serialize.CBOR, nil
	}
	return 0, errors.New("serializer unsupported")
}
