package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gammazero/wampsub/stdlog"
	"github.com/gammazero/wampsub/transport/serialize"
	"github.com/gorilla/websocket"
)

const ctrlTimeout = 5 * time.Second

// ErrSubprotocol is returned when the router does not accept the requested
// websocket subprotocol.
var ErrSubprotocol = errors.New("router did not accept subprotocol")

// DialFunc is an alternate dial function for the websocket transport.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// WebsocketConfig is used to configure client websocket settings.
type WebsocketConfig struct {
	// Request per message write compression, if allowed by server.
	EnableCompression bool `json:"enable_compression"`

	// If provided when configuring websocket client, cookies from server are
	// put in here.  This allows cookies to be stored and then sent back to the
	// server in subsequent websocket connections.
	Jar http.CookieJar

	// Header is sent with the websocket upgrade request.
	Header http.Header

	// ProxyURL is an optional URL of the proxy to use for websocket requests.
	// If not defined, the proxy defined by the environment is used if
	// defined.
	ProxyURL string

	// KeepAlive, if non-zero, is the interval at which to send a websocket
	// ping.  The connection is ended if nothing is read from the router for
	// twice that long.
	KeepAlive time.Duration
}

// websocketConn implements Conn over a gorilla websocket.
type websocketConn struct {
	conn          *websocket.Conn
	serialization serialize.Serialization
	payloadType   int

	// Used to signal the websocket is closed.
	closed    chan struct{}
	closeOnce sync.Once

	rd chan []byte

	// gorilla allows one concurrent writer.
	wlock sync.Mutex

	err connErr
	log stdlog.StdLog
}

// ConnectWebsocket dials the websocket server at the specified URL, requesting
// the WAMP subprotocol for the given serialization.  If the router does not
// select that subprotocol, the connection is closed and an error wrapping
// ErrSubprotocol is returned.
//
// The context bounds the handshake only.  Once connected, expiration of the
// context does not affect the connection.
func ConnectWebsocket(ctx context.Context, routerURL string, serialization serialize.Serialization, tlsConfig *tls.Config, dial DialFunc, logger stdlog.StdLog, wsCfg *WebsocketConfig) (Conn, error) {
	if serialization.NewSerializer() == nil {
		return nil, fmt.Errorf("unsupported serialization: %v", serialization)
	}
	protocol := serialization.Subprotocol()

	dialer := websocket.Dialer{
		Subprotocols:    []string{protocol},
		TLSClientConfig: tlsConfig,
		Proxy:           http.ProxyFromEnvironment,
		NetDialContext:  dial,
	}
	var header http.Header
	var keepAlive time.Duration
	if wsCfg != nil {
		if wsCfg.ProxyURL != "" {
			proxyURL, err := url.Parse(wsCfg.ProxyURL)
			if err != nil {
				return nil, err
			}
			dialer.Proxy = http.ProxyURL(proxyURL)
		}
		dialer.Jar = wsCfg.Jar
		dialer.EnableCompression = wsCfg.EnableCompression
		header = wsCfg.Header
		keepAlive = wsCfg.KeepAlive
	}

	conn, rsp, err := dialer.DialContext(ctx, routerURL, header)
	if err != nil {
		return nil, err
	}
	if rsp != nil && rsp.Body != nil {
		rsp.Body.Close()
	}
	if conn.Subprotocol() != protocol {
		conn.Close()
		return nil, fmt.Errorf("%w: requested %s, got %q", ErrSubprotocol,
			protocol, conn.Subprotocol())
	}
	return newWebsocketConn(conn, serialization, logger, keepAlive), nil
}

// NewWebsocketConn creates a Conn from an existing websocket connection, such
// as one accepted by a websocket.Upgrader.
func NewWebsocketConn(conn *websocket.Conn, serialization serialize.Serialization, logger stdlog.StdLog) Conn {
	return newWebsocketConn(conn, serialization, logger, 0)
}

func newWebsocketConn(conn *websocket.Conn, serialization serialize.Serialization, logger stdlog.StdLog, keepAlive time.Duration) *websocketConn {
	payloadType := websocket.TextMessage
	if serialization.IsBinary() {
		payloadType = websocket.BinaryMessage
	}
	w := &websocketConn{
		conn:          conn,
		serialization: serialization,
		payloadType:   payloadType,
		closed:        make(chan struct{}),
		rd:            make(chan []byte),
		log:           logger,
	}
	if keepAlive != 0 {
		w.startKeepAlive(keepAlive)
	}
	go w.recvHandler()
	return w
}

func (w *websocketConn) Recv() <-chan []byte { return w.rd }

func (w *websocketConn) Err() error { return w.err.get() }

func (w *websocketConn) Serialization() serialize.Serialization {
	return w.serialization
}

func (w *websocketConn) SendFrame(frame []byte) error {
	select {
	case <-w.closed:
		return ErrClosed
	default:
	}
	w.wlock.Lock()
	defer w.wlock.Unlock()
	return w.conn.WriteMessage(w.payloadType, frame)
}

// Close sends a close control message to the router, and closes the socket.
func (w *websocketConn) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.closed)
		closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure,
			"goodbye")
		werr := w.conn.WriteControl(websocket.CloseMessage, closeMsg,
			time.Now().Add(ctrlTimeout))
		if werr != nil && !errors.Is(werr, websocket.ErrCloseSent) {
			w.log.Println("error sending close message:", werr)
		}
		err = w.conn.Close()
	})
	return err
}

// startKeepAlive sends a ping every interval, and expects to read something
// from the router within twice that time.
func (w *websocketConn) startKeepAlive(interval time.Duration) {
	w.conn.SetReadDeadline(time.Now().Add(2 * interval))
	w.conn.SetPongHandler(func(string) error {
		return w.conn.SetReadDeadline(time.Now().Add(2 * interval))
	})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				err := w.conn.WriteControl(websocket.PingMessage, nil,
					time.Now().Add(ctrlTimeout))
				if err != nil {
					return
				}
			case <-w.closed:
				return
			}
		}
	}()
}

// recvHandler pulls frames from the websocket and pushes them to the read
// channel.
func (w *websocketConn) recvHandler() {
	defer close(w.rd)
	for {
		_, b, err := w.conn.ReadMessage()
		if err != nil {
			select {
			case <-w.closed:
				// Closed locally.
			default:
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure,
					websocket.CloseGoingAway) {
					w.log.Println("error reading from router:", err)
				}
				w.err.set(err)
				w.conn.Close()
			}
			return
		}
		select {
		case w.rd <- b:
		case <-w.closed:
			return
		}
	}
}
