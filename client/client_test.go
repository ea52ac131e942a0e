package client

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gammazero/wampsub/transport"
	"github.com/gammazero/wampsub/transport/serialize"
	"github.com/gammazero/wampsub/wamp"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// serveRouter runs a minimal broker for one session on conn.  Events are
// delivered to the publishing session itself.  It returns when the session
// says goodbye or the connection ends.
func serveRouter(conn transport.Conn) {
	defer conn.Close()
	ser := conn.Serialization().NewSerializer()
	send := func(msg wamp.Message) {
		if b, err := ser.Serialize(msg); err == nil {
			conn.SendFrame(b)
		}
	}
	subs := map[wamp.URI]wamp.ID{}
	for b := range conn.Recv() {
		msg, err := ser.Deserialize(b)
		if err != nil {
			return
		}
		switch msg := msg.(type) {
		case *wamp.Hello:
			if msg.Realm != testRealm {
				send(&wamp.Abort{Details: wamp.Dict{}, Reason: wamp.ErrNoSuchRealm})
				return
			}
			send(&wamp.Welcome{ID: testSessionID, Details: wamp.Dict{}})
		case *wamp.Subscribe:
			subID := wamp.ID(1000 + msg.Request)
			subs[msg.Topic] = subID
			send(&wamp.Subscribed{Request: msg.Request, Subscription: subID})
		case *wamp.Publish:
			if subID, ok := subs[msg.Topic]; ok {
				send(&wamp.Event{
					Subscription: subID,
					Publication:  wamp.ID(2000 + msg.Request),
					Details:      wamp.Dict{},
					Arguments:    msg.Arguments,
					ArgumentsKw:  msg.ArgumentsKw,
				})
			}
		case *wamp.Goodbye:
			send(&wamp.Goodbye{Details: wamp.Dict{}, Reason: wamp.CloseGoodbyeAndOut})
			return
		}
	}
}

func testConfig(t *testing.T) Config {
	return Config{
		ResponseTimeout: time.Second,
		Logger:          zaptest.NewLogger(t),
	}
}

// pubSub subscribes to a topic, publishes to it, and checks that the event
// comes back.
func pubSub(t *testing.T, sess *Session) {
	ctx := context.Background()
	events := make(chan *Event, 1)
	err := sess.Subscribe(ctx, testTopic, func(ev *Event) { events <- ev }, nil)
	require.NoError(t, err)

	err = sess.Publish(testTopic, nil, wamp.Seq{wamp.Int(42), wamp.String("yup")},
		wamp.Map{"color": wamp.String("orange")})
	require.NoError(t, err)

	ev := recvEvent(t, events)
	require.Equal(t, testTopic, ev.Topic)
	var p pair
	require.NoError(t, ev.DecodeArgs(&p))
	require.Equal(t, uint32(42), p.N)
	require.Equal(t, "yup", p.S)
	var kw struct {
		Color string `codec:"color"`
	}
	require.NoError(t, ev.DecodeKwargs(&kw))
	require.Equal(t, "orange", kw.Color)
}

func TestNewInvalidURL(t *testing.T) {
	for _, u := range []string{
		"://no.scheme",
		"ftp://localhost:21",
		"ws://",
		"tcp:///path/only",
		"unix://",
		"localhost:8080",
	} {
		_, err := New(u, testRealm, Config{})
		require.ErrorIs(t, err, ErrInvalidURL, u)
	}

	for _, u := range []string{
		"ws://localhost:8080/ws",
		"wss://localhost:8443/ws",
		"http://localhost:8080/ws",
		"https://localhost:8443/ws",
		"tcp://127.0.0.1:8081",
		"tcps://[::1]:8081",
		"unix:///tmp/router.sock",
	} {
		c, err := New(u, testRealm, Config{})
		require.NoError(t, err, u)
		require.Equal(t, testRealm, c.Realm())
	}
}

func TestConnectWebsocket(t *testing.T) {
	checkGoLeaks(t)

	for _, ser := range []serialize.Serialization{serialize.JSON, serialize.MSGPACK} {
		upgrader := websocket.Upgrader{Subprotocols: []string{ser.Subprotocol()}}
		s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ws, err := upgrader.Upgrade(w, req, nil)
			if err != nil {
				return
			}
			serveRouter(transport.NewWebsocketConn(ws, ser, zap.NewStdLog(zap.NewNop())))
		}))

		cfg := testConfig(t)
		cfg.Serialization = ser
		// Exercises the http to ws scheme mapping.
		c, err := New(s.URL+"/ws", testRealm, cfg)
		require.NoError(t, err)
		sess, err := c.Connect(context.Background())
		require.NoError(t, err, ser)
		require.Equal(t, Established, sess.State())
		require.Equal(t, wamp.ID(testSessionID), sess.ID())

		pubSub(t, sess)

		require.NoError(t, sess.Close())
		require.NoError(t, sess.Err())
		s.Close()
	}
}

func TestConnectRawSocket(t *testing.T) {
	checkGoLeaks(t)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	go func() {
		nc, err := l.Accept()
		if err != nil {
			return
		}
		conn, err := transport.AcceptRawSocket(nc, zap.NewStdLog(zap.NewNop()), 0)
		if err != nil {
			return
		}
		serveRouter(conn)
	}()

	reg := prometheus.NewRegistry()
	cfg := testConfig(t)
	cfg.Serialization = serialize.CBOR
	cfg.Registerer = reg
	c, err := New("tcp://"+l.Addr().String(), testRealm, cfg)
	require.NoError(t, err)
	sess, err := c.Connect(context.Background())
	require.NoError(t, err)

	pubSub(t, sess)
	require.NoError(t, sess.Close())
	require.NoError(t, sess.Err())

	n, err := testutil.GatherAndCount(reg, "wampsub_transport_frames_outgoing_total",
		"wampsub_client_messages_sent_total")
	require.NoError(t, err)
	require.NotZero(t, n)
}

func TestConnectUnix(t *testing.T) {
	checkGoLeaks(t)

	path := filepath.Join(t.TempDir(), "router.sock")
	l, err := net.Listen("unix", path)
	require.NoError(t, err)
	defer l.Close()
	go func() {
		nc, err := l.Accept()
		if err != nil {
			return
		}
		conn, err := transport.AcceptRawSocket(nc, zap.NewStdLog(zap.NewNop()), 0)
		if err != nil {
			return
		}
		serveRouter(conn)
	}()

	c, err := New("unix://"+path, testRealm, testConfig(t))
	require.NoError(t, err)
	sess, err := c.Connect(context.Background())
	require.NoError(t, err)
	require.Equal(t, Established, sess.State())
	require.NoError(t, sess.Close())
	require.NoError(t, sess.Err())
}

func TestConnectJoinRejected(t *testing.T) {
	checkGoLeaks(t)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	go func() {
		nc, err := l.Accept()
		if err != nil {
			return
		}
		conn, err := transport.AcceptRawSocket(nc, zap.NewStdLog(zap.NewNop()), 0)
		if err != nil {
			return
		}
		serveRouter(conn)
	}()

	c, err := New("tcp://"+l.Addr().String(), "no.such.realm", testConfig(t))
	require.NoError(t, err)
	_, err = c.Connect(context.Background())
	require.ErrorIs(t, err, ErrJoinRejected)
}

func TestConnectError(t *testing.T) {
	checkGoLeaks(t)

	// Nothing listening.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	l.Close()

	c, err := New("tcp://"+addr, testRealm, testConfig(t))
	require.NoError(t, err)
	_, err = c.Connect(context.Background())
	require.ErrorIs(t, err, ErrConnection)

	c, err = New("ws://"+addr+"/ws", testRealm, testConfig(t))
	require.NoError(t, err)
	_, err = c.Connect(context.Background())
	require.ErrorIs(t, err, ErrConnection)
}

func TestConnectSubprotocolMismatch(t *testing.T) {
	checkGoLeaks(t)

	upgrader := websocket.Upgrader{Subprotocols: []string{serialize.CBOR.Subprotocol()}}
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ws, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			return
		}
		ws.Close()
	}))
	defer s.Close()

	c, err := New("ws"+strings.TrimPrefix(s.URL, "http"), testRealm, testConfig(t))
	require.NoError(t, err)
	_, err = c.Connect(context.Background())
	require.ErrorIs(t, err, ErrConnection)
	require.ErrorIs(t, err, transport.ErrSubprotocol)
}

func TestCookieURL(t *testing.T) {
	u, err := CookieURL("ws://localhost:8080/ws")
	require.NoError(t, err)
	require.Equal(t, "http", u.Scheme)

	u, err = CookieURL("wss://localhost:8443/ws")
	require.NoError(t, err)
	require.Equal(t, "https", u.Scheme)

	_, err = CookieURL("tcp://localhost:8081")
	require.ErrorIs(t, err, ErrInvalidURL)
}
