package client

import (
	"crypto/tls"
	"time"

	"github.com/gammazero/wampsub/transport"
	"github.com/gammazero/wampsub/transport/serialize"
	"github.com/gammazero/wampsub/wamp"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Time client will wait for expected router response if not specified.
const defaultResponseTimeout = 5 * time.Second

// Config configures a client with everything needed to begin a session
// with a WAMP router.
type Config struct {
	// HelloDetails contains details about the client.  The client provides the
	// roles, unless already supplied by the user.
	HelloDetails wamp.Dict

	// ResponseTimeout specifies the amount of time that the client will block
	// waiting for a response from the router.  A value of 0 uses the default.
	ResponseTimeout time.Duration

	// Set to JSON, MSGPACK, or CBOR.  Default (zero-value) is JSON.
	Serialization serialize.Serialization

	// Provide a tls.Config to connect the client using TLS.  The zero
	// configuration specifies using defaults.  A nil tls.Config means do not
	// use TLS, unless the router URL scheme requires it.
	TlsCfg *tls.Config

	// Dial is an alternate dial function for the websocket transport.
	Dial transport.DialFunc

	// Client receive limit for use with RawSocket transport.
	// If recvLimit is > 0, then the client will not receive messages with size
	// larger than the nearest power of 2 greater than or equal to recvLimit.
	// If recvLimit is <= 0, then the default of 16M is used.
	RecvLimit int

	// Websocket transport configuration.
	WsCfg transport.WebsocketConfig

	// Logger for client to use.  If not set, nothing is logged.
	Logger *zap.Logger

	// Registerer, if set, is where the client and transport metrics are
	// registered.
	Registerer prometheus.Registerer

	// ProtocolViolationHandler, if set, is called with every protocol
	// violation found in data received from the router.  It is called from
	// the goroutine that reads from the router, and must not block.
	ProtocolViolationHandler func(error)
}

func (cfg Config) withDefaults() Config {
	if cfg.ResponseTimeout == 0 {
		cfg.ResponseTimeout = defaultResponseTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return cfg
}
