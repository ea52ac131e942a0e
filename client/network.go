package client

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"strings"

	"github.com/gammazero/wampsub/transport"
	"go.uber.org/zap"
)

// dial connects the transport named by the URL scheme.
//
// For websocket clients, the routerURL has the form "ws://host:port/" or
// "wss://host:port/", for websocket or websocket with TLS respectively.  The
// scheme "http" is interchangeable with "ws" and "https" is interchangeable
// with "wss".  The host:port portion is the same as for a TCP client.
//
// For TCP clients, the router URL has the form "tcp://host:port/" or
// "tcps://host:port/", for TCP socket or TCP socket with TLS respectively.
// If the host is a literal IPv6 address it must be enclosed in square
// brackets, as in "[2001:db8::1]:80".
//
// For Unix socket clients, the routerURL has the form "unix://path".  TLS is
// not used for unix socket.
func (c *Client) dial(ctx context.Context) (transport.Conn, error) {
	logger := zap.NewStdLog(c.cfg.Logger)
	u := c.routerURL

	var conn transport.Conn
	var err error
	var transportType string
	switch u.Scheme {
	case "http", "https", "ws", "wss":
		transportType = "websocket"
		conn, err = transport.ConnectWebsocket(ctx, websocketURL(u),
			c.cfg.Serialization, c.cfg.TlsCfg, c.cfg.Dial, logger, &c.cfg.WsCfg)
	case "tcp":
		transportType = "rawsocket"
		conn, err = transport.ConnectRawSocket(ctx, "tcp", u.Host,
			c.cfg.Serialization, nil, logger, c.cfg.RecvLimit)
	case "tcps":
		transportType = "rawsocket"
		tlsCfg := c.cfg.TlsCfg
		if tlsCfg == nil {
			tlsCfg = &tls.Config{}
		}
		conn, err = transport.ConnectRawSocket(ctx, "tcp", u.Host,
			c.cfg.Serialization, tlsCfg, logger, c.cfg.RecvLimit)
	case "unix":
		transportType = "rawsocket"
		conn, err = transport.ConnectRawSocket(ctx, "unix", unixPath(u),
			c.cfg.Serialization, nil, logger, c.cfg.RecvLimit)
	default:
		err = fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if err != nil {
		return nil, err
	}
	if c.cfg.Registerer != nil {
		conn = transport.Instrument(conn, transport.NewMetrics(c.cfg.Registerer),
			transportType)
	}
	c.cfg.Logger.Debug("connected to router", zap.String("url", u.Redacted()),
		zap.String("transport", transportType),
		zap.Stringer("serialization", c.cfg.Serialization))
	return conn, nil
}

// websocketURL returns the URL with the http schemes replaced by their
// websocket equivalents.
func websocketURL(u *url.URL) string {
	wsURL := *u
	switch u.Scheme {
	case "http":
		wsURL.Scheme = "ws"
	case "https":
		wsURL.Scheme = "wss"
	}
	return wsURL.String()
}

func unixPath(u *url.URL) string {
	return strings.TrimRight(u.Host+u.Path, "/")
}

// CookieURL takes a websocket URL string and outputs a url.URL that can be
// used to retrieve cookies from a http.CookieJar as may be provided in
// Config.WsCfg.Jar.
func CookieURL(routerURL string) (*url.URL, error) {
	u, err := url.Parse(routerURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidURL, err)
	}

	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	case "http", "https":
		// Ok already; do nothing
	default:
		return nil, fmt.Errorf("%w: scheme not valid for websocket: %s",
			ErrInvalidURL, u.Scheme)
	}

	return u, nil
}
