/*
Package client provides a WAMP client that publishes events to topics and
subscribes to topics on a WAMP router.

A Client holds the router address and realm.  Connect dials the router and
returns a Session that has joined the realm:

	c, err := client.New("ws://localhost:8080/ws", "realm1", client.Config{})
	if err != nil {
		return err
	}
	sess, err := c.Connect(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	err = sess.Subscribe(ctx, "com.example.topic", func(ev *client.Event) {
		var msg struct {
			_struct bool `codec:",toarray"`
			Count   int
			Text    string
		}
		if err := ev.DecodeArgs(&msg); err != nil {
			return
		}
		fmt.Println(msg.Count, msg.Text)
	}, nil)

	err = sess.Publish("com.example.topic", nil,
		wamp.Seq{wamp.Int(42), wamp.String("hi")}, nil)

A Session can also be created over any transport.Conn with NewSession.
*/
package client

import (
	"context"
	"fmt"
	"net/url"
)

// Client connects to one router and realm.  A Client may be used to connect
// any number of sessions.
type Client struct {
	routerURL *url.URL
	realm     string
	cfg       Config
}

// New returns a Client for the router at routerURL.  The URL is checked, but
// nothing is dialed until Connect is called.
//
// Returns an error wrapping ErrInvalidURL if the URL cannot be parsed, has no
// address, or has a scheme that is not supported.
func New(routerURL, realm string, cfg Config) (*Client, error) {
	u, err := url.Parse(routerURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidURL, err)
	}
	switch u.Scheme {
	case "ws", "wss", "http", "https", "tcp", "tcps":
		if u.Host == "" {
			return nil, fmt.Errorf("%w: missing host: %s", ErrInvalidURL, routerURL)
		}
	case "unix":
		if unixPath(u) == "" {
			return nil, fmt.Errorf("%w: missing path: %s", ErrInvalidURL, routerURL)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	return &Client{
		routerURL: u,
		realm:     realm,
		cfg:       cfg.withDefaults(),
	}, nil
}

// Connect connects to the router, and joins the client's realm.
//
// Returns an error wrapping ErrConnection if the router cannot be reached or
// the transport handshake fails.  If the join fails, the session is closed
// and the join error returned.
func (c *Client) Connect(ctx context.Context) (*Session, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}
	sess, err := NewSession(conn, c.cfg)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err = sess.Join(ctx, c.realm); err != nil {
		sess.Close()
		<-sess.Done()
		return nil, err
	}
	return sess, nil
}

// Realm returns the realm that sessions join.
func (c *Client) Realm() string { return c.realm }
