package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gammazero/wampsub/transport"
	"github.com/gammazero/wampsub/transport/serialize"
	"github.com/gammazero/wampsub/wamp"
	"go.uber.org/zap"
)

// State is the lifecycle state of a session.
type State int32

const (
	NotConnected State = iota
	Joining
	Established
	// Closed is terminal.  No operation moves a session out of it.
	Closed
)

func (s State) String() string {
	switch s {
	case NotConnected:
		return "NotConnected"
	case Joining:
		return "Joining"
	case Established:
		return "Established"
	case Closed:
		return "Closed"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// outFrame is an encoded message waiting to be sent.
type outFrame struct {
	frame      []byte
	msgType    wamp.MessageType
	goodbyeAck bool
}

// delivery is an event and the handlers to run for it.
type delivery struct {
	handlers []EventHandler
	event    *Event
}

// Session is a WAMP session with a router, running over one transport
// connection.  All methods are safe to call from multiple goroutines.
//
// Messages are sent to the router in the order they are queued, and messages
// from the router are handled in the order they arrive.  Event handlers run
// one at a time on their own goroutine, so a slow handler delays other events
// but never the handling of router replies.
type Session struct {
	conn       transport.Conn
	serializer serialize.Serializer
	cfg        Config
	log        *zap.Logger
	metrics    *sessionMetrics
	idGen      wamp.SyncIDGen

	outbound *queue[outFrame]
	events   *queue[delivery]
	reg      *registry

	mu           sync.Mutex
	state        State
	id           wamp.ID
	realmDetails wamp.Dict
	err          error
	goodbyeSent  bool

	joinReply chan wamp.Message
	goodbye   chan struct{}

	closing   chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
	done      chan struct{}
}

// NewSession starts a session over the connection.  The session is not
// attached to a realm until Join is called.
//
// The session owns the connection from here on, and closes it when the
// session ends.
func NewSession(conn transport.Conn, cfg Config) (*Session, error) {
	serializer := conn.Serialization().NewSerializer()
	if serializer == nil {
		return nil, fmt.Errorf("unsupported serialization: %v", conn.Serialization())
	}
	cfg = cfg.withDefaults()
	s := &Session{
		conn:       conn,
		serializer: serializer,
		cfg:        cfg,
		log:        cfg.Logger,
		metrics:    newSessionMetrics(cfg.Registerer),
		outbound:   newQueue[outFrame](),
		events:     newQueue[delivery](),
		reg:        newRegistry(),
		joinReply:  make(chan wamp.Message, 1),
		goodbye:    make(chan struct{}, 1),
		closing:    make(chan struct{}),
		done:       make(chan struct{}),
	}
	s.wg.Add(3)
	go s.sendLoop()
	go s.recvLoop()
	go s.eventLoop()
	return s, nil
}

// Join attaches the session to a realm.  It sends HELLO and waits for the
// router to answer with WELCOME.
//
// If the router answers with ABORT, or asks for authentication, the session
// is closed and an error wrapping ErrJoinRejected is returned.  If no answer
// comes within the response timeout, or ctx is done first, the session is
// closed.
func (s *Session) Join(ctx context.Context, realm string) error {
	if !wamp.URI(realm).ValidURI(false, wamp.MatchExact) {
		return fmt.Errorf("invalid realm: %q", realm)
	}
	s.mu.Lock()
	switch s.state {
	case Closed:
		s.mu.Unlock()
		return ErrNotConn
	case Joining, Established:
		s.mu.Unlock()
		return ErrAlreadyJoined
	}
	s.state = Joining
	s.mu.Unlock()

	hello := &wamp.Hello{
		Realm:   wamp.URI(realm),
		Details: helloDetails(s.cfg.HelloDetails),
	}
	if err := s.send(hello); err != nil {
		return err
	}

	timer := time.NewTimer(s.cfg.ResponseTimeout)
	defer timer.Stop()

	var msg wamp.Message
	select {
	case msg = <-s.joinReply:
	case <-s.closing:
		return closedError(s.Err())
	case <-ctx.Done():
		s.terminate(ctx.Err())
		return ctx.Err()
	case <-timer.C:
		err := fmt.Errorf("%w: no WELCOME from router", ErrReplyTimeout)
		s.terminate(err)
		return err
	}

	switch msg := msg.(type) {
	case *wamp.Welcome:
		s.log.Info("joined realm", zap.String("realm", realm),
			zap.Uint64("session", uint64(msg.ID)))
		return nil
	case *wamp.Abort:
		err := fmt.Errorf("%w: %s", ErrJoinRejected, msg.Reason)
		s.terminate(err)
		return err
	case *wamp.Challenge:
		s.send(&wamp.Abort{Details: wamp.Dict{}, Reason: wamp.ErrNoAuthMethod})
		err := fmt.Errorf("%w: authentication method %q not supported",
			ErrJoinRejected, msg.AuthMethod)
		s.terminate(err)
		return err
	}
	err := unexpectedMsgError(msg, wamp.WELCOME)
	s.terminate(err)
	return err
}

// Publish publishes an event to the topic.
//
// Publish returns once the PUBLISH message is queued for sending.  If the
// options set "acknowledge" to true, Publish instead waits for the router to
// confirm the publication, and returns a RequestError if the router rejects
// it.
func (s *Session) Publish(topic string, options wamp.Dict, args wamp.Seq, kwargs wamp.Map) error {
	if err := s.checkEstablished(); err != nil {
		return err
	}
	id := s.idGen.Next()
	msg := &wamp.Publish{
		Request:     id,
		Options:     options,
		Topic:       wamp.URI(topic),
		Arguments:   args.List(),
		ArgumentsKw: kwargs.Dict(),
	}

	if !wamp.OptionFlag(options, wamp.OptAcknowledge) {
		return s.send(msg)
	}

	p := &pending{id: id, kind: wamp.PUBLISH}
	if err := s.addRequest(p); err != nil {
		return err
	}
	if err := s.send(msg); err != nil {
		return err
	}
	reply, err := s.waitReply(context.Background(), p)
	if err != nil {
		return err
	}
	switch reply := reply.(type) {
	case *wamp.Published:
		return nil
	case *wamp.Error:
		return newRequestError(reply)
	}
	return unexpectedMsgError(reply, wamp.PUBLISHED)
}

// Subscribe subscribes the session to the topic, and calls fn for every event
// published to it.
//
// If the router confirms with a subscription the session already has, fn is
// added to its handlers, which run in the order they were added.  Subscribing
// to a topic again with a different match policy makes a separate
// subscription, and fn only gets that subscription's events.
//
// Subscribe waits for the router to confirm the subscription, for the
// response timeout to pass, or for ctx to be done, whichever is first.  If
// the caller stops waiting before the router confirms, the subscription is
// removed when the confirmation arrives.
func (s *Session) Subscribe(ctx context.Context, topic string, fn EventHandler, options wamp.Dict) error {
	if fn == nil {
		return errors.New("nil event handler")
	}
	if err := s.checkEstablished(); err != nil {
		return err
	}
	id := s.idGen.Next()
	p := &pending{
		id:      id,
		kind:    wamp.SUBSCRIBE,
		topic:   topic,
		handler: fn,
	}
	// Must be in the table before the request can be answered.
	if err := s.addRequest(p); err != nil {
		return err
	}
	err := s.send(&wamp.Subscribe{
		Request: id,
		Options: options,
		Topic:   wamp.URI(topic),
	})
	if err != nil {
		return err
	}
	reply, err := s.waitReply(ctx, p)
	if err != nil {
		return err
	}
	switch reply := reply.(type) {
	case *wamp.Subscribed:
		s.log.Debug("subscribed", zap.String("topic", topic),
			zap.Uint64("subscription", uint64(reply.Subscription)))
		return nil
	case *wamp.Error:
		return newRequestError(reply)
	}
	return unexpectedMsgError(reply, wamp.SUBSCRIBED)
}

// Unsubscribe removes every subscription to the topic, and all of their
// handlers.  Events for them that arrive afterward are dropped.
//
// Returns ErrNotSubscribed if the session is not subscribed to the topic.  If
// the topic has more than one subscription, the first failure is returned.
func (s *Session) Unsubscribe(ctx context.Context, topic string) error {
	if err := s.checkEstablished(); err != nil {
		return err
	}
	subIDs := s.reg.removeTopic(topic)
	if len(subIDs) == 0 {
		return ErrNotSubscribed
	}
	reqs := make([]*pending, 0, len(subIDs))
	for _, subID := range subIDs {
		p := &pending{id: s.idGen.Next(), kind: wamp.UNSUBSCRIBE}
		if err := s.addRequest(p); err != nil {
			return err
		}
		if err := s.send(&wamp.Unsubscribe{Request: p.id, Subscription: subID}); err != nil {
			return err
		}
		reqs = append(reqs, p)
	}
	var firstErr error
	for _, p := range reqs {
		if err := s.waitUnsubscribed(ctx, p); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *Session) waitUnsubscribed(ctx context.Context, p *pending) error {
	reply, err := s.waitReply(ctx, p)
	if err != nil {
		return err
	}
	switch reply := reply.(type) {
	case *wamp.Unsubscribed:
		return nil
	case *wamp.Error:
		return newRequestError(reply)
	}
	return unexpectedMsgError(reply, wamp.UNSUBSCRIBED)
}

// SubscriptionID returns the router's subscription ID for the topic.  If the
// topic is subscribed with more than one match policy, the first subscription
// confirmed is returned.
func (s *Session) SubscriptionID(topic string) (wamp.ID, bool) {
	return s.reg.subscriptionID(topic)
}

// ID returns the session ID assigned by the router.  It is zero until the
// session has joined a realm.
func (s *Session) ID() wamp.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// RealmDetails returns the details from the router's WELCOME message.
func (s *Session) RealmDetails() wamp.Dict {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.realmDetails
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done returns a channel that is closed when the session has ended and its
// goroutines have exited.
func (s *Session) Done() <-chan struct{} { return s.done }

// Err returns the reason the session ended.  It is nil while the session is
// running, and after the session is ended by Close.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close ends the session.  If the session has joined a realm, it first sends
// GOODBYE and waits for the router to reply, up to the response timeout.
// Close returns after the connection is closed and the session's goroutines
// have exited, so it must not be called from an event handler.
//
// Returns ErrNotConn if the session is already closed.
func (s *Session) Close() error {
	s.mu.Lock()
	state := s.state
	sendGoodbye := state == Established && !s.goodbyeSent
	if sendGoodbye {
		s.goodbyeSent = true
	}
	s.mu.Unlock()

	if state == Closed {
		return ErrNotConn
	}
	if state == Established {
		if sendGoodbye {
			s.send(&wamp.Goodbye{Details: wamp.Dict{}, Reason: wamp.CloseRealm})
		}
		timer := time.NewTimer(s.cfg.ResponseTimeout)
		select {
		case <-s.goodbye:
		case <-s.closing:
		case <-timer.C:
			s.log.Warn("no GOODBYE reply from router")
		}
		timer.Stop()
	}
	s.terminate(nil)
	<-s.done
	return nil
}

// terminate moves the session to Closed and stops it.  Requests still
// waiting for a reply are given an error wrapping ErrConnClosed.  The cause
// is nil when the session is closed locally.
func (s *Session) terminate(cause error) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = Closed
		s.err = cause
		s.mu.Unlock()

		close(s.closing)
		s.reg.close(closedError(cause))
		s.outbound.close()
		s.events.close()

		if cause != nil {
			s.log.Warn("session ended", zap.Error(cause))
		} else {
			s.log.Debug("session closed")
		}
		go func() {
			s.wg.Wait()
			close(s.done)
		}()
	})
}

func (s *Session) checkEstablished() error {
	if s.State() != Established {
		return ErrNotConn
	}
	return nil
}

// send encodes the message and queues it for the send loop.
func (s *Session) send(msg wamp.Message) error {
	b, err := s.serializer.Serialize(msg)
	if err != nil {
		return fmt.Errorf("cannot encode %s: %w", msg.MessageType(), err)
	}
	f := outFrame{
		frame:      b,
		msgType:    msg.MessageType(),
		goodbyeAck: wamp.IsGoodbyeAck(msg),
	}
	if !s.outbound.push(f) {
		return ErrInternalChannel
	}
	return nil
}

func (s *Session) addRequest(p *pending) error {
	if s.reg.addRequest(p) {
		return nil
	}
	if s.State() == Closed {
		return ErrNotConn
	}
	return fmt.Errorf("request ID %v already outstanding", p.id)
}

// waitReply waits for the reply to a pending request.  If ctx is done or the
// response timeout passes first, the request is abandoned and the reply is
// handled without a caller when it comes.
func (s *Session) waitReply(ctx context.Context, p *pending) (wamp.Message, error) {
	timer := time.NewTimer(s.cfg.ResponseTimeout)
	defer timer.Stop()

	var giveUp error
	select {
	case r := <-p.done:
		return r.msg, r.err
	case <-ctx.Done():
		giveUp = ctx.Err()
	case <-timer.C:
		giveUp = fmt.Errorf("%w: %s request %v", ErrReplyTimeout, p.kind, p.id)
	}
	if !s.reg.abandon(p.id) {
		// Resolved while giving up.
		r := <-p.done
		return r.msg, r.err
	}
	s.log.Debug("stopped waiting for reply", zap.Stringer("request_type", p.kind),
		zap.Uint64("request", uint64(p.id)), zap.Error(giveUp))
	return nil, giveUp
}
