package client

import (
	"fmt"

	"github.com/gammazero/wampsub/wamp"
	"go.uber.org/zap"
)

// sendLoop sends queued frames to the router in order.  After the session
// ends it still sends the frames queued before that, then closes the
// connection.
func (s *Session) sendLoop() {
	defer s.wg.Done()
	defer s.conn.Close()

	var failed bool
	for {
		f, ok := s.outbound.next()
		if !ok {
			return
		}
		if failed {
			continue
		}
		if err := s.conn.SendFrame(f.frame); err != nil {
			failed = true
			// The router may not wait for a goodbye ack.
			if !f.goodbyeAck {
				s.log.Error("cannot send to router",
					zap.Stringer("message_type", f.msgType), zap.Error(err))
			}
			s.terminate(fmt.Errorf("send %s: %w", f.msgType, err))
			continue
		}
		s.metrics.countSent(f.msgType)
	}
}

// recvLoop decodes frames from the router and dispatches them in arrival
// order.  The session ends when the connection does.
func (s *Session) recvLoop() {
	defer s.wg.Done()
	for {
		select {
		case b, ok := <-s.conn.Recv():
			if !ok {
				err := s.conn.Err()
				if err == nil {
					err = ErrConnClosed
				}
				s.terminate(err)
				return
			}
			msg, err := s.serializer.Deserialize(b)
			if err != nil {
				s.violation(err)
				continue
			}
			s.metrics.countReceived(msg.MessageType())
			s.dispatch(msg)
		case <-s.closing:
			return
		}
	}
}

// eventLoop runs event handlers.  Handlers for events queued before the
// session ended still run.
func (s *Session) eventLoop() {
	defer s.wg.Done()
	for {
		d, ok := s.events.next()
		if !ok {
			return
		}
		for _, fn := range d.handlers {
			s.runHandler(fn, d.event)
		}
	}
}

func (s *Session) runHandler(fn EventHandler, event *Event) {
	defer func() {
		if r := recover(); r != nil {
			s.metrics.panics.Inc()
			s.log.Error("event handler panic", zap.String("topic", event.Topic),
				zap.Uint64("publication", uint64(event.Publication)),
				zap.Any("panic", r))
		}
	}()
	fn(event)
}

func (s *Session) dispatch(msg wamp.Message) {
	switch msg := msg.(type) {
	case *wamp.Event:
		s.handleEvent(msg)
	case *wamp.Subscribed:
		s.handleSubscribed(msg)
	case *wamp.Published:
		s.handleReply(msg.Request, wamp.PUBLISH, msg)
	case *wamp.Unsubscribed:
		s.handleReply(msg.Request, wamp.UNSUBSCRIBE, msg)
	case *wamp.Error:
		s.handleReply(msg.Request, msg.Type, msg)
	case *wamp.Welcome:
		s.mu.Lock()
		joining := s.state == Joining
		if joining {
			s.state = Established
			s.id = msg.ID
			s.realmDetails = msg.Details
		}
		s.mu.Unlock()
		if !joining {
			s.violation(wamp.ProtocolViolation("unexpected WELCOME"))
			return
		}
		s.signalJoin(msg)
	case *wamp.Challenge:
		if !s.signalJoin(msg) {
			s.violation(wamp.ProtocolViolation("unexpected CHALLENGE"))
		}
	case *wamp.Abort:
		if !s.signalJoin(msg) {
			s.terminate(fmt.Errorf("session aborted by router: %s", msg.Reason))
		}
	case *wamp.Goodbye:
		s.handleGoodbye(msg)
	default:
		s.violation(wamp.ProtocolViolation("unexpected %s", msg.MessageType()))
	}
}

// signalJoin hands a reply to HELLO to Join.  Returns false if the session is
// not joining.
func (s *Session) signalJoin(msg wamp.Message) bool {
	if _, ok := msg.(*wamp.Welcome); !ok && s.State() != Joining {
		return false
	}
	select {
	case s.joinReply <- msg:
	default:
		// Join already has its reply.
		s.violation(wamp.ProtocolViolation("unexpected %s", msg.MessageType()))
	}
	return true
}

func (s *Session) handleEvent(msg *wamp.Event) {
	topic, handlers, status := s.reg.eventHandlers(msg.Subscription)
	switch status {
	case eventUnknown:
		s.violation(wamp.ProtocolViolation("EVENT for unknown subscription %v",
			msg.Subscription))
	case eventRetired:
		s.log.Debug("dropped event for removed subscription",
			zap.Uint64("subscription", uint64(msg.Subscription)))
	case eventDeliver:
		s.events.push(delivery{handlers: handlers, event: newEvent(topic, msg)})
	}
}

func (s *Session) handleSubscribed(msg *wamp.Subscribed) {
	p, result, release := s.reg.confirmSubscription(msg)
	switch result {
	case subscribeUnknown:
		s.violation(wamp.ProtocolViolation("SUBSCRIBED for unknown request %v",
			msg.Request))
	case subscribeAbandonedInUse:
		s.log.Debug("abandoned subscribe shares active subscription",
			zap.String("topic", p.topic),
			zap.Uint64("subscription", uint64(msg.Subscription)))
	case subscribeAbandonedHeld:
		s.log.Debug("holding abandoned subscription", zap.String("topic", p.topic),
			zap.Uint64("subscription", uint64(msg.Subscription)))
	case subscribeAbandoned:
		release = append(release, msg.Subscription)
	}
	s.unsubscribeAbandoned(release)
}

// unsubscribeAbandoned removes subscriptions that nobody is waiting for.  The
// replies are not waited for.
func (s *Session) unsubscribeAbandoned(subIDs []wamp.ID) {
	for _, subID := range subIDs {
		id := s.idGen.Next()
		s.reg.expectLate(id, wamp.UNSUBSCRIBE)
		s.log.Debug("removing abandoned subscription",
			zap.Uint64("subscription", uint64(subID)))
		s.send(&wamp.Unsubscribe{Request: id, Subscription: subID})
	}
}

func (s *Session) handleReply(id wamp.ID, kind wamp.MessageType, msg wamp.Message) {
	p, late, release := s.reg.resolve(id, kind, msg)
	switch {
	case late:
		s.log.Debug("dropped reply to abandoned request",
			zap.Stringer("message_type", msg.MessageType()),
			zap.Uint64("request", uint64(id)))
	case p == nil:
		s.violation(wamp.ProtocolViolation("%s for unknown %s request %v",
			msg.MessageType(), kind, id))
	case p.abandoned:
		s.log.Debug("abandoned subscribe failed", zap.String("topic", p.topic),
			zap.Uint64("request", uint64(id)))
	}
	s.unsubscribeAbandoned(release)
}

func (s *Session) handleGoodbye(msg *wamp.Goodbye) {
	s.mu.Lock()
	sent := s.goodbyeSent
	s.mu.Unlock()
	if sent {
		// Reply to our GOODBYE.  The router may close the connection right
		// after it, so the session ends here rather than on the recv error.
		s.terminate(nil)
		select {
		case s.goodbye <- struct{}{}:
		default:
		}
		return
	}
	s.send(&wamp.Goodbye{Details: wamp.Dict{}, Reason: wamp.CloseGoodbyeAndOut})
	s.terminate(fmt.Errorf("router ended session: %s", msg.Reason))
}

// violation reports a protocol violation.  The message that caused it is
// dropped, and the session continues.
func (s *Session) violation(err error) {
	s.metrics.violations.Inc()
	s.log.Warn("protocol violation", zap.Error(err))
	if fn := s.cfg.ProtocolViolationHandler; fn != nil {
		fn(err)
	}
}
