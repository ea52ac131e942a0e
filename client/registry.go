package client

import (
	"sync"

	"github.com/gammazero/deque"
	"github.com/gammazero/wampsub/wamp"
)

// maxLate is how many given-up requests are remembered, so that their late
// replies are dropped instead of reported.
const maxLate = 1024

// reply is what a waiting request receives: the router's response message,
// or the error that ended the session.
type reply struct {
	msg wamp.Message
	err error
}

// pending is a request waiting for a router response.
type pending struct {
	id   wamp.ID
	kind wamp.MessageType

	// Set for SUBSCRIBE requests.
	topic   string
	handler EventHandler

	// Set when the caller stops waiting for a SUBSCRIBE.  The response is
	// then handled without a caller.
	abandoned bool

	done chan reply
}

// subscription is one router subscription, and the handlers registered for it
// in registration order.
type subscription struct {
	topic    string
	handlers []EventHandler
}

// subscribeResult is the outcome of confirming a subscription.
type subscribeResult int

const (
	subscribeUnknown subscribeResult = iota
	subscribeConfirmed
	// Abandoned, and nothing else can use the subscription.  It has been
	// retired and must be unsubscribed.
	subscribeAbandoned
	// Abandoned, but the subscription is already active.
	subscribeAbandonedInUse
	// Abandoned, and held until the other SUBSCRIBE requests for the same
	// topic are answered, since the router may confirm one of them with the
	// same subscription.
	subscribeAbandonedHeld
)

// eventStatus is the outcome of looking up the handlers for an event.
type eventStatus int

const (
	eventUnknown eventStatus = iota
	eventDeliver
	eventRetired
)

// registry holds the pending request table and the subscription index.  The
// lock is held only while the tables are read or changed.
type registry struct {
	mu sync.Mutex

	pending map[wamp.ID]*pending

	// Requests nobody waits for anymore, with the reply type expected.
	late      map[wamp.ID]wamp.MessageType
	lateOrder deque.Deque[wamp.ID]

	// subscriptionID -> subscription
	subs map[wamp.ID]*subscription
	// topic -> subscription IDs, in the order they were confirmed.  A topic
	// has more than one when it is subscribed with different match
	// policies.
	topics map[string][]wamp.ID
	// Abandoned subscriptions held while a SUBSCRIBE for their topic is
	// pending.  subscriptionID -> topic
	held map[wamp.ID]string
	// Subscriptions removed by Unsubscribe or abandoned.  Events for these
	// may still be in flight, and are dropped without being reported.
	retired map[wamp.ID]struct{}

	closed bool
}

func newRegistry() *registry {
	return &registry{
		pending: map[wamp.ID]*pending{},
		late:    map[wamp.ID]wamp.MessageType{},
		subs:    map[wamp.ID]*subscription{},
		topics:  map[string][]wamp.ID{},
		held:    map[wamp.ID]string{},
		retired: map[wamp.ID]struct{}{},
	}
}

// addRequest adds a pending request.  Returns false if the registry is closed
// or the request ID is already outstanding.
func (r *registry) addRequest(p *pending) bool {
	p.done = make(chan reply, 1)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	if _, dup := r.pending[p.id]; dup {
		return false
	}
	r.pending[p.id] = p
	return true
}

// expectLate records a request that is sent without anyone waiting for its
// reply.
func (r *registry) expectLate(id wamp.ID, kind wamp.MessageType) {
	r.mu.Lock()
	r.addLate(id, kind)
	r.mu.Unlock()
}

func (r *registry) addLate(id wamp.ID, kind wamp.MessageType) {
	if r.lateOrder.Len() >= maxLate {
		delete(r.late, r.lateOrder.PopFront())
	}
	r.late[id] = kind
	r.lateOrder.PushBack(id)
}

// abandon records that nobody waits for a pending request anymore.  A
// SUBSCRIBE stays in the table, since its confirmation still has to be
// handled.  Other requests only need their late reply recognized.
//
// Returns false if the request was already resolved, in which case its reply
// is waiting in the done channel.
func (r *registry) abandon(id wamp.ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pending[id]
	if !ok {
		return false
	}
	if p.kind == wamp.SUBSCRIBE {
		p.abandoned = true
		return true
	}
	delete(r.pending, id)
	r.addLate(id, p.kind)
	return true
}

// resolve removes the pending request with the given ID and kind, and gives
// it the response.  Returns nil if there is no such request, with late set if
// the request was given up on.  Resolving a SUBSCRIBE may release held
// subscriptions, which are returned for unsubscribing.
func (r *registry) resolve(id wamp.ID, kind wamp.MessageType, msg wamp.Message) (p *pending, late bool, release []wamp.ID) {
	r.mu.Lock()
	p, ok := r.pending[id]
	if !ok || p.kind != kind {
		if lk, ok := r.late[id]; ok && lk == kind {
			delete(r.late, id)
			late = true
		}
		r.mu.Unlock()
		return nil, late, nil
	}
	delete(r.pending, id)
	if kind == wamp.SUBSCRIBE {
		release = r.releaseHeld(p.topic)
	}
	r.mu.Unlock()

	p.done <- reply{msg: msg}
	return p, false, release
}

// confirmSubscription removes the pending SUBSCRIBE request and records the
// subscription in the index.  If the caller abandoned the request, nothing is
// recorded.  Subscriptions released because nothing is pending for their
// topic anymore are returned for unsubscribing.
func (r *registry) confirmSubscription(msg *wamp.Subscribed) (*pending, subscribeResult, []wamp.ID) {
	r.mu.Lock()
	p, ok := r.pending[msg.Request]
	if !ok || p.kind != wamp.SUBSCRIBE {
		r.mu.Unlock()
		return nil, subscribeUnknown, nil
	}
	delete(r.pending, msg.Request)

	var result subscribeResult
	sub, active := r.subs[msg.Subscription]
	switch {
	case p.abandoned && active:
		result = subscribeAbandonedInUse
	case p.abandoned && r.subscribePending(p.topic):
		r.held[msg.Subscription] = p.topic
		result = subscribeAbandonedHeld
	case p.abandoned:
		r.retired[msg.Subscription] = struct{}{}
		result = subscribeAbandoned
	default:
		if !active {
			sub = &subscription{topic: p.topic}
			r.subs[msg.Subscription] = sub
			r.topics[p.topic] = append(r.topics[p.topic], msg.Subscription)
		}
		sub.handlers = append(sub.handlers, p.handler)
		delete(r.held, msg.Subscription)
		delete(r.retired, msg.Subscription)
		result = subscribeConfirmed
	}
	release := r.releaseHeld(p.topic)
	r.mu.Unlock()

	if result == subscribeConfirmed {
		p.done <- reply{msg: msg}
	}
	return p, result, release
}

// subscribePending reports whether a SUBSCRIBE for the topic is waiting for a
// reply.  Must be called with the lock held.
func (r *registry) subscribePending(topic string) bool {
	for _, p := range r.pending {
		if p.kind == wamp.SUBSCRIBE && p.topic == topic {
			return true
		}
	}
	return false
}

// releaseHeld retires the held subscriptions for the topic once no SUBSCRIBE
// for it is pending.  Must be called with the lock held.
func (r *registry) releaseHeld(topic string) []wamp.ID {
	if len(r.held) == 0 || r.subscribePending(topic) {
		return nil
	}
	var release []wamp.ID
	for subID, t := range r.held {
		if t != topic {
			continue
		}
		delete(r.held, subID)
		r.retired[subID] = struct{}{}
		release = append(release, subID)
	}
	return release
}

// eventHandlers returns the topic and a copy of the handlers for the
// subscription.
func (r *registry) eventHandlers(subID wamp.ID) (string, []EventHandler, eventStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[subID]
	if !ok {
		if _, ok = r.retired[subID]; ok {
			return "", nil, eventRetired
		}
		if _, ok = r.held[subID]; ok {
			return "", nil, eventRetired
		}
		return "", nil, eventUnknown
	}
	handlers := make([]EventHandler, len(sub.handlers))
	copy(handlers, sub.handlers)
	return sub.topic, handlers, eventDeliver
}

// removeTopic removes every subscription for the topic from the index, and
// returns their subscription IDs.
func (r *registry) removeTopic(topic string) []wamp.ID {
	r.mu.Lock()
	defer r.mu.Unlock()
	subIDs := r.topics[topic]
	delete(r.topics, topic)
	for _, subID := range subIDs {
		delete(r.subs, subID)
		r.retired[subID] = struct{}{}
	}
	return subIDs
}

// subscriptionID returns the first subscription confirmed for the topic.
func (r *registry) subscriptionID(topic string) (wamp.ID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	subIDs := r.topics[topic]
	if len(subIDs) == 0 {
		return 0, false
	}
	return subIDs[0], true
}

func (r *registry) pendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// close resolves every pending request with err, and stops new requests from
// being added.
func (r *registry) close(err error) {
	r.mu.Lock()
	r.closed = true
	pend := r.pending
	r.pending = map[wamp.ID]*pending{}
	r.mu.Unlock()

	for _, p := range pend {
		p.done <- reply{err: err}
	}
}
