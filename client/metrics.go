package client

import (
	"errors"

	"github.com/gammazero/wampsub/wamp"
	"github.com/prometheus/client_golang/prometheus"
)

// sessionMetrics counts the messages a session exchanges with the router, and
// the problems it finds.
type sessionMetrics struct {
	sent       *prometheus.CounterVec
	received   *prometheus.CounterVec
	violations prometheus.Counter
	panics     prometheus.Counter
}

func newSessionMetrics(reg prometheus.Registerer) *sessionMetrics {
	return &sessionMetrics{
		sent: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "wampsub",
				Subsystem: "client",
				Name:      "messages_sent_total",
				Help:      "Total messages sent to the router",
			},
			[]string{"message_type"},
		)),
		received: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "wampsub",
				Subsystem: "client",
				Name:      "messages_received_total",
				Help:      "Total messages received from the router",
			},
			[]string{"message_type"},
		)),
		violations: register(reg, prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "wampsub",
				Subsystem: "client",
				Name:      "protocol_violations_total",
				Help:      "Total protocol violations in data received from the router",
			},
		)),
		panics: register(reg, prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "wampsub",
				Subsystem: "client",
				Name:      "handler_panics_total",
				Help:      "Total panics recovered from event handlers",
			},
		)),
	}
}

// register registers c with reg, returning the collector that is already
// registered if there is one.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if reg == nil {
		return c
	}
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

func (m *sessionMetrics) countSent(mt wamp.MessageType) {
	m.sent.WithLabelValues(mt.String()).Inc()
}

func (m *sessionMetrics) countReceived(mt wamp.MessageType) {
	m.received.WithLabelValues(mt.String()).Inc()
}
