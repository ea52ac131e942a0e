package transport

import (
	"errors"
	"sync"

	"github.com/gammazero/wampsub/transport/serialize"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts the bytes and frames moved by transports, labelled by
// transport type.
type Metrics struct {
	inBytes   *prometheus.CounterVec
	outBytes  *prometheus.CounterVec
	inFrames  *prometheus.CounterVec
	outFrames *prometheus.CounterVec
}

// NewMetrics creates transport counters and registers them with reg, if reg
// is not nil.  Counters that are already registered with reg are reused, so
// any number of clients may share one registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	newVec := func(name, help string) *prometheus.CounterVec {
		vec := prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "wampsub",
				Subsystem: "transport",
				Name:      name,
				Help:      help,
			},
			[]string{"transport_type"},
		)
		return registerCounterVec(reg, vec)
	}
	return &Metrics{
		inBytes:   newVec("bytes_incoming_total", "Total incoming bytes"),
		outBytes:  newVec("bytes_outgoing_total", "Total outgoing bytes"),
		inFrames:  newVec("frames_incoming_total", "Total incoming frames"),
		outFrames: newVec("frames_outgoing_total", "Total outgoing frames"),
	}
}

// registerCounterVec registers vec with reg, returning the collector that is
// already registered if there is one.
func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec) *prometheus.CounterVec {
	if reg == nil {
		return vec
	}
	if err := reg.Register(vec); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
	}
	return vec
}

// CountIncoming records one received frame of the given size.
func (m *Metrics) CountIncoming(transportType string, bytesNum int) {
	m.inFrames.WithLabelValues(transportType).Inc()
	m.inBytes.WithLabelValues(transportType).Add(float64(bytesNum))
}

// CountOutgoing records one sent frame of the given size.
func (m *Metrics) CountOutgoing(transportType string, bytesNum int) {
	m.outFrames.WithLabelValues(transportType).Inc()
	m.outBytes.WithLabelValues(transportType).Add(float64(bytesNum))
}

// Instrument returns a Conn that counts the frames moved by c in m, under the
// given transport type label.  If m is nil, c is returned unchanged.
func Instrument(c Conn, m *Metrics, transportType string) Conn {
	if m == nil {
		return c
	}
	ic := &instrumentedConn{
		conn:          c,
		metrics:       m,
		transportType: transportType,
		rd:            make(chan []byte),
		done:          make(chan struct{}),
	}
	go ic.forward()
	return ic
}

type instrumentedConn struct {
	conn          Conn
	metrics       *Metrics
	transportType string

	rd        chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func (c *instrumentedConn) forward() {
	defer close(c.rd)
	for {
		select {
		case frame, ok := <-c.conn.Recv():
			if !ok {
				return
			}
			c.metrics.CountIncoming(c.transportType, len(frame))
			select {
			case c.rd <- frame:
			case <-c.done:
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *instrumentedConn) SendFrame(frame []byte) error {
	if err := c.conn.SendFrame(frame); err != nil {
		return err
	}
	c.metrics.CountOutgoing(c.transportType, len(frame))
	return nil
}

func (c *instrumentedConn) Recv() <-chan []byte { return c.rd }

func (c *instrumentedConn) Err() error { return c.conn.Err() }

func (c *instrumentedConn) Serialization() serialize.Serialization {
	return c.conn.Serialization()
}

func (c *instrumentedConn) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return c.conn.Close()
}
