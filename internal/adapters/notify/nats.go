package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/abdulrahmanalageeli/match-sub002/pkg/logger"
	"github.com/abdulrahmanalageeli/match-sub002/pkg/metrics"
	"github.com/nats-io/nats.go"
)

// Conn is the subset of *nats.Conn the publisher needs.
type Conn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// Option configures a NATS publisher.
type Option func(*NATS)

// WithSubject sets the subject prefix. Events go to "<prefix>.<event id>".
func WithSubject(prefix string) Option {
	return func(n *NATS) {
		if prefix != "" {
			n.subject = prefix
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(n *NATS) {
		if l != nil {
			n.logger = l
		}
	}
}

// NATS publishes events as JSON on a NATS connection.
type NATS struct {
	conn    Conn
	subject string
	logger  logger.Logger

	mu     sync.Mutex
	closed bool
}

// Connect dials url and returns a publisher over the new connection.
func Connect(url string, opts ...Option) (*NATS, error) {
	conn, err := nats.Connect(url,
		nats.Name("match-engine"),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return NewNATS(conn, opts...), nil
}

// NewNATS wraps an existing connection.
func NewNATS(conn Conn, opts ...Option) *NATS {
	n := &NATS{
		conn:    conn,
		subject: DefaultSubject,
		logger:  logger.Get().Named("notify"),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Subject returns the subject an event for eventID is published on.
func (n *NATS) Subject(eventID string) string {
	return n.subject + "." + eventID
}

// Publish sends ev. NATS publishes are fire-and-forget so only the context is checked first.
func (n *NATS) Publish(ctx context.Context, ev Event) error {
	n.mu.Lock()
	closed := n.closed
	n.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before publish: %w", err)
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := n.conn.Publish(n.Subject(ev.EventID), data); err != nil {
		metrics.RecordNotification("error")
		n.logger.Warn(ctx, "publish failed",
			logger.String("event_id", ev.EventID),
			logger.String("type", ev.Type),
			logger.Error(err))
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	metrics.RecordNotification("sent")
	n.logger.Debug(ctx, "event published",
		logger.String("event_id", ev.EventID),
		logger.String("type", ev.Type),
		logger.Int64("version", ev.Version))
	return nil
}

// Close drains the connection. Later publishes fail with ErrClosed.
func (n *NATS) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil
	}
	n.closed = true
	return n.conn.Drain()
}
