package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// Publisher emits domain events. Publishing is best effort: callers log
// failures and never fail the operation that produced the event.
type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close() error
}

// Event subjects, relative to the configured prefix
const (
	UserRegistered = "users.registered"
	UserApproved   = "users.approved"
	UserRejected   = "users.rejected"

	VisitEntered     = "visits.entered"
	VisitExited      = "visits.exited"
	VisitPreApproved = "visits.preapproved"

	GatePassShared = "gatepasses.shared"
)

// Envelope wraps every published payload
type Envelope struct {
	Subject    string      `json:"subject"`
	OccurredAt time.Time   `json:"occurred_at"`
	Data       interface{} `json:"data"`
}

// UserEvent is published for registration lifecycle changes
type UserEvent struct {
	UserID     string `json:"user_id"`
	FlatNumber string `json:"flat_number"`
	Role       string `json:"role"`
	Status     string `json:"status"`
	ActorID    string `json:"actor_id,omitempty"`
}

// VisitEvent is published for gate activity. Purpose is never included.
type VisitEvent struct {
	VisitID     string `json:"visit_id"`
	VisitorName string `json:"visitor_name"`
	VisitorType string `json:"visitor_type"`
	FlatNumber  string `json:"flat_number"`
	Status      string `json:"status"`
	ApprovedBy  string `json:"approved_by"`
}

// ShareEvent is published when a gate pass is handed to a transport
type ShareEvent struct {
	VisitID   string `json:"visit_id"`
	Method    string `json:"method"`
	Channel   string `json:"channel"`
	Delivered bool   `json:"delivered"`
}

// NATSPublisher publishes JSON envelopes to NATS
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
}

// NewNATSPublisher connects to url. Subjects are published as "<prefix>.<subject>".
func NewNATSPublisher(url, prefix string, logger *logrus.Logger) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("society-gate"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.WithError(err).Warn("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.WithField("url", c.ConnectedUrl()).Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSPublisher{conn: conn, prefix: prefix}, nil
}

// Publish marshals data in an envelope and publishes it
func (n *NATSPublisher) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := encode(subject, data)
	if err != nil {
		return err
	}
	return n.conn.Publish(qualify(n.prefix, subject), payload)
}

// Close drains pending messages and closes the connection
func (n *NATSPublisher) Close() error {
	return n.conn.Drain()
}

// LogPublisher writes events to the logger. Used when no NATS URL is configured.
type LogPublisher struct {
	logger *logrus.Logger
	prefix string
}

// NewLogPublisher creates a log-only publisher
func NewLogPublisher(logger *logrus.Logger, prefix string) *LogPublisher {
	return &LogPublisher{logger: logger, prefix: prefix}
}

// Publish logs the event at debug level
func (l *LogPublisher) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := encode(subject, data)
	if err != nil {
		return err
	}
	l.logger.WithFields(logrus.Fields{
		"subject": qualify(l.prefix, subject),
		"payload": string(payload),
	}).Debug("Publishing event")
	return nil
}

// Close is a no-op
func (l *LogPublisher) Close() error {
	return nil
}

func encode(subject string, data interface{}) ([]byte, error) {
	payload, err := json.Marshal(Envelope{
		Subject:    subject,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event data: %w", err)
	}
	return payload, nil
}

func qualify(prefix, subject string) string {
	if prefix == "" {
		return subject
	}
	return prefix + "." + subject
}
