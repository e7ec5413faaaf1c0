package notify

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DevTransport only logs messages. It is used outside production so shares
// can be exercised without provider credentials.
type DevTransport struct {
	logger *logrus.Logger
}

// NewDevTransport creates a logging-only transport
func NewDevTransport(logger *logrus.Logger) *DevTransport {
	return &DevTransport{logger: logger}
}

// Name returns the transport name
func (t *DevTransport) Name() string {
	return "dev"
}

// Send logs the delivery and returns a synthetic message ID
func (t *DevTransport) Send(ctx context.Context, d Delivery) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id := "dev-" + uuid.NewString()
	t.logger.WithFields(logrus.Fields{
		"message_id": id,
		"method":     d.Method,
		"to":         d.ContactInfo,
		"message":    d.Message,
	}).Info("[DEV] Simulating sending message")

	return id, nil
}
