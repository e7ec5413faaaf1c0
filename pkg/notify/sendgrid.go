package notify

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"strings"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// mailSender is the part of the SendGrid client used here
type mailSender interface {
	Send(email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridEmail sends email messages through SendGrid
type SendGridEmail struct {
	client   mailSender
	fromName string
	from     string
	sandbox  bool
}

// NewSendGridEmail creates a SendGrid email transport. In sandbox mode SendGrid
// validates the request without delivering it.
func NewSendGridEmail(apiKey, fromEmail, fromName string, sandbox bool) *SendGridEmail {
	return &SendGridEmail{
		client:   sendgrid.NewSendClient(apiKey),
		fromName: fromName,
		from:     fromEmail,
		sandbox:  sandbox,
	}
}

// Name returns the transport name
func (s *SendGridEmail) Name() string {
	return "sendgrid"
}

// Send delivers d.Message to the address in d.ContactInfo.
// A leading "Subject:" line becomes the email subject.
func (s *SendGridEmail) Send(ctx context.Context, d Delivery) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	subject, body := splitSubject(d.Message, "Your gate pass")

	from := mail.NewEmail(s.fromName, s.from)
	to := mail.NewEmail("", d.ContactInfo)
	htmlContent := "<p>" + strings.ReplaceAll(html.EscapeString(body), "\n", "<br>") + "</p>"

	msg := mail.NewSingleEmail(from, subject, to, body, htmlContent)
	if s.sandbox {
		ms := mail.NewMailSettings()
		ms.SetSandboxMode(mail.NewSetting(true))
		msg.MailSettings = ms
	}

	resp, err := s.client.Send(msg)
	if err != nil {
		return "", fmt.Errorf("failed to send email via sendgrid: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("sendgrid rejected email: status %d: %s", resp.StatusCode, resp.Body)
	}

	return http.Header(resp.Headers).Get("X-Message-Id"), nil
}
