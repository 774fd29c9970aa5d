package email

import (
	"context"
	"fmt"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

const defaultSendGridHost = "https://api.sendgrid.com"

type SendGridProvider struct {
	client  *sendgrid.Client
	from    *mail.Email
	timeout time.Duration
}

// NewSendGrid posts to /v3/mail/send on opts.SendGridHost, which defaults to
// the public API.
func NewSendGrid(opts Options) *SendGridProvider {
	host := opts.SendGridHost
	if host == "" {
		host = defaultSendGridHost
	}
	req := sendgrid.GetRequest(opts.SendGridAPIKey, "/v3/mail/send", host)
	req.Method = "POST"
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &SendGridProvider{
		client:  &sendgrid.Client{Request: req},
		from:    mail.NewEmail(opts.FromName, opts.FromEmail),
		timeout: timeout,
	}
}

func (p *SendGridProvider) Send(ctx context.Context, msg Message) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	to := mail.NewEmail(msg.ToName, msg.To)
	m := mail.NewV3MailInit(p.from, msg.Subject, to, mail.NewContent("text/html", msg.HTML))
	resp, err := p.client.SendWithContext(ctx, m)
	if err != nil {
		return fmt.Errorf("sendgrid send to %s: %w", msg.To, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid send to %s: status %d: %s", msg.To, resp.StatusCode, resp.Body)
	}
	return nil
}

func (p *SendGridProvider) Name() string {
	return "sendgrid"
}
