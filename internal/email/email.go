// Package email sends newsletters and confirmation mail through SendGrid or
// plain SMTP.
package email

import (
	"context"
	"fmt"
	"time"
)

// Message is a single HTML email to one recipient.
type Message struct {
	To      string
	ToName  string
	Subject string
	HTML    string
}

// Provider delivers one message. Implementations must honour ctx where the
// underlying transport allows it.
type Provider interface {
	Send(ctx context.Context, msg Message) error
	Name() string
}

// Options selects and configures a provider.
type Options struct {
	Provider       string // sendgrid or smtp
	FromEmail      string
	FromName       string
	SendGridAPIKey string
	SendGridHost   string
	SMTPHost       string
	SMTPPort       int
	SMTPUsername   string
	SMTPPassword   string
	Timeout        time.Duration
}

// NewProvider builds the configured provider.
func NewProvider(opts Options) (Provider, error) {
	if opts.FromEmail == "" {
		return nil, fmt.Errorf("email: from address is required")
	}
	switch opts.Provider {
	case "", "sendgrid":
		if opts.SendGridAPIKey == "" {
			return nil, fmt.Errorf("email: sendgrid api key is required")
		}
		return NewSendGrid(opts), nil
	case "smtp":
		if opts.SMTPHost == "" {
			return nil, fmt.Errorf("email: smtp host is required")
		}
		return NewSMTP(opts), nil
	default:
		return nil, fmt.Errorf("email: unknown provider %q", opts.Provider)
	}
}
