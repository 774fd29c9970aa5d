package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/url"
	"strings"

	"github.com/lemara98/post-automation/internal/logger"
	"golang.org/x/time/rate"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}).ParseFS(templateFS, "templates/*.html"))

// Recipient is one newsletter addressee.
type Recipient struct {
	Email            string
	Name             string
	UnsubscribeToken string
}

// Result is the outcome for one recipient. Err is nil on success.
type Result struct {
	Email string
	Err   error
}

// Tally counts successes and failures.
func Tally(results []Result) (sent, failed int) {
	for _, r := range results {
		if r.Err == nil {
			sent++
		} else {
			failed++
		}
	}
	return sent, failed
}

type NewsletterArticle struct {
	Title   string
	Summary string
	URL     string
	Source  string
}

type Newsletter struct {
	Subject      string
	Intro        string
	Articles     []NewsletterArticle
	PracticeTask string
}

// Mailer renders and sends subscriber mail through a Provider, one message
// at a time, no faster than the limiter allows.
type Mailer struct {
	provider Provider
	limiter  *rate.Limiter
	siteName string
	siteURL  string
}

// NewMailer wraps p. perSecond <= 0 disables throttling. siteURL is the
// public base for confirm and unsubscribe links.
func NewMailer(p Provider, siteName, siteURL string, perSecond float64, burst int) *Mailer {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if burst < 1 {
		burst = 1
	}
	return &Mailer{
		provider: p,
		limiter:  rate.NewLimiter(limit, burst),
		siteName: siteName,
		siteURL:  strings.TrimRight(siteURL, "/"),
	}
}

func (m *Mailer) link(path, token string) string {
	return m.siteURL + path + "?" + url.Values{"token": {token}}.Encode()
}

func (m *Mailer) ConfirmURL(token string) string     { return m.link("/confirm", token) }
func (m *Mailer) UnsubscribeURL(token string) string { return m.link("/unsubscribe", token) }

// RenderNewsletter produces the shared HTML body; SendBulk personalises it.
func (m *Mailer) RenderNewsletter(n Newsletter) (string, error) {
	var buf bytes.Buffer
	data := struct {
		Newsletter
		SiteName string
	}{n, m.siteName}
	if err := templates.ExecuteTemplate(&buf, "newsletter.html", data); err != nil {
		return "", fmt.Errorf("render newsletter: %w", err)
	}
	return buf.String(), nil
}

func (m *Mailer) personalise(body string, r Recipient) (string, error) {
	var buf bytes.Buffer
	err := templates.ExecuteTemplate(&buf, "footer.html", map[string]string{
		"SiteName":       m.siteName,
		"UnsubscribeURL": m.UnsubscribeURL(r.UnsubscribeToken),
	})
	if err != nil {
		return "", fmt.Errorf("render footer: %w", err)
	}
	if i := strings.LastIndex(body, "</body>"); i >= 0 {
		return body[:i] + buf.String() + body[i:], nil
	}
	return body + buf.String(), nil
}

// SendBulk sends body to every recipient in order. One recipient's failure
// never stops the batch; a cancelled ctx fails the remaining recipients.
func (m *Mailer) SendBulk(ctx context.Context, recipients []Recipient, subject, body string) []Result {
	results := make([]Result, 0, len(recipients))
	for _, r := range recipients {
		res := Result{Email: r.Email}
		if err := m.limiter.Wait(ctx); err != nil {
			res.Err = fmt.Errorf("throttle: %w", err)
			results = append(results, res)
			continue
		}
		html, err := m.personalise(body, r)
		if err == nil {
			err = m.provider.Send(ctx, Message{To: r.Email, ToName: r.Name, Subject: subject, HTML: html})
		}
		if err != nil {
			logger.Warn("newsletter send failed", "email", r.Email, "provider", m.provider.Name(), "error", err)
			res.Err = err
		} else {
			logger.Debug("newsletter sent", "email", r.Email)
		}
		results = append(results, res)
	}
	sent, failed := Tally(results)
	logger.Info("newsletter batch done", "recipients", len(recipients), "sent", sent, "failed", failed)
	return results
}

// SendConfirmation mails the double opt-in link for token.
func (m *Mailer) SendConfirmation(ctx context.Context, email, name, token string) error {
	var buf bytes.Buffer
	err := templates.ExecuteTemplate(&buf, "confirmation.html", map[string]string{
		"SiteName":   m.siteName,
		"Name":       name,
		"ConfirmURL": m.ConfirmURL(token),
	})
	if err != nil {
		return fmt.Errorf("render confirmation: %w", err)
	}
	if err := m.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("throttle: %w", err)
	}
	subject := fmt.Sprintf("Confirm your subscription to the %s newsletter", m.siteName)
	if err := m.provider.Send(ctx, Message{To: email, ToName: name, Subject: subject, HTML: buf.String()}); err != nil {
		return fmt.Errorf("send confirmation: %w", err)
	}
	logger.Info("confirmation sent", "email", email)
	return nil
}
