package email

import (
	"context"
	"fmt"
	"mime"
	"mime/quotedprintable"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPProvider sends through a relay with optional PLAIN auth. smtp.SendMail
// upgrades to STARTTLS when the server offers it.
type SMTPProvider struct {
	addr     string
	host     string
	username string
	password string
	from     mail.Address
	sendMail sendMailFunc
	now      func() time.Time
}

func NewSMTP(opts Options) *SMTPProvider {
	port := opts.SMTPPort
	if port == 0 {
		port = 587
	}
	return &SMTPProvider{
		addr:     net.JoinHostPort(opts.SMTPHost, strconv.Itoa(port)),
		host:     opts.SMTPHost,
		username: opts.SMTPUsername,
		password: opts.SMTPPassword,
		from:     mail.Address{Name: opts.FromName, Address: opts.FromEmail},
		sendMail: smtp.SendMail,
		now:      time.Now,
	}
}

func (p *SMTPProvider) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var auth smtp.Auth
	if p.username != "" {
		auth = smtp.PlainAuth("", p.username, p.password, p.host)
	}
	to := mail.Address{Name: msg.ToName, Address: msg.To}
	if err := p.sendMail(p.addr, auth, p.from.Address, []string{msg.To}, p.build(to, msg)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	return nil
}

func (p *SMTPProvider) build(to mail.Address, msg Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", p.from.String())
	fmt.Fprintf(&b, "To: %s\r\n", to.String())
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", p.now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
	b.WriteString("Content-Transfer-Encoding: quoted-printable\r\n")
	b.WriteString("\r\n")
	qp := quotedprintable.NewWriter(&b)
	qp.Write([]byte(msg.HTML))
	qp.Close()
	return []byte(b.String())
}

func (p *SMTPProvider) Name() string {
	return "smtp"
}
