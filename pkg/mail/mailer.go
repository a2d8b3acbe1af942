// Package mail delivers finished research reports over SMTP.
package mail

import (
	"context"
	"fmt"

	gomail "github.com/wneessen/go-mail"
)

const defaultFromAddress = "no-reply@example.com"

// SMTPMailer sends plain-text mail over SMTP with STARTTLS and PLAIN
// auth. The sender defaults to the SMTP username.
type SMTPMailer struct {
	host      string
	port      int
	username  string
	password  string
	recipient string
}

func NewSMTPMailer(host string, port int, username, password, recipient string) *SMTPMailer {
	return &SMTPMailer{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		recipient: recipient,
	}
}

// WithRecipient returns a copy of the mailer addressed to a different
// recipient. Used for per-run recipient overrides.
func (m *SMTPMailer) WithRecipient(addr string) *SMTPMailer {
	clone := *m
	clone.recipient = addr
	return &clone
}

func (m *SMTPMailer) fromAddress() string {
	if m.username != "" {
		return m.username
	}
	return defaultFromAddress
}

func (m *SMTPMailer) Send(ctx context.Context, subject, body string) error {
	msg := gomail.NewMsg()
	if err := msg.From(m.fromAddress()); err != nil {
		return fmt.Errorf("invalid sender address %q: %w", m.fromAddress(), err)
	}
	if err := msg.To(m.recipient); err != nil {
		return fmt.Errorf("invalid recipient address %q: %w", m.recipient, err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, body)

	client, err := gomail.NewClient(m.host,
		gomail.WithPort(m.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(m.username),
		gomail.WithPassword(m.password),
		gomail.WithTLSPolicy(gomail.TLSMandatory),
	)
	if err != nil {
		return fmt.Errorf("failed to create smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", m.recipient, err)
	}
	return nil
}
