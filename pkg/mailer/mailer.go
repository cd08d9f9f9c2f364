// Package mailer sends transactional email over SMTP. It delivers the
// password reset codes and welcome messages of the auth service.
package mailer

import (
	"errors"
	"fmt"
	"net/smtp"
	"strings"
)

// Mailer sends a single plain-text message.
type Mailer interface {
	Send(to, subject, body string) error
}

// SMTPMailer sends mail through an SMTP relay with PLAIN auth.
type SMTPMailer struct {
	host     string
	port     int
	username string
	password string
	from     string
}

// NewSMTPMailer builds a mailer for the given relay. The from address
// defaults to the username.
func NewSMTPMailer(host string, port int, username, password, from string) (*SMTPMailer, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return nil, errors.New("smtp host is required")
	}
	if port <= 0 {
		port = 587
	}
	from = strings.TrimSpace(from)
	if from == "" {
		from = strings.TrimSpace(username)
	}
	if from == "" {
		return nil, errors.New("smtp from address is required")
	}
	return &SMTPMailer{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
	}, nil
}

// Send delivers one message. Headers are minimal: From, To, Subject.
func (m *SMTPMailer) Send(to, subject, body string) error {
	to = strings.TrimSpace(to)
	if to == "" {
		return errors.New("recipient address is required")
	}
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n", m.from, to, subject, body)
	addr := fmt.Sprintf("%s:%d", m.host, m.port)
	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}
	if err := smtp.SendMail(addr, auth, m.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}

// Nop discards all messages. It stands in when SMTP is not configured.
type Nop struct{}

func (Nop) Send(string, string, string) error { return nil }
