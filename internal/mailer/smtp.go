package mailer

import (
	"context"
	"errors"
	"net"
	"strconv"

	"gopkg.in/gomail.v2"
)

// SMTPConfig mirrors email/smtp.go's SmtpEmailerConfig in the teacher
// codebase: host/port split with a "host:port" fallback, optional auth.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// smtpSender sends mail through gomail's dialer, same as the teacher's
// smtpEmailer.
type smtpSender struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPSender builds a Sender from cfg, resolving host:port the same way
// the teacher's SmtpEmailerConfig.Emailer does.
func NewSMTPSender(cfg SMTPConfig) (Sender, error) {
	if cfg.From == "" {
		return nil, errors.New("mailer: smtp \"from\" address is required")
	}

	host, port := cfg.Host, cfg.Port
	if port == 0 {
		h, p, err := net.SplitHostPort(cfg.Host)
		if err != nil {
			return nil, err
		}
		host = h
		if port, err = strconv.Atoi(p); err != nil {
			return nil, err
		}
	}

	var dialer *gomail.Dialer
	if cfg.Username == "" {
		dialer = &gomail.Dialer{Host: host, Port: port, SSL: port == 465}
	} else {
		dialer = gomail.NewPlainDialer(host, port, cfg.Username, cfg.Password)
	}

	return &smtpSender{dialer: dialer, from: cfg.From}, nil
}

func (s *smtpSender) Send(ctx context.Context, subject, text, html, to string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", s.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", text)
	msg.AddAlternative("text/html", html)
	return s.dialer.DialAndSend(msg)
}
