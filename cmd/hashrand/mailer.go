package main

import (
	"fmt"
	"os"

	"github.com/arkaitz-dev/hashrand-sub000/internal/config"
	"github.com/arkaitz-dev/hashrand-sub000/internal/mailer"
	"github.com/arkaitz-dev/hashrand-sub000/pkg/log"
)

// openMailer builds the mailer.Sender named by cfg.Type. config.Validate
// already refuses a "dev" mailer outside development, so this only has to
// pick the transport.
func openMailer(cfg config.Mailer, logger log.Logger) (*mailer.Mailer, error) {
	var sender mailer.Sender
	switch cfg.Type {
	case "dev":
		sender = mailer.DevSender{Logger: logger}
	case "smtp":
		var err error
		sender, err = mailer.NewSMTPSender(mailer.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.User,
			Password: os.Getenv(cfg.SMTP.Password),
			From:     cfg.From,
		})
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown mailer type %q", cfg.Type)
	}
	return mailer.New(sender)
}
