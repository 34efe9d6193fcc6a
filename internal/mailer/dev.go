package mailer

import (
	"context"
	"fmt"

	"github.com/arkaitz-dev/hashrand-sub000/pkg/log"
)

// DevSender logs the rendered email instead of delivering it, the same
// role email/interface.go's FakeEmailer plays in the teacher codebase. It
// must never be selected in a production environment; config.Validate
// enforces that mailer.type isn't "dev" in production.
type DevSender struct {
	Logger log.Logger
}

func (d DevSender) Send(ctx context.Context, subject, text, html, to string) error {
	d.Logger.Infof("dev mailer: to=%s subject=%q\n%s", to, subject, text)
	return nil
}

// EchoSender records the recipient and subject of the last message it was
// handed, as "to=… subject=…", and delivers nothing. The message body, and
// so the magic link, is not kept.
type EchoSender struct {
	Last string
}

func (e *EchoSender) Send(ctx context.Context, subject, text, html, to string) error {
	e.Last = fmt.Sprintf("to=%s subject=%s", to, subject)
	return nil
}
