// Package mailer sends the magic-link email. It follows the same
// Emailer/TemplatizedEmailer split the teacher codebase uses in email/: a
// small transport interface plus a template layer built on text/template
// and html/template, so the transport never sees un-rendered data.
package mailer

import (
	"bytes"
	"context"
	"errors"
	htmltemplate "html/template"
	"text/template"
)

// Message is the one email this service ever sends: a magic link.
type Message struct {
	To        string
	MagicLink string
	UIHost    string
	ExpiresIn string
}

// Sender delivers a rendered message. Implementations must be safe for
// concurrent use.
type Sender interface {
	Send(ctx context.Context, subject, text, html string, to string) error
}

const (
	textBody = `You requested to sign in to {{.UIHost}}.

Open this link to continue: {{.MagicLink}}

This link expires in {{.ExpiresIn}} and can only be used once. If you did
not request this, you can ignore this email.
`
	htmlBody = `<p>You requested to sign in to {{.UIHost}}.</p>
<p><a href="{{.MagicLink}}">Click here to continue</a></p>
<p>This link expires in {{.ExpiresIn}} and can only be used once. If you
did not request this, you can ignore this email.</p>
`
	subject = "Your sign-in link"
)

// Mailer renders Message against the built-in templates and hands the
// result to a Sender.
type Mailer struct {
	sender Sender
	text   *template.Template
	html   *htmltemplate.Template
}

// New builds a Mailer around sender, parsing the built-in templates once.
func New(sender Sender) (*Mailer, error) {
	t, err := template.New("magiclink.txt").Parse(textBody)
	if err != nil {
		return nil, err
	}
	h, err := htmltemplate.New("magiclink.html").Parse(htmlBody)
	if err != nil {
		return nil, err
	}
	return &Mailer{sender: sender, text: t, html: h}, nil
}

// SendMagicLink renders and sends msg.
func (m *Mailer) SendMagicLink(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return errors.New("mailer: recipient is required")
	}

	var textBuf, htmlBuf bytes.Buffer
	if err := m.text.Execute(&textBuf, msg); err != nil {
		return err
	}
	if err := m.html.Execute(&htmlBuf, msg); err != nil {
		return err
	}

	return m.sender.Send(ctx, subject, textBuf.String(), htmlBuf.String(), msg.To)
}
