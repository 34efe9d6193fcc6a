package mailer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type capturingSender struct {
	subject, text, html, to string
}

func (c *capturingSender) Send(ctx context.Context, subject, text, html, to string) error {
	c.subject, c.text, c.html, c.to = subject, text, html, to
	return nil
}

func TestSendMagicLinkRendersBothBodies(t *testing.T) {
	sender := &capturingSender{}
	m, err := New(sender)
	require.NoError(t, err)

	err = m.SendMagicLink(context.Background(), Message{
		To:        "user@example.com",
		MagicLink: "https://app.example.com/auth?token=abc",
		UIHost:    "app.example.com",
		ExpiresIn: "2 minutes",
	})
	require.NoError(t, err)

	require.Equal(t, "user@example.com", sender.to)
	require.Contains(t, sender.text, "https://app.example.com/auth?token=abc")
	require.Contains(t, sender.html, "href=\"https://app.example.com/auth?token=abc\"")
}

func TestSendMagicLinkRejectsMissingRecipient(t *testing.T) {
	m, err := New(&capturingSender{})
	require.NoError(t, err)

	err = m.SendMagicLink(context.Background(), Message{MagicLink: "x"})
	require.Error(t, err)
}
