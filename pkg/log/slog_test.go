package log

import (
	"bytes"
	"log/slog"
	"testing"
)

func TestSlogLoggerImplementsLoggerInterface(t *testing.T) {
	var i interface{} = new(SlogLogger)
	if _, ok := i.(Logger); !ok {
		t.Errorf("expected %T to implement Logger interface", i)
	}
}

func TestSlogLoggerWritesFormattedMessages(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogLogger(slog.New(slog.NewTextHandler(&buf, nil)))

	l.Infof("hello %s", "world")
	if got := buf.String(); !bytes.Contains([]byte(got), []byte("hello world")) {
		t.Errorf("expected output to contain formatted message, got %q", got)
	}
}
