package email

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parastoo-62/petitions/internal/config"
)

type stubSender struct {
	calls int
	err   error
}

func (s *stubSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	s.calls++
	return s.err
}

func TestBuildMessage(t *testing.T) {
	msg := string(BuildMessage("noreply@example.com", []string{"a@example.com", "b@example.com"}, "Hello", "body text"))

	assert.True(t, strings.HasPrefix(msg, "To: a@example.com, b@example.com\r\n"))
	assert.Contains(t, msg, "From: noreply@example.com\r\n")
	assert.Contains(t, msg, "Subject: Hello\r\n")
	assert.Contains(t, msg, "\r\n\r\nbody text\r\n")
}

func TestCompositeSenderFansOut(t *testing.T) {
	a := &stubSender{}
	b := &stubSender{}
	cs := NewCompositeEmailSender(a)
	cs.AddSender(b)

	err := cs.Send(context.Background(), []string{"x@example.com"}, "s", []byte("m"))
	require.NoError(t, err)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
}

func TestCompositeSenderCollectsErrors(t *testing.T) {
	a := &stubSender{err: errors.New("smtp down")}
	b := &stubSender{}
	cs := NewCompositeEmailSender(a, b)

	err := cs.Send(context.Background(), []string{"x@example.com"}, "s", []byte("m"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp down")
	assert.Equal(t, 1, b.calls, "remaining senders still run")
}

func TestNewSMTPSenderFallsBackToLogging(t *testing.T) {
	sender := NewSMTPSender(&config.Config{})
	_, ok := sender.(*LoggingSender)
	assert.True(t, ok)
}
