// AngelaMos | 2026
// mailer_test.go

package mailer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"

	"github.com/carterperez-dev/templates/events-api/internal/config"
	"github.com/carterperez-dev/templates/events-api/internal/core"
)

func newTestSMTP(t *testing.T, deliver func(context.Context, *mail.Msg) error) *SMTP {
	t.Helper()

	s, err := NewSMTP(config.MailConfig{
		Host:    "smtp.example.com",
		Port:    2525,
		From:    "Events <noreply@example.com>",
		Timeout: time.Second,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	s.deliver = deliver
	return s
}

func TestNewSMTPRequiresHost(t *testing.T) {
	_, err := NewSMTP(config.MailConfig{}, nil)
	assert.ErrorIs(t, err, core.ErrNotConfigured)
}

func TestSendBuildsMessage(t *testing.T) {
	var sent *mail.Msg
	s := newTestSMTP(t, func(_ context.Context, m *mail.Msg) error {
		sent = m
		return nil
	})

	err := s.Send(context.Background(), Message{
		To:      "alice@example.com",
		Subject: "Your password reset token (valid for 10 minutes)",
		Text:    "reset here",
	})
	require.NoError(t, err)
	require.NotNil(t, sent)

	rcpts, err := sent.GetRecipients()
	require.NoError(t, err)
	assert.Equal(t, []string{"alice@example.com"}, rcpts)
	assert.Equal(t,
		[]string{"Your password reset token (valid for 10 minutes)"},
		sent.GetGenHeader(mail.HeaderSubject),
	)
}

func TestSendRejectsBadAddress(t *testing.T) {
	called := false
	s := newTestSMTP(t, func(context.Context, *mail.Msg) error {
		called = true
		return nil
	})

	err := s.Send(context.Background(), Message{To: "not an address"})
	assert.Error(t, err)
	assert.False(t, called)
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	calls := 0
	relayDown := errors.New("connection refused")
	s := newTestSMTP(t, func(context.Context, *mail.Msg) error {
		calls++
		return relayDown
	})

	msg := Message{To: "alice@example.com", Subject: "hi", Text: "hi"}
	for range 4 {
		err := s.Send(context.Background(), msg)
		assert.ErrorIs(t, err, relayDown)
	}

	err := s.Send(context.Background(), msg)
	assert.ErrorIs(t, err, core.ErrUnavailable)
	assert.Equal(t, 4, calls)
}

func TestLogMailerNeverFails(t *testing.T) {
	l := NewLog(slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.NoError(t, l.Send(context.Background(), Message{To: "a@b.c"}))
}
