// AngelaMos | 2026
// mailer.go

package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"github.com/wneessen/go-mail"

	"github.com/carterperez-dev/templates/events-api/internal/config"
	"github.com/carterperez-dev/templates/events-api/internal/core"
)

const breakerTimeout = 30 * time.Second

type Message struct {
	To      string
	Subject string
	Text    string
}

// SMTP delivers plain-text mail through one configured relay.
type SMTP struct {
	from    string
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker
	deliver func(ctx context.Context, msg *mail.Msg) error
}

func NewSMTP(cfg config.MailConfig, logger *slog.Logger) (*SMTP, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("smtp mailer: %w", core.ErrNotConfigured)
	}

	opts := []mail.Option{mail.WithTLSPolicy(mail.TLSOpportunistic)}
	if cfg.Port > 0 {
		opts = append(opts, mail.WithPort(cfg.Port))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(cfg.Timeout))
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}

	return &SMTP{
		from:    cfg.From,
		timeout: cfg.Timeout,
		breaker: core.NewBreaker("mailer", breakerTimeout, logger),
		deliver: func(ctx context.Context, msg *mail.Msg) error {
			return client.DialAndSendWithContext(ctx, msg)
		},
	}, nil
}

func (s *SMTP) Send(ctx context.Context, msg Message) error {
	m, err := s.build(msg)
	if err != nil {
		return err
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	_, err = s.breaker.Execute(func() (any, error) {
		return nil, s.deliver(ctx, m)
	})
	return core.BreakerError("send mail", err)
}

func (s *SMTP) build(msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(s.from); err != nil {
		return nil, fmt.Errorf("mail from: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("mail to: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Text)
	return m, nil
}

// Log writes messages to the logger instead of sending them. It stands in
// for SMTP outside production when no relay is configured.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

func (l *Log) Send(ctx context.Context, msg Message) error {
	l.logger.InfoContext(ctx, "mail not sent, no smtp relay configured",
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.Text,
	)
	return nil
}
