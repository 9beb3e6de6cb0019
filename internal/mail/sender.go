// Package mail sends transactional email (password resets) over SMTP.
package mail

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	gomail "github.com/wneessen/go-mail"

	"github.com/iliyamo/finiti-glossary/internal/config"
)

// Sender delivers one HTML message.
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// SMTPSender sends through an authenticated SMTP relay.
type SMTPSender struct {
	cfg config.MailConfig
	log zerolog.Logger
}

// New returns an SMTPSender, or a LogSender when no SMTP host is
// configured.
func New(cfg config.MailConfig, log zerolog.Logger) Sender {
	log = log.With().Str("component", "mail").Logger()
	if cfg.Host == "" {
		log.Warn().Msg("SMTP_HOST not set; emails will be logged instead of sent")
		return LogSender{log: log}
	}
	return &SMTPSender{cfg: cfg, log: log}
}

func (s *SMTPSender) message(to, subject, htmlBody string) (*gomail.Msg, error) {
	m := gomail.NewMsg()
	if err := m.FromFormat(s.cfg.FromName, s.cfg.FromAddress); err != nil {
		return nil, fmt.Errorf("from address: %w", err)
	}
	if err := m.To(to); err != nil {
		return nil, fmt.Errorf("to address: %w", err)
	}
	m.Subject(subject)
	m.SetBodyString(gomail.TypeTextHTML, htmlBody)
	return m, nil
}

// Send delivers the message, using STARTTLS when the server offers it.
func (s *SMTPSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	m, err := s.message(to, subject, htmlBody)
	if err != nil {
		return err
	}

	opts := []gomail.Option{
		gomail.WithPort(s.cfg.Port),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.cfg.Username),
			gomail.WithPassword(s.cfg.Password),
		)
	}
	c, err := gomail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := c.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	s.log.Debug().Str("to", to).Str("subject", subject).Msg("email sent")
	return nil
}

// LogSender writes emails to the log.  Used in development.
type LogSender struct {
	log zerolog.Logger
}

// NewLogSender returns a LogSender writing to log.
func NewLogSender(log zerolog.Logger) LogSender { return LogSender{log: log} }

func (s LogSender) Send(_ context.Context, to, subject, htmlBody string) error {
	s.log.Info().Str("to", to).Str("subject", subject).Str("body", htmlBody).Msg("email not sent (no SMTP host)")
	return nil
}
