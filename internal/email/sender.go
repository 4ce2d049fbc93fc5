package email

import (
	"context"
	"fmt"
	"net/smtp"

	log "github.com/sirupsen/logrus"

	"github.com/parastoo-62/petitions/internal/config"
)

// Sender delivers an email. The rawMessage contains the full message,
// headers included. A nil error means the transport confirmed delivery;
// alert throttling relies on that distinction.
type Sender interface {
	Send(ctx context.Context, to []string, subject string, rawMessage []byte) error
}

// SMTPSender implements Sender using net/smtp.
type SMTPSender struct {
	cfg  *config.Config
	auth smtp.Auth
	addr string
}

// NewSMTPSender creates an SMTPSender, or a LoggingSender when no SMTP host
// is configured (development setups).
func NewSMTPSender(cfg *config.Config) Sender {
	if cfg.SmtpHost == "" {
		log.Info("SMTP host not configured, using logging email sender")
		return &LoggingSender{cfg: cfg}
	}

	auth := smtp.PlainAuth(
		"", // identity
		cfg.SmtpUsername,
		cfg.SmtpPassword,
		cfg.SmtpHost,
	)
	addr := fmt.Sprintf("%s:%d", cfg.SmtpHost, cfg.SmtpPort)

	return &SMTPSender{
		cfg:  cfg,
		auth: auth,
		addr: addr,
	}
}

// Send sends an email over SMTP.
func (s *SMTPSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	if err := smtp.SendMail(s.addr, s.auth, s.cfg.SmtpFromAddress, to, rawMessage); err != nil {
		log.WithError(err).WithField("to", to).Warn("Failed to send email via SMTP")
		return fmt.Errorf("smtp error: %w", err)
	}
	log.WithFields(log.Fields{"to": to, "subject": subject}).Debug("Email sent via SMTP")
	return nil
}

// LoggingSender logs email details instead of sending. Useful when SMTP is
// not configured.
type LoggingSender struct {
	cfg *config.Config
}

// Send logs the email and reports success.
func (s *LoggingSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	log.WithFields(log.Fields{
		"to":      to,
		"from":    s.cfg.SmtpFromAddress,
		"subject": subject,
	}).Info("Email (logged, not sent)")
	log.Debug(string(rawMessage))
	return nil
}

// BuildMessage assembles a complete plain-text email message with headers,
// ready for a Sender.
func BuildMessage(from string, to []string, subject, body string) []byte {
	var b []byte
	appendLine := func(s string) {
		b = append(b, s...)
		b = append(b, '\r', '\n')
	}
	appendLine("To: " + joinAddresses(to))
	appendLine("From: " + from)
	appendLine("Subject: " + subject)
	appendLine("MIME-Version: 1.0")
	appendLine(`Content-Type: text/plain; charset="UTF-8"`)
	appendLine("")
	b = append(b, body...)
	b = append(b, '\r', '\n')
	return b
}

func joinAddresses(to []string) string {
	out := ""
	for i, addr := range to {
		if i > 0 {
			out += ", "
		}
		out += addr
	}
	return out
}
