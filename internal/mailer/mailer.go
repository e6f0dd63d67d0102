// Package mailer sends transactional email over SMTP.
package mailer

import (
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/callvox/backend/config"
)

// Mailer sends email via the configured SMTP server.
type Mailer struct {
	cfg    config.EmailConfig
	dialer *gomail.Dialer
}

// New creates a mailer. Returns an error when SMTP is not configured so the
// caller can run without email (reset links are then only logged).
func New(cfg config.EmailConfig) (*Mailer, error) {
	if cfg.SMTPHost == "" || cfg.SMTPUser == "" {
		return nil, fmt.Errorf("smtp not configured")
	}
	dialer := gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass)
	return &Mailer{cfg: cfg, dialer: dialer}, nil
}

// SendPasswordReset emails a password reset link.
func (m *Mailer) SendPasswordReset(to, resetLink string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", fmt.Sprintf("%s <%s>", m.cfg.FromName, m.cfg.FromAddress))
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", "Password Reset Request")
	msg.SetBody("text/html", fmt.Sprintf(
		`<h2>Password Reset</h2><p>Click the link to reset your password: <a href="%s">%s</a></p><p>The link expires in 15 minutes.</p>`,
		resetLink, resetLink))

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}
