// Package alert delivers operational notifications when the engine's
// language model path degrades.
package alert

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/narratex/narratex/pkg/config"
)

// Alerter delivers one operational notification.
type Alerter interface {
	Alert(subject, message string) error
}

// EmailAlerter sends notifications over SMTP to the configured recipients.
// Subjects are prefixed with the service name so operators can filter them.
type EmailAlerter struct {
	cfg config.AlertConfig
}

// NewEmailAlerter creates an alerter from SMTP configuration.
func NewEmailAlerter(cfg config.AlertConfig) *EmailAlerter {
	return &EmailAlerter{cfg: cfg}
}

// Alert sends a single email. A disabled configuration makes it a no-op.
func (a *EmailAlerter) Alert(subject, message string) error {
	if !a.cfg.Enabled {
		return nil
	}

	auth := smtp.PlainAuth("", a.cfg.Username, a.cfg.Password, a.cfg.SMTPHost)
	body := fmt.Sprintf("To: %s\r\nSubject: [narratex] %s\r\n\r\n%s\r\n",
		strings.Join(a.cfg.To, ","), subject, message)
	addr := fmt.Sprintf("%s:%d", a.cfg.SMTPHost, a.cfg.SMTPPort)

	if err := smtp.SendMail(addr, auth, a.cfg.From, a.cfg.To, []byte(body)); err != nil {
		return fmt.Errorf("send alert email: %w", err)
	}
	return nil
}

// NoOpAlerter discards notifications. Used when alerting is not configured.
type NoOpAlerter struct{}

func (*NoOpAlerter) Alert(subject, message string) error { return nil }
