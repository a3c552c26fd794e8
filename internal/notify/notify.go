// Package notify delivers operator alerts for failures that exhaust
// their retries.
package notify

import (
	"fmt"
	"net/smtp"
	"os"
	"strings"
)

// Notifier sends an alert to the administrators.
type Notifier interface {
	NotifyAdmins(subject, body string) error
}

// Nop discards alerts.
type Nop struct{}

func (Nop) NotifyAdmins(string, string) error { return nil }

// AdminMailer sends alerts over SMTP to a fixed recipient list.
type AdminMailer struct {
	Addr       string
	From       string
	Recipients []string
	Auth       smtp.Auth
}

// NewAdminMailerFromEnv builds a mailer from environment variables:
//
//	COLLECTIONCORE_SMTP_ADDR: host:port of the SMTP relay
//	COLLECTIONCORE_SMTP_FROM: sender address
//	COLLECTIONCORE_ADMIN_EMAILS: comma-separated recipient list
//
// Returns nil when no relay is configured.
func NewAdminMailerFromEnv() *AdminMailer {
	addr := os.Getenv("COLLECTIONCORE_SMTP_ADDR")
	if addr == "" {
		return nil
	}
	var recipients []string
	for _, r := range strings.Split(os.Getenv("COLLECTIONCORE_ADMIN_EMAILS"), ",") {
		if r = strings.TrimSpace(r); r != "" {
			recipients = append(recipients, r)
		}
	}
	return &AdminMailer{
		Addr:       addr,
		From:       os.Getenv("COLLECTIONCORE_SMTP_FROM"),
		Recipients: recipients,
	}
}

// NotifyAdmins sends one plain-text message to every configured recipient.
func (m *AdminMailer) NotifyAdmins(subject, body string) error {
	if len(m.Recipients) == 0 {
		return fmt.Errorf("no admin recipients configured")
	}
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		m.From, strings.Join(m.Recipients, ", "), subject, body)
	if err := smtp.SendMail(m.Addr, m.Auth, m.From, m.Recipients, []byte(msg)); err != nil {
		return fmt.Errorf("send admin mail: %w", err)
	}
	return nil
}
