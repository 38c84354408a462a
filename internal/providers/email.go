package providers

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"notification-engine/internal/config"
	"notification-engine/internal/dispatch"
	"notification-engine/internal/models"
)

// EmailTransport delivers email-channel jobs over SMTP.
type EmailTransport struct {
	cfg config.Config
}

func NewEmailTransport(cfg config.Config) *EmailTransport {
	return &EmailTransport{cfg: cfg}
}

func (t *EmailTransport) Send(ctx context.Context, job models.DispatchJob) error {
	if !strings.Contains(job.EmployeeEmail, "@") {
		// misconfiguration, not a transient fault
		return dispatch.Permanent(fmt.Errorf("recipient %s has no valid email address", job.EmployeeID))
	}

	smtpServer := t.cfg.Email.SMTPServer
	smtpPort := t.cfg.Email.SMTPPort
	username := t.cfg.Email.Username
	password := t.cfg.Email.Password
	if smtpServer == "" || smtpPort == 0 || username == "" || password == "" {
		return dispatch.Permanent(fmt.Errorf("missing SMTP configuration"))
	}

	from := username
	if t.cfg.Email.FromName != "" {
		from = fmt.Sprintf("%s <%s>", t.cfg.Email.FromName, username)
	}
	body := job.Message
	if job.ActionURL != "" {
		body += "\r\n\r\n" + job.ActionURL
	}
	message := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		from, job.EmployeeEmail, job.Title, body)

	auth := smtp.PlainAuth("", username, password, smtpServer)
	addr := fmt.Sprintf("%s:%d", smtpServer, smtpPort)
	if err := smtp.SendMail(addr, auth, username, []string{job.EmployeeEmail}, []byte(message)); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", job.EmployeeEmail, err)
	}
	return nil
}
