package email

import (
	"fmt"
	"net/smtp"

	"scribe/config"
)

type EmailService struct {
	host     string
	port     string
	user     string
	password string
	from     string
	send     func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailService returns nil when SMTP is not configured, which disables
// outgoing mail.
func NewEmailService(cfg config.SMTPConfig) *EmailService {
	if !cfg.Enabled() {
		return nil
	}
	return &EmailService{
		host:     cfg.Host,
		port:     cfg.Port,
		user:     cfg.User,
		password: cfg.Password,
		from:     cfg.From,
		send:     smtp.SendMail,
	}
}

func (e *EmailService) SendWelcomeEmail(to, name string) error {
	subject := "Welcome to Scribe"
	body := fmt.Sprintf(`
Hi %s,

Your Scribe account is ready. You can now sign in, write posts and join the
conversation in the comments.

---
Scribe
`, name)

	message := buildMessage(e.from, to, subject, body)

	var auth smtp.Auth
	if e.user != "" {
		auth = smtp.PlainAuth("", e.user, e.password, e.host)
	}
	addr := fmt.Sprintf("%s:%s", e.host, e.port)

	if err := e.send(addr, auth, e.from, []string{to}, message); err != nil {
		return fmt.Errorf("send welcome email: %w", err)
	}
	return nil
}

func buildMessage(from, to, subject, body string) []byte {
	return []byte(fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"\r\n"+
		"%s\r\n", from, to, subject, body))
}
