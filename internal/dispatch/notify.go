package dispatch

import (
	"context"
	"fmt"
	"net/smtp"
	"os"
	"strings"

	"github.com/influmate/influmate/internal/config"
)

// SMTPNotifier delivers notifications over authenticated SMTP. The
// password comes from the environment variable named in the config so
// credentials never live in the config file.
type SMTPNotifier struct {
	host     string
	port     int
	username string
	password string
}

// NewSMTPNotifier builds a notifier from the dispatch config. It returns
// nil when the SMTP section is incomplete, which disables notifications
// rather than failing at send time.
func NewSMTPNotifier(cfg config.SMTP) *SMTPNotifier {
	if cfg.Host == "" || cfg.Username == "" {
		return nil
	}
	password := os.Getenv(cfg.PasswordEnv)
	if password == "" {
		return nil
	}
	return &SMTPNotifier{
		host:     cfg.Host,
		port:     cfg.Port,
		username: cfg.Username,
		password: password,
	}
}

// Notify sends a plain-text message to recipient.
func (n *SMTPNotifier) Notify(ctx context.Context, recipient, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", n.username)
	fmt.Fprintf(&msg, "To: %s\r\n", recipient)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	addr := fmt.Sprintf("%s:%d", n.host, n.port)
	auth := smtp.PlainAuth("", n.username, n.password, n.host)
	if err := smtp.SendMail(addr, auth, n.username, []string{recipient}, []byte(msg.String())); err != nil {
		return fmt.Errorf("sending mail via %s: %w", addr, err)
	}
	return nil
}
