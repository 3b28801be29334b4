package mailer

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	gomail "gopkg.in/gomail.v2"

	"github.com/noah-isme/teacher-transfer-api/pkg/config"
)

// Sender delivers a single message to a recipient. Implementations are
// best-effort: callers log failures and never propagate them.
type Sender interface {
	Deliver(to, subject, message, fromName string) error
}

// SMTPMailer sends templated HTML mail through an SMTP relay.
type SMTPMailer struct {
	dialer   *gomail.Dialer
	from     string
	fromName string
	loginURL string
	enabled  bool
	logger   *zap.Logger
}

// New constructs an SMTPMailer from configuration. When mail is disabled the
// mailer becomes a no-op so development environments need no relay.
func New(cfg config.MailConfig, logger *zap.Logger) *SMTPMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SMTPMailer{
		dialer:   gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:     cfg.FromAddress,
		fromName: cfg.FromName,
		loginURL: cfg.LoginURL,
		enabled:  cfg.Enabled,
		logger:   logger,
	}
}

// Deliver sends one HTML message wrapped in the system template.
func (m *SMTPMailer) Deliver(to, subject, message, fromName string) error {
	if !m.enabled {
		m.logger.Debug("mail disabled, skipping delivery", zap.String("to", to), zap.String("subject", subject))
		return nil
	}
	if fromName == "" {
		fromName = m.fromName
	}

	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", m.from, m.fromName)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", m.render(message, fromName))

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}

func (m *SMTPMailer) render(message, fromName string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><title>School System Notification</title></head>
<body style="margin:0; padding:0; background-color:#f4f4f4; font-family:Arial,sans-serif;">
  <table width="100%%" border="0" cellspacing="0" cellpadding="0" bgcolor="#f4f4f4">
    <tr><td align="center" style="padding:20px;">
      <table width="600" border="0" cellspacing="0" cellpadding="0" bgcolor="#ffffff" style="border-radius:8px; overflow:hidden; border:1px solid #e0e0e0;">
        <tr><td align="center" bgcolor="#2E86C1" style="padding:30px;">
          <h1 style="margin:0; font-size:26px; color:#ffffff; font-weight:normal;">School System</h1>
        </td></tr>
        <tr><td style="padding:30px; color:#333; font-size:15px; line-height:1.6;">
          <p>Hello,</p>
          <p>%s</p>
          <p>From: <strong>%s</strong></p>
          <p style="margin:30px 0;">
            <a href="%s" style="background:#2E86C1; color:#ffffff; text-decoration:none; padding:12px 24px; border-radius:5px; display:inline-block; font-size:15px;">Log in to your account</a>
          </p>
        </td></tr>
        <tr><td style="padding:20px 30px; font-size:12px; color:#777; text-align:center;">
          <p style="margin:0;">This is an automated message. Please do not reply.</p>
          <p style="margin:5px 0 0;">&copy; %d School System</p>
        </td></tr>
      </table>
    </td></tr>
  </table>
</body>
</html>`, message, fromName, m.loginURL, time.Now().Year())
}
