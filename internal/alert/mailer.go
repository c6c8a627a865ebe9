package alert

import (
	"github.com/charmbracelet/log"
	"github.com/wneessen/go-mail"

	"ipsentry/internal/config"
	"ipsentry/internal/support"
)

const subjectPrefix = "[ipsentry] "

// Sender delivers operator alerts. Delivery is best-effort: implementations
// log failures and never surface them to callers.
type Sender interface {
	Send(subject, body string)
}

// LogSender is the fallback used when mail delivery is not configured. Alerts
// still land in the process log.
type LogSender struct{}

func (LogSender) Send(subject, body string) {
	log.Warn("Alert (mail delivery not configured)", "subject", subject)
}

// MailSender delivers alerts over SMTP to the configured recipients.
type MailSender struct {
	host       string
	port       int
	username   string
	password   string
	from       string
	recipients []string
}

// NewSenderFromEnv builds the alert sender from SMTP_* environment variables
// and the alert recipients in settings. Without a host or recipients it
// degrades to LogSender.
func NewSenderFromEnv() Sender {
	host := support.GetEnv("SMTP_HOST", "")
	recipients := config.GetConfig().Alerts.Recipients

	if host == "" || len(recipients) == 0 {
		return LogSender{}
	}

	from := config.GetConfig().Alerts.From
	if from == "" {
		from = "ipsentry@localhost"
	}

	return &MailSender{
		host:       host,
		port:       support.GetEnvInt("SMTP_PORT", 587),
		username:   support.GetEnv("SMTP_USERNAME", ""),
		password:   support.GetEnv("SMTP_PASSWORD", ""),
		from:       from,
		recipients: recipients,
	}
}

func (s *MailSender) Send(subject, body string) {
	msg := mail.NewMsg()
	if err := msg.From(s.from); err != nil {
		log.Error("Alert mail: invalid from address", "from", s.from, "error", err)
		return
	}
	if err := msg.To(s.recipients...); err != nil {
		log.Error("Alert mail: invalid recipient", "error", err)
		return
	}
	msg.Subject(subjectPrefix + subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	opts := []mail.Option{mail.WithPort(s.port)}
	if s.username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.username),
			mail.WithPassword(s.password),
		)
	}

	client, err := mail.NewClient(s.host, opts...)
	if err != nil {
		log.Error("Alert mail: client setup failed", "error", err)
		return
	}

	if err := client.DialAndSend(msg); err != nil {
		log.Error("Alert mail: delivery failed", "subject", subject, "error", err)
		return
	}

	log.Info("Alert email sent", "subject", subject)
}
