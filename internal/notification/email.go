package notification

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"time"

	"go.uber.org/zap"

	"github.com/smukkama/air-quality-server/internal/aqi"
	"github.com/smukkama/air-quality-server/internal/protocol"
	"github.com/smukkama/air-quality-server/pkg/config"
	"github.com/smukkama/air-quality-server/pkg/logging"
)

var triggeredTemplate = template.Must(template.New("triggered").Parse(`
AQI Alert Triggered
===================

Station: {{.Station}}
Level: {{.Level}}
Current AQI: {{printf "%.1f" .AQI}}
Threshold: {{.Threshold}} or worse
Consecutive hours: {{.Hours}}
Since: {{.StartKey}}
Latest reading: {{.LatestKey}}
Alert ID: {{.AlertID}}

Air quality at station {{.Station}} has been at "{{.Threshold}}" or worse for
{{.Hours}} consecutive hours, starting at {{.StartKey}}.

Health advice:
  People with asthma: {{.Advice.Asthma}}
  People with COPD: {{.Advice.COPD}}
  Everyone else: {{.Advice.General}}

---
Air Quality Server Notification System
`))

var clearedTemplate = template.Must(template.New("cleared").Parse(`
AQI Alert Cleared
=================

Station: {{.Station}}
Current level: {{.Level}}
Current AQI: {{printf "%.1f" .AQI}}
Alert ID: {{.AlertID}}

Air quality at station {{.Station}} dropped below "{{.Threshold}}" at {{.LatestKey}},
after {{.Hours}} hours since {{.StartKey}}.

---
Air Quality Server Notification System
`))

type emailData struct {
	*protocol.AlertNotification
	Advice aqi.Advice
}

// EmailNotifier sends email notifications
type EmailNotifier struct {
	config *config.SMTPConfig
	logger *zap.SugaredLogger
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailNotifier creates a new email notifier
func NewEmailNotifier(cfg *config.SMTPConfig, logger *zap.SugaredLogger) *EmailNotifier {
	return &EmailNotifier{config: cfg, logger: logging.OrNop(logger), send: smtp.SendMail}
}

// SendAlertNotification sends an email for an AQI alert notification
func (e *EmailNotifier) SendAlertNotification(notification *protocol.AlertNotification) error {
	subject, body, err := Render(notification)
	if err != nil {
		return err
	}
	return e.sendEmail(subject, body)
}

// Render builds the subject and body of an alert email
func Render(notification *protocol.AlertNotification) (string, string, error) {
	var subject string
	var tmpl *template.Template

	switch notification.Type {
	case protocol.AlertTypeTriggered:
		subject = fmt.Sprintf("AQI alert TRIGGERED - %s (%s)", notification.Station, notification.Level)
		tmpl = triggeredTemplate
	case protocol.AlertTypeCleared:
		subject = fmt.Sprintf("AQI alert CLEARED - %s", notification.Station)
		tmpl = clearedTemplate
	default:
		return "", "", fmt.Errorf("unknown notification type: %s", notification.Type)
	}

	var buf bytes.Buffer
	data := emailData{AlertNotification: notification, Advice: aqi.Advise(notification.AQI)}
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("failed to render email template: %w", err)
	}

	return subject, buf.String(), nil
}

func (e *EmailNotifier) sendEmail(subject, body string) error {
	if e.config.Username == "" || e.config.Password == "" {
		e.logger.Infow("SMTP not configured, skipping email", "subject", subject)
		e.logger.Debug(body)
		return nil
	}

	message := fmt.Sprintf("From: %s\r\n", e.config.From)
	message += fmt.Sprintf("To: %s\r\n", e.config.To)
	message += fmt.Sprintf("Subject: %s\r\n", subject)
	message += fmt.Sprintf("Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	message += "\r\n"
	message += body

	auth := smtp.PlainAuth("", e.config.Username, e.config.Password, e.config.Host)

	addr := fmt.Sprintf("%s:%d", e.config.Host, e.config.Port)
	if err := e.send(addr, auth, e.config.From, []string{e.config.To}, []byte(message)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	e.logger.Infow("Email sent", "subject", subject, "to", e.config.To)
	return nil
}

// TestConnection tests the SMTP connection
func (e *EmailNotifier) TestConnection() error {
	if e.config.Username == "" {
		return fmt.Errorf("SMTP not configured")
	}

	addr := fmt.Sprintf("%s:%d", e.config.Host, e.config.Port)
	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer client.Close()

	e.logger.Infow("SMTP connection test successful", "addr", addr)
	return nil
}
