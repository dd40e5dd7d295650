package notification

import (
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smukkama/air-quality-server/internal/aqi"
	"github.com/smukkama/air-quality-server/internal/protocol"
	"github.com/smukkama/air-quality-server/pkg/config"
)

func triggered() *protocol.AlertNotification {
	return &protocol.AlertNotification{
		Type:      protocol.AlertTypeTriggered,
		Station:   "MER",
		Level:     string(aqi.LevelUnhealthy),
		Threshold: string(aqi.LevelUnhealthySensitive),
		AQI:       172.4,
		Hours:     3,
		StartKey:  "2024-03-01 01:00",
		LatestKey: "2024-03-01 03:00",
		AlertID:   7,
	}
}

func TestRender_Triggered(t *testing.T) {
	subject, body, err := Render(triggered())
	require.NoError(t, err)

	assert.Equal(t, "AQI alert TRIGGERED - MER (Unhealthy)", subject)
	assert.Contains(t, body, "Current AQI: 172.4")
	assert.Contains(t, body, "Consecutive hours: 3")
	assert.Contains(t, body, "Since: 2024-03-01 01:00")
	assert.Contains(t, body, "Alert ID: 7")
	assert.Contains(t, body, aqi.Advise(172.4).General)
}

func TestRender_Cleared(t *testing.T) {
	n := triggered()
	n.Type = protocol.AlertTypeCleared
	n.Level = string(aqi.LevelGood)
	n.AQI = 42

	subject, body, err := Render(n)
	require.NoError(t, err)
	assert.Equal(t, "AQI alert CLEARED - MER", subject)
	assert.Contains(t, body, "Current level: Good")
	assert.NotContains(t, body, "Health advice")
}

func TestRender_UnknownType(t *testing.T) {
	n := triggered()
	n.Type = "SOMETHING"
	_, _, err := Render(n)
	assert.Error(t, err)
}

func TestSendAlertNotification(t *testing.T) {
	cfg := &config.SMTPConfig{Host: "smtp.example.com", Port: 587, Username: "u", Password: "p", From: "aqi@example.com", To: "ops@example.com"}
	notifier := NewEmailNotifier(cfg, nil)

	var gotAddr string
	var gotMsg []byte
	notifier.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr = addr
		gotMsg = msg
		assert.Equal(t, "aqi@example.com", from)
		assert.Equal(t, []string{"ops@example.com"}, to)
		return nil
	}

	require.NoError(t, notifier.SendAlertNotification(triggered()))
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Contains(t, string(gotMsg), "Subject: AQI alert TRIGGERED - MER (Unhealthy)\r\n")
}

func TestSendAlertNotification_SkipsWithoutCredentials(t *testing.T) {
	notifier := NewEmailNotifier(&config.SMTPConfig{}, nil)
	notifier.send = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("send must not be called")
		return nil
	}
	assert.NoError(t, notifier.SendAlertNotification(triggered()))
}
