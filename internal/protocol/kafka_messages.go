package protocol

import (
	"encoding/json"
	"time"

	"github.com/smukkama/air-quality-server/internal/pipeline"
)

// StationReading is the readings topic payload
type StationReading struct {
	ConnectionID string      `json:"connection_id"`
	Station      string      `json:"station"`
	Name         string      `json:"name"`
	ReceivedAt   time.Time   `json:"received_at"`
	Data         ReadingData `json:"data"`
}

// AQIMessage is the hourly AQI topic payload: one record of one station
type AQIMessage struct {
	Station    string          `json:"station"`
	RunID      string          `json:"run_id"`
	ComputedAt time.Time       `json:"computed_at"`
	Record     pipeline.Record `json:"record"`
}

// AlertNotification is the message format for AQI alerts
type AlertNotification struct {
	Type      string    `json:"type"` // AQI_ALERT_TRIGGERED, AQI_ALERT_CLEARED
	Station   string    `json:"station"`
	Level     string    `json:"level"`
	Threshold string    `json:"threshold"`
	AQI       float64   `json:"aqi"`
	Hours     int       `json:"hours"`
	StartKey  string    `json:"start_key"`
	LatestKey string    `json:"latest_key"`
	StartTime time.Time `json:"start_time"`
	AlertID   int64     `json:"alert_id,omitempty"`
}

const (
	AlertTypeTriggered = "AQI_ALERT_TRIGGERED"
	AlertTypeCleared   = "AQI_ALERT_CLEARED"
)

// EncodeStationReading encodes a StationReading to JSON
func EncodeStationReading(msg *StationReading) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeStationReading decodes JSON to StationReading
func DecodeStationReading(data []byte) (*StationReading, error) {
	var msg StationReading
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// EncodeAQIMessage encodes an AQIMessage to JSON
func EncodeAQIMessage(msg *AQIMessage) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeAQIMessage decodes JSON to AQIMessage
func DecodeAQIMessage(data []byte) (*AQIMessage, error) {
	var msg AQIMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// EncodeAlertNotification encodes an AlertNotification to JSON
func EncodeAlertNotification(alert *AlertNotification) ([]byte, error) {
	return json.Marshal(alert)
}

// DecodeAlertNotification decodes JSON to AlertNotification
func DecodeAlertNotification(data []byte) (*AlertNotification, error) {
	var alert AlertNotification
	if err := json.Unmarshal(data, &alert); err != nil {
		return nil, err
	}
	return &alert, nil
}
