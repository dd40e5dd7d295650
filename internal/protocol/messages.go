package protocol

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/smukkama/air-quality-server/internal/aqi"
	"github.com/smukkama/air-quality-server/internal/series"
)

// MessageType represents the type of message
type MessageType string

const (
	// Station to Server
	MsgTypeIdentify  MessageType = "identify"
	MsgTypeReading   MessageType = "reading"
	MsgTypeKeepalive MessageType = "keepalive"

	// Server to Station
	MsgTypeAck MessageType = "ack"
)

// BaseMessage is the common structure for all messages
type BaseMessage struct {
	Type MessageType `json:"type"`
}

// IdentifyMessage is sent by a station on connection
type IdentifyMessage struct {
	Type    MessageType `json:"type"`
	Station string      `json:"station"`
	Name    string      `json:"name,omitempty"`
}

// ReadingData is one hourly concentration in source units (ppm for NO2/O3,
// µg/m³ for PM2.5). A null Valor reports a missing measurement.
type ReadingData struct {
	Pollutant string   `json:"pollutant"`
	Fecha     string   `json:"fecha"`
	Hora      string   `json:"hora"`
	Valor     *float64 `json:"valor"`
}

// Key is the composite timestamp of the reading
func (d ReadingData) Key() series.Key {
	return series.NewKey(d.Fecha, d.Hora)
}

// Reading converts the payload to a series reading of its pollutant
func (d ReadingData) Reading() (aqi.Pollutant, series.Reading, error) {
	p, err := aqi.ParsePollutant(d.Pollutant)
	if err != nil {
		return "", series.Reading{}, err
	}
	r := series.Reading{Key: d.Key()}
	if d.Valor != nil {
		v := *d.Valor
		r.Value = &v
	}
	return p, r, nil
}

// ReadingMessage carries one reading
type ReadingMessage struct {
	Type MessageType `json:"type"`
	Data ReadingData `json:"data"`
}

// KeepaliveMessage is sent by the station every 30-60 seconds
type KeepaliveMessage struct {
	Type MessageType `json:"type"`
}

// AckMessage is sent by the server in response to messages
type AckMessage struct {
	Type   MessageType `json:"type"`
	Status string      `json:"status"`
	Error  string      `json:"error,omitempty"`
}

// AckStatus constants
const (
	AckStatusIdentified = "identified"
	AckStatusAlive      = "alive"
	AckStatusError      = "error"
)

// ParseMessage parses a JSON line into the appropriate message type
func ParseMessage(data []byte) (interface{}, error) {
	var base BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	switch base.Type {
	case MsgTypeIdentify:
		var msg IdentifyMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("invalid identify message: %w", err)
		}
		if err := validateIdentify(&msg); err != nil {
			return nil, err
		}
		return &msg, nil

	case MsgTypeReading:
		var msg ReadingMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("invalid reading message: %w", err)
		}
		if err := validateReading(&msg); err != nil {
			return nil, err
		}
		return &msg, nil

	case MsgTypeKeepalive:
		return &KeepaliveMessage{Type: MsgTypeKeepalive}, nil

	default:
		return nil, fmt.Errorf("unknown message type: %s", base.Type)
	}
}

func validateIdentify(msg *IdentifyMessage) error {
	msg.Station = strings.TrimSpace(msg.Station)
	if msg.Station == "" {
		return fmt.Errorf("station is required")
	}
	if msg.Name == "" {
		msg.Name = msg.Station
	}
	return nil
}

func validateReading(msg *ReadingMessage) error {
	if _, err := aqi.ParsePollutant(msg.Data.Pollutant); err != nil {
		return err
	}
	if strings.TrimSpace(msg.Data.Fecha) == "" || strings.TrimSpace(msg.Data.Hora) == "" {
		return fmt.Errorf("fecha and hora are required")
	}
	return nil
}

// EncodeMessage encodes a message to JSON
func EncodeMessage(msg interface{}) ([]byte, error) {
	return json.Marshal(msg)
}

// NewAckMessage creates a new acknowledgment message
func NewAckMessage(status string) *AckMessage {
	return &AckMessage{
		Type:   MsgTypeAck,
		Status: status,
	}
}

// NewErrorAck creates an error acknowledgment carrying the reason
func NewErrorAck(err error) *AckMessage {
	return &AckMessage{
		Type:   MsgTypeAck,
		Status: AckStatusError,
		Error:  err.Error(),
	}
}
