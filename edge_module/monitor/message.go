package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	TagAlert = "ALERT"
	TagInfo  = "info"

	PropertyMessageType = "MessageType"
	PropertyMsgType     = "MsgType"
)

// MessageSink delivers a payload to a named output of the edge hub.
type MessageSink interface {
	Send(ctx context.Context, payload []byte, output string, properties map[string]string) error
}

type Format int

const (
	FormatText Format = iota
	FormatJSON
)

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return 0, fmt.Errorf("unknown payload format %q", s)
	}
}

func (f Format) String() string {
	if f == FormatJSON {
		return "json"
	}
	return "text"
}

// AlertMessage is one outbound reading. It is built per emission and not changed afterwards.
type AlertMessage struct {
	Tag   string
	Time  time.Time
	Value float64
}

type machinePayload struct {
	Machine     map[string]float64 `json:"machine"`
	TimeCreated string             `json:"timeCreated"`
}

// Payload renders m either as {"machine": {metric: value}, "timeCreated": ...} or as "Metric: value, time: HH:MM:SS".
func (m AlertMessage) Payload(format Format, metric string) ([]byte, error) {
	if format == FormatJSON {
		return json.Marshal(machinePayload{
			Machine:     map[string]float64{metric: m.Value},
			TimeCreated: m.Time.Format(time.RFC3339),
		})
	}
	return []byte(fmt.Sprintf("%s: %f, time: %s", title(metric), m.Value, m.Time.Format(time.TimeOnly))), nil
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// System properties understood by the edge hub.
const (
	PropertyMessageID       = "$.mid"
	PropertyContentType     = "$.ct"
	PropertyContentEncoding = "$.ce"
)
