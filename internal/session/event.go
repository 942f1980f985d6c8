package session

import (
	"encoding/json"
	"time"
)

// EventType classifies session lifecycle events.
type EventType int

const (
	EventStarted  EventType = iota // session began ticking
	EventStopped                   // session returned to idle on request
	EventStatus                    // classification changed
	EventAnomaly                   // anomaly injection accepted or refused
	EventFault                     // tick failed; session forced idle
)

var eventTypeNames = map[EventType]string{
	EventStarted: "started",
	EventStopped: "stopped",
	EventStatus:  "status",
	EventAnomaly: "anomaly",
	EventFault:   "fault",
}

func (t EventType) String() string {
	if n, ok := eventTypeNames[t]; ok {
		return n
	}
	return "unknown"
}

func (t EventType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *EventType) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for k, v := range eventTypeNames {
		if v == name {
			*t = k
			return nil
		}
	}
	return nil
}

// Level is the severity the notification sink shows an event with.
type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelError   Level = "error"
)

// Message keys resolved by the locale tables.
const (
	MsgMonitoringStarted = "monitoring_started"
	MsgMonitoringStopped = "monitoring_stopped"
	MsgInternalError     = "monitoring_stopped_internal_error"
	MsgStartFirst        = "start_monitoring_first"
	MsgAnomalyInjected   = "anomaly_injected"
	MsgStatusChanged     = "status_changed"
)

// Event is a transient notification. It carries message keys, not text.
type Event struct {
	Type      EventType `json:"type"`
	Level     Level     `json:"level"`
	SessionID string    `json:"sessionId"`
	Key       string    `json:"key"`
	Status    Status    `json:"status"`
	Err       string    `json:"error,omitempty"`
	At        time.Time `json:"at"`
}
