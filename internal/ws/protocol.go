package ws

import (
	"github.com/pcg-live/monitor/internal/session"
)

type MessageType string

const (
	MsgSnapshot     MessageType = "snapshot"
	MsgDelta        MessageType = "delta"
	MsgNotification MessageType = "notification"
	MsgError        MessageType = "error"
)

type WSMessage struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload"`
}

type SnapshotPayload struct {
	Sessions []*session.Snapshot `json:"sessions"`
}

// DeltaPayload carries the newest snapshot of every session that published
// since the last flush.
type DeltaPayload struct {
	Updates []*session.Snapshot `json:"updates"`
}

// NotificationPayload is a session event with its text resolved in the
// server's default locale. Clients with another locale resolve Key
// themselves via /api/labels.
type NotificationPayload struct {
	session.Event
	Message string `json:"message"`
}

type ErrorPayload struct {
	Code    string `json:"error"`
	Message string `json:"message"`
}
