package websocket

import (
	"encoding/json"
	"time"

	"github.com/servio/backend/internal/storage/models"
)

// MessageType identifies the type of WebSocket message.
type MessageType string

const (
	// Server -> Client event types
	TypeAppointmentCreated   MessageType = "appointment.created"
	TypeAppointmentUpdated   MessageType = "appointment.updated"
	TypeAppointmentCancelled MessageType = "appointment.cancelled"
	TypeAppointmentDeleted   MessageType = "appointment.deleted"
	TypeNotificationCreated  MessageType = "notification.created"

	// Client -> Server actions
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
	ActionPing        = "ping"

	// Server -> Client response types
	TypeSubscribeAck   MessageType = "subscribe.ack"
	TypeUnsubscribeAck MessageType = "unsubscribe.ack"
	TypePong           MessageType = "pong"
	TypeError          MessageType = "error"
)

// Message represents a WebSocket message envelope.
type Message struct {
	Type      MessageType `json:"type"`
	Topic     string      `json:"topic,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   any         `json:"payload"`
}

// NewMessage creates a new message with the current timestamp.
func NewMessage(msgType MessageType, topic string, payload any) Message {
	return Message{
		Type:      msgType,
		Topic:     topic,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// JSON serializes the message to JSON bytes.
func (m Message) JSON() ([]byte, error) {
	return json.Marshal(m)
}

// ClientMessage is an inbound command from a WebSocket client.
type ClientMessage struct {
	Action string   `json:"action"`
	Topics []string `json:"topics,omitempty"`
}

// AppointmentEventPayload is the payload for appointment.* events.
type AppointmentEventPayload struct {
	Kind            string              `json:"kind"`
	AppointmentID   int64               `json:"appointment_id"`
	OwnerID         string              `json:"owner_id,omitempty"`
	OwnerKind       models.OwnerKind    `json:"owner_kind,omitempty"`
	ServiceType     string              `json:"service_type"`
	Status          string              `json:"status"`
	AppointmentDate string              `json:"appointment_date"`
	Appointment     *models.Appointment `json:"appointment,omitempty"`
}

// SubscriptionAckPayload lists the topics a subscribe or unsubscribe applied to.
type SubscriptionAckPayload struct {
	Topics   []string `json:"topics"`
	Rejected []string `json:"rejected,omitempty"`
}

// ErrorPayload is the payload for error messages.
type ErrorPayload struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	OriginalType string `json:"original_type,omitempty"`
}

// eventType maps an appointment lifecycle kind to its message type.
func eventType(kind string) MessageType {
	switch kind {
	case models.EventCreated:
		return TypeAppointmentCreated
	case models.EventCancelled:
		return TypeAppointmentCancelled
	case models.EventDeleted:
		return TypeAppointmentDeleted
	default:
		return TypeAppointmentUpdated
	}
}
