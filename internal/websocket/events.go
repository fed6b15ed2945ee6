package websocket

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/servio/backend/internal/storage/models"
)

// EventBroadcaster publishes domain events onto hub topics.
type EventBroadcaster struct {
	hub    *Hub
	logger zerolog.Logger
}

// NewEventBroadcaster creates a new event broadcaster.
func NewEventBroadcaster(hub *Hub, logger zerolog.Logger) *EventBroadcaster {
	return &EventBroadcaster{hub: hub, logger: logger.With().Str("component", "broadcaster").Logger()}
}

// PublishAppointment sends an appointment lifecycle event to the global
// appointments topic and, when the appointment has an owner, to the owner's topic.
func (b *EventBroadcaster) PublishAppointment(kind string, appt *models.Appointment) {
	payload := AppointmentEventPayload{
		Kind:            kind,
		AppointmentID:   appt.ID,
		ServiceType:     appt.ServiceType,
		Status:          appt.Status,
		AppointmentDate: appt.AppointmentDate.UTC().Format(time.RFC3339),
		Appointment:     appt,
	}
	if !appt.Owner.IsZero() {
		payload.OwnerID = appt.Owner.Key()
		payload.OwnerKind = appt.Owner.Kind
	}

	msgType := eventType(kind)
	b.publish(NewMessage(msgType, TopicAppointments, payload))
	if !appt.Owner.IsZero() {
		b.publish(NewMessage(msgType, AppointmentOwnerTopic(appt.Owner.Key()), payload))
	}
}

// PublishNotification sends a notification to its owner's topic only.
func (b *EventBroadcaster) PublishNotification(n *models.Notification) {
	b.publish(NewMessage(TypeNotificationCreated, NotificationTopic(n.AccountID), n))
}

func (b *EventBroadcaster) publish(msg Message) {
	data, err := msg.JSON()
	if err != nil {
		b.logger.Error().Err(err).Str("type", string(msg.Type)).Msg("failed to encode message")
		return
	}

	delivered := b.hub.Publish(msg.Topic, data)
	b.logger.Debug().Str("type", string(msg.Type)).Str("topic", msg.Topic).Int("delivered", delivered).Msg("published")
}
