package websocket

import (
	"strconv"
	"strings"
)

// Topic names
const (
	TopicAppointments = "appointments"

	appointmentOwnerPrefix  = "appointments.user."
	notificationOwnerPrefix = "notifications.user."
)

// AppointmentOwnerTopic returns the per-owner appointment topic.
func AppointmentOwnerTopic(ownerKey string) string {
	return appointmentOwnerPrefix + ownerKey
}

// NotificationTopic returns the per-account notification topic.
func NotificationTopic(accountID int64) string {
	return notificationOwnerPrefix + strconv.FormatInt(accountID, 10)
}

// topicSubject returns the owner key embedded in a per-owner topic.
// The second result is false for topics that are not per-owner.
func topicSubject(topic string) (string, bool) {
	for _, prefix := range []string{appointmentOwnerPrefix, notificationOwnerPrefix} {
		if rest, ok := strings.CutPrefix(topic, prefix); ok && rest != "" {
			return rest, true
		}
	}
	return "", false
}

// Authorize reports whether a caller may subscribe to topic. Staff may
// subscribe to anything known; others only to their own per-owner topics.
func Authorize(topic, subject string, staff bool) bool {
	if topic == TopicAppointments {
		return staff
	}
	owner, ok := topicSubject(topic)
	if !ok {
		return false
	}
	return staff || (subject != "" && owner == subject)
}
