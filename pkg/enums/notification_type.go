package enums

import "fmt"

// NotificationType buckets in-app notifications by the event that produced them.
type NotificationType string

const (
	NotificationTypeRequestSubmitted NotificationType = "request_submitted"
	NotificationTypeRequestResolved  NotificationType = "request_resolved"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeRequestSubmitted,
	NotificationTypeRequestResolved,
}

// IsValid reports whether the value matches the canonical notification type enum.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts the raw string to NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
