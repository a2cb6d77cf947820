package enums

import "slices"

// NotificationType groups in-app notifications shown to users.
type NotificationType string

const (
	NotificationTypeReservation NotificationType = "reservation"
	NotificationTypePickupReady NotificationType = "pickup_ready"
	NotificationTypeImpact      NotificationType = "impact"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeReservation,
	NotificationTypePickupReady,
	NotificationTypeImpact,
}

// String implements fmt.Stringer.
func (n NotificationType) String() string {
	return string(n)
}

// IsValid reports whether the value is a known NotificationType.
func (n NotificationType) IsValid() bool {
	return slices.Contains(validNotificationTypes, n)
}

// ParseNotificationType converts raw input into a NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	return parseOneOf("notification type", validNotificationTypes, value)
}
