package enums

import "slices"

// PickupMethod describes how the user collects the bag.
type PickupMethod string

const (
	PickupMethodInStore  PickupMethod = "in-store"
	PickupMethodCurbside PickupMethod = "curbside"
	PickupMethodDelivery PickupMethod = "delivery"
)

var validPickupMethods = []PickupMethod{
	PickupMethodInStore,
	PickupMethodCurbside,
	PickupMethodDelivery,
}

// String implements fmt.Stringer.
func (p PickupMethod) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PickupMethod.
func (p PickupMethod) IsValid() bool {
	return slices.Contains(validPickupMethods, p)
}

// ParsePickupMethod converts raw input into a PickupMethod.
func ParsePickupMethod(value string) (PickupMethod, error) {
	return parseOneOf("pickup method", validPickupMethods, value)
}

// PickupStatus is the read-side classification of an active pickup.
type PickupStatus string

const (
	PickupStatusUpcoming PickupStatus = "upcoming"
	PickupStatusActive   PickupStatus = "active"
	PickupStatusExpired  PickupStatus = "expired"
)
