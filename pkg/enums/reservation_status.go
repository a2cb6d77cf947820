package enums

import "slices"

// ReservationStatus tracks the lifecycle of a reservation.
type ReservationStatus string

const (
	ReservationStatusPending   ReservationStatus = "pending"
	ReservationStatusConfirmed ReservationStatus = "confirmed"
	ReservationStatusReady     ReservationStatus = "ready"
	ReservationStatusPickedUp  ReservationStatus = "picked-up"
	ReservationStatusCancelled ReservationStatus = "cancelled"
	ReservationStatusExpired   ReservationStatus = "expired"
)

var validReservationStatuses = []ReservationStatus{
	ReservationStatusPending,
	ReservationStatusConfirmed,
	ReservationStatusReady,
	ReservationStatusPickedUp,
	ReservationStatusCancelled,
	ReservationStatusExpired,
}

// NonTerminalReservationStatuses lists the states a reservation can still leave.
var NonTerminalReservationStatuses = []ReservationStatus{
	ReservationStatusPending,
	ReservationStatusConfirmed,
	ReservationStatusReady,
}

// String implements fmt.Stringer.
func (s ReservationStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ReservationStatus.
func (s ReservationStatus) IsValid() bool {
	return slices.Contains(validReservationStatuses, s)
}

// IsTerminal reports whether no further transitions are permitted.
func (s ReservationStatus) IsTerminal() bool {
	switch s {
	case ReservationStatusPickedUp, ReservationStatusCancelled, ReservationStatusExpired:
		return true
	default:
		return false
	}
}

// ParseReservationStatus converts raw input into a ReservationStatus.
func ParseReservationStatus(value string) (ReservationStatus, error) {
	return parseOneOf("reservation status", validReservationStatuses, value)
}
