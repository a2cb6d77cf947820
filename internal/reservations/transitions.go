package reservations

import "github.com/foodrescue/rescue-backend/pkg/enums"

var allowedTransitions = map[enums.ReservationStatus][]enums.ReservationStatus{
	enums.ReservationStatusPending: {
		enums.ReservationStatusConfirmed,
		enums.ReservationStatusCancelled,
		enums.ReservationStatusExpired,
	},
	enums.ReservationStatusConfirmed: {
		enums.ReservationStatusReady,
		enums.ReservationStatusPickedUp,
		enums.ReservationStatusCancelled,
		enums.ReservationStatusExpired,
	},
	enums.ReservationStatusReady: {
		enums.ReservationStatusPickedUp,
		enums.ReservationStatusCancelled,
		enums.ReservationStatusExpired,
	},
}

// CanTransition reports whether from may move to to. Skipping the ready step
// is only allowed for businesses that do not use it.
func CanTransition(from, to enums.ReservationStatus, requiresReadyStep bool) bool {
	if from == enums.ReservationStatusConfirmed && to == enums.ReservationStatusPickedUp && requiresReadyStep {
		return false
	}
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// sourcesFor lists every status that may move to to. It feeds the guard of
// the conditional update.
func sourcesFor(to enums.ReservationStatus, requiresReadyStep bool) []enums.ReservationStatus {
	var out []enums.ReservationStatus
	for _, from := range enums.NonTerminalReservationStatuses {
		if CanTransition(from, to, requiresReadyStep) {
			out = append(out, from)
		}
	}
	return out
}
