package reservations

import (
	"testing"

	"github.com/foodrescue/rescue-backend/pkg/enums"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to     enums.ReservationStatus
		requireReady bool
		want         bool
	}{
		{enums.ReservationStatusPending, enums.ReservationStatusConfirmed, true, true},
		{enums.ReservationStatusPending, enums.ReservationStatusReady, true, false},
		{enums.ReservationStatusPending, enums.ReservationStatusPickedUp, false, false},
		{enums.ReservationStatusConfirmed, enums.ReservationStatusReady, true, true},
		{enums.ReservationStatusConfirmed, enums.ReservationStatusPickedUp, true, false},
		{enums.ReservationStatusConfirmed, enums.ReservationStatusPickedUp, false, true},
		{enums.ReservationStatusReady, enums.ReservationStatusPickedUp, true, true},
		{enums.ReservationStatusReady, enums.ReservationStatusCancelled, true, true},
		{enums.ReservationStatusReady, enums.ReservationStatusExpired, true, true},
		{enums.ReservationStatusCancelled, enums.ReservationStatusCancelled, true, false},
		{enums.ReservationStatusPickedUp, enums.ReservationStatusExpired, true, false},
		{enums.ReservationStatusExpired, enums.ReservationStatusConfirmed, true, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to, tt.requireReady); got != tt.want {
			t.Fatalf("CanTransition(%s -> %s, ready=%v) = %v, want %v", tt.from, tt.to, tt.requireReady, got, tt.want)
		}
	}
}

func TestSourcesFor(t *testing.T) {
	got := sourcesFor(enums.ReservationStatusPickedUp, true)
	if len(got) != 1 || got[0] != enums.ReservationStatusReady {
		t.Fatalf("unexpected sources with ready step: %v", got)
	}
	got = sourcesFor(enums.ReservationStatusPickedUp, false)
	if len(got) != 2 {
		t.Fatalf("expected confirmed and ready without ready step, got %v", got)
	}
	if got := sourcesFor(enums.ReservationStatusCancelled, true); len(got) != 3 {
		t.Fatalf("every non-terminal status can be cancelled, got %v", got)
	}
}
