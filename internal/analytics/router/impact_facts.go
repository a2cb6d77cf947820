package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/foodrescue/rescue-backend/internal/analytics/types"
	analyticswriter "github.com/foodrescue/rescue-backend/internal/analytics/writer"
	"github.com/foodrescue/rescue-backend/pkg/logger"
	"github.com/foodrescue/rescue-backend/pkg/outbox/payloads"
)

type impactFacts struct {
	writer Writer
	logg   *logger.Logger
}

func (f impactFacts) pickedUp(ctx context.Context, envelope types.Envelope, event payloads.ReservationPickedUpEvent) error {
	ctx = f.logg.WithReservationID(ctx, event.ReservationID.String())
	ctx = f.logg.WithBusinessID(ctx, event.BusinessID.String())

	row, err := impactFactRow(envelope, event)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if err := f.writer.InsertImpactFact(ctx, row); err != nil {
		return fmt.Errorf("insert impact fact: %w", err)
	}
	f.logg.Info(f.logg.WithField(ctx, "quantity", row.Quantity), "impact fact recorded")
	return nil
}

// impactFactRow uses the pickup time as the fact time; the envelope time is
// only a fallback for payloads without one.
func impactFactRow(envelope types.Envelope, event payloads.ReservationPickedUpEvent) (types.ImpactFactRow, error) {
	payloadJSON, err := analyticswriter.EncodeJSON(event)
	if err != nil {
		return types.ImpactFactRow{}, fmt.Errorf("encode payload json: %w", err)
	}

	occurredAt := envelope.OccurredAt
	if !event.PickedUpAt.IsZero() {
		occurredAt = event.PickedUpAt.UTC()
	}

	var method *string
	if m := strings.TrimSpace(string(event.PickupMethod)); m != "" {
		method = &m
	}

	return types.ImpactFactRow{
		EventID:         envelope.EventID.String(),
		OccurredAt:      occurredAt,
		ReservationID:   event.ReservationID.String(),
		UserID:          event.UserID.String(),
		BusinessID:      event.BusinessID.String(),
		RescueBagID:     event.RescueBagID.String(),
		Quantity:        int64(event.Quantity),
		PaymentCents:    cents(event.PaymentAmount),
		MoneySavedCents: cents(event.MoneySaved),
		CO2SavedKg:      event.CO2Saved,
		WaterSavedL:     event.WaterSaved,
		PickupMethod:    method,
		Payload:         payloadJSON,
	}, nil
}

func cents(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
