package types

import (
	"time"

	"cloud.google.com/go/bigquery"
)

// ImpactFactSchema lists the impact_facts columns the writer fills.
var ImpactFactSchema = bigquery.Schema{
	{Name: "event_id", Type: bigquery.StringFieldType, Required: true},
	{Name: "occurred_at", Type: bigquery.TimestampFieldType, Required: true},
	{Name: "reservation_id", Type: bigquery.StringFieldType, Required: true},
	{Name: "user_id", Type: bigquery.StringFieldType},
	{Name: "business_id", Type: bigquery.StringFieldType},
	{Name: "rescue_bag_id", Type: bigquery.StringFieldType},
	{Name: "quantity", Type: bigquery.IntegerFieldType},
	{Name: "payment_cents", Type: bigquery.IntegerFieldType},
	{Name: "money_saved_cents", Type: bigquery.IntegerFieldType},
	{Name: "co2_saved_kg", Type: bigquery.FloatFieldType},
	{Name: "water_saved_l", Type: bigquery.FloatFieldType},
	{Name: "pickup_method", Type: bigquery.StringFieldType},
	{Name: "payload", Type: bigquery.JSONFieldType},
}

// ImpactFactRow is one picked-up reservation. Money columns are in cents.
type ImpactFactRow struct {
	EventID         string
	OccurredAt      time.Time
	ReservationID   string
	UserID          string
	BusinessID      string
	RescueBagID     string
	Quantity        int64
	PaymentCents    int64
	MoneySavedCents int64
	CO2SavedKg      float64
	WaterSavedL     float64
	PickupMethod    *string
	Payload         bigquery.NullJSON
}

// Save implements bigquery.ValueSaver. The event id doubles as the insert id
// so a redelivered event does not land twice.
func (r ImpactFactRow) Save() (map[string]bigquery.Value, string, error) {
	row := map[string]bigquery.Value{
		"event_id":          r.EventID,
		"occurred_at":       r.OccurredAt,
		"reservation_id":    r.ReservationID,
		"user_id":           r.UserID,
		"business_id":       r.BusinessID,
		"rescue_bag_id":     r.RescueBagID,
		"quantity":          r.Quantity,
		"payment_cents":     r.PaymentCents,
		"money_saved_cents": r.MoneySavedCents,
		"co2_saved_kg":      r.CO2SavedKg,
		"water_saved_l":     r.WaterSavedL,
		"pickup_method":     nil,
		"payload":           nil,
	}
	if r.PickupMethod != nil {
		row["pickup_method"] = *r.PickupMethod
	}
	if r.Payload.Valid {
		row["payload"] = r.Payload.JSONVal
	}
	return row, r.EventID, nil
}
