package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foodrescue/rescue-backend/pkg/enums"
	"github.com/foodrescue/rescue-backend/pkg/outbox"
)

func pickedUpAttrs() map[string]string {
	return map[string]string{
		"event_type":     "reservation_picked_up",
		"aggregate_type": "reservation",
		"aggregate_id":   " res-1 ",
	}
}

func encode(t *testing.T, env outbox.PayloadEnvelope) []byte {
	t.Helper()
	data, err := json.Marshal(env)
	require.NoError(t, err)
	return data
}

func TestDecodeReadsBodyAndAttributes(t *testing.T) {
	id := uuid.New()
	occurred := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	data := encode(t, outbox.PayloadEnvelope{
		EventID:    id.String(),
		OccurredAt: occurred,
		Data:       json.RawMessage(`{"reservationId":"x"}`),
	})

	env, err := Decode(data, pickedUpAttrs())
	require.NoError(t, err)
	assert.Equal(t, id, env.EventID)
	assert.Equal(t, enums.EventReservationPickedUp, env.EventType)
	assert.Equal(t, enums.AggregateReservation, env.AggregateType)
	assert.Equal(t, "res-1", env.AggregateID)
	assert.True(t, env.OccurredAt.Equal(occurred))
	assert.JSONEq(t, `{"reservationId":"x"}`, string(env.Payload))
}

func TestDecodeFallsBackToAttributes(t *testing.T) {
	id := uuid.New()
	created := time.Date(2025, 3, 2, 8, 30, 0, 0, time.UTC)
	attrs := pickedUpAttrs()
	attrs["event_id"] = id.String()
	attrs["created_at"] = created.Format(time.RFC3339Nano)

	env, err := Decode(encode(t, outbox.PayloadEnvelope{}), attrs)
	require.NoError(t, err)
	assert.Equal(t, id, env.EventID)
	assert.True(t, env.OccurredAt.Equal(created))
}

func TestDecodeRejects(t *testing.T) {
	valid := encode(t, outbox.PayloadEnvelope{EventID: uuid.NewString()})
	cases := map[string]struct {
		data  []byte
		attrs func(map[string]string)
	}{
		"malformed body":     {data: []byte("not json")},
		"unknown event type": {data: valid, attrs: func(a map[string]string) { a["event_type"] = "order_created" }},
		"unknown aggregate":  {data: valid, attrs: func(a map[string]string) { a["aggregate_type"] = "invoice" }},
		"missing aggregate":  {data: valid, attrs: func(a map[string]string) { delete(a, "aggregate_id") }},
		"bad event id":       {data: encode(t, outbox.PayloadEnvelope{EventID: "evt-1"})},
		"missing event id":   {data: encode(t, outbox.PayloadEnvelope{})},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			attrs := pickedUpAttrs()
			if tc.attrs != nil {
				tc.attrs(attrs)
			}
			_, err := Decode(tc.data, attrs)
			assert.Error(t, err)
		})
	}
}
