package types

import (
	"testing"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImpactFactRowSaveUsesEventIDAsInsertID(t *testing.T) {
	method := "curbside"
	row := ImpactFactRow{
		EventID:      "evt-1",
		OccurredAt:   time.Date(2025, 6, 2, 18, 30, 0, 0, time.UTC),
		Quantity:     2,
		PickupMethod: &method,
		Payload:      bigquery.NullJSON{Valid: true, JSONVal: `{"a":1}`},
	}

	values, insertID, err := row.Save()
	require.NoError(t, err)
	assert.Equal(t, "evt-1", insertID)
	assert.Equal(t, "curbside", values["pickup_method"])
	assert.Equal(t, `{"a":1}`, values["payload"])
	assert.Equal(t, int64(2), values["quantity"])
}

func TestImpactFactRowSaveNullsOptionalColumns(t *testing.T) {
	values, _, err := ImpactFactRow{EventID: "evt-2"}.Save()
	require.NoError(t, err)
	assert.Nil(t, values["pickup_method"])
	assert.Nil(t, values["payload"])
}

func TestImpactFactSchemaCoversSavedColumns(t *testing.T) {
	values, _, err := ImpactFactRow{}.Save()
	require.NoError(t, err)

	columns := map[string]bool{}
	for _, field := range ImpactFactSchema {
		columns[field.Name] = true
	}
	for name := range values {
		assert.True(t, columns[name], "column %s missing from schema", name)
	}
	assert.Len(t, ImpactFactSchema, len(values))
}
