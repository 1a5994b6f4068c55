package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalEvent_SetsOccurredAt(t *testing.T) {
	event := Event{
		Type:          TypeSnapshotCreated,
		SnapshotID:    7,
		ReportingDate: "2026-06-30",
		Frequency:     "PERIODIC",
		CorrelationID: "abc-123",
	}

	body, err := marshalEvent(event)
	require.NoError(t, err)

	var decoded Event
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, TypeSnapshotCreated, decoded.Type)
	assert.Equal(t, int64(7), decoded.SnapshotID)
	assert.False(t, decoded.OccurredAt.IsZero())
}

func TestMarshalEvent_PreservesExplicitTimestamp(t *testing.T) {
	at := time.Date(2026, 6, 30, 2, 0, 0, 0, time.UTC)
	body, err := marshalEvent(Event{Type: TypeSnapshotCompleted, OccurredAt: at})
	require.NoError(t, err)

	var decoded Event
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.True(t, decoded.OccurredAt.Equal(at))
}

func TestMarshalEvent_KeyMetrics(t *testing.T) {
	event := Event{
		Type:       TypeSnapshotCompleted,
		SnapshotID: 3,
		KeyMetrics: map[string]decimal.Decimal{
			"CAR": decimal.RequireFromString("16.25"),
			"LCR": decimal.RequireFromString("120"),
		},
	}

	body, err := marshalEvent(event)
	require.NoError(t, err)

	var decoded Event
	require.NoError(t, json.Unmarshal(body, &decoded))
	require.Len(t, decoded.KeyMetrics, 2)
	assert.True(t, decoded.KeyMetrics["CAR"].Equal(decimal.RequireFromString("16.25")))
}

func TestEvent_RoutingKey(t *testing.T) {
	tests := []struct {
		event Event
		want  string
	}{
		{Event{Type: TypeSnapshotCreated}, "snapshot.created"},
		{Event{Type: TypeSnapshotValidated}, "snapshot.validated"},
		{Event{Type: TypeSnapshotCompleted}, "snapshot.completed"},
		{Event{Type: TypeCalculationFailed, Stage: "RWA_CALCULATION"}, "calculation.failed"},
		{Event{Type: TypeCalculationCompleted, Stage: "RWA_CALCULATION"}, "calculation.rwa"},
		{Event{Type: TypeCalculationCompleted, Stage: "LCR_CALCULATION"}, "calculation.lcr"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.event.RoutingKey())
	}
}

func TestNopNotifier_Publish(t *testing.T) {
	assert.NoError(t, NopNotifier{}.Publish(context.Background(), Event{Type: TypeCalculationFailed}))
}
