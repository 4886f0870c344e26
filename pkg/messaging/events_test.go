package messaging_test

import (
	"testing"

	"github.com/pharmacore/pharmacy-backend/pkg/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent_CarriesDispensePayload(t *testing.T) {
	payload := messaging.StockDispensedEvent{
		DrugID:     "drug-1",
		Quantity:   15,
		TotalValue: 8.0,
		Batches: []messaging.BatchConsumption{
			{BatchID: "b1", Quantity: 10, TransactionID: "TXN2609010010042"},
			{BatchID: "b2", Quantity: 5, TransactionID: "TXN2609010020831"},
		},
		PerformedBy: "user-1",
	}

	event, err := messaging.NewEvent(messaging.EventStockDispensed, "pharmacy-service", "corr-1", payload)
	require.NoError(t, err)

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, messaging.EventStockDispensed, event.Type)
	assert.Equal(t, "pharmacy-service", event.Source)
	assert.Equal(t, "corr-1", event.CorrelationID)
	assert.False(t, event.Timestamp.IsZero())

	var decoded messaging.StockDispensedEvent
	require.NoError(t, event.UnmarshalData(&decoded))
	assert.Equal(t, payload, decoded)
}

func TestEventTypes_StayWithinPharmacyNamespace(t *testing.T) {
	// Routing keys bind consumers with pharmacy.# patterns.
	for _, eventType := range []string{
		messaging.EventStockReceived,
		messaging.EventStockDispensed,
		messaging.EventStockAdjusted,
		messaging.EventLowStock,
		messaging.EventOutOfStock,
		messaging.EventBatchExpiring,
	} {
		assert.Regexp(t, `^pharmacy\.(stock|alert)\.`, eventType)
	}
}
