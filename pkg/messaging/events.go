package messaging

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types
const (
	// Stock movement events
	EventStockReceived  = "pharmacy.stock.received"
	EventStockDispensed = "pharmacy.stock.dispensed"
	EventStockAdjusted  = "pharmacy.stock.adjusted"

	// Alert events
	EventLowStock      = "pharmacy.alert.low_stock"
	EventOutOfStock    = "pharmacy.alert.out_of_stock"
	EventBatchExpiring = "pharmacy.alert.batch_expiring"
)

// Exchange names
const (
	ExchangePharmacyEvents = "pharmacy.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// Stock Events

// StockReceivedEvent is published when a batch is received into stock
type StockReceivedEvent struct {
	DrugID        string  `json:"drug_id"`
	BatchID       string  `json:"batch_id"`
	BatchCode     string  `json:"batch_code"`
	Quantity      int     `json:"quantity"`
	UnitCost      float64 `json:"unit_cost"`
	ExpiryDate    string  `json:"expiry_date"`
	TransactionID string  `json:"transaction_id"`
	ReceivedBy    string  `json:"received_by"`
}

// StockDispensedEvent is published after a dispense commits
type StockDispensedEvent struct {
	DrugID      string             `json:"drug_id"`
	Quantity    int                `json:"quantity"`
	TotalValue  float64            `json:"total_value"`
	Batches     []BatchConsumption `json:"batches"`
	PerformedBy string             `json:"performed_by"`
	RelatedType string             `json:"related_type,omitempty"`
	RelatedID   string             `json:"related_id,omitempty"`
}

// BatchConsumption records how much a dispense took from one batch
type BatchConsumption struct {
	BatchID       string `json:"batch_id"`
	Quantity      int    `json:"quantity"`
	TransactionID string `json:"transaction_id"`
}

// StockAdjustedEvent is published when a batch quantity is manually corrected
type StockAdjustedEvent struct {
	DrugID        string `json:"drug_id"`
	BatchID       string `json:"batch_id"`
	Delta         int    `json:"delta"`
	NewQuantity   int    `json:"new_quantity"`
	Reason        string `json:"reason"`
	TransactionID string `json:"transaction_id"`
	PerformedBy   string `json:"performed_by"`
}

// Alert Events

// LowStockEvent is published when a drug crosses its reorder threshold
type LowStockEvent struct {
	DrugID       string `json:"drug_id"`
	DrugName     string `json:"drug_name"`
	StockOnHand  int    `json:"stock_on_hand"`
	ReorderLevel int    `json:"reorder_level"`
	OutOfStock   bool   `json:"out_of_stock"`
}

// BatchExpiringEvent is published for batches inside the expiry window
type BatchExpiringEvent struct {
	DrugID          string `json:"drug_id"`
	BatchID         string `json:"batch_id"`
	ExpiryDate      string `json:"expiry_date"`
	DaysUntilExpiry int    `json:"days_until_expiry"`
	Expired         bool   `json:"expired"`
	QuantityOnHand  int    `json:"quantity_on_hand"`
}

// GenerateEventID generates a unique event ID
func GenerateEventID() string {
	return fmt.Sprintf("%d-%d", time.Now().UnixNano(), time.Now().Nanosecond()%10000)
}
