package events

import (
	"context"

	"github.com/pharmacore/pharmacy-backend/internal/pharmacy/repository"
	"github.com/pharmacore/pharmacy-backend/pkg/logger"
	"github.com/pharmacore/pharmacy-backend/pkg/messaging"
)

// StockEventPublisher publishes stock movement and alert events. Publishing
// happens after the owning transaction commits and is advisory: a publish
// failure is logged, never surfaced, and never rolls the movement back.
type StockEventPublisher struct {
	publisher *messaging.Publisher
	logger    *logger.Logger
}

// NewStockEventPublisher creates a new stock event publisher
func NewStockEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*StockEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangePharmacyEvents, "pharmacy-service", log)
	if err != nil {
		return nil, err
	}

	return &StockEventPublisher{
		publisher: publisher,
		logger:    log,
	}, nil
}

// PublishStockReceived publishes a stock received event
func (p *StockEventPublisher) PublishStockReceived(ctx context.Context, batch *repository.Batch, entry *repository.LedgerEntry) {
	if p == nil {
		return
	}

	data := messaging.StockReceivedEvent{
		DrugID:        batch.DrugID,
		BatchID:       batch.ID,
		BatchCode:     batch.BatchCode,
		Quantity:      entry.Quantity,
		UnitCost:      entry.UnitCost,
		ExpiryDate:    batch.ExpiryDate.Format("2006-01-02"),
		TransactionID: entry.TransactionID,
		ReceivedBy:    batch.ReceivedBy,
	}

	if err := p.publisher.Publish(ctx, messaging.EventStockReceived, data); err != nil {
		p.logger.Error().Err(err).Str("batch_id", batch.ID).Msg("failed to publish stock received event")
	}
}

// PublishStockDispensed publishes a stock dispensed event
func (p *StockEventPublisher) PublishStockDispensed(ctx context.Context, drugID string, quantity int, totalValue float64, batches []messaging.BatchConsumption, performedBy string, relatedType, relatedID *string) {
	if p == nil {
		return
	}

	data := messaging.StockDispensedEvent{
		DrugID:      drugID,
		Quantity:    quantity,
		TotalValue:  totalValue,
		Batches:     batches,
		PerformedBy: performedBy,
	}
	if relatedType != nil {
		data.RelatedType = *relatedType
	}
	if relatedID != nil {
		data.RelatedID = *relatedID
	}

	if err := p.publisher.Publish(ctx, messaging.EventStockDispensed, data); err != nil {
		p.logger.Error().Err(err).Str("drug_id", drugID).Msg("failed to publish stock dispensed event")
	}
}

// PublishStockAdjusted publishes a stock adjusted event
func (p *StockEventPublisher) PublishStockAdjusted(ctx context.Context, entry *repository.LedgerEntry, reason string) {
	if p == nil {
		return
	}

	batchID := ""
	if entry.BatchID != nil {
		batchID = *entry.BatchID
	}

	data := messaging.StockAdjustedEvent{
		DrugID:        entry.DrugID,
		BatchID:       batchID,
		Delta:         entry.Quantity,
		NewQuantity:   entry.QuantityAfter,
		Reason:        reason,
		TransactionID: entry.TransactionID,
		PerformedBy:   entry.PerformedBy,
	}

	if err := p.publisher.Publish(ctx, messaging.EventStockAdjusted, data); err != nil {
		p.logger.Error().Err(err).Str("batch_id", batchID).Msg("failed to publish stock adjusted event")
	}
}

// PublishLowStock publishes a low-stock or out-of-stock alert event
func (p *StockEventPublisher) PublishLowStock(ctx context.Context, drug *repository.Drug, stock int, outOfStock bool) {
	if p == nil {
		return
	}

	eventType := messaging.EventLowStock
	if outOfStock {
		eventType = messaging.EventOutOfStock
	}

	data := messaging.LowStockEvent{
		DrugID:       drug.ID,
		DrugName:     drug.Name,
		StockOnHand:  stock,
		ReorderLevel: drug.ReorderLevel,
		OutOfStock:   outOfStock,
	}

	if err := p.publisher.Publish(ctx, eventType, data); err != nil {
		p.logger.Error().Err(err).Str("drug_id", drug.ID).Msg("failed to publish low stock event")
	}
}

// PublishBatchExpiring publishes an expiring batch alert event
func (p *StockEventPublisher) PublishBatchExpiring(ctx context.Context, batch *repository.Batch, daysUntilExpiry int, expired bool) {
	if p == nil {
		return
	}

	data := messaging.BatchExpiringEvent{
		DrugID:          batch.DrugID,
		BatchID:         batch.ID,
		ExpiryDate:      batch.ExpiryDate.Format("2006-01-02"),
		DaysUntilExpiry: daysUntilExpiry,
		Expired:         expired,
		QuantityOnHand:  batch.QuantityOnHand,
	}

	if err := p.publisher.Publish(ctx, messaging.EventBatchExpiring, data); err != nil {
		p.logger.Error().Err(err).Str("batch_id", batch.ID).Msg("failed to publish batch expiring event")
	}
}
