package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pharmacore/pharmacy-backend/internal/pharmacy/events"
	"github.com/pharmacore/pharmacy-backend/internal/pharmacy/repository"
	"github.com/pharmacore/pharmacy-backend/pkg/database"
	"github.com/pharmacore/pharmacy-backend/pkg/errors"
	"github.com/pharmacore/pharmacy-backend/pkg/logger"
	"github.com/pharmacore/pharmacy-backend/pkg/messaging"
)

// expiryDateLayout is the wire format for batch expiry dates
const expiryDateLayout = "2006-01-02"

// InventoryService is the FEFO dispense engine. Every stock mutation runs as
// one serializable transaction: read quantities under row locks, validate,
// write new quantities, append ledger rows, commit or roll back together.
type InventoryService struct {
	db         *database.DB
	drugRepo   *repository.DrugRepository
	batchRepo  *repository.BatchRepository
	ledgerRepo *repository.LedgerRepository
	seqRepo    *repository.SequenceRepository
	txnGen     *TransactionIDGenerator
	publisher  *events.StockEventPublisher
	logger     *logger.Logger
	maxRetries int
}

// NewInventoryService creates a new inventory service
func NewInventoryService(
	db *database.DB,
	drugRepo *repository.DrugRepository,
	batchRepo *repository.BatchRepository,
	ledgerRepo *repository.LedgerRepository,
	seqRepo *repository.SequenceRepository,
	publisher *events.StockEventPublisher,
	log *logger.Logger,
	maxRetries int,
) *InventoryService {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &InventoryService{
		db:         db,
		drugRepo:   drugRepo,
		batchRepo:  batchRepo,
		ledgerRepo: ledgerRepo,
		seqRepo:    seqRepo,
		txnGen:     NewTransactionIDGenerator(seqRepo),
		publisher:  publisher,
		logger:     log,
		maxRetries: maxRetries,
	}
}

// Drug catalog operations

// CreateDrugInput carries the fields for a new catalog entry
type CreateDrugInput struct {
	Code         string
	Name         string
	GenericName  *string
	Form         string
	Strength     *string
	ReorderLevel int
}

// CreateDrug creates a catalog entry, generating a display code when the
// caller supplies none.
func (s *InventoryService) CreateDrug(ctx context.Context, input CreateDrugInput) (*repository.Drug, error) {
	code := input.Code
	if code == "" {
		generated, err := s.seqRepo.NextDrugCode(ctx)
		if err != nil {
			return nil, err
		}
		code = generated
	}

	drug := &repository.Drug{
		Code:         code,
		Name:         input.Name,
		GenericName:  input.GenericName,
		Form:         input.Form,
		Strength:     input.Strength,
		ReorderLevel: input.ReorderLevel,
		IsActive:     true,
	}

	if err := s.drugRepo.Create(ctx, drug); err != nil {
		return nil, err
	}
	return drug, nil
}

// UpdateDrug applies partial metadata edits to a drug. Stock is untouched.
func (s *InventoryService) UpdateDrug(ctx context.Context, id string, input UpdateDrugInput) (*repository.Drug, error) {
	drug, err := s.drugRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		drug.Name = *input.Name
	}
	if input.GenericName != nil {
		drug.GenericName = input.GenericName
	}
	if input.Form != nil {
		drug.Form = *input.Form
	}
	if input.Strength != nil {
		drug.Strength = input.Strength
	}
	if input.ReorderLevel != nil {
		drug.ReorderLevel = *input.ReorderLevel
	}
	if input.IsActive != nil {
		drug.IsActive = *input.IsActive
	}

	if err := s.drugRepo.Update(ctx, drug); err != nil {
		return nil, err
	}
	return drug, nil
}

// UpdateDrugInput carries optional fields for a partial drug update
type UpdateDrugInput struct {
	Name         *string
	GenericName  *string
	Form         *string
	Strength     *string
	ReorderLevel *int
	IsActive     *bool
}

// DeactivateDrug soft-deletes a catalog entry. The drug and its ledger
// history stay queryable; it just stops appearing in active listings.
func (s *InventoryService) DeactivateDrug(ctx context.Context, id string) error {
	if err := s.drugRepo.Deactivate(ctx, id); err != nil {
		return err
	}

	s.logger.Info().Str("drug_id", id).Msg("drug deactivated")
	return nil
}

// ListDrugs lists catalog entries in stable name order
func (s *InventoryService) ListDrugs(ctx context.Context, activeOnly bool, search string) ([]*repository.Drug, error) {
	return s.drugRepo.List(ctx, activeOnly, search)
}

// GetDrug gets one drug with its batches in FEFO order
func (s *InventoryService) GetDrug(ctx context.Context, id string) (*repository.Drug, []*repository.Batch, error) {
	drug, err := s.drugRepo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	batches, err := s.batchRepo.ListByDrug(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	return drug, batches, nil
}

// GetBatchesFEFO lists a drug's non-empty batches in consumption order.
// Pure read; dispensing re-reads under locks.
func (s *InventoryService) GetBatchesFEFO(ctx context.Context, drugID string) ([]*repository.Batch, error) {
	if _, err := s.drugRepo.GetByID(ctx, drugID); err != nil {
		return nil, err
	}
	return s.batchRepo.ListFEFO(ctx, drugID)
}

// Receive

// ReceiveBatchInput carries the fields for receiving a stock lot
type ReceiveBatchInput struct {
	DrugID          string
	LotNumber       *string
	ExpiryDate      string
	Quantity        int
	UnitsPerCarton  int
	CartonsReceived int
	UnitCost        float64
	Supplier        *string
	ReceivedBy      string
	Notes           *string
}

// ReceiveBatch creates a new batch and its receive ledger entry as one atomic
// unit. Quantity may be derived from unitsPerCarton x cartonsReceived when
// both are supplied and no explicit quantity is.
func (s *InventoryService) ReceiveBatch(ctx context.Context, input ReceiveBatchInput) (*repository.Batch, error) {
	drug, err := s.drugRepo.GetByID(ctx, input.DrugID)
	if err != nil {
		return nil, err
	}

	quantity := input.Quantity
	if quantity == 0 && input.UnitsPerCarton > 0 && input.CartonsReceived > 0 {
		quantity = input.UnitsPerCarton * input.CartonsReceived
	}
	if quantity <= 0 {
		return nil, errors.InvalidQuantity("received quantity must be positive")
	}
	if input.UnitCost < 0 {
		return nil, errors.InvalidCost("unit cost must not be negative")
	}

	expiry, err := time.Parse(expiryDateLayout, input.ExpiryDate)
	if err != nil {
		return nil, errors.InvalidExpiry(fmt.Sprintf("expiry date %q is not a valid date (expected %s)", input.ExpiryDate, expiryDateLayout))
	}
	if expiry.Before(today()) {
		// Accepted, but worth flagging: receiving already-expired stock is
		// almost always a data-entry mistake.
		s.logger.Warn().
			Str("drug_id", drug.ID).
			Str("expiry_date", input.ExpiryDate).
			Msg("receiving batch with past expiry date")
	}

	batch := &repository.Batch{
		DrugID:         drug.ID,
		LotNumber:      input.LotNumber,
		ExpiryDate:     expiry,
		QuantityOnHand: quantity,
		UnitCost:       input.UnitCost,
		Supplier:       input.Supplier,
		ReceivedBy:     input.ReceivedBy,
	}

	var entry *repository.LedgerEntry
	err = s.withRetries(ctx, func(tx *sqlx.Tx) error {
		batchCode, err := s.seqRepo.NextBatchCodeTx(ctx, tx)
		if err != nil {
			return err
		}
		batch.BatchCode = batchCode

		if err := s.batchRepo.CreateTx(ctx, tx, batch); err != nil {
			return err
		}

		txnID, err := s.txnGen.NextTx(ctx, tx, time.Now())
		if err != nil {
			return err
		}

		entry = &repository.LedgerEntry{
			TransactionID:   txnID,
			DrugID:          drug.ID,
			BatchID:         &batch.ID,
			TransactionType: repository.TransactionReceive,
			Quantity:        quantity,
			QuantityBefore:  0,
			QuantityAfter:   quantity,
			UnitCost:        input.UnitCost,
			TotalValue:      float64(quantity) * input.UnitCost,
			PerformedBy:     input.ReceivedBy,
			Notes:           input.Notes,
		}
		return s.ledgerRepo.AppendTx(ctx, tx, entry)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("drug_id", drug.ID).
		Str("batch_id", batch.ID).
		Int("quantity", quantity).
		Str("transaction_id", entry.TransactionID).
		Msg("batch received")

	s.publisher.PublishStockReceived(ctx, batch, entry)

	return batch, nil
}

// Dispense

// DispenseInput carries the fields for a FEFO dispense
type DispenseInput struct {
	DrugID      string
	Quantity    int
	PerformedBy string
	RelatedType *string
	RelatedID   *string
	Notes       *string
}

// BatchConsumption records how much a dispense took from one batch
type BatchConsumption struct {
	BatchID       string  `json:"batch_id"`
	BatchCode     string  `json:"batch_code"`
	TransactionID string  `json:"transaction_id"`
	Quantity      int     `json:"quantity"`
	UnitCost      float64 `json:"unit_cost"`
	Value         float64 `json:"value"`
}

// DispenseResult summarises a committed dispense
type DispenseResult struct {
	DrugID     string             `json:"drug_id"`
	Quantity   int                `json:"quantity"`
	TotalValue float64            `json:"total_value"`
	Batches    []BatchConsumption `json:"batches"`
}

// allocation is one step of a dispense plan
type allocation struct {
	batch *repository.Batch
	take  int
}

// planDispense walks FEFO-ordered batches and decides how much to take from
// each. Returns the plan and the aggregate available quantity; the plan is
// nil when available < quantity, in which case nothing may be consumed.
func planDispense(batches []*repository.Batch, quantity int) ([]allocation, int) {
	available := 0
	for _, b := range batches {
		available += b.QuantityOnHand
	}
	if available < quantity {
		return nil, available
	}

	var plan []allocation
	remaining := quantity
	for _, b := range batches {
		if remaining == 0 {
			break
		}
		take := b.QuantityOnHand
		if take > remaining {
			take = remaining
		}
		plan = append(plan, allocation{batch: b, take: take})
		remaining -= take
	}
	return plan, available
}

// Dispense consumes the requested quantity from a drug's batches in FEFO
// order. All-or-nothing: a shortfall fails before any mutation, and any
// mid-flight failure rolls back every decrement and ledger row.
func (s *InventoryService) Dispense(ctx context.Context, input DispenseInput) (*DispenseResult, error) {
	if input.Quantity <= 0 {
		return nil, errors.InvalidQuantity("dispense quantity must be positive")
	}

	drug, err := s.drugRepo.GetByID(ctx, input.DrugID)
	if err != nil {
		return nil, err
	}

	var result *DispenseResult
	err = s.withRetries(ctx, func(tx *sqlx.Tx) error {
		batches, err := s.batchRepo.ListFEFOForUpdateTx(ctx, tx, drug.ID)
		if err != nil {
			return err
		}

		plan, available := planDispense(batches, input.Quantity)
		if plan == nil {
			return errors.InsufficientStock(drug.ID, input.Quantity, available)
		}

		now := time.Now()
		result = &DispenseResult{DrugID: drug.ID, Quantity: input.Quantity}

		for _, alloc := range plan {
			newQty := alloc.batch.QuantityOnHand - alloc.take
			if err := s.batchRepo.SetQuantityTx(ctx, tx, alloc.batch.ID, newQty); err != nil {
				return err
			}

			txnID, err := s.txnGen.NextTx(ctx, tx, now)
			if err != nil {
				return err
			}

			entry := &repository.LedgerEntry{
				TransactionID:   txnID,
				DrugID:          drug.ID,
				BatchID:         &alloc.batch.ID,
				TransactionType: repository.TransactionDispense,
				Quantity:        -alloc.take,
				QuantityBefore:  alloc.batch.QuantityOnHand,
				QuantityAfter:   newQty,
				UnitCost:        alloc.batch.UnitCost,
				TotalValue:      -float64(alloc.take) * alloc.batch.UnitCost,
				RelatedType:     input.RelatedType,
				RelatedID:       input.RelatedID,
				PerformedBy:     input.PerformedBy,
				Notes:           input.Notes,
			}
			if err := s.ledgerRepo.AppendTx(ctx, tx, entry); err != nil {
				return err
			}

			value := float64(alloc.take) * alloc.batch.UnitCost
			result.TotalValue += value
			result.Batches = append(result.Batches, BatchConsumption{
				BatchID:       alloc.batch.ID,
				BatchCode:     alloc.batch.BatchCode,
				TransactionID: txnID,
				Quantity:      alloc.take,
				UnitCost:      alloc.batch.UnitCost,
				Value:         value,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithDrugID(drug.ID).Info().
		Int("quantity", input.Quantity).
		Int("batches_touched", len(result.Batches)).
		Msg("stock dispensed")

	s.publisher.PublishStockDispensed(ctx, drug.ID, input.Quantity, result.TotalValue,
		consumptionsToEvent(result.Batches), input.PerformedBy, input.RelatedType, input.RelatedID)
	s.notifyIfLowStock(ctx, drug)

	return result, nil
}

// DispenseFromBatch consumes from one explicitly chosen batch, bypassing FEFO
// selection. For staff overrides; the same atomicity and non-negativity rules
// apply, scoped to that batch.
func (s *InventoryService) DispenseFromBatch(ctx context.Context, batchID string, quantity int, performedBy string) (*DispenseResult, error) {
	if quantity <= 0 {
		return nil, errors.InvalidQuantity("dispense quantity must be positive")
	}

	var result *DispenseResult
	err := s.withRetries(ctx, func(tx *sqlx.Tx) error {
		batch, err := s.batchRepo.GetForUpdateTx(ctx, tx, batchID)
		if err != nil {
			return err
		}
		if batch.QuantityOnHand < quantity {
			return errors.InsufficientStock(batch.DrugID, quantity, batch.QuantityOnHand)
		}

		newQty := batch.QuantityOnHand - quantity
		if err := s.batchRepo.SetQuantityTx(ctx, tx, batch.ID, newQty); err != nil {
			return err
		}

		txnID, err := s.txnGen.NextTx(ctx, tx, time.Now())
		if err != nil {
			return err
		}

		entry := &repository.LedgerEntry{
			TransactionID:   txnID,
			DrugID:          batch.DrugID,
			BatchID:         &batch.ID,
			TransactionType: repository.TransactionDispense,
			Quantity:        -quantity,
			QuantityBefore:  batch.QuantityOnHand,
			QuantityAfter:   newQty,
			UnitCost:        batch.UnitCost,
			TotalValue:      -float64(quantity) * batch.UnitCost,
			PerformedBy:     performedBy,
		}
		if err := s.ledgerRepo.AppendTx(ctx, tx, entry); err != nil {
			return err
		}

		value := float64(quantity) * batch.UnitCost
		result = &DispenseResult{
			DrugID:     batch.DrugID,
			Quantity:   quantity,
			TotalValue: value,
			Batches: []BatchConsumption{{
				BatchID:       batch.ID,
				BatchCode:     batch.BatchCode,
				TransactionID: txnID,
				Quantity:      quantity,
				UnitCost:      batch.UnitCost,
				Value:         value,
			}},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publisher.PublishStockDispensed(ctx, result.DrugID, quantity, result.TotalValue,
		consumptionsToEvent(result.Batches), performedBy, nil, nil)

	return result, nil
}

// Adjust

// Adjust applies a manual correction (breakage, stocktake) to one batch.
// The resulting quantity must stay non-negative.
func (s *InventoryService) Adjust(ctx context.Context, batchID string, delta int, reason, performedBy string) (*repository.LedgerEntry, error) {
	if delta == 0 {
		return nil, errors.InvalidQuantity("adjustment delta must not be zero")
	}

	var entry *repository.LedgerEntry
	err := s.withRetries(ctx, func(tx *sqlx.Tx) error {
		batch, err := s.batchRepo.GetForUpdateTx(ctx, tx, batchID)
		if err != nil {
			return err
		}

		newQty := batch.QuantityOnHand + delta
		if newQty < 0 {
			return errors.InvalidAdjustment(batch.ID, batch.QuantityOnHand, delta)
		}

		if err := s.batchRepo.SetQuantityTx(ctx, tx, batch.ID, newQty); err != nil {
			return err
		}

		txnID, err := s.txnGen.NextTx(ctx, tx, time.Now())
		if err != nil {
			return err
		}

		notes := reason
		entry = &repository.LedgerEntry{
			TransactionID:   txnID,
			DrugID:          batch.DrugID,
			BatchID:         &batch.ID,
			TransactionType: repository.TransactionAdjust,
			Quantity:        delta,
			QuantityBefore:  batch.QuantityOnHand,
			QuantityAfter:   newQty,
			UnitCost:        batch.UnitCost,
			TotalValue:      float64(delta) * batch.UnitCost,
			PerformedBy:     performedBy,
			Notes:           &notes,
		}
		return s.ledgerRepo.AppendTx(ctx, tx, entry)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("batch_id", batchID).
		Int("delta", delta).
		Str("reason", reason).
		Msg("stock adjusted")

	s.publisher.PublishStockAdjusted(ctx, entry, reason)

	return entry, nil
}

// Ledger

// ListLedger lists ledger rows newest-first, optionally filtered
func (s *InventoryService) ListLedger(ctx context.Context, drugID, batchID string, limit int) ([]*repository.LedgerRow, error) {
	return s.ledgerRepo.List(ctx, drugID, batchID, limit)
}

// Helpers

// withRetries runs fn in a serializable transaction, retrying a bounded
// number of times on storage-level conflicts. Business-rule failures
// (insufficient stock, invalid adjustment) are never retried.
func (s *InventoryService) withRetries(ctx context.Context, fn func(*sqlx.Tx) error) error {
	var err error
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		err = s.db.Serializable(ctx, fn)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		s.logger.Warn().Err(err).Int("attempt", attempt+1).Msg("transaction conflict, retrying")
	}
	return errors.ConcurrentModification("stock record")
}

func isRetryable(err error) bool {
	if database.IsSerializationFailure(err) {
		return true
	}
	return errors.Is(err, errors.ErrConcurrentModification)
}

// notifyIfLowStock publishes a low-stock or out-of-stock event after a
// committed dispense. Advisory only; failures are logged, never surfaced.
func (s *InventoryService) notifyIfLowStock(ctx context.Context, drug *repository.Drug) {
	stock, err := s.batchRepo.TotalStock(ctx, drug.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("drug_id", drug.ID).Msg("failed to compute stock for alert")
		return
	}

	if stock == 0 {
		s.publisher.PublishLowStock(ctx, drug, stock, true)
	} else if stock <= drug.ReorderLevel {
		s.publisher.PublishLowStock(ctx, drug, stock, false)
	}
}

// consumptionsToEvent converts per-batch consumptions to their event shape
func consumptionsToEvent(batches []BatchConsumption) []messaging.BatchConsumption {
	out := make([]messaging.BatchConsumption, len(batches))
	for i, b := range batches {
		out[i] = messaging.BatchConsumption{
			BatchID:       b.BatchID,
			Quantity:      b.Quantity,
			TransactionID: b.TransactionID,
		}
	}
	return out
}

// today returns midnight of the current local day
func today() time.Time {
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}
