package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pharmacore/pharmacy-backend/pkg/database"
	"github.com/pharmacore/pharmacy-backend/pkg/errors"
)

// Batch represents a physically distinct lot of a drug with its own expiry
// date, cost, and quantity. A batch is never deleted; once dispensed down to
// zero it stays inert for audit.
type Batch struct {
	ID             string    `db:"id" json:"id"`
	BatchCode      string    `db:"batch_code" json:"batch_code"`
	DrugID         string    `db:"drug_id" json:"drug_id"`
	LotNumber      *string   `db:"lot_number" json:"lot_number,omitempty"`
	ExpiryDate     time.Time `db:"expiry_date" json:"expiry_date"`
	QuantityOnHand int       `db:"quantity_on_hand" json:"quantity_on_hand"`
	UnitCost       float64   `db:"unit_cost" json:"unit_cost"`
	Supplier       *string   `db:"supplier" json:"supplier,omitempty"`
	ReceivedBy     string    `db:"received_by" json:"received_by"`
	ReceivedAt     time.Time `db:"received_at" json:"received_at"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// fefoOrder is the consumption order: soonest expiry first, then oldest
// received. Ties beyond that are broken by id for a stable order.
const fefoOrder = ` ORDER BY expiry_date, received_at, id`

// BatchRepository handles batch persistence
type BatchRepository struct {
	db *database.DB
}

// NewBatchRepository creates a new batch repository
func NewBatchRepository(db *database.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

// CreateTx inserts a new batch within a transaction. Receiving stock is the
// only way a batch comes into existence.
func (r *BatchRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, batch *Batch) error {
	if batch.ID == "" {
		batch.ID = uuid.New().String()
	}
	if batch.ReceivedAt.IsZero() {
		batch.ReceivedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO batches (
			id, batch_code, drug_id, lot_number, expiry_date, quantity_on_hand,
			unit_cost, supplier, received_by, received_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`

	err := tx.QueryRowxContext(ctx, query,
		batch.ID, batch.BatchCode, batch.DrugID, batch.LotNumber, batch.ExpiryDate,
		batch.QuantityOnHand, batch.UnitCost, batch.Supplier, batch.ReceivedBy,
		batch.ReceivedAt,
	).Scan(&batch.CreatedAt, &batch.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// GetByID gets a batch by ID
func (r *BatchRepository) GetByID(ctx context.Context, id string) (*Batch, error) {
	var batch Batch
	query := `SELECT * FROM batches WHERE id = $1`
	if err := r.db.GetContext(ctx, &batch, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("batch")
		}
		return nil, err
	}
	return &batch, nil
}

// GetForUpdateTx reads one batch row under a row lock. Used by the
// single-batch dispense and adjust paths.
func (r *BatchRepository) GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, id string) (*Batch, error) {
	var batch Batch
	query := `SELECT * FROM batches WHERE id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &batch, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("batch")
		}
		return nil, err
	}
	return &batch, nil
}

// ListByDrug lists all batches for a drug, FEFO-ordered, including empty ones.
func (r *BatchRepository) ListByDrug(ctx context.Context, drugID string) ([]*Batch, error) {
	var batches []*Batch
	query := `SELECT * FROM batches WHERE drug_id = $1` + fefoOrder
	if err := r.db.SelectContext(ctx, &batches, query, drugID); err != nil {
		return nil, err
	}
	return batches, nil
}

// ListFEFO lists the batches of a drug that still hold stock, in consumption
// order. Pure read; the dispense path uses ListFEFOForUpdateTx instead.
func (r *BatchRepository) ListFEFO(ctx context.Context, drugID string) ([]*Batch, error) {
	var batches []*Batch
	query := `SELECT * FROM batches WHERE drug_id = $1 AND quantity_on_hand > 0` + fefoOrder
	if err := r.db.SelectContext(ctx, &batches, query, drugID); err != nil {
		return nil, err
	}
	return batches, nil
}

// ListFEFOForUpdateTx locks and returns the non-empty batches of a drug in
// consumption order. Two concurrent dispenses against the same drug serialize
// on these row locks, so neither can act on a stale quantity.
func (r *BatchRepository) ListFEFOForUpdateTx(ctx context.Context, tx *sqlx.Tx, drugID string) ([]*Batch, error) {
	var batches []*Batch
	query := `SELECT * FROM batches WHERE drug_id = $1 AND quantity_on_hand > 0` + fefoOrder + ` FOR UPDATE`
	if err := tx.SelectContext(ctx, &batches, query, drugID); err != nil {
		return nil, err
	}
	return batches, nil
}

// SetQuantityTx writes a batch's new quantity within a transaction. The CHECK
// constraint on quantity_on_hand backstops the service-level validation.
func (r *BatchRepository) SetQuantityTx(ctx context.Context, tx *sqlx.Tx, batchID string, quantity int) error {
	query := `UPDATE batches SET quantity_on_hand = $2, updated_at = NOW() WHERE id = $1`
	result, err := tx.ExecContext(ctx, query, batchID, quantity)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("batch")
	}

	return nil
}

// TotalStock computes stock-on-hand for a drug across its non-empty batches.
func (r *BatchRepository) TotalStock(ctx context.Context, drugID string) (int, error) {
	var total sql.NullInt64
	query := `SELECT SUM(quantity_on_hand) FROM batches WHERE drug_id = $1 AND quantity_on_hand > 0`
	if err := r.db.GetContext(ctx, &total, query, drugID); err != nil {
		return 0, err
	}
	if !total.Valid {
		return 0, nil
	}
	return int(total.Int64), nil
}

// DrugStock pairs a drug with its aggregate stock
type DrugStock struct {
	DrugID string `db:"drug_id"`
	Stock  int    `db:"stock"`
}

// TotalStockAll computes stock-on-hand for every drug that has non-empty
// batches, in one query. Drugs without stock simply do not appear.
func (r *BatchRepository) TotalStockAll(ctx context.Context) (map[string]int, error) {
	var rows []DrugStock
	query := `
		SELECT drug_id, SUM(quantity_on_hand) AS stock
		FROM batches
		WHERE quantity_on_hand > 0
		GROUP BY drug_id
	`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, err
	}

	stocks := make(map[string]int, len(rows))
	for _, row := range rows {
		stocks[row.DrugID] = row.Stock
	}
	return stocks, nil
}

// ExpiringWithin lists non-empty batches whose expiry date falls within the
// given number of days, soonest first. Batches already past expiry are
// included; callers flag those as expired rather than expiring.
func (r *BatchRepository) ExpiringWithin(ctx context.Context, days int) ([]*Batch, error) {
	var batches []*Batch
	query := `
		SELECT * FROM batches
		WHERE quantity_on_hand > 0
		AND expiry_date <= CURRENT_DATE + $1::int
		ORDER BY expiry_date, received_at, id
	`
	if err := r.db.SelectContext(ctx, &batches, query, days); err != nil {
		return nil, err
	}
	return batches, nil
}

// TotalValuation computes the cost value of all stock on hand.
func (r *BatchRepository) TotalValuation(ctx context.Context) (float64, error) {
	var total sql.NullFloat64
	query := `SELECT SUM(quantity_on_hand * unit_cost) FROM batches WHERE quantity_on_hand > 0`
	if err := r.db.GetContext(ctx, &total, query); err != nil {
		return 0, err
	}
	if !total.Valid {
		return 0, nil
	}
	return total.Float64, nil
}
