package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pharmacore/pharmacy-backend/pkg/database"
)

// Transaction types recorded in the ledger
const (
	TransactionReceive  = "receive"
	TransactionDispense = "dispense"
	TransactionAdjust   = "adjust"
)

// LedgerEntry is an immutable record of one quantity movement. Rows are only
// ever inserted, and only from inside the same transaction that mutates the
// batch they describe; nothing updates or deletes them afterwards.
type LedgerEntry struct {
	ID              string    `db:"id" json:"id"`
	TransactionID   string    `db:"transaction_id" json:"transaction_id"`
	DrugID          string    `db:"drug_id" json:"drug_id"`
	BatchID         *string   `db:"batch_id" json:"batch_id,omitempty"`
	TransactionType string    `db:"transaction_type" json:"transaction_type"`
	Quantity        int       `db:"quantity" json:"quantity"`
	QuantityBefore  int       `db:"quantity_before" json:"quantity_before"`
	QuantityAfter   int       `db:"quantity_after" json:"quantity_after"`
	UnitCost        float64   `db:"unit_cost" json:"unit_cost"`
	TotalValue      float64   `db:"total_value" json:"total_value"`
	RelatedType     *string   `db:"related_type" json:"related_type,omitempty"`
	RelatedID       *string   `db:"related_id" json:"related_id,omitempty"`
	PerformedBy     string    `db:"performed_by" json:"performed_by"`
	Notes           *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// LedgerRow is a ledger entry denormalized with the owning drug for reports
type LedgerRow struct {
	LedgerEntry
	DrugName     string  `db:"drug_name" json:"drug_name"`
	DrugCode     string  `db:"drug_code" json:"drug_code"`
	DrugStrength *string `db:"drug_strength" json:"drug_strength,omitempty"`
}

// LedgerRepository handles the append-only inventory ledger
type LedgerRepository struct {
	db *database.DB
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *database.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// AppendTx appends a ledger entry within a transaction. This is the only
// write path; the batch mutation and its ledger rows commit together.
func (r *LedgerRepository) AppendTx(ctx context.Context, tx *sqlx.Tx, entry *LedgerEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	query := `
		INSERT INTO ledger_entries (
			id, transaction_id, drug_id, batch_id, transaction_type, quantity,
			quantity_before, quantity_after, unit_cost, total_value,
			related_type, related_id, performed_by, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at
	`

	err := tx.QueryRowxContext(ctx, query,
		entry.ID, entry.TransactionID, entry.DrugID, entry.BatchID,
		entry.TransactionType, entry.Quantity, entry.QuantityBefore,
		entry.QuantityAfter, entry.UnitCost, entry.TotalValue,
		entry.RelatedType, entry.RelatedID, entry.PerformedBy, entry.Notes,
	).Scan(&entry.CreatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// List lists ledger rows newest-first, optionally filtered by drug and batch,
// denormalized with the owning drug's name and strength.
func (r *LedgerRepository) List(ctx context.Context, drugID, batchID string, limit int) ([]*LedgerRow, error) {
	if limit <= 0 {
		limit = 200
	}

	query := `
		SELECT l.*, d.name AS drug_name, d.code AS drug_code, d.strength AS drug_strength
		FROM ledger_entries l
		JOIN drugs d ON d.id = l.drug_id
		WHERE 1=1
	`
	args := []interface{}{}

	if drugID != "" {
		args = append(args, drugID)
		query += ` AND l.drug_id = $1`
	}
	if batchID != "" {
		args = append(args, batchID)
		if drugID != "" {
			query += ` AND l.batch_id = $2`
		} else {
			query += ` AND l.batch_id = $1`
		}
	}

	args = append(args, limit)
	switch len(args) {
	case 1:
		query += ` ORDER BY l.created_at DESC, l.id DESC LIMIT $1`
	case 2:
		query += ` ORDER BY l.created_at DESC, l.id DESC LIMIT $2`
	default:
		query += ` ORDER BY l.created_at DESC, l.id DESC LIMIT $3`
	}

	var rows []*LedgerRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return rows, nil
}

// SumByBatch returns the sum of signed quantities for one batch. For a
// consistent ledger this always equals the batch's quantity_on_hand.
func (r *LedgerRepository) SumByBatch(ctx context.Context, batchID string) (int, error) {
	var sum int
	query := `SELECT COALESCE(SUM(quantity), 0) FROM ledger_entries WHERE batch_id = $1`
	if err := r.db.GetContext(ctx, &sum, query, batchID); err != nil {
		return 0, err
	}
	return sum, nil
}
