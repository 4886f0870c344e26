package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/pharmacore/pharmacy-backend/pkg/database"
)

// Sequence names for display codes. Daily transaction sequences use a
// date-suffixed name (txn:260901) so each local day starts at 1.
const (
	SequenceDrugCode  = "drug_code"
	SequenceBatchCode = "batch_code"
)

// SequenceRepository allocates monotonically increasing display-code numbers
// from a counters table. The upsert increments and returns in one statement,
// so two concurrent callers can never observe the same value. This replaces
// in-process counters, which reset on restart and collide across workers.
type SequenceRepository struct {
	db *database.DB
}

// NewSequenceRepository creates a new sequence repository
func NewSequenceRepository(db *database.DB) *SequenceRepository {
	return &SequenceRepository{db: db}
}

const nextValueQuery = `
	INSERT INTO id_sequences (name, value) VALUES ($1, 1)
	ON CONFLICT (name) DO UPDATE SET value = id_sequences.value + 1
	RETURNING value
`

// Next allocates the next value for the named sequence.
func (r *SequenceRepository) Next(ctx context.Context, name string) (int64, error) {
	var value int64
	if err := r.db.QueryRowxContext(ctx, nextValueQuery, name).Scan(&value); err != nil {
		return 0, err
	}
	return value, nil
}

// NextTx allocates the next value within an existing transaction. The counter
// row stays locked until the transaction commits, which serializes concurrent
// allocations of the same sequence.
func (r *SequenceRepository) NextTx(ctx context.Context, tx *sqlx.Tx, name string) (int64, error) {
	var value int64
	if err := tx.QueryRowxContext(ctx, nextValueQuery, name).Scan(&value); err != nil {
		return 0, err
	}
	return value, nil
}

// NextDrugCode allocates a display code like DRG00001.
func (r *SequenceRepository) NextDrugCode(ctx context.Context) (string, error) {
	value, err := r.Next(ctx, SequenceDrugCode)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("DRG%05d", value), nil
}

// NextBatchCodeTx allocates a display code like BATCH000001 inside a transaction.
func (r *SequenceRepository) NextBatchCodeTx(ctx context.Context, tx *sqlx.Tx) (string, error) {
	value, err := r.NextTx(ctx, tx, SequenceBatchCode)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("BATCH%06d", value), nil
}
