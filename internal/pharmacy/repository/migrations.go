package repository

import (
	"context"

	"github.com/pharmacore/pharmacy-backend/pkg/database"
)

// Migrate creates the database schema required by the inventory ledger.
// All statements are idempotent so the service can run them at startup.
func Migrate(ctx context.Context, db *database.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS drugs (
			id UUID PRIMARY KEY,
			code TEXT NOT NULL,
			name TEXT NOT NULL,
			generic_name TEXT,
			form TEXT NOT NULL,
			strength TEXT,
			reorder_level INTEGER NOT NULL DEFAULT 10,
			is_active BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT drugs_code_unique UNIQUE (code),
			CONSTRAINT drugs_reorder_level_non_negative CHECK (reorder_level >= 0)
		)`,
		`CREATE TABLE IF NOT EXISTS batches (
			id UUID PRIMARY KEY,
			batch_code TEXT NOT NULL,
			drug_id UUID NOT NULL REFERENCES drugs(id),
			lot_number TEXT,
			expiry_date DATE NOT NULL,
			quantity_on_hand INTEGER NOT NULL,
			unit_cost NUMERIC(12,2) NOT NULL,
			supplier TEXT,
			received_by TEXT NOT NULL,
			received_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT batches_batch_code_unique UNIQUE (batch_code),
			CONSTRAINT batches_quantity_on_hand_non_negative CHECK (quantity_on_hand >= 0),
			CONSTRAINT batches_unit_cost_non_negative CHECK (unit_cost >= 0)
		)`,
		`CREATE TABLE IF NOT EXISTS ledger_entries (
			id UUID PRIMARY KEY,
			transaction_id TEXT NOT NULL,
			drug_id UUID NOT NULL REFERENCES drugs(id),
			batch_id UUID REFERENCES batches(id),
			transaction_type TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			quantity_before INTEGER NOT NULL,
			quantity_after INTEGER NOT NULL,
			unit_cost NUMERIC(12,2) NOT NULL,
			total_value NUMERIC(14,2) NOT NULL,
			related_type TEXT,
			related_id TEXT,
			performed_by TEXT NOT NULL,
			notes TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT ledger_entries_transaction_id_unique UNIQUE (transaction_id),
			CONSTRAINT ledger_entries_transaction_type_valid
				CHECK (transaction_type IN ('receive', 'dispense', 'adjust'))
		)`,
		`CREATE TABLE IF NOT EXISTS id_sequences (
			name TEXT PRIMARY KEY,
			value BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_batches_drug_id ON batches(drug_id)`,
		`CREATE INDEX IF NOT EXISTS idx_batches_fefo
			ON batches(drug_id, expiry_date, received_at)
			WHERE quantity_on_hand > 0`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_entries_drug_id ON ledger_entries(drug_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_entries_batch_id ON ledger_entries(batch_id)`,
	}

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	return nil
}
