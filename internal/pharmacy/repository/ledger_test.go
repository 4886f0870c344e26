package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/pharmacore/pharmacy-backend/internal/pharmacy/repository"
	"github.com/pharmacore/pharmacy-backend/pkg/database"
	"github.com/pharmacore/pharmacy-backend/pkg/errors"
	"github.com/pharmacore/pharmacy-backend/pkg/logger"
	"github.com/pharmacore/pharmacy-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLedgerRepo(t *testing.T) (*repository.LedgerRepository, *testutil.MockDB) {
	t.Helper()
	mockDB := testutil.NewMockDB(t)
	db := database.Wrap(mockDB.DB, logger.New("test", "test"))
	return repository.NewLedgerRepository(db), mockDB
}

func TestLedgerRepository_AppendTx(t *testing.T) {
	repo, mockDB := newLedgerRepo(t)
	defer mockDB.Close()

	now := time.Now()
	mockDB.ExpectBegin()
	mockDB.ExpectQuery("INSERT INTO ledger_entries").
		WillReturnRows(testutil.MockRows("created_at").AddRow(now))

	db := database.Wrap(mockDB.DB, logger.New("test", "test"))
	tx, err := db.Beginx()
	require.NoError(t, err)

	batchID := "b1"
	entry := &repository.LedgerEntry{
		TransactionID:   "TXN2609010010042",
		DrugID:          "drug-1",
		BatchID:         &batchID,
		TransactionType: repository.TransactionReceive,
		Quantity:        100,
		QuantityBefore:  0,
		QuantityAfter:   100,
		UnitCost:        0.50,
		TotalValue:      50,
		PerformedBy:     "user-1",
	}
	err = repo.AppendTx(context.Background(), tx, entry)
	require.NoError(t, err)

	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, now, entry.CreatedAt)

	mockDB.ExpectationsWereMet(t)
}

func TestLedgerRepository_AppendTx_DuplicateTransactionID(t *testing.T) {
	repo, mockDB := newLedgerRepo(t)
	defer mockDB.Close()

	mockDB.ExpectBegin()
	mockDB.ExpectQuery("INSERT INTO ledger_entries").
		WillReturnError(&pq.Error{
			Code:       "23505",
			Constraint: "ledger_entries_transaction_id_key",
		})

	db := database.Wrap(mockDB.DB, logger.New("test", "test"))
	tx, err := db.Beginx()
	require.NoError(t, err)

	batchID := "b1"
	err = repo.AppendTx(context.Background(), tx, &repository.LedgerEntry{
		TransactionID:   "TXN2609010010042",
		DrugID:          "drug-1",
		BatchID:         &batchID,
		TransactionType: repository.TransactionDispense,
		Quantity:        -5,
		PerformedBy:     "user-1",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConcurrentModification))

	mockDB.ExpectationsWereMet(t)
}

func TestLedgerRepository_List_FilterPlacement(t *testing.T) {
	repo, mockDB := newLedgerRepo(t)
	defer mockDB.Close()

	ledgerColumns := []string{
		"id", "transaction_id", "drug_id", "batch_id", "transaction_type",
		"quantity", "quantity_before", "quantity_after", "unit_cost",
		"total_value", "related_type", "related_id", "performed_by", "notes",
		"created_at", "drug_name", "drug_code", "drug_strength",
	}
	now := time.Now()

	// Both filters: drug_id is $1, batch_id is $2, limit is $3.
	mockDB.ExpectQuery("AND l.drug_id = $1 AND l.batch_id = $2 ORDER BY l.created_at DESC, l.id DESC LIMIT $3").
		WithArgs("drug-1", "b1", 100).
		WillReturnRows(testutil.MockRows(ledgerColumns...).
			AddRow("e1", "TXN2609010010042", "drug-1", "b1", "dispense",
				-5, 10, 5, 0.50, -2.50, nil, nil, "user-1", nil,
				now, "Paracetamol 500mg", "DRG00001", nil))

	rows, err := repo.List(context.Background(), "drug-1", "b1", 100)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Paracetamol 500mg", rows[0].DrugName)
	assert.Equal(t, -5, rows[0].Quantity)

	mockDB.ExpectationsWereMet(t)
}

func TestLedgerRepository_SumByBatch(t *testing.T) {
	repo, mockDB := newLedgerRepo(t)
	defer mockDB.Close()

	mockDB.ExpectQuery("SELECT COALESCE(SUM(quantity), 0) FROM ledger_entries WHERE batch_id = $1").
		WithArgs("b1").
		WillReturnRows(testutil.MockRows("coalesce").AddRow(95))

	sum, err := repo.SumByBatch(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, 95, sum)

	mockDB.ExpectationsWereMet(t)
}
