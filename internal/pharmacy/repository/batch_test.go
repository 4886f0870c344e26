package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/pharmacore/pharmacy-backend/internal/pharmacy/repository"
	"github.com/pharmacore/pharmacy-backend/pkg/database"
	"github.com/pharmacore/pharmacy-backend/pkg/errors"
	"github.com/pharmacore/pharmacy-backend/pkg/logger"
	"github.com/pharmacore/pharmacy-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBatchRepo(t *testing.T) (*repository.BatchRepository, *testutil.MockDB) {
	t.Helper()
	mockDB := testutil.NewMockDB(t)
	db := database.Wrap(mockDB.DB, logger.New("test", "test"))
	return repository.NewBatchRepository(db), mockDB
}

func TestBatchRepository_ListFEFO(t *testing.T) {
	repo, mockDB := newBatchRepo(t)
	defer mockDB.Close()

	now := time.Now()
	rows := testutil.MockRows(
		"id", "batch_code", "drug_id", "lot_number", "expiry_date",
		"quantity_on_hand", "unit_cost", "supplier", "received_by",
		"received_at", "created_at", "updated_at",
	).
		AddRow("b1", "BATCH000001", "drug-1", nil, now.AddDate(0, 1, 0), 10, 0.50, nil, "user-1", now, now, now).
		AddRow("b2", "BATCH000002", "drug-1", nil, now.AddDate(0, 3, 0), 20, 0.60, nil, "user-1", now, now, now)

	mockDB.ExpectQuery("SELECT * FROM batches WHERE drug_id = $1 AND quantity_on_hand > 0 ORDER BY expiry_date, received_at, id").
		WithArgs("drug-1").
		WillReturnRows(rows)

	batches, err := repo.ListFEFO(context.Background(), "drug-1")
	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.Equal(t, "b1", batches[0].ID)
	assert.Equal(t, 10, batches[0].QuantityOnHand)

	mockDB.ExpectationsWereMet(t)
}

func TestBatchRepository_TotalStock_NoBatches(t *testing.T) {
	repo, mockDB := newBatchRepo(t)
	defer mockDB.Close()

	// SUM over zero rows yields NULL, which must read as zero stock.
	mockDB.ExpectQuery("SELECT SUM(quantity_on_hand) FROM batches WHERE drug_id = $1 AND quantity_on_hand > 0").
		WithArgs("drug-1").
		WillReturnRows(testutil.MockRows("sum").AddRow(nil))

	total, err := repo.TotalStock(context.Background(), "drug-1")
	require.NoError(t, err)
	assert.Equal(t, 0, total)

	mockDB.ExpectationsWereMet(t)
}

func TestBatchRepository_GetByID_NotFound(t *testing.T) {
	repo, mockDB := newBatchRepo(t)
	defer mockDB.Close()

	mockDB.ExpectQuery("SELECT * FROM batches WHERE id = $1").
		WithArgs("missing").
		WillReturnRows(testutil.MockRows("id"))

	_, err := repo.GetByID(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	mockDB.ExpectationsWereMet(t)
}

func TestBatchRepository_TotalValuation(t *testing.T) {
	repo, mockDB := newBatchRepo(t)
	defer mockDB.Close()

	mockDB.ExpectQuery("SELECT SUM(quantity_on_hand * unit_cost) FROM batches WHERE quantity_on_hand > 0").
		WillReturnRows(testutil.MockRows("sum").AddRow(1234.56))

	total, err := repo.TotalValuation(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 1234.56, total, 0.001)

	mockDB.ExpectationsWereMet(t)
}
