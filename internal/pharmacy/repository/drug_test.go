package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/pharmacore/pharmacy-backend/internal/pharmacy/repository"
	"github.com/pharmacore/pharmacy-backend/pkg/database"
	"github.com/pharmacore/pharmacy-backend/pkg/errors"
	"github.com/pharmacore/pharmacy-backend/pkg/logger"
	"github.com/pharmacore/pharmacy-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDrugRepo(t *testing.T) (*repository.DrugRepository, *testutil.MockDB) {
	t.Helper()
	mockDB := testutil.NewMockDB(t)
	db := database.Wrap(mockDB.DB, logger.New("test", "test"))
	return repository.NewDrugRepository(db), mockDB
}

func TestDrugRepository_Create(t *testing.T) {
	repo, mockDB := newDrugRepo(t)
	defer mockDB.Close()

	now := time.Now()
	mockDB.ExpectQuery("INSERT INTO drugs").
		WillReturnRows(testutil.MockRows("created_at", "updated_at").AddRow(now, now))

	drug := &repository.Drug{
		Code:         "DRG00001",
		Name:         "Paracetamol 500mg",
		Form:         "tablet",
		ReorderLevel: 50,
		IsActive:     true,
	}
	err := repo.Create(context.Background(), drug)
	require.NoError(t, err)

	assert.NotEmpty(t, drug.ID)
	assert.Equal(t, now, drug.CreatedAt)

	mockDB.ExpectationsWereMet(t)
}

func TestDrugRepository_Create_DuplicateCode(t *testing.T) {
	repo, mockDB := newDrugRepo(t)
	defer mockDB.Close()

	mockDB.ExpectQuery("INSERT INTO drugs").
		WillReturnError(&pq.Error{
			Code:       "23505",
			Constraint: "drugs_code_key",
			Detail:     "Key (code)=(DRG00001) already exists.",
		})

	drug := &repository.Drug{
		Code: "DRG00001",
		Name: "Paracetamol 500mg",
		Form: "tablet",
	}
	err := repo.Create(context.Background(), drug)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrDuplicateCode))

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Contains(t, appErr.Message, "DRG00001")

	mockDB.ExpectationsWereMet(t)
}

func TestDrugRepository_GetByID_NotFound(t *testing.T) {
	repo, mockDB := newDrugRepo(t)
	defer mockDB.Close()

	mockDB.ExpectQuery("SELECT * FROM drugs WHERE id = $1").
		WithArgs("missing").
		WillReturnRows(testutil.MockRows(
			"id", "code", "name", "generic_name", "form", "strength",
			"reorder_level", "is_active", "created_at", "updated_at",
		))

	_, err := repo.GetByID(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	mockDB.ExpectationsWereMet(t)
}

func TestDrugRepository_Update_NotFound(t *testing.T) {
	repo, mockDB := newDrugRepo(t)
	defer mockDB.Close()

	mockDB.ExpectExec("UPDATE drugs SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &repository.Drug{
		ID:   "missing",
		Name: "Renamed",
		Form: "tablet",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	mockDB.ExpectationsWereMet(t)
}
