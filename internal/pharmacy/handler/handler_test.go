package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/pharmacore/pharmacy-backend/internal/pharmacy/handler"
	"github.com/pharmacore/pharmacy-backend/internal/pharmacy/repository"
	"github.com/pharmacore/pharmacy-backend/internal/pharmacy/service"
	"github.com/pharmacore/pharmacy-backend/pkg/database"
	"github.com/pharmacore/pharmacy-backend/pkg/httputil"
	"github.com/pharmacore/pharmacy-backend/pkg/logger"
	"github.com/pharmacore/pharmacy-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (chi.Router, *testutil.MockDB) {
	t.Helper()
	mockDB := testutil.NewMockDB(t)

	log := logger.New("test", "test")
	db := database.Wrap(mockDB.DB, log)

	drugRepo := repository.NewDrugRepository(db)
	batchRepo := repository.NewBatchRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	seqRepo := repository.NewSequenceRepository(db)

	inventoryService := service.NewInventoryService(db, drugRepo, batchRepo, ledgerRepo, seqRepo, nil, log, 3)
	stockService := service.NewStockService(drugRepo, batchRepo, log, 90)

	drugHandler := handler.NewDrugHandler(inventoryService, log)
	stockHandler := handler.NewStockHandler(inventoryService, log)
	reportHandler := handler.NewReportHandler(inventoryService, stockService, log)

	r := chi.NewRouter()
	r.Use(httputil.Actor)
	r.Route("/api/v1/pharmacy", func(r chi.Router) {
		r.Post("/drugs", drugHandler.Create)
		r.Get("/drugs/{id}", drugHandler.Get)
		r.Delete("/drugs/{id}", drugHandler.Delete)
		r.Post("/drugs/{id}/dispense", stockHandler.Dispense)
		r.Get("/alerts/expiring", reportHandler.Expiring)
	})
	return r, mockDB
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) httputil.Response {
	t.Helper()
	var resp httputil.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestCreateDrug_ValidationError(t *testing.T) {
	router, mockDB := newTestRouter(t)
	defer mockDB.Close()

	body := `{"form": "tablet"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/pharmacy/drugs", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	resp := decodeResponse(t, rec)
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Contains(t, resp.Error.Details, "Name")
}

func TestCreateDrug_InvalidJSON(t *testing.T) {
	router, mockDB := newTestRouter(t)
	defer mockDB.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/pharmacy/drugs", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	resp := decodeResponse(t, rec)
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "BAD_REQUEST", resp.Error.Code)
}

func TestGetDrug_ReturnsBatchesAndStock(t *testing.T) {
	router, mockDB := newTestRouter(t)
	defer mockDB.Close()

	now := time.Now()

	mockDB.ExpectQuery("SELECT * FROM drugs WHERE id = $1").
		WithArgs("drug-1").
		WillReturnRows(testutil.MockRows(
			"id", "code", "name", "generic_name", "form", "strength",
			"reorder_level", "is_active", "created_at", "updated_at",
		).AddRow("drug-1", "DRG00001", "Paracetamol 500mg", nil, "tablet", nil, 50, true, now, now))

	mockDB.ExpectQuery("SELECT * FROM batches WHERE drug_id = $1 ORDER BY expiry_date, received_at, id").
		WithArgs("drug-1").
		WillReturnRows(testutil.MockRows(
			"id", "batch_code", "drug_id", "lot_number", "expiry_date",
			"quantity_on_hand", "unit_cost", "supplier", "received_by",
			"received_at", "created_at", "updated_at",
		).
			AddRow("b1", "BATCH000001", "drug-1", nil, now.AddDate(0, 2, 0), 40, 0.50, nil, "user-1", now, now, now).
			AddRow("b2", "BATCH000002", "drug-1", nil, now.AddDate(0, 6, 0), 60, 0.55, nil, "user-1", now, now, now))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/pharmacy/drugs/drug-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeResponse(t, rec)
	assert.True(t, resp.Success)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(100), data["stock_on_hand"])

	batches, ok := data["batches"].([]interface{})
	require.True(t, ok)
	assert.Len(t, batches, 2)

	mockDB.ExpectationsWereMet(t)
}

func TestDeleteDrug_Deactivates(t *testing.T) {
	router, mockDB := newTestRouter(t)
	defer mockDB.Close()

	mockDB.ExpectExec("UPDATE drugs SET is_active = false, updated_at = NOW() WHERE id = $1").
		WithArgs("drug-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/pharmacy/drugs/drug-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeResponse(t, rec)
	assert.True(t, resp.Success)

	mockDB.ExpectationsWereMet(t)
}

func TestDeleteDrug_NotFound(t *testing.T) {
	router, mockDB := newTestRouter(t)
	defer mockDB.Close()

	mockDB.ExpectExec("UPDATE drugs SET is_active = false, updated_at = NOW() WHERE id = $1").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/pharmacy/drugs/missing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)

	resp := decodeResponse(t, rec)
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)

	mockDB.ExpectationsWereMet(t)
}

func TestDispense_RejectsZeroQuantity(t *testing.T) {
	router, mockDB := newTestRouter(t)
	defer mockDB.Close()

	body := `{"quantity": 0}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/pharmacy/drugs/drug-1/dispense", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	resp := decodeResponse(t, rec)
	assert.False(t, resp.Success)
}

func TestExpiring_RejectsBadDaysParam(t *testing.T) {
	router, mockDB := newTestRouter(t)
	defer mockDB.Close()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/pharmacy/alerts/expiring?days=soon", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	resp := decodeResponse(t, rec)
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "BAD_REQUEST", resp.Error.Code)
}
