package service

import (
	"context"
	"testing"
	"time"

	"github.com/pharmacore/pharmacy-backend/internal/pharmacy/repository"
	"github.com/pharmacore/pharmacy-backend/pkg/database"
	"github.com/pharmacore/pharmacy-backend/pkg/logger"
	"github.com/pharmacore/pharmacy-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyStock(t *testing.T) {
	tests := []struct {
		name         string
		stock        int
		reorderLevel int
		want         string
	}{
		{"zero stock is out of stock", 0, 10, StatusOutOfStock},
		{"zero stock with zero reorder level", 0, 0, StatusOutOfStock},
		{"below reorder level", 5, 10, StatusLowStock},
		{"exactly at reorder level", 10, 10, StatusLowStock},
		{"one above reorder level", 11, 10, StatusInStock},
		{"well stocked", 500, 10, StatusInStock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyStock(tt.stock, tt.reorderLevel))
		})
	}
}

func TestClassifyExpiry(t *testing.T) {
	now := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		expiry     time.Time
		wantStatus string
		wantDays   int
	}{
		{"expires today", now, ExpiryStatusExpiring, 0},
		{"expires in a week", now.AddDate(0, 0, 7), ExpiryStatusExpiring, 7},
		{"expires in ninety days", now.AddDate(0, 0, 90), ExpiryStatusExpiring, 90},
		{"expired yesterday", now.AddDate(0, 0, -1), ExpiryStatusExpired, 1},
		{"expired a month ago", now.AddDate(0, 0, -30), ExpiryStatusExpired, 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, days := classifyExpiry(tt.expiry, now)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantDays, days)
		})
	}
}

func TestClassifyExpiry_MixedZones(t *testing.T) {
	// Expiry dates come out of DATE columns at UTC midnight; the clock side
	// carries the local zone. Classification must agree on calendar dates
	// regardless of which side of UTC the server sits.
	karachi := time.FixedZone("UTC+5", 5*60*60)
	denver := time.FixedZone("UTC-7", -7*60*60)

	tests := []struct {
		name       string
		expiry     time.Time
		now        time.Time
		wantStatus string
		wantDays   int
	}{
		{
			"expired yesterday seen from a zone ahead of UTC",
			time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC),
			time.Date(2026, 9, 1, 0, 0, 0, 0, karachi),
			ExpiryStatusExpired, 1,
		},
		{
			"expires today seen from a zone ahead of UTC",
			time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2026, 9, 1, 0, 0, 0, 0, karachi),
			ExpiryStatusExpiring, 0,
		},
		{
			"expires tomorrow seen from a zone behind UTC",
			time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC),
			time.Date(2026, 9, 1, 0, 0, 0, 0, denver),
			ExpiryStatusExpiring, 1,
		},
		{
			"expired yesterday seen from a zone behind UTC",
			time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC),
			time.Date(2026, 9, 1, 0, 0, 0, 0, denver),
			ExpiryStatusExpired, 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, days := classifyExpiry(tt.expiry, tt.now)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantDays, days)
		})
	}
}

func newTestStockService(t *testing.T) (*StockService, *testutil.MockDB) {
	t.Helper()
	mockDB := testutil.NewMockDB(t)

	log := logger.New("test", "test")
	db := database.Wrap(mockDB.DB, log)

	drugRepo := repository.NewDrugRepository(db)
	batchRepo := repository.NewBatchRepository(db)

	return NewStockService(drugRepo, batchRepo, log, 90), mockDB
}

func TestAllDrugsWithStock(t *testing.T) {
	svc, mockDB := newTestStockService(t)
	defer mockDB.Close()

	now := time.Now()

	mockDB.ExpectQuery("SELECT * FROM drugs WHERE is_active = true ORDER BY name, id").
		WillReturnRows(testutil.MockRows(
			"id", "code", "name", "generic_name", "form", "strength",
			"reorder_level", "is_active", "created_at", "updated_at",
		).
			AddRow("drug-1", "DRG00001", "Amoxicillin 250mg", nil, "capsule", nil, 30, true, now, now).
			AddRow("drug-2", "DRG00002", "Ibuprofen 400mg", nil, "tablet", nil, 20, true, now, now).
			AddRow("drug-3", "DRG00003", "Paracetamol 500mg", nil, "tablet", nil, 50, true, now, now))

	mockDB.ExpectQuery("SELECT drug_id, SUM(quantity_on_hand) AS stock FROM batches WHERE quantity_on_hand > 0 GROUP BY drug_id").
		WillReturnRows(testutil.MockRows("drug_id", "stock").
			AddRow("drug-1", 12).
			AddRow("drug-3", 400))

	result, err := svc.AllDrugsWithStock(context.Background())
	require.NoError(t, err)
	require.Len(t, result, 3)

	assert.Equal(t, 12, result[0].StockOnHand)
	assert.Equal(t, StatusLowStock, result[0].Status)

	// Absent from the aggregate means no stock at all.
	assert.Equal(t, 0, result[1].StockOnHand)
	assert.Equal(t, StatusOutOfStock, result[1].Status)

	assert.Equal(t, 400, result[2].StockOnHand)
	assert.Equal(t, StatusInStock, result[2].Status)

	mockDB.ExpectationsWereMet(t)
}
