package service

import (
	"context"
	"time"

	"github.com/pharmacore/pharmacy-backend/internal/pharmacy/repository"
	"github.com/pharmacore/pharmacy-backend/pkg/logger"
)

// Stock status values
const (
	StatusInStock    = "in_stock"
	StatusLowStock   = "low_stock"
	StatusOutOfStock = "out_of_stock"
)

// Expiry status values
const (
	ExpiryStatusExpired  = "EXPIRED"
	ExpiryStatusExpiring = "EXPIRING"
)

// StockService computes live stock aggregates and alert views. Reads only;
// values are a snapshot valid at call time, recomputed per call rather than
// cached, and never part of a mutation's atomic unit.
type StockService struct {
	drugRepo        *repository.DrugRepository
	batchRepo       *repository.BatchRepository
	logger          *logger.Logger
	expiryAlertDays int
}

// NewStockService creates a new stock service
func NewStockService(drugRepo *repository.DrugRepository, batchRepo *repository.BatchRepository, log *logger.Logger, expiryAlertDays int) *StockService {
	if expiryAlertDays <= 0 {
		expiryAlertDays = 90
	}
	return &StockService{
		drugRepo:        drugRepo,
		batchRepo:       batchRepo,
		logger:          log,
		expiryAlertDays: expiryAlertDays,
	}
}

// DrugStock pairs a catalog entry with its aggregate stock
type DrugStock struct {
	*repository.Drug
	StockOnHand int    `json:"stock_on_hand"`
	Status      string `json:"status"`
}

// ExpiringBatch is a batch inside the expiry alert window
type ExpiringBatch struct {
	*repository.Batch
	DrugName        string `json:"drug_name"`
	DrugCode        string `json:"drug_code"`
	ExpiryStatus    string `json:"expiry_status"`
	DaysUntilExpiry int    `json:"days_until_expiry"`
}

// StockOnHand computes live stock for one drug
func (s *StockService) StockOnHand(ctx context.Context, drugID string) (int, error) {
	if _, err := s.drugRepo.GetByID(ctx, drugID); err != nil {
		return 0, err
	}
	return s.batchRepo.TotalStock(ctx, drugID)
}

// AllDrugsWithStock returns every active drug with its stock level
func (s *StockService) AllDrugsWithStock(ctx context.Context) ([]*DrugStock, error) {
	drugs, err := s.drugRepo.GetAllActive(ctx)
	if err != nil {
		return nil, err
	}

	stocks, err := s.batchRepo.TotalStockAll(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]*DrugStock, len(drugs))
	for i, drug := range drugs {
		stock := stocks[drug.ID]
		result[i] = &DrugStock{
			Drug:        drug,
			StockOnHand: stock,
			Status:      classifyStock(stock, drug.ReorderLevel),
		}
	}
	return result, nil
}

// LowStockDrugs returns active drugs at or below their reorder level but not
// empty. Zero stock is a distinct, more severe state; reporting it here too
// would double-alert, so OutOfStockDrugs carries it instead.
func (s *StockService) LowStockDrugs(ctx context.Context) ([]*DrugStock, error) {
	return s.filterByStatus(ctx, StatusLowStock)
}

// OutOfStockDrugs returns active drugs with no stock at all
func (s *StockService) OutOfStockDrugs(ctx context.Context) ([]*DrugStock, error) {
	return s.filterByStatus(ctx, StatusOutOfStock)
}

func (s *StockService) filterByStatus(ctx context.Context, status string) ([]*DrugStock, error) {
	all, err := s.AllDrugsWithStock(ctx)
	if err != nil {
		return nil, err
	}

	var result []*DrugStock
	for _, ds := range all {
		if ds.Status == status {
			result = append(result, ds)
		}
	}
	return result, nil
}

// ExpiringSoon returns non-empty batches expiring within thresholdDays,
// soonest first. Batches already past expiry are flagged EXPIRED rather than
// reported with a negative countdown.
func (s *StockService) ExpiringSoon(ctx context.Context, thresholdDays int) ([]*ExpiringBatch, error) {
	if thresholdDays <= 0 {
		thresholdDays = s.expiryAlertDays
	}

	batches, err := s.batchRepo.ExpiringWithin(ctx, thresholdDays)
	if err != nil {
		return nil, err
	}

	drugs, err := s.drugRepo.List(ctx, false, "")
	if err != nil {
		return nil, err
	}
	drugsByID := make(map[string]*repository.Drug, len(drugs))
	for _, d := range drugs {
		drugsByID[d.ID] = d
	}

	now := today()
	result := make([]*ExpiringBatch, len(batches))
	for i, batch := range batches {
		status, days := classifyExpiry(batch.ExpiryDate, now)
		eb := &ExpiringBatch{
			Batch:           batch,
			ExpiryStatus:    status,
			DaysUntilExpiry: days,
		}
		if drug, ok := drugsByID[batch.DrugID]; ok {
			eb.DrugName = drug.Name
			eb.DrugCode = drug.Code
		}
		result[i] = eb
	}
	return result, nil
}

// DashboardStats summarises the whole inventory
type DashboardStats struct {
	TotalDrugs     int     `json:"total_drugs"`
	TotalStock     int     `json:"total_stock"`
	StockValuation float64 `json:"stock_valuation"`
	LowStockCount  int     `json:"low_stock_count"`
	OutOfStockCnt  int     `json:"out_of_stock_count"`
	ExpiringCount  int     `json:"expiring_count"`
	ExpiredCount   int     `json:"expired_count"`
}

// DashboardStats computes inventory-wide statistics in one pass
func (s *StockService) DashboardStats(ctx context.Context) (*DashboardStats, error) {
	all, err := s.AllDrugsWithStock(ctx)
	if err != nil {
		return nil, err
	}

	valuation, err := s.batchRepo.TotalValuation(ctx)
	if err != nil {
		return nil, err
	}

	expiring, err := s.ExpiringSoon(ctx, s.expiryAlertDays)
	if err != nil {
		return nil, err
	}

	stats := &DashboardStats{
		TotalDrugs:     len(all),
		StockValuation: valuation,
	}

	for _, ds := range all {
		stats.TotalStock += ds.StockOnHand
		switch ds.Status {
		case StatusLowStock:
			stats.LowStockCount++
		case StatusOutOfStock:
			stats.OutOfStockCnt++
		}
	}

	for _, eb := range expiring {
		if eb.ExpiryStatus == ExpiryStatusExpired {
			stats.ExpiredCount++
		} else {
			stats.ExpiringCount++
		}
	}

	return stats, nil
}

// classifyStock maps a stock level to its alert status. The reorder level is
// an inclusive upper bound for low stock; zero is its own category.
func classifyStock(stock, reorderLevel int) string {
	switch {
	case stock == 0:
		return StatusOutOfStock
	case stock <= reorderLevel:
		return StatusLowStock
	default:
		return StatusInStock
	}
}

// classifyExpiry maps an expiry date to a status and a whole-day count
// relative to now. The comparison is by calendar date: expiry is scanned from
// a DATE column at UTC midnight while now carries the local zone, so raw
// durations between the two can fall short of a full day. Expired batches
// report the days since expiry as a positive age on a distinct status instead
// of a negative countdown.
func classifyExpiry(expiry, now time.Time) (string, int) {
	days := int(calendarDate(expiry).Sub(calendarDate(now)).Hours() / 24)
	if days < 0 {
		return ExpiryStatusExpired, -days
	}
	return ExpiryStatusExpiring, days
}

// calendarDate truncates a timestamp to its calendar date, at UTC midnight
func calendarDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
