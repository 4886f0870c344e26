package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/pharmacore/pharmacy-backend/internal/pharmacy/service"
	"github.com/pharmacore/pharmacy-backend/pkg/errors"
	"github.com/pharmacore/pharmacy-backend/pkg/httputil"
	"github.com/pharmacore/pharmacy-backend/pkg/logger"
)

// ReportHandler handles read-only inventory views: stock levels,
// alerts, the ledger and dashboard statistics.
type ReportHandler struct {
	inventory *service.InventoryService
	stock     *service.StockService
	logger    *logger.Logger
}

// NewReportHandler creates a new report handler
func NewReportHandler(inv *service.InventoryService, stock *service.StockService, log *logger.Logger) *ReportHandler {
	return &ReportHandler{
		inventory: inv,
		stock:     stock,
		logger:    log,
	}
}

// Stock returns every active drug with its total stock and status
func (h *ReportHandler) Stock(w http.ResponseWriter, r *http.Request) {
	drugs, err := h.stock.AllDrugsWithStock(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, drugs)
}

// StockForDrug returns the summed on-hand quantity for one drug
func (h *ReportHandler) StockForDrug(w http.ResponseWriter, r *http.Request) {
	drugID := chi.URLParam(r, "drugId")

	stock, err := h.stock.StockOnHand(r.Context(), drugID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"drug_id":       drugID,
		"stock_on_hand": stock,
	})
}

// LowStock returns drugs at or below their reorder level, plus
// drugs that are out of stock entirely.
func (h *ReportHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	low, err := h.stock.LowStockDrugs(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	out, err := h.stock.OutOfStockDrugs(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"low_stock":    low,
		"out_of_stock": out,
	})
}

// Expiring returns non-empty batches expiring within the threshold
func (h *ReportHandler) Expiring(w http.ResponseWriter, r *http.Request) {
	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			httputil.Error(w, errors.BadRequest("days must be a positive integer"))
			return
		}
		days = parsed
	}

	batches, err := h.stock.ExpiringSoon(r.Context(), days)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batches)
}

// Ledger returns ledger entries newest first, optionally filtered
func (h *ReportHandler) Ledger(w http.ResponseWriter, r *http.Request) {
	drugID := r.URL.Query().Get("drug_id")
	batchID := r.URL.Query().Get("batch_id")

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}

	entries, err := h.inventory.ListLedger(r.Context(), drugID, batchID, limit)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, entries, &httputil.Meta{
		PerPage: limit,
		Total:   int64(len(entries)),
	})
}

// Dashboard returns inventory-wide statistics
func (h *ReportHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stock.DashboardStats(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, stats)
}
