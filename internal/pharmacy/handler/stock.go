package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pharmacore/pharmacy-backend/internal/pharmacy/service"
	"github.com/pharmacore/pharmacy-backend/pkg/actor"
	"github.com/pharmacore/pharmacy-backend/pkg/httputil"
	"github.com/pharmacore/pharmacy-backend/pkg/logger"
)

// StockHandler handles stock movement endpoints: receiving, dispensing
// and manual adjustments.
type StockHandler struct {
	service *service.InventoryService
	logger  *logger.Logger
}

// NewStockHandler creates a new stock handler
func NewStockHandler(svc *service.InventoryService, log *logger.Logger) *StockHandler {
	return &StockHandler{
		service: svc,
		logger:  log,
	}
}

// Receive records receipt of a new batch
func (h *StockHandler) Receive(w http.ResponseWriter, r *http.Request) {
	drugID := chi.URLParam(r, "id")

	var req struct {
		LotNumber       *string `json:"lot_number"`
		ExpiryDate      string  `json:"expiry_date" validate:"required,datetime=2006-01-02"`
		Quantity        int     `json:"quantity" validate:"gte=0"`
		UnitsPerCarton  int     `json:"units_per_carton" validate:"gte=0"`
		CartonsReceived int     `json:"cartons_received" validate:"gte=0"`
		UnitCost        float64 `json:"unit_cost" validate:"gte=0"`
		Supplier        *string `json:"supplier"`
		Notes           *string `json:"notes"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	batch, err := h.service.ReceiveBatch(r.Context(), service.ReceiveBatchInput{
		DrugID:          drugID,
		LotNumber:       req.LotNumber,
		ExpiryDate:      req.ExpiryDate,
		Quantity:        req.Quantity,
		UnitsPerCarton:  req.UnitsPerCarton,
		CartonsReceived: req.CartonsReceived,
		UnitCost:        req.UnitCost,
		Supplier:        req.Supplier,
		ReceivedBy:      actor.FromContext(r.Context()).GetID(),
		Notes:           req.Notes,
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, batch)
}

// Dispense dispenses stock for a drug across batches in FEFO order
func (h *StockHandler) Dispense(w http.ResponseWriter, r *http.Request) {
	drugID := chi.URLParam(r, "id")

	var req struct {
		Quantity    int     `json:"quantity" validate:"required,gt=0"`
		RelatedType *string `json:"related_type"`
		RelatedID   *string `json:"related_id"`
		Notes       *string `json:"notes"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.service.Dispense(r.Context(), service.DispenseInput{
		DrugID:      drugID,
		Quantity:    req.Quantity,
		PerformedBy: actor.FromContext(r.Context()).GetID(),
		RelatedType: req.RelatedType,
		RelatedID:   req.RelatedID,
		Notes:       req.Notes,
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}

// DispenseFromBatch dispenses stock from one specific batch, bypassing
// FEFO selection. Used for recalls and damaged-stock removal.
func (h *StockHandler) DispenseFromBatch(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "id")

	var req struct {
		Quantity int `json:"quantity" validate:"required,gt=0"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.service.DispenseFromBatch(r.Context(), batchID, req.Quantity, actor.FromContext(r.Context()).GetID())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}

// Adjust applies a signed manual correction to one batch
func (h *StockHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "id")

	var req struct {
		Delta  int    `json:"delta" validate:"required"`
		Reason string `json:"reason" validate:"required"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	entry, err := h.service.Adjust(r.Context(), batchID, req.Delta, req.Reason, actor.FromContext(r.Context()).GetID())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, entry)
}
