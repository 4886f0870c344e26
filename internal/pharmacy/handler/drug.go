package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pharmacore/pharmacy-backend/internal/pharmacy/service"
	"github.com/pharmacore/pharmacy-backend/pkg/httputil"
	"github.com/pharmacore/pharmacy-backend/pkg/logger"
)

// DrugHandler handles drug catalog endpoints
type DrugHandler struct {
	service *service.InventoryService
	logger  *logger.Logger
}

// NewDrugHandler creates a new drug handler
func NewDrugHandler(svc *service.InventoryService, log *logger.Logger) *DrugHandler {
	return &DrugHandler{
		service: svc,
		logger:  log,
	}
}

// List lists catalog drugs
func (h *DrugHandler) List(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	search := r.URL.Query().Get("q")

	drugs, err := h.service.ListDrugs(r.Context(), activeOnly, search)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, drugs)
}

// Get gets a drug with its batches
func (h *DrugHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	drug, batches, err := h.service.GetDrug(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	stock := 0
	for _, b := range batches {
		stock += b.QuantityOnHand
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"drug":          drug,
		"batches":       batches,
		"stock_on_hand": stock,
	})
}

// Create creates a new catalog drug
func (h *DrugHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code         string  `json:"code"`
		Name         string  `json:"name" validate:"required"`
		GenericName  *string `json:"generic_name"`
		Form         string  `json:"form" validate:"required"`
		Strength     *string `json:"strength"`
		ReorderLevel int     `json:"reorder_level" validate:"gte=0"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	drug, err := h.service.CreateDrug(r.Context(), service.CreateDrugInput{
		Code:         req.Code,
		Name:         req.Name,
		GenericName:  req.GenericName,
		Form:         req.Form,
		Strength:     req.Strength,
		ReorderLevel: req.ReorderLevel,
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, drug)
}

// Update updates a drug's descriptive fields
func (h *DrugHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		Name         *string `json:"name"`
		GenericName  *string `json:"generic_name"`
		Form         *string `json:"form"`
		Strength     *string `json:"strength"`
		ReorderLevel *int    `json:"reorder_level"`
		IsActive     *bool   `json:"is_active"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	drug, err := h.service.UpdateDrug(r.Context(), id, service.UpdateDrugInput{
		Name:         req.Name,
		GenericName:  req.GenericName,
		Form:         req.Form,
		Strength:     req.Strength,
		ReorderLevel: req.ReorderLevel,
		IsActive:     req.IsActive,
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, drug)
}

// Delete deactivates a drug. Soft delete only; ledger rows reference the
// catalog entry forever.
func (h *DrugHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.DeactivateDrug(r.Context(), id); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{"id": id, "status": "deactivated"})
}

// ListBatches lists a drug's non-empty batches in FEFO order
func (h *DrugHandler) ListBatches(w http.ResponseWriter, r *http.Request) {
	drugID := chi.URLParam(r, "id")

	batches, err := h.service.GetBatchesFEFO(r.Context(), drugID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batches)
}
