package matching

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/MrJamesThe3rd/merenda/internal/apperr"
	"github.com/MrJamesThe3rd/merenda/internal/http/respond"
	"github.com/MrJamesThe3rd/merenda/internal/matching"
)

type Handler struct {
	svc    *matching.Service
	logger *zap.Logger
}

func NewHandler(svc *matching.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/suggest", h.suggest)
}

type suggestResponse struct {
	Name         string           `json:"name"`
	Ingredient   string           `json:"ingredient"`
	Status       matching.Status  `json:"status"`
	ContractID   *uuid.UUID       `json:"contract_id,omitempty"`
	LineItemID   *uuid.UUID       `json:"line_item_id,omitempty"`
	SupplierName string           `json:"supplier_name,omitempty"`
	Description  string           `json:"description,omitempty"`
	Unit         string           `json:"unit,omitempty"`
	UnitPrice    *decimal.Decimal `json:"unit_price,omitempty"`
	Remaining    *decimal.Decimal `json:"remaining,omitempty"`
}

func (h *Handler) suggest(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if strings.TrimSpace(name) == "" {
		respond.Error(w, h.logger, apperr.Validation("name query parameter is required"))
		return
	}

	res, err := h.svc.Suggest(r.Context(), name)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	resp := suggestResponse{
		Name:       name,
		Ingredient: res.Ingredient,
		Status:     res.Status,
	}

	if res.Matched() {
		resp.ContractID = new(res.ContractID)
		resp.LineItemID = new(res.LineItemID)
		resp.SupplierName = res.SupplierName
		resp.Description = res.Description
		resp.Unit = res.Unit
		resp.UnitPrice = new(res.UnitPrice)
		resp.Remaining = new(res.Remaining)
	}

	respond.JSON(w, h.logger, http.StatusOK, resp)
}
