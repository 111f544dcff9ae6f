package order

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/MrJamesThe3rd/merenda/internal/apperr"
	"github.com/MrJamesThe3rd/merenda/internal/demand"
	"github.com/MrJamesThe3rd/merenda/internal/http/middleware"
	"github.com/MrJamesThe3rd/merenda/internal/http/respond"
	"github.com/MrJamesThe3rd/merenda/internal/order"
	"github.com/MrJamesThe3rd/merenda/internal/procurement"
)

type Handler struct {
	svc    *procurement.Service
	orders *order.Processor
	logger *zap.Logger
}

func NewHandler(svc *procurement.Service, orders *order.Processor, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Handler{svc: svc, orders: orders, logger: logger}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.submit)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
}

type itemRequest struct {
	Ingredient string          `json:"ingredient" validate:"required"`
	Quantity   decimal.Decimal `json:"quantity" validate:"gt=0"`
	Unit       string          `json:"unit"`
}

type submitRequest struct {
	Items       []itemRequest `json:"items" validate:"required,min=1,dive"`
	Responsible string        `json:"responsible"`
}

type lineResponse struct {
	ContractLineItemID uuid.UUID       `json:"contract_line_item_id"`
	EventID            uuid.UUID       `json:"event_id"`
	Description        string          `json:"description"`
	Unit               string          `json:"unit"`
	Quantity           decimal.Decimal `json:"quantity"`
	UnitPrice          decimal.Decimal `json:"unit_price"`
	Total              decimal.Decimal `json:"total"`
}

type orderResponse struct {
	ID           uuid.UUID       `json:"id"`
	ContractID   uuid.UUID       `json:"contract_id"`
	SupplierName string          `json:"supplier_name"`
	IssueDate    time.Time       `json:"issue_date"`
	TotalValue   decimal.Decimal `json:"total_value"`
	Status       order.Status    `json:"status"`
	Responsible  string          `json:"responsible,omitempty"`
	Lines        []lineResponse  `json:"lines"`
}

type skippedResponse struct {
	Ingredient string           `json:"ingredient"`
	Quantity   decimal.Decimal  `json:"quantity"`
	Unit       string           `json:"unit"`
	Reason     order.SkipReason `json:"reason"`
	Detail     string           `json:"detail,omitempty"`
}

type submitResponse struct {
	Created []orderResponse   `json:"created"`
	Skipped []skippedResponse `json:"skipped"`
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	responsible := req.Responsible
	if op := middleware.Operator(r.Context()); op != "" {
		responsible = op
	}

	items := make([]demand.Item, 0, len(req.Items))
	for _, it := range req.Items {
		unit := it.Unit
		if unit == "" {
			unit = demand.UnitKilogram
		}

		items = append(items, demand.Item{Ingredient: it.Ingredient, Quantity: it.Quantity, Unit: unit})
	}

	result, err := h.svc.SubmitDemand(r.Context(), items, responsible)
	if err != nil {
		if result != nil {
			for _, o := range result.Created {
				h.logger.Warn("order recorded before submission failed",
					zap.String("order_id", o.ID.String()),
					zap.String("status", string(o.Status)),
				)
			}
		}

		respond.Error(w, h.logger, err)

		return
	}

	resp := submitResponse{
		Created: make([]orderResponse, 0, len(result.Created)),
		Skipped: make([]skippedResponse, 0, len(result.Skipped)),
	}

	for _, o := range result.Created {
		resp.Created = append(resp.Created, toResponse(o))
	}

	for _, s := range result.Skipped {
		resp.Skipped = append(resp.Skipped, skippedResponse{
			Ingredient: s.Item.Demand.Ingredient,
			Quantity:   s.Item.Demand.Quantity,
			Unit:       s.Item.Demand.Unit,
			Reason:     s.Reason,
			Detail:     s.Detail,
		})
	}

	status := http.StatusCreated
	if len(resp.Created) == 0 {
		status = http.StatusOK
	}

	respond.JSON(w, h.logger, status, resp)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	var filter order.ListFilter

	if s := r.URL.Query().Get("contract_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			respond.Error(w, h.logger, apperr.Wrap(apperr.CodeValidation, err, "invalid contract_id"))
			return
		}

		filter.ContractID = &id
	}

	orders, err := h.orders.ListOrders(r.Context(), filter)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, toResponse(o))
	}

	respond.JSON(w, h.logger, http.StatusOK, resp)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, h.logger, apperr.Wrap(apperr.CodeValidation, err, "invalid id"))
		return
	}

	o, err := h.orders.GetOrder(r.Context(), id)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	respond.JSON(w, h.logger, http.StatusOK, toResponse(o))
}

func toResponse(o *order.Order) orderResponse {
	resp := orderResponse{
		ID:           o.ID,
		ContractID:   o.ContractID,
		SupplierName: o.SupplierName,
		IssueDate:    o.IssueDate,
		TotalValue:   o.TotalValue,
		Status:       o.Status,
		Responsible:  o.Responsible,
		Lines:        make([]lineResponse, 0, len(o.Lines)),
	}

	for _, l := range o.Lines {
		resp.Lines = append(resp.Lines, lineResponse{
			ContractLineItemID: l.ContractLineItemID,
			EventID:            l.EventID,
			Description:        l.Description,
			Unit:               l.Unit,
			Quantity:           l.Quantity,
			UnitPrice:          l.UnitPrice,
			Total:              l.Total(),
		})
	}

	return resp
}
