package contract

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/MrJamesThe3rd/merenda/internal/apperr"
	"github.com/MrJamesThe3rd/merenda/internal/contract"
	"github.com/MrJamesThe3rd/merenda/internal/http/middleware"
	"github.com/MrJamesThe3rd/merenda/internal/http/respond"
)

type Handler struct {
	ledger *contract.Ledger
	logger *zap.Logger
}

func NewHandler(ledger *contract.Ledger, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Handler{ledger: ledger, logger: logger}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Post("/{id}/close", h.close)
	r.Get("/{id}/events", h.events)
	r.Post("/{id}/items/{itemID}/amendments", h.amend)
	r.Post("/{id}/items/{itemID}/deliveries", h.deliver)
}

type lineItemRequest struct {
	Description        string          `json:"description" validate:"required"`
	Unit               string          `json:"unit" validate:"required"`
	UnitPrice          decimal.Decimal `json:"unit_price" validate:"gte=0"`
	ContractedQuantity decimal.Decimal `json:"contracted_quantity" validate:"gte=0"`
	AcquiredQuantity   decimal.Decimal `json:"acquired_quantity" validate:"gte=0"`
}

type createContractRequest struct {
	Number       string            `json:"number" validate:"required"`
	SupplierID   string            `json:"supplier_id" validate:"required"`
	SupplierName string            `json:"supplier_name" validate:"required"`
	StartDate    time.Time         `json:"start_date"`
	EndDate      time.Time         `json:"end_date"`
	LineItems    []lineItemRequest `json:"line_items" validate:"required,min=1,dive"`
}

type quantityRequest struct {
	Quantity    decimal.Decimal `json:"quantity"`
	Responsible string          `json:"responsible"`
	Description string          `json:"description"`
}

type lineItemResponse struct {
	ID                 uuid.UUID       `json:"id"`
	Position           int             `json:"position"`
	Description        string          `json:"description"`
	Unit               string          `json:"unit"`
	UnitPrice          decimal.Decimal `json:"unit_price"`
	ContractedQuantity decimal.Decimal `json:"contracted_quantity"`
	AcquiredQuantity   decimal.Decimal `json:"acquired_quantity"`
	Remaining          decimal.Decimal `json:"remaining"`
	Version            int64           `json:"version"`
}

type contractResponse struct {
	ID           uuid.UUID          `json:"id"`
	Number       string             `json:"number"`
	SupplierID   string             `json:"supplier_id"`
	SupplierName string             `json:"supplier_name"`
	StartDate    time.Time          `json:"start_date"`
	EndDate      time.Time          `json:"end_date"`
	Status       contract.Status    `json:"status"`
	LineItems    []lineItemResponse `json:"line_items"`
	CreatedAt    time.Time          `json:"created_at"`
}

type eventResponse struct {
	ID          uuid.UUID          `json:"id"`
	LineItemID  uuid.UUID          `json:"line_item_id"`
	Type        contract.EventType `json:"type"`
	Timestamp   time.Time          `json:"timestamp"`
	Quantity    decimal.Decimal    `json:"quantity"`
	ValueImpact decimal.Decimal    `json:"value_impact"`
	Responsible string             `json:"responsible,omitempty"`
	Description string             `json:"description,omitempty"`
	OrderID     *uuid.UUID         `json:"order_id,omitempty"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createContractRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	spec := contract.Spec{
		Number:       req.Number,
		SupplierID:   req.SupplierID,
		SupplierName: req.SupplierName,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		LineItems:    make([]contract.LineItemSpec, 0, len(req.LineItems)),
	}

	for _, li := range req.LineItems {
		spec.LineItems = append(spec.LineItems, contract.LineItemSpec{
			Description:        li.Description,
			Unit:               li.Unit,
			UnitPrice:          li.UnitPrice,
			ContractedQuantity: li.ContractedQuantity,
			AcquiredQuantity:   li.AcquiredQuantity,
		})
	}

	c, err := h.ledger.RegisterContract(r.Context(), spec)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	respond.JSON(w, h.logger, http.StatusCreated, toResponse(c))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	list := h.ledger.ListContracts
	if r.URL.Query().Get("status") == string(contract.StatusActive) {
		list = h.ledger.ListActive
	}

	contracts, err := list(r.Context())
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	resp := make([]contractResponse, 0, len(contracts))
	for _, c := range contracts {
		resp = append(resp, toResponse(c))
	}

	respond.JSON(w, h.logger, http.StatusOK, resp)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	c, err := h.ledger.GetContract(r.Context(), id)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	respond.JSON(w, h.logger, http.StatusOK, toResponse(c))
}

func (h *Handler) close(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	c, err := h.ledger.CloseContract(r.Context(), id)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	respond.JSON(w, h.logger, http.StatusOK, toResponse(c))
}

func (h *Handler) events(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	events, err := h.ledger.Events(r.Context(), id)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	resp := make([]eventResponse, 0, len(events))
	for _, e := range events {
		resp = append(resp, toEventResponse(e))
	}

	respond.JSON(w, h.logger, http.StatusOK, resp)
}

func (h *Handler) amend(w http.ResponseWriter, r *http.Request) {
	h.recordChange(w, r, func(contractID, itemID uuid.UUID, req quantityRequest) (*contract.Event, error) {
		return h.ledger.RecordAmendment(r.Context(), contract.AmendmentParams{
			ContractID:  contractID,
			LineItemID:  itemID,
			Quantity:    req.Quantity,
			Responsible: req.Responsible,
			Description: req.Description,
		})
	})
}

func (h *Handler) deliver(w http.ResponseWriter, r *http.Request) {
	h.recordChange(w, r, func(contractID, itemID uuid.UUID, req quantityRequest) (*contract.Event, error) {
		return h.ledger.RecordDelivery(r.Context(), contract.DeliveryParams{
			ContractID:  contractID,
			LineItemID:  itemID,
			Quantity:    req.Quantity,
			Responsible: req.Responsible,
			Description: req.Description,
		})
	})
}

type changeFunc func(contractID, itemID uuid.UUID, req quantityRequest) (*contract.Event, error)

// recordChange parses the path and body shared by amendments and deliveries.
// The authenticated operator, when present, overrides the body's responsible.
func (h *Handler) recordChange(w http.ResponseWriter, r *http.Request, apply changeFunc) {
	contractID, err := pathID(r, "id")
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	itemID, err := pathID(r, "itemID")
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	var req quantityRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	if op := middleware.Operator(r.Context()); op != "" {
		req.Responsible = op
	}

	event, err := apply(contractID, itemID, req)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	respond.JSON(w, h.logger, http.StatusCreated, toEventResponse(event))
}

func pathID(r *http.Request, param string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		return uuid.Nil, apperr.Wrap(apperr.CodeValidation, err, "invalid %s", param)
	}

	return id, nil
}

// toResponse renders a contract with its line item balances.
func toResponse(c *contract.Contract) contractResponse {
	resp := contractResponse{
		ID:           c.ID,
		Number:       c.Number,
		SupplierID:   c.SupplierID,
		SupplierName: c.SupplierName,
		StartDate:    c.StartDate,
		EndDate:      c.EndDate,
		Status:       c.Status,
		LineItems:    make([]lineItemResponse, 0, len(c.LineItems)),
		CreatedAt:    c.CreatedAt,
	}

	for _, li := range c.LineItems {
		resp.LineItems = append(resp.LineItems, lineItemResponse{
			ID:                 li.ID,
			Position:           li.Position,
			Description:        li.Description,
			Unit:               li.Unit,
			UnitPrice:          li.UnitPrice,
			ContractedQuantity: li.ContractedQuantity,
			AcquiredQuantity:   li.AcquiredQuantity,
			Remaining:          li.Remaining(),
			Version:            li.Version,
		})
	}

	return resp
}

func toEventResponse(e *contract.Event) eventResponse {
	return eventResponse{
		ID:          e.ID,
		LineItemID:  e.LineItemID,
		Type:        e.Type,
		Timestamp:   e.Timestamp,
		Quantity:    e.Quantity,
		ValueImpact: e.ValueImpact,
		Responsible: e.Responsible,
		Description: e.Description,
		OrderID:     e.OrderID,
	}
}
