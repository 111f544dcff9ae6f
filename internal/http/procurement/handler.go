package procurement

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/MrJamesThe3rd/merenda/internal/demand"
	"github.com/MrJamesThe3rd/merenda/internal/http/respond"
	"github.com/MrJamesThe3rd/merenda/internal/matching"
	"github.com/MrJamesThe3rd/merenda/internal/procurement"
)

type Handler struct {
	svc    *procurement.Service
	logger *zap.Logger
}

func NewHandler(svc *procurement.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Handler{svc: svc, logger: logger}
}

// DemandRoutes mounts demand computation and order planning.
func (h *Handler) DemandRoutes(r chi.Router) {
	r.Get("/", h.demand)
	r.Get("/plan", h.plan)
}

func (h *Handler) ReportRoutes(r chi.Router) {
	r.Get("/coverage", h.coverage)
}

type demandItemResponse struct {
	Ingredient string          `json:"ingredient"`
	Quantity   decimal.Decimal `json:"quantity"`
	Unit       string          `json:"unit"`
	Estimated  bool            `json:"estimated"`
}

type matchResponse struct {
	Status       matching.Status  `json:"status"`
	ContractID   *uuid.UUID       `json:"contract_id,omitempty"`
	LineItemID   *uuid.UUID       `json:"line_item_id,omitempty"`
	SupplierName string           `json:"supplier_name,omitempty"`
	Description  string           `json:"description,omitempty"`
	Unit         string           `json:"unit,omitempty"`
	UnitPrice    *decimal.Decimal `json:"unit_price,omitempty"`
	Remaining    *decimal.Decimal `json:"remaining,omitempty"`
}

type planItemResponse struct {
	demandItemResponse
	Match matchResponse `json:"match"`
}

type warningResponse struct {
	Code       procurement.WarningCode `json:"code"`
	Ingredient string                  `json:"ingredient"`
	Message    string                  `json:"message"`
}

type planResponse struct {
	Week      int                `json:"week"`
	Headcount int                `json:"headcount"`
	Items     []planItemResponse `json:"items"`
	Warnings  []warningResponse  `json:"warnings"`
}

type coverageLineResponse struct {
	Ingredient string        `json:"ingredient"`
	Match      matchResponse `json:"match"`
}

type coverageResponse struct {
	Week                int                    `json:"week"`
	Total               int                    `json:"total"`
	Covered             int                    `json:"covered"`
	InsufficientBalance int                    `json:"insufficient_balance"`
	Uncontracted        int                    `json:"uncontracted"`
	Coverage            decimal.Decimal        `json:"coverage"`
	Lines               []coverageLineResponse `json:"lines"`
}

func (h *Handler) demand(w http.ResponseWriter, r *http.Request) {
	week, headcount, err := weekAndHeadcount(r)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	items, err := h.svc.ComputeDemand(r.Context(), week, headcount)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	resp := make([]demandItemResponse, 0, len(items))
	for _, it := range items {
		resp = append(resp, toDemandResponse(it))
	}

	respond.JSON(w, h.logger, http.StatusOK, resp)
}

func (h *Handler) plan(w http.ResponseWriter, r *http.Request) {
	week, headcount, err := weekAndHeadcount(r)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	plan, err := h.svc.PlanOrders(r.Context(), week, headcount)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	resp := planResponse{
		Week:      plan.Week,
		Headcount: plan.Headcount,
		Items:     make([]planItemResponse, 0, len(plan.Items)),
		Warnings:  make([]warningResponse, 0, len(plan.Warnings)),
	}

	for _, it := range plan.Items {
		resp.Items = append(resp.Items, planItemResponse{
			demandItemResponse: toDemandResponse(it.Demand),
			Match:              toMatchResponse(it.Match),
		})
	}

	for _, wn := range plan.Warnings {
		resp.Warnings = append(resp.Warnings, warningResponse{
			Code:       wn.Code,
			Ingredient: wn.Ingredient,
			Message:    wn.Message,
		})
	}

	respond.JSON(w, h.logger, http.StatusOK, resp)
}

func (h *Handler) coverage(w http.ResponseWriter, r *http.Request) {
	week, err := respond.QueryInt(r, "week")
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	report, err := h.svc.GenerateReport(r.Context(), week)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	resp := coverageResponse{
		Week:                report.Week,
		Total:               report.Total,
		Covered:             report.Covered,
		InsufficientBalance: report.InsufficientBalance,
		Uncontracted:        report.Uncontracted,
		Coverage:            report.Coverage,
		Lines:               make([]coverageLineResponse, 0, len(report.Lines)),
	}

	for _, l := range report.Lines {
		resp.Lines = append(resp.Lines, coverageLineResponse{
			Ingredient: l.Ingredient,
			Match:      toMatchResponse(l.Match),
		})
	}

	respond.JSON(w, h.logger, http.StatusOK, resp)
}

func weekAndHeadcount(r *http.Request) (int, int, error) {
	week, err := respond.QueryInt(r, "week")
	if err != nil {
		return 0, 0, err
	}

	headcount, err := respond.QueryInt(r, "headcount")
	if err != nil {
		return 0, 0, err
	}

	return week, headcount, nil
}

func toDemandResponse(it demand.Item) demandItemResponse {
	return demandItemResponse{
		Ingredient: it.Ingredient,
		Quantity:   it.Quantity,
		Unit:       it.Unit,
		Estimated:  it.Estimated,
	}
}

// toMatchResponse omits the contract fields when nothing matched.
func toMatchResponse(res matching.Result) matchResponse {
	resp := matchResponse{Status: res.Status}
	if !res.Matched() {
		return resp
	}

	resp.ContractID = new(res.ContractID)
	resp.LineItemID = new(res.LineItemID)
	resp.SupplierName = res.SupplierName
	resp.Description = res.Description
	resp.Unit = res.Unit
	resp.UnitPrice = new(res.UnitPrice)
	resp.Remaining = new(res.Remaining)

	return resp
}
