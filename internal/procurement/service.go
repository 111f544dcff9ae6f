package procurement

import (
	"context"
	"fmt"

	"github.com/MrJamesThe3rd/merenda/internal/contract"
	"github.com/MrJamesThe3rd/merenda/internal/demand"
	"github.com/MrJamesThe3rd/merenda/internal/matching"
	"github.com/MrJamesThe3rd/merenda/internal/order"
	"github.com/MrJamesThe3rd/merenda/internal/reconciliation"
)

type DemandCalculator interface {
	Compute(ctx context.Context, week, headcount int) ([]demand.Item, error)
}

type Ledger interface {
	ListActive(ctx context.Context) ([]*contract.Contract, error)
	RecordAmendment(ctx context.Context, p contract.AmendmentParams) (*contract.Event, error)
	RecordDelivery(ctx context.Context, p contract.DeliveryParams) (*contract.Event, error)
}

type Reporter interface {
	Generate(ctx context.Context, week int) (*reconciliation.Report, error)
}

type OrderSubmitter interface {
	SubmitOrders(ctx context.Context, req order.SubmitRequest) (*order.SubmitResult, error)
}

// WarningCode identifies an informational finding. Warnings are returned
// alongside results and never as errors.
type WarningCode string

const WarningUnlinkedItem WarningCode = "UNLINKED_ITEM"

type Warning struct {
	Code       WarningCode
	Ingredient string
	Message    string
}

// Plan is a week's demand with each item matched to a contract line item.
type Plan struct {
	Week      int
	Headcount int
	Items     []order.Item
	Warnings  []Warning
}

// Service is the entry point used by the HTTP API and the TUI.
type Service struct {
	demand   DemandCalculator
	ledger   Ledger
	engine   *matching.Engine
	reporter Reporter
	orders   OrderSubmitter
}

func NewService(
	calculator DemandCalculator,
	ledger Ledger,
	engine *matching.Engine,
	reporter Reporter,
	orders OrderSubmitter,
) *Service {
	return &Service{
		demand:   calculator,
		ledger:   ledger,
		engine:   engine,
		reporter: reporter,
		orders:   orders,
	}
}

func (s *Service) ComputeDemand(ctx context.Context, week, headcount int) ([]demand.Item, error) {
	return s.demand.Compute(ctx, week, headcount)
}

// PlanOrders computes demand and matches every item against active contracts.
func (s *Service) PlanOrders(ctx context.Context, week, headcount int) (*Plan, error) {
	items, err := s.demand.Compute(ctx, week, headcount)
	if err != nil {
		return nil, err
	}

	plan, err := s.match(ctx, items)
	if err != nil {
		return nil, err
	}

	plan.Week = week
	plan.Headcount = headcount

	return plan, nil
}

func (s *Service) match(ctx context.Context, items []demand.Item) (*Plan, error) {
	contracts, err := s.ledger.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing active contracts: %w", err)
	}

	plan := &Plan{Items: make([]order.Item, 0, len(items))}

	for _, d := range items {
		res := s.engine.Match(d.Ingredient, contracts)
		plan.Items = append(plan.Items, order.Item{Demand: d, Match: res})

		if !res.Matched() {
			plan.Warnings = append(plan.Warnings, Warning{
				Code:       WarningUnlinkedItem,
				Ingredient: d.Ingredient,
				Message:    fmt.Sprintf("no active contract covers %q", d.Ingredient),
			})
		}
	}

	return plan, nil
}

func (s *Service) GenerateReport(ctx context.Context, week int) (*reconciliation.Report, error) {
	return s.reporter.Generate(ctx, week)
}

func (s *Service) SubmitOrders(ctx context.Context, req order.SubmitRequest) (*order.SubmitResult, error) {
	return s.orders.SubmitOrders(ctx, req)
}

// SubmitDemand matches the given demand items against the current contracts
// and submits them. Callers that only hold ingredient names and quantities use
// this instead of SubmitOrders.
func (s *Service) SubmitDemand(ctx context.Context, items []demand.Item, responsible string) (*order.SubmitResult, error) {
	items = demand.Consolidate(items)

	plan, err := s.match(ctx, items)
	if err != nil {
		return nil, err
	}

	return s.orders.SubmitOrders(ctx, order.SubmitRequest{Items: plan.Items, Responsible: responsible})
}

func (s *Service) RecordAmendment(ctx context.Context, p contract.AmendmentParams) (*contract.Event, error) {
	return s.ledger.RecordAmendment(ctx, p)
}

func (s *Service) RecordDelivery(ctx context.Context, p contract.DeliveryParams) (*contract.Event, error) {
	return s.ledger.RecordDelivery(ctx, p)
}
