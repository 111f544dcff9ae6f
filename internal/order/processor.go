package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/MrJamesThe3rd/merenda/internal/apperr"
	"github.com/MrJamesThe3rd/merenda/internal/contract"
	"github.com/MrJamesThe3rd/merenda/internal/demand"
	"github.com/MrJamesThe3rd/merenda/internal/matching"
)

//go:generate mockgen -source=processor.go -destination=processor_mock.go -package=order

// Ledger records the deliveries that back order lines.
type Ledger interface {
	RecordDelivery(ctx context.Context, p contract.DeliveryParams) (*contract.Event, error)
}

type Repository interface {
	// CreateOrder stores the header of a pending order. Lines are not written
	// here: each one is the DELIVERY event the ledger records with the order
	// ID, in the same atomic unit as the balance change.
	CreateOrder(ctx context.Context, o *Order) error
	// IssueOrder moves a pending order to ISSUED.
	IssueOrder(ctx context.Context, id uuid.UUID) error
	// DeleteOrder removes a pending order that has no deliveries.
	DeleteOrder(ctx context.Context, id uuid.UUID) error
	GetOrder(ctx context.Context, id uuid.UUID) (*Order, error)
	ListOrders(ctx context.Context, filter ListFilter) ([]*Order, error)
}

// SkipReason explains why a demand item did not become an order line.
type SkipReason string

const (
	SkipNoContract          SkipReason = "NO_CONTRACT"
	SkipInsufficientBalance SkipReason = "INSUFFICIENT_BALANCE"
	SkipNotFound            SkipReason = "NOT_FOUND"
	SkipContractClosed      SkipReason = "CONTRACT_CLOSED"
	SkipConcurrencyConflict SkipReason = "CONCURRENCY_CONFLICT"
)

// Item is one demand line paired with the contract it was matched to.
type Item struct {
	Demand demand.Item
	Match  matching.Result
}

type SubmitRequest struct {
	Items       []Item
	Responsible string
}

type Skipped struct {
	Item   Item
	Reason SkipReason
	Detail string
}

type SubmitResult struct {
	Created []*Order
	Skipped []Skipped
}

type Processor struct {
	ledger Ledger
	repo   Repository
	logger *zap.Logger
	now    func() time.Time
}

func NewProcessor(ledger Ledger, repo Repository, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Processor{
		ledger: ledger,
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// SubmitOrders turns matched demand into one order per contract. Items that
// cannot be fulfilled are reported as skipped and do not stop the others;
// contracts where nothing could be delivered produce no order.
//
// An infrastructure failure stops the batch. The error is returned together
// with everything done so far: orders already created stay in Created, and an
// order whose deliveries were recorded but could not be issued is included
// with StatusPending.
func (p *Processor) SubmitOrders(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	for _, item := range req.Items {
		if err := contract.ValidQuantity(item.Demand.Quantity); err != nil {
			return nil, fmt.Errorf("item %q: %w", item.Demand.Ingredient, err)
		}
	}

	result := &SubmitResult{}

	var groups []*group

	byContract := make(map[uuid.UUID]*group)

	for _, item := range req.Items {
		if !item.Match.Matched() {
			result.Skipped = append(result.Skipped, Skipped{
				Item:   item,
				Reason: SkipNoContract,
				Detail: fmt.Sprintf("no active contract covers %q", item.Demand.Ingredient),
			})

			continue
		}

		g, ok := byContract[item.Match.ContractID]
		if !ok {
			g = &group{contractID: item.Match.ContractID, supplierName: item.Match.SupplierName}
			byContract[g.contractID] = g
			groups = append(groups, g)
		}

		g.items = append(g.items, item)
	}

	for _, g := range groups {
		o, err := p.fulfil(ctx, g, req.Responsible, result)
		if o != nil {
			result.Created = append(result.Created, o)
		}

		if err != nil {
			return result, err
		}
	}

	return result, nil
}

type group struct {
	contractID   uuid.UUID
	supplierName string
	items        []Item
}

// fulfil opens a pending order for the group, records a delivery per item
// against it and issues it when at least one delivery succeeded. Skipped
// items are appended to result. A non-nil order is returned whenever
// deliveries were recorded, even alongside an error.
func (p *Processor) fulfil(ctx context.Context, g *group, responsible string, result *SubmitResult) (*Order, error) {
	o := &Order{
		ID:           uuid.New(),
		ContractID:   g.contractID,
		SupplierName: g.supplierName,
		IssueDate:    p.now(),
		TotalValue:   decimal.Zero,
		Status:       StatusPending,
		Responsible:  responsible,
	}

	if err := p.repo.CreateOrder(ctx, o); err != nil {
		return nil, fmt.Errorf("creating order for contract %s: %w", g.contractID, err)
	}

	var deliveryErr error

	for _, item := range g.items {
		event, err := p.ledger.RecordDelivery(ctx, contract.DeliveryParams{
			ContractID:  g.contractID,
			LineItemID:  item.Match.LineItemID,
			Quantity:    item.Demand.Quantity,
			Responsible: responsible,
			Description: fmt.Sprintf("order %s: %s", o.ID, item.Demand.Ingredient),
			OrderID:     &o.ID,
		})
		if err != nil {
			reason, ok := skipReason(err)
			if !ok {
				deliveryErr = fmt.Errorf("recording delivery for %q: %w", item.Demand.Ingredient, err)
				break
			}

			p.logger.Info("order item skipped",
				zap.String("ingredient", item.Demand.Ingredient),
				zap.String("reason", string(reason)),
				zap.Error(err),
			)

			result.Skipped = append(result.Skipped, Skipped{Item: item, Reason: reason, Detail: err.Error()})

			continue
		}

		line := &Line{
			OrderID:            o.ID,
			ContractLineItemID: event.LineItemID,
			EventID:            event.ID,
			Description:        item.Match.Description,
			Unit:               event.Unit,
			Quantity:           event.Quantity,
			UnitPrice:          event.UnitPrice,
		}

		o.Lines = append(o.Lines, line)
		o.TotalValue = o.TotalValue.Add(line.Total())
	}

	if len(o.Lines) == 0 {
		if err := p.repo.DeleteOrder(ctx, o.ID); err != nil {
			p.logger.Error("removing empty order", zap.String("order_id", o.ID.String()), zap.Error(err))
		}

		return nil, deliveryErr
	}

	if err := p.repo.IssueOrder(ctx, o.ID); err != nil {
		p.logger.Error("order left pending",
			zap.String("order_id", o.ID.String()),
			zap.Int("lines", len(o.Lines)),
			zap.Error(err),
		)

		return o, errors.Join(deliveryErr, fmt.Errorf("issuing order %s: %w", o.ID, err))
	}

	o.Status = StatusIssued

	p.logger.Info("order issued",
		zap.String("order_id", o.ID.String()),
		zap.String("contract_id", o.ContractID.String()),
		zap.Int("lines", len(o.Lines)),
		zap.String("total", o.TotalValue.StringFixed(2)),
	)

	return o, deliveryErr
}

func skipReason(err error) (SkipReason, bool) {
	switch {
	case errors.Is(err, contract.ErrClosed):
		return SkipContractClosed, true
	case apperr.Is(err, apperr.CodeInsufficientBalance):
		return SkipInsufficientBalance, true
	case apperr.Is(err, apperr.CodeNotFound):
		return SkipNotFound, true
	case apperr.Is(err, apperr.CodeConcurrencyConflict):
		return SkipConcurrencyConflict, true
	default:
		return "", false
	}
}

func (p *Processor) GetOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	return p.repo.GetOrder(ctx, id)
}

func (p *Processor) ListOrders(ctx context.Context, filter ListFilter) ([]*Order, error) {
	return p.repo.ListOrders(ctx, filter)
}
