package contract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/MrJamesThe3rd/merenda/internal/apperr"
)

var (
	ErrNotFound         = apperr.NotFound("contract not found")
	ErrLineItemNotFound = apperr.NotFound("contract line item not found")
)

const (
	DefaultMaxAttempts  = 5
	DefaultRetryBackoff = 10 * time.Millisecond

	// QuantityPlaces and PricePlaces are the decimal places the stores keep.
	QuantityPlaces = 3
	PricePlaces    = 4
)

//go:generate mockgen -source=ledger.go -destination=repository_mock.go -package=contract
type Repository interface {
	CreateContract(ctx context.Context, c *Contract) error
	GetContract(ctx context.Context, id uuid.UUID) (*Contract, error)
	ListContracts(ctx context.Context, status *Status) ([]*Contract, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
	GetLineItem(ctx context.Context, contractID, lineItemID uuid.UUID) (*LineItem, error)

	// ApplyBalanceChange writes the new balance and appends the event in one
	// atomic unit. It must fail with ErrStaleVersion when the stored version
	// differs from ExpectedVersion and with ErrClosed when the contract is no
	// longer active, and must never persist a balance outside
	// 0 <= acquired <= contracted.
	ApplyBalanceChange(ctx context.Context, change BalanceChange) error
	ListEvents(ctx context.Context, contractID uuid.UUID) ([]*Event, error)
}

type Options struct {
	MaxAttempts  int
	RetryBackoff time.Duration
	Now          func() time.Time
}

// Ledger owns contracts and is the only writer of line item balances.
type Ledger struct {
	repo         Repository
	logger       *zap.Logger
	maxAttempts  int
	retryBackoff time.Duration
	now          func() time.Time
}

func NewLedger(repo Repository, logger *zap.Logger, opts Options) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}

	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}

	if opts.RetryBackoff < 0 {
		opts.RetryBackoff = 0
	}

	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Ledger{
		repo:         repo,
		logger:       logger,
		maxAttempts:  opts.MaxAttempts,
		retryBackoff: opts.RetryBackoff,
		now:          opts.Now,
	}
}

type Spec struct {
	Number       string
	SupplierID   string
	SupplierName string
	StartDate    time.Time
	EndDate      time.Time
	LineItems    []LineItemSpec
}

type LineItemSpec struct {
	Description        string
	Unit               string
	UnitPrice          decimal.Decimal
	ContractedQuantity decimal.Decimal
	AcquiredQuantity   decimal.Decimal
}

type AmendmentParams struct {
	ContractID  uuid.UUID
	LineItemID  uuid.UUID
	Quantity    decimal.Decimal
	Responsible string
	Description string
}

type DeliveryParams struct {
	ContractID  uuid.UUID
	LineItemID  uuid.UUID
	Quantity    decimal.Decimal
	Responsible string
	Description string
	OrderID     *uuid.UUID
}

func (s Spec) validate() error {
	if strings.TrimSpace(s.Number) == "" {
		return apperr.Validation("contract number is required")
	}

	if strings.TrimSpace(s.SupplierID) == "" {
		return apperr.Validation("supplier is required")
	}

	if !s.EndDate.IsZero() && s.EndDate.Before(s.StartDate) {
		return apperr.Validation("contract %s ends before it starts", s.Number)
	}

	if len(s.LineItems) == 0 {
		return apperr.Validation("contract %s has no line items", s.Number)
	}

	for i, li := range s.LineItems {
		switch {
		case strings.TrimSpace(li.Description) == "":
			return apperr.Validation("line item %d: description is required", i+1)
		case strings.TrimSpace(li.Unit) == "":
			return apperr.Validation("line item %d: unit is required", i+1)
		case li.UnitPrice.IsNegative():
			return apperr.Validation("line item %d: unit price cannot be negative", i+1)
		case !fits(li.UnitPrice, PricePlaces):
			return apperr.Validation("line item %d: unit price has more than %d decimal places", i+1, PricePlaces)
		case li.ContractedQuantity.IsNegative():
			return apperr.Validation("line item %d: contracted quantity cannot be negative", i+1)
		case li.AcquiredQuantity.IsNegative():
			return apperr.Validation("line item %d: acquired quantity cannot be negative", i+1)
		case !fits(li.ContractedQuantity, QuantityPlaces), !fits(li.AcquiredQuantity, QuantityPlaces):
			return apperr.Validation("line item %d: quantities have more than %d decimal places", i+1, QuantityPlaces)
		case li.AcquiredQuantity.GreaterThan(li.ContractedQuantity):
			return apperr.Validation("line item %d: acquired quantity exceeds contracted quantity", i+1)
		}
	}

	return nil
}

// fits reports whether d has no significant digits beyond places.
func fits(d decimal.Decimal, places int32) bool {
	return d.Equal(d.Truncate(places))
}

// ValidQuantity rejects quantities the ledger cannot record: zero, negative,
// or finer than QuantityPlaces.
func ValidQuantity(q decimal.Decimal) error {
	if !q.IsPositive() {
		return apperr.Validation("quantity must be positive, got %s", q)
	}

	if !fits(q, QuantityPlaces) {
		return apperr.Validation("quantity %s has more than %d decimal places", q, QuantityPlaces)
	}

	return nil
}

// RegisterContract creates an active contract and its line items.
func (l *Ledger) RegisterContract(ctx context.Context, spec Spec) (*Contract, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}

	c := &Contract{
		ID:           uuid.New(),
		Number:       strings.TrimSpace(spec.Number),
		SupplierID:   strings.TrimSpace(spec.SupplierID),
		SupplierName: strings.TrimSpace(spec.SupplierName),
		StartDate:    spec.StartDate,
		EndDate:      spec.EndDate,
		Status:       StatusActive,
		CreatedAt:    l.now(),
	}

	c.LineItems = make([]*LineItem, len(spec.LineItems))
	for i, li := range spec.LineItems {
		c.LineItems[i] = &LineItem{
			ID:                 uuid.New(),
			ContractID:         c.ID,
			Position:           i + 1,
			Description:        strings.TrimSpace(li.Description),
			Unit:               strings.TrimSpace(li.Unit),
			UnitPrice:          li.UnitPrice,
			ContractedQuantity: li.ContractedQuantity,
			AcquiredQuantity:   li.AcquiredQuantity,
		}
	}

	if err := l.repo.CreateContract(ctx, c); err != nil {
		return nil, fmt.Errorf("creating contract: %w", err)
	}

	l.logger.Info("contract registered",
		zap.String("contract_id", c.ID.String()),
		zap.String("number", c.Number),
		zap.Int("line_items", len(c.LineItems)),
	)

	return c, nil
}

func (l *Ledger) GetContract(ctx context.Context, id uuid.UUID) (*Contract, error) {
	return l.repo.GetContract(ctx, id)
}

// ListActive returns active contracts in registration order.
func (l *Ledger) ListActive(ctx context.Context) ([]*Contract, error) {
	status := StatusActive
	return l.repo.ListContracts(ctx, &status)
}

func (l *Ledger) ListContracts(ctx context.Context) ([]*Contract, error) {
	return l.repo.ListContracts(ctx, nil)
}

// CloseContract stops a contract from matching demand or accepting changes.
// Closing an already closed contract is a no-op.
func (l *Ledger) CloseContract(ctx context.Context, id uuid.UUID) (*Contract, error) {
	c, err := l.repo.GetContract(ctx, id)
	if err != nil {
		return nil, err
	}

	if c.Status == StatusClosed {
		return c, nil
	}

	if err := l.repo.UpdateStatus(ctx, id, StatusClosed); err != nil {
		return nil, fmt.Errorf("closing contract: %w", err)
	}

	c.Status = StatusClosed

	l.logger.Info("contract closed", zap.String("contract_id", id.String()))

	return c, nil
}

// Events returns the balance history of a contract, oldest first.
func (l *Ledger) Events(ctx context.Context, contractID uuid.UUID) ([]*Event, error) {
	if _, err := l.repo.GetContract(ctx, contractID); err != nil {
		return nil, err
	}

	return l.repo.ListEvents(ctx, contractID)
}

// RecordAmendment increases the contracted quantity of a line item.
func (l *Ledger) RecordAmendment(ctx context.Context, p AmendmentParams) (*Event, error) {
	if err := ValidQuantity(p.Quantity); err != nil {
		return nil, fmt.Errorf("amendment: %w", err)
	}

	return l.mutate(ctx, p.ContractID, p.LineItemID, func(li *LineItem) (BalanceChange, error) {
		return BalanceChange{
			LineItemID:         li.ID,
			ExpectedVersion:    li.Version,
			ContractedQuantity: li.ContractedQuantity.Add(p.Quantity),
			AcquiredQuantity:   li.AcquiredQuantity,
			Event:              l.newEvent(li, EventAmendment, p.Quantity, p.Responsible, p.Description, nil),
		}, nil
	})
}

// RecordDelivery draws a quantity down from a line item's remaining balance.
func (l *Ledger) RecordDelivery(ctx context.Context, p DeliveryParams) (*Event, error) {
	if err := ValidQuantity(p.Quantity); err != nil {
		return nil, fmt.Errorf("delivery: %w", err)
	}

	return l.mutate(ctx, p.ContractID, p.LineItemID, func(li *LineItem) (BalanceChange, error) {
		acquired := li.AcquiredQuantity.Add(p.Quantity)
		if acquired.GreaterThan(li.ContractedQuantity) {
			return BalanceChange{}, apperr.New(apperr.CodeInsufficientBalance,
				"line item %q: requested %s %s, remaining %s",
				li.Description, p.Quantity, li.Unit, li.Remaining())
		}

		return BalanceChange{
			LineItemID:         li.ID,
			ExpectedVersion:    li.Version,
			ContractedQuantity: li.ContractedQuantity,
			AcquiredQuantity:   acquired,
			Event:              l.newEvent(li, EventDelivery, p.Quantity, p.Responsible, p.Description, p.OrderID),
		}, nil
	})
}

// mutate runs the read-validate-write cycle for one line item, retrying when
// another writer got there first.
func (l *Ledger) mutate(
	ctx context.Context,
	contractID, lineItemID uuid.UUID,
	build func(li *LineItem) (BalanceChange, error),
) (*Event, error) {
	c, err := l.repo.GetContract(ctx, contractID)
	if err != nil {
		return nil, err
	}

	if c.Status != StatusActive {
		return nil, apperr.Wrap(apperr.CodeValidation, ErrClosed, "contract %s is closed", c.Number)
	}

	li, ok := c.LineItem(lineItemID)
	if !ok {
		return nil, ErrLineItemNotFound
	}

	for attempt := 1; ; attempt++ {
		change, err := build(li)
		if err != nil {
			return nil, err
		}

		err = l.repo.ApplyBalanceChange(ctx, change)
		if err == nil {
			l.logger.Info("balance changed",
				zap.String("event", string(change.Event.Type)),
				zap.String("contract_id", contractID.String()),
				zap.String("line_item_id", lineItemID.String()),
				zap.String("quantity", change.Event.Quantity.String()),
				zap.String("acquired", change.AcquiredQuantity.String()),
				zap.String("contracted", change.ContractedQuantity.String()),
			)

			return change.Event, nil
		}

		if errors.Is(err, ErrClosed) {
			return nil, apperr.Wrap(apperr.CodeValidation, ErrClosed, "contract %s is closed", c.Number)
		}

		if !errors.Is(err, ErrStaleVersion) {
			return nil, fmt.Errorf("applying balance change: %w", err)
		}

		if attempt >= l.maxAttempts {
			l.logger.Warn("giving up on contended line item",
				zap.String("line_item_id", lineItemID.String()),
				zap.Int("attempts", attempt),
			)

			return nil, apperr.Wrap(apperr.CodeConcurrencyConflict, err,
				"line item %s still contended after %d attempts", lineItemID, attempt)
		}

		l.logger.Debug("line item version conflict, retrying",
			zap.String("line_item_id", lineItemID.String()),
			zap.Int("attempt", attempt),
		)

		if err := l.backoff(ctx, attempt); err != nil {
			return nil, apperr.Wrap(apperr.CodeConcurrencyConflict, err,
				"line item %s: retry aborted", lineItemID)
		}

		li, err = l.repo.GetLineItem(ctx, contractID, lineItemID)
		if err != nil {
			return nil, err
		}
	}
}

func (l *Ledger) backoff(ctx context.Context, attempt int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if l.retryBackoff == 0 {
		return nil
	}

	timer := time.NewTimer(time.Duration(attempt) * l.retryBackoff)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (l *Ledger) newEvent(
	li *LineItem,
	typ EventType,
	qty decimal.Decimal,
	responsible, description string,
	orderID *uuid.UUID,
) *Event {
	return &Event{
		ID:          uuid.New(),
		ContractID:  li.ContractID,
		LineItemID:  li.ID,
		Type:        typ,
		Timestamp:   l.now(),
		Quantity:    qty,
		Unit:        li.Unit,
		UnitPrice:   li.UnitPrice,
		ValueImpact: qty.Mul(li.UnitPrice),
		Responsible: responsible,
		Description: description,
		OrderID:     orderID,
	}
}
