package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/merenda/internal/apperr"
)

var ErrNotFound = apperr.NotFound("order not found")

// Status represents the lifecycle state of an order.
type Status string

const (
	// StatusPending orders have a header and are still collecting deliveries,
	// or could not be marked issued.
	StatusPending Status = "PENDING"
	StatusIssued  Status = "ISSUED"
)

// Order is a purchase order placed against a single contract. Every line is
// a DELIVERY event in the contract ledger carrying the order ID.
type Order struct {
	ID           uuid.UUID
	ContractID   uuid.UUID
	SupplierName string
	IssueDate    time.Time
	TotalValue   decimal.Decimal
	Status       Status
	Responsible  string
	Lines        []*Line
}

type Line struct {
	OrderID            uuid.UUID
	ContractLineItemID uuid.UUID
	EventID            uuid.UUID
	Description        string
	Unit               string
	Quantity           decimal.Decimal
	UnitPrice          decimal.Decimal
}

// Total is the line value, quantity times unit price.
func (l *Line) Total() decimal.Decimal {
	return l.Quantity.Mul(l.UnitPrice)
}

type ListFilter struct {
	ContractID *uuid.UUID
}
