package contract

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status represents the lifecycle state of a contract.
type Status string

const (
	StatusActive Status = "ACTIVE"
	StatusClosed Status = "CLOSED"
)

// EventType identifies what kind of balance change an Event records.
type EventType string

const (
	EventDelivery  EventType = "DELIVERY"
	EventAmendment EventType = "AMENDMENT"
)

// ErrStaleVersion is returned by a Repository when a balance change was
// computed against a line item version that is no longer current.
var ErrStaleVersion = errors.New("line item version is stale")

// ErrClosed is wrapped by the validation error returned for changes against a
// closed contract.
var ErrClosed = errors.New("contract closed")

// Contract is a supply agreement with a fixed set of priced line items.
type Contract struct {
	ID           uuid.UUID
	Number       string
	SupplierID   string
	SupplierName string
	StartDate    time.Time
	EndDate      time.Time
	Status       Status
	LineItems    []*LineItem
	CreatedAt    time.Time
}

// LineItem finds a line item by id.
func (c *Contract) LineItem(id uuid.UUID) (*LineItem, bool) {
	for _, li := range c.LineItems {
		if li.ID == id {
			return li, true
		}
	}

	return nil, false
}

// LineItem is a single priced, quantity-tracked product within a contract.
// ContractedQuantity and AcquiredQuantity are only ever changed by the Ledger.
type LineItem struct {
	ID                 uuid.UUID
	ContractID         uuid.UUID
	Position           int
	Description        string
	Unit               string
	UnitPrice          decimal.Decimal
	ContractedQuantity decimal.Decimal
	AcquiredQuantity   decimal.Decimal
	Version            int64
}

// Remaining is the quantity still available to order.
func (li *LineItem) Remaining() decimal.Decimal {
	return li.ContractedQuantity.Sub(li.AcquiredQuantity)
}

// Event is an immutable record of a balance change. Unit and UnitPrice are
// those of the line item when the change was applied.
type Event struct {
	ID          uuid.UUID
	ContractID  uuid.UUID
	LineItemID  uuid.UUID
	Type        EventType
	Timestamp   time.Time
	Quantity    decimal.Decimal
	Unit        string
	UnitPrice   decimal.Decimal
	ValueImpact decimal.Decimal
	Responsible string
	Description string
	OrderID     *uuid.UUID
}

// BalanceChange is the unit of work handed to a Repository: the new balance of
// a line item, the version it was computed from, and the event explaining it.
type BalanceChange struct {
	LineItemID         uuid.UUID
	ExpectedVersion    int64
	ContractedQuantity decimal.Decimal
	AcquiredQuantity   decimal.Decimal
	Event              *Event
}
