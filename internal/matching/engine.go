package matching

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/merenda/internal/contract"
)

// Status classifies whether demand for an ingredient can be met by a contract.
type Status string

const (
	StatusCovered             Status = "COVERED"
	StatusInsufficientBalance Status = "INSUFFICIENT_BALANCE"
	StatusUncontracted        Status = "UNCONTRACTED"
)

// Result is the outcome of matching one name against the contract list.
// Contract fields are zero when Status is StatusUncontracted.
type Result struct {
	Ingredient   string
	ContractID   uuid.UUID
	LineItemID   uuid.UUID
	SupplierName string
	Description  string
	Unit         string
	UnitPrice    decimal.Decimal
	Remaining    decimal.Decimal
	Status       Status
}

// Matched reports whether a contract line item was found.
func (r Result) Matched() bool {
	return r.Status != StatusUncontracted
}

// Engine resolves names to contract line items.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// Match returns the first line item whose description is Similar to name.
// Contracts are scanned in the order given (the stores return registration
// order) and line items in position order; closed contracts are skipped.
// The first hit wins even when its balance is exhausted.
func (e *Engine) Match(name string, contracts []*contract.Contract) Result {
	res := Result{Ingredient: name, Status: StatusUncontracted}

	for _, c := range contracts {
		if c.Status != contract.StatusActive {
			continue
		}

		for _, li := range c.LineItems {
			if !Similar(li.Description, name) {
				continue
			}

			res.ContractID = c.ID
			res.LineItemID = li.ID
			res.SupplierName = c.SupplierName
			res.Description = li.Description
			res.Unit = li.Unit
			res.UnitPrice = li.UnitPrice
			res.Remaining = li.Remaining()
			res.Status = StatusCovered

			if !res.Remaining.IsPositive() {
				res.Status = StatusInsufficientBalance
			}

			return res
		}
	}

	return res
}
