package reconciliation

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/merenda/internal/apperr"
	"github.com/MrJamesThe3rd/merenda/internal/matching"
	"github.com/MrJamesThe3rd/merenda/internal/menu"
)

// Line is the match outcome for one menu ingredient.
type Line struct {
	Ingredient string
	Match      matching.Result
}

func (l Line) Status() matching.Status {
	return l.Match.Status
}

// Report summarizes how much of a week's menu is backed by active contracts.
// Coverage is the percentage of ingredients with a COVERED match.
type Report struct {
	Week                int
	Lines               []Line
	Total               int
	Covered             int
	InsufficientBalance int
	Uncontracted        int
	Coverage            decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

type Reporter struct {
	menus     menu.Catalog
	contracts matching.ContractLister
	engine    *matching.Engine
}

func NewReporter(menus menu.Catalog, contracts matching.ContractLister, engine *matching.Engine) *Reporter {
	return &Reporter{menus: menus, contracts: contracts, engine: engine}
}

// Generate matches every distinct ingredient named in the week's menu against
// the active contracts. Quantities and recipes play no part.
func (r *Reporter) Generate(ctx context.Context, week int) (*Report, error) {
	if week <= 0 {
		return nil, apperr.Validation("week must be positive, got %d", week)
	}

	weekly, err := r.menus.GetWeek(ctx, week)
	if err != nil {
		return nil, fmt.Errorf("loading menu for week %d: %w", week, err)
	}

	contracts, err := r.contracts.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing active contracts: %w", err)
	}

	report := &Report{Week: week, Coverage: decimal.Zero}

	for _, name := range ingredients(weekly) {
		res := r.engine.Match(name, contracts)

		switch res.Status {
		case matching.StatusCovered:
			report.Covered++
		case matching.StatusInsufficientBalance:
			report.InsufficientBalance++
		default:
			report.Uncontracted++
		}

		report.Lines = append(report.Lines, Line{Ingredient: name, Match: res})
	}

	report.Total = len(report.Lines)

	if report.Total > 0 {
		report.Coverage = decimal.NewFromInt(int64(report.Covered)).
			Mul(hundred).
			Div(decimal.NewFromInt(int64(report.Total))).
			Round(2)
	}

	return report, nil
}

// ingredients returns the normalized ingredient names of a menu, each once,
// in order of first appearance.
func ingredients(weekly *menu.WeeklyMenu) []string {
	var out []string

	seen := make(map[string]struct{})

	for _, day := range weekly.Days {
		for _, raw := range day.Ingredients {
			name := matching.Normalize(raw)
			if name == "" {
				continue
			}

			if _, ok := seen[name]; ok {
				continue
			}

			seen[name] = struct{}{}
			out = append(out, name)
		}
	}

	return out
}
