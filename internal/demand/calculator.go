package demand

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/merenda/internal/apperr"
	"github.com/MrJamesThe3rd/merenda/internal/matching"
	"github.com/MrJamesThe3rd/merenda/internal/menu"
)

const (
	// DefaultPerCapitaGrams is the flat estimate used for menu ingredients of
	// dishes that have no recipe.
	DefaultPerCapitaGrams = 100

	UnitKilogram = "KG"
)

var gramsPerKilogram = decimal.NewFromInt(1000)

// Item is the consolidated quantity of one ingredient needed for a week.
// Estimated is set when any part of the quantity came from the flat default
// instead of a recipe.
type Item struct {
	Ingredient string
	Quantity   decimal.Decimal
	Unit       string
	Week       int
	Estimated  bool
}

type Calculator struct {
	menus            menu.Catalog
	recipes          menu.RecipeBook
	defaultPerCapita decimal.Decimal
}

// NewCalculator builds a Calculator. A non-positive defaultPerCapitaGrams
// falls back to DefaultPerCapitaGrams.
func NewCalculator(menus menu.Catalog, recipes menu.RecipeBook, defaultPerCapitaGrams decimal.Decimal) *Calculator {
	if !defaultPerCapitaGrams.IsPositive() {
		defaultPerCapitaGrams = decimal.NewFromInt(DefaultPerCapitaGrams)
	}

	return &Calculator{
		menus:            menus,
		recipes:          recipes,
		defaultPerCapita: defaultPerCapitaGrams,
	}
}

// Compute returns the ingredient demand for a week scaled to headcount, one
// item per ingredient, in order of first appearance in the menu.
func (c *Calculator) Compute(ctx context.Context, week, headcount int) ([]Item, error) {
	if week <= 0 {
		return nil, apperr.Validation("week must be positive, got %d", week)
	}

	if headcount <= 0 {
		return nil, apperr.Validation("headcount must be positive, got %d", headcount)
	}

	weekly, err := c.menus.GetWeek(ctx, week)
	if err != nil {
		return nil, fmt.Errorf("loading menu for week %d: %w", week, err)
	}

	var lines []Item

	for _, day := range weekly.Days {
		recipe, err := c.recipes.FindByDishName(ctx, day.Dish)
		if err != nil {
			return nil, fmt.Errorf("finding recipe for %q: %w", day.Dish, err)
		}

		if recipe != nil {
			for _, ing := range recipe.Ingredients {
				if ing.Unmeasured {
					lines = append(lines, c.estimate(ing.Name, headcount, week))
					continue
				}

				if ing.PerCapitaGrams.IsNegative() {
					continue
				}

				lines = append(lines, Item{
					Ingredient: ing.Name,
					Quantity:   scale(ing.PerCapitaGrams, headcount),
					Unit:       UnitKilogram,
					Week:       week,
				})
			}

			continue
		}

		for _, name := range day.Ingredients {
			lines = append(lines, c.estimate(name, headcount, week))
		}
	}

	return Consolidate(lines), nil
}

// estimate prices an ingredient at the default per-capita quantity.
func (c *Calculator) estimate(name string, headcount, week int) Item {
	return Item{
		Ingredient: name,
		Quantity:   scale(c.defaultPerCapita, headcount),
		Unit:       UnitKilogram,
		Week:       week,
		Estimated:  true,
	}
}

// scale converts a per-person gram quantity to kilograms for headcount people,
// rounded to two decimals.
func scale(perCapitaGrams decimal.Decimal, headcount int) decimal.Decimal {
	return perCapitaGrams.
		Mul(decimal.NewFromInt(int64(headcount))).
		Div(gramsPerKilogram).
		Round(2)
}

// Consolidate merges items with the same normalized ingredient name. The unit
// of the first occurrence wins and output keeps first-occurrence order.
func Consolidate(lines []Item) []Item {
	var out []Item

	index := make(map[string]int)

	for _, line := range lines {
		name := matching.Normalize(line.Ingredient)
		if name == "" {
			continue
		}

		if i, ok := index[name]; ok {
			out[i].Quantity = out[i].Quantity.Add(line.Quantity)
			out[i].Estimated = out[i].Estimated || line.Estimated

			continue
		}

		line.Ingredient = name
		index[name] = len(out)
		out = append(out, line)
	}

	return out
}
