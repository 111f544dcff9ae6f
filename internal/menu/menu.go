package menu

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/merenda/internal/apperr"
)

var ErrWeekNotFound = apperr.NotFound("menu week not found")

//go:generate mockgen -source=menu.go -destination=menu_mock.go -package=menu

// Catalog serves the weekly menu plan.
type Catalog interface {
	GetWeek(ctx context.Context, week int) (*WeeklyMenu, error)
}

// RecipeBook looks up technical sheets. FindByDishName returns nil, nil when
// no recipe fits the dish.
type RecipeBook interface {
	FindByDishName(ctx context.Context, dish string) (*Recipe, error)
}

// WeeklyMenu is the planned menu for one week of the menu cycle.
type WeeklyMenu struct {
	Week int
	Days []Day
}

// Day is one served meal: a dish and the raw ingredient names listed for it.
type Day struct {
	Weekday     string
	Dish        string
	Ingredients []string
}

// Recipe is a technical sheet giving per-person ingredient quantities.
type Recipe struct {
	ID          uuid.UUID
	Name        string
	Ingredients []Ingredient
}

// Ingredient is one recipe line. Unmeasured is set when the sheet lists the
// ingredient without a per-capita quantity.
type Ingredient struct {
	Name           string
	PerCapitaGrams decimal.Decimal
	Unmeasured     bool
}
