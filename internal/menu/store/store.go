package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/merenda/internal/matching"
	"github.com/MrJamesThe3rd/merenda/internal/menu"
)

// Store reads menus and recipes maintained by the menu planning module.
type Store struct {
	db *sql.DB
}

var (
	_ menu.Catalog    = (*Store)(nil)
	_ menu.RecipeBook = (*Store)(nil)
)

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) GetWeek(ctx context.Context, week int) (*menu.WeeklyMenu, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM weekly_menus WHERE week = $1)`, week,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("checking menu week: %w", err)
	}

	if !exists {
		return nil, menu.ErrWeekNotFound
	}

	query := `
		SELECT d.id, d.weekday, d.dish, i.name
		FROM menu_days d
		LEFT JOIN menu_day_ingredients i ON i.day_id = d.id
		WHERE d.week = $1
		ORDER BY d.position ASC, i.position ASC
	`

	rows, err := s.db.QueryContext(ctx, query, week)
	if err != nil {
		return nil, fmt.Errorf("listing menu days: %w", err)
	}
	defer rows.Close()

	m := &menu.WeeklyMenu{Week: week}

	var current uuid.UUID

	for rows.Next() {
		var (
			dayID      uuid.UUID
			weekday    string
			dish       string
			ingredient sql.NullString
		)

		if err := rows.Scan(&dayID, &weekday, &dish, &ingredient); err != nil {
			return nil, fmt.Errorf("scanning menu day: %w", err)
		}

		if len(m.Days) == 0 || dayID != current {
			m.Days = append(m.Days, menu.Day{Weekday: weekday, Dish: dish})
			current = dayID
		}

		if ingredient.Valid {
			day := &m.Days[len(m.Days)-1]
			day.Ingredients = append(day.Ingredients, ingredient.String)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating menu days: %w", err)
	}

	return m, nil
}

// FindByDishName returns the first recipe, in registration order, whose name
// is similar to the dish name, or nil when none is.
func (s *Store) FindByDishName(ctx context.Context, dish string) (*menu.Recipe, error) {
	recipes, err := s.listRecipes(ctx)
	if err != nil {
		return nil, err
	}

	for _, r := range recipes {
		if matching.Similar(r.Name, dish) {
			return r, nil
		}
	}

	return nil, nil
}

func (s *Store) listRecipes(ctx context.Context) ([]*menu.Recipe, error) {
	query := `
		SELECT r.id, r.name, i.name, i.per_capita_grams
		FROM recipes r
		LEFT JOIN recipe_ingredients i ON i.recipe_id = r.id
		ORDER BY r.seq ASC, i.position ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing recipes: %w", err)
	}
	defer rows.Close()

	var recipes []*menu.Recipe

	for rows.Next() {
		var (
			id        uuid.UUID
			name      string
			ingName   sql.NullString
			perCapita decimal.NullDecimal
		)

		if err := rows.Scan(&id, &name, &ingName, &perCapita); err != nil {
			return nil, fmt.Errorf("scanning recipe: %w", err)
		}

		if len(recipes) == 0 || recipes[len(recipes)-1].ID != id {
			recipes = append(recipes, &menu.Recipe{ID: id, Name: name})
		}

		if ingName.Valid {
			r := recipes[len(recipes)-1]
			r.Ingredients = append(r.Ingredients, menu.Ingredient{
				Name:           ingName.String,
				PerCapitaGrams: perCapita.Decimal,
				Unmeasured:     !perCapita.Valid,
			})
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating recipes: %w", err)
	}

	return recipes, nil
}
