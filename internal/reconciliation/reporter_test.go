package reconciliation_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/merenda/internal/apperr"
	"github.com/MrJamesThe3rd/merenda/internal/contract"
	"github.com/MrJamesThe3rd/merenda/internal/matching"
	"github.com/MrJamesThe3rd/merenda/internal/menu"
	"github.com/MrJamesThe3rd/merenda/internal/reconciliation"
)

type stubContracts struct {
	contracts []*contract.Contract
	err       error
}

func (s stubContracts) ListActive(context.Context) ([]*contract.Contract, error) {
	return s.contracts, s.err
}

func activeContracts() []*contract.Contract {
	return []*contract.Contract{{
		ID:           uuid.New(),
		Number:       "012/2026",
		SupplierName: "Frigorífico Boa Carne",
		Status:       contract.StatusActive,
		LineItems: []*contract.LineItem{
			{
				ID:                 uuid.New(),
				Description:        "CARNE MOIDA BOVINA 1ª CAT",
				Unit:               "KG",
				UnitPrice:          decimal.RequireFromString("32.50"),
				ContractedQuantity: decimal.NewFromInt(100),
				AcquiredQuantity:   decimal.NewFromInt(80),
			},
			{
				ID:                 uuid.New(),
				Description:        "ARROZ TIPO 1",
				Unit:               "KG",
				UnitPrice:          decimal.RequireFromString("5.20"),
				ContractedQuantity: decimal.NewFromInt(50),
				AcquiredQuantity:   decimal.NewFromInt(50),
			},
		},
	}}
}

func TestReporter_Generate(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	catalog := menu.NewMockCatalog(ctrl)
	catalog.EXPECT().GetWeek(gomock.Any(), 1).Return(&menu.WeeklyMenu{
		Week: 1,
		Days: []menu.Day{
			{Dish: "Arroz com carne", Ingredients: []string{"carne moida", "arroz"}},
			{Dish: "Carne com legumes", Ingredients: []string{"Carne Moida", "cenoura"}},
		},
	}, nil)

	reporter := reconciliation.NewReporter(catalog, stubContracts{contracts: activeContracts()}, matching.NewEngine())

	report, err := reporter.Generate(context.Background(), 1)
	require.NoError(t, err)

	require.Len(t, report.Lines, 3)
	assert.Equal(t, "CARNE MOIDA", report.Lines[0].Ingredient)
	assert.Equal(t, matching.StatusCovered, report.Lines[0].Status())
	assert.Equal(t, "ARROZ", report.Lines[1].Ingredient)
	assert.Equal(t, matching.StatusInsufficientBalance, report.Lines[1].Status())
	assert.Equal(t, "CENOURA", report.Lines[2].Ingredient)
	assert.Equal(t, matching.StatusUncontracted, report.Lines[2].Status())

	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 1, report.Covered)
	assert.Equal(t, 1, report.InsufficientBalance)
	assert.Equal(t, 1, report.Uncontracted)
	assert.True(t, report.Coverage.Equal(decimal.RequireFromString("33.33")), "got %s", report.Coverage)
}

func TestReporter_Generate_EmptyMenu(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	catalog := menu.NewMockCatalog(ctrl)
	catalog.EXPECT().GetWeek(gomock.Any(), 4).Return(&menu.WeeklyMenu{Week: 4}, nil)

	reporter := reconciliation.NewReporter(catalog, stubContracts{contracts: activeContracts()}, matching.NewEngine())

	report, err := reporter.Generate(context.Background(), 4)
	require.NoError(t, err)
	assert.Zero(t, report.Total)
	assert.True(t, report.Coverage.IsZero())
}

func TestReporter_Generate_Errors(t *testing.T) {
	type testCase struct {
		name      string
		week      int
		contracts stubContracts
		setupMock func(m *menu.MockCatalog)
		wantCode  apperr.Code
	}

	tests := []testCase{
		{
			name:     "InvalidWeek",
			week:     -1,
			wantCode: apperr.CodeValidation,
		},
		{
			name: "UnknownWeek",
			week: 7,
			setupMock: func(m *menu.MockCatalog) {
				m.EXPECT().GetWeek(gomock.Any(), 7).Return(nil, menu.ErrWeekNotFound)
			},
			wantCode: apperr.CodeNotFound,
		},
		{
			name:      "ContractsUnavailable",
			week:      1,
			contracts: stubContracts{err: errors.New("db down")},
			setupMock: func(m *menu.MockCatalog) {
				m.EXPECT().GetWeek(gomock.Any(), 1).Return(&menu.WeeklyMenu{Week: 1}, nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			catalog := menu.NewMockCatalog(ctrl)
			if tt.setupMock != nil {
				tt.setupMock(catalog)
			}

			reporter := reconciliation.NewReporter(catalog, tt.contracts, matching.NewEngine())

			report, err := reporter.Generate(context.Background(), tt.week)
			require.Error(t, err)
			assert.Nil(t, report)
			assert.Equal(t, tt.wantCode, apperr.CodeOf(err))
		})
	}
}
