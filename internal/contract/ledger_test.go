package contract_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/merenda/internal/apperr"
	"github.com/MrJamesThe3rd/merenda/internal/contract"
)

var fixedNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newLedger(repo contract.Repository) *contract.Ledger {
	return contract.NewLedger(repo, nil, contract.Options{
		MaxAttempts: 3,
		Now:         func() time.Time { return fixedNow },
	})
}

func sampleContract(contracted, acquired string) *contract.Contract {
	id := uuid.New()

	return &contract.Contract{
		ID:           id,
		Number:       "012/2026",
		SupplierID:   "SUP-1",
		SupplierName: "Frigorífico Boa Carne",
		Status:       contract.StatusActive,
		LineItems: []*contract.LineItem{
			{
				ID:                 uuid.New(),
				ContractID:         id,
				Position:           1,
				Description:        "CARNE MOIDA BOVINA 1ª CAT",
				Unit:               "KG",
				UnitPrice:          decimal.RequireFromString("32.50"),
				ContractedQuantity: decimal.RequireFromString(contracted),
				AcquiredQuantity:   decimal.RequireFromString(acquired),
				Version:            4,
			},
		},
	}
}

func TestLedger_RegisterContract(t *testing.T) {
	validSpec := contract.Spec{
		Number:       " 012/2026 ",
		SupplierID:   "SUP-1",
		SupplierName: "Frigorífico Boa Carne",
		StartDate:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:      time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
		LineItems: []contract.LineItemSpec{
			{
				Description:        "CARNE MOIDA BOVINA 1ª CAT",
				Unit:               "KG",
				UnitPrice:          decimal.RequireFromString("32.50"),
				ContractedQuantity: decimal.NewFromInt(100),
			},
			{
				Description:        "ARROZ TIPO 1",
				Unit:               "KG",
				UnitPrice:          decimal.RequireFromString("5.10"),
				ContractedQuantity: decimal.NewFromInt(400),
			},
		},
	}

	type testCase struct {
		name      string
		spec      func() contract.Spec
		setupMock func(m *contract.MockRepository)
		wantCode  apperr.Code
		wantErr   bool
	}

	tests := []testCase{
		{
			name: "Success",
			spec: func() contract.Spec { return validSpec },
			setupMock: func(m *contract.MockRepository) {
				m.EXPECT().CreateContract(gomock.Any(), gomock.Any()).Return(nil)
			},
		},
		{
			name: "MissingNumber",
			spec: func() contract.Spec {
				s := validSpec
				s.Number = "  "
				return s
			},
			wantCode: apperr.CodeValidation,
			wantErr:  true,
		},
		{
			name: "NoLineItems",
			spec: func() contract.Spec {
				s := validSpec
				s.LineItems = nil
				return s
			},
			wantCode: apperr.CodeValidation,
			wantErr:  true,
		},
		{
			name: "AcquiredAboveContracted",
			spec: func() contract.Spec {
				s := validSpec
				s.LineItems = []contract.LineItemSpec{{
					Description:        "FEIJAO",
					Unit:               "KG",
					UnitPrice:          decimal.NewFromInt(8),
					ContractedQuantity: decimal.NewFromInt(10),
					AcquiredQuantity:   decimal.NewFromInt(11),
				}}
				return s
			},
			wantCode: apperr.CodeValidation,
			wantErr:  true,
		},
		{
			name: "PriceFinerThanStored",
			spec: func() contract.Spec {
				s := validSpec
				s.LineItems = []contract.LineItemSpec{{
					Description:        "FEIJAO",
					Unit:               "KG",
					UnitPrice:          decimal.RequireFromString("8.00005"),
					ContractedQuantity: decimal.NewFromInt(10),
				}}
				return s
			},
			wantCode: apperr.CodeValidation,
			wantErr:  true,
		},
		{
			name: "QuantityFinerThanStored",
			spec: func() contract.Spec {
				s := validSpec
				s.LineItems = []contract.LineItemSpec{{
					Description:        "FEIJAO",
					Unit:               "KG",
					UnitPrice:          decimal.RequireFromString("8.1250"),
					ContractedQuantity: decimal.RequireFromString("10.0005"),
				}}
				return s
			},
			wantCode: apperr.CodeValidation,
			wantErr:  true,
		},
		{
			name: "EndsBeforeStart",
			spec: func() contract.Spec {
				s := validSpec
				s.EndDate = s.StartDate.AddDate(0, 0, -1)
				return s
			},
			wantCode: apperr.CodeValidation,
			wantErr:  true,
		},
		{
			name: "RepoError",
			spec: func() contract.Spec { return validSpec },
			setupMock: func(m *contract.MockRepository) {
				m.EXPECT().CreateContract(gomock.Any(), gomock.Any()).Return(errors.New("db error"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := contract.NewMockRepository(ctrl)
			if tt.setupMock != nil {
				tt.setupMock(repo)
			}

			got, err := newLedger(repo).RegisterContract(context.Background(), tt.spec())

			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, got)

				if tt.wantCode != "" {
					assert.True(t, apperr.Is(err, tt.wantCode), "got %v", err)
				}

				return
			}

			require.NoError(t, err)
			assert.Equal(t, "012/2026", got.Number)
			assert.Equal(t, contract.StatusActive, got.Status)
			require.Len(t, got.LineItems, 2)
			assert.Equal(t, 1, got.LineItems[0].Position)
			assert.Equal(t, 2, got.LineItems[1].Position)
			assert.Equal(t, got.ID, got.LineItems[1].ContractID)
			assert.True(t, got.LineItems[0].AcquiredQuantity.IsZero())
		})
	}
}

func TestLedger_RecordDelivery_RejectsOverdraw(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := contract.NewMockRepository(ctrl)
	c := sampleContract("100", "80")

	repo.EXPECT().GetContract(gomock.Any(), c.ID).Return(c, nil)

	_, err := newLedger(repo).RecordDelivery(context.Background(), contract.DeliveryParams{
		ContractID: c.ID,
		LineItemID: c.LineItems[0].ID,
		Quantity:   decimal.NewFromInt(30),
	})

	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeInsufficientBalance))
}

func TestLedger_RecordDelivery_ValueImpact(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := contract.NewMockRepository(ctrl)
	c := sampleContract("100", "80")
	li := c.LineItems[0]
	orderID := uuid.New()

	repo.EXPECT().GetContract(gomock.Any(), c.ID).Return(c, nil)
	repo.EXPECT().
		ApplyBalanceChange(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, change contract.BalanceChange) error {
			assert.Equal(t, li.ID, change.LineItemID)
			assert.Equal(t, int64(4), change.ExpectedVersion)
			assert.True(t, change.AcquiredQuantity.Equal(decimal.NewFromInt(100)))
			assert.True(t, change.ContractedQuantity.Equal(decimal.NewFromInt(100)))
			return nil
		})

	ev, err := newLedger(repo).RecordDelivery(context.Background(), contract.DeliveryParams{
		ContractID:  c.ID,
		LineItemID:  li.ID,
		Quantity:    decimal.NewFromInt(20),
		Responsible: "nutricionista",
		OrderID:     &orderID,
	})
	require.NoError(t, err)

	assert.Equal(t, contract.EventDelivery, ev.Type)
	assert.Equal(t, fixedNow, ev.Timestamp)
	assert.Equal(t, "nutricionista", ev.Responsible)
	assert.Equal(t, &orderID, ev.OrderID)
	assert.Equal(t, "KG", ev.Unit)
	assert.True(t, ev.UnitPrice.Equal(decimal.RequireFromString("32.50")))
	assert.True(t, ev.ValueImpact.Equal(decimal.RequireFromString("650")), ev.ValueImpact.String())
}

func TestLedger_RecordAmendment(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := contract.NewMockRepository(ctrl)
	c := sampleContract("100", "100")

	repo.EXPECT().GetContract(gomock.Any(), c.ID).Return(c, nil)
	repo.EXPECT().
		ApplyBalanceChange(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, change contract.BalanceChange) error {
			assert.True(t, change.ContractedQuantity.Equal(decimal.NewFromInt(125)))
			assert.True(t, change.AcquiredQuantity.Equal(decimal.NewFromInt(100)))
			return nil
		})

	ev, err := newLedger(repo).RecordAmendment(context.Background(), contract.AmendmentParams{
		ContractID: c.ID,
		LineItemID: c.LineItems[0].ID,
		Quantity:   decimal.NewFromInt(25),
	})
	require.NoError(t, err)

	assert.Equal(t, contract.EventAmendment, ev.Type)
	assert.True(t, ev.ValueImpact.Equal(decimal.RequireFromString("812.5")))
}

func TestLedger_NonPositiveQuantity(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledger := newLedger(contract.NewMockRepository(ctrl))

	_, err := ledger.RecordDelivery(context.Background(), contract.DeliveryParams{Quantity: decimal.Zero})
	assert.True(t, apperr.Is(err, apperr.CodeValidation))

	_, err = ledger.RecordAmendment(context.Background(), contract.AmendmentParams{Quantity: decimal.NewFromInt(-3)})
	assert.True(t, apperr.Is(err, apperr.CodeValidation))
}

func TestLedger_QuantityFinerThanStored(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledger := newLedger(contract.NewMockRepository(ctrl))

	_, err := ledger.RecordDelivery(context.Background(), contract.DeliveryParams{Quantity: decimal.RequireFromString("0.0004")})
	assert.True(t, apperr.Is(err, apperr.CodeValidation), "got %v", err)

	_, err = ledger.RecordAmendment(context.Background(), contract.AmendmentParams{Quantity: decimal.RequireFromString("2.5001")})
	assert.True(t, apperr.Is(err, apperr.CodeValidation), "got %v", err)

	assert.NoError(t, contract.ValidQuantity(decimal.RequireFromString("2.500000")))
}

func TestLedger_ClosedWhileApplying(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := contract.NewMockRepository(ctrl)
	c := sampleContract("100", "0")

	repo.EXPECT().GetContract(gomock.Any(), c.ID).Return(c, nil)
	repo.EXPECT().ApplyBalanceChange(gomock.Any(), gomock.Any()).Return(contract.ErrClosed)

	_, err := newLedger(repo).RecordDelivery(context.Background(), contract.DeliveryParams{
		ContractID: c.ID,
		LineItemID: c.LineItems[0].ID,
		Quantity:   decimal.NewFromInt(1),
	})
	assert.True(t, apperr.Is(err, apperr.CodeValidation), "got %v", err)
	assert.ErrorIs(t, err, contract.ErrClosed)
}

func TestLedger_ClosedContract(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := contract.NewMockRepository(ctrl)
	c := sampleContract("100", "0")
	c.Status = contract.StatusClosed

	repo.EXPECT().GetContract(gomock.Any(), c.ID).Return(c, nil)

	_, err := newLedger(repo).RecordDelivery(context.Background(), contract.DeliveryParams{
		ContractID: c.ID,
		LineItemID: c.LineItems[0].ID,
		Quantity:   decimal.NewFromInt(1),
	})
	assert.True(t, apperr.Is(err, apperr.CodeValidation))
	assert.ErrorIs(t, err, contract.ErrClosed)
}

func TestLedger_UnknownLineItem(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := contract.NewMockRepository(ctrl)
	c := sampleContract("100", "0")

	repo.EXPECT().GetContract(gomock.Any(), c.ID).Return(c, nil)

	_, err := newLedger(repo).RecordDelivery(context.Background(), contract.DeliveryParams{
		ContractID: c.ID,
		LineItemID: uuid.New(),
		Quantity:   decimal.NewFromInt(1),
	})
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestLedger_RetriesStaleVersion(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := contract.NewMockRepository(ctrl)
	c := sampleContract("100", "80")
	li := c.LineItems[0]

	fresh := *li
	fresh.AcquiredQuantity = decimal.NewFromInt(85)
	fresh.Version = 5

	gomock.InOrder(
		repo.EXPECT().GetContract(gomock.Any(), c.ID).Return(c, nil),
		repo.EXPECT().ApplyBalanceChange(gomock.Any(), gomock.Any()).Return(contract.ErrStaleVersion),
		repo.EXPECT().GetLineItem(gomock.Any(), c.ID, li.ID).Return(&fresh, nil),
		repo.EXPECT().
			ApplyBalanceChange(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, change contract.BalanceChange) error {
				assert.Equal(t, int64(5), change.ExpectedVersion)
				assert.True(t, change.AcquiredQuantity.Equal(decimal.NewFromInt(95)))
				return nil
			}),
	)

	_, err := newLedger(repo).RecordDelivery(context.Background(), contract.DeliveryParams{
		ContractID: c.ID,
		LineItemID: li.ID,
		Quantity:   decimal.NewFromInt(10),
	})
	require.NoError(t, err)
}

func TestLedger_RetryRevalidatesBalance(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := contract.NewMockRepository(ctrl)
	c := sampleContract("100", "80")
	li := c.LineItems[0]

	fresh := *li
	fresh.AcquiredQuantity = decimal.NewFromInt(95)
	fresh.Version = 5

	gomock.InOrder(
		repo.EXPECT().GetContract(gomock.Any(), c.ID).Return(c, nil),
		repo.EXPECT().ApplyBalanceChange(gomock.Any(), gomock.Any()).Return(contract.ErrStaleVersion),
		repo.EXPECT().GetLineItem(gomock.Any(), c.ID, li.ID).Return(&fresh, nil),
	)

	_, err := newLedger(repo).RecordDelivery(context.Background(), contract.DeliveryParams{
		ContractID: c.ID,
		LineItemID: li.ID,
		Quantity:   decimal.NewFromInt(10),
	})
	assert.True(t, apperr.Is(err, apperr.CodeInsufficientBalance))
}

func TestLedger_GivesUpAfterMaxAttempts(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := contract.NewMockRepository(ctrl)
	c := sampleContract("100", "0")
	li := c.LineItems[0]

	repo.EXPECT().GetContract(gomock.Any(), c.ID).Return(c, nil)
	repo.EXPECT().ApplyBalanceChange(gomock.Any(), gomock.Any()).Return(contract.ErrStaleVersion).Times(3)
	repo.EXPECT().GetLineItem(gomock.Any(), c.ID, li.ID).Return(li, nil).Times(2)

	_, err := newLedger(repo).RecordDelivery(context.Background(), contract.DeliveryParams{
		ContractID: c.ID,
		LineItemID: li.ID,
		Quantity:   decimal.NewFromInt(1),
	})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeConcurrencyConflict))
	assert.ErrorIs(t, err, contract.ErrStaleVersion)
}

func TestLedger_CancelledContextStopsRetrying(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := contract.NewMockRepository(ctrl)
	c := sampleContract("100", "0")

	ctx, cancel := context.WithCancel(context.Background())

	repo.EXPECT().GetContract(gomock.Any(), c.ID).Return(c, nil)
	repo.EXPECT().
		ApplyBalanceChange(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, contract.BalanceChange) error {
			cancel()
			return contract.ErrStaleVersion
		})

	ledger := contract.NewLedger(repo, nil, contract.Options{MaxAttempts: 5, RetryBackoff: time.Second})

	_, err := ledger.RecordDelivery(ctx, contract.DeliveryParams{
		ContractID: c.ID,
		LineItemID: c.LineItems[0].ID,
		Quantity:   decimal.NewFromInt(1),
	})
	assert.True(t, apperr.Is(err, apperr.CodeConcurrencyConflict))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLedger_CloseContract(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := contract.NewMockRepository(ctrl)
	c := sampleContract("100", "0")

	repo.EXPECT().GetContract(gomock.Any(), c.ID).Return(c, nil)
	repo.EXPECT().UpdateStatus(gomock.Any(), c.ID, contract.StatusClosed).Return(nil)

	got, err := newLedger(repo).CloseContract(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, contract.StatusClosed, got.Status)
}
