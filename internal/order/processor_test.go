package order_test

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
	"github.com/MrJamesThe3rd/merenda/internal/contract/memstore"
	"github.com/MrJamesThe3rd/merenda/internal/demand"
	"github.com/MrJamesThe3rd/merenda/internal/matching"
	"github.com/MrJamesThe3rd/merenda/internal/order"
)

func item(name, qty string, match matching.Result) order.Item {
	return order.Item{
		Demand: demand.Item{Ingredient: name, Quantity: decimal.RequireFromString(qty), Unit: "KG", Week: 1},
		Match:  match,
	}
}

func covered(contractID uuid.UUID, description, price string) matching.Result {
	return matching.Result{
		ContractID:   contractID,
		LineItemID:   uuid.New(),
		SupplierName: "Frigorífico Boa Carne",
		Description:  description,
		Unit:         "KG",
		UnitPrice:    decimal.RequireFromString(price),
		Remaining:    decimal.NewFromInt(100),
		Status:       matching.StatusCovered,
	}
}

// deliverAt stands in for a ledger whose line items are priced at the given
// unit prices, keyed by line item.
func deliverAt(prices map[uuid.UUID]string) func(context.Context, contract.DeliveryParams) (*contract.Event, error) {
	return func(_ context.Context, p contract.DeliveryParams) (*contract.Event, error) {
		price := decimal.RequireFromString(prices[p.LineItemID])

		return &contract.Event{
			ID:          uuid.New(),
			ContractID:  p.ContractID,
			LineItemID:  p.LineItemID,
			Type:        contract.EventDelivery,
			Quantity:    p.Quantity,
			Unit:        "KG",
			UnitPrice:   price,
			ValueImpact: p.Quantity.Mul(price),
			OrderID:     p.OrderID,
		}, nil
	}
}

// priceList maps each matched line item to the price quoted in its match.
func priceList(items ...order.Item) map[uuid.UUID]string {
	prices := make(map[uuid.UUID]string, len(items))
	for _, it := range items {
		prices[it.Match.LineItemID] = it.Match.UnitPrice.String()
	}

	return prices
}

func pending() any {
	return gomock.Cond(func(o *order.Order) bool {
		return o.Status == order.StatusPending && len(o.Lines) == 0
	})
}

func TestProcessor_SubmitOrders(t *testing.T) {
	contractA := uuid.New()
	contractB := uuid.New()

	beef := item("CARNE MOIDA", "14.29", covered(contractB, "CARNE MOIDA BOVINA", "32.50"))
	rice := item("ARROZ", "10", covered(contractA, "ARROZ TIPO 1", "5.20"))
	chicken := item("FRANGO", "2", covered(contractB, "FILE DE FRANGO", "18"))
	beans := item("FEIJAO", "3", covered(contractA, "FEIJAO CARIOCA", "8"))
	carrot := item("CENOURA", "5", matching.Result{Ingredient: "CENOURA", Status: matching.StatusUncontracted})

	stale := item("CARNE MOIDA", "10", covered(contractB, "CARNE MOIDA BOVINA", "1.00"))

	type testCase struct {
		name          string
		items         []order.Item
		setupMock     func(l *order.MockLedger, r *order.MockRepository)
		wantOrders    int
		wantLines     []int
		wantTotals    []string
		wantStatuses  []order.Status
		wantSkipped   []order.SkipReason
		wantErrCode   apperr.Code
		wantErr       bool
		wantNilResult bool
	}

	tests := []testCase{
		{
			name:  "GroupsByContractInFirstSeenOrder",
			items: []order.Item{beef, rice, chicken},
			setupMock: func(l *order.MockLedger, r *order.MockRepository) {
				l.EXPECT().RecordDelivery(gomock.Any(), gomock.Any()).
					DoAndReturn(deliverAt(priceList(beef, rice, chicken))).Times(3)
				r.EXPECT().CreateOrder(gomock.Any(), pending()).Return(nil).Times(2)
				r.EXPECT().IssueOrder(gomock.Any(), gomock.Any()).Return(nil).Times(2)
			},
			wantOrders:   2,
			wantLines:    []int{2, 1},
			wantTotals:   []string{"500.425", "52"},
			wantStatuses: []order.Status{order.StatusIssued, order.StatusIssued},
		},
		{
			name:  "LinePriceComesFromLedger",
			items: []order.Item{stale},
			setupMock: func(l *order.MockLedger, r *order.MockRepository) {
				l.EXPECT().RecordDelivery(gomock.Any(), gomock.Any()).
					DoAndReturn(deliverAt(map[uuid.UUID]string{stale.Match.LineItemID: "32.50"}))
				r.EXPECT().CreateOrder(gomock.Any(), pending()).Return(nil)
				r.EXPECT().IssueOrder(gomock.Any(), gomock.Any()).Return(nil)
			},
			wantOrders:   1,
			wantLines:    []int{1},
			wantTotals:   []string{"325"},
			wantStatuses: []order.Status{order.StatusIssued},
		},
		{
			name: "UncontractedAndFailuresAreSkipped",
			items: []order.Item{
				carrot,
				rice,
				beans,
				item("OVO", "1", covered(contractA, "OVO BRANCO", "1")),
				item("LEITE", "1", covered(contractA, "LEITE UHT", "4")),
			},
			setupMock: func(l *order.MockLedger, r *order.MockRepository) {
				r.EXPECT().CreateOrder(gomock.Any(), pending()).Return(nil)
				gomock.InOrder(
					l.EXPECT().RecordDelivery(gomock.Any(), gomock.Any()).
						Return(nil, apperr.New(apperr.CodeInsufficientBalance, "remaining 2")),
					l.EXPECT().RecordDelivery(gomock.Any(), gomock.Any()).
						Return(nil, contract.ErrLineItemNotFound),
					l.EXPECT().RecordDelivery(gomock.Any(), gomock.Any()).
						Return(nil, apperr.New(apperr.CodeConcurrencyConflict, "contended")),
					l.EXPECT().RecordDelivery(gomock.Any(), gomock.Any()).
						Return(nil, apperr.Wrap(apperr.CodeValidation, contract.ErrClosed, "contract 1 is closed")),
				)
				r.EXPECT().DeleteOrder(gomock.Any(), gomock.Any()).Return(nil)
			},
			wantSkipped: []order.SkipReason{
				order.SkipNoContract,
				order.SkipInsufficientBalance,
				order.SkipNotFound,
				order.SkipConcurrencyConflict,
				order.SkipContractClosed,
			},
		},
		{
			name: "NonPositiveQuantity",
			items: []order.Item{
				rice,
				item("FEIJAO", "0", covered(contractA, "FEIJAO CARIOCA", "8")),
			},
			wantErrCode:   apperr.CodeValidation,
			wantErr:       true,
			wantNilResult: true,
		},
		{
			name: "QuantityFinerThanLedger",
			items: []order.Item{
				item("SAL", "0.0004", covered(contractA, "SAL REFINADO", "2")),
			},
			wantErrCode:   apperr.CodeValidation,
			wantErr:       true,
			wantNilResult: true,
		},
		{
			name:  "UnexpectedLedgerErrorIssuesWhatWasDelivered",
			items: []order.Item{rice, beans},
			setupMock: func(l *order.MockLedger, r *order.MockRepository) {
				r.EXPECT().CreateOrder(gomock.Any(), pending()).Return(nil)
				gomock.InOrder(
					l.EXPECT().RecordDelivery(gomock.Any(), gomock.Any()).
						DoAndReturn(deliverAt(priceList(rice))),
					l.EXPECT().RecordDelivery(gomock.Any(), gomock.Any()).
						Return(nil, errors.New("connection reset")),
				)
				r.EXPECT().IssueOrder(gomock.Any(), gomock.Any()).Return(nil)
			},
			wantOrders:   1,
			wantLines:    []int{1},
			wantTotals:   []string{"52"},
			wantStatuses: []order.Status{order.StatusIssued},
			wantErr:      true,
		},
		{
			name:  "HeaderFailureDeliversNothing",
			items: []order.Item{rice, beef},
			setupMock: func(_ *order.MockLedger, r *order.MockRepository) {
				r.EXPECT().CreateOrder(gomock.Any(), gomock.Any()).Return(errors.New("db down"))
			},
			wantErr: true,
		},
		{
			name:  "IssueFailureKeepsPendingOrder",
			items: []order.Item{rice, beef},
			setupMock: func(l *order.MockLedger, r *order.MockRepository) {
				l.EXPECT().RecordDelivery(gomock.Any(), gomock.Any()).
					DoAndReturn(deliverAt(priceList(rice)))
				r.EXPECT().CreateOrder(gomock.Any(), pending()).Return(nil)
				r.EXPECT().IssueOrder(gomock.Any(), gomock.Any()).Return(errors.New("db down"))
			},
			wantOrders:   1,
			wantLines:    []int{1},
			wantTotals:   []string{"52"},
			wantStatuses: []order.Status{order.StatusPending},
			wantErr:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			ledger := order.NewMockLedger(ctrl)
			repo := order.NewMockRepository(ctrl)

			if tt.setupMock != nil {
				tt.setupMock(ledger, repo)
			}

			proc := order.NewProcessor(ledger, repo, nil)
			got, err := proc.SubmitOrders(context.Background(), order.SubmitRequest{
				Items:       tt.items,
				Responsible: "nutricionista",
			})

			if tt.wantErr {
				require.Error(t, err)

				if tt.wantErrCode != "" {
					assert.Equal(t, tt.wantErrCode, apperr.CodeOf(err))
				}
			} else {
				require.NoError(t, err)
			}

			if tt.wantNilResult {
				assert.Nil(t, got)
				return
			}

			require.NotNil(t, got)
			require.Len(t, got.Created, tt.wantOrders)

			for i, o := range got.Created {
				assert.Len(t, o.Lines, tt.wantLines[i])
				assert.True(t, o.TotalValue.Equal(decimal.RequireFromString(tt.wantTotals[i])),
					"order %d: want total %s, got %s", i, tt.wantTotals[i], o.TotalValue)
				assert.Equal(t, tt.wantStatuses[i], o.Status)
				assert.Equal(t, "nutricionista", o.Responsible)

				for _, line := range o.Lines {
					assert.Equal(t, o.ID, line.OrderID)
					assert.NotEqual(t, uuid.Nil, line.EventID)
				}
			}

			reasons := make([]order.SkipReason, len(got.Skipped))
			for i, s := range got.Skipped {
				reasons[i] = s.Reason
			}

			assert.Equal(t, tt.wantSkipped, nilIfEmpty(reasons))
		})
	}
}

func nilIfEmpty(reasons []order.SkipReason) []order.SkipReason {
	if len(reasons) == 0 {
		return nil
	}

	return reasons
}

func TestProcessor_SubmitOrders_AgainstLedger(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	ledger := contract.NewLedger(store, nil, contract.Options{})

	c, err := ledger.RegisterContract(ctx, contract.Spec{
		Number:       "012/2026",
		SupplierID:   "SUP-1",
		SupplierName: "Frigorífico Boa Carne",
		LineItems: []contract.LineItemSpec{
			{
				Description:        "CARNE MOIDA BOVINA 1ª CAT",
				Unit:               "KG",
				UnitPrice:          decimal.RequireFromString("32.50"),
				ContractedQuantity: decimal.NewFromInt(100),
				AcquiredQuantity:   decimal.NewFromInt(80),
			},
			{
				Description:        "ARROZ TIPO 1",
				Unit:               "KG",
				UnitPrice:          decimal.RequireFromString("5.20"),
				ContractedQuantity: decimal.NewFromInt(50),
				AcquiredQuantity:   decimal.NewFromInt(45),
			},
		},
	})
	require.NoError(t, err)

	active, err := ledger.ListActive(ctx)
	require.NoError(t, err)

	engine := matching.NewEngine()

	demandItems := []demand.Item{
		{Ingredient: "CARNE MOIDA", Quantity: decimal.RequireFromString("14.29"), Unit: "KG", Week: 1},
		{Ingredient: "ARROZ", Quantity: decimal.NewFromInt(30), Unit: "KG", Week: 1},
		{Ingredient: "CENOURA", Quantity: decimal.NewFromInt(25), Unit: "KG", Week: 1, Estimated: true},
	}

	items := make([]order.Item, len(demandItems))
	for i, d := range demandItems {
		items[i] = order.Item{Demand: d, Match: engine.Match(d.Ingredient, active)}
	}

	ctrl := gomock.NewController(t)
	repo := order.NewMockRepository(ctrl)
	repo.EXPECT().CreateOrder(gomock.Any(), gomock.Any()).Return(nil)
	repo.EXPECT().IssueOrder(gomock.Any(), gomock.Any()).Return(nil)

	got, err := order.NewProcessor(ledger, repo, nil).SubmitOrders(ctx, order.SubmitRequest{
		Items:       items,
		Responsible: "nutricionista",
	})
	require.NoError(t, err)

	require.Len(t, got.Created, 1)
	o := got.Created[0]
	require.Len(t, o.Lines, 1)
	assert.Equal(t, c.ID, o.ContractID)
	assert.Equal(t, "CARNE MOIDA BOVINA 1ª CAT", o.Lines[0].Description)
	assert.True(t, o.TotalValue.Equal(decimal.RequireFromString("464.425")), "got %s", o.TotalValue)

	require.Len(t, got.Skipped, 2)
	assert.Equal(t, order.SkipNoContract, got.Skipped[0].Reason)
	assert.Equal(t, "CENOURA", got.Skipped[0].Item.Demand.Ingredient)
	assert.Equal(t, order.SkipInsufficientBalance, got.Skipped[1].Reason)
	assert.Equal(t, "ARROZ", got.Skipped[1].Item.Demand.Ingredient)

	events, err := ledger.Events(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.NotNil(t, events[0].OrderID)
	assert.Equal(t, o.ID, *events[0].OrderID)
	assert.Equal(t, o.Lines[0].EventID, events[0].ID)

	beef, err := store.GetLineItem(ctx, c.ID, c.LineItems[0].ID)
	require.NoError(t, err)
	assert.True(t, beef.AcquiredQuantity.Equal(decimal.RequireFromString("94.29")))

	rice, err := store.GetLineItem(ctx, c.ID, c.LineItems[1].ID)
	require.NoError(t, err)
	assert.True(t, rice.AcquiredQuantity.Equal(decimal.NewFromInt(45)), "rejected delivery must not change the balance")
}

func beefLedger(t *testing.T) (*contract.Ledger, *memstore.Store, *contract.Contract) {
	t.Helper()

	store := memstore.New()
	ledger := contract.NewLedger(store, nil, contract.Options{})

	c, err := ledger.RegisterContract(context.Background(), contract.Spec{
		Number:       "012/2026",
		SupplierID:   "SUP-1",
		SupplierName: "Frigorífico Boa Carne",
		LineItems: []contract.LineItemSpec{{
			Description:        "CARNE MOIDA BOVINA 1ª CAT",
			Unit:               "KG",
			UnitPrice:          decimal.RequireFromString("32.50"),
			ContractedQuantity: decimal.NewFromInt(100),
			AcquiredQuantity:   decimal.NewFromInt(80),
		}},
	})
	require.NoError(t, err)

	return ledger, store, c
}

func TestProcessor_SubmitOrders_HeaderFailureLeavesBalance(t *testing.T) {
	ctx := context.Background()
	ledger, store, c := beefLedger(t)

	active, err := ledger.ListActive(ctx)
	require.NoError(t, err)

	req := order.SubmitRequest{
		Items: []order.Item{{
			Demand: demand.Item{Ingredient: "CARNE MOIDA", Quantity: decimal.NewFromInt(10), Unit: "KG"},
			Match:  matching.NewEngine().Match("CARNE MOIDA", active),
		}},
		Responsible: "nutricionista",
	}

	ctrl := gomock.NewController(t)
	repo := order.NewMockRepository(ctrl)
	repo.EXPECT().CreateOrder(gomock.Any(), gomock.Any()).Return(errors.New("db down")).Times(2)

	proc := order.NewProcessor(ledger, repo, nil)

	for attempt := 1; attempt <= 2; attempt++ {
		got, err := proc.SubmitOrders(ctx, req)
		require.Error(t, err, "attempt %d", attempt)
		require.NotNil(t, got)
		assert.Empty(t, got.Created)

		li, err := store.GetLineItem(ctx, c.ID, c.LineItems[0].ID)
		require.NoError(t, err)
		assert.True(t, li.AcquiredQuantity.Equal(decimal.NewFromInt(80)), "attempt %d: got %s", attempt, li.AcquiredQuantity)

		events, err := ledger.Events(ctx, c.ID)
		require.NoError(t, err)
		assert.Empty(t, events)
	}
}

func TestProcessor_SubmitOrders_IssueFailureReportsPendingOrder(t *testing.T) {
	ctx := context.Background()
	ledger, _, c := beefLedger(t)

	active, err := ledger.ListActive(ctx)
	require.NoError(t, err)

	ctrl := gomock.NewController(t)
	repo := order.NewMockRepository(ctrl)
	repo.EXPECT().CreateOrder(gomock.Any(), gomock.Any()).Return(nil)
	repo.EXPECT().IssueOrder(gomock.Any(), gomock.Any()).Return(errors.New("db down"))

	got, err := order.NewProcessor(ledger, repo, nil).SubmitOrders(ctx, order.SubmitRequest{
		Items: []order.Item{{
			Demand: demand.Item{Ingredient: "CARNE MOIDA", Quantity: decimal.NewFromInt(10), Unit: "KG"},
			Match:  matching.NewEngine().Match("CARNE MOIDA", active),
		}},
	})
	require.Error(t, err)
	require.NotNil(t, got)
	require.Len(t, got.Created, 1)

	o := got.Created[0]
	assert.Equal(t, order.StatusPending, o.Status)
	require.Len(t, o.Lines, 1)

	events, err := ledger.Events(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.NotNil(t, events[0].OrderID)
	assert.Equal(t, o.ID, *events[0].OrderID)
	assert.True(t, events[0].ValueImpact.Equal(o.TotalValue))
}

func TestProcessor_GetAndList(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := order.NewMockRepository(ctrl)
	id := uuid.New()
	contractID := uuid.New()

	repo.EXPECT().GetOrder(gomock.Any(), id).Return(nil, order.ErrNotFound)
	repo.EXPECT().ListOrders(gomock.Any(), order.ListFilter{ContractID: &contractID}).
		Return([]*order.Order{{ID: uuid.New()}}, nil)

	proc := order.NewProcessor(order.NewMockLedger(ctrl), repo, nil)

	_, err := proc.GetOrder(context.Background(), id)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))

	orders, err := proc.ListOrders(context.Background(), order.ListFilter{ContractID: &contractID})
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}
