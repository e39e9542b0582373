package portfolio

import (
	"context"
	"errors"
	"testing"

	"github.com/aristath/brickvault/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockLedger is a mock ledger reader for testing
type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) Holdings(ctx context.Context, accountID string) (*domain.Holdings, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Holdings), args.Error(1)
}

// MockProperties is a mock property lookup for testing
type MockProperties struct {
	mock.Mock
}

func (m *MockProperties) GetByIDs(ctx context.Context, ids []string) (map[string]domain.Property, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]domain.Property), args.Error(1)
}

func TestSummary(t *testing.T) {
	ctx := context.Background()
	ledger := &MockLedger{}
	props := &MockProperties{}

	investments := []domain.Investment{
		{ID: "i1", PropertyID: "p1", InvestedAmount: decimal.NewFromInt(5000), CurrentValue: decimal.NewFromInt(5625)},
		{ID: "i2", PropertyID: "gone", InvestedAmount: decimal.NewFromInt(30000), CurrentValue: decimal.NewFromInt(36750)},
	}
	wallet := domain.WalletBalance{AccountID: "acc", Spendable: decimal.NewFromInt(250)}

	ledger.On("Holdings", ctx, "acc").Return(&domain.Holdings{Investments: investments, Balance: wallet}, nil)
	props.On("GetByIDs", ctx, []string{"p1", "gone"}).Return(map[string]domain.Property{
		"p1": {ID: "p1", Title: "Riverside", RentalYield: decimal.NewFromInt(12)},
	}, nil)

	summary, err := NewService(ledger, props, zerolog.Nop()).Summary(ctx, "acc")
	require.NoError(t, err)

	require.Len(t, summary.Positions, 2)
	assert.Equal(t, "Riverside", summary.Positions[0].PropertyTitle)
	assert.Equal(t, "50", summary.Positions[0].MonthlyRentalIncome.String())
	assert.True(t, summary.Positions[1].RentalYield.IsZero())
	assert.Equal(t, "42375", summary.Totals.TotalValue.String())
	assert.True(t, wallet.Equal(summary.Wallet))

	ledger.AssertExpectations(t)
	props.AssertExpectations(t)
}

func TestSummary_PropagatesLedgerErrors(t *testing.T) {
	ctx := context.Background()
	ledger := &MockLedger{}
	ledger.On("Holdings", ctx, "nobody").Return(nil, domain.ErrAccountNotFound)

	_, err := NewService(ledger, &MockProperties{}, zerolog.Nop()).Summary(ctx, "nobody")
	assert.True(t, errors.Is(err, domain.ErrAccountNotFound))
}
