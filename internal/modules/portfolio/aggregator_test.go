package portfolio

import (
	"testing"

	"github.com/aristath/brickvault/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func investment(invested, current string) domain.Investment {
	return domain.Investment{
		InvestedAmount: decimal.RequireFromString(invested),
		CurrentValue:   decimal.RequireFromString(current),
	}
}

func TestROI(t *testing.T) {
	assert.Equal(t, "12.5", ROI(investment("5000", "5625")).String())
	assert.Equal(t, "-10", ROI(investment("100", "90")).String())
	assert.True(t, ROI(investment("0", "50")).IsZero())
}

func TestMonthlyRentalIncome(t *testing.T) {
	income := MonthlyRentalIncome(investment("12000", "12000"), decimal.NewFromInt(6))
	assert.Equal(t, "60", income.String())
}

func TestTotalsOf(t *testing.T) {
	totals := TotalsOf([]domain.Investment{
		investment("5000", "5625"),
		investment("30000", "36750"),
	})

	assert.Equal(t, "35000", totals.TotalInvested.String())
	assert.Equal(t, "42375", totals.TotalValue.String())
	assert.Equal(t, "21.07", totals.TotalROI.Round(2).String())
	assert.Equal(t, 2, totals.Positions)
}

func TestTotalsOf_Empty(t *testing.T) {
	totals := TotalsOf(nil)

	assert.True(t, totals.TotalValue.IsZero())
	assert.True(t, totals.TotalInvested.IsZero())
	assert.True(t, totals.TotalROI.IsZero())
	assert.True(t, totals.MonthlyRentalIncome.IsZero())
	assert.True(t, totals.WeightedYield.IsZero())
}

func TestAggregate_WithYields(t *testing.T) {
	positions := []Position{
		NewPosition(investment("1000", "1000"), &domain.Property{Title: "A", RentalYield: decimal.NewFromInt(6)}),
		NewPosition(investment("3000", "3000"), &domain.Property{Title: "B", RentalYield: decimal.NewFromInt(10)}),
		NewPosition(investment("500", "500"), nil),
	}

	totals := Aggregate(positions)

	// 1000*6%/12 + 3000*10%/12 = 5 + 25
	assert.Equal(t, "30", totals.MonthlyRentalIncome.String())
	// (6*1000 + 10*3000 + 0*500) / 4500
	assert.Equal(t, "8", totals.WeightedYield.String())
	assert.Equal(t, "A", positions[0].PropertyTitle)
	assert.True(t, positions[2].RentalYield.IsZero())
}
