// Package portfolio derives per-position and whole-portfolio metrics from
// investment positions. Nothing here is stored: every metric is recomputed
// from currentValue, investedAmount and the property's declared yield.
package portfolio

import (
	"github.com/aristath/brickvault/internal/domain"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"
)

var (
	hundred = decimal.NewFromInt(100)
	twelve  = decimal.NewFromInt(12)
)

// Position is an investment together with its derived metrics
type Position struct {
	Investment          domain.Investment `json:"investment"`
	PropertyTitle       string            `json:"property_title,omitempty"`
	RentalYield         decimal.Decimal   `json:"rental_yield"`
	ROI                 decimal.Decimal   `json:"roi"`
	MonthlyRentalIncome decimal.Decimal   `json:"monthly_rental_income"`
}

// Totals summarizes a set of positions
type Totals struct {
	TotalValue          decimal.Decimal `json:"total_value"`
	TotalInvested       decimal.Decimal `json:"total_invested"`
	TotalROI            decimal.Decimal `json:"total_roi"`
	MonthlyRentalIncome decimal.Decimal `json:"monthly_rental_income"`
	WeightedYield       decimal.Decimal `json:"weighted_yield"`
	Positions           int             `json:"positions"`
}

// ROI returns (currentValue - investedAmount) / investedAmount * 100, or zero
// when nothing was invested.
func ROI(inv domain.Investment) decimal.Decimal {
	return percentChange(inv.InvestedAmount, inv.CurrentValue)
}

// MonthlyRentalIncome returns investedAmount * yield / 100 / 12
func MonthlyRentalIncome(inv domain.Investment, rentalYield decimal.Decimal) decimal.Decimal {
	return inv.InvestedAmount.Mul(rentalYield).Div(hundred).Div(twelve)
}

// NewPosition computes the metrics of one investment. rentalYield is the
// annual percentage declared by the property.
func NewPosition(inv domain.Investment, property *domain.Property) Position {
	p := Position{
		Investment:  inv,
		RentalYield: decimal.Zero,
	}
	if property != nil {
		p.PropertyTitle = property.Title
		p.RentalYield = property.RentalYield
	}
	p.ROI = ROI(inv)
	p.MonthlyRentalIncome = MonthlyRentalIncome(inv, p.RentalYield)
	return p
}

// Aggregate returns the totals of positions. Empty input yields zeroed totals.
func Aggregate(positions []Position) Totals {
	t := Totals{
		TotalValue:          decimal.Zero,
		TotalInvested:       decimal.Zero,
		TotalROI:            decimal.Zero,
		MonthlyRentalIncome: decimal.Zero,
		WeightedYield:       decimal.Zero,
		Positions:           len(positions),
	}
	for _, p := range positions {
		t.TotalValue = t.TotalValue.Add(p.Investment.CurrentValue)
		t.TotalInvested = t.TotalInvested.Add(p.Investment.InvestedAmount)
		t.MonthlyRentalIncome = t.MonthlyRentalIncome.Add(p.MonthlyRentalIncome)
	}
	t.TotalROI = percentChange(t.TotalInvested, t.TotalValue)
	t.WeightedYield = WeightedYield(positions)
	return t
}

// TotalsOf aggregates bare investments that carry no yield information
func TotalsOf(investments []domain.Investment) Totals {
	positions := make([]Position, 0, len(investments))
	for _, inv := range investments {
		positions = append(positions, NewPosition(inv, nil))
	}
	return Aggregate(positions)
}

// WeightedYield is the rental yield averaged over positions, weighted by the
// amount invested in each. It is reporting only and computed in float64,
// rounded to four places.
func WeightedYield(positions []Position) decimal.Decimal {
	yields := make([]float64, 0, len(positions))
	weights := make([]float64, 0, len(positions))
	var totalWeight float64
	for _, p := range positions {
		w := p.Investment.InvestedAmount.InexactFloat64()
		if w <= 0 {
			continue
		}
		yields = append(yields, p.RentalYield.InexactFloat64())
		weights = append(weights, w)
		totalWeight += w
	}
	if totalWeight == 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(stat.Mean(yields, weights)).Round(4)
}

func percentChange(base, current decimal.Decimal) decimal.Decimal {
	if base.IsZero() {
		return decimal.Zero
	}
	return current.Sub(base).Div(base).Mul(hundred)
}
