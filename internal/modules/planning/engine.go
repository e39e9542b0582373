// Package planning computes investment plans. The engine functions are pure
// and deterministic; the session store keeps one scratchpad plan per account
// in memory until it is explicitly saved.
package planning

import (
	"fmt"
	"time"

	"github.com/aristath/brickvault/internal/domain"
	"github.com/shopspring/decimal"
)

// powPrecision is the number of decimal places kept while compounding
const powPrecision = 18

var (
	hundred = decimal.NewFromInt(100)
	twelve  = decimal.NewFromInt(12)
)

// AmountFirst plans forward from an investment amount.
//
//	expectedMonthlyReturn = amount * (expectedROI/100) / 12
//	estimatedROI          = expectedROI
func AmountFirst(amount decimal.Decimal, property domain.Property) (expectedMonthlyReturn, estimatedROI decimal.Decimal, err error) {
	if amount.IsNegative() {
		return decimal.Zero, decimal.Zero, fmt.Errorf("investment amount %s: %w", amount, domain.ErrInvalidAmount)
	}
	expectedMonthlyReturn = amount.Mul(property.ExpectedROI).Div(hundred).Div(twelve).Round(2)
	return expectedMonthlyReturn, property.ExpectedROI, nil
}

// GoalFirst plans backward from a monthly income goal and an annual ROI in
// percent: goal * 12 / (roi/100), rounded to cents. A non-positive ROI makes
// the plan undefined.
func GoalFirst(monthlyIncomeGoal, annualROI decimal.Decimal) (decimal.Decimal, error) {
	if monthlyIncomeGoal.IsNegative() {
		return decimal.Zero, fmt.Errorf("goal %s: %w", monthlyIncomeGoal, domain.ErrInvalidGoal)
	}
	if !annualROI.IsPositive() {
		return decimal.Zero, fmt.Errorf("roi %s: %w", annualROI, domain.ErrInvalidYield)
	}
	return monthlyIncomeGoal.Mul(twelve).Div(annualROI.Div(hundred)).Round(2), nil
}

// ProjectRecurring projects the value of a principal plus a recurring deposit
// made every period, compounded once per period.
//
//	i     = annualRatePercent / 100 / periodsPerYear
//	value = P(1+i)^N + A((1+i)^N - 1)/i
//
// With i = 0 the value is P + A*N. The result is rounded to cents.
func ProjectRecurring(principal, recurring decimal.Decimal, frequency domain.Frequency, periods int64, annualRatePercent decimal.Decimal) (decimal.Decimal, error) {
	n, err := frequency.PeriodsPerYear()
	if err != nil {
		return decimal.Zero, fmt.Errorf("frequency %q: %w", frequency, err)
	}
	if principal.IsNegative() || recurring.IsNegative() {
		return decimal.Zero, fmt.Errorf("principal and deposit must not be negative: %w", domain.ErrInvalidAmount)
	}
	if periods < 0 {
		return decimal.Zero, fmt.Errorf("periods must not be negative: %w", domain.ErrInvalidAmount)
	}
	if annualRatePercent.IsNegative() {
		return decimal.Zero, fmt.Errorf("rate %s: %w", annualRatePercent, domain.ErrInvalidYield)
	}

	count := decimal.NewFromInt(periods)
	i := annualRatePercent.Div(hundred).Div(decimal.NewFromInt(n))
	if i.IsZero() {
		return principal.Add(recurring.Mul(count)).Round(2), nil
	}

	growth := compound(decimal.NewFromInt(1).Add(i), periods)
	value := principal.Mul(growth).
		Add(recurring.Mul(growth.Sub(decimal.NewFromInt(1)).Div(i)))
	return value.Round(2), nil
}

// compound returns base^exp by squaring, rounding every step so that long
// horizons keep a bounded number of digits.
func compound(base decimal.Decimal, exp int64) decimal.Decimal {
	result := decimal.NewFromInt(1)
	for exp > 0 {
		if exp&1 == 1 {
			result = result.Mul(base).Round(powPrecision)
		}
		base = base.Mul(base).Round(powPrecision)
		exp >>= 1
	}
	return result
}

// PeriodsUntil counts the whole deposit periods from start up to end. It is
// zero when end is not after start. Monthly and quarterly periods follow the
// calendar, so a deposit on the 31st rolls over the way time.AddDate does.
func PeriodsUntil(frequency domain.Frequency, start, end time.Time) (int64, error) {
	if _, err := frequency.PeriodsPerYear(); err != nil {
		return 0, fmt.Errorf("frequency %q: %w", frequency, err)
	}
	if !end.After(start) {
		return 0, nil
	}

	switch frequency {
	case domain.FrequencyWeekly:
		return int64(end.Sub(start) / (7 * 24 * time.Hour)), nil
	case domain.FrequencyQuarterly:
		return monthsBetween(start, end) / 3, nil
	default:
		return monthsBetween(start, end), nil
	}
}

func monthsBetween(start, end time.Time) int64 {
	months := int64(end.Year()-start.Year())*12 + int64(end.Month()-start.Month())
	if start.AddDate(0, int(months), 0).After(end) {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}
