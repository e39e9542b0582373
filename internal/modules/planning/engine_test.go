package planning

import (
	"testing"
	"time"

	"github.com/aristath/brickvault/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestGoalFirst(t *testing.T) {
	needed, err := GoalFirst(d("500"), d("9"))
	require.NoError(t, err)
	assert.Equal(t, "66666.67", needed.StringFixed(2))

	needed, err = GoalFirst(d("0"), d("9"))
	require.NoError(t, err)
	assert.True(t, needed.IsZero())

	_, err = GoalFirst(d("500"), d("0"))
	assert.ErrorIs(t, err, domain.ErrInvalidYield)
	_, err = GoalFirst(d("500"), d("-2"))
	assert.ErrorIs(t, err, domain.ErrInvalidYield)
	_, err = GoalFirst(d("-1"), d("9"))
	assert.ErrorIs(t, err, domain.ErrInvalidGoal)
}

func TestAmountFirst(t *testing.T) {
	property := domain.Property{ExpectedROI: d("9"), TokenPrice: d("50")}

	monthly, roi, err := AmountFirst(d("1000"), property)
	require.NoError(t, err)
	assert.Equal(t, "7.5", monthly.String())
	assert.Equal(t, "9", roi.String())

	_, _, err = AmountFirst(d("-1"), property)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestProjectRecurring(t *testing.T) {
	tests := []struct {
		name      string
		principal string
		recurring string
		frequency domain.Frequency
		periods   int64
		rate      string
		want      string
	}{
		{"monthly at 12%", "1000", "100", domain.FrequencyMonthly, 12, "12", "2395.08"},
		{"zero rate is linear", "1000", "100", domain.FrequencyMonthly, 12, "0", "2200.00"},
		{"principal only", "1000", "0", domain.FrequencyQuarterly, 4, "8", "1082.43"},
		{"no periods", "750", "50", domain.FrequencyWeekly, 0, "5", "750.00"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ProjectRecurring(d(tc.principal), d(tc.recurring), tc.frequency, tc.periods, d(tc.rate))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.StringFixed(2))
		})
	}
}

func TestProjectRecurring_Deterministic(t *testing.T) {
	a, err := ProjectRecurring(d("5000"), d("250"), domain.FrequencyWeekly, 520, d("7.3"))
	require.NoError(t, err)
	b, err := ProjectRecurring(d("5000"), d("250"), domain.FrequencyWeekly, 520, d("7.3"))
	require.NoError(t, err)
	assert.True(t, a.Equal(b))
	assert.True(t, a.GreaterThan(d("135000")))
}

func TestProjectRecurring_Invalid(t *testing.T) {
	_, err := ProjectRecurring(d("1"), d("1"), domain.Frequency("daily"), 1, d("1"))
	assert.ErrorIs(t, err, domain.ErrInvalidFrequency)
	_, err = ProjectRecurring(d("-1"), d("1"), domain.FrequencyMonthly, 1, d("1"))
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	_, err = ProjectRecurring(d("1"), d("1"), domain.FrequencyMonthly, -1, d("1"))
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	_, err = ProjectRecurring(d("1"), d("1"), domain.FrequencyMonthly, 1, d("-1"))
	assert.ErrorIs(t, err, domain.ErrInvalidYield)
}

func TestPeriodsUntil(t *testing.T) {
	start := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		frequency domain.Frequency
		end       time.Time
		want      int64
	}{
		{"weekly", domain.FrequencyWeekly, start.AddDate(0, 0, 20), 2},
		{"monthly exact", domain.FrequencyMonthly, time.Date(2026, 7, 15, 0, 0, 0, 0, time.UTC), 6},
		{"monthly partial", domain.FrequencyMonthly, time.Date(2026, 7, 14, 0, 0, 0, 0, time.UTC), 5},
		{"quarterly", domain.FrequencyQuarterly, time.Date(2027, 1, 15, 0, 0, 0, 0, time.UTC), 4},
		{"end before start", domain.FrequencyMonthly, start.AddDate(0, -1, 0), 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := PeriodsUntil(tc.frequency, start, tc.end)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := PeriodsUntil(domain.Frequency("yearly"), start, start.AddDate(1, 0, 0))
	assert.ErrorIs(t, err, domain.ErrInvalidFrequency)
}
