package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExternalError_UnwrapsToKindAndCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("reconcile: %w", &ExternalError{
		Kind:     ErrReconciliationUnavailable,
		Provider: "chainindexer",
		Cause:    cause,
	})

	assert.ErrorIs(t, err, ErrReconciliationUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrInvalidExternalResponse)

	var ext *ExternalError
	assert.True(t, errors.As(err, &ext))
	assert.True(t, ext.Retryable())
}

func TestExternalError_Message(t *testing.T) {
	err := &ExternalError{
		Kind:            ErrInvalidExternalResponse,
		Provider:        "chainindexer",
		ProviderMessage: "NOTOK",
		StatusCode:      200,
	}

	assert.Equal(t, "chainindexer: invalid external response (status 200): NOTOK", err.Error())
	assert.False(t, err.Retryable())
}

func TestPersistence(t *testing.T) {
	assert.NoError(t, Persistence("op", nil))

	wrapped := Persistence("save plan", errors.New("disk I/O error"))
	assert.ErrorIs(t, wrapped, ErrPersistenceFailure)
	assert.Contains(t, wrapped.Error(), "disk I/O error")

	passthrough := Persistence("withdraw", fmt.Errorf("check: %w", ErrInsufficientFunds))
	assert.ErrorIs(t, passthrough, ErrInsufficientFunds)
	assert.NotErrorIs(t, passthrough, ErrPersistenceFailure)
}

func TestFrequency_PeriodsPerYear(t *testing.T) {
	for f, want := range map[Frequency]int64{
		FrequencyWeekly:    52,
		FrequencyMonthly:   12,
		FrequencyQuarterly: 4,
	} {
		got, err := f.PeriodsPerYear()
		assert.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := Frequency("daily").PeriodsPerYear()
	assert.ErrorIs(t, err, ErrInvalidFrequency)
}

func TestDefaultPlan(t *testing.T) {
	plan := DefaultPlan()
	assert.True(t, plan.InvestmentAmount.Equal(DefaultInvestmentAmount))
	assert.Nil(t, plan.MonthlyIncomeGoal)
	assert.Nil(t, plan.SelectedProperty)
	assert.Nil(t, plan.RecurringDeposit)
}
