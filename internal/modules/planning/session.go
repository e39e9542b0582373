package planning

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aristath/brickvault/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// DefaultHorizonYears is how far ahead Compute projects a recurring deposit
const DefaultHorizonYears = 5

// BalanceReader provides the spendable balance used for the funding check
type BalanceReader interface {
	BalanceOf(ctx context.Context, accountID string) (domain.WalletBalance, error)
}

// PropertyCatalog resolves the selected property
type PropertyCatalog interface {
	GetByID(ctx context.Context, id string) (*domain.Property, error)
}

// PlanSaver persists plan snapshots
type PlanSaver interface {
	Save(ctx context.Context, accountID string, plan domain.InvestmentPlan) (*domain.SavedPlan, error)
}

// Patch is a shallow update of a plan. Nil fields are left unchanged.
// ClearMonthlyIncomeGoal removes the goal, returning the plan to amount-first
// mode; it cannot be combined with a new goal.
type Patch struct {
	InvestmentAmount       *decimal.Decimal         `json:"investmentAmount,omitempty"`
	MonthlyIncomeGoal      *decimal.Decimal         `json:"monthlyIncomeGoal,omitempty"`
	ClearMonthlyIncomeGoal bool                     `json:"clearMonthlyIncomeGoal,omitempty"`
	SelectedPropertyID     *string                  `json:"selectedPropertyId,omitempty"`
	RecurringDeposit       *domain.RecurringDeposit `json:"recurringDeposit,omitempty"`
	FirstDepositDate       *time.Time               `json:"firstDepositDate,omitempty"`
}

// Computation is the result of Compute
type Computation struct {
	Plan              domain.InvestmentPlan `json:"plan"`
	Mode              string                `json:"mode"` // "goal_first" or "amount_first"
	RequiredAmount    decimal.Decimal       `json:"required_amount"`
	Spendable         decimal.Decimal       `json:"spendable"`
	FundingShortfall  decimal.Decimal       `json:"funding_shortfall"`
	ProjectedValue    *decimal.Decimal      `json:"projected_value,omitempty"`
	ProjectionPeriods int64                 `json:"projection_periods,omitempty"`
}

// SessionStore keeps one in-memory plan per account. Nothing is persisted
// until Save is called. Every Update and Reset bumps the account's revision so
// Compute never stores results derived from inputs that changed under it.
type SessionStore struct {
	mu           sync.Mutex
	plans        map[string]domain.InvestmentPlan
	revisions    map[string]uint64
	catalog      PropertyCatalog
	balances     BalanceReader
	saver        PlanSaver
	horizonYears int
	now          func() time.Time
	log          zerolog.Logger
}

// NewSessionStore creates a session store
func NewSessionStore(catalog PropertyCatalog, balances BalanceReader, saver PlanSaver, log zerolog.Logger) *SessionStore {
	return &SessionStore{
		plans:        make(map[string]domain.InvestmentPlan),
		revisions:    make(map[string]uint64),
		catalog:      catalog,
		balances:     balances,
		saver:        saver,
		horizonYears: DefaultHorizonYears,
		now:          func() time.Time { return time.Now().UTC() },
		log:          log.With().Str("service", "planning").Logger(),
	}
}

// Get returns the account's current plan, the default one if none was started
func (s *SessionStore) Get(accountID string) domain.InvestmentPlan {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(accountID)
}

// Update merges patch into the account's plan and returns the result
func (s *SessionStore) Update(ctx context.Context, accountID string, patch Patch) (domain.InvestmentPlan, error) {
	if v := patch.InvestmentAmount; v != nil {
		if err := domain.CheckAmount(*v); err != nil {
			return domain.InvestmentPlan{}, fmt.Errorf("investment amount: %w", err)
		}
		if v.IsNegative() {
			return domain.InvestmentPlan{}, fmt.Errorf("investment amount: %w", domain.ErrInvalidAmount)
		}
	}
	if v := patch.MonthlyIncomeGoal; v != nil {
		if patch.ClearMonthlyIncomeGoal {
			return domain.InvestmentPlan{}, fmt.Errorf("cannot set and clear the income goal: %w", domain.ErrInvalidGoal)
		}
		if domain.CheckAmount(*v) != nil || v.IsNegative() {
			return domain.InvestmentPlan{}, domain.ErrInvalidGoal
		}
	}
	if rd := patch.RecurringDeposit; rd != nil {
		if _, err := rd.Frequency.PeriodsPerYear(); err != nil {
			return domain.InvestmentPlan{}, err
		}
		if err := domain.CheckAmount(rd.Amount); err != nil {
			return domain.InvestmentPlan{}, fmt.Errorf("recurring deposit: %w", err)
		}
		if rd.Amount.IsNegative() {
			return domain.InvestmentPlan{}, fmt.Errorf("recurring deposit: %w", domain.ErrInvalidAmount)
		}
	}

	// Resolve the property before taking the lock; the catalog does I/O
	var property *domain.Property
	if patch.SelectedPropertyID != nil {
		p, err := s.catalog.GetByID(ctx, *patch.SelectedPropertyID)
		if err != nil {
			return domain.InvestmentPlan{}, err
		}
		property = p
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	plan := s.getLocked(accountID)
	if patch.InvestmentAmount != nil {
		v := *patch.InvestmentAmount
		plan.InvestmentAmount = v
	}
	if patch.MonthlyIncomeGoal != nil {
		v := *patch.MonthlyIncomeGoal
		plan.MonthlyIncomeGoal = &v
	}
	if patch.ClearMonthlyIncomeGoal {
		plan.MonthlyIncomeGoal = nil
		plan.EstimatedInvestmentNeeded = nil
	}
	if property != nil {
		plan.SelectedProperty = property
	}
	if patch.RecurringDeposit != nil {
		v := *patch.RecurringDeposit
		plan.RecurringDeposit = &v
	}
	if patch.FirstDepositDate != nil {
		v := patch.FirstDepositDate.UTC()
		plan.FirstDepositDate = &v
	}
	s.plans[accountID] = plan
	s.revisions[accountID]++
	return plan, nil
}

// Reset restores the account's default plan
func (s *SessionStore) Reset(accountID string) domain.InvestmentPlan {
	s.mu.Lock()
	defer s.mu.Unlock()
	plan := domain.DefaultPlan()
	s.plans[accountID] = plan
	s.revisions[accountID]++
	return plan
}

// Compute fills the derived fields of the account's plan. It plans
// goal-first when a monthly income goal is set and amount-first otherwise,
// projects the recurring deposit if there is one, and compares the required
// amount with the spendable balance.
//
// The derived fields are computed from a snapshot taken without holding the
// lock. They are stored only if no Update or Reset landed in the meantime;
// otherwise the newer inputs are kept and the result describes the snapshot.
func (s *SessionStore) Compute(ctx context.Context, accountID string) (*Computation, error) {
	s.mu.Lock()
	plan := s.getLocked(accountID)
	revision := s.revisions[accountID]
	s.mu.Unlock()
	if plan.SelectedProperty == nil {
		return nil, fmt.Errorf("no property selected: %w", domain.ErrPropertyNotFound)
	}

	// Use current catalog figures rather than the copy taken at selection time
	property, err := s.catalog.GetByID(ctx, plan.SelectedProperty.ID)
	if err != nil {
		return nil, err
	}
	plan.SelectedProperty = property

	result := &Computation{}
	if plan.MonthlyIncomeGoal != nil {
		needed, err := GoalFirst(*plan.MonthlyIncomeGoal, property.ExpectedROI)
		if err != nil {
			return nil, err
		}
		goal := *plan.MonthlyIncomeGoal
		roi := property.ExpectedROI
		plan.EstimatedInvestmentNeeded = &needed
		plan.ExpectedMonthlyReturn = &goal
		plan.EstimatedROI = &roi
		result.Mode = "goal_first"
		result.RequiredAmount = needed
	} else {
		monthly, roi, err := AmountFirst(plan.InvestmentAmount, *property)
		if err != nil {
			return nil, err
		}
		plan.EstimatedInvestmentNeeded = nil
		plan.ExpectedMonthlyReturn = &monthly
		plan.EstimatedROI = &roi
		result.Mode = "amount_first"
		result.RequiredAmount = plan.InvestmentAmount
	}

	if rd := plan.RecurringDeposit; rd != nil {
		now := s.now()
		start := now
		if plan.FirstDepositDate != nil && plan.FirstDepositDate.After(now) {
			start = *plan.FirstDepositDate
		}
		periods, err := PeriodsUntil(rd.Frequency, start, now.AddDate(s.horizonYears, 0, 0))
		if err != nil {
			return nil, err
		}
		projected, err := ProjectRecurring(result.RequiredAmount, rd.Amount, rd.Frequency, periods, property.ExpectedROI)
		if err != nil {
			return nil, err
		}
		result.ProjectedValue = &projected
		result.ProjectionPeriods = periods
	}

	balance, err := s.balances.BalanceOf(ctx, accountID)
	if err != nil {
		return nil, err
	}
	result.Spendable = balance.Spendable
	result.FundingShortfall = decimal.Max(decimal.Zero, result.RequiredAmount.Sub(balance.Spendable))

	s.mu.Lock()
	stored := s.revisions[accountID] == revision
	if stored {
		s.plans[accountID] = plan
	}
	s.mu.Unlock()
	if !stored {
		s.log.Debug().Str("account_id", accountID).Msg("Plan changed during compute, derived fields not stored")
	}

	result.Plan = plan
	s.log.Debug().
		Str("account_id", accountID).
		Str("mode", result.Mode).
		Str("required", result.RequiredAmount.String()).
		Str("shortfall", result.FundingShortfall.String()).
		Msg("Plan computed")
	return result, nil
}

// Save persists a snapshot of the account's current plan
func (s *SessionStore) Save(ctx context.Context, accountID string) (*domain.SavedPlan, error) {
	return s.saver.Save(ctx, accountID, s.Get(accountID))
}

func (s *SessionStore) getLocked(accountID string) domain.InvestmentPlan {
	plan, ok := s.plans[accountID]
	if !ok {
		return domain.DefaultPlan()
	}
	return plan
}
