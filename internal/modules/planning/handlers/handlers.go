// Package handlers provides HTTP handlers for the planning session and the
// stateless plan calculators.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/aristath/brickvault/internal/domain"
	"github.com/aristath/brickvault/internal/modules/planning"
	"github.com/aristath/brickvault/internal/utils"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Handler handles planning HTTP requests
type Handler struct {
	sessions *planning.SessionStore
	catalog  planning.PropertyCatalog
	log      zerolog.Logger
}

// NewHandler creates a new planning handler
func NewHandler(sessions *planning.SessionStore, catalog planning.PropertyCatalog, log zerolog.Logger) *Handler {
	return &Handler{
		sessions: sessions,
		catalog:  catalog,
		log:      log.With().Str("handler", "planning").Logger(),
	}
}

type accountRequest struct {
	AccountID string `json:"accountId"`
}

type recurringDepositRequest struct {
	Amount    json.Number      `json:"amount"`
	Frequency domain.Frequency `json:"frequency"`
}

type patchRequest struct {
	AccountID          string                   `json:"accountId"`
	InvestmentAmount   json.Number              `json:"investmentAmount,omitempty"`
	MonthlyIncomeGoal  json.Number              `json:"monthlyIncomeGoal,omitempty"`
	ClearIncomeGoal    bool                     `json:"clearMonthlyIncomeGoal,omitempty"`
	SelectedPropertyID *string                  `json:"selectedPropertyId,omitempty"`
	RecurringDeposit   *recurringDepositRequest `json:"recurringDeposit,omitempty"`
	FirstDepositDate   *time.Time               `json:"firstDepositDate,omitempty"`
}

type goalFirstRequest struct {
	MonthlyIncomeGoal json.Number `json:"monthlyIncomeGoal"`
	PropertyID        string      `json:"propertyId,omitempty"`
	AnnualROI         json.Number `json:"annualROI,omitempty"`
}

type amountFirstRequest struct {
	InvestmentAmount json.Number `json:"investmentAmount"`
	PropertyID       string      `json:"propertyId"`
}

type projectionRequest struct {
	Principal       json.Number      `json:"principal"`
	RecurringAmount json.Number      `json:"recurringAmount"`
	Frequency       domain.Frequency `json:"frequency"`
	Periods         int64            `json:"periods"`
	AnnualRate      json.Number      `json:"annualRate"`
}

// RegisterRoutes registers planning routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/planning", func(r chi.Router) {
		r.Route("/session", func(r chi.Router) {
			r.Get("/", h.HandleGetSession)
			r.Patch("/", h.HandleUpdateSession)
			r.Post("/reset", h.HandleResetSession)
			r.Post("/compute", h.HandleComputeSession)
			r.Post("/save", h.HandleSaveSession)
		})

		r.Post("/goal-first", h.HandleGoalFirst)
		r.Post("/amount-first", h.HandleAmountFirst)
		r.Post("/projection", h.HandleProjection)
	})
}

// HandleGetSession handles GET /api/planning/session?accountId=
func (h *Handler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("accountId")
	if accountID == "" {
		utils.WriteBadRequest(w, "accountId is required", h.log)
		return
	}
	utils.WriteData(w, http.StatusOK, h.sessions.Get(accountID), h.log)
}

// HandleUpdateSession handles PATCH /api/planning/session
func (h *Handler) HandleUpdateSession(w http.ResponseWriter, r *http.Request) {
	var req patchRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteBadRequest(w, err.Error(), h.log)
		return
	}
	if req.AccountID == "" {
		utils.WriteBadRequest(w, "accountId is required", h.log)
		return
	}

	patch, err := req.toPatch()
	if err != nil {
		utils.WriteError(w, err, h.log)
		return
	}

	plan, err := h.sessions.Update(r.Context(), req.AccountID, patch)
	if err != nil {
		utils.WriteError(w, err, h.log)
		return
	}
	utils.WriteData(w, http.StatusOK, plan, h.log)
}

// HandleResetSession handles POST /api/planning/session/reset
func (h *Handler) HandleResetSession(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.accountFromBody(w, r)
	if !ok {
		return
	}
	utils.WriteData(w, http.StatusOK, h.sessions.Reset(accountID), h.log)
}

// HandleComputeSession handles POST /api/planning/session/compute
func (h *Handler) HandleComputeSession(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.accountFromBody(w, r)
	if !ok {
		return
	}

	result, err := h.sessions.Compute(r.Context(), accountID)
	if err != nil {
		utils.WriteError(w, err, h.log)
		return
	}
	utils.WriteData(w, http.StatusOK, result, h.log)
}

// HandleSaveSession handles POST /api/planning/session/save
func (h *Handler) HandleSaveSession(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.accountFromBody(w, r)
	if !ok {
		return
	}

	saved, err := h.sessions.Save(r.Context(), accountID)
	if err != nil {
		utils.WriteError(w, err, h.log)
		return
	}
	utils.WriteData(w, http.StatusCreated, saved, h.log)
}

// HandleGoalFirst handles POST /api/planning/goal-first. The ROI comes from
// the property when propertyId is given, from annualROI otherwise.
func (h *Handler) HandleGoalFirst(w http.ResponseWriter, r *http.Request) {
	var req goalFirstRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteBadRequest(w, err.Error(), h.log)
		return
	}

	goal, err := parseGoal(req.MonthlyIncomeGoal)
	if err != nil {
		utils.WriteError(w, err, h.log)
		return
	}

	var roi decimal.Decimal
	switch {
	case req.PropertyID != "":
		property, err := h.catalog.GetByID(r.Context(), req.PropertyID)
		if err != nil {
			utils.WriteError(w, err, h.log)
			return
		}
		roi = property.ExpectedROI
	case req.AnnualROI != "":
		if roi, err = utils.ParseDecimal(req.AnnualROI, domain.RateScale); err != nil {
			utils.WriteError(w, fmt.Errorf("annualROI: %w", domain.ErrInvalidYield), h.log)
			return
		}
	default:
		utils.WriteBadRequest(w, "propertyId or annualROI is required", h.log)
		return
	}

	needed, err := planning.GoalFirst(goal, roi)
	if err != nil {
		utils.WriteError(w, err, h.log)
		return
	}
	utils.WriteData(w, http.StatusOK, map[string]interface{}{
		"monthly_income_goal":         goal,
		"estimated_roi":               roi,
		"estimated_investment_needed": needed,
	}, h.log)
}

// HandleAmountFirst handles POST /api/planning/amount-first
func (h *Handler) HandleAmountFirst(w http.ResponseWriter, r *http.Request) {
	var req amountFirstRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteBadRequest(w, err.Error(), h.log)
		return
	}
	if req.PropertyID == "" {
		utils.WriteBadRequest(w, "propertyId is required", h.log)
		return
	}

	amount, err := utils.ParseAmount(req.InvestmentAmount)
	if err != nil {
		utils.WriteError(w, err, h.log)
		return
	}
	property, err := h.catalog.GetByID(r.Context(), req.PropertyID)
	if err != nil {
		utils.WriteError(w, err, h.log)
		return
	}

	monthly, roi, err := planning.AmountFirst(amount, *property)
	if err != nil {
		utils.WriteError(w, err, h.log)
		return
	}
	utils.WriteData(w, http.StatusOK, map[string]interface{}{
		"investment_amount":       amount,
		"expected_monthly_return": monthly,
		"estimated_roi":           roi,
	}, h.log)
}

// HandleProjection handles POST /api/planning/projection
func (h *Handler) HandleProjection(w http.ResponseWriter, r *http.Request) {
	var req projectionRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteBadRequest(w, err.Error(), h.log)
		return
	}

	principal, err := utils.ParseAmount(req.Principal)
	if err != nil {
		utils.WriteError(w, err, h.log)
		return
	}
	recurring, err := utils.ParseAmount(req.RecurringAmount)
	if err != nil {
		utils.WriteError(w, err, h.log)
		return
	}
	rate, err := utils.ParseDecimal(req.AnnualRate, domain.RateScale)
	if err != nil {
		utils.WriteError(w, fmt.Errorf("annualRate: %w", domain.ErrInvalidYield), h.log)
		return
	}

	value, err := planning.ProjectRecurring(principal, recurring, req.Frequency, req.Periods, rate)
	if err != nil {
		utils.WriteError(w, err, h.log)
		return
	}
	utils.WriteData(w, http.StatusOK, map[string]interface{}{
		"projected_value": value,
		"periods":         req.Periods,
		"frequency":       req.Frequency,
	}, h.log)
}

func (h *Handler) accountFromBody(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req accountRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteBadRequest(w, err.Error(), h.log)
		return "", false
	}
	if req.AccountID == "" {
		utils.WriteBadRequest(w, "accountId is required", h.log)
		return "", false
	}
	return req.AccountID, true
}

func (req patchRequest) toPatch() (planning.Patch, error) {
	var patch planning.Patch
	if req.InvestmentAmount != "" {
		v, err := utils.ParseAmount(req.InvestmentAmount)
		if err != nil {
			return patch, err
		}
		patch.InvestmentAmount = &v
	}
	if req.MonthlyIncomeGoal != "" {
		v, err := parseGoal(req.MonthlyIncomeGoal)
		if err != nil {
			return patch, err
		}
		patch.MonthlyIncomeGoal = &v
	}
	if req.RecurringDeposit != nil {
		amount, err := utils.ParseAmount(req.RecurringDeposit.Amount)
		if err != nil {
			return patch, err
		}
		patch.RecurringDeposit = &domain.RecurringDeposit{Amount: amount, Frequency: req.RecurringDeposit.Frequency}
	}
	patch.ClearMonthlyIncomeGoal = req.ClearIncomeGoal
	patch.SelectedPropertyID = req.SelectedPropertyID
	patch.FirstDepositDate = req.FirstDepositDate
	return patch, nil
}

func parseGoal(raw json.Number) (decimal.Decimal, error) {
	v, err := utils.ParseAmount(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("monthlyIncomeGoal %q: %w", raw.String(), domain.ErrInvalidGoal)
	}
	return v, nil
}
