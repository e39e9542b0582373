// Package handlers provides HTTP handlers for the ledger, accounts and investment positions.
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/aristath/brickvault/internal/domain"
	"github.com/aristath/brickvault/internal/modules/ledger"
	"github.com/aristath/brickvault/internal/utils"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles ledger HTTP requests
type Handler struct {
	service *ledger.Service
	log     zerolog.Logger
}

// NewHandler creates a new ledger handler
func NewHandler(service *ledger.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "ledger").Logger(),
	}
}

type depositRequest struct {
	AccountID string      `json:"accountId"`
	Amount    json.Number `json:"amount"`
	MethodID  string      `json:"methodId"`
}

type withdrawRequest struct {
	AccountID string      `json:"accountId"`
	Amount    json.Number `json:"amount"`
}

type investRequest struct {
	AccountID  string      `json:"accountId"`
	PropertyID string      `json:"propertyId"`
	Amount     json.Number `json:"amount"`
	Tokens     json.Number `json:"tokens"`
}

type rentalIncomeRequest struct {
	AccountID  string      `json:"accountId"`
	PropertyID string      `json:"propertyId"`
	Amount     json.Number `json:"amount"`
}

type transferRequest struct {
	FromAccountID string      `json:"fromAccountId"`
	ToAccountID   string      `json:"toAccountId"`
	Amount        json.Number `json:"amount"`
}

type compensateRequest struct {
	Reason string `json:"reason"`
}

type createAccountRequest struct {
	DisplayName   string `json:"displayName"`
	WalletAddress string `json:"walletAddress"`
}

type linkWalletRequest struct {
	WalletAddress string `json:"walletAddress"`
}

type valuationRequest struct {
	CurrentValue json.Number `json:"currentValue"`
}

// HandleDeposit handles POST /api/ledger/deposit
func (h *Handler) HandleDeposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if !h.decode(w, r, &req) {
		return
	}
	amount, err := utils.ParseAmount(req.Amount)
	if err != nil {
		h.writeError(w, err)
		return
	}

	t, err := h.service.Deposit(r.Context(), req.AccountID, amount, req.MethodID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeData(w, http.StatusCreated, t)
}

// HandleConfirmDeposit handles POST /api/ledger/deposit/{id}/confirm
func (h *Handler) HandleConfirmDeposit(w http.ResponseWriter, r *http.Request) {
	t, err := h.service.ConfirmDeposit(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeData(w, http.StatusOK, t)
}

// HandleFailDeposit handles POST /api/ledger/deposit/{id}/fail
func (h *Handler) HandleFailDeposit(w http.ResponseWriter, r *http.Request) {
	t, err := h.service.FailDeposit(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeData(w, http.StatusOK, t)
}

// HandleWithdraw handles POST /api/ledger/withdraw
func (h *Handler) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if !h.decode(w, r, &req) {
		return
	}
	amount, err := utils.ParseAmount(req.Amount)
	if err != nil {
		h.writeError(w, err)
		return
	}

	t, err := h.service.Withdraw(r.Context(), req.AccountID, amount)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeData(w, http.StatusCreated, t)
}

// HandleInvest handles POST /api/ledger/invest
func (h *Handler) HandleInvest(w http.ResponseWriter, r *http.Request) {
	var req investRequest
	if !h.decode(w, r, &req) {
		return
	}
	amount, err := utils.ParseAmount(req.Amount)
	if err != nil {
		h.writeError(w, err)
		return
	}
	tokens, err := utils.ParseDecimal(req.Tokens, domain.TokenScale)
	if err != nil {
		h.writeError(w, err)
		return
	}

	t, inv, err := h.service.RecordInvestment(r.Context(), req.AccountID, req.PropertyID, amount, tokens)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeData(w, http.StatusCreated, map[string]interface{}{
		"transaction": t,
		"investment":  inv,
	})
}

// HandleRentalIncome handles POST /api/ledger/rental-income
func (h *Handler) HandleRentalIncome(w http.ResponseWriter, r *http.Request) {
	var req rentalIncomeRequest
	if !h.decode(w, r, &req) {
		return
	}
	amount, err := utils.ParseAmount(req.Amount)
	if err != nil {
		h.writeError(w, err)
		return
	}

	t, err := h.service.RecordRentalIncome(r.Context(), req.AccountID, req.PropertyID, amount)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeData(w, http.StatusCreated, t)
}

// HandleTransfer handles POST /api/ledger/transfer
func (h *Handler) HandleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if !h.decode(w, r, &req) {
		return
	}
	amount, err := utils.ParseAmount(req.Amount)
	if err != nil {
		h.writeError(w, err)
		return
	}

	debit, credit, err := h.service.Transfer(r.Context(), req.FromAccountID, req.ToAccountID, amount)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeData(w, http.StatusCreated, map[string]interface{}{
		"debit":  debit,
		"credit": credit,
	})
}

// HandleCompensate handles POST /api/ledger/transactions/{id}/compensate
func (h *Handler) HandleCompensate(w http.ResponseWriter, r *http.Request) {
	var req compensateRequest
	if !h.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Reason) == "" {
		utils.WriteBadRequest(w, "reason is required", h.log)
		return
	}

	t, err := h.service.Compensate(r.Context(), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeData(w, http.StatusCreated, t)
}

// HandleGetBalance handles GET /api/ledger/balance?accountId=
func (h *Handler) HandleGetBalance(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.requireAccountID(w, r)
	if !ok {
		return
	}

	balance, err := h.service.BalanceOf(r.Context(), accountID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeData(w, http.StatusOK, balance)
}

// HandleListTransactions handles GET /api/ledger/transactions?accountId=&limit=
func (h *Handler) HandleListTransactions(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.requireAccountID(w, r)
	if !ok {
		return
	}
	limit, err := utils.QueryInt(r, "limit", 0)
	if err != nil {
		utils.WriteBadRequest(w, err.Error(), h.log)
		return
	}

	txs, err := h.service.ListTransactions(r.Context(), accountID, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeData(w, http.StatusOK, map[string]interface{}{
		"transactions": txs,
		"count":        len(txs),
	})
}

// HandleCreateAccount handles POST /api/accounts
func (h *Handler) HandleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if !h.decode(w, r, &req) {
		return
	}

	account, err := h.service.CreateAccount(r.Context(), req.DisplayName, req.WalletAddress)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeData(w, http.StatusCreated, account)
}

// HandleGetAccount handles GET /api/accounts/{id}
func (h *Handler) HandleGetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.service.GetAccount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeData(w, http.StatusOK, account)
}

// HandleDeactivateAccount handles POST /api/accounts/{id}/deactivate
func (h *Handler) HandleDeactivateAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.service.DeactivateAccount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeData(w, http.StatusOK, account)
}

// HandleLinkWallet handles PUT /api/accounts/{id}/wallet
func (h *Handler) HandleLinkWallet(w http.ResponseWriter, r *http.Request) {
	var req linkWalletRequest
	if !h.decode(w, r, &req) {
		return
	}

	account, err := h.service.LinkWallet(r.Context(), chi.URLParam(r, "id"), req.WalletAddress)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeData(w, http.StatusOK, account)
}

// HandleListInvestments handles GET /api/investments?accountId=
func (h *Handler) HandleListInvestments(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.requireAccountID(w, r)
	if !ok {
		return
	}

	investments, err := h.service.ListInvestments(r.Context(), accountID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeData(w, http.StatusOK, investments)
}

// HandleUpdateValuation handles PUT /api/investments/{id}/valuation
func (h *Handler) HandleUpdateValuation(w http.ResponseWriter, r *http.Request) {
	var req valuationRequest
	if !h.decode(w, r, &req) {
		return
	}
	value, err := utils.ParseAmount(req.CurrentValue)
	if err != nil {
		h.writeError(w, err)
		return
	}

	inv, err := h.service.UpdateValuation(r.Context(), chi.URLParam(r, "id"), value)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeData(w, http.StatusOK, inv)
}

func (h *Handler) requireAccountID(w http.ResponseWriter, r *http.Request) (string, bool) {
	accountID := r.URL.Query().Get("accountId")
	if accountID == "" {
		utils.WriteBadRequest(w, "accountId is required", h.log)
		return "", false
	}
	return accountID, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := utils.DecodeJSON(r, dst); err != nil {
		utils.WriteBadRequest(w, err.Error(), h.log)
		return false
	}
	return true
}

func (h *Handler) writeData(w http.ResponseWriter, status int, data interface{}) {
	utils.WriteData(w, status, data, h.log)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	utils.WriteError(w, err, h.log)
}
