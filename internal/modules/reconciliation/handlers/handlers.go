// Package handlers provides HTTP handlers for on-chain reconciliation.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/aristath/brickvault/internal/domain"
	"github.com/aristath/brickvault/internal/modules/reconciliation"
	"github.com/aristath/brickvault/internal/utils"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles reconciliation HTTP requests
type Handler struct {
	service *reconciliation.Service
	log     zerolog.Logger
}

// NewHandler creates a new reconciliation handler
func NewHandler(service *reconciliation.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "reconciliation").Logger(),
	}
}

// RegisterRoutes registers reconciliation routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/reconcile", h.HandleReconcile)
}

// HandleReconcile handles GET /api/reconcile
func (h *Handler) HandleReconcile(w http.ResponseWriter, r *http.Request) {
	req, err := parseRequest(r)
	if err != nil {
		utils.WriteError(w, err, h.log)
		return
	}

	report, err := h.service.Reconcile(r.Context(), req)
	if err != nil {
		utils.WriteError(w, err, h.log)
		return
	}
	utils.WriteData(w, http.StatusOK, report, h.log)
}

func parseRequest(r *http.Request) (reconciliation.Request, error) {
	q := r.URL.Query()
	req := reconciliation.Request{
		AccountID:       q.Get("accountId"),
		ContractAddress: q.Get("contractAddress"),
		WalletAddress:   q.Get("walletAddress"),
	}

	if raw := q.Get("chainId"); raw != "" {
		chainID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || chainID <= 0 {
			return req, fmt.Errorf("chainId %q must be a positive integer: %w", raw, domain.ErrInvalidAmount)
		}
		req.ChainID = chainID
	}

	// decimals has no default
	raw := q.Get("decimals")
	if raw == "" {
		return req, fmt.Errorf("decimals is required: %w", domain.ErrInvalidAmount)
	}
	decimals, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return req, fmt.Errorf("decimals %q must be an integer: %w", raw, domain.ErrInvalidAmount)
	}
	req.Decimals = int32(decimals)

	if raw := q.Get("tolerance"); raw != "" {
		tolerance, err := utils.ParseAmount(json.Number(raw))
		if err != nil {
			return req, fmt.Errorf("tolerance: %w", err)
		}
		req.Tolerance = &tolerance
	}

	return req, nil
}
