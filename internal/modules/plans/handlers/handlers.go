// Package handlers provides HTTP handlers for saved plans.
package handlers

import (
	"net/http"

	"github.com/aristath/brickvault/internal/domain"
	"github.com/aristath/brickvault/internal/modules/plans"
	"github.com/aristath/brickvault/internal/utils"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles saved plan HTTP requests
type Handler struct {
	store *plans.Store
	log   zerolog.Logger
}

// NewHandler creates a new plans handler
func NewHandler(store *plans.Store, log zerolog.Logger) *Handler {
	return &Handler{
		store: store,
		log:   log.With().Str("handler", "plans").Logger(),
	}
}

type saveRequest struct {
	AccountID string                `json:"accountId"`
	Plan      domain.InvestmentPlan `json:"plan"`
}

// RegisterRoutes registers saved plan routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/plans", func(r chi.Router) {
		r.Post("/", h.HandleSave)
		r.Get("/", h.HandleList)
		r.Delete("/", h.HandleClear)
		r.Get("/{id}", h.HandleGet)
		r.Delete("/{id}", h.HandleDelete)
	})
}

// HandleSave handles POST /api/plans
func (h *Handler) HandleSave(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteBadRequest(w, err.Error(), h.log)
		return
	}
	if req.AccountID == "" {
		utils.WriteBadRequest(w, "accountId is required", h.log)
		return
	}

	saved, err := h.store.Save(r.Context(), req.AccountID, req.Plan)
	if err != nil {
		utils.WriteError(w, err, h.log)
		return
	}
	utils.WriteData(w, http.StatusCreated, saved, h.log)
}

// HandleList handles GET /api/plans?accountId=
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("accountId")
	if accountID == "" {
		utils.WriteBadRequest(w, "accountId is required", h.log)
		return
	}

	list, err := h.store.List(r.Context(), accountID)
	if err != nil {
		utils.WriteError(w, err, h.log)
		return
	}
	utils.WriteData(w, http.StatusOK, list, h.log)
}

// HandleGet handles GET /api/plans/{id}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	saved, err := h.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		utils.WriteError(w, err, h.log)
		return
	}
	utils.WriteData(w, http.StatusOK, saved, h.log)
}

// HandleDelete handles DELETE /api/plans/{id}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.Delete(r.Context(), id); err != nil {
		utils.WriteError(w, err, h.log)
		return
	}
	utils.WriteData(w, http.StatusOK, map[string]interface{}{"deleted": id}, h.log)
}

// HandleClear handles DELETE /api/plans?accountId=
func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("accountId")
	if accountID == "" {
		utils.WriteBadRequest(w, "accountId is required", h.log)
		return
	}

	removed, err := h.store.Clear(r.Context(), accountID)
	if err != nil {
		utils.WriteError(w, err, h.log)
		return
	}
	utils.WriteData(w, http.StatusOK, map[string]interface{}{"removed": removed}, h.log)
}
