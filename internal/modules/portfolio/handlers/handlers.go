// Package handlers provides HTTP handlers for the portfolio summary.
package handlers

import (
	"net/http"

	"github.com/aristath/brickvault/internal/modules/portfolio"
	"github.com/aristath/brickvault/internal/utils"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles portfolio HTTP requests
type Handler struct {
	service *portfolio.Service
	log     zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(service *portfolio.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "portfolio").Logger(),
	}
}

// RegisterRoutes registers portfolio routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/portfolio", func(r chi.Router) {
		r.Get("/summary", h.HandleGetSummary)
	})
}

// HandleGetSummary handles GET /api/portfolio/summary?accountId=
func (h *Handler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("accountId")
	if accountID == "" {
		utils.WriteBadRequest(w, "accountId is required", h.log)
		return
	}

	summary, err := h.service.Summary(r.Context(), accountID)
	if err != nil {
		utils.WriteError(w, err, h.log)
		return
	}
	utils.WriteData(w, http.StatusOK, summary, h.log)
}
