// Package handlers provides HTTP handlers for the property catalog.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/aristath/brickvault/internal/domain"
	"github.com/aristath/brickvault/internal/modules/properties"
	"github.com/aristath/brickvault/internal/utils"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles property HTTP requests
type Handler struct {
	service *properties.Service
	log     zerolog.Logger
}

// NewHandler creates a new property handler
func NewHandler(service *properties.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "properties").Logger(),
	}
}

type createRequest struct {
	Title       string      `json:"title"`
	Location    string      `json:"location"`
	TokenPrice  json.Number `json:"tokenPrice"`
	ExpectedROI json.Number `json:"expectedROI"`
	RentalYield json.Number `json:"rentalYield"`
}

// RegisterRoutes registers property routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/properties", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Post("/", h.HandleCreate)
		r.Get("/{id}", h.HandleGet)
	})
}

// HandleList handles GET /api/properties
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		utils.WriteError(w, err, h.log)
		return
	}
	utils.WriteData(w, http.StatusOK, list, h.log)
}

// HandleGet handles GET /api/properties/{id}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		utils.WriteError(w, err, h.log)
		return
	}
	utils.WriteData(w, http.StatusOK, p, h.log)
}

// HandleCreate handles POST /api/properties
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteBadRequest(w, err.Error(), h.log)
		return
	}

	in := properties.CreateInput{Title: req.Title, Location: req.Location}
	var err error
	if in.TokenPrice, err = utils.ParseAmount(req.TokenPrice); err != nil {
		utils.WriteError(w, err, h.log)
		return
	}
	if in.ExpectedROI, err = utils.ParseDecimal(req.ExpectedROI, domain.RateScale); err != nil {
		utils.WriteError(w, err, h.log)
		return
	}
	if in.RentalYield, err = utils.ParseDecimal(req.RentalYield, domain.RateScale); err != nil {
		utils.WriteError(w, err, h.log)
		return
	}

	p, err := h.service.Create(r.Context(), in)
	if err != nil {
		utils.WriteError(w, err, h.log)
		return
	}
	utils.WriteData(w, http.StatusCreated, p, h.log)
}
