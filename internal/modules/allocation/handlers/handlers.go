// Package handlers provides HTTP handlers for fund allocation lookups.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/rebalancer/internal/modules/allocation"
)

// Handler handles fund allocation HTTP requests
type Handler struct {
	service *allocation.Service
	scraper allocation.Scraper
	log     zerolog.Logger
}

// NewHandler creates a new allocation handler.
// scraper may be nil; the sync endpoint then reports the feature unavailable.
func NewHandler(service *allocation.Service, scraper allocation.Scraper, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		scraper: scraper,
		log:     log.With().Str("handler", "allocation").Logger(),
	}
}

// RegisterRoutes registers fund routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleListFunds)
	r.Get("/{fundID}", h.HandleGetFund)
	r.Post("/{fundID}/sync", h.HandleSyncFund)
}

// HandleListFunds returns all stored funds with their weight tables
func (h *Handler) HandleListFunds(w http.ResponseWriter, r *http.Request) {
	funds, err := h.service.List()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"funds": funds,
	})
}

// HandleGetFund returns a single fund by id
func (h *Handler) HandleGetFund(w http.ResponseWriter, r *http.Request) {
	fundID := chi.URLParam(r, "fundID")

	fund, err := h.service.Get(fundID)
	if err != nil {
		if errors.Is(err, allocation.ErrFundNotFound) {
			h.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, fund)
}

// HandleSyncFund refreshes a fund's weights from its live fintual.cl page
func (h *Handler) HandleSyncFund(w http.ResponseWriter, r *http.Request) {
	if h.scraper == nil {
		h.writeError(w, http.StatusNotImplemented, "Allocation sync is not configured")
		return
	}

	fundID := chi.URLParam(r, "fundID")

	fund, err := h.service.SyncFromSite(h.scraper, fundID)
	if err != nil {
		if errors.Is(err, allocation.ErrFundNotFound) {
			h.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, fund)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
