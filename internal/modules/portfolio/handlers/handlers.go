// Package handlers provides HTTP handlers for position and price management.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/rebalancer/internal/modules/portfolio"
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
	r.Get("/", h.HandleGetPortfolio)
	r.Put("/positions", h.HandleSetPositions)
}

// HandleGetPortfolio returns the stored positions with their latest prices
func (h *Handler) HandleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	positions, err := h.service.Positions()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	prices, err := h.service.Prices()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	type holding struct {
		Symbol   string `json:"symbol"`
		Quantity int64  `json:"quantity"`
		Price    string `json:"price,omitempty"`
		Value    string `json:"value,omitempty"`
	}

	holdings := make([]holding, 0, len(positions))
	for _, pos := range positions {
		entry := holding{Symbol: pos.Symbol, Quantity: pos.Quantity}
		if price, ok := prices[pos.Symbol]; ok {
			entry.Price = price.String()
			entry.Value = price.Mul(decimal.NewFromInt(pos.Quantity)).String()
		}
		holdings = append(holdings, entry)
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"holdings": holdings,
	})
}

// HandleSetPositions replaces the stored position set
func (h *Handler) HandleSetPositions(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Positions []struct {
			Symbol   string `json:"symbol"`
			Quantity int64  `json:"quantity"`
		} `json:"positions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	positions := make([]portfolio.Position, 0, len(req.Positions))
	for _, p := range req.Positions {
		if p.Symbol == "" {
			h.writeError(w, http.StatusBadRequest, "Position symbol is required")
			return
		}
		if p.Quantity < 0 {
			h.writeError(w, http.StatusBadRequest, "Position quantity cannot be negative")
			return
		}
		positions = append(positions, portfolio.Position{Symbol: p.Symbol, Quantity: p.Quantity})
	}

	if err := h.service.SetPositions(positions); err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"positions": len(positions),
	})
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
