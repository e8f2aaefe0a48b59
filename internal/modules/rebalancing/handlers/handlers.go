// Package handlers provides HTTP handlers for rebalance computation and
// run history.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/rebalancer/internal/domain"
	"github.com/aristath/rebalancer/internal/modules/allocation"
	"github.com/aristath/rebalancer/internal/modules/history"
	"github.com/aristath/rebalancer/internal/modules/portfolio"
	"github.com/aristath/rebalancer/internal/modules/rebalancing"
)

// Handler handles rebalance HTTP requests
type Handler struct {
	rebalancer  *rebalancing.Service
	allocations *allocation.Service
	portfolios  *portfolio.Service
	runs        *history.Repository
	log         zerolog.Logger
}

// NewHandler creates a new rebalance handler
func NewHandler(
	rebalancer *rebalancing.Service,
	allocations *allocation.Service,
	portfolios *portfolio.Service,
	runs *history.Repository,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		rebalancer:  rebalancer,
		allocations: allocations,
		portfolios:  portfolios,
		runs:        runs,
		log:         log.With().Str("handler", "rebalancing").Logger(),
	}
}

// RegisterRoutes registers rebalance routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.HandleRebalance)
	r.Get("/history", h.HandleListRuns)
	r.Get("/history/{runID}", h.HandleGetRun)
}

// rebalanceRequest selects the target, strategy and strategy knobs for one
// run. Either a stored fund id or an inline allocation must be given.
type rebalanceRequest struct {
	Fund       string            `json:"fund,omitempty"`
	Allocation map[string]string `json:"allocation,omitempty"`
	Strategy   string            `json:"strategy"`
	Tolerance  string            `json:"tolerance,omitempty"`
	ExtraCash  string            `json:"extra_cash,omitempty"`
}

// HandleRebalance computes orders for the stored portfolio against a target
// allocation, saves the run, and returns the orders with the projected
// post-trade portfolio
func (h *Handler) HandleRebalance(w http.ResponseWriter, r *http.Request) {
	var req rebalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Fund == "" && len(req.Allocation) == 0 {
		h.writeError(w, http.StatusBadRequest, "Either fund or allocation is required")
		return
	}
	if req.Fund != "" && len(req.Allocation) > 0 {
		h.writeError(w, http.StatusBadRequest, "fund and allocation are mutually exclusive")
		return
	}

	opts := rebalancing.Options{Strategy: rebalancing.StrategyName(req.Strategy)}
	if req.Tolerance != "" {
		tol, err := decimal.NewFromString(req.Tolerance)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid tolerance")
			return
		}
		opts.Tolerance = tol
	}
	if req.ExtraCash != "" {
		cash, err := decimal.NewFromString(req.ExtraCash)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid extra_cash")
			return
		}
		opts.ExtraCash = cash
	}

	var target domain.TargetAllocation
	fundLabel := req.Fund
	if req.Fund != "" {
		var err error
		target, err = h.allocations.Target(req.Fund)
		if err != nil {
			if errors.Is(err, allocation.ErrFundNotFound) {
				h.writeError(w, http.StatusNotFound, err.Error())
				return
			}
			h.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	} else {
		weights := make(map[string]decimal.Decimal, len(req.Allocation))
		for symbol, raw := range req.Allocation {
			w8, err := decimal.NewFromString(raw)
			if err != nil {
				h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid weight %q for %s", raw, symbol))
				return
			}
			weights[symbol] = w8
		}
		var err error
		target, err = domain.NewTargetAllocation(weights)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		fundLabel = "custom"
	}

	snapshot, err := h.portfolios.Snapshot(target)
	if err != nil {
		if errors.Is(err, domain.ErrMissingPrice) {
			h.writeError(w, http.StatusConflict, err.Error())
			return
		}
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	result, err := h.rebalancer.Rebalance(snapshot, opts)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTolerance) || errors.Is(err, rebalancing.ErrUnknownStrategy) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	runID, err := h.runs.Save(runFromResult(fundLabel, opts, snapshot, result))
	if err != nil {
		// A failed save must not hide a good result
		h.log.Error().Err(err).Msg("Failed to save rebalance run")
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":          runID,
		"fund":            fundLabel,
		"strategy":        result.Strategy,
		"orders":          result.Orders,
		"used_fallback":   result.UsedFallback,
		"fallback_reason": result.FallbackReason,
		"total_value":     snapshot.TotalValue(),
		"projected":       projectedView(result.Projected),
	})
}

// projectedHolding is the post-trade view of one position
type projectedHolding struct {
	Symbol   string          `json:"symbol"`
	Quantity int64           `json:"quantity"`
	Value    decimal.Decimal `json:"value"`
	Weight   decimal.Decimal `json:"weight"`
}

func projectedView(p *domain.Portfolio) map[string]interface{} {
	if p == nil {
		return nil
	}

	weights := p.CurrentAllocation()
	holdings := make([]projectedHolding, 0, len(p.Holdings()))
	for _, stock := range p.Holdings() {
		holdings = append(holdings, projectedHolding{
			Symbol:   stock.Symbol,
			Quantity: stock.Quantity,
			Value:    stock.MarketValue(),
			Weight:   weights[stock.Symbol],
		})
	}

	return map[string]interface{}{
		"total_value": p.TotalValue(),
		"holdings":    holdings,
	}
}

// HandleListRuns returns recent rebalance runs, newest first
func (h *Handler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			h.writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = parsed
	}

	runs, err := h.runs.List(limit)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"runs": runs,
	})
}

// HandleGetRun returns one stored run with its full order list
func (h *Handler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	run, err := h.runs.Get(runID)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if run == nil {
		h.writeError(w, http.StatusNotFound, "Run not found")
		return
	}

	h.writeJSON(w, http.StatusOK, run)
}

func runFromResult(fund string, opts rebalancing.Options, snapshot *domain.Portfolio, result *rebalancing.Result) history.Run {
	orders := make([]history.OrderRecord, 0, len(result.Orders))
	for _, order := range result.Orders {
		orders = append(orders, history.OrderRecord{
			Action:           string(order.Action),
			Symbol:           order.Symbol,
			Shares:           order.Shares,
			DollarAmount:     order.DollarAmount,
			TargetDollars:    order.TargetDollars,
			DeviationDollars: order.DeviationDollars,
		})
	}

	return history.Run{
		Fund:           fund,
		Strategy:       string(result.Strategy),
		Tolerance:      opts.Tolerance,
		ExtraCash:      opts.ExtraCash,
		UsedFallback:   result.UsedFallback,
		FallbackReason: result.FallbackReason,
		TotalValue:     snapshot.TotalValue(),
		Orders:         orders,
	}
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
