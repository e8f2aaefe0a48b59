package server

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/aristath/rebalancer/internal/modules/allocation"
	allocationhandlers "github.com/aristath/rebalancer/internal/modules/allocation/handlers"
	"github.com/aristath/rebalancer/internal/modules/history"
	"github.com/aristath/rebalancer/internal/modules/portfolio"
	portfoliohandlers "github.com/aristath/rebalancer/internal/modules/portfolio/handlers"
	"github.com/aristath/rebalancer/internal/modules/rebalancing"
	rebalancinghandlers "github.com/aristath/rebalancer/internal/modules/rebalancing/handlers"
	"github.com/aristath/rebalancer/internal/solver"
)

func newTestServer(t *testing.T) (*Server, *portfolio.Repository) {
	log := zerolog.Nop()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	allocationRepo := allocation.NewRepository(db, log)
	portfolioRepo := portfolio.NewRepository(db, log)
	historyRepo := history.NewRepository(db, log)
	require.NoError(t, allocationRepo.EnsureSchema())
	require.NoError(t, portfolioRepo.EnsureSchema())
	require.NoError(t, historyRepo.EnsureSchema())

	allocationService := allocation.NewService(allocationRepo, log)
	require.NoError(t, allocationService.EnsureDefaults(""))
	portfolioService := portfolio.NewService(portfolioRepo, log)
	rebalancingService := rebalancing.NewService(solver.NewBranchBound(log), log)

	srv := New(Config{
		Log:                log,
		Port:               0,
		AllocationHandlers: allocationhandlers.NewHandler(allocationService, nil, log),
		PortfolioHandlers:  portfoliohandlers.NewHandler(portfolioService, log),
		RebalancingHandlers: rebalancinghandlers.NewHandler(
			rebalancingService, allocationService, portfolioService, historyRepo, log),
	})
	return srv, portfolioRepo
}

func seedPrices(t *testing.T, repo *portfolio.Repository) {
	for symbol, price := range map[string]string{
		"BND": "73.90", "TIP": "110.25", "BLV": "69.17",
	} {
		require.NoError(t, repo.UpsertPrice(symbol, decimal.RequireFromString(price), "manual"))
	}
}

func doJSON(t *testing.T, srv *Server, method, path string, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestServer_ListFunds(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/funds", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Funds []allocation.Fund `json:"funds"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Funds, 4)
}

func TestServer_SyncUnavailableWithoutScraper(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/funds/risky-norris/sync", "")
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestServer_RebalanceEndToEnd(t *testing.T) {
	srv, repo := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPut, "/api/portfolio/positions",
		`{"positions":[{"symbol":"BND","quantity":100},{"symbol":"TIP","quantity":10}]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	// Rebalance without prices reports the conflict instead of guessing
	rec = doJSON(t, srv, http.MethodPost, "/api/rebalance",
		`{"fund":"very-conservative-streep","strategy":"simple"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	seedPrices(t, repo)

	rec = doJSON(t, srv, http.MethodPost, "/api/rebalance",
		`{"fund":"very-conservative-streep","strategy":"simple"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		RunID        string                   `json:"run_id"`
		Strategy     string                   `json:"strategy"`
		UsedFallback bool                     `json:"used_fallback"`
		Orders       []map[string]interface{} `json:"orders"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "simple", resp.Strategy)
	assert.False(t, resp.UsedFallback)
	assert.NotEmpty(t, resp.RunID)

	// The run is retrievable from history
	rec = doJSON(t, srv, http.MethodGet, "/api/rebalance/history/"+resp.RunID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var run history.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, "very-conservative-streep", run.Fund)

	rec = doJSON(t, srv, http.MethodGet, "/api/rebalance/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_HealthAlias(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_RebalanceInlineAllocation(t *testing.T) {
	srv, repo := newTestServer(t)
	seedPrices(t, repo)

	rec := doJSON(t, srv, http.MethodPut, "/api/portfolio/positions",
		`{"positions":[{"symbol":"BND","quantity":100},{"symbol":"TIP","quantity":10}]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/api/rebalance",
		`{"allocation":{"BND":"0.5","TIP":"0.5"},"strategy":"simple"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Fund      string                 `json:"fund"`
		Projected map[string]interface{} `json:"projected"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "custom", resp.Fund)
	assert.NotNil(t, resp.Projected)

	// Weights that don't sum to 1 are rejected up front
	rec = doJSON(t, srv, http.MethodPost, "/api/rebalance",
		`{"allocation":{"BND":"0.5","TIP":"0.4"},"strategy":"simple"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// fund and allocation together are ambiguous
	rec = doJSON(t, srv, http.MethodPost, "/api/rebalance",
		`{"fund":"moderate-pitt","allocation":{"BND":"1.0"}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_RebalanceUnknownFund(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/rebalance", `{"fund":"nope"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_RebalanceInvalidTolerance(t *testing.T) {
	srv, repo := newTestServer(t)
	seedPrices(t, repo)

	rec := doJSON(t, srv, http.MethodPut, "/api/portfolio/positions",
		`{"positions":[{"symbol":"BND","quantity":100}]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/api/rebalance",
		`{"fund":"very-conservative-streep","strategy":"trade_minimization","tolerance":"0.5"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
