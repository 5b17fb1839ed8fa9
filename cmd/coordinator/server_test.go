package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"strategy-lifecycle-lab/internal/docstore/memory"
	"strategy-lifecycle-lab/internal/lifecycle"
)

func newTestHandler() http.Handler {
	coordinator := lifecycle.New(lifecycle.Options{Store: memory.New()})
	return newServer(coordinator, slog.New(slog.DiscardHandler)).routes()
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func registerViaAPI(t *testing.T, h http.Handler, id string) {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/v1/strategies", map[string]any{
		"strategy_id":         id,
		"creator":             "generator-1",
		"strategy_definition": map[string]any{"indicator": "rsi"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: status %d, body %s", id, rec.Code, rec.Body)
	}
}

func TestHealthEndpoint(t *testing.T) {
	h := newTestHandler()
	rec := doJSON(t, h, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
}

func TestRegisterEndpoint(t *testing.T) {
	h := newTestHandler()
	registerViaAPI(t, h, "s1")

	// Duplicate registration conflicts.
	rec := doJSON(t, h, http.MethodPost, "/v1/strategies", map[string]any{
		"strategy_id":         "s1",
		"creator":             "generator-2",
		"strategy_definition": map[string]any{"indicator": "macd"},
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate register status = %d, want 409", rec.Code)
	}

	// Missing definition is a bad request.
	rec = doJSON(t, h, http.MethodPost, "/v1/strategies", map[string]any{
		"strategy_id": "s2",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid register status = %d, want 400", rec.Code)
	}
}

func TestFetchEndpoint(t *testing.T) {
	h := newTestHandler()
	registerViaAPI(t, h, "s1")

	rec := doJSON(t, h, http.MethodGet, "/v1/strategies/s1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("fetch status = %d", rec.Code)
	}
	var resp strategyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Stage != "GENERATED" {
		t.Errorf("stage = %s, want GENERATED", resp.Stage)
	}

	rec = doJSON(t, h, http.MethodGet, "/v1/strategies/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing strategy status = %d, want 404", rec.Code)
	}
}

func TestAdvanceEndpoint(t *testing.T) {
	h := newTestHandler()
	registerViaAPI(t, h, "s1")

	rec := doJSON(t, h, http.MethodPost, "/v1/strategies/s1/advance",
		map[string]string{"from": "GENERATED", "to": "BACKTESTING"})
	if rec.Code != http.StatusOK {
		t.Fatalf("advance status = %d, body %s", rec.Code, rec.Body)
	}

	// A skip is rejected as a conflict.
	rec = doJSON(t, h, http.MethodPost, "/v1/strategies/s1/advance",
		map[string]string{"from": "BACKTESTING", "to": "DEPLOYED"})
	if rec.Code != http.StatusConflict {
		t.Errorf("invalid transition status = %d, want 409", rec.Code)
	}

	// Unknown stage values are bad requests.
	rec = doJSON(t, h, http.MethodPost, "/v1/strategies/s1/advance",
		map[string]string{"from": "BACKTESTING", "to": "SHIPPED"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown stage status = %d, want 400", rec.Code)
	}
}

func TestBacktestAndHistoryEndpoints(t *testing.T) {
	h := newTestHandler()
	registerViaAPI(t, h, "s1")

	rec := doJSON(t, h, http.MethodPost, "/v1/strategies/s1/backtests", map[string]any{
		"run_id":  1,
		"metrics": map[string]float64{"return": 0.2},
		"passed":  true,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("record backtest status = %d, body %s", rec.Code, rec.Body)
	}

	// Same run again conflicts.
	rec = doJSON(t, h, http.MethodPost, "/v1/strategies/s1/backtests", map[string]any{
		"run_id":  1,
		"metrics": map[string]float64{"return": 0.9},
		"passed":  false,
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate run status = %d, want 409", rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, "/v1/strategies/s1/history", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("history status = %d", rec.Code)
	}
	var hist struct {
		Strategy        strategyResponse `json:"strategy"`
		BacktestResults []struct {
			RunID int64 `json:"RunID"`
		} `json:"backtest_results"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &hist); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(hist.BacktestResults) != 1 {
		t.Errorf("history holds %d results, want 1", len(hist.BacktestResults))
	}
}

func TestDeploymentEndpoints(t *testing.T) {
	h := newTestHandler()
	registerViaAPI(t, h, "s1")
	registerViaAPI(t, h, "s2")

	rec := doJSON(t, h, http.MethodPut, "/v1/strategies/s1/deployment", map[string]any{
		"deploy":      true,
		"slot":        "prod-1",
		"environment": "prod",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("deploy status = %d, body %s", rec.Code, rec.Body)
	}

	// Slot held by s1: s2's claim conflicts.
	rec = doJSON(t, h, http.MethodPut, "/v1/strategies/s2/deployment", map[string]any{
		"deploy": true,
		"slot":   "prod-1",
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("contested claim status = %d, want 409", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/v1/strategies/s1/deployment/heartbeat", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("heartbeat status = %d", rec.Code)
	}

	// Samples require a live deployment.
	rec = doJSON(t, h, http.MethodPost, "/v1/strategies/s1/performance", map[string]any{
		"metrics": map[string]float64{"pnl": 10.5},
	})
	if rec.Code != http.StatusCreated {
		t.Errorf("record sample status = %d, body %s", rec.Code, rec.Body)
	}
	rec = doJSON(t, h, http.MethodPost, "/v1/strategies/s2/performance", map[string]any{
		"metrics": map[string]float64{"pnl": 1.0},
	})
	if rec.Code != http.StatusPreconditionFailed {
		t.Errorf("undeployed sample status = %d, want 412", rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, "/v1/strategies/s1/performance?limit=10", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list samples status = %d", rec.Code)
	}

	// Release, then s2 can claim.
	rec = doJSON(t, h, http.MethodPut, "/v1/strategies/s1/deployment", map[string]any{
		"deploy": false,
		"slot":   "prod-1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("release status = %d, body %s", rec.Code, rec.Body)
	}
	rec = doJSON(t, h, http.MethodPut, "/v1/strategies/s2/deployment", map[string]any{
		"deploy": true,
		"slot":   "prod-1",
	})
	if rec.Code != http.StatusOK {
		t.Errorf("claim after release status = %d, want 200", rec.Code)
	}
}

func TestListEndpoint(t *testing.T) {
	h := newTestHandler()
	for i := 0; i < 3; i++ {
		registerViaAPI(t, h, fmt.Sprintf("s%d", i))
	}

	rec := doJSON(t, h, http.MethodGet, "/v1/strategies?stage=GENERATED", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var resp struct {
		Strategies []strategyResponse `json:"strategies"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(resp.Strategies) != 3 {
		t.Errorf("listed %d strategies, want 3", len(resp.Strategies))
	}

	rec = doJSON(t, h, http.MethodGet, "/v1/strategies?stage=SHIPPED", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad filter status = %d, want 400", rec.Code)
	}
}
