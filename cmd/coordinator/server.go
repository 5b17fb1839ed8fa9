package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"strategy-lifecycle-lab/internal/docstore"
	"strategy-lifecycle-lab/internal/domain"
	"strategy-lifecycle-lab/internal/lifecycle"
)

// server exposes the coordinator over HTTP/JSON.
type server struct {
	coordinator *lifecycle.Coordinator
	logger      *slog.Logger
}

func newServer(c *lifecycle.Coordinator, logger *slog.Logger) *server {
	return &server{coordinator: c, logger: logger}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /v1/strategies", s.handleRegister)
	mux.HandleFunc("GET /v1/strategies", s.handleList)
	mux.HandleFunc("GET /v1/strategies/{id}", s.handleFetch)
	mux.HandleFunc("GET /v1/strategies/{id}/history", s.handleHistory)
	mux.HandleFunc("POST /v1/strategies/{id}/advance", s.handleAdvance)
	mux.HandleFunc("POST /v1/strategies/{id}/backtests", s.handleRecordBacktest)
	mux.HandleFunc("POST /v1/strategies/{id}/training-logs", s.handleRecordTraining)
	mux.HandleFunc("PUT /v1/strategies/{id}/deployment", s.handleSetDeployment)
	mux.HandleFunc("POST /v1/strategies/{id}/deployment/heartbeat", s.handleHeartbeat)
	mux.HandleFunc("POST /v1/strategies/{id}/performance", s.handleRecordSample)
	mux.HandleFunc("GET /v1/strategies/{id}/performance", s.handleListSamples)

	return mux
}

// strategyResponse is the JSON shape of a strategy record.
type strategyResponse struct {
	StrategyID     string         `json:"strategy_id"`
	Creator        string         `json:"creator"`
	Definition     map[string]any `json:"strategy_definition"`
	Stage          string         `json:"stage"`
	CreatedAt      time.Time      `json:"created_at"`
	StageUpdatedAt time.Time      `json:"stage_updated_at"`
}

func toStrategyResponse(s *domain.Strategy) strategyResponse {
	return strategyResponse{
		StrategyID:     s.StrategyID,
		Creator:        s.Creator,
		Definition:     s.Definition,
		Stage:          string(s.Stage),
		CreatedAt:      s.CreatedAt,
		StageUpdatedAt: s.StageUpdatedAt,
	}
}

func (s *server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StrategyID string         `json:"strategy_id"`
		Creator    string         `json:"creator"`
		Definition map[string]any `json:"strategy_definition"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	strategy := &domain.Strategy{
		StrategyID: req.StrategyID,
		Creator:    req.Creator,
		Definition: req.Definition,
	}
	if err := s.coordinator.RegisterStrategy(r.Context(), strategy); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toStrategyResponse(strategy))
}

func (s *server) handleFetch(w http.ResponseWriter, r *http.Request) {
	strategy, err := s.coordinator.FetchStrategy(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toStrategyResponse(strategy))
}

func (s *server) handleList(w http.ResponseWriter, r *http.Request) {
	stage := domain.Stage(r.URL.Query().Get("stage"))
	cursor := r.URL.Query().Get("cursor")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	strategies, next, err := s.coordinator.ListStrategies(r.Context(), stage, cursor, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := struct {
		Strategies []strategyResponse `json:"strategies"`
		NextCursor string             `json:"next_cursor,omitempty"`
	}{Strategies: make([]strategyResponse, 0, len(strategies)), NextCursor: next}
	for _, strategy := range strategies {
		resp.Strategies = append(resp.Strategies, toStrategyResponse(strategy))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		From string `json:"from"`
		To   string `json:"to"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	id := r.PathValue("id")
	err := s.coordinator.AdvanceStage(r.Context(), id, domain.Stage(req.From), domain.Stage(req.To))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"strategy_id": id, "stage": req.To})
}

func (s *server) handleRecordBacktest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RunID       int64              `json:"run_id"`
		Metrics     map[string]float64 `json:"metrics"`
		RangeStart  time.Time          `json:"range_start"`
		RangeEnd    time.Time          `json:"range_end"`
		CompletedAt time.Time          `json:"completed_at"`
		Passed      bool               `json:"passed"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	result := &domain.BacktestResult{
		StrategyID:  r.PathValue("id"),
		RunID:       req.RunID,
		Metrics:     req.Metrics,
		RangeStart:  req.RangeStart,
		RangeEnd:    req.RangeEnd,
		CompletedAt: req.CompletedAt,
		Passed:      req.Passed,
	}
	if err := s.coordinator.RecordBacktestResult(r.Context(), result); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *server) handleRecordTraining(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID   int64     `json:"session_id"`
		Episodes    int64     `json:"episodes"`
		Steps       int64     `json:"steps"`
		MeanReward  float64   `json:"mean_reward"`
		FinalReward float64   `json:"final_reward"`
		StartedAt   time.Time `json:"started_at"`
		EndedAt     time.Time `json:"ended_at"`
		Converged   bool      `json:"converged"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	log := &domain.TrainingLog{
		StrategyID:  r.PathValue("id"),
		SessionID:   req.SessionID,
		Episodes:    req.Episodes,
		Steps:       req.Steps,
		MeanReward:  req.MeanReward,
		FinalReward: req.FinalReward,
		StartedAt:   req.StartedAt,
		EndedAt:     req.EndedAt,
		Converged:   req.Converged,
	}
	if err := s.coordinator.RecordTrainingLog(r.Context(), log); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *server) handleSetDeployment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Deploy      bool   `json:"deploy"`
		Slot        string `json:"slot"`
		Environment string `json:"environment"`
		Rollback    bool   `json:"rollback"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	err := s.coordinator.SetDeployment(r.Context(), lifecycle.DeployRequest{
		StrategyID:  r.PathValue("id"),
		Deploy:      req.Deploy,
		Slot:        req.Slot,
		Environment: req.Environment,
		Rollback:    req.Rollback,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	if err := s.coordinator.TouchDeployment(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *server) handleRecordSample(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Metrics   map[string]float64 `json:"metrics"`
		SampledAt time.Time          `json:"sampled_at"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	sample := &domain.PerformanceSample{
		StrategyID: r.PathValue("id"),
		Metrics:    req.Metrics,
		SampledAt:  req.SampledAt,
	}
	if err := s.coordinator.RecordPerformanceSample(r.Context(), sample); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *server) handleHistory(w http.ResponseWriter, r *http.Request) {
	h, err := s.coordinator.FetchHistory(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := struct {
		Strategy        strategyResponse         `json:"strategy"`
		BacktestResults []*domain.BacktestResult `json:"backtest_results"`
		TrainingLogs    []*domain.TrainingLog    `json:"rl_training_logs"`
		Deployment      *domain.DeploymentStatus `json:"deployment_status,omitempty"`
	}{
		Strategy:        toStrategyResponse(h.Strategy),
		BacktestResults: h.BacktestResults,
		TrainingLogs:    h.TrainingLogs,
		Deployment:      h.Deployment,
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleListSamples(w http.ResponseWriter, r *http.Request) {
	cursor := r.URL.Query().Get("cursor")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	samples, next, err := s.coordinator.ListPerformanceSamples(r.Context(), r.PathValue("id"), cursor, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := struct {
		Samples    []*domain.PerformanceSample `json:"samples"`
		NextCursor string                      `json:"next_cursor,omitempty"`
	}{Samples: samples, NextCursor: next}
	s.writeJSON(w, http.StatusOK, resp)
}

// decode parses the JSON request body. On failure it writes a 400 response
// and returns false.
func (s *server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	return true
}

func (s *server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// writeError maps coordinator errors onto HTTP statuses. Conflict-class
// failures (duplicates, lost races, held slots) all map to 409 so clients
// can uniformly refetch and retry.
func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, lifecycle.ErrDuplicateID),
		errors.Is(err, lifecycle.ErrInvalidTransition),
		errors.Is(err, lifecycle.ErrConcurrentModification),
		errors.Is(err, lifecycle.ErrSlotConflict):
		status = http.StatusConflict
	case errors.Is(err, lifecycle.ErrNotDeployed):
		status = http.StatusPreconditionFailed
	case errors.Is(err, docstore.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, docstore.ErrPermissionDenied):
		status = http.StatusForbidden
	case errors.Is(err, docstore.ErrUnavailable):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
