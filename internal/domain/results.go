package domain

import "time"

// BacktestResult represents the outcome of one backtest run against a
// strategy. Documents are keyed {strategy_id}_{run_id} in the
// backtest_results collection and are immutable once written.
type BacktestResult struct {
	StrategyID    string
	RunID         int64              // monotonic per strategy, assigned by the backtester
	Metrics       map[string]float64 // return, drawdown, sharpe-like ratio, ...
	RangeStart    time.Time          // simulated time range
	RangeEnd      time.Time
	CompletedAt   time.Time
	Passed        bool // backtester's verdict, never recomputed downstream
	SchemaVersion int
}

// TrainingLog represents one RL training session's record.
// Documents are keyed {strategy_id}_{session_id} in the rl_training_logs
// collection, append-only.
type TrainingLog struct {
	StrategyID    string
	SessionID     int64
	Episodes      int64
	Steps         int64
	MeanReward    float64
	FinalReward   float64
	StartedAt     time.Time
	EndedAt       time.Time
	Converged     bool // trainer's verdict
	SchemaVersion int
}
