package domain

import "time"

// DeploymentStatus represents the current production state of a strategy.
// At most one document per strategy_id in the deployment_status collection.
type DeploymentStatus struct {
	StrategyID        string
	Deployed          bool
	Slot              string // exclusive production slot, e.g. one live capital allocation
	Environment       string // environment tag, e.g. "paper", "prod"
	DeployedAt        time.Time
	LastHealthCheckAt time.Time
	RolledBack        bool // set when the last release was a rollback
	SchemaVersion     int
}

// PerformanceSample is one time-series sample of a deployed strategy's live
// performance. Keyed {strategy_id}_{sampled_at} in the performance_metrics
// collection; append-only and unbounded, so reads must page.
type PerformanceSample struct {
	StrategyID    string
	Metrics       map[string]float64
	SampledAt     time.Time
	SchemaVersion int
}
