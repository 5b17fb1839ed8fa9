package lifecycle

import (
	"fmt"
	"time"

	"strategy-lifecycle-lab/internal/docstore"
	"strategy-lifecycle-lab/internal/domain"
)

// Canonical document field names. The layout is versioned through
// schema_version on every document so fields can be added later without
// breaking older readers.
const (
	fieldStrategyID    = "strategy_id"
	fieldSchemaVersion = "schema_version"

	// strategies
	fieldDefinition     = "strategy_definition"
	fieldCreator        = "creator"
	fieldCreatedAt      = "created_at"
	fieldStage          = "stage"
	fieldStageUpdatedAt = "stage_updated_at"

	// backtest_results
	fieldRunID       = "run_id"
	fieldMetrics     = "metrics"
	fieldRangeStart  = "range_start"
	fieldRangeEnd    = "range_end"
	fieldCompletedAt = "completed_at"
	fieldPassed      = "passed"

	// rl_training_logs
	fieldSessionID   = "session_id"
	fieldEpisodes    = "episodes"
	fieldSteps       = "steps"
	fieldMeanReward  = "mean_reward"
	fieldFinalReward = "final_reward"
	fieldStartedAt   = "started_at"
	fieldEndedAt     = "ended_at"
	fieldConverged   = "converged"

	// deployment_status
	fieldDeployed      = "deployed"
	fieldSlot          = "slot"
	fieldEnvironment   = "environment"
	fieldDeployedAt    = "deployed_at"
	fieldLastHealthAt  = "last_health_check_at"
	fieldRolledBack    = "rolled_back"
	fieldHolder        = "holder" // slot claim documents only

	// performance_metrics
	fieldSampledAt = "sampled_at"
)

// slotDocPrefix marks slot claim documents inside deployment_status; the
// prefix keeps them apart from per-strategy documents, same convention as
// bootstrap sentinels.
const slotDocPrefix = "slot::"

func backtestDocID(strategyID string, runID int64) string {
	// Zero-padded so document-ID order matches run order.
	return fmt.Sprintf("%s_%06d", strategyID, runID)
}

func trainingDocID(strategyID string, sessionID int64) string {
	return fmt.Sprintf("%s_%06d", strategyID, sessionID)
}

func sampleDocID(strategyID string, sampledAt time.Time) string {
	// Nanosecond epoch, zero-padded: lexicographic order is time order, so
	// cursor paging walks samples chronologically.
	return fmt.Sprintf("%s_%020d", strategyID, sampledAt.UTC().UnixNano())
}

func slotDocID(slot string) string {
	return slotDocPrefix + slot
}

func encodeTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func decodeTime(v any) (time.Time, error) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: timestamp field is %T, want string", docstore.ErrInvalidArgument, v)
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: parse timestamp %q: %v", docstore.ErrInvalidArgument, s, err)
	}
	return t, nil
}

// decodeInt tolerates the numeric types different backends hand back:
// Firestore returns int64, the JSONB backend float64.
func decodeInt(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("%w: numeric field is %T", docstore.ErrInvalidArgument, v)
	}
}

func decodeFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int64:
		return float64(n), nil
	case int:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("%w: numeric field is %T", docstore.ErrInvalidArgument, v)
	}
}

func decodeMetrics(v any) (map[string]float64, error) {
	raw, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: metrics field is %T, want map", docstore.ErrInvalidArgument, v)
	}
	out := make(map[string]float64, len(raw))
	for name, value := range raw {
		f, err := decodeFloat(value)
		if err != nil {
			return nil, fmt.Errorf("metric %q: %w", name, err)
		}
		out[name] = f
	}
	return out, nil
}

func encodeMetrics(m map[string]float64) map[string]any {
	out := make(map[string]any, len(m))
	for name, value := range m {
		out[name] = value
	}
	return out
}

func encodeStrategy(s *domain.Strategy) map[string]any {
	return map[string]any{
		fieldStrategyID:     s.StrategyID,
		fieldDefinition:     s.Definition,
		fieldCreator:        s.Creator,
		fieldCreatedAt:      encodeTime(s.CreatedAt),
		fieldStage:          string(s.Stage),
		fieldStageUpdatedAt: encodeTime(s.StageUpdatedAt),
		fieldSchemaVersion:  domain.SchemaVersion,
	}
}

func decodeStrategy(id string, fields map[string]any) (*domain.Strategy, error) {
	s := &domain.Strategy{}

	sid, _ := fields[fieldStrategyID].(string)
	if sid == "" || sid != id {
		return nil, fmt.Errorf("%w: strategy document %s missing or mismatched strategy_id", docstore.ErrInvalidArgument, id)
	}
	s.StrategyID = sid

	stage, _ := fields[fieldStage].(string)
	if !domain.ValidStage(domain.Stage(stage)) {
		return nil, fmt.Errorf("%w: strategy %s carries unrecognized stage %q", docstore.ErrInvalidArgument, id, stage)
	}
	s.Stage = domain.Stage(stage)

	s.Definition, _ = fields[fieldDefinition].(map[string]any)
	s.Creator, _ = fields[fieldCreator].(string)

	var err error
	if s.CreatedAt, err = decodeTime(fields[fieldCreatedAt]); err != nil {
		return nil, fmt.Errorf("strategy %s created_at: %w", id, err)
	}
	if s.StageUpdatedAt, err = decodeTime(fields[fieldStageUpdatedAt]); err != nil {
		return nil, fmt.Errorf("strategy %s stage_updated_at: %w", id, err)
	}
	version, err := decodeInt(fields[fieldSchemaVersion])
	if err != nil {
		return nil, fmt.Errorf("strategy %s schema_version: %w", id, err)
	}
	s.SchemaVersion = int(version)

	return s, nil
}

func encodeBacktestResult(r *domain.BacktestResult) map[string]any {
	return map[string]any{
		fieldStrategyID:    r.StrategyID,
		fieldRunID:         r.RunID,
		fieldMetrics:       encodeMetrics(r.Metrics),
		fieldRangeStart:    encodeTime(r.RangeStart),
		fieldRangeEnd:      encodeTime(r.RangeEnd),
		fieldCompletedAt:   encodeTime(r.CompletedAt),
		fieldPassed:        r.Passed,
		fieldSchemaVersion: domain.SchemaVersion,
	}
}

func decodeBacktestResult(fields map[string]any) (*domain.BacktestResult, error) {
	r := &domain.BacktestResult{}

	r.StrategyID, _ = fields[fieldStrategyID].(string)
	if r.StrategyID == "" {
		return nil, fmt.Errorf("%w: backtest result missing strategy_id", docstore.ErrInvalidArgument)
	}

	var err error
	if r.RunID, err = decodeInt(fields[fieldRunID]); err != nil {
		return nil, fmt.Errorf("backtest run_id: %w", err)
	}
	if r.Metrics, err = decodeMetrics(fields[fieldMetrics]); err != nil {
		return nil, fmt.Errorf("backtest metrics: %w", err)
	}
	if r.RangeStart, err = decodeTime(fields[fieldRangeStart]); err != nil {
		return nil, fmt.Errorf("backtest range_start: %w", err)
	}
	if r.RangeEnd, err = decodeTime(fields[fieldRangeEnd]); err != nil {
		return nil, fmt.Errorf("backtest range_end: %w", err)
	}
	if r.CompletedAt, err = decodeTime(fields[fieldCompletedAt]); err != nil {
		return nil, fmt.Errorf("backtest completed_at: %w", err)
	}
	r.Passed, _ = fields[fieldPassed].(bool)

	version, err := decodeInt(fields[fieldSchemaVersion])
	if err != nil {
		return nil, fmt.Errorf("backtest schema_version: %w", err)
	}
	r.SchemaVersion = int(version)

	return r, nil
}

func encodeTrainingLog(l *domain.TrainingLog) map[string]any {
	return map[string]any{
		fieldStrategyID:    l.StrategyID,
		fieldSessionID:     l.SessionID,
		fieldEpisodes:      l.Episodes,
		fieldSteps:         l.Steps,
		fieldMeanReward:    l.MeanReward,
		fieldFinalReward:   l.FinalReward,
		fieldStartedAt:     encodeTime(l.StartedAt),
		fieldEndedAt:       encodeTime(l.EndedAt),
		fieldConverged:     l.Converged,
		fieldSchemaVersion: domain.SchemaVersion,
	}
}

func decodeTrainingLog(fields map[string]any) (*domain.TrainingLog, error) {
	l := &domain.TrainingLog{}

	l.StrategyID, _ = fields[fieldStrategyID].(string)
	if l.StrategyID == "" {
		return nil, fmt.Errorf("%w: training log missing strategy_id", docstore.ErrInvalidArgument)
	}

	var err error
	if l.SessionID, err = decodeInt(fields[fieldSessionID]); err != nil {
		return nil, fmt.Errorf("training session_id: %w", err)
	}
	if l.Episodes, err = decodeInt(fields[fieldEpisodes]); err != nil {
		return nil, fmt.Errorf("training episodes: %w", err)
	}
	if l.Steps, err = decodeInt(fields[fieldSteps]); err != nil {
		return nil, fmt.Errorf("training steps: %w", err)
	}
	if l.MeanReward, err = decodeFloat(fields[fieldMeanReward]); err != nil {
		return nil, fmt.Errorf("training mean_reward: %w", err)
	}
	if l.FinalReward, err = decodeFloat(fields[fieldFinalReward]); err != nil {
		return nil, fmt.Errorf("training final_reward: %w", err)
	}
	if l.StartedAt, err = decodeTime(fields[fieldStartedAt]); err != nil {
		return nil, fmt.Errorf("training started_at: %w", err)
	}
	if l.EndedAt, err = decodeTime(fields[fieldEndedAt]); err != nil {
		return nil, fmt.Errorf("training ended_at: %w", err)
	}
	l.Converged, _ = fields[fieldConverged].(bool)

	version, err := decodeInt(fields[fieldSchemaVersion])
	if err != nil {
		return nil, fmt.Errorf("training schema_version: %w", err)
	}
	l.SchemaVersion = int(version)

	return l, nil
}

func encodeDeploymentStatus(d *domain.DeploymentStatus) map[string]any {
	return map[string]any{
		fieldStrategyID:    d.StrategyID,
		fieldDeployed:      d.Deployed,
		fieldSlot:          d.Slot,
		fieldEnvironment:   d.Environment,
		fieldDeployedAt:    encodeTime(d.DeployedAt),
		fieldLastHealthAt:  encodeTime(d.LastHealthCheckAt),
		fieldRolledBack:    d.RolledBack,
		fieldSchemaVersion: domain.SchemaVersion,
	}
}

func decodeDeploymentStatus(fields map[string]any) (*domain.DeploymentStatus, error) {
	d := &domain.DeploymentStatus{}

	d.StrategyID, _ = fields[fieldStrategyID].(string)
	if d.StrategyID == "" {
		return nil, fmt.Errorf("%w: deployment status missing strategy_id", docstore.ErrInvalidArgument)
	}

	d.Deployed, _ = fields[fieldDeployed].(bool)
	d.Slot, _ = fields[fieldSlot].(string)
	d.Environment, _ = fields[fieldEnvironment].(string)
	d.RolledBack, _ = fields[fieldRolledBack].(bool)

	var err error
	if d.DeployedAt, err = decodeTime(fields[fieldDeployedAt]); err != nil {
		return nil, fmt.Errorf("deployment deployed_at: %w", err)
	}
	if d.LastHealthCheckAt, err = decodeTime(fields[fieldLastHealthAt]); err != nil {
		return nil, fmt.Errorf("deployment last_health_check_at: %w", err)
	}
	version, err := decodeInt(fields[fieldSchemaVersion])
	if err != nil {
		return nil, fmt.Errorf("deployment schema_version: %w", err)
	}
	d.SchemaVersion = int(version)

	return d, nil
}

func encodePerformanceSample(p *domain.PerformanceSample) map[string]any {
	return map[string]any{
		fieldStrategyID:    p.StrategyID,
		fieldMetrics:       encodeMetrics(p.Metrics),
		fieldSampledAt:     encodeTime(p.SampledAt),
		fieldSchemaVersion: domain.SchemaVersion,
	}
}

func decodePerformanceSample(fields map[string]any) (*domain.PerformanceSample, error) {
	p := &domain.PerformanceSample{}

	p.StrategyID, _ = fields[fieldStrategyID].(string)
	if p.StrategyID == "" {
		return nil, fmt.Errorf("%w: performance sample missing strategy_id", docstore.ErrInvalidArgument)
	}

	var err error
	if p.Metrics, err = decodeMetrics(fields[fieldMetrics]); err != nil {
		return nil, fmt.Errorf("sample metrics: %w", err)
	}
	if p.SampledAt, err = decodeTime(fields[fieldSampledAt]); err != nil {
		return nil, fmt.Errorf("sample sampled_at: %w", err)
	}
	version, err := decodeInt(fields[fieldSchemaVersion])
	if err != nil {
		return nil, fmt.Errorf("sample schema_version: %w", err)
	}
	p.SchemaVersion = int(version)

	return p, nil
}
