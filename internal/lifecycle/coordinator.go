// Package lifecycle implements the authoritative state machine for a
// strategy's progress through the research pipeline. The coordinator is
// stateless compute over the document store: multiple instances coordinate
// exclusively through conditional writes, never through in-process locks.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"

	"strategy-lifecycle-lab/internal/docstore"
	"strategy-lifecycle-lab/internal/domain"
	"strategy-lifecycle-lab/internal/idhash"
	"strategy-lifecycle-lab/internal/observability"
)

const readRetryAttempts = 3

// Coordinator is the single entry point pipeline stages use to read and
// write lifecycle state. It is the sole writer of the stage field.
type Coordinator struct {
	store       docstore.Store
	collections docstore.Collections
	logger      *slog.Logger
	metrics     *observability.Metrics
	now         func() time.Time
}

// Options for creating a Coordinator.
type Options struct {
	// Store is required.
	Store docstore.Store

	// Collections defaults to docstore.DefaultCollections().
	Collections docstore.Collections

	// Logger defaults to a discarding logger.
	Logger *slog.Logger

	// Metrics is optional.
	Metrics *observability.Metrics

	// Now overrides the clock in tests.
	Now func() time.Time
}

// New creates a Coordinator.
func New(opts Options) *Coordinator {
	c := &Coordinator{
		store:       opts.Store,
		collections: opts.Collections,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
		now:         opts.Now,
	}
	if c.collections == (docstore.Collections{}) {
		c.collections = docstore.DefaultCollections()
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// RegisterStrategy creates a new strategy in stage GENERATED. The strategy
// ID comes from the generator and is never reused; re-registration fails
// with ErrDuplicateID and leaves the original record untouched.
func (c *Coordinator) RegisterStrategy(ctx context.Context, s *domain.Strategy) error {
	if s == nil {
		return fmt.Errorf("%w: strategy is required", docstore.ErrInvalidArgument)
	}
	if s.Definition == nil {
		return fmt.Errorf("%w: strategy %s has no definition", docstore.ErrInvalidArgument, s.StrategyID)
	}
	if s.Stage != "" && s.Stage != domain.StageGenerated {
		return fmt.Errorf("%w: strategy %s must register in stage %s", docstore.ErrInvalidArgument, s.StrategyID, domain.StageGenerated)
	}

	s.Stage = domain.StageGenerated
	if s.CreatedAt.IsZero() {
		s.CreatedAt = c.now().UTC()
	}
	if s.StrategyID == "" {
		id, err := idhash.ComputeStrategyID(s.Creator, s.CreatedAt, s.Definition)
		if err != nil {
			return fmt.Errorf("%w: derive strategy id: %v", docstore.ErrInvalidArgument, err)
		}
		s.StrategyID = id
	}
	s.StageUpdatedAt = s.CreatedAt
	s.SchemaVersion = domain.SchemaVersion

	err := c.store.Create(ctx, c.collections.Strategies, s.StrategyID, encodeStrategy(s))
	if err != nil {
		if errors.Is(err, docstore.ErrAlreadyExists) {
			return fmt.Errorf("register strategy %s: %w", s.StrategyID, ErrDuplicateID)
		}
		return fmt.Errorf("register strategy %s: %w", s.StrategyID, err)
	}

	if c.metrics != nil {
		c.metrics.StrategiesRegistered.Inc()
	}
	c.logger.Info("strategy registered", "strategy_id", s.StrategyID, "creator", s.Creator)
	return nil
}

// FetchStrategy returns the current strategy record. Read-only; transient
// store outages are retried transparently.
func (c *Coordinator) FetchStrategy(ctx context.Context, strategyID string) (*domain.Strategy, error) {
	var fields map[string]any
	err := c.readRetry(ctx, func() error {
		var err error
		fields, err = c.store.Get(ctx, c.collections.Strategies, strategyID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetch strategy %s: %w", strategyID, err)
	}
	return decodeStrategy(strategyID, fields)
}

// ListStrategies returns one page of strategies, optionally filtered by
// stage. The cursor restarts the scan; an empty next cursor ends it.
func (c *Coordinator) ListStrategies(ctx context.Context, stage domain.Stage, cursor string, limit int) ([]*domain.Strategy, string, error) {
	if stage != "" && !domain.ValidStage(stage) {
		return nil, "", fmt.Errorf("%w: unrecognized stage filter %q", docstore.ErrInvalidArgument, stage)
	}

	q := docstore.Query{StartAfter: cursor, Limit: limit}
	if stage != "" {
		q.FilterField = fieldStage
		q.FilterValue = string(stage)
	}

	var page *docstore.Page
	err := c.readRetry(ctx, func() error {
		var err error
		page, err = c.store.Query(ctx, c.collections.Strategies, q)
		return err
	})
	if err != nil {
		return nil, "", fmt.Errorf("list strategies: %w", err)
	}

	strategies := make([]*domain.Strategy, 0, len(page.Docs))
	for _, doc := range page.Docs {
		s, err := decodeStrategy(doc.ID, doc.Fields)
		if err != nil {
			return nil, "", err
		}
		strategies = append(strategies, s)
	}
	return strategies, page.NextCursor, nil
}

// AdvanceStage performs one compare-and-swap lifecycle transition: read the
// current stage, check the edge and its gating conditions, then write the
// new stage conditioned on the stage being unchanged since the read. At most
// one caller wins a given (strategy, from) pair; losers get
// ErrConcurrentModification and must retry with fresh state.
func (c *Coordinator) AdvanceStage(ctx context.Context, strategyID string, from, to domain.Stage) error {
	if !domain.ValidStage(from) || !domain.ValidStage(to) {
		return fmt.Errorf("%w: unrecognized stage", docstore.ErrInvalidArgument)
	}
	if !domain.CanTransition(from, to) {
		c.countTransition(from, to, "rejected")
		return fmt.Errorf("advance %s: %s -> %s: %w", strategyID, from, to, ErrInvalidTransition)
	}

	s, err := c.FetchStrategy(ctx, strategyID)
	if err != nil {
		return err
	}
	if s.Stage != from {
		c.countTransition(from, to, "rejected")
		return fmt.Errorf("advance %s: expected stage %s but found %s: %w", strategyID, from, s.Stage, ErrInvalidTransition)
	}

	if err := c.checkGate(ctx, s, to); err != nil {
		c.countTransition(from, to, "rejected")
		return err
	}

	s.Stage = to
	s.StageUpdatedAt = c.now().UTC()

	err = c.store.CompareAndPut(ctx, c.collections.Strategies, strategyID, encodeStrategy(s), fieldStage, string(from))
	if err != nil {
		if errors.Is(err, docstore.ErrConditionFailed) {
			c.countTransition(from, to, "conflict")
			if c.metrics != nil {
				c.metrics.CASConflicts.Inc()
			}
			c.logger.Warn("stage transition lost race", "strategy_id", strategyID, "from", from, "to", to)
			return fmt.Errorf("advance %s: %s -> %s: %w", strategyID, from, to, ErrConcurrentModification)
		}
		return fmt.Errorf("advance %s: %w", strategyID, err)
	}

	c.countTransition(from, to, "applied")
	c.logger.Info("stage advanced", "strategy_id", strategyID, "from", from, "to", to)

	if to == domain.StageRetired {
		// Retirement releases the production slot. The transition is
		// already durable; a failure here leaves the slot held and is
		// reported so the deployment process can release it explicitly.
		if err := c.releaseSlot(ctx, strategyID, false); err != nil {
			return fmt.Errorf("advance %s: retired but slot release failed: %w", strategyID, err)
		}
	}
	return nil
}

// checkGate validates the conditions a target stage requires beyond the
// state machine edge. Verdicts come from the recorded results; the
// coordinator never recomputes performance.
func (c *Coordinator) checkGate(ctx context.Context, s *domain.Strategy, to domain.Stage) error {
	switch to {
	case domain.StageBacktestPassed, domain.StageBacktestFailed:
		results, err := c.backtestResults(ctx, s.StrategyID)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			return fmt.Errorf("advance %s: no backtest result recorded: %w", s.StrategyID, ErrInvalidTransition)
		}
		latest := results[len(results)-1]
		if latest.Passed != (to == domain.StageBacktestPassed) {
			return fmt.Errorf("advance %s: latest backtest verdict (run %d, passed=%t) does not support %s: %w",
				s.StrategyID, latest.RunID, latest.Passed, to, ErrInvalidTransition)
		}

	case domain.StageTrained, domain.StageTrainingFailed:
		logs, err := c.trainingLogs(ctx, s.StrategyID)
		if err != nil {
			return err
		}
		if len(logs) == 0 {
			return fmt.Errorf("advance %s: no training log recorded: %w", s.StrategyID, ErrInvalidTransition)
		}
		latest := logs[len(logs)-1]
		if latest.Converged != (to == domain.StageTrained) {
			return fmt.Errorf("advance %s: latest training verdict (session %d, converged=%t) does not support %s: %w",
				s.StrategyID, latest.SessionID, latest.Converged, to, ErrInvalidTransition)
		}

	case domain.StageDeployed:
		status, err := c.deploymentStatus(ctx, s.StrategyID)
		if err != nil && !errors.Is(err, docstore.ErrNotFound) {
			return err
		}
		if status == nil || !status.Deployed || status.Slot == "" {
			return fmt.Errorf("advance %s: no claimed production slot: %w", s.StrategyID, ErrNotDeployed)
		}
	}
	return nil
}

// RecordBacktestResult appends one immutable backtest result. The stage is
// untouched; advancing past backtesting is a separate AdvanceStage call.
func (c *Coordinator) RecordBacktestResult(ctx context.Context, r *domain.BacktestResult) error {
	if r == nil || r.StrategyID == "" {
		return fmt.Errorf("%w: backtest result requires a strategy id", docstore.ErrInvalidArgument)
	}
	if r.RunID <= 0 {
		return fmt.Errorf("%w: backtest run_id must be positive", docstore.ErrInvalidArgument)
	}
	if r.Metrics == nil {
		return fmt.Errorf("%w: backtest result requires metrics", docstore.ErrInvalidArgument)
	}
	if _, err := c.FetchStrategy(ctx, r.StrategyID); err != nil {
		return err
	}

	r.SchemaVersion = domain.SchemaVersion
	docID := backtestDocID(r.StrategyID, r.RunID)
	if err := c.store.Create(ctx, c.collections.Backtests, docID, encodeBacktestResult(r)); err != nil {
		if errors.Is(err, docstore.ErrAlreadyExists) {
			return fmt.Errorf("backtest run %d for %s: %w", r.RunID, r.StrategyID, ErrDuplicateID)
		}
		return fmt.Errorf("record backtest result: %w", err)
	}

	c.countAppend("backtest")
	c.logger.Info("backtest result recorded", "strategy_id", r.StrategyID, "run_id", r.RunID, "passed", r.Passed)
	return nil
}

// RecordTrainingLog appends one RL training session record.
func (c *Coordinator) RecordTrainingLog(ctx context.Context, l *domain.TrainingLog) error {
	if l == nil || l.StrategyID == "" {
		return fmt.Errorf("%w: training log requires a strategy id", docstore.ErrInvalidArgument)
	}
	if l.SessionID <= 0 {
		return fmt.Errorf("%w: training session_id must be positive", docstore.ErrInvalidArgument)
	}
	if _, err := c.FetchStrategy(ctx, l.StrategyID); err != nil {
		return err
	}

	l.SchemaVersion = domain.SchemaVersion
	docID := trainingDocID(l.StrategyID, l.SessionID)
	if err := c.store.Create(ctx, c.collections.TrainingLogs, docID, encodeTrainingLog(l)); err != nil {
		if errors.Is(err, docstore.ErrAlreadyExists) {
			return fmt.Errorf("training session %d for %s: %w", l.SessionID, l.StrategyID, ErrDuplicateID)
		}
		return fmt.Errorf("record training log: %w", err)
	}

	c.countAppend("training")
	c.logger.Info("training log recorded", "strategy_id", l.StrategyID, "session_id", l.SessionID, "converged", l.Converged)
	return nil
}

// DeployRequest parameterizes SetDeployment.
type DeployRequest struct {
	StrategyID  string
	Deploy      bool
	Slot        string // required
	Environment string // recorded on claim
	Rollback    bool   // recorded on release
}

// SetDeployment claims or releases a production slot. A slot admits one
// holder: the claim is a conditional write on the slot's holder field, so
// of two concurrent claims exactly one wins and the other gets
// ErrSlotConflict. Release is idempotent.
func (c *Coordinator) SetDeployment(ctx context.Context, req DeployRequest) error {
	if req.StrategyID == "" || req.Slot == "" {
		return fmt.Errorf("%w: strategy id and slot are required", docstore.ErrInvalidArgument)
	}
	if _, err := c.FetchStrategy(ctx, req.StrategyID); err != nil {
		return err
	}

	if !req.Deploy {
		return c.releaseSlot(ctx, req.StrategyID, req.Rollback)
	}

	// A strategy holds at most one slot. Claiming a second slot while one
	// is held would strand the old claim document (releaseSlot only frees
	// status.Slot), so switching requires an explicit release first.
	current, err := c.deploymentStatus(ctx, req.StrategyID)
	if err != nil && !errors.Is(err, docstore.ErrNotFound) {
		return err
	}
	if current != nil && current.Deployed && current.Slot != "" && current.Slot != req.Slot {
		return fmt.Errorf("claim slot %s for %s: already holds slot %s: %w",
			req.Slot, req.StrategyID, current.Slot, ErrSlotConflict)
	}

	claim := map[string]any{
		fieldHolder:        req.StrategyID,
		fieldSlot:          req.Slot,
		fieldSchemaVersion: domain.SchemaVersion,
	}
	err = c.store.CompareAndPut(ctx, c.collections.Deployments, slotDocID(req.Slot), claim, fieldHolder, "")
	if err != nil {
		if errors.Is(err, docstore.ErrConditionFailed) {
			holder, herr := c.slotHolder(ctx, req.Slot)
			if herr == nil && holder == req.StrategyID {
				// Re-claim by the current holder: fall through and
				// refresh the status document.
			} else {
				if c.metrics != nil {
					c.metrics.SlotConflicts.Inc()
				}
				c.logger.Warn("slot claim rejected", "strategy_id", req.StrategyID, "slot", req.Slot, "holder", holder)
				return fmt.Errorf("claim slot %s for %s: %w", req.Slot, req.StrategyID, ErrSlotConflict)
			}
		} else {
			return fmt.Errorf("claim slot %s: %w", req.Slot, err)
		}
	}

	now := c.now().UTC()
	status := &domain.DeploymentStatus{
		StrategyID:        req.StrategyID,
		Deployed:          true,
		Slot:              req.Slot,
		Environment:       req.Environment,
		DeployedAt:        now,
		LastHealthCheckAt: now,
	}
	if err := c.store.Put(ctx, c.collections.Deployments, req.StrategyID, encodeDeploymentStatus(status)); err != nil {
		return fmt.Errorf("write deployment status for %s: %w", req.StrategyID, err)
	}

	c.logger.Info("slot claimed", "strategy_id", req.StrategyID, "slot", req.Slot, "environment", req.Environment)
	return nil
}

// releaseSlot releases whatever slot the strategy holds and marks its
// deployment status undeployed. Safe to call when nothing is held.
func (c *Coordinator) releaseSlot(ctx context.Context, strategyID string, rollback bool) error {
	status, err := c.deploymentStatus(ctx, strategyID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !status.Deployed && status.Slot == "" {
		return nil
	}

	if status.Slot != "" {
		released := map[string]any{
			fieldHolder:        "",
			fieldSlot:          status.Slot,
			fieldSchemaVersion: domain.SchemaVersion,
		}
		err := c.store.CompareAndPut(ctx, c.collections.Deployments, slotDocID(status.Slot), released, fieldHolder, strategyID)
		if err != nil && !errors.Is(err, docstore.ErrConditionFailed) {
			// ConditionFailed means another strategy holds the slot now or
			// it is already free; either way there is nothing to release.
			return fmt.Errorf("release slot %s: %w", status.Slot, err)
		}
	}

	status.Deployed = false
	status.Slot = ""
	status.RolledBack = rollback
	if err := c.store.Put(ctx, c.collections.Deployments, strategyID, encodeDeploymentStatus(status)); err != nil {
		return fmt.Errorf("write deployment status for %s: %w", strategyID, err)
	}

	c.logger.Info("slot released", "strategy_id", strategyID, "rollback", rollback)
	return nil
}

// RecordPerformanceSample appends one live performance sample. Fails with
// ErrNotDeployed, writing nothing, unless the strategy is currently deployed.
func (c *Coordinator) RecordPerformanceSample(ctx context.Context, p *domain.PerformanceSample) error {
	if p == nil || p.StrategyID == "" {
		return fmt.Errorf("%w: performance sample requires a strategy id", docstore.ErrInvalidArgument)
	}
	if p.Metrics == nil {
		return fmt.Errorf("%w: performance sample requires metrics", docstore.ErrInvalidArgument)
	}
	if p.SampledAt.IsZero() {
		p.SampledAt = c.now().UTC()
	}

	status, err := c.deploymentStatus(ctx, p.StrategyID)
	if errors.Is(err, docstore.ErrNotFound) || (err == nil && !status.Deployed) {
		return fmt.Errorf("sample for %s: %w", p.StrategyID, ErrNotDeployed)
	}
	if err != nil {
		return err
	}

	p.SchemaVersion = domain.SchemaVersion
	docID := sampleDocID(p.StrategyID, p.SampledAt)
	if err := c.store.Create(ctx, c.collections.Performance, docID, encodePerformanceSample(p)); err != nil {
		if errors.Is(err, docstore.ErrAlreadyExists) {
			return fmt.Errorf("sample %s at %s: %w", p.StrategyID, p.SampledAt, ErrDuplicateID)
		}
		return fmt.Errorf("record performance sample: %w", err)
	}

	c.countAppend("performance")
	return nil
}

// TouchDeployment refreshes last_health_check_at for a deployed strategy.
// The write is conditioned on the slot being unchanged, so a concurrent
// release cannot be resurrected by a stale heartbeat.
func (c *Coordinator) TouchDeployment(ctx context.Context, strategyID string) error {
	status, err := c.deploymentStatus(ctx, strategyID)
	if errors.Is(err, docstore.ErrNotFound) || (err == nil && !status.Deployed) {
		return fmt.Errorf("touch %s: %w", strategyID, ErrNotDeployed)
	}
	if err != nil {
		return err
	}

	status.LastHealthCheckAt = c.now().UTC()
	err = c.store.CompareAndPut(ctx, c.collections.Deployments, strategyID, encodeDeploymentStatus(status), fieldSlot, status.Slot)
	if err != nil {
		if errors.Is(err, docstore.ErrConditionFailed) {
			return fmt.Errorf("touch %s: %w", strategyID, ErrConcurrentModification)
		}
		return fmt.Errorf("touch %s: %w", strategyID, err)
	}
	return nil
}

// History is a strategy's full audit trail.
type History struct {
	Strategy        *domain.Strategy
	BacktestResults []*domain.BacktestResult // ordered by run_id
	TrainingLogs    []*domain.TrainingLog    // ordered by session_id
	Deployment      *domain.DeploymentStatus // nil if never deployed
}

// FetchHistory returns the strategy with all recorded results and logs.
// Read-only. Performance samples are excluded: they are unbounded and read
// through ListPerformanceSamples instead.
func (c *Coordinator) FetchHistory(ctx context.Context, strategyID string) (*History, error) {
	s, err := c.FetchStrategy(ctx, strategyID)
	if err != nil {
		return nil, err
	}

	h := &History{Strategy: s}
	if h.BacktestResults, err = c.backtestResults(ctx, strategyID); err != nil {
		return nil, err
	}
	if h.TrainingLogs, err = c.trainingLogs(ctx, strategyID); err != nil {
		return nil, err
	}

	status, err := c.deploymentStatus(ctx, strategyID)
	if err != nil && !errors.Is(err, docstore.ErrNotFound) {
		return nil, err
	}
	h.Deployment = status
	return h, nil
}

// ListPerformanceSamples returns one page of samples in time order.
func (c *Coordinator) ListPerformanceSamples(ctx context.Context, strategyID, cursor string, limit int) ([]*domain.PerformanceSample, string, error) {
	q := docstore.Query{
		FilterField: fieldStrategyID,
		FilterValue: strategyID,
		StartAfter:  cursor,
		Limit:       limit,
	}

	var page *docstore.Page
	err := c.readRetry(ctx, func() error {
		var err error
		page, err = c.store.Query(ctx, c.collections.Performance, q)
		return err
	})
	if err != nil {
		return nil, "", fmt.Errorf("list samples for %s: %w", strategyID, err)
	}

	samples := make([]*domain.PerformanceSample, 0, len(page.Docs))
	for _, doc := range page.Docs {
		p, err := decodePerformanceSample(doc.Fields)
		if err != nil {
			return nil, "", err
		}
		samples = append(samples, p)
	}
	return samples, page.NextCursor, nil
}

// backtestResults loads every result for a strategy, sorted by run_id.
// Bounded: a strategy sees tens of runs, not millions of samples.
func (c *Coordinator) backtestResults(ctx context.Context, strategyID string) ([]*domain.BacktestResult, error) {
	docs, err := c.listAll(ctx, c.collections.Backtests, strategyID)
	if err != nil {
		return nil, fmt.Errorf("load backtest results for %s: %w", strategyID, err)
	}

	results := make([]*domain.BacktestResult, 0, len(docs))
	for _, doc := range docs {
		r, err := decodeBacktestResult(doc.Fields)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	// Insertion order is not run order under concurrent appends; sort by
	// the entity's own sequence field.
	sort.Slice(results, func(i, j int) bool { return results[i].RunID < results[j].RunID })
	return results, nil
}

// trainingLogs loads every training log for a strategy, sorted by session_id.
func (c *Coordinator) trainingLogs(ctx context.Context, strategyID string) ([]*domain.TrainingLog, error) {
	docs, err := c.listAll(ctx, c.collections.TrainingLogs, strategyID)
	if err != nil {
		return nil, fmt.Errorf("load training logs for %s: %w", strategyID, err)
	}

	logs := make([]*domain.TrainingLog, 0, len(docs))
	for _, doc := range docs {
		l, err := decodeTrainingLog(doc.Fields)
		if err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	sort.Slice(logs, func(i, j int) bool { return logs[i].SessionID < logs[j].SessionID })
	return logs, nil
}

func (c *Coordinator) deploymentStatus(ctx context.Context, strategyID string) (*domain.DeploymentStatus, error) {
	var fields map[string]any
	err := c.readRetry(ctx, func() error {
		var err error
		fields, err = c.store.Get(ctx, c.collections.Deployments, strategyID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return decodeDeploymentStatus(fields)
}

func (c *Coordinator) slotHolder(ctx context.Context, slot string) (string, error) {
	fields, err := c.store.Get(ctx, c.collections.Deployments, slotDocID(slot))
	if errors.Is(err, docstore.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	holder, _ := fields[fieldHolder].(string)
	return holder, nil
}

// listAll pages through every document matching strategy_id == strategyID.
func (c *Coordinator) listAll(ctx context.Context, collection, strategyID string) ([]docstore.Document, error) {
	var docs []docstore.Document
	cursor := ""
	for {
		q := docstore.Query{
			FilterField: fieldStrategyID,
			FilterValue: strategyID,
			StartAfter:  cursor,
		}
		var page *docstore.Page
		err := c.readRetry(ctx, func() error {
			var err error
			page, err = c.store.Query(ctx, collection, q)
			return err
		})
		if err != nil {
			return nil, err
		}
		docs = append(docs, page.Docs...)
		if page.NextCursor == "" {
			return docs, nil
		}
		cursor = page.NextCursor
	}
}

// readRetry retries a read-only store call on transient outages. State-
// changing operations never go through here: blindly retrying a CAS could
// mask a legitimate conflict.
func (c *Coordinator) readRetry(ctx context.Context, op func() error) error {
	attempt := func() error {
		err := op()
		if err != nil && !errors.Is(err, docstore.ErrUnavailable) {
			return backoff.Permanent(err)
		}
		return err
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), readRetryAttempts), ctx)
	return backoff.Retry(attempt, b)
}

func (c *Coordinator) countTransition(from, to domain.Stage, outcome string) {
	if c.metrics != nil {
		c.metrics.TransitionsTotal.WithLabelValues(string(from), string(to), outcome).Inc()
	}
}

func (c *Coordinator) countAppend(kind string) {
	if c.metrics != nil {
		c.metrics.RecordsAppended.WithLabelValues(kind).Inc()
	}
}
