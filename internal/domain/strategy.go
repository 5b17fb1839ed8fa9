package domain

import "time"

// SchemaVersion is written on every persisted document so future field
// additions can be migrated without breaking older readers.
const SchemaVersion = 1

// Stage represents a strategy's position in the research pipeline.
type Stage string

// Lifecycle stages. A strategy only ever moves forward through these;
// terminal stages admit no further transitions.
const (
	StageGenerated      Stage = "GENERATED"
	StageBacktesting    Stage = "BACKTESTING"
	StageBacktestPassed Stage = "BACKTEST_PASSED"
	StageBacktestFailed Stage = "BACKTEST_FAILED" // terminal
	StageTraining       Stage = "TRAINING"
	StageTrained        Stage = "TRAINED"
	StageTrainingFailed Stage = "TRAINING_FAILED" // terminal
	StageDeployed       Stage = "DEPLOYED"
	StageRetired        Stage = "RETIRED" // terminal
)

// transitions is the full edge set of the lifecycle state machine.
var transitions = map[Stage][]Stage{
	StageGenerated:      {StageBacktesting},
	StageBacktesting:    {StageBacktestPassed, StageBacktestFailed},
	StageBacktestPassed: {StageTraining},
	StageTraining:       {StageTrained, StageTrainingFailed},
	StageTrained:        {StageDeployed},
	StageDeployed:       {StageRetired},
}

// ValidStage reports whether s is a recognized lifecycle stage value.
func ValidStage(s Stage) bool {
	switch s {
	case StageGenerated, StageBacktesting, StageBacktestPassed, StageBacktestFailed,
		StageTraining, StageTrained, StageTrainingFailed, StageDeployed, StageRetired:
		return true
	}
	return false
}

// Terminal reports whether s admits no further transitions.
func (s Stage) Terminal() bool {
	return ValidStage(s) && len(transitions[s]) == 0
}

// CanTransition reports whether from → to is an edge of the state machine.
func CanTransition(from, to Stage) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Strategy represents a generated trading algorithm candidate.
// Persisted in the strategies collection, one document per strategy_id.
type Strategy struct {
	StrategyID     string         // unique, assigned at generation time, never reused
	Definition     map[string]any // opaque strategy logic and parameters
	Creator        string         // generator tag
	CreatedAt      time.Time      // immutable after registration
	Stage          Stage          // written only by the coordinator
	StageUpdatedAt time.Time      // when the current stage was entered
	SchemaVersion  int
}
