package lifecycle

import "errors"

// Coordinator errors. All are caller-correctable and returned synchronously;
// infrastructure faults surface as the docstore taxonomy (ErrUnavailable,
// ErrPermissionDenied) wrapped with operation context.
var (
	// ErrDuplicateID is returned when registering a strategy ID, backtest
	// run or training session that already exists. The original record is
	// never touched.
	ErrDuplicateID = errors.New("duplicate id")

	// ErrInvalidTransition is returned for edges outside the lifecycle
	// state machine, transitions out of a terminal stage, and expected-stage
	// mismatches against the stored strategy.
	ErrInvalidTransition = errors.New("invalid lifecycle transition")

	// ErrConcurrentModification is returned when a compare-and-swap
	// transition loses to a concurrent writer. Expected under concurrency;
	// the caller re-reads and decides whether to retry.
	ErrConcurrentModification = errors.New("concurrent modification")

	// ErrSlotConflict is returned when claiming a production slot another
	// strategy currently holds.
	ErrSlotConflict = errors.New("production slot already claimed")

	// ErrNotDeployed is returned when an operation requires a live
	// deployment the strategy does not have.
	ErrNotDeployed = errors.New("strategy not deployed")
)
