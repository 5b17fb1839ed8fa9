// Package docstore defines a narrow adapter over a remote document store.
// The lifecycle coordinator is its only consumer; backends translate native
// failures into the error taxonomy in errors.go and never cache locally —
// the store is the single source of truth across coordinator processes.
package docstore

import "context"

// Default collection names. Deployments may override them through config.
const (
	CollectionStrategies     = "strategies"
	CollectionBacktests      = "backtest_results"
	CollectionTrainingLogs   = "rl_training_logs"
	CollectionDeployments    = "deployment_status"
	CollectionPerformance    = "performance_metrics"
)

// Collections holds the resolved collection names used by a deployment.
type Collections struct {
	Strategies   string
	Backtests    string
	TrainingLogs string
	Deployments  string
	Performance  string
}

// DefaultCollections returns the standard collection layout.
func DefaultCollections() Collections {
	return Collections{
		Strategies:   CollectionStrategies,
		Backtests:    CollectionBacktests,
		TrainingLogs: CollectionTrainingLogs,
		Deployments:  CollectionDeployments,
		Performance:  CollectionPerformance,
	}
}

// All returns every collection name, in bootstrap verification order.
func (c Collections) All() []string {
	return []string{c.Strategies, c.Backtests, c.TrainingLogs, c.Deployments, c.Performance}
}

// Document is one stored document together with its ID.
type Document struct {
	ID     string
	Fields map[string]any
}

// Query describes a single-collection read. At most one equality filter;
// results are ordered by document ID so a cursor can restart the scan.
type Query struct {
	// FilterField/FilterValue restrict results to documents whose field
	// equals the value. Empty FilterField means no filter.
	FilterField string
	FilterValue string

	// StartAfter is an exclusive document-ID cursor; empty starts from the
	// beginning of the collection.
	StartAfter string

	// Limit caps the page size. Zero means backend default.
	Limit int
}

// Page is one page of query results. NextCursor is empty when the scan is
// exhausted, otherwise it is passed back as Query.StartAfter.
type Page struct {
	Docs       []Document
	NextCursor string
}

// Store is the adapter every backend implements.
//
// Every call is a remote round-trip: callers pass a context with a deadline
// and treat DeadlineExceeded as ErrUnavailable, not as a definitive failure.
type Store interface {
	// Put writes or overwrites a document.
	Put(ctx context.Context, collection, id string, fields map[string]any) error

	// Create writes a document only if the ID does not already exist.
	// Returns ErrAlreadyExists otherwise.
	Create(ctx context.Context, collection, id string, fields map[string]any) error

	// Get returns a document's fields, or ErrNotFound.
	Get(ctx context.Context, collection, id string) (map[string]any, error)

	// Delete removes a document. Deleting a missing document is not an error.
	Delete(ctx context.Context, collection, id string) error

	// CompareAndPut writes fields only if the document's current string
	// value of field equals expect. An empty expect matches a missing or
	// empty field, including a missing document, in which case the document
	// is created. Returns ErrConditionFailed when the condition does not
	// hold. This is the primitive every lifecycle transition is built on.
	CompareAndPut(ctx context.Context, collection, id string, fields map[string]any, field, expect string) error

	// Query returns one page of matching documents.
	Query(ctx context.Context, collection string, q Query) (*Page, error)

	// Close releases the backend's connection.
	Close() error
}
