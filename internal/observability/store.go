package observability

import (
	"context"
	"time"

	"strategy-lifecycle-lab/internal/docstore"
)

// InstrumentedStore wraps a docstore.Store, recording per-operation latency
// and error counts. It adds no semantics: errors pass through untouched.
type InstrumentedStore struct {
	inner   docstore.Store
	metrics *Metrics
}

// Instrument wraps store with the given metrics.
func Instrument(store docstore.Store, m *Metrics) *InstrumentedStore {
	return &InstrumentedStore{inner: store, metrics: m}
}

// Compile-time interface check.
var _ docstore.Store = (*InstrumentedStore)(nil)

func (s *InstrumentedStore) observe(op, collection string, start time.Time, err error) {
	s.metrics.StoreOpDuration.WithLabelValues(op, collection).Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.StoreOpErrors.WithLabelValues(op, collection).Inc()
	}
}

func (s *InstrumentedStore) Put(ctx context.Context, collection, id string, fields map[string]any) error {
	start := time.Now()
	err := s.inner.Put(ctx, collection, id, fields)
	s.observe("put", collection, start, err)
	return err
}

func (s *InstrumentedStore) Create(ctx context.Context, collection, id string, fields map[string]any) error {
	start := time.Now()
	err := s.inner.Create(ctx, collection, id, fields)
	s.observe("create", collection, start, err)
	return err
}

func (s *InstrumentedStore) Get(ctx context.Context, collection, id string) (map[string]any, error) {
	start := time.Now()
	fields, err := s.inner.Get(ctx, collection, id)
	s.observe("get", collection, start, err)
	return fields, err
}

func (s *InstrumentedStore) Delete(ctx context.Context, collection, id string) error {
	start := time.Now()
	err := s.inner.Delete(ctx, collection, id)
	s.observe("delete", collection, start, err)
	return err
}

func (s *InstrumentedStore) CompareAndPut(ctx context.Context, collection, id string, fields map[string]any, field, expect string) error {
	start := time.Now()
	err := s.inner.CompareAndPut(ctx, collection, id, fields, field, expect)
	s.observe("compare_and_put", collection, start, err)
	return err
}

func (s *InstrumentedStore) Query(ctx context.Context, collection string, q docstore.Query) (*docstore.Page, error) {
	start := time.Now()
	page, err := s.inner.Query(ctx, collection, q)
	s.observe("query", collection, start, err)
	return page, err
}

func (s *InstrumentedStore) Close() error {
	return s.inner.Close()
}
