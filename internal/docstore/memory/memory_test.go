package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"strategy-lifecycle-lab/internal/docstore"
)

func TestStore_PutAndGet(t *testing.T) {
	store := New()
	ctx := context.Background()

	err := store.Put(ctx, "strategies", "s1", map[string]any{"stage": "GENERATED", "creator": "gen-1"})
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	fields, err := store.Get(ctx, "strategies", "s1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if fields["stage"] != "GENERATED" {
		t.Errorf("stage mismatch: got %v, want GENERATED", fields["stage"])
	}
}

func TestStore_GetNotFound(t *testing.T) {
	store := New()

	_, err := store.Get(context.Background(), "strategies", "missing")
	if !errors.Is(err, docstore.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_CreateDuplicate(t *testing.T) {
	store := New()
	ctx := context.Background()

	if err := store.Create(ctx, "strategies", "s1", map[string]any{"stage": "GENERATED"}); err != nil {
		t.Fatalf("first Create failed: %v", err)
	}

	err := store.Create(ctx, "strategies", "s1", map[string]any{"stage": "GENERATED"})
	if !errors.Is(err, docstore.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestStore_DeleteIdempotent(t *testing.T) {
	store := New()
	ctx := context.Background()

	if err := store.Put(ctx, "strategies", "s1", map[string]any{"stage": "GENERATED"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Delete(ctx, "strategies", "s1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	// Second delete of the same ID must not error.
	if err := store.Delete(ctx, "strategies", "s1"); err != nil {
		t.Errorf("Delete of missing document should be a no-op, got %v", err)
	}

	_, err := store.Get(ctx, "strategies", "s1")
	if !errors.Is(err, docstore.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestStore_CompareAndPut(t *testing.T) {
	store := New()
	ctx := context.Background()

	if err := store.Put(ctx, "strategies", "s1", map[string]any{"stage": "GENERATED"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	err := store.CompareAndPut(ctx, "strategies", "s1",
		map[string]any{"stage": "BACKTESTING"}, "stage", "GENERATED")
	if err != nil {
		t.Fatalf("CompareAndPut failed: %v", err)
	}

	// Same expectation again must now fail.
	err = store.CompareAndPut(ctx, "strategies", "s1",
		map[string]any{"stage": "BACKTESTING"}, "stage", "GENERATED")
	if !errors.Is(err, docstore.ErrConditionFailed) {
		t.Errorf("expected ErrConditionFailed, got %v", err)
	}

	fields, err := store.Get(ctx, "strategies", "s1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if fields["stage"] != "BACKTESTING" {
		t.Errorf("stage mismatch: got %v, want BACKTESTING", fields["stage"])
	}
}

func TestStore_CompareAndPut_EmptyExpectCreates(t *testing.T) {
	store := New()
	ctx := context.Background()

	// Empty expect claims a missing document.
	err := store.CompareAndPut(ctx, "deployment_status", "slot::prod-1",
		map[string]any{"holder": "s1"}, "holder", "")
	if err != nil {
		t.Fatalf("CompareAndPut on missing document failed: %v", err)
	}

	// A second empty-expect claim must lose.
	err = store.CompareAndPut(ctx, "deployment_status", "slot::prod-1",
		map[string]any{"holder": "s2"}, "holder", "")
	if !errors.Is(err, docstore.ErrConditionFailed) {
		t.Errorf("expected ErrConditionFailed, got %v", err)
	}
}

func TestStore_QueryFilterAndPaging(t *testing.T) {
	store := New()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("s%d", i)
		stage := "GENERATED"
		if i%2 == 1 {
			stage = "BACKTESTING"
		}
		if err := store.Put(ctx, "strategies", id, map[string]any{"stage": stage}); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	page, err := store.Query(ctx, "strategies", docstore.Query{
		FilterField: "stage",
		FilterValue: "GENERATED",
	})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(page.Docs) != 3 {
		t.Fatalf("expected 3 GENERATED docs, got %d", len(page.Docs))
	}
	if page.NextCursor != "" {
		t.Errorf("expected exhausted scan, got cursor %q", page.NextCursor)
	}

	// Page through everything two at a time.
	var seen []string
	cursor := ""
	for {
		page, err := store.Query(ctx, "strategies", docstore.Query{Limit: 2, StartAfter: cursor})
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		for _, doc := range page.Docs {
			seen = append(seen, doc.ID)
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	if len(seen) != 5 {
		t.Errorf("paged scan returned %d docs, want 5", len(seen))
	}
	for i := 1; i < len(seen); i++ {
		if seen[i-1] >= seen[i] {
			t.Errorf("page order not ascending: %v", seen)
		}
	}
}

func TestStore_MutationIsolation(t *testing.T) {
	store := New()
	ctx := context.Background()

	fields := map[string]any{"definition": map[string]any{"window": 20}}
	if err := store.Put(ctx, "strategies", "s1", fields); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// Mutating the caller's map after Put must not affect the stored copy.
	fields["definition"].(map[string]any)["window"] = 50

	got, err := store.Get(ctx, "strategies", "s1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got["definition"].(map[string]any)["window"] != 20 {
		t.Error("stored document was mutated through a retained reference")
	}
}

func TestStore_ConcurrentCompareAndPut_OneWinner(t *testing.T) {
	store := New()
	ctx := context.Background()

	if err := store.Put(ctx, "strategies", "s1", map[string]any{"stage": "GENERATED"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	const workers = 16
	var wg sync.WaitGroup
	wins := make(chan int, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.CompareAndPut(ctx, "strategies", "s1",
				map[string]any{"stage": "BACKTESTING"}, "stage", "GENERATED")
			if err == nil {
				wins <- 1
			} else if !errors.Is(err, docstore.ErrConditionFailed) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	close(wins)

	total := 0
	for w := range wins {
		total += w
	}
	if total != 1 {
		t.Errorf("expected exactly one winning CompareAndPut, got %d", total)
	}
}

func TestStore_ConcurrentCreates_NoLostWrites(t *testing.T) {
	store := New()
	ctx := context.Background()

	const n = 32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("s1_%03d", i)
			if err := store.Create(ctx, "backtest_results", id, map[string]any{"run_id": fmt.Sprint(i)}); err != nil {
				t.Errorf("Create %s failed: %v", id, err)
			}
		}(i)
	}
	wg.Wait()

	page, err := store.Query(ctx, "backtest_results", docstore.Query{Limit: n + 1})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(page.Docs) != n {
		t.Errorf("expected %d documents, got %d", n, len(page.Docs))
	}
}
