package postgres

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"strategy-lifecycle-lab/internal/docstore"
)

func TestStore_PutGetDelete(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	store := NewStore(pool)
	ctx := context.Background()

	err := store.Put(ctx, "strategies", "s1", map[string]any{
		"stage":   "GENERATED",
		"creator": "gen-1",
		"definition": map[string]any{
			"indicator": "sma_crossover",
			"window":    float64(20),
		},
	})
	require.NoError(t, err)

	fields, err := store.Get(ctx, "strategies", "s1")
	require.NoError(t, err)
	require.Equal(t, "GENERATED", fields["stage"])
	require.Equal(t, float64(20), fields["definition"].(map[string]any)["window"])

	// Overwrite through Put.
	require.NoError(t, store.Put(ctx, "strategies", "s1", map[string]any{"stage": "BACKTESTING"}))
	fields, err = store.Get(ctx, "strategies", "s1")
	require.NoError(t, err)
	require.Equal(t, "BACKTESTING", fields["stage"])

	require.NoError(t, store.Delete(ctx, "strategies", "s1"))
	require.NoError(t, store.Delete(ctx, "strategies", "s1"), "delete must be idempotent")

	_, err = store.Get(ctx, "strategies", "s1")
	require.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestStore_CreateDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	store := NewStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, "strategies", "s1", map[string]any{"stage": "GENERATED"}))

	err := store.Create(ctx, "strategies", "s1", map[string]any{"stage": "GENERATED"})
	require.ErrorIs(t, err, docstore.ErrAlreadyExists)

	// The original document is unchanged.
	fields, err := store.Get(ctx, "strategies", "s1")
	require.NoError(t, err)
	require.Equal(t, "GENERATED", fields["stage"])
}

func TestStore_CompareAndPut(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	store := NewStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "strategies", "s1", map[string]any{"stage": "GENERATED"}))

	err := store.CompareAndPut(ctx, "strategies", "s1",
		map[string]any{"stage": "BACKTESTING"}, "stage", "GENERATED")
	require.NoError(t, err)

	err = store.CompareAndPut(ctx, "strategies", "s1",
		map[string]any{"stage": "BACKTESTING"}, "stage", "GENERATED")
	require.ErrorIs(t, err, docstore.ErrConditionFailed)

	// Non-empty expect against a missing document must fail, not create.
	err = store.CompareAndPut(ctx, "strategies", "ghost",
		map[string]any{"stage": "BACKTESTING"}, "stage", "GENERATED")
	require.ErrorIs(t, err, docstore.ErrConditionFailed)
	_, err = store.Get(ctx, "strategies", "ghost")
	require.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestStore_CompareAndPut_EmptyExpectClaims(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	store := NewStore(pool)
	ctx := context.Background()

	err := store.CompareAndPut(ctx, "deployment_status", "slot::prod-1",
		map[string]any{"holder": "s1"}, "holder", "")
	require.NoError(t, err)

	err = store.CompareAndPut(ctx, "deployment_status", "slot::prod-1",
		map[string]any{"holder": "s2"}, "holder", "")
	require.ErrorIs(t, err, docstore.ErrConditionFailed)

	// Releasing (holder back to empty) re-opens the claim.
	err = store.CompareAndPut(ctx, "deployment_status", "slot::prod-1",
		map[string]any{"holder": ""}, "holder", "s1")
	require.NoError(t, err)

	err = store.CompareAndPut(ctx, "deployment_status", "slot::prod-1",
		map[string]any{"holder": "s2"}, "holder", "")
	require.NoError(t, err)
}

func TestStore_ConcurrentCompareAndPut_OneWinner(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	store := NewStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "strategies", "s1", map[string]any{"stage": "GENERATED"}))

	const workers = 8
	var wg sync.WaitGroup
	wins := make(chan struct{}, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.CompareAndPut(ctx, "strategies", "s1",
				map[string]any{"stage": "BACKTESTING"}, "stage", "GENERATED")
			if err == nil {
				wins <- struct{}{}
			} else {
				require.ErrorIs(t, err, docstore.ErrConditionFailed)
			}
		}()
	}
	wg.Wait()
	close(wins)

	require.Len(t, drain(wins), 1, "exactly one CompareAndPut must win")
}

func TestStore_QueryFilterAndPaging(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	store := NewStore(pool)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		id := fmt.Sprintf("s1_%03d", i)
		require.NoError(t, store.Put(ctx, "performance_metrics", id, map[string]any{
			"strategy_id": "s1",
			"seq":         float64(i),
		}))
	}
	require.NoError(t, store.Put(ctx, "performance_metrics", "s2_000", map[string]any{
		"strategy_id": "s2",
	}))

	var seen []string
	cursor := ""
	for {
		page, err := store.Query(ctx, "performance_metrics", docstore.Query{
			FilterField: "strategy_id",
			FilterValue: "s1",
			Limit:       3,
			StartAfter:  cursor,
		})
		require.NoError(t, err)
		for _, doc := range page.Docs {
			seen = append(seen, doc.ID)
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	require.Len(t, seen, 7)
	require.IsIncreasing(t, seen)
	require.NotContains(t, seen, "s2_000")
}

func drain(ch chan struct{}) []struct{} {
	var out []struct{}
	for v := range ch {
		out = append(out, v)
	}
	return out
}
