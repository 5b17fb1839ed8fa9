// Package bootstrap verifies storage collections before the coordinator
// accepts traffic. Silent write failures discovered later would corrupt the
// lifecycle audit trail, so any failure here is fatal to startup.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"strategy-lifecycle-lab/internal/docstore"
)

// sentinelPrefix marks non-entity documents written during verification.
const sentinelPrefix = "sentinel::"

// Verify checks that every required collection is reachable and writable:
// write a sentinel document, read it back, delete it. The sentinel ID is
// unique per run so concurrently booting coordinator instances never race on
// one document. Returns on the first failure; a partial pass is a failure.
func Verify(ctx context.Context, store docstore.Store, collections docstore.Collections, logger *slog.Logger) error {
	sentinelID := sentinelPrefix + uuid.NewString()

	for _, collection := range collections.All() {
		fields := map[string]any{
			"written_at": time.Now().UTC().Format(time.RFC3339Nano),
		}

		if err := store.Put(ctx, collection, sentinelID, fields); err != nil {
			return fmt.Errorf("bootstrap: write sentinel to %s: %w", collection, err)
		}
		if _, err := store.Get(ctx, collection, sentinelID); err != nil {
			return fmt.Errorf("bootstrap: read sentinel from %s: %w", collection, err)
		}
		if err := store.Delete(ctx, collection, sentinelID); err != nil {
			return fmt.Errorf("bootstrap: delete sentinel from %s: %w", collection, err)
		}

		logger.Debug("verified collection", "collection", collection)
	}
	return nil
}
