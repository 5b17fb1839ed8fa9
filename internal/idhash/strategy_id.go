// Package idhash derives deterministic strategy identifiers.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// ComputeStrategyID computes a deterministic strategy_id using SHA256.
// Formula: SHA256(creator|created_at_unix_nano|canonical_json(definition))
// Returns hex-encoded hash (64 characters).
//
// Generators may assign their own IDs; this helper exists so independent
// generator processes producing the same hypothesis at the same instant
// collide on registration instead of duplicating the strategy.
func ComputeStrategyID(creator string, createdAt time.Time, definition map[string]any) (string, error) {
	// encoding/json sorts map keys, which makes the encoding canonical.
	def, err := json.Marshal(definition)
	if err != nil {
		return "", fmt.Errorf("marshal strategy definition: %w", err)
	}

	data := fmt.Sprintf("%s|%d|%s", creator, createdAt.UTC().UnixNano(), def)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:]), nil
}
