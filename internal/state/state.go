// Package state provides the keyed state store: a low-latency store addressed
// by hierarchical slash-separated paths, holding the ephemeral realtime state
// (presence records, channel rosters, call edges).
package state

import (
	"context"
	"encoding/json"
)

// KeyedStateStore is the path-addressed ephemeral store consumed by the
// presence registry, channel coordinator, and call engine.
//
// Paths are slash-separated, e.g. "calls/3f2a..." or
// "channels/{channelId}/users/{userId}". All writes are best-effort from the
// caller's point of view: components log and continue on error.
type KeyedStateStore interface {
	// Get reads the value at an exact path into dest. Returns false when the
	// path holds no value.
	Get(ctx context.Context, path string, dest any) (bool, error)

	// Set writes the value at an exact path, replacing any previous value.
	Set(ctx context.Context, path string, value any) error

	// Update merges the given fields into the JSON object stored at path.
	// Missing paths are treated as empty objects. Read-modify-write, not
	// atomic; callers tolerate last-write-wins.
	Update(ctx context.Context, path string, fields map[string]any) error

	// Remove deletes the value at path and every descendant under path/.
	// Removing an absent path is a no-op.
	Remove(ctx context.Context, path string) error

	// Once takes a one-shot snapshot of the children under path, keyed by the
	// child path remainder. An empty map means no children.
	Once(ctx context.Context, path string) (map[string]json.RawMessage, error)
}

// Unmarshal decodes one child value from an Once snapshot into dest.
func Unmarshal(raw json.RawMessage, dest any) error {
	return json.Unmarshal(raw, dest)
}
