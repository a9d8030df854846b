// Package storage holds the persistence shard store: one entry per
// shard root (the same "." for the root instance, "field.key" for a
// nested class-typed entry keying scheme internal/statesync uses for
// onPersist batches), each holding that shard's latest persisted value.
package storage

import "context"

// Store is the persistence backend onPersist batches are written
// through. Shard keys are the same dotted paths statesync.Engine uses
// as persist shard roots ("." for the root instance, "field.key" for a
// nested entry) — callers write OrderedMap entries straight through
// without reshaping them.
type Store interface {
	// Put writes value for key, replacing whatever was there.
	Put(ctx context.Context, key string, value any) error

	// Get reads the current value for key. ok is false if key has
	// never been written (or was deleted).
	Get(ctx context.Context, key string) (value any, ok bool, err error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns every currently-stored key, for cold-start reload
	// (feed each through statesync.Load to rebuild the live tree).
	List(ctx context.Context) ([]string, error)
}
