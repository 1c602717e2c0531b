// Package store persists small string values by key. It mirrors the state a
// single user's session keeps between restarts.
package store

import "context"

// Store is a key/value persistence port. Load reports ok=false for absent keys.
type Store interface {
	Load(ctx context.Context, key string) (string, bool, error)
	Save(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
