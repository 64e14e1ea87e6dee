package cachesvc

import (
	"context"
	"time"
)

// Store is a string key/value store with expiring entries.
// Pop reads and deletes a key in one step: two concurrent Pops never both see the value.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Pop(ctx context.Context, key string) (string, bool, error)
}
