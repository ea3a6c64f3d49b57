// Package ratelimit throttles repeated listener actions (plays, likes, feedback)
// per station and client. Stores are injected so a single process can use the
// in-memory map while multi-instance deployments share a persistent backend.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Store records actions and reports whether a new one is allowed.
type Store interface {
	// Allow records a hit for key and reports whether it is the first one
	// inside window. A rejected hit does not extend the window.
	Allow(ctx context.Context, key string, window time.Duration) (bool, error)
	// Release forgets key so the next Allow succeeds. Used when the action
	// an Allow admitted failed to happen.
	Release(ctx context.Context, key string) error
	Close() error
}

// Key builds the store key for an action by one client on one station.
func Key(action string, stationID uint, client string) string {
	return fmt.Sprintf("%s:%d:%s", action, stationID, client)
}

// Open returns the store named by backend: "memory" (default) or "badger".
func Open(backend, badgerPath string) (Store, error) {
	switch backend {
	case "", "memory":
		return NewMemoryStore(time.Minute), nil
	case "badger":
		return OpenBadgerStore(badgerPath)
	default:
		return nil, fmt.Errorf("unknown rate limit backend %q", backend)
	}
}
