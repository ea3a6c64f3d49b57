package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
)

func TestMemoryStoreWindow(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	store := NewMemoryStore(0)
	store.now = func() time.Time { return clock }
	defer store.Close()

	key := Key("feedback", 42, "203.0.113.7")

	if ok, _ := store.Allow(ctx, key, time.Hour); !ok {
		t.Fatal("first submission should be allowed")
	}
	if ok, _ := store.Allow(ctx, key, time.Hour); ok {
		t.Fatal("second submission inside the window should be blocked")
	}

	// Other clients and other stations are independent
	if ok, _ := store.Allow(ctx, Key("feedback", 42, "198.51.100.1"), time.Hour); !ok {
		t.Error("another IP should be allowed")
	}
	if ok, _ := store.Allow(ctx, Key("feedback", 43, "203.0.113.7"), time.Hour); !ok {
		t.Error("another station should be allowed")
	}

	clock = clock.Add(59 * time.Minute)
	if ok, _ := store.Allow(ctx, key, time.Hour); ok {
		t.Error("still inside the 60 minute window")
	}

	clock = clock.Add(time.Minute)
	if ok, _ := store.Allow(ctx, key, time.Hour); !ok {
		t.Error("window elapsed, submission should be allowed again")
	}
}

func TestMemoryStoreSweep(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	store := NewMemoryStore(0)
	store.now = func() time.Time { return clock }
	defer store.Close()

	store.Allow(ctx, "play:1:a", 5*time.Minute)
	store.Allow(ctx, "like:1:a", 24*time.Hour)

	clock = clock.Add(10 * time.Minute)
	store.Sweep()

	if got := store.Len(); got != 1 {
		t.Fatalf("expected only the like to survive the sweep, %d keys left", got)
	}
	if ok, _ := store.Allow(ctx, "like:1:a", 24*time.Hour); ok {
		t.Error("like key should still be blocked after sweep")
	}
}

func TestBadgerStore(t *testing.T) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		t.Fatalf("Failed to open badger: %v", err)
	}
	defer db.Close()

	store := NewBadgerStore(db, "test:")
	ctx := context.Background()
	key := Key("feedback", 7, "203.0.113.7")

	ok, err := store.Allow(ctx, key, time.Hour)
	if err != nil || !ok {
		t.Fatalf("first Allow = %v, %v", ok, err)
	}
	ok, err = store.Allow(ctx, key, time.Hour)
	if err != nil || ok {
		t.Fatalf("second Allow = %v, %v; want blocked", ok, err)
	}

	if err := store.Release(ctx, key); err != nil {
		t.Fatalf("Release() = %v", err)
	}
	if ok, err := store.Allow(ctx, key, time.Hour); err != nil || !ok {
		t.Fatalf("Allow after Release = %v, %v; want allowed", ok, err)
	}

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := store.Allow(canceled, "other", time.Hour); err == nil {
		t.Error("expected context error")
	}

	// Closing a borrowed database is a no-op
	if err := store.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
}

func TestOpen(t *testing.T) {
	s, err := Open("", "")
	if err != nil {
		t.Fatalf("Open memory: %v", err)
	}
	s.Close()

	s, err = Open("badger", t.TempDir())
	if err != nil {
		t.Fatalf("Open badger: %v", err)
	}
	s.Close()

	if _, err := Open("redis", ""); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestMemoryStoreRelease(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)
	defer store.Close()

	key := Key("play", 3, "a")
	store.Allow(ctx, key, time.Hour)
	if err := store.Release(ctx, key); err != nil {
		t.Fatalf("Release() = %v", err)
	}
	if ok, _ := store.Allow(ctx, key, time.Hour); !ok {
		t.Error("released key should be allowed again")
	}
	if ok, _ := store.Allow(ctx, key, time.Hour); ok {
		t.Error("second Allow after release should be blocked")
	}

	// Releasing an unknown key is fine and the stale bucket entry is swept
	if err := store.Release(ctx, "never-seen"); err != nil {
		t.Fatalf("Release(unknown) = %v", err)
	}
	store.Sweep()
	if got := store.Len(); got != 1 {
		t.Errorf("Len() = %d; want 1", got)
	}
}
