package ratelimit

import (
	"context"
	"sync"
	"time"
)

const bucketWidth = time.Minute

// MemoryStore keeps expiries in a map, indexed by expiry minute so the
// sweeper only visits buckets that are already due.
type MemoryStore struct {
	mu      sync.Mutex
	expiry  map[string]time.Time
	buckets map[int64][]string
	now     func() time.Time

	stop chan struct{}
	once sync.Once
}

// NewMemoryStore starts a store that sweeps expired keys every sweepEvery.
// A zero sweepEvery disables the background sweeper.
func NewMemoryStore(sweepEvery time.Duration) *MemoryStore {
	m := &MemoryStore{
		expiry:  make(map[string]time.Time),
		buckets: make(map[int64][]string),
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	if sweepEvery > 0 {
		go m.sweepLoop(sweepEvery)
	}
	return m
}

func (m *MemoryStore) Allow(_ context.Context, key string, window time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if exp, ok := m.expiry[key]; ok && now.Before(exp) {
		return false, nil
	}

	exp := now.Add(window)
	m.expiry[key] = exp
	b := bucketOf(exp)
	m.buckets[b] = append(m.buckets[b], key)
	return true, nil
}

// Release drops key. Its bucket entry is discarded by the next sweep.
func (m *MemoryStore) Release(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.expiry, key)
	m.mu.Unlock()
	return nil
}

// Len returns the number of tracked keys.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.expiry)
}

// Sweep drops expired keys.
func (m *MemoryStore) Sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	current := bucketOf(now)
	for b, keys := range m.buckets {
		if b > current {
			continue
		}
		var keep []string
		for _, key := range keys {
			exp, ok := m.expiry[key]
			if !ok || bucketOf(exp) != b {
				// Key was re-armed into a later bucket
				continue
			}
			if now.Before(exp) {
				keep = append(keep, key)
				continue
			}
			delete(m.expiry, key)
		}
		if len(keep) == 0 {
			delete(m.buckets, b)
		} else {
			m.buckets[b] = keep
		}
	}
}

func (m *MemoryStore) Close() error {
	m.once.Do(func() { close(m.stop) })
	return nil
}

func (m *MemoryStore) sweepLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Sweep()
		case <-m.stop:
			return
		}
	}
}

func bucketOf(t time.Time) int64 {
	return t.Truncate(bucketWidth).Unix()
}
