package cache

import (
	"context"
	"sync"
	"time"
)

// Memory is the in-process tier: TTL expiry, LRU eviction at capacity, and
// a janitor goroutine that sweeps expired entries.
type Memory struct {
	mu         sync.Mutex
	entries    map[string]*memoryEntry
	maxEntries int
	stats      MemoryStats

	stopCh   chan struct{}
	stopOnce sync.Once
}

type memoryEntry struct {
	value    []byte
	expires  time.Time
	accessed time.Time
}

// MemoryStats reports memory-tier counters since construction.
type MemoryStats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Entries   int   `json:"entries"`
}

// NewMemory creates the memory tier. maxEntries <= 0 means unbounded.
func NewMemory(maxEntries int) *Memory {
	m := &Memory{
		entries:    make(map[string]*memoryEntry),
		maxEntries: maxEntries,
		stopCh:     make(chan struct{}),
	}

	go m.janitor()

	return m
}

// Get returns the cached value or ErrNotFound when absent or expired.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.entries[key]
	if !exists || time.Now().After(entry.expires) {
		m.stats.Misses++
		return nil, ErrNotFound
	}

	entry.accessed = time.Now()
	m.stats.Hits++
	return entry.value, nil
}

// Set stores value under key for ttl.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[key]; !exists && m.maxEntries > 0 && len(m.entries) >= m.maxEntries {
		m.evictLRU()
	}

	now := time.Now()
	m.entries[key] = &memoryEntry{
		value:    value,
		expires:  now.Add(ttl),
		accessed: now,
	}
	return nil
}

// Stats returns a snapshot of the tier counters.
func (m *Memory) Stats() MemoryStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.stats
	s.Entries = len(m.entries)
	return s
}

// Clear removes all entries and resets counters.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = make(map[string]*memoryEntry)
	m.stats = MemoryStats{}
}

// Stop shuts down the janitor goroutine. Safe to call more than once.
func (m *Memory) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// evictLRU removes the least recently accessed entry. Caller holds the lock.
func (m *Memory) evictLRU() {
	var oldestKey string
	var oldestTime time.Time

	for key, entry := range m.entries {
		if oldestKey == "" || entry.accessed.Before(oldestTime) {
			oldestTime = entry.accessed
			oldestKey = key
		}
	}

	if oldestKey != "" {
		delete(m.entries, oldestKey)
		m.stats.Evictions++
	}
}

func (m *Memory) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.removeExpired()
		}
	}
}

func (m *Memory) removeExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for key, entry := range m.entries {
		if now.After(entry.expires) {
			delete(m.entries, key)
		}
	}
}
