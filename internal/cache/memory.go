package cache

import (
	"container/list"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// MemoryCache is an in-process cache bounded by capacity and TTL.
//
// Eviction is oldest-first: when an insert pushes the cache past capacity the
// entry written longest ago is dropped. Reads do not refresh an entry's
// position; overwriting a key makes it the newest entry.
type MemoryCache struct {
	capacity   int
	defaultTTL time.Duration
	items      map[string]*list.Element
	order      *list.List // front = newest write
	now        func() time.Time
	mu         sync.Mutex

	hits      int64
	misses    int64
	evictions int64
}

type memoryItem struct {
	key       string
	data      json.RawMessage
	expiresAt time.Time // zero means no expiry
}

// NewMemoryCache creates a new memory cache. capacity < 1 means unbounded.
func NewMemoryCache(capacity int, defaultTTL time.Duration) *MemoryCache {
	return &MemoryCache{
		capacity:   capacity,
		defaultTTL: defaultTTL,
		items:      make(map[string]*list.Element),
		order:      list.New(),
		now:        time.Now,
	}
}

// Get retrieves an item from the memory cache
func (m *MemoryCache) Get(_ context.Context, key string, target any) (bool, error) {
	m.mu.Lock()
	element, exists := m.items[key]
	if !exists {
		m.misses++
		m.mu.Unlock()
		return false, nil
	}

	item := element.Value.(*memoryItem)
	if m.expired(item) {
		m.removeElement(element)
		m.misses++
		m.mu.Unlock()
		return false, nil
	}
	m.hits++
	data := item.data
	m.mu.Unlock()

	if err := json.Unmarshal(data, target); err != nil {
		return false, fmt.Errorf("unmarshal cache entry %s: %w", key, err)
	}
	return true, nil
}

// Set stores an item in the memory cache
func (m *MemoryCache) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal value: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if ttl == 0 {
		ttl = m.defaultTTL
	}
	item := &memoryItem{key: key, data: data}
	if ttl > 0 {
		item.expiresAt = m.now().Add(ttl)
	}

	if element, exists := m.items[key]; exists {
		element.Value = item
		m.order.MoveToFront(element)
		return nil
	}

	m.items[key] = m.order.PushFront(item)
	m.evictIfNecessary()
	return nil
}

// Delete removes an item from the memory cache
func (m *MemoryCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if element, exists := m.items[key]; exists {
		m.removeElement(element)
	}
	return nil
}

// Clean removes expired items from the memory cache
func (m *MemoryCache) Clean() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for element := m.order.Back(); element != nil; {
		prev := element.Prev()
		if m.expired(element.Value.(*memoryItem)) {
			m.removeElement(element)
			removed++
		}
		element = prev
	}
	return removed
}

// Size returns the current number of items in cache
func (m *MemoryCache) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Stats returns cache statistics
func (m *MemoryCache) Stats() MemoryCacheStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := MemoryCacheStats{
		TotalItems: len(m.items),
		Capacity:   m.capacity,
		Hits:       m.hits,
		Misses:     m.misses,
		Evictions:  m.evictions,
	}
	if m.capacity > 0 {
		stats.UtilizationPct = float64(len(m.items)) / float64(m.capacity) * 100
	}
	return stats
}

// Helper methods

func (m *MemoryCache) expired(item *memoryItem) bool {
	return !item.expiresAt.IsZero() && m.now().After(item.expiresAt)
}

func (m *MemoryCache) removeElement(element *list.Element) {
	item := element.Value.(*memoryItem)
	delete(m.items, item.key)
	m.order.Remove(element)
}

func (m *MemoryCache) evictIfNecessary() {
	if m.capacity < 1 {
		return
	}
	for len(m.items) > m.capacity {
		oldest := m.order.Back()
		if oldest == nil {
			return
		}
		m.removeElement(oldest)
		m.evictions++
	}
}

// MemoryCacheStats contains memory cache statistics
type MemoryCacheStats struct {
	TotalItems     int     `json:"total_items"`
	Capacity       int     `json:"capacity"`
	Hits           int64   `json:"hits"`
	Misses         int64   `json:"misses"`
	Evictions      int64   `json:"evictions"`
	UtilizationPct float64 `json:"utilization_pct"`
}

var _ Cache = (*MemoryCache)(nil)
