package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"vidfetch/pkg/models"
)

// DefaultTTL is how long fetched metadata stays valid
const DefaultTTL = 30 * time.Minute

// Store maps a source URL to its normalized metadata
type Store interface {
	Get(ctx context.Context, url string) (*models.VideoMetadata, bool)
	Put(ctx context.Context, url string, meta *models.VideoMetadata)
	Evict(ctx context.Context, url string)
}

// Entry is a cached metadata record
type Entry struct {
	Metadata   *models.VideoMetadata
	InsertedAt time.Time
}

// Option configures a Manager
type Option func(*Manager)

// WithClock replaces time.Now, mainly for tests
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithMaxEntries bounds the number of entries. Zero means unbounded.
func WithMaxEntries(n int) Option {
	return func(m *Manager) {
		m.maxEntries = n
	}
}

// Manager is the in-memory metadata cache
type Manager struct {
	mu         sync.RWMutex
	entries    map[string]*Entry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

// NewManager creates a cache whose entries expire after ttl
func NewManager(ttl time.Duration, opts ...Option) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	m := &Manager{
		entries: make(map[string]*Entry),
		ttl:     ttl,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Get returns the metadata for url if present and fresh. An expired entry is
// evicted.
func (m *Manager) Get(_ context.Context, url string) (*models.VideoMetadata, bool) {
	m.mu.RLock()
	entry, ok := m.entries[url]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if m.expired(entry) {
		m.mu.Lock()
		// re-check: a concurrent Put may have refreshed it
		if cur, ok := m.entries[url]; ok && m.expired(cur) {
			delete(m.entries, url)
		}
		m.mu.Unlock()
		return nil, false
	}

	return entry.Metadata, true
}

// Put stores meta for url, overwriting any existing entry
func (m *Manager) Put(_ context.Context, url string, meta *models.VideoMetadata) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[url] = &Entry{
		Metadata:   meta,
		InsertedAt: m.now(),
	}

	m.evictIfNeeded()
}

// Evict removes the entry for url
func (m *Manager) Evict(_ context.Context, url string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, url)
}

// Len returns the number of stored entries, expired or not
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Prune drops every expired entry and returns how many were removed
func (m *Manager) Prune() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for url, entry := range m.entries {
		if m.expired(entry) {
			delete(m.entries, url)
			removed++
		}
	}
	return removed
}

// StartJanitor prunes expired entries every interval until ctx is done
func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Prune()
			}
		}
	}()
}

// TTL returns the configured expiry window
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

func (m *Manager) expired(entry *Entry) bool {
	return m.now().Sub(entry.InsertedAt) >= m.ttl
}

// evictIfNeeded drops the oldest inserts while over maxEntries.
// Must be called with lock held
func (m *Manager) evictIfNeeded() {
	if m.maxEntries <= 0 || len(m.entries) <= m.maxEntries {
		return
	}

	urls := make([]string, 0, len(m.entries))
	for url := range m.entries {
		urls = append(urls, url)
	}

	sort.Slice(urls, func(i, j int) bool {
		return m.entries[urls[i]].InsertedAt.Before(m.entries[urls[j]].InsertedAt)
	})

	for _, url := range urls {
		if len(m.entries) <= m.maxEntries {
			break
		}
		delete(m.entries, url)
	}
}
